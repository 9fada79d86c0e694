package match

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/signalnine/tankbench/internal/config"
	"github.com/signalnine/tankbench/internal/engine"
	"github.com/signalnine/tankbench/internal/results"
	"github.com/signalnine/tankbench/internal/sandbox"
	"github.com/signalnine/tankbench/internal/workspace"
)

// Runner executes scheduled battles. Each battle gets a fresh server on
// its own port, so parallel runners never share engine state.
type Runner struct {
	Config   *config.Config
	Battle   *config.BattleConfig
	JarsDir  string
	Launcher sandbox.Launcher // evaluated bot; opponents run direct
	Recorder bool
	Logger   zerolog.Logger
}

// RunOpts names the variant side of one battle.
type RunOpts struct {
	Workspace *workspace.Paths
	BotName   string // lobby name from bot-config.json
	BotDir    string
	Entry     Entry
}

// Run plays one scheduled battle to completion and normalizes the
// outcome. Engine failures are not errors: they produce a MatchResult
// with an abort reason and worst-case rounds, because a crashed or hung
// battle is still a data point. Only infrastructure faults (no free
// port, jar missing) surface as errors.
func (r *Runner) Run(ctx context.Context, opts RunOpts) (*results.MatchResult, error) {
	e := opts.Entry
	tag := fmt.Sprintf("%03d_%s", e.Index, e.Kind)
	participants := append([]string{opts.BotName}, e.OpponentNames()...)

	norm := results.NormalizeOpts{
		Index:        e.Index,
		Kind:         e.Kind,
		GameType:     e.GameType,
		BaselineID:   e.BaselineID,
		Seed:         e.Seed,
		ConfigHash:   r.Config.Checksum,
		Bot:          opts.BotName,
		Participants: participants,
		Rounds:       r.Battle.NumberOfRounds,
	}

	port, err := engine.FindFreePort(engine.DefaultPort)
	if err != nil {
		return nil, err
	}
	secret := uuid.NewString()
	serverURL := fmt.Sprintf("ws://localhost:%d", port)

	server, err := engine.StartServer(engine.ServerOpts{
		Jar:                   engine.JarPath(r.JarsDir, "robocode-tankroyale-server", r.Config.Versions.Server),
		Port:                  port,
		TPS:                   r.Battle.TurnsPerSecond,
		GameTypes:             []string{GameType1v1, GameTypeMelee},
		Secret:                secret,
		LogPath:               opts.Workspace.MatchLogPath(tag + "_server"),
		EnableInitialPosition: true,
	})
	if err != nil {
		return nil, fmt.Errorf("starting server: %w", err)
	}
	defer server.Stop()

	if err := engine.WaitForPort(port, 30*time.Second); err != nil {
		r.Logger.Error().Int("port", port).Msg("server never came up")
		norm.AbortReason = results.AbortEngineUnready
		return results.Normalize(nil, norm), nil
	}

	var recorder *engine.Process
	if r.Recorder && r.Config.Versions.Recorder != "" {
		recorder, err = engine.StartRecorder(engine.RecorderOpts{
			Jar:       engine.JarPath(r.JarsDir, "robocode-tankroyale-recorder", r.Config.Versions.Recorder),
			ServerURL: serverURL,
			Secret:    secret,
			OutputDir: opts.Workspace.Server,
			LogPath:   opts.Workspace.MatchLogPath(tag + "_recorder"),
		})
		if err != nil {
			r.Logger.Warn().Err(err).Msg("recorder failed to start, continuing without replay")
		}
	}
	defer recorder.Stop()

	start := time.Now()
	handles, launchErr := r.launchBots(ctx, opts, serverURL, tag)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		for _, h := range handles {
			h.Stop(stopCtx)
		}
	}()
	if launchErr != nil {
		r.Logger.Error().Err(launchErr).Str("battle", tag).Msg("bot launch failed")
		norm.AbortReason = results.AbortConnectTimeout
		norm.CrashedBots = []string{opts.BotName}
		norm.Duration = time.Since(start)
		return results.Normalize(nil, norm), nil
	}

	matchTimeout := time.Duration(r.Config.Resources.MatchTimeoutSeconds) * time.Second
	runCtx, cancel := context.WithTimeout(ctx, matchTimeout)
	defer cancel()

	out, err := engine.RunController(runCtx, engine.ControllerOpts{
		URL:            serverURL,
		Secret:         secret,
		Expected:       participants,
		Setup:          engine.NewGameSetup(r.Battle, e.GameType, len(participants)),
		Seed:           e.Seed,
		ConnectTimeout: time.Duration(r.Config.Resources.ConnectTimeoutSeconds) * time.Second,
		Logger:         r.Logger,
	})
	norm.Duration = time.Since(start)
	norm.AbortReason, norm.CrashedBots = classify(err, opts.BotName, runCtx)
	for _, h := range handles {
		if h.Name() == opts.BotName && h.OOMKilled() {
			norm.CrashedBots = append(norm.CrashedBots, opts.BotName)
		}
	}

	m := results.Normalize(out, norm)
	r.Logger.Info().
		Str("battle", tag).
		Int("seed", e.Seed).
		Str("abort", m.AbortReason).
		Dur("took", norm.Duration).
		Msg("battle finished")
	return m, nil
}

// launchBots starts the opponents direct and the evaluated bot through
// the configured launcher with its resource limits.
func (r *Runner) launchBots(ctx context.Context, opts RunOpts, serverURL, tag string) ([]sandbox.Handle, error) {
	direct := &sandbox.Exec{Logger: r.Logger}
	var handles []sandbox.Handle

	for _, b := range opts.Entry.Opponents {
		h, err := direct.Launch(ctx, sandbox.Spec{
			Name:      b.Name,
			Dir:       b.Path,
			ServerURL: serverURL,
			LogPath:   opts.Workspace.MatchLogPath(tag + "_" + b.ID),
		})
		if err != nil {
			return handles, fmt.Errorf("launching baseline %s: %w", b.ID, err)
		}
		handles = append(handles, h)
	}

	h, err := r.Launcher.Launch(ctx, sandbox.Spec{
		Name:      opts.BotName,
		Dir:       opts.BotDir,
		ServerURL: serverURL,
		CPU:       r.Config.Resources.BotCPU,
		MemoryMB:  r.Config.Resources.BotMemoryMB,
		LogPath:   opts.Workspace.MatchLogPath(tag + "_bot"),
	})
	if err != nil {
		return handles, fmt.Errorf("launching variant bot: %w", err)
	}
	return append(handles, h), nil
}

// classify maps a controller error to an abort reason and the bots it
// implicates. A lobby timeout where only opponents are missing is an
// infrastructure problem, not the variant's crash.
func classify(err error, botName string, runCtx context.Context) (string, []string) {
	if err == nil {
		return results.AbortNone, nil
	}
	var lobby *engine.LobbyTimeoutError
	if errors.As(err, &lobby) {
		for _, name := range lobby.Missing {
			if name == botName {
				return results.AbortConnectTimeout, []string{botName}
			}
		}
		return results.AbortOpponentConnect, nil
	}
	if runCtx.Err() != nil {
		return results.AbortNonTerminating, []string{botName}
	}
	return results.AbortProtocol, nil
}

// DryRun starts a solo game for the variant bot and stops it after a few
// observed turns. It proves the bot connects, handshakes, and advances
// ticks without playing a full battle.
func (r *Runner) DryRun(ctx context.Context, ws *workspace.Paths, botName, botDir string) error {
	port, err := engine.FindFreePort(engine.DefaultPort)
	if err != nil {
		return err
	}
	secret := uuid.NewString()
	serverURL := fmt.Sprintf("ws://localhost:%d", port)

	server, err := engine.StartServer(engine.ServerOpts{
		Jar:       engine.JarPath(r.JarsDir, "robocode-tankroyale-server", r.Config.Versions.Server),
		Port:      port,
		TPS:       r.Battle.TurnsPerSecond,
		GameTypes: []string{GameType1v1, GameTypeMelee},
		Secret:    secret,
		LogPath:   ws.MatchLogPath("dryrun_server"),
	})
	if err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	defer server.Stop()
	if err := engine.WaitForPort(port, 30*time.Second); err != nil {
		return err
	}

	h, err := r.Launcher.Launch(ctx, sandbox.Spec{
		Name:      botName,
		Dir:       botDir,
		ServerURL: serverURL,
		CPU:       r.Config.Resources.BotCPU,
		MemoryMB:  r.Config.Resources.BotMemoryMB,
		LogPath:   ws.MatchLogPath("dryrun_bot"),
	})
	if err != nil {
		return fmt.Errorf("launching bot: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		h.Stop(stopCtx)
	}()

	runCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	out, err := engine.RunController(runCtx, engine.ControllerOpts{
		URL:            serverURL,
		Secret:         secret,
		Expected:       []string{botName},
		Setup:          engine.NewGameSetup(r.Battle, GameType1v1, 1),
		Seed:           0,
		ConnectTimeout: time.Duration(r.Config.Resources.ConnectTimeoutSeconds) * time.Second,
		StopAfterTurns: 10,
		Logger:         r.Logger,
	})
	if err != nil {
		return fmt.Errorf("dry run: %w", err)
	}
	if !out.Stopped && out.Turns < 10 {
		return fmt.Errorf("dry run: bot stalled after %d turns", out.Turns)
	}
	return nil
}
