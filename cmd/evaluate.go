package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/signalnine/tankbench/internal/config"
	"github.com/signalnine/tankbench/internal/generate"
	"github.com/signalnine/tankbench/internal/lifecycle"
	"github.com/signalnine/tankbench/internal/manifest"
	"github.com/signalnine/tankbench/internal/match"
	"github.com/signalnine/tankbench/internal/results"
	"github.com/signalnine/tankbench/internal/sandbox"
	"github.com/signalnine/tankbench/internal/workspace"
)

var (
	flagEvalManifest string
	flagJars         string
	flagParallel     int
	flagResume       bool
	flagRecorder     bool
	flagGenerator    string
)

func newEvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate <workspace>...",
		Short: "Run the full lifecycle for prepared workspaces: build, dry run, tournament, scoring",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runEvaluate,
	}
	cmd.Flags().StringVar(&flagEvalManifest, "manifest", "baselines/manifest.yaml", "baseline manifest (never shared with models)")
	cmd.Flags().StringVar(&flagJars, "jars", "tools/bin", "directory holding the downloaded stack jars")
	cmd.Flags().IntVar(&flagParallel, "parallel", 1, "max concurrent battles across all variants")
	cmd.Flags().BoolVar(&flagResume, "resume", false, "skip battles already in the result store")
	cmd.Flags().BoolVar(&flagRecorder, "recorder", false, "attach the battle recorder to every match")
	cmd.Flags().StringVar(&flagGenerator, "generator", "", "repair generator command (prompt on stdin, response on stdout)")
	return cmd
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if len(cfg.Seeds) == 0 {
		return fmt.Errorf("no seeds configured; set seeds or battle_files.seeds_path")
	}
	battle, err := config.LoadBattleConfig(resolveNear(cfgFile, cfg.BattleFiles.BattleConfigPath))
	if err != nil {
		return err
	}
	roster, err := manifest.Load(flagEvalManifest, manifest.Options{CheckPaths: true})
	if err != nil {
		return err
	}
	schedule := match.BuildSchedule(roster, cfg.Seeds)

	if err := os.MkdirAll(filepath.Dir(cfg.Results.StoreDB), 0o755); err != nil {
		return err
	}
	store, err := results.OpenStore(cfg.Results.StoreDB)
	if err != nil {
		return err
	}
	defer store.Close()

	var launcher sandbox.Launcher
	if cfg.Sandbox.Enabled {
		launcher = &sandbox.Docker{Image: cfg.Sandbox.Image, Logger: logger}
	} else {
		launcher = &sandbox.Exec{Logger: logger}
	}
	var gen generate.Generator
	if flagGenerator != "" {
		gen = &generate.Command{Argv: strings.Fields(flagGenerator), Logger: logger}
	}

	// One slot per concurrent battle, shared by every variant so the cap
	// is global and variants interleave battle by battle.
	slots := make(chan struct{}, max(1, flagParallel))

	var (
		mu       sync.Mutex
		finished []*results.Metrics
	)
	jobs := make([]match.Job, 0, len(args))
	for _, arg := range args {
		arg := arg
		jobs = append(jobs, func(ctx context.Context) error {
			m, err := evaluateWorkspace(ctx, arg, cfg, battle, roster, schedule, store, launcher, gen, slots)
			if err != nil {
				return err
			}
			if m != nil {
				mu.Lock()
				finished = append(finished, m)
				mu.Unlock()
			}
			return nil
		})
	}
	errs := match.RunPool(cmd.Context(), len(jobs), jobs)
	for _, err := range errs {
		fmt.Fprintf(cmd.ErrOrStderr(), "ERROR: %v\n", err)
	}

	// Snapshot every finished variant into a timestamped run dir so
	// `report results/latest` always reflects the most recent run.
	if len(finished) > 0 {
		runDir, err := results.CreateRunDir(cfg.Results.Dir)
		if err != nil {
			return err
		}
		for _, m := range finished {
			dir := filepath.Join(runDir, m.Record.ModelID, m.Record.VariantID)
			if err := results.WriteMetrics(dir, m); err != nil {
				return err
			}
		}
		logger.Info().Str("run_dir", runDir).Int("variants", len(finished)).Msg("run snapshot written")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%d of %d variants did not finish", len(errs), len(jobs))
	}
	return nil
}

func evaluateWorkspace(
	ctx context.Context,
	root string,
	cfg *config.Config,
	battle *config.BattleConfig,
	roster *manifest.Manifest,
	schedule []match.Entry,
	store *results.Store,
	launcher sandbox.Launcher,
	gen generate.Generator,
	slots chan struct{},
) (*results.Metrics, error) {
	ws, err := workspace.Open(root)
	if err != nil {
		return nil, err
	}
	v, err := lifecycle.LoadVariant(ws.Root)
	if err != nil {
		// Workspaces prepared out of band get their ids from the layout:
		// workspaces/<model>/<variant>.
		v = lifecycle.NewVariant(ws.Root,
			filepath.Base(filepath.Dir(ws.Root)), filepath.Base(ws.Root),
			cfg.Checksum, cfg.Attempts.Repairs)
		if err := v.Save(); err != nil {
			return nil, err
		}
	}
	if v.State.Terminal() {
		logger.Info().Str("variant", v.VariantID).Str("state", string(v.State)).Msg("already terminal, skipping")
		m, err := results.ReadMetrics(filepath.Join(ws.Results, "metrics.json"))
		if err != nil {
			return nil, nil
		}
		return m, nil
	}

	log := logger.With().Str("model", v.ModelID).Str("variant", v.VariantID).Logger()
	runner := &match.Runner{
		Config:   cfg,
		Battle:   battle,
		JarsDir:  flagJars,
		Launcher: launcher,
		Recorder: flagRecorder,
		Logger:   log,
	}
	machine := &lifecycle.Machine{
		Config:  cfg,
		Builder: &lifecycle.PyBuilder{
			Timeout:           time.Duration(cfg.Resources.BuildTimeoutSeconds) * time.Second,
			RequiredGameTypes: []string{"classic", "1v1"},
		},
		DryRunner: runner,
		Tournament: &tournament{
			runner:    runner,
			entries:   schedule,
			store:     store,
			modelID:   v.ModelID,
			variantID: v.VariantID,
			resume:    flagResume,
			slots:     slots,
			logger:    log,
		},
		Generator:       gen,
		ManifestVersion: roster.Version,
		Logger:          log,
	}

	metrics, err := machine.Run(ctx, ws, v)
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", v.ModelID, v.VariantID, err)
	}
	log.Info().
		Str("status", metrics.Record.Status).
		Float64("bot_score", metrics.Record.Summary.BotScore).
		Msg("evaluation finished")
	return metrics, nil
}

// tournament plays a variant's schedule sequentially, gated by the
// global battle slots, appending each result to the store.
type tournament struct {
	runner    *match.Runner
	entries   []match.Entry
	store     *results.Store
	modelID   string
	variantID string
	resume    bool
	slots     chan struct{}
	logger    zerolog.Logger
}

func (t *tournament) Play(ctx context.Context, ws *workspace.Paths, botName string) ([]results.MatchResult, error) {
	done := map[int]bool{}
	if t.resume {
		var err error
		done, err = t.store.CompletedIndexes(ctx, t.modelID, t.variantID)
		if err != nil {
			return nil, err
		}
		if len(done) > 0 {
			t.logger.Info().Int("completed", len(done)).Msg("resuming tournament")
		}
	}

	for _, entry := range t.entries {
		if done[entry.Index] {
			continue
		}
		select {
		case t.slots <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		m, err := t.runner.Run(ctx, match.RunOpts{
			Workspace: ws,
			BotName:   botName,
			BotDir:    ws.Bot,
			Entry:     entry,
		})
		<-t.slots
		if err != nil {
			return nil, err
		}
		if err := t.store.Append(ctx, t.modelID, t.variantID, m); err != nil {
			return nil, err
		}
	}
	return t.store.Matches(ctx, t.modelID, t.variantID)
}
