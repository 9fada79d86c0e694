package cmd

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/signalnine/tankbench/internal/config"
	"github.com/signalnine/tankbench/internal/manifest"
	"github.com/signalnine/tankbench/internal/match"
	"github.com/signalnine/tankbench/internal/sandbox"
	"github.com/signalnine/tankbench/internal/scoring"
	"github.com/signalnine/tankbench/internal/workspace"
)

var (
	flagCalManifest string
	flagCalJars     string
	flagCalDir      string
)

func newCalibrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Derive scoring reference ranges from a baseline-vs-baseline sweep",
		Long: `Plays every pair of 1v1-capable baselines against each other across all
configured seeds and prints the observed score and variance ranges as a
config snippet. The ranges are meant to be checked in with the benchmark
config, not recomputed per run.`,
		RunE: runCalibrate,
	}
	cmd.Flags().StringVar(&flagCalManifest, "manifest", "baselines/manifest.yaml", "baseline manifest")
	cmd.Flags().StringVar(&flagCalJars, "jars", "tools/bin", "directory holding the downloaded stack jars")
	cmd.Flags().StringVar(&flagCalDir, "workdir", "workspaces/_calibration", "scratch directory for sweep logs")
	return cmd
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if len(cfg.Seeds) == 0 {
		return fmt.Errorf("no seeds configured")
	}
	battle, err := config.LoadBattleConfig(resolveNear(cfgFile, cfg.BattleFiles.BattleConfigPath))
	if err != nil {
		return err
	}
	roster, err := manifest.Load(flagCalManifest, manifest.Options{CheckPaths: true})
	if err != nil {
		return err
	}
	var duelists []manifest.Bot
	for _, b := range roster.Bots {
		if b.Supports("1v1") {
			duelists = append(duelists, b)
		}
	}
	if len(duelists) < 2 {
		return fmt.Errorf("need at least two 1v1-capable baselines, have %d", len(duelists))
	}

	runner := &match.Runner{
		Config:   cfg,
		Battle:   battle,
		JarsDir:  flagCalJars,
		Launcher: &sandbox.Exec{Logger: logger},
		Logger:   logger,
	}

	minMean, maxMean := math.Inf(1), math.Inf(-1)
	maxVariance := 0.0
	battles := 0

	idx := 0
	for i := 0; i < len(duelists); i++ {
		for j := i + 1; j < len(duelists); j++ {
			a, b := duelists[i], duelists[j]
			ws, err := workspace.Create(flagCalDir, "calibration", a.ID+"_vs_"+b.ID, "")
			if err != nil {
				return err
			}
			for si, seed := range cfg.Seeds {
				m, err := runner.Run(cmd.Context(), match.RunOpts{
					Workspace: ws,
					BotName:   a.Name,
					BotDir:    a.Path,
					Entry: match.Entry{
						Index:      idx,
						Kind:       match.Kind1v1,
						GameType:   match.GameType1v1,
						BaselineID: b.ID,
						Seed:       seed,
						SeedIndex:  si,
						Opponents:  []manifest.Bot{b},
					},
				})
				if err != nil {
					return fmt.Errorf("calibration battle %s vs %s: %w", a.ID, b.ID, err)
				}
				idx++
				if m.AbortReason != "" {
					logger.Warn().Str("abort", m.AbortReason).
						Str("pair", a.ID+" vs "+b.ID).Int("seed", seed).
						Msg("calibration battle aborted, excluded from ranges")
					continue
				}
				battles++
				for name := range m.Rounds {
					var rounds []scoring.Round
					for _, r := range m.Rounds[name] {
						rounds = append(rounds, scoring.Round{TotalScore: r.TotalScore, Rank: r.Rank})
					}
					mean := scoring.MeanTotalScore(rounds)
					minMean = math.Min(minMean, mean)
					maxMean = math.Max(maxMean, mean)
					maxVariance = math.Max(maxVariance, scoring.Variance(rounds))
				}
			}
		}
	}
	if battles == 0 {
		return fmt.Errorf("every calibration battle aborted; nothing to derive ranges from")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "# derived from %d baseline-vs-baseline battles\n", battles)
	fmt.Fprintf(cmd.OutOrStdout(), "scoring:\n  calibration:\n")
	fmt.Fprintf(cmd.OutOrStdout(), "    score_range:\n      low: %.2f\n      high: %.2f\n", minMean, maxMean)
	fmt.Fprintf(cmd.OutOrStdout(), "    variance_range:\n      low: 0\n      high: %.2f\n", maxVariance)
	return nil
}
