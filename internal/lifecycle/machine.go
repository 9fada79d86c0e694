package lifecycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/signalnine/tankbench/internal/artifact"
	"github.com/signalnine/tankbench/internal/botdef"
	"github.com/signalnine/tankbench/internal/config"
	"github.com/signalnine/tankbench/internal/generate"
	"github.com/signalnine/tankbench/internal/results"
	"github.com/signalnine/tankbench/internal/scoring"
	"github.com/signalnine/tankbench/internal/workspace"
)

// Builder is the static validation phase.
type Builder interface {
	Build(ctx context.Context, ws *workspace.Paths) (BuildOutcome, error)
}

// DryRunner is the supervised solo run phase.
type DryRunner interface {
	DryRun(ctx context.Context, ws *workspace.Paths, botName, botDir string) error
}

// Tournament plays the full deterministic match set. Match-level
// failures are folded into the results, never returned as errors.
type Tournament interface {
	Play(ctx context.Context, ws *workspace.Paths, botName string) ([]results.MatchResult, error)
}

// Machine sequences one variant through its lifecycle. It owns all
// branching control flow; every other component is a straight pipe.
type Machine struct {
	Config     *config.Config
	Builder    Builder
	DryRunner  DryRunner
	Tournament Tournament
	// Generator is used for repair attempts; nil disables the repair
	// path regardless of budget.
	Generator       generate.Generator
	ManifestVersion int
	Logger          zerolog.Logger
}

// Run drives the variant from its current state to a terminal one and
// returns the metrics payload. Terminal failures are not errors: they
// produce a zero score record. Errors mean the orchestrator itself
// could not proceed.
func (m *Machine) Run(ctx context.Context, ws *workspace.Paths, v *Variant) (*results.Metrics, error) {
	log := m.Logger.With().Str("model", v.ModelID).Str("variant", v.VariantID).Logger()

	if v.ConfigHash != "" && m.Config.Checksum != "" && v.ConfigHash != m.Config.Checksum {
		return nil, fmt.Errorf("variant %s/%s was prepared under config %s, current config is %s",
			v.ModelID, v.VariantID, v.ConfigHash, m.Config.Checksum)
	}

	for !v.State.Terminal() {
		switch v.State {
		case StatePending:
			if err := v.To(StateGenerated); err != nil {
				return nil, err
			}

		case StateGenerated:
			if reason := checkOutputContract(ws); reason != "" {
				log.Warn().Str("reason", reason).Msg("generated output malformed")
				if m.repair(ctx, ws, v, "generation output validation", reason) {
					continue
				}
				if v.State == StateRepairing {
					// Repair itself broke down mid-flight.
					if err := v.Fail(FailureMalformed); err != nil {
						return nil, err
					}
				} else if err := v.To(StateMalformed); err != nil {
					return nil, err
				}
				continue
			}
			sha, err := artifact.HashDir(ws.Bot)
			if err != nil {
				return nil, fmt.Errorf("hashing bot tree: %w", err)
			}
			v.BotTreeSHA = sha
			if err := v.To(StateCompiled); err != nil {
				return nil, err
			}

		case StateMalformed:
			if err := v.Fail(FailureMalformed); err != nil {
				return nil, err
			}

		case StateCompiled:
			outcome, err := m.Builder.Build(ctx, ws)
			if err != nil {
				return nil, err
			}
			if !outcome.OK {
				log.Warn().Msg("build failed")
				if err := v.To(StateBuildFailed); err != nil {
					return nil, err
				}
				continue
			}
			botName := botdef.BotName(ws.Bot)
			if err := m.DryRunner.DryRun(ctx, ws, botName, ws.Bot); err != nil {
				log.Warn().Err(err).Msg("dry run failed")
				if _, werr := ws.WriteLog("dryrun", err.Error()); werr != nil {
					return nil, fmt.Errorf("writing dry run log: %w", werr)
				}
				if m.repair(ctx, ws, v, "the supervised dry run", err.Error()) {
					continue
				}
				if err := v.Fail(FailureDryRun); err != nil {
					return nil, err
				}
				continue
			}
			if err := v.To(StateDryRunOk); err != nil {
				return nil, err
			}

		case StateBuildFailed:
			failure := readLog(ws, "build")
			if m.repair(ctx, ws, v, "the build step", failure) {
				continue
			}
			if err := v.Fail(FailureBuild); err != nil {
				return nil, err
			}

		case StateDryRunOk:
			if err := v.To(StateTournament); err != nil {
				return nil, err
			}

		case StateTournament:
			matches, err := m.Tournament.Play(ctx, ws, botdef.BotName(ws.Bot))
			if err != nil {
				return nil, fmt.Errorf("tournament: %w", err)
			}
			if err := m.verifyMatches(v, matches); err != nil {
				return nil, err
			}
			metrics := m.score(v, matches)
			if _, err := ws.WriteResults("metrics", metrics); err != nil {
				return nil, err
			}
			if err := v.To(StateScored); err != nil {
				return nil, err
			}
			log.Info().
				Float64("bot_score", metrics.Record.Summary.BotScore).
				Msg("variant scored")
			return metrics, nil

		default:
			return nil, fmt.Errorf("unhandled state %s", v.State)
		}
	}

	// Terminal failure: all downstream scores are defined as zero.
	metrics := m.zeroMetrics(v)
	if _, err := ws.WriteResults("metrics", metrics); err != nil {
		return nil, err
	}
	log.Warn().Str("kind", string(v.FailureKind)).Msg("variant failed")
	return metrics, nil
}

// repair spends one budget slot on a corrected generation. Returns true
// when the variant re-entered Generated with rewritten files; on any
// failure it returns false and the caller moves to the terminal state
// for its phase. The malformed-output fixup and build/dry-run repairs
// share one budget.
func (m *Machine) repair(ctx context.Context, ws *workspace.Paths, v *Variant, phase, failure string) bool {
	if m.Generator == nil || !v.RepairAvailable() {
		return false
	}
	log := m.Logger.With().Str("model", v.ModelID).Str("variant", v.VariantID).Logger()
	if err := v.UseRepair(); err != nil {
		log.Error().Err(err).Msg("repair bookkeeping failed")
		return false
	}

	prev, err := generate.ReadBotFiles(ws.Bot)
	if err != nil {
		log.Error().Err(err).Msg("reading files for repair context")
		return false
	}
	prompt := generate.RepairPrompt(phase, prev, failure)
	ws.WritePrompt(fmt.Sprintf("repair_%d_prompt", v.RepairsUsed), prompt)

	response, err := m.Generator.Generate(ctx, generate.Request{
		Prompt: prompt,
		Limits: m.Config.Generation,
	})
	if err != nil {
		log.Error().Err(err).Msg("repair generation failed")
		return false
	}
	ws.WritePrompt(fmt.Sprintf("repair_%d_response", v.RepairsUsed), response)

	files, err := generate.ExtractFiles(response)
	if err != nil {
		log.Warn().Err(err).Msg("repair response malformed")
		return false
	}
	if err := generate.WriteFiles(ws.Bot, files); err != nil {
		log.Error().Err(err).Msg("writing repaired files")
		return false
	}
	if err := v.To(StateGenerated); err != nil {
		log.Error().Err(err).Msg("re-entering generated")
		return false
	}
	log.Info().Int("attempt", v.RepairsUsed).Str("phase", phase).Msg("repair applied")
	return true
}

// verifyMatches rejects results recorded under a different ruleset than
// the variant's. Stored matches survive config edits between runs, so a
// resumed tournament must prove every result still carries the variant's
// config hash and a configured seed before it is scored.
func (m *Machine) verifyMatches(v *Variant, matches []results.MatchResult) error {
	seeds := make(map[int]bool, len(m.Config.Seeds))
	for _, s := range m.Config.Seeds {
		seeds[s] = true
	}
	for _, match := range matches {
		if v.ConfigHash != "" && match.ConfigHash != v.ConfigHash {
			return fmt.Errorf("match %d (battle %s) recorded under config %s, variant expects %s",
				match.Index, match.BattleID, match.ConfigHash, v.ConfigHash)
		}
		if len(seeds) > 0 && !seeds[match.Seed] {
			return fmt.Errorf("match %d (battle %s) used seed %d, not in the configured seed set",
				match.Index, match.BattleID, match.Seed)
		}
	}
	return nil
}

// score reduces the match set to the published record.
func (m *Machine) score(v *Variant, matches []results.MatchResult) *results.Metrics {
	in := scoring.Input{PerBaseline: map[string][]scoring.Round{}}
	for _, match := range matches {
		rounds := match.ScoringRounds()
		switch match.Kind {
		case "melee":
			in.Melee = append(in.Melee, rounds...)
		default:
			in.PerBaseline[match.BaselineID] = append(in.PerBaseline[match.BaselineID], rounds...)
		}
	}
	summary := scoring.Compute(in, m.Config.Scoring.Weights, m.Config.Scoring.Calibration)
	return &results.Metrics{
		Record: results.ScoreRecord{
			BenchmarkID:     m.Config.BenchmarkID,
			ModelID:         v.ModelID,
			VariantID:       v.VariantID,
			Status:          string(StateScored),
			ManifestVersion: m.ManifestVersion,
			ConfigHash:      v.ConfigHash,
			Summary:         summary,
		},
		Matches: matches,
	}
}

func (m *Machine) zeroMetrics(v *Variant) *results.Metrics {
	return &results.Metrics{
		Record: results.ScoreRecord{
			BenchmarkID:     m.Config.BenchmarkID,
			ModelID:         v.ModelID,
			VariantID:       v.VariantID,
			Status:          string(StateFailed),
			FailureKind:     string(v.FailureKind),
			ManifestVersion: m.ManifestVersion,
			ConfigHash:      v.ConfigHash,
			Summary:         scoring.Summary{CrashRate: 1},
		},
	}
}

// checkOutputContract verifies the generated tree has the required
// files and a parseable bot config. Empty string means OK.
func checkOutputContract(ws *workspace.Paths) string {
	entry := filepath.Join(ws.Bot, "main.py")
	nested := filepath.Join(ws.BotSrc, "main.py")
	if !fileExists(entry) && !fileExists(nested) {
		return "missing entrypoint main.py"
	}
	if _, err := botdef.Load(ws.Bot); err != nil {
		return err.Error()
	}
	return ""
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

func readLog(ws *workspace.Paths, name string) string {
	data, err := os.ReadFile(filepath.Join(ws.Logs, name+".log"))
	if err != nil {
		return ""
	}
	return string(data)
}
