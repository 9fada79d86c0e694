// Package results defines the canonical match telemetry schema and its
// persistence, independent of the wire format the engine happens to emit.
package results

import "github.com/signalnine/tankbench/internal/scoring"

// RoundMetrics is one bot's metrics for one round.
type RoundMetrics struct {
	Round                 int     `json:"round"`
	TotalScore            float64 `json:"total_score"`
	BulletDamage          float64 `json:"bullet_damage"`
	BulletDamageBonus     float64 `json:"bullet_damage_bonus"`
	RamDamage             float64 `json:"ram_damage"`
	RamDamageBonus        float64 `json:"ram_damage_bonus"`
	SurvivalScore         float64 `json:"survival_score"`
	LastSurvivorBonus     float64 `json:"last_survivor_bonus"`
	Rank                  int     `json:"rank"`
	Alive                 bool    `json:"alive"`
	CrashedOrDisqualified bool    `json:"crashed_or_disqualified"`
}

// Abort reasons recorded on MatchResult.
const (
	AbortNone            = ""
	AbortNonTerminating  = "non_terminating"
	AbortEngineUnready   = "engine_unready"
	AbortConnectTimeout  = "connect_timeout"
	AbortOpponentConnect = "opponent_connect_timeout"
	AbortProtocol        = "protocol_error"
)

// MatchResult is the immutable outcome of one battle. A re-run produces a
// new MatchResult, never an edit.
type MatchResult struct {
	BattleID     string                    `json:"battle_id"`
	Index        int                       `json:"index"`
	Kind         string                    `json:"kind"`
	GameType     string                    `json:"game_type"`
	BaselineID   string                    `json:"baseline_id,omitempty"`
	Seed         int                       `json:"seed"`
	ConfigHash   string                    `json:"config_hash"`
	Bot          string                    `json:"bot"`
	Participants []string                  `json:"participants"`
	Rounds       map[string][]RoundMetrics `json:"rounds"`
	DurationS    float64                   `json:"duration_s"`
	AbortReason  string                    `json:"abort_reason,omitempty"`
}

// BotRounds returns the evaluated bot's rounds.
func (m *MatchResult) BotRounds() []RoundMetrics {
	return m.Rounds[m.Bot]
}

// ScoringRounds converts the evaluated bot's rounds into scoring inputs.
func (m *MatchResult) ScoringRounds() []scoring.Round {
	rounds := m.BotRounds()
	out := make([]scoring.Round, 0, len(rounds))
	for _, r := range rounds {
		out = append(out, scoring.Round{
			TotalScore:   r.TotalScore,
			Rank:         r.Rank,
			Participants: len(m.Participants),
			Crashed:      r.CrashedOrDisqualified,
		})
	}
	return out
}

// ScoreRecord is the published reduction of one variant's MatchResults.
// Derived data: always recomputable from the stored MatchResults and the
// config.
type ScoreRecord struct {
	BenchmarkID     string          `json:"benchmark_id"`
	ModelID         string          `json:"model_id"`
	VariantID       string          `json:"variant_id"`
	Status          string          `json:"status"`
	FailureKind     string          `json:"failure_kind,omitempty"`
	ManifestVersion int             `json:"baseline_manifest_version"`
	ConfigHash      string          `json:"config_hash"`
	Summary         scoring.Summary `json:"scores"`
}

// Metrics is the full results/metrics.json payload: the final score
// record plus every raw match result it was derived from.
type Metrics struct {
	Record  ScoreRecord   `json:"record"`
	Matches []MatchResult `json:"matches"`
}
