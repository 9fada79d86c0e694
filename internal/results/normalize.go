package results

import (
	"time"

	"github.com/google/uuid"
	"github.com/signalnine/tankbench/internal/engine"
)

// NormalizeOpts ties one battle's raw outcome to its schedule slot.
type NormalizeOpts struct {
	Index        int
	Kind         string
	GameType     string
	BaselineID   string
	Seed         int
	ConfigHash   string
	Bot          string
	Participants []string
	Rounds       int
	Duration     time.Duration
	AbortReason  string
	// CrashedBots marks participants that disconnected, timed out, or
	// violated the protocol; they get worst-case rounds.
	CrashedBots []string
}

// Normalize converts the controller's outcome into the canonical
// MatchResult. When per-round results are available they are used
// directly; otherwise the game aggregate is spread evenly across the
// configured rounds as pseudo-rounds. Bots absent from the results (and
// bots explicitly flagged) are filled with worst-case rounds so crash
// accounting never loses a participant.
func Normalize(out *engine.Outcome, opts NormalizeOpts) *MatchResult {
	m := &MatchResult{
		BattleID:     uuid.NewString(),
		Index:        opts.Index,
		Kind:         opts.Kind,
		GameType:     opts.GameType,
		BaselineID:   opts.BaselineID,
		Seed:         opts.Seed,
		ConfigHash:   opts.ConfigHash,
		Bot:          opts.Bot,
		Participants: opts.Participants,
		Rounds:       map[string][]RoundMetrics{},
		DurationS:    opts.Duration.Seconds(),
		AbortReason:  opts.AbortReason,
	}

	rounds := opts.Rounds
	if rounds < 1 {
		rounds = 1
	}

	if out != nil && len(out.RoundResults) > 0 {
		for round, results := range out.RoundResults {
			for _, r := range results {
				m.Rounds[r.Name] = append(m.Rounds[r.Name], roundFromResult(r, round, 1))
			}
		}
	} else if out != nil && len(out.Results) > 0 {
		// Aggregate-only fallback: one pseudo-round per configured round,
		// each carrying the per-round average.
		for _, r := range out.Results {
			for round := 1; round <= rounds; round++ {
				m.Rounds[r.Name] = append(m.Rounds[r.Name], roundFromResult(r, round, float64(rounds)))
			}
		}
	}

	crashed := map[string]bool{}
	for _, name := range opts.CrashedBots {
		crashed[name] = true
	}
	for _, name := range opts.Participants {
		if len(m.Rounds[name]) == 0 {
			crashed[name] = true
		}
	}
	for name := range crashed {
		m.Rounds[name] = worstCaseRounds(rounds, len(opts.Participants))
	}
	return m
}

func roundFromResult(r engine.BotResult, round int, divisor float64) RoundMetrics {
	return RoundMetrics{
		Round:             round,
		TotalScore:        r.TotalScore / divisor,
		BulletDamage:      r.BulletDamage / divisor,
		BulletDamageBonus: r.BulletDamageBonus / divisor,
		RamDamage:         r.RamDamage / divisor,
		RamDamageBonus:    r.RamDamageBonus / divisor,
		SurvivalScore:     r.Survival / divisor,
		LastSurvivorBonus: r.LastSurvivorBonus / divisor,
		Rank:              r.Rank,
		Alive:             r.Survival > 0,
	}
}

// worstCaseRounds fills in a crashed participant: last place, zero
// survival, flagged for crash accounting.
func worstCaseRounds(rounds, participants int) []RoundMetrics {
	out := make([]RoundMetrics, rounds)
	for i := range out {
		out[i] = RoundMetrics{
			Round:                 i + 1,
			Rank:                  participants,
			CrashedOrDisqualified: true,
		}
	}
	return out
}
