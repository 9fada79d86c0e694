// Package match builds the deterministic battle schedule for a variant
// and runs each battle against the engine stack.
package match

import (
	"github.com/signalnine/tankbench/internal/manifest"
)

// Battle kinds and the engine game types they map to.
const (
	Kind1v1   = "1v1"
	KindMelee = "melee"

	GameType1v1   = "1v1"
	GameTypeMelee = "classic"
)

// Entry is one slot in a variant's schedule. The schedule is a pure
// function of the manifest and the seed list, so every variant faces the
// same battles and a partial run can resume by index.
type Entry struct {
	Index      int
	Kind       string
	GameType   string
	BaselineID string // 1v1 only
	Seed       int
	SeedIndex  int
	Opponents  []manifest.Bot
}

// BuildSchedule enumerates every battle for the roster and seed list:
// one 1v1 per (baseline, seed) in manifest order, then one melee per
// seed. Melee rosters rotate through the eligible bots so each seed
// draws a different slice of the roster without any run-time state.
func BuildSchedule(m *manifest.Manifest, seeds []int) []Entry {
	var entries []Entry
	idx := 0

	for _, bot := range m.Bots {
		if !bot.Supports(GameType1v1) {
			continue
		}
		for si, seed := range seeds {
			entries = append(entries, Entry{
				Index:      idx,
				Kind:       Kind1v1,
				GameType:   GameType1v1,
				BaselineID: bot.ID,
				Seed:       seed,
				SeedIndex:  si,
				Opponents:  []manifest.Bot{bot},
			})
			idx++
		}
	}

	var meleePool []manifest.Bot
	for _, bot := range m.Bots {
		if bot.Supports(GameTypeMelee) {
			meleePool = append(meleePool, bot)
		}
	}
	want := m.MeleeParticipants - 1 // the variant fills the last slot
	if want > len(meleePool) {
		want = len(meleePool)
	}
	if want < 1 || len(meleePool) == 0 {
		return entries
	}

	for si, seed := range seeds {
		offset := si % len(meleePool)
		opponents := make([]manifest.Bot, 0, want)
		for i := 0; i < want; i++ {
			opponents = append(opponents, meleePool[(offset+i)%len(meleePool)])
		}
		entries = append(entries, Entry{
			Index:     idx,
			Kind:      KindMelee,
			GameType:  GameTypeMelee,
			Seed:      seed,
			SeedIndex: si,
			Opponents: opponents,
		})
		idx++
	}
	return entries
}

// OpponentNames returns the lobby names the engine will see.
func (e Entry) OpponentNames() []string {
	out := make([]string, 0, len(e.Opponents))
	for _, b := range e.Opponents {
		out = append(out, b.Name)
	}
	return out
}
