package scoring_test

import (
	"testing"

	"github.com/signalnine/tankbench/internal/scoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore1v1Sweep(t *testing.T) {
	// 6 of 10 round wins, normalized average score 0.4.
	got := scoring.Score1v1(0.6, 0.4, 0.7)
	assert.InDelta(t, 0.54, got, 1e-9)
}

func TestRankScore(t *testing.T) {
	tests := []struct {
		name         string
		rank         int
		participants int
		want         float64
	}{
		{"first of six", 1, 6, 1.0},
		{"second of six", 2, 6, 0.8},
		{"last of six", 6, 6, 0.0},
		{"first of two", 1, 2, 1.0},
		{"solo", 1, 1, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, scoring.RankScore(tt.rank, tt.participants), 1e-9)
		})
	}
}

func TestScore1v1Monotonic(t *testing.T) {
	prev := -1.0
	for w := 0.0; w <= 1.0; w += 0.1 {
		got := scoring.Score1v1(w, 0.4, 0.7)
		require.GreaterOrEqual(t, got, prev, "winrate %f", w)
		prev = got
	}
}

func TestRangeNormalize(t *testing.T) {
	r := scoring.Range{Low: 10, High: 60}
	assert.InDelta(t, 0.0, r.Normalize(10), 1e-9)
	assert.InDelta(t, 1.0, r.Normalize(60), 1e-9)
	assert.InDelta(t, 0.5, r.Normalize(35), 1e-9)
	assert.InDelta(t, 0.0, r.Normalize(-5), 1e-9, "below range clamps")
	assert.InDelta(t, 1.0, r.Normalize(100), 1e-9, "above range clamps")

	degenerate := scoring.Range{Low: 5, High: 5}
	assert.Zero(t, degenerate.Normalize(42))
}

func TestCrashAccounting(t *testing.T) {
	rounds := []scoring.Round{
		{Rank: 2, Participants: 2, Crashed: true},
		{Rank: 2, Participants: 2, Crashed: true},
		{Rank: 2, Participants: 2, Crashed: true},
	}
	require.InDelta(t, 1.0, scoring.CrashRate(rounds), 1e-9)
	// Crash term of SRS is 0; only the variance half can contribute.
	assert.InDelta(t, 0.5, scoring.SRS(1.0, 0.0), 1e-9)
	assert.InDelta(t, 0.0, scoring.SRS(1.0, 1.0), 1e-9)
}

func TestBotScoreDefaultsAndBounds(t *testing.T) {
	got := scoring.BotScore(1.0, 1.0, 1.0, scoring.Weights{})
	assert.InDelta(t, 1.0, got, 1e-9)

	got = scoring.BotScore(0.8, 0.5, 0.4, scoring.Weights{BPS: 0.5, FPS: 0.3, SRS: 0.2})
	assert.InDelta(t, 0.8*0.5+0.5*0.3+0.4*0.2, got, 1e-9)

	// Out-of-range components are clamped before weighting.
	got = scoring.BotScore(1.5, -0.2, 0.5, scoring.Weights{BPS: 0.5, FPS: 0.3, SRS: 0.2})
	assert.LessOrEqual(t, got, 1.0)
	assert.GreaterOrEqual(t, got, 0.0)
}

func TestModelScoreBestOfN(t *testing.T) {
	assert.InDelta(t, 0.71, scoring.ModelScore([]float64{0.42, 0.71, 0.55}), 1e-9)
	assert.Zero(t, scoring.ModelScore(nil))
}

func TestVariance(t *testing.T) {
	rounds := []scoring.Round{
		{TotalScore: 2}, {TotalScore: 4}, {TotalScore: 4},
		{TotalScore: 4}, {TotalScore: 5}, {TotalScore: 5},
		{TotalScore: 7}, {TotalScore: 9},
	}
	assert.InDelta(t, 4.0, scoring.Variance(rounds), 1e-9)
	assert.Zero(t, scoring.Variance(rounds[:1]))
}

func TestComputeSummary(t *testing.T) {
	in := scoring.Input{
		PerBaseline: map[string][]scoring.Round{
			"rammer": {
				{TotalScore: 30, Rank: 1, Participants: 2},
				{TotalScore: 30, Rank: 1, Participants: 2},
				{TotalScore: 30, Rank: 2, Participants: 2},
				{TotalScore: 30, Rank: 1, Participants: 2},
			},
		},
		Melee: []scoring.Round{
			{TotalScore: 30, Rank: 2, Participants: 6},
			{TotalScore: 30, Rank: 6, Participants: 6},
		},
	}
	cal := scoring.Calibration{
		ScoreRange:    scoring.Range{Low: 0, High: 60},
		VarianceRange: scoring.Range{Low: 0, High: 100},
	}
	s := scoring.Compute(in, scoring.DefaultWeights, cal)

	require.Contains(t, s.PerBaseline, "rammer")
	b := s.PerBaseline["rammer"]
	assert.InDelta(t, 0.75, b.WinrateRound, 1e-9)
	assert.InDelta(t, 0.5, b.Normalized, 1e-9)
	assert.InDelta(t, 0.7*0.75+0.3*0.5, b.Score1v1, 1e-9)
	assert.InDelta(t, b.Score1v1, s.BPS, 1e-9)
	assert.InDelta(t, (0.8+0.0)/2, s.FPS, 1e-9)
	assert.Zero(t, s.CrashRate)
	// All total scores identical, so variance term is fully stable.
	assert.InDelta(t, 1.0, s.SRS, 1e-9)
	assert.InDelta(t, 0.5*s.BPS+0.3*s.FPS+0.2*s.SRS, s.BotScore, 1e-9)
}

func TestComputeDeterministic(t *testing.T) {
	in := scoring.Input{
		PerBaseline: map[string][]scoring.Round{
			"a": {{TotalScore: 10, Rank: 1, Participants: 2}},
			"b": {{TotalScore: 20, Rank: 2, Participants: 2}},
			"c": {{TotalScore: 15, Rank: 1, Participants: 2}},
		},
		Melee: []scoring.Round{{TotalScore: 12, Rank: 3, Participants: 4}},
	}
	cal := scoring.Calibration{ScoreRange: scoring.Range{High: 30}, VarianceRange: scoring.Range{High: 50}}
	first := scoring.Compute(in, scoring.DefaultWeights, cal)
	for i := 0; i < 50; i++ {
		require.Equal(t, first, scoring.Compute(in, scoring.DefaultWeights, cal))
	}
}
