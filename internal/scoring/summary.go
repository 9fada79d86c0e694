package scoring

// Input is the normalized match telemetry for one variant, grouped the
// way the score hierarchy consumes it.
type Input struct {
	// PerBaseline holds the evaluated bot's rounds from every 1v1 battle
	// against that baseline, across all seeds.
	PerBaseline map[string][]Round
	// Melee holds the evaluated bot's rounds from all melee battles.
	Melee []Round
}

// BaselineSummary is the per-baseline breakdown published next to BPS.
type BaselineSummary struct {
	WinrateRound  float64 `json:"winrate_round"`
	AvgTotalScore float64 `json:"avg_total_score"`
	Normalized    float64 `json:"normalized_avg_total_score"`
	Score1v1      float64 `json:"score_1v1"`
}

// Summary is the full published score hierarchy for one variant.
type Summary struct {
	BPS         float64                    `json:"bps"`
	FPS         float64                    `json:"fps"`
	SRS         float64                    `json:"srs"`
	BotScore    float64                    `json:"bot_score"`
	CrashRate   float64                    `json:"crash_rate"`
	Variance    float64                    `json:"score_variance"`
	PerBaseline map[string]BaselineSummary `json:"per_baseline"`
}

// Compute reduces normalized rounds to the published scores.
func Compute(in Input, w Weights, cal Calibration) Summary {
	alpha := w.Alpha
	if alpha == 0 {
		alpha = DefaultWeights.Alpha
	}

	perBaseline := make(map[string]BaselineSummary, len(in.PerBaseline))
	scores := make(map[string]float64, len(in.PerBaseline))
	for id, rounds := range in.PerBaseline {
		avg := MeanTotalScore(rounds)
		bs := BaselineSummary{
			WinrateRound:  WinrateRound(rounds),
			AvgTotalScore: avg,
			Normalized:    cal.ScoreRange.Normalize(avg),
		}
		bs.Score1v1 = Score1v1(bs.WinrateRound, bs.Normalized, alpha)
		perBaseline[id] = bs
		scores[id] = bs.Score1v1
	}

	var all []Round
	for _, rounds := range in.PerBaseline {
		all = append(all, rounds...)
	}
	all = append(all, in.Melee...)

	crashRate := CrashRate(all)
	variance := Variance(all)

	s := Summary{
		BPS:         BPS(scores),
		FPS:         FPS(in.Melee),
		CrashRate:   crashRate,
		Variance:    variance,
		PerBaseline: perBaseline,
	}
	s.SRS = SRS(crashRate, cal.VarianceRange.Normalize(variance))
	s.BotScore = BotScore(s.BPS, s.FPS, s.SRS, w)
	return s
}
