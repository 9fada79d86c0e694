package scoring

// Pure scoring math. No I/O; everything needed to reproduce a score is
// passed in, so two runs over the same match results yield identical output.

// Round is the slice of a per-round metrics record that scoring consumes.
type Round struct {
	TotalScore   float64
	Rank         int
	Participants int
	Crashed      bool
}

// Weights are the versioned scoring weights for one benchmark.
type Weights struct {
	BPS   float64 `yaml:"bps" json:"bps"`
	FPS   float64 `yaml:"fps" json:"fps"`
	SRS   float64 `yaml:"srs" json:"srs"`
	Alpha float64 `yaml:"alpha" json:"alpha"`
}

var DefaultWeights = Weights{
	BPS:   0.5,
	FPS:   0.3,
	SRS:   0.2,
	Alpha: 0.7,
}

// Range rescales a raw value into [0,1]. A degenerate range (High <= Low)
// normalizes everything to 0 rather than dividing by zero.
type Range struct {
	Low  float64 `yaml:"low" json:"low"`
	High float64 `yaml:"high" json:"high"`
}

func (r Range) Normalize(v float64) float64 {
	if r.High <= r.Low {
		return 0
	}
	return Clamp01((v - r.Low) / (r.High - r.Low))
}

// Calibration holds the fixed reference ranges used to normalize raw
// total scores and per-round variance. Derived from baseline-vs-baseline
// sweeps and checked in with the benchmark config; never recomputed from
// the run under evaluation.
type Calibration struct {
	ScoreRange    Range `yaml:"score_range" json:"score_range"`
	VarianceRange Range `yaml:"variance_range" json:"variance_range"`
}

func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Score1v1 combines round winrate with the normalized mean total score.
func Score1v1(winrateRound, normalizedAvgScore, alpha float64) float64 {
	return Clamp01(alpha*winrateRound + (1-alpha)*normalizedAvgScore)
}

// RankScore maps a melee placement onto [0,1]: 1.0 for first place,
// 0.0 for last.
func RankScore(rank, participants int) float64 {
	if participants <= 1 {
		return 1.0
	}
	return Clamp01(float64(participants-rank) / float64(participants-1))
}

// WinrateRound is the fraction of rounds where the bot placed first.
func WinrateRound(rounds []Round) float64 {
	if len(rounds) == 0 {
		return 0
	}
	wins := 0
	for _, r := range rounds {
		if r.Rank == 1 {
			wins++
		}
	}
	return float64(wins) / float64(len(rounds))
}

// MeanTotalScore averages the raw per-round total score.
func MeanTotalScore(rounds []Round) float64 {
	if len(rounds) == 0 {
		return 0
	}
	var sum float64
	for _, r := range rounds {
		sum += r.TotalScore
	}
	return sum / float64(len(rounds))
}

// CrashRate is crashed rounds over total rounds.
func CrashRate(rounds []Round) float64 {
	if len(rounds) == 0 {
		return 0
	}
	crashed := 0
	for _, r := range rounds {
		if r.Crashed {
			crashed++
		}
	}
	return float64(crashed) / float64(len(rounds))
}

// Variance is the population variance of per-round total scores.
func Variance(rounds []Round) float64 {
	if len(rounds) <= 1 {
		return 0
	}
	mean := MeanTotalScore(rounds)
	var sum float64
	for _, r := range rounds {
		d := r.TotalScore - mean
		sum += d * d
	}
	return sum / float64(len(rounds))
}

// BPS averages score_1v1 across baselines.
func BPS(perBaseline map[string]float64) float64 {
	if len(perBaseline) == 0 {
		return 0
	}
	var sum float64
	for _, s := range perBaseline {
		sum += s
	}
	return Clamp01(sum / float64(len(perBaseline)))
}

// FPS averages rank scores over all melee rounds.
func FPS(rounds []Round) float64 {
	if len(rounds) == 0 {
		return 0
	}
	var sum float64
	for _, r := range rounds {
		sum += RankScore(r.Rank, r.Participants)
	}
	return Clamp01(sum / float64(len(rounds)))
}

// SRS blends crash rate and normalized score variance equally.
func SRS(crashRate, normalizedVariance float64) float64 {
	return Clamp01(0.5*(1-Clamp01(crashRate)) + 0.5*(1-Clamp01(normalizedVariance)))
}

// BotScore is the weighted blend of the three components. Weight sets
// that sum to zero fall back to the defaults, matching config omission.
func BotScore(bps, fps, srs float64, w Weights) float64 {
	if w.BPS == 0 && w.FPS == 0 && w.SRS == 0 {
		w = DefaultWeights
	}
	total := w.BPS + w.FPS + w.SRS
	if total == 0 {
		return 0
	}
	return Clamp01((Clamp01(bps)*w.BPS + Clamp01(fps)*w.FPS + Clamp01(srs)*w.SRS) / total)
}

// ModelScore is best-of-N over a model's variant scores.
func ModelScore(botScores []float64) float64 {
	best := 0.0
	for _, s := range botScores {
		if s > best {
			best = s
		}
	}
	return Clamp01(best)
}
