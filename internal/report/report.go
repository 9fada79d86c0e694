// Package report aggregates stored score records into per-model
// summaries.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/signalnine/tankbench/internal/results"
	"github.com/signalnine/tankbench/internal/scoring"
)

// ModelSummary is one model's row: best variant wins.
type ModelSummary struct {
	Model       string  `json:"model"`
	Variants    int     `json:"variants"`
	Scored      int     `json:"scored"`
	ModelScore  float64 `json:"model_score"`
	BestVariant string  `json:"best_variant"`
	BestBPS     float64 `json:"best_bps"`
	BestFPS     float64 `json:"best_fps"`
	BestSRS     float64 `json:"best_srs"`
}

// Generate walks a tree of workspaces, reads every metrics.json, and
// writes the per-model summary in the requested format.
func Generate(root, format string, w io.Writer) error {
	records, err := collectRecords(root)
	if err != nil {
		return err
	}
	summaries := aggregate(records)

	switch format {
	case "markdown":
		return writeMarkdown(summaries, w)
	case "json":
		return writeJSON(summaries, w)
	default:
		return writeTable(summaries, w)
	}
}

func collectRecords(root string) ([]results.ScoreRecord, error) {
	var records []results.ScoreRecord
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || info.Name() != "metrics.json" {
			return nil
		}
		m, err := results.ReadMetrics(path)
		if err != nil {
			// Partial runs leave unreadable files behind; skip them.
			return nil
		}
		records = append(records, m.Record)
		return nil
	})
	return records, err
}

// aggregate reduces variant records per model. ModelScore is the best
// BotScore across that model's variants; failed variants count toward
// the variant total with a zero score.
func aggregate(records []results.ScoreRecord) []ModelSummary {
	byModel := map[string][]results.ScoreRecord{}
	for _, r := range records {
		byModel[r.ModelID] = append(byModel[r.ModelID], r)
	}

	var summaries []ModelSummary
	for model, recs := range byModel {
		s := ModelSummary{Model: model, Variants: len(recs)}
		var botScores []float64
		best := recs[0]
		for _, r := range recs {
			botScores = append(botScores, r.Summary.BotScore)
			if r.Status == "scored" {
				s.Scored++
			}
			if r.Summary.BotScore > best.Summary.BotScore {
				best = r
			}
		}
		s.ModelScore = scoring.ModelScore(botScores)
		s.BestVariant = best.VariantID
		s.BestBPS = best.Summary.BPS
		s.BestFPS = best.Summary.FPS
		s.BestSRS = best.Summary.SRS
		summaries = append(summaries, s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].ModelScore != summaries[j].ModelScore {
			return summaries[i].ModelScore > summaries[j].ModelScore
		}
		return summaries[i].Model < summaries[j].Model
	})
	return summaries
}

func writeTable(summaries []ModelSummary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tVARIANTS\tSCORED\tMODEL SCORE\tBEST VARIANT\tBPS\tFPS\tSRS")
	fmt.Fprintln(tw, strings.Repeat("-", 80))
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.3f\t%s\t%.3f\t%.3f\t%.3f\n",
			s.Model, s.Variants, s.Scored, s.ModelScore, s.BestVariant, s.BestBPS, s.BestFPS, s.BestSRS)
	}
	return tw.Flush()
}

func writeMarkdown(summaries []ModelSummary, w io.Writer) error {
	fmt.Fprintln(w, "| Model | Variants | Scored | Model Score | Best Variant | BPS | FPS | SRS |")
	fmt.Fprintln(w, "|---|---|---|---|---|---|---|---|")
	for _, s := range summaries {
		fmt.Fprintf(w, "| %s | %d | %d | %.3f | %s | %.3f | %.3f | %.3f |\n",
			s.Model, s.Variants, s.Scored, s.ModelScore, s.BestVariant, s.BestBPS, s.BestFPS, s.BestSRS)
	}
	return nil
}

func writeJSON(summaries []ModelSummary, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summaries)
}
