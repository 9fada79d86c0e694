package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalnine/tankbench/internal/results"
	"github.com/signalnine/tankbench/internal/scoring"
)

func writeRecord(t *testing.T, root, model, variant, status string, botScore float64) {
	t.Helper()
	dir := filepath.Join(root, model, variant, "results")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	m := results.Metrics{
		Record: results.ScoreRecord{
			BenchmarkID: "bench",
			ModelID:     model,
			VariantID:   variant,
			Status:      status,
			Summary:     scoring.Summary{BotScore: botScore, BPS: botScore, FPS: botScore / 2, SRS: 0.9},
		},
	}
	data, _ := json.Marshal(m)
	if err := os.WriteFile(filepath.Join(dir, "metrics.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestGenerateTable(t *testing.T) {
	root := t.TempDir()
	writeRecord(t, root, "model-a", "model-a_v0", "scored", 0.62)
	writeRecord(t, root, "model-a", "model-a_v1", "scored", 0.71)
	writeRecord(t, root, "model-b", "model-b_v0", "failed", 0)

	var buf bytes.Buffer
	if err := Generate(root, "table", &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "model-a") || !strings.Contains(out, "0.710") {
		t.Errorf("table output missing best score:\n%s", out)
	}
	if !strings.Contains(out, "model-a_v1") {
		t.Errorf("best variant not reported:\n%s", out)
	}
}

func TestAggregateModelScoreIsBestVariant(t *testing.T) {
	root := t.TempDir()
	writeRecord(t, root, "model-a", "model-a_v0", "scored", 0.40)
	writeRecord(t, root, "model-a", "model-a_v1", "failed", 0)
	writeRecord(t, root, "model-a", "model-a_v2", "scored", 0.55)

	records, err := collectRecords(root)
	if err != nil {
		t.Fatal(err)
	}
	summaries := aggregate(records)
	if len(summaries) != 1 {
		t.Fatalf("got %d summaries", len(summaries))
	}
	s := summaries[0]
	if s.ModelScore != 0.55 {
		t.Errorf("model score: got %v, want 0.55", s.ModelScore)
	}
	if s.Variants != 3 || s.Scored != 2 {
		t.Errorf("variants/scored: got %d/%d, want 3/2", s.Variants, s.Scored)
	}
	if s.BestVariant != "model-a_v2" {
		t.Errorf("best variant: got %s", s.BestVariant)
	}
}

func TestGenerateJSONAndMarkdown(t *testing.T) {
	root := t.TempDir()
	writeRecord(t, root, "model-a", "model-a_v0", "scored", 0.5)

	var md bytes.Buffer
	if err := Generate(root, "markdown", &md); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(md.String(), "| Model |") {
		t.Errorf("markdown header missing:\n%s", md.String())
	}

	var js bytes.Buffer
	if err := Generate(root, "json", &js); err != nil {
		t.Fatal(err)
	}
	var parsed []ModelSummary
	if err := json.Unmarshal(js.Bytes(), &parsed); err != nil {
		t.Fatalf("invalid json output: %v", err)
	}
	if len(parsed) != 1 || parsed[0].Model != "model-a" {
		t.Errorf("json output: %+v", parsed)
	}
}

func TestGenerateSortsByScoreDescending(t *testing.T) {
	root := t.TempDir()
	writeRecord(t, root, "model-low", "v0", "scored", 0.2)
	writeRecord(t, root, "model-high", "v0", "scored", 0.8)

	records, _ := collectRecords(root)
	summaries := aggregate(records)
	if summaries[0].Model != "model-high" {
		t.Errorf("expected model-high first, got %s", summaries[0].Model)
	}
}
