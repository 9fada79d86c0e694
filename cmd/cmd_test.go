package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalnine/tankbench/internal/lifecycle"
)

func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()
	cfg := `benchmark_id: bench-test
versions:
  server: 0.30.0
attempt_policy:
  repairs: 1
  allow_repair: true
seeds: [11, 22]
`
	path := filepath.Join(dir, "benchmark.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestPrepareCreatesWorkspaceAndState(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)
	wsRoot := filepath.Join(dir, "workspaces")

	out, err := runCommand(t,
		"--config", cfgPath,
		"prepare",
		"--model", "model-a",
		"--variant", "model-a_v0",
		"--workspace-root", wsRoot,
		"--template", "",
	)
	if err != nil {
		t.Fatalf("prepare: %v\n%s", err, out)
	}

	root := filepath.Join(wsRoot, "model-a", "model-a_v0")
	v, err := lifecycle.LoadVariant(root)
	if err != nil {
		t.Fatalf("loading variant state: %v", err)
	}
	if v.State != lifecycle.StatePending {
		t.Errorf("state: got %s, want pending", v.State)
	}
	if v.RepairBudget != 1 {
		t.Errorf("repair budget: got %d, want 1", v.RepairBudget)
	}
	if v.ConfigHash == "" {
		t.Error("config hash not recorded")
	}
	for _, sub := range []string{"prompts", "bot", "results"} {
		if _, err := os.Stat(filepath.Join(root, sub)); err != nil {
			t.Errorf("missing workspace dir %s", sub)
		}
	}
}

func TestPrepareRequiresModelAndVariant(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)
	_, err := runCommand(t, "--config", cfgPath, "prepare")
	if err == nil {
		t.Fatal("expected an error without --model/--variant")
	}
}

func TestManifestCommandStructural(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)
	manifestPath := filepath.Join(dir, "manifest.yaml")
	data := `version: 3
melee_participants: 4
bots:
  - id: walls
    name: Walls
    path: sample_bots/walls
  - id: spinbot
    path: sample_bots/spinbot
`
	if err := os.WriteFile(manifestPath, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCommand(t, "--config", cfgPath, "manifest", "--file", manifestPath, "--structural")
	if err != nil {
		t.Fatalf("manifest: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Manifest v3") || !strings.Contains(out, "walls") {
		t.Errorf("unexpected output:\n%s", out)
	}

	// Without --structural the missing bot paths must fail validation.
	if _, err := runCommand(t, "--config", cfgPath, "manifest", "--file", manifestPath); err == nil {
		t.Error("expected path-existence failure")
	}
}

func TestReportCommandEmptyTree(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)
	out, err := runCommand(t, "--config", cfgPath, "report", dir, "--format", "markdown")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(out, "| Model |") {
		t.Errorf("markdown header missing:\n%s", out)
	}
}

func TestLoadChecksums(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "sums.json")
	os.WriteFile(jsonPath, []byte(`{"a.jar": "deadbeef"}`), 0o644)
	got, err := loadChecksums(jsonPath)
	if err != nil || got["a.jar"] != "deadbeef" {
		t.Errorf("json checksums: %v %v", got, err)
	}

	yamlPath := filepath.Join(dir, "sums.yaml")
	os.WriteFile(yamlPath, []byte("b.jar: cafef00d\n"), 0o644)
	got, err = loadChecksums(yamlPath)
	if err != nil || got["b.jar"] != "cafef00d" {
		t.Errorf("yaml checksums: %v %v", got, err)
	}

	if got, err := loadChecksums(""); err != nil || got != nil {
		t.Errorf("empty path: %v %v", got, err)
	}
}
