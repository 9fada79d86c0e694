//go:build integration

package main

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/signalnine/tankbench/cmd"
	"github.com/signalnine/tankbench/internal/lifecycle"
)

// requirePython skips when no interpreter is available; the build step
// shells out to python -m py_compile.
func requirePython(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
}

func writeFixtureConfig(t *testing.T, dir string) string {
	t.Helper()
	cfg := `benchmark_id: bench-integration
versions:
  server: 0.30.0
attempt_policy:
  repairs: 1
  allow_repair: true
seeds: [11]
`
	path := filepath.Join(dir, "benchmark.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := cmd.NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// TestPrepareAndBuild walks a workspace through prepare and build with
// a real python compile, the slice of the lifecycle that needs no
// engine stack.
func TestPrepareAndBuild(t *testing.T) {
	requirePython(t)
	dir := t.TempDir()
	cfgPath := writeFixtureConfig(t, dir)
	wsRoot := filepath.Join(dir, "workspaces")

	if out, err := run(t,
		"--config", cfgPath,
		"prepare", "--model", "test-model", "--variant", "test-model_v0",
		"--workspace-root", wsRoot, "--template", "",
	); err != nil {
		t.Fatalf("prepare: %v\n%s", err, out)
	}
	ws := filepath.Join(wsRoot, "test-model", "test-model_v0")

	botConfig := `{"name": "IntegrationBot", "version": "1.0", "authors": ["it"], "gameTypes": ["classic", "1v1"]}`
	if err := os.WriteFile(filepath.Join(ws, "bot", "main.py"), []byte("print('ready')\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ws, "bot", "bot-config.json"), []byte(botConfig), 0o644); err != nil {
		t.Fatal(err)
	}

	if out, err := run(t, "--config", cfgPath, "build", ws); err != nil {
		t.Fatalf("build: %v\n%s", err, out)
	}
	if _, err := os.Stat(filepath.Join(ws, "logs", "build.log")); err != nil {
		t.Error("build.log not written")
	}

	// A syntax error must fail the build and keep the diagnostic.
	if err := os.WriteFile(filepath.Join(ws, "bot", "main.py"), []byte("def broken(:\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "--config", cfgPath, "build", ws); err == nil {
		t.Fatal("expected build failure for broken source")
	}
	log, err := os.ReadFile(filepath.Join(ws, "logs", "build.log"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(log, []byte("SyntaxError")) {
		t.Errorf("diagnostic missing from build log:\n%s", log)
	}

	v, err := lifecycle.LoadVariant(ws)
	if err != nil {
		t.Fatal(err)
	}
	if v.State != lifecycle.StatePending {
		t.Errorf("standalone build must not advance lifecycle state, got %s", v.State)
	}
}
