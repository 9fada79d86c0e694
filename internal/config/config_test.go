package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/signalnine/tankbench/internal/scoring"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "benchmark.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
benchmark_id: bench-1
versions:
  server: 0.30.0
  recorder: 0.30.0
seeds: [1, 2, 3]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Resources.MatchTimeoutSeconds != 300 {
		t.Errorf("match timeout default: got %d", cfg.Resources.MatchTimeoutSeconds)
	}
	if cfg.Resources.ConnectTimeoutSeconds != 10 {
		t.Errorf("connect timeout default: got %d", cfg.Resources.ConnectTimeoutSeconds)
	}
	if cfg.Resources.BotCPU != 1.0 || cfg.Resources.BotMemoryMB != 512 {
		t.Errorf("resource defaults: %+v", cfg.Resources)
	}
	if cfg.Scoring.Weights != scoring.DefaultWeights {
		t.Errorf("weights default: %+v", cfg.Scoring.Weights)
	}
	if cfg.Attempts.Repairs != 1 {
		t.Errorf("repair budget default: got %d, want 1", cfg.Attempts.Repairs)
	}
	if cfg.Results.Dir != "results" {
		t.Errorf("results dir default: %q", cfg.Results.Dir)
	}
	if cfg.Checksum == "" {
		t.Error("checksum not recorded")
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing benchmark id", "versions:\n  server: 0.30.0\n"},
		{"missing server version", "benchmark_id: b\n"},
		{"negative repairs", "benchmark_id: b\nversions:\n  server: 1\nattempt_policy:\n  repairs: -1\n"},
		{"sandbox without image", "benchmark_id: b\nversions:\n  server: 1\nsandbox:\n  enabled: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.content)
			if _, err := Load(path); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestAllowRepairDefaultsBudget(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
benchmark_id: b
versions:
  server: 0.30.0
attempt_policy:
  allow_repair: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Attempts.Repairs != 1 {
		t.Errorf("repairs: got %d, want 1", cfg.Attempts.Repairs)
	}
}

func TestAllowRepairFalseDisablesBudget(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
benchmark_id: b
versions:
  server: 0.30.0
attempt_policy:
  repairs: 2
  allow_repair: false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Attempts.Repairs != 0 {
		t.Errorf("repairs with repair disabled: got %d, want 0", cfg.Attempts.Repairs)
	}
}

func TestLoadSeedsFromFile(t *testing.T) {
	dir := t.TempDir()
	seedsPath := filepath.Join(dir, "seeds.txt")
	os.WriteFile(seedsPath, []byte("# spawn seeds\n11\n\n22\n33\n"), 0o644)
	path := writeConfig(t, dir, `
benchmark_id: b
versions:
  server: 0.30.0
battle_files:
  seeds_path: seeds.txt
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{11, 22, 33}
	if len(cfg.Seeds) != len(want) {
		t.Fatalf("seeds: got %v", cfg.Seeds)
	}
	for i := range want {
		if cfg.Seeds[i] != want[i] {
			t.Errorf("seed %d: got %d, want %d", i, cfg.Seeds[i], want[i])
		}
	}
}

func TestLoadSeedsRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeds.txt")
	os.WriteFile(path, []byte("42\nnot-a-number\n"), 0o644)
	if _, err := LoadSeeds(path); err == nil {
		t.Error("expected a parse error")
	}
}

func TestInlineSeedsWinOverFile(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "seeds.txt"), []byte("99\n"), 0o644)
	path := writeConfig(t, dir, `
benchmark_id: b
versions:
  server: 0.30.0
seeds: [7]
battle_files:
  seeds_path: seeds.txt
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Seeds) != 1 || cfg.Seeds[0] != 7 {
		t.Errorf("seeds: got %v, want [7]", cfg.Seeds)
	}
}

func TestLoadBattleConfigDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "battle-config.json")
	os.WriteFile(path, []byte(`{"battlefield": {"width": 1000}}`), 0o644)
	bc, err := LoadBattleConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if bc.Battlefield.Width != 1000 {
		t.Errorf("width: got %d", bc.Battlefield.Width)
	}
	if bc.Battlefield.Height != 600 {
		t.Errorf("height default: got %d", bc.Battlefield.Height)
	}
	if bc.NumberOfRounds != 10 || bc.TurnTimeout != 40 || bc.TurnsPerSecond != 60 {
		t.Errorf("defaults: %+v", bc)
	}
	if bc.GunCoolingRate != 0.1 || bc.MaxInactivityTurns != 450 || bc.ReadyTimeout != 10000 {
		t.Errorf("defaults: %+v", bc)
	}
}
