package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/signalnine/tankbench/internal/scoring"
	"gopkg.in/yaml.v3"
)

type Config struct {
	BenchmarkID string           `yaml:"benchmark_id"`
	Versions    Versions         `yaml:"versions"`
	Generation  GenerationLimits `yaml:"generation_limits"`
	Attempts    AttemptPolicy    `yaml:"attempt_policy"`
	BattleFiles BattleFiles      `yaml:"battle_files"`
	Resources   ResourceLimits   `yaml:"resource_limits"`
	Scoring     ScoringConfig    `yaml:"scoring"`
	Sandbox     Sandbox          `yaml:"sandbox"`
	Results     Results          `yaml:"results"`
	Seeds       []int            `yaml:"seeds"`

	// Checksum is the sha256 of the loaded config file. Recorded into every
	// MatchResult so stored results can be tied back to the exact ruleset.
	Checksum string `yaml:"-"`
}

// Versions pins the external Tank Royale stack.
type Versions struct {
	Server   string `yaml:"server"`
	Recorder string `yaml:"recorder"`
	GUI      string `yaml:"gui"`
	PyBotAPI string `yaml:"python_bot_api"`
}

type GenerationLimits struct {
	MaxInputTokens  int     `yaml:"max_input_tokens"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
	Temperature     float64 `yaml:"temperature"`
	TopP            float64 `yaml:"top_p"`
	MaxCalls        int     `yaml:"max_calls"`
}

// AttemptPolicy bounds corrective regeneration. Repair is on by default
// with a budget of one; an explicit allow_repair: false disables it.
type AttemptPolicy struct {
	Repairs     int   `yaml:"repairs"`
	AllowRepair *bool `yaml:"allow_repair"`
}

type BattleFiles struct {
	BattleConfigPath string `yaml:"battle_config_path"`
	SeedsPath        string `yaml:"seeds_path"`
}

type ResourceLimits struct {
	BotCPU                float64 `yaml:"bot_cpu"`
	BotMemoryMB           int64   `yaml:"bot_memory_mb"`
	MatchTimeoutSeconds   int     `yaml:"match_timeout_seconds"`
	ConnectTimeoutSeconds int     `yaml:"connect_timeout_seconds"`
	BuildTimeoutSeconds   int     `yaml:"build_timeout_seconds"`
}

type ScoringConfig struct {
	Weights     scoring.Weights     `yaml:"weights"`
	Calibration scoring.Calibration `yaml:"calibration"`
}

type Sandbox struct {
	Enabled bool   `yaml:"enabled"`
	Image   string `yaml:"image"`
}

type Results struct {
	Dir     string `yaml:"dir"`
	StoreDB string `yaml:"store_db"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	sum := sha256.Sum256(data)
	cfg.Checksum = hex.EncodeToString(sum[:])
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	if len(cfg.Seeds) == 0 && cfg.BattleFiles.SeedsPath != "" {
		seeds, err := LoadSeeds(resolve(filepath.Dir(path), cfg.BattleFiles.SeedsPath))
		if err != nil {
			return nil, err
		}
		cfg.Seeds = seeds
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.BenchmarkID == "" {
		return fmt.Errorf("benchmark_id is required")
	}
	if cfg.Versions.Server == "" {
		return fmt.Errorf("versions.server is required")
	}
	if cfg.Attempts.AllowRepair == nil {
		allow := true
		cfg.Attempts.AllowRepair = &allow
	}
	if cfg.Attempts.Repairs < 0 {
		return fmt.Errorf("attempt_policy.repairs must not be negative")
	}
	if !*cfg.Attempts.AllowRepair {
		cfg.Attempts.Repairs = 0
	} else if cfg.Attempts.Repairs == 0 {
		cfg.Attempts.Repairs = 1
	}
	if cfg.Resources.MatchTimeoutSeconds == 0 {
		cfg.Resources.MatchTimeoutSeconds = 300
	}
	if cfg.Resources.ConnectTimeoutSeconds == 0 {
		cfg.Resources.ConnectTimeoutSeconds = 10
	}
	if cfg.Resources.BuildTimeoutSeconds == 0 {
		cfg.Resources.BuildTimeoutSeconds = 120
	}
	if cfg.Resources.BotCPU == 0 {
		cfg.Resources.BotCPU = 1.0
	}
	if cfg.Resources.BotMemoryMB == 0 {
		cfg.Resources.BotMemoryMB = 512
	}
	if cfg.Scoring.Weights == (scoring.Weights{}) {
		cfg.Scoring.Weights = scoring.DefaultWeights
	}
	if cfg.Results.Dir == "" {
		cfg.Results.Dir = "results"
	}
	if cfg.Results.StoreDB == "" {
		cfg.Results.StoreDB = filepath.Join(cfg.Results.Dir, "results.db")
	}
	if cfg.Sandbox.Enabled && cfg.Sandbox.Image == "" {
		return fmt.Errorf("sandbox.image is required when sandbox is enabled")
	}
	return nil
}

// LoadSeeds reads an ordered seed list: one integer per line, blank lines
// and #-comments skipped.
func LoadSeeds(path string) ([]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seeds %s: %w", path, err)
	}
	var seeds []int
	for i, line := range strings.Split(string(data), "\n") {
		s := strings.TrimSpace(line)
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("seeds %s line %d: %w", path, i+1, err)
		}
		seeds = append(seeds, n)
	}
	return seeds, nil
}

func resolve(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
