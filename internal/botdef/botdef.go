// Package botdef parses and validates the bot-config.json that every bot
// directory (generated or baseline) must carry.
package botdef

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const FileName = "bot-config.json"

type Config struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Authors      []string `json:"authors"`
	Description  string   `json:"description,omitempty"`
	Homepage     string   `json:"homepage,omitempty"`
	CountryCodes []string `json:"countryCodes,omitempty"`
	GameTypes    []string `json:"gameTypes"`
	Platform     string   `json:"platform,omitempty"`
	ProgLang     string   `json:"progLang,omitempty"`
}

// Load reads bot-config.json from a bot directory.
func Load(botDir string) (*Config, error) {
	path := filepath.Join(botDir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks the required fields and that every enabled game type is
// declared. Returns all problems, not just the first.
func (c *Config) Validate(requiredGameTypes []string) []string {
	var problems []string
	if c.Name == "" {
		problems = append(problems, "missing required field 'name'")
	}
	if c.Version == "" {
		problems = append(problems, "missing required field 'version'")
	}
	if len(c.Authors) == 0 {
		problems = append(problems, "missing required field 'authors'")
	}
	if len(c.GameTypes) == 0 {
		problems = append(problems, "missing required field 'gameTypes'")
	}
	for _, want := range requiredGameTypes {
		found := false
		for _, gt := range c.GameTypes {
			if gt == want {
				found = true
				break
			}
		}
		if !found {
			problems = append(problems, fmt.Sprintf("gameTypes must include %q", want))
		}
	}
	return problems
}

// BotName resolves the display name used in the engine lobby: the config
// name when present, otherwise the directory name.
func BotName(botDir string) string {
	if cfg, err := Load(botDir); err == nil && cfg.Name != "" {
		return cfg.Name
	}
	return filepath.Base(botDir)
}
