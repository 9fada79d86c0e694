// Package manifest loads the versioned baseline bot roster. The manifest
// file is never exposed to the model under test.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Bot is one opponent entry. Immutable once loaded.
type Bot struct {
	ID        string   `yaml:"id"`
	Name      string   `yaml:"name"`
	Path      string   `yaml:"path"`
	GameTypes []string `yaml:"game_types"`
	Role      string   `yaml:"role"`
}

func (b Bot) Supports(gameType string) bool {
	for _, gt := range b.GameTypes {
		if gt == gameType {
			return true
		}
	}
	return false
}

// Manifest is the versioned roster plus tournament shape. The bot set must
// not change within a benchmark version.
type Manifest struct {
	Version           int   `yaml:"version"`
	MeleeParticipants int   `yaml:"melee_participants"`
	Bots              []Bot `yaml:"bots"`
}

// Error reports a structural problem with the manifest, independent of
// whether bot files exist on disk.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("manifest: %s: %s", e.Field, e.Reason)
}

// Options control manifest resolution.
type Options struct {
	// Root anchors relative bot paths. Defaults to the parent of the
	// manifest's directory (repo root when the manifest lives under
	// baselines/).
	Root string
	// CheckPaths additionally requires every resolved bot path to exist.
	// Structural-only validation leaves it false so manifests can be
	// inspected without the bot artifacts present.
	CheckPaths bool
}

// Load reads and validates the manifest at path.
func Load(path string, opts Options) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	var raw struct {
		Version           *int  `yaml:"version"`
		MeleeParticipants int   `yaml:"melee_participants"`
		Bots              []Bot `yaml:"bots"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}

	if raw.Version == nil {
		return nil, &Error{Field: "version", Reason: "missing"}
	}
	if len(raw.Bots) == 0 {
		return nil, &Error{Field: "bots", Reason: "empty"}
	}

	root := opts.Root
	if root == "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolving manifest path: %w", err)
		}
		root = filepath.Dir(filepath.Dir(abs))
	}

	m := &Manifest{
		Version:           *raw.Version,
		MeleeParticipants: raw.MeleeParticipants,
	}
	seen := make(map[string]bool, len(raw.Bots))
	for i, b := range raw.Bots {
		if b.ID == "" {
			return nil, &Error{Field: fmt.Sprintf("bots[%d].id", i), Reason: "missing"}
		}
		if b.Path == "" {
			return nil, &Error{Field: fmt.Sprintf("bots[%d].path", i), Reason: "missing"}
		}
		if seen[b.ID] {
			return nil, &Error{Field: fmt.Sprintf("bots[%d].id", i), Reason: fmt.Sprintf("duplicate id %q", b.ID)}
		}
		seen[b.ID] = true

		if b.Name == "" {
			b.Name = b.ID
		}
		if len(b.GameTypes) == 0 {
			b.GameTypes = []string{"classic", "1v1"}
		}
		if !filepath.IsAbs(b.Path) {
			b.Path = filepath.Join(root, b.Path)
		}
		if opts.CheckPaths {
			if _, err := os.Stat(b.Path); err != nil {
				return nil, fmt.Errorf("baseline %q path missing: %s", b.ID, b.Path)
			}
		}
		m.Bots = append(m.Bots, b)
	}

	if m.MeleeParticipants == 0 {
		m.MeleeParticipants = len(m.Bots)
		if m.MeleeParticipants < 2 {
			m.MeleeParticipants = 2
		}
	}
	return m, nil
}
