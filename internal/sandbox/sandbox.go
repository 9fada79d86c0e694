// Package sandbox launches bot processes for the duration of a battle,
// either directly on the host or inside a resource-limited container.
package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Spec describes one bot to launch. The bot stays up until Stop; the
// match runner owns its lifetime.
type Spec struct {
	Name      string
	Dir       string // bot root containing main.py or src/main.py
	ServerURL string
	Secret    string
	CPU       float64 // cores, 0 = unlimited
	MemoryMB  int64   // 0 = unlimited
	LogPath   string
}

// Handle is a running bot.
type Handle interface {
	Name() string
	// Stop tears the bot down. Safe to call more than once.
	Stop(ctx context.Context) error
	// OOMKilled reports whether the bot was killed for exceeding its
	// memory limit. Only meaningful after Stop.
	OOMKilled() bool
}

// Launcher starts bots. Implementations: Exec (host python) and Docker.
type Launcher interface {
	Launch(ctx context.Context, spec Spec) (Handle, error)
}

// EntryPoint resolves the bot's python entry script. Bots ship either a
// flat main.py or a src/main.py layout.
func EntryPoint(botDir string) (string, error) {
	for _, rel := range []string{"main.py", filepath.Join("src", "main.py")} {
		p := filepath.Join(botDir, rel)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("no main.py or src/main.py under %s", botDir)
}

// PythonBin returns the interpreter to use for host launches.
func PythonBin() string {
	if bin := os.Getenv("PYTHON_BIN"); bin != "" {
		return bin
	}
	return "python3"
}
