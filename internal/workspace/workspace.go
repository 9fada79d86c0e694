// Package workspace manages the per-(model, variant) directory tree. Only
// bot/ is writable by the generation step; everything else belongs to the
// orchestrator.
package workspace

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Paths is the fixed workspace layout for one variant.
type Paths struct {
	Root      string
	Prompts   string
	Bot       string
	BotSrc    string
	Server    string
	Logs      string
	MatchLogs string
	Results   string
}

// Create builds a fresh workspace under base for (model, variant) and
// copies the starter bot template into bot/.
func Create(base, modelID, variantID, templateDir string) (*Paths, error) {
	p := layout(filepath.Join(base, modelID, variantID))
	for _, dir := range []string{p.Prompts, p.BotSrc, p.Server, p.MatchLogs, p.Results} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating workspace dir: %w", err)
		}
	}
	if templateDir != "" {
		if err := copyTree(templateDir, p.Bot); err != nil {
			return nil, fmt.Errorf("copying bot template: %w", err)
		}
	}
	return p, nil
}

// Open derives the layout for an existing workspace root.
func Open(root string) (*Paths, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace %s: %w", root, err)
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("workspace not found: %s", abs)
	}
	return layout(abs), nil
}

func layout(root string) *Paths {
	return &Paths{
		Root:      root,
		Prompts:   filepath.Join(root, "prompts"),
		Bot:       filepath.Join(root, "bot"),
		BotSrc:    filepath.Join(root, "bot", "src"),
		Server:    filepath.Join(root, "server"),
		Logs:      filepath.Join(root, "logs"),
		MatchLogs: filepath.Join(root, "logs", "matches"),
		Results:   filepath.Join(root, "results"),
	}
}

// WritePrompt records a prompt or response under prompts/<name>.txt.
func (p *Paths) WritePrompt(name, content string) (string, error) {
	target := filepath.Join(p.Prompts, name+".txt")
	if err := os.MkdirAll(p.Prompts, 0o755); err != nil {
		return "", err
	}
	return target, os.WriteFile(target, []byte(content), 0o644)
}

// WriteLog records a top-level log artifact (build.log, dryrun.log).
func (p *Paths) WriteLog(name, content string) (string, error) {
	target := filepath.Join(p.Logs, name+".log")
	if err := os.MkdirAll(p.Logs, 0o755); err != nil {
		return "", err
	}
	return target, os.WriteFile(target, []byte(content), 0o644)
}

// MatchLogPath names a per-match log file under logs/matches/.
func (p *Paths) MatchLogPath(name string) string {
	return filepath.Join(p.MatchLogs, name+".log")
}

// WriteResults persists a JSON payload under results/<name>.json.
func (p *Paths) WriteResults(name string, payload any) (string, error) {
	if err := os.MkdirAll(p.Results, 0o755); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling %s: %w", name, err)
	}
	target := filepath.Join(p.Results, name+".json")
	return target, os.WriteFile(target, data, 0o644)
}

// StageServerFiles copies the battle config and seed list into server/ so
// the workspace is self-contained and reproducible.
func (p *Paths) StageServerFiles(battleConfigPath, seedsPath string) error {
	if err := os.MkdirAll(p.Server, 0o755); err != nil {
		return err
	}
	for _, src := range []string{battleConfigPath, seedsPath} {
		if src == "" {
			continue
		}
		if err := copyFile(src, filepath.Join(p.Server, filepath.Base(src))); err != nil {
			return fmt.Errorf("staging %s: %w", src, err)
		}
	}
	return nil
}

func copyTree(src, dest string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
