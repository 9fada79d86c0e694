// Package artifact saves finished workspaces as immutable bundles with a
// metadata record tying the bot back to the exact config, template and
// seeds it was evaluated under.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Metadata is written as metadata.json next to the bundled files.
type Metadata struct {
	ModelID             string            `json:"model_id"`
	VariantID           string            `json:"variant_id"`
	BenchmarkConfigPath string            `json:"benchmark_config_path"`
	BenchmarkConfigSHA  string            `json:"benchmark_config_sha256"`
	TemplateSHA         string            `json:"template_sha256"`
	Seeds               []int             `json:"seeds"`
	Files               map[string]string `json:"files"`
}

// SaveOpts names everything a bundle needs.
type SaveOpts struct {
	Workspace   string
	DestRoot    string
	ModelID     string
	VariantID   string
	ConfigPath  string
	TemplateDir string
	Seeds       []int
	Force       bool
}

// Save copies the curated workspace files into DestRoot/<model>/<variant>/
// and writes metadata.json. Refuses to overwrite unless Force is set.
func Save(opts SaveOpts) (string, error) {
	ws, err := filepath.Abs(opts.Workspace)
	if err != nil {
		return "", err
	}
	botDir := filepath.Join(ws, "bot")
	promptsDir := filepath.Join(ws, "prompts")
	required := []string{
		filepath.Join(botDir, "src"),
		filepath.Join(botDir, "bot-config.json"),
		filepath.Join(promptsDir, "initial_prompt.txt"),
		filepath.Join(promptsDir, "initial_response.txt"),
	}
	var missing []string
	for _, p := range required {
		if _, err := os.Stat(p); err != nil {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("missing required workspace files: %s", strings.Join(missing, ", "))
	}

	configSHA, err := HashFile(opts.ConfigPath)
	if err != nil {
		return "", fmt.Errorf("hashing benchmark config: %w", err)
	}
	templateSHA, err := HashDir(opts.TemplateDir)
	if err != nil {
		return "", fmt.Errorf("hashing template: %w", err)
	}

	dest := filepath.Join(opts.DestRoot, opts.ModelID, opts.VariantID)
	if _, err := os.Stat(dest); err == nil {
		if !opts.Force {
			return "", fmt.Errorf("destination already exists: %s", dest)
		}
		if err := os.RemoveAll(dest); err != nil {
			return "", err
		}
	}

	for _, sub := range []string{"bot", "prompts"} {
		if err := copyCurated(filepath.Join(ws, sub), filepath.Join(dest, sub)); err != nil {
			return "", fmt.Errorf("copying %s: %w", sub, err)
		}
	}

	files, err := collectHashes(dest)
	if err != nil {
		return "", err
	}
	meta := Metadata{
		ModelID:             opts.ModelID,
		VariantID:           opts.VariantID,
		BenchmarkConfigPath: opts.ConfigPath,
		BenchmarkConfigSHA:  configSHA,
		TemplateSHA:         templateSHA,
		Seeds:               opts.Seeds,
		Files:               files,
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dest, "metadata.json"), data, 0o644); err != nil {
		return "", err
	}
	return dest, nil
}

// HashFile returns the hex sha256 of one file.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashDir hashes relative file names plus contents in sorted order, so
// equal trees hash equal regardless of filesystem iteration order.
func HashDir(root string) (string, error) {
	files, err := listFiles(root)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	for _, path := range files {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return "", err
		}
		h.Write([]byte(filepath.ToSlash(rel)))
		h.Write([]byte{0})
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		if _, err := io.Copy(h, f); err != nil {
			f.Close()
			return "", err
		}
		f.Close()
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func collectHashes(root string) (map[string]string, error) {
	files, err := listFiles(root)
	if err != nil {
		return nil, err
	}
	hashes := make(map[string]string, len(files))
	for _, path := range files {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil, err
		}
		sum, err := HashFile(path)
		if err != nil {
			return nil, err
		}
		hashes[filepath.ToSlash(rel)] = sum
	}
	return hashes, nil
}

func listFiles(root string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == "__pycache__" {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(path)
		if ext == ".pyc" || ext == ".pyo" {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func copyCurated(src, dest string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == "__pycache__" {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(path)
		if ext == ".pyc" || ext == ".pyo" {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, info.Mode().Perm())
	})
}
