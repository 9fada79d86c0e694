package generate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MalformedError means the response did not follow the file-output
// contract: no recognizable files, or files outside the writable tree.
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string {
	return "malformed generator output: " + e.Reason
}

// ExtractFiles parses the file-output contract out of a model response.
// Each file is a `FILE: <relative path>` line followed by a fenced code
// block; everything else (prose, reasoning) is ignored.
func ExtractFiles(response string) (map[string]string, error) {
	files := map[string]string{}
	lines := strings.Split(response, "\n")
	for i := 0; i < len(lines); i++ {
		name, ok := strings.CutPrefix(strings.TrimSpace(lines[i]), "FILE:")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, &MalformedError{Reason: "FILE: line with no path"}
		}
		if !safeRelPath(name) {
			return nil, &MalformedError{Reason: fmt.Sprintf("path %q escapes the bot directory", name)}
		}

		// Skip to the opening fence.
		j := i + 1
		for j < len(lines) && !strings.HasPrefix(strings.TrimSpace(lines[j]), "```") {
			if strings.TrimSpace(lines[j]) != "" {
				break
			}
			j++
		}
		if j >= len(lines) || !strings.HasPrefix(strings.TrimSpace(lines[j]), "```") {
			return nil, &MalformedError{Reason: fmt.Sprintf("no code block for %s", name)}
		}
		var body []string
		j++
		for ; j < len(lines); j++ {
			if strings.TrimSpace(lines[j]) == "```" {
				break
			}
			body = append(body, lines[j])
		}
		if j >= len(lines) {
			return nil, &MalformedError{Reason: fmt.Sprintf("unterminated code block for %s", name)}
		}
		files[name] = strings.Join(body, "\n") + "\n"
		i = j
	}
	if len(files) == 0 {
		return nil, &MalformedError{Reason: "no FILE blocks found"}
	}
	return files, nil
}

// RequireBotFiles checks the contract's minimum: an entrypoint source
// file and the bot configuration.
func RequireBotFiles(files map[string]string) error {
	if _, ok := files["main.py"]; !ok {
		if _, ok := files["src/main.py"]; !ok {
			return &MalformedError{Reason: "missing entrypoint main.py"}
		}
	}
	if _, ok := files["bot-config.json"]; !ok {
		return &MalformedError{Reason: "missing bot-config.json"}
	}
	return nil
}

// WriteFiles materializes extracted files under botDir, the only tree
// the generation step may touch.
func WriteFiles(botDir string, files map[string]string) error {
	for name, content := range files {
		if !safeRelPath(name) {
			return &MalformedError{Reason: fmt.Sprintf("path %q escapes the bot directory", name)}
		}
		target := filepath.Join(botDir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("creating dir for %s: %w", name, err)
		}
		if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}
	return nil
}

// ReadBotFiles snapshots the current bot sources for a repair prompt.
func ReadBotFiles(botDir string) (map[string]string, error) {
	files := map[string]string{}
	err := filepath.Walk(botDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == "__pycache__" {
				return filepath.SkipDir
			}
			return nil
		}
		switch filepath.Ext(path) {
		case ".py", ".json", ".txt", ".md":
		default:
			return nil
		}
		rel, err := filepath.Rel(botDir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading bot files: %w", err)
	}
	return files, nil
}

// RepairPrompt builds the one-shot repair context: the current files
// plus the exact failure text, and the same output contract.
func RepairPrompt(phase string, files map[string]string, failure string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your previous bot submission failed during %s.\n\n", phase)
	b.WriteString("Failure output:\n```\n")
	b.WriteString(strings.TrimSpace(failure))
	b.WriteString("\n```\n\nCurrent files:\n\n")

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "FILE: %s\n```\n%s```\n\n", name, ensureTrailingNewline(files[name]))
	}
	b.WriteString("Fix the problem and return every file that should change, " +
		"using the same FILE: <path> + fenced code block format. " +
		"Do not change bot-config.json's name.\n")
	return b.String()
}

func ensureTrailingNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

func safeRelPath(name string) bool {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return false
	}
	clean := filepath.ToSlash(filepath.Clean(name))
	return clean != ".." && !strings.HasPrefix(clean, "../")
}
