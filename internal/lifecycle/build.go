package lifecycle

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/signalnine/tankbench/internal/botdef"
	"github.com/signalnine/tankbench/internal/sandbox"
	"github.com/signalnine/tankbench/internal/workspace"
)

// BuildOutcome is the tagged result of the static validation phase. The
// diagnostic text is captured verbatim for the build log and the repair
// prompt.
type BuildOutcome struct {
	OK  bool
	Log string
}

// PyBuilder runs the static check over a generated Python bot: syntax
// compilation of every source file plus bot-config.json validation.
type PyBuilder struct {
	Python            string
	Timeout           time.Duration
	RequiredGameTypes []string
}

// Build compiles the bot sources and validates its config, writing
// logs/build.log either way.
func (b *PyBuilder) Build(ctx context.Context, ws *workspace.Paths) (BuildOutcome, error) {
	outcome := b.check(ctx, ws)
	if _, err := ws.WriteLog("build", outcome.Log); err != nil {
		return outcome, fmt.Errorf("writing build log: %w", err)
	}
	return outcome, nil
}

func (b *PyBuilder) check(ctx context.Context, ws *workspace.Paths) BuildOutcome {
	sources, err := pythonSources(ws.Bot)
	if err != nil {
		return BuildOutcome{Log: err.Error()}
	}
	if len(sources) == 0 {
		return BuildOutcome{Log: fmt.Sprintf("no python sources found under %s", ws.Bot)}
	}

	python := b.Python
	if python == "" {
		python = sandbox.PythonBin()
	}
	timeout := b.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append([]string{"-m", "py_compile"}, sources...)
	cmd := exec.CommandContext(runCtx, python, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	compileErr := cmd.Run()

	var log strings.Builder
	log.WriteString(out.String())
	if compileErr != nil {
		if runCtx.Err() != nil {
			fmt.Fprintf(&log, "\nbuild timed out after %s\n", timeout)
		}
		return BuildOutcome{Log: log.String()}
	}

	cfg, err := botdef.Load(ws.Bot)
	if err != nil {
		fmt.Fprintf(&log, "\n%v\n", err)
		return BuildOutcome{Log: log.String()}
	}
	if problems := cfg.Validate(b.RequiredGameTypes); len(problems) > 0 {
		for _, p := range problems {
			fmt.Fprintf(&log, "bot-config.json: %s\n", p)
		}
		return BuildOutcome{Log: log.String()}
	}

	if log.Len() == 0 {
		log.WriteString("build ok\n")
	}
	return BuildOutcome{OK: true, Log: log.String()}
}

func pythonSources(botDir string) ([]string, error) {
	var sources []string
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
		if filepath.Ext(path) == ".py" {
			sources = append(sources, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning bot sources: %w", err)
	}
	return sources, nil
}
