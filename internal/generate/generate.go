// Package generate is the boundary to the model that writes bot code.
// The model is reached through an external command; this package owns
// the prompt plumbing and the file-output contract its responses must
// follow.
package generate

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"al.essio.dev/pkg/shellescape"
	"github.com/rs/zerolog"

	"github.com/signalnine/tankbench/internal/config"
)

// Request is one generation call.
type Request struct {
	Prompt string
	Limits config.GenerationLimits
}

// Generator produces a raw model response for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Command shells out to a generator program: prompt on stdin, response
// on stdout. Generation limits are passed through the environment so
// any model wrapper can honor them without argument parsing.
type Command struct {
	Argv    []string
	Timeout time.Duration
	Logger  zerolog.Logger
}

func (c *Command) Generate(ctx context.Context, req Request) (string, error) {
	if len(c.Argv) == 0 {
		return "", fmt.Errorf("no generator command configured")
	}
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 10 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.Argv[0], c.Argv[1:]...)
	cmd.Stdin = bytes.NewReader([]byte(req.Prompt))
	cmd.Env = append(os.Environ(),
		"GEN_MAX_INPUT_TOKENS="+strconv.Itoa(req.Limits.MaxInputTokens),
		"GEN_MAX_OUTPUT_TOKENS="+strconv.Itoa(req.Limits.MaxOutputTokens),
		"GEN_TEMPERATURE="+strconv.FormatFloat(req.Limits.Temperature, 'f', -1, 64),
		"GEN_TOP_P="+strconv.FormatFloat(req.Limits.TopP, 'f', -1, 64),
	)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut

	c.Logger.Debug().Str("cmd", shellescape.QuoteCommand(c.Argv)).Msg("invoking generator")
	if err := cmd.Run(); err != nil {
		if runCtx.Err() != nil {
			return "", fmt.Errorf("generator timed out after %s", timeout)
		}
		return "", fmt.Errorf("generator failed: %w: %s", err, errOut.String())
	}
	return out.String(), nil
}
