package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"al.essio.dev/pkg/shellescape"
	"github.com/rs/zerolog"
)

// Exec runs bots as host processes under the configured python
// interpreter. Each bot gets its own process group so teardown reaches
// any children it spawns.
type Exec struct {
	Logger zerolog.Logger
}

func (e *Exec) Launch(ctx context.Context, spec Spec) (Handle, error) {
	entry, err := EntryPoint(spec.Dir)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(PythonBin(), entry)
	cmd.Dir = filepath.Dir(entry)
	cmd.Env = append(os.Environ(),
		"SERVER_URL="+spec.ServerURL,
		"SERVER_SECRET="+spec.Secret,
	)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var logFile *os.File
	if spec.LogPath != "" {
		logFile, err = os.Create(spec.LogPath)
		if err != nil {
			return nil, fmt.Errorf("creating bot log %s: %w", spec.LogPath, err)
		}
		fmt.Fprintf(logFile, "$ %s\n", shellescape.QuoteCommand(cmd.Args))
		cmd.Stdout = logFile
		cmd.Stderr = logFile
	}

	if err := cmd.Start(); err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return nil, fmt.Errorf("starting bot %s: %w", spec.Name, err)
	}
	e.Logger.Debug().Str("bot", spec.Name).Int("pid", cmd.Process.Pid).Msg("bot started")
	return &procHandle{name: spec.Name, cmd: cmd, logFile: logFile}, nil
}

type procHandle struct {
	name    string
	cmd     *exec.Cmd
	logFile *os.File
	stopped bool
}

func (h *procHandle) Name() string    { return h.name }
func (h *procHandle) OOMKilled() bool { return false }

func (h *procHandle) Stop(ctx context.Context) error {
	if h.stopped {
		return nil
	}
	h.stopped = true
	defer func() {
		if h.logFile != nil {
			h.logFile.Close()
		}
	}()

	if h.cmd.Process == nil {
		return nil
	}
	pgid := -h.cmd.Process.Pid
	syscall.Kill(pgid, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		h.cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(5 * time.Second):
	case <-ctx.Done():
	}
	syscall.Kill(pgid, syscall.SIGKILL)
	<-done
	return nil
}
