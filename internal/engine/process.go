// Package engine supervises the external Tank Royale stack: the server
// and recorder JVM processes and the controller websocket session.
package engine

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"al.essio.dev/pkg/shellescape"
)

// DefaultPort is the server's default websocket port.
const DefaultPort = 7654

// Process is a supervised engine-side process writing to its own log file.
// Started in its own process group so Stop can take down children too.
type Process struct {
	Name    string
	cmd     *exec.Cmd
	logFile *os.File
}

func startProcess(name string, argv []string, logPath string) (*Process, error) {
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("creating %s log: %w", name, err)
	}
	fmt.Fprintf(logFile, "# %s\n", shellescape.QuoteCommand(argv))

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, fmt.Errorf("starting %s: %w", name, err)
	}
	return &Process{Name: name, cmd: cmd, logFile: logFile}, nil
}

// Stop terminates the process group: SIGTERM, grace period, then SIGKILL.
// Safe to call multiple times and on already-exited processes.
func (p *Process) Stop() {
	if p == nil || p.cmd == nil || p.cmd.Process == nil {
		return
	}
	pgid := -p.cmd.Process.Pid
	syscall.Kill(pgid, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		p.cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		syscall.Kill(pgid, syscall.SIGKILL)
		<-done
	}
	if p.logFile != nil {
		p.logFile.Close()
		p.logFile = nil
	}
}

// ServerOpts configures the server launch.
type ServerOpts struct {
	Jar       string
	JavaBin   string
	Port      int
	TPS       int
	GameTypes []string
	Secret    string
	LogPath   string
	// EnableInitialPosition lets seeds fix spawn positions.
	EnableInitialPosition bool
}

// StartServer launches the server jar. Callers must WaitForPort before
// connecting bots.
func StartServer(opts ServerOpts) (*Process, error) {
	java := opts.JavaBin
	if java == "" {
		java = DefaultJavaBin()
	}
	argv := []string{
		java, "-jar", opts.Jar,
		fmt.Sprintf("--games=%s", strings.Join(opts.GameTypes, ",")),
		fmt.Sprintf("--port=%d", opts.Port),
		fmt.Sprintf("--tps=%d", opts.TPS),
	}
	if opts.Secret != "" {
		argv = append(argv, fmt.Sprintf("--controller-secrets=%s", opts.Secret))
	}
	if opts.EnableInitialPosition {
		argv = append(argv, "--enable-initial-position")
	}
	return startProcess("server", argv, opts.LogPath)
}

// RecorderOpts configures the recorder launch.
type RecorderOpts struct {
	Jar       string
	JavaBin   string
	ServerURL string
	Secret    string
	OutputDir string
	LogPath   string
}

// StartRecorder launches the battle recorder attached to a running server.
func StartRecorder(opts RecorderOpts) (*Process, error) {
	java := opts.JavaBin
	if java == "" {
		java = DefaultJavaBin()
	}
	argv := []string{java, "-jar", opts.Jar, fmt.Sprintf("--url=%s", opts.ServerURL)}
	if opts.Secret != "" {
		argv = append(argv, fmt.Sprintf("--secret=%s", opts.Secret))
	}
	if opts.OutputDir != "" {
		if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
			return nil, err
		}
		argv = append(argv, fmt.Sprintf("--dir=%s", opts.OutputDir))
	}
	return startProcess("recorder", argv, opts.LogPath)
}

// DefaultJavaBin resolves the JVM: JAVA_BIN env wins, then plain "java".
func DefaultJavaBin() string {
	if bin := os.Getenv("JAVA_BIN"); bin != "" {
		return bin
	}
	return "java"
}

// FindFreePort returns an available TCP port, preferring the given one.
func FindFreePort(preferred int) (int, error) {
	if preferred > 0 {
		if ln, err := net.Listen("tcp", fmt.Sprintf(":%d", preferred)); err == nil {
			ln.Close()
			return preferred, nil
		}
	}
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		return 0, fmt.Errorf("finding free port: %w", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port, nil
}

// WaitForPort polls until the port accepts connections or the timeout
// elapses.
func WaitForPort(port int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", fmt.Sprintf("localhost:%d", port), time.Second)
		if err == nil {
			conn.Close()
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("port %d not ready after %s", port, timeout)
}
