package sandbox

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/client"
	"github.com/rs/zerolog"
)

// Docker runs bots in containers with CPU and memory limits. The bot
// directory is bind-mounted read-only; the server is reached through the
// host gateway so untrusted code never shares the engine's process tree.
type Docker struct {
	Image  string
	Logger zerolog.Logger
}

func (d *Docker) Launch(ctx context.Context, spec Spec) (Handle, error) {
	entry, err := EntryPoint(spec.Dir)
	if err != nil {
		return nil, err
	}
	rel := strings.TrimPrefix(strings.TrimPrefix(entry, spec.Dir), string(os.PathSeparator))

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}

	serverURL := strings.ReplaceAll(spec.ServerURL, "localhost", "host.docker.internal")
	serverURL = strings.ReplaceAll(serverURL, "127.0.0.1", "host.docker.internal")

	initTrue := true
	hostCfg := &container.HostConfig{
		Mounts: []mount.Mount{
			{Type: mount.TypeBind, Source: spec.Dir, Target: "/bot", ReadOnly: true},
		},
		Init:       &initTrue,
		ExtraHosts: []string{"host.docker.internal:host-gateway"},
	}
	if spec.CPU > 0 {
		hostCfg.NanoCPUs = int64(spec.CPU * 1e9)
	}
	if spec.MemoryMB > 0 {
		hostCfg.Memory = spec.MemoryMB * 1024 * 1024
	}

	containerCfg := &container.Config{
		Image:      d.Image,
		Cmd:        []string{"python", "/bot/" + rel},
		WorkingDir: "/bot",
		Env: []string{
			"SERVER_URL=" + serverURL,
			"SERVER_SECRET=" + spec.Secret,
		},
		Labels: map[string]string{"tankbench": "true", "tankbench.bot": spec.Name},
	}

	createResp, err := cli.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config:     containerCfg,
		HostConfig: hostCfg,
	})
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("creating bot container: %w", err)
	}
	h := &containerHandle{
		name:    spec.Name,
		cli:     cli,
		id:      createResp.ID,
		logPath: spec.LogPath,
		logger:  d.Logger,
	}
	if _, err := cli.ContainerStart(ctx, createResp.ID, client.ContainerStartOptions{}); err != nil {
		h.remove()
		return nil, fmt.Errorf("starting bot container: %w", err)
	}
	d.Logger.Debug().Str("bot", spec.Name).Str("container", createResp.ID[:12]).Msg("bot container started")
	return h, nil
}

type containerHandle struct {
	name    string
	cli     *client.Client
	id      string
	logPath string
	logger  zerolog.Logger
	oom     bool
	stopped bool
}

func (h *containerHandle) Name() string    { return h.name }
func (h *containerHandle) OOMKilled() bool { return h.oom }

func (h *containerHandle) Stop(ctx context.Context) error {
	if h.stopped {
		return nil
	}
	h.stopped = true

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grace := 5
	h.cli.ContainerStop(stopCtx, h.id, client.ContainerStopOptions{Timeout: &grace})

	if inspect, err := h.cli.ContainerInspect(stopCtx, h.id, client.ContainerInspectOptions{}); err == nil && inspect.Container.State != nil {
		h.oom = inspect.Container.State.OOMKilled
	}
	h.saveLogs(stopCtx)
	h.remove()
	return nil
}

func (h *containerHandle) saveLogs(ctx context.Context) {
	if h.logPath == "" {
		return
	}
	reader, err := h.cli.ContainerLogs(ctx, h.id, client.ContainerLogsOptions{
		ShowStdout: true, ShowStderr: true,
	})
	if err != nil {
		return
	}
	defer reader.Close()
	f, err := os.Create(h.logPath)
	if err != nil {
		return
	}
	defer f.Close()
	io.Copy(f, reader)
}

func (h *containerHandle) remove() {
	h.cli.ContainerRemove(context.Background(), h.id, client.ContainerRemoveOptions{Force: true})
	h.cli.Close()
}
