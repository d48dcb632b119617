package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ChamsBouzaiene/autobuild/internal/workspace"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-units"
	"github.com/rs/zerolog/log"
)

const (
	defaultMemoryBytes = 1 << 30
	defaultCPUs        = 2.0
	containerWorkdir   = "/workspace"
)

// DockerRunner runs each command in a fresh, locked-down container with the
// project bind-mounted at /workspace.
type DockerRunner struct {
	client *client.Client
	config Config
}

// NewDockerRunner connects to the daemon from the environment and pings it.
func NewDockerRunner(ctx context.Context, cfg Config) (*DockerRunner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(pingCtx); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("docker daemon not accessible: %w", err)
	}

	return &DockerRunner{client: cli, config: cfg}, nil
}

func (r *DockerRunner) Name() string { return string(ModeDocker) }

// Run implements Runner.
func (r *DockerRunner) Run(ctx context.Context, cmd Cmd) (Result, error) {
	timeout := resolveTimeout(cmd.Timeout, r.config.CmdTimeout)

	img := GetDockerImage(workspace.DetectProjectType(cmd.Dir), r.config)
	if err := r.ensureImage(ctx, img); err != nil {
		return Result{}, fmt.Errorf("failed to ensure image %s: %w", img, err)
	}

	absDir, err := filepath.Abs(cmd.Dir)
	if err != nil {
		return Result{}, fmt.Errorf("failed to get absolute path: %w", err)
	}

	containerConfig := &container.Config{
		Image:           img,
		Cmd:             append([]string{cmd.Name}, cmd.Args...),
		WorkingDir:      containerWorkdir,
		User:            "1000:1000",
		Env:             []string{"HOME=/tmp"},
		NetworkDisabled: !cmd.Network,
	}
	hostConfig := &container.HostConfig{
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: absDir,
			Target: containerWorkdir,
		}},
		Resources: container.Resources{
			Memory:   parseMemory(r.config.Memory),
			NanoCPUs: parseNanoCPUs(r.config.CPU),
			Ulimits:  []*units.Ulimit{{Name: "nofile", Soft: 1024, Hard: 1024}},
		},
		SecurityOpt:    []string{"no-new-privileges"},
		CapDrop:        []string{"ALL"},
		ReadonlyRootfs: true,
		Tmpfs:          map[string]string{"/tmp": "rw,nosuid,size=256m"},
	}

	created, err := r.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, "")
	if err != nil {
		return Result{}, fmt.Errorf("failed to create container: %w", err)
	}
	id := created.ID
	// Logs are read after exit, so the container is removed here rather
	// than with AutoRemove.
	defer func() {
		rmCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = r.client.ContainerRemove(rmCtx, id, container.RemoveOptions{Force: true})
	}()

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := r.client.ContainerStart(execCtx, id, container.StartOptions{}); err != nil {
		return Result{}, fmt.Errorf("failed to start container: %w", err)
	}

	statusCh, errCh := r.client.ContainerWait(execCtx, id, container.WaitConditionNotRunning)
	var exitCode int64
	select {
	case <-execCtx.Done():
		killCtx, killCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer killCancel()
		_ = r.client.ContainerKill(killCtx, id, "SIGKILL")
		log.Warn().Str("cmd", cmd.String()).Dur("timeout", timeout).Msg("Container command timed out")
		return Result{Code: 1, TimedOut: true, Stderr: "Command execution timed out"}, execCtx.Err()
	case err := <-errCh:
		if err != nil {
			return Result{}, fmt.Errorf("container wait error: %w", err)
		}
	case status := <-statusCh:
		exitCode = status.StatusCode
	}

	logs, err := r.client.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return Result{}, fmt.Errorf("failed to read container logs: %w", err)
	}
	defer logs.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil {
		return Result{}, fmt.Errorf("failed to demultiplex container logs: %w", err)
	}

	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
		Code:   int(exitCode),
	}
	if exitCode != 0 {
		return res, fmt.Errorf("exit status %d", exitCode)
	}
	return res, nil
}

// ensureImage pulls imageName unless it is already present.
func (r *DockerRunner) ensureImage(ctx context.Context, imageName string) error {
	if _, err := r.client.ImageInspect(ctx, imageName); err == nil {
		return nil
	}

	log.Info().Str("image", imageName).Msg("Pulling sandbox image")
	reader, err := r.client.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()

	// The pull only completes once its progress stream is drained.
	_, _ = io.Copy(io.Discard, reader)
	return nil
}

// parseMemory accepts docker-style sizes ("1g", "512m"). Invalid or empty
// input falls back to 1GiB.
func parseMemory(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultMemoryBytes
	}
	n, err := units.RAMInBytes(s)
	if err != nil || n <= 0 {
		log.Warn().Str("memory", s).Msg("Invalid sandbox memory limit, using 1g")
		return defaultMemoryBytes
	}
	return n
}

// parseNanoCPUs converts a CPU count ("2", "1.5") to nano-CPUs.
func parseNanoCPUs(s string) int64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v <= 0 {
		v = defaultCPUs
	}
	return int64(v * 1e9)
}
