package sandbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ChamsBouzaiene/autobuild/internal/config"
	"github.com/rs/zerolog/log"
)

// Mode represents the sandbox execution mode.
type Mode string

const (
	// ModeDocker uses Docker containers for isolation.
	ModeDocker Mode = "docker"
	// ModeHost runs commands directly on the host (no isolation).
	ModeHost Mode = "host"
	// ModeAuto selects Docker if available, otherwise falls back to host.
	ModeAuto Mode = "auto"
)

// Config holds configuration for sandbox execution.
type Config struct {
	Mode        Mode
	DockerImage string        // overrides the per-project image
	CPU         string        // e.g. "2" or "1.5"
	Memory      string        // e.g. "1g", "512m"
	CmdTimeout  time.Duration // default command timeout
}

// ConfigFrom maps the sandbox section of the application config.
func ConfigFrom(c config.SandboxConfig) Config {
	mode := Mode(strings.ToLower(c.Mode))
	switch mode {
	case ModeDocker, ModeHost, ModeAuto:
	case "":
		mode = ModeAuto
	default:
		log.Warn().Str("mode", c.Mode).Msg("Unknown sandbox mode, defaulting to auto")
		mode = ModeAuto
	}
	return Config{
		Mode:        mode,
		DockerImage: c.Image,
		CPU:         c.CPU,
		Memory:      c.Memory,
		CmdTimeout:  c.CmdTimeout,
	}
}

// NewRunner picks a runner for cfg.Mode:
//   - docker: Docker, falling back to host with a warning when unreachable
//   - host: host execution, no isolation
//   - auto: Docker if the daemon answers, otherwise host
func NewRunner(ctx context.Context, cfg Config) Runner {
	switch cfg.Mode {
	case ModeHost:
		log.Warn().Msg("Using host executor (no sandboxing). Only use this for development.")
		return NewHostRunner(cfg)

	case ModeDocker, ModeAuto:
		docker, err := NewDockerRunner(ctx, cfg)
		if err == nil {
			return docker
		}
		if cfg.Mode == ModeDocker {
			log.Warn().Err(err).Msg("Docker mode requested but Docker is not available. Falling back to host executor.")
		} else {
			log.Warn().Err(err).Msg("Docker not available. Using host executor (no sandboxing).")
		}
		return NewHostRunner(cfg)

	default:
		log.Warn().Str("mode", string(cfg.Mode)).Msg("Unknown sandbox mode, defaulting to host executor.")
		return NewHostRunner(cfg)
	}
}

// NewStrictRunner builds exactly the requested runner without fallback.
func NewStrictRunner(ctx context.Context, cfg Config) (Runner, error) {
	switch cfg.Mode {
	case ModeDocker:
		return NewDockerRunner(ctx, cfg)
	case ModeHost:
		return NewHostRunner(cfg), nil
	default:
		return nil, fmt.Errorf("unknown runner mode: %s", cfg.Mode)
	}
}
