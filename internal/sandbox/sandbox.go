package sandbox

import (
	"context"
	"strings"
	"time"
)

const defaultCmdTimeout = 2 * time.Minute

// Cmd describes one command execution.
type Cmd struct {
	Dir     string        // project directory on the host
	Name    string        // executable, e.g. "go"
	Args    []string      // e.g. []string{"test", "./..."}
	Timeout time.Duration // <=0 uses the runner default
	// Network allows outbound access. Only dependency installation needs it.
	Network bool
}

func (c Cmd) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result captures output of a command.
type Result struct {
	Stdout   string
	Stderr   string
	Code     int
	TimedOut bool
}

// Runner runs commands against a project directory. Implementations
// differ in how much of the host they expose. A non-zero exit is reported
// both in Result.Code and as a non-nil error.
type Runner interface {
	Run(ctx context.Context, cmd Cmd) (Result, error)
	// Name identifies the runner in logs ("docker" or "host").
	Name() string
}

func resolveTimeout(requested, configured time.Duration) time.Duration {
	if requested > 0 {
		return requested
	}
	if configured > 0 {
		return configured
	}
	return defaultCmdTimeout
}
