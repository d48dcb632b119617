//go:build !windows

package sandbox

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"syscall"
)

// HostRunner runs commands directly on the host without isolation.
type HostRunner struct {
	config Config
}

func NewHostRunner(cfg Config) *HostRunner {
	return &HostRunner{config: cfg}
}

func (r *HostRunner) Name() string { return string(ModeHost) }

// Run implements Runner. The command gets its own process group so a
// timeout kills everything it spawned.
func (r *HostRunner) Run(ctx context.Context, c Cmd) (Result, error) {
	cctx, cancel := context.WithTimeout(ctx, resolveTimeout(c.Timeout, r.config.CmdTimeout))
	defer cancel()

	cmd := exec.Command(c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	if err := cmd.Start(); err != nil {
		return Result{Code: 127, Stderr: err.Error()}, err
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-cctx.Done():
			if cmd.Process != nil {
				_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
			}
		case <-done:
		}
	}()

	waitErr := cmd.Wait()
	close(done)

	res := Result{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		TimedOut: cctx.Err() != nil,
	}
	if waitErr != nil {
		res.Code = 1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) && exitErr.ExitCode() >= 0 {
			res.Code = exitErr.ExitCode()
		}
		return res, waitErr
	}
	return res, nil
}
