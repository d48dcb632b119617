package execution

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ChamsBouzaiene/autobuild/internal/sandbox"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// ExecutionResult is the JSON shape every execution tool returns.
type ExecutionResult struct {
	Cmd             string `json:"cmd"`
	ExitCode        int    `json:"exit_code"`
	Stdout          string `json:"stdout,omitempty"`
	Stderr          string `json:"stderr,omitempty"`
	StdoutTruncated bool   `json:"stdout_truncated,omitempty"`
	StderrTruncated bool   `json:"stderr_truncated,omitempty"`
	TimedOut        bool   `json:"timed_out,omitempty"`
	Status          string `json:"status"`
}

// newExecutionResult folds a runner outcome into a result. Runner errors
// that are not a plain non-zero exit (the binary is missing, the daemon
// went away) land in Stderr.
func newExecutionResult(cmd sandbox.Cmd, res sandbox.Result, err error, maxLines int) ExecutionResult {
	stdout, stdoutTruncated := truncateOutput(res.Stdout, maxLines)
	stderr, stderrTruncated := truncateOutput(res.Stderr, maxLines)

	out := ExecutionResult{
		Cmd:             cmd.String(),
		ExitCode:        res.Code,
		Stdout:          stdout,
		Stderr:          stderr,
		StdoutTruncated: stdoutTruncated,
		StderrTruncated: stderrTruncated,
		Status:          StatusOK,
	}
	if res.TimedOut || errors.Is(err, context.DeadlineExceeded) {
		out.TimedOut = true
		out.Status = StatusFailed
	}
	if err != nil && res.Code == 0 && !out.TimedOut {
		out.ExitCode = -1
		if out.Stderr == "" {
			out.Stderr = err.Error()
		}
	}
	if out.ExitCode != 0 {
		out.Status = StatusFailed
	}
	return out
}

func marshalResult(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
