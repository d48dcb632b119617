package execution

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChamsBouzaiene/autobuild/internal/sandbox"
)

// MockRunner records commands and answers them from RunFunc.
type MockRunner struct {
	RunFunc func(cmd sandbox.Cmd) (sandbox.Result, error)
	Calls   []sandbox.Cmd
}

func (m *MockRunner) Run(_ context.Context, cmd sandbox.Cmd) (sandbox.Result, error) {
	m.Calls = append(m.Calls, cmd)
	if m.RunFunc != nil {
		return m.RunFunc(cmd)
	}
	return sandbox.Result{}, nil
}

func (m *MockRunner) Name() string { return "mock" }

func decodeResult(t *testing.T, out string) ExecutionResult {
	t.Helper()
	var res ExecutionResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	return res
}

func TestRunCommandImpl(t *testing.T) {
	tests := []struct {
		name       string
		command    string
		result     sandbox.Result
		runErr     error
		wantCalled bool
		wantStatus string
		wantStdout string
		wantArgs   []string
	}{
		{
			name:       "allowed command",
			command:    "go version",
			result:     sandbox.Result{Stdout: "go version go1.24"},
			wantCalled: true,
			wantStatus: StatusOK,
			wantStdout: "go version go1.24",
			wantArgs:   []string{"version"},
		},
		{
			name:       "quoted arguments",
			command:    `git commit -m "initial commit"`,
			wantCalled: true,
			wantStatus: StatusOK,
			wantArgs:   []string{"commit", "-m", "initial commit"},
		},
		{
			name:       "disallowed command",
			command:    "forbidden_cmd --some-arg",
			wantStatus: StatusFailed,
		},
		{
			name:       "non-zero exit",
			command:    "go test ./...",
			result:     sandbox.Result{Stderr: "FAIL", Code: 1},
			runErr:     errors.New("exit status 1"),
			wantCalled: true,
			wantStatus: StatusFailed,
			wantArgs:   []string{"test", "./..."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &MockRunner{RunFunc: func(sandbox.Cmd) (sandbox.Result, error) { return tt.result, tt.runErr }}
			out, err := runCommandImpl(context.Background(), runner, "/repo", runCommandArgs{Command: tt.command})
			require.NoError(t, err)
			res := decodeResult(t, out)
			assert.Equal(t, tt.wantStatus, res.Status)

			if !tt.wantCalled {
				assert.Empty(t, runner.Calls)
				assert.Contains(t, res.Stderr, "not in allowlist")
				return
			}
			require.Len(t, runner.Calls, 1)
			assert.Equal(t, "/repo", runner.Calls[0].Dir)
			assert.False(t, runner.Calls[0].Network)
			assert.Equal(t, tt.wantArgs, runner.Calls[0].Args)
			assert.Equal(t, tt.wantStdout, res.Stdout)
		})
	}
}

func TestRunCommandImpl_Timeout(t *testing.T) {
	runner := &MockRunner{RunFunc: func(sandbox.Cmd) (sandbox.Result, error) {
		return sandbox.Result{TimedOut: true, Code: 1}, context.DeadlineExceeded
	}}
	out, err := runCommandImpl(context.Background(), runner, "/repo", runCommandArgs{Command: "make forever", TimeoutSeconds: 1})
	require.NoError(t, err)
	res := decodeResult(t, out)
	assert.True(t, res.TimedOut)
	assert.Equal(t, StatusFailed, res.Status)
	require.Len(t, runner.Calls, 1)
	assert.Equal(t, minRunCmdTimeout, runner.Calls[0].Timeout)
}

func TestRunCommandImpl_RunnerError(t *testing.T) {
	runner := &MockRunner{RunFunc: func(sandbox.Cmd) (sandbox.Result, error) {
		return sandbox.Result{}, errors.New("docker daemon not accessible")
	}}
	out, err := runCommandImpl(context.Background(), runner, "/repo", runCommandArgs{Command: "ls"})
	require.NoError(t, err)
	res := decodeResult(t, out)
	assert.Equal(t, -1, res.ExitCode)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Stderr, "docker daemon")
}

func TestParseArgs(t *testing.T) {
	assert.Equal(t, []string{"a", "b c", "d'e"}, parseArgs(`a "b c" "d'e"`))
	assert.Equal(t, []string{"x"}, parseArgs("  x  "))
	assert.Empty(t, parseArgs(""))
}

func TestTruncateOutput(t *testing.T) {
	out, truncated := truncateOutput("1\n2\n3\n4", 2)
	assert.Equal(t, "1\n2", out)
	assert.True(t, truncated)

	out, truncated = truncateOutput("short", 10)
	assert.Equal(t, "short", out)
	assert.False(t, truncated)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, defaultRunCmdTimeout, clampTimeout(0))
	assert.Equal(t, maxRunCmdTimeout, clampTimeout(10_000))
	assert.Equal(t, 30*time.Second, clampTimeout(30))
	assert.Equal(t, defaultRunCmdLines, clampLines(0))
	assert.Equal(t, minRunCmdLines, clampLines(1))
}

func goProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/x\n\ngo 1.24\n"), 0o644))
	return dir
}

func TestRunChecksImpl(t *testing.T) {
	dir := goProject(t)
	runner := &MockRunner{RunFunc: func(cmd sandbox.Cmd) (sandbox.Result, error) {
		if cmd.Name == "go" && cmd.Args[0] == "test" {
			return sandbox.Result{Stdout: "--- FAIL: TestX", Code: 1}, errors.New("exit status 1")
		}
		return sandbox.Result{}, nil
	}}

	out, err := runChecksImpl(context.Background(), runner, dir, runChecksArgs{})
	require.NoError(t, err)

	var resp runChecksResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "go", resp.ProjectType)
	assert.False(t, resp.Passed)
	require.Len(t, resp.Checks, 4)
	assert.Equal(t, StatusOK, resp.Checks[0].Result.Status)
	assert.Equal(t, StatusFailed, resp.Checks[3].Result.Status)

	for _, call := range runner.Calls {
		assert.False(t, call.Network, call.String())
	}
}

func TestRunChecksImpl_GofmtOutputFails(t *testing.T) {
	dir := goProject(t)
	runner := &MockRunner{RunFunc: func(cmd sandbox.Cmd) (sandbox.Result, error) {
		if cmd.Name == "gofmt" {
			return sandbox.Result{Stdout: "main.go\n"}, nil
		}
		return sandbox.Result{}, nil
	}}

	out, err := runChecksImpl(context.Background(), runner, dir, runChecksArgs{Checks: []string{"lint"}})
	require.NoError(t, err)
	var resp runChecksResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.False(t, resp.Passed)
	require.Len(t, resp.Checks, 1)
	assert.Equal(t, "lint", resp.Checks[0].Check)
}

func TestRunChecksImpl_SkipsInapplicable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"name":"x"}`), 0o644))

	runner := &MockRunner{}
	out, err := runChecksImpl(context.Background(), runner, dir, runChecksArgs{Checks: []string{"typecheck"}})
	require.NoError(t, err)
	var resp runChecksResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Checks, 1)
	assert.True(t, resp.Checks[0].Skipped)
	assert.True(t, resp.Passed)
	assert.Empty(t, runner.Calls)
}

func TestRunChecksImpl_UnknownProject(t *testing.T) {
	_, err := runChecksImpl(context.Background(), &MockRunner{}, t.TempDir(), runChecksArgs{})
	require.Error(t, err)
}

func TestInstallImpl(t *testing.T) {
	dir := goProject(t)
	runner := &MockRunner{}
	out, err := installImpl(context.Background(), runner, dir, installArgs{Packages: []string{"github.com/google/uuid"}})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, decodeResult(t, out).Status)

	require.Len(t, runner.Calls, 1)
	call := runner.Calls[0]
	assert.True(t, call.Network)
	assert.Equal(t, "go", call.Name)
	assert.Equal(t, []string{"get", "github.com/google/uuid"}, call.Args)
}

func TestInstallImpl_NoManifest(t *testing.T) {
	_, err := installImpl(context.Background(), &MockRunner{}, t.TempDir(), installArgs{})
	require.ErrorContains(t, err, "no manifest")
}

func TestTools_Bind(t *testing.T) {
	runner := &MockRunner{}
	tool := NewRunCommandTool("/repo", runner)
	_, err := tool.Fn(context.Background(), map[string]any{"command": 42})
	require.Error(t, err)

	out, err := tool.Fn(context.Background(), map[string]any{"command": "ls -la", "cwd": "/pinned"})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, decodeResult(t, out).Status)
	require.Len(t, runner.Calls, 1)
	assert.Equal(t, "/pinned", runner.Calls[0].Dir)
}
