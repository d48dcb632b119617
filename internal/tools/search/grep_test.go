package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

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

func TestGrepImpl(t *testing.T) {
	tests := []struct {
		name          string
		args          grepArgs
		stdout        string
		code          int
		runErr        error
		wantResults   int
		wantTruncated bool
		wantErr       bool
	}{
		{
			name: "basic match",
			args: grepArgs{Pattern: "func main"},
			stdout: `{"type":"match","data":{"path":{"text":"main.go"},"lines":{"text":"func main() {"},"line_number":10,"submatches":[{"match":{"text":"func main"},"start":0,"end":9}]}}
{"type":"match","data":{"path":{"text":"./cmd/app.go"},"lines":{"text":"func main() {"},"line_number":5,"submatches":[]}}`,
			wantResults: 2,
		},
		{
			name:        "no matches",
			args:        grepArgs{Pattern: "foobar"},
			code:        1,
			runErr:      errors.New("exit status 1"),
			wantResults: 0,
		},
		{
			name: "ignore non-match lines",
			args: grepArgs{Pattern: "foo"},
			stdout: `{"type":"begin","data":{"path":{"text":"main.go"}}}
{"type":"match","data":{"path":{"text":"main.go"},"lines":{"text":"foo"},"line_number":1,"submatches":[]}}
{"type":"end","data":{"path":{"text":"main.go"},"binary_offset":null}}`,
			wantResults: 1,
		},
		{
			name:          "truncated results",
			args:          grepArgs{Pattern: "common"},
			stdout:        generateMockOutput(150),
			wantResults:   maxGrepResults,
			wantTruncated: true,
		},
		{
			name:    "rg error",
			args:    grepArgs{Pattern: "invalid("},
			code:    2,
			runErr:  errors.New("exit status 2"),
			wantErr: true,
		},
		{
			name:    "path outside root",
			args:    grepArgs{Pattern: "x", Path: "../other"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &MockRunner{RunFunc: func(sandbox.Cmd) (sandbox.Result, error) {
				return sandbox.Result{Stdout: tt.stdout, Code: tt.code}, tt.runErr
			}}

			out, err := grepImpl(context.Background(), runner, "/repo", tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			require.Len(t, runner.Calls, 1)
			call := runner.Calls[0]
			assert.Equal(t, "rg", call.Name)
			assert.Equal(t, "/repo", call.Dir)
			assert.False(t, call.Network)
			assert.Contains(t, call.Args, "--json")
			assert.Contains(t, strings.Join(call.Args, " "), "-e "+tt.args.Pattern)

			var resp grepResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.Len(t, resp.Results, tt.wantResults)
			assert.Equal(t, tt.wantResults, resp.Count)
			assert.Equal(t, tt.wantTruncated, resp.Truncated)
		})
	}
}

func TestGrepImpl_Flags(t *testing.T) {
	runner := &MockRunner{}
	_, err := grepImpl(context.Background(), runner, "/repo", grepArgs{
		Pattern:         "TODO",
		Path:            "internal",
		Globs:           "*.go, !*_test.go",
		CaseInsensitive: true,
	})
	require.NoError(t, err)
	require.Len(t, runner.Calls, 1)
	assert.Equal(t, []string{"--json", "-i", "-g", "*.go", "-g", "!*_test.go", "-e", "TODO", "internal"}, runner.Calls[0].Args)
}

func TestGrepImpl_FallsBackWithoutRipgrep(t *testing.T) {
	runner := &MockRunner{RunFunc: func(cmd sandbox.Cmd) (sandbox.Result, error) {
		if cmd.Name == "rg" {
			return sandbox.Result{Code: 127}, errors.New(`exec: "rg": executable file not found in $PATH`)
		}
		return sandbox.Result{Stdout: "./main.go:3:func main() {\nbinary file matches\n"}, nil
	}}

	out, err := grepImpl(context.Background(), runner, "/repo", grepArgs{Pattern: "main", Globs: "*.go,!vendor"})
	require.NoError(t, err)
	require.Len(t, runner.Calls, 2)
	assert.Equal(t, "grep", runner.Calls[1].Name)
	assert.Contains(t, runner.Calls[1].Args, "--include=*.go")
	assert.Contains(t, runner.Calls[1].Args, "--exclude=vendor")

	var resp grepResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, GrepResult{Path: "main.go", Line: 3, Content: "func main() {"}, resp.Results[0])
}

func generateMockOutput(count int) string {
	var sb strings.Builder
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf(`{"type":"match","data":{"path":{"text":"file%d.go"},"lines":{"text":"match %d"},"line_number":%d,"submatches":[]}}`+"\n", i, i, i))
	}
	return sb.String()
}
