package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChamsBouzaiene/autobuild/internal/engine"
	"github.com/ChamsBouzaiene/autobuild/internal/indexer"
	"github.com/ChamsBouzaiene/autobuild/internal/sandbox"
)

type nopRunner struct{}

func (nopRunner) Run(context.Context, sandbox.Cmd) (sandbox.Result, error) {
	return sandbox.Result{}, nil
}
func (nopRunner) Name() string { return "nop" }

func TestNewToolRegistry(t *testing.T) {
	dir := t.TempDir()
	idx, err := indexer.NewCodeIndex(dir)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	reg, err := NewToolRegistry(Deps{WorkDir: dir, Runner: nopRunner{}, Index: idx, DatabaseURL: "file:app.db"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"read_file", "list_files", "write_file", "edit_file", "create_directory", "delete_file",
		"grep", "search_code",
		"run_command", "run_checks", "install_dependencies",
		"db_query", "db_migrate",
		"think", engine.FinishToolName,
	}, reg.Names())

	for _, schema := range reg.Schemas() {
		assert.NotEmpty(t, schema.Description, schema.Name)
	}
}

func TestNewToolRegistry_Optional(t *testing.T) {
	reg, err := NewToolRegistry(Deps{WorkDir: t.TempDir(), Runner: nopRunner{}})
	require.NoError(t, err)
	assert.NotContains(t, reg.Names(), "search_code")
	assert.NotContains(t, reg.Names(), "db_query")
	assert.Contains(t, reg.Names(), engine.FinishToolName)
}

func TestNewToolRegistry_Validation(t *testing.T) {
	_, err := NewToolRegistry(Deps{Runner: nopRunner{}})
	require.Error(t, err)
	_, err = NewToolRegistry(Deps{WorkDir: "/tmp"})
	require.Error(t, err)
}

func TestToolRegistry_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	reg, err := NewToolRegistry(Deps{WorkDir: dir, Runner: nopRunner{}})
	require.NoError(t, err)

	out := reg.Execute(context.Background(), engine.ToolCall{
		ID:   "1",
		Name: "write_file",
		Args: map[string]any{"path": "hello.txt", "content": "hi\n", "cwd": dir},
	})
	assert.Contains(t, out, `"status":"created"`)

	out = reg.Execute(context.Background(), engine.ToolCall{
		ID:   "2",
		Name: "read_file",
		Args: map[string]any{"path": "../outside"},
	})
	assert.Contains(t, out, "Error: ")
}
