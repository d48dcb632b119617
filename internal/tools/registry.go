package tools

import (
	"fmt"

	"github.com/ChamsBouzaiene/autobuild/internal/engine"
	"github.com/ChamsBouzaiene/autobuild/internal/sandbox"
	"github.com/ChamsBouzaiene/autobuild/internal/tools/database"
	"github.com/ChamsBouzaiene/autobuild/internal/tools/execution"
	"github.com/ChamsBouzaiene/autobuild/internal/tools/filesystem"
	"github.com/ChamsBouzaiene/autobuild/internal/tools/reasoning"
	"github.com/ChamsBouzaiene/autobuild/internal/tools/search"
)

// Deps is what the tool set needs from the session.
type Deps struct {
	// WorkDir is the project root every tool is confined to.
	WorkDir string
	// Runner executes grep, run_command, run_checks and install_dependencies.
	Runner sandbox.Runner
	// Index backs search_code. Nil leaves the tool out.
	Index search.Index
	// DatabaseURL enables db_query and db_migrate when set.
	DatabaseURL string
}

// NewToolRegistry builds the full tool set for one session.
func NewToolRegistry(deps Deps) (engine.ToolRegistry, error) {
	if deps.WorkDir == "" {
		return nil, fmt.Errorf("tools: work dir is required")
	}
	if deps.Runner == nil {
		return nil, fmt.Errorf("tools: command runner is required")
	}
	root := deps.WorkDir
	reg := make(engine.ToolRegistry)

	reg.Register(filesystem.NewReadFileTool(root))
	reg.Register(filesystem.NewListFilesTool(root))
	reg.Register(filesystem.NewWriteFileTool(root))
	reg.Register(filesystem.NewEditFileTool(root))
	reg.Register(filesystem.NewCreateDirectoryTool(root))
	reg.Register(filesystem.NewDeleteFileTool(root))

	reg.Register(search.NewGrepTool(root, deps.Runner))
	if deps.Index != nil {
		reg.Register(search.NewSearchCodeTool(deps.Index))
	}

	reg.Register(execution.NewRunCommandTool(root, deps.Runner))
	reg.Register(execution.NewRunChecksTool(root, deps.Runner))
	reg.Register(execution.NewInstallDependenciesTool(root, deps.Runner))

	if deps.DatabaseURL != "" {
		reg.Register(database.NewDBQueryTool(root, deps.DatabaseURL))
		reg.Register(database.NewDBMigrateTool(root, deps.DatabaseURL))
	}

	reg.Register(reasoning.NewThinkTool())
	reg.Register(reasoning.NewFinishTool())

	return reg, nil
}
