package execution

import (
	"context"
	"time"

	"github.com/ChamsBouzaiene/autobuild/internal/engine"
	"github.com/ChamsBouzaiene/autobuild/internal/sandbox"
	"github.com/ChamsBouzaiene/autobuild/internal/tools/filesystem"
	"github.com/ChamsBouzaiene/autobuild/internal/workspace"
)

const (
	installTimeout  = 5 * time.Minute
	installMaxLines = 60
)

type installArgs struct {
	ProjectPath string   `json:"projectPath"`
	Packages    []string `json:"packages"`
	Dev         bool     `json:"dev"`
}

const installSchema = `{
	"type": "object",
	"properties": {
		"projectPath": {"type": "string", "description": "Project root (set automatically)"},
		"packages": {
			"type": "array",
			"items": {"type": "string", "minLength": 1},
			"description": "Packages to add, e.g. [\"express@4\"]. Omit to install what the manifest already lists"
		},
		"dev": {"type": "boolean", "description": "Add as development dependencies where the package manager supports it"}
	}
}`

// installImpl runs the detected package manager. It is the only execution
// path with network access.
func installImpl(ctx context.Context, runner sandbox.Runner, root string, a installArgs) (string, error) {
	command, err := workspace.Detect(root).InstallCommand(a.Packages, a.Dev)
	if err != nil {
		return "", err
	}
	cmd := sandbox.Cmd{
		Dir:     root,
		Name:    command.Name,
		Args:    command.Args,
		Timeout: installTimeout,
		Network: true,
	}
	res, err := runner.Run(ctx, cmd)
	return marshalResult(newExecutionResult(cmd, res, err, installMaxLines))
}

// NewInstallDependenciesTool creates the install_dependencies tool.
func NewInstallDependenciesTool(root string, runner sandbox.Runner) engine.Tool {
	return engine.Tool{
		Name:        "install_dependencies",
		Description: "Installs project dependencies with the detected package manager (go, npm, pnpm, yarn, pip, cargo). Pass packages to add new ones, or omit them to install from the manifest.",
		SchemaJSON:  installSchema,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			a, err := engine.BindArgs[installArgs]("install_dependencies", installSchema, args)
			if err != nil {
				return "", err
			}
			return installImpl(ctx, runner, filesystem.Root(a.ProjectPath, root), a)
		},
		Metadata: engine.ToolMetadata{
			Category: "execution",
			Tags:     []string{"network", "side-effect"},
		},
	}
}
