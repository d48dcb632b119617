package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/ChamsBouzaiene/autobuild/internal/engine"
	"github.com/ChamsBouzaiene/autobuild/internal/sandbox"
	"github.com/ChamsBouzaiene/autobuild/internal/tools/filesystem"
	"github.com/ChamsBouzaiene/autobuild/internal/workspace"
)

const checkTimeout = 5 * time.Minute

type runChecksArgs struct {
	ProjectPath string   `json:"projectPath"`
	Checks      []string `json:"checks"`
}

const runChecksSchema = `{
	"type": "object",
	"properties": {
		"projectPath": {"type": "string", "description": "Project root (set automatically)"},
		"checks": {
			"type": "array",
			"items": {"type": "string", "enum": ["build", "typecheck", "lint", "test"]},
			"description": "Checks to run, in order (default: all that apply to the project)"
		}
	}
}`

// CheckResult is the outcome of one check. Skipped checks do not apply to
// the detected project type.
type CheckResult struct {
	Check   string           `json:"check"`
	Skipped bool             `json:"skipped,omitempty"`
	Result  *ExecutionResult `json:"result,omitempty"`
}

type runChecksResponse struct {
	ProjectType string        `json:"project_type"`
	Passed      bool          `json:"passed"`
	Checks      []CheckResult `json:"checks"`
}

// runChecksImpl runs every requested check even after a failure, so one
// call reports the full state of the project.
func runChecksImpl(ctx context.Context, runner sandbox.Runner, root string, a runChecksArgs) (string, error) {
	project := workspace.Detect(root)
	if project.Type == workspace.ProjectTypeUnknown {
		return "", fmt.Errorf("cannot run checks: no recognised project in %s", root)
	}

	checks := workspace.AllChecks
	if len(a.Checks) > 0 {
		checks = make([]workspace.Check, len(a.Checks))
		for i, c := range a.Checks {
			checks[i] = workspace.Check(c)
		}
	}

	resp := runChecksResponse{ProjectType: string(project.Type), Passed: true}
	for _, check := range checks {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		command, ok := project.CheckCommand(check)
		if !ok {
			resp.Checks = append(resp.Checks, CheckResult{Check: string(check), Skipped: true})
			continue
		}
		cmd := sandbox.Cmd{Dir: root, Name: command.Name, Args: command.Args, Timeout: checkTimeout}
		res, err := runner.Run(ctx, cmd)
		result := newExecutionResult(cmd, res, err, defaultRunCmdLines)
		// gofmt -l reports unformatted files on stdout and still exits 0.
		if check == workspace.CheckLint && command.Name == "gofmt" && result.Stdout != "" {
			result.Status = StatusFailed
		}
		if result.Status != StatusOK {
			resp.Passed = false
		}
		resp.Checks = append(resp.Checks, CheckResult{Check: string(check), Result: &result})
	}
	return marshalResult(resp)
}

// NewRunChecksTool creates the run_checks tool.
func NewRunChecksTool(root string, runner sandbox.Runner) engine.Tool {
	return engine.Tool{
		Name:        "run_checks",
		Description: "Builds, type-checks, lints and tests the project using the commands for its detected type (Go, Node, Python, Rust). Run this before finishing.",
		SchemaJSON:  runChecksSchema,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			a, err := engine.BindArgs[runChecksArgs]("run_checks", runChecksSchema, args)
			if err != nil {
				return "", err
			}
			return runChecksImpl(ctx, runner, filesystem.Root(a.ProjectPath, root), a)
		},
		Metadata: engine.ToolMetadata{
			Category: "execution",
			Tags:     []string{"read-only", "verification"},
		},
	}
}
