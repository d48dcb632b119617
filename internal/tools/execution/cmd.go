package execution

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ChamsBouzaiene/autobuild/internal/engine"
	"github.com/ChamsBouzaiene/autobuild/internal/sandbox"
	"github.com/ChamsBouzaiene/autobuild/internal/tools/filesystem"
)

const (
	defaultRunCmdTimeout = 60 * time.Second
	maxRunCmdTimeout     = 5 * time.Minute
	minRunCmdTimeout     = 5 * time.Second
	defaultRunCmdLines   = 40
	minRunCmdLines       = 5
	maxRunCmdLines       = 200
	maxRunCmdChars       = 4000
)

// allowedPrograms maps each program run_command accepts to its group.
// Network tools are absent on purpose; install_dependencies covers fetches.
var allowedPrograms = func() map[string]string {
	groups := map[string][]string{
		"build":   {"go", "gofmt", "goimports", "npm", "npx", "yarn", "pnpm", "bun", "python", "python3", "pip", "pip3", "pytest", "uv", "cargo", "rustc", "rustfmt", "make", "cmake", "gradle", "mvn", "node", "tsc"},
		"lint":    {"eslint", "prettier", "biome", "ruff", "black", "isort", "mypy", "flake8", "golangci-lint", "shellcheck"},
		"files":   {"mkdir", "touch", "rm", "cp", "mv", "cat", "head", "tail", "ls", "find", "tree", "wc", "grep", "awk", "sed", "sort", "uniq", "diff", "tar", "zip", "unzip", "gzip", "gunzip"},
		"vcs":     {"git"},
		"shell":   {"sh", "bash"},
		"utility": {"echo", "printf", "date", "which", "env", "jq", "yq", "sqlite3"},
	}
	m := make(map[string]string)
	for group, names := range groups {
		for _, n := range names {
			m[n] = group
		}
	}
	return m
}()

func allowedList() string {
	names := make([]string, 0, len(allowedPrograms))
	for n := range allowedPrograms {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

type runCommandArgs struct {
	Command        string `json:"command"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	MaxOutputLines int    `json:"max_output_lines"`
	Cwd            string `json:"cwd"`
}

const runCommandSchema = `{
	"type": "object",
	"properties": {
		"command": {"type": "string", "minLength": 1, "description": "Full command line, e.g. \"go test ./internal/...\". The first word must be an allowed program"},
		"timeout_seconds": {"type": "integer", "minimum": 5, "maximum": 300, "description": "Maximum seconds to allow the command to run (default: 60)"},
		"max_output_lines": {"type": "integer", "minimum": 5, "maximum": 200, "description": "Maximum stdout/stderr lines to return (default: 40)"},
		"cwd": {"type": "string", "description": "Project root (set automatically)"}
	},
	"required": ["command"]
}`

// runCommandImpl runs an allowlisted command line. Refusals and failing
// commands are results, not errors, so the model sees the output.
func runCommandImpl(ctx context.Context, runner sandbox.Runner, root string, a runCommandArgs) (string, error) {
	argv := parseArgs(a.Command)
	if len(argv) == 0 {
		return "", fmt.Errorf("command is empty")
	}
	name, args := argv[0], argv[1:]
	if _, ok := allowedPrograms[name]; !ok {
		return marshalResult(ExecutionResult{
			Cmd:      a.Command,
			ExitCode: 1,
			Stderr:   fmt.Sprintf("%q is not in allowlist. Allowed programs: %s", name, allowedList()),
			Status:   StatusFailed,
		})
	}

	cmd := sandbox.Cmd{Dir: root, Name: name, Args: args, Timeout: clampTimeout(a.TimeoutSeconds)}
	res, err := runner.Run(ctx, cmd)
	return marshalResult(newExecutionResult(cmd, res, err, clampLines(a.MaxOutputLines)))
}

// parseArgs splits a command line on blanks. Single or double quotes
// group words; the other quote kind is literal inside them. There is no
// shell expansion.
func parseArgs(line string) []string {
	var (
		args  []string
		word  strings.Builder
		quote rune
		open  bool // a word has started, even if it is empty ("")
	)
	for _, r := range line {
		switch {
		case quote != 0 && r == quote:
			quote = 0
		case quote != 0:
			word.WriteRune(r)
		case r == '"' || r == '\'':
			quote, open = r, true
		case r == ' ' || r == '\t':
			if open {
				args = append(args, word.String())
				word.Reset()
				open = false
			}
		default:
			word.WriteRune(r)
			open = true
		}
	}
	if open {
		args = append(args, word.String())
	}
	return args
}

func truncateOutput(output string, maxLines int) (string, bool) {
	if output == "" {
		return "", false
	}
	truncated := false
	lines := strings.Split(output, "\n")
	if len(lines) > maxLines {
		lines = lines[:maxLines]
		truncated = true
	}
	joined := strings.Join(lines, "\n")
	if len(joined) > maxRunCmdChars {
		joined = joined[:maxRunCmdChars]
		truncated = true
	}
	return joined, truncated
}

func clampTimeout(seconds int) time.Duration {
	if seconds <= 0 {
		return defaultRunCmdTimeout
	}
	timeout := time.Duration(seconds) * time.Second
	return min(max(timeout, minRunCmdTimeout), maxRunCmdTimeout)
}

func clampLines(lines int) int {
	if lines <= 0 {
		return defaultRunCmdLines
	}
	return min(max(lines, minRunCmdLines), maxRunCmdLines)
}

// NewRunCommandTool creates the run_command tool.
func NewRunCommandTool(root string, runner sandbox.Runner) engine.Tool {
	return engine.Tool{
		Name:        "run_command",
		Description: "Runs an allowlisted program (build tools, linters, file utilities, git, sh/bash, jq, sqlite3) in the project directory without network access. Output is truncated; use install_dependencies to add packages.",
		SchemaJSON:  runCommandSchema,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			a, err := engine.BindArgs[runCommandArgs]("run_command", runCommandSchema, args)
			if err != nil {
				return "", err
			}
			return runCommandImpl(ctx, runner, filesystem.Root(a.Cwd, root), a)
		},
		Metadata: engine.ToolMetadata{
			Category: "execution",
			Tags:     []string{"side-effect"},
		},
	}
}
