package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ChamsBouzaiene/autobuild/internal/engine"
	"github.com/ChamsBouzaiene/autobuild/internal/sandbox"
	"github.com/ChamsBouzaiene/autobuild/internal/tools/filesystem"
)

const (
	maxGrepResults = 100
	grepTimeout    = 10 * time.Second
)

type grepArgs struct {
	Pattern         string `json:"pattern"`
	Path            string `json:"path"`
	Globs           string `json:"globs"`
	CaseInsensitive bool   `json:"case_insensitive"`
	Cwd             string `json:"cwd"`
}

const grepSchema = `{
	"type": "object",
	"properties": {
		"pattern": {"type": "string", "minLength": 1, "description": "Regex pattern to search for"},
		"path": {"type": "string", "description": "Optional: file or directory relative to the project root"},
		"globs": {"type": "string", "description": "Optional: comma-separated file patterns, e.g. \"*.go,!*_test.go\""},
		"case_insensitive": {"type": "boolean", "description": "Optional: case-insensitive search"},
		"cwd": {"type": "string", "description": "Project root (set automatically)"}
	},
	"required": ["pattern"]
}`

// GrepResult is one matching line.
type GrepResult struct {
	Path    string `json:"path"`
	Line    int    `json:"line"`
	Content string `json:"content"`
}

type grepResponse struct {
	Pattern   string       `json:"pattern"`
	Results   []GrepResult `json:"results"`
	Count     int          `json:"count"`
	Truncated bool         `json:"truncated"`
}

// rgMessage is one line of `rg --json` output. Only match lines matter.
type rgMessage struct {
	Type string `json:"type"`
	Data struct {
		Path struct {
			Text string `json:"text"`
		} `json:"path"`
		Lines struct {
			Text string `json:"text"`
		} `json:"lines"`
		LineNumber int `json:"line_number"`
	} `json:"data"`
}

// grepImpl searches with ripgrep and falls back to POSIX grep when rg is
// not installed where the runner executes (slim container images).
func grepImpl(ctx context.Context, runner sandbox.Runner, root string, a grepArgs) (string, error) {
	target := "."
	if a.Path != "" {
		full, err := filesystem.Resolve(root, a.Path)
		if err != nil {
			return "", err
		}
		target = filesystem.Relative(root, full)
	}
	globs := splitGlobs(a.Globs)

	args := []string{"--json"}
	if a.CaseInsensitive {
		args = append(args, "-i")
	}
	for _, g := range globs {
		args = append(args, "-g", g)
	}
	args = append(args, "-e", a.Pattern, target)

	res, err := runner.Run(ctx, sandbox.Cmd{Dir: root, Name: "rg", Args: args, Timeout: grepTimeout})
	var results []GrepResult
	switch {
	case err == nil:
		results = parseRgJSON(res.Stdout)
	case res.Code == 1:
		// rg exits 1 when nothing matched.
	case commandMissing(res, err):
		results, err = grepFallback(ctx, runner, root, target, globs, a)
		if err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("grep failed: %v, stderr: %s", err, res.Stderr)
	}

	resp := grepResponse{Pattern: a.Pattern, Results: results}
	if resp.Results == nil {
		resp.Results = []GrepResult{}
	}
	if len(resp.Results) > maxGrepResults {
		resp.Results = resp.Results[:maxGrepResults]
		resp.Truncated = true
	}
	resp.Count = len(resp.Results)

	out, err := json.Marshal(resp)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func grepFallback(ctx context.Context, runner sandbox.Runner, root, target string, globs []string, a grepArgs) ([]GrepResult, error) {
	args := []string{"-rnE"}
	if a.CaseInsensitive {
		args = append(args, "-i")
	}
	for _, g := range globs {
		if strings.HasPrefix(g, "!") {
			args = append(args, "--exclude="+g[1:])
		} else {
			args = append(args, "--include="+g)
		}
	}
	args = append(args, "-e", a.Pattern, target)

	res, err := runner.Run(ctx, sandbox.Cmd{Dir: root, Name: "grep", Args: args, Timeout: grepTimeout})
	if err != nil {
		if res.Code == 1 {
			return nil, nil
		}
		return nil, fmt.Errorf("grep failed: %v, stderr: %s", err, res.Stderr)
	}
	return parseGrepLines(res.Stdout), nil
}

func parseRgJSON(stdout string) []GrepResult {
	var results []GrepResult
	for _, line := range strings.Split(stdout, "\n") {
		if line == "" {
			continue
		}
		var msg rgMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil || msg.Type != "match" {
			continue
		}
		results = append(results, GrepResult{
			Path:    strings.TrimPrefix(msg.Data.Path.Text, "./"),
			Line:    msg.Data.LineNumber,
			Content: strings.TrimSpace(msg.Data.Lines.Text),
		})
	}
	return results
}

// parseGrepLines parses "path:line:content" output.
func parseGrepLines(stdout string) []GrepResult {
	var results []GrepResult
	for _, line := range strings.Split(stdout, "\n") {
		parts := strings.SplitN(line, ":", 3)
		if len(parts) != 3 {
			continue
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		results = append(results, GrepResult{
			Path:    strings.TrimPrefix(parts[0], "./"),
			Line:    n,
			Content: strings.TrimSpace(parts[2]),
		})
	}
	return results
}

func splitGlobs(globs string) []string {
	var out []string
	for _, part := range strings.Split(globs, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func commandMissing(res sandbox.Result, err error) bool {
	if res.Code == 127 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "executable file not found") || strings.Contains(msg, "no such file or directory")
}

// NewGrepTool creates the grep tool. Searches run through runner so they
// see the same filesystem as the project's commands.
func NewGrepTool(root string, runner sandbox.Runner) engine.Tool {
	return engine.Tool{
		Name:        "grep",
		Description: "Fast, regex-based code search using ripgrep. Use this to find code patterns, function definitions, or references. Supports case-insensitive search and glob patterns.",
		SchemaJSON:  grepSchema,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			a, err := engine.BindArgs[grepArgs]("grep", grepSchema, args)
			if err != nil {
				return "", err
			}
			return grepImpl(ctx, runner, filesystem.Root(a.Cwd, root), a)
		},
		Metadata: engine.ToolMetadata{
			Category: "search",
			Tags:     []string{"read-only", "idempotent"},
		},
	}
}
