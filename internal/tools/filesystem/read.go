package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ChamsBouzaiene/autobuild/internal/engine"
)

const (
	// Files up to this many lines come back whole.
	fullReadLines = 400
	// Span reads are capped so a single call cannot flood the context.
	maxSpanLines = 400
)

type readFileArgs struct {
	Path      string `json:"path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Cwd       string `json:"cwd"`
}

const readFileSchema = `{
	"type": "object",
	"properties": {
		"path": {"type": "string", "description": "File path relative to the project root"},
		"start_line": {"type": "integer", "minimum": 1, "description": "Optional: first line to read (1-based)"},
		"end_line": {"type": "integer", "minimum": 1, "description": "Optional: last line to read (inclusive)"},
		"cwd": {"type": "string", "description": "Project root (set automatically)"}
	},
	"required": ["path"]
}`

type readFileResult struct {
	Path        string `json:"path"`
	Content     string `json:"content"`
	LineCount   int    `json:"line_count"`
	ContentType string `json:"content_type"` // full, span or outline
	StartLine   int    `json:"start_line,omitempty"`
	EndLine     int    `json:"end_line,omitempty"`
}

func readFileImpl(fs FileSystem, root string, a readFileArgs) (string, error) {
	full, err := Resolve(root, a.Path)
	if err != nil {
		return "", err
	}
	data, err := fs.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", a.Path, err)
	}

	content := string(data)
	lines := strings.Split(content, "\n")
	res := readFileResult{Path: a.Path, LineCount: len(lines)}

	switch {
	case a.StartLine > 0 || a.EndLine > 0:
		start, end := a.StartLine, a.EndLine
		if start < 1 {
			start = 1
		}
		if end < 1 || end > len(lines) {
			end = len(lines)
		}
		if start > end {
			return "", fmt.Errorf("start_line %d is past end of file (%d lines)", start, len(lines))
		}
		if end-start+1 > maxSpanLines {
			end = start + maxSpanLines - 1
		}
		res.ContentType = "span"
		res.StartLine, res.EndLine = start, end
		res.Content = numberLines(lines[start-1:end], start)

	case len(lines) <= fullReadLines:
		res.ContentType = "full"
		res.Content = content

	default:
		res.ContentType = "outline"
		res.Content = generateOutline(content, a.Path, len(lines))
	}

	out, err := json.Marshal(res)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func numberLines(lines []string, first int) string {
	var b strings.Builder
	for i, l := range lines {
		fmt.Fprintf(&b, "%5d| %s\n", first+i, l)
	}
	return b.String()
}

func generateOutline(content, path string, lineCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "OUTLINE ONLY: %s has %d lines, too many to return whole.\n", path, lineCount)
	fmt.Fprintf(&b, "Call read_file again with start_line/end_line to read a section.\n\n")

	switch filepath.Ext(path) {
	case ".go":
		b.WriteString(prefixOutline(content, []string{"package ", "import", "type ", "func ", "const ", "var "}))
	case ".py":
		b.WriteString(prefixOutline(content, []string{"import ", "from ", "class ", "def ", "async def ", "@"}))
	case ".ts", ".tsx", ".js", ".jsx", ".mjs":
		b.WriteString(prefixOutline(content, []string{"import ", "export ", "class ", "function ", "async function ", "interface ", "type "}))
	default:
		b.WriteString(headTailOutline(content))
	}
	return b.String()
}

// prefixOutline lists lines that start a declaration, skipping comments.
func prefixOutline(content string, prefixes []string) string {
	var b strings.Builder
	inBlockComment := false
	for i, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "/*") {
			inBlockComment = true
		}
		if inBlockComment {
			if strings.Contains(trimmed, "*/") {
				inBlockComment = false
			}
			continue
		}
		if strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "#") {
			continue
		}
		for _, p := range prefixes {
			if strings.HasPrefix(trimmed, p) {
				fmt.Fprintf(&b, "Line %4d: %s\n", i+1, trimmed)
				break
			}
		}
	}
	return b.String()
}

func headTailOutline(content string) string {
	lines := strings.Split(content, "\n")
	var b strings.Builder
	for i := 0; i < 30 && i < len(lines); i++ {
		fmt.Fprintf(&b, "Line %4d: %s\n", i+1, lines[i])
	}
	if len(lines) > 60 {
		fmt.Fprintf(&b, "\n... %d lines omitted ...\n\n", len(lines)-60)
		for i := len(lines) - 30; i < len(lines); i++ {
			fmt.Fprintf(&b, "Line %4d: %s\n", i+1, lines[i])
		}
	}
	return b.String()
}

// NewReadFileTool creates the read_file tool.
func NewReadFileTool(root string) engine.Tool {
	return newReadFileTool(OSFileSystem{}, root)
}

func newReadFileTool(fs FileSystem, root string) engine.Tool {
	return engine.Tool{
		Name:        "read_file",
		Description: "Reads a file from the project. Files over 400 lines return an outline; pass start_line/end_line to read a numbered section.",
		SchemaJSON:  readFileSchema,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			a, err := engine.BindArgs[readFileArgs]("read_file", readFileSchema, args)
			if err != nil {
				return "", err
			}
			return readFileImpl(fs, Root(a.Cwd, root), a)
		},
		Metadata: engine.ToolMetadata{
			Category: "filesystem",
			Tags:     []string{"read-only"},
		},
	}
}
