package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ChamsBouzaiene/autobuild/internal/engine"
)

const maxEditLines = 500

type editFileArgs struct {
	Path       string `json:"path"`
	OldString  string `json:"old_string"`
	NewString  string `json:"new_string"`
	ReplaceAll bool   `json:"replace_all"`
	Cwd        string `json:"cwd"`
}

const editFileSchema = `{
	"type": "object",
	"properties": {
		"path": {"type": "string", "minLength": 1, "description": "File path relative to the project root"},
		"old_string": {"type": "string", "minLength": 1, "description": "Exact text to find, including whitespace"},
		"new_string": {"type": "string", "description": "Replacement text"},
		"replace_all": {"type": "boolean", "description": "Replace every occurrence instead of requiring a unique match"},
		"cwd": {"type": "string", "description": "Project root (set automatically)"}
	},
	"required": ["path", "old_string", "new_string"]
}`

type editResult struct {
	Path         string `json:"path"`
	Replacements int    `json:"replacements"`
}

// editFileImpl performs an exact string replacement. Misses and ambiguous
// matches are errors that tell the model how to fix its input.
func editFileImpl(fs FileSystem, root string, a editFileArgs) (string, error) {
	full, err := Resolve(root, a.Path)
	if err != nil {
		return "", err
	}
	if a.OldString == a.NewString {
		return "", fmt.Errorf("old_string and new_string are identical; nothing to change")
	}
	if n := strings.Count(a.OldString, "\n"); n > maxEditLines {
		return "", fmt.Errorf("old_string is %d lines (max %d); split the change or use write_file", n, maxEditLines)
	}

	data, err := fs.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", a.Path, err)
	}
	content := string(data)
	if marker, ok := generatedMarker(content); ok {
		return "", fmt.Errorf("%s looks generated (found %q); edit its source instead", a.Path, marker)
	}

	count := strings.Count(content, a.OldString)
	switch {
	case count == 0:
		hint := ""
		if strings.Contains(strings.Join(strings.Fields(content), " "), strings.Join(strings.Fields(a.OldString), " ")) {
			hint = " The text exists with different whitespace or indentation."
		}
		return "", fmt.Errorf("old_string not found in %s (file indents with %s).%s Read the file again and copy the exact text", a.Path, detectIndentation(content), hint)
	case count > 1 && !a.ReplaceAll:
		return "", fmt.Errorf("old_string appears %d times in %s; add surrounding context to make it unique or set replace_all", count, a.Path)
	}

	replacements := 1
	if a.ReplaceAll {
		content = strings.ReplaceAll(content, a.OldString, a.NewString)
		replacements = count
	} else {
		content = strings.Replace(content, a.OldString, a.NewString, 1)
	}
	if err := fs.WriteFile(full, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	out, err := json.Marshal(editResult{Path: a.Path, Replacements: replacements})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func generatedMarker(content string) (string, bool) {
	head := content
	if len(head) > 500 {
		head = head[:500]
	}
	for _, marker := range []string{"Code generated", "DO NOT EDIT", "Auto-generated", "automatically generated"} {
		if strings.Contains(head, marker) {
			return marker, true
		}
	}
	return "", false
}

func detectIndentation(content string) string {
	switch {
	case strings.Contains(content, "\n\t"):
		return "tabs"
	case strings.Contains(content, "\n    "):
		return "4 spaces"
	case strings.Contains(content, "\n  "):
		return "2 spaces"
	default:
		return "no indentation"
	}
}

// NewEditFileTool creates the edit_file tool.
func NewEditFileTool(root string) engine.Tool {
	return newEditFileTool(OSFileSystem{}, root)
}

func newEditFileTool(fs FileSystem, root string) engine.Tool {
	return engine.Tool{
		Name:        "edit_file",
		Description: "Replaces an exact string in an existing file. Prefer this over write_file for small changes; read the file first to copy the exact text.",
		SchemaJSON:  editFileSchema,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			a, err := engine.BindArgs[editFileArgs]("edit_file", editFileSchema, args)
			if err != nil {
				return "", err
			}
			return editFileImpl(fs, Root(a.Cwd, root), a)
		},
		Metadata: engine.ToolMetadata{
			Category: "filesystem",
			Tags:     []string{"write", "side-effect"},
		},
	}
}
