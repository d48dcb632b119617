package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ChamsBouzaiene/autobuild/internal/engine"
)

type writeFileArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Cwd     string `json:"cwd"`
}

const writeFileSchema = `{
	"type": "object",
	"properties": {
		"path": {"type": "string", "minLength": 1, "description": "File path relative to the project root"},
		"content": {"type": "string", "description": "Complete file content"},
		"cwd": {"type": "string", "description": "Project root (set automatically)"}
	},
	"required": ["path", "content"]
}`

type writeResult struct {
	Path   string `json:"path"`
	Status string `json:"status"` // created, updated, unchanged
	Lines  int    `json:"lines,omitempty"`
}

func writeFileImpl(fs FileSystem, root string, a writeFileArgs) (string, error) {
	full, err := Resolve(root, a.Path)
	if err != nil {
		return "", err
	}

	status := "created"
	if info, err := fs.Stat(full); err == nil {
		if info.IsDir() {
			return "", fmt.Errorf("%s is a directory", a.Path)
		}
		status = "updated"
		if existing, err := fs.ReadFile(full); err == nil && string(existing) == a.Content {
			status = "unchanged"
		}
	}

	if status != "unchanged" {
		if err := fs.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
		if err := fs.WriteFile(full, []byte(a.Content), 0o644); err != nil {
			return "", fmt.Errorf("failed to write file: %w", err)
		}
	}

	out, err := json.Marshal(writeResult{
		Path:   a.Path,
		Status: status,
		Lines:  strings.Count(a.Content, "\n") + 1,
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// NewWriteFileTool creates the write_file tool.
func NewWriteFileTool(root string) engine.Tool {
	return newWriteFileTool(OSFileSystem{}, root)
}

func newWriteFileTool(fs FileSystem, root string) engine.Tool {
	return engine.Tool{
		Name:        "write_file",
		Description: "Writes a complete file, creating parent directories as needed. Overwrites existing files.",
		SchemaJSON:  writeFileSchema,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			a, err := engine.BindArgs[writeFileArgs]("write_file", writeFileSchema, args)
			if err != nil {
				return "", err
			}
			return writeFileImpl(fs, Root(a.Cwd, root), a)
		},
		Metadata: engine.ToolMetadata{
			Category: "filesystem",
			Tags:     []string{"write", "side-effect"},
		},
	}
}

type createDirArgs struct {
	Path string `json:"path"`
	Cwd  string `json:"cwd"`
}

const createDirSchema = `{
	"type": "object",
	"properties": {
		"path": {"type": "string", "minLength": 1, "description": "Directory path relative to the project root"},
		"cwd": {"type": "string", "description": "Project root (set automatically)"}
	},
	"required": ["path"]
}`

func createDirImpl(fs FileSystem, root string, a createDirArgs) (string, error) {
	full, err := Resolve(root, a.Path)
	if err != nil {
		return "", err
	}

	status := "created"
	if info, err := fs.Stat(full); err == nil {
		if !info.IsDir() {
			return "", fmt.Errorf("%s exists and is a file", a.Path)
		}
		status = "exists"
	} else if err := fs.MkdirAll(full, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	out, err := json.Marshal(writeResult{Path: a.Path, Status: status})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// NewCreateDirectoryTool creates the create_directory tool.
func NewCreateDirectoryTool(root string) engine.Tool {
	return newCreateDirectoryTool(OSFileSystem{}, root)
}

func newCreateDirectoryTool(fs FileSystem, root string) engine.Tool {
	return engine.Tool{
		Name:        "create_directory",
		Description: "Creates a directory and any missing parents. Succeeds if it already exists.",
		SchemaJSON:  createDirSchema,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			a, err := engine.BindArgs[createDirArgs]("create_directory", createDirSchema, args)
			if err != nil {
				return "", err
			}
			return createDirImpl(fs, Root(a.Cwd, root), a)
		},
		Metadata: engine.ToolMetadata{
			Category: "filesystem",
			Tags:     []string{"write", "side-effect"},
		},
	}
}
