package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/ChamsBouzaiene/autobuild/internal/engine"
)

type deleteFileArgs struct {
	Path string `json:"path"`
	Cwd  string `json:"cwd"`
}

const deleteFileSchema = `{
	"type": "object",
	"properties": {
		"path": {"type": "string", "minLength": 1, "description": "File path relative to the project root"},
		"cwd": {"type": "string", "description": "Project root (set automatically)"}
	},
	"required": ["path"]
}`

// DeleteFileResult is the output of the delete_file tool.
type DeleteFileResult struct {
	Path    string `json:"path"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// deleteFileImpl removes a single file. Directories are refused and a
// missing file counts as already deleted.
func deleteFileImpl(fsys FileSystem, root string, a deleteFileArgs) (string, error) {
	full, err := Resolve(root, a.Path)
	if err != nil {
		return "", err
	}
	if full == filepath.Clean(root) {
		return "", fmt.Errorf("refusing to delete the project root")
	}

	res := DeleteFileResult{Path: a.Path, Success: true}
	info, err := fsys.Stat(full)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		res.Message = "File does not exist (already deleted)"
	case err != nil:
		return "", fmt.Errorf("failed to check file: %w", err)
	case info.IsDir():
		return "", fmt.Errorf("cannot delete directory %s (delete_file only removes files)", a.Path)
	default:
		if err := fsys.Remove(full); err != nil {
			return "", fmt.Errorf("failed to delete file: %w", err)
		}
		res.Message = "File deleted"
	}

	out, err := json.Marshal(res)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// NewDeleteFileTool creates the delete_file tool.
func NewDeleteFileTool(root string) engine.Tool {
	return newDeleteFileTool(OSFileSystem{}, root)
}

func newDeleteFileTool(fsys FileSystem, root string) engine.Tool {
	return engine.Tool{
		Name:        "delete_file",
		Description: "Deletes a file from the project. Cannot delete directories.",
		SchemaJSON:  deleteFileSchema,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			a, err := engine.BindArgs[deleteFileArgs]("delete_file", deleteFileSchema, args)
			if err != nil {
				return "", err
			}
			return deleteFileImpl(fsys, Root(a.Cwd, root), a)
		},
		Metadata: engine.ToolMetadata{
			Category: "filesystem",
			Tags:     []string{"delete", "destructive", "side-effect"},
		},
	}
}
