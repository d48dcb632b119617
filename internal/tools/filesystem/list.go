package filesystem

import (
	"context"
	"encoding/json"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ChamsBouzaiene/autobuild/internal/engine"
	"github.com/ChamsBouzaiene/autobuild/internal/indexer"
)

const defaultListLimit = 500

// Matcher reports whether a root-relative, slash-separated path is ignored.
type Matcher interface {
	MatchesPath(path string) bool
}

type listFilesArgs struct {
	Path      string `json:"path"`
	Recursive bool   `json:"recursive"`
	MaxDepth  *int   `json:"max_depth"`
	Limit     int    `json:"limit"`
	Cwd       string `json:"cwd"`
}

const listFilesSchema = `{
	"type": "object",
	"properties": {
		"path": {"type": "string", "description": "Directory relative to the project root (default: root)"},
		"recursive": {"type": "boolean", "description": "List the whole subtree (default: false)"},
		"max_depth": {"type": "integer", "minimum": 0, "description": "For recursive listings, how many directory levels below path to descend"},
		"limit": {"type": "integer", "minimum": 1, "maximum": 5000, "description": "Maximum entries to return (default: 500)"},
		"cwd": {"type": "string", "description": "Project root (set automatically)"}
	}
}`

type listResult struct {
	Path      string   `json:"path"`
	Files     []string `json:"files"`
	Recursive bool     `json:"recursive"`
	Truncated bool     `json:"truncated"`
}

// listFilesImpl lists entries under a.Path. Directories carry a trailing
// slash; .gitignore rules and the default ignore set apply.
func listFilesImpl(fsys FileSystem, root string, ignore Matcher, a listFilesArgs) (string, error) {
	dir, err := Resolve(root, a.Path)
	if err != nil {
		return "", err
	}
	limit := a.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	maxDepth := -1
	if a.MaxDepth != nil {
		maxDepth = *a.MaxDepth
	}

	res := listResult{Path: a.Path, Recursive: a.Recursive, Files: []string{}}
	add := func(full string, isDir bool) bool {
		if len(res.Files) >= limit {
			res.Truncated = true
			return false
		}
		rel := Relative(root, full)
		if isDir {
			rel += "/"
		}
		res.Files = append(res.Files, rel)
		return true
	}

	if !a.Recursive {
		entries, err := fsys.ReadDir(dir)
		if err != nil {
			return "", err
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
		for _, e := range entries {
			full := filepath.Join(dir, e.Name())
			if ignore.MatchesPath(Relative(root, full)) {
				continue
			}
			if !add(full, e.IsDir()) {
				break
			}
		}
	} else {
		err := fsys.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || path == dir {
				return nil
			}
			if ignore.MatchesPath(Relative(root, path)) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if maxDepth >= 0 {
				rel, _ := filepath.Rel(dir, path)
				if strings.Count(rel, string(filepath.Separator)) > maxDepth {
					if d.IsDir() {
						return filepath.SkipDir
					}
					return nil
				}
			}
			if !add(path, d.IsDir()) {
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil {
			return "", err
		}
	}

	out, err := json.Marshal(res)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// NewListFilesTool creates the list_files tool.
func NewListFilesTool(root string) engine.Tool {
	return newListFilesTool(OSFileSystem{}, root)
}

func newListFilesTool(fsys FileSystem, root string) engine.Tool {
	return engine.Tool{
		Name:        "list_files",
		Description: "Lists files and directories (directories end in /). Honours .gitignore and skips dependency and build folders.",
		SchemaJSON:  listFilesSchema,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			a, err := engine.BindArgs[listFilesArgs]("list_files", listFilesSchema, args)
			if err != nil {
				return "", err
			}
			r := Root(a.Cwd, root)
			return listFilesImpl(fsys, r, indexer.NewIgnoreMatcher(r), a)
		},
		Metadata: engine.ToolMetadata{
			Category: "filesystem",
			Tags:     []string{"read-only"},
		},
	}
}
