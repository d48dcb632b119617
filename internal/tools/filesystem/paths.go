package filesystem

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Root returns the pinned working directory when the call carried one and
// fallback otherwise.
func Root(cwd, fallback string) string {
	if strings.TrimSpace(cwd) != "" {
		return cwd
	}
	return fallback
}

// Resolve joins path onto root and rejects results outside root. Absolute
// paths are accepted only when they already point inside root.
func Resolve(root, path string) (string, error) {
	root = filepath.Clean(root)
	var full string
	if filepath.IsAbs(path) {
		full = filepath.Clean(path)
	} else {
		full = filepath.Join(root, path)
	}

	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside the project root", path)
	}
	return full, nil
}

// Relative renders full relative to root with forward slashes, for output.
func Relative(root, full string) string {
	rel, err := filepath.Rel(root, full)
	if err != nil {
		return full
	}
	return filepath.ToSlash(rel)
}
