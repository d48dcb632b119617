package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChamsBouzaiene/autobuild/internal/indexer"
)

// MockFileSystem is a mock implementation of the FileSystem interface.
type MockFileSystem struct {
	StatFunc      func(name string) (os.FileInfo, error)
	ReadFileFunc  func(name string) ([]byte, error)
	WriteFileFunc func(name string, data []byte, perm os.FileMode) error
	MkdirAllFunc  func(path string, perm os.FileMode) error
	RemoveFunc    func(name string) error
	ReadDirFunc   func(name string) ([]os.DirEntry, error)
	WalkDirFunc   func(root string, fn fs.WalkDirFunc) error
}

func (m *MockFileSystem) Stat(name string) (os.FileInfo, error) {
	if m.StatFunc != nil {
		return m.StatFunc(name)
	}
	return nil, os.ErrNotExist
}

func (m *MockFileSystem) ReadFile(name string) ([]byte, error) {
	if m.ReadFileFunc != nil {
		return m.ReadFileFunc(name)
	}
	return nil, os.ErrNotExist
}

func (m *MockFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	if m.WriteFileFunc != nil {
		return m.WriteFileFunc(name, data, perm)
	}
	return nil
}

func (m *MockFileSystem) MkdirAll(path string, perm os.FileMode) error {
	if m.MkdirAllFunc != nil {
		return m.MkdirAllFunc(path, perm)
	}
	return nil
}

func (m *MockFileSystem) Remove(name string) error {
	if m.RemoveFunc != nil {
		return m.RemoveFunc(name)
	}
	return nil
}

func (m *MockFileSystem) ReadDir(name string) ([]os.DirEntry, error) {
	if m.ReadDirFunc != nil {
		return m.ReadDirFunc(name)
	}
	return nil, nil
}

func (m *MockFileSystem) WalkDir(root string, fn fs.WalkDirFunc) error {
	if m.WalkDirFunc != nil {
		return m.WalkDirFunc(root, fn)
	}
	return nil
}

type mockFileInfo struct {
	name  string
	isDir bool
}

func (m mockFileInfo) Name() string       { return m.name }
func (m mockFileInfo) Size() int64        { return 0 }
func (m mockFileInfo) Mode() os.FileMode  { return 0 }
func (m mockFileInfo) ModTime() time.Time { return time.Now() }
func (m mockFileInfo) IsDir() bool        { return m.isDir }
func (m mockFileInfo) Sys() any           { return nil }

const root = "/repo"

// fileFS serves a single file at path with the given content.
func fileFS(path, content string) *MockFileSystem {
	return &MockFileSystem{
		StatFunc: func(name string) (os.FileInfo, error) {
			if name == path {
				return mockFileInfo{name: filepath.Base(name)}, nil
			}
			return nil, os.ErrNotExist
		},
		ReadFileFunc: func(name string) ([]byte, error) {
			if name == path {
				return []byte(content), nil
			}
			return nil, os.ErrNotExist
		},
	}
}

func decode[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	return v
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{"relative", "src/main.go", "/repo/src/main.go", false},
		{"root", ".", "/repo", false},
		{"absolute inside", "/repo/a.txt", "/repo/a.txt", false},
		{"dot dot escape", "../etc/passwd", "", true},
		{"nested escape", "src/../../x", "", true},
		{"absolute outside", "/etc/passwd", "", true},
		{"sibling prefix", "/repo-other/x", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(root, tt.path)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "outside the project root")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoot(t *testing.T) {
	assert.Equal(t, "/pinned", Root("/pinned", "/fallback"))
	assert.Equal(t, "/fallback", Root("  ", "/fallback"))
}

func TestReadFile(t *testing.T) {
	t.Run("full", func(t *testing.T) {
		out, err := readFileImpl(fileFS("/repo/a.txt", "one\ntwo"), root, readFileArgs{Path: "a.txt"})
		require.NoError(t, err)
		res := decode[readFileResult](t, out)
		assert.Equal(t, "full", res.ContentType)
		assert.Equal(t, "one\ntwo", res.Content)
		assert.Equal(t, 2, res.LineCount)
	})

	t.Run("span", func(t *testing.T) {
		out, err := readFileImpl(fileFS("/repo/a.txt", "one\ntwo\nthree\nfour"), root, readFileArgs{Path: "a.txt", StartLine: 2, EndLine: 3})
		require.NoError(t, err)
		res := decode[readFileResult](t, out)
		assert.Equal(t, "span", res.ContentType)
		assert.Equal(t, "    2| two\n    3| three\n", res.Content)
		assert.Equal(t, 2, res.StartLine)
		assert.Equal(t, 3, res.EndLine)
	})

	t.Run("span past end", func(t *testing.T) {
		_, err := readFileImpl(fileFS("/repo/a.txt", "one"), root, readFileArgs{Path: "a.txt", StartLine: 5})
		require.Error(t, err)
	})

	t.Run("outline", func(t *testing.T) {
		var b strings.Builder
		b.WriteString("package big\n\nimport \"fmt\"\n\n")
		for i := 0; i < 500; i++ {
			b.WriteString("// filler\n")
		}
		b.WriteString("func Hello() { fmt.Println() }\n")
		out, err := readFileImpl(fileFS("/repo/big.go", b.String()), root, readFileArgs{Path: "big.go"})
		require.NoError(t, err)
		res := decode[readFileResult](t, out)
		assert.Equal(t, "outline", res.ContentType)
		assert.Contains(t, res.Content, "OUTLINE ONLY")
		assert.Contains(t, res.Content, "func Hello()")
		assert.NotContains(t, res.Content, "// filler")
	})

	t.Run("traversal", func(t *testing.T) {
		_, err := readFileImpl(&MockFileSystem{}, root, readFileArgs{Path: "../secret"})
		require.Error(t, err)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := readFileImpl(&MockFileSystem{}, root, readFileArgs{Path: "nope.txt"})
		require.Error(t, err)
	})
}

func TestWriteFile(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		var written string
		var madeDir string
		mock := &MockFileSystem{
			MkdirAllFunc: func(path string, _ os.FileMode) error { madeDir = path; return nil },
			WriteFileFunc: func(name string, data []byte, _ os.FileMode) error {
				written = name + ":" + string(data)
				return nil
			},
		}
		out, err := writeFileImpl(mock, root, writeFileArgs{Path: "pkg/new.go", Content: "package pkg\n"})
		require.NoError(t, err)
		res := decode[writeResult](t, out)
		assert.Equal(t, "created", res.Status)
		assert.Equal(t, "/repo/pkg", madeDir)
		assert.Equal(t, "/repo/pkg/new.go:package pkg\n", written)
	})

	t.Run("updated", func(t *testing.T) {
		mock := fileFS("/repo/a.txt", "old")
		out, err := writeFileImpl(mock, root, writeFileArgs{Path: "a.txt", Content: "new"})
		require.NoError(t, err)
		assert.Equal(t, "updated", decode[writeResult](t, out).Status)
	})

	t.Run("unchanged skips write", func(t *testing.T) {
		mock := fileFS("/repo/a.txt", "same")
		mock.WriteFileFunc = func(string, []byte, os.FileMode) error {
			t.Fatal("unexpected write")
			return nil
		}
		out, err := writeFileImpl(mock, root, writeFileArgs{Path: "a.txt", Content: "same"})
		require.NoError(t, err)
		assert.Equal(t, "unchanged", decode[writeResult](t, out).Status)
	})

	t.Run("traversal", func(t *testing.T) {
		_, err := writeFileImpl(&MockFileSystem{}, root, writeFileArgs{Path: "../../evil", Content: "x"})
		require.Error(t, err)
	})

	t.Run("write error", func(t *testing.T) {
		mock := &MockFileSystem{WriteFileFunc: func(string, []byte, os.FileMode) error { return errors.New("disk full") }}
		_, err := writeFileImpl(mock, root, writeFileArgs{Path: "a.txt", Content: "x"})
		require.ErrorContains(t, err, "disk full")
	})
}

func TestCreateDirectory(t *testing.T) {
	out, err := createDirImpl(&MockFileSystem{}, root, createDirArgs{Path: "a/b"})
	require.NoError(t, err)
	assert.Equal(t, "created", decode[writeResult](t, out).Status)

	dirFS := &MockFileSystem{StatFunc: func(string) (os.FileInfo, error) { return mockFileInfo{isDir: true}, nil }}
	out, err = createDirImpl(dirFS, root, createDirArgs{Path: "a/b"})
	require.NoError(t, err)
	assert.Equal(t, "exists", decode[writeResult](t, out).Status)

	_, err = createDirImpl(fileFS("/repo/f", ""), root, createDirArgs{Path: "f"})
	require.ErrorContains(t, err, "is a file")
}

func TestDeleteFile(t *testing.T) {
	t.Run("exists", func(t *testing.T) {
		removed := ""
		mock := fileFS("/repo/a.txt", "x")
		mock.RemoveFunc = func(name string) error { removed = name; return nil }
		out, err := deleteFileImpl(mock, root, deleteFileArgs{Path: "a.txt"})
		require.NoError(t, err)
		res := decode[DeleteFileResult](t, out)
		assert.True(t, res.Success)
		assert.Equal(t, "/repo/a.txt", removed)
	})

	t.Run("missing", func(t *testing.T) {
		out, err := deleteFileImpl(&MockFileSystem{}, root, deleteFileArgs{Path: "gone.txt"})
		require.NoError(t, err)
		res := decode[DeleteFileResult](t, out)
		assert.True(t, res.Success)
		assert.Contains(t, res.Message, "already deleted")
	})

	t.Run("directory", func(t *testing.T) {
		mock := &MockFileSystem{StatFunc: func(string) (os.FileInfo, error) { return mockFileInfo{isDir: true}, nil }}
		_, err := deleteFileImpl(mock, root, deleteFileArgs{Path: "src"})
		require.ErrorContains(t, err, "cannot delete directory")
	})

	t.Run("root", func(t *testing.T) {
		_, err := deleteFileImpl(&MockFileSystem{}, root, deleteFileArgs{Path: "."})
		require.ErrorContains(t, err, "project root")
	})

	t.Run("traversal", func(t *testing.T) {
		_, err := deleteFileImpl(&MockFileSystem{}, root, deleteFileArgs{Path: "../x"})
		require.Error(t, err)
	})
}

func TestEditFile(t *testing.T) {
	const src = "func a() {\n\treturn 1\n}\n\nfunc b() {\n\treturn 1\n}\n"

	capture := func(content string) (*MockFileSystem, *string) {
		var out string
		mock := fileFS("/repo/x.go", content)
		mock.WriteFileFunc = func(_ string, data []byte, _ os.FileMode) error {
			out = string(data)
			return nil
		}
		return mock, &out
	}

	t.Run("unique match", func(t *testing.T) {
		mock, written := capture(src)
		out, err := editFileImpl(mock, root, editFileArgs{Path: "x.go", OldString: "func a() {\n\treturn 1", NewString: "func a() {\n\treturn 2"})
		require.NoError(t, err)
		assert.Equal(t, 1, decode[editResult](t, out).Replacements)
		assert.Contains(t, *written, "return 2")
		assert.Equal(t, 1, strings.Count(*written, "return 1"))
	})

	t.Run("multiple matches", func(t *testing.T) {
		mock, _ := capture(src)
		_, err := editFileImpl(mock, root, editFileArgs{Path: "x.go", OldString: "return 1", NewString: "return 2"})
		require.ErrorContains(t, err, "appears 2 times")
	})

	t.Run("replace all", func(t *testing.T) {
		mock, written := capture(src)
		out, err := editFileImpl(mock, root, editFileArgs{Path: "x.go", OldString: "return 1", NewString: "return 2", ReplaceAll: true})
		require.NoError(t, err)
		assert.Equal(t, 2, decode[editResult](t, out).Replacements)
		assert.NotContains(t, *written, "return 1")
	})

	t.Run("not found with whitespace hint", func(t *testing.T) {
		mock, _ := capture(src)
		_, err := editFileImpl(mock, root, editFileArgs{Path: "x.go", OldString: "func a() {\n    return 1", NewString: "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tabs")
		assert.Contains(t, err.Error(), "different whitespace")
	})

	t.Run("identical", func(t *testing.T) {
		mock, _ := capture(src)
		_, err := editFileImpl(mock, root, editFileArgs{Path: "x.go", OldString: "a", NewString: "a"})
		require.ErrorContains(t, err, "identical")
	})

	t.Run("generated", func(t *testing.T) {
		mock, _ := capture("// Code generated by protoc. DO NOT EDIT.\npackage pb\n")
		_, err := editFileImpl(mock, root, editFileArgs{Path: "x.go", OldString: "pb", NewString: "pb2"})
		require.ErrorContains(t, err, "looks generated")
	})
}

func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	for path, content := range map[string]string{
		".gitignore":            "*.log\n",
		"main.go":               "package main\n",
		"debug.log":             "noise\n",
		"internal/app/app.go":   "package app\n",
		"internal/app/deep/x":   "x\n",
		"node_modules/dep/a.js": "x\n",
	} {
		full := filepath.Join(dir, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	ignore := indexer.NewIgnoreMatcher(dir)

	t.Run("flat", func(t *testing.T) {
		out, err := listFilesImpl(OSFileSystem{}, dir, ignore, listFilesArgs{})
		require.NoError(t, err)
		res := decode[listResult](t, out)
		assert.Equal(t, []string{".gitignore", "internal/", "main.go"}, res.Files)
		assert.False(t, res.Truncated)
	})

	t.Run("recursive", func(t *testing.T) {
		out, err := listFilesImpl(OSFileSystem{}, dir, ignore, listFilesArgs{Recursive: true})
		require.NoError(t, err)
		res := decode[listResult](t, out)
		assert.Contains(t, res.Files, "internal/app/app.go")
		assert.Contains(t, res.Files, "internal/app/deep/x")
		assert.NotContains(t, res.Files, "debug.log")
		for _, f := range res.Files {
			assert.NotContains(t, f, "node_modules")
		}
	})

	t.Run("max depth", func(t *testing.T) {
		depth := 1
		out, err := listFilesImpl(OSFileSystem{}, dir, ignore, listFilesArgs{Path: "internal", Recursive: true, MaxDepth: &depth})
		require.NoError(t, err)
		res := decode[listResult](t, out)
		assert.Contains(t, res.Files, "internal/app/app.go")
		assert.NotContains(t, res.Files, "internal/app/deep/x")
	})

	t.Run("limit", func(t *testing.T) {
		out, err := listFilesImpl(OSFileSystem{}, dir, ignore, listFilesArgs{Recursive: true, Limit: 2})
		require.NoError(t, err)
		res := decode[listResult](t, out)
		assert.Len(t, res.Files, 2)
		assert.True(t, res.Truncated)
	})

	t.Run("traversal", func(t *testing.T) {
		_, err := listFilesImpl(OSFileSystem{}, dir, ignore, listFilesArgs{Path: ".."})
		require.Error(t, err)
	})
}

func TestTools_BindArgs(t *testing.T) {
	tool := newReadFileTool(&MockFileSystem{}, root)
	_, err := tool.Fn(context.Background(), map[string]any{"start_line": 3})
	require.Error(t, err)

	dir := t.TempDir()
	write := NewWriteFileTool(dir)
	_, err = write.Fn(context.Background(), map[string]any{"path": "a/b.txt", "content": "hi", "cwd": dir})
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "a", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}
