package indexer

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// Language represents a programming language.
type Language string

const (
	LangGo         Language = "go"
	LangTypeScript Language = "ts"
	LangJavaScript Language = "js"
	LangPython     Language = "python"
	LangRust       Language = "rust"
	LangJava       Language = "java"
	LangC          Language = "c"
	LangCPP        Language = "cpp"
	LangMarkdown   Language = "markdown"
	LangJSON       Language = "json"
	LangYAML       Language = "yaml"
	LangHTML       Language = "html"
	LangCSS        Language = "css"
	LangSQL        Language = "sql"
	LangText       Language = "text"
)

// MaxIndexBytes skips generated or vendored blobs that would drown real matches.
const MaxIndexBytes = 512 * 1024

// FileInfo describes a discovered file. Path is slash-separated and
// relative to the walk root.
type FileInfo struct {
	Path      string
	Lang      Language
	SizeBytes int64
}

// DefaultIgnorePatterns are common directories and files to skip.
var DefaultIgnorePatterns = []string{
	".git",
	".agent",
	"node_modules",
	"dist",
	"build",
	"vendor",
	"__pycache__",
	".venv",
	"coverage",
	".next",
	".cache",
	"target",
	"bin",
	"obj",
	".idea",
	".vscode",
	".DS_Store",
}

// LanguageDetector defines how to detect file languages.
type LanguageDetector interface {
	Detect(path string) Language
}

// DefaultLanguageDetector detects language from file extension.
type DefaultLanguageDetector struct {
	extMap map[string]Language
}

func NewDefaultLanguageDetector() *DefaultLanguageDetector {
	return &DefaultLanguageDetector{
		extMap: map[string]Language{
			".go":   LangGo,
			".ts":   LangTypeScript,
			".tsx":  LangTypeScript,
			".js":   LangJavaScript,
			".jsx":  LangJavaScript,
			".mjs":  LangJavaScript,
			".py":   LangPython,
			".rs":   LangRust,
			".java": LangJava,
			".c":    LangC,
			".h":    LangC,
			".cpp":  LangCPP,
			".cc":   LangCPP,
			".hpp":  LangCPP,
			".md":   LangMarkdown,
			".json": LangJSON,
			".yaml": LangYAML,
			".yml":  LangYAML,
			".html": LangHTML,
			".css":  LangCSS,
			".sql":  LangSQL,
			".txt":  LangText,
			".toml": LangText,
		},
	}
}

// Detect detects language from file extension. Unknown extensions return "".
func (d *DefaultLanguageDetector) Detect(path string) Language {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := d.extMap[ext]; ok {
		return lang
	}
	return ""
}

// NewIgnoreMatcher compiles DefaultIgnorePatterns plus every .gitignore
// under root. Patterns from nested files are scoped to their directory.
// The matcher expects slash-separated paths relative to root.
func NewIgnoreMatcher(root string) *gitignore.GitIgnore {
	patterns := append([]string{}, DefaultIgnorePatterns...)

	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			for _, skip := range DefaultIgnorePatterns {
				if d.Name() == skip && path != root {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if d.Name() != ".gitignore" {
			return nil
		}
		lines, err := readGitignoreLines(path)
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(root, filepath.Dir(path))
		patterns = append(patterns, scopePatterns(filepath.ToSlash(rel), lines)...)
		return nil
	})

	return gitignore.CompileIgnoreLines(patterns...)
}

// scopePatterns rewrites patterns from dir/.gitignore so they only match
// below dir.
func scopePatterns(dir string, lines []string) []string {
	if dir == "." || dir == "" {
		return lines
	}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		neg := ""
		if strings.HasPrefix(line, "!") {
			neg, line = "!", line[1:]
		}
		switch {
		case strings.HasPrefix(line, "/"):
			line = dir + line
		case strings.Contains(strings.TrimSuffix(line, "/"), "/"):
			line = dir + "/" + line
		default:
			line = dir + "/**/" + line
		}
		out = append(out, neg+line)
	}
	return out
}

func readGitignoreLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

// Walker discovers indexable files under a root.
type Walker struct {
	root     string
	ignore   *gitignore.GitIgnore
	detector LanguageDetector
}

// NewWalker creates a walker for root using the default detector.
func NewWalker(root string) *Walker {
	return &Walker{
		root:     root,
		ignore:   NewIgnoreMatcher(root),
		detector: NewDefaultLanguageDetector(),
	}
}

// Ignored reports whether a root-relative path is excluded.
func (w *Walker) Ignored(rel string) bool {
	return w.ignore.MatchesPath(filepath.ToSlash(rel))
}

// Detect returns the language of path, or "" when it is not indexed.
func (w *Walker) Detect(path string) Language {
	return w.detector.Detect(path)
}

// Walk returns every non-ignored file with a known language that fits
// under MaxIndexBytes. Symlinks are not followed.
func (w *Walker) Walk(ctx context.Context) ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.WalkDir(w.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path == w.root {
			return nil
		}

		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return nil
		}
		if w.Ignored(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		lang := w.detector.Detect(path)
		if lang == "" {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > MaxIndexBytes {
			return nil
		}
		files = append(files, FileInfo{
			Path:      filepath.ToSlash(rel),
			Lang:      lang,
			SizeBytes: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", w.root, err)
	}
	return files, nil
}
