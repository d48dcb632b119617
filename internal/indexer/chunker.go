package indexer

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"regexp"
)

// Chunk is one searchable unit of a file: a declaration, a section or a
// paragraph.
type Chunk struct {
	ID        string
	Path      string
	Lang      Language
	Symbol    string
	Kind      string
	StartLine int
	EndLine   int
	Text      string
}

var (
	pyDefPattern   = regexp.MustCompile(`^def\s+(\w+)\s*\(`)
	pyClassPattern = regexp.MustCompile(`^class\s+(\w+)`)
	mdHeader       = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
)

// Chunker splits file content into chunks based on language.
type Chunker struct{}

func NewChunker() *Chunker {
	return &Chunker{}
}

// Chunk splits content. Languages without a dedicated splitter fall back
// to blank-line paragraphs.
func (c *Chunker) Chunk(file FileInfo, content []byte) []Chunk {
	switch file.Lang {
	case LangGo:
		return c.chunkGo(file, content)
	case LangPython:
		return c.chunkPython(file, content)
	case LangMarkdown:
		return c.chunkMarkdown(file, content)
	default:
		return c.chunkParagraphs(file, content)
	}
}

// chunkGo uses the Go parser to extract functions, methods and types.
func (c *Chunker) chunkGo(file FileInfo, content []byte) []Chunk {
	fset := token.NewFileSet()
	node, err := parser.ParseFile(fset, file.Path, content, parser.ParseComments)
	if err != nil {
		return c.chunkParagraphs(file, content)
	}

	lines := bytes.Split(content, []byte("\n"))
	var chunks []Chunk
	for _, decl := range node.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			name := d.Name.Name
			if d.Recv != nil && len(d.Recv.List) > 0 {
				name = fmt.Sprintf("(%s).%s", formatType(d.Recv.List[0].Type), d.Name.Name)
			}
			start := fset.Position(d.Pos()).Line
			if d.Doc != nil {
				start = fset.Position(d.Doc.Pos()).Line
			}
			end := fset.Position(d.End()).Line
			chunks = append(chunks, newChunk(file, lines, name, "function", start, end))

		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				start := fset.Position(ts.Pos()).Line
				end := fset.Position(ts.End()).Line
				chunks = append(chunks, newChunk(file, lines, ts.Name.Name, "type", start, end))
			}
		}
	}
	if len(chunks) == 0 {
		return c.chunkParagraphs(file, content)
	}
	return chunks
}

// chunkPython cuts at top-level def and class statements.
func (c *Chunker) chunkPython(file FileInfo, content []byte) []Chunk {
	lines := bytes.Split(content, []byte("\n"))

	var chunks []Chunk
	current, kind := "", ""
	start := 0
	flush := func(end int) {
		if current != "" {
			chunks = append(chunks, newChunk(file, lines, current, kind, start, end))
		}
	}

	for i, line := range lines {
		if m := pyDefPattern.FindSubmatch(line); m != nil {
			flush(i)
			current, kind, start = string(m[1]), "function", i+1
		} else if m := pyClassPattern.FindSubmatch(line); m != nil {
			flush(i)
			current, kind, start = string(m[1]), "class", i+1
		}
	}
	flush(len(lines))

	if len(chunks) == 0 {
		return c.chunkParagraphs(file, content)
	}
	return chunks
}

// chunkMarkdown splits by headers; a file without headers is one chunk.
func (c *Chunker) chunkMarkdown(file FileInfo, content []byte) []Chunk {
	lines := bytes.Split(content, []byte("\n"))

	var chunks []Chunk
	header := ""
	start := 1
	for i, line := range lines {
		m := mdHeader.FindSubmatch(line)
		if m == nil {
			continue
		}
		if header != "" {
			chunks = append(chunks, newChunk(file, lines, header, "section", start, i))
		}
		header, start = string(m[2]), i+1
	}
	if header != "" {
		chunks = append(chunks, newChunk(file, lines, header, "section", start, len(lines)))
	}

	if len(chunks) == 0 {
		chunks = append(chunks, newChunk(file, lines, "", "document", 1, len(lines)))
	}
	return chunks
}

// chunkParagraphs splits content on blank lines.
func (c *Chunker) chunkParagraphs(file FileInfo, content []byte) []Chunk {
	lines := bytes.Split(content, []byte("\n"))

	var chunks []Chunk
	start := 0
	for i, line := range lines {
		blank := len(bytes.TrimSpace(line)) == 0
		switch {
		case blank && start > 0:
			chunks = append(chunks, newChunk(file, lines, "", "paragraph", start, i))
			start = 0
		case !blank && start == 0:
			start = i + 1
		}
	}
	if start > 0 {
		chunks = append(chunks, newChunk(file, lines, "", "paragraph", start, len(lines)))
	}
	return chunks
}

func newChunk(file FileInfo, lines [][]byte, symbol, kind string, start, end int) Chunk {
	return Chunk{
		ID:        hashChunk(file.Path, start, end),
		Path:      file.Path,
		Lang:      file.Lang,
		Symbol:    symbol,
		Kind:      kind,
		StartLine: start,
		EndLine:   end,
		Text:      extractLines(lines, start, end),
	}
}

func extractLines(lines [][]byte, start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return ""
	}
	return string(bytes.Join(lines[start-1:end], []byte("\n")))
}

func formatType(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + formatType(t.X)
	case *ast.SelectorExpr:
		return formatType(t.X) + "." + t.Sel.Name
	case *ast.IndexExpr:
		return formatType(t.X)
	default:
		return "?"
	}
}

func hashChunk(path string, startLine, endLine int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%d", path, startLine, endLine)))
	return fmt.Sprintf("%x", sum[:12])
}
