package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/rs/zerolog/log"
)

const defaultSearchLimit = 10

// Hit is one ranked search result.
type Hit struct {
	Path      string  `json:"path"`
	StartLine int     `json:"start_line"`
	EndLine   int     `json:"end_line"`
	Symbol    string  `json:"symbol,omitempty"`
	Kind      string  `json:"kind"`
	Score     float64 `json:"score"`
	Snippet   string  `json:"snippet"`
}

// CodeIndex is an in-memory BM25 index over the text files of one project.
// It is built on first use and refreshed per file afterwards.
type CodeIndex struct {
	root    string
	walker  *Walker
	chunker *Chunker
	index   bleve.Index

	buildOnce sync.Once
	buildErr  error

	mu     sync.RWMutex
	chunks map[string]Chunk    // chunk ID -> chunk
	files  map[string][]string // path -> chunk IDs
}

// NewCodeIndex creates an empty index rooted at root.
func NewCodeIndex(root string) (*CodeIndex, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create code index: %w", err)
	}
	return &CodeIndex{
		root:    root,
		walker:  NewWalker(root),
		chunker: NewChunker(),
		index:   idx,
		chunks:  make(map[string]Chunk),
		files:   make(map[string][]string),
	}, nil
}

// buildIndexMapping analyzes text and symbol names; path and kind are
// exact-match keywords.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	chunkMapping := bleve.NewDocumentMapping()

	for _, field := range []string{"path", "lang", "kind"} {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = keyword.Name
		fm.Store = false
		chunkMapping.AddFieldMappingsAt(field, fm)
	}
	for _, field := range []string{"text", "symbol"} {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = standard.Name
		fm.Store = false
		chunkMapping.AddFieldMappingsAt(field, fm)
	}

	indexMapping.DefaultMapping = chunkMapping
	return indexMapping
}

// Root returns the directory the index covers.
func (c *CodeIndex) Root() string {
	return c.root
}

// Walker returns the walker used for discovery; its ignore rules are shared
// with the file watcher.
func (c *CodeIndex) Walker() *Walker {
	return c.walker
}

// Build indexes every file the walker finds. Later calls are no-ops.
func (c *CodeIndex) Build(ctx context.Context) error {
	c.buildOnce.Do(func() {
		c.buildErr = c.build(ctx)
	})
	return c.buildErr
}

func (c *CodeIndex) build(ctx context.Context) error {
	files, err := c.walker.Walk(ctx)
	if err != nil {
		return err
	}

	batch := c.index.NewBatch()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range files {
		content, err := os.ReadFile(filepath.Join(c.root, filepath.FromSlash(f.Path)))
		if err != nil {
			log.Warn().Err(err).Str("path", f.Path).Msg("Skipping unreadable file")
			continue
		}
		c.files[f.Path] = nil
		for _, chunk := range c.chunker.Chunk(f, content) {
			if err := batch.Index(chunk.ID, chunkDoc(chunk)); err != nil {
				return fmt.Errorf("failed to add chunk %s to batch: %w", chunk.ID, err)
			}
			c.chunks[chunk.ID] = chunk
			c.files[f.Path] = append(c.files[f.Path], chunk.ID)
		}
	}
	if err := c.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to index %d files: %w", len(files), err)
	}

	log.Debug().Int("files", len(files)).Int("chunks", len(c.chunks)).Str("root", c.root).Msg("Code index built")
	return nil
}

// Refresh re-indexes the given root-relative paths. Paths that no longer
// exist, are ignored or are not indexable are dropped from the index.
func (c *CodeIndex) Refresh(paths []string) error {
	var errs []error
	for _, p := range paths {
		if err := c.refreshFile(filepath.ToSlash(p)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *CodeIndex) refreshFile(rel string) error {
	batch := c.index.NewBatch()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range c.files[rel] {
		batch.Delete(id)
		delete(c.chunks, id)
	}
	delete(c.files, rel)

	lang := c.walker.Detect(rel)
	full := filepath.Join(c.root, filepath.FromSlash(rel))
	info, statErr := os.Stat(full)
	if lang != "" && statErr == nil && !info.IsDir() && info.Size() <= MaxIndexBytes && !c.walker.Ignored(rel) {
		content, err := os.ReadFile(full)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", rel, err)
		}
		for _, chunk := range c.chunker.Chunk(FileInfo{Path: rel, Lang: lang, SizeBytes: info.Size()}, content) {
			if err := batch.Index(chunk.ID, chunkDoc(chunk)); err != nil {
				return fmt.Errorf("failed to index %s: %w", rel, err)
			}
			c.chunks[chunk.ID] = chunk
			c.files[rel] = append(c.files[rel], chunk.ID)
		}
	}

	return c.index.Batch(batch)
}

// Search runs a BM25 query over chunk text and symbol names, building the
// index first if needed.
func (c *CodeIndex) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if err := c.Build(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	text := bleve.NewMatchQuery(query)
	text.SetField("text")
	symbol := bleve.NewMatchQuery(query)
	symbol.SetField("symbol")
	symbol.SetBoost(2.0)

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(text, symbol))
	req.Size = limit
	res, err := c.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("code search failed: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		chunk, ok := c.chunks[h.ID]
		if !ok {
			continue
		}
		hits = append(hits, Hit{
			Path:      chunk.Path,
			StartLine: chunk.StartLine,
			EndLine:   chunk.EndLine,
			Symbol:    chunk.Symbol,
			Kind:      chunk.Kind,
			Score:     h.Score,
			Snippet:   snippet(chunk.Text, 12),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits, nil
}

// Files returns the indexed paths, sorted.
func (c *CodeIndex) Files() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.files))
	for p := range c.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Close releases the underlying index.
func (c *CodeIndex) Close() error {
	return c.index.Close()
}

func chunkDoc(chunk Chunk) map[string]interface{} {
	return map[string]interface{}{
		"path":   chunk.Path,
		"lang":   string(chunk.Lang),
		"kind":   chunk.Kind,
		"symbol": chunk.Symbol,
		"text":   chunk.Text,
	}
}

// snippet keeps the first maxLines lines of text.
func snippet(text string, maxLines int) string {
	lines := 0
	for i, r := range text {
		if r != '\n' {
			continue
		}
		lines++
		if lines == maxLines {
			return text[:i] + "\n..."
		}
	}
	return text
}
