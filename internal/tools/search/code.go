package search

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/ChamsBouzaiene/autobuild/internal/engine"
	"github.com/ChamsBouzaiene/autobuild/internal/indexer"
)

const (
	defaultCodeResults = 10
	maxCodeResults     = 50
)

// Index is the part of indexer.CodeIndex the search_code tool needs.
type Index interface {
	Root() string
	Search(ctx context.Context, query string, limit int) ([]indexer.Hit, error)
}

type searchCodeArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
	Cwd   string `json:"cwd"`
}

const searchCodeSchema = `{
	"type": "object",
	"properties": {
		"query": {"type": "string", "minLength": 1, "description": "Natural language or identifiers, e.g. \"http handler for login\""},
		"limit": {"type": "integer", "minimum": 1, "maximum": 50, "description": "Maximum results (default: 10)"},
		"cwd": {"type": "string", "description": "Project root (set automatically)"}
	},
	"required": ["query"]
}`

type searchCodeResponse struct {
	Query   string        `json:"query"`
	Results []indexer.Hit `json:"results"`
	Count   int           `json:"count"`
}

func searchCodeImpl(ctx context.Context, idx Index, a searchCodeArgs) (string, error) {
	if a.Cwd != "" && filepath.Clean(a.Cwd) != filepath.Clean(idx.Root()) {
		return "", fmt.Errorf("code index covers %s, not %s", idx.Root(), a.Cwd)
	}
	limit := a.Limit
	if limit <= 0 {
		limit = defaultCodeResults
	}
	if limit > maxCodeResults {
		limit = maxCodeResults
	}

	hits, err := idx.Search(ctx, a.Query, limit)
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}
	if hits == nil {
		hits = []indexer.Hit{}
	}

	out, err := json.Marshal(searchCodeResponse{Query: a.Query, Results: hits, Count: len(hits)})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// NewSearchCodeTool creates the search_code tool over a BM25 index of the
// project. The index is built lazily on first use.
func NewSearchCodeTool(idx Index) engine.Tool {
	return engine.Tool{
		Name:        "search_code",
		Description: "Ranked full-text search over the project's code and docs. Returns the best matching functions, types and sections with snippets. Use grep for exact patterns.",
		SchemaJSON:  searchCodeSchema,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			a, err := engine.BindArgs[searchCodeArgs]("search_code", searchCodeSchema, args)
			if err != nil {
				return "", err
			}
			return searchCodeImpl(ctx, idx, a)
		},
		Metadata: engine.ToolMetadata{
			Category: "search",
			Tags:     []string{"read-only", "idempotent"},
		},
	}
}
