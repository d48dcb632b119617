// Package database exposes the task's SQLite database to the agent.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	sqldb "github.com/ChamsBouzaiene/autobuild/internal/database"
	"github.com/ChamsBouzaiene/autobuild/internal/engine"
	"github.com/ChamsBouzaiene/autobuild/internal/tools/filesystem"
)

const maxQueryRows = 100

var readOnlyPrefixes = []string{"select", "with", "pragma", "explain"}

type dbQueryArgs struct {
	ProjectPath string `json:"projectPath"`
	SQL         string `json:"sql"`
}

const dbQuerySchema = `{
	"type": "object",
	"properties": {
		"projectPath": {"type": "string", "description": "Project root (set automatically)"},
		"sql": {"type": "string", "minLength": 1, "description": "A single read-only statement: SELECT, WITH, PRAGMA or EXPLAIN"}
	},
	"required": ["sql"]
}`

type queryResult struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	RowCount  int      `json:"row_count"`
	Truncated bool     `json:"truncated"`
}

func dbQueryImpl(ctx context.Context, url, root string, a dbQueryArgs) (string, error) {
	stmt := strings.TrimSpace(a.SQL)
	if !isReadOnly(stmt) {
		return "", fmt.Errorf("db_query only runs SELECT, WITH, PRAGMA or EXPLAIN; write changes as a migration and call db_migrate")
	}

	db, err := sqldb.Open(url, root)
	if err != nil {
		return "", err
	}
	defer db.Close()

	// query_only makes SQLite itself refuse writes, covering statements
	// like WITH ... DELETE that pass the prefix check.
	conn, err := db.Conn(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	if _, err := conn.ExecContext(ctx, "PRAGMA query_only=ON"); err != nil {
		return "", fmt.Errorf("enable read-only mode: %w", err)
	}

	rows, err := conn.QueryContext(ctx, stmt)
	if err != nil {
		return "", fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	res, err := collectRows(rows)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(res)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func collectRows(rows *sql.Rows) (queryResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return queryResult{}, err
	}
	res := queryResult{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		if len(res.Rows) == maxQueryRows {
			res.Truncated = true
			break
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return queryResult{}, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return queryResult{}, err
	}
	res.RowCount = len(res.Rows)
	return res, nil
}

func isReadOnly(stmt string) bool {
	lower := strings.ToLower(stmt)
	for _, p := range readOnlyPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// NewDBQueryTool creates the db_query tool for the database at url.
func NewDBQueryTool(root, url string) engine.Tool {
	return engine.Tool{
		Name:        "db_query",
		Description: fmt.Sprintf("Runs a read-only SQL query against the project database and returns up to %d rows. Use it to inspect schema (PRAGMA table_info) and verify data.", maxQueryRows),
		SchemaJSON:  dbQuerySchema,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			a, err := engine.BindArgs[dbQueryArgs]("db_query", dbQuerySchema, args)
			if err != nil {
				return "", err
			}
			return dbQueryImpl(ctx, url, filesystem.Root(a.ProjectPath, root), a)
		},
		Metadata: engine.ToolMetadata{
			Category: "database",
			Tags:     []string{"read-only"},
		},
	}
}

type dbMigrateArgs struct {
	ProjectPath string `json:"projectPath"`
	Dir         string `json:"dir"`
}

const dbMigrateSchema = `{
	"type": "object",
	"properties": {
		"projectPath": {"type": "string", "description": "Project root (set automatically)"},
		"dir": {"type": "string", "description": "Migrations directory relative to the project root (default: migrations)"}
	}
}`

type migrateResult struct {
	Dir     string          `json:"dir"`
	Applied []sqldb.Applied `json:"applied"`
	Count   int             `json:"count"`
}

func dbMigrateImpl(ctx context.Context, url, root string, a dbMigrateArgs) (string, error) {
	rel := a.Dir
	if rel == "" {
		rel = sqldb.DefaultMigrationsDir
	}
	dir, err := filesystem.Resolve(root, rel)
	if err != nil {
		return "", err
	}

	db, err := sqldb.Open(url, root)
	if err != nil {
		return "", err
	}
	defer db.Close()

	applied, err := sqldb.Migrate(ctx, db, dir)
	if err != nil {
		return "", err
	}
	if applied == nil {
		applied = []sqldb.Applied{}
	}
	out, err := json.Marshal(migrateResult{Dir: filepath.ToSlash(rel), Applied: applied, Count: len(applied)})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// NewDBMigrateTool creates the db_migrate tool for the database at url.
func NewDBMigrateTool(root, url string) engine.Tool {
	return engine.Tool{
		Name:        "db_migrate",
		Description: "Applies pending goose SQL migrations (files like migrations/00001_create_users.sql with -- +goose Up / -- +goose Down sections) to the project database.",
		SchemaJSON:  dbMigrateSchema,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			a, err := engine.BindArgs[dbMigrateArgs]("db_migrate", dbMigrateSchema, args)
			if err != nil {
				return "", err
			}
			return dbMigrateImpl(ctx, url, filesystem.Root(a.ProjectPath, root), a)
		},
		Metadata: engine.ToolMetadata{
			Category: "database",
			Tags:     []string{"write", "side-effect"},
		},
	}
}
