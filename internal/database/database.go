// Package database opens the SQLite database a task targets and applies
// its goose migrations.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// DefaultMigrationsDir is where migrations live relative to the project.
const DefaultMigrationsDir = "migrations"

// ErrUnsupportedURL is returned for database URLs other than SQLite files.
var ErrUnsupportedURL = errors.New("unsupported database URL")

// ResolvePath turns a database URL into a filesystem path. Accepted forms
// are file:path, sqlite:path, sqlite://path and a bare path; relative paths
// are taken from root.
func ResolvePath(url, root string) (string, error) {
	url = strings.TrimSpace(url)
	path := url
	switch {
	case url == "":
		return "", fmt.Errorf("%w: empty", ErrUnsupportedURL)
	case strings.HasPrefix(url, "sqlite://"):
		path = strings.TrimPrefix(url, "sqlite://")
	case strings.HasPrefix(url, "sqlite:"):
		path = strings.TrimPrefix(url, "sqlite:")
	case strings.HasPrefix(url, "file:"):
		path = strings.TrimPrefix(url, "file:")
	case strings.Contains(url, "://"):
		return "", fmt.Errorf("%w: %s (only SQLite files are supported)", ErrUnsupportedURL, url)
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return "", fmt.Errorf("%w: %s has no file path", ErrUnsupportedURL, url)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	return filepath.Clean(path), nil
}

// Open opens the SQLite database named by url, creating the file and its
// directory if needed.
func Open(url, root string) (*sql.DB, error) {
	path, err := ResolvePath(url, root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func applyPragmas(db *sql.DB) error {
	stmts := []string{
		"PRAGMA foreign_keys=ON;",
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			if stmt == "PRAGMA journal_mode=WAL;" {
				log.Warn().Err(err).Msg("sqlite: WAL mode not enabled")
				continue
			}
			return fmt.Errorf("apply pragma %q: %w", stmt, err)
		}
	}
	return nil
}

// Applied describes one migration that ran.
type Applied struct {
	Version  int64         `json:"version"`
	Source   string        `json:"source"`
	Duration time.Duration `json:"duration_ns"`
}

// Migrate applies every pending .sql migration in dir. A directory without
// migrations is not an error.
func Migrate(ctx context.Context, db *sql.DB, dir string) ([]Applied, error) {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, os.DirFS(dir))
	if errors.Is(err, goose.ErrNoMigrations) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load migrations from %s: %w", dir, err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	applied := make([]Applied, 0, len(results))
	for _, r := range results {
		a := Applied{Duration: r.Duration}
		if r.Source != nil {
			a.Version = r.Source.Version
			a.Source = r.Source.Path
		}
		applied = append(applied, a)
	}
	log.Debug().Int("count", len(applied)).Str("dir", dir).Msg("Migrations applied")
	return applied, nil
}
