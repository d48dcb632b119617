package session

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNotFound is returned when a project has no saved sessions.
var ErrNotFound = errors.New("session not found")

// Store keeps one JSON file per run, grouped by project:
//
//	<base>/sessions/<repo hash>/<session id>.json
type Store struct {
	basePath string
}

// NewStore roots a store at configPath/sessions.
func NewStore(configPath string) *Store {
	return &Store{basePath: filepath.Join(configPath, "sessions")}
}

// NewDefaultStore roots a store in the user config directory.
func NewDefaultStore() (*Store, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user config dir: %w", err)
	}
	return NewStore(filepath.Join(dir, "autobuild")), nil
}

// RepoHash scopes sessions to a project directory.
func (s *Store) RepoHash(workDir string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(workDir)))
	return hex.EncodeToString(sum[:6])
}

func (s *Store) projectDir(workDir string) string {
	return filepath.Join(s.basePath, s.RepoHash(workDir))
}

// Save writes session, replacing any earlier record with the same ID.
func (s *Store) Save(session *Session) error {
	if session.ID == "" {
		return errors.New("session has no id")
	}
	session.RepoHash = s.RepoHash(session.WorkDir)

	dir := s.projectDir(session.WorkDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, session.ID+".json"), data, 0o644)
}

// Load reads one session of the project in workDir.
func (s *Store) Load(id, workDir string) (*Session, error) {
	var sess Session
	if err := readJSON(filepath.Join(s.projectDir(workDir), id+".json"), &sess); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	return &sess, nil
}

// Latest returns the most recently updated session for workDir.
func (s *Store) Latest(workDir string) (*Session, error) {
	metas, err := s.List(workDir)
	if err != nil {
		return nil, err
	}
	if len(metas) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNotFound, workDir)
	}
	return s.Load(metas[0].ID, workDir)
}

// List returns the project's sessions, newest first. Unreadable files are
// skipped.
func (s *Store) List(workDir string) ([]SessionMeta, error) {
	entries, err := os.ReadDir(s.projectDir(workDir))
	if errors.Is(err, fs.ErrNotExist) {
		return []SessionMeta{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list session directory: %w", err)
	}

	metas := make([]SessionMeta, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		// SessionMeta has no history field, so the turns are skipped
		// rather than materialised.
		var m SessionMeta
		if err := readJSON(filepath.Join(s.projectDir(workDir), e.Name()), &m); err != nil || m.ID == "" {
			continue
		}
		metas = append(metas, m)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].UpdatedAt.After(metas[j].UpdatedAt) })
	return metas, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
