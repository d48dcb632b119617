package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// AgentDir is the per-project directory holding agent state.
	AgentDir = ".agent"
	// ConfigFile is the optional per-project configuration file.
	ConfigFile = "config.yaml"
	// RulesFile holds custom rules appended to the system prompt.
	RulesFile = "rules"
	// SummaryFile holds the latest progress summary.
	SummaryFile = "summary.md"
)

// ConfigPath returns the full path to the project config file.
func ConfigPath(repoRoot string) string {
	return filepath.Join(repoRoot, AgentDir, ConfigFile)
}

// SummaryPath returns the full path to the progress summary.
func SummaryPath(repoRoot string) string {
	return filepath.Join(repoRoot, AgentDir, SummaryFile)
}

func rulesPath(repoRoot string) string {
	return filepath.Join(repoRoot, AgentDir, RulesFile)
}

// ConfigExists checks if a project configuration file exists.
func ConfigExists(repoRoot string) bool {
	_, err := os.Stat(ConfigPath(repoRoot))
	return err == nil
}

// LoadRules reads custom agent rules from the .agent/rules file.
// Returns empty string and no error if the file does not exist.
func LoadRules(repoRoot string) (string, error) {
	return readOptional(rulesPath(repoRoot), "rules file")
}

// LoadSummary reads the saved progress summary.
// Returns empty string and no error if none was saved.
func LoadSummary(repoRoot string) (string, error) {
	s, err := readOptional(SummaryPath(repoRoot), "summary")
	return strings.TrimSpace(s), err
}

// SaveSummary overwrites the progress summary, creating .agent if needed.
func SaveSummary(repoRoot, summary string) error {
	dir := filepath.Join(repoRoot, AgentDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", AgentDir, err)
	}
	if err := os.WriteFile(SummaryPath(repoRoot), []byte(summary), 0644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

func readOptional(path, what string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", what, err)
	}
	return string(data), nil
}

// SummaryStore persists progress summaries for a working directory.
type SummaryStore interface {
	Load(workDir string) (string, error)
	Save(workDir, summary string) error
}

// FileSummaryStore keeps the summary at <workDir>/.agent/summary.md.
type FileSummaryStore struct{}

func (FileSummaryStore) Load(workDir string) (string, error) { return LoadSummary(workDir) }

func (FileSummaryStore) Save(workDir, summary string) error { return SaveSummary(workDir, summary) }
