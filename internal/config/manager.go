package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Manager locates and writes the per-user configuration file.
type Manager struct {
	configDir string
}

// NewManager creates a manager rooted at the user config directory.
func NewManager() (*Manager, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user config dir: %w", err)
	}
	return &Manager{configDir: filepath.Join(configDir, "autobuild")}, nil
}

// NewManagerAt creates a manager rooted at dir.
func NewManagerAt(dir string) *Manager {
	return &Manager{configDir: dir}
}

// GetConfigPath returns the absolute path to config.yaml.
func (m *Manager) GetConfigPath() string {
	return filepath.Join(m.configDir, "config.yaml")
}

// Exists checks if the configuration file has been created.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.GetConfigPath())
	return err == nil
}

// Save writes cfg as YAML. The file may hold an API key, so it is
// readable by the owner only.
func (m *Manager) Save(cfg Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	if err := os.MkdirAll(m.configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	v := viper.New()
	v.Set("llm", map[string]any{
		"provider":          cfg.LLM.Provider,
		"model":             cfg.LLM.Model,
		"api_key":           cfg.LLM.APIKey,
		"base_url":          cfg.LLM.BaseURL,
		"max_output_tokens": cfg.LLM.MaxOutputTokens,
		"temperature":       cfg.LLM.Temperature,
	})
	v.Set("agent", map[string]any{
		"max_iterations":        cfg.Agent.MaxIterations,
		"max_context_tokens":    cfg.Agent.MaxContextTokens,
		"compression_threshold": cfg.Agent.CompressionThreshold,
		"keep_recent":           cfg.Agent.KeepRecent,
		"empty_response_limit":  cfg.Agent.EmptyResponseLimit,
	})
	v.Set("retry", map[string]any{
		"max_retries": cfg.Retry.MaxRetries,
		"base_delay":  cfg.Retry.BaseDelay.String(),
	})
	v.Set("sandbox", map[string]any{
		"mode":        cfg.Sandbox.Mode,
		"image":       cfg.Sandbox.Image,
		"cpu":         cfg.Sandbox.CPU,
		"memory":      cfg.Sandbox.Memory,
		"cmd_timeout": cfg.Sandbox.CmdTimeout.String(),
	})
	v.Set("debug", cfg.Debug)

	path := m.GetConfigPath()
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("failed to restrict config file: %w", err)
	}
	return nil
}
