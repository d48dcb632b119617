// Package config loads autobuild settings from flags, environment and
// config files.
package config

import "time"

// Config is the full runtime configuration.
type Config struct {
	LLM     LLMConfig     `json:"llm"     mapstructure:"llm"`
	Agent   AgentConfig   `json:"agent"   mapstructure:"agent"`
	Retry   RetryConfig   `json:"retry"   mapstructure:"retry"`
	Sandbox SandboxConfig `json:"sandbox" mapstructure:"sandbox"`
	Debug   bool          `json:"debug"   mapstructure:"debug"`
}

type LLMConfig struct {
	Provider        string  `json:"provider"                    mapstructure:"provider"`
	Model           string  `json:"model,omitempty"             mapstructure:"model"`
	APIKey          string  `json:"api_key,omitempty"           mapstructure:"api_key"`
	BaseURL         string  `json:"base_url,omitempty"          mapstructure:"base_url"`
	MaxOutputTokens int     `json:"max_output_tokens,omitempty" mapstructure:"max_output_tokens"`
	Temperature     float64 `json:"temperature,omitempty"       mapstructure:"temperature"`
}

type AgentConfig struct {
	MaxIterations        int     `json:"max_iterations"               mapstructure:"max_iterations"`
	MaxContextTokens     int     `json:"max_context_tokens,omitempty" mapstructure:"max_context_tokens"`
	CompressionThreshold float64 `json:"compression_threshold"        mapstructure:"compression_threshold"`
	KeepRecent           int     `json:"keep_recent"                  mapstructure:"keep_recent"`
	EmptyResponseLimit   int     `json:"empty_response_limit"         mapstructure:"empty_response_limit"`
}

type RetryConfig struct {
	MaxRetries int           `json:"max_retries" mapstructure:"max_retries"`
	BaseDelay  time.Duration `json:"base_delay"  mapstructure:"base_delay"`
}

type SandboxConfig struct {
	Mode       string        `json:"mode"                  mapstructure:"mode"`
	Image      string        `json:"image,omitempty"       mapstructure:"image"`
	CPU        string        `json:"cpu,omitempty"         mapstructure:"cpu"`
	Memory     string        `json:"memory,omitempty"      mapstructure:"memory"`
	CmdTimeout time.Duration `json:"cmd_timeout,omitempty" mapstructure:"cmd_timeout"`
}

// Defaults returns the built-in settings every other source overrides.
func Defaults() Config {
	return Config{
		LLM: LLMConfig{
			Provider:        "gemini",
			MaxOutputTokens: 8192,
			Temperature:     0.2,
		},
		Agent: AgentConfig{
			MaxIterations:        50,
			CompressionThreshold: 0.70,
			KeepRecent:           10,
			EmptyResponseLimit:   3,
		},
		Retry: RetryConfig{
			MaxRetries: 5,
			BaseDelay:  2 * time.Second,
		},
		Sandbox: SandboxConfig{
			Mode:       "auto",
			CPU:        "2",
			Memory:     "1g",
			CmdTimeout: 2 * time.Minute,
		},
	}
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	switch provider {
	case "openai":
		return "gpt-4o-mini"
	case "anthropic":
		return "claude-sonnet-4-20250514"
	case "deepseek":
		return "deepseek-chat"
	case "groq":
		return "llama-3.3-70b-versatile"
	case "kimi":
		return "kimi-k2-250711"
	case "ollama":
		return "llama3.1"
	case "lmstudio":
		return "local-model"
	default:
		return "gemini-2.5-pro"
	}
}
