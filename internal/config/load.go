package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/ChamsBouzaiene/autobuild/internal/project"
)

// EnvPrefix prefixes every environment override, e.g. AUTOBUILD_LLM_MODEL.
const EnvPrefix = "AUTOBUILD"

// providerKeyEnv lists the conventional API key variable per provider.
var providerKeyEnv = map[string]string{
	"gemini":    "GEMINI_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"kimi":      "KIMI_API_KEY",
	"deepseek":  "DEEPSEEK_API_KEY",
	"groq":      "GROQ_API_KEY",
}

// Load resolves the configuration for workDir. Precedence, highest first:
// values already set on v (bound flags), AUTOBUILD_* environment, the
// config file, then Defaults. explicitPath must exist when given; the
// discovered files are optional.
func Load(v *viper.Viper, workDir, explicitPath string) (Config, error) {
	setDefaults(v, Defaults())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := ResolvePath(workDir, explicitPath)
	if err != nil {
		return Config{}, err
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if cfg.LLM.APIKey == "" {
		if env, ok := providerKeyEnv[cfg.LLM.Provider]; ok {
			cfg.LLM.APIKey = os.Getenv(env)
		}
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = DefaultModel(cfg.LLM.Provider)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ResolvePath picks the config file: the explicit path, then the project's
// .agent/config.yaml, then the user config. An empty result means none exist.
func ResolvePath(workDir, explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicitPath, err)
		}
		return explicitPath, nil
	}

	if workDir != "" && project.ConfigExists(workDir) {
		return project.ConfigPath(workDir), nil
	}

	m, err := NewManager()
	if err != nil {
		return "", nil
	}
	if m.Exists() {
		return m.GetConfigPath(), nil
	}
	return "", nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.base_url", d.LLM.BaseURL)
	v.SetDefault("llm.max_output_tokens", d.LLM.MaxOutputTokens)
	v.SetDefault("llm.temperature", d.LLM.Temperature)

	v.SetDefault("agent.max_iterations", d.Agent.MaxIterations)
	v.SetDefault("agent.max_context_tokens", d.Agent.MaxContextTokens)
	v.SetDefault("agent.compression_threshold", d.Agent.CompressionThreshold)
	v.SetDefault("agent.keep_recent", d.Agent.KeepRecent)
	v.SetDefault("agent.empty_response_limit", d.Agent.EmptyResponseLimit)

	v.SetDefault("retry.max_retries", d.Retry.MaxRetries)
	v.SetDefault("retry.base_delay", d.Retry.BaseDelay)

	v.SetDefault("sandbox.mode", d.Sandbox.Mode)
	v.SetDefault("sandbox.image", d.Sandbox.Image)
	v.SetDefault("sandbox.cpu", d.Sandbox.CPU)
	v.SetDefault("sandbox.memory", d.Sandbox.Memory)
	v.SetDefault("sandbox.cmd_timeout", d.Sandbox.CmdTimeout)

	v.SetDefault("debug", d.Debug)
}
