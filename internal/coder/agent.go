// Package coder assembles the coding agent: the model client, the tool set
// and the engine configuration for one project.
package coder

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ChamsBouzaiene/autobuild/internal/config"
	"github.com/ChamsBouzaiene/autobuild/internal/engine"
	"github.com/ChamsBouzaiene/autobuild/internal/project"
	"github.com/ChamsBouzaiene/autobuild/internal/providers"
	"github.com/ChamsBouzaiene/autobuild/internal/sandbox"
	"github.com/ChamsBouzaiene/autobuild/internal/tools"
	"github.com/ChamsBouzaiene/autobuild/internal/tools/search"
)

// Params is everything NewAgent needs besides options.
type Params struct {
	Config      config.Config
	WorkDir     string
	DatabaseURL string
	Runner      sandbox.Runner
	Index       search.Index // nil disables search_code
	Hooks       engine.Hooks // appended after the logger hook
}

// Option configures the agent before it is built.
type Option func(*settings)

type settings struct {
	llm   engine.LLMClient
	extra []engine.Tool
}

// WithTool adds a custom tool to the agent's registry.
func WithTool(tool engine.Tool) Option {
	return func(s *settings) { s.extra = append(s.extra, tool) }
}

// WithLLM overrides the client the configured provider would create.
func WithLLM(llm engine.LLMClient) Option {
	return func(s *settings) { s.llm = llm }
}

// NewAgent creates a fully configured coding agent.
func NewAgent(ctx context.Context, p Params, opts ...Option) (*engine.Agent, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	registry, err := tools.NewToolRegistry(tools.Deps{
		WorkDir:     p.WorkDir,
		Runner:      p.Runner,
		Index:       p.Index,
		DatabaseURL: p.DatabaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tool registry: %w", err)
	}
	for _, t := range s.extra {
		registry.Register(t)
	}

	llm := s.llm
	if llm == nil {
		llm, err = providers.New(ctx, p.Config.LLM)
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
	}

	tokenizer := engine.NewTiktokenTokenizer()
	hooks := engine.Hooks{engine.LoggerHook{L: log.Logger, Tokenizer: tokenizer}}
	hooks = append(hooks, p.Hooks...)

	builder := engine.NewAgentBuilder().
		WithConfig(AgentConfig(p.Config)).
		WithLLM(llm).
		WithTools(registry).
		WithHooks(hooks).
		WithTokenizer(tokenizer)

	// Load custom rules from .agent/rules if they exist
	rules, err := project.LoadRules(p.WorkDir)
	if err != nil {
		log.Warn().Err(err).Msg("ignoring unreadable project rules")
	} else if rules != "" {
		builder = builder.WithCustomRules(rules)
	}

	agent, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build coder agent: %w", err)
	}
	return agent, nil
}

// AgentConfig maps user configuration onto the engine's settings.
func AgentConfig(cfg config.Config) engine.AgentConfig {
	ac := engine.DefaultAgentConfig()
	if cfg.LLM.Model != "" {
		ac.Model = cfg.LLM.Model
	}
	if cfg.Agent.MaxIterations > 0 {
		ac.MaxIterations = cfg.Agent.MaxIterations
	}
	if cfg.Agent.EmptyResponseLimit > 0 {
		ac.EmptyResponseLimit = cfg.Agent.EmptyResponseLimit
	}
	if cfg.LLM.MaxOutputTokens > 0 {
		ac.MaxOutputTokens = cfg.LLM.MaxOutputTokens
	}
	ac.Temperature = float32(cfg.LLM.Temperature)

	ac.Budget.MaxContextTokens = cfg.Agent.MaxContextTokens
	if cfg.Agent.CompressionThreshold > 0 {
		ac.Budget.ThresholdFraction = cfg.Agent.CompressionThreshold
	}
	if cfg.Agent.KeepRecent > 0 {
		ac.Budget.KeepRecent = cfg.Agent.KeepRecent
	}

	if cfg.Retry.MaxRetries >= 0 {
		ac.Retry.MaxRetries = cfg.Retry.MaxRetries
	}
	if cfg.Retry.BaseDelay > 0 {
		ac.Retry.Backoff = engine.ExponentialBackoff(cfg.Retry.BaseDelay)
	}
	return ac
}
