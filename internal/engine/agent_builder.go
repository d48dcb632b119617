package engine

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ChamsBouzaiene/autobuild/internal/project"
	"github.com/ChamsBouzaiene/autobuild/internal/prompts"
)

// AgentBuilder helps construct an Agent with a fluent API.
type AgentBuilder struct {
	config      AgentConfig
	llm         LLMClient
	tools       ToolRegistry
	hooks       Hooks
	system      string
	customRules string
	store       project.SummaryStore
	tokenizer   Tokenizer
}

// NewAgentBuilder creates a new agent builder with default configuration.
func NewAgentBuilder() *AgentBuilder {
	return &AgentBuilder{
		config: DefaultAgentConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *AgentBuilder) WithConfig(cfg AgentConfig) *AgentBuilder {
	b.config = cfg
	return b
}

// WithModel sets the model name.
func (b *AgentBuilder) WithModel(model string) *AgentBuilder {
	b.config.Model = model
	return b
}

// WithLLM sets the LLM client.
func (b *AgentBuilder) WithLLM(llm LLMClient) *AgentBuilder {
	b.llm = llm
	return b
}

// WithTools sets the tool registry.
func (b *AgentBuilder) WithTools(reg ToolRegistry) *AgentBuilder {
	b.tools = reg
	return b
}

// WithMaxIterations sets the maximum number of model calls per run.
func (b *AgentBuilder) WithMaxIterations(n int) *AgentBuilder {
	b.config.MaxIterations = n
	return b
}

// WithMaxOutputTokens sets the maximum output tokens for LLM responses.
func (b *AgentBuilder) WithMaxOutputTokens(tokens int) *AgentBuilder {
	b.config.MaxOutputTokens = tokens
	return b
}

// WithBudget sets the budget configuration.
func (b *AgentBuilder) WithBudget(budget BudgetConfig) *AgentBuilder {
	b.config.Budget = budget
	return b
}

// WithRetryPolicy sets the retry policy for model calls.
func (b *AgentBuilder) WithRetryPolicy(p RetryPolicy) *AgentBuilder {
	b.config.Retry = p
	return b
}

// WithHooks sets custom hooks.
func (b *AgentBuilder) WithHooks(hooks Hooks) *AgentBuilder {
	b.hooks = hooks
	return b
}

// WithSystemPrompt overrides the registered system prompt.
func (b *AgentBuilder) WithSystemPrompt(system string) *AgentBuilder {
	b.system = system
	return b
}

// WithCustomRules sets custom agent rules from the project's .agent/rules file.
func (b *AgentBuilder) WithCustomRules(rules string) *AgentBuilder {
	b.customRules = rules
	return b
}

// WithSummaryStore sets where progress summaries are kept.
func (b *AgentBuilder) WithSummaryStore(s project.SummaryStore) *AgentBuilder {
	b.store = s
	return b
}

// WithTokenizer sets the tokenizer used when providers report no usage.
func (b *AgentBuilder) WithTokenizer(t Tokenizer) *AgentBuilder {
	b.tokenizer = t
	return b
}

// Build constructs the Agent instance.
func (b *AgentBuilder) Build() (*Agent, error) {
	if b.llm == nil {
		return nil, errors.New("LLM client not configured: use WithLLM")
	}
	if b.tools == nil {
		return nil, errors.New("tools not configured: use WithTools")
	}
	if b.config.MaxIterations < 1 {
		return nil, fmt.Errorf("max iterations must be at least 1, got %d", b.config.MaxIterations)
	}

	system := b.system
	if system == "" {
		pb, err := prompts.NewLatestPromptBuilder(prompts.DefaultRegistry(), prompts.SystemID)
		if err != nil {
			return nil, fmt.Errorf("failed to create prompt builder: %w", err)
		}
		system, err = pb.BuildWithRules(b.customRules)
		if err != nil {
			return nil, fmt.Errorf("failed to build prompt: %w", err)
		}
		if b.customRules != "" {
			log.Info().Int("bytes", len(b.customRules)).Msg("injected custom rules from " + project.AgentDir + "/" + project.RulesFile)
		}
	}

	if b.store == nil {
		b.store = project.FileSummaryStore{}
	}
	if b.tokenizer == nil {
		b.tokenizer = DefaultTokenizer{}
	}
	if b.hooks == nil {
		b.hooks = Hooks{LoggerHook{L: log.Logger, Tokenizer: b.tokenizer}}
	}
	if b.config.Budget.MaxContextTokens == 0 {
		b.config.Budget.MaxContextTokens = ContextLimitFor(b.config.Model)
	}

	a := &Agent{
		id:        uuid.NewString(),
		llm:       b.llm,
		tools:     b.tools,
		config:    b.config,
		hooks:     b.hooks,
		system:    system,
		store:     b.store,
		tokenizer: b.tokenizer,
	}
	a.client = a.newRetryingClient()

	logInitialConfiguration(a)
	return a, nil
}

// logInitialConfiguration logs the model, budget and tool summary once.
func logInitialConfiguration(a *Agent) {
	systemTokens, _ := a.tokenizer.CountTokens(a.system, a.config.Model)

	log.Info().
		Str("session", a.id).
		Str("model", a.config.Model).
		Str("effort", string(ReasoningEffortFor(a.config.Model))).
		Int("max_iterations", a.config.MaxIterations).
		Int("context_tokens", a.config.Budget.MaxContextTokens).
		Int("system_tokens", systemTokens).
		Strs("tools", a.tools.Names()).
		Strs("categories", a.tools.Categories()).
		Strs("side_effects", a.tools.Tagged("side-effect")).
		Msg("agent configured")
}
