package engine

// AgentConfig holds configuration for an agent instance.
type AgentConfig struct {
	Model              string
	MaxIterations      int
	EmptyResponseLimit int // consecutive empty replies treated as completion
	MaxOutputTokens    int // 0 = provider default
	Temperature        float32
	Budget             BudgetConfig
	Retry              RetryPolicy
}

// DefaultAgentConfig returns a default agent configuration.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		Model:              "gemini-2.5-pro",
		MaxIterations:      50,
		EmptyResponseLimit: 3,
		MaxOutputTokens:    8192,
		Temperature:        0.2,
		Budget:             DefaultBudgetConfig(),
		Retry:              DefaultLLMRetryPolicy(),
	}
}
