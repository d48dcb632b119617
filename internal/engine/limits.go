package engine

import "strings"

// DefaultContextTokens is used for models not recognised by ContextLimitFor.
const DefaultContextTokens = 128000

// ContextLimitFor returns the context window for a model name.
// The value is the provider's advertised window; compaction applies its own
// threshold on top.
func ContextLimitFor(model string) int {
	modelLower := strings.ToLower(model)

	switch {
	// Gemini 1.5/2.x/3 (1M context)
	case strings.Contains(modelLower, "gemini"):
		return 1000000

	// Claude (200k context)
	case strings.Contains(modelLower, "claude") || strings.Contains(modelLower, "sonnet") || strings.Contains(modelLower, "opus"):
		return 200000

	case strings.Contains(modelLower, "kimi"):
		return 200000

	case strings.Contains(modelLower, "gpt-4.1"):
		return 1000000

	case strings.Contains(modelLower, "gpt-5"):
		return 400000

	// GPT-4o (128k context)
	case strings.Contains(modelLower, "gpt-4o"), strings.HasPrefix(modelLower, "o1"), strings.HasPrefix(modelLower, "o3"):
		return 128000

	case strings.Contains(modelLower, "deepseek"):
		return 64000
	}

	return DefaultContextTokens
}

// ReasoningEffortFor maps a model name to a reasoning effort: "pro" models
// get high effort, everything else a moderate one.
func ReasoningEffortFor(model string) ReasoningEffort {
	if strings.Contains(strings.ToLower(model), "pro") {
		return EffortHigh
	}
	return EffortMedium
}
