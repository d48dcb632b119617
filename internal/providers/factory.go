package providers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ChamsBouzaiene/autobuild/internal/config"
	"github.com/ChamsBouzaiene/autobuild/internal/engine"
)

// compatible describes an OpenAI-compatible endpoint.
type compatible struct {
	baseURL    string
	needsKey   bool
	defaultKey string
}

var compatibleEndpoints = map[string]compatible{
	"openai":   {needsKey: true},
	"kimi":     {baseURL: "https://ark.ap-southeast.bytepluses.com/api/v3", needsKey: true},
	"deepseek": {baseURL: "https://api.deepseek.com/v1", needsKey: true},
	"groq":     {baseURL: "https://api.groq.com/openai/v1", needsKey: true},
	"ollama":   {baseURL: "http://localhost:11434/v1", defaultKey: "ollama"},
	"lmstudio": {baseURL: "http://localhost:1234/v1", defaultKey: "lm-studio"},
}

// Supported lists every provider name New accepts.
func Supported() []string {
	names := []string{"gemini", "anthropic"}
	for name := range compatibleEndpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates the LLM client selected by cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig) (engine.LLMClient, error) {
	provider := strings.ToLower(cfg.Provider)

	switch provider {
	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY not set")
		}
		return NewGeminiClient(ctx, cfg.APIKey)

	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
		return NewAnthropicClient(cfg.APIKey)
	}

	ep, ok := compatibleEndpoints[provider]
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: %s)", cfg.Provider, strings.Join(Supported(), ", "))
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		if ep.needsKey {
			return nil, fmt.Errorf("%s_API_KEY not set", strings.ToUpper(provider))
		}
		apiKey = ep.defaultKey
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = ep.baseURL
	}

	client, err := NewOpenAIClient(apiKey, baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", provider, err)
	}
	return client, nil
}
