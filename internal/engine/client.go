package engine

import (
	"context"
	"errors"
	"time"
)

// RetryingClient sends the whole conversation to the model for the next
// step, retrying transient provider failures under Policy.
type RetryingClient struct {
	LLM         LLMClient
	Policy      RetryPolicy
	Model       string
	System      string
	Tools       []ToolSchema
	MaxTokens   int
	Temperature float32

	// OnRetry, when set, is told about each retry before its wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Request builds the provider request for the given turns.
func (c *RetryingClient) Request(turns []Turn) Request {
	return Request{
		Model:           c.Model,
		System:          c.System,
		Turns:           turns,
		Tools:           c.Tools,
		ReasoningEffort: ReasoningEffortFor(c.Model),
		MaxTokens:       c.MaxTokens,
		Temperature:     c.Temperature,
	}
}

// Call asks the model for the next step. Non-transient errors are returned
// as soon as they happen; transient ones only after the policy gives up.
func (c *RetryingClient) Call(ctx context.Context, conv *Conversation) (*Response, error) {
	return c.Do(ctx, c.Request(conv.Turns()))
}

// Do sends a prepared request with retries.
func (c *RetryingClient) Do(ctx context.Context, req Request) (*Response, error) {
	if c.LLM == nil {
		return nil, errors.New("LLM client not configured")
	}
	return Retry(ctx, c.Policy, func(ctx context.Context) (*Response, error) {
		resp, err := c.LLM.Generate(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			resp = &Response{}
		}
		return resp, nil
	}, c.OnRetry)
}
