package engine

import (
	"context"
	"time"
)

// Hooks fans every event out to each hook in order.
type Hooks []Hook

func (hs Hooks) OnIterationStart(ctx context.Context, st *State) {
	for _, h := range hs {
		h.OnIterationStart(ctx, st)
	}
}
func (hs Hooks) OnBeforeLLM(ctx context.Context, st *State, req Request) {
	for _, h := range hs {
		h.OnBeforeLLM(ctx, st, req)
	}
}
func (hs Hooks) OnAfterLLM(ctx context.Context, st *State, r *Response) {
	for _, h := range hs {
		h.OnAfterLLM(ctx, st, r)
	}
}
func (hs Hooks) OnToolCall(ctx context.Context, st *State, c ToolCall) {
	for _, h := range hs {
		h.OnToolCall(ctx, st, c)
	}
}
func (hs Hooks) OnToolResult(ctx context.Context, st *State, c ToolCall, s string) {
	for _, h := range hs {
		h.OnToolResult(ctx, st, c, s)
	}
}
func (hs Hooks) OnRetryAttempt(ctx context.Context, st *State, attempt int, maxRetries int, delay time.Duration, err error) {
	for _, h := range hs {
		h.OnRetryAttempt(ctx, st, attempt, maxRetries, delay, err)
	}
}
func (hs Hooks) OnRetryExhausted(ctx context.Context, st *State, err error) {
	for _, h := range hs {
		h.OnRetryExhausted(ctx, st, err)
	}
}
func (hs Hooks) OnCompaction(ctx context.Context, st *State, kind CompactionKind, before, after int) {
	for _, h := range hs {
		h.OnCompaction(ctx, st, kind, before, after)
	}
}
func (hs Hooks) OnIterationError(ctx context.Context, st *State, err error) {
	for _, h := range hs {
		h.OnIterationError(ctx, st, err)
	}
}
func (hs Hooks) OnDone(ctx context.Context, st *State) {
	for _, h := range hs {
		h.OnDone(ctx, st)
	}
}
