package engine

import (
	"context"
	"time"
)

// CompactionKind names the compaction path that ran.
type CompactionKind string

const (
	CompactionTruncate CompactionKind = "truncate"
	CompactionSummary  CompactionKind = "summary"
	CompactionFallback CompactionKind = "truncate_fallback"
)

type Hook interface {
	OnIterationStart(ctx context.Context, st *State)
	OnBeforeLLM(ctx context.Context, st *State, req Request)
	OnAfterLLM(ctx context.Context, st *State, resp *Response)
	OnToolCall(ctx context.Context, st *State, call ToolCall)
	OnToolResult(ctx context.Context, st *State, call ToolCall, result string)
	OnRetryAttempt(ctx context.Context, st *State, attempt int, maxRetries int, delay time.Duration, err error)
	OnRetryExhausted(ctx context.Context, st *State, err error)
	OnCompaction(ctx context.Context, st *State, kind CompactionKind, beforeTurns, afterTurns int)
	OnIterationError(ctx context.Context, st *State, err error)
	OnDone(ctx context.Context, st *State)
}

// NopHook lets you implement any hook you need.
type NopHook struct{}

func (NopHook) OnIterationStart(context.Context, *State)                               {}
func (NopHook) OnBeforeLLM(context.Context, *State, Request)                           {}
func (NopHook) OnAfterLLM(context.Context, *State, *Response)                          {}
func (NopHook) OnToolCall(context.Context, *State, ToolCall)                           {}
func (NopHook) OnToolResult(context.Context, *State, ToolCall, string)                 {}
func (NopHook) OnRetryAttempt(context.Context, *State, int, int, time.Duration, error) {}
func (NopHook) OnRetryExhausted(context.Context, *State, error)                        {}
func (NopHook) OnCompaction(context.Context, *State, CompactionKind, int, int)         {}
func (NopHook) OnIterationError(context.Context, *State, error)                        {}
func (NopHook) OnDone(context.Context, *State)                                         {}
