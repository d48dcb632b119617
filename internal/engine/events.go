package engine

import (
	"context"
	"time"
)

// EventKind names a progress event.
type EventKind string

const (
	EventIterationStart EventKind = "iteration_start"
	EventBeforeLLM      EventKind = "before_llm"
	EventAfterLLM       EventKind = "after_llm"
	EventToolStart      EventKind = "tool_start"
	EventToolDone       EventKind = "tool_done"
	EventRetryAttempt   EventKind = "retry_attempt"
	EventRetryExhausted EventKind = "retry_exhausted"
	EventCompaction     EventKind = "compaction"
	EventError          EventKind = "error"
	EventDone           EventKind = "done"
)

type Event struct {
	Kind      EventKind `json:"kind"`
	Iteration int       `json:"iteration"`
	Data      any       `json:"data,omitempty"`
}

// EventHook bridges engine progress onto a channel. Sends never block the
// loop: when the consumer falls behind, events are dropped.
type EventHook struct{ Ch chan<- Event }

func (h EventHook) emit(st *State, kind EventKind, data any) {
	select {
	case h.Ch <- Event{Kind: kind, Iteration: st.Iteration, Data: data}:
	default:
	}
}

func (h EventHook) OnIterationStart(_ context.Context, st *State) {
	h.emit(st, EventIterationStart, map[string]int{"remaining": st.IterationsRemaining()})
}
func (h EventHook) OnBeforeLLM(_ context.Context, st *State, req Request) {
	h.emit(st, EventBeforeLLM, map[string]int{"turns": len(req.Turns), "tools": len(req.Tools)})
}
func (h EventHook) OnAfterLLM(_ context.Context, st *State, r *Response) {
	h.emit(st, EventAfterLLM, map[string]any{
		"finish":     r.FinishReason,
		"tool_calls": len(r.ToolCalls),
		"text":       r.Text,
	})
}
func (h EventHook) OnToolCall(_ context.Context, st *State, c ToolCall) {
	h.emit(st, EventToolStart, map[string]any{"tool": c.Name, "args": c.Args})
}
func (h EventHook) OnToolResult(_ context.Context, st *State, c ToolCall, result string) {
	h.emit(st, EventToolDone, map[string]any{
		"tool":   c.Name,
		"error":  IsToolError(result),
		"output": preview(result, 400),
	})
}
func (h EventHook) OnRetryAttempt(_ context.Context, st *State, attempt int, maxRetries int, delay time.Duration, err error) {
	h.emit(st, EventRetryAttempt, map[string]any{
		"attempt":    attempt,
		"maxRetries": maxRetries,
		"delay":      delay.String(),
		"error":      err.Error(),
	})
}
func (h EventHook) OnRetryExhausted(_ context.Context, st *State, err error) {
	h.emit(st, EventRetryExhausted, err.Error())
}
func (h EventHook) OnCompaction(_ context.Context, st *State, kind CompactionKind, before, after int) {
	h.emit(st, EventCompaction, map[string]any{"kind": kind, "before": before, "after": after})
}
func (h EventHook) OnIterationError(_ context.Context, st *State, err error) {
	h.emit(st, EventError, err.Error())
}
func (h EventHook) OnDone(_ context.Context, st *State) {
	h.emit(st, EventDone, map[string]any{
		"status":       st.Status,
		"completed_by": st.CompletedBy,
		"usage":        st.Totals,
	})
}
