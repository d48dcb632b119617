package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LoggerHook writes loop events to a zerolog logger.
type LoggerHook struct {
	L         zerolog.Logger
	Tokenizer Tokenizer // optional, used to size outgoing requests
}

func (h LoggerHook) OnIterationStart(_ context.Context, st *State) {
	h.L.Debug().Int("iter", st.Iteration).Int("remaining", st.IterationsRemaining()).Msg("iteration start")
}

func (h LoggerHook) OnBeforeLLM(_ context.Context, st *State, req Request) {
	ev := h.L.Debug().Int("iter", st.Iteration).Int("turns", len(req.Turns)).Int("tools", len(req.Tools)).
		Str("effort", string(req.ReasoningEffort))
	if h.Tokenizer != nil {
		ev = ev.Int("est_tokens", CountTokensForTurns(h.Tokenizer, req.Turns, req.Model))
	}
	ev.Msg("calling model")
}

func (h LoggerHook) OnAfterLLM(_ context.Context, st *State, r *Response) {
	h.L.Info().Int("iter", st.Iteration).
		Str("finish", string(r.FinishReason)).
		Int("tool_calls", len(r.ToolCalls)).
		Int("prompt_tokens", r.Usage.Prompt).
		Int("completion_tokens", r.Usage.Completion).
		Int("cumulative", st.Totals.Total).
		Msg("model responded")
	if text := preview(r.Text, 300); text != "" {
		h.L.Info().Msg("model: " + text)
	}
}

func (h LoggerHook) OnToolCall(_ context.Context, _ *State, c ToolCall) {
	h.L.Info().Str("tool", c.Name).Interface("args", c.Args).Msg("tool →")
}

func (h LoggerHook) OnToolResult(_ context.Context, _ *State, c ToolCall, result string) {
	if IsToolError(result) {
		h.L.Warn().Str("tool", c.Name).Msg(preview(result, 300))
		return
	}
	h.L.Debug().Str("tool", c.Name).Str("result", preview(result, 100)).Msg("tool ←")
}

func (h LoggerHook) OnRetryAttempt(_ context.Context, _ *State, attempt int, maxRetries int, delay time.Duration, err error) {
	h.L.Warn().Int("attempt", attempt).Int("max", maxRetries).Dur("delay", delay).Err(err).Msg("transient model error, retrying")
}

func (h LoggerHook) OnRetryExhausted(_ context.Context, _ *State, err error) {
	h.L.Error().Err(err).Msg("retries exhausted")
}

func (h LoggerHook) OnCompaction(_ context.Context, st *State, kind CompactionKind, before, after int) {
	h.L.Info().Str("kind", string(kind)).Int("before_turns", before).Int("after_turns", after).
		Int("last_tokens", st.LastObservedTokens).Msg("conversation compacted")
}

func (h LoggerHook) OnIterationError(_ context.Context, st *State, err error) {
	h.L.Error().Int("iter", st.Iteration).Err(err).Msg("iteration failed, asking model to try another approach")
}

func (h LoggerHook) OnDone(_ context.Context, st *State) {
	ev := h.L.Info()
	if st.Status == StatusIterationsExhausted {
		ev = h.L.Warn()
	}
	ev.Str("status", string(st.Status)).Str("by", string(st.CompletedBy)).
		Int("iterations", st.Iteration).Int("tokens", st.Totals.Total).Msg("run finished")
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return truncateChars(s, n) + "..."
}
