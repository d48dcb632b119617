package engine

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/ChamsBouzaiene/autobuild/internal/prompts"
)

// FinishToolName is the structured completion signal. A round that calls
// it executes normally and then ends the run.
const FinishToolName = "finish"

// run drives iterations until completion, exhaustion or cancellation.
// A failed iteration never ends the run; only ctx cancellation is returned
// as an error.
func (a *Agent) run(ctx context.Context) (Result, error) {
	st := a.state
	st.Status = StatusRunning

	for st.Iteration < st.MaxIterations {
		if ctx.Err() != nil {
			st.Status = StatusCancelled
			break
		}
		st.Iteration++
		a.hooks.OnIterationStart(ctx, st)

		done, err := a.iterate(ctx)
		if err != nil {
			if ctx.Err() != nil {
				st.Status = StatusCancelled
				break
			}
			a.recoverIteration(ctx, err)
			continue
		}
		if done {
			break
		}
	}

	if st.Status == StatusRunning {
		st.Status = StatusIterationsExhausted
	}
	a.hooks.OnDone(ctx, st)

	res := Result{
		Status:      st.Status,
		CompletedBy: st.CompletedBy,
		Iterations:  st.Iteration,
		Summary:     st.FinalText,
		Usage:       st.Totals,
	}
	if st.Status == StatusCancelled {
		return res, ctx.Err()
	}
	return res, nil
}

// iterate performs one model round. It returns done when the run should
// stop, and an error only for failures of the model call itself.
func (a *Agent) iterate(ctx context.Context) (bool, error) {
	st := a.state

	before := a.conv.Len()
	if a.budget.CompactIfNeeded(st, a.conv) {
		st.Compactions++
		a.hooks.OnCompaction(ctx, st, CompactionTruncate, before, a.conv.Len())
	}

	req := a.client.Request(a.conv.Turns())
	a.hooks.OnBeforeLLM(ctx, st, req)
	resp, err := a.client.Do(ctx, req)
	if err != nil {
		if IsRetryExhausted(err) {
			a.hooks.OnRetryExhausted(ctx, st, err)
		}
		return false, WrapWithContext(err, st.Iteration, "llm_call")
	}

	st.Totals.Prompt += resp.Usage.Prompt
	st.Totals.Completion += resp.Usage.Completion
	st.Totals.Total += resp.Usage.Total
	a.budget.Observe(st, resp.Usage, a.conv)
	a.hooks.OnAfterLLM(ctx, st, resp)

	if resp.Empty() {
		st.ConsecutiveEmpty++
		if st.ConsecutiveEmpty >= a.emptyLimit() {
			a.complete(CompletedBySilence, StatusStalled, "")
			return true, nil
		}
		return false, nil
	}
	st.ConsecutiveEmpty = 0

	text := strings.TrimSpace(resp.Text)
	if text != "" {
		st.FinalText = text
	}

	if len(resp.ToolCalls) == 0 {
		a.conv.Append(Turn{Role: RoleModel, Parts: []Part{TextPart(resp.Text)}})
		if DetectCompletion(text) {
			a.complete(CompletedBySentinel, StatusCompleted, text)
			return true, nil
		}
		if resp.FinishReason == FinishStop {
			a.complete(CompletedByStop, StatusCompleted, text)
			return true, nil
		}
		a.conv.Append(UserText(prompts.MustRender(prompts.NudgeID, nil)))
		return false, nil
	}

	calls := make([]ToolCall, len(resp.ToolCalls))
	for i, c := range resp.ToolCalls {
		calls[i] = PinPaths(c, st.WorkDir)
	}
	results := a.dispatch(ctx, calls)

	a.conv.Append(Turn{Role: RoleModel, Parts: modelParts(resp, calls)})
	resultParts := make([]Part, len(results))
	for i, r := range results {
		resultParts[i] = ResultPart(r)
	}
	a.conv.Append(Turn{Role: RoleUser, Parts: resultParts})

	for _, c := range calls {
		if c.Name == FinishToolName {
			summary, _ := c.Args["summary"].(string)
			if summary == "" {
				summary = text
			}
			a.complete(CompletedByFinishTool, StatusCompleted, summary)
			return true, nil
		}
	}
	if DetectCompletion(text) {
		a.complete(CompletedBySentinel, StatusCompleted, text)
		return true, nil
	}
	return false, nil
}

// dispatch runs all calls concurrently and returns results in call order.
func (a *Agent) dispatch(ctx context.Context, calls []ToolCall) []ToolResult {
	results := make([]ToolResult, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, c ToolCall) {
			defer wg.Done()
			a.hooks.OnToolCall(ctx, a.state, c)
			out := a.tools.Execute(ctx, c)
			a.hooks.OnToolResult(ctx, a.state, c, out)
			results[i] = ToolResult{CallID: c.ID, Name: c.Name, Result: out}
		}(i, call)
	}
	wg.Wait()

	return results
}

// recoverIteration handles a failed model call: oversized requests are
// compacted, anything else is reported back to the model as a user turn.
func (a *Agent) recoverIteration(ctx context.Context, err error) {
	st := a.state
	st.LastFailure = err.Error()

	if IsContextLength(err) {
		before := a.conv.Len()
		kind, recErr := a.budget.Recover(ctx, st, a.conv, a.task.Framing())
		st.Compactions++
		a.hooks.OnCompaction(ctx, st, kind, before, a.conv.Len())
		if recErr != nil {
			a.hooks.OnIterationError(ctx, st, recErr)
		}
		return
	}

	a.hooks.OnIterationError(ctx, st, err)
	msg := err.Error()
	var ec *EngineContextError
	if errors.As(err, &ec) {
		msg = ec.Err.Error()
	}
	a.conv.Append(UserText(prompts.MustRender(prompts.RecoverID, map[string]string{"error": msg})))
}

func (a *Agent) complete(by CompletedBy, status Status, summary string) {
	a.state.Status = status
	a.state.CompletedBy = by
	if summary != "" {
		a.state.FinalText = summary
	}
}

func (a *Agent) emptyLimit() int {
	if a.config.EmptyResponseLimit > 0 {
		return a.config.EmptyResponseLimit
	}
	return 3
}

// modelParts returns the parts to record for the model's turn. Provider raw
// parts are kept so signatures survive, with call arguments replaced by the
// pinned ones actually executed.
func modelParts(resp *Response, pinned []ToolCall) []Part {
	if len(resp.Parts) == 0 {
		parts := make([]Part, 0, len(pinned)+1)
		if strings.TrimSpace(resp.Text) != "" {
			parts = append(parts, TextPart(resp.Text))
		}
		for _, c := range pinned {
			parts = append(parts, CallPart(c))
		}
		return parts
	}

	parts := make([]Part, 0, len(resp.Parts))
	next := 0
	for _, p := range resp.Parts {
		if p.Kind == PartToolCall && next < len(pinned) {
			parts = append(parts, CallPart(pinned[next]))
			next++
			continue
		}
		parts = append(parts, p)
	}
	return parts
}
