package providers

import "github.com/ChamsBouzaiene/autobuild/internal/engine"

// callTracker remembers which tool calls are still in the conversation.
// Truncation keeps the first turn plus a recent window, so a window can
// open on tool results whose calls were cut; OpenAI and Anthropic reject
// those with a 400 instead of ignoring them.
type callTracker struct {
	ids   map[string]bool
	names map[string]bool
}

func newCallTracker() *callTracker {
	return &callTracker{ids: make(map[string]bool), names: make(map[string]bool)}
}

// observe records the calls in a model turn.
func (c *callTracker) observe(t engine.Turn) {
	for _, tc := range t.ToolCalls() {
		if tc.ID != "" {
			c.ids[tc.ID] = true
		}
		c.names[tc.Name] = true
	}
}

// answered reports whether r matches an earlier call: by ID when the
// result carries one, by tool name otherwise.
func (c *callTracker) answered(r *engine.ToolResult) bool {
	if r.CallID != "" {
		return c.ids[r.CallID]
	}
	return c.names[r.Name]
}

// orphanText renders a result whose call is gone as plain user text.
func orphanText(r *engine.ToolResult) string {
	return r.Name + ": " + r.Result
}
