package engine

import (
	"fmt"
	"strings"
)

// Conversation is the ordered turn history sent to the model on every call.
// It is owned by a single agent loop and is not safe for concurrent use.
type Conversation struct {
	turns []Turn
}

// NewConversation creates a conversation seeded with the given turns.
func NewConversation(seed ...Turn) *Conversation {
	c := &Conversation{}
	c.turns = append(c.turns, seed...)
	return c
}

// Append adds a turn at the end.
func (c *Conversation) Append(t Turn) {
	c.turns = append(c.turns, t)
}

// Len returns the number of turns.
func (c *Conversation) Len() int { return len(c.turns) }

// Turns returns a copy of the turn slice.
func (c *Conversation) Turns() []Turn {
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// First returns the seed turn, if any.
func (c *Conversation) First() (Turn, bool) {
	if len(c.turns) == 0 {
		return Turn{}, false
	}
	return c.turns[0], true
}

// TruncateToRecent keeps the first turn plus the last n turns.
// Conversations of n+1 turns or fewer are left untouched.
func (c *Conversation) TruncateToRecent(n int) {
	if n < 0 {
		n = 0
	}
	if len(c.turns) <= n+1 {
		return
	}
	kept := make([]Turn, 0, n+1)
	kept = append(kept, c.turns[0])
	kept = append(kept, c.turns[len(c.turns)-n:]...)
	c.turns = kept
}

// ReplaceWithSummary discards all history and leaves a single user turn that
// restates the task and carries the progress summary.
func (c *Conversation) ReplaceWithSummary(summary, task string) {
	c.turns = []Turn{UserText(ReseedText(summary, task))}
}

// ReseedText renders the single turn used after a summary replacement.
func ReseedText(summary, task string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n\n", strings.TrimSpace(task))
	b.WriteString("## Progress summary\n\n")
	b.WriteString(strings.TrimSpace(summary))
	b.WriteString("\n\nContinue from where you left off.")
	return b.String()
}
