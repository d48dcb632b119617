package providers

import (
	"fmt"
	"testing"

	anthropic "github.com/liushuangls/go-anthropic/v2"
	openai "github.com/meguminnnnnnnnn/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChamsBouzaiene/autobuild/internal/engine"
)

// truncatedTurns builds seed + eight call/result rounds with a recovery
// turn before the last one, then keeps the seed and the last ten turns.
// The window opens on the result of round 4, whose call was dropped.
func truncatedTurns(t *testing.T) []engine.Turn {
	t.Helper()
	conv := engine.NewConversation(engine.UserText("Task: build it"))
	for i := 1; i <= 8; i++ {
		if i == 8 {
			conv.Append(engine.UserText("Error occurred: boom. Please try a different approach."))
		}
		call := engine.ToolCall{ID: fmt.Sprintf("c%d", i), Name: "list_files", Args: map[string]any{}}
		conv.Append(engine.Turn{Role: engine.RoleModel, Parts: []engine.Part{engine.CallPart(call)}})
		conv.Append(engine.Turn{Role: engine.RoleUser, Parts: []engine.Part{
			engine.ResultPart(engine.ToolResult{CallID: call.ID, Name: call.Name, Result: fmt.Sprintf("files %d", i)}),
		}})
	}
	conv.TruncateToRecent(10)

	turns := conv.Turns()
	require.Len(t, turns, 11)
	require.Equal(t, engine.RoleUser, turns[1].Role)
	require.Equal(t, engine.PartToolResult, turns[1].Parts[0].Kind)
	require.Equal(t, "c4", turns[1].Parts[0].Result.CallID)
	return turns
}

func TestOpenAIMessages_TruncatedWindow(t *testing.T) {
	msgs := openAIMessages(truncatedTurns(t))

	require.Equal(t, openai.ChatMessageRoleUser, msgs[0].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, msgs[1].Role, "result without its call becomes user text")
	assert.Equal(t, "list_files: files 4\n", msgs[1].Content)
	assert.Empty(t, msgs[1].ToolCallID)

	calls := map[string]bool{}
	for _, m := range msgs {
		for _, tc := range m.ToolCalls {
			calls[tc.ID] = true
		}
		if m.Role == openai.ChatMessageRoleTool {
			assert.True(t, calls[m.ToolCallID], "tool message %s answers an earlier call", m.ToolCallID)
		}
	}
}

func TestAnthropicMessages_TruncatedWindow(t *testing.T) {
	msgs := anthropicMessages(truncatedTurns(t))

	orphan := msgs[1]
	assert.Equal(t, anthropic.RoleUser, orphan.Role)
	require.Len(t, orphan.Content, 1)
	assert.Equal(t, anthropic.MessagesContentTypeText, orphan.Content[0].Type)
	require.NotNil(t, orphan.Content[0].Text)
	assert.Equal(t, "list_files: files 4", *orphan.Content[0].Text)

	last := msgs[len(msgs)-1]
	require.Len(t, last.Content, 1)
	assert.NotEqual(t, anthropic.MessagesContentTypeText, last.Content[0].Type, "paired results stay tool_result blocks")
}

func TestGeminiContents_TruncatedWindow(t *testing.T) {
	contents := geminiContents(truncatedTurns(t))

	orphan := contents[1]
	require.Len(t, orphan.Parts, 1)
	assert.Nil(t, orphan.Parts[0].FunctionResponse)
	assert.Equal(t, "list_files: files 4", orphan.Parts[0].Text)

	last := contents[len(contents)-1]
	require.NotNil(t, last.Parts[0].FunctionResponse)
	assert.Equal(t, "c8", last.Parts[0].FunctionResponse.ID)
}

func TestCallTracker_MatchesByNameWithoutID(t *testing.T) {
	c := newCallTracker()
	c.observe(engine.Turn{Role: engine.RoleModel, Parts: []engine.Part{
		engine.CallPart(engine.ToolCall{Name: "grep"}),
	}})
	assert.True(t, c.answered(&engine.ToolResult{Name: "grep"}))
	assert.False(t, c.answered(&engine.ToolResult{Name: "read_file"}))
	assert.False(t, c.answered(&engine.ToolResult{CallID: "x", Name: "grep"}))
}
