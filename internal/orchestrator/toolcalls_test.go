package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgoodwin/taskmate/internal/tools"
)

func TestParseToolCallsCanonical(t *testing.T) {
	calls, cleaned := ParseToolCalls(
		`Let me add that. <tool>create_task</tool><params>{"description": "Buy milk", "priority": "high"}</params>`)

	require.Len(t, calls, 1)
	assert.Equal(t, "create_task", calls[0].Name)
	assert.Equal(t, "Buy milk", calls[0].Params["description"])
	assert.Equal(t, "high", calls[0].Params["priority"])
	assert.Equal(t, "Let me add that.", cleaned)
}

func TestParseToolCallsMultiple(t *testing.T) {
	calls, _ := ParseToolCalls(
		`<tool>create_task</tool><params>{"description": "a"}</params>` +
			`<tool>get_stats</tool><params>{}</params>`)

	require.Len(t, calls, 2)
	assert.Equal(t, "create_task", calls[0].Name)
	assert.Equal(t, "get_stats", calls[1].Name)
}

func TestParseToolCallsNamedTagFallback(t *testing.T) {
	calls, cleaned := ParseToolCalls(
		`<list_tasks>{"is_completed": "false"}</list_tasks> Here you go.`)

	require.Len(t, calls, 1)
	assert.Equal(t, "list_tasks", calls[0].Name)
	assert.Equal(t, "false", calls[0].Params["is_completed"])
	assert.Equal(t, "Here you go.", cleaned)
}

func TestParseToolCallsSloppyParams(t *testing.T) {
	t.Run("trailing bracket", func(t *testing.T) {
		calls, _ := ParseToolCalls(`<tool>create_task</tool><params>{"description": "x"}></params>`)
		require.Len(t, calls, 1)
		assert.Equal(t, "x", calls[0].Params["description"])
	})

	t.Run("chatter around the object", func(t *testing.T) {
		calls, _ := ParseToolCalls(`<tool>create_task</tool><params>here: {"description": "x"} ok</params>`)
		require.Len(t, calls, 1)
		assert.Equal(t, "x", calls[0].Params["description"])
	})

	t.Run("non-string values coerced", func(t *testing.T) {
		calls, _ := ParseToolCalls(`<tool>list_tasks</tool><params>{"limit": 5, "is_completed": true}</params>`)
		require.Len(t, calls, 1)
		assert.Equal(t, "5", calls[0].Params["limit"])
		assert.Equal(t, "true", calls[0].Params["is_completed"])
	})

	t.Run("hopeless payload degrades to empty params", func(t *testing.T) {
		calls, _ := ParseToolCalls(`<tool>get_stats</tool><params>not json at all</params>`)
		require.Len(t, calls, 1)
		assert.Empty(t, calls[0].Params)
	})
}

func TestParseToolCallsPlainText(t *testing.T) {
	calls, cleaned := ParseToolCalls("You have 3 tasks pending.")
	assert.Empty(t, calls)
	assert.Equal(t, "You have 3 tasks pending.", cleaned)
}

func TestFormatToolResult(t *testing.T) {
	call := &ToolCall{Name: "create_task"}
	res := &tools.Result{Success: true, Message: "Created task"}

	out := FormatToolResult(call, res)
	assert.Contains(t, out, "create_task")
	assert.Contains(t, out, `"success":true`)
	assert.Contains(t, out, "Created task")
}
