package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/rgoodwin/taskmate/internal/tools"
)

// systemPrompt builds the instruction block sent with every request. It
// names the assistant's job, lists the tool registry, and pins the call
// syntax the parser expects.
func systemPrompt(now time.Time) string {
	var sb strings.Builder

	sb.WriteString(`You are a friendly personal task assistant. You help the user manage their to-do list through conversation: creating tasks, listing them, completing, updating, and deleting them, and reporting statistics.

Today's date is `)
	sb.WriteString(now.UTC().Format("Monday, 2006-01-02"))
	sb.WriteString(".\n\nYou have these tools:\n\n")

	for _, tool := range tools.Definitions() {
		fmt.Fprintf(&sb, "- %s: %s\n", tool.Name, tool.Description)
		for _, p := range tool.Parameters {
			req := "optional"
			if p.Required {
				req = "required"
			}
			fmt.Fprintf(&sb, "    %s (%s, %s): %s\n", p.Name, p.Type, req, p.Description)
		}
	}

	sb.WriteString(`
To use a tool, reply with exactly this syntax:
<tool>tool_name</tool><params>{"param": "value"}</params>

Rules:
- Use a tool whenever the user asks you to do something with their tasks. Never claim you did something without calling the tool.
- Pass due dates as the user phrased them ("tomorrow", "next week", "2025-07-01"). If the user describes a habit ("every day", "daily"), keep that wording so the task repeats.
- After a tool result arrives, summarize the outcome for the user in one or two friendly sentences.
- If a tool reports an error, explain it plainly and suggest what to try instead.
- Respond in the same language the user writes in.
- For plain conversation with no task action, just reply normally without any tool syntax.`)

	return sb.String()
}
