package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rgoodwin/taskmate/internal/tools"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TOOL CALL PARSING
// ═══════════════════════════════════════════════════════════════════════════════

// ToolCall is one command the model asked to run.
type ToolCall struct {
	Name   string            `json:"name"`
	Params map[string]string `json:"params"`
}

// ParseToolCalls extracts tool calls from model output text. The canonical
// format is:
//
//	<tool>tool_name</tool><params>{"key": "value"}</params>
//
// A fallback handles models that wrap the params in the tool name itself,
// like <create_task>{"description": "..."}</create_task>. Returns the calls
// and the text with the call markup removed.
func ParseToolCalls(response string) ([]*ToolCall, string) {
	calls, cleaned := parseCanonicalToolCalls(response)
	if len(calls) == 0 {
		calls, cleaned = parseNamedTagToolCalls(cleaned)
	}
	return calls, strings.TrimSpace(cleaned)
}

// parseCanonicalToolCalls parses <tool>name</tool><params>{...}</params>.
func parseCanonicalToolCalls(response string) ([]*ToolCall, string) {
	var calls []*ToolCall
	cleaned := response

	for {
		toolStart := strings.Index(cleaned, "<tool>")
		if toolStart == -1 {
			break
		}

		toolEnd := strings.Index(cleaned[toolStart:], "</tool>")
		if toolEnd == -1 {
			break
		}
		toolEnd += toolStart

		paramsStart := strings.Index(cleaned[toolEnd:], "<params>")
		if paramsStart == -1 {
			break
		}
		paramsStart += toolEnd

		paramsEnd := strings.Index(cleaned[paramsStart:], "</params>")
		if paramsEnd == -1 {
			break
		}
		paramsEnd += paramsStart

		toolName := cleaned[toolStart+len("<tool>") : toolEnd]
		paramsJSON := cleaned[paramsStart+len("<params>") : paramsEnd]

		calls = append(calls, &ToolCall{
			Name:   strings.TrimSpace(toolName),
			Params: parseParams(paramsJSON),
		})

		cleaned = cleaned[:toolStart] + cleaned[paramsEnd+len("</params>"):]
	}

	return calls, cleaned
}

// parseNamedTagToolCalls parses <tool_name>{...}</tool_name> for the known
// tool names.
func parseNamedTagToolCalls(response string) ([]*ToolCall, string) {
	var calls []*ToolCall
	cleaned := response

	for _, def := range tools.Definitions() {
		openTag := "<" + def.Name + ">"
		closeTag := "</" + def.Name + ">"

		for {
			start := strings.Index(cleaned, openTag)
			if start == -1 {
				break
			}
			end := strings.Index(cleaned[start:], closeTag)
			if end == -1 {
				break
			}
			end += start

			calls = append(calls, &ToolCall{
				Name:   def.Name,
				Params: parseParams(cleaned[start+len(openTag) : end]),
			})

			cleaned = cleaned[:start] + cleaned[end+len(closeTag):]
		}
	}

	return calls, cleaned
}

// parseParams decodes the params JSON, tolerating common model mistakes:
// stray angle brackets, leading chatter before the object, and non-string
// values. A hopeless payload degrades to an empty map rather than aborting
// the call.
func parseParams(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSuffix(raw, ">")
	raw = strings.TrimPrefix(raw, "<")

	if params, ok := decodeParams(raw); ok {
		return params
	}

	// Try just the outermost JSON object if there is extra content.
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			if params, ok := decodeParams(raw[start : end+1]); ok {
				return params
			}
		}
	}

	return make(map[string]string)
}

func decodeParams(raw string) (map[string]string, bool) {
	var params map[string]string
	if err := json.Unmarshal([]byte(raw), &params); err == nil {
		return params, true
	}

	// Models sometimes emit numbers or booleans; coerce them to strings.
	var loose map[string]any
	if err := json.Unmarshal([]byte(raw), &loose); err != nil {
		return nil, false
	}
	params = make(map[string]string, len(loose))
	for k, v := range loose {
		switch val := v.(type) {
		case string:
			params[k] = val
		case nil:
			// skip nulls entirely
		default:
			params[k] = fmt.Sprintf("%v", val)
		}
	}
	return params, true
}

// FormatToolResult renders a dispatch result as the observation text fed
// back to the model for the next step.
func FormatToolResult(call *ToolCall, res *tools.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Tool %s result:\n", call.Name)

	payload, err := json.Marshal(res)
	if err != nil {
		fmt.Fprintf(&sb, `{"success": false, "error": "result serialization failed"}`)
		return sb.String()
	}
	sb.Write(payload)
	return sb.String()
}
