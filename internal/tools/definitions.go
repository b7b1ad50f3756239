// Package tools exposes task operations to the language model as a fixed
// registry of named commands and dispatches parsed calls against the task
// service, wrapping every outcome in a uniform result envelope.
package tools

// ═══════════════════════════════════════════════════════════════════════════════
// TOOL DEFINITIONS
// ═══════════════════════════════════════════════════════════════════════════════

// Tool describes one command the model may invoke.
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
}

// Parameter describes a tool parameter.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Definitions returns the full tool registry, in the order it is presented
// to the model.
func Definitions() []Tool {
	return []Tool{
		{
			Name:        "create_task",
			Description: "Create a new task for the user. Use when the user asks to add, create, or remember something to do.",
			Parameters: []Parameter{
				{Name: "description", Type: "string", Description: "What the task is, e.g. 'Buy groceries'", Required: true},
				{Name: "priority", Type: "string", Description: "low, medium, or high (default medium)", Required: false},
				{Name: "due_date", Type: "string", Description: "Natural-language due date like 'tomorrow', 'next week', or '2025-07-01'. Use recurring wording like 'every day' for daily habits.", Required: false},
				{Name: "tags", Type: "string", Description: "Comma-separated labels, e.g. 'work,errands'", Required: false},
				{Name: "is_daily", Type: "string", Description: "true if this is a recurring daily task", Required: false},
			},
		},
		{
			Name:        "list_tasks",
			Description: "List the user's tasks, newest first. Use when the user asks what they have to do.",
			Parameters: []Parameter{
				{Name: "is_completed", Type: "string", Description: "true for completed tasks only, false for pending only; omit for all", Required: false},
				{Name: "priority", Type: "string", Description: "Filter by low, medium, or high", Required: false},
				{Name: "search", Type: "string", Description: "Only tasks whose description contains this text", Required: false},
				{Name: "is_daily", Type: "string", Description: "true for recurring daily tasks only", Required: false},
				{Name: "limit", Type: "string", Description: "Maximum tasks to return (default 20, max 100)", Required: false},
				{Name: "skip", Type: "string", Description: "Tasks to skip for paging (default 0)", Required: false},
			},
		},
		{
			Name:        "complete_task",
			Description: "Toggle a task's completion state by its ID. Completing a completed task reopens it.",
			Parameters: []Parameter{
				{Name: "task_id", Type: "string", Description: "The 8-character task ID", Required: true},
			},
		},
		{
			Name:        "update_task",
			Description: "Change fields on an existing task. Identify the task by ID or by its description.",
			Parameters: []Parameter{
				{Name: "task_id_or_description", Type: "string", Description: "The 8-character task ID, or text identifying the task when the ID is unknown", Required: true},
				{Name: "description", Type: "string", Description: "Replacement description", Required: false},
				{Name: "priority", Type: "string", Description: "New priority: low, medium, or high", Required: false},
				{Name: "due_date", Type: "string", Description: "New natural-language due date; recurring wording makes the task daily", Required: false},
				{Name: "tags", Type: "string", Description: "Replacement comma-separated labels", Required: false},
				{Name: "is_completed", Type: "string", Description: "true or false to set completion directly", Required: false},
				{Name: "is_daily", Type: "string", Description: "true or false to set the daily flag", Required: false},
			},
		},
		{
			Name:        "delete_task",
			Description: "Delete a task permanently. Identify it by ID or by its description.",
			Parameters: []Parameter{
				{Name: "task_id_or_description", Type: "string", Description: "The 8-character task ID, or text identifying the task when the ID is unknown", Required: true},
			},
		},
		{
			Name:        "get_stats",
			Description: "Get the user's task statistics: totals, completion rates, overdue and upcoming counts.",
			Parameters:  []Parameter{},
		},
	}
}
