// Package types defines shared types used across all Taskmate modules.
package types

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TASK TYPES
// ═══════════════════════════════════════════════════════════════════════════════

// Priority is the urgency level of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// NormalizePriority validates and normalizes a priority string.
// Invalid or missing values fall back to medium rather than erroring;
// the upstream tool-caller frequently passes junk here.
func NormalizePriority(s string) Priority {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case PriorityLow:
		return PriorityLow
	case PriorityHigh:
		return PriorityHigh
	case PriorityMedium, "":
		return PriorityMedium
	default:
		log.Warn().Str("priority", string(p)).Msg("invalid priority, defaulting to medium")
		return PriorityMedium
	}
}

// Task is one unit of work owned by exactly one user.
// IDs are unique within a user's task collection, not globally.
type Task struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Priority    Priority   `json:"priority"`
	Tags        string     `json:"tags,omitempty"` // comma-separated, stored opaque
	DueDate     *time.Time `json:"due_date,omitempty"`
	IsCompleted bool       `json:"is_completed"`
	IsDaily     bool       `json:"is_daily"` // recurring, mutually exclusive with DueDate

	// Version increments on every mutation; callers may supply an expected
	// version on update to detect lost writes.
	Version int `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TaskStats aggregates a user's task collection.
type TaskStats struct {
	TotalTasks           int     `json:"total_tasks"`
	CompletedTasks       int     `json:"completed_tasks"`
	PendingTasks         int     `json:"pending_tasks"`
	CompletionRate       float64 `json:"completion_rate"`        // percent, 2 decimals
	WeeklyCompletionRate float64 `json:"weekly_completion_rate"` // percent over trailing 7 days
	HighPriorityPending  int     `json:"high_priority_pending"`
	OverdueTasks         int     `json:"overdue_tasks"`
	TasksDueThisWeek     int     `json:"tasks_due_this_week"`
}

// ═══════════════════════════════════════════════════════════════════════════════
// CHAT TYPES
// ═══════════════════════════════════════════════════════════════════════════════

// ChatRole identifies the author of a conversation turn.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
	RoleSystem    ChatRole = "system"
)

// ChatMessage is one turn in a bounded conversation history.
type ChatMessage struct {
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
