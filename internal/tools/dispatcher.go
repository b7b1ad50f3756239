package tools

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rgoodwin/taskmate/internal/task"
	"github.com/rgoodwin/taskmate/pkg/types"
)

// Error tags carried in the result envelope. The model and the UI both key
// off these, so they are part of the wire contract.
const (
	ErrTagValidation         = "validation_error"
	ErrTagTaskNotFound       = "task_not_found"
	ErrTagCreationFailed     = "creation_failed"
	ErrTagUpdateFailed       = "update_failed"
	ErrTagDeletionFailed     = "deletion_failed"
	ErrTagStatsFailed        = "stats_failed"
	ErrTagListFailed         = "list_failed"
	ErrTagContextUnavailable = "context_unavailable"
)

const defaultListLimit = 20

// Result is the uniform envelope every tool call returns. Error holds a
// stable tag when Success is false.
type Result struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func ok(message string, data map[string]any) *Result {
	return &Result{Success: true, Message: message, Data: data}
}

func fail(tag, message string) *Result {
	return &Result{Success: false, Message: message, Error: tag}
}

// Dispatcher routes parsed tool calls to the task service on behalf of one
// user. A dispatcher with no service reports context_unavailable for every
// call instead of panicking mid-conversation.
type Dispatcher struct {
	svc    *task.Service
	userID string
}

// NewDispatcher binds a dispatcher to a user. svc may be nil when task
// context could not be established.
func NewDispatcher(svc *task.Service, userID string) *Dispatcher {
	return &Dispatcher{svc: svc, userID: userID}
}

// Dispatch executes the named tool with the given params. It never returns
// an error; failures are encoded in the result envelope so the model can
// react to them.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, params map[string]string) *Result {
	if d.svc == nil || d.userID == "" {
		return fail(ErrTagContextUnavailable, "Task context is not available right now.")
	}

	log.Debug().Str("tool", name).Str("user_id", d.userID).Msg("dispatching tool call")

	switch name {
	case "create_task":
		return d.createTask(ctx, params)
	case "list_tasks":
		return d.listTasks(ctx, params)
	case "complete_task":
		return d.completeTask(ctx, params)
	case "update_task":
		return d.updateTask(ctx, params)
	case "delete_task":
		return d.deleteTask(ctx, params)
	case "get_stats":
		return d.getStats(ctx)
	default:
		return fail(ErrTagValidation, fmt.Sprintf("Unknown tool: %s", name))
	}
}

func (d *Dispatcher) createTask(ctx context.Context, params map[string]string) *Result {
	isDaily, _ := strconv.ParseBool(params["is_daily"])

	t, err := d.svc.Create(ctx, d.userID, task.CreateInput{
		Description: params["description"],
		Priority:    params["priority"],
		Tags:        params["tags"],
		DuePhrase:   params["due_date"],
		IsDaily:     isDaily,
	})
	if err != nil {
		return failFrom(err, ErrTagCreationFailed, "create task")
	}

	msg := fmt.Sprintf("Created task %q", t.Description)
	if t.IsDaily {
		msg += " (repeats daily)"
	} else if t.DueDate != nil {
		msg += fmt.Sprintf(" due %s", t.DueDate.Format("2006-01-02"))
	}
	return ok(msg, map[string]any{"task": taskData(t)})
}

func (d *Dispatcher) listTasks(ctx context.Context, params map[string]string) *Result {
	var f task.Filter
	if v, ok := params["is_completed"]; ok && v != "" {
		completed, err := strconv.ParseBool(v)
		if err != nil {
			return fail(ErrTagValidation, "is_completed must be true or false")
		}
		f.IsCompleted = &completed
	}
	if v, ok := params["is_daily"]; ok && v != "" {
		daily, err := strconv.ParseBool(v)
		if err != nil {
			return fail(ErrTagValidation, "is_daily must be true or false")
		}
		f.IsDaily = &daily
	}
	if v := strings.TrimSpace(params["priority"]); v != "" {
		f.Priority = types.NormalizePriority(v)
	}
	f.Search = params["search"]

	p := task.Page{Limit: defaultListLimit}
	if v, ok := params["limit"]; ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fail(ErrTagValidation, "limit must be a number")
		}
		p.Limit = n
	}
	if v, ok := params["skip"]; ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fail(ErrTagValidation, "skip must be a number")
		}
		p.Skip = n
	}

	tasks, total, err := d.svc.List(ctx, d.userID, f, p)
	if err != nil {
		return failFrom(err, ErrTagListFailed, "list tasks")
	}

	items := make([]map[string]any, 0, len(tasks))
	for i := range tasks {
		items = append(items, taskData(&tasks[i]))
	}

	return ok(fmt.Sprintf("Found %d task(s)", total), map[string]any{
		"tasks": items,
		"total": total,
	})
}

func (d *Dispatcher) completeTask(ctx context.Context, params map[string]string) *Result {
	taskID := strings.TrimSpace(params["task_id"])
	if taskID == "" {
		return fail(ErrTagValidation, "task_id is required")
	}

	t, err := d.svc.ToggleComplete(ctx, d.userID, taskID)
	if err != nil {
		return failFrom(err, ErrTagUpdateFailed, "complete task")
	}

	msg := fmt.Sprintf("Marked %q as completed", t.Description)
	if !t.IsCompleted {
		msg = fmt.Sprintf("Reopened %q", t.Description)
	}
	return ok(msg, map[string]any{"task": taskData(t)})
}

func (d *Dispatcher) updateTask(ctx context.Context, params map[string]string) *Result {
	ref := taskRef(params)
	if ref == "" {
		return fail(ErrTagValidation, "task_id_or_description is required")
	}

	var in task.UpdateInput
	if v, ok := params["description"]; ok {
		in.Description = &v
	}
	if v, ok := params["priority"]; ok && v != "" {
		in.Priority = &v
	}
	if v, ok := params["tags"]; ok {
		in.Tags = &v
	}
	if v, ok := params["due_date"]; ok && v != "" {
		in.DuePhrase = &v
	}
	if v, ok := params["is_completed"]; ok && v != "" {
		completed, err := strconv.ParseBool(v)
		if err != nil {
			return fail(ErrTagValidation, "is_completed must be true or false")
		}
		in.IsCompleted = &completed
	}
	if v, ok := params["is_daily"]; ok && v != "" {
		daily, err := strconv.ParseBool(v)
		if err != nil {
			return fail(ErrTagValidation, "is_daily must be true or false")
		}
		in.IsDaily = &daily
	}

	t, err := d.svc.Update(ctx, d.userID, ref, in)
	if err != nil {
		return failFrom(err, ErrTagUpdateFailed, "update task")
	}
	return ok(fmt.Sprintf("Updated %q", t.Description), map[string]any{"task": taskData(t)})
}

func (d *Dispatcher) deleteTask(ctx context.Context, params map[string]string) *Result {
	ref := taskRef(params)
	if ref == "" {
		return fail(ErrTagValidation, "task_id_or_description is required")
	}

	t, err := d.svc.Delete(ctx, d.userID, ref)
	if err != nil {
		return failFrom(err, ErrTagDeletionFailed, "delete task")
	}
	return ok(fmt.Sprintf("Deleted %q", t.Description), map[string]any{"task": taskData(t)})
}

func (d *Dispatcher) getStats(ctx context.Context) *Result {
	stats, err := d.svc.Stats(ctx, d.userID)
	if err != nil {
		return failFrom(err, ErrTagStatsFailed, "get stats")
	}

	return ok(fmt.Sprintf("%d task(s), %d completed", stats.TotalTasks, stats.CompletedTasks),
		map[string]any{
			"total_tasks":            stats.TotalTasks,
			"completed_tasks":        stats.CompletedTasks,
			"pending_tasks":          stats.PendingTasks,
			"completion_rate":        stats.CompletionRate,
			"weekly_completion_rate": stats.WeeklyCompletionRate,
			"high_priority_pending":  stats.HighPriorityPending,
			"overdue_tasks":          stats.OverdueTasks,
			"tasks_due_this_week":    stats.TasksDueThisWeek,
		})
}

// taskRef extracts the task reference from params. The model is told to use
// task_id_or_description but sometimes emits task_id anyway.
func taskRef(params map[string]string) string {
	if ref := strings.TrimSpace(params["task_id_or_description"]); ref != "" {
		return ref
	}
	return strings.TrimSpace(params["task_id"])
}

// failFrom maps a service error to the envelope: known sentinels get their
// stable tags, anything else gets the operation's failure tag.
func failFrom(err error, opTag, opName string) *Result {
	switch {
	case errors.Is(err, task.ErrValidation):
		return fail(ErrTagValidation, err.Error())
	case errors.Is(err, task.ErrNotFound):
		return fail(ErrTagTaskNotFound, "No matching task was found.")
	case errors.Is(err, task.ErrVersionConflict):
		return fail(opTag, "The task changed while processing; please retry.")
	default:
		log.Error().Err(err).Str("operation", opName).Msg("tool operation failed")
		return fail(opTag, fmt.Sprintf("Could not %s.", opName))
	}
}

func taskData(t *types.Task) map[string]any {
	data := map[string]any{
		"id":           t.ID,
		"description":  t.Description,
		"priority":     string(t.Priority),
		"is_completed": t.IsCompleted,
		"is_daily":     t.IsDaily,
		"created_at":   t.CreatedAt.Format(time.RFC3339),
	}
	if t.Tags != "" {
		data["tags"] = t.Tags
	}
	if t.DueDate != nil {
		data["due_date"] = t.DueDate.Format("2006-01-02")
	}
	return data
}
