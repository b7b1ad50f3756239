// Package task provides per-user task storage and the validation layer on
// top of it. The Store interface is the persistence contract; it is
// implemented by a SQLite-backed store and an in-memory store with identical
// behavior so either can back the conversational tool layer.
package task

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rgoodwin/taskmate/pkg/types"
)

// Sentinel errors surfaced by stores and the service layer.
var (
	// ErrNotFound means no task matched the given id or description.
	ErrNotFound = errors.New("task not found")
	// ErrValidation means the input shape was rejected before any mutation.
	ErrValidation = errors.New("validation error")
	// ErrVersionConflict means a concurrent writer updated the task first.
	ErrVersionConflict = errors.New("task version conflict")
)

// Filter narrows a task listing. Nil pointer fields mean "no filter";
// provided filters combine conjunctively.
type Filter struct {
	IsCompleted *bool
	Priority    types.Priority // empty = any
	Search      string         // case-insensitive substring of description
	IsDaily     *bool
}

// Page is a skip/limit window applied after filtering and sorting.
type Page struct {
	Skip  int
	Limit int
}

// maxPageLimit caps a single listing; conversational callers never need more.
const maxPageLimit = 100

// normalize clamps the page to sane bounds: limit in [1,100], skip >= 0.
func (p Page) normalize() Page {
	if p.Limit < 1 {
		p.Limit = 1
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	if p.Skip < 0 {
		p.Skip = 0
	}
	return p
}

// Store is the persistence collaborator contract. All operations are scoped
// to a single user; tasks never move between users.
type Store interface {
	// EnsureUser creates the user's record if it does not exist yet.
	EnsureUser(ctx context.Context, userID string) error

	CreateTask(ctx context.Context, userID string, t *types.Task) error
	GetTask(ctx context.Context, userID, taskID string) (*types.Task, error)
	// FindTaskByDescription resolves a task by fuzzy text match; see
	// matchByDescription for tier semantics.
	FindTaskByDescription(ctx context.Context, userID, text string) (*types.Task, error)
	// ListTasks returns the filtered page sorted by created_at descending,
	// plus the total count before paging.
	ListTasks(ctx context.Context, userID string, f Filter, p Page) ([]types.Task, int, error)
	// UpdateTask replaces the stored task if its version still equals
	// expectedVersion, otherwise returns ErrVersionConflict.
	UpdateTask(ctx context.Context, userID string, t *types.Task, expectedVersion int) error
	DeleteTask(ctx context.Context, userID, taskID string) (bool, error)
	TaskStats(ctx context.Context, userID string, now time.Time) (*types.TaskStats, error)

	// Chat history persistence, FIFO-bounded at write time.
	AppendChatMessage(ctx context.Context, userID string, msg types.ChatMessage, limit int) error
	ChatHistory(ctx context.Context, userID string) ([]types.ChatMessage, error)
	ClearChatHistory(ctx context.Context, userID string) (int, error)

	// Opaque encrypted API-key storage; encryption lives in credstore.
	SetAPIKeyBlob(ctx context.Context, userID string, blob []byte) error
	GetAPIKeyBlob(ctx context.Context, userID string) ([]byte, error)
}

// matchByDescription is the shared fuzzy resolver used by both store
// implementations. Tiers are tried in order, each returning the first task
// in creation order that satisfies it:
//
//  1. exact case-insensitive equality
//  2. case-insensitive substring containment, either direction
//  3. case-insensitive prefix match, either direction
//
// First match wins within a tier; there is no ranking and no
// multiple-match disambiguation.
func matchByDescription(tasks []types.Task, text string) *types.Task {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return nil
	}

	for i := range tasks {
		if strings.ToLower(tasks[i].Description) == needle {
			return &tasks[i]
		}
	}

	for i := range tasks {
		desc := strings.ToLower(tasks[i].Description)
		if strings.Contains(desc, needle) || strings.Contains(needle, desc) {
			return &tasks[i]
		}
	}

	for i := range tasks {
		desc := strings.ToLower(tasks[i].Description)
		if strings.HasPrefix(desc, needle) || strings.HasPrefix(needle, desc) {
			return &tasks[i]
		}
	}

	return nil
}

// applyFilter reports whether t passes every provided filter.
func applyFilter(t *types.Task, f Filter) bool {
	if f.IsCompleted != nil && t.IsCompleted != *f.IsCompleted {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(t.Description), strings.ToLower(f.Search)) {
		return false
	}
	if f.IsDaily != nil && t.IsDaily != *f.IsDaily {
		return false
	}
	return true
}
