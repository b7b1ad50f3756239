package task

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rgoodwin/taskmate/internal/dateparse"
	"github.com/rgoodwin/taskmate/pkg/types"
)

// Description length bounds enforced on create and update.
const (
	minDescriptionLen = 1
	maxDescriptionLen = 500
)

// idAttempts bounds the retry loop for short-ID collisions.
const idAttempts = 5

// validateDescription checks the length bounds in characters, not bytes,
// so multibyte descriptions are measured the way users count them.
func validateDescription(desc string) error {
	if n := utf8.RuneCountInString(desc); n < minDescriptionLen || n > maxDescriptionLen {
		return fmt.Errorf("%w: description must be between %d and %d characters",
			ErrValidation, minDescriptionLen, maxDescriptionLen)
	}
	return nil
}

// Clock supplies the current time; tests substitute a fixed one.
type Clock func() time.Time

// Service validates and enriches task operations before they hit the Store.
// It owns recurrence detection, due-date resolution, and ID generation.
type Service struct {
	store Store
	now   Clock
}

// NewService creates a Service over the given store. A nil clock means
// time.Now.
func NewService(store Store, clock Clock) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{store: store, now: clock}
}

// CreateInput is the raw material for a new task, as extracted from
// conversation. DuePhrase is the user's natural-language date, if any.
type CreateInput struct {
	Description string
	Priority    string
	Tags        string
	DuePhrase   string
	IsDaily     bool
}

// Create validates the input, classifies the due phrase, and persists the
// new task. Recurrence wording anywhere in the description, tags, or due
// phrase forces a daily task with no due date, even when the caller did not
// flag it.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*types.Task, error) {
	desc := strings.TrimSpace(in.Description)
	if err := validateDescription(desc); err != nil {
		return nil, err
	}

	if err := s.store.EnsureUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	now := s.now().UTC()

	t := &types.Task{
		Description: desc,
		Priority:    types.NormalizePriority(in.Priority),
		Tags:        strings.TrimSpace(in.Tags),
		IsDaily:     in.IsDaily,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if in.DuePhrase != "" {
		switch res := dateparse.Classify(in.DuePhrase, now); res.Kind {
		case dateparse.Resolved:
			d := res.Date
			t.DueDate = &d
		case dateparse.Recurring:
			t.IsDaily = true
		}
	}

	// The model sometimes puts "every day" in the description or tags
	// instead of the due phrase. Recurrence always wins over a date.
	if dateparse.HasRecurrenceKeyword(desc) ||
		dateparse.HasRecurrenceKeyword(t.Tags) ||
		dateparse.HasRecurrenceKeyword(in.DuePhrase) {
		t.IsDaily = true
	}
	if t.IsDaily {
		t.DueDate = nil
	}

	id, err := s.newTaskID(ctx, userID)
	if err != nil {
		return nil, err
	}
	t.ID = id

	if err := s.store.CreateTask(ctx, userID, t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	log.Debug().Str("user_id", userID).Str("task_id", t.ID).
		Bool("is_daily", t.IsDaily).Msg("task created")
	return t, nil
}

// newTaskID generates a short unique ID, retrying on the rare collision.
func (s *Service) newTaskID(ctx context.Context, userID string) (string, error) {
	for i := 0; i < idAttempts; i++ {
		id := uuid.NewString()[:8]
		if _, err := s.store.GetTask(ctx, userID, id); err == ErrNotFound {
			return id, nil
		} else if err != nil {
			return "", fmt.Errorf("check task id: %w", err)
		}
	}
	return "", fmt.Errorf("generate task id: exhausted %d attempts", idAttempts)
}

// UpdateInput carries the optional field changes for an update. Nil pointers
// leave the stored value untouched.
type UpdateInput struct {
	Description *string
	Priority    *string
	Tags        *string
	DuePhrase   *string
	IsCompleted *bool
	IsDaily     *bool
}

func (in UpdateInput) empty() bool {
	return in.Description == nil && in.Priority == nil && in.Tags == nil &&
		in.DuePhrase == nil && in.IsCompleted == nil && in.IsDaily == nil
}

// Update applies the provided fields to the resolved task. Supplying no
// fields is a validation error, as is an empty description.
func (s *Service) Update(ctx context.Context, userID, ref string, in UpdateInput) (*types.Task, error) {
	if in.empty() {
		return nil, fmt.Errorf("%w: no fields to update", ErrValidation)
	}

	t, err := s.Resolve(ctx, userID, ref)
	if err != nil {
		return nil, err
	}

	if in.Description != nil {
		desc := strings.TrimSpace(*in.Description)
		if err := validateDescription(desc); err != nil {
			return nil, err
		}
		t.Description = desc
	}
	if in.Priority != nil {
		t.Priority = types.NormalizePriority(*in.Priority)
	}
	if in.Tags != nil {
		t.Tags = strings.TrimSpace(*in.Tags)
	}
	if in.IsCompleted != nil {
		t.IsCompleted = *in.IsCompleted
	}
	if in.IsDaily != nil {
		t.IsDaily = *in.IsDaily
	}
	if in.DuePhrase != nil {
		switch res := dateparse.Classify(*in.DuePhrase, s.now().UTC()); res.Kind {
		case dateparse.Resolved:
			d := res.Date
			t.DueDate = &d
		case dateparse.Recurring:
			t.IsDaily = true
		default:
			t.DueDate = nil
		}
	}

	if dateparse.HasRecurrenceKeyword(t.Description) || dateparse.HasRecurrenceKeyword(t.Tags) {
		t.IsDaily = true
	}
	if t.IsDaily {
		t.DueDate = nil
	}

	expected := t.Version
	t.Version++
	t.UpdatedAt = s.now().UTC()

	if err := s.store.UpdateTask(ctx, userID, t, expected); err != nil {
		return nil, err
	}
	return t, nil
}

// ToggleComplete flips completion on the task with the given ID.
func (s *Service) ToggleComplete(ctx context.Context, userID, taskID string) (*types.Task, error) {
	t, err := s.store.GetTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	expected := t.Version
	t.IsCompleted = !t.IsCompleted
	t.Version++
	t.UpdatedAt = s.now().UTC()

	if err := s.store.UpdateTask(ctx, userID, t, expected); err != nil {
		return nil, err
	}
	return t, nil
}

// Resolve finds a task by ID first, then by fuzzy description match.
func (s *Service) Resolve(ctx context.Context, userID, ref string) (*types.Task, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: task reference required", ErrValidation)
	}
	if t, err := s.store.GetTask(ctx, userID, ref); err == nil {
		return t, nil
	} else if err != ErrNotFound {
		return nil, err
	}
	return s.store.FindTaskByDescription(ctx, userID, ref)
}

// List returns the filtered page plus the total count before paging.
func (s *Service) List(ctx context.Context, userID string, f Filter, p Page) ([]types.Task, int, error) {
	return s.store.ListTasks(ctx, userID, f, p)
}

// Get returns the task with the given ID.
func (s *Service) Get(ctx context.Context, userID, taskID string) (*types.Task, error) {
	return s.store.GetTask(ctx, userID, taskID)
}

// Delete resolves the reference and removes the task.
func (s *Service) Delete(ctx context.Context, userID, ref string) (*types.Task, error) {
	t, err := s.Resolve(ctx, userID, ref)
	if err != nil {
		return nil, err
	}
	deleted, err := s.store.DeleteTask(ctx, userID, t.ID)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return nil, ErrNotFound
	}
	return t, nil
}

// Stats aggregates the user's tasks as of the service clock.
func (s *Service) Stats(ctx context.Context, userID string) (*types.TaskStats, error) {
	return s.store.TaskStats(ctx, userID, s.now().UTC())
}
