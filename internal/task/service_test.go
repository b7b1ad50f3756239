package task

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgoodwin/taskmate/pkg/types"
)

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestService() *Service {
	return NewService(NewMemoryStore(), fixedClock(testNow))
}

func TestServiceCreate(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		input      CreateInput
		wantErr    error
		wantDaily  bool
		wantDue    *time.Time
		wantPrio   types.Priority
		checkExtra func(t *testing.T, task *types.Task)
	}{
		{
			name:     "basic task",
			input:    CreateInput{Description: "Buy milk", Priority: "high"},
			wantPrio: types.PriorityHigh,
		},
		{
			name:     "invalid priority falls back to medium",
			input:    CreateInput{Description: "Buy milk", Priority: "urgent"},
			wantPrio: types.PriorityMedium,
		},
		{
			name:    "empty description rejected",
			input:   CreateInput{Description: "   "},
			wantErr: ErrValidation,
		},
		{
			name:    "oversized description rejected",
			input:   CreateInput{Description: strings.Repeat("x", 501)},
			wantErr: ErrValidation,
		},
		{
			name:     "length is measured in characters not bytes",
			input:    CreateInput{Description: strings.Repeat("買", 500)},
			wantPrio: types.PriorityMedium,
		},
		{
			name:    "501 multibyte characters rejected",
			input:   CreateInput{Description: strings.Repeat("買", 501)},
			wantErr: ErrValidation,
		},
		{
			name:     "tomorrow resolves to a date",
			input:    CreateInput{Description: "Call dentist", DuePhrase: "tomorrow"},
			wantPrio: types.PriorityMedium,
			wantDue:  timePtr(time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)),
		},
		{
			name:      "recurring phrase forces daily",
			input:     CreateInput{Description: "Water plants", DuePhrase: "every day"},
			wantPrio:  types.PriorityMedium,
			wantDaily: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService()
			task, err := svc.Create(ctx, "u1", tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, task.ID, 8)
			assert.Equal(t, tt.wantPrio, task.Priority)
			assert.Equal(t, tt.wantDaily, task.IsDaily)
			assert.Equal(t, tt.wantDue, task.DueDate)
			assert.Equal(t, 1, task.Version)
			assert.Equal(t, task.CreatedAt, task.UpdatedAt)
			if tt.checkExtra != nil {
				tt.checkExtra(t, task)
			}
		})
	}
}

func TestServiceCreateRecurrenceWinsOverDate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	// Recurrence wording in the description trumps a concrete due phrase.
	task, err := svc.Create(ctx, "u1", CreateInput{
		Description: "Stretch every morning",
		DuePhrase:   "tomorrow",
	})
	require.NoError(t, err)
	assert.True(t, task.IsDaily)
	assert.Nil(t, task.DueDate)

	// Same for the tags field.
	task, err = svc.Create(ctx, "u1", CreateInput{
		Description: "Journal",
		Tags:        "daily, habits",
		DuePhrase:   "next week",
	})
	require.NoError(t, err)
	assert.True(t, task.IsDaily)
	assert.Nil(t, task.DueDate)
}

func TestServiceUpdate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	created, err := svc.Create(ctx, "u1", CreateInput{Description: "Buy milk"})
	require.NoError(t, err)

	t.Run("no fields rejected", func(t *testing.T) {
		_, err := svc.Update(ctx, "u1", created.ID, UpdateInput{})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("empty description rejected", func(t *testing.T) {
		_, err := svc.Update(ctx, "u1", created.ID, UpdateInput{Description: strPtr("  ")})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("partial update bumps version", func(t *testing.T) {
		updated, err := svc.Update(ctx, "u1", created.ID, UpdateInput{Priority: strPtr("high")})
		require.NoError(t, err)
		assert.Equal(t, types.PriorityHigh, updated.Priority)
		assert.Equal(t, "Buy milk", updated.Description)
		assert.Equal(t, 2, updated.Version)
	})

	t.Run("update by description", func(t *testing.T) {
		updated, err := svc.Update(ctx, "u1", "buy milk", UpdateInput{Tags: strPtr("errands")})
		require.NoError(t, err)
		assert.Equal(t, created.ID, updated.ID)
		assert.Equal(t, "errands", updated.Tags)
	})

	t.Run("recurring due phrase converts to daily", func(t *testing.T) {
		updated, err := svc.Update(ctx, "u1", created.ID, UpdateInput{DuePhrase: strPtr("every day")})
		require.NoError(t, err)
		assert.True(t, updated.IsDaily)
		assert.Nil(t, updated.DueDate)
	})

	t.Run("unknown reference", func(t *testing.T) {
		_, err := svc.Update(ctx, "u1", "no such task", UpdateInput{Priority: strPtr("low")})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestServiceToggleComplete(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	created, err := svc.Create(ctx, "u1", CreateInput{Description: "Buy milk"})
	require.NoError(t, err)

	toggled, err := svc.ToggleComplete(ctx, "u1", created.ID)
	require.NoError(t, err)
	assert.True(t, toggled.IsCompleted)

	toggled, err = svc.ToggleComplete(ctx, "u1", created.ID)
	require.NoError(t, err)
	assert.False(t, toggled.IsCompleted)

	_, err = svc.ToggleComplete(ctx, "u1", "missing1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceDelete(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	created, err := svc.Create(ctx, "u1", CreateInput{Description: "Buy milk and eggs"})
	require.NoError(t, err)

	deleted, err := svc.Delete(ctx, "u1", "buy milk and eggs")
	require.NoError(t, err)
	assert.Equal(t, created.ID, deleted.ID)

	_, err = svc.Delete(ctx, "u1", created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceResolvePrefersExactMatch(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	first, err := svc.Create(ctx, "u1", CreateInput{Description: "Buy milk"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "u1", CreateInput{Description: "Buy milk and eggs"})
	require.NoError(t, err)

	// Exact equality beats the earlier containment candidates.
	resolved, err := svc.Resolve(ctx, "u1", "Buy milk")
	require.NoError(t, err)
	assert.Equal(t, first.ID, resolved.ID)

	// A containment-only query takes the first created match.
	resolved, err = svc.Resolve(ctx, "u1", "milk")
	require.NoError(t, err)
	assert.Equal(t, first.ID, resolved.ID)
}

func TestServiceUserIsolation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	created, err := svc.Create(ctx, "u1", CreateInput{Description: "Buy milk"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, "u2", created.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Delete(ctx, "u2", "buy milk")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreVersionConflict(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := NewService(store, fixedClock(testNow))

	created, err := svc.Create(ctx, "u1", CreateInput{Description: "Buy milk"})
	require.NoError(t, err)

	stale := *created
	stale.Description = "stale write"
	stale.Version = 2

	// First writer wins.
	require.NoError(t, store.UpdateTask(ctx, "u1", &stale, 1))

	second := *created
	second.Description = "late write"
	second.Version = 2
	err = store.UpdateTask(ctx, "u1", &second, 1)
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestListTasksFilterAndPaging(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	base := testNow
	for i, spec := range []struct {
		desc     string
		priority types.Priority
		done     bool
		daily    bool
	}{
		{"Buy milk", types.PriorityHigh, false, false},
		{"Walk dog", types.PriorityMedium, true, false},
		{"Water plants", types.PriorityLow, false, true},
		{"File taxes", types.PriorityHigh, false, false},
	} {
		created := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.CreateTask(ctx, "u1", &types.Task{
			ID: spec.desc[:4], Description: spec.desc, Priority: spec.priority,
			IsCompleted: spec.done, IsDaily: spec.daily, Version: 1,
			CreatedAt: created, UpdatedAt: created,
		}))
	}

	t.Run("newest first", func(t *testing.T) {
		tasks, total, err := store.ListTasks(ctx, "u1", Filter{}, Page{Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 4, total)
		assert.Equal(t, "File taxes", tasks[0].Description)
		assert.Equal(t, "Buy milk", tasks[3].Description)
	})

	t.Run("pending high priority", func(t *testing.T) {
		pending := false
		tasks, total, err := store.ListTasks(ctx, "u1",
			Filter{IsCompleted: &pending, Priority: types.PriorityHigh}, Page{Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Len(t, tasks, 2)
	})

	t.Run("daily filter", func(t *testing.T) {
		daily := true
		tasks, total, err := store.ListTasks(ctx, "u1", Filter{IsDaily: &daily}, Page{Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, "Water plants", tasks[0].Description)
	})

	t.Run("search filter", func(t *testing.T) {
		_, total, err := store.ListTasks(ctx, "u1", Filter{Search: "milk"}, Page{Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
	})

	t.Run("paging window", func(t *testing.T) {
		tasks, total, err := store.ListTasks(ctx, "u1", Filter{}, Page{Skip: 2, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, 4, total)
		require.Len(t, tasks, 2)
		assert.Equal(t, "Walk dog", tasks[0].Description)
	})

	t.Run("skip beyond end", func(t *testing.T) {
		tasks, total, err := store.ListTasks(ctx, "u1", Filter{}, Page{Skip: 10, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, 4, total)
		assert.Empty(t, tasks)
	})
}

func TestChatHistoryBounded(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for i := 0; i < 15; i++ {
		require.NoError(t, store.AppendChatMessage(ctx, "u1", types.ChatMessage{
			Role:      types.RoleUser,
			Content:   string(rune('a' + i)),
			CreatedAt: testNow.Add(time.Duration(i) * time.Second),
		}, 10))
	}

	msgs, err := store.ChatHistory(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, msgs, 10)
	assert.Equal(t, "f", msgs[0].Content)
	assert.Equal(t, "o", msgs[9].Content)

	cleared, err := store.ClearChatHistory(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 10, cleared)

	msgs, err = store.ChatHistory(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func timePtr(t time.Time) *time.Time { return &t }
func strPtr(s string) *string        { return &s }
