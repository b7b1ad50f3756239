package task

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rgoodwin/taskmate/pkg/types"
)

// MemoryStore is an in-memory Store used in tests and as the reference
// implementation of the persistence contract. Records live in insertion
// order, which is what the fuzzy resolver's first-match semantics key off.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string]*memoryRecord
}

type memoryRecord struct {
	tasks   []types.Task
	chats   []types.ChatMessage
	keyBlob []byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*memoryRecord)}
}

// record returns the user's record, creating it lazily.
func (s *MemoryStore) record(userID string) *memoryRecord {
	rec, ok := s.users[userID]
	if !ok {
		rec = &memoryRecord{}
		s.users[userID] = rec
	}
	return rec
}

// EnsureUser creates the user's record if it does not exist yet.
func (s *MemoryStore) EnsureUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(userID)
	return nil
}

// CreateTask appends a copy of t to the user's collection.
func (s *MemoryStore) CreateTask(_ context.Context, userID string, t *types.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.record(userID)
	rec.tasks = append(rec.tasks, *t)
	return nil
}

// GetTask returns the task with the given id or ErrNotFound.
func (s *MemoryStore) GetTask(_ context.Context, userID, taskID string) (*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	for i := range rec.tasks {
		if rec.tasks[i].ID == taskID {
			cp := rec.tasks[i]
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// FindTaskByDescription resolves a task by the shared three-tier matcher.
func (s *MemoryStore) FindTaskByDescription(_ context.Context, userID, text string) (*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	if match := matchByDescription(rec.tasks, text); match != nil {
		cp := *match
		return &cp, nil
	}
	return nil, ErrNotFound
}

// ListTasks returns the filtered page, newest first, plus the total count.
func (s *MemoryStore) ListTasks(_ context.Context, userID string, f Filter, p Page) ([]types.Task, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p = p.normalize()

	rec, ok := s.users[userID]
	if !ok {
		return nil, 0, nil
	}

	var filtered []types.Task
	for i := range rec.tasks {
		if applyFilter(&rec.tasks[i], f) {
			filtered = append(filtered, rec.tasks[i])
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	total := len(filtered)
	if p.Skip >= total {
		return nil, total, nil
	}
	end := p.Skip + p.Limit
	if end > total {
		end = total
	}
	return filtered[p.Skip:end], total, nil
}

// UpdateTask replaces the stored task when the version predicate holds.
func (s *MemoryStore) UpdateTask(_ context.Context, userID string, t *types.Task, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	for i := range rec.tasks {
		if rec.tasks[i].ID == t.ID {
			if rec.tasks[i].Version != expectedVersion {
				return ErrVersionConflict
			}
			rec.tasks[i] = *t
			return nil
		}
	}
	return ErrNotFound
}

// DeleteTask removes the task, reporting whether it existed.
func (s *MemoryStore) DeleteTask(_ context.Context, userID, taskID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[userID]
	if !ok {
		return false, nil
	}
	for i := range rec.tasks {
		if rec.tasks[i].ID == taskID {
			rec.tasks = append(rec.tasks[:i], rec.tasks[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// TaskStats aggregates the user's full task list.
func (s *MemoryStore) TaskStats(_ context.Context, userID string, now time.Time) (*types.TaskStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[userID]
	if !ok {
		return &types.TaskStats{}, nil
	}
	return ComputeStats(rec.tasks, now), nil
}

// AppendChatMessage appends a turn, evicting the oldest beyond limit.
func (s *MemoryStore) AppendChatMessage(_ context.Context, userID string, msg types.ChatMessage, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.record(userID)
	rec.chats = append(rec.chats, msg)
	if limit > 0 && len(rec.chats) > limit {
		rec.chats = append([]types.ChatMessage(nil), rec.chats[len(rec.chats)-limit:]...)
	}
	return nil
}

// ChatHistory returns the persisted bounded history, oldest first.
func (s *MemoryStore) ChatHistory(_ context.Context, userID string) ([]types.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	return append([]types.ChatMessage(nil), rec.chats...), nil
}

// ClearChatHistory drops all persisted turns, returning how many there were.
func (s *MemoryStore) ClearChatHistory(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[userID]
	if !ok {
		return 0, nil
	}
	n := len(rec.chats)
	rec.chats = nil
	return n, nil
}

// SetAPIKeyBlob stores the user's encrypted key material.
func (s *MemoryStore) SetAPIKeyBlob(_ context.Context, userID string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(userID).keyBlob = append([]byte(nil), blob...)
	return nil
}

// GetAPIKeyBlob returns the stored key material, nil if none.
func (s *MemoryStore) GetAPIKeyBlob(_ context.Context, userID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[userID]
	if !ok || rec.keyBlob == nil {
		return nil, nil
	}
	return append([]byte(nil), rec.keyBlob...), nil
}
