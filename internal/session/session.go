// Package session holds bounded in-memory conversation state, one session
// per user. Sessions keep the most recent turns in arrival order and evict
// the oldest when full; a separate system message survives eviction.
package session

import (
	"sync"
	"time"

	"github.com/rgoodwin/taskmate/pkg/types"
)

const (
	// DefaultCapacity is how many turns a session retains.
	DefaultCapacity = 10
	// minCapacity keeps at least one user/assistant exchange.
	minCapacity = 2
)

// Session is one user's bounded conversation memory. Safe for concurrent
// use; each session has its own lock so users never contend with each other.
type Session struct {
	mu       sync.Mutex
	capacity int
	system   string
	turns    []types.ChatMessage
}

// New creates a session with the given capacity. Values below the minimum
// are raised to it; zero or negative means the default.
func New(capacity int) *Session {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if capacity < minCapacity {
		capacity = minCapacity
	}
	return &Session{capacity: capacity}
}

// SetSystem replaces the session's system message. It is stored outside the
// turn window so eviction never drops it.
func (s *Session) SetSystem(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.system = content
}

// Append records a turn, evicting the oldest when the window is full.
func (s *Session) Append(role types.ChatRole, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = append(s.turns, types.ChatMessage{
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
	if len(s.turns) > s.capacity {
		s.turns = append([]types.ChatMessage(nil), s.turns[len(s.turns)-s.capacity:]...)
	}
}

// Seed replaces the turn window with previously persisted history, keeping
// only the newest turns that fit.
func (s *Session) Seed(history []types.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(history) > s.capacity {
		history = history[len(history)-s.capacity:]
	}
	s.turns = append([]types.ChatMessage(nil), history...)
}

// History returns the retained turns oldest first. When includeSystem is
// set and a system message exists, it leads the slice.
func (s *Session) History(includeSystem bool) []types.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.ChatMessage, 0, len(s.turns)+1)
	if includeSystem && s.system != "" {
		out = append(out, types.ChatMessage{Role: types.RoleSystem, Content: s.system})
	}
	return append(out, s.turns...)
}

// LastN returns up to n of the most recent turns, oldest first.
func (s *Session) LastN(n int) []types.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 || len(s.turns) == 0 {
		return nil
	}
	if n > len(s.turns) {
		n = len(s.turns)
	}
	return append([]types.ChatMessage(nil), s.turns[len(s.turns)-n:]...)
}

// Clear drops all turns, returning how many were held. The system message
// is kept.
func (s *Session) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.turns)
	s.turns = nil
	return n
}

// Len reports the number of retained turns.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// Registry maps user IDs to their sessions. It is injected into the
// orchestrator rather than held as package state so tests can run isolated
// registries side by side.
type Registry struct {
	mu       sync.Mutex
	capacity int
	sessions map[string]*Session
}

// NewRegistry creates a registry whose sessions use the given capacity.
func NewRegistry(capacity int) *Registry {
	return &Registry{
		capacity: capacity,
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the user's session, creating it on first use.
func (r *Registry) GetOrCreate(userID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[userID]
	if !ok {
		s = New(r.capacity)
		r.sessions[userID] = s
	}
	return s
}

// Get returns the user's session, nil if none exists.
func (r *Registry) Get(userID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[userID]
}

// Delete removes the user's session, reporting whether one existed.
func (r *Registry) Delete(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.sessions[userID]
	delete(r.sessions, userID)
	return ok
}

// Count reports how many sessions are live.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
