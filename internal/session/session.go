// Package session tracks which operation the next free-text message of a chat
// belongs to.
package session

import (
	"sync"
	"time"
)

// Kind is the operation waiting for input
type Kind string

const (
	SubmitReport Kind = "submit_report"
	EditReport   Kind = "edit_report"
	SubmitTask   Kind = "submit_task"
	EditTask     Kind = "edit_task"
)

// DefaultTTL is how long a prompt stays answerable
const DefaultTTL = 30 * time.Minute

// Pending describes an operation waiting for the chat's next message
type Pending struct {
	Kind      Kind
	TargetID  int64 // report or task being edited, zero for submissions
	PromptID  int   // message that asked for the input
	CreatedAt time.Time
}

// Store keeps at most one pending operation per chat
type Store struct {
	mu      sync.Mutex
	pending map[int64]Pending
	ttl     time.Duration
	now     func() time.Time
}

// NewStore creates an empty store. A ttl of zero uses DefaultTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		pending: make(map[int64]Pending),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Set replaces whatever was pending for the chat
func (s *Store) Set(chatID int64, p Pending) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.pending[chatID] = p
}

// Take returns the pending operation for the chat and clears it. Expired
// entries are dropped and reported as absent.
func (s *Store) Take(chatID int64) (Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.lookup(chatID)
	delete(s.pending, chatID)
	return p, ok
}

// Peek returns the pending operation without consuming it
func (s *Store) Peek(chatID int64) (Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(chatID)
}

// Clear drops the pending operation, reporting whether there was one
func (s *Store) Clear(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.lookup(chatID)
	delete(s.pending, chatID)
	return ok
}

// Len returns the number of live entries and evicts expired ones
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for chatID := range s.pending {
		s.lookup(chatID)
	}
	return len(s.pending)
}

// lookup must be called with mu held
func (s *Store) lookup(chatID int64) (Pending, bool) {
	p, ok := s.pending[chatID]
	if !ok {
		return Pending{}, false
	}
	if s.now().Sub(p.CreatedAt) > s.ttl {
		delete(s.pending, chatID)
		return Pending{}, false
	}
	return p, true
}
