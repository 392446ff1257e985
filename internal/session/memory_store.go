package session

import (
	"context"
	"sync"
	"time"

	"github.com/repairdesk/repair-desk/internal/intake"
)

// MemoryStore is a process-local Store used when Redis is not configured and in tests.
type MemoryStore struct {
	mu       sync.Mutex
	idle     time.Duration
	now      func() time.Time
	sessions map[string]memoryEntry
}

type memoryEntry struct {
	session intake.Session
	touched time.Time
}

// NewMemoryStore builds a store; idle <= 0 disables expiry.
func NewMemoryStore(idle time.Duration) *MemoryStore {
	return &MemoryStore{idle: idle, now: time.Now, sessions: map[string]memoryEntry{}}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (*intake.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[userID]
	if !ok {
		return nil, ErrNotFound
	}
	if s.idle > 0 && s.now().Sub(entry.touched) >= s.idle {
		delete(s.sessions, userID)
		return nil, ErrNotFound
	}
	sess := entry.session
	sess.Draft.Photos = append([]string(nil), entry.session.Draft.Photos...)
	return &sess, nil
}

func (s *MemoryStore) Save(_ context.Context, sess intake.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.Draft.Photos = append([]string(nil), sess.Draft.Photos...)
	s.sessions[sess.UserID] = memoryEntry{session: sess, touched: s.now()}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}
