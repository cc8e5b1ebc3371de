package session

import (
	"sync"
	"time"
)

// Store maps connection ids to sessions. It stores values, so callers get a
// snapshot from Get and publish changes with Set.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]Session),
	}
}

// Get returns the session for connID.
func (s *Store) Get(connID string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[connID]
	return sess, ok
}

// Set stores sess for connID, replacing any previous session.
func (s *Store) Set(connID string, sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[connID] = sess
}

// Delete removes and returns the session for connID.
func (s *Store) Delete(connID string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[connID]
	if ok {
		delete(s.sessions, connID)
	}
	return sess, ok
}

// Len returns the number of stored sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

// EvictStale removes sessions whose initialization failed and which were not
// touched within ttl, and returns them keyed by connection id.
func (s *Store) EvictStale(now time.Time, ttl time.Duration) map[string]Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted map[string]Session
	for connID, sess := range s.sessions {
		if !sess.Failed || now.Sub(sess.TouchedAt) < ttl {
			continue
		}
		if evicted == nil {
			evicted = make(map[string]Session)
		}
		evicted[connID] = sess
		delete(s.sessions, connID)
	}
	return evicted
}
