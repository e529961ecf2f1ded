package memory

import (
	"sync"
	"time"

	"concurso-study-service/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Add(session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = session
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	return session, ok
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// DeleteIfIdle drops the session when nothing is running and no one listens.
func (s *SessionStore) DeleteIfIdle(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok || !session.Idle() {
		return false
	}
	delete(s.sessions, sessionID)
	return true
}

// Prune closes and drops every session idle for at least maxIdle.
func (s *SessionStore) Prune(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	pruned := 0
	for id, session := range s.sessions {
		if !session.Stale(maxIdle) {
			continue
		}
		session.Close()
		delete(s.sessions, id)
		pruned++
	}
	return pruned
}

// Close tears down every session and empties the store.
func (s *SessionStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, session := range s.sessions {
		session.Close()
		delete(s.sessions, id)
	}
}
