package memory

import (
	"context"
	"sync"

	"vendor-risk-service/internal/app"
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

func (s *SessionStore) Put(session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = session
}

func (s *SessionStore) Get(questionnaireID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[questionnaireID]
	return session, ok
}

func (s *SessionStore) Delete(questionnaireID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, questionnaireID)
}

// DeleteIfIdle drops the session when nobody holds it. Detaching happens
// under the store lock so a concurrent Get cannot hand out a session that is
// about to close.
func (s *SessionStore) DeleteIfIdle(questionnaireID string) (*app.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[questionnaireID]
	if !ok || !session.DetachIfIdle() {
		return nil, false
	}
	delete(s.sessions, questionnaireID)
	return session, true
}

func (s *SessionStore) All() []*app.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*app.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	return out
}

func (s *SessionStore) Touch(context.Context, string) error { return nil }
