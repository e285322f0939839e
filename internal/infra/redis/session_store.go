package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"vendor-risk-service/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Sessions own timers and subscriber channels, so the live objects stay in
//     a local map.
//   - Redis marks each open questionnaire with its vendor and the instance
//     holding it; the marker expires unless edits keep touching it. Other
//     instances read it to refuse a second session on the same questionnaire.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	instance string
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration, instance string) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		instance: instance,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Put(session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = session

	ctx := context.Background()
	key := s.key(session.ID())
	// best-effort marker; a dead Redis must not stop local editing
	_, _ = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "vendorId", session.VendorID(), "instance", s.instance)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
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
	if _, ok := s.sessions[questionnaireID]; !ok {
		return
	}
	s.deleteLocked(questionnaireID)
}

// DeleteIfIdle drops the session and its marker when nobody holds it.
func (s *SessionStore) DeleteIfIdle(questionnaireID string) (*app.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[questionnaireID]
	if !ok || !session.DetachIfIdle() {
		return nil, false
	}
	s.deleteLocked(questionnaireID)
	return session, true
}

func (s *SessionStore) deleteLocked(questionnaireID string) {
	delete(s.sessions, questionnaireID)
	_ = s.client.Del(context.Background(), s.key(questionnaireID)).Err()
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

// Touch extends the marker of an open session.
func (s *SessionStore) Touch(ctx context.Context, questionnaireID string) error {
	return s.client.Expire(ctx, s.key(questionnaireID), s.ttl).Err()
}

// Holder reads the marker of a questionnaire, whichever instance wrote it.
func (s *SessionStore) Holder(ctx context.Context, questionnaireID string) (app.SessionHolder, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.key(questionnaireID)).Result()
	if err != nil {
		return app.SessionHolder{}, false, err
	}
	if len(fields) == 0 {
		return app.SessionHolder{}, false, nil
	}
	return app.SessionHolder{VendorID: fields["vendorId"], Instance: fields["instance"]}, true, nil
}

// Instance names this process in the markers it writes.
func (s *SessionStore) Instance() string { return s.instance }

func (s *SessionStore) key(questionnaireID string) string {
	return "questionnaire:session:" + questionnaireID
}
