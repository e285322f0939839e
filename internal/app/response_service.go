package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"vendor-risk-service/internal/domain"
)

// SessionRepository abstracts where open editing sessions live (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Get(questionnaireID string) (*Session, bool)
	Put(session *Session)
	Delete(questionnaireID string)
	// DeleteIfIdle removes the session only when Session.DetachIfIdle agrees,
	// both under the repository lock.
	DeleteIfIdle(questionnaireID string) (*Session, bool)
	All() []*Session
	Touch(ctx context.Context, questionnaireID string) error
}

// SessionHolder is who holds a questionnaire's editing session.
type SessionHolder struct {
	VendorID string
	Instance string
}

// HolderLookup is implemented by repositories shared between instances.
type HolderLookup interface {
	Holder(ctx context.Context, questionnaireID string) (SessionHolder, bool, error)
	Instance() string
}

// TemplateRepository loads template content (from cache/backing store).
type TemplateRepository interface {
	GetTemplate(ctx context.Context, templateID string) (domain.Template, error)
}

// ResponseService contains the questionnaire-answering use cases.
type ResponseService struct {
	sessions SessionRepository
	backend  Backend
	files    FileStorage
	opts     SessionOptions
	logger   *zap.Logger
	opening  singleflight.Group
}

func NewResponseService(sessions SessionRepository, backend Backend, files FileStorage, opts SessionOptions) *ResponseService {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &ResponseService{
		sessions: sessions,
		backend:  backend,
		files:    files,
		opts:     opts,
		logger:   opts.Logger,
	}
}

// openAttempts bounds how often Open retries after racing a Release.
const openAttempts = 3

// Open returns the editing session of a questionnaire, loading it on first use.
// Concurrent opens of the same questionnaire share one load. Every successful
// Open holds the session open until a matching Release.
func (s *ResponseService) Open(ctx context.Context, questionnaireID, vendorID string) (*Session, error) {
	for attempt := 0; attempt < openAttempts; attempt++ {
		session, err := s.lookupOrLoad(ctx, questionnaireID, vendorID)
		if err != nil {
			return nil, err
		}
		if session.VendorID() != vendorID {
			return nil, domain.ErrVendorMismatch
		}
		if session.acquire() {
			return session, nil
		}
		// Released and detached between lookup and acquire; it is already
		// gone from the repository, so the next attempt loads afresh.
	}
	return nil, domain.ErrSessionClosed
}

func (s *ResponseService) lookupOrLoad(ctx context.Context, questionnaireID, vendorID string) (*Session, error) {
	if session, ok := s.sessions.Get(questionnaireID); ok {
		return session, nil
	}

	result, err, _ := s.opening.Do(questionnaireID, func() (interface{}, error) {
		if session, ok := s.sessions.Get(questionnaireID); ok {
			return session, nil
		}
		if err := s.checkHolder(ctx, questionnaireID, vendorID); err != nil {
			return nil, err
		}
		session, err := OpenSession(ctx, s.backend, s.files, questionnaireID, vendorID, s.opts)
		if err != nil {
			return nil, err
		}
		s.sessions.Put(session)
		s.logger.Info("questionnaire session opened",
			zap.String("questionnaireId", questionnaireID),
			zap.String("vendorId", vendorID))
		return session, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Session), nil
}

// checkHolder refuses a questionnaire whose session another instance holds.
func (s *ResponseService) checkHolder(ctx context.Context, questionnaireID, vendorID string) error {
	lookup, ok := s.sessions.(HolderLookup)
	if !ok {
		return nil
	}
	holder, found, err := lookup.Holder(ctx, questionnaireID)
	if err != nil {
		s.logger.Warn("read session holder", zap.String("questionnaireId", questionnaireID), zap.Error(err))
		return nil
	}
	switch {
	case !found:
		return nil
	case holder.VendorID != vendorID:
		return domain.ErrVendorMismatch
	case holder.Instance != lookup.Instance():
		return fmt.Errorf("%w: %s", domain.ErrSessionHeldElsewhere, holder.Instance)
	}
	return nil
}

// Session returns an already open session.
func (s *ResponseService) Session(questionnaireID string) (*Session, error) {
	session, ok := s.sessions.Get(questionnaireID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Edit applies a partial answer to an open session.
func (s *ResponseService) Edit(ctx context.Context, questionnaireID, questionID string, patch domain.ResponsePatch) (domain.Response, domain.Progress, error) {
	session, err := s.Session(questionnaireID)
	if err != nil {
		return domain.Response{}, domain.Progress{}, err
	}
	r, progress, err := session.Edit(questionID, patch)
	if err != nil {
		return r, progress, err
	}
	if err := s.sessions.Touch(ctx, questionnaireID); err != nil {
		s.logger.Debug("touch session", zap.String("questionnaireId", questionnaireID), zap.Error(err))
	}
	return r, progress, nil
}

// UploadEvidence stores a file for a question of an open session.
func (s *ResponseService) UploadEvidence(ctx context.Context, questionnaireID, questionID, filename string, r io.Reader, size int64, contentType string) (domain.UploadResult, error) {
	session, err := s.Session(questionnaireID)
	if err != nil {
		return domain.UploadResult{}, err
	}
	return session.UploadEvidence(ctx, questionID, filename, r, size, contentType), nil
}

// Subscribe returns a channel that receives events for a questionnaire session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *ResponseService) Subscribe(_ context.Context, questionnaireID string) (<-chan domain.SessionEvent, func(), error) {
	session, err := s.Session(questionnaireID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// Close tears a session down and forgets it.
func (s *ResponseService) Close(ctx context.Context, questionnaireID string) error {
	session, ok := s.sessions.Get(questionnaireID)
	if !ok {
		return nil
	}
	s.sessions.Delete(questionnaireID)
	return session.Close(ctx)
}

// Release drops the hold taken by Open and closes the session once nobody
// holds or subscribes to it.
func (s *ResponseService) Release(ctx context.Context, questionnaireID string) error {
	session, ok := s.sessions.Get(questionnaireID)
	if !ok {
		return nil
	}
	session.release()
	idle, ok := s.sessions.DeleteIfIdle(questionnaireID)
	if !ok {
		return nil
	}
	return idle.Close(ctx)
}

// CloseAll tears every open session down, e.g. on shutdown.
func (s *ResponseService) CloseAll(ctx context.Context) error {
	var errs []error
	for _, session := range s.sessions.All() {
		if err := s.Close(ctx, session.ID()); err != nil {
			s.logger.Warn("close session", zap.String("questionnaireId", session.ID()), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Review records the client's decision on a submitted questionnaire.
func (s *ResponseService) Review(ctx context.Context, questionnaireID string, decision domain.ReviewDecision, notes string) (domain.Questionnaire, error) {
	switch decision {
	case domain.ReviewApprove, domain.ReviewReject:
	default:
		return domain.Questionnaire{}, domain.ErrInvalidTransition
	}
	ctx, span := startSpan(ctx, "questionnaire.review", questionnaireID)
	q, err := s.backend.ReviewQuestionnaire(ctx, questionnaireID, decision, notes)
	endSpan(span, err)
	if err != nil {
		return domain.Questionnaire{}, err
	}
	s.logger.Info("questionnaire reviewed",
		zap.String("questionnaireId", questionnaireID),
		zap.String("status", string(q.Status)))
	return q, nil
}
