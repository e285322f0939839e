package app

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"vendor-risk-service/internal/domain"
	"vendor-risk-service/internal/metrics"
)

var tracer = otel.Tracer("vendor-risk-service/app")

// Backend is the durable side of a questionnaire: the application's API or database.
type Backend interface {
	LoadQuestionnaire(ctx context.Context, questionnaireID string) (domain.QuestionnaireBundle, error)
	SaveResponse(ctx context.Context, questionnaireID, questionID, vendorID string, input domain.ResponseInput) (domain.SaveResult, error)
	StartQuestionnaire(ctx context.Context, questionnaireID, vendorID string) error
	SubmitQuestionnaire(ctx context.Context, questionnaireID, vendorID string) error
	ReviewQuestionnaire(ctx context.Context, questionnaireID string, decision domain.ReviewDecision, notes string) (domain.Questionnaire, error)
}

// FileStorage stores evidence files and returns a URL for them.
type FileStorage interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

// SessionOptions configures a questionnaire editing session.
type SessionOptions struct {
	Autosave     AutosaveOptions
	FlushOnClose bool
	Logger       *zap.Logger
	Now          func() time.Time
}

// Session is one vendor's live editing session of one questionnaire.
type Session struct {
	id           string
	vendorID     string
	template     domain.Template
	backend      Backend
	files        FileStorage
	logger       *zap.Logger
	now          func() time.Time
	flushOnClose bool

	store     *ResponseStore
	scheduler *AutosaveScheduler
	nav       *Navigator

	mu            sync.RWMutex
	questionnaire domain.Questionnaire
	closed        bool
	submitting    bool
	detached      bool
	holders       int
	subscribers   map[chan domain.SessionEvent]struct{}
}

// OpenSession loads the questionnaire and prepares the editing state. A load
// failure is fatal to the session.
func OpenSession(ctx context.Context, backend Backend, files FileStorage, questionnaireID, vendorID string, opts SessionOptions) (*Session, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, span := startSpan(ctx, "questionnaire.load", questionnaireID)
	bundle, err := backend.LoadQuestionnaire(ctx, questionnaireID)
	endSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("load questionnaire %s: %w", questionnaireID, err)
	}
	if bundle.Questionnaire.VendorID != "" && bundle.Questionnaire.VendorID != vendorID {
		return nil, domain.ErrVendorMismatch
	}

	s := &Session{
		id:            questionnaireID,
		vendorID:      vendorID,
		template:      bundle.Template,
		backend:       backend,
		files:         files,
		logger:        opts.Logger.With(zap.String("questionnaireId", questionnaireID)),
		now:           opts.Now,
		flushOnClose:  opts.FlushOnClose,
		store:         newResponseStoreWithClock(bundle.PriorResponses, opts.Now),
		questionnaire: bundle.Questionnaire,
		subscribers:   make(map[chan domain.SessionEvent]struct{}),
	}
	s.nav = NewNavigator(bundle.Template, s.store)

	autosave := opts.Autosave
	if autosave.Now == nil {
		autosave.Now = opts.Now
	}
	if autosave.Logger == nil {
		autosave.Logger = s.logger
	}
	s.scheduler = NewAutosaveScheduler(s.saveResponse, sessionObserver{s}, autosave)
	metrics.OpenSessions.Inc()
	return s, nil
}

// ID returns the questionnaire id.
func (s *Session) ID() string { return s.id }

// VendorID returns the vendor editing the questionnaire.
func (s *Session) VendorID() string { return s.vendorID }

// Template returns the template being answered.
func (s *Session) Template() domain.Template { return s.template }

// Questionnaire returns the last server-confirmed questionnaire state.
func (s *Session) Questionnaire() domain.Questionnaire {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.questionnaire
}

// Response returns the current in-memory answer to a question.
func (s *Session) Response(questionID string) (domain.Response, bool) {
	return s.store.Get(questionID)
}

// Responses returns a copy of every current answer keyed by question id.
func (s *Session) Responses() map[string]domain.Response {
	return s.store.Snapshot()
}

// Progress recomputes progress from the current answers.
func (s *Session) Progress() domain.Progress {
	return ComputeProgress(s.template, s.store.Snapshot())
}

// ShouldShow evaluates the follow-up field of a question against its current answer.
func (s *Session) ShouldShow(questionID string) (bool, error) {
	q, ok := s.template.Question(questionID)
	if !ok {
		return false, domain.ErrQuestionNotFound
	}
	return ShouldShow(q, s.store.Lookup(questionID)), nil
}

// Edit applies a partial answer, schedules its autosave and returns the
// merged response with the recomputed progress.
func (s *Session) Edit(questionID string, patch domain.ResponsePatch) (domain.Response, domain.Progress, error) {
	if _, ok := s.template.Question(questionID); !ok {
		return domain.Response{}, domain.Progress{}, domain.ErrQuestionNotFound
	}

	// The read lock keeps a submission from starting between the check and
	// the write.
	s.mu.RLock()
	if err := s.checkEditableLocked(); err != nil {
		s.mu.RUnlock()
		return domain.Response{}, domain.Progress{}, err
	}
	r := s.store.Update(questionID, patch)
	err := s.scheduler.Schedule(questionID, r.Input())
	s.mu.RUnlock()
	if err != nil {
		return domain.Response{}, domain.Progress{}, err
	}
	progress := s.publishProgress()
	return r, progress, nil
}

// UploadEvidence stores a file and, only on success, appends its URL to the
// question's evidence list.
func (s *Session) UploadEvidence(ctx context.Context, questionID, filename string, r io.Reader, size int64, contentType string) domain.UploadResult {
	if _, ok := s.template.Question(questionID); !ok {
		return domain.UploadResult{Error: domain.ErrQuestionNotFound.Error()}
	}
	if err := s.checkEditable(); err != nil {
		return domain.UploadResult{Error: err.Error()}
	}
	if s.files == nil {
		return domain.UploadResult{Error: domain.ErrUploadFailed.Error()}
	}

	key := path.Join(s.id, questionID, uuid.NewString()+"-"+path.Base(filename))
	ctx, span := startSpan(ctx, "evidence.upload", s.id, attribute.String("questionId", questionID))
	url, err := s.files.Upload(ctx, key, r, size, contentType)
	endSpan(span, err)
	if err != nil {
		s.logger.Warn("evidence upload failed", zap.String("questionId", questionID), zap.Error(err))
		return domain.UploadResult{Error: fmt.Errorf("%w: %v", domain.ErrUploadFailed, err).Error()}
	}

	s.mu.RLock()
	if err := s.checkEditableLocked(); err != nil {
		s.mu.RUnlock()
		s.logger.Warn("evidence stored but not attached", zap.String("questionId", questionID), zap.Error(err))
		return domain.UploadResult{Error: err.Error()}
	}
	updated := s.store.AppendEvidence(questionID, url)
	if err := s.scheduler.Schedule(questionID, updated.Input()); err != nil {
		s.logger.Warn("schedule after upload", zap.String("questionId", questionID), zap.Error(err))
	}
	s.mu.RUnlock()
	s.publishProgress()
	return domain.UploadResult{Success: true, FileURL: url}
}

// Next advances one section when the current one validates.
func (s *Session) Next() (int, []domain.ValidationError, bool) {
	errs, moved := s.nav.Next()
	return s.nav.Current(), errs, moved
}

// Prev moves back one section.
func (s *Session) Prev() (int, bool) {
	moved := s.nav.Prev()
	return s.nav.Current(), moved
}

// GoTo jumps to a section without validation.
func (s *Session) GoTo(index int) int {
	return s.nav.GoTo(index)
}

// CurrentSection returns the active section index.
func (s *Session) CurrentSection() int {
	return s.nav.Current()
}

// ValidateAll validates every answer in template order.
func (s *Session) ValidateAll() []domain.ValidationError {
	return ValidateAll(s.template, s.store.Snapshot())
}

// Start moves NOT_STARTED to IN_PROGRESS once the backend confirms.
func (s *Session) Start(ctx context.Context) error {
	ctx, span := startSpan(ctx, "questionnaire.start", s.id)
	err := s.backend.StartQuestionnaire(ctx, s.id, s.vendorID)
	endSpan(span, err)
	if err != nil {
		return fmt.Errorf("start questionnaire: %w", err)
	}

	s.mu.Lock()
	now := s.now()
	s.questionnaire.Status = domain.StatusInProgress
	s.questionnaire.StartedAt = &now
	s.broadcastLocked(domain.SessionEvent{Kind: domain.EventStatus, Status: domain.StatusInProgress})
	s.mu.Unlock()
	return nil
}

// Submit validates everything, persists pending edits and hands the
// questionnaire to the backend. Validation errors are returned alongside
// ErrValidationFailed. Edits are refused with ErrSubmitInProgress until
// Submit returns.
func (s *Session) Submit(ctx context.Context) (_ []domain.ValidationError, err error) {
	if err := s.beginSubmit(); err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			s.mu.Lock()
			s.submitting = false
			s.mu.Unlock()
		}
	}()

	if errs := s.ValidateAll(); len(errs) > 0 {
		return errs, domain.ErrValidationFailed
	}
	// Answers whose last autosave failed are sent again from the store.
	for _, questionID := range s.scheduler.Unsaved() {
		if r, ok := s.store.Get(questionID); ok {
			if err := s.scheduler.Resend(questionID, r.Input()); err != nil {
				return nil, err
			}
		}
	}
	if err := s.scheduler.FlushAll(ctx); err != nil {
		return nil, fmt.Errorf("flush pending responses: %w", err)
	}
	if unsaved := s.scheduler.Unsaved(); len(unsaved) > 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsavedResponses, strings.Join(unsaved, ", "))
	}

	ctx, span := startSpan(ctx, "questionnaire.submit", s.id)
	err = s.backend.SubmitQuestionnaire(ctx, s.id, s.vendorID)
	endSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("submit questionnaire: %w", err)
	}

	s.store.MarkSubmitted()
	s.mu.Lock()
	now := s.now()
	s.submitting = false
	s.questionnaire.Status = domain.StatusSubmitted
	s.questionnaire.SubmittedAt = &now
	s.broadcastLocked(domain.SessionEvent{Kind: domain.EventStatus, Status: domain.StatusSubmitted})
	s.mu.Unlock()
	return nil, nil
}

// IsSaving reports whether an autosave for questionID is in flight.
func (s *Session) IsSaving(questionID string) bool {
	return s.scheduler.IsSaving(questionID)
}

// LastSaved reports the last successful autosave of questionID.
func (s *Session) LastSaved(questionID string) (time.Time, bool) {
	return s.scheduler.LastSaved(questionID)
}

// Subscribe returns a channel of session events. The first event is the
// current progress. The caller must invoke cancel to avoid leaks.
func (s *Session) Subscribe() (<-chan domain.SessionEvent, func()) {
	ch := make(chan domain.SessionEvent, 8)
	progress := s.Progress()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	ch <- domain.SessionEvent{Kind: domain.EventProgress, Progress: &progress}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// Close tears the session down, flushing pending autosaves when configured.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.scheduler.Close(ctx, s.flushOnClose)

	s.mu.Lock()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	s.mu.Unlock()
	metrics.OpenSessions.Dec()
	return err
}

// DetachIfIdle marks the session as leaving its repository when no caller
// holds it and nobody is subscribed. A detached session cannot be acquired
// again. Repositories call it under their own lock.
func (s *Session) DetachIfIdle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detached {
		return true
	}
	if s.holders > 0 || len(s.subscribers) > 0 {
		return false
	}
	s.detached = true
	return true
}

func (s *Session) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.detached {
		return false
	}
	s.holders++
	return true
}

func (s *Session) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holders > 0 {
		s.holders--
	}
}

func (s *Session) beginSubmit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return domain.ErrSessionClosed
	case s.submitting:
		return domain.ErrSubmitInProgress
	case !s.questionnaire.CanSubmit():
		return domain.ErrNotSubmittable
	}
	s.submitting = true
	return nil
}

func (s *Session) checkEditable() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkEditableLocked()
}

func (s *Session) checkEditableLocked() error {
	if s.closed {
		return domain.ErrSessionClosed
	}
	if s.submitting {
		return domain.ErrSubmitInProgress
	}
	switch s.questionnaire.Status {
	case domain.StatusNotStarted, domain.StatusInProgress:
		return nil
	default:
		return domain.ErrQuestionnaireLocked
	}
}

func (s *Session) saveResponse(ctx context.Context, questionID string, input domain.ResponseInput) (domain.SaveResult, error) {
	ctx, span := startSpan(ctx, "response.save", s.id, attribute.String("questionId", questionID))
	result, err := s.backend.SaveResponse(ctx, s.id, questionID, s.vendorID, input)
	endSpan(span, err)
	return result, err
}

func (s *Session) publishProgress() domain.Progress {
	progress := s.Progress()
	s.mu.Lock()
	s.broadcastLocked(domain.SessionEvent{Kind: domain.EventProgress, Progress: &progress})
	s.mu.Unlock()
	return progress
}

func (s *Session) broadcastLocked(event domain.SessionEvent) {
	if s.closed {
		return
	}
	for ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			// Slow subscriber: drop its oldest event instead of blocking edits.
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}

type sessionObserver struct {
	s *Session
}

func (o sessionObserver) SaveStarted(string) {}

func (o sessionObserver) Saved(questionID string, result domain.SaveResult, at time.Time) {
	if result.Response.QuestionID == "" {
		result.Response.QuestionID = questionID
	}
	o.s.store.Reconcile(result.Response)
	o.s.mu.Lock()
	o.s.broadcastLocked(domain.SessionEvent{Kind: domain.EventSaved, QuestionID: questionID, SavedAt: &at})
	o.s.mu.Unlock()
}

func (o sessionObserver) SaveFailed(questionID string, err error) {
	o.s.mu.Lock()
	o.s.broadcastLocked(domain.SessionEvent{Kind: domain.EventSaveFailed, QuestionID: questionID, Error: err.Error()})
	o.s.mu.Unlock()
}

func startSpan(ctx context.Context, name, questionnaireID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("questionnaireId", questionnaireID))
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
