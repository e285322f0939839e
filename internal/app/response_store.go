package app

import (
	"sync"
	"time"

	"vendor-risk-service/internal/domain"
)

// ResponseStore is the authoritative in-memory copy of a session's answers.
// Edits land here immediately; the autosave scheduler reconciles them with
// the backend later.
type ResponseStore struct {
	now func() time.Time

	mu        sync.RWMutex
	responses map[string]*domain.Response
}

// NewResponseStore seeds the store with previously persisted responses.
func NewResponseStore(prior []domain.Response) *ResponseStore {
	return newResponseStoreWithClock(prior, time.Now)
}

func newResponseStoreWithClock(prior []domain.Response, now func() time.Time) *ResponseStore {
	s := &ResponseStore{
		now:       now,
		responses: make(map[string]*domain.Response, len(prior)),
	}
	for _, r := range prior {
		cp := r.Clone()
		s.responses[r.QuestionID] = &cp
	}
	return s
}

// Update merges patch into the response for questionID, creating a draft
// shell on first edit, and returns a copy of the merged response.
func (s *ResponseStore) Update(questionID string, patch domain.ResponsePatch) domain.Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(questionID, patch)
}

// AppendEvidence adds a stored file reference to the question's evidence list.
func (s *ResponseStore) AppendEvidence(questionID, fileURL string) domain.Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	var files []string
	if current, ok := s.responses[questionID]; ok {
		files = append(files, current.EvidenceFiles...)
	}
	files = append(files, fileURL)
	return s.updateLocked(questionID, domain.ResponsePatch{EvidenceFiles: &files})
}

func (s *ResponseStore) updateLocked(questionID string, patch domain.ResponsePatch) domain.Response {
	now := s.now()
	current, ok := s.responses[questionID]
	if !ok {
		current = &domain.Response{
			QuestionID: questionID,
			Status:     domain.ResponseStatusDraft,
			CreatedAt:  now,
		}
		s.responses[questionID] = current
	}

	if patch.ResponseText != nil {
		current.ResponseText = *patch.ResponseText
	}
	if len(patch.ResponseData) > 0 {
		if current.ResponseData == nil {
			current.ResponseData = make(map[string]any, len(patch.ResponseData))
		}
		for k, v := range patch.ResponseData {
			current.ResponseData[k] = v
		}
	}
	if patch.EvidenceFiles != nil {
		current.EvidenceFiles = append([]string(nil), (*patch.EvidenceFiles)...)
	}
	if patch.EvidenceNotes != nil {
		current.EvidenceNotes = *patch.EvidenceNotes
	}
	current.UpdatedAt = now

	return current.Clone()
}

// Get returns a copy of the response for questionID.
func (s *ResponseStore) Get(questionID string) (domain.Response, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.responses[questionID]
	if !ok {
		return domain.Response{}, false
	}
	return r.Clone(), true
}

// Lookup satisfies ResponseLookup for validation and progress.
func (s *ResponseStore) Lookup(questionID string) *domain.Response {
	r, ok := s.Get(questionID)
	if !ok {
		return nil
	}
	return &r
}

// Snapshot copies every response, keyed by question id.
func (s *ResponseStore) Snapshot() map[string]domain.Response {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Response, len(s.responses))
	for id, r := range s.responses {
		out[id] = r.Clone()
	}
	return out
}

// Reconcile overlays server-confirmed metadata. User-entered fields are never
// replaced so a slow save cannot clobber newer local edits.
func (s *ResponseStore) Reconcile(confirmed domain.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.responses[confirmed.QuestionID]
	if !ok {
		return
	}
	if confirmed.ID != "" {
		current.ID = confirmed.ID
	}
	if !confirmed.CreatedAt.IsZero() {
		current.CreatedAt = confirmed.CreatedAt
	}
	if confirmed.UpdatedAt.After(current.UpdatedAt) {
		current.UpdatedAt = confirmed.UpdatedAt
	}
}

// MarkSubmitted flips every response to SUBMITTED after a confirmed submission.
func (s *ResponseStore) MarkSubmitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.responses {
		r.Status = domain.ResponseStatusSubmitted
	}
}
