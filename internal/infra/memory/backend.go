package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"vendor-risk-service/internal/app"
	"vendor-risk-service/internal/domain"
)

// Backend is an in-memory implementation of app.Backend.
type Backend struct {
	templates app.TemplateRepository
	now       func() time.Time
	newID     func() string

	mu             sync.RWMutex
	questionnaires map[string]domain.Questionnaire
	responses      map[string]map[string]domain.Response
}

func NewBackend(templates app.TemplateRepository) *Backend {
	return &Backend{
		templates:      templates,
		now:            func() time.Time { return time.Now().UTC() },
		newID:          uuid.NewString,
		questionnaires: make(map[string]domain.Questionnaire),
		responses:      make(map[string]map[string]domain.Response),
	}
}

// AddQuestionnaire registers a questionnaire instance, as an invitation would.
func (b *Backend) AddQuestionnaire(q domain.Questionnaire) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if q.Status == "" {
		q.Status = domain.StatusNotStarted
	}
	b.questionnaires[q.ID] = q
	if _, ok := b.responses[q.ID]; !ok {
		b.responses[q.ID] = make(map[string]domain.Response)
	}
}

// Questionnaire returns the stored questionnaire.
func (b *Backend) Questionnaire(questionnaireID string) (domain.Questionnaire, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	q, ok := b.questionnaires[questionnaireID]
	return q, ok
}

// StoredResponse returns the durable copy of one response.
func (b *Backend) StoredResponse(questionnaireID, questionID string) (domain.Response, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.responses[questionnaireID][questionID]
	return r.Clone(), ok
}

func (b *Backend) LoadQuestionnaire(ctx context.Context, questionnaireID string) (domain.QuestionnaireBundle, error) {
	q, ok := b.Questionnaire(questionnaireID)
	if !ok {
		return domain.QuestionnaireBundle{}, domain.ErrQuestionnaireNotFound
	}
	template, err := b.templates.GetTemplate(ctx, q.TemplateID)
	if err != nil {
		return domain.QuestionnaireBundle{}, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	prior := make([]domain.Response, 0, len(b.responses[questionnaireID]))
	for _, section := range template.Sections {
		for _, question := range section.Questions {
			if r, ok := b.responses[questionnaireID][question.ID]; ok {
				prior = append(prior, r.Clone())
			}
		}
	}
	return domain.QuestionnaireBundle{Questionnaire: q, Template: template, PriorResponses: prior}, nil
}

func (b *Backend) SaveResponse(ctx context.Context, questionnaireID, questionID, vendorID string, input domain.ResponseInput) (domain.SaveResult, error) {
	q, ok := b.Questionnaire(questionnaireID)
	if !ok {
		return domain.SaveResult{}, domain.ErrQuestionnaireNotFound
	}
	if q.VendorID != vendorID {
		return domain.SaveResult{}, domain.ErrVendorMismatch
	}
	template, err := b.templates.GetTemplate(ctx, q.TemplateID)
	if err != nil {
		return domain.SaveResult{}, err
	}
	if _, ok := template.Question(questionID); !ok {
		return domain.SaveResult{}, domain.ErrQuestionNotFound
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if q := b.questionnaires[questionnaireID]; q.Status != domain.StatusNotStarted && q.Status != domain.StatusInProgress {
		return domain.SaveResult{}, domain.ErrQuestionnaireLocked
	}

	now := b.now()
	stored, exists := b.responses[questionnaireID][questionID]
	if !exists {
		stored = domain.Response{ID: b.newID(), QuestionID: questionID, CreatedAt: now}
	}
	stored.ResponseText = input.ResponseText
	stored.ResponseData = input.ResponseData
	stored.EvidenceFiles = input.EvidenceFiles
	stored.EvidenceNotes = input.EvidenceNotes
	stored.Status = domain.ResponseStatusDraft
	stored.UpdatedAt = now
	b.responses[questionnaireID][questionID] = stored.Clone()

	return domain.SaveResult{
		Response: stored,
		Progress: app.ComputeProgress(template, b.responses[questionnaireID]),
	}, nil
}

func (b *Backend) StartQuestionnaire(_ context.Context, questionnaireID, vendorID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.questionnaires[questionnaireID]
	if !ok {
		return domain.ErrQuestionnaireNotFound
	}
	if q.VendorID != vendorID {
		return domain.ErrVendorMismatch
	}
	if q.Status != domain.StatusNotStarted {
		return domain.ErrInvalidTransition
	}
	now := b.now()
	q.Status = domain.StatusInProgress
	q.StartedAt = &now
	b.questionnaires[questionnaireID] = q
	return nil
}

func (b *Backend) SubmitQuestionnaire(_ context.Context, questionnaireID, vendorID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.questionnaires[questionnaireID]
	if !ok {
		return domain.ErrQuestionnaireNotFound
	}
	if q.VendorID != vendorID {
		return domain.ErrVendorMismatch
	}
	if q.Status != domain.StatusInProgress {
		return domain.ErrNotSubmittable
	}
	now := b.now()
	q.Status = domain.StatusSubmitted
	q.SubmittedAt = &now
	b.questionnaires[questionnaireID] = q
	for id, r := range b.responses[questionnaireID] {
		r.Status = domain.ResponseStatusSubmitted
		b.responses[questionnaireID][id] = r
	}
	return nil
}

func (b *Backend) ReviewQuestionnaire(ctx context.Context, questionnaireID string, decision domain.ReviewDecision, notes string) (domain.Questionnaire, error) {
	q, ok := b.Questionnaire(questionnaireID)
	if !ok {
		return domain.Questionnaire{}, domain.ErrQuestionnaireNotFound
	}
	template, err := b.templates.GetTemplate(ctx, q.TemplateID)
	if err != nil {
		return domain.Questionnaire{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	q = b.questionnaires[questionnaireID]
	if q.Status != domain.StatusSubmitted {
		return domain.Questionnaire{}, domain.ErrInvalidTransition
	}
	score := app.ComputeRiskScore(template, b.responses[questionnaireID])
	now := b.now()
	q.RiskScore = &score
	q.ReviewedAt = &now
	q.ReviewNotes = notes
	if decision == domain.ReviewApprove {
		q.Status = domain.StatusApproved
	} else {
		q.Status = domain.StatusRejected
	}
	b.questionnaires[questionnaireID] = q
	return q, nil
}
