package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"vendor-risk-service/internal/app"
	"vendor-risk-service/internal/domain"
)

// Backend persists questionnaires and responses in Postgres.
type Backend struct {
	pool      *pgxpool.Pool
	templates app.TemplateRepository
	newID     func() string
}

func NewBackend(pool *pgxpool.Pool, templates app.TemplateRepository) *Backend {
	return &Backend{pool: pool, templates: templates, newID: uuid.NewString}
}

const questionnaireColumns = `id, template_id, vendor_id, status, risk_score, started_at, submitted_at, reviewed_at, review_notes`

const responseColumns = `id, question_id, response_text, response_data, evidence_files, evidence_notes, status, created_at, updated_at`

func (b *Backend) LoadQuestionnaire(ctx context.Context, questionnaireID string) (domain.QuestionnaireBundle, error) {
	q, err := b.questionnaire(ctx, questionnaireID)
	if err != nil {
		return domain.QuestionnaireBundle{}, err
	}
	template, err := b.templates.GetTemplate(ctx, q.TemplateID)
	if err != nil {
		return domain.QuestionnaireBundle{}, err
	}
	responses, err := b.responses(ctx, questionnaireID)
	if err != nil {
		return domain.QuestionnaireBundle{}, err
	}

	prior := make([]domain.Response, 0, len(responses))
	for _, section := range template.Sections {
		for _, question := range section.Questions {
			if r, ok := responses[question.ID]; ok {
				prior = append(prior, r)
			}
		}
	}
	return domain.QuestionnaireBundle{Questionnaire: q, Template: template, PriorResponses: prior}, nil
}

func (b *Backend) SaveResponse(ctx context.Context, questionnaireID, questionID, vendorID string, input domain.ResponseInput) (domain.SaveResult, error) {
	q, err := b.questionnaire(ctx, questionnaireID)
	if err != nil {
		return domain.SaveResult{}, err
	}
	template, err := b.templates.GetTemplate(ctx, q.TemplateID)
	if err != nil {
		return domain.SaveResult{}, err
	}
	if _, ok := template.Question(questionID); !ok {
		return domain.SaveResult{}, domain.ErrQuestionNotFound
	}

	data := input.ResponseData
	if data == nil {
		data = map[string]any{}
	}
	rawData, err := json.Marshal(data)
	if err != nil {
		return domain.SaveResult{}, fmt.Errorf("marshal response data: %w", err)
	}
	files := input.EvidenceFiles
	if files == nil {
		files = []string{}
	}

	// The questionnaire guard keeps the write atomic with the status check.
	row := b.pool.QueryRow(ctx, `
		INSERT INTO responses (id, questionnaire_id, question_id, response_text, response_data, evidence_files, evidence_notes, status)
		SELECT $1, q.id, $3, $4, $5::jsonb, $6, $7, 'DRAFT'
		FROM questionnaires q
		WHERE q.id = $2 AND q.vendor_id = $8 AND q.status IN ('NOT_STARTED', 'IN_PROGRESS')
		ON CONFLICT (questionnaire_id, question_id) DO UPDATE SET
			response_text = EXCLUDED.response_text,
			response_data = EXCLUDED.response_data,
			evidence_files = EXCLUDED.evidence_files,
			evidence_notes = EXCLUDED.evidence_notes,
			status = 'DRAFT',
			updated_at = now()
		RETURNING `+responseColumns,
		b.newID(), questionnaireID, questionID, input.ResponseText, string(rawData), files, input.EvidenceNotes, vendorID)

	saved, err := scanResponse(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SaveResult{}, b.refusal(ctx, questionnaireID, vendorID, domain.ErrQuestionnaireLocked)
	}
	if err != nil {
		return domain.SaveResult{}, fmt.Errorf("save response: %w", err)
	}

	responses, err := b.responses(ctx, questionnaireID)
	if err != nil {
		return domain.SaveResult{}, err
	}
	return domain.SaveResult{Response: saved, Progress: app.ComputeProgress(template, responses)}, nil
}

func (b *Backend) StartQuestionnaire(ctx context.Context, questionnaireID, vendorID string) error {
	tag, err := b.pool.Exec(ctx, `
		UPDATE questionnaires SET status = 'IN_PROGRESS', started_at = now()
		WHERE id = $1 AND vendor_id = $2 AND status = 'NOT_STARTED'`,
		questionnaireID, vendorID)
	if err != nil {
		return fmt.Errorf("start questionnaire: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return b.refusal(ctx, questionnaireID, vendorID, domain.ErrInvalidTransition)
	}
	return nil
}

func (b *Backend) SubmitQuestionnaire(ctx context.Context, questionnaireID, vendorID string) error {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin submit: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE questionnaires SET status = 'SUBMITTED', submitted_at = now()
		WHERE id = $1 AND vendor_id = $2 AND status = 'IN_PROGRESS'`,
		questionnaireID, vendorID)
	if err != nil {
		return fmt.Errorf("submit questionnaire: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return b.refusal(ctx, questionnaireID, vendorID, domain.ErrNotSubmittable)
	}
	if _, err := tx.Exec(ctx, `UPDATE responses SET status = 'SUBMITTED' WHERE questionnaire_id = $1`, questionnaireID); err != nil {
		return fmt.Errorf("submit responses: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit submit: %w", err)
	}
	return nil
}

func (b *Backend) ReviewQuestionnaire(ctx context.Context, questionnaireID string, decision domain.ReviewDecision, notes string) (domain.Questionnaire, error) {
	q, err := b.questionnaire(ctx, questionnaireID)
	if err != nil {
		return domain.Questionnaire{}, err
	}
	if q.Status != domain.StatusSubmitted {
		return domain.Questionnaire{}, domain.ErrInvalidTransition
	}
	template, err := b.templates.GetTemplate(ctx, q.TemplateID)
	if err != nil {
		return domain.Questionnaire{}, err
	}
	responses, err := b.responses(ctx, questionnaireID)
	if err != nil {
		return domain.Questionnaire{}, err
	}

	status := domain.StatusRejected
	if decision == domain.ReviewApprove {
		status = domain.StatusApproved
	}
	row := b.pool.QueryRow(ctx, `
		UPDATE questionnaires SET status = $2, risk_score = $3, review_notes = $4, reviewed_at = now()
		WHERE id = $1 AND status = 'SUBMITTED'
		RETURNING `+questionnaireColumns,
		questionnaireID, string(status), app.ComputeRiskScore(template, responses), notes)
	reviewed, err := scanQuestionnaire(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Questionnaire{}, domain.ErrInvalidTransition
	}
	if err != nil {
		return domain.Questionnaire{}, fmt.Errorf("review questionnaire: %w", err)
	}
	return reviewed, nil
}

// refusal explains why a guarded write matched no row.
func (b *Backend) refusal(ctx context.Context, questionnaireID, vendorID string, fallback error) error {
	q, err := b.questionnaire(ctx, questionnaireID)
	if err != nil {
		return err
	}
	if q.VendorID != vendorID {
		return domain.ErrVendorMismatch
	}
	return fallback
}

func (b *Backend) questionnaire(ctx context.Context, questionnaireID string) (domain.Questionnaire, error) {
	row := b.pool.QueryRow(ctx, `SELECT `+questionnaireColumns+` FROM questionnaires WHERE id = $1`, questionnaireID)
	q, err := scanQuestionnaire(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Questionnaire{}, domain.ErrQuestionnaireNotFound
	}
	if err != nil {
		return domain.Questionnaire{}, fmt.Errorf("load questionnaire: %w", err)
	}
	return q, nil
}

func (b *Backend) responses(ctx context.Context, questionnaireID string) (map[string]domain.Response, error) {
	rows, err := b.pool.Query(ctx, `SELECT `+responseColumns+` FROM responses WHERE questionnaire_id = $1`, questionnaireID)
	if err != nil {
		return nil, fmt.Errorf("load responses: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.Response)
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		out[r.QuestionID] = r
	}
	return out, rows.Err()
}

func scanQuestionnaire(row pgx.Row) (domain.Questionnaire, error) {
	var (
		q      domain.Questionnaire
		status string
	)
	err := row.Scan(&q.ID, &q.TemplateID, &q.VendorID, &status, &q.RiskScore,
		&q.StartedAt, &q.SubmittedAt, &q.ReviewedAt, &q.ReviewNotes)
	if err != nil {
		return domain.Questionnaire{}, err
	}
	q.Status = domain.QuestionnaireStatus(status)
	return q, nil
}

func scanResponse(row pgx.Row) (domain.Response, error) {
	var (
		r       domain.Response
		rawData []byte
		status  string
	)
	err := row.Scan(&r.ID, &r.QuestionID, &r.ResponseText, &rawData, &r.EvidenceFiles,
		&r.EvidenceNotes, &status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return domain.Response{}, err
	}
	r.Status = domain.ResponseStatus(status)
	if len(rawData) > 0 {
		if err := json.Unmarshal(rawData, &r.ResponseData); err != nil {
			return domain.Response{}, fmt.Errorf("unmarshal response data: %w", err)
		}
	}
	if len(r.ResponseData) == 0 {
		r.ResponseData = nil
	}
	return r, nil
}
