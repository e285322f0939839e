package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"vendor-risk-service/internal/domain"
)

type templateRow struct {
	bun.BaseModel `bun:"table:templates"`

	ID        string          `bun:"id,pk"`
	Name      string          `bun:"name"`
	RiskLevel string          `bun:"risk_level"`
	Data      json.RawMessage `bun:"data,type:jsonb"`
	UpdatedAt time.Time       `bun:"updated_at"`
}

type questionnaireRow struct {
	bun.BaseModel `bun:"table:questionnaires"`

	ID         string `bun:"id,pk"`
	TemplateID string `bun:"template_id"`
	VendorID   string `bun:"vendor_id"`
	Status     string `bun:"status"`
}

// TemplateStore writes templates and invitations through bun.
type TemplateStore struct {
	db *bun.DB
}

func NewTemplateStore(db *bun.DB) *TemplateStore {
	return &TemplateStore{db: db}
}

// UpsertTemplate inserts the template or replaces its document.
func (s *TemplateStore) UpsertTemplate(ctx context.Context, template domain.Template) error {
	data, err := json.Marshal(template)
	if err != nil {
		return fmt.Errorf("marshal template: %w", err)
	}
	row := &templateRow{
		ID:        template.ID,
		Name:      template.Name,
		RiskLevel: template.RiskLevel,
		Data:      data,
		UpdatedAt: time.Now().UTC(),
	}
	_, err = s.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("risk_level = EXCLUDED.risk_level").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert template: %w", err)
	}
	return nil
}

// InviteVendor creates a NOT_STARTED questionnaire of a template for a vendor.
func (s *TemplateStore) InviteVendor(ctx context.Context, questionnaireID, templateID, vendorID string) error {
	row := &questionnaireRow{
		ID:         questionnaireID,
		TemplateID: templateID,
		VendorID:   vendorID,
		Status:     string(domain.StatusNotStarted),
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("invite vendor: %w", err)
	}
	return nil
}
