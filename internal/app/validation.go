package app

import (
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"vendor-risk-service/internal/domain"
)

const (
	msgRequired     = "This question is required"
	msgInvalidEmail = "Please enter a valid email address"
	msgInvalidURL   = "Please enter a valid URL"
	msgInvalidNum   = "Please enter a valid number"
)

// validator.Validate caches parsed tags and is safe for concurrent use.
var formats = validator.New()

// IsAnswered reports whether r holds any answer content for q.
func IsAnswered(q domain.Question, r *domain.Response) bool {
	if r == nil {
		return false
	}
	if strings.TrimSpace(r.ResponseText) != "" {
		return true
	}
	if len(r.ResponseData) > 0 {
		return true
	}
	return carriesEvidence(q) && len(r.EvidenceFiles) > 0
}

func carriesEvidence(q domain.Question) bool {
	return q.EvidenceRequired || q.QuestionType == domain.QuestionTypeFileUpload
}

// Validate checks one answer. It returns nil when the answer is acceptable.
func Validate(q domain.Question, r *domain.Response) *domain.ValidationError {
	if !IsAnswered(q, r) {
		if q.IsRequired {
			return &domain.ValidationError{QuestionID: q.ID, Message: msgRequired}
		}
		return nil
	}

	value := strings.TrimSpace(r.ResponseText)
	if value == "" {
		return nil
	}

	switch q.QuestionType {
	case domain.QuestionTypeEmail:
		if formats.Var(value, "email") != nil {
			return &domain.ValidationError{QuestionID: q.ID, Message: msgInvalidEmail}
		}
	case domain.QuestionTypeURL:
		if formats.Var(value, "url") != nil {
			return &domain.ValidationError{QuestionID: q.ID, Message: msgInvalidURL}
		}
	case domain.QuestionTypeNumber:
		if !isFiniteNumber(value) {
			return &domain.ValidationError{QuestionID: q.ID, Message: msgInvalidNum}
		}
	}
	return nil
}

func isFiniteNumber(value string) bool {
	n, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return false
	}
	return !math.IsNaN(n) && !math.IsInf(n, 0)
}

// ValidateSection validates every question of the section in order.
func ValidateSection(section domain.Section, responses map[string]domain.Response) []domain.ValidationError {
	var errs []domain.ValidationError
	for _, q := range section.Questions {
		if err := Validate(q, lookup(responses, q.ID)); err != nil {
			errs = append(errs, *err)
		}
	}
	return errs
}

// ValidateAll validates the whole template in section order.
func ValidateAll(template domain.Template, responses map[string]domain.Response) []domain.ValidationError {
	var errs []domain.ValidationError
	for _, section := range template.Sections {
		errs = append(errs, ValidateSection(section, responses)...)
	}
	return errs
}

func lookup(responses map[string]domain.Response, questionID string) *domain.Response {
	r, ok := responses[questionID]
	if !ok {
		return nil
	}
	return &r
}
