package app_test

import (
	"testing"

	"vendor-risk-service/internal/app"
	"vendor-risk-service/internal/domain"
)

func TestValidateFormats(t *testing.T) {
	cases := []struct {
		name  string
		qtype domain.QuestionType
		text  string
		want  string
	}{
		{"valid email", domain.QuestionTypeEmail, "sec@example.com", ""},
		{"invalid email", domain.QuestionTypeEmail, "not-an-email", "Please enter a valid email address"},
		{"short email", domain.QuestionTypeEmail, "a@b.com", ""},
		{"valid url", domain.QuestionTypeURL, "https://status.example.com", ""},
		{"ftp url", domain.QuestionTypeURL, "ftp://x", ""},
		{"invalid url", domain.QuestionTypeURL, "status page", "Please enter a valid URL"},
		{"valid number", domain.QuestionTypeNumber, "4.5", ""},
		{"negative number", domain.QuestionTypeNumber, "-12", ""},
		{"invalid number", domain.QuestionTypeNumber, "four", "Please enter a valid number"},
		{"infinite number", domain.QuestionTypeNumber, "Inf", "Please enter a valid number"},
		{"text is free form", domain.QuestionTypeText, "anything", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := domain.Question{ID: "q", QuestionType: tc.qtype}
			err := app.Validate(q, &domain.Response{ResponseText: tc.text})
			switch {
			case tc.want == "" && err != nil:
				t.Fatalf("unexpected error %+v", err)
			case tc.want != "" && (err == nil || err.Message != tc.want):
				t.Fatalf("expected %q, got %+v", tc.want, err)
			}
		})
	}
}

func TestValidateRequired(t *testing.T) {
	required := domain.Question{ID: "q", QuestionType: domain.QuestionTypeText, IsRequired: true}
	optional := domain.Question{ID: "o", QuestionType: domain.QuestionTypeEmail}

	if err := app.Validate(required, nil); err == nil || err.Message != "This question is required" {
		t.Fatalf("expected required error, got %+v", err)
	}
	if err := app.Validate(required, &domain.Response{ResponseText: "   "}); err == nil {
		t.Fatalf("whitespace must not satisfy a required question")
	}
	if err := app.Validate(required, &domain.Response{ResponseData: map[string]any{"choices": []string{"a"}}}); err != nil {
		t.Fatalf("structured data should satisfy required, got %+v", err)
	}
	if err := app.Validate(optional, nil); err != nil {
		t.Fatalf("empty optional question must pass, got %+v", err)
	}
	if err := app.Validate(optional, &domain.Response{ResponseText: ""}); err != nil {
		t.Fatalf("blank optional email must not be format checked, got %+v", err)
	}
}

func TestValidateEvidenceCountsAsAnswer(t *testing.T) {
	upload := domain.Question{ID: "u", QuestionType: domain.QuestionTypeFileUpload, IsRequired: true}
	text := domain.Question{ID: "t", QuestionType: domain.QuestionTypeText, IsRequired: true}
	withFiles := &domain.Response{EvidenceFiles: []string{"https://files/x.pdf"}}

	if err := app.Validate(upload, withFiles); err != nil {
		t.Fatalf("evidence should answer an upload question, got %+v", err)
	}
	if err := app.Validate(text, withFiles); err == nil {
		t.Fatalf("evidence must not answer a plain text question")
	}
}

func TestValidateAllKeepsTemplateOrder(t *testing.T) {
	template := securityTemplate()
	responses := map[string]domain.Response{
		"contact": {QuestionID: "contact", ResponseText: "nope"},
		"rto":     {QuestionID: "rto", ResponseText: "soon"},
	}
	errs := app.ValidateAll(template, responses)
	var ids []string
	for _, e := range errs {
		ids = append(ids, e.QuestionID)
	}
	want := []string{"policy", "contact", "report", "rto"}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}

	section := app.ValidateSection(template.Sections[2], responses)
	if len(section) != 1 || section[0].Message != "Please enter a valid number" {
		t.Fatalf("unexpected section errors %+v", section)
	}
}
