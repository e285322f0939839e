package app_test

import (
	"math"
	"testing"

	"vendor-risk-service/internal/app"
	"vendor-risk-service/internal/domain"
)

func TestComputeProgress(t *testing.T) {
	template := securityTemplate()
	responses := map[string]domain.Response{
		"policy":     {QuestionID: "policy", ResponseText: "true"},
		"contact":    {QuestionID: "contact", ResponseText: "  "},
		"encryption": {QuestionID: "encryption", ResponseText: "full"},
		"report":     {QuestionID: "report", EvidenceFiles: []string{"f"}},
		"rto":        {QuestionID: "rto", ResponseText: "4"},
	}

	p := app.ComputeProgress(template, responses)
	if p.TotalQuestions != 6 || p.AnsweredQuestions != 4 {
		t.Fatalf("unexpected totals %+v", p)
	}
	// 4 of 6 overall; the section average would be (50+100+50)/3.
	if math.Abs(p.ProgressPercentage-400.0/6) > 1e-9 {
		t.Fatalf("expected overall ratio, got %v", p.ProgressPercentage)
	}
	s1 := p.SectionProgress["s1"]
	if s1.AnsweredQuestions != 1 || s1.TotalQuestions != 2 || s1.Percentage != 50 {
		t.Fatalf("unexpected s1 progress %+v", s1)
	}
	if s2 := p.SectionProgress["s2"]; s2.Percentage != 100 {
		t.Fatalf("unexpected s2 progress %+v", s2)
	}
	for id, sp := range p.SectionProgress {
		if sp.AnsweredQuestions > sp.TotalQuestions || sp.Percentage < 0 || sp.Percentage > 100 {
			t.Fatalf("section %s out of bounds: %+v", id, sp)
		}
	}
}

func TestComputeProgressEmptyTemplate(t *testing.T) {
	p := app.ComputeProgress(domain.Template{Sections: []domain.Section{{ID: "empty"}}}, nil)
	if p.ProgressPercentage != 0 || p.SectionProgress["empty"].Percentage != 0 {
		t.Fatalf("empty template must report zero, got %+v", p)
	}
}

func TestComputeProgressWeighsSectionsByQuestionCount(t *testing.T) {
	questions := func(prefix string, n int) []domain.Question {
		out := make([]domain.Question, n)
		for i := range out {
			out[i] = domain.Question{ID: prefix + string(rune('a'+i)), QuestionType: domain.QuestionTypeText}
		}
		return out
	}
	template := domain.Template{Sections: []domain.Section{
		{ID: "s1", Questions: questions("s1", 3)},
		{ID: "s2", Questions: questions("s2", 5)},
	}}
	responses := map[string]domain.Response{
		"s1a": {QuestionID: "s1a", ResponseText: "yes"},
		"s1b": {QuestionID: "s1b", ResponseText: "yes"},
		"s2a": {QuestionID: "s2a", ResponseText: "yes"},
	}

	p := app.ComputeProgress(template, responses)
	if p.TotalQuestions != 8 || p.AnsweredQuestions != 3 {
		t.Fatalf("unexpected totals %+v", p)
	}
	if s1 := p.SectionProgress["s1"]; math.Abs(s1.Percentage-200.0/3) > 1e-9 {
		t.Fatalf("expected s1 at 66.67%%, got %v", s1.Percentage)
	}
	if s2 := p.SectionProgress["s2"]; math.Abs(s2.Percentage-20) > 1e-9 {
		t.Fatalf("expected s2 at 20%%, got %v", s2.Percentage)
	}
	// 3 of 8, not the 43.3% mean of the two sections.
	if math.Abs(p.ProgressPercentage-37.5) > 1e-9 {
		t.Fatalf("expected overall 37.5%%, got %v", p.ProgressPercentage)
	}
}
