package templateschema

import (
	"strings"
	"testing"

	"vendor-risk-service/internal/domain"
)

const validTemplate = `{
  "id": "tpl",
  "name": "Baseline",
  "sections": [{
    "id": "s1",
    "title": "Governance",
    "weightage": 2,
    "questions": [
      {"id": "q1", "questionText": "Policy?", "questionType": "BOOLEAN", "isRequired": true,
       "options": {"conditionalText": {"trigger": "No", "prompt": "Explain"}}},
      {"id": "q2", "questionText": "Hosting", "questionType": "SINGLE_CHOICE",
       "options": {"choices": [{"value": "cloud", "label": "Cloud", "points": 2}]}},
      {"id": "q3", "questionText": "Maturity", "questionType": "SCALE", "options": {"min": 1, "max": 5}}
    ]
  }]
}`

func TestParseValidTemplate(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	template, problems, err := v.Parse([]byte(validTemplate))
	if err != nil || len(problems) > 0 {
		t.Fatalf("expected valid template, got err=%v problems=%+v", err, problems)
	}
	if template.QuestionCount() != 3 {
		t.Fatalf("expected 3 questions, got %d", template.QuestionCount())
	}
	q, _ := template.Question("q2")
	if _, ok := q.Options.(domain.ChoiceOptions); !ok {
		t.Fatalf("expected typed choice options, got %#v", q.Options)
	}
}

func TestParseReportsSchemaProblems(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	cases := map[string]string{
		"unknown type":        strings.Replace(validTemplate, `"BOOLEAN"`, `"SLIDER"`, 1),
		"choice without list": strings.Replace(validTemplate, `"options": {"choices": [{"value": "cloud", "label": "Cloud", "points": 2}]}`, `"options": {}`, 1),
		"missing sections":    `{"id": "tpl", "name": "Baseline"}`,
		"bad trigger":         strings.Replace(validTemplate, `"trigger": "No"`, `"trigger": 3`, 1),
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, problems, err := v.Parse([]byte(doc))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(problems) == 0 {
				t.Fatalf("expected problems")
			}
			for _, p := range problems {
				if !strings.HasPrefix(p.Path, "/") || p.Message == "" {
					t.Fatalf("malformed problem %+v", p)
				}
			}
		})
	}
}

func TestParseReportsStructuralProblems(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	dupQuestion := strings.Replace(validTemplate, `"id": "q3"`, `"id": "q1"`, 1)
	_, problems, err := v.Parse([]byte(dupQuestion))
	if err != nil || len(problems) != 1 || problems[0].Path != "/sections/0/questions/2/id" {
		t.Fatalf("expected duplicate question problem, got err=%v problems=%+v", err, problems)
	}

	badScale := strings.Replace(validTemplate, `"min": 1, "max": 5`, `"min": 5, "max": 1`, 1)
	if _, problems, _ := v.Parse([]byte(badScale)); len(problems) != 1 {
		t.Fatalf("expected inverted scale problem, got %+v", problems)
	}
}

func TestParseRejectsInvalidJSON(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, _, err := v.Parse([]byte(`{"id":`)); err == nil {
		t.Fatalf("expected error for truncated JSON")
	}
}
