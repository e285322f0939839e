// Package templateschema checks questionnaire template documents before they
// are imported.
package templateschema

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"vendor-risk-service/internal/domain"
)

//go:embed schemas/*.json
var schemasFS embed.FS

// Problem is one reason a template document was refused.
type Problem struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Validator validates template JSON against the embedded schema.
type Validator struct {
	schema *jsonschema.Schema
}

// New compiles the embedded template schema.
func New() (*Validator, error) {
	schemaData, err := schemasFS.ReadFile("schemas/template.schema.json")
	if err != nil {
		return nil, fmt.Errorf("read template schema: %w", err)
	}
	var schemaDoc interface{}
	if err := json.Unmarshal(schemaData, &schemaDoc); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("template.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := c.Compile("template.json")
	if err != nil {
		return nil, fmt.Errorf("compile template schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Parse validates data and decodes it into a template. Problems are returned
// for documents that are well-formed JSON but not acceptable templates; the
// error is only set when the document could not be read at all.
func (v *Validator) Parse(data []byte) (domain.Template, []Problem, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return domain.Template{}, nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			return domain.Template{}, extractProblems(ve), nil
		}
		return domain.Template{}, []Problem{{Path: "/", Message: err.Error()}}, nil
	}

	var template domain.Template
	if err := json.Unmarshal(data, &template); err != nil {
		return domain.Template{}, nil, fmt.Errorf("decode template: %w", err)
	}
	if problems := checkStructure(template); len(problems) > 0 {
		return domain.Template{}, problems, nil
	}
	return template, nil, nil
}

func extractProblems(ve *jsonschema.ValidationError) []Problem {
	if len(ve.Causes) == 0 {
		return []Problem{{
			Path:    "/" + strings.Join(ve.InstanceLocation, "/"),
			Message: ve.Error(),
		}}
	}
	var problems []Problem
	for _, cause := range ve.Causes {
		problems = append(problems, extractProblems(cause)...)
	}
	return problems
}

// checkStructure covers the rules a JSON schema cannot express.
func checkStructure(t domain.Template) []Problem {
	var problems []Problem
	sectionIDs := make(map[string]bool)
	questionIDs := make(map[string]bool)
	for si, section := range t.Sections {
		if sectionIDs[section.ID] {
			problems = append(problems, Problem{
				Path:    fmt.Sprintf("/sections/%d/id", si),
				Message: fmt.Sprintf("duplicate section id %q", section.ID),
			})
		}
		sectionIDs[section.ID] = true

		for qi, q := range section.Questions {
			path := fmt.Sprintf("/sections/%d/questions/%d", si, qi)
			if questionIDs[q.ID] {
				problems = append(problems, Problem{
					Path:    path + "/id",
					Message: fmt.Sprintf("duplicate question id %q", q.ID),
				})
			}
			questionIDs[q.ID] = true

			switch opts := q.Options.(type) {
			case domain.ScaleOptions:
				if opts.Min >= opts.Max {
					problems = append(problems, Problem{
						Path:    path + "/options",
						Message: fmt.Sprintf("scale min %d must be below max %d", opts.Min, opts.Max),
					})
				}
			case domain.ChoiceOptions:
				seen := make(map[string]bool)
				for ci, choice := range opts.Choices {
					if seen[choice.Value] {
						problems = append(problems, Problem{
							Path:    fmt.Sprintf("%s/options/choices/%d/value", path, ci),
							Message: fmt.Sprintf("duplicate choice value %q", choice.Value),
						})
					}
					seen[choice.Value] = true
				}
			}
		}
	}
	return problems
}
