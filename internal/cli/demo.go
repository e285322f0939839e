package cli

import (
	_ "embed"
	"fmt"

	"vendor-risk-service/internal/domain"
	"vendor-risk-service/internal/templateschema"
)

//go:embed demo_template.json
var demoTemplate []byte

const demoVendorID = "demo-vendor"

type demoBundle struct {
	template      domain.Template
	questionnaire domain.Questionnaire
}

// loadDemoBundle prepares the template and invitation used when the service
// runs without a database. seedFile replaces the built-in template.
func loadDemoBundle(seedFile string) (demoBundle, error) {
	var (
		template domain.Template
		err      error
	)
	if seedFile != "" {
		template, err = readTemplate(seedFile)
	} else {
		template, err = parseTemplate(demoTemplate)
	}
	if err != nil {
		return demoBundle{}, err
	}
	return demoBundle{
		template: template,
		questionnaire: domain.Questionnaire{
			ID:         "demo-" + template.ID,
			TemplateID: template.ID,
			VendorID:   demoVendorID,
			Status:     domain.StatusNotStarted,
		},
	}, nil
}

func parseTemplate(data []byte) (domain.Template, error) {
	validator, err := templateschema.New()
	if err != nil {
		return domain.Template{}, err
	}
	template, problems, err := validator.Parse(data)
	if err != nil {
		return domain.Template{}, err
	}
	if len(problems) > 0 {
		return domain.Template{}, fmt.Errorf("template %s: %s", problems[0].Path, problems[0].Message)
	}
	return template, nil
}
