package app

import "vendor-risk-service/internal/domain"

// ComputeRiskScore scores a questionnaire from 0 to 100. Each scorable
// question contributes the points of the selected choice(s) against the best
// achievable points; section ratios are combined by section weightage.
// Sections without scorable questions are skipped.
func ComputeRiskScore(template domain.Template, responses map[string]domain.Response) float64 {
	var weighted, weights float64
	for _, section := range template.Sections {
		var earned, possible float64
		for _, q := range section.Questions {
			e, p, ok := questionPoints(q, lookup(responses, q.ID))
			if !ok {
				continue
			}
			earned += e
			possible += p
		}
		if possible <= 0 {
			continue
		}
		weight := section.Weightage
		if weight <= 0 {
			weight = 1
		}
		weighted += weight * (earned / possible)
		weights += weight
	}
	if weights == 0 {
		return 0
	}
	return weighted / weights * 100
}

func questionPoints(q domain.Question, r *domain.Response) (earned, possible float64, ok bool) {
	opts, isChoice := q.Options.(domain.ChoiceOptions)
	if !isChoice {
		return 0, 0, false
	}

	var scored bool
	for _, c := range opts.Choices {
		if c.Points == nil {
			continue
		}
		scored = true
		if q.QuestionType == domain.QuestionTypeMultipleChoice {
			if *c.Points > 0 {
				possible += *c.Points
			}
		} else if *c.Points > possible {
			possible = *c.Points
		}
	}
	if !scored {
		return 0, 0, false
	}
	if r == nil {
		return 0, possible, true
	}

	for _, value := range selectedValues(q, r) {
		if c, found := opts.Choice(value); found && c.Points != nil {
			earned += *c.Points
		}
	}
	return earned, possible, true
}

// Multi-select answers live in responseData["choices"]; single answers in responseText.
func selectedValues(q domain.Question, r *domain.Response) []string {
	if q.QuestionType != domain.QuestionTypeMultipleChoice {
		if r.ResponseText == "" {
			return nil
		}
		return []string{r.ResponseText}
	}
	switch choices := r.ResponseData["choices"].(type) {
	case []string:
		return choices
	case []any:
		out := make([]string, 0, len(choices))
		for _, c := range choices {
			if s, ok := c.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
