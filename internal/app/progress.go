package app

import "vendor-risk-service/internal/domain"

// ComputeProgress derives answered counts per section and overall. The overall
// percentage is the ratio over all questions, not an average of sections.
func ComputeProgress(template domain.Template, responses map[string]domain.Response) domain.Progress {
	progress := domain.Progress{
		SectionProgress: make(map[string]domain.SectionProgress, len(template.Sections)),
	}
	for _, section := range template.Sections {
		answered := 0
		for _, q := range section.Questions {
			if IsAnswered(q, lookup(responses, q.ID)) {
				answered++
			}
		}
		total := len(section.Questions)
		progress.SectionProgress[section.ID] = domain.SectionProgress{
			AnsweredQuestions: answered,
			TotalQuestions:    total,
			Percentage:        percentage(answered, total),
		}
		progress.AnsweredQuestions += answered
		progress.TotalQuestions += total
	}
	progress.ProgressPercentage = percentage(progress.AnsweredQuestions, progress.TotalQuestions)
	return progress
}

func percentage(answered, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(answered) / float64(total) * 100
}
