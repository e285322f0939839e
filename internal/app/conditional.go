package app

import "vendor-risk-service/internal/domain"

// ShouldShow reports whether the follow-up text field of q is visible for the
// current response. A nil response never matches.
func ShouldShow(q domain.Question, current *domain.Response) bool {
	conditional := domain.ConditionalTextOf(q.Options)
	if conditional == nil || current == nil {
		return false
	}
	return conditional.Trigger.Matches(normalizeForTrigger(q.QuestionType, current.ResponseText))
}

// ChoiceRequiresText reports whether the selected choice asks for elaboration.
func ChoiceRequiresText(q domain.Question, choiceValue string) bool {
	opts, ok := q.Options.(domain.ChoiceOptions)
	if !ok {
		return false
	}
	choice, ok := opts.Choice(choiceValue)
	return ok && choice.RequiresText
}

// FollowUpPrompt returns the prompt to render under q, if any. It combines the
// question-level trigger with per-choice requiresText flags.
func FollowUpPrompt(q domain.Question, current *domain.Response) (string, bool) {
	if ShouldShow(q, current) {
		return domain.ConditionalTextOf(q.Options).Prompt, true
	}
	if current != nil && q.QuestionType == domain.QuestionTypeSingleChoice && ChoiceRequiresText(q, current.ResponseText) {
		return "Please provide details", true
	}
	return "", false
}

// Booleans are stored as "true"/"false" but triggers are authored as "Yes"/"No".
func normalizeForTrigger(questionType domain.QuestionType, value string) string {
	if questionType != domain.QuestionTypeBoolean {
		return value
	}
	switch value {
	case "true":
		return "Yes"
	case "false":
		return "No"
	default:
		return value
	}
}
