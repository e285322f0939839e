package domain

import "errors"

var (
	// ErrQuestionnaireNotFound is returned when a questionnaire id is unknown to the backend.
	ErrQuestionnaireNotFound = errors.New("questionnaire not found")
	// ErrTemplateNotFound indicates the template content could not be loaded.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrQuestionNotFound indicates an edit referenced a question outside the template.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrSessionNotFound is returned when no editing session is open for a questionnaire.
	ErrSessionNotFound = errors.New("questionnaire session not found")
	// ErrSessionClosed is returned when acting on a session after teardown.
	ErrSessionClosed = errors.New("questionnaire session closed")
	// ErrSessionHeldElsewhere is returned when another service instance holds the session.
	ErrSessionHeldElsewhere = errors.New("questionnaire session is held by another instance")
	// ErrVendorMismatch is returned when a vendor acts on another vendor's questionnaire.
	ErrVendorMismatch = errors.New("questionnaire belongs to another vendor")
	// ErrQuestionnaireLocked is returned when editing a submitted or reviewed questionnaire.
	ErrQuestionnaireLocked = errors.New("questionnaire no longer accepts edits")
	// ErrSubmitInProgress is returned for edits and submits while a submission is running.
	ErrSubmitInProgress = errors.New("questionnaire submission in progress")
	// ErrUnsavedResponses blocks a submission while the backend lacks confirmed answers.
	ErrUnsavedResponses = errors.New("questionnaire has responses the backend has not confirmed")
	// ErrInvalidTransition indicates a status change not allowed from the current status.
	ErrInvalidTransition = errors.New("invalid questionnaire status transition")
	// ErrNotSubmittable is returned when submit is attempted outside IN_PROGRESS.
	ErrNotSubmittable = errors.New("questionnaire cannot be submitted in its current status")
	// ErrValidationFailed accompanies the validation errors that blocked a submission.
	ErrValidationFailed = errors.New("questionnaire has validation errors")
	// ErrUploadFailed wraps storage failures during evidence uploads.
	ErrUploadFailed = errors.New("evidence upload failed")
)
