package domain

import "time"

// QuestionType enumerates the input kinds a template question can take.
type QuestionType string

const (
	QuestionTypeText           QuestionType = "TEXT"
	QuestionTypeTextarea       QuestionType = "TEXTAREA"
	QuestionTypeBoolean        QuestionType = "BOOLEAN"
	QuestionTypeSingleChoice   QuestionType = "SINGLE_CHOICE"
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeScale          QuestionType = "SCALE"
	QuestionTypeFileUpload     QuestionType = "FILE_UPLOAD"
	QuestionTypeDate           QuestionType = "DATE"
	QuestionTypeNumber         QuestionType = "NUMBER"
	QuestionTypeEmail          QuestionType = "EMAIL"
	QuestionTypeURL            QuestionType = "URL"
)

// ResponseStatus is the lifecycle marker of a single response.
type ResponseStatus string

const (
	ResponseStatusDraft     ResponseStatus = "DRAFT"
	ResponseStatusSubmitted ResponseStatus = "SUBMITTED"
)

// QuestionnaireStatus is the lifecycle of one vendor's questionnaire instance.
type QuestionnaireStatus string

const (
	StatusNotStarted QuestionnaireStatus = "NOT_STARTED"
	StatusInProgress QuestionnaireStatus = "IN_PROGRESS"
	StatusSubmitted  QuestionnaireStatus = "SUBMITTED"
	StatusApproved   QuestionnaireStatus = "APPROVED"
	StatusRejected   QuestionnaireStatus = "REJECTED"
)

// Question is a single prompt inside a section.
type Question struct {
	ID               string       `json:"id"`
	QuestionText     string       `json:"questionText"`
	QuestionType     QuestionType `json:"questionType"`
	IsRequired       bool         `json:"isRequired"`
	EvidenceRequired bool         `json:"evidenceRequired"`
	Order            int          `json:"order"`
	// Options is nil when the question has no extra configuration.
	Options Options `json:"options,omitempty"`
}

// Section groups questions; Weightage is only consumed by risk scoring.
type Section struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Order     int        `json:"order"`
	Weightage float64    `json:"weightage"`
	Questions []Question `json:"questions"`
}

// Template is the reusable definition a questionnaire instance answers.
type Template struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	RiskLevel string    `json:"riskLevel,omitempty"`
	Sections  []Section `json:"sections"`
}

// Question looks a question up by id across all sections.
func (t Template) Question(questionID string) (Question, bool) {
	for _, section := range t.Sections {
		for _, q := range section.Questions {
			if q.ID == questionID {
				return q, true
			}
		}
	}
	return Question{}, false
}

// QuestionCount is the number of questions across every section.
func (t Template) QuestionCount() int {
	total := 0
	for _, section := range t.Sections {
		total += len(section.Questions)
	}
	return total
}

// Questionnaire is one vendor's instance of a template.
type Questionnaire struct {
	ID          string              `json:"id"`
	TemplateID  string              `json:"templateId"`
	VendorID    string              `json:"vendorId"`
	Status      QuestionnaireStatus `json:"status"`
	RiskScore   *float64            `json:"riskScore,omitempty"`
	StartedAt   *time.Time          `json:"startedAt,omitempty"`
	SubmittedAt *time.Time          `json:"submittedAt,omitempty"`
	ReviewedAt  *time.Time          `json:"reviewedAt,omitempty"`
	ReviewNotes string              `json:"reviewNotes,omitempty"`
}

// CanSubmit reports whether the questionnaire accepts a submission.
func (q Questionnaire) CanSubmit() bool {
	return q.Status == StatusInProgress
}

// IsCompleted reports whether the vendor already submitted.
func (q Questionnaire) IsCompleted() bool {
	return q.Status == StatusSubmitted
}

// Response is the vendor's answer to one question.
// ResponseText carries the scalar answer for every type; booleans are "true"/"false".
type Response struct {
	ID            string         `json:"id"`
	QuestionID    string         `json:"questionId"`
	ResponseText  string         `json:"responseText"`
	ResponseData  map[string]any `json:"responseData,omitempty"`
	EvidenceFiles []string       `json:"evidenceFiles,omitempty"`
	EvidenceNotes string         `json:"evidenceNotes,omitempty"`
	Status        ResponseStatus `json:"status"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// ResponsePatch is a partial update; nil fields are left untouched.
// ResponseData is shallow-merged key by key.
type ResponsePatch struct {
	ResponseText  *string        `json:"responseText,omitempty"`
	ResponseData  map[string]any `json:"responseData,omitempty"`
	EvidenceFiles *[]string      `json:"evidenceFiles,omitempty"`
	EvidenceNotes *string        `json:"evidenceNotes,omitempty"`
}

// ResponseInput is the payload handed to the persistence collaborator.
type ResponseInput struct {
	ResponseText  string         `json:"responseText"`
	ResponseData  map[string]any `json:"responseData,omitempty"`
	EvidenceFiles []string       `json:"evidenceFiles,omitempty"`
	EvidenceNotes string         `json:"evidenceNotes,omitempty"`
}

// Input strips a response down to its user-entered fields.
func (r Response) Input() ResponseInput {
	return ResponseInput{
		ResponseText:  r.ResponseText,
		ResponseData:  cloneData(r.ResponseData),
		EvidenceFiles: append([]string(nil), r.EvidenceFiles...),
		EvidenceNotes: r.EvidenceNotes,
	}
}

// Clone returns a deep-enough copy safe to hand across goroutines.
func (r Response) Clone() Response {
	out := r
	out.ResponseData = cloneData(r.ResponseData)
	out.EvidenceFiles = append([]string(nil), r.EvidenceFiles...)
	return out
}

func cloneData(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// ValidationError is a user-fixable problem with one question's answer.
type ValidationError struct {
	QuestionID string `json:"questionId"`
	Message    string `json:"message"`
}

// SectionProgress is the answered ratio for one section.
type SectionProgress struct {
	AnsweredQuestions int     `json:"answeredQuestions"`
	TotalQuestions    int     `json:"totalQuestions"`
	Percentage        float64 `json:"percentage"`
}

// Progress is derived from the template and the current responses.
type Progress struct {
	AnsweredQuestions  int                        `json:"answeredQuestions"`
	TotalQuestions     int                        `json:"totalQuestions"`
	ProgressPercentage float64                    `json:"progressPercentage"`
	SectionProgress    map[string]SectionProgress `json:"sectionProgress"`
}

// QuestionnaireBundle is what a session needs to start editing.
type QuestionnaireBundle struct {
	Questionnaire  Questionnaire `json:"questionnaire"`
	Template       Template      `json:"template"`
	PriorResponses []Response    `json:"priorResponses"`
}

// SaveResult echoes the stored response and the server-side progress.
type SaveResult struct {
	Response Response `json:"response"`
	Progress Progress `json:"progress"`
}

// UploadResult reports an evidence upload outcome without failing the caller.
type UploadResult struct {
	Success bool   `json:"success"`
	FileURL string `json:"fileUrl,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ReviewDecision is the client's verdict on a submitted questionnaire.
type ReviewDecision string

const (
	ReviewApprove ReviewDecision = "APPROVE"
	ReviewReject  ReviewDecision = "REJECT"
)

// EventKind names what changed in a session.
type EventKind string

const (
	EventProgress   EventKind = "progress"
	EventSaved      EventKind = "saved"
	EventSaveFailed EventKind = "save_failed"
	EventStatus     EventKind = "status"
)

// SessionEvent is broadcast to session subscribers.
type SessionEvent struct {
	Kind       EventKind           `json:"kind"`
	QuestionID string              `json:"questionId,omitempty"`
	Progress   *Progress           `json:"progress,omitempty"`
	Status     QuestionnaireStatus `json:"status,omitempty"`
	SavedAt    *time.Time          `json:"savedAt,omitempty"`
	Error      string              `json:"error,omitempty"`
}
