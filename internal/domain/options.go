package domain

import (
	"bytes"
	"encoding/json"
)

// Options is the per-type configuration of a question. The concrete type
// depends on the question type: ChoiceOptions, ScaleOptions,
// ConditionalOptions or PlainOptions.
type Options interface {
	optionsKind() string
}

// Choice is one selectable answer of a choice question.
type Choice struct {
	Value        string   `json:"value"`
	Label        string   `json:"label"`
	Points       *float64 `json:"points,omitempty"`
	RequiresText bool     `json:"requiresText,omitempty"`
}

// Trigger is either a single value or a list of values.
type Trigger struct {
	Values []string
	IsList bool
}

// SingleTrigger builds a scalar trigger.
func SingleTrigger(value string) Trigger {
	return Trigger{Values: []string{value}}
}

// ListTrigger builds a membership trigger.
func ListTrigger(values ...string) Trigger {
	return Trigger{Values: values, IsList: true}
}

// Matches compares value against the trigger: membership for lists, equality otherwise.
func (t Trigger) Matches(value string) bool {
	if !t.IsList {
		return len(t.Values) == 1 && t.Values[0] == value
	}
	for _, v := range t.Values {
		if v == value {
			return true
		}
	}
	return false
}

func (t Trigger) MarshalJSON() ([]byte, error) {
	if t.IsList {
		if t.Values == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(t.Values)
	}
	if len(t.Values) == 0 {
		return []byte(`""`), nil
	}
	return json.Marshal(t.Values[0])
}

// UnmarshalJSON accepts a string or an array of strings. Anything else
// decodes to a trigger that never matches.
func (t *Trigger) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var values []string
		if err := json.Unmarshal(data, &values); err != nil {
			*t = Trigger{IsList: true}
			return nil
		}
		*t = Trigger{Values: values, IsList: true}
		return nil
	}
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		*t = Trigger{}
		return nil
	}
	*t = SingleTrigger(value)
	return nil
}

// ConditionalText asks for a follow-up free-text answer when the trigger matches.
type ConditionalText struct {
	Trigger Trigger `json:"trigger"`
	Prompt  string  `json:"prompt"`
}

// ChoiceOptions configures SINGLE_CHOICE and MULTIPLE_CHOICE questions.
type ChoiceOptions struct {
	Choices         []Choice         `json:"choices"`
	ConditionalText *ConditionalText `json:"conditionalText,omitempty"`
}

// Choice finds the configured choice with the given value.
func (o ChoiceOptions) Choice(value string) (Choice, bool) {
	for _, c := range o.Choices {
		if c.Value == value {
			return c, true
		}
	}
	return Choice{}, false
}

// ScaleOptions configures SCALE questions.
type ScaleOptions struct {
	Min             int              `json:"min"`
	Max             int              `json:"max"`
	MinLabel        string           `json:"minLabel,omitempty"`
	MaxLabel        string           `json:"maxLabel,omitempty"`
	ConditionalText *ConditionalText `json:"conditionalText,omitempty"`
}

// ConditionalOptions configures BOOLEAN (and any other scalar) questions that
// only carry a follow-up prompt.
type ConditionalOptions struct {
	ConditionalText ConditionalText `json:"conditionalText"`
}

// PlainOptions carries presentation hints only.
type PlainOptions struct {
	Placeholder string `json:"placeholder,omitempty"`
}

func (ChoiceOptions) optionsKind() string      { return "choice" }
func (ScaleOptions) optionsKind() string       { return "scale" }
func (ConditionalOptions) optionsKind() string { return "conditional" }
func (PlainOptions) optionsKind() string       { return "plain" }

// ConditionalTextOf returns the follow-up configuration of any options value.
func ConditionalTextOf(o Options) *ConditionalText {
	switch opts := o.(type) {
	case ChoiceOptions:
		return opts.ConditionalText
	case ScaleOptions:
		return opts.ConditionalText
	case ConditionalOptions:
		ct := opts.ConditionalText
		return &ct
	default:
		return nil
	}
}

// rawOptions is the authoring shape of options before it is narrowed by type.
type rawOptions struct {
	Choices         []Choice         `json:"choices"`
	ConditionalText *ConditionalText `json:"conditionalText"`
	Min             *int             `json:"min"`
	Max             *int             `json:"max"`
	MinLabel        string           `json:"minLabel"`
	MaxLabel        string           `json:"maxLabel"`
	Placeholder     string           `json:"placeholder"`
}

// DecodeOptions narrows raw options JSON for the given question type.
// Malformed or empty options yield nil.
func DecodeOptions(questionType QuestionType, data []byte) Options {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	var raw rawOptions
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	switch questionType {
	case QuestionTypeSingleChoice, QuestionTypeMultipleChoice:
		return ChoiceOptions{Choices: raw.Choices, ConditionalText: raw.ConditionalText}
	case QuestionTypeScale:
		opts := ScaleOptions{MinLabel: raw.MinLabel, MaxLabel: raw.MaxLabel, ConditionalText: raw.ConditionalText}
		if raw.Min != nil {
			opts.Min = *raw.Min
		}
		if raw.Max != nil {
			opts.Max = *raw.Max
		}
		return opts
	}
	if raw.ConditionalText != nil {
		return ConditionalOptions{ConditionalText: *raw.ConditionalText}
	}
	if raw.Placeholder != "" {
		return PlainOptions{Placeholder: raw.Placeholder}
	}
	return nil
}

// UnmarshalJSON narrows the free-form options object into its typed form.
func (q *Question) UnmarshalJSON(data []byte) error {
	type plain Question
	var aux struct {
		plain
		Options json.RawMessage `json:"options"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*q = Question(aux.plain)
	q.Options = DecodeOptions(q.QuestionType, aux.Options)
	return nil
}
