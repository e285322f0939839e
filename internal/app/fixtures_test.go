package app_test

import (
	"sync"
	"time"

	"vendor-risk-service/internal/app"
	"vendor-risk-service/internal/domain"
)

// fakeTimers hands out timers that only fire when the test says so.
type fakeTimers struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	owner   *fakeTimers
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *fakeTimers) AfterFunc(d time.Duration, f func()) app.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{owner: c, delay: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// FireAll runs every armed timer synchronously and reports how many fired.
func (c *fakeTimers) FireAll() int {
	c.mu.Lock()
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
	return len(due)
}

// Armed counts timers that have neither fired nor been stopped.
func (c *fakeTimers) Armed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// All returns every timer ever created, including stopped ones.
func (c *fakeTimers) All() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakeTimer(nil), c.timers...)
}

func fixedClock() func() time.Time {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func ptr[T any](v T) *T { return &v }

func points(p float64) *float64 { return &p }

// securityTemplate exercises every question type used by the tests.
func securityTemplate() domain.Template {
	return domain.Template{
		ID:   "tpl-1",
		Name: "Security Review",
		Sections: []domain.Section{
			{
				ID:        "s1",
				Title:     "Governance",
				Weightage: 2,
				Questions: []domain.Question{
					{
						ID:           "policy",
						QuestionText: "Do you have a security policy?",
						QuestionType: domain.QuestionTypeBoolean,
						IsRequired:   true,
						Options: domain.ConditionalOptions{ConditionalText: domain.ConditionalText{
							Trigger: domain.SingleTrigger("No"),
							Prompt:  "Explain why not",
						}},
					},
					{
						ID:           "contact",
						QuestionText: "Security contact",
						QuestionType: domain.QuestionTypeEmail,
						IsRequired:   true,
					},
				},
			},
			{
				ID:        "s2",
				Title:     "Data",
				Weightage: 1,
				Questions: []domain.Question{
					{
						ID:           "encryption",
						QuestionText: "Encryption at rest",
						QuestionType: domain.QuestionTypeSingleChoice,
						Options: domain.ChoiceOptions{
							Choices: []domain.Choice{
								{Value: "full", Label: "Full", Points: points(5)},
								{Value: "partial", Label: "Partial", Points: points(2), RequiresText: true},
								{Value: "none", Label: "None", Points: points(0)},
							},
							ConditionalText: &domain.ConditionalText{
								Trigger: domain.ListTrigger("partial", "none"),
								Prompt:  "List unencrypted stores",
							},
						},
					},
					{
						ID:               "report",
						QuestionText:     "Pentest report",
						QuestionType:     domain.QuestionTypeFileUpload,
						IsRequired:       true,
						EvidenceRequired: true,
					},
				},
			},
			{
				ID:    "s3",
				Title: "Continuity",
				Questions: []domain.Question{
					{ID: "rto", QuestionText: "RTO hours", QuestionType: domain.QuestionTypeNumber},
					{ID: "status-page", QuestionText: "Status page", QuestionType: domain.QuestionTypeURL},
				},
			},
		},
	}
}
