package app

import (
	"sync"

	"vendor-risk-service/internal/domain"
)

// ResponseSnapshotter exposes the current answers to the navigator.
type ResponseSnapshotter interface {
	Snapshot() map[string]domain.Response
}

// Navigator tracks the section being edited. Moving forward is gated on the
// current section validating; moving back or jumping directly is not.
type Navigator struct {
	template  domain.Template
	responses ResponseSnapshotter

	mu      sync.Mutex
	current int
	errors  []domain.ValidationError
}

// NewNavigator starts at the first section.
func NewNavigator(template domain.Template, responses ResponseSnapshotter) *Navigator {
	return &Navigator{template: template, responses: responses}
}

// Current returns the index of the active section.
func (n *Navigator) Current() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Errors returns the validation errors surfaced by the last refused move.
func (n *Navigator) Errors() []domain.ValidationError {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.ValidationError(nil), n.errors...)
}

// Next advances one section if the current one validates. It returns the
// blocking errors and whether the state changed.
func (n *Navigator) Next() ([]domain.ValidationError, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.template.Sections) == 0 {
		return nil, false
	}
	errs := ValidateSection(n.template.Sections[n.current], n.responses.Snapshot())
	if len(errs) > 0 {
		n.errors = errs
		return errs, false
	}
	n.errors = nil
	if n.current+1 >= len(n.template.Sections) {
		return nil, false
	}
	n.current++
	return nil, true
}

// Prev moves back one section and clears displayed errors.
func (n *Navigator) Prev() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = nil
	if n.current == 0 {
		return false
	}
	n.current--
	return true
}

// GoTo jumps to section j, clamped to the valid range, without validation.
func (n *Navigator) GoTo(j int) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = nil
	last := len(n.template.Sections) - 1
	switch {
	case last < 0:
		j = 0
	case j < 0:
		j = 0
	case j > last:
		j = last
	}
	n.current = j
	return n.current
}

// IsLast reports whether the active section is the final one.
func (n *Navigator) IsLast() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current >= len(n.template.Sections)-1
}
