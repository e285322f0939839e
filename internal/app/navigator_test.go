package app_test

import (
	"testing"

	"vendor-risk-service/internal/app"
	"vendor-risk-service/internal/domain"
)

func TestNavigatorNextIsGatedByValidation(t *testing.T) {
	store := app.NewResponseStore(nil)
	nav := app.NewNavigator(securityTemplate(), store)

	errs, moved := nav.Next()
	if moved || nav.Current() != 0 {
		t.Fatalf("expected navigation to be refused")
	}
	if len(errs) != 2 || len(nav.Errors()) != 2 {
		t.Fatalf("expected both section errors, got %+v", errs)
	}

	store.Update("policy", domain.ResponsePatch{ResponseText: ptr("true")})
	store.Update("contact", domain.ResponsePatch{ResponseText: ptr("sec@example.com")})
	errs, moved = nav.Next()
	if !moved || len(errs) != 0 || nav.Current() != 1 {
		t.Fatalf("expected to advance, got moved=%v errs=%+v current=%d", moved, errs, nav.Current())
	}
	if len(nav.Errors()) != 0 {
		t.Fatalf("expected errors cleared after moving")
	}
}

func TestNavigatorPrevAndGoTo(t *testing.T) {
	nav := app.NewNavigator(securityTemplate(), app.NewResponseStore(nil))

	if nav.Prev() {
		t.Fatalf("prev at first section must be a no-op")
	}
	nav.Next() // refused, leaves errors behind
	if nav.GoTo(2) != 2 || len(nav.Errors()) != 0 {
		t.Fatalf("goTo should jump without validation and clear errors")
	}
	if !nav.IsLast() {
		t.Fatalf("expected last section")
	}
	if !nav.Prev() || nav.Current() != 1 {
		t.Fatalf("expected prev to move back")
	}
	if got := nav.GoTo(99); got != 2 {
		t.Fatalf("expected clamp to last, got %d", got)
	}
	if got := nav.GoTo(-3); got != 0 {
		t.Fatalf("expected clamp to first, got %d", got)
	}
}

func TestNavigatorNextAtLastSectionStays(t *testing.T) {
	nav := app.NewNavigator(securityTemplate(), app.NewResponseStore(nil))
	nav.GoTo(2)
	errs, moved := nav.Next()
	if moved || len(errs) != 0 || nav.Current() != 2 {
		t.Fatalf("expected no-op at last valid section, got moved=%v errs=%+v", moved, errs)
	}
}
