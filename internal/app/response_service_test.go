package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"vendor-risk-service/internal/app"
	"vendor-risk-service/internal/domain"
	"vendor-risk-service/internal/infra/memory"
)

func newTestService(f *sessionFixture) *app.ResponseService {
	return app.NewResponseService(memory.NewSessionStore(), f.backend, nil, f.opts)
}

func TestOpenSharesOneSessionPerQuestionnaire(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(domain.StatusInProgress)
	service := newTestService(f)
	defer service.CloseAll(ctx)

	var wg sync.WaitGroup
	sessions := make([]*app.Session, 8)
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := service.Open(ctx, "qn-1", "vendor-1")
			if err != nil {
				t.Errorf("open: %v", err)
				return
			}
			sessions[i] = s
		}(i)
	}
	wg.Wait()
	for _, s := range sessions[1:] {
		if s != sessions[0] {
			t.Fatalf("expected a single shared session")
		}
	}

	if _, err := service.Open(ctx, "qn-1", "vendor-2"); !errors.Is(err, domain.ErrVendorMismatch) {
		t.Fatalf("expected vendor mismatch, got %v", err)
	}
}

func TestEditRequiresOpenSession(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(domain.StatusInProgress)
	service := newTestService(f)
	defer service.CloseAll(ctx)

	_, _, err := service.Edit(ctx, "qn-1", "rto", domain.ResponsePatch{ResponseText: ptr("1")})
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session error, got %v", err)
	}

	if _, err := service.Open(ctx, "qn-1", "vendor-1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	_, progress, err := service.Edit(ctx, "qn-1", "rto", domain.ResponsePatch{ResponseText: ptr("1")})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if progress.AnsweredQuestions != 1 {
		t.Fatalf("expected progress to count the edit, got %+v", progress)
	}
	if _, _, err := service.Edit(ctx, "qn-1", "nope", domain.ResponsePatch{ResponseText: ptr("1")}); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question error, got %v", err)
	}
}

func TestSubscribeReceivesProgress(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(domain.StatusInProgress)
	service := newTestService(f)
	defer service.CloseAll(ctx)

	if _, err := service.Open(ctx, "qn-1", "vendor-1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	ch, cancel, err := service.Subscribe(ctx, "qn-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	<-ch // initial snapshot

	if _, _, err := service.Edit(ctx, "qn-1", "policy", domain.ResponsePatch{ResponseText: ptr("true")}); err != nil {
		t.Fatalf("edit: %v", err)
	}
	update := <-ch
	if update.Kind != domain.EventProgress || update.Progress == nil || update.Progress.AnsweredQuestions != 1 {
		t.Fatalf("expected progress update, got %+v", update)
	}
}

func TestReleaseClosesIdleSessions(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(domain.StatusInProgress)
	service := newTestService(f)

	if _, err := service.Open(ctx, "qn-1", "vendor-1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	_, cancel, err := service.Subscribe(ctx, "qn-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, _, err := service.Edit(ctx, "qn-1", "rto", domain.ResponsePatch{ResponseText: ptr("3")}); err != nil {
		t.Fatalf("edit: %v", err)
	}

	if err := service.Release(ctx, "qn-1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := service.Session("qn-1"); err != nil {
		t.Fatalf("session with subscribers must stay open, got %v", err)
	}

	cancel()
	if err := service.Release(ctx, "qn-1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := service.Session("qn-1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session to be closed, got %v", err)
	}
	if stored, ok := f.backend.StoredResponse("qn-1", "rto"); !ok || stored.ResponseText != "3" {
		t.Fatalf("expected edit flushed on release, got %+v", stored)
	}
}

func TestReleaseWaitsForEveryOpen(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(domain.StatusInProgress)
	service := newTestService(f)
	defer service.CloseAll(ctx)

	first, err := service.Open(ctx, "qn-1", "vendor-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	// A second connection has opened but not subscribed yet.
	if _, err := service.Open(ctx, "qn-1", "vendor-1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := service.Release(ctx, "qn-1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	_, cancel, err := service.Subscribe(ctx, "qn-1")
	if err != nil {
		t.Fatalf("subscribe after the other connection left: %v", err)
	}
	cancel()
	if err := service.Release(ctx, "qn-1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := service.Session("qn-1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session closed after the last release, got %v", err)
	}

	reopened, err := service.Open(ctx, "qn-1", "vendor-1")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened == first {
		t.Fatalf("expected a fresh session after close")
	}
	if _, _, err := reopened.Edit("rto", domain.ResponsePatch{ResponseText: ptr("2")}); err != nil {
		t.Fatalf("edit on reopened session: %v", err)
	}
}

func TestReviewScoresSubmittedQuestionnaire(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(domain.StatusInProgress)
	service := newTestService(f)
	defer service.CloseAll(ctx)

	if _, err := service.Review(ctx, "qn-1", domain.ReviewApprove, ""); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected review before submit to fail, got %v", err)
	}

	s, err := service.Open(ctx, "qn-1", "vendor-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	answerEverything(t, s)
	if _, err := s.Submit(ctx); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := service.Review(ctx, "qn-1", "MAYBE", ""); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected unknown decision to be refused, got %v", err)
	}
	q, err := service.Review(ctx, "qn-1", domain.ReviewApprove, "looks good")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if q.Status != domain.StatusApproved || q.RiskScore == nil || q.ReviewNotes != "looks good" {
		t.Fatalf("unexpected reviewed questionnaire %+v", q)
	}
	// Only the encryption question is scored and "full" earns every point.
	if *q.RiskScore != 100 {
		t.Fatalf("expected full score, got %v", *q.RiskScore)
	}
}
