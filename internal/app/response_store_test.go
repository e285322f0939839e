package app_test

import (
	"testing"
	"time"

	"vendor-risk-service/internal/app"
	"vendor-risk-service/internal/domain"
)

func TestResponseStoreCreatesDraftShell(t *testing.T) {
	store := app.NewResponseStore(nil)

	r := store.Update("q1", domain.ResponsePatch{ResponseText: ptr("hello")})
	if r.ID != "" || r.Status != domain.ResponseStatusDraft || r.QuestionID != "q1" {
		t.Fatalf("unexpected shell %+v", r)
	}
	if r.CreatedAt.IsZero() || r.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps on shell")
	}
}

func TestResponseStoreMergesPatches(t *testing.T) {
	store := app.NewResponseStore([]domain.Response{{
		ID:            "r1",
		QuestionID:    "q1",
		ResponseText:  "original",
		ResponseData:  map[string]any{"a": 1},
		EvidenceFiles: []string{"f1"},
		EvidenceNotes: "notes",
		Status:        domain.ResponseStatusDraft,
	}})

	r := store.Update("q1", domain.ResponsePatch{ResponseData: map[string]any{"b": 2}})
	if r.ResponseText != "original" || r.EvidenceNotes != "notes" || len(r.EvidenceFiles) != 1 {
		t.Fatalf("untouched fields changed: %+v", r)
	}
	if r.ResponseData["a"] != 1 || r.ResponseData["b"] != 2 {
		t.Fatalf("expected shallow merge of data, got %+v", r.ResponseData)
	}

	r = store.Update("q1", domain.ResponsePatch{ResponseText: ptr("changed"), EvidenceFiles: &[]string{}})
	if r.ResponseText != "changed" || len(r.EvidenceFiles) != 0 || r.ID != "r1" {
		t.Fatalf("unexpected merge result %+v", r)
	}
}

func TestResponseStoreReturnsCopies(t *testing.T) {
	store := app.NewResponseStore(nil)
	r := store.Update("q1", domain.ResponsePatch{ResponseData: map[string]any{"k": "v"}})
	r.ResponseData["k"] = "mutated"

	got, ok := store.Get("q1")
	if !ok || got.ResponseData["k"] != "v" {
		t.Fatalf("store leaked internal state: %+v", got)
	}
	snap := store.Snapshot()
	snap["q1"].ResponseData["k"] = "mutated again"
	if got, _ := store.Get("q1"); got.ResponseData["k"] != "v" {
		t.Fatalf("snapshot leaked internal state")
	}
}

func TestResponseStoreAppendEvidence(t *testing.T) {
	store := app.NewResponseStore(nil)
	store.AppendEvidence("q1", "https://files/a.pdf")
	r := store.AppendEvidence("q1", "https://files/b.pdf")
	if len(r.EvidenceFiles) != 2 || r.EvidenceFiles[1] != "https://files/b.pdf" {
		t.Fatalf("unexpected evidence %+v", r.EvidenceFiles)
	}
}

func TestResponseStoreReconcileKeepsLocalEdits(t *testing.T) {
	store := app.NewResponseStore(nil)
	store.Update("q1", domain.ResponsePatch{ResponseText: ptr("newer local text")})
	local, _ := store.Get("q1")

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.Reconcile(domain.Response{
		ID:           "srv-1",
		QuestionID:   "q1",
		ResponseText: "stale server text",
		CreatedAt:    created,
		UpdatedAt:    created,
	})

	got, _ := store.Get("q1")
	if got.ResponseText != "newer local text" {
		t.Fatalf("reconcile clobbered local text: %q", got.ResponseText)
	}
	if got.ID != "srv-1" || !got.CreatedAt.Equal(created) {
		t.Fatalf("expected server id and creation time, got %+v", got)
	}
	if !got.UpdatedAt.Equal(local.UpdatedAt) {
		t.Fatalf("older server timestamp must not move updatedAt back")
	}

	store.Reconcile(domain.Response{ID: "ghost", QuestionID: "unknown"})
	if _, ok := store.Get("unknown"); ok {
		t.Fatalf("reconcile must not create responses")
	}
}

func TestResponseStoreMarkSubmitted(t *testing.T) {
	store := app.NewResponseStore(nil)
	store.Update("q1", domain.ResponsePatch{ResponseText: ptr("a")})
	store.Update("q2", domain.ResponsePatch{ResponseText: ptr("b")})
	store.MarkSubmitted()
	for id, r := range store.Snapshot() {
		if r.Status != domain.ResponseStatusSubmitted {
			t.Fatalf("%s still %s", id, r.Status)
		}
	}
}
