package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"vendor-risk-service/internal/domain"
)

func TestUploadWithoutStorageReportsFailure(t *testing.T) {
	env := newTestEnv(t, domain.StatusInProgress)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "policy.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte("%PDF-1.4"))
	_ = form.Close()

	resp, err := http.Post(env.server.URL+"/upload?questionnaireId=qn-1&vendorId=vendor-1&questionId=policy",
		form.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result domain.UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Success {
		t.Fatalf("expected upload to fail without storage, got %+v", result)
	}
	if _, err := env.service.Session("qn-1"); err == nil {
		t.Fatalf("expected upload-only session to be released")
	}
}

func TestUploadRequiresParameters(t *testing.T) {
	env := newTestEnv(t, domain.StatusInProgress)

	resp, err := http.Post(env.server.URL+"/upload?questionnaireId=qn-1", "text/plain", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestReviewMapsErrors(t *testing.T) {
	env := newTestEnv(t, domain.StatusSubmitted)

	post := func(id, body string) *http.Response {
		t.Helper()
		resp, err := http.Post(env.server.URL+"/questionnaires/"+id+"/review", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		return resp
	}

	resp := post("missing", `{"decision":"APPROVE"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown questionnaire, got %d", resp.StatusCode)
	}

	resp = post("qn-1", `{"decision":"MAYBE"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for unknown decision, got %d", resp.StatusCode)
	}

	resp = post("qn-1", `not json`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad payload, got %d", resp.StatusCode)
	}

	resp = post("qn-1", `{"decision":"REJECT","notes":"no pentest"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var q domain.Questionnaire
	if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if q.Status != domain.StatusRejected || q.ReviewNotes != "no pentest" {
		t.Fatalf("unexpected reviewed questionnaire %+v", q)
	}
}
