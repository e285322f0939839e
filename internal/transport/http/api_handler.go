package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"vendor-risk-service/internal/app"
	"vendor-risk-service/internal/domain"
)

const defaultMaxUpload = 25 << 20

// APIHandler serves the plain HTTP endpoints next to the websocket.
type APIHandler struct {
	service   *app.ResponseService
	logger    *zap.Logger
	maxUpload int64
}

func NewAPIHandler(service *app.ResponseService, logger *zap.Logger, maxUploadBytes int64) *APIHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUpload
	}
	return &APIHandler{service: service, logger: logger, maxUpload: maxUploadBytes}
}

// Register mounts the endpoints on mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /upload", h.Upload)
	mux.HandleFunc("POST /questionnaires/{id}/review", h.Review)
}

type reviewRequest struct {
	Decision domain.ReviewDecision `json:"decision"`
	Notes    string                `json:"notes"`
}

// Upload accepts a multipart "file" for a question of an open session.
// Storage failures are reported in the body, not as an HTTP error.
func (h *APIHandler) Upload(w http.ResponseWriter, r *http.Request) {
	questionnaireID := r.URL.Query().Get("questionnaireId")
	vendorID := r.URL.Query().Get("vendorId")
	questionID := r.URL.Query().Get("questionId")
	if questionnaireID == "" || vendorID == "" || questionID == "" {
		http.Error(w, "missing questionnaireId, vendorId, or questionId", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing or oversized file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	session, err := h.service.Open(r.Context(), questionnaireID, vendorID)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := h.service.UploadEvidence(r.Context(), session.ID(), questionID, header.Filename,
		file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, err)
		return
	}
	// Without a live websocket the session only existed for this upload.
	if err := h.service.Release(r.Context(), questionnaireID); err != nil {
		h.logger.Warn("release session after upload", zap.String("questionnaireId", questionnaireID), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, result)
}

// Review records an APPROVE or REJECT decision on a submitted questionnaire.
func (h *APIHandler) Review(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid review payload", http.StatusBadRequest)
		return
	}
	q, err := h.service.Review(r.Context(), r.PathValue("id"), req.Decision, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrQuestionnaireNotFound), errors.Is(err, domain.ErrTemplateNotFound),
		errors.Is(err, domain.ErrQuestionNotFound), errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrVendorMismatch):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrQuestionnaireLocked), errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrNotSubmittable), errors.Is(err, domain.ErrSessionClosed),
		errors.Is(err, domain.ErrSubmitInProgress), errors.Is(err, domain.ErrSessionHeldElsewhere),
		errors.Is(err, domain.ErrUnsavedResponses):
		status = http.StatusConflict
	}
	writeJSON(w, status, errorPayload{Message: err.Error()})
}
