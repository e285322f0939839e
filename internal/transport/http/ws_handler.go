package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"vendor-risk-service/internal/app"
	"vendor-risk-service/internal/domain"
	"vendor-risk-service/internal/metrics"
)

// EditLimit bounds how fast one connection may send edits.
type EditLimit struct {
	PerSecond float64
	Burst     int
}

type WSHandler struct {
	service  *app.ResponseService
	logger   *zap.Logger
	limit    EditLimit
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.ResponseService, logger *zap.Logger, limit EditLimit) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limit.PerSecond <= 0 {
		limit.PerSecond = 20
	}
	if limit.Burst <= 0 {
		limit.Burst = 40
	}
	return &WSHandler{
		service: service,
		logger:  logger,
		limit:   limit,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type editPayload struct {
	QuestionID string `json:"questionId"`
	domain.ResponsePatch
}

type goToPayload struct {
	Section int `json:"section"`
}

type openedPayload struct {
	Questionnaire  domain.Questionnaire       `json:"questionnaire"`
	Template       domain.Template            `json:"template"`
	Responses      map[string]domain.Response `json:"responses"`
	Progress       domain.Progress            `json:"progress"`
	CurrentSection int                        `json:"currentSection"`
}

type editedPayload struct {
	Response     domain.Response `json:"response"`
	Progress     domain.Progress `json:"progress"`
	ShowFollowUp bool            `json:"showFollowUp"`
}

type navigationPayload struct {
	CurrentSection int                      `json:"currentSection"`
	Moved          bool                     `json:"moved"`
	Errors         []domain.ValidationError `json:"errors,omitempty"`
}

type validationPayload struct {
	Errors []domain.ValidationError `json:"errors"`
}

type submittedPayload struct {
	Questionnaire domain.Questionnaire `json:"questionnaire"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func errorMessage(message string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}}
}

// ServeWS upgrades HTTP requests to websockets and wires them into the response use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	questionnaireID := r.URL.Query().Get("questionnaireId")
	vendorID := r.URL.Query().Get("vendorId")
	if questionnaireID == "" || vendorID == "" {
		http.Error(w, "missing questionnaireId or vendorId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	metrics.WSConnections.Inc()
	defer metrics.WSConnections.Dec()

	ctx := r.Context()
	session, err := h.service.Open(ctx, questionnaireID, vendorID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err.Error()))
		return
	}
	defer func() {
		// The request context is gone by now; pending saves still need one.
		releaseCtx, done := context.WithTimeout(context.Background(), 15*time.Second)
		defer done()
		if err := h.service.Release(releaseCtx, questionnaireID); err != nil {
			h.logger.Warn("release session", zap.String("questionnaireId", questionnaireID), zap.Error(err))
		}
	}()

	updates, cancel, err := h.service.Subscribe(ctx, questionnaireID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err.Error()))
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", zap.Error(err))
				// Unblock the reader; nothing will drain send from here on.
				_ = conn.Close()
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case event, ok := <-updates:
				if !ok {
					// Session closed underneath us; unblock the reader.
					_ = conn.Close()
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "event", Payload: event}:
				case <-closeSignals:
					return
				case <-writerDone:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	opened := deliver(send, writerDone, outboundMessage[any]{Type: "opened", Payload: openedPayload{
		Questionnaire:  session.Questionnaire(),
		Template:       session.Template(),
		Responses:      session.Responses(),
		Progress:       session.Progress(),
		CurrentSection: session.CurrentSection(),
	}})

	limiter := rate.NewLimiter(rate.Limit(h.limit.PerSecond), h.limit.Burst)
read:
	for opened {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		for _, msg := range h.handle(ctx, session, limiter, inbound) {
			if !deliver(send, writerDone, msg) {
				break read
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// deliver queues msg for the writer and reports false once the writer has exited.
func deliver(send chan<- outboundMessage[any], writerDone <-chan struct{}, msg outboundMessage[any]) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}

func (h *WSHandler) handle(ctx context.Context, session *app.Session, limiter *rate.Limiter, inbound inboundMessage) []outboundMessage[any] {
	switch inbound.Type {
	case "edit":
		if !limiter.Allow() {
			return []outboundMessage[any]{errorMessage("too many edits, slow down")}
		}
		var payload editPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.QuestionID == "" {
			return []outboundMessage[any]{errorMessage("invalid edit payload")}
		}
		response, progress, err := h.service.Edit(ctx, session.ID(), payload.QuestionID, payload.ResponsePatch)
		if err != nil {
			return []outboundMessage[any]{errorMessage(err.Error())}
		}
		show, _ := session.ShouldShow(payload.QuestionID)
		return []outboundMessage[any]{{Type: "edited", Payload: editedPayload{
			Response:     response,
			Progress:     progress,
			ShowFollowUp: show,
		}}}

	case "next":
		current, errs, moved := session.Next()
		return []outboundMessage[any]{{Type: "navigation", Payload: navigationPayload{
			CurrentSection: current,
			Moved:          moved,
			Errors:         errs,
		}}}

	case "prev":
		current, moved := session.Prev()
		return []outboundMessage[any]{{Type: "navigation", Payload: navigationPayload{CurrentSection: current, Moved: moved}}}

	case "goTo":
		var payload goToPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return []outboundMessage[any]{errorMessage("invalid goTo payload")}
		}
		before := session.CurrentSection()
		current := session.GoTo(payload.Section)
		return []outboundMessage[any]{{Type: "navigation", Payload: navigationPayload{CurrentSection: current, Moved: current != before}}}

	case "start":
		if err := session.Start(ctx); err != nil {
			return []outboundMessage[any]{errorMessage(err.Error())}
		}
		return nil

	case "submit":
		errs, err := session.Submit(ctx)
		if len(errs) > 0 {
			return []outboundMessage[any]{{Type: "validation", Payload: validationPayload{Errors: errs}}}
		}
		if err != nil {
			return []outboundMessage[any]{errorMessage(err.Error())}
		}
		return []outboundMessage[any]{{Type: "submitted", Payload: submittedPayload{Questionnaire: session.Questionnaire()}}}

	default:
		return []outboundMessage[any]{errorMessage("unsupported message type")}
	}
}
