package transport

import (
	"errors"
	"io"
	"net/http"

	"printsync/internal/domain"
	"printsync/internal/middleware"
	"printsync/internal/printify"
	"printsync/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SignatureHeader carries the HMAC of a Printify webhook body
const SignatureHeader = printify.SignatureHeader

const maxWebhookBody = 1 << 20

// DispatchResponse reports what a trigger turned into
type DispatchResponse struct {
	Status string       `json:"status"`
	Task   *domain.Task `json:"task,omitempty"`
}

// Dispatch outcomes
const (
	DispatchQueued    = "queued"
	DispatchDuplicate = "duplicate"
	DispatchIgnored   = "ignored"
)

// WebhookHandler receives Printify webhooks and turns them into tasks
type WebhookHandler struct {
	dispatcher service.Dispatcher
	secret     string
	logger     *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler; an empty secret disables signature checks
func NewWebhookHandler(dispatcher service.Dispatcher, secret string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		dispatcher: dispatcher,
		secret:     secret,
		logger:     logger,
	}
}

// RegisterRoutes registers the webhook endpoint behind the given rate limiter
func (h *WebhookHandler) RegisterRoutes(r chi.Router, rateLimiter func(http.Handler) http.Handler) {
	r.Route("/webhooks", func(r chi.Router) {
		if rateLimiter != nil {
			r.Use(rateLimiter)
		}
		r.Post("/printify", h.Receive)
	})
}

// Receive handles one webhook delivery
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	if h.secret != "" && !printify.VerifySignature(h.secret, body, r.Header.Get(SignatureHeader)) {
		h.logger.Warn("Webhook signature mismatch", zap.String("remote_addr", r.RemoteAddr))
		middleware.RespondWithError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	event, err := printify.ParseWebhook(body)
	if err != nil {
		h.logger.Debug("Malformed webhook", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid webhook payload")
		return
	}

	middleware.AnnotateRequest(r.Context(), zap.String("event", event.Name()))
	writeDispatch(w, h.logger, h.dispatcher, r, event.Name(), event.ProductID())
}

// writeDispatch runs one dispatch and maps its outcome onto an HTTP response
func writeDispatch(w http.ResponseWriter, logger *zap.Logger, dispatcher service.Dispatcher, r *http.Request, event, externalID string) {
	task, err := dispatcher.Dispatch(r.Context(), event, externalID)
	middleware.AnnotateRequest(r.Context(), zap.String("external_id", externalID))
	switch {
	case errors.Is(err, service.ErrEventIgnored):
		middleware.RespondWithJSON(w, http.StatusOK, DispatchResponse{Status: DispatchIgnored})
	case err != nil:
		if !errors.Is(err, domain.ErrValidation) {
			logger.Error("Dispatch failed",
				zap.String("event", event),
				zap.String("external_id", externalID),
				zap.Error(err),
			)
		}
		middleware.RespondWithServiceError(w, err, "failed to schedule task")
	case task == nil:
		middleware.RespondWithJSON(w, http.StatusAccepted, DispatchResponse{Status: DispatchDuplicate})
	default:
		middleware.RespondWithJSON(w, http.StatusAccepted, DispatchResponse{Status: DispatchQueued, Task: task})
	}
}
