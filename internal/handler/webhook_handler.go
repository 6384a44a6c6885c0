package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"market-checkout/internal/model"
	"market-checkout/internal/service"

	"github.com/rs/zerolog"
)

// maxWebhookBody bounds inbound webhook payload size.
const maxWebhookBody = 1 << 20

// WebhookHandler handles inbound payment provider webhooks.
type WebhookHandler struct {
	service service.WebhookService
	logger  zerolog.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(service service.WebhookService, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		logger:  logger.With().Str("handler", "webhook").Logger(),
	}
}

// HandlePayment handles POST /api/webhooks/payment requests. The raw body
// is retained for signature verification before any JSON decoding.
func (h *WebhookHandler) HandlePayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, model.ErrCodeValidation, "method not allowed", h.logger)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "unreadable request body", h.logger)
		return
	}

	var payload model.ConfirmationPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid webhook payload", h.logger)
		return
	}
	payload.RawBody = body
	payload.Signature = r.Header.Get("X-Webhook-Signature")

	result, err := h.service.HandleWebhook(r.Context(), &payload)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
