package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"market-checkout/internal/model"

	"github.com/rs/zerolog"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, code, message string, logger zerolog.Logger) {
	logger.Error().Str("error", message).Str("code", code).Int("status", status).Msg("handler error")
	writeJSON(w, status, model.ErrorResponse{Error: code, Message: message})
}

// writeDomainError maps a domain error to its HTTP status and writes it.
// Unknown errors collapse to an opaque 500 so internals never leak.
func writeDomainError(w http.ResponseWriter, err error, logger zerolog.Logger) {
	var domainErr *model.DomainError
	if !errors.As(err, &domainErr) {
		writeError(w, http.StatusInternalServerError, model.ErrCodeInternalError, "internal server error", logger)
		return
	}

	status := http.StatusInternalServerError
	switch domainErr.Code {
	case model.ErrCodeValidation, model.ErrCodeInvalidLineItem, model.ErrCodeInvalidQuantity,
		model.ErrCodeCouponRejected, model.ErrCodeInvalidJSON, model.ErrCodeUnknownSource:
		status = http.StatusBadRequest
	case model.ErrCodePriceTampering, model.ErrCodeInsufficientStock:
		status = http.StatusConflict
	case model.ErrCodePaymentDeclined, model.ErrCodePaymentAuthFailed:
		status = http.StatusPaymentRequired
	case model.ErrCodeGatewayUnavailable:
		status = http.StatusBadGateway
	case model.ErrCodePaymentNotFound, model.ErrCodeProductNotFound:
		status = http.StatusNotFound
	}

	writeError(w, status, domainErr.Code, domainErr.Message, logger)
}
