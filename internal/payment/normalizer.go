package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"market-checkout/internal/config"
	"market-checkout/internal/model"

	"github.com/rs/zerolog"
)

// Normalizer collapses payment confirmations from all three channels
// (synchronous widget callback, manual test simulation, asynchronous
// webhook) into one PaymentOutcome shape.
type Normalizer struct {
	gateway Gateway
	cfg     config.PaymentConfig
	logger  zerolog.Logger
}

// NewNormalizer creates a new confirmation normalizer.
func NewNormalizer(gateway Gateway, cfg config.PaymentConfig, logger zerolog.Logger) *Normalizer {
	return &Normalizer{
		gateway: gateway,
		cfg:     cfg,
		logger:  logger.With().Str("component", "payment-normalizer").Logger(),
	}
}

// DetectSource returns the confirmation channel for a payload. An explicit
// Source set by the transport layer wins; shape-sniffing is only the
// defensive fallback, with precedence test flag > widget resource token >
// webhook event field > unknown.
func DetectSource(payload *model.ConfirmationPayload) model.ConfirmationSource {
	switch payload.Source {
	case model.SourceWidget, model.SourceTest, model.SourceWebhook:
		return payload.Source
	}

	switch {
	case payload.SimulateSuccess:
		return model.SourceTest
	case payload.Resource != "":
		return model.SourceWidget
	case payload.Event != "":
		return model.SourceWebhook
	default:
		return model.SourceUnknown
	}
}

// Validate classifies the payload and runs the matching validator. An
// unrecognisable payload is a failure with a diagnostic code.
func (n *Normalizer) Validate(ctx context.Context, payload *model.ConfirmationPayload) *model.PaymentOutcome {
	source := DetectSource(payload)

	switch source {
	case model.SourceWidget:
		return n.validateWidget(ctx, payload)
	case model.SourceTest:
		return n.validateTest(payload)
	case model.SourceWebhook:
		return n.validateWebhook(payload)
	default:
		n.logger.Warn().Msg("payment confirmation from unrecognisable source")
		return &model.PaymentOutcome{
			Success:      false,
			State:        model.OutcomeFailed,
			Source:       model.SourceUnknown,
			ErrorCode:    model.ErrCodeUnknownSource,
			ErrorMessage: model.ErrUnknownSource.Message,
		}
	}
}

// validateWidget resolves the synchronous resource token through the
// gateway's verification endpoint.
func (n *Normalizer) validateWidget(ctx context.Context, payload *model.ConfirmationPayload) *model.PaymentOutcome {
	result, err := n.gateway.VerifyPayment(ctx, payload.Resource)
	if err != nil {
		n.logger.Error().Err(err).Msg("gateway verification call failed")
		return &model.PaymentOutcome{
			Success:      false,
			State:        model.OutcomeFailed,
			Source:       model.SourceWidget,
			ErrorCode:    model.ErrCodeGatewayUnavailable,
			ErrorMessage: model.ErrGatewayUnavailable.Message,
		}
	}

	state, errCode := ClassifyResultCode(strings.ToUpper(result.ResultCode))
	outcome := &model.PaymentOutcome{
		Success:       state == model.OutcomeSuccess,
		State:         state,
		TransactionID: result.TransactionID,
		Amount:        result.Amount,
		Method:        result.Method,
		Source:        model.SourceWidget,
		ErrorCode:     errCode,
		Metadata:      result.Raw,
	}
	if !outcome.Success && result.Message != "" {
		outcome.ErrorMessage = result.Message
	}

	return outcome
}

// validateTest returns a synthetic success outside production, tagged as
// simulated so auditing can tell it apart from real settlements.
func (n *Normalizer) validateTest(payload *model.ConfirmationPayload) *model.PaymentOutcome {
	if n.cfg.IsProduction() {
		n.logger.Error().Msg("simulated payment confirmation refused in production")
		return &model.PaymentOutcome{
			Success:      false,
			State:        model.OutcomeFailed,
			Source:       model.SourceTest,
			ErrorCode:    model.ErrCodeValidation,
			ErrorMessage: "simulated payments are not permitted in production",
		}
	}

	if !payload.SimulateSuccess {
		return &model.PaymentOutcome{
			Success:   false,
			State:     model.OutcomeFailed,
			Source:    model.SourceTest,
			Simulated: true,
			ErrorCode: model.ErrCodePaymentDeclined,
		}
	}

	return &model.PaymentOutcome{
		Success:       true,
		State:         model.OutcomeSuccess,
		TransactionID: payload.TransactionID,
		Amount:        payload.Amount,
		Method:        payload.Method,
		Source:        model.SourceTest,
		Simulated:     true,
	}
}

// Webhook status vocabularies, multiple synonyms per state, case-insensitive.
var webhookStates = map[string]model.OutcomeState{
	"success": model.OutcomeSuccess, "succeeded": model.OutcomeSuccess,
	"paid": model.OutcomeSuccess, "completed": model.OutcomeSuccess,
	"captured": model.OutcomeSuccess,
	"pending":  model.OutcomePending, "processing": model.OutcomePending,
	"created": model.OutcomePending, "authorized": model.OutcomePending,
	"failed": model.OutcomeFailed, "failure": model.OutcomeFailed,
	"error": model.OutcomeFailed, "declined": model.OutcomeFailed,
	"cancelled": model.OutcomeCancelled, "canceled": model.OutcomeCancelled,
	"voided": model.OutcomeCancelled, "expired": model.OutcomeCancelled,
	"refunded": model.OutcomeRefunded, "refund": model.OutcomeRefunded,
	"reversed": model.OutcomeRefunded,
}

// validateWebhook checks the provider signature when one is present and
// maps the provider status vocabulary onto the internal five states.
func (n *Normalizer) validateWebhook(payload *model.ConfirmationPayload) *model.PaymentOutcome {
	if payload.Signature != "" {
		if !n.verifySignature(payload.RawBody, payload.Signature) {
			n.logger.Error().Msg("webhook signature verification failed")
			return &model.PaymentOutcome{
				Success:      false,
				State:        model.OutcomeFailed,
				Source:       model.SourceWebhook,
				ErrorCode:    model.ErrCodeValidation,
				ErrorMessage: "webhook signature mismatch",
			}
		}
	}

	state, ok := webhookStates[strings.ToLower(strings.TrimSpace(payload.Status))]
	if !ok {
		n.logger.Warn().Str("status", payload.Status).Msg("unknown webhook payment status")
		return &model.PaymentOutcome{
			Success:      false,
			State:        model.OutcomeFailed,
			Source:       model.SourceWebhook,
			ErrorCode:    model.ErrCodeValidation,
			ErrorMessage: "unrecognised payment status: " + payload.Status,
		}
	}

	outcome := &model.PaymentOutcome{
		Success:       state == model.OutcomeSuccess,
		State:         state,
		TransactionID: payload.TransactionID,
		Amount:        payload.Amount,
		Method:        payload.Method,
		Source:        model.SourceWebhook,
		Metadata:      payload.Metadata,
	}
	if state == model.OutcomeFailed {
		outcome.ErrorCode = model.ErrCodePaymentDeclined
	}

	return outcome
}

// verifySignature checks an HMAC-SHA256 hex signature over the raw body.
func (n *Normalizer) verifySignature(body []byte, signature string) bool {
	if n.cfg.WebhookSecret == "" {
		// No secret configured: signatures cannot be checked, refuse
		// rather than accept unverifiable input.
		return false
	}

	mac := hmac.New(sha256.New, []byte(n.cfg.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}
