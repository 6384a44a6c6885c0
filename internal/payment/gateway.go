package payment

import (
	"context"

	"market-checkout/internal/model"

	"github.com/shopspring/decimal"
)

// Gateway is the capability boundary to the external payment provider.
// Concrete providers live outside this module.
type Gateway interface {
	// ProcessPayment charges the given amount using the request payload.
	// The amount is always the server-computed total, never a
	// client-supplied one.
	ProcessPayment(ctx context.Context, payload model.ConfirmationPayload, amount decimal.Decimal) (*model.GatewayResult, error)

	// VerifyPayment resolves a provider reference token into the current
	// state of that payment.
	VerifyPayment(ctx context.Context, reference string) (*model.GatewayResult, error)
}

// Provider result codes collapse into a fixed internal taxonomy. The code
// sets mirror the vocabularies the supported gateways actually emit.
var (
	successCodes = map[string]struct{}{
		"00": {}, "0": {}, "000": {}, "AUTHORISED": {}, "APPROVED": {},
	}
	pendingCodes = map[string]struct{}{
		"PENDING": {}, "CREATED": {}, "IN_PROGRESS": {},
	}
	declinedCodes = map[string]struct{}{
		"05": {}, "51": {}, "54": {}, "DECLINED": {}, "CARD_DECLINED": {},
		"INSUFFICIENT_FUNDS": {}, "EXPIRED_CARD": {},
	}
	authFailedCodes = map[string]struct{}{
		"3DS_FAILED": {}, "AUTHENTICATION_FAILED": {}, "AUTHENTICATION_REQUIRED": {},
	}
	connectivityCodes = map[string]struct{}{
		"91": {}, "96": {}, "TIMEOUT": {}, "GATEWAY_ERROR": {}, "ISSUER_UNAVAILABLE": {},
	}
)

// ClassifyResultCode maps a provider result code to the internal error
// taxonomy. Unknown codes are failures with a diagnostic code, never
// silently accepted.
func ClassifyResultCode(code string) (model.OutcomeState, string) {
	if _, ok := successCodes[code]; ok {
		return model.OutcomeSuccess, ""
	}
	if _, ok := pendingCodes[code]; ok {
		return model.OutcomePending, ""
	}
	if _, ok := declinedCodes[code]; ok {
		return model.OutcomeFailed, model.ErrCodePaymentDeclined
	}
	if _, ok := authFailedCodes[code]; ok {
		return model.OutcomeFailed, model.ErrCodePaymentAuthFailed
	}
	if _, ok := connectivityCodes[code]; ok {
		return model.OutcomeFailed, model.ErrCodeGatewayUnavailable
	}
	return model.OutcomeFailed, model.ErrCodeInternalError
}
