package payment

import (
	"context"
	"strings"

	"market-checkout/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// simulatedGateway approves everything except a few trigger methods. Used
// for local development and tests; construction in production is the
// caller's bug, not this type's concern.
type simulatedGateway struct {
	payments map[string]*model.GatewayResult
	logger   zerolog.Logger
}

// NewSimulatedGateway creates an in-memory gateway for non-production use.
func NewSimulatedGateway(logger zerolog.Logger) Gateway {
	return &simulatedGateway{
		payments: make(map[string]*model.GatewayResult),
		logger:   logger.With().Str("component", "payment-gateway-sim").Logger(),
	}
}

// ProcessPayment approves the charge unless the method name asks for a
// failure ("declined", "3ds-fail", "timeout").
func (g *simulatedGateway) ProcessPayment(_ context.Context, payload model.ConfirmationPayload, amount decimal.Decimal) (*model.GatewayResult, error) {
	code := "00"
	switch strings.ToLower(payload.Method) {
	case "declined":
		code = "05"
	case "3ds-fail":
		code = "3DS_FAILED"
	case "timeout":
		code = "TIMEOUT"
	}

	state, _ := ClassifyResultCode(code)
	result := &model.GatewayResult{
		Success:       state == model.OutcomeSuccess,
		TransactionID: "sim_" + uuid.NewString(),
		ResultCode:    code,
		Amount:        amount,
		Method:        payload.Method,
	}
	g.payments[result.TransactionID] = result

	g.logger.Debug().
		Str("transaction_id", result.TransactionID).
		Str("result_code", code).
		Str("amount", amount.String()).
		Msg("simulated charge")

	return result, nil
}

// VerifyPayment returns the stored charge for a simulated transaction id.
func (g *simulatedGateway) VerifyPayment(_ context.Context, reference string) (*model.GatewayResult, error) {
	if result, ok := g.payments[reference]; ok {
		return result, nil
	}
	return &model.GatewayResult{
		Success:    false,
		ResultCode: "DECLINED",
		Message:    "unknown payment reference",
	}, nil
}
