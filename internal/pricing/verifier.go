package pricing

import (
	"context"

	"market-checkout/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Verifier recomputes pricing from trusted catalogue data and compares it
// against client-declared amounts. A mismatch beyond tolerance is a
// security violation, not a validation error: the caller must abort the
// whole checkout.
type Verifier struct {
	calc      *Calculator
	tolerance decimal.Decimal
	logger    zerolog.Logger
}

// NewVerifier creates a new price integrity verifier.
func NewVerifier(calc *Calculator, tolerance decimal.Decimal, logger zerolog.Logger) *Verifier {
	return &Verifier{
		calc:      calc,
		tolerance: tolerance,
		logger:    logger.With().Str("component", "price_verifier").Logger(),
	}
}

func (v *Verifier) withinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(v.tolerance)
}

// Verify recomputes per-line prices server-side and checks every declared
// unit price the client supplied. Lines without a declared price pass; the
// server value is authoritative for them anyway.
func (v *Verifier) Verify(ctx context.Context, items []model.CheckoutItem, buyerID string, couponCode *string) (bool, error) {
	breakdown, err := v.calc.Calculate(ctx, items, buyerID, couponCode)
	if err != nil {
		return false, err
	}

	lines := make(map[string]model.LinePricing, len(breakdown.Lines))
	for _, line := range breakdown.Lines {
		lines[line.ProductID] = line
	}

	for _, item := range items {
		if item.DeclaredUnitPrice == nil {
			continue
		}
		line := lines[item.ProductID]
		if !v.withinTolerance(line.UnitPrice.Round(2), item.DeclaredUnitPrice.Round(2)) {
			v.logger.Warn().
				Str("buyer_id", buyerID).
				Str("product_id", item.ProductID).
				Str("declared", item.DeclaredUnitPrice.String()).
				Str("computed", line.UnitPrice.Round(2).String()).
				Msg("declared unit price deviates from server calculation")
			return false, nil
		}
	}

	return true, nil
}

// VerifyTotals recomputes the aggregate totals server-side and compares the
// client-declared totals field by field within the absolute tolerance.
func (v *Verifier) VerifyTotals(ctx context.Context, items []model.CheckoutItem, totals *model.ClientTotals, buyerID string, couponCode *string) (bool, error) {
	if totals == nil {
		return true, nil
	}

	breakdown, err := v.calc.Calculate(ctx, items, buyerID, couponCode)
	if err != nil {
		return false, err
	}

	checks := []struct {
		field    string
		declared decimal.Decimal
		computed decimal.Decimal
	}{
		{"subtotal", totals.Subtotal, breakdown.SubtotalAfterDiscounts.Round(2)},
		{"shipping", totals.Shipping, breakdown.ShippingCost.Round(2)},
		{"tax", totals.Tax, breakdown.TaxAmount.Round(2)},
		{"total", totals.Total, breakdown.RoundedTotal()},
	}

	for _, check := range checks {
		if !v.withinTolerance(check.declared, check.computed) {
			v.logger.Warn().
				Str("buyer_id", buyerID).
				Str("field", check.field).
				Str("declared", check.declared.String()).
				Str("computed", check.computed.String()).
				Msg("declared totals deviate from server calculation")
			return false, nil
		}
	}

	return true, nil
}
