package service

import (
	"sort"
	"time"

	"market-checkout/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// splitSellerOrders fans a priced order out into one settlement sub-order
// per distinct seller.
//
// Each seller's subtotal is the exact sum of its own line subtotals, so the
// seller subtotals always partition the order's discounted product subtotal.
// Coupon, tax and shipping are apportioned proportionally to subtotal share;
// the last seller takes the residual of each pool so the shares sum exactly.
// Shipping shares are additionally capped per seller at maxShippingShare of
// the total shipping cost; when every seller hits the cap the remainder is
// spread anyway, because shipping conservation outranks the cap.
func splitSellerOrders(orderID uuid.UUID, breakdown *model.PricingBreakdown, maxShippingShare, platformFeePct decimal.Decimal, now time.Time) []model.SellerOrder {
	subtotals := make(map[string]decimal.Decimal)
	for _, line := range breakdown.Lines {
		subtotals[line.SellerID] = subtotals[line.SellerID].Add(line.Subtotal)
	}

	sellers := make([]string, 0, len(subtotals))
	for sellerID := range subtotals {
		sellers = append(sellers, sellerID)
	}
	sort.Strings(sellers)

	totalSubtotal := breakdown.DiscountedProductSubtotal()
	shippingShares := apportionShipping(sellers, subtotals, totalSubtotal, breakdown.ShippingCost, maxShippingShare)

	couponPool := breakdown.CouponDiscountAmount
	taxPool := breakdown.TaxAmount

	orders := make([]model.SellerOrder, 0, len(sellers))
	for i, sellerID := range sellers {
		subtotal := subtotals[sellerID]

		var couponShare, taxShare decimal.Decimal
		if i == len(sellers)-1 {
			// Residual taker: whatever the proportional shares of the
			// earlier sellers left behind.
			couponShare = couponPool
			taxShare = taxPool
		} else if totalSubtotal.IsPositive() {
			ratio := subtotal.Div(totalSubtotal)
			couponShare = breakdown.CouponDiscountAmount.Mul(ratio)
			taxShare = breakdown.TaxAmount.Mul(ratio)
		}
		couponPool = couponPool.Sub(couponShare)
		taxPool = taxPool.Sub(taxShare)

		platformFee := subtotal.Mul(platformFeePct.Div(hundred))

		orders = append(orders, model.SellerOrder{
			ID:            uuid.New(),
			OrderID:       orderID,
			SellerID:      sellerID,
			Status:        model.OrderStatusProcessing,
			PaymentStatus: model.PaymentStatusCompleted,
			Subtotal:      subtotal,
			DiscountShare: couponShare,
			ShippingShare: shippingShares[sellerID],
			TaxShare:      taxShare,
			PlatformFee:   platformFee,
			Earnings:      subtotal.Sub(couponShare).Sub(platformFee),
			CreatedAt:     now,
		})
	}

	return orders
}

// apportionShipping distributes the shipping cost proportionally to each
// seller's subtotal share, capping each share at cap*shipping and
// redistributing the excess over the uncapped sellers until stable.
func apportionShipping(sellers []string, subtotals map[string]decimal.Decimal, totalSubtotal, shipping, maxShare decimal.Decimal) map[string]decimal.Decimal {
	shares := make(map[string]decimal.Decimal, len(sellers))
	if shipping.IsZero() || len(sellers) == 0 {
		for _, s := range sellers {
			shares[s] = decimal.Zero
		}
		return shares
	}

	maxPerSeller := shipping.Mul(maxShare)
	remaining := shipping
	open := append([]string(nil), sellers...)

	// Cap pass: repeatedly fix sellers whose proportional share of the
	// still-open pool exceeds the cap. A single seller is never capped.
	for len(sellers) > 1 {
		var weight decimal.Decimal
		for _, s := range open {
			weight = weight.Add(subtotals[s])
		}

		capped := false
		next := open[:0]
		for _, s := range open {
			var share decimal.Decimal
			if weight.IsPositive() {
				share = remaining.Mul(subtotals[s]).Div(weight)
			} else {
				share = remaining.Div(decimal.NewFromInt(int64(len(open))))
			}
			if share.GreaterThan(maxPerSeller) {
				shares[s] = maxPerSeller
				remaining = remaining.Sub(maxPerSeller)
				capped = true
			} else {
				next = append(next, s)
			}
		}
		open = next

		if !capped || len(open) == 0 {
			break
		}
	}

	if len(open) == 0 {
		// Everyone capped: conservation outranks the cap, spread the rest
		// evenly across all sellers.
		extra := remaining.Div(decimal.NewFromInt(int64(len(sellers))))
		for i, s := range sellers {
			if i == len(sellers)-1 {
				shares[s] = shares[s].Add(remaining)
				break
			}
			shares[s] = shares[s].Add(extra)
			remaining = remaining.Sub(extra)
		}
		return shares
	}

	// Distribute what is left over the uncapped sellers proportionally;
	// the last one takes the residual so the shares sum exactly.
	var weight decimal.Decimal
	for _, s := range open {
		weight = weight.Add(subtotals[s])
	}
	pool := remaining
	for i, s := range open {
		if i == len(open)-1 {
			shares[s] = remaining
			break
		}
		var share decimal.Decimal
		if weight.IsPositive() {
			share = pool.Mul(subtotals[s]).Div(weight)
		}
		shares[s] = share
		remaining = remaining.Sub(share)
	}

	return shares
}

// orderItemsFromBreakdown materialises order item rows from the pricing
// lines. Every line carries its product id; a blank one upstream would
// already have failed the calculation.
func orderItemsFromBreakdown(orderID uuid.UUID, breakdown *model.PricingBreakdown) []model.OrderItem {
	items := make([]model.OrderItem, 0, len(breakdown.Lines))
	for _, line := range breakdown.Lines {
		items = append(items, model.OrderItem{
			ID:                uuid.New(),
			OrderID:           orderID,
			ProductID:         line.ProductID,
			SellerID:          line.SellerID,
			Quantity:          line.Quantity,
			UnitPrice:         line.UnitPrice,
			OriginalUnitPrice: line.OriginalUnitPrice,
			SellerDiscount:    line.SellerDiscount,
			VolumeDiscount:    line.VolumeDiscount,
			Subtotal:          line.Subtotal,
		})
	}
	return items
}
