package pricing

import (
	"context"
	"fmt"

	"market-checkout/internal/config"
	"market-checkout/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Catalog is the read-only product lookup the calculator depends on.
type Catalog interface {
	GetByIDs(ctx context.Context, ids []string) ([]model.Product, error)
}

// CouponSource validates a coupon code for a buyer and returns the coupon.
type CouponSource interface {
	Resolve(ctx context.Context, code, buyerID string) (*model.Coupon, error)
}

// Options tunes a single calculation.
type Options struct {
	// BestEffortCoupon drops a rejected coupon and continues instead of
	// aborting the calculation.
	BestEffortCoupon bool
}

// Calculator derives an itemised, deterministic pricing breakdown from raw
// cart lines and trusted catalogue data. It performs no writes; for a fixed
// catalogue state the same input always yields the same breakdown.
type Calculator struct {
	catalog Catalog
	coupons CouponSource
	cfg     config.PricingConfig
	logger  zerolog.Logger
}

// NewCalculator creates a new pricing calculator.
func NewCalculator(catalog Catalog, coupons CouponSource, cfg config.PricingConfig, logger zerolog.Logger) *Calculator {
	return &Calculator{
		catalog: catalog,
		coupons: coupons,
		cfg:     cfg,
		logger:  logger.With().Str("component", "pricing").Logger(),
	}
}

var (
	hundred = decimal.NewFromInt(100)

	// Volume discount tiers over total cart quantity, highest first.
	volumeTiers = []struct {
		minQty int
		pct    decimal.Decimal
	}{
		{10, decimal.NewFromInt(15)},
		{6, decimal.NewFromInt(10)},
		{5, decimal.NewFromInt(8)},
		{3, decimal.NewFromInt(5)},
	}
)

// VolumeDiscountPct returns the tier percentage for a total cart quantity.
func VolumeDiscountPct(totalQty int) decimal.Decimal {
	for _, tier := range volumeTiers {
		if totalQty >= tier.minQty {
			return tier.pct
		}
	}
	return decimal.Zero
}

// Calculate computes the pricing breakdown with default options: an invalid
// coupon aborts the calculation.
func (c *Calculator) Calculate(ctx context.Context, items []model.CheckoutItem, buyerID string, couponCode *string) (*model.PricingBreakdown, error) {
	return c.CalculateWithOptions(ctx, items, buyerID, couponCode, Options{})
}

// CalculateWithOptions computes the pricing breakdown.
//
// Per line: catalogue price, then seller discount, then the volume discount
// tier derived from the total quantity across the whole cart. At cart level:
// coupon on the discounted subtotal, then shipping, then tax on subtotal
// plus shipping. Intermediate amounts are never rounded; only presentation
// rounds to cents.
func (c *Calculator) CalculateWithOptions(ctx context.Context, items []model.CheckoutItem, buyerID string, couponCode *string, opts Options) (*model.PricingBreakdown, error) {
	if len(items) == 0 {
		return nil, model.NewDomainError(model.ErrCodeValidation, "cannot price an empty cart")
	}

	productIDs := make([]string, 0, len(items))
	totalQty := 0
	for i, item := range items {
		if item.ProductID == "" {
			return nil, fmt.Errorf("item %d: %w", i, model.ErrInvalidLineItem)
		}
		if item.Quantity <= 0 {
			return nil, model.ErrInvalidQuantity
		}
		productIDs = append(productIDs, item.ProductID)
		totalQty += item.Quantity
	}

	products, err := c.catalog.GetByIDs(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalogue data: %w", err)
	}

	byID := make(map[string]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	volumePct := VolumeDiscountPct(totalQty)
	volumeFraction := volumePct.Div(hundred)

	breakdown := &model.PricingBreakdown{
		Lines:                 make([]model.LinePricing, 0, len(items)),
		VolumeDiscountPct:     volumePct,
		FreeShippingThreshold: c.cfg.FreeShippingThreshold,
	}

	for _, item := range items {
		product, ok := byID[item.ProductID]
		if !ok {
			c.logger.Warn().Str("product_id", item.ProductID).Msg("line item references unknown product")
			return nil, model.ErrInvalidLineItem
		}

		qty := decimal.NewFromInt(int64(item.Quantity))

		sellerDiscountUnit := product.Price.Mul(product.SellerDiscountPct.Div(hundred))
		afterSeller := product.Price.Sub(sellerDiscountUnit)
		volumeDiscountUnit := afterSeller.Mul(volumeFraction)
		unitPrice := afterSeller.Sub(volumeDiscountUnit)

		line := model.LinePricing{
			ProductID:         product.ID,
			SellerID:          product.SellerID,
			Quantity:          item.Quantity,
			OriginalUnitPrice: product.Price,
			UnitPrice:         unitPrice,
			SellerDiscount:    sellerDiscountUnit.Mul(qty),
			VolumeDiscount:    volumeDiscountUnit.Mul(qty),
			Subtotal:          unitPrice.Mul(qty),
		}
		breakdown.Lines = append(breakdown.Lines, line)

		breakdown.OriginalSubtotal = breakdown.OriginalSubtotal.Add(product.Price.Mul(qty))
		breakdown.SellerDiscountAmount = breakdown.SellerDiscountAmount.Add(line.SellerDiscount)
		breakdown.VolumeDiscountAmount = breakdown.VolumeDiscountAmount.Add(line.VolumeDiscount)
	}

	discountedSubtotal := breakdown.DiscountedProductSubtotal()

	if couponCode != nil && *couponCode != "" {
		coupon, err := c.coupons.Resolve(ctx, *couponCode, buyerID)
		switch {
		case err != nil && opts.BestEffortCoupon:
			c.logger.Warn().
				Str("coupon_code", *couponCode).
				Str("buyer_id", buyerID).
				Err(err).
				Msg("coupon rejected, continuing without it")
		case err != nil:
			return nil, err
		default:
			breakdown.CouponCode = coupon.Code
			breakdown.CouponDiscountAmount = discountedSubtotal.Mul(coupon.Percentage.Div(hundred))
		}
	}

	breakdown.SubtotalAfterDiscounts = discountedSubtotal.Sub(breakdown.CouponDiscountAmount)

	if breakdown.SubtotalAfterDiscounts.GreaterThanOrEqual(c.cfg.FreeShippingThreshold) {
		breakdown.FreeShipping = true
		breakdown.ShippingCost = decimal.Zero
	} else {
		breakdown.ShippingCost = c.cfg.ShippingCost
	}

	breakdown.TaxableBase = breakdown.SubtotalAfterDiscounts.Add(breakdown.ShippingCost)
	breakdown.TaxAmount = breakdown.TaxableBase.Mul(c.cfg.TaxRate)
	breakdown.Total = breakdown.SubtotalAfterDiscounts.Add(breakdown.ShippingCost).Add(breakdown.TaxAmount)

	c.logger.Debug().
		Str("buyer_id", buyerID).
		Int("line_count", len(breakdown.Lines)).
		Str("volume_pct", volumePct.String()).
		Str("total", breakdown.RoundedTotal().String()).
		Msg("pricing calculated")

	return breakdown, nil
}
