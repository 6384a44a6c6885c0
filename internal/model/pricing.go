package model

import "github.com/shopspring/decimal"

// LinePricing is the per-item slice of a pricing breakdown. UnitPrice is the
// seller- and volume-discounted price actually charged per unit.
type LinePricing struct {
	ProductID         string          `json:"productId"`
	SellerID          string          `json:"sellerId"`
	Quantity          int             `json:"quantity"`
	OriginalUnitPrice decimal.Decimal `json:"originalUnitPrice"`
	UnitPrice         decimal.Decimal `json:"unitPrice"`
	SellerDiscount    decimal.Decimal `json:"sellerDiscount"`
	VolumeDiscount    decimal.Decimal `json:"volumeDiscount"`
	Subtotal          decimal.Decimal `json:"subtotal"`
}

// PricingBreakdown is the itemised result of a single pricing calculation.
// It is computed once per checkout attempt and immutable afterward; the
// grand total must always be reproducible from the persisted fields.
type PricingBreakdown struct {
	Lines                  []LinePricing   `json:"lines"`
	OriginalSubtotal       decimal.Decimal `json:"originalSubtotal"`
	SellerDiscountAmount   decimal.Decimal `json:"sellerDiscountAmount"`
	VolumeDiscountAmount   decimal.Decimal `json:"volumeDiscountAmount"`
	VolumeDiscountPct      decimal.Decimal `json:"volumeDiscountPct"`
	CouponCode             string          `json:"couponCode,omitempty"`
	CouponDiscountAmount   decimal.Decimal `json:"couponDiscountAmount"`
	SubtotalAfterDiscounts decimal.Decimal `json:"subtotalAfterDiscounts"`
	TaxableBase            decimal.Decimal `json:"taxableBase"`
	TaxAmount              decimal.Decimal `json:"taxAmount"`
	ShippingCost           decimal.Decimal `json:"shippingCost"`
	FreeShipping           bool            `json:"freeShipping"`
	FreeShippingThreshold  decimal.Decimal `json:"freeShippingThreshold"`
	Total                  decimal.Decimal `json:"total"`
}

// DiscountedProductSubtotal is the product subtotal after seller and volume
// discounts but before the coupon. Seller order subtotals partition it.
func (p *PricingBreakdown) DiscountedProductSubtotal() decimal.Decimal {
	return p.OriginalSubtotal.Sub(p.SellerDiscountAmount).Sub(p.VolumeDiscountAmount)
}

// RoundedTotal returns the grand total rounded to cents for presentation
// and for the amount sent to the payment gateway.
func (p *PricingBreakdown) RoundedTotal() decimal.Decimal {
	return p.Total.Round(2)
}
