package service

import (
	"testing"
	"time"

	"market-checkout/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// twoSellerBreakdown mirrors the priced cart of 3 desks and 4 chairs:
// seller-a carries 1822.50 of the 2740.50 discounted subtotal, seller-b
// carries 918.00.
func twoSellerBreakdown() *model.PricingBreakdown {
	return &model.PricingBreakdown{
		Lines: []model.LinePricing{
			{ProductID: "P-DESK", SellerID: "seller-a", Quantity: 3, Subtotal: dec("1822.50")},
			{ProductID: "P-CHAIR", SellerID: "seller-b", Quantity: 4, Subtotal: dec("918.00")},
		},
		OriginalSubtotal:       dec("3450.00"),
		SellerDiscountAmount:   dec("405.00"),
		VolumeDiscountAmount:   dec("304.50"),
		CouponCode:             "SAVE5",
		CouponDiscountAmount:   dec("137.025"),
		SubtotalAfterDiscounts: dec("2603.475"),
		TaxAmount:              dec("390.52125"),
		ShippingCost:           decimal.Zero,
		FreeShipping:           true,
		Total:                  dec("2993.99625"),
	}
}

func TestSplitSellerOrders_TwoSellers(t *testing.T) {
	breakdown := twoSellerBreakdown()
	orderID := uuid.New()

	orders := splitSellerOrders(orderID, breakdown, dec("0.60"), dec("10"), time.Now())

	require.Len(t, orders, 2)
	// Sellers come out in deterministic lexicographic order
	a, b := orders[0], orders[1]
	assert.Equal(t, "seller-a", a.SellerID)
	assert.Equal(t, "seller-b", b.SellerID)

	// Subtotals are the exact per-seller line sums
	assert.True(t, dec("1822.50").Equal(a.Subtotal))
	assert.True(t, dec("918.00").Equal(b.Subtotal))

	// Every apportioned pool must be conserved exactly
	assert.True(t, breakdown.DiscountedProductSubtotal().Equal(a.Subtotal.Add(b.Subtotal)))
	assert.True(t, breakdown.CouponDiscountAmount.Equal(a.DiscountShare.Add(b.DiscountShare)), "coupon shares: %s + %s", a.DiscountShare, b.DiscountShare)
	assert.True(t, breakdown.TaxAmount.Equal(a.TaxShare.Add(b.TaxShare)), "tax shares: %s + %s", a.TaxShare, b.TaxShare)
	assert.True(t, breakdown.ShippingCost.Equal(a.ShippingShare.Add(b.ShippingShare)))

	// Shares follow subtotal proportion: seller-a carries 66.5% of the cart
	assert.True(t, a.DiscountShare.GreaterThan(b.DiscountShare))
	assert.True(t, a.TaxShare.GreaterThan(b.TaxShare))

	// Platform fee is 10% of each subtotal; earnings exclude tax and
	// shipping, which the platform forwards rather than keeps
	assert.True(t, dec("182.250").Equal(a.PlatformFee), "fee: %s", a.PlatformFee)
	assert.True(t, a.Subtotal.Sub(a.DiscountShare).Sub(a.PlatformFee).Equal(a.Earnings))
	assert.True(t, b.Subtotal.Sub(b.DiscountShare).Sub(b.PlatformFee).Equal(b.Earnings))

	for _, so := range orders {
		assert.Equal(t, orderID, so.OrderID)
		assert.Equal(t, model.OrderStatusProcessing, so.Status)
		assert.Equal(t, model.PaymentStatusCompleted, so.PaymentStatus)
	}
}

func TestSplitSellerOrders_SingleSellerTakesEverything(t *testing.T) {
	breakdown := &model.PricingBreakdown{
		Lines: []model.LinePricing{
			{ProductID: "P1", SellerID: "solo", Quantity: 1, Subtotal: dec("40.00")},
		},
		OriginalSubtotal:       dec("40.00"),
		SubtotalAfterDiscounts: dec("40.00"),
		TaxAmount:              dec("7.50"),
		ShippingCost:           dec("10.00"),
		Total:                  dec("57.50"),
	}

	orders := splitSellerOrders(uuid.New(), breakdown, dec("0.60"), dec("10"), time.Now())

	require.Len(t, orders, 1)
	// A single seller is never capped, even when its share exceeds the cap
	assert.True(t, dec("10.00").Equal(orders[0].ShippingShare), "shipping: %s", orders[0].ShippingShare)
	assert.True(t, dec("7.50").Equal(orders[0].TaxShare))
}

func TestApportionShipping_CapsAndRedistributes(t *testing.T) {
	sellers := []string{"seller-a", "seller-b"}
	subtotals := map[string]decimal.Decimal{
		"seller-a": dec("80.00"),
		"seller-b": dec("20.00"),
	}

	// Proportional shares would be 8.00/2.00; the 60% cap holds seller-a
	// at 6.00 and the rest flows to seller-b.
	shares := apportionShipping(sellers, subtotals, dec("100.00"), dec("10.00"), dec("0.60"))

	assert.True(t, dec("6.00").Equal(shares["seller-a"]), "seller-a: %s", shares["seller-a"])
	assert.True(t, dec("4.00").Equal(shares["seller-b"]), "seller-b: %s", shares["seller-b"])
}

func TestApportionShipping_AllCappedStillConserves(t *testing.T) {
	sellers := []string{"s1", "s2", "s3"}
	subtotals := map[string]decimal.Decimal{
		"s1": dec("50.00"),
		"s2": dec("30.00"),
		"s3": dec("20.00"),
	}

	// A 30% cap admits at most 9.00 across three sellers; conservation
	// outranks the cap, so the remaining 1.00 is spread anyway.
	shares := apportionShipping(sellers, subtotals, dec("100.00"), dec("10.00"), dec("0.30"))

	var sum decimal.Decimal
	for _, s := range sellers {
		sum = sum.Add(shares[s])
	}
	assert.True(t, dec("10.00").Equal(sum), "total shipping: %s", sum)
	for _, s := range sellers {
		assert.True(t, shares[s].GreaterThanOrEqual(dec("3.00")), "share %s below cap baseline", s)
	}
}

func TestApportionShipping_ZeroShipping(t *testing.T) {
	shares := apportionShipping([]string{"s1", "s2"}, map[string]decimal.Decimal{
		"s1": dec("10.00"),
		"s2": dec("20.00"),
	}, dec("30.00"), decimal.Zero, dec("0.60"))

	assert.True(t, shares["s1"].IsZero())
	assert.True(t, shares["s2"].IsZero())
}

func TestOrderItemsFromBreakdown(t *testing.T) {
	breakdown := twoSellerBreakdown()
	orderID := uuid.New()

	items := orderItemsFromBreakdown(orderID, breakdown)

	require.Len(t, items, 2)
	assert.Equal(t, "P-DESK", items[0].ProductID)
	assert.Equal(t, "seller-a", items[0].SellerID)
	assert.Equal(t, 3, items[0].Quantity)
	assert.True(t, dec("1822.50").Equal(items[0].Subtotal))
	for _, item := range items {
		assert.Equal(t, orderID, item.OrderID)
		assert.NotEmpty(t, item.ProductID)
	}
}
