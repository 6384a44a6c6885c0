package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus tracks the buyer-facing order lifecycle.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// PaymentStatus tracks settlement state on an order or seller order.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Order is the buyer-facing aggregate root. The pricing snapshot persisted
// at creation time is authoritative; totals are never recomputed from
// current catalogue prices after the order exists.
type Order struct {
	ID              uuid.UUID        `json:"id" db:"id"`
	OrderNumber     string           `json:"orderNumber" db:"order_number"`
	BuyerID         string           `json:"buyerId" db:"buyer_id"`
	SellerID        string           `json:"sellerId,omitempty" db:"seller_id"` // legacy single-seller metadata
	Status          OrderStatus      `json:"status" db:"status"`
	PaymentStatus   PaymentStatus    `json:"paymentStatus" db:"payment_status"`
	PaymentID       *uuid.UUID       `json:"paymentId,omitempty" db:"payment_id"`
	PaymentMethod   string           `json:"paymentMethod,omitempty" db:"payment_method"`
	Pricing         PricingBreakdown `json:"pricing"`
	ShippingAddress string           `json:"shippingAddress" db:"shipping_address"`
	BillingAddress  string           `json:"billingAddress" db:"billing_address"`
	CreatedAt       time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time        `json:"updatedAt" db:"updated_at"`
}

// OrderItem is one (product, order) row. ProductID must never be empty; an
// item without a resolvable product is a data-integrity failure, not a row
// to drop.
type OrderItem struct {
	ID                uuid.UUID       `json:"-" db:"id"`
	OrderID           uuid.UUID       `json:"-" db:"order_id"`
	SellerOrderID     *uuid.UUID      `json:"sellerOrderId,omitempty" db:"seller_order_id"`
	ProductID         string          `json:"productId" db:"product_id"`
	SellerID          string          `json:"sellerId" db:"seller_id"`
	Quantity          int             `json:"quantity" db:"quantity"`
	UnitPrice         decimal.Decimal `json:"unitPrice" db:"unit_price"`
	OriginalUnitPrice decimal.Decimal `json:"originalUnitPrice" db:"original_unit_price"`
	SellerDiscount    decimal.Decimal `json:"sellerDiscount" db:"seller_discount"`
	VolumeDiscount    decimal.Decimal `json:"volumeDiscount" db:"volume_discount"`
	Subtotal          decimal.Decimal `json:"subtotal" db:"subtotal"`
}

// SellerOrder is the per-seller settlement sub-order derived from one Order.
type SellerOrder struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	OrderID       uuid.UUID       `json:"orderId" db:"order_id"`
	SellerID      string          `json:"sellerId" db:"seller_id"`
	Status        OrderStatus     `json:"status" db:"status"`
	PaymentStatus PaymentStatus   `json:"paymentStatus" db:"payment_status"`
	Subtotal      decimal.Decimal `json:"subtotal" db:"subtotal"`
	DiscountShare decimal.Decimal `json:"discountShare" db:"discount_share"`
	ShippingShare decimal.Decimal `json:"shippingShare" db:"shipping_share"`
	TaxShare      decimal.Decimal `json:"taxShare" db:"tax_share"`
	PlatformFee   decimal.Decimal `json:"platformFee" db:"platform_fee"`
	Earnings      decimal.Decimal `json:"earnings" db:"earnings"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
}

// CheckoutItem is a requested line item. DeclaredUnitPrice carries the price
// the client believes it is paying; it is verified, never trusted.
type CheckoutItem struct {
	ProductID         string           `json:"productId"`
	Quantity          int              `json:"quantity"`
	DeclaredUnitPrice *decimal.Decimal `json:"declaredUnitPrice,omitempty"`
}

// ClientTotals carries the aggregate amounts the client computed locally.
type ClientTotals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// CheckoutRequest is the full checkout payload. Items take precedence over
// the buyer's persisted cart when both are present.
type CheckoutRequest struct {
	BuyerID          string              `json:"buyerId"`
	Items            []CheckoutItem      `json:"items,omitempty"`
	SellerID         string              `json:"sellerId,omitempty"`
	CouponCode       *string             `json:"couponCode,omitempty"`
	ShippingAddress  string              `json:"shippingAddress"`
	BillingAddress   string              `json:"billingAddress"`
	Payment          ConfirmationPayload `json:"payment"`
	CalculatedTotals *ClientTotals       `json:"calculatedTotals,omitempty"`
}

// CheckoutResponse is the result of a completed checkout saga.
type CheckoutResponse struct {
	Success      bool              `json:"success"`
	Order        *Order            `json:"order,omitempty"`
	SellerOrders []SellerOrder     `json:"sellerOrders,omitempty"`
	Payment      *PaymentRecord    `json:"payment,omitempty"`
	PricingInfo  *PricingBreakdown `json:"pricingInfo,omitempty"`
}
