package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentRecordStatus tracks the gateway-side payment lifecycle.
type PaymentRecordStatus string

const (
	PaymentRecordCreated   PaymentRecordStatus = "created"
	PaymentRecordPending   PaymentRecordStatus = "pending"
	PaymentRecordCompleted PaymentRecordStatus = "completed"
	PaymentRecordFailed    PaymentRecordStatus = "failed"
	PaymentRecordCancelled PaymentRecordStatus = "cancelled"
	PaymentRecordRefunded  PaymentRecordStatus = "refunded"
)

// PaymentRequestItem is a line of the originally stored payment request.
// The webhook path rebuilds orders exclusively from these rows, never from
// items embedded in an inbound provider payload.
type PaymentRequestItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// PaymentRecord is the payment subsystem's view of one gateway payment.
type PaymentRecord struct {
	ID                uuid.UUID            `json:"id" db:"id"`
	ProviderPaymentID string               `json:"providerPaymentId" db:"provider_payment_id"`
	OrderReference    string               `json:"orderReference" db:"order_reference"`
	BuyerID           string               `json:"buyerId" db:"buyer_id"`
	Amount            decimal.Decimal      `json:"amount" db:"amount"`
	Currency          string               `json:"currency" db:"currency"`
	Status            PaymentRecordStatus  `json:"status" db:"status"`
	Method            string               `json:"method" db:"method"`
	RequestItems      []PaymentRequestItem `json:"requestItems,omitempty"`
	CouponCode        *string              `json:"couponCode,omitempty" db:"coupon_code"`
	ShippingAddress   string               `json:"shippingAddress,omitempty" db:"shipping_address"`
	Metadata          map[string]any       `json:"metadata,omitempty"`
	CreatedAt         time.Time            `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time            `json:"updatedAt" db:"updated_at"`
}

// ConfirmationSource identifies which channel delivered a payment
// confirmation. Callers should set it explicitly; payload-shape detection
// exists only as a defensive fallback.
type ConfirmationSource string

const (
	SourceWidget  ConfirmationSource = "widget"
	SourceTest    ConfirmationSource = "test"
	SourceWebhook ConfirmationSource = "webhook"
	SourceUnknown ConfirmationSource = "unknown"
)

// ConfirmationPayload is the raw material a payment confirmation arrives as,
// from any of the three channels.
type ConfirmationPayload struct {
	Source            ConfirmationSource `json:"source,omitempty"`
	Method            string             `json:"method,omitempty"`
	Resource          string             `json:"resource,omitempty"` // synchronous widget reference token
	SimulateSuccess   bool               `json:"simulateSuccess,omitempty"`
	Event             string             `json:"event,omitempty"` // webhook event/type field
	ProviderPaymentID string             `json:"providerPaymentId,omitempty"`
	TransactionID     string             `json:"transactionId,omitempty"`
	Status            string             `json:"status,omitempty"`
	Amount            decimal.Decimal    `json:"amount,omitempty"`
	Signature         string             `json:"-"`
	RawBody           []byte             `json:"-"`
	TrustedAmount     bool               `json:"-"` // gateway-confirmed amount, skip price verification
	Metadata          map[string]any     `json:"metadata,omitempty"`
}

// OutcomeState is the five-state internal payment vocabulary every provider
// status collapses to.
type OutcomeState string

const (
	OutcomeSuccess   OutcomeState = "success"
	OutcomePending   OutcomeState = "pending"
	OutcomeFailed    OutcomeState = "failed"
	OutcomeCancelled OutcomeState = "cancelled"
	OutcomeRefunded  OutcomeState = "refunded"
)

// PaymentOutcome is the normalized result of validating a confirmation from
// any source.
type PaymentOutcome struct {
	Success       bool               `json:"success"`
	State         OutcomeState       `json:"state"`
	TransactionID string             `json:"transactionId,omitempty"`
	Amount        decimal.Decimal    `json:"amount"`
	Method        string             `json:"method,omitempty"`
	Source        ConfirmationSource `json:"source"`
	Simulated     bool               `json:"simulated,omitempty"`
	ErrorCode     string             `json:"errorCode,omitempty"`
	ErrorMessage  string             `json:"errorMessage,omitempty"`
	Metadata      map[string]any     `json:"metadata,omitempty"`
}

// GatewayResult is the raw reply from a payment provider call.
type GatewayResult struct {
	Success       bool            `json:"success"`
	TransactionID string          `json:"transactionId"`
	ResultCode    string          `json:"resultCode"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	Message       string          `json:"message"`
	Raw           map[string]any  `json:"raw,omitempty"`
}

// WebhookResult is what the reconciler reports back to the HTTP layer; a
// non-success result drives provider-side retry.
type WebhookResult struct {
	Success   bool   `json:"success"`
	PaymentID string `json:"paymentId,omitempty"`
	Status    string `json:"status,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
}
