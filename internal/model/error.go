package model

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON        = "INVALID_JSON"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeInvalidLineItem    = "INVALID_LINE_ITEM"
	ErrCodeCouponRejected     = "COUPON_REJECTED"
	ErrCodeProductNotFound    = "PRODUCT_NOT_FOUND"
	ErrCodeInvalidQuantity    = "INVALID_QUANTITY"
	ErrCodePriceTampering     = "PRICE_TAMPERING_DETECTED"
	ErrCodeInsufficientStock  = "INSUFFICIENT_STOCK"
	ErrCodePaymentDeclined    = "PAYMENT_DECLINED"
	ErrCodePaymentAuthFailed  = "PAYMENT_AUTH_FAILED"
	ErrCodeGatewayUnavailable = "GATEWAY_UNAVAILABLE"
	ErrCodeDuplicateEvent     = "DUPLICATE_EVENT"
	ErrCodeDataIntegrity      = "DATA_INTEGRITY_ERROR"
	ErrCodePaymentNotFound    = "PAYMENT_NOT_FOUND"
	ErrCodeUnknownSource      = "UNKNOWN_CONFIRMATION_SOURCE"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

// DomainError carries a stable machine-readable code alongside the message.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	// ErrInvalidLineItem is returned when a cart line references an unknown
	// product.
	ErrInvalidLineItem = NewDomainError(ErrCodeInvalidLineItem, "One or more line items reference an unknown product")

	// ErrCouponRejected is returned for invalid, expired or already-used
	// coupon codes.
	ErrCouponRejected = NewDomainError(ErrCodeCouponRejected, "Coupon code is invalid, expired or already used")

	// ErrPriceTampering is a security violation, never a plain validation
	// failure: the whole checkout aborts and nothing is partially applied.
	ErrPriceTampering = NewDomainError(ErrCodePriceTampering, "Client-declared pricing does not match server calculation")

	// ErrInsufficientStock aborts the checkout; safe to retry once the
	// catalogue changes.
	ErrInsufficientStock = NewDomainError(ErrCodeInsufficientStock, "Insufficient stock for one or more products")

	// ErrPaymentDeclined aborts order creation; safe to retry with
	// different payment details.
	ErrPaymentDeclined = NewDomainError(ErrCodePaymentDeclined, "Payment was declined by the provider")

	// ErrPaymentAuthFailed covers the 3-D-Secure authentication failure
	// family.
	ErrPaymentAuthFailed = NewDomainError(ErrCodePaymentAuthFailed, "Payment authentication failed")

	// ErrGatewayUnavailable is transient; the caller may retry the whole
	// checkout.
	ErrGatewayUnavailable = NewDomainError(ErrCodeGatewayUnavailable, "Payment gateway is unreachable")

	// ErrDuplicateEvent is an idempotency short-circuit, reported as a
	// no-op success rather than a failure.
	ErrDuplicateEvent = NewDomainError(ErrCodeDuplicateEvent, "Event has already been processed")

	// ErrDataIntegrity marks fatal inconsistencies such as an order item
	// without a product id. Logged at highest severity, never patched.
	ErrDataIntegrity = NewDomainError(ErrCodeDataIntegrity, "Data integrity violation")

	// ErrPaymentNotFound is raised when a webhook references a payment the
	// system never created.
	ErrPaymentNotFound = NewDomainError(ErrCodePaymentNotFound, "No payment record matches the provider payment id")

	ErrProductNotFound = NewDomainError(ErrCodeProductNotFound, "One or more products not found")
	ErrInvalidQuantity = NewDomainError(ErrCodeInvalidQuantity, "Quantity must be greater than zero")
	ErrUnknownSource   = NewDomainError(ErrCodeUnknownSource, "Could not determine payment confirmation source")
)
