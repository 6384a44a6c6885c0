package service

import (
	"context"

	"market-checkout/internal/model"

	"github.com/google/uuid"
)

// CheckoutService runs the checkout saga: stock locking, price integrity
// verification, payment execution and per-seller order splitting inside one
// atomic unit.
type CheckoutService interface {
	// Checkout executes a full checkout attempt for a buyer.
	Checkout(ctx context.Context, req *model.CheckoutRequest) (*model.CheckoutResponse, error)

	// GetOrder retrieves an order with its items.
	GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, []model.OrderItem, error)
}

// WebhookService reconciles asynchronous payment confirmations that may
// arrive out of order, late, or duplicated.
type WebhookService interface {
	// HandleWebhook processes one inbound provider confirmation. A
	// non-success result tells the provider to retry.
	HandleWebhook(ctx context.Context, payload *model.ConfirmationPayload) (*model.WebhookResult, error)
}

// ProductService defines read operations over the catalogue.
type ProductService interface {
	// GetAll retrieves all products with pagination.
	GetAll(ctx context.Context, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single product by ID.
	GetByID(ctx context.Context, id string) (*model.Product, error)
}
