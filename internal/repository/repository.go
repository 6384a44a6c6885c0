package repository

import (
	"context"

	"market-checkout/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ProductRepository defines the interface for catalogue data access.
type ProductRepository interface {
	// FindByID retrieves a single product by its ID.
	FindByID(ctx context.Context, id string) (*model.Product, error)

	// GetAll retrieves products with pagination, newest first.
	GetAll(ctx context.Context, limit, offset int) ([]model.Product, error)

	// GetByIDs retrieves multiple products by their IDs.
	GetByIDs(ctx context.Context, ids []string) ([]model.Product, error)

	// LockForUpdate acquires row-level exclusive locks on the given product
	// rows in ascending id order and returns the current rows as read under
	// lock. Every id must resolve; a missing product is an error.
	LockForUpdate(ctx context.Context, tx pgx.Tx, ids []string) (map[string]model.Product, error)

	// UpdateStock applies a stock change within the provided transaction.
	UpdateStock(ctx context.Context, tx pgx.Tx, id string, qty int, mode model.StockUpdateMode) error
}

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// CreateOrder inserts a new order with its pricing snapshot within the
	// provided transaction.
	CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// CreateOrderItems inserts multiple order items within the provided transaction.
	CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error

	// AttachSellerOrder back-fills seller_order_id on every item of the
	// order belonging to the given seller.
	AttachSellerOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, sellerID string, sellerOrderID uuid.UUID) error

	// UpdatePaymentInfo records the payment linkage and the resulting
	// order/payment status transition.
	UpdatePaymentInfo(ctx context.Context, tx pgx.Tx, orderID, paymentID uuid.UUID, method string, status model.OrderStatus, paymentStatus model.PaymentStatus) error

	// GetByID retrieves an order by its ID along with its items.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, []model.OrderItem, error)

	// FindByPaymentID retrieves the order linked to a payment record, or
	// nil when none exists yet.
	FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*model.Order, error)
}

// SellerOrderRepository defines the interface for per-seller sub-orders.
type SellerOrderRepository interface {
	// Create inserts a seller order within the provided transaction.
	Create(ctx context.Context, tx pgx.Tx, so *model.SellerOrder) error

	// UpdatePaymentStatusByOrder propagates a payment status to every
	// seller order of the given parent order.
	UpdatePaymentStatusByOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, status model.PaymentStatus) error

	// GetByOrderID retrieves all seller orders for a parent order.
	GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]model.SellerOrder, error)
}

// CartRepository defines the interface for persisted buyer carts.
type CartRepository interface {
	// FindByUserID retrieves a buyer's cart with its items, or nil when
	// the buyer has none.
	FindByUserID(ctx context.Context, userID string) (*model.Cart, error)

	// ClearCart removes every item from the cart within the provided transaction.
	ClearCart(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) error
}

// CouponRepository defines the interface for discount codes.
type CouponRepository interface {
	// FindByCode retrieves a coupon, or nil when the code is unknown.
	FindByCode(ctx context.Context, code string) (*model.Coupon, error)

	// MarkAsUsed consumes the coupon for the given buyer. The update is
	// conditional on the coupon being unused, so concurrent consumers
	// cannot both succeed.
	MarkAsUsed(ctx context.Context, tx pgx.Tx, code, userID string) error
}

// PaymentRepository defines the interface for payment records.
type PaymentRepository interface {
	// Create inserts a payment record, including the originally requested
	// item list, within the provided transaction.
	Create(ctx context.Context, tx pgx.Tx, rec *model.PaymentRecord) error

	// FindByProviderPaymentID retrieves a payment record by the gateway's
	// payment identifier, or nil when unknown.
	FindByProviderPaymentID(ctx context.Context, providerPaymentID string) (*model.PaymentRecord, error)

	// UpdateStatus transitions a payment record's status within the
	// provided transaction.
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status model.PaymentRecordStatus) error
}
