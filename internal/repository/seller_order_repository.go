package repository

import (
	"context"
	"fmt"

	"market-checkout/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// sellerOrderRepository implements SellerOrderRepository using PostgreSQL.
type sellerOrderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewSellerOrderRepository creates a new PostgreSQL-backed seller order repository.
func NewSellerOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) SellerOrderRepository {
	return &sellerOrderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "seller_order").Logger(),
	}
}

// Create inserts a seller order within the provided transaction.
func (r *sellerOrderRepository) Create(ctx context.Context, tx pgx.Tx, so *model.SellerOrder) error {
	query := `
		INSERT INTO seller_orders (
			id, order_id, seller_id, status, payment_status, subtotal,
			discount_share, shipping_share, tax_share, platform_fee,
			earnings, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := tx.Exec(ctx, query,
		so.ID, so.OrderID, so.SellerID, so.Status, so.PaymentStatus,
		so.Subtotal, so.DiscountShare, so.ShippingShare, so.TaxShare,
		so.PlatformFee, so.Earnings, so.CreatedAt,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", so.OrderID.String()).
			Str("seller_id", so.SellerID).
			Msg("failed to create seller order")
		return fmt.Errorf("failed to create seller order: %w", err)
	}

	r.logger.Debug().
		Str("seller_order_id", so.ID.String()).
		Str("seller_id", so.SellerID).
		Msg("seller order created")

	return nil
}

// UpdatePaymentStatusByOrder propagates a payment status to every seller
// order of the given parent order.
func (r *sellerOrderRepository) UpdatePaymentStatusByOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, status model.PaymentStatus) error {
	query := `UPDATE seller_orders SET payment_status = $2 WHERE order_id = $1`

	_, err := tx.Exec(ctx, query, orderID, status)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", orderID.String()).
			Msg("failed to update seller order payment status")
		return fmt.Errorf("failed to update seller order payment status: %w", err)
	}

	return nil
}

// GetByOrderID retrieves all seller orders for a parent order.
func (r *sellerOrderRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]model.SellerOrder, error) {
	query := `
		SELECT id, order_id, seller_id, status, payment_status, subtotal,
		       discount_share, shipping_share, tax_share, platform_fee,
		       earnings, created_at
		FROM seller_orders
		WHERE order_id = $1
		ORDER BY seller_id
	`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to query seller orders")
		return nil, fmt.Errorf("failed to query seller orders: %w", err)
	}
	defer rows.Close()

	var sellerOrders []model.SellerOrder
	for rows.Next() {
		var so model.SellerOrder
		err := rows.Scan(
			&so.ID, &so.OrderID, &so.SellerID, &so.Status, &so.PaymentStatus,
			&so.Subtotal, &so.DiscountShare, &so.ShippingShare, &so.TaxShare,
			&so.PlatformFee, &so.Earnings, &so.CreatedAt,
		)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan seller order row")
			return nil, fmt.Errorf("failed to scan seller order: %w", err)
		}
		sellerOrders = append(sellerOrders, so)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating seller order rows")
		return nil, fmt.Errorf("error iterating seller orders: %w", err)
	}

	return sellerOrders, nil
}
