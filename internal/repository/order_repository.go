package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"market-checkout/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// orderRepository implements the OrderRepository interface using PostgreSQL.
type orderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

// BeginTx starts a new database transaction.
func (r *orderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// CreateOrder inserts a new order within the provided transaction. The
// pricing breakdown is persisted as a JSON snapshot and is the only source
// the grand total is ever reproduced from.
func (r *orderRepository) CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	pricing, err := json.Marshal(order.Pricing)
	if err != nil {
		return fmt.Errorf("failed to marshal pricing snapshot: %w", err)
	}

	query := `
		INSERT INTO orders (
			id, order_number, buyer_id, seller_id, status, payment_status,
			payment_id, payment_method, pricing, shipping_address,
			billing_address, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = tx.Exec(ctx, query,
		order.ID, order.OrderNumber, order.BuyerID, order.SellerID,
		order.Status, order.PaymentStatus, order.PaymentID,
		order.PaymentMethod, pricing, order.ShippingAddress,
		order.BillingAddress, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", order.ID.String()).
			Msg("failed to create order")
		return fmt.Errorf("failed to create order: %w", err)
	}

	r.logger.Debug().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Msg("order created")

	return nil
}

// CreateOrderItems inserts multiple order items within the provided transaction.
func (r *orderRepository) CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	query := `
		INSERT INTO order_items (
			id, order_id, seller_order_id, product_id, seller_id, quantity,
			unit_price, original_unit_price, seller_discount, volume_discount, subtotal
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	batch := &pgx.Batch{}
	for _, item := range items {
		if item.ProductID == "" {
			// Never insert an item that lost its product linkage.
			r.logger.Error().
				Str("order_id", item.OrderID.String()).
				Msg("order item has no product id")
			return model.ErrDataIntegrity
		}
		batch.Queue(query,
			item.ID, item.OrderID, item.SellerOrderID, item.ProductID,
			item.SellerID, item.Quantity, item.UnitPrice,
			item.OriginalUnitPrice, item.SellerDiscount,
			item.VolumeDiscount, item.Subtotal,
		)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(items); i++ {
		if _, err := results.Exec(); err != nil {
			r.logger.Error().
				Err(err).
				Str("order_id", items[i].OrderID.String()).
				Str("product_id", items[i].ProductID).
				Msg("failed to create order item")
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	r.logger.Debug().
		Int("count", len(items)).
		Msg("order items created")

	return nil
}

// AttachSellerOrder back-fills seller_order_id on every item of the order
// belonging to the given seller.
func (r *orderRepository) AttachSellerOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, sellerID string, sellerOrderID uuid.UUID) error {
	query := `
		UPDATE order_items
		SET seller_order_id = $3
		WHERE order_id = $1 AND seller_id = $2
	`

	tag, err := tx.Exec(ctx, query, orderID, sellerID, sellerOrderID)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", orderID.String()).
			Str("seller_id", sellerID).
			Msg("failed to attach seller order to items")
		return fmt.Errorf("failed to attach seller order: %w", err)
	}

	if tag.RowsAffected() == 0 {
		r.logger.Error().
			Str("order_id", orderID.String()).
			Str("seller_id", sellerID).
			Msg("seller order attached to zero items")
		return model.ErrDataIntegrity
	}

	return nil
}

// UpdatePaymentInfo records the payment linkage and status transition.
func (r *orderRepository) UpdatePaymentInfo(ctx context.Context, tx pgx.Tx, orderID, paymentID uuid.UUID, method string, status model.OrderStatus, paymentStatus model.PaymentStatus) error {
	query := `
		UPDATE orders
		SET payment_id = $2, payment_method = $3, status = $4,
		    payment_status = $5, updated_at = $6
		WHERE id = $1
	`

	tag, err := tx.Exec(ctx, query, orderID, paymentID, method, status, paymentStatus, time.Now())
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", orderID.String()).
			Msg("failed to update payment info")
		return fmt.Errorf("failed to update payment info: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return model.ErrDataIntegrity
	}

	return nil
}

const orderColumns = `
	id, order_number, buyer_id, seller_id, status, payment_status,
	payment_id, payment_method, pricing, shipping_address,
	billing_address, created_at, updated_at
`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		order   model.Order
		pricing []byte
	)
	err := row.Scan(
		&order.ID, &order.OrderNumber, &order.BuyerID, &order.SellerID,
		&order.Status, &order.PaymentStatus, &order.PaymentID,
		&order.PaymentMethod, &pricing, &order.ShippingAddress,
		&order.BillingAddress, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(pricing, &order.Pricing); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pricing snapshot: %w", err)
	}
	return &order, nil
}

// GetByID retrieves an order by its ID along with its items.
func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, []model.OrderItem, error) {
	orderQuery := fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1`, orderColumns)

	order, err := scanOrder(r.pool.QueryRow(ctx, orderQuery, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			r.logger.Debug().Str("order_id", id.String()).Msg("order not found")
			return nil, nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to query order")
		return nil, nil, fmt.Errorf("failed to query order: %w", err)
	}

	itemsQuery := `
		SELECT id, order_id, seller_order_id, product_id, seller_id, quantity,
		       unit_price, original_unit_price, seller_discount, volume_discount, subtotal
		FROM order_items
		WHERE order_id = $1
		ORDER BY product_id
	`

	rows, err := r.pool.Query(ctx, itemsQuery, id)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", id.String()).
			Msg("failed to query order items")
		return nil, nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var item model.OrderItem
		err := rows.Scan(
			&item.ID, &item.OrderID, &item.SellerOrderID, &item.ProductID,
			&item.SellerID, &item.Quantity, &item.UnitPrice,
			&item.OriginalUnitPrice, &item.SellerDiscount,
			&item.VolumeDiscount, &item.Subtotal,
		)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order item row")
			return nil, nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order item rows")
		return nil, nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return order, items, nil
}

// FindByPaymentID retrieves the order linked to a payment record.
func (r *orderRepository) FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*model.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE payment_id = $1`, orderColumns)

	order, err := scanOrder(r.pool.QueryRow(ctx, query, paymentID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("payment_id", paymentID.String()).Msg("failed to query order by payment")
		return nil, fmt.Errorf("failed to query order by payment: %w", err)
	}

	return order, nil
}
