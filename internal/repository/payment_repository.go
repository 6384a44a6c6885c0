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

// paymentRepository implements PaymentRepository using PostgreSQL.
type paymentRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPaymentRepository creates a new PostgreSQL-backed payment repository.
func NewPaymentRepository(pool *pgxpool.Pool, logger zerolog.Logger) PaymentRepository {
	return &paymentRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "payment").Logger(),
	}
}

// Create inserts a payment record within the provided transaction. The
// request item list is stored as JSON; the webhook path rebuilds orders
// from it and from nothing else.
func (r *paymentRepository) Create(ctx context.Context, tx pgx.Tx, rec *model.PaymentRecord) error {
	items, err := json.Marshal(rec.RequestItems)
	if err != nil {
		return fmt.Errorf("failed to marshal payment request items: %w", err)
	}

	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal payment metadata: %w", err)
	}

	query := `
		INSERT INTO payments (
			id, provider_payment_id, order_reference, buyer_id, amount,
			currency, status, method, request_items, coupon_code,
			shipping_address, metadata, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = tx.Exec(ctx, query,
		rec.ID, rec.ProviderPaymentID, rec.OrderReference, rec.BuyerID,
		rec.Amount, rec.Currency, rec.Status, rec.Method, items,
		rec.CouponCode, rec.ShippingAddress, metadata,
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("payment_id", rec.ID.String()).
			Str("provider_payment_id", rec.ProviderPaymentID).
			Msg("failed to create payment record")
		return fmt.Errorf("failed to create payment record: %w", err)
	}

	r.logger.Debug().
		Str("payment_id", rec.ID.String()).
		Str("provider_payment_id", rec.ProviderPaymentID).
		Msg("payment record created")

	return nil
}

// FindByProviderPaymentID retrieves a payment record by the gateway's id.
func (r *paymentRepository) FindByProviderPaymentID(ctx context.Context, providerPaymentID string) (*model.PaymentRecord, error) {
	query := `
		SELECT id, provider_payment_id, order_reference, buyer_id, amount,
		       currency, status, method, request_items, coupon_code,
		       shipping_address, metadata, created_at, updated_at
		FROM payments
		WHERE provider_payment_id = $1
	`

	var (
		rec      model.PaymentRecord
		items    []byte
		metadata []byte
	)
	err := r.pool.QueryRow(ctx, query, providerPaymentID).Scan(
		&rec.ID, &rec.ProviderPaymentID, &rec.OrderReference, &rec.BuyerID,
		&rec.Amount, &rec.Currency, &rec.Status, &rec.Method, &items,
		&rec.CouponCode, &rec.ShippingAddress, &metadata,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			r.logger.Debug().Str("provider_payment_id", providerPaymentID).Msg("payment record not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("provider_payment_id", providerPaymentID).Msg("failed to query payment record")
		return nil, fmt.Errorf("failed to query payment record: %w", err)
	}

	if len(items) > 0 {
		if err := json.Unmarshal(items, &rec.RequestItems); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payment request items: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payment metadata: %w", err)
		}
	}

	return &rec, nil
}

// UpdateStatus transitions a payment record's status.
func (r *paymentRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status model.PaymentRecordStatus) error {
	query := `UPDATE payments SET status = $2, updated_at = $3 WHERE id = $1`

	tag, err := tx.Exec(ctx, query, id, status, time.Now())
	if err != nil {
		r.logger.Error().Err(err).Str("payment_id", id.String()).Msg("failed to update payment status")
		return fmt.Errorf("failed to update payment status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return model.ErrPaymentNotFound
	}

	return nil
}
