package repository

import (
	"context"
	"fmt"

	"market-checkout/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// couponRepository implements CouponRepository using PostgreSQL.
type couponRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCouponRepository creates a new PostgreSQL-backed coupon repository.
func NewCouponRepository(pool *pgxpool.Pool, logger zerolog.Logger) CouponRepository {
	return &couponRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "coupon").Logger(),
	}
}

// FindByCode retrieves a coupon by its code.
func (r *couponRepository) FindByCode(ctx context.Context, code string) (*model.Coupon, error) {
	query := `
		SELECT code, percentage, used, used_by, expires_at, created_at
		FROM coupons
		WHERE code = $1
	`

	var c model.Coupon
	err := r.pool.QueryRow(ctx, query, code).Scan(
		&c.Code, &c.Percentage, &c.Used, &c.UsedBy, &c.ExpiresAt, &c.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			r.logger.Debug().Str("code", code).Msg("coupon not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("code", code).Msg("failed to query coupon")
		return nil, fmt.Errorf("failed to query coupon: %w", err)
	}

	return &c, nil
}

// MarkAsUsed consumes the coupon for the given buyer. The WHERE clause makes
// the update conditional on the coupon still being unused, so two concurrent
// checkouts cannot both consume the same code.
func (r *couponRepository) MarkAsUsed(ctx context.Context, tx pgx.Tx, code, userID string) error {
	query := `
		UPDATE coupons
		SET used = TRUE, used_by = $2
		WHERE code = $1 AND used = FALSE
	`

	tag, err := tx.Exec(ctx, query, code, userID)
	if err != nil {
		r.logger.Error().Err(err).Str("code", code).Msg("failed to mark coupon as used")
		return fmt.Errorf("failed to mark coupon as used: %w", err)
	}

	if tag.RowsAffected() == 0 {
		r.logger.Warn().Str("code", code).Str("user_id", userID).Msg("coupon already consumed")
		return model.ErrCouponRejected
	}

	r.logger.Debug().Str("code", code).Str("user_id", userID).Msg("coupon consumed")

	return nil
}
