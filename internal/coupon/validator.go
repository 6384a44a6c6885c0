package coupon

import (
	"context"
	"time"

	"market-checkout/internal/model"
	"market-checkout/internal/repository"

	"github.com/rs/zerolog"
)

// Validator resolves and validates discount codes against the coupon store.
type Validator interface {
	// Resolve returns the coupon when the code is valid for the buyer:
	// known, unexpired and not yet consumed. Any other state yields
	// model.ErrCouponRejected.
	Resolve(ctx context.Context, code, buyerID string) (*model.Coupon, error)
}

// validator implements Validator over the coupon repository.
type validator struct {
	repo   repository.CouponRepository
	now    func() time.Time
	logger zerolog.Logger
}

// NewValidator creates a new coupon validator.
func NewValidator(repo repository.CouponRepository, logger zerolog.Logger) Validator {
	return &validator{
		repo:   repo,
		now:    time.Now,
		logger: logger.With().Str("component", "coupon-validator").Logger(),
	}
}

// Resolve checks a coupon code for a buyer.
func (v *validator) Resolve(ctx context.Context, code, buyerID string) (*model.Coupon, error) {
	coupon, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if coupon == nil {
		v.logger.Debug().Str("code", code).Msg("unknown coupon code")
		return nil, model.ErrCouponRejected
	}

	if coupon.Expired(v.now()) {
		v.logger.Debug().Str("code", code).Time("expires_at", *coupon.ExpiresAt).Msg("coupon expired")
		return nil, model.ErrCouponRejected
	}

	if coupon.Used {
		// Covers both the global single-use flag and the buyer-scoped
		// constraint: a consumed code is dead for everyone, including
		// the buyer who consumed it.
		v.logger.Debug().Str("code", code).Str("buyer_id", buyerID).Msg("coupon already used")
		return nil, model.ErrCouponRejected
	}

	v.logger.Debug().Str("code", code).Str("buyer_id", buyerID).Msg("coupon validated")

	return coupon, nil
}
