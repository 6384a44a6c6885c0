package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Coupon is a single-use, buyer-scoped percentage discount code. Codes are
// created out-of-band and consumed exactly once at successful checkout.
type Coupon struct {
	Code       string          `json:"code" db:"code"`
	Percentage decimal.Decimal `json:"percentage" db:"percentage"`
	Used       bool            `json:"used" db:"used"`
	UsedBy     *string         `json:"usedBy,omitempty" db:"used_by"`
	ExpiresAt  *time.Time      `json:"expiresAt,omitempty" db:"expires_at"`
	CreatedAt  time.Time       `json:"createdAt" db:"created_at"`
}

// Expired reports whether the coupon's expiry, if any, has passed.
func (c *Coupon) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}
