package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a catalogue entry owned by a seller.
type Product struct {
	ID                string          `json:"id" db:"id"`
	Name              string          `json:"name" db:"name"`
	SellerID          string          `json:"sellerId" db:"seller_id"`
	Price             decimal.Decimal `json:"price" db:"price"`
	SellerDiscountPct decimal.Decimal `json:"sellerDiscountPct" db:"seller_discount_pct"`
	Stock             int             `json:"stock" db:"stock"`
	Category          string          `json:"category" db:"category"`
	CreatedAt         time.Time       `json:"createdAt" db:"created_at"`
}

// StockUpdateMode selects how UpdateStock applies a quantity.
type StockUpdateMode string

const (
	StockIncrease StockUpdateMode = "increase"
	StockDecrease StockUpdateMode = "decrease"
	StockReplace  StockUpdateMode = "replace"
)

// Cart represents a buyer's persisted cart.
type Cart struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	UserID    string     `json:"userId" db:"user_id"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time  `json:"updatedAt" db:"updated_at"`
}

// CartItem represents a single product line in a cart.
type CartItem struct {
	ID        uuid.UUID `json:"-" db:"id"`
	CartID    uuid.UUID `json:"-" db:"cart_id"`
	ProductID string    `json:"productId" db:"product_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
}
