package inventory

import (
	"context"
	"sort"

	"market-checkout/internal/model"
	"market-checkout/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Line is one (product, quantity) pair to reserve or commit.
type Line struct {
	ProductID string
	Quantity  int
}

// Reserver performs row-locked stock checks and decrements. The same
// lock-and-recheck pattern runs twice per checkout: once before payment to
// validate, once after to commit, because stock may move between the two
// under concurrent checkouts.
type Reserver struct {
	products repository.ProductRepository
	logger   zerolog.Logger
}

// NewReserver creates a new inventory reserver.
func NewReserver(products repository.ProductRepository, logger zerolog.Logger) *Reserver {
	return &Reserver{
		products: products,
		logger:   logger.With().Str("component", "inventory").Logger(),
	}
}

// merge collapses duplicate product ids so a product appearing on several
// lines is checked against its combined quantity.
func merge(lines []Line) map[string]int {
	wanted := make(map[string]int, len(lines))
	for _, line := range lines {
		wanted[line.ProductID] += line.Quantity
	}
	return wanted
}

// lockAndCheck locks the product rows in ascending id order and verifies
// stock under lock.
func (r *Reserver) lockAndCheck(ctx context.Context, tx pgx.Tx, lines []Line) (map[string]int, error) {
	wanted := merge(lines)

	ids := make([]string, 0, len(wanted))
	for id := range wanted {
		ids = append(ids, id)
	}

	locked, err := r.products.LockForUpdate(ctx, tx, ids)
	if err != nil {
		return nil, err
	}

	for id, qty := range wanted {
		product, ok := locked[id]
		if !ok {
			return nil, model.ErrInvalidLineItem
		}
		if product.Stock < qty {
			r.logger.Warn().
				Str("product_id", id).
				Int("requested", qty).
				Int("available", product.Stock).
				Msg("insufficient stock")
			return nil, model.ErrInsufficientStock
		}
	}

	return wanted, nil
}

// ReserveAndValidate checks that every line can be satisfied from current
// stock, holding row locks for the duration of the read. It writes nothing.
func (r *Reserver) ReserveAndValidate(ctx context.Context, tx pgx.Tx, lines []Line) error {
	_, err := r.lockAndCheck(ctx, tx, lines)
	return err
}

// CommitDecrement re-validates stock under lock and applies the decrement.
// The pre-payment check result is never assumed to still hold; a product
// exhausted mid-transaction aborts the whole saga.
func (r *Reserver) CommitDecrement(ctx context.Context, tx pgx.Tx, lines []Line) error {
	wanted, err := r.lockAndCheck(ctx, tx, lines)
	if err != nil {
		return err
	}

	// Apply in ascending id order to keep write ordering deterministic.
	ids := make([]string, 0, len(wanted))
	for id := range wanted {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if err := r.products.UpdateStock(ctx, tx, id, wanted[id], model.StockDecrease); err != nil {
			return err
		}
	}

	r.logger.Debug().Int("product_count", len(ids)).Msg("stock decrement committed")

	return nil
}
