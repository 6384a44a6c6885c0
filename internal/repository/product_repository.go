package repository

import (
	"context"
	"fmt"
	"sort"

	"market-checkout/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// productRepository implements the ProductRepository interface using PostgreSQL.
type productRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool *pgxpool.Pool, logger zerolog.Logger) ProductRepository {
	return &productRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "product").Logger(),
	}
}

const productColumns = "id, name, seller_id, price, seller_discount_pct, stock, category, created_at"

func scanProduct(row pgx.Row, p *model.Product) error {
	return row.Scan(&p.ID, &p.Name, &p.SellerID, &p.Price, &p.SellerDiscountPct, &p.Stock, &p.Category, &p.CreatedAt)
}

// FindByID retrieves a single product by its ID.
func (r *productRepository) FindByID(ctx context.Context, id string) (*model.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1`, productColumns)

	var p model.Product
	err := scanProduct(r.pool.QueryRow(ctx, query, id), &p)
	if err != nil {
		if err == pgx.ErrNoRows {
			r.logger.Debug().Str("product_id", id).Msg("product not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("product_id", id).Msg("failed to query product")
		return nil, fmt.Errorf("failed to query product: %w", err)
	}

	return &p, nil
}

// GetAll retrieves products ordered by creation time, newest first.
func (r *productRepository) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products ORDER BY created_at DESC LIMIT $1 OFFSET $2`, productColumns)

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query products")
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		if err := scanProduct(rows, &p); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan product row")
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating product rows")
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// GetByIDs retrieves multiple products by their IDs.
func (r *productRepository) GetByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	if len(ids) == 0 {
		return []model.Product{}, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = ANY($1) ORDER BY id`, productColumns)

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		r.logger.Error().Err(err).Int("count", len(ids)).Msg("failed to query products by IDs")
		return nil, fmt.Errorf("failed to query products by IDs: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		if err := scanProduct(rows, &p); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan product row")
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating product rows")
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// LockForUpdate acquires row-level exclusive locks on the given products.
// Ids are deduplicated and locked in ascending order so concurrent
// transactions touching overlapping product sets cannot deadlock.
func (r *productRepository) LockForUpdate(ctx context.Context, tx pgx.Tx, ids []string) (map[string]model.Product, error) {
	if len(ids) == 0 {
		return map[string]model.Product{}, nil
	}

	seen := make(map[string]struct{}, len(ids))
	ordered := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)

	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1 FOR UPDATE`, productColumns)

	locked := make(map[string]model.Product, len(ordered))
	for _, id := range ordered {
		var p model.Product
		err := scanProduct(tx.QueryRow(ctx, query, id), &p)
		if err != nil {
			if err == pgx.ErrNoRows {
				r.logger.Warn().Str("product_id", id).Msg("cannot lock unknown product")
				return nil, model.ErrInvalidLineItem
			}
			r.logger.Error().Err(err).Str("product_id", id).Msg("failed to lock product row")
			return nil, fmt.Errorf("failed to lock product %s: %w", id, err)
		}
		locked[id] = p
	}

	r.logger.Debug().Int("count", len(locked)).Msg("product rows locked")

	return locked, nil
}

// UpdateStock applies a stock change within the provided transaction.
// The caller is expected to hold the row lock already.
func (r *productRepository) UpdateStock(ctx context.Context, tx pgx.Tx, id string, qty int, mode model.StockUpdateMode) error {
	var query string
	switch mode {
	case model.StockIncrease:
		query = `UPDATE products SET stock = stock + $2 WHERE id = $1`
	case model.StockDecrease:
		query = `UPDATE products SET stock = stock - $2 WHERE id = $1`
	case model.StockReplace:
		query = `UPDATE products SET stock = $2 WHERE id = $1`
	default:
		return fmt.Errorf("unknown stock update mode: %s", mode)
	}

	tag, err := tx.Exec(ctx, query, id, qty)
	if err != nil {
		r.logger.Error().Err(err).
			Str("product_id", id).
			Int("qty", qty).
			Str("mode", string(mode)).
			Msg("failed to update stock")
		return fmt.Errorf("failed to update stock for %s: %w", id, err)
	}

	if tag.RowsAffected() == 0 {
		r.logger.Warn().Str("product_id", id).Msg("stock update matched no rows")
		return model.ErrProductNotFound
	}

	return nil
}
