package integration

import (
	"context"
	"testing"
	"time"

	"market-checkout/internal/database"
	"market-checkout/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// SetupTestDB starts a PostgreSQL container, applies the full schema and
// returns a connection pool. The container is torn down via t.Cleanup.
func SetupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	pool, err := database.NewPoolFromConnString(ctx, connStr)
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}

	createSchema(t, pool)

	t.Cleanup(func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return pool
}

// createSchema applies the full checkout schema.
func createSchema(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	schema := `
		CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			seller_id TEXT NOT NULL,
			price DECIMAL(12,4) NOT NULL CHECK (price >= 0),
			seller_discount_pct DECIMAL(5,2) NOT NULL DEFAULT 0,
			stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
			category TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS orders (
			id UUID PRIMARY KEY,
			order_number TEXT NOT NULL,
			buyer_id TEXT NOT NULL,
			seller_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			payment_status TEXT NOT NULL,
			payment_id UUID,
			payment_method TEXT NOT NULL DEFAULT '',
			pricing JSONB NOT NULL,
			shipping_address TEXT NOT NULL DEFAULT '',
			billing_address TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS order_items (
			id UUID PRIMARY KEY,
			order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			seller_order_id UUID,
			product_id TEXT NOT NULL,
			seller_id TEXT NOT NULL,
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			unit_price DECIMAL(12,4) NOT NULL,
			original_unit_price DECIMAL(12,4) NOT NULL,
			seller_discount DECIMAL(12,4) NOT NULL,
			volume_discount DECIMAL(12,4) NOT NULL,
			subtotal DECIMAL(12,4) NOT NULL
		);

		CREATE TABLE IF NOT EXISTS seller_orders (
			id UUID PRIMARY KEY,
			order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			seller_id TEXT NOT NULL,
			status TEXT NOT NULL,
			payment_status TEXT NOT NULL,
			subtotal DECIMAL(12,4) NOT NULL,
			discount_share DECIMAL(16,8) NOT NULL,
			shipping_share DECIMAL(16,8) NOT NULL,
			tax_share DECIMAL(16,8) NOT NULL,
			platform_fee DECIMAL(16,8) NOT NULL,
			earnings DECIMAL(16,8) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS carts (
			id UUID PRIMARY KEY,
			user_id TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS cart_items (
			id UUID PRIMARY KEY,
			cart_id UUID NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
			product_id TEXT NOT NULL,
			quantity INTEGER NOT NULL CHECK (quantity > 0)
		);

		CREATE TABLE IF NOT EXISTS coupons (
			code TEXT PRIMARY KEY,
			percentage DECIMAL(5,2) NOT NULL,
			used BOOLEAN NOT NULL DEFAULT FALSE,
			used_by TEXT,
			expires_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS payments (
			id UUID PRIMARY KEY,
			provider_payment_id TEXT NOT NULL,
			order_reference TEXT NOT NULL DEFAULT '',
			buyer_id TEXT NOT NULL,
			amount DECIMAL(12,4) NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL,
			method TEXT NOT NULL DEFAULT '',
			request_items JSONB,
			coupon_code TEXT,
			shipping_address TEXT NOT NULL DEFAULT '',
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id);
		CREATE INDEX IF NOT EXISTS idx_seller_orders_order_id ON seller_orders(order_id);
		CREATE INDEX IF NOT EXISTS idx_payments_provider ON payments(provider_payment_id);

		-- At most one order per payment. Idempotency markers are best effort;
		-- this constraint is what actually stops a concurrent double delivery
		-- from materialising the same payment twice.
		CREATE UNIQUE INDEX IF NOT EXISTS uq_orders_payment_id
			ON orders(payment_id) WHERE payment_id IS NOT NULL;
	`

	if _, err := pool.Exec(ctx, schema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
}

// SeedCatalog inserts the given products.
func SeedCatalog(t *testing.T, pool *pgxpool.Pool, products []model.Product) {
	t.Helper()

	ctx := context.Background()
	query := `
		INSERT INTO products (id, name, seller_id, price, seller_discount_pct, stock, category)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for _, p := range products {
		if _, err := pool.Exec(ctx, query,
			p.ID, p.Name, p.SellerID, p.Price, p.SellerDiscountPct, p.Stock, p.Category); err != nil {
			t.Fatalf("failed to seed product %s: %v", p.ID, err)
		}
	}
}

// SeedCoupon inserts an unused coupon.
func SeedCoupon(t *testing.T, pool *pgxpool.Pool, code string, percentage decimal.Decimal) {
	t.Helper()

	if _, err := pool.Exec(context.Background(),
		"INSERT INTO coupons (code, percentage) VALUES ($1, $2)", code, percentage); err != nil {
		t.Fatalf("failed to seed coupon %s: %v", code, err)
	}
}

// ProductStock reads the current stock level for a product.
func ProductStock(t *testing.T, pool *pgxpool.Pool, productID string) int {
	t.Helper()

	var stock int
	if err := pool.QueryRow(context.Background(),
		"SELECT stock FROM products WHERE id = $1", productID).Scan(&stock); err != nil {
		t.Fatalf("failed to read stock for %s: %v", productID, err)
	}
	return stock
}
