package core_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"billing-backend/internal/db"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	// Set TEST_DATABASE_URL in your .env or environment to run integration tests.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := db.NewPoolFromURL(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// Clean and seed test DB. Two tenants sharing a product name exercise the
	// per-tenant scoping everywhere.
	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE stock_adjustments, document_lines, documents, counters, products, parties, tenants RESTART IDENTITY CASCADE;

		INSERT INTO tenants (id, code, name) VALUES
		(1, 'acme', 'Acme Traders'),
		(2, 'globex', 'Globex Distribution');

		INSERT INTO parties (id, tenant_id, name, address) VALUES
		(1, 1, 'Apex Supplies', 'Unit 4, Industrial Estate'),
		(2, 2, 'Northside Wholesale', NULL);

		INSERT INTO products (id, tenant_id, name, unit_rate, current_stock) VALUES
		(1, 1, 'Steel Rod', 120.00, 0),
		(2, 1, 'Copper Wire', 340.50, 0),
		(3, 2, 'Steel Rod', 118.00, 0);
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}
