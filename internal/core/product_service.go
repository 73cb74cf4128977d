package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ProductService owns the product catalog. It implements ProductCatalog for
// the reconciler's by-name lookups. current_stock on the product row is
// written only through StockService.
type ProductService interface {
	ProductCatalog
	CreateProduct(ctx context.Context, tenantID int, name string, unitRate decimal.Decimal) (*Product, error)
	GetProduct(ctx context.Context, tenantID, productID int) (*Product, error)
	GetStockLevels(ctx context.Context, tenantID int) ([]StockLevel, error)
}

type productService struct {
	pool *pgxpool.Pool
}

// NewProductService constructs a ProductService backed by PostgreSQL.
func NewProductService(pool *pgxpool.Pool) ProductService {
	return &productService{pool: pool}
}

// FindByName resolves an exact product name within the tenant.
func (s *productService) FindByName(ctx context.Context, tenantID int, name string) (int, error) {
	var id int
	err := s.pool.QueryRow(ctx,
		"SELECT id FROM products WHERE tenant_id = $1 AND name = $2 AND is_active = true",
		tenantID, name,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, NewNotFoundError("product", name)
	}
	if err != nil {
		return 0, fmt.Errorf("find product by name %q: %w", name, err)
	}
	return id, nil
}

func (s *productService) CreateProduct(ctx context.Context, tenantID int, name string, unitRate decimal.Decimal) (*Product, error) {
	if name == "" {
		return nil, NewInputError("name", "product name is required")
	}
	p := &Product{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO products (tenant_id, name, unit_rate)
		VALUES ($1, $2, $3)
		RETURNING id, tenant_id, name, unit_rate, current_stock, is_active, created_at`,
		tenantID, name, unitRate,
	).Scan(&p.ID, &p.TenantID, &p.Name, &p.UnitRate, &p.CurrentStock, &p.IsActive, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create product %q: %w", name, err)
	}
	return p, nil
}

func (s *productService) GetProduct(ctx context.Context, tenantID, productID int) (*Product, error) {
	p := &Product{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, unit_rate, current_stock, is_active, created_at
		FROM products
		WHERE tenant_id = $1 AND id = $2`,
		tenantID, productID,
	).Scan(&p.ID, &p.TenantID, &p.Name, &p.UnitRate, &p.CurrentStock, &p.IsActive, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewNotFoundError("product", productID)
	}
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", productID, err)
	}
	return p, nil
}

func (s *productService) GetStockLevels(ctx context.Context, tenantID int) ([]StockLevel, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, current_stock, unit_rate
		FROM products
		WHERE tenant_id = $1 AND is_active = true
		ORDER BY name`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("query stock levels: %w", err)
	}
	defer rows.Close()

	var levels []StockLevel
	for rows.Next() {
		var sl StockLevel
		if err := rows.Scan(&sl.ProductID, &sl.ProductName, &sl.CurrentStock, &sl.UnitRate); err != nil {
			return nil, fmt.Errorf("scan stock level: %w", err)
		}
		levels = append(levels, sl)
	}
	return levels, nil
}
