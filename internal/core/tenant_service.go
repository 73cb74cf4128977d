package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TenantService is the thin onboarding shim. Counters, stock, and documents
// are all scoped by the tenant id it hands out.
type TenantService interface {
	CreateTenant(ctx context.Context, code, name string) (*Tenant, error)
	GetTenantByCode(ctx context.Context, code string) (*Tenant, error)
}

type tenantService struct {
	pool *pgxpool.Pool
}

func NewTenantService(pool *pgxpool.Pool) TenantService {
	return &tenantService{pool: pool}
}

func (s *tenantService) CreateTenant(ctx context.Context, code, name string) (*Tenant, error) {
	if code == "" || name == "" {
		return nil, NewInputError("code", "tenant code and name are required")
	}
	t := &Tenant{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO tenants (code, name)
		VALUES ($1, $2)
		RETURNING id, code, name, created_at`,
		code, name,
	).Scan(&t.ID, &t.Code, &t.Name, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create tenant %q: %w", code, err)
	}
	return t, nil
}

func (s *tenantService) GetTenantByCode(ctx context.Context, code string) (*Tenant, error) {
	t := &Tenant{}
	err := s.pool.QueryRow(ctx,
		"SELECT id, code, name, created_at FROM tenants WHERE code = $1",
		code,
	).Scan(&t.ID, &t.Code, &t.Name, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewNotFoundError("tenant", code)
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant %q: %w", code, err)
	}
	return t, nil
}
