package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PartyService resolves and manages the suppliers/customers documents point
// at. The engine consumes Resolve for denormalised enrichment; it never
// writes party balances.
type PartyService interface {
	Resolve(ctx context.Context, tenantID, partyID int) (*Party, error)
	CreateParty(ctx context.Context, tenantID int, name, address string) (*Party, error)
	ListParties(ctx context.Context, tenantID int) ([]Party, error)
}

type partyService struct {
	pool *pgxpool.Pool
}

// NewPartyService constructs a PartyService backed by PostgreSQL.
func NewPartyService(pool *pgxpool.Pool) PartyService {
	return &partyService{pool: pool}
}

// Resolve returns the party's denormalised view. A party that does not exist
// or belongs to another tenant surfaces as NotFoundError.
func (s *partyService) Resolve(ctx context.Context, tenantID, partyID int) (*Party, error) {
	p := &Party{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, address, balance, is_active, created_at
		FROM parties
		WHERE tenant_id = $1 AND id = $2 AND is_active = true`,
		tenantID, partyID,
	).Scan(&p.ID, &p.TenantID, &p.Name, &p.Address, &p.Balance, &p.IsActive, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewNotFoundError("party", partyID)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve party %d: %w", partyID, err)
	}
	return p, nil
}

func (s *partyService) CreateParty(ctx context.Context, tenantID int, name, address string) (*Party, error) {
	if name == "" {
		return nil, NewInputError("name", "party name is required")
	}
	var addr *string
	if address != "" {
		addr = &address
	}
	p := &Party{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO parties (tenant_id, name, address)
		VALUES ($1, $2, $3)
		RETURNING id, tenant_id, name, address, balance, is_active, created_at`,
		tenantID, name, addr,
	).Scan(&p.ID, &p.TenantID, &p.Name, &p.Address, &p.Balance, &p.IsActive, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create party %q: %w", name, err)
	}
	return p, nil
}

func (s *partyService) ListParties(ctx context.Context, tenantID int) ([]Party, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, name, address, balance, is_active, created_at
		FROM parties
		WHERE tenant_id = $1 AND is_active = true
		ORDER BY name`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list parties: %w", err)
	}
	defer rows.Close()

	var parties []Party
	for rows.Next() {
		var p Party
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.Address, &p.Balance, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan party: %w", err)
		}
		parties = append(parties, p)
	}
	return parties, nil
}
