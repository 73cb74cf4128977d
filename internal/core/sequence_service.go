package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"billing-backend/internal/logger"
)

// compoundConstraint is the unique key the allocator relies on. Early
// deployments shipped a single-column unique index on prefix alone, which
// breaks allocation as soon as a second tenant uses the same prefix.
const compoundConstraint = "counters_tenant_prefix_key"

// SequenceService issues unique, monotonically increasing document numbers
// per (tenant, prefix) stream. Allocation is a single atomic upsert, so two
// concurrent callers can never receive the same value. Numbering is not
// gap-free: a number stays consumed even if the caller's downstream step
// fails afterwards.
type SequenceService interface {
	// Allocate returns the next sequence value for the stream, creating the
	// counter row lazily on first use.
	Allocate(ctx context.Context, tenantID int, prefix string) (int64, error)
	// PeekNext returns the value the next Allocate would produce. It never
	// mutates state and may be stale by the time Allocate is actually called.
	PeekNext(ctx context.Context, tenantID int, prefix string) (int64, error)
}

type sequenceService struct {
	pool *pgxpool.Pool
}

// NewSequenceService constructs a SequenceService backed by PostgreSQL.
func NewSequenceService(pool *pgxpool.Pool) SequenceService {
	return &sequenceService{pool: pool}
}

// FormatNumber renders a sequence value as a display number, e.g. PUR-00042.
func FormatNumber(prefix string, seq int64) string {
	return fmt.Sprintf("%s-%05d", prefix, seq)
}

func (s *sequenceService) Allocate(ctx context.Context, tenantID int, prefix string) (int64, error) {
	seq, err := s.allocateOnce(ctx, tenantID, prefix)
	if err == nil {
		return seq, nil
	}
	if !isLegacyIndexFailure(err) {
		return 0, fmt.Errorf("allocate sequence for tenant %d prefix %q: %w", tenantID, prefix, err)
	}

	// Legacy index signature: repair the schema and retry exactly once.
	seqLog := logger.WithComponent("sequence")
	seqLog.Warn().
		Int("tenant_id", tenantID).
		Str("prefix", prefix).
		Err(err).
		Msg("counter allocation hit legacy index, repairing")

	if repairErr := s.repairCounterIndex(ctx); repairErr != nil {
		return 0, &ConflictError{TenantID: tenantID, Prefix: prefix,
			Cause: fmt.Errorf("index repair: %w", repairErr)}
	}
	seq, err = s.allocateOnce(ctx, tenantID, prefix)
	if err != nil {
		return 0, &ConflictError{TenantID: tenantID, Prefix: prefix, Cause: err}
	}
	return seq, nil
}

// allocateOnce performs the atomic increment-and-fetch, create-if-absent.
// A read-then-write pattern would race; the upsert keeps uniqueness entirely
// inside the database.
func (s *sequenceService) allocateOnce(ctx context.Context, tenantID int, prefix string) (int64, error) {
	var seq int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO counters (tenant_id, prefix, seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (tenant_id, prefix)
		DO UPDATE SET seq = counters.seq + 1
		RETURNING seq`,
		tenantID, prefix,
	).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (s *sequenceService) PeekNext(ctx context.Context, tenantID int, prefix string) (int64, error) {
	var last int64
	err := s.pool.QueryRow(ctx,
		"SELECT seq FROM counters WHERE tenant_id = $1 AND prefix = $2",
		tenantID, prefix,
	).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("peek sequence for tenant %d prefix %q: %w", tenantID, prefix, err)
	}
	return last + 1, nil
}

// isLegacyIndexFailure recognises the two ways an outdated counters schema
// surfaces: a unique violation attributed to an index other than the compound
// key, or the upsert's ON CONFLICT target not matching any unique index at
// all (42P10). Anything else is not repairable here.
func isLegacyIndexFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return pgErr.ConstraintName != "" && pgErr.ConstraintName != compoundConstraint
	case pgerrcode.InvalidColumnReference:
		return true
	}
	return false
}

// repairCounterIndex drops the incompatible single-column index and ensures
// the compound unique index on (tenant_id, prefix). This is the one-shot
// self-healing path for schemas that predate per-tenant numbering; it is not
// a general retry policy.
func (s *sequenceService) repairCounterIndex(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `
		ALTER TABLE counters DROP CONSTRAINT IF EXISTS counters_prefix_key`); err != nil {
		return fmt.Errorf("drop legacy constraint: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `DROP INDEX IF EXISTS counters_prefix_key`); err != nil {
		return fmt.Errorf("drop legacy index: %w", err)
	}
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(
		`CREATE UNIQUE INDEX IF NOT EXISTS %s ON counters (tenant_id, prefix)`,
		compoundConstraint,
	)); err != nil {
		return fmt.Errorf("create compound index: %w", err)
	}
	return nil
}
