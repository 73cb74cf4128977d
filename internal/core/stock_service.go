package core

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"billing-backend/internal/logger"
)

// ProductCatalog resolves a product name to its id within a tenant. Implemented
// by ProductService; consumed here for line items that carry no explicit id.
type ProductCatalog interface {
	FindByName(ctx context.Context, tenantID int, name string) (int, error)
}

// ProductRef is a reference to a product from a document line: either an
// explicit id or a name to be matched within the tenant. Refs are resolved
// once, at the start of reconciliation, into canonical ids.
type ProductRef struct {
	ID   *int
	Name string
}

// ApplyResult reports the per-product outcome of applying a delta map.
// Each product's increment is independent; one failure does not roll back
// the others.
type ApplyResult struct {
	Applied map[int]decimal.Decimal
	Failed  map[int]error
}

// StockService computes and applies per-product stock deltas for document
// lifecycle transitions. Stock rows are mutated exclusively through this
// service, one atomic increment per product.
type StockService interface {
	// Reconcile translates a line-item diff into signed per-product deltas.
	// Unresolvable line items are skipped; zero deltas are omitted.
	Reconcile(ctx context.Context, tenantID int, docType DocType, prior, next []LineItem) (map[int]decimal.Decimal, error)

	// Apply performs one atomic increment per product, continuing past
	// individual failures. When some products fail it returns the partial
	// result alongside a *PartialApplicationError.
	Apply(ctx context.Context, tenantID int, documentID *int, deltas map[int]decimal.Decimal) (*ApplyResult, error)

	// ApplyTx applies the delta map inside the caller's transaction,
	// failing fast so the caller can roll everything back.
	ApplyTx(ctx context.Context, tx pgx.Tx, tenantID int, documentID *int, deltas map[int]decimal.Decimal) error

	// RecoverPending re-drives adjustments left PENDING or FAILED by an
	// interrupted apply, returning how many were settled.
	RecoverPending(ctx context.Context, tenantID int) (int, error)

	// ListAdjustments returns the adjustment log for a document, newest first.
	ListAdjustments(ctx context.Context, tenantID, documentID int) ([]StockAdjustment, error)
}

type stockService struct {
	pool    *pgxpool.Pool
	catalog ProductCatalog
}

// NewStockService constructs a StockService backed by PostgreSQL.
func NewStockService(pool *pgxpool.Pool, catalog ProductCatalog) StockService {
	return &stockService{pool: pool, catalog: catalog}
}

// pgExecutor is satisfied by both *pgxpool.Pool and pgx.Tx, letting the
// apply loop run standalone or inside a caller's transaction.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *stockService) Reconcile(ctx context.Context, tenantID int, docType DocType, prior, next []LineItem) (map[int]decimal.Decimal, error) {
	if !docType.Valid() {
		return nil, NewInputError("doc_type", fmt.Sprintf("unknown document type %q", docType))
	}
	priorQty, err := s.aggregate(ctx, tenantID, prior)
	if err != nil {
		return nil, fmt.Errorf("aggregate prior items: %w", err)
	}
	nextQty, err := s.aggregate(ctx, tenantID, next)
	if err != nil {
		return nil, fmt.Errorf("aggregate new items: %w", err)
	}
	return diffDeltas(docType.StockSign(), priorQty, nextQty), nil
}

// aggregate resolves each line's product ref and sums quantities per
// resolved product. Lines with no id and no matching name are skipped:
// not every line item maps to tracked inventory.
func (s *stockService) aggregate(ctx context.Context, tenantID int, items []LineItem) (map[int]decimal.Decimal, error) {
	totals := make(map[int]decimal.Decimal, len(items))
	for _, item := range items {
		id, ok, err := s.resolveRef(ctx, tenantID, ProductRef{ID: item.ProductID, Name: item.ProductName})
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		totals[id] = totals[id].Add(item.Quantity)
	}
	return totals, nil
}

func (s *stockService) resolveRef(ctx context.Context, tenantID int, ref ProductRef) (int, bool, error) {
	if ref.ID != nil {
		return *ref.ID, true, nil
	}
	if ref.Name == "" {
		return 0, false, nil
	}
	id, err := s.catalog.FindByName(ctx, tenantID, ref.Name)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("resolve product %q: %w", ref.Name, err)
	}
	return id, true, nil
}

// diffDeltas computes sign × (next − prior) per product, dropping zero
// entries so no-op writes never reach the store.
func diffDeltas(sign int64, prior, next map[int]decimal.Decimal) map[int]decimal.Decimal {
	deltas := make(map[int]decimal.Decimal)
	signed := decimal.NewFromInt(sign)
	for id, qty := range next {
		d := qty.Sub(prior[id]).Mul(signed)
		if !d.IsZero() {
			deltas[id] = d
		}
	}
	for id, qty := range prior {
		if _, seen := next[id]; seen {
			continue
		}
		d := qty.Neg().Mul(signed)
		if !d.IsZero() {
			deltas[id] = d
		}
	}
	return deltas
}

func (s *stockService) Apply(ctx context.Context, tenantID int, documentID *int, deltas map[int]decimal.Decimal) (*ApplyResult, error) {
	result := &ApplyResult{
		Applied: make(map[int]decimal.Decimal, len(deltas)),
		Failed:  make(map[int]error),
	}
	for _, productID := range sortedKeys(deltas) {
		delta := deltas[productID]
		if err := s.applyOne(ctx, s.pool, tenantID, documentID, productID, delta); err != nil {
			result.Failed[productID] = err
			continue
		}
		result.Applied[productID] = delta
	}
	if len(result.Failed) > 0 {
		partial := &PartialApplicationError{Applied: sortedKeys(result.Applied), Failed: result.Failed}
		stockLog := logger.WithComponent("stock")
		stockLog.Error().
			Int("tenant_id", tenantID).
			Ints("unapplied_products", partial.FailedProducts()).
			Int("applied", len(result.Applied)).
			Msg("stock deltas partially applied")
		return result, partial
	}
	return result, nil
}

func (s *stockService) ApplyTx(ctx context.Context, tx pgx.Tx, tenantID int, documentID *int, deltas map[int]decimal.Decimal) error {
	for _, productID := range sortedKeys(deltas) {
		if err := s.applyOne(ctx, tx, tenantID, documentID, productID, deltas[productID]); err != nil {
			return fmt.Errorf("apply stock delta for product %d: %w", productID, err)
		}
	}
	return nil
}

// applyOne records the intended delta in the adjustment log, performs the
// atomic increment on the product row, and marks the log row APPLIED. A
// failed increment is marked FAILED with its reason so a recovery pass can
// find it later.
func (s *stockService) applyOne(ctx context.Context, db pgExecutor, tenantID int, documentID *int, productID int, delta decimal.Decimal) error {
	var adjustmentID int
	err := db.QueryRow(ctx, `
		INSERT INTO stock_adjustments (tenant_id, document_id, product_id, delta, status)
		VALUES ($1, $2, $3, $4, 'PENDING')
		RETURNING id`,
		tenantID, documentID, productID, delta,
	).Scan(&adjustmentID)
	if err != nil {
		return fmt.Errorf("record stock adjustment: %w", err)
	}

	tag, err := db.Exec(ctx, `
		UPDATE products
		SET current_stock = current_stock + $1
		WHERE tenant_id = $2 AND id = $3`,
		delta, tenantID, productID,
	)
	if err == nil && tag.RowsAffected() == 0 {
		err = NewNotFoundError("product", productID)
	}
	if err != nil {
		_, _ = db.Exec(ctx, `
			UPDATE stock_adjustments SET status = 'FAILED', reason = $1 WHERE id = $2`,
			err.Error(), adjustmentID,
		)
		return err
	}

	if _, err := db.Exec(ctx, `
		UPDATE stock_adjustments SET status = 'APPLIED', applied_at = NOW() WHERE id = $1`,
		adjustmentID,
	); err != nil {
		return fmt.Errorf("mark stock adjustment applied: %w", err)
	}
	return nil
}

func (s *stockService) RecoverPending(ctx context.Context, tenantID int) (int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, product_id, delta
		FROM stock_adjustments
		WHERE tenant_id = $1 AND status IN ('PENDING', 'FAILED')
		ORDER BY id`,
		tenantID,
	)
	if err != nil {
		return 0, fmt.Errorf("fetch unsettled adjustments: %w", err)
	}
	type pending struct {
		id        int
		productID int
		delta     decimal.Decimal
	}
	var todo []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.productID, &p.delta); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan unsettled adjustment: %w", err)
		}
		todo = append(todo, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate unsettled adjustments: %w", err)
	}

	recovered := 0
	for _, p := range todo {
		tag, err := s.pool.Exec(ctx, `
			UPDATE products
			SET current_stock = current_stock + $1
			WHERE tenant_id = $2 AND id = $3`,
			p.delta, tenantID, p.productID,
		)
		if err != nil || tag.RowsAffected() == 0 {
			continue
		}
		if _, err := s.pool.Exec(ctx, `
			UPDATE stock_adjustments SET status = 'APPLIED', applied_at = NOW() WHERE id = $1`,
			p.id,
		); err != nil {
			return recovered, fmt.Errorf("settle adjustment %d: %w", p.id, err)
		}
		recovered++
	}
	if recovered > 0 {
		stockLog := logger.WithComponent("stock")
		stockLog.Info().
			Int("tenant_id", tenantID).
			Int("recovered", recovered).
			Msg("replayed unsettled stock adjustments")
	}
	return recovered, nil
}

func (s *stockService) ListAdjustments(ctx context.Context, tenantID, documentID int) ([]StockAdjustment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, document_id, product_id, delta, status, reason, created_at, applied_at
		FROM stock_adjustments
		WHERE tenant_id = $1 AND document_id = $2
		ORDER BY id DESC`,
		tenantID, documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list stock adjustments: %w", err)
	}
	defer rows.Close()

	var adjustments []StockAdjustment
	for rows.Next() {
		var a StockAdjustment
		if err := rows.Scan(
			&a.ID, &a.TenantID, &a.DocumentID, &a.ProductID, &a.Delta,
			&a.Status, &a.Reason, &a.CreatedAt, &a.AppliedAt,
		); err != nil {
			return nil, fmt.Errorf("scan stock adjustment: %w", err)
		}
		adjustments = append(adjustments, a)
	}
	return adjustments, nil
}

func sortedKeys(m map[int]decimal.Decimal) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
