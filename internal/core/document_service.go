package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DocumentInput is the payload for creating or updating a document. The item
// list always replaces the stored one wholesale. AssignedNumber must be left
// unset: numbers are issued by the engine and immutable afterwards.
type DocumentInput struct {
	PartyID        *int
	AssignedNumber *int64
	Items          []LineItem
}

// NumberPreview is the advisory result of PeekNextNumber. It may be stale by
// the time a document is actually created.
type NumberPreview struct {
	Seq       int64  `json:"seq"`
	Formatted string `json:"formatted"`
}

// DocumentService coordinates the document lifecycle: number allocation on
// create, stock delta reconciliation on every transition, and soft deletion.
// A document moves from active to deleted exactly once and never back.
type DocumentService interface {
	CreateDocument(ctx context.Context, tenantID int, docType DocType, input DocumentInput) (*Document, error)
	UpdateDocument(ctx context.Context, tenantID, documentID int, input DocumentInput) (*Document, error)
	DeleteDocument(ctx context.Context, tenantID, documentID int) error
	PeekNextNumber(ctx context.Context, tenantID int, docType DocType) (*NumberPreview, error)
	GetDocument(ctx context.Context, tenantID, documentID int) (*Document, error)
	ListDocuments(ctx context.Context, tenantID int, docType DocType) ([]Document, error)
}

type documentService struct {
	pool     *pgxpool.Pool
	sequence SequenceService
	stock    StockService
	parties  PartyService
}

// NewDocumentService constructs the lifecycle coordinator.
func NewDocumentService(pool *pgxpool.Pool, sequence SequenceService, stock StockService, parties PartyService) DocumentService {
	return &documentService{pool: pool, sequence: sequence, stock: stock, parties: parties}
}

// CreateDocument allocates the next number for the document's stream,
// persists the document with its line items, and applies the resulting stock
// deltas. The number is consumed permanently even if a later step fails;
// document and stock land atomically in one transaction.
func (s *documentService) CreateDocument(ctx context.Context, tenantID int, docType DocType, input DocumentInput) (*Document, error) {
	if !docType.Valid() {
		return nil, NewInputError("doc_type", fmt.Sprintf("unknown document type %q", docType))
	}
	if input.AssignedNumber != nil {
		return nil, NewInputError("assigned_number", "document numbers are issued by the system")
	}
	party, err := s.requireParty(ctx, tenantID, input.PartyID)
	if err != nil {
		return nil, err
	}
	if err := validateItems(input.Items); err != nil {
		return nil, err
	}

	seq, err := s.sequence.Allocate(ctx, tenantID, docType.Prefix())
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	deltas, err := s.stock.Reconcile(ctx, tenantID, docType, nil, input.Items)
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var docID int
	if err := tx.QueryRow(ctx, `
		INSERT INTO documents (tenant_id, doc_type, assigned_number, formatted_number, party_id, party_name)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		tenantID, string(docType), seq, FormatNumber(docType.Prefix(), seq), party.ID, party.Name,
	).Scan(&docID); err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}

	if err := insertLines(ctx, tx, docID, input.Items); err != nil {
		return nil, err
	}
	if err := s.stock.ApplyTx(ctx, tx, tenantID, &docID, deltas); err != nil {
		return nil, fmt.Errorf("apply stock for new document: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit document create: %w", err)
	}
	return s.GetDocument(ctx, tenantID, docID)
}

// UpdateDocument replaces the document's line items wholesale, applying the
// delta between the stored items and the new ones. The stored state at this
// moment — not the creation state — is the baseline, so repeated updates
// stay additive.
func (s *documentService) UpdateDocument(ctx context.Context, tenantID, documentID int, input DocumentInput) (*Document, error) {
	if err := validateItems(input.Items); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var docType DocType
	var assigned int64
	err = tx.QueryRow(ctx, `
		SELECT doc_type, assigned_number
		FROM documents
		WHERE tenant_id = $1 AND id = $2 AND NOT is_deleted
		FOR UPDATE`,
		tenantID, documentID,
	).Scan(&docType, &assigned)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewNotFoundError("document", documentID)
	}
	if err != nil {
		return nil, fmt.Errorf("load document %d: %w", documentID, err)
	}

	if input.AssignedNumber != nil && *input.AssignedNumber != assigned {
		return nil, NewInputError("assigned_number", "assigned number is immutable")
	}

	party, err := s.requireParty(ctx, tenantID, input.PartyID)
	if err != nil {
		return nil, err
	}

	prior, err := fetchLines(ctx, tx, documentID)
	if err != nil {
		return nil, err
	}
	deltas, err := s.stock.Reconcile(ctx, tenantID, docType, prior, input.Items)
	if err != nil {
		return nil, fmt.Errorf("update document %d: %w", documentID, err)
	}

	// Stock first, then the item list, matching the recovery story: a stored
	// vs stored re-run of reconcile yields zero deltas once both are in.
	if err := s.stock.ApplyTx(ctx, tx, tenantID, &documentID, deltas); err != nil {
		return nil, fmt.Errorf("apply stock for document %d: %w", documentID, err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM document_lines WHERE document_id = $1", documentID); err != nil {
		return nil, fmt.Errorf("clear document lines: %w", err)
	}
	if err := insertLines(ctx, tx, documentID, input.Items); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE documents
		SET party_id = $1, party_name = $2, updated_at = NOW()
		WHERE id = $3`,
		party.ID, party.Name, documentID,
	); err != nil {
		return nil, fmt.Errorf("update document %d: %w", documentID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit document update: %w", err)
	}
	return s.GetDocument(ctx, tenantID, documentID)
}

// DeleteDocument soft-deletes the document and reverses its full remaining
// stock effect. Deleting an already-deleted document is a no-op success; the
// consumed number is never reissued.
func (s *documentService) DeleteDocument(ctx context.Context, tenantID, documentID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var docType DocType
	var isDeleted bool
	err = tx.QueryRow(ctx, `
		SELECT doc_type, is_deleted
		FROM documents
		WHERE tenant_id = $1 AND id = $2
		FOR UPDATE`,
		tenantID, documentID,
	).Scan(&docType, &isDeleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFoundError("document", documentID)
	}
	if err != nil {
		return fmt.Errorf("load document %d: %w", documentID, err)
	}
	if isDeleted {
		return nil
	}

	prior, err := fetchLines(ctx, tx, documentID)
	if err != nil {
		return err
	}
	deltas, err := s.stock.Reconcile(ctx, tenantID, docType, prior, nil)
	if err != nil {
		return fmt.Errorf("delete document %d: %w", documentID, err)
	}
	if err := s.stock.ApplyTx(ctx, tx, tenantID, &documentID, deltas); err != nil {
		return fmt.Errorf("reverse stock for document %d: %w", documentID, err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE documents SET is_deleted = true, deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1`,
		documentID,
	); err != nil {
		return fmt.Errorf("mark document %d deleted: %w", documentID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit document delete: %w", err)
	}
	return nil
}

func (s *documentService) PeekNextNumber(ctx context.Context, tenantID int, docType DocType) (*NumberPreview, error) {
	if !docType.Valid() {
		return nil, NewInputError("doc_type", fmt.Sprintf("unknown document type %q", docType))
	}
	seq, err := s.sequence.PeekNext(ctx, tenantID, docType.Prefix())
	if err != nil {
		return nil, err
	}
	return &NumberPreview{Seq: seq, Formatted: FormatNumber(docType.Prefix(), seq)}, nil
}

func (s *documentService) GetDocument(ctx context.Context, tenantID, documentID int) (*Document, error) {
	doc := &Document{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, doc_type, assigned_number, formatted_number,
		       party_id, party_name, is_deleted, created_at, updated_at, deleted_at
		FROM documents
		WHERE tenant_id = $1 AND id = $2`,
		tenantID, documentID,
	).Scan(
		&doc.ID, &doc.TenantID, &doc.DocType, &doc.AssignedNumber, &doc.FormattedNumber,
		&doc.PartyID, &doc.PartyName, &doc.IsDeleted, &doc.CreatedAt, &doc.UpdatedAt, &doc.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewNotFoundError("document", documentID)
	}
	if err != nil {
		return nil, fmt.Errorf("get document %d: %w", documentID, err)
	}

	lines, err := fetchLines(ctx, s.pool, documentID)
	if err != nil {
		return nil, err
	}
	doc.Lines = lines

	if doc.PartyID != nil {
		party, err := s.parties.Resolve(ctx, tenantID, *doc.PartyID)
		if err == nil {
			doc.Party = party
		} else {
			var nf *NotFoundError
			if !errors.As(err, &nf) {
				return nil, err
			}
		}
	}
	return doc, nil
}

func (s *documentService) ListDocuments(ctx context.Context, tenantID int, docType DocType) ([]Document, error) {
	query := `
		SELECT id, tenant_id, doc_type, assigned_number, formatted_number,
		       party_id, party_name, is_deleted, created_at, updated_at, deleted_at
		FROM documents
		WHERE tenant_id = $1 AND NOT is_deleted`
	args := []any{tenantID}
	if docType != "" {
		query += " AND doc_type = $2"
		args = append(args, string(docType))
	}
	query += " ORDER BY assigned_number DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(
			&doc.ID, &doc.TenantID, &doc.DocType, &doc.AssignedNumber, &doc.FormattedNumber,
			&doc.PartyID, &doc.PartyName, &doc.IsDeleted, &doc.CreatedAt, &doc.UpdatedAt, &doc.DeletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// requireParty resolves the document's party, mapping a missing or foreign
// party to InputError: these documents always name a counterparty.
func (s *documentService) requireParty(ctx context.Context, tenantID int, partyID *int) (*Party, error) {
	if partyID == nil {
		return nil, NewInputError("party_id", "a party is required")
	}
	party, err := s.parties.Resolve(ctx, tenantID, *partyID)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return nil, NewInputError("party_id", nf.Error())
		}
		return nil, err
	}
	return party, nil
}

func validateItems(items []LineItem) error {
	for i, item := range items {
		if !item.Quantity.IsPositive() {
			return NewInputError(fmt.Sprintf("items[%d].quantity", i), "quantity must be positive")
		}
		if item.UnitRate.IsNegative() {
			return NewInputError(fmt.Sprintf("items[%d].unit_rate", i), "unit rate cannot be negative")
		}
	}
	return nil
}

func insertLines(ctx context.Context, tx pgx.Tx, documentID int, items []LineItem) error {
	for i, item := range items {
		var name *string
		if item.ProductName != "" {
			n := item.ProductName
			name = &n
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO document_lines (document_id, line_number, product_id, product_name, quantity, unit_rate, tax_rate)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			documentID, i+1, item.ProductID, name, item.Quantity, item.UnitRate, item.TaxRate,
		); err != nil {
			return fmt.Errorf("insert document line %d: %w", i+1, err)
		}
	}
	return nil
}

// fetchLines loads a document's line items in stored order. Works against
// the pool or an open transaction.
func fetchLines(ctx context.Context, db pgExecutor, documentID int) ([]LineItem, error) {
	rows, err := db.Query(ctx, `
		SELECT product_id, product_name, quantity, unit_rate, tax_rate
		FROM document_lines
		WHERE document_id = $1
		ORDER BY line_number`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch document lines: %w", err)
	}
	defer rows.Close()

	var lines []LineItem
	for rows.Next() {
		var item LineItem
		var name *string
		if err := rows.Scan(&item.ProductID, &name, &item.Quantity, &item.UnitRate, &item.TaxRate); err != nil {
			return nil, fmt.Errorf("scan document line: %w", err)
		}
		if name != nil {
			item.ProductName = *name
		}
		lines = append(lines, item)
	}
	return lines, nil
}
