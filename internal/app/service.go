package app

import (
	"context"

	"billing-backend/internal/core"
)

// ApplicationService is the single interface the controller layer calls.
// It resolves tenant codes to ids, validates request payloads, and delegates
// to the engine services; it contains no presentation logic.
type ApplicationService interface {
	// CreateTenant registers a new tenant (business).
	CreateTenant(ctx context.Context, req CreateTenantRequest) (*core.Tenant, error)

	// CreateParty creates a supplier/customer record for a tenant.
	CreateParty(ctx context.Context, req CreatePartyRequest) (*core.Party, error)

	// ListParties returns the tenant's active parties.
	ListParties(ctx context.Context, tenantCode string) ([]core.Party, error)

	// CreateProduct creates a tracked product for a tenant.
	CreateProduct(ctx context.Context, req CreateProductRequest) (*core.Product, error)

	// GetStockLevels returns current stock for all of the tenant's products.
	GetStockLevels(ctx context.Context, tenantCode string) ([]core.StockLevel, error)

	// CreateDocument creates a purchase/return document, assigning its number
	// and adjusting stock.
	CreateDocument(ctx context.Context, req CreateDocumentRequest) (*core.Document, error)

	// UpdateDocument replaces a document's line items and party, applying the
	// stock delta relative to the stored state.
	UpdateDocument(ctx context.Context, req UpdateDocumentRequest) (*core.Document, error)

	// DeleteDocument soft-deletes a document and reverses its stock effect.
	// Idempotent: deleting twice succeeds with no further effect.
	DeleteDocument(ctx context.Context, tenantCode string, documentID int) (*DeleteResult, error)

	// PeekNextNumber previews the next document number without consuming it.
	PeekNextNumber(ctx context.Context, tenantCode string, docType core.DocType) (*core.NumberPreview, error)

	// GetDocument returns a document with lines and party enrichment.
	GetDocument(ctx context.Context, tenantCode string, documentID int) (*core.Document, error)

	// ListDocuments returns the tenant's active documents, optionally
	// filtered by type.
	ListDocuments(ctx context.Context, tenantCode string, docType core.DocType) ([]core.Document, error)

	// RecoverStockAdjustments replays stock adjustments left unsettled by an
	// interrupted apply.
	RecoverStockAdjustments(ctx context.Context, tenantCode string) (*RecoverResult, error)
}
