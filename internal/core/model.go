package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// DocType identifies a stock-affecting document stream. Purchases and
// purchase returns are the primary streams; sales and sales returns are
// structurally identical and run through the same engine.
type DocType string

const (
	DocTypePurchase       DocType = "purchase"
	DocTypePurchaseReturn DocType = "purchase-return"
	DocTypeSale           DocType = "sale"
	DocTypeSaleReturn     DocType = "sale-return"
)

// Prefix returns the display-number prefix used both as the counter key
// component and in the formatted document number.
func (dt DocType) Prefix() string {
	switch dt {
	case DocTypePurchase:
		return "PUR"
	case DocTypePurchaseReturn:
		return "PR"
	case DocTypeSale:
		return "INV"
	case DocTypeSaleReturn:
		return "SR"
	}
	return ""
}

// StockSign is the per-unit effect a document of this type has on stock:
// a purchase adds to stock, a purchase return removes from it. Sales mirror
// purchases with the opposite sign. Deletion reverses the sign again.
func (dt DocType) StockSign() int64 {
	switch dt {
	case DocTypePurchase, DocTypeSaleReturn:
		return 1
	case DocTypePurchaseReturn, DocTypeSale:
		return -1
	}
	return 0
}

// Valid reports whether dt is one of the known document types.
func (dt DocType) Valid() bool {
	return dt.Prefix() != ""
}

type Tenant struct {
	ID        int       `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Party is a supplier or customer attached to documents. Balance bookkeeping
// beyond this read surface belongs to the party module, not this engine.
type Party struct {
	ID        int             `json:"id"`
	TenantID  int             `json:"tenant_id"`
	Name      string          `json:"name"`
	Address   *string         `json:"address,omitempty"`
	Balance   decimal.Decimal `json:"balance"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
}

type Product struct {
	ID           int             `json:"id"`
	TenantID     int             `json:"tenant_id"`
	Name         string          `json:"name"`
	UnitRate     decimal.Decimal `json:"unit_rate"`
	CurrentStock decimal.Decimal `json:"current_stock"`
	IsActive     bool            `json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
}

// LineItem is one row of a document's item list. ProductID is the preferred
// reference; when it is nil the line is matched to a product by exact name
// within the tenant. Lines that resolve to no product carry no stock effect.
type LineItem struct {
	ProductID   *int            `json:"product_id,omitempty"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitRate    decimal.Decimal `json:"unit_rate"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

// Document is a purchase, purchase return, sale, or sale return.
// AssignedNumber is set exactly once at creation and never reissued, even
// after the document is soft-deleted.
type Document struct {
	ID              int        `json:"id"`
	TenantID        int        `json:"tenant_id"`
	DocType         DocType    `json:"doc_type"`
	AssignedNumber  int64      `json:"assigned_number"`
	FormattedNumber string     `json:"formatted_number"`
	PartyID         *int       `json:"party_id,omitempty"`
	PartyName       *string    `json:"party_name,omitempty"`
	Party           *Party     `json:"party,omitempty"`
	Lines           []LineItem `json:"lines"`
	IsDeleted       bool       `json:"is_deleted"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
}

// Counter is one persisted numbering stream. Seq is the last issued value.
type Counter struct {
	TenantID int    `json:"tenant_id"`
	Prefix   string `json:"prefix"`
	Seq      int64  `json:"seq"`
}

type AdjustmentStatus string

const (
	AdjustmentPending AdjustmentStatus = "PENDING"
	AdjustmentApplied AdjustmentStatus = "APPLIED"
	AdjustmentFailed  AdjustmentStatus = "FAILED"
)

// StockAdjustment is one row of the compensating-action log: an intended
// per-product delta recorded before it is applied to the product row.
type StockAdjustment struct {
	ID         int              `json:"id"`
	TenantID   int              `json:"tenant_id"`
	DocumentID *int             `json:"document_id,omitempty"`
	ProductID  int              `json:"product_id"`
	Delta      decimal.Decimal  `json:"delta"`
	Status     AdjustmentStatus `json:"status"`
	Reason     *string          `json:"reason,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	AppliedAt  *time.Time       `json:"applied_at,omitempty"`
}

// StockLevel is a read view of a product's stock for display.
type StockLevel struct {
	ProductID    int             `json:"product_id"`
	ProductName  string          `json:"product_name"`
	CurrentStock decimal.Decimal `json:"current_stock"`
	UnitRate     decimal.Decimal `json:"unit_rate"`
}
