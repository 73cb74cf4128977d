package app

import (
	"github.com/shopspring/decimal"
)

// CreateTenantRequest registers a new tenant.
type CreateTenantRequest struct {
	Code string `json:"code" validate:"required,alphanum,max=16"`
	Name string `json:"name" validate:"required,max=128"`
}

// CreatePartyRequest creates a supplier/customer for a tenant.
type CreatePartyRequest struct {
	TenantCode string `json:"tenant_code" validate:"required"`
	Name       string `json:"name" validate:"required,max=128"`
	Address    string `json:"address" validate:"max=512"`
}

// CreateProductRequest creates a tracked product.
type CreateProductRequest struct {
	TenantCode string          `json:"tenant_code" validate:"required"`
	Name       string          `json:"name" validate:"required,max=128"`
	UnitRate   decimal.Decimal `json:"unit_rate"`
}

// DocumentLineRequest is one line of a document payload. Either product_id
// or product_name identifies the product; lines matching neither are stored
// but carry no stock effect.
type DocumentLineRequest struct {
	ProductID   *int            `json:"product_id"`
	ProductName string          `json:"product_name" validate:"max=128"`
	Quantity    decimal.Decimal `json:"quantity" validate:"required"`
	UnitRate    decimal.Decimal `json:"unit_rate"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

// CreateDocumentRequest creates a new stock-affecting document.
type CreateDocumentRequest struct {
	TenantCode string                `json:"tenant_code" validate:"required"`
	DocType    string                `json:"doc_type" validate:"required,oneof=purchase purchase-return sale sale-return"`
	PartyID    *int                  `json:"party_id" validate:"required"`
	Items      []DocumentLineRequest `json:"items" validate:"dive"`
}

// UpdateDocumentRequest replaces a document's items wholesale. Any attempt
// to set assigned_number to a different value is rejected.
type UpdateDocumentRequest struct {
	TenantCode     string                `json:"tenant_code" validate:"required"`
	DocumentID     int                   `json:"document_id" validate:"required"`
	PartyID        *int                  `json:"party_id" validate:"required"`
	AssignedNumber *int64                `json:"assigned_number"`
	Items          []DocumentLineRequest `json:"items" validate:"dive"`
}
