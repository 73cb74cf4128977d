package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"

	"billing-backend/internal/core"
)

type appService struct {
	pool      *pgxpool.Pool
	validate  *validator.Validate
	tenants   core.TenantService
	parties   core.PartyService
	products  core.ProductService
	documents core.DocumentService
	stock     core.StockService
}

// NewAppService wires the engine services behind the ApplicationService facade.
func NewAppService(
	pool *pgxpool.Pool,
	tenants core.TenantService,
	parties core.PartyService,
	products core.ProductService,
	documents core.DocumentService,
	stock core.StockService,
) ApplicationService {
	return &appService{
		pool:      pool,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		tenants:   tenants,
		parties:   parties,
		products:  products,
		documents: documents,
		stock:     stock,
	}
}

// checkRequest runs struct validation and folds failures into the engine's
// InputError taxonomy so the web layer maps them uniformly.
func (s *appService) checkRequest(req any) error {
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return core.NewInputError(first.Field(), fmt.Sprintf("failed %q validation", first.Tag()))
		}
		return core.NewInputError("", err.Error())
	}
	return nil
}

func (s *appService) resolveTenant(ctx context.Context, code string) (int, error) {
	if code == "" {
		return 0, core.NewInputError("tenant_code", "tenant code is required")
	}
	tenant, err := s.tenants.GetTenantByCode(ctx, code)
	if err != nil {
		return 0, err
	}
	return tenant.ID, nil
}

func (s *appService) CreateTenant(ctx context.Context, req CreateTenantRequest) (*core.Tenant, error) {
	if err := s.checkRequest(req); err != nil {
		return nil, err
	}
	return s.tenants.CreateTenant(ctx, req.Code, req.Name)
}

func (s *appService) CreateParty(ctx context.Context, req CreatePartyRequest) (*core.Party, error) {
	if err := s.checkRequest(req); err != nil {
		return nil, err
	}
	tenantID, err := s.resolveTenant(ctx, req.TenantCode)
	if err != nil {
		return nil, err
	}
	return s.parties.CreateParty(ctx, tenantID, req.Name, req.Address)
}

func (s *appService) ListParties(ctx context.Context, tenantCode string) ([]core.Party, error) {
	tenantID, err := s.resolveTenant(ctx, tenantCode)
	if err != nil {
		return nil, err
	}
	return s.parties.ListParties(ctx, tenantID)
}

func (s *appService) CreateProduct(ctx context.Context, req CreateProductRequest) (*core.Product, error) {
	if err := s.checkRequest(req); err != nil {
		return nil, err
	}
	tenantID, err := s.resolveTenant(ctx, req.TenantCode)
	if err != nil {
		return nil, err
	}
	return s.products.CreateProduct(ctx, tenantID, req.Name, req.UnitRate)
}

func (s *appService) GetStockLevels(ctx context.Context, tenantCode string) ([]core.StockLevel, error) {
	tenantID, err := s.resolveTenant(ctx, tenantCode)
	if err != nil {
		return nil, err
	}
	return s.products.GetStockLevels(ctx, tenantID)
}

func (s *appService) CreateDocument(ctx context.Context, req CreateDocumentRequest) (*core.Document, error) {
	if err := s.checkRequest(req); err != nil {
		return nil, err
	}
	tenantID, err := s.resolveTenant(ctx, req.TenantCode)
	if err != nil {
		return nil, err
	}
	return s.documents.CreateDocument(ctx, tenantID, core.DocType(req.DocType), core.DocumentInput{
		PartyID: req.PartyID,
		Items:   toLineItems(req.Items),
	})
}

func (s *appService) UpdateDocument(ctx context.Context, req UpdateDocumentRequest) (*core.Document, error) {
	if err := s.checkRequest(req); err != nil {
		return nil, err
	}
	tenantID, err := s.resolveTenant(ctx, req.TenantCode)
	if err != nil {
		return nil, err
	}
	return s.documents.UpdateDocument(ctx, tenantID, req.DocumentID, core.DocumentInput{
		PartyID:        req.PartyID,
		AssignedNumber: req.AssignedNumber,
		Items:          toLineItems(req.Items),
	})
}

func (s *appService) DeleteDocument(ctx context.Context, tenantCode string, documentID int) (*DeleteResult, error) {
	tenantID, err := s.resolveTenant(ctx, tenantCode)
	if err != nil {
		return nil, err
	}
	if err := s.documents.DeleteDocument(ctx, tenantID, documentID); err != nil {
		return nil, err
	}
	return &DeleteResult{Deleted: true}, nil
}

func (s *appService) PeekNextNumber(ctx context.Context, tenantCode string, docType core.DocType) (*core.NumberPreview, error) {
	tenantID, err := s.resolveTenant(ctx, tenantCode)
	if err != nil {
		return nil, err
	}
	return s.documents.PeekNextNumber(ctx, tenantID, docType)
}

func (s *appService) GetDocument(ctx context.Context, tenantCode string, documentID int) (*core.Document, error) {
	tenantID, err := s.resolveTenant(ctx, tenantCode)
	if err != nil {
		return nil, err
	}
	return s.documents.GetDocument(ctx, tenantID, documentID)
}

func (s *appService) ListDocuments(ctx context.Context, tenantCode string, docType core.DocType) ([]core.Document, error) {
	tenantID, err := s.resolveTenant(ctx, tenantCode)
	if err != nil {
		return nil, err
	}
	return s.documents.ListDocuments(ctx, tenantID, docType)
}

func (s *appService) RecoverStockAdjustments(ctx context.Context, tenantCode string) (*RecoverResult, error) {
	tenantID, err := s.resolveTenant(ctx, tenantCode)
	if err != nil {
		return nil, err
	}
	recovered, err := s.stock.RecoverPending(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return &RecoverResult{Recovered: recovered}, nil
}

func toLineItems(lines []DocumentLineRequest) []core.LineItem {
	items := make([]core.LineItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, core.LineItem{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Quantity:    l.Quantity,
			UnitRate:    l.UnitRate,
			TaxRate:     l.TaxRate,
		})
	}
	return items
}
