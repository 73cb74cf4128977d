package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"billing-backend/internal/core"
)

func newDocumentService(pool *pgxpool.Pool) core.DocumentService {
	products := core.NewProductService(pool)
	return core.NewDocumentService(
		pool,
		core.NewSequenceService(pool),
		core.NewStockService(pool, products),
		core.NewPartyService(pool),
	)
}

func TestDocument_NumberingEndToEnd(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	docs := newDocumentService(pool)
	ctx := context.Background()
	input := core.DocumentInput{
		PartyID: intPtr(1),
		Items:   []core.LineItem{{ProductID: intPtr(1), Quantity: qty("1")}},
	}

	first, err := docs.CreateDocument(ctx, 1, core.DocTypePurchase, input)
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := docs.CreateDocument(ctx, 1, core.DocTypePurchase, input)
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	if first.FormattedNumber != "PUR-00001" {
		t.Errorf("first number = %q, want PUR-00001", first.FormattedNumber)
	}
	if second.FormattedNumber != "PUR-00002" {
		t.Errorf("second number = %q, want PUR-00002", second.FormattedNumber)
	}

	preview, err := docs.PeekNextNumber(ctx, 1, core.DocTypePurchase)
	if err != nil {
		t.Fatalf("PeekNextNumber: %v", err)
	}
	if preview.Seq != 3 || preview.Formatted != "PUR-00003" {
		t.Errorf("preview = %+v, want seq 3 PUR-00003", preview)
	}

	// A sales document runs its own stream.
	sale, err := docs.CreateDocument(ctx, 1, core.DocTypeSale, input)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if sale.FormattedNumber != "INV-00001" {
		t.Errorf("sale number = %q, want INV-00001", sale.FormattedNumber)
	}
}

func TestDocument_StockFollowsLifecycle(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	docs := newDocumentService(pool)
	ctx := context.Background()

	line := func(q string) core.DocumentInput {
		return core.DocumentInput{
			PartyID: intPtr(1),
			Items:   []core.LineItem{{ProductID: intPtr(1), Quantity: qty(q)}},
		}
	}

	doc, err := docs.CreateDocument(ctx, 1, core.DocTypePurchase, line("10"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := currentStock(t, pool, 1); !got.Equal(qty("10")) {
		t.Fatalf("stock after create = %s, want 10", got)
	}

	if _, err := docs.UpdateDocument(ctx, 1, doc.ID, line("6")); err != nil {
		t.Fatalf("update to 6: %v", err)
	}
	if got := currentStock(t, pool, 1); !got.Equal(qty("6")) {
		t.Fatalf("stock after shrink = %s, want 6", got)
	}

	// The second update diffs against the stored 6, not the original 10.
	if _, err := docs.UpdateDocument(ctx, 1, doc.ID, line("9")); err != nil {
		t.Fatalf("update to 9: %v", err)
	}
	if got := currentStock(t, pool, 1); !got.Equal(qty("9")) {
		t.Fatalf("stock after grow = %s, want 9", got)
	}

	if err := docs.DeleteDocument(ctx, 1, doc.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := currentStock(t, pool, 1); !got.IsZero() {
		t.Fatalf("stock after delete = %s, want 0", got)
	}

	// Deleting again is a no-op success and must not double-reverse.
	if err := docs.DeleteDocument(ctx, 1, doc.ID); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if got := currentStock(t, pool, 1); !got.IsZero() {
		t.Errorf("stock after repeated delete = %s, want 0", got)
	}

	got, err := docs.GetDocument(ctx, 1, doc.ID)
	if err != nil {
		t.Fatalf("get deleted document: %v", err)
	}
	if !got.IsDeleted || got.DeletedAt == nil {
		t.Error("document not marked deleted")
	}
	if got.AssignedNumber != doc.AssignedNumber {
		t.Error("assigned number changed across deletion")
	}
}

func TestDocument_ReturnsInvertTheSign(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	docs := newDocumentService(pool)
	ctx := context.Background()

	_, err := docs.CreateDocument(ctx, 1, core.DocTypePurchase, core.DocumentInput{
		PartyID: intPtr(1),
		Items:   []core.LineItem{{ProductID: intPtr(1), Quantity: qty("20")}},
	})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}

	ret, err := docs.CreateDocument(ctx, 1, core.DocTypePurchaseReturn, core.DocumentInput{
		PartyID: intPtr(1),
		Items:   []core.LineItem{{ProductID: intPtr(1), Quantity: qty("5")}},
	})
	if err != nil {
		t.Fatalf("create return: %v", err)
	}
	if ret.FormattedNumber != "PR-00001" {
		t.Errorf("return number = %q, want PR-00001", ret.FormattedNumber)
	}
	if got := currentStock(t, pool, 1); !got.Equal(qty("15")) {
		t.Fatalf("stock after return = %s, want 15", got)
	}

	// Deleting the return restores what it removed.
	if err := docs.DeleteDocument(ctx, 1, ret.ID); err != nil {
		t.Fatalf("delete return: %v", err)
	}
	if got := currentStock(t, pool, 1); !got.Equal(qty("20")) {
		t.Errorf("stock after deleting return = %s, want 20", got)
	}
}

func TestDocument_UnresolvableLineIsInert(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	docs := newDocumentService(pool)
	ctx := context.Background()

	doc, err := docs.CreateDocument(ctx, 1, core.DocTypePurchase, core.DocumentInput{
		PartyID: intPtr(1),
		Items: []core.LineItem{
			{ProductName: "Steel Rod", Quantity: qty("3")},
			{ProductName: "Freight Charge", Quantity: qty("1"), UnitRate: qty("500")},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// The freight line is stored with the document but moves no stock.
	if len(doc.Lines) != 2 {
		t.Fatalf("stored lines = %d, want 2", len(doc.Lines))
	}
	if got := currentStock(t, pool, 1); !got.Equal(qty("3")) {
		t.Errorf("stock = %s, want 3", got)
	}
}

func TestDocument_AssignedNumberIsImmutable(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	docs := newDocumentService(pool)
	ctx := context.Background()
	items := []core.LineItem{{ProductID: intPtr(1), Quantity: qty("2")}}

	// Creation with a caller-chosen number is refused outright.
	forced := int64(77)
	_, err := docs.CreateDocument(ctx, 1, core.DocTypePurchase, core.DocumentInput{
		PartyID:        intPtr(1),
		AssignedNumber: &forced,
		Items:          items,
	})
	var inputErr *core.InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected InputError for caller-chosen number, got %v", err)
	}

	doc, err := docs.CreateDocument(ctx, 1, core.DocTypePurchase, core.DocumentInput{
		PartyID: intPtr(1),
		Items:   items,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Echoing the stored number back on update is fine.
	same := doc.AssignedNumber
	if _, err := docs.UpdateDocument(ctx, 1, doc.ID, core.DocumentInput{
		PartyID:        intPtr(1),
		AssignedNumber: &same,
		Items:          items,
	}); err != nil {
		t.Fatalf("update echoing number: %v", err)
	}

	changed := doc.AssignedNumber + 1
	_, err = docs.UpdateDocument(ctx, 1, doc.ID, core.DocumentInput{
		PartyID:        intPtr(1),
		AssignedNumber: &changed,
		Items:          items,
	})
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected InputError for changed number, got %v", err)
	}
}

func TestDocument_NumberConsumedWhenCreateFails(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	docs := newDocumentService(pool)
	ctx := context.Background()

	// An explicit reference to a product that does not exist makes the write
	// fail after the number has already been allocated.
	_, err := docs.CreateDocument(ctx, 1, core.DocTypePurchase, core.DocumentInput{
		PartyID: intPtr(1),
		Items:   []core.LineItem{{ProductID: intPtr(999), Quantity: qty("1")}},
	})
	if err == nil {
		t.Fatal("expected create to fail")
	}

	// Nothing was persisted for the failed attempt.
	var count int
	if err := pool.QueryRow(ctx, "SELECT count(*) FROM documents WHERE tenant_id = 1").Scan(&count); err != nil {
		t.Fatalf("count documents: %v", err)
	}
	if count != 0 {
		t.Fatalf("documents after failed create = %d, want 0", count)
	}

	// But the number is gone: the next document starts at 2.
	doc, err := docs.CreateDocument(ctx, 1, core.DocTypePurchase, core.DocumentInput{
		PartyID: intPtr(1),
		Items:   []core.LineItem{{ProductID: intPtr(1), Quantity: qty("1")}},
	})
	if err != nil {
		t.Fatalf("create after failure: %v", err)
	}
	if doc.FormattedNumber != "PUR-00002" {
		t.Errorf("number after failed create = %q, want PUR-00002", doc.FormattedNumber)
	}
}

func TestDocument_CrossTenantAccessIsNotFound(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	docs := newDocumentService(pool)
	ctx := context.Background()

	doc, err := docs.CreateDocument(ctx, 1, core.DocTypePurchase, core.DocumentInput{
		PartyID: intPtr(1),
		Items:   []core.LineItem{{ProductID: intPtr(1), Quantity: qty("4")}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var notFound *core.NotFoundError
	if _, err := docs.GetDocument(ctx, 2, doc.ID); !errors.As(err, &notFound) {
		t.Errorf("GetDocument from other tenant: got %v, want NotFoundError", err)
	}
	if _, err := docs.UpdateDocument(ctx, 2, doc.ID, core.DocumentInput{PartyID: intPtr(2)}); !errors.As(err, &notFound) {
		t.Errorf("UpdateDocument from other tenant: got %v, want NotFoundError", err)
	}
	if err := docs.DeleteDocument(ctx, 2, doc.ID); !errors.As(err, &notFound) {
		t.Errorf("DeleteDocument from other tenant: got %v, want NotFoundError", err)
	}

	// A party from another tenant is rejected as input, not silently attached.
	var inputErr *core.InputError
	_, err = docs.CreateDocument(ctx, 1, core.DocTypePurchase, core.DocumentInput{
		PartyID: intPtr(2),
		Items:   []core.LineItem{{ProductID: intPtr(1), Quantity: qty("1")}},
	})
	if !errors.As(err, &inputErr) {
		t.Errorf("foreign party: got %v, want InputError", err)
	}
}

func TestDocument_ValidatesItems(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	docs := newDocumentService(pool)
	ctx := context.Background()
	var inputErr *core.InputError

	_, err := docs.CreateDocument(ctx, 1, core.DocTypePurchase, core.DocumentInput{
		PartyID: intPtr(1),
		Items:   []core.LineItem{{ProductID: intPtr(1), Quantity: qty("0")}},
	})
	if !errors.As(err, &inputErr) {
		t.Errorf("zero quantity: got %v, want InputError", err)
	}

	_, err = docs.CreateDocument(ctx, 1, core.DocTypePurchase, core.DocumentInput{
		PartyID: intPtr(1),
		Items:   []core.LineItem{{ProductID: intPtr(1), Quantity: qty("1"), UnitRate: qty("-3")}},
	})
	if !errors.As(err, &inputErr) {
		t.Errorf("negative rate: got %v, want InputError", err)
	}

	_, err = docs.CreateDocument(ctx, 1, "voucher", core.DocumentInput{PartyID: intPtr(1)})
	if !errors.As(err, &inputErr) {
		t.Errorf("unknown doc type: got %v, want InputError", err)
	}

	_, err = docs.CreateDocument(ctx, 1, core.DocTypePurchase, core.DocumentInput{
		Items: []core.LineItem{{ProductID: intPtr(1), Quantity: qty("1")}},
	})
	if !errors.As(err, &inputErr) {
		t.Errorf("missing party: got %v, want InputError", err)
	}
}

func TestDocument_ListFiltersByTypeAndLiveness(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	docs := newDocumentService(pool)
	ctx := context.Background()
	input := core.DocumentInput{
		PartyID: intPtr(1),
		Items:   []core.LineItem{{ProductID: intPtr(1), Quantity: qty("1")}},
	}

	pur1, err := docs.CreateDocument(ctx, 1, core.DocTypePurchase, input)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	pur2, err := docs.CreateDocument(ctx, 1, core.DocTypePurchase, input)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := docs.CreateDocument(ctx, 1, core.DocTypeSale, input); err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if err := docs.DeleteDocument(ctx, 1, pur1.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	purchases, err := docs.ListDocuments(ctx, 1, core.DocTypePurchase)
	if err != nil {
		t.Fatalf("list purchases: %v", err)
	}
	if len(purchases) != 1 || purchases[0].ID != pur2.ID {
		t.Errorf("purchases = %+v, want only the live one", purchases)
	}

	all, err := docs.ListDocuments(ctx, 1, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all live documents = %d, want 2", len(all))
	}

	other, err := docs.ListDocuments(ctx, 2, "")
	if err != nil {
		t.Fatalf("list tenant 2: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("tenant 2 documents = %d, want 0", len(other))
	}
}
