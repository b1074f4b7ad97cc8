/*
handlers_test.go - HTTP-level tests for the API

Tests for:
- Status code mapping of domain errors
- Happy-path JSON round trips through the router
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tillworks/pos-engine/pos"
	"github.com/tillworks/pos-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type env struct {
	server  *httptest.Server
	store   *sqlite.Store
	cashier pos.UserID
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cashier := &pos.User{Name: "Ray", Role: "cashier", IsActive: true}
	require.NoError(t, store.SaveUser(context.Background(), cashier))

	server := httptest.NewServer(NewRouter(NewHandler(store)))
	t.Cleanup(server.Close)
	return &env{server: server, store: store, cashier: cashier.ID}
}

func (e *env) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (e *env) addProduct(t *testing.T, barcode string, stock int) pos.ProductID {
	t.Helper()
	ctx := context.Background()
	cat := &pos.Category{Name: "Shelf " + barcode}
	require.NoError(t, e.store.SaveCategory(ctx, cat))
	p := &pos.Product{
		Barcode:       barcode,
		Name:          "Item " + barcode,
		CategoryID:    cat.ID,
		PurchasePrice: pos.Money("1.00"),
		SellingPrice:  pos.Money("2.50"),
		StockQuantity: stock,
		MinimumStock:  1,
		IsActive:      true,
	}
	require.NoError(t, e.store.SaveProduct(ctx, p))
	return p.ID
}

func saleBody(cashier pos.UserID, productID pos.ProductID, qty int, paid string) CreateSaleRequest {
	return CreateSaleRequest{
		CashierID:     cashier,
		Items:         []SaleLineRequest{{ProductID: productID, Quantity: qty}},
		PaymentMethod: pos.PayCash,
		AmountPaid:    pos.Money(paid),
	}
}

// =============================================================================
// PRODUCTS
// =============================================================================

func TestAPI_CreateAndGetProduct(t *testing.T) {
	e := newEnv(t)
	cat := &pos.Category{Name: "Dairy"}
	require.NoError(t, e.store.SaveCategory(context.Background(), cat))

	resp := e.do(t, http.MethodPost, "/api/products", CreateProductRequest{
		Barcode:       "5010029000015",
		Name:          "Milk 1L",
		CategoryID:    cat.ID,
		PurchasePrice: pos.Money("0.80"),
		SellingPrice:  pos.Money("1.40"),
		StockQuantity: 30,
		MinimumStock:  6,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[ProductDTO](t, resp)
	assert.True(t, created.IsActive)

	resp = e.do(t, http.MethodGet, fmt.Sprintf("/api/products/%d", created.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[ProductDTO](t, resp)
	assert.Equal(t, "Milk 1L", got.Name)
	assert.Equal(t, 30, got.StockQuantity)

	resp = e.do(t, http.MethodGet, "/api/products/barcode/5010029000015", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_GetProduct_Missing404(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, http.MethodGet, "/api/products/999", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_CreateProduct_MissingFields400(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, http.MethodPost, "/api/products", CreateProductRequest{Name: "No Barcode"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// SALES
// =============================================================================

func TestAPI_CreateSale_Flow(t *testing.T) {
	// GIVEN: A product with stock 10 at 2.50
	// WHEN: POSTing a sale of 2 paid with 10.00
	// THEN: 201 with computed totals, stock drops, ledger row visible

	e := newEnv(t)
	productID := e.addProduct(t, "S-1", 10)

	resp := e.do(t, http.MethodPost, "/api/sales", saleBody(e.cashier, productID, 2, "10.00"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sale := decode[SaleDTO](t, resp)
	assert.True(t, sale.TotalAmount.Equal(pos.Money("5.00")))
	assert.True(t, sale.ChangeAmount.Equal(pos.Money("5.00")))
	assert.Equal(t, pos.SaleCompleted, sale.Status)

	resp = e.do(t, http.MethodGet, fmt.Sprintf("/api/products/%d", productID), nil)
	product := decode[ProductDTO](t, resp)
	assert.Equal(t, 8, product.StockQuantity)

	resp = e.do(t, http.MethodGet, fmt.Sprintf("/api/stock/movements?product_id=%d", productID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	movements := decode[[]MovementDTO](t, resp)
	require.Len(t, movements, 1)
	assert.Equal(t, -2, movements[0].Quantity)
}

func TestAPI_CreateSale_LineOverrides(t *testing.T) {
	// GIVEN: A product selling at 2.50
	// WHEN: POSTing a sale line with its own unit_price and display fields
	// THEN: The item keeps the values as given instead of the catalog's

	e := newEnv(t)
	productID := e.addProduct(t, "S-1", 10)

	resp := e.do(t, http.MethodPost, "/api/sales", CreateSaleRequest{
		CashierID: e.cashier,
		Items: []SaleLineRequest{{
			ProductID:   productID,
			Barcode:     "S-1-PROMO",
			ProductName: "Item S-1 (clearance)",
			Quantity:    2,
			UnitPrice:   pos.Money("1.99"),
		}},
		PaymentMethod: pos.PayCash,
		AmountPaid:    pos.Money("5.00"),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sale := decode[SaleDTO](t, resp)
	require.Len(t, sale.Items, 1)
	assert.Equal(t, "S-1-PROMO", sale.Items[0].Barcode)
	assert.Equal(t, "Item S-1 (clearance)", sale.Items[0].ProductName)
	assert.True(t, sale.Items[0].UnitPrice.Equal(pos.Money("1.99")))
	assert.True(t, sale.TotalAmount.Equal(pos.Money("3.98")))
}

func TestAPI_CreateSale_InsufficientStock422(t *testing.T) {
	e := newEnv(t)
	productID := e.addProduct(t, "S-1", 1)

	resp := e.do(t, http.MethodPost, "/api/sales", saleBody(e.cashier, productID, 5, "50.00"))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decode[ErrorResponse](t, resp)
	assert.Contains(t, body.Error, "insufficient stock")
}

func TestAPI_CreateSale_UnknownProduct404(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, http.MethodPost, "/api/sales", saleBody(e.cashier, 999, 1, "10.00"))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_CancelSale_SecondAttempt409(t *testing.T) {
	e := newEnv(t)
	productID := e.addProduct(t, "S-1", 10)

	resp := e.do(t, http.MethodPost, "/api/sales", saleBody(e.cashier, productID, 2, "10.00"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sale := decode[SaleDTO](t, resp)

	cancelPath := fmt.Sprintf("/api/sales/%d/cancel", sale.ID)
	body := CancelSaleRequest{CancelledBy: e.cashier, Reason: "customer changed mind"}

	resp = e.do(t, http.MethodPost, cancelPath, body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cancelled := decode[SaleDTO](t, resp)
	assert.Equal(t, pos.SaleCancelled, cancelled.Status)

	resp = e.do(t, http.MethodPost, cancelPath, body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

// =============================================================================
// STOCK
// =============================================================================

func TestAPI_AdjustStock(t *testing.T) {
	e := newEnv(t)
	productID := e.addProduct(t, "S-1", 10)

	resp := e.do(t, http.MethodPost, "/api/stock/adjustments", AdjustStockRequest{
		ProductID:      productID,
		TargetQuantity: 25,
		ActorID:        e.cashier,
		Notes:          "stocktake",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	mv := decode[MovementDTO](t, resp)
	assert.Equal(t, 15, mv.Quantity)
	assert.Equal(t, pos.MovementAdjustment, mv.MovementType)
}

func TestAPI_RecordMovement(t *testing.T) {
	e := newEnv(t)
	productID := e.addProduct(t, "S-1", 10)

	resp := e.do(t, http.MethodPost, "/api/stock/movements", RecordMovementRequest{
		ProductID:    productID,
		MovementType: pos.MovementIn,
		Quantity:     5,
		Notes:        "found in back room",
		CreatedBy:    e.cashier,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	mv := decode[MovementDTO](t, resp)
	assert.Equal(t, 5, mv.Quantity)

	resp = e.do(t, http.MethodPost, "/api/stock/movements", RecordMovementRequest{
		ProductID:    999,
		MovementType: pos.MovementIn,
		Quantity:     1,
		CreatedBy:    e.cashier,
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_Reconciliation(t *testing.T) {
	e := newEnv(t)
	e.addProduct(t, "S-1", 10)

	resp := e.do(t, http.MethodGet, "/api/stock/reconciliation", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

// =============================================================================
// PURCHASES
// =============================================================================

func TestAPI_CreatePurchase(t *testing.T) {
	e := newEnv(t)
	productID := e.addProduct(t, "P-1", 0)
	supplier := &pos.Supplier{Name: "NorthSupply"}
	require.NoError(t, e.store.SaveSupplier(context.Background(), supplier))

	resp := e.do(t, http.MethodPost, "/api/purchases", CreatePurchaseRequest{
		SupplierID: supplier.ID,
		Items:      []PurchaseLineRequest{{ProductID: productID, Quantity: 12, UnitCost: pos.Money("1.00")}},
		CreatedBy:  e.cashier,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	purchase := decode[PurchaseDTO](t, resp)
	assert.True(t, purchase.TotalAmount.Equal(pos.Money("12.00")))

	resp = e.do(t, http.MethodGet, fmt.Sprintf("/api/products/%d", productID), nil)
	product := decode[ProductDTO](t, resp)
	assert.Equal(t, 12, product.StockQuantity)
}

func TestAPI_CreatePurchase_UnknownSupplier404(t *testing.T) {
	e := newEnv(t)
	productID := e.addProduct(t, "P-1", 0)

	resp := e.do(t, http.MethodPost, "/api/purchases", CreatePurchaseRequest{
		SupplierID: 999,
		Items:      []PurchaseLineRequest{{ProductID: productID, Quantity: 1, UnitCost: pos.Money("1.00")}},
		CreatedBy:  e.cashier,
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// CATALOG / MISC
// =============================================================================

func TestAPI_DeleteCategory_Referenced409(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	cat := &pos.Category{Name: "Frozen"}
	require.NoError(t, e.store.SaveCategory(ctx, cat))
	p := &pos.Product{
		Barcode: "F-1", Name: "Peas", CategoryID: cat.ID,
		PurchasePrice: pos.Money("0.50"), SellingPrice: pos.Money("1.00"),
		IsActive: true,
	}
	require.NoError(t, e.store.SaveProduct(ctx, p))

	resp := e.do(t, http.MethodDelete, fmt.Sprintf("/api/categories/%d", cat.ID), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_Health(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
