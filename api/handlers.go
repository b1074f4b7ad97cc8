/*
handlers.go - HTTP API handlers for the point-of-sale backend

PURPOSE:

	Exposes the sales, purchasing and inventory engines via REST API.
	Handles HTTP request/response, JSON serialization, and delegates to
	domain logic.

ENDPOINTS:

	Products:
	  GET    /api/products               List products (?active=true)
	  POST   /api/products               Create product
	  GET    /api/products/{id}          Get product
	  PUT    /api/products/{id}          Update catalog fields
	  GET    /api/products/barcode/{code} Lookup by barcode

	Stock:
	  GET    /api/stock/movements        Ledger (?product_id=&limit=)
	  POST   /api/stock/movements        Record a raw movement
	  GET    /api/stock/movements/export CSV export
	  POST   /api/stock/adjustments      Set stock to an absolute level
	  GET    /api/stock/low              Low-stock products
	  GET    /api/stock/reconciliation   Stock vs. ledger audit

	Sales:
	  POST   /api/sales                  Ring up a sale
	  GET    /api/sales                  List sales (?status=&cashier_id=&from=&to=)
	  GET    /api/sales/{id}             Get sale with items
	  POST   /api/sales/{id}/cancel      Cancel and restock

	Purchases:
	  POST   /api/purchases              Receive stock from a supplier
	  GET    /api/purchases              List purchases (?supplier_id=)
	  GET    /api/purchases/{id}         Get purchase with items

	Catalog/actors: /api/categories, /api/suppliers, /api/users

ERROR HANDLING:

	Errors are returned as JSON with appropriate HTTP status:
	- 400: Malformed request body or parameters
	- 404: Resource not found
	- 409: Conflict (cancelling a non-completed sale, referenced delete)
	- 422: Domain validation (stock, payment, inactive product)
	- 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tillworks/pos-engine/inventory"
	"github.com/tillworks/pos-engine/pos"
	"github.com/tillworks/pos-engine/purchasing"
	"github.com/tillworks/pos-engine/report"
	"github.com/tillworks/pos-engine/sales"
	"github.com/tillworks/pos-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Sales     *sales.Engine
	Purchases *purchasing.Engine
	Inventory *inventory.Engine
	Reports   *report.Service
}

// NewHandler wires the engines around one store.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store:     store,
		Sales:     sales.NewEngine(store),
		Purchases: purchasing.NewEngine(store),
		Inventory: inventory.NewEngine(store),
		Reports:   report.NewService(store),
	}
}

// =============================================================================
// PRODUCTS
// =============================================================================

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	products, err := h.Store.ListProducts(r.Context(), activeOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list products", err)
		return
	}

	dtos := make([]ProductDTO, 0, len(products))
	for i := range products {
		dtos = append(dtos, toProductDTO(&products[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Barcode == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "barcode and name are required", nil)
		return
	}
	if req.StockQuantity < 0 || req.MinimumStock < 0 {
		writeError(w, http.StatusBadRequest, "stock quantities must not be negative", nil)
		return
	}

	product := &pos.Product{
		Barcode:       req.Barcode,
		Name:          req.Name,
		Description:   req.Description,
		CategoryID:    req.CategoryID,
		SupplierID:    req.SupplierID,
		PurchasePrice: req.PurchasePrice,
		SellingPrice:  req.SellingPrice,
		StockQuantity: req.StockQuantity,
		MinimumStock:  req.MinimumStock,
		IsActive:      true,
	}
	if err := h.Store.SaveProduct(r.Context(), product); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create product", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(product))
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	product, err := h.Store.GetProduct(r.Context(), pos.ProductID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get product", err)
		return
	}
	if product == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("product %d not found", id), nil)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(product))
}

func (h *Handler) GetProductByBarcode(w http.ResponseWriter, r *http.Request) {
	barcode := chi.URLParam(r, "barcode")
	product, err := h.Store.GetProductByBarcode(r.Context(), barcode)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get product", err)
		return
	}
	if product == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("product with barcode %q not found", barcode), nil)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(product))
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateProductRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	product, err := h.Store.GetProduct(r.Context(), pos.ProductID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get product", err)
		return
	}
	if product == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("product %d not found", id), nil)
		return
	}

	product.Barcode = req.Barcode
	product.Name = req.Name
	product.Description = req.Description
	product.CategoryID = req.CategoryID
	product.SupplierID = req.SupplierID
	product.PurchasePrice = req.PurchasePrice
	product.SellingPrice = req.SellingPrice
	product.MinimumStock = req.MinimumStock
	product.IsActive = req.IsActive

	if err := h.Store.UpdateProduct(r.Context(), product); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(product))
}

// =============================================================================
// STOCK
// =============================================================================

func (h *Handler) ListMovements(w http.ResponseWriter, r *http.Request) {
	productID, limit, ok := movementQuery(w, r)
	if !ok {
		return
	}
	movements, err := h.Store.ListMovements(r.Context(), productID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list movements", err)
		return
	}

	dtos := make([]MovementDTO, 0, len(movements))
	for i := range movements {
		dtos = append(dtos, toMovementDTO(&movements[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ExportMovements(w http.ResponseWriter, r *http.Request) {
	productID, _, ok := movementQuery(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="stock_movements.csv"`)
	if err := h.Reports.ExportMovementsCSV(r.Context(), w, productID); err != nil {
		// Headers are already out; nothing useful left to send.
		return
	}
}

func movementQuery(w http.ResponseWriter, r *http.Request) (*pos.ProductID, int, bool) {
	var productID *pos.ProductID
	if raw := r.URL.Query().Get("product_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid product_id", err)
			return nil, 0, false
		}
		pid := pos.ProductID(id)
		productID = &pid
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit", err)
			return nil, 0, false
		}
		limit = n
	}
	return productID, limit, true
}

func (h *Handler) RecordMovement(w http.ResponseWriter, r *http.Request) {
	var req RecordMovementRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	movement, err := h.Inventory.Record(r.Context(), inventory.Input{
		ProductID: req.ProductID,
		Type:      req.MovementType,
		Quantity:  req.Quantity,
		Reference: pos.Reference{Kind: req.ReferenceType, ID: req.ReferenceID},
		Notes:     req.Notes,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMovementDTO(movement))
}

func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req AdjustStockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	movement, err := h.Inventory.AdjustTo(r.Context(),
		req.ProductID, req.TargetQuantity, req.ActorID, req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMovementDTO(movement))
}

func (h *Handler) ListLowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.Reports.LowStock(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list low stock", err)
		return
	}
	dtos := make([]ProductDTO, 0, len(products))
	for i := range products {
		dtos = append(dtos, toProductDTO(&products[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) StockReconciliation(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Reports.Reconciliation(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reconcile stock", err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// =============================================================================
// SALES
// =============================================================================

func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req CreateSaleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	sale, err := h.Sales.CreateSale(r.Context(), sales.CreateSaleInput{
		CashierID:      req.CashierID,
		Lines:          toSaleLines(req.Items),
		DiscountAmount: req.DiscountAmount,
		TaxAmount:      req.TaxAmount,
		PaymentMethod:  req.PaymentMethod,
		AmountPaid:     req.AmountPaid,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSaleDTO(sale))
}

func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	var filter sqlite.SaleFilter
	q := r.URL.Query()
	if raw := q.Get("status"); raw != "" {
		filter.Status = pos.SaleStatus(raw)
	}
	if raw := q.Get("cashier_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid cashier_id", err)
			return
		}
		filter.CashierID = pos.UserID(id)
	}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from timestamp, want RFC3339", err)
			return
		}
		filter.From = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to timestamp, want RFC3339", err)
			return
		}
		filter.To = &t
	}

	list, err := h.Store.ListSales(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sales", err)
		return
	}
	dtos := make([]SaleDTO, 0, len(list))
	for i := range list {
		dtos = append(dtos, toSaleDTO(&list[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	sale, err := h.Store.GetSale(r.Context(), pos.SaleID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get sale", err)
		return
	}
	if sale == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("sale %d not found", id), nil)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTO(sale))
}

func (h *Handler) CancelSale(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req CancelSaleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	sale, err := h.Sales.CancelSale(r.Context(), pos.SaleID(id), req.CancelledBy, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTO(sale))
}

// =============================================================================
// PURCHASES
// =============================================================================

func (h *Handler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req CreatePurchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	purchase, err := h.Purchases.CreatePurchase(r.Context(), purchasing.CreatePurchaseInput{
		SupplierID: req.SupplierID,
		Lines:      toPurchaseLines(req.Items),
		CreatedBy:  req.CreatedBy,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPurchaseDTO(purchase))
}

func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	var supplierID pos.SupplierID
	if raw := r.URL.Query().Get("supplier_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid supplier_id", err)
			return
		}
		supplierID = pos.SupplierID(id)
	}

	list, err := h.Store.ListPurchases(r.Context(), supplierID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list purchases", err)
		return
	}
	dtos := make([]PurchaseDTO, 0, len(list))
	for i := range list {
		dtos = append(dtos, toPurchaseDTO(&list[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetPurchase(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	purchase, err := h.Store.GetPurchase(r.Context(), pos.PurchaseID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get purchase", err)
		return
	}
	if purchase == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("purchase %d not found", id), nil)
		return
	}
	writeJSON(w, http.StatusOK, toPurchaseDTO(purchase))
}

// =============================================================================
// REPORTS
// =============================================================================

func (h *Handler) SalesSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := time.Now().UTC()
	from := now.Truncate(24 * time.Hour)
	to := now
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from timestamp, want RFC3339", err)
			return
		}
		from = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to timestamp, want RFC3339", err)
			return
		}
		to = t
	}

	summary, err := h.Reports.SalesSummary(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build sales summary", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// =============================================================================
// CATEGORIES
// =============================================================================

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Store.ListCategories(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list categories", err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	category := &pos.Category{Name: req.Name, Description: req.Description}
	if err := h.Store.SaveCategory(r.Context(), category); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create category", err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Store.DeleteCategory(r.Context(), pos.CategoryID(id)); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SUPPLIERS
// =============================================================================

func (h *Handler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.Store.ListSuppliers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list suppliers", err)
		return
	}
	writeJSON(w, http.StatusOK, suppliers)
}

func (h *Handler) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req SupplierRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	supplier := &pos.Supplier{
		Name:    req.Name,
		Contact: req.Contact,
		Phone:   req.Phone,
		Email:   req.Email,
		Address: req.Address,
	}
	if err := h.Store.SaveSupplier(r.Context(), supplier); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create supplier", err)
		return
	}
	writeJSON(w, http.StatusCreated, supplier)
}

func (h *Handler) DeleteSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Store.DeleteSupplier(r.Context(), pos.SupplierID(id)); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// USERS
// =============================================================================

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users", err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	role := req.Role
	if role == "" {
		role = "cashier"
	}
	user := &pos.User{Name: req.Name, Role: role, IsActive: req.IsActive}
	if err := h.Store.SaveUser(r.Context(), user); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create user", err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// =============================================================================
// HELPERS
// =============================================================================

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s %q", name, raw), nil)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors onto HTTP statuses:
// not found -> 404, state conflicts -> 409, validation -> 422.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case pos.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case pos.IsInvalidState(err) || errors.Is(err, pos.ErrReferenced):
		writeError(w, http.StatusConflict, err.Error(), nil)
	case pos.IsValidation(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}
