/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:

	Defines the JSON structures for API communication. These types decouple
	the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:

	Amounts travel as JSON strings ("19.99") via decimal.Decimal's own
	marshaling, never as floats.

VALIDATION:

	Validation is done in handlers and engines, not in DTOs. DTOs are
	pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - pos/types.go: Domain model these map to
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tillworks/pos-engine/pos"
	"github.com/tillworks/pos-engine/purchasing"
	"github.com/tillworks/pos-engine/sales"
)

// =============================================================================
// PRODUCTS
// =============================================================================

// ProductDTO represents a product in API responses.
type ProductDTO struct {
	ID            pos.ProductID   `json:"id"`
	Barcode       string          `json:"barcode"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	CategoryID    pos.CategoryID  `json:"category_id"`
	SupplierID    *pos.SupplierID `json:"supplier_id,omitempty"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	StockQuantity int             `json:"stock_quantity"`
	MinimumStock  int             `json:"minimum_stock"`
	LowStock      bool            `json:"low_stock"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     string          `json:"created_at,omitempty"`
	UpdatedAt     string          `json:"updated_at,omitempty"`
}

// CreateProductRequest is the request to create a product.
type CreateProductRequest struct {
	Barcode       string          `json:"barcode"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	CategoryID    pos.CategoryID  `json:"category_id"`
	SupplierID    *pos.SupplierID `json:"supplier_id"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	StockQuantity int             `json:"stock_quantity"`
	MinimumStock  int             `json:"minimum_stock"`
}

// UpdateProductRequest is the request to update a product's catalog
// fields. Stock is not updatable here; use a stock adjustment.
type UpdateProductRequest struct {
	Barcode       string          `json:"barcode"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	CategoryID    pos.CategoryID  `json:"category_id"`
	SupplierID    *pos.SupplierID `json:"supplier_id"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	MinimumStock  int             `json:"minimum_stock"`
	IsActive      bool            `json:"is_active"`
}

// =============================================================================
// STOCK
// =============================================================================

// MovementDTO represents one ledger row in API responses.
type MovementDTO struct {
	ID            pos.MovementID    `json:"id"`
	ProductID     pos.ProductID     `json:"product_id"`
	MovementType  pos.MovementType  `json:"movement_type"`
	Quantity      int               `json:"quantity"`
	ReferenceType pos.ReferenceKind `json:"reference_type,omitempty"`
	ReferenceID   int64             `json:"reference_id,omitempty"`
	Notes         string            `json:"notes,omitempty"`
	CreatedBy     pos.UserID        `json:"created_by"`
	CreatedAt     string            `json:"created_at"`
}

// RecordMovementRequest records one raw stock movement. Quantity is a
// magnitude for in/out and a signed delta for adjustment.
type RecordMovementRequest struct {
	ProductID     pos.ProductID     `json:"product_id"`
	MovementType  pos.MovementType  `json:"movement_type"`
	Quantity      int               `json:"quantity"`
	ReferenceType pos.ReferenceKind `json:"reference_type"`
	ReferenceID   int64             `json:"reference_id"`
	Notes         string            `json:"notes"`
	CreatedBy     pos.UserID        `json:"created_by"`
}

// AdjustStockRequest sets a product's stock to an absolute level.
type AdjustStockRequest struct {
	ProductID      pos.ProductID `json:"product_id"`
	TargetQuantity int           `json:"target_quantity"`
	ActorID        pos.UserID    `json:"actor_id"`
	Notes          string        `json:"notes"`
}

// =============================================================================
// SALES
// =============================================================================

// SaleLineRequest is one line of a sale request. Barcode, product name
// and unit price are optional: when present they are denormalized onto
// the sale item as given (a non-zero unit_price is a manual price
// override), otherwise they are snapshotted from the product catalog.
type SaleLineRequest struct {
	ProductID   pos.ProductID   `json:"product_id"`
	Barcode     string          `json:"barcode,omitempty"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price,omitempty"`
}

// CreateSaleRequest is the request to ring up a sale.
type CreateSaleRequest struct {
	CashierID      pos.UserID        `json:"cashier_id"`
	Items          []SaleLineRequest `json:"items"`
	DiscountAmount decimal.Decimal   `json:"discount_amount"`
	TaxAmount      decimal.Decimal   `json:"tax_amount"`
	PaymentMethod  pos.PaymentMethod `json:"payment_method"`
	AmountPaid     decimal.Decimal   `json:"amount_paid"`
}

// CancelSaleRequest is the request to cancel a completed sale.
type CancelSaleRequest struct {
	CancelledBy pos.UserID `json:"cancelled_by"`
	Reason      string     `json:"reason"`
}

// SaleItemDTO represents one sale line in API responses.
type SaleItemDTO struct {
	ProductID   pos.ProductID   `json:"product_id"`
	Barcode     string          `json:"barcode"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// SaleDTO represents a sale in API responses.
type SaleDTO struct {
	ID                 pos.SaleID        `json:"id"`
	TransactionNumber  string            `json:"transaction_number"`
	CashierID          pos.UserID        `json:"cashier_id"`
	Subtotal           decimal.Decimal   `json:"subtotal"`
	DiscountAmount     decimal.Decimal   `json:"discount_amount"`
	TaxAmount          decimal.Decimal   `json:"tax_amount"`
	TotalAmount        decimal.Decimal   `json:"total_amount"`
	PaymentMethod      pos.PaymentMethod `json:"payment_method"`
	AmountPaid         decimal.Decimal   `json:"amount_paid"`
	ChangeAmount       decimal.Decimal   `json:"change_amount"`
	Status             pos.SaleStatus    `json:"status"`
	CancelledBy        *pos.UserID       `json:"cancelled_by,omitempty"`
	CancelledAt        string            `json:"cancelled_at,omitempty"`
	CancellationReason string            `json:"cancellation_reason,omitempty"`
	Items              []SaleItemDTO     `json:"items,omitempty"`
	CreatedAt          string            `json:"created_at"`
}

// =============================================================================
// PURCHASES
// =============================================================================

// PurchaseLineRequest is one line of a purchase request.
type PurchaseLineRequest struct {
	ProductID pos.ProductID   `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

// CreatePurchaseRequest is the request to receive a purchase.
type CreatePurchaseRequest struct {
	SupplierID pos.SupplierID        `json:"supplier_id"`
	Items      []PurchaseLineRequest `json:"items"`
	CreatedBy  pos.UserID            `json:"created_by"`
}

// PurchaseItemDTO represents one purchase line in API responses.
type PurchaseItemDTO struct {
	ProductID pos.ProductID   `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

// PurchaseDTO represents a purchase in API responses.
type PurchaseDTO struct {
	ID             pos.PurchaseID     `json:"id"`
	PurchaseNumber string             `json:"purchase_number"`
	SupplierID     pos.SupplierID     `json:"supplier_id"`
	TotalAmount    decimal.Decimal    `json:"total_amount"`
	Status         pos.PurchaseStatus `json:"status"`
	CreatedBy      pos.UserID         `json:"created_by"`
	Items          []PurchaseItemDTO  `json:"items,omitempty"`
	CreatedAt      string             `json:"created_at"`
}

// =============================================================================
// CATALOG / ACTORS
// =============================================================================

// CategoryRequest creates or updates a category.
type CategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// SupplierRequest creates a supplier.
type SupplierRequest struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// UserRequest creates a user.
type UserRequest struct {
	Name     string `json:"name"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

// ErrorResponse is the shape of all error bodies.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// MAPPERS
// =============================================================================

func toProductDTO(p *pos.Product) ProductDTO {
	return ProductDTO{
		ID:            p.ID,
		Barcode:       p.Barcode,
		Name:          p.Name,
		Description:   p.Description,
		CategoryID:    p.CategoryID,
		SupplierID:    p.SupplierID,
		PurchasePrice: p.PurchasePrice,
		SellingPrice:  p.SellingPrice,
		StockQuantity: p.StockQuantity,
		MinimumStock:  p.MinimumStock,
		LowStock:      p.LowStock(),
		IsActive:      p.IsActive,
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     p.UpdatedAt.Format(time.RFC3339),
	}
}

func toMovementDTO(m *pos.StockMovement) MovementDTO {
	return MovementDTO{
		ID:            m.ID,
		ProductID:     m.ProductID,
		MovementType:  m.Type,
		Quantity:      m.Quantity,
		ReferenceType: m.Reference.Kind,
		ReferenceID:   m.Reference.ID,
		Notes:         m.Notes,
		CreatedBy:     m.CreatedBy,
		CreatedAt:     m.CreatedAt.Format(time.RFC3339Nano),
	}
}

func toSaleDTO(s *pos.Sale) SaleDTO {
	dto := SaleDTO{
		ID:                 s.ID,
		TransactionNumber:  s.TransactionNumber,
		CashierID:          s.CashierID,
		Subtotal:           s.Subtotal,
		DiscountAmount:     s.DiscountAmount,
		TaxAmount:          s.TaxAmount,
		TotalAmount:        s.TotalAmount,
		PaymentMethod:      s.PaymentMethod,
		AmountPaid:         s.AmountPaid,
		ChangeAmount:       s.ChangeAmount,
		Status:             s.Status,
		CancelledBy:        s.CancelledBy,
		CancellationReason: s.CancellationReason,
		CreatedAt:          s.CreatedAt.Format(time.RFC3339),
	}
	if s.CancelledAt != nil {
		dto.CancelledAt = s.CancelledAt.Format(time.RFC3339)
	}
	for _, item := range s.Items {
		dto.Items = append(dto.Items, SaleItemDTO{
			ProductID:   item.ProductID,
			Barcode:     item.Barcode,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			TotalPrice:  item.TotalPrice,
		})
	}
	return dto
}

func toPurchaseDTO(p *pos.Purchase) PurchaseDTO {
	dto := PurchaseDTO{
		ID:             p.ID,
		PurchaseNumber: p.PurchaseNumber,
		SupplierID:     p.SupplierID,
		TotalAmount:    p.TotalAmount,
		Status:         p.Status,
		CreatedBy:      p.CreatedBy,
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
	}
	for _, item := range p.Items {
		dto.Items = append(dto.Items, PurchaseItemDTO{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitCost:  item.UnitCost,
			TotalCost: item.TotalCost,
		})
	}
	return dto
}

func toSaleLines(items []SaleLineRequest) []sales.Line {
	lines := make([]sales.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, sales.Line{
			ProductID:   item.ProductID,
			Barcode:     item.Barcode,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	return lines
}

func toPurchaseLines(items []PurchaseLineRequest) []purchasing.Line {
	lines := make([]purchasing.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, purchasing.Line{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitCost:  item.UnitCost,
		})
	}
	return lines
}
