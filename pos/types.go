/*
Package pos provides the shared domain model for the point-of-sale backend.

PURPOSE:

	This package contains the types every engine operates on: products,
	stock movements, sales, purchases, and the actors that touch them.
	It has no persistence logic and no HTTP logic - those live in
	store/sqlite and api respectively.

KEY CONCEPTS IN THIS FILE (types.go):
  - StockMovement: An immutable ledger entry recording a stock delta
  - Reference: A tagged link from a movement to its originating document
  - Sale/SaleItem, Purchase/PurchaseItem: Transaction aggregates

DESIGN PRINCIPLES:
 1. Immutability: Stock movements are never modified, only appended
 2. Precision: Uses decimal.Decimal for money to avoid float errors
 3. Type Safety: Strong typing for IDs prevents mixing product/sale IDs
 4. Auditability: Every movement carries actor, reference, and timestamp

SIGN CONVENTION:

	The movement type determines the sign of the applied delta. The
	Quantity field of a stored StockMovement is always the signed delta:
	positive for "in", negative for "out", either sign for "adjustment".
	Callers of the movement engine pass a non-negative magnitude for
	in/out and a signed delta for adjustment; see inventory.Apply.

SEE ALSO:
  - errors.go: Error taxonomy shared by all engines
  - store.go: Persistence interfaces implemented by store/sqlite
*/
package pos

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ProductID int64
type CategoryID int64
type SupplierID int64
type UserID int64
type SaleID int64
type PurchaseID int64
type MovementID int64

// =============================================================================
// STOCK MOVEMENTS - Append-only inventory ledger
// =============================================================================

type MovementType string

const (
	MovementIn         MovementType = "in"         // Stock received (purchase, sale cancellation)
	MovementOut        MovementType = "out"        // Stock removed (sale)
	MovementAdjustment MovementType = "adjustment" // Manual correction, signed delta
)

// Valid reports whether t is one of the known movement types.
func (t MovementType) Valid() bool {
	switch t {
	case MovementIn, MovementOut, MovementAdjustment:
		return true
	}
	return false
}

// ReferenceKind tags what kind of document a movement points at.
type ReferenceKind string

const (
	RefNone       ReferenceKind = ""
	RefSale       ReferenceKind = "sale"
	RefPurchase   ReferenceKind = "purchase"
	RefAdjustment ReferenceKind = "adjustment"
)

// Reference is a tagged link from a stock movement to the sale or
// purchase that caused it. A zero Reference means the movement stands
// alone (direct stock entry). Modeled as a variant rather than a bare
// nullable foreign key so the link can never be ambiguous.
type Reference struct {
	Kind ReferenceKind
	ID   int64 // SaleID or PurchaseID depending on Kind; 0 when unset
}

func SaleRef(id SaleID) Reference         { return Reference{Kind: RefSale, ID: int64(id)} }
func PurchaseRef(id PurchaseID) Reference { return Reference{Kind: RefPurchase, ID: int64(id)} }
func AdjustmentRef() Reference            { return Reference{Kind: RefAdjustment} }

func (r Reference) IsZero() bool { return r.Kind == RefNone && r.ID == 0 }

// StockMovement is one immutable row in the inventory ledger.
//
// INVARIANTS:
//   - Append-only: once written, never updated or deleted
//   - Quantity is the signed requested delta (see package doc); if the
//     stock floor clamped the applied change, the row still records the
//     requested delta so the audit trail reflects intent
//   - Summing Quantity per product reconciles with Product.StockQuantity
//     unless a clamp occurred (report.Reconciliation surfaces drift)
type StockMovement struct {
	ID        MovementID
	ProductID ProductID
	Type      MovementType
	Quantity  int // signed delta
	Reference Reference
	Notes     string
	CreatedBy UserID
	CreatedAt time.Time
}

// =============================================================================
// CATALOG
// =============================================================================

// Product is a sellable item. StockQuantity is mutated exclusively by
// the stock movement engine, in lockstep with a ledger append, and is
// never negative.
type Product struct {
	ID            ProductID
	Barcode       string
	Name          string
	Description   string
	CategoryID    CategoryID
	SupplierID    *SupplierID
	PurchasePrice decimal.Decimal
	SellingPrice  decimal.Decimal
	StockQuantity int
	MinimumStock  int
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// LowStock reports whether the product is at or below its reorder threshold.
func (p *Product) LowStock() bool { return p.StockQuantity <= p.MinimumStock }

type Category struct {
	ID          CategoryID
	Name        string
	Description string
	CreatedAt   time.Time
}

type Supplier struct {
	ID        SupplierID
	Name      string
	Contact   string
	Phone     string
	Email     string
	Address   string
	CreatedAt time.Time
}

// User is an actor: a cashier, manager, or admin. Only existence checks
// matter to the engines; authentication is out of scope here.
type User struct {
	ID        UserID
	Name      string
	Role      string
	IsActive  bool
	CreatedAt time.Time
}

// =============================================================================
// SALES
// =============================================================================

type PaymentMethod string

const (
	PayCash  PaymentMethod = "cash"
	PayCard  PaymentMethod = "card"
	PayMixed PaymentMethod = "mixed"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PayCash, PayCard, PayMixed:
		return true
	}
	return false
}

type SaleStatus string

const (
	SaleCompleted SaleStatus = "completed"
	SaleCancelled SaleStatus = "cancelled"
	SaleRefunded  SaleStatus = "refunded"
)

// Sale is a completed checkout transaction.
//
// INVARIANTS:
//   - TotalAmount = Subtotal - DiscountAmount + TaxAmount
//   - ChangeAmount = AmountPaid - TotalAmount, >= 0 at creation
//   - Status only ever transitions completed -> cancelled, one-way
type Sale struct {
	ID                 SaleID
	TransactionNumber  string
	CashierID          UserID
	Subtotal           decimal.Decimal
	DiscountAmount     decimal.Decimal
	TaxAmount          decimal.Decimal
	TotalAmount        decimal.Decimal
	PaymentMethod      PaymentMethod
	AmountPaid         decimal.Decimal
	ChangeAmount       decimal.Decimal
	Status             SaleStatus
	CancelledBy        *UserID
	CancelledAt        *time.Time
	CancellationReason string
	CreatedAt          time.Time
	UpdatedAt          time.Time

	Items []SaleItem
}

// SaleItem is one line of a sale. Barcode and ProductName are captured
// at sale time rather than joined live, so the record stays historically
// accurate if the product is later renamed.
type SaleItem struct {
	ID          int64
	SaleID      SaleID
	ProductID   ProductID
	Barcode     string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
}

// =============================================================================
// PURCHASES
// =============================================================================

type PurchaseStatus string

const (
	PurchasePending   PurchaseStatus = "pending"
	PurchaseCompleted PurchaseStatus = "completed"
	PurchaseCancelled PurchaseStatus = "cancelled"
)

// Purchase is a stock receipt from a supplier. It is created in the
// completed state; pending and cancelled are reserved states with no
// transition logic.
type Purchase struct {
	ID             PurchaseID
	PurchaseNumber string
	SupplierID     SupplierID
	TotalAmount    decimal.Decimal
	Status         PurchaseStatus
	CreatedBy      UserID
	CreatedAt      time.Time

	Items []PurchaseItem
}

type PurchaseItem struct {
	ID         int64
	PurchaseID PurchaseID
	ProductID  ProductID
	Quantity   int
	UnitCost   decimal.Decimal
	TotalCost  decimal.Decimal
}

// =============================================================================
// MONEY HELPERS
// =============================================================================

// Money parses a decimal string, returning zero on failure. Intended for
// constants in tests and seed data, not for request input.
func Money(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Round2 normalizes a monetary amount to 2 fractional digits.
func Round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }
