/*
store.go - Persistence interfaces between the engines and the database

PURPOSE:

	Defines the narrow surface the engines are allowed to touch. The
	concrete implementation lives in store/sqlite; the engines never see
	database/sql directly.

KEY INTERFACES:

	Tx:    The operation set available inside one atomic unit of work.
	Store: Tx plus WithTx, the transactional boundary.

ATOMICITY CONTRACT:

	Every engine operation (create sale, receive purchase, cancel sale,
	record movement) runs inside exactly one WithTx scope. The Tx handed
	to the callback sees its own uncommitted writes; if the callback
	returns an error, nothing it did is observable afterwards.

APPEND-ONLY CONTRACT:

	AppendMovement is the only write to the stock ledger. There is no
	update or delete for movements - corrections are new movements.
	UpdateProductStock may ONLY be called alongside an AppendMovement in
	the same Tx; the inventory engine is the sole caller of either.

CONCURRENCY:

	WithTx serializes writers. Two concurrent sales of the same product
	therefore cannot both pass the stock check against a stale read: the
	second transaction observes the first one's decrement.

SEE ALSO:
  - store/sqlite/sqlite.go: Concrete implementation
  - inventory/engine.go: The one caller of the stock-mutation pair
*/
package pos

import (
	"context"
	"time"
)

// =============================================================================
// TX - Operations available inside one atomic transaction
// =============================================================================

// Tx is the storage surface the engines use inside WithTx. Reads reflect
// writes made earlier in the same transaction.
type Tx interface {
	// GetProduct returns the product or nil if it does not exist.
	GetProduct(ctx context.Context, id ProductID) (*Product, error)

	// UpdateProductStock sets the on-hand quantity. Only the inventory
	// engine calls this, paired with AppendMovement in the same Tx.
	UpdateProductStock(ctx context.Context, id ProductID, quantity int) error

	// AppendMovement inserts a ledger row. Assigns m.ID and m.CreatedAt.
	AppendMovement(ctx context.Context, m *StockMovement) error

	// GetUser returns the actor or nil if missing.
	GetUser(ctx context.Context, id UserID) (*User, error)

	// GetSupplier returns the supplier or nil if missing.
	GetSupplier(ctx context.Context, id SupplierID) (*Supplier, error)

	// InsertSale inserts the sale header and its items.
	// Assigns s.ID and the item SaleIDs.
	InsertSale(ctx context.Context, s *Sale) error

	// GetSale returns the sale with its items, or nil if missing.
	GetSale(ctx context.Context, id SaleID) (*Sale, error)

	// MarkSaleCancelled flips a sale to cancelled with audit metadata.
	MarkSaleCancelled(ctx context.Context, id SaleID, by UserID, at time.Time, reason string) error

	// InsertPurchase inserts the purchase header and its items.
	// Assigns p.ID and the item PurchaseIDs.
	InsertPurchase(ctx context.Context, p *Purchase) error
}

// =============================================================================
// STORE - Tx plus the transactional boundary
// =============================================================================

// Store is what the engines hold. Direct Tx methods run in implicit
// single-statement transactions; WithTx groups several into one.
type Store interface {
	Tx

	// WithTx executes fn within a transaction. If fn returns an error,
	// the transaction is rolled back; otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}
