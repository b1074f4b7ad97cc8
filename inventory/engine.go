/*
Package inventory implements the stock movement engine.

PURPOSE:

	The single component permitted to mutate a product's on-hand quantity.
	Every mutation is paired with an append to the stock ledger inside the
	same storage transaction, so current stock is always derivable from
	the movement history (modulo floor clamping, see below).

SIGN CONVENTION:

	The Quantity argument is a non-negative magnitude for "in" and "out"
	movements; the movement type supplies the sign. For "adjustment" it is
	a signed delta. The ledger row stores the signed requested delta in
	every case, so per-product sums reconcile with stock.

STOCK FLOOR:

	A delta that would push stock negative is silently clamped to zero.
	This is defined behavior, not an error: the ledger row still records
	the requested delta, and the reconciliation report surfaces the drift.

SEE ALSO:
  - pos/store.go: The Tx contract Apply operates on
  - sales, purchasing: call Apply once per line inside their own WithTx
*/
package inventory

import (
	"context"
	"fmt"

	"github.com/tillworks/pos-engine/pos"
)

// Input describes one stock delta to record against a product.
type Input struct {
	ProductID pos.ProductID
	Type      pos.MovementType
	Quantity  int // magnitude for in/out, signed delta for adjustment
	Reference pos.Reference
	Notes     string
	CreatedBy pos.UserID
}

// Engine records stock movements. It owns no state beyond the store.
type Engine struct {
	store pos.Store
}

func NewEngine(store pos.Store) *Engine {
	return &Engine{store: store}
}

// Record applies a single stock delta as its own atomic operation:
// stock update and ledger append land together or not at all.
func (e *Engine) Record(ctx context.Context, in Input) (*pos.StockMovement, error) {
	var mv *pos.StockMovement
	err := e.store.WithTx(ctx, func(tx pos.Tx) error {
		var err error
		mv, err = Apply(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return mv, nil
}

// AdjustTo sets a product's stock to exactly target by recording an
// adjustment movement for the difference. The delta computation and the
// movement share one transaction, so a concurrent mutation cannot slip
// between the read and the write.
//
// A negative target still floors at zero: the recorded movement carries
// the full negative delta, but the applied stock is clamped.
func (e *Engine) AdjustTo(ctx context.Context, productID pos.ProductID, target int, actorID pos.UserID, notes string) (*pos.StockMovement, error) {
	var mv *pos.StockMovement
	err := e.store.WithTx(ctx, func(tx pos.Tx) error {
		product, err := tx.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		if product == nil {
			return &pos.ProductNotFoundError{ID: productID}
		}

		delta := target - product.StockQuantity
		mv, err = Apply(ctx, tx, Input{
			ProductID: productID,
			Type:      pos.MovementAdjustment,
			Quantity:  delta,
			Reference: pos.AdjustmentRef(),
			Notes:     notes,
			CreatedBy: actorID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return mv, nil
}

// Apply validates and records one stock delta inside the caller's
// transaction. This is the only code path that touches
// UpdateProductStock or AppendMovement; the sale and purchase engines
// call it once per line from within their own WithTx scope.
func Apply(ctx context.Context, tx pos.Tx, in Input) (*pos.StockMovement, error) {
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown movement type %q", pos.ErrInvalidInput, in.Type)
	}

	product, err := tx.GetProduct(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, &pos.ProductNotFoundError{ID: in.ProductID}
	}

	var delta int
	switch in.Type {
	case pos.MovementIn:
		if in.Quantity <= 0 {
			return nil, fmt.Errorf("%w: %q movements require a positive quantity", pos.ErrInvalidQuantity, in.Type)
		}
		delta = in.Quantity
	case pos.MovementOut:
		if in.Quantity <= 0 {
			return nil, fmt.Errorf("%w: %q movements require a positive quantity", pos.ErrInvalidQuantity, in.Type)
		}
		delta = -in.Quantity
	case pos.MovementAdjustment:
		delta = in.Quantity
	}

	// Floor policy: stock never goes negative. The movement still records
	// the requested delta, not the clamped one.
	candidate := product.StockQuantity + delta
	if candidate < 0 {
		candidate = 0
	}

	if err := tx.UpdateProductStock(ctx, in.ProductID, candidate); err != nil {
		return nil, err
	}

	mv := &pos.StockMovement{
		ProductID: in.ProductID,
		Type:      in.Type,
		Quantity:  delta,
		Reference: in.Reference,
		Notes:     in.Notes,
		CreatedBy: in.CreatedBy,
	}
	if err := tx.AppendMovement(ctx, mv); err != nil {
		return nil, err
	}
	return mv, nil
}
