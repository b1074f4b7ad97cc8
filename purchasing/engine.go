/*
Package purchasing implements the purchase receipt engine.

PURPOSE:

	Records stock received from a supplier: validates supplier and product
	existence, computes the order total, persists the purchase aggregate,
	and delegates one "in" movement per line to the inventory engine -
	all inside a single storage transaction.

	Purchases only add stock, so there is no sufficiency check. A purchase
	is created directly in "completed"; pending and cancelled are reserved
	states with no transition logic.
*/
package purchasing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tillworks/pos-engine/inventory"
	"github.com/tillworks/pos-engine/pos"
)

// Line is one requested purchase line.
type Line struct {
	ProductID pos.ProductID
	Quantity  int
	UnitCost  decimal.Decimal
}

// CreatePurchaseInput carries a supplier delivery to record.
type CreatePurchaseInput struct {
	SupplierID pos.SupplierID
	Lines      []Line
	CreatedBy  pos.UserID
}

// Engine records purchase receipts.
type Engine struct {
	store pos.Store
	now   func() time.Time
}

func NewEngine(store pos.Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

// CreatePurchase validates and persists a multi-line purchase. A failure
// on any line (e.g. an unknown product) rolls back the whole receipt:
// no purchase row, no items, no movements, no stock change.
func (e *Engine) CreatePurchase(ctx context.Context, in CreatePurchaseInput) (*pos.Purchase, error) {
	if len(in.Lines) == 0 {
		return nil, fmt.Errorf("%w: purchase requires at least one line item", pos.ErrInvalidInput)
	}

	var purchase *pos.Purchase
	err := e.store.WithTx(ctx, func(tx pos.Tx) error {
		creator, err := tx.GetUser(ctx, in.CreatedBy)
		if err != nil {
			return err
		}
		if creator == nil {
			return &pos.ActorNotFoundError{Role: "creator", ID: in.CreatedBy}
		}

		supplier, err := tx.GetSupplier(ctx, in.SupplierID)
		if err != nil {
			return err
		}
		if supplier == nil {
			return fmt.Errorf("%w: supplier %d", pos.ErrSupplierNotFound, in.SupplierID)
		}

		total := decimal.Zero
		items := make([]pos.PurchaseItem, 0, len(in.Lines))
		for _, line := range in.Lines {
			if line.Quantity <= 0 {
				return fmt.Errorf("%w: line quantity must be positive", pos.ErrInvalidQuantity)
			}
			product, err := tx.GetProduct(ctx, line.ProductID)
			if err != nil {
				return err
			}
			if product == nil {
				return &pos.ProductNotFoundError{ID: line.ProductID}
			}

			lineTotal := line.UnitCost.Mul(decimal.NewFromInt(int64(line.Quantity)))
			total = total.Add(lineTotal)
			items = append(items, pos.PurchaseItem{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				UnitCost:  line.UnitCost,
				TotalCost: pos.Round2(lineTotal),
			})
		}

		purchase = &pos.Purchase{
			PurchaseNumber: pos.NewPurchaseNumber(),
			SupplierID:     in.SupplierID,
			TotalAmount:    pos.Round2(total),
			Status:         pos.PurchaseCompleted,
			CreatedBy:      in.CreatedBy,
			CreatedAt:      e.now().UTC(),
			Items:          items,
		}
		if err := tx.InsertPurchase(ctx, purchase); err != nil {
			return err
		}

		for _, item := range purchase.Items {
			if _, err := inventory.Apply(ctx, tx, inventory.Input{
				ProductID: item.ProductID,
				Type:      pos.MovementIn,
				Quantity:  item.Quantity,
				Reference: pos.PurchaseRef(purchase.ID),
				Notes:     fmt.Sprintf("purchase %s", purchase.PurchaseNumber),
				CreatedBy: in.CreatedBy,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return purchase, nil
}
