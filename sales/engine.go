/*
Package sales implements the sale transaction and cancellation engines.

PURPOSE:

	Orchestrates multi-line checkouts: validates actor, products, stock,
	and payment; computes totals server-side; persists the sale aggregate;
	and delegates every stock mutation to the inventory engine - one "out"
	movement per line, all inside a single storage transaction.

STATE MACHINE:

	A sale is created directly in "completed". The only transition is
	completed -> cancelled, performed by CancelSale, which restores stock
	with one "in" movement per line. There is no un-cancel.

ATOMICITY:

	Every precondition is checked before any write. A failure on line N of
	a multi-line sale leaves no sale row, no items, no movements, and no
	stock change from earlier lines - the whole operation is one WithTx.

SEE ALSO:
  - inventory: the only component that mutates stock
  - purchasing: mirror of this package for the supplier side
*/
package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tillworks/pos-engine/inventory"
	"github.com/tillworks/pos-engine/pos"
)

// Line is one requested sale line. Barcode, ProductName and UnitPrice
// are snapshotted from the product catalog when left empty; a non-zero
// UnitPrice overrides the catalog price (manual markdown). Line and
// sale totals are always recomputed here.
type Line struct {
	ProductID   pos.ProductID
	Barcode     string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// CreateSaleInput carries everything needed to ring up a sale.
type CreateSaleInput struct {
	CashierID      pos.UserID
	Lines          []Line
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	PaymentMethod  pos.PaymentMethod
	AmountPaid     decimal.Decimal
}

// Engine creates and cancels sales.
type Engine struct {
	store pos.Store
	now   func() time.Time
}

func NewEngine(store pos.Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

// CreateSale validates and persists a multi-line sale.
//
// Preconditions, checked in order, each failing fast with its own error:
//  1. cashier exists
//  2. per line: product exists, is active, has sufficient stock
//  3. amount paid covers subtotal - discount + tax
//
// Only after all checks pass does anything get written: the sale header
// and items, then one "out" movement per line.
func (e *Engine) CreateSale(ctx context.Context, in CreateSaleInput) (*pos.Sale, error) {
	if len(in.Lines) == 0 {
		return nil, fmt.Errorf("%w: sale requires at least one line item", pos.ErrInvalidInput)
	}
	if !in.PaymentMethod.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", pos.ErrInvalidInput, in.PaymentMethod)
	}
	if in.DiscountAmount.IsNegative() || in.TaxAmount.IsNegative() {
		return nil, fmt.Errorf("%w: discount and tax must not be negative", pos.ErrInvalidInput)
	}

	var sale *pos.Sale
	err := e.store.WithTx(ctx, func(tx pos.Tx) error {
		cashier, err := tx.GetUser(ctx, in.CashierID)
		if err != nil {
			return err
		}
		if cashier == nil {
			return &pos.ActorNotFoundError{Role: "cashier", ID: in.CashierID}
		}

		subtotal := decimal.Zero
		items := make([]pos.SaleItem, 0, len(in.Lines))
		// A product may appear on more than one line; sufficiency is
		// checked against the stock remaining after earlier lines of the
		// same sale, not the raw catalog quantity.
		remaining := make(map[pos.ProductID]int)
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
			if !product.IsActive {
				return &pos.ProductInactiveError{ID: product.ID, Name: product.Name}
			}
			available, seen := remaining[product.ID]
			if !seen {
				available = product.StockQuantity
			}
			if available < line.Quantity {
				return &pos.InsufficientStockError{
					ProductID: product.ID,
					Available: available,
					Requested: line.Quantity,
				}
			}
			remaining[product.ID] = available - line.Quantity

			barcode := line.Barcode
			if barcode == "" {
				barcode = product.Barcode
			}
			name := line.ProductName
			if name == "" {
				name = product.Name
			}
			unitPrice := line.UnitPrice
			if unitPrice.IsZero() {
				unitPrice = product.SellingPrice
			}

			lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
			subtotal = subtotal.Add(lineTotal)
			items = append(items, pos.SaleItem{
				ProductID:   line.ProductID,
				Barcode:     barcode,
				ProductName: name,
				Quantity:    line.Quantity,
				UnitPrice:   unitPrice,
				TotalPrice:  pos.Round2(lineTotal),
			})
		}

		subtotal = pos.Round2(subtotal)
		total := pos.Round2(subtotal.Sub(in.DiscountAmount).Add(in.TaxAmount))
		if in.AmountPaid.LessThan(total) {
			return &pos.InsufficientPaymentError{TotalAmount: total, AmountPaid: in.AmountPaid}
		}

		now := e.now().UTC()
		sale = &pos.Sale{
			TransactionNumber: pos.NewTransactionNumber(),
			CashierID:         in.CashierID,
			Subtotal:          subtotal,
			DiscountAmount:    pos.Round2(in.DiscountAmount),
			TaxAmount:         pos.Round2(in.TaxAmount),
			TotalAmount:       total,
			PaymentMethod:     in.PaymentMethod,
			AmountPaid:        pos.Round2(in.AmountPaid),
			ChangeAmount:      pos.Round2(in.AmountPaid.Sub(total)),
			Status:            pos.SaleCompleted,
			CreatedAt:         now,
			UpdatedAt:         now,
			Items:             items,
		}
		if err := tx.InsertSale(ctx, sale); err != nil {
			return err
		}

		for _, item := range sale.Items {
			if _, err := inventory.Apply(ctx, tx, inventory.Input{
				ProductID: item.ProductID,
				Type:      pos.MovementOut,
				Quantity:  item.Quantity,
				Reference: pos.SaleRef(sale.ID),
				Notes:     fmt.Sprintf("sale %s", sale.TransactionNumber),
				CreatedBy: in.CashierID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// CancelSale reverses a completed sale: restores stock per line via the
// inventory engine and marks the sale cancelled with audit metadata.
// Only completed sales can be cancelled; cancellation is one-way.
func (e *Engine) CancelSale(ctx context.Context, saleID pos.SaleID, cancelledBy pos.UserID, reason string) (*pos.Sale, error) {
	var cancelled *pos.Sale
	err := e.store.WithTx(ctx, func(tx pos.Tx) error {
		actor, err := tx.GetUser(ctx, cancelledBy)
		if err != nil {
			return err
		}
		if actor == nil {
			return &pos.ActorNotFoundError{Role: "canceller", ID: cancelledBy}
		}

		sale, err := tx.GetSale(ctx, saleID)
		if err != nil {
			return err
		}
		if sale == nil {
			return fmt.Errorf("%w: sale %d", pos.ErrSaleNotFound, saleID)
		}
		if sale.Status != pos.SaleCompleted {
			return &pos.InvalidStateError{SaleID: saleID, Status: sale.Status}
		}

		for _, item := range sale.Items {
			if _, err := inventory.Apply(ctx, tx, inventory.Input{
				ProductID: item.ProductID,
				Type:      pos.MovementIn,
				Quantity:  item.Quantity,
				Reference: pos.SaleRef(saleID),
				Notes:     fmt.Sprintf("restock from cancelled sale %s: %s", sale.TransactionNumber, reason),
				CreatedBy: cancelledBy,
			}); err != nil {
				return err
			}
		}

		now := e.now().UTC()
		if err := tx.MarkSaleCancelled(ctx, saleID, cancelledBy, now, reason); err != nil {
			return err
		}

		sale.Status = pos.SaleCancelled
		sale.CancelledBy = &cancelledBy
		sale.CancelledAt = &now
		sale.CancellationReason = reason
		sale.UpdatedAt = now
		cancelled = sale
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}
