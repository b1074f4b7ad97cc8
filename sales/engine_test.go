package sales_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tillworks/pos-engine/pos"
	"github.com/tillworks/pos-engine/sales"
	"github.com/tillworks/pos-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fixture struct {
	store   *sqlite.Store
	engine  *sales.Engine
	cashier pos.UserID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cashier := &pos.User{Name: "Ira", Role: "cashier", IsActive: true}
	require.NoError(t, store.SaveUser(context.Background(), cashier))

	return &fixture{
		store:   store,
		engine:  sales.NewEngine(store),
		cashier: cashier.ID,
	}
}

func (f *fixture) addProduct(t *testing.T, barcode, name, price string, stock int) pos.ProductID {
	t.Helper()
	ctx := context.Background()
	cat := &pos.Category{Name: "General " + barcode}
	require.NoError(t, f.store.SaveCategory(ctx, cat))
	p := &pos.Product{
		Barcode:       barcode,
		Name:          name,
		CategoryID:    cat.ID,
		PurchasePrice: pos.Money("1.00"),
		SellingPrice:  pos.Money(price),
		StockQuantity: stock,
		MinimumStock:  2,
		IsActive:      true,
	}
	require.NoError(t, f.store.SaveProduct(ctx, p))
	return p.ID
}

func (f *fixture) stockOf(t *testing.T, id pos.ProductID) int {
	t.Helper()
	p, err := f.store.GetProduct(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p.StockQuantity
}

func money(s string) decimal.Decimal { return pos.Money(s) }

// =============================================================================
// CREATE SALE
// =============================================================================

func TestCreateSale_MultiLine_TotalsStockAndLedger(t *testing.T) {
	// GIVEN: Coffee at 3.50 (stock 10) and a muffin at 2.25 (stock 8)
	// WHEN: Selling 2 coffees and 1 muffin with 0.50 discount and 0.74 tax,
	//       paying 10.00 cash
	// THEN: Totals: subtotal 9.25, total 9.49, change 0.51; stock drops to
	//       8 and 7; one "out" ledger row per line referencing the sale

	ctx := context.Background()
	f := newFixture(t)
	coffee := f.addProduct(t, "C-1", "Coffee", "3.50", 10)
	muffin := f.addProduct(t, "M-1", "Muffin", "2.25", 8)

	sale, err := f.engine.CreateSale(ctx, sales.CreateSaleInput{
		CashierID: f.cashier,
		Lines: []sales.Line{
			{ProductID: coffee, Quantity: 2},
			{ProductID: muffin, Quantity: 1},
		},
		DiscountAmount: money("0.50"),
		TaxAmount:      money("0.74"),
		PaymentMethod:  pos.PayCash,
		AmountPaid:     money("10.00"),
	})
	require.NoError(t, err)

	assert.True(t, sale.Subtotal.Equal(money("9.25")), "subtotal %s", sale.Subtotal)
	assert.True(t, sale.TotalAmount.Equal(money("9.49")), "total %s", sale.TotalAmount)
	assert.True(t, sale.ChangeAmount.Equal(money("0.51")), "change %s", sale.ChangeAmount)
	assert.Equal(t, pos.SaleCompleted, sale.Status)
	assert.NotEmpty(t, sale.TransactionNumber)
	require.Len(t, sale.Items, 2)

	// Display fields snapshotted from the catalog
	assert.Equal(t, "Coffee", sale.Items[0].ProductName)
	assert.Equal(t, "C-1", sale.Items[0].Barcode)
	assert.True(t, sale.Items[0].UnitPrice.Equal(money("3.50")))

	assert.Equal(t, 8, f.stockOf(t, coffee))
	assert.Equal(t, 7, f.stockOf(t, muffin))

	movements, err := f.store.ListMovements(ctx, &coffee, 0)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, pos.MovementOut, movements[0].Type)
	assert.Equal(t, -2, movements[0].Quantity)
	assert.Equal(t, pos.SaleRef(sale.ID), movements[0].Reference)
}

func TestCreateSale_ExactPayment_ZeroChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	coffee := f.addProduct(t, "C-1", "Coffee", "3.50", 10)

	sale, err := f.engine.CreateSale(ctx, sales.CreateSaleInput{
		CashierID:     f.cashier,
		Lines:         []sales.Line{{ProductID: coffee, Quantity: 1}},
		PaymentMethod: pos.PayCard,
		AmountPaid:    money("3.50"),
	})
	require.NoError(t, err)
	assert.True(t, sale.ChangeAmount.IsZero())
}

func TestCreateSale_InsufficientStock_NothingWritten(t *testing.T) {
	// GIVEN: Stock of 3
	// WHEN: Selling 5
	// THEN: Typed stock error; no sale, no movement, stock unchanged

	ctx := context.Background()
	f := newFixture(t)
	coffee := f.addProduct(t, "C-1", "Coffee", "3.50", 3)

	_, err := f.engine.CreateSale(ctx, sales.CreateSaleInput{
		CashierID:     f.cashier,
		Lines:         []sales.Line{{ProductID: coffee, Quantity: 5}},
		PaymentMethod: pos.PayCash,
		AmountPaid:    money("20.00"),
	})
	var stockErr *pos.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 3, stockErr.Available)
	assert.Equal(t, 5, stockErr.Requested)

	assert.Equal(t, 3, f.stockOf(t, coffee))
	list, err := f.store.ListSales(ctx, sqlite.SaleFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateSale_RepeatedProductExceedsStock_Rejected(t *testing.T) {
	// GIVEN: Stock of 5
	// WHEN: Selling the same product on two lines of 3 each
	// THEN: The second line sees only the 2 units left after the first;
	//       typed stock error, no sale, stock unchanged

	ctx := context.Background()
	f := newFixture(t)
	coffee := f.addProduct(t, "C-1", "Coffee", "3.50", 5)

	_, err := f.engine.CreateSale(ctx, sales.CreateSaleInput{
		CashierID: f.cashier,
		Lines: []sales.Line{
			{ProductID: coffee, Quantity: 3},
			{ProductID: coffee, Quantity: 3},
		},
		PaymentMethod: pos.PayCash,
		AmountPaid:    money("25.00"),
	})
	var stockErr *pos.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, 3, stockErr.Requested)

	assert.Equal(t, 5, f.stockOf(t, coffee))
	movements, err := f.store.ListMovements(ctx, &coffee, 0)
	require.NoError(t, err)
	assert.Empty(t, movements)
}

func TestCreateSale_RepeatedProductWithinStock_Allowed(t *testing.T) {
	// GIVEN: Stock of 5
	// WHEN: Selling the same product on two lines of 2 and 3
	// THEN: The sale completes and stock lands at 0

	ctx := context.Background()
	f := newFixture(t)
	coffee := f.addProduct(t, "C-1", "Coffee", "3.50", 5)

	sale, err := f.engine.CreateSale(ctx, sales.CreateSaleInput{
		CashierID: f.cashier,
		Lines: []sales.Line{
			{ProductID: coffee, Quantity: 2},
			{ProductID: coffee, Quantity: 3},
		},
		PaymentMethod: pos.PayCash,
		AmountPaid:    money("17.50"),
	})
	require.NoError(t, err)
	require.Len(t, sale.Items, 2)
	assert.True(t, sale.Subtotal.Equal(money("17.50")), "subtotal %s", sale.Subtotal)
	assert.Equal(t, 0, f.stockOf(t, coffee))
}

func TestCreateSale_SecondLineFails_FirstLineRolledBack(t *testing.T) {
	// GIVEN: Two products, the second with too little stock
	// WHEN: A sale covering both fails on the second line
	// THEN: The first line's stock deduction is rolled back too

	ctx := context.Background()
	f := newFixture(t)
	coffee := f.addProduct(t, "C-1", "Coffee", "3.50", 10)
	muffin := f.addProduct(t, "M-1", "Muffin", "2.25", 1)

	_, err := f.engine.CreateSale(ctx, sales.CreateSaleInput{
		CashierID: f.cashier,
		Lines: []sales.Line{
			{ProductID: coffee, Quantity: 2},
			{ProductID: muffin, Quantity: 3},
		},
		PaymentMethod: pos.PayCash,
		AmountPaid:    money("50.00"),
	})
	require.Error(t, err)

	assert.Equal(t, 10, f.stockOf(t, coffee))
	assert.Equal(t, 1, f.stockOf(t, muffin))

	movements, err := f.store.ListMovements(ctx, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, movements)
}

func TestCreateSale_InsufficientPayment_Rejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	coffee := f.addProduct(t, "C-1", "Coffee", "3.50", 10)

	_, err := f.engine.CreateSale(ctx, sales.CreateSaleInput{
		CashierID:     f.cashier,
		Lines:         []sales.Line{{ProductID: coffee, Quantity: 2}},
		PaymentMethod: pos.PayCash,
		AmountPaid:    money("5.00"),
	})
	var payErr *pos.InsufficientPaymentError
	require.ErrorAs(t, err, &payErr)
	assert.True(t, pos.IsValidation(err))
	assert.Equal(t, 10, f.stockOf(t, coffee))
}

func TestCreateSale_InactiveProduct_Rejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	coffee := f.addProduct(t, "C-1", "Coffee", "3.50", 10)

	product, err := f.store.GetProduct(ctx, coffee)
	require.NoError(t, err)
	product.IsActive = false
	require.NoError(t, f.store.UpdateProduct(ctx, product))

	_, err = f.engine.CreateSale(ctx, sales.CreateSaleInput{
		CashierID:     f.cashier,
		Lines:         []sales.Line{{ProductID: coffee, Quantity: 1}},
		PaymentMethod: pos.PayCash,
		AmountPaid:    money("5.00"),
	})
	var inactiveErr *pos.ProductInactiveError
	require.ErrorAs(t, err, &inactiveErr)
}

func TestCreateSale_UnknownCashier_NotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	coffee := f.addProduct(t, "C-1", "Coffee", "3.50", 10)

	_, err := f.engine.CreateSale(ctx, sales.CreateSaleInput{
		CashierID:     999,
		Lines:         []sales.Line{{ProductID: coffee, Quantity: 1}},
		PaymentMethod: pos.PayCash,
		AmountPaid:    money("5.00"),
	})
	require.Error(t, err)
	assert.True(t, pos.IsNotFound(err))
}

func TestCreateSale_EmptyLines_Rejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.CreateSale(context.Background(), sales.CreateSaleInput{
		CashierID:     f.cashier,
		PaymentMethod: pos.PayCash,
		AmountPaid:    money("5.00"),
	})
	require.ErrorIs(t, err, pos.ErrInvalidInput)
}

func TestCreateSale_UnknownPaymentMethod_Rejected(t *testing.T) {
	f := newFixture(t)
	coffee := f.addProduct(t, "C-1", "Coffee", "3.50", 10)
	_, err := f.engine.CreateSale(context.Background(), sales.CreateSaleInput{
		CashierID:     f.cashier,
		Lines:         []sales.Line{{ProductID: coffee, Quantity: 1}},
		PaymentMethod: pos.PaymentMethod("crypto"),
		AmountPaid:    money("5.00"),
	})
	require.ErrorIs(t, err, pos.ErrInvalidInput)
}

func TestCreateSale_ConcurrentOnSameProduct_NoOversell(t *testing.T) {
	// GIVEN: Stock of 5
	// WHEN: Two sales of 3 race
	// THEN: Exactly one wins; final stock is 2

	ctx := context.Background()
	f := newFixture(t)
	coffee := f.addProduct(t, "C-1", "Coffee", "3.50", 5)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.CreateSale(ctx, sales.CreateSaleInput{
				CashierID:     f.cashier,
				Lines:         []sales.Line{{ProductID: coffee, Quantity: 3}},
				PaymentMethod: pos.PayCash,
				AmountPaid:    money("20.00"),
			})
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			require.True(t, pos.IsValidation(err), "unexpected error: %v", err)
			failures++
		}
	}
	assert.Equal(t, 1, failures)
	assert.Equal(t, 2, f.stockOf(t, coffee))
}

// =============================================================================
// CANCEL SALE
// =============================================================================

func (f *fixture) completedSale(t *testing.T, productID pos.ProductID, qty int) *pos.Sale {
	t.Helper()
	sale, err := f.engine.CreateSale(context.Background(), sales.CreateSaleInput{
		CashierID:     f.cashier,
		Lines:         []sales.Line{{ProductID: productID, Quantity: qty}},
		PaymentMethod: pos.PayCash,
		AmountPaid:    money("100.00"),
	})
	require.NoError(t, err)
	return sale
}

func TestCancelSale_RestocksAndMarksCancelled(t *testing.T) {
	// GIVEN: A completed sale of 4 units (stock 10 -> 6)
	// WHEN: A manager cancels it
	// THEN: Stock returns to 10, the sale is cancelled with audit fields,
	//       and the ledger holds both the out and the in row

	ctx := context.Background()
	f := newFixture(t)
	coffee := f.addProduct(t, "C-1", "Coffee", "3.50", 10)
	sale := f.completedSale(t, coffee, 4)
	require.Equal(t, 6, f.stockOf(t, coffee))

	manager := &pos.User{Name: "Mo", Role: "manager", IsActive: true}
	require.NoError(t, f.store.SaveUser(ctx, manager))

	cancelled, err := f.engine.CancelSale(ctx, sale.ID, manager.ID, "customer returned order")
	require.NoError(t, err)
	assert.Equal(t, pos.SaleCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledBy)
	assert.Equal(t, manager.ID, *cancelled.CancelledBy)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, "customer returned order", cancelled.CancellationReason)

	assert.Equal(t, 10, f.stockOf(t, coffee))

	movements, err := f.store.ListMovements(ctx, &coffee, 0)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	// Newest first: the restock, then the original deduction
	assert.Equal(t, pos.MovementIn, movements[0].Type)
	assert.Equal(t, 4, movements[0].Quantity)
	assert.Equal(t, pos.MovementOut, movements[1].Type)
	assert.Equal(t, -4, movements[1].Quantity)
	assert.Equal(t, pos.SaleRef(sale.ID), movements[0].Reference)

	// Sale plus cancellation nets out to zero in the ledger
	rows, err := f.store.StockReconciliation(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 0, rows[0].LedgerSum)
}

func TestCancelSale_Twice_InvalidState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	coffee := f.addProduct(t, "C-1", "Coffee", "3.50", 10)
	sale := f.completedSale(t, coffee, 2)

	_, err := f.engine.CancelSale(ctx, sale.ID, f.cashier, "first")
	require.NoError(t, err)

	_, err = f.engine.CancelSale(ctx, sale.ID, f.cashier, "second")
	var stateErr *pos.InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.True(t, pos.IsInvalidState(err))

	// No double restock
	assert.Equal(t, 10, f.stockOf(t, coffee))
}

func TestCancelSale_UnknownSale_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.CancelSale(context.Background(), 42, f.cashier, "")
	require.ErrorIs(t, err, pos.ErrSaleNotFound)
}

func TestCancelSale_UnknownActor_NotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	coffee := f.addProduct(t, "C-1", "Coffee", "3.50", 10)
	sale := f.completedSale(t, coffee, 1)

	_, err := f.engine.CancelSale(ctx, sale.ID, 999, "")
	require.Error(t, err)
	assert.True(t, pos.IsNotFound(err))
	assert.Equal(t, 9, f.stockOf(t, coffee))
}
