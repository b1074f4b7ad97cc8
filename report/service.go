/*
Package report builds read-only summaries on top of the store.

PURPOSE:

	Aggregates sales totals, surfaces low-stock products, audits the
	ledger against stored stock, and exports movements as CSV. Nothing
	here mutates state.

SEE ALSO:
  - store/sqlite/sqlite.go: The queries these reports lean on
*/
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tillworks/pos-engine/pos"
	"github.com/tillworks/pos-engine/store/sqlite"
)

// Service produces reports from the store.
type Service struct {
	store *sqlite.Store
}

// NewService creates a report service backed by the given store.
func NewService(store *sqlite.Store) *Service {
	return &Service{store: store}
}

// SalesSummary aggregates completed sales within [from, to].
type SalesSummary struct {
	From          time.Time       `json:"from"`
	To            time.Time       `json:"to"`
	SaleCount     int             `json:"sale_count"`
	GrossSubtotal decimal.Decimal `json:"gross_subtotal"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	TotalTax      decimal.Decimal `json:"total_tax"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	ItemsSold     int             `json:"items_sold"`
}

// SalesSummary sums completed sales in the period. Cancelled and
// refunded sales are excluded.
func (s *Service) SalesSummary(ctx context.Context, from, to time.Time) (*SalesSummary, error) {
	sales, err := s.store.ListSales(ctx, sqlite.SaleFilter{
		From:   &from,
		To:     &to,
		Status: pos.SaleCompleted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sales for summary: %w", err)
	}

	summary := &SalesSummary{
		From:          from,
		To:            to,
		GrossSubtotal: decimal.Zero,
		TotalDiscount: decimal.Zero,
		TotalTax:      decimal.Zero,
		TotalRevenue:  decimal.Zero,
	}
	for i := range sales {
		sale, err := s.store.GetSale(ctx, sales[i].ID)
		if err != nil {
			return nil, err
		}
		summary.SaleCount++
		summary.GrossSubtotal = summary.GrossSubtotal.Add(sale.Subtotal)
		summary.TotalDiscount = summary.TotalDiscount.Add(sale.DiscountAmount)
		summary.TotalTax = summary.TotalTax.Add(sale.TaxAmount)
		summary.TotalRevenue = summary.TotalRevenue.Add(sale.TotalAmount)
		for _, item := range sale.Items {
			summary.ItemsSold += item.Quantity
		}
	}
	return summary, nil
}

// ReconciliationRow is one product's audit line. Consistent is false
// when the stored stock differs from the ledger sum, which happens only
// after a floor clamp.
type ReconciliationRow struct {
	ProductID     pos.ProductID `json:"product_id"`
	Barcode       string        `json:"barcode"`
	Name          string        `json:"name"`
	StockQuantity int           `json:"stock_quantity"`
	LedgerSum     int           `json:"ledger_sum"`
	Consistent    bool          `json:"consistent"`
}

// Reconciliation audits every product's stock against its ledger.
func (s *Service) Reconciliation(ctx context.Context) ([]ReconciliationRow, error) {
	rows, err := s.store.StockReconciliation(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile stock: %w", err)
	}

	result := make([]ReconciliationRow, 0, len(rows))
	for _, r := range rows {
		result = append(result, ReconciliationRow{
			ProductID:     r.ProductID,
			Barcode:       r.Barcode,
			Name:          r.Name,
			StockQuantity: r.StockQuantity,
			LedgerSum:     r.LedgerSum,
			Consistent:    r.StockQuantity == r.LedgerSum,
		})
	}
	return result, nil
}

// LowStock returns active products at or below their reorder threshold.
func (s *Service) LowStock(ctx context.Context) ([]pos.Product, error) {
	return s.store.ListLowStock(ctx)
}

// ExportMovementsCSV writes the movement ledger (newest-first) as CSV.
// productID narrows to one product; nil exports everything.
func (s *Service) ExportMovementsCSV(ctx context.Context, w io.Writer, productID *pos.ProductID) error {
	movements, err := s.store.ListMovements(ctx, productID, 0)
	if err != nil {
		return fmt.Errorf("failed to list movements for export: %w", err)
	}

	cw := csv.NewWriter(w)
	header := []string{"id", "product_id", "movement_type", "quantity",
		"reference_type", "reference_id", "notes", "created_by", "created_at"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, m := range movements {
		record := []string{
			strconv.FormatInt(int64(m.ID), 10),
			strconv.FormatInt(int64(m.ProductID), 10),
			string(m.Type),
			strconv.Itoa(m.Quantity),
			string(m.Reference.Kind),
			strconv.FormatInt(m.Reference.ID, 10),
			m.Notes,
			strconv.FormatInt(int64(m.CreatedBy), 10),
			m.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
