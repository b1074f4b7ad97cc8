/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:

	Implements pos.Store (and the read queries the API and reports need)
	using SQLite. In production the same patterns apply to PostgreSQL -
	only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:

	stock_movements has no UPDATE and no DELETE statements anywhere in
	this package. Corrections happen via new movements.

KEY TABLES:

	products:         Current on-hand stock (the one hot-updated field)
	stock_movements:  Immutable ledger of all stock changes
	sales/sale_items: Sale aggregates
	purchases/purchase_items: Purchase aggregates
	categories, suppliers, users: Catalog and actor records

CONCURRENCY:

	A sync.RWMutex serializes writers on top of SQLite's own single-writer
	model. WithTx holds the write lock for the whole unit of work, so two
	concurrent sales of the same product cannot interleave their stock
	read-modify-write. Internal helpers take a dbtx and never lock; only
	the exported methods do, so WithTx callbacks cannot deadlock.

WAL MODE:

	Opened with WAL and foreign keys on, as usual for this driver.

USAGE:

	store, err := sqlite.New("./data/pos.db")
	defer store.Close()
	engine := sales.NewEngine(store)

SEE ALSO:
  - pos/store.go: Interface definitions and the atomicity contract
  - inventory/engine.go: The only caller of the stock-mutation pair
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/tillworks/pos-engine/pos"
)

// Store implements pos.Store plus the read queries used by the API.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database (tests).
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent (each new
	// pool connection would otherwise see its own empty database) and
	// sidesteps SQLITE_BUSY between concurrent readers and the writer.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS suppliers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		contact TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'cashier',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		barcode TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category_id INTEGER NOT NULL REFERENCES categories(id),
		supplier_id INTEGER REFERENCES suppliers(id),
		purchase_price TEXT NOT NULL,
		selling_price TEXT NOT NULL,
		stock_quantity INTEGER NOT NULL DEFAULT 0 CHECK (stock_quantity >= 0),
		minimum_stock INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_products_category ON products(category_id);
	CREATE INDEX IF NOT EXISTS idx_products_supplier ON products(supplier_id);
	CREATE INDEX IF NOT EXISTS idx_products_active ON products(is_active);

	-- Stock movements (append-only ledger)
	CREATE TABLE IF NOT EXISTS stock_movements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL REFERENCES products(id),
		movement_type TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		reference_type TEXT NOT NULL DEFAULT '',
		reference_id INTEGER NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		created_by INTEGER NOT NULL REFERENCES users(id),
		created_at TEXT NOT NULL
	);

	-- Newest-first movement listing (hot path)
	CREATE INDEX IF NOT EXISTS idx_movements_product_created
		ON stock_movements(product_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_movements_reference
		ON stock_movements(reference_type, reference_id);

	CREATE TABLE IF NOT EXISTS sales (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		transaction_number TEXT NOT NULL UNIQUE,
		cashier_id INTEGER NOT NULL REFERENCES users(id),
		subtotal TEXT NOT NULL,
		discount_amount TEXT NOT NULL,
		tax_amount TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		amount_paid TEXT NOT NULL,
		change_amount TEXT NOT NULL,
		status TEXT NOT NULL,
		cancelled_by INTEGER REFERENCES users(id),
		cancelled_at TEXT,
		cancellation_reason TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sales_status ON sales(status);
	CREATE INDEX IF NOT EXISTS idx_sales_created ON sales(created_at);
	CREATE INDEX IF NOT EXISTS idx_sales_cashier ON sales(cashier_id);

	CREATE TABLE IF NOT EXISTS sale_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sale_id INTEGER NOT NULL REFERENCES sales(id),
		product_id INTEGER NOT NULL REFERENCES products(id),
		barcode TEXT NOT NULL DEFAULT '',
		product_name TEXT NOT NULL DEFAULT '',
		quantity INTEGER NOT NULL,
		unit_price TEXT NOT NULL,
		total_price TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items(sale_id);

	CREATE TABLE IF NOT EXISTS purchases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		purchase_number TEXT NOT NULL UNIQUE,
		supplier_id INTEGER NOT NULL REFERENCES suppliers(id),
		total_amount TEXT NOT NULL,
		status TEXT NOT NULL,
		created_by INTEGER NOT NULL REFERENCES users(id),
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_purchases_supplier ON purchases(supplier_id);

	CREATE TABLE IF NOT EXISTS purchase_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		purchase_id INTEGER NOT NULL REFERENCES purchases(id),
		product_id INTEGER NOT NULL REFERENCES products(id),
		quantity INTEGER NOT NULL,
		unit_cost TEXT NOT NULL,
		total_cost TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_purchase_items_purchase ON purchase_items(purchase_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx abstracts *sql.DB and *sql.Tx so every query helper can run both
// standalone and inside WithTx. Helpers never touch the mutex.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTIONAL BOUNDARY (pos.Store interface)
// =============================================================================

// WithTx executes fn within a database transaction. The write lock is
// held for the whole unit of work, serializing engine operations.
func (s *Store) WithTx(ctx context.Context, fn func(tx pos.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txView{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txView adapts an open *sql.Tx to the pos.Tx interface.
type txView struct {
	tx *sql.Tx
}

func (v *txView) GetProduct(ctx context.Context, id pos.ProductID) (*pos.Product, error) {
	return getProduct(ctx, v.tx, id)
}

func (v *txView) UpdateProductStock(ctx context.Context, id pos.ProductID, quantity int) error {
	return updateProductStock(ctx, v.tx, id, quantity)
}

func (v *txView) AppendMovement(ctx context.Context, m *pos.StockMovement) error {
	return appendMovement(ctx, v.tx, m)
}

func (v *txView) GetUser(ctx context.Context, id pos.UserID) (*pos.User, error) {
	return getUser(ctx, v.tx, id)
}

func (v *txView) GetSupplier(ctx context.Context, id pos.SupplierID) (*pos.Supplier, error) {
	return getSupplier(ctx, v.tx, id)
}

func (v *txView) InsertSale(ctx context.Context, sale *pos.Sale) error {
	return insertSale(ctx, v.tx, sale)
}

func (v *txView) GetSale(ctx context.Context, id pos.SaleID) (*pos.Sale, error) {
	return getSale(ctx, v.tx, id)
}

func (v *txView) MarkSaleCancelled(ctx context.Context, id pos.SaleID, by pos.UserID, at time.Time, reason string) error {
	return markSaleCancelled(ctx, v.tx, id, by, at, reason)
}

func (v *txView) InsertPurchase(ctx context.Context, p *pos.Purchase) error {
	return insertPurchase(ctx, v.tx, p)
}

// =============================================================================
// PRODUCTS
// =============================================================================

const productColumns = `id, barcode, name, description, category_id, supplier_id,
	purchase_price, selling_price, stock_quantity, minimum_stock, is_active,
	created_at, updated_at`

// GetProduct returns the product or nil if it does not exist.
func (s *Store) GetProduct(ctx context.Context, id pos.ProductID) (*pos.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getProduct(ctx, s.db, id)
}

func getProduct(ctx context.Context, db dbtx, id pos.ProductID) (*pos.Product, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = ?", id)
	return scanProduct(row)
}

// GetProductByBarcode looks a product up by its barcode, or nil.
func (s *Store) GetProductByBarcode(ctx context.Context, barcode string) (*pos.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE barcode = ?", barcode)
	return scanProduct(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*pos.Product, error) {
	var (
		p                    pos.Product
		supplierID           sql.NullInt64
		purchaseP, sellingP  string
		createdAt, updatedAt string
	)
	err := row.Scan(&p.ID, &p.Barcode, &p.Name, &p.Description, &p.CategoryID,
		&supplierID, &purchaseP, &sellingP, &p.StockQuantity, &p.MinimumStock,
		&p.IsActive, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}
	if supplierID.Valid {
		sid := pos.SupplierID(supplierID.Int64)
		p.SupplierID = &sid
	}
	p.PurchasePrice = parseDecimal(purchaseP)
	p.SellingPrice = parseDecimal(sellingP)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// SaveProduct inserts a new product and assigns its ID.
func (s *Store) SaveProduct(ctx context.Context, p *pos.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var supplierID any
	if p.SupplierID != nil {
		supplierID = int64(*p.SupplierID)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO products (barcode, name, description, category_id, supplier_id,
			purchase_price, selling_price, stock_quantity, minimum_stock, is_active,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Barcode, p.Name, p.Description, p.CategoryID, supplierID,
		p.PurchasePrice.String(), p.SellingPrice.String(),
		p.StockQuantity, p.MinimumStock, p.IsActive,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = pos.ProductID(id)
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// UpdateProduct updates catalog fields. It never touches stock_quantity;
// that column belongs to the inventory engine.
func (s *Store) UpdateProduct(ctx context.Context, p *pos.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var supplierID any
	if p.SupplierID != nil {
		supplierID = int64(*p.SupplierID)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products SET barcode = ?, name = ?, description = ?, category_id = ?,
			supplier_id = ?, purchase_price = ?, selling_price = ?, minimum_stock = ?,
			is_active = ?, updated_at = ?
		WHERE id = ?`,
		p.Barcode, p.Name, p.Description, p.CategoryID, supplierID,
		p.PurchasePrice.String(), p.SellingPrice.String(), p.MinimumStock,
		p.IsActive, time.Now().UTC().Format(time.RFC3339), p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return &pos.ProductNotFoundError{ID: p.ID}
	}
	return nil
}

// UpdateProductStock sets the on-hand quantity (pos.Tx contract).
func (s *Store) UpdateProductStock(ctx context.Context, id pos.ProductID, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateProductStock(ctx, s.db, id, quantity)
}

func updateProductStock(ctx context.Context, db dbtx, id pos.ProductID, quantity int) error {
	res, err := db.ExecContext(ctx,
		"UPDATE products SET stock_quantity = ?, updated_at = ? WHERE id = ?",
		quantity, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return &pos.ProductNotFoundError{ID: id}
	}
	return nil
}

// ListProducts returns products, optionally only active ones.
func (s *Store) ListProducts(ctx context.Context, activeOnly bool) ([]pos.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + productColumns + " FROM products"
	if activeOnly {
		query += " WHERE is_active = TRUE"
	}
	query += " ORDER BY name"

	return s.queryProducts(ctx, query)
}

// ListLowStock returns active products at or below their reorder threshold.
func (s *Store) ListLowStock(ctx context.Context) ([]pos.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + productColumns + ` FROM products
		WHERE is_active = TRUE AND stock_quantity <= minimum_stock
		ORDER BY stock_quantity ASC, name`
	return s.queryProducts(ctx, query)
}

func (s *Store) queryProducts(ctx context.Context, query string, args ...any) ([]pos.Product, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []pos.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// =============================================================================
// STOCK MOVEMENTS (append-only)
// =============================================================================

// AppendMovement inserts a ledger row (pos.Tx contract).
func (s *Store) AppendMovement(ctx context.Context, m *pos.StockMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendMovement(ctx, s.db, m)
}

func appendMovement(ctx context.Context, db dbtx, m *pos.StockMovement) error {
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx, `
		INSERT INTO stock_movements (product_id, movement_type, quantity,
			reference_type, reference_id, notes, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ProductID, string(m.Type), m.Quantity,
		string(m.Reference.Kind), m.Reference.ID, m.Notes, m.CreatedBy,
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append movement: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = pos.MovementID(id)
	m.CreatedAt = now
	return nil
}

const movementColumns = `id, product_id, movement_type, quantity,
	reference_type, reference_id, notes, created_by, created_at`

// ListMovements returns ledger rows newest-first, optionally filtered by
// product. limit <= 0 means no limit. The table is append-only, so id
// order is insertion order.
func (s *Store) ListMovements(ctx context.Context, productID *pos.ProductID, limit int) ([]pos.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + movementColumns + " FROM stock_movements"
	var args []any
	if productID != nil {
		query += " WHERE product_id = ?"
		args = append(args, *productID)
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	var movements []pos.StockMovement
	for rows.Next() {
		var (
			m         pos.StockMovement
			refKind   string
			createdAt string
		)
		if err := rows.Scan(&m.ID, &m.ProductID, (*string)(&m.Type), &m.Quantity,
			&refKind, &m.Reference.ID, &m.Notes, &m.CreatedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		m.Reference.Kind = pos.ReferenceKind(refKind)
		m.CreatedAt = parseTime(createdAt)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// ReconciliationRow pairs a product's stored stock with the sum of its
// signed ledger deltas. They match unless a floor clamp occurred.
type ReconciliationRow struct {
	ProductID     pos.ProductID
	Barcode       string
	Name          string
	StockQuantity int
	LedgerSum     int
}

// StockReconciliation computes the ledger sum per product.
func (s *Store) StockReconciliation(ctx context.Context) ([]ReconciliationRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.barcode, p.name, p.stock_quantity,
		       COALESCE(SUM(m.quantity), 0)
		FROM products p
		LEFT JOIN stock_movements m ON m.product_id = p.id
		GROUP BY p.id
		ORDER BY p.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reconciliation: %w", err)
	}
	defer rows.Close()

	var result []ReconciliationRow
	for rows.Next() {
		var r ReconciliationRow
		if err := rows.Scan(&r.ProductID, &r.Barcode, &r.Name, &r.StockQuantity, &r.LedgerSum); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// =============================================================================
// USERS
// =============================================================================

// SaveUser inserts a user and assigns its ID.
func (s *Store) SaveUser(ctx context.Context, u *pos.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO users (name, role, is_active, created_at) VALUES (?, ?, ?, ?)",
		u.Name, u.Role, u.IsActive, now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = pos.UserID(id)
	u.CreatedAt = now
	return nil
}

// GetUser returns the user or nil (pos.Tx contract).
func (s *Store) GetUser(ctx context.Context, id pos.UserID) (*pos.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getUser(ctx, s.db, id)
}

func getUser(ctx context.Context, db dbtx, id pos.UserID) (*pos.User, error) {
	var (
		u         pos.User
		createdAt string
	)
	err := db.QueryRowContext(ctx,
		"SELECT id, name, role, is_active, created_at FROM users WHERE id = ?", id,
	).Scan(&u.ID, &u.Name, &u.Role, &u.IsActive, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

// ListUsers returns all users ordered by name.
func (s *Store) ListUsers(ctx context.Context) ([]pos.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, role, is_active, created_at FROM users ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []pos.User
	for rows.Next() {
		var (
			u         pos.User
			createdAt string
		)
		if err := rows.Scan(&u.ID, &u.Name, &u.Role, &u.IsActive, &createdAt); err != nil {
			return nil, err
		}
		u.CreatedAt = parseTime(createdAt)
		users = append(users, u)
	}
	return users, rows.Err()
}

// =============================================================================
// CATEGORIES
// =============================================================================

// SaveCategory inserts a category and assigns its ID.
func (s *Store) SaveCategory(ctx context.Context, c *pos.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO categories (name, description, created_at) VALUES (?, ?, ?)",
		c.Name, c.Description, now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = pos.CategoryID(id)
	c.CreatedAt = now
	return nil
}

// GetCategory returns the category or nil.
func (s *Store) GetCategory(ctx context.Context, id pos.CategoryID) (*pos.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		c         pos.Category
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, description, created_at FROM categories WHERE id = ?", id,
	).Scan(&c.ID, &c.Name, &c.Description, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

// ListCategories returns all categories ordered by name.
func (s *Store) ListCategories(ctx context.Context) ([]pos.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, description, created_at FROM categories ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []pos.Category
	for rows.Next() {
		var (
			c         pos.Category
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt = parseTime(createdAt)
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// DeleteCategory removes a category. Refused while products reference it.
func (s *Store) DeleteCategory(ctx context.Context, id pos.CategoryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM products WHERE category_id = ?", id).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: category %d has %d products", pos.ErrReferenced, id, count)
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: category %d", pos.ErrCategoryNotFound, id)
	}
	return nil
}

// =============================================================================
// SUPPLIERS
// =============================================================================

// SaveSupplier inserts a supplier and assigns its ID.
func (s *Store) SaveSupplier(ctx context.Context, sup *pos.Supplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (name, contact, phone, email, address, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sup.Name, sup.Contact, sup.Phone, sup.Email, sup.Address,
		now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert supplier: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	sup.ID = pos.SupplierID(id)
	sup.CreatedAt = now
	return nil
}

// GetSupplier returns the supplier or nil (pos.Tx contract).
func (s *Store) GetSupplier(ctx context.Context, id pos.SupplierID) (*pos.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getSupplier(ctx, s.db, id)
}

func getSupplier(ctx context.Context, db dbtx, id pos.SupplierID) (*pos.Supplier, error) {
	var (
		sup       pos.Supplier
		createdAt string
	)
	err := db.QueryRowContext(ctx,
		"SELECT id, name, contact, phone, email, address, created_at FROM suppliers WHERE id = ?", id,
	).Scan(&sup.ID, &sup.Name, &sup.Contact, &sup.Phone, &sup.Email, &sup.Address, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sup.CreatedAt = parseTime(createdAt)
	return &sup, nil
}

// ListSuppliers returns all suppliers ordered by name.
func (s *Store) ListSuppliers(ctx context.Context) ([]pos.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, contact, phone, email, address, created_at FROM suppliers ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var suppliers []pos.Supplier
	for rows.Next() {
		var (
			sup       pos.Supplier
			createdAt string
		)
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.Contact, &sup.Phone,
			&sup.Email, &sup.Address, &createdAt); err != nil {
			return nil, err
		}
		sup.CreatedAt = parseTime(createdAt)
		suppliers = append(suppliers, sup)
	}
	return suppliers, rows.Err()
}

// DeleteSupplier removes a supplier. Refused while products reference it.
func (s *Store) DeleteSupplier(ctx context.Context, id pos.SupplierID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM products WHERE supplier_id = ?", id).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: supplier %d has %d products", pos.ErrReferenced, id, count)
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM suppliers WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: supplier %d", pos.ErrSupplierNotFound, id)
	}
	return nil
}

// =============================================================================
// SALES
// =============================================================================

func insertSale(ctx context.Context, db dbtx, sale *pos.Sale) error {
	res, err := db.ExecContext(ctx, `
		INSERT INTO sales (transaction_number, cashier_id, subtotal, discount_amount,
			tax_amount, total_amount, payment_method, amount_paid, change_amount,
			status, cancellation_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', ?, ?)`,
		sale.TransactionNumber, sale.CashierID,
		sale.Subtotal.String(), sale.DiscountAmount.String(), sale.TaxAmount.String(),
		sale.TotalAmount.String(), string(sale.PaymentMethod),
		sale.AmountPaid.String(), sale.ChangeAmount.String(),
		string(sale.Status),
		sale.CreatedAt.Format(time.RFC3339), sale.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sale: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	sale.ID = pos.SaleID(id)

	for i := range sale.Items {
		item := &sale.Items[i]
		item.SaleID = sale.ID
		res, err := db.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, barcode, product_name,
				quantity, unit_price, total_price)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.SaleID, item.ProductID, item.Barcode, item.ProductName,
			item.Quantity, item.UnitPrice.String(), item.TotalPrice.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert sale item: %w", err)
		}
		itemID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		item.ID = itemID
	}
	return nil
}

// InsertSale inserts the sale aggregate (pos.Tx contract).
func (s *Store) InsertSale(ctx context.Context, sale *pos.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertSale(ctx, s.db, sale)
}

const saleColumns = `id, transaction_number, cashier_id, subtotal, discount_amount,
	tax_amount, total_amount, payment_method, amount_paid, change_amount, status,
	cancelled_by, cancelled_at, cancellation_reason, created_at, updated_at`

// GetSale returns the sale with its items, or nil (pos.Tx contract).
func (s *Store) GetSale(ctx context.Context, id pos.SaleID) (*pos.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getSale(ctx, s.db, id)
}

func getSale(ctx context.Context, db dbtx, id pos.SaleID) (*pos.Sale, error) {
	row := db.QueryRowContext(ctx, "SELECT "+saleColumns+" FROM sales WHERE id = ?", id)
	sale, err := scanSale(row)
	if err != nil || sale == nil {
		return sale, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, sale_id, product_id, barcode, product_name, quantity, unit_price, total_price
		FROM sale_items WHERE sale_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query sale items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item                  pos.SaleItem
			unitPrice, totalPrice string
		)
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.Barcode,
			&item.ProductName, &item.Quantity, &unitPrice, &totalPrice); err != nil {
			return nil, err
		}
		item.UnitPrice = parseDecimal(unitPrice)
		item.TotalPrice = parseDecimal(totalPrice)
		sale.Items = append(sale.Items, item)
	}
	return sale, rows.Err()
}

func scanSale(row rowScanner) (*pos.Sale, error) {
	var (
		sale                                         pos.Sale
		subtotal, discount, tax, total, paid, change string
		cancelledBy                                  sql.NullInt64
		cancelledAt                                  sql.NullString
		createdAt, updatedAt                         string
	)
	err := row.Scan(&sale.ID, &sale.TransactionNumber, &sale.CashierID,
		&subtotal, &discount, &tax, &total,
		(*string)(&sale.PaymentMethod), &paid, &change, (*string)(&sale.Status),
		&cancelledBy, &cancelledAt, &sale.CancellationReason, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sale: %w", err)
	}

	sale.Subtotal = parseDecimal(subtotal)
	sale.DiscountAmount = parseDecimal(discount)
	sale.TaxAmount = parseDecimal(tax)
	sale.TotalAmount = parseDecimal(total)
	sale.AmountPaid = parseDecimal(paid)
	sale.ChangeAmount = parseDecimal(change)
	if cancelledBy.Valid {
		by := pos.UserID(cancelledBy.Int64)
		sale.CancelledBy = &by
	}
	if cancelledAt.Valid {
		t := parseTime(cancelledAt.String)
		sale.CancelledAt = &t
	}
	sale.CreatedAt = parseTime(createdAt)
	sale.UpdatedAt = parseTime(updatedAt)
	return &sale, nil
}

func markSaleCancelled(ctx context.Context, db dbtx, id pos.SaleID, by pos.UserID, at time.Time, reason string) error {
	res, err := db.ExecContext(ctx, `
		UPDATE sales SET status = ?, cancelled_by = ?, cancelled_at = ?,
			cancellation_reason = ?, updated_at = ?
		WHERE id = ?`,
		string(pos.SaleCancelled), by, at.Format(time.RFC3339), reason,
		at.Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to cancel sale: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: sale %d", pos.ErrSaleNotFound, id)
	}
	return nil
}

// MarkSaleCancelled flips a sale to cancelled (pos.Tx contract).
func (s *Store) MarkSaleCancelled(ctx context.Context, id pos.SaleID, by pos.UserID, at time.Time, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return markSaleCancelled(ctx, s.db, id, by, at, reason)
}

// SaleFilter narrows ListSales. Zero fields mean "any".
type SaleFilter struct {
	From      *time.Time
	To        *time.Time
	Status    pos.SaleStatus
	CashierID pos.UserID
}

// ListSales returns sale headers (without items) newest-first.
func (s *Store) ListSales(ctx context.Context, filter SaleFilter) ([]pos.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + saleColumns + " FROM sales"
	var (
		conds []string
		args  []any
	)
	if filter.From != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, filter.From.UTC().Format(time.RFC3339))
	}
	if filter.To != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, filter.To.UTC().Format(time.RFC3339))
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.CashierID != 0 {
		conds = append(conds, "cashier_id = ?")
		args = append(args, filter.CashierID)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	var result []pos.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *sale)
	}
	return result, rows.Err()
}

// =============================================================================
// PURCHASES
// =============================================================================

func insertPurchase(ctx context.Context, db dbtx, p *pos.Purchase) error {
	res, err := db.ExecContext(ctx, `
		INSERT INTO purchases (purchase_number, supplier_id, total_amount, status,
			created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.PurchaseNumber, p.SupplierID, p.TotalAmount.String(), string(p.Status),
		p.CreatedBy, p.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert purchase: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = pos.PurchaseID(id)

	for i := range p.Items {
		item := &p.Items[i]
		item.PurchaseID = p.ID
		res, err := db.ExecContext(ctx, `
			INSERT INTO purchase_items (purchase_id, product_id, quantity, unit_cost, total_cost)
			VALUES (?, ?, ?, ?, ?)`,
			item.PurchaseID, item.ProductID, item.Quantity,
			item.UnitCost.String(), item.TotalCost.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert purchase item: %w", err)
		}
		itemID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		item.ID = itemID
	}
	return nil
}

// InsertPurchase inserts the purchase aggregate (pos.Tx contract).
func (s *Store) InsertPurchase(ctx context.Context, p *pos.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertPurchase(ctx, s.db, p)
}

// GetPurchase returns the purchase with its items, or nil.
func (s *Store) GetPurchase(ctx context.Context, id pos.PurchaseID) (*pos.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		p           pos.Purchase
		totalAmount string
		createdAt   string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, purchase_number, supplier_id, total_amount, status, created_by, created_at
		FROM purchases WHERE id = ?`, id,
	).Scan(&p.ID, &p.PurchaseNumber, &p.SupplierID, &totalAmount,
		(*string)(&p.Status), &p.CreatedBy, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan purchase: %w", err)
	}
	p.TotalAmount = parseDecimal(totalAmount)
	p.CreatedAt = parseTime(createdAt)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, purchase_id, product_id, quantity, unit_cost, total_cost
		FROM purchase_items WHERE purchase_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchase items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item                pos.PurchaseItem
			unitCost, totalCost string
		)
		if err := rows.Scan(&item.ID, &item.PurchaseID, &item.ProductID,
			&item.Quantity, &unitCost, &totalCost); err != nil {
			return nil, err
		}
		item.UnitCost = parseDecimal(unitCost)
		item.TotalCost = parseDecimal(totalCost)
		p.Items = append(p.Items, item)
	}
	return &p, rows.Err()
}

// ListPurchases returns purchase headers newest-first, optionally for
// one supplier.
func (s *Store) ListPurchases(ctx context.Context, supplierID pos.SupplierID) ([]pos.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, purchase_number, supplier_id, total_amount, status, created_by, created_at
		FROM purchases`
	var args []any
	if supplierID != 0 {
		query += " WHERE supplier_id = ?"
		args = append(args, supplierID)
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	defer rows.Close()

	var result []pos.Purchase
	for rows.Next() {
		var (
			p           pos.Purchase
			totalAmount string
			createdAt   string
		)
		if err := rows.Scan(&p.ID, &p.PurchaseNumber, &p.SupplierID, &totalAmount,
			(*string)(&p.Status), &p.CreatedBy, &createdAt); err != nil {
			return nil, err
		}
		p.TotalAmount = parseDecimal(totalAmount)
		p.CreatedAt = parseTime(createdAt)
		result = append(result, p)
	}
	return result, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
