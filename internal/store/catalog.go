package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure Go driver, no CGO
)

// SQLiteCatalog implements Catalog on a single SQLite database file.
type SQLiteCatalog struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// NewSQLiteCatalog opens (or creates) the catalog database at path.
// An empty path creates an in-memory catalog for testing.
func NewSQLiteCatalog(path string) (*SQLiteCatalog, error) {
	dsn := ":memory:"
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer to prevent lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL mode must be set via PRAGMA for modernc.org/sqlite; DSN params
	// are not reliably honored.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	c := &SQLiteCatalog{db: db, path: path}
	if err := c.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return c, nil
}

func (c *SQLiteCatalog) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS products (
		id          TEXT PRIMARY KEY,
		title       TEXT NOT NULL,
		brand       TEXT NOT NULL DEFAULT '',
		category    TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		price       REAL NOT NULL DEFAULT 0,
		rating      REAL NOT NULL DEFAULT 0,
		num_ratings INTEGER NOT NULL DEFAULT 0,
		in_stock    INTEGER NOT NULL DEFAULT 1,
		created_at  INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);
	CREATE INDEX IF NOT EXISTS idx_products_brand ON products(brand);
	CREATE INDEX IF NOT EXISTS idx_products_price ON products(price);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := c.db.Exec(schema)
	return err
}

// SaveProducts upserts products in a single transaction.
func (c *SQLiteCatalog) SaveProducts(ctx context.Context, products []*Product) error {
	if len(products) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO products (id, title, brand, category, description, price, rating, num_ratings, in_stock, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			brand = excluded.brand,
			category = excluded.category,
			description = excluded.description,
			price = excluded.price,
			rating = excluded.rating,
			num_ratings = excluded.num_ratings,
			in_stock = excluded.in_stock,
			created_at = excluded.created_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range products {
		inStock := 0
		if p.InStock {
			inStock = 1
		}
		_, err := stmt.ExecContext(ctx,
			p.ID, p.Title, strings.ToLower(p.Brand), strings.ToLower(p.Category),
			p.Description, p.Price, p.Rating, p.NumRatings, inStock, p.CreatedAt.Unix())
		if err != nil {
			return fmt.Errorf("failed to upsert product %s: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

const productColumns = "id, title, brand, category, description, price, rating, num_ratings, in_stock, created_at"

func scanProduct(scanner interface{ Scan(...any) error }) (*Product, error) {
	var p Product
	var inStock int
	var createdAt int64
	err := scanner.Scan(&p.ID, &p.Title, &p.Brand, &p.Category, &p.Description,
		&p.Price, &p.Rating, &p.NumRatings, &inStock, &createdAt)
	if err != nil {
		return nil, err
	}
	p.InStock = inStock != 0
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &p, nil
}

// GetProduct fetches one product by ID.
func (c *SQLiteCatalog) GetProduct(ctx context.Context, id string) (*Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, ErrClosed
	}

	row := c.db.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = ?", id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	return p, nil
}

// GetProducts fetches a batch of products by ID. Missing IDs are simply
// absent from the returned map.
func (c *SQLiteCatalog) GetProducts(ctx context.Context, ids []string) (map[string]*Product, error) {
	if len(ids) == 0 {
		return map[string]*Product{}, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, ErrClosed
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := "SELECT " + productColumns + " FROM products WHERE id IN (" +
		strings.Join(placeholders, ",") + ")"

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// AttributeScan returns products matching the structured filter, most
// popular first. Popularity order keeps structured fallback results
// stable across runs.
func (c *SQLiteCatalog) AttributeScan(ctx context.Context, filter AttributeFilter, limit int) ([]*Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, ErrClosed
	}

	var conds []string
	var args []any

	if filter.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, strings.ToLower(filter.Category))
	}
	if filter.Brand != "" {
		conds = append(conds, "brand = ?")
		args = append(args, strings.ToLower(filter.Brand))
	}
	if filter.MinPrice != nil {
		conds = append(conds, "price >= ?")
		args = append(args, *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		conds = append(conds, "price <= ?")
		args = append(args, *filter.MaxPrice)
	}
	if filter.InStock != nil {
		v := 0
		if *filter.InStock {
			v = 1
		}
		conds = append(conds, "in_stock = ?")
		args = append(args, v)
	}

	query := "SELECT " + productColumns + " FROM products"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY num_ratings DESC, rating DESC, id ASC LIMIT ?"
	args = append(args, limit)

	return c.queryProducts(ctx, query, args...)
}

// EmergencyScan is the last-resort retrieval: any product whose title,
// brand or category contains any query term, in-stock and popular first.
func (c *SQLiteCatalog) EmergencyScan(ctx context.Context, terms []string, limit int) ([]*Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, ErrClosed
	}

	var conds []string
	var args []any
	for _, term := range terms {
		term = strings.TrimSpace(strings.ToLower(term))
		if term == "" {
			continue
		}
		pattern := "%" + term + "%"
		conds = append(conds, "(lower(title) LIKE ? OR brand LIKE ? OR category LIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}

	query := "SELECT " + productColumns + " FROM products"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " OR ")
	}
	query += " ORDER BY in_stock DESC, num_ratings DESC, rating DESC, id ASC LIMIT ?"
	args = append(args, limit)

	return c.queryProducts(ctx, query, args...)
}

func (c *SQLiteCatalog) queryProducts(ctx context.Context, query string, args ...any) ([]*Product, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to scan catalog: %w", err)
	}
	defer rows.Close()

	var out []*Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Count returns the number of products in the catalog.
func (c *SQLiteCatalog) Count(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return 0, ErrClosed
	}

	var n int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

// Close checkpoints the WAL and closes the database.
func (c *SQLiteCatalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.path != "" {
		_, _ = c.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	return c.db.Close()
}
