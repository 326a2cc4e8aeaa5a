package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ctpdaily/internal/product"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
	key         TEXT PRIMARY KEY,
	computation TEXT NOT NULL,
	dataset     TEXT NOT NULL,
	satellite   TEXT NOT NULL,
	granule     TEXT NOT NULL,
	delivery_id TEXT NOT NULL,
	filename    TEXT NOT NULL,
	path        TEXT NOT NULL,
	stored_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_products_sat_granule ON products(satellite, granule);
`

// IndexCatalog is a FileCatalog whose contents are recorded in a SQLite
// index. A product exists only when it is both indexed and on disk.
type IndexCatalog struct {
	files  *FileCatalog
	db     *sql.DB
	logger *zap.Logger
}

// OpenIndex opens (creating if needed) the index at indexPath for the
// catalog rooted at root. An empty indexPath means <root>/catalog.db.
func OpenIndex(ctx context.Context, root, indexPath string, logger *zap.Logger) (*IndexCatalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if indexPath == "" {
		indexPath = filepath.Join(root, "catalog.db")
	}
	if err := os.MkdirAll(filepath.Dir(indexPath), 0o755); err != nil {
		return nil, fmt.Errorf("catalog index dir: %w", err)
	}

	db, err := sql.Open("sqlite", indexPath)
	if err != nil {
		return nil, fmt.Errorf("open catalog index: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init catalog index: %w", err)
	}

	logger.Debug("catalog index opened", zap.String("path", indexPath))
	return &IndexCatalog{files: NewFileCatalog(root), db: db, logger: logger}, nil
}

func (c *IndexCatalog) Path(ctx context.Context, p product.Product) (string, error) {
	var path string
	err := c.db.QueryRowContext(ctx, `SELECT path FROM products WHERE key = ?`, p.Key()).Scan(&path)
	switch {
	case err == sql.ErrNoRows:
		return c.files.Path(ctx, p)
	case err != nil:
		return "", fmt.Errorf("catalog lookup %s: %w", p, err)
	}
	return path, nil
}

func (c *IndexCatalog) Exists(ctx context.Context, p product.Product) (bool, error) {
	var path string
	err := c.db.QueryRowContext(ctx, `SELECT path FROM products WHERE key = ? AND filename = ?`, p.Key(), p.Filename).Scan(&path)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("catalog lookup %s: %w", p, err)
	}
	ok, err := regularFile(path)
	if err != nil {
		return false, err
	}
	if !ok {
		c.logger.Warn("indexed product missing on disk", zap.Object("product", p), zap.String("path", path))
	}
	return ok, nil
}

func (c *IndexCatalog) Store(ctx context.Context, p product.Product, src string) (string, error) {
	path, err := c.files.Store(ctx, p, src)
	if err != nil {
		return "", err
	}
	if err := c.record(ctx, p, path); err != nil {
		return "", err
	}
	return path, nil
}

// Register indexes a product whose file has already been placed at its
// catalog path.
func (c *IndexCatalog) Register(ctx context.Context, p product.Product) error {
	path, err := c.files.Path(ctx, p)
	if err != nil {
		return err
	}
	ok, err := regularFile(path)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("register %s: %s does not exist", p, path)
	}
	return c.record(ctx, p, path)
}

func (c *IndexCatalog) record(ctx context.Context, p product.Product, path string) error {
	_, err := c.db.ExecContext(ctx, `
INSERT INTO products (key, computation, dataset, satellite, granule, delivery_id, filename, path, stored_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET filename = excluded.filename, path = excluded.path, stored_at = excluded.stored_at`,
		p.Key(), p.Computation, p.Dataset, p.Satellite, p.Granule.UTC().Format(time.RFC3339),
		p.DeliveryID, p.Filename, path, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("index %s: %w", p, err)
	}
	return nil
}

func (c *IndexCatalog) Close() error {
	return c.db.Close()
}
