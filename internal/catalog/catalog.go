// Package catalog resolves product references to stored files.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"ctpdaily/internal/config"
	"ctpdaily/internal/product"

	"go.uber.org/zap"
)

// Catalog is the stored product catalog consumed by the input locator and the
// local driver.
type Catalog interface {
	// Exists reports whether p has been stored.
	Exists(ctx context.Context, p product.Product) (bool, error)
	// Path returns where p is (or would be) stored.
	Path(ctx context.Context, p product.Product) (string, error)
	// Store moves the file at src into the catalog as p and returns its path.
	Store(ctx context.Context, p product.Product, src string) (string, error)
	Close() error
}

// Open returns the catalog selected by c.Kind.
func Open(ctx context.Context, c config.Catalog, logger *zap.Logger) (Catalog, error) {
	if strings.TrimSpace(c.Root) == "" {
		return nil, errors.New("catalog root is required")
	}
	switch c.Kind {
	case "", "file":
		return NewFileCatalog(c.Root), nil
	case "sqlite":
		ic, err := OpenIndex(ctx, c.Root, c.Index, logger)
		if err != nil {
			return nil, err
		}
		return ic, nil
	default:
		return nil, fmt.Errorf("unsupported catalog kind: %s", c.Kind)
	}
}

// FileCatalog stores products on disk as
// <root>/<computation>/<satellite>/<delivery>/<yyyy>/<filename>.
type FileCatalog struct {
	root string
}

func NewFileCatalog(root string) *FileCatalog {
	return &FileCatalog{root: root}
}

func (c *FileCatalog) Root() string {
	return c.root
}

func (c *FileCatalog) Path(_ context.Context, p product.Product) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	delivery := p.DeliveryID
	if delivery == "" {
		delivery = "unknown"
	}
	return filepath.Join(c.root, p.Computation, p.Satellite, delivery, p.Granule.UTC().Format("2006"), p.Filename), nil
}

func (c *FileCatalog) Exists(ctx context.Context, p product.Product) (bool, error) {
	path, err := c.Path(ctx, p)
	if err != nil {
		return false, err
	}
	return regularFile(path)
}

func (c *FileCatalog) Store(ctx context.Context, p product.Product, src string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dst, err := c.Path(ctx, p)
	if err != nil {
		return "", err
	}
	ok, err := regularFile(src)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("store %s: source %s is not a regular file", p, src)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("store %s: %w", p, err)
	}
	if err := moveFile(src, dst); err != nil {
		return "", fmt.Errorf("store %s: %w", p, err)
	}
	return dst, nil
}

func (c *FileCatalog) Close() error {
	return nil
}

func regularFile(path string) (bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return fi.Mode().IsRegular(), nil
}

// moveFile renames src to dst, copying when they are on different devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Remove(src)
}
