package engine

import (
	"context"
	"fmt"

	"ctpdaily/internal/catalog"
	"ctpdaily/internal/config"
	"ctpdaily/internal/daily"
	"ctpdaily/internal/delivery"
	"ctpdaily/internal/ncutil"
	"ctpdaily/internal/orbital"

	"go.uber.org/zap"
)

// Build wires the daily computation described by cfg into an Engine. The
// returned close function releases the catalog. Listing contexts needs no
// catalog, so none is opened for ModeContexts.
func Build(ctx context.Context, cfg *config.Config, mode Mode, logger *zap.Logger) (*Engine, func() error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var cat catalog.Catalog
	closeFn := func() error { return nil }
	if mode != ModeContexts {
		c, err := catalog.Open(ctx, cfg.Catalog, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open catalog: %w", err)
		}
		cat = c
		closeFn = c.Close
	}

	finder := orbital.NewFinder(cfg.Sources, orbital.WithLogger(logger))
	registry := delivery.NewRegistry(cfg.Software)
	compressor := ncutil.NewNCCopy(cfg.Software, logger)

	comp := daily.New(cfg, finder, cat, registry, compressor, logger)
	return NewEngine(comp, cat, WithLogger(logger)), closeFn, nil
}
