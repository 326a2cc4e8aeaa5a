// Package daily implements the HIRS daily CTP computation: context
// enumeration, input location and the task run.
package daily

import (
	"context"
	"path/filepath"

	"ctpdaily/internal/config"
	"ctpdaily/internal/delivery"
	"ctpdaily/internal/ncutil"
	"ctpdaily/internal/product"
	"ctpdaily/internal/runner"
	"ctpdaily/internal/timeutil"

	"go.uber.org/zap"
)

// BinaryName is the executable shipped in the hirs_ctp_daily delivery.
const BinaryName = "create_daily_daynight_ctps.exe"

// OrbitalFinder is the upstream orbital computation.
type OrbitalFinder interface {
	Find(ctx context.Context, iv timeutil.Interval, satellite string, deliveries product.Deliveries) ([]product.OrbitalContext, error)
	Product(oc product.OrbitalContext) product.Product
}

// Catalog is the part of the stored product catalog the locator needs.
type Catalog interface {
	Exists(ctx context.Context, p product.Product) (bool, error)
	Path(ctx context.Context, p product.Product) (string, error)
}

// DeliveryLookup resolves delivered software.
type DeliveryLookup interface {
	Lookup(name, id string) (delivery.Delivery, error)
}

// Computation is the daily CTP computation. Its collaborators are fixed at
// construction; it holds no other state.
type Computation struct {
	finder     OrbitalFinder
	catalog    Catalog
	deliveries DeliveryLookup
	runner     *runner.Runner
	policy     config.Policy
	mode       timeutil.SeriesMode
	workRoot   string
	logger     *zap.Logger
}

// New builds the computation from cfg. Only the policy, series mode and work
// directory are read from cfg.
func New(cfg *config.Config, finder OrbitalFinder, cat Catalog, deliveries DeliveryLookup, compressor ncutil.Compressor, logger *zap.Logger) *Computation {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = config.New()
	}
	mode := timeutil.SeriesCovered
	if cfg.Processing.PartialDays {
		mode = timeutil.SeriesOverlapping
	}
	workRoot := cfg.Runtime.WorkDir
	if workRoot == "" {
		workRoot = "work"
	}
	return &Computation{
		finder:     finder,
		catalog:    cat,
		deliveries: deliveries,
		runner:     runner.New(compressor, logger),
		policy:     cfg.Policy,
		mode:       mode,
		workRoot:   workRoot,
		logger:     logger,
	}
}

// WorkDir is the working directory of a context's task run:
// <work_dir>/<satellite>/D<yy><jjj>.
func (c *Computation) WorkDir(ctx product.Context) string {
	return filepath.Join(c.workRoot, ctx.Satellite, ctx.DayCode())
}
