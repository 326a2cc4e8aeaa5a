package daily

import (
	"context"
	"fmt"

	"ctpdaily/internal/product"
	"ctpdaily/internal/task"

	"go.uber.org/zap"
)

// InputName returns the symbolic name of the i-th retained orbital input.
func InputName(i int) string {
	return fmt.Sprintf("CTPO-%d", i)
}

// BuildTask registers the stored orbital products of ctx's day on b. It
// returns a *NotReadyError when the upstream has nothing for the day yet and
// a *MissingFileError when none of the selected products are stored.
func (c *Computation) BuildTask(ctx context.Context, dc product.Context, b *task.Builder) error {
	logger := c.logger.With(zap.Object("context", dc))
	w := c.window(dc)
	day := dc.Day()
	search := searchInterval(dc, w)
	logger.Debug("locating orbital inputs", zap.Stringer("search", search))

	found, err := c.finder.Find(ctx, search, dc.Satellite, dc.Deliveries)
	if err != nil {
		logger.Error("orbital lookup failed", zap.Error(err))
		return fmt.Errorf("%s: find orbital contexts: %w", prefix, err)
	}
	if len(found) == 0 {
		err := &NotReadyError{Satellite: dc.Satellite, Day: dc.Granule, Reason: "no HIRS_CTP_ORBITAL inputs available"}
		logger.Warn("not ready", zap.Error(err))
		return err
	}

	retained := prune(found, day, w.KeepPrevious, w.KeepNext)
	if countSameDay(retained, day) == 0 {
		err := &NotReadyError{Satellite: dc.Satellite, Day: dc.Granule, Reason: "no HIRS_CTP_ORBITAL inputs on the day itself"}
		logger.Warn("not ready", zap.Error(err), zap.Int("boundary_contexts", len(retained)))
		return err
	}

	var firstMissing string
	registered := 0
	for i, oc := range retained {
		p := c.finder.Product(oc)
		ok, err := c.catalog.Exists(ctx, p)
		if err != nil {
			logger.Error("catalog lookup failed", zap.Object("product", p), zap.Error(err))
			return fmt.Errorf("%s: catalog lookup %s: %w", prefix, p, err)
		}
		if !ok {
			path, _ := c.catalog.Path(ctx, p)
			if firstMissing == "" {
				firstMissing = path
			}
			logger.Info("orbital product not stored; skipping", zap.Object("product", p), zap.String("path", path))
			continue
		}
		if err := b.Input(InputName(i), p); err != nil {
			return fmt.Errorf("%s: %w", prefix, err)
		}
		registered++
	}

	if registered == 0 {
		err := &MissingFileError{Satellite: dc.Satellite, Day: dc.Granule, Path: firstMissing}
		logger.Error("no orbital products stored", zap.Error(err), zap.Int("retained", len(retained)))
		return err
	}

	logger.Info("orbital inputs registered",
		zap.Int("found", len(found)),
		zap.Int("retained", len(retained)),
		zap.Int("registered", registered))
	return nil
}
