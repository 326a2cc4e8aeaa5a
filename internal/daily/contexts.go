package daily

import (
	"fmt"
	"time"

	"ctpdaily/internal/product"
	"ctpdaily/internal/timeutil"

	"go.uber.org/zap"
)

const oneDay = 24 * time.Hour

// FindContexts returns one context per calendar day of iv, in chronological
// order. By default only days lying entirely inside iv are returned; with
// partial days enabled every day overlapping iv is.
func (c *Computation) FindContexts(iv timeutil.Interval, satellite string, deliveries product.Deliveries) ([]product.Context, error) {
	days := iv.Series(oneDay, oneDay, c.mode)
	out := make([]product.Context, 0, len(days))
	for _, d := range days {
		ctx, err := product.NewContext(d.Start, satellite, deliveries)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", prefix, err)
		}
		out = append(out, ctx)
	}
	c.logger.Debug("contexts found",
		zap.Stringer("interval", iv),
		zap.Stringer("mode", c.mode),
		zap.String("satellite", satellite),
		zap.Int("count", len(out)))
	return out, nil
}
