package daily

import (
	"ctpdaily/internal/config"
	"ctpdaily/internal/product"
	"ctpdaily/internal/timeutil"
)

// window returns the locator policy for the context's satellite.
func (c *Computation) window(ctx product.Context) config.Window {
	return c.policy.For(ctx.Satellite)
}

// searchInterval is the context's day widened by the policy padding.
func searchInterval(ctx product.Context, w config.Window) timeutil.Interval {
	return ctx.Day().Pad(w.PadBefore, w.PadAfter)
}
