package orbital

import (
	"context"
	"sort"

	"ctpdaily/internal/config"
	"ctpdaily/internal/product"
	"ctpdaily/internal/timeutil"

	"go.uber.org/zap"
)

// Finder enumerates the orbital CTP contexts of a satellite.
type Finder struct {
	sources config.InputSources
	loader  *Loader
	logger  *zap.Logger
}

type Option func(*Finder)

func WithLogger(logger *zap.Logger) Option {
	return func(f *Finder) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithLoader shares a datalist loader (and its cache) between finders.
func WithLoader(l *Loader) Option {
	return func(f *Finder) {
		if l != nil {
			f.loader = l
		}
	}
}

func NewFinder(sources config.InputSources, opts ...Option) *Finder {
	f := &Finder{sources: sources, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	if f.loader == nil {
		f.loader = NewLoader(f.logger)
	}
	return f
}

// Find returns the orbital contexts of satellite overlapping iv, sorted by
// granule. Orbits listed more than once (e.g. dumps received by two ground
// stations) are returned once.
func (f *Finder) Find(ctx context.Context, iv timeutil.Interval, satellite string, deliveries product.Deliveries) ([]product.OrbitalContext, error) {
	path, err := f.sources.Datalist(config.SourceHIR1B, satellite)
	if err != nil {
		return nil, err
	}
	entries, err := f.loader.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	var matched []Entry
	for _, e := range entries {
		if e.Satellite != satellite {
			continue
		}
		if !iv.Overlaps(timeutil.Interval{Start: e.Start, End: e.End}) {
			continue
		}
		matched = append(matched, e)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].Start.Equal(matched[j].Start) {
			return matched[i].Start.Before(matched[j].Start)
		}
		return matched[i].Path < matched[j].Path
	})

	out := make([]product.OrbitalContext, 0, len(matched))
	for i, e := range matched {
		if i > 0 && e.Start.Equal(matched[i-1].Start) {
			continue
		}
		out = append(out, product.OrbitalContext{
			Granule:    e.Start,
			End:        e.End,
			Satellite:  satellite,
			Deliveries: deliveries,
			Source:     e.Path,
		})
	}

	f.logger.Debug("orbital contexts found",
		zap.String("satellite", satellite),
		zap.Stringer("interval", iv),
		zap.Int("count", len(out)))
	return out, nil
}

// Product returns the stored product of an orbital context.
func (f *Finder) Product(oc product.OrbitalContext) product.Product {
	return product.Orbital(oc)
}
