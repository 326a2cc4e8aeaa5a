package orbital

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Loader reads datalists. Results are cached per file version (path, size
// and modification time) and concurrent loads of the same version share one
// read. Only the latest version of each path is kept.
type Loader struct {
	group   singleflight.Group
	cache   sync.Map // version key -> []Entry
	current sync.Map // path -> version key
	logger  *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// Load returns the entries of the datalist at path.
func (l *Loader) Load(ctx context.Context, path string) ([]Entry, error) {
	if ctx == nil {
		return nil, fmt.Errorf("Load: nil context")
	}
	if l == nil {
		return nil, fmt.Errorf("Load: nil Loader (use NewLoader)")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("datalist %s: %w", path, err)
	}
	key := path + "@" + strconv.FormatInt(fi.Size(), 10) + "@" + strconv.FormatInt(fi.ModTime().UnixNano(), 10)

	if v, ok := l.cache.Load(key); ok {
		return v.([]Entry), nil
	}

	v, err, shared := l.group.Do(key, func() (interface{}, error) {
		return l.read(path)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		l.logger.Debug("datalist read shared", zap.String("path", path))
	}
	entries := v.([]Entry)
	l.cache.Store(key, entries)
	if prev, loaded := l.current.Swap(path, key); loaded && prev.(string) != key {
		l.cache.Delete(prev)
	}
	return entries, nil
}

func (l *Loader) read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open datalist: %w", err)
	}
	defer f.Close()

	entries, skipped, err := ParseDatalist(f)
	if err != nil {
		return nil, fmt.Errorf("datalist %s: %w", path, err)
	}
	if len(skipped) > 0 {
		l.logger.Debug("skipped datalist lines",
			zap.String("path", path),
			zap.Int("count", len(skipped)),
			zap.String("first", skipped[0]))
	}
	l.logger.Debug("datalist loaded", zap.String("path", path), zap.Int("entries", len(entries)))
	return entries, nil
}
