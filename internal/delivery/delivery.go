// Package delivery resolves delivered (prebuilt, versioned) software packages
// and the process environment needed to run them.
package delivery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ctpdaily/internal/config"
)

// ErrNotFound is returned (wrapped) when a delivery cannot be resolved.
var ErrNotFound = errors.New("delivery not found")

// Delivery is one installed software delivery.
type Delivery struct {
	Name    string
	ID      string
	Path    string
	Version string
}

// Dist returns the delivery's dist directory.
func (d Delivery) Dist() string {
	return filepath.Join(d.Path, "dist")
}

// Bin returns the path of an executable shipped in dist/bin.
func (d Delivery) Bin(name string) string {
	return filepath.Join(d.Dist(), "bin", name)
}

func (d Delivery) String() string {
	return d.Name + "@" + d.ID
}

type entryKey struct{ name, id string }

// Registry looks deliveries up by name and id. Explicit entries win over the
// <root>/<name>/<id> convention.
type Registry struct {
	root     string
	explicit map[entryKey]Delivery
}

func NewRegistry(sw config.Software) *Registry {
	r := &Registry{root: sw.Root, explicit: make(map[entryKey]Delivery)}
	for _, e := range sw.Deliveries {
		r.explicit[entryKey{e.Name, e.ID}] = Delivery{Name: e.Name, ID: e.ID, Path: e.Path, Version: e.Version}
	}
	return r
}

// Lookup resolves the delivery name/id. The delivery directory must exist.
// When no version is configured it is read from a VERSION file in the
// delivery directory, falling back to the id.
func (r *Registry) Lookup(name, id string) (Delivery, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(id) == "" {
		return Delivery{}, fmt.Errorf("delivery name and id are required (got %q, %q)", name, id)
	}

	d, ok := r.explicit[entryKey{name, id}]
	if !ok {
		if r.root == "" {
			return Delivery{}, fmt.Errorf("%w: %s@%s (no software root configured)", ErrNotFound, name, id)
		}
		d = Delivery{Name: name, ID: id, Path: filepath.Join(r.root, name, id)}
	}

	fi, err := os.Stat(d.Path)
	if err != nil || !fi.IsDir() {
		return Delivery{}, fmt.Errorf("%w: %s@%s at %s", ErrNotFound, name, id, d.Path)
	}

	if d.Version == "" {
		if raw, err := os.ReadFile(filepath.Join(d.Path, "VERSION")); err == nil {
			d.Version = strings.TrimSpace(string(raw))
		}
	}
	if d.Version == "" {
		d.Version = id
	}
	return d, nil
}

// Env returns base augmented for running the given deliveries: each dist/bin
// is prepended to PATH and each dist/lib to LD_LIBRARY_PATH, in order.
func Env(base []string, ds ...Delivery) []string {
	var bins, libs []string
	for _, d := range ds {
		bins = append(bins, filepath.Join(d.Dist(), "bin"))
		libs = append(libs, filepath.Join(d.Dist(), "lib"))
	}

	out := make([]string, 0, len(base)+2)
	seenPath, seenLib := false, false
	for _, kv := range base {
		switch {
		case strings.HasPrefix(kv, "PATH="):
			out = append(out, prependList("PATH", strings.TrimPrefix(kv, "PATH="), bins))
			seenPath = true
		case strings.HasPrefix(kv, "LD_LIBRARY_PATH="):
			out = append(out, prependList("LD_LIBRARY_PATH", strings.TrimPrefix(kv, "LD_LIBRARY_PATH="), libs))
			seenLib = true
		default:
			out = append(out, kv)
		}
	}
	if !seenPath && len(bins) > 0 {
		out = append(out, prependList("PATH", "", bins))
	}
	if !seenLib && len(libs) > 0 {
		out = append(out, prependList("LD_LIBRARY_PATH", "", libs))
	}
	return out
}

func prependList(key, current string, dirs []string) string {
	parts := append([]string{}, dirs...)
	if current != "" {
		parts = append(parts, current)
	}
	return key + "=" + strings.Join(parts, string(os.PathListSeparator))
}
