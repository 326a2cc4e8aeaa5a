// Package task holds the per-task structures shared between the input locator
// and the task runner: the input registration set, the task state machine and
// the task result.
package task

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"ctpdaily/internal/product"
)

// Builder collects the inputs of a single task. It is the only structure the
// input locator mutates.
type Builder struct {
	inputs map[string]product.Product
}

func NewBuilder() *Builder {
	return &Builder{inputs: make(map[string]product.Product)}
}

// Input registers p under name. Registering the same product under the same
// name twice is a no-op; reusing a name for a different product is an error.
func (b *Builder) Input(name string, p product.Product) error {
	if b == nil {
		return fmt.Errorf("task builder is nil")
	}
	if b.inputs == nil {
		return fmt.Errorf("task builder is not initialized; use NewBuilder")
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("input name must not be empty")
	}
	if existing, ok := b.inputs[name]; ok {
		if existing.Key() == p.Key() && existing.Filename == p.Filename {
			return nil
		}
		return fmt.Errorf("input %q already registered for %s", name, existing)
	}
	b.inputs[name] = p
	return nil
}

// Inputs returns a copy of the registered inputs.
func (b *Builder) Inputs() map[string]product.Product {
	if b == nil {
		return nil
	}
	out := make(map[string]product.Product, len(b.inputs))
	for k, v := range b.inputs {
		out[k] = v
	}
	return out
}

func (b *Builder) Len() int {
	if b == nil {
		return 0
	}
	return len(b.inputs)
}

// Names returns the registered input names in natural order (CTPO-2 sorts
// before CTPO-10).
func (b *Builder) Names() []string {
	if b == nil {
		return nil
	}
	names := make([]string, 0, len(b.inputs))
	for k := range b.inputs {
		names = append(names, k)
	}
	SortNames(names)
	return names
}

// SortNames sorts input names by prefix, then numeric suffix.
func SortNames(names []string) {
	sort.Slice(names, func(i, j int) bool {
		pi, ni, iok := splitIndexed(names[i])
		pj, nj, jok := splitIndexed(names[j])
		if iok && jok && pi == pj {
			return ni < nj
		}
		return names[i] < names[j]
	})
}

func splitIndexed(name string) (string, int, bool) {
	i := strings.LastIndex(name, "-")
	if i < 0 {
		return name, 0, false
	}
	n, err := strconv.Atoi(name[i+1:])
	if err != nil {
		return name, 0, false
	}
	return name[:i], n, true
}
