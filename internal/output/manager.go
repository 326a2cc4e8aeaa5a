package output

import (
	"errors"
	"fmt"
	"sync"
)

// Sink is a destination for lifecycle events and per-context results.
type Sink interface {
	Write(v any) error
	Close() error
}

// Manager fans writes out to every registered sink and counts the results
// it has seen by status. It is safe for concurrent use; each write reaches
// all sinks before the next one starts.
type Manager struct {
	mu     sync.Mutex
	sinks  []Sink
	counts map[Status]int
}

func NewManager() *Manager {
	return &Manager{counts: make(map[Status]int)}
}

func (m *Manager) AddSink(s Sink) error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	if s == nil {
		return fmt.Errorf("sink must not be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, s)
	return nil
}

// Len returns the number of registered sinks.
func (m *Manager) Len() int {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sinks)
}

// Tally returns how many results of each status have been written.
func (m *Manager) Tally() map[Status]int {
	out := make(map[Status]int)
	if m == nil {
		return out
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for st, n := range m.counts {
		out[st] = n
	}
	return out
}

// Write passes v to every sink. A failing sink does not stop the others.
func (m *Manager) Write(v any) error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := v.(Result); ok {
		if m.counts == nil {
			m.counts = make(map[Status]int)
		}
		m.counts[r.Status]++
	}
	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(v); err != nil {
			errs = append(errs, fmt.Errorf("write %T: %w", s, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors writing to sinks: %w", errors.Join(errs...))
	}
	return nil
}

func (m *Manager) Close() error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %T: %w", s, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing sinks: %w", errors.Join(errs...))
	}
	return nil
}
