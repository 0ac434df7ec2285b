// Package buffered implements the generic transformation buffer (C9): a
// transport that doesn't deliver anywhere on its own, but stores a
// caller-supplied projection of every recorded event up to a cap, for
// tests and debugging to later inspect via Items(). Grounded on spec
// §4.6's "base class pattern for sinks that need to peek at history";
// the teacher has no equivalent, so the shape follows the ring-buffer
// idiom already established by pkg/sinks/throttled.
package buffered

import (
	"sync"

	"fieldlog/pkg/event"
	"fieldlog/pkg/format"
)

// Transform projects a recorded event (and its formatted text, if any
// Formatters are configured) into the Item type the buffer stores.
type Transform[Item any] func(e *event.Event, formatted string) Item

// Config configures a Sink.
type Config[Item any] struct {
	Transform     Transform[Item]
	BufferLimit   int
	Formatters    []format.Field
	RenderOptions format.RenderOptions
}

// Sink stores up to BufferLimit transformed items (BufferLimit <= 0 means
// unbounded), dropping the oldest item once the limit is reached.
type Sink[Item any] struct {
	cfg     Config[Item]
	mu      sync.Mutex
	items   []Item
	enabled bool
}

// New builds a Sink. Transform must be non-nil.
func New[Item any](cfg Config[Item]) *Sink[Item] {
	return &Sink[Item]{cfg: cfg, enabled: true}
}

// Enabled reports whether the sink currently accepts records.
func (s *Sink[Item]) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// SetEnabled toggles whether the sink accepts records.
func (s *Sink[Item]) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// Record applies Transform to e and appends the result, dropping the
// oldest item first if BufferLimit is positive and already reached.
func (s *Sink[Item]) Record(e *event.Event) bool {
	var formatted string
	if len(s.cfg.Formatters) > 0 {
		resolved := format.Resolve(s.cfg.Formatters, e, s.cfg.RenderOptions)
		for _, f := range resolved {
			formatted += f.Text
		}
	}
	item := s.cfg.Transform(e, formatted)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return false
	}
	if s.cfg.BufferLimit > 0 && len(s.items) >= s.cfg.BufferLimit {
		s.items = append(s.items[:0], s.items[1:]...)
	}
	s.items = append(s.items, item)
	return true
}

// Items returns a snapshot copy of the currently buffered items, oldest
// first.
func (s *Sink[Item]) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Len reports how many items are currently buffered.
func (s *Sink[Item]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Clear synchronously empties the buffer.
func (s *Sink[Item]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
}
