// Package dispatch implements the dispatcher (C5): filter-chain gating
// followed by sync/async fan-out onto per-transport queues, each of which
// is drained by its own dedicated goroutine to guarantee per-transport
// FIFO delivery (invariant 4) without promising any ordering across
// transports.
package dispatch

import (
	"fieldlog/pkg/event"
	"fieldlog/pkg/severity"
)

// Transport is the minimal capability every sink implements: enabled/
// disabled state and the record call itself. Everything else (level
// gating, flush, delegate) is an optional capability interface a concrete
// transport may additionally satisfy, mirroring spec §9's polymorphic
// capability-set design.
type Transport interface {
	Enabled() bool
	Record(e *event.Event) bool
}

// LevelGated is implemented by transports that reject events below a
// minimum severity of their own, independent of the logger's threshold.
type LevelGated interface {
	MinimumAcceptedLevel() (level severity.Level, set bool)
}

// Flushable is implemented by buffered transports that support an
// explicit user-triggered flush.
type Flushable interface {
	Flush() error
}
