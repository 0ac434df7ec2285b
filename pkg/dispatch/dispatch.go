package dispatch

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"fieldlog/internal/flogmetrics"
	"fieldlog/pkg/event"
	"fieldlog/pkg/filter"
	"fieldlog/pkg/severity"
)

// defaultQueueSize is the per-transport channel buffer used when Config
// doesn't set one, sized the same order of magnitude as the teacher's
// dispatcher default.
const defaultQueueSize = 4096

// Config configures a Dispatcher.
type Config struct {
	Filters       filter.Chain
	Transports    []Transport
	IsSynchronous bool
	LevelGate     severity.Level
	QueueSize     int
	Metrics       *flogmetrics.Registry
}

type transportState struct {
	transport Transport
	queue     chan *event.Event
	wg        *sync.WaitGroup
}

// Dispatcher applies the filter chain and fans an event out to every
// admitted transport, either inline (synchronous) or onto that transport's
// own dedicated queue (asynchronous).
type Dispatcher struct {
	cfg     Config
	log     *logrus.Logger
	states  []*transportState
	closing atomic.Bool
	wg      sync.WaitGroup
}

// New builds a Dispatcher and, for asynchronous configs, starts one
// drain goroutine per transport.
func New(cfg Config, log *logrus.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if log == nil {
		log = logrus.New()
	}
	d := &Dispatcher{cfg: cfg, log: log}
	for _, t := range cfg.Transports {
		st := &transportState{transport: t}
		if !cfg.IsSynchronous {
			st.queue = make(chan *event.Event, cfg.QueueSize)
			d.wg.Add(1)
			go d.drain(st)
		}
		d.states = append(d.states, st)
	}
	return d
}

// Dispatch implements spec §4.1's algorithm exactly: level gate, filter
// chain, per-transport admission, then sync-or-async execution. Sink
// failures never propagate to the caller; Record's return value is
// swallowed here, surfaced only through the sink's own delegate.
func (d *Dispatcher) Dispatch(e *event.Event) {
	if d.closing.Load() {
		return
	}
	if !e.Level().AtLeastAsSevereAs(d.cfg.LevelGate) {
		return
	}
	if !d.cfg.Filters.Accept(e) {
		return
	}

	var wg sync.WaitGroup
	for _, st := range d.states {
		if !st.transport.Enabled() {
			continue
		}
		if lg, ok := st.transport.(LevelGated); ok {
			if min, set := lg.MinimumAcceptedLevel(); set && !e.Level().AtLeastAsSevereAs(min) {
				continue
			}
		}
		if d.cfg.IsSynchronous {
			wg.Add(1)
			go func(st *transportState) {
				defer wg.Done()
				d.record(st, e)
			}(st)
			continue
		}
		d.enqueue(st, e)
	}
	if d.cfg.IsSynchronous {
		wg.Wait()
	}
}

func (d *Dispatcher) record(st *transportState, e *event.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.log.WithField("component", "dispatch").WithField("panic", r).Error("transport record panicked")
		}
	}()
	ok := st.transport.Record(e)
	if !ok {
		d.log.WithField("component", "dispatch").Debug("transport rejected event")
	}
}

// enqueue posts onto the transport's own queue without blocking the
// producer; a full queue drops the event and logs, mirroring the
// teacher's select-with-default overflow handling.
func (d *Dispatcher) enqueue(st *transportState, e *event.Event) {
	select {
	case st.queue <- e:
		if d.cfg.Metrics != nil {
			d.cfg.Metrics.QueueDepth.Set(float64(len(st.queue)))
		}
	default:
		d.log.WithField("component", "dispatch").Warn("per-transport queue full, dropping event")
		if d.cfg.Metrics != nil {
			d.cfg.Metrics.DroppedTotal.Inc()
		}
	}
}

func (d *Dispatcher) drain(st *transportState) {
	defer d.wg.Done()
	for e := range st.queue {
		d.record(st, e)
	}
}

// Flush calls Flush on every transport implementing Flushable, in the
// order they were registered. Errors are collected but do not stop later
// transports from flushing.
func (d *Dispatcher) Flush() []error {
	var errs []error
	for _, st := range d.states {
		if f, ok := st.transport.(Flushable); ok {
			if err := f.Flush(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errs
}

// Close stops all per-transport drain goroutines after draining whatever
// is already queued. It does not accept new Dispatch calls afterward.
func (d *Dispatcher) Close() {
	if !d.closing.CompareAndSwap(false, true) {
		return
	}
	for _, st := range d.states {
		if st.queue != nil {
			close(st.queue)
		}
	}
	d.wg.Wait()
}
