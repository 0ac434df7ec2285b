// Package throttled implements the bounded in-memory ring sink (C6): a
// non-durable buffer that flushes to a delegate by size, by interval, or on
// demand. It is the non-durable sibling of pkg/sinks/durable — everything
// lives in the ring, nothing touches disk.
package throttled

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"fieldlog/internal/flogmetrics"
	"fieldlog/pkg/event"
	"fieldlog/pkg/format"
)

// FlushReason identifies why a flush occurred.
type FlushReason string

const (
	ByInterval       FlushReason = "by_interval"
	ByLimitOfEntries FlushReason = "by_limit_of_entries"
	ByUser           FlushReason = "by_user"
)

// Entry pairs the raw event with its formatted rendering at record time.
type Entry struct {
	Event     *event.Event
	Formatted string
}

// Delegate receives flushed batches off the producer path.
type Delegate func(entries []Entry, reason FlushReason)

// Config configures a Sink.
type Config struct {
	MaxEntries        int
	AutoFlushInterval time.Duration
	Formatters        []format.Field
	RenderOptions     format.RenderOptions
	Delegate          Delegate
	Log               *logrus.Logger
	Metrics           *flogmetrics.Registry
}

// callbackJob is one flushed batch awaiting delivery to Delegate off the
// producer path.
type callbackJob struct {
	batch  []Entry
	reason FlushReason
}

// Sink is the throttled in-memory ring transport.
type Sink struct {
	cfg Config
	log *logrus.Logger

	mu      sync.Mutex
	ring    []Entry
	enabled bool

	ticker     *time.Ticker
	stopCh     chan struct{}
	tickerWg   sync.WaitGroup
	callbackCh chan callbackJob
	callbackWg sync.WaitGroup
}

// New builds a Sink and starts its callback-delivery goroutine (so Delegate
// never runs on whatever goroutine called Record or Flush, per spec §4.4)
// plus, when cfg.AutoFlushInterval is positive, its interval-flush
// goroutine. Grounded on pkg/dispatch's per-transport queue/drain-goroutine
// shape, here used for delegate callbacks instead of sink delivery.
func New(cfg Config) *Sink {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 100
	}
	if cfg.Log == nil {
		cfg.Log = logrus.New()
	}
	s := &Sink{
		cfg:        cfg,
		log:        cfg.Log,
		enabled:    true,
		stopCh:     make(chan struct{}),
		callbackCh: make(chan callbackJob, 16),
	}
	s.callbackWg.Add(1)
	go s.runCallbacks()
	if cfg.AutoFlushInterval > 0 {
		s.ticker = time.NewTicker(cfg.AutoFlushInterval)
		s.tickerWg.Add(1)
		go s.tickLoop()
	}
	return s
}

// runCallbacks drains callbackCh and invokes Delegate, the same
// one-consumer-per-queue shape pkg/dispatch.drain uses for transports.
func (s *Sink) runCallbacks() {
	defer s.callbackWg.Done()
	for job := range s.callbackCh {
		if s.cfg.Delegate != nil {
			s.cfg.Delegate(job.batch, job.reason)
		}
	}
}

func (s *Sink) tickLoop() {
	defer s.tickerWg.Done()
	for {
		select {
		case <-s.ticker.C:
			s.flush(ByInterval)
		case <-s.stopCh:
			return
		}
	}
}

// Enabled reports whether the sink accepts new records.
func (s *Sink) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// SetEnabled toggles whether the sink accepts new records.
func (s *Sink) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// Record formats e through the configured fields, appends it to the ring,
// and triggers a size-triggered flush when the ring has reached
// MaxEntries. A brief overshoot past MaxEntries is allowed between the
// append and the flush call returning, per spec.
func (s *Sink) Record(e *event.Event) bool {
	if !s.Enabled() {
		return false
	}
	resolved := format.Resolve(s.cfg.Formatters, e, s.cfg.RenderOptions)
	formatted := joinResolved(resolved)

	s.mu.Lock()
	s.ring = append(s.ring, Entry{Event: e, Formatted: formatted})
	overflow := len(s.ring) >= s.cfg.MaxEntries
	s.mu.Unlock()

	if overflow {
		s.flush(ByLimitOfEntries)
	}
	return true
}

func joinResolved(fields []format.ResolvedField) string {
	var out string
	for _, f := range fields {
		out += f.Text
	}
	return out
}

// Flush drains the ring on the caller's behalf, satisfying the Flushable
// capability interface. It is equivalent to a user-triggered flush.
func (s *Sink) Flush() error {
	return s.flush(ByUser)
}

// flush atomically drains up to MaxEntries items from the head of the ring
// and delivers them to the delegate. Remaining items stay in the ring. An
// empty ring is a no-op: no delegate callback fires.
func (s *Sink) flush(reason FlushReason) error {
	s.mu.Lock()
	if len(s.ring) == 0 {
		s.mu.Unlock()
		return nil
	}
	n := len(s.ring)
	if n > s.cfg.MaxEntries {
		n = s.cfg.MaxEntries
	}
	batch := make([]Entry, n)
	copy(batch, s.ring[:n])
	s.ring = append(s.ring[:0], s.ring[n:]...)
	remaining := len(s.ring)
	s.mu.Unlock()

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.ThrottledDropsTotal.Add(0) // touch the collector so it's always present in /metrics
	}
	s.log.WithField("component", "throttled_sink").
		WithField("reason", reason).
		WithField("delivered", len(batch)).
		WithField("remaining", remaining).
		Debug("flushed throttled ring")

	select {
	case s.callbackCh <- callbackJob{batch: batch, reason: reason}:
	default:
		s.log.WithField("component", "throttled_sink").Warn("callback queue full, dropping flushed batch")
	}
	return nil
}

// Close stops the interval-flush goroutine if one is running, then stops
// the callback-delivery goroutine once every already-queued callback has
// been delivered. It does not flush remaining ring entries; call
// Flush first if that's desired.
func (s *Sink) Close() {
	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stopCh)
		s.tickerWg.Wait()
	}
	close(s.callbackCh)
	s.callbackWg.Wait()
}
