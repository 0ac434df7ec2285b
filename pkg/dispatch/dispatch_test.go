package dispatch

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"fieldlog/pkg/event"
	"fieldlog/pkg/filter"
	"fieldlog/pkg/severity"
)

type recordingTransport struct {
	mu      sync.Mutex
	enabled bool
	records []*event.Event
	minimum severity.Level
	gated   bool
	reject  bool
}

func (t *recordingTransport) Enabled() bool { return t.enabled }

func (t *recordingTransport) Record(e *event.Event) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.reject {
		return false
	}
	t.records = append(t.records, e)
	return true
}

func (t *recordingTransport) MinimumAcceptedLevel() (severity.Level, bool) {
	return t.minimum, t.gated
}

func (t *recordingTransport) snapshot() []*event.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*event.Event, len(t.records))
	copy(out, t.records)
	return out
}

func newEvent(level severity.Level, text string) *event.Event {
	return event.New(level, event.StringMessage(text))
}

func TestDispatch_RejectsBelowLevelGate(t *testing.T) {
	tr := &recordingTransport{enabled: true}
	d := New(Config{Transports: []Transport{tr}, LevelGate: severity.Warning, IsSynchronous: true}, nil)
	d.Dispatch(newEvent(severity.Debug, "x"))
	assert.Empty(t, tr.snapshot())
}

func TestDispatch_FilterChainRejects(t *testing.T) {
	tr := &recordingTransport{enabled: true}
	reject := filter.Filter(func(e *event.Event) bool { return false })
	d := New(Config{Transports: []Transport{tr}, Filters: filter.Chain{reject}, IsSynchronous: true}, nil)
	d.Dispatch(newEvent(severity.Info, "x"))
	assert.Empty(t, tr.snapshot())
}

func TestDispatch_SkipsDisabledTransport(t *testing.T) {
	tr := &recordingTransport{enabled: false}
	d := New(Config{Transports: []Transport{tr}, IsSynchronous: true}, nil)
	d.Dispatch(newEvent(severity.Info, "x"))
	assert.Empty(t, tr.snapshot())
}

func TestDispatch_SkipsTransportBelowItsOwnMinimum(t *testing.T) {
	tr := &recordingTransport{enabled: true, gated: true, minimum: severity.Warning}
	d := New(Config{Transports: []Transport{tr}, IsSynchronous: true}, nil)
	d.Dispatch(newEvent(severity.Debug, "below"))
	assert.Empty(t, tr.snapshot())
	d.Dispatch(newEvent(severity.Error, "above"))
	assert.Len(t, tr.snapshot(), 1)
}

func TestDispatch_SynchronousRecordsBeforeReturn(t *testing.T) {
	tr := &recordingTransport{enabled: true}
	d := New(Config{Transports: []Transport{tr}, IsSynchronous: true}, nil)
	d.Dispatch(newEvent(severity.Info, "x"))
	assert.Len(t, tr.snapshot(), 1)
}

func TestDispatch_AsyncPreservesPerTransportFIFO(t *testing.T) {
	tr := &recordingTransport{enabled: true}
	d := New(Config{Transports: []Transport{tr}, IsSynchronous: false, QueueSize: 64}, nil)
	for i := 0; i < 50; i++ {
		d.Dispatch(newEvent(severity.Info, string(rune('a'+i%26))))
	}
	require.Eventually(t, func() bool {
		return len(tr.snapshot()) == 50
	}, time.Second, 5*time.Millisecond)

	records := tr.snapshot()
	for i, e := range records {
		assert.Equal(t, string(rune('a'+i%26)), e.Message().Literal())
	}
}

func TestDispatch_AsyncDropsWhenQueueFull(t *testing.T) {
	tr := &recordingTransport{enabled: true}
	// No drain will happen fast enough to keep up: queue size 1, transport
	// blocks on a signal so the second enqueue attempt must find it full.
	block := make(chan struct{})
	slow := &blockingTransport{release: block}
	d := New(Config{Transports: []Transport{slow}, IsSynchronous: false, QueueSize: 1}, nil)

	d.Dispatch(newEvent(severity.Info, "first")) // picked up by the drain goroutine, which then blocks
	time.Sleep(20 * time.Millisecond)            // let the drain goroutine dequeue "first"
	d.Dispatch(newEvent(severity.Info, "second")) // fills the now-empty queue
	d.Dispatch(newEvent(severity.Info, "third"))  // queue full, dropped

	close(block)
	require.Eventually(t, func() bool {
		return slow.count() >= 2
	}, time.Second, 5*time.Millisecond)
	assert.LessOrEqual(t, slow.count(), 2)
	_ = tr
}

type blockingTransport struct {
	release chan struct{}
	mu      sync.Mutex
	seen    int
	once    sync.Once
}

func (b *blockingTransport) Enabled() bool { return true }

func (b *blockingTransport) Record(e *event.Event) bool {
	b.once.Do(func() { <-b.release })
	b.mu.Lock()
	b.seen++
	b.mu.Unlock()
	return true
}

func (b *blockingTransport) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seen
}

type flushingTransport struct {
	enabled  bool
	flushed  int
	flushErr error
}

func (f *flushingTransport) Enabled() bool             { return f.enabled }
func (f *flushingTransport) Record(e *event.Event) bool { return true }
func (f *flushingTransport) Flush() error {
	f.flushed++
	return f.flushErr
}

func TestDispatch_FlushCallsEveryFlushableTransport(t *testing.T) {
	a := &flushingTransport{enabled: true}
	b := &recordingTransport{enabled: true}
	d := New(Config{Transports: []Transport{a, b}, IsSynchronous: true}, nil)
	errs := d.Flush()
	assert.Empty(t, errs)
	assert.Equal(t, 1, a.flushed)
}

func TestDispatch_CloseDrainsAndStopsGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("github.com/sirupsen/logrus.*"),
	)
	tr := &recordingTransport{enabled: true}
	d := New(Config{Transports: []Transport{tr}, IsSynchronous: false, QueueSize: 16}, nil)
	d.Dispatch(newEvent(severity.Info, "x"))
	d.Close()
	assert.Len(t, tr.snapshot(), 1)
}
