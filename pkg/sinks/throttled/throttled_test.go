package throttled

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldlog/pkg/event"
	"fieldlog/pkg/severity"
)

func newEvent(text string) *event.Event {
	return event.New(severity.Info, event.StringMessage(text))
}

type capturedFlush struct {
	entries []Entry
	reason  FlushReason
}

type flushRecorder struct {
	mu      sync.Mutex
	flushes []capturedFlush
}

func (r *flushRecorder) delegate(entries []Entry, reason FlushReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes = append(r.flushes, capturedFlush{entries, reason})
}

func (r *flushRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flushes)
}

func (r *flushRecorder) at(i int) capturedFlush {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushes[i]
}

func TestRecord_NoFlushBelowLimit(t *testing.T) {
	rec := &flushRecorder{}
	s := New(Config{MaxEntries: 5, Delegate: rec.delegate})
	defer s.Close()

	for i := 0; i < 4; i++ {
		s.Record(newEvent("m"))
	}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, rec.count())
}

func TestRecord_FlushesByLimitOfEntries(t *testing.T) {
	rec := &flushRecorder{}
	s := New(Config{MaxEntries: 5, Delegate: rec.delegate})
	defer s.Close()

	for i := 0; i < 12; i++ {
		s.Record(newEvent(string(rune('a' + i))))
	}

	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, ByLimitOfEntries, rec.at(0).reason)
	assert.Len(t, rec.at(0).entries, 5)
	assert.Len(t, rec.at(1).entries, 5)

	s.mu.Lock()
	remaining := len(s.ring)
	s.mu.Unlock()
	assert.Equal(t, 2, remaining)
}

func TestFlush_EmptyRingIsNoOp(t *testing.T) {
	rec := &flushRecorder{}
	s := New(Config{MaxEntries: 5, Delegate: rec.delegate})
	defer s.Close()

	require.NoError(t, s.Flush())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, rec.count())
}

func TestFlush_UserTriggeredDeliversRemaining(t *testing.T) {
	rec := &flushRecorder{}
	s := New(Config{MaxEntries: 100, Delegate: rec.delegate})
	defer s.Close()

	s.Record(newEvent("a"))
	s.Record(newEvent("b"))
	require.NoError(t, s.Flush())

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, ByUser, rec.at(0).reason)
	assert.Len(t, rec.at(0).entries, 2)
}

func TestAutoFlushInterval(t *testing.T) {
	flushed := make(chan capturedFlush, 1)
	s := New(Config{
		MaxEntries:        100,
		AutoFlushInterval: 20 * time.Millisecond,
		Delegate: func(entries []Entry, reason FlushReason) {
			flushed <- capturedFlush{entries, reason}
		},
	})
	defer s.Close()
	s.Record(newEvent("x"))

	select {
	case cf := <-flushed:
		assert.Equal(t, ByInterval, cf.reason)
		assert.Len(t, cf.entries, 1)
	case <-time.After(time.Second):
		t.Fatal("expected interval flush")
	}
}

func TestSetEnabled(t *testing.T) {
	s := New(Config{MaxEntries: 5})
	defer s.Close()
	assert.True(t, s.Enabled())
	s.SetEnabled(false)
	assert.False(t, s.Enabled())
}

func TestFlush_DeliversOffProducerGoroutine(t *testing.T) {
	producerGoroutine := make(chan struct{})
	delegateGoroutine := make(chan struct{})
	done := make(chan struct{})

	s := New(Config{MaxEntries: 1, Delegate: func(entries []Entry, reason FlushReason) {
		close(delegateGoroutine)
		<-done // delegate blocks until the test says so
	}})
	defer s.Close()

	go func() {
		defer close(producerGoroutine)
		s.Record(newEvent("x")) // triggers a size flush at MaxEntries=1
	}()

	select {
	case <-producerGoroutine:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on the delegate instead of returning immediately")
	}

	select {
	case <-delegateGoroutine:
	case <-time.After(time.Second):
		t.Fatal("expected delegate to run")
	}
	close(done)
}
