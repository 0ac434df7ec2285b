package durable

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldlog/pkg/event"
	"fieldlog/pkg/severity"
)

type testDelegate struct {
	mu sync.Mutex

	canSendChunks       [][]ChunkEntry
	nextResult          func(chunk []ChunkEntry) Completion
	discarded           []int
	finishedSent        [][]int64
	finishedRetry       []map[int64]error
	finishedDiscarded   [][]int64
	sent                [][]int64
	failures            []error
}

func (d *testDelegate) CanSend(chunk []ChunkEntry, complete func(Completion)) {
	d.mu.Lock()
	d.canSendChunks = append(d.canSendChunks, chunk)
	resultFn := d.nextResult
	d.mu.Unlock()

	result := Completion{Kind: AllSent}
	if resultFn != nil {
		result = resultFn(chunk)
	}
	complete(result)
}

func (d *testDelegate) DiscardedFromBuffer(count int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.discarded = append(d.discarded, count)
}

func (d *testDelegate) FinishedChunk(sentIDs []int64, retryIDsWithErrors map[int64]error, discardedIDs []int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.finishedSent = append(d.finishedSent, sentIDs)
	d.finishedRetry = append(d.finishedRetry, retryIDsWithErrors)
	d.finishedDiscarded = append(d.finishedDiscarded, discardedIDs)
}

func (d *testDelegate) Sent(sentIDs []int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, sentIDs)
}

func (d *testDelegate) DidFailWithError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures = append(d.failures, err)
}

func (d *testDelegate) chunkCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.canSendChunks)
}

func newEvent(text string) *event.Event {
	return event.New(severity.Info, event.StringMessage(text))
}

func TestRecord_PersistsAndFlushDeliversChunk(t *testing.T) {
	del := &testDelegate{}
	s, err := New(Config{StorageLocation: ":memory:", MaxEntries: 100, ChunkSize: 5, MaxRetries: 2, Delegate: del})
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 10; i++ {
		assert.True(t, s.Record(newEvent("m")))
	}

	require.NoError(t, s.Flush())
	require.Eventually(t, func() bool { return del.chunkCount() == 1 }, time.Second, 5*time.Millisecond)

	del.mu.Lock()
	assert.Len(t, del.canSendChunks[0], 5)
	del.mu.Unlock()
}

func TestFlush_ClampsStaleRowTimestampOnReplay(t *testing.T) {
	del := &testDelegate{}
	s, err := New(Config{
		StorageLocation:  ":memory:",
		MaxEntries:       100,
		ChunkSize:        5,
		MaxReplayPastAge: time.Minute,
	})
	require.NoError(t, err)
	defer s.Close()

	eventBlob, err := event.Marshal(newEvent("stale"))
	require.NoError(t, err)
	staleTS := time.Now().Add(-time.Hour).Unix()

	done := make(chan error, 1)
	s.cmds <- func() {
		_, err := s.store.Exec(context.Background(),
			"INSERT INTO buffer (timestamp, event_blob, message_blob, retry_attempt) VALUES (?, ?, NULL, 0)",
			staleTS, eventBlob)
		done <- err
	}
	require.NoError(t, <-done)

	s.cfg.Delegate = del
	require.NoError(t, s.Flush())
	require.Eventually(t, func() bool { return del.chunkCount() == 1 }, time.Second, 5*time.Millisecond)

	del.mu.Lock()
	defer del.mu.Unlock()
	require.Len(t, del.canSendChunks[0], 1)
	assert.WithinDuration(t, time.Now().Add(-time.Minute), del.canSendChunks[0][0].Timestamp, 5*time.Second)
}

func TestFlush_EmptyBufferIsNoOp(t *testing.T) {
	del := &testDelegate{}
	s, err := New(Config{StorageLocation: ":memory:", Delegate: del})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Flush())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, del.chunkCount())
}

func TestFlush_VacuumDiscardsOldestBeyondMaxEntries(t *testing.T) {
	del := &testDelegate{}
	s, err := New(Config{StorageLocation: ":memory:", MaxEntries: 100, ChunkSize: 25, Delegate: del})
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 150; i++ {
		assert.True(t, s.Record(newEvent("m")))
	}
	require.NoError(t, s.Flush())

	require.Eventually(t, func() bool {
		del.mu.Lock()
		defer del.mu.Unlock()
		return len(del.discarded) == 1
	}, time.Second, 5*time.Millisecond)

	del.mu.Lock()
	assert.Equal(t, 50, del.discarded[0])
	del.mu.Unlock()
}

func TestFlush_RetriesFailedChunkThenDiscardsAfterMaxRetries(t *testing.T) {
	del := &testDelegate{}
	attempt := 0
	del.nextResult = func(chunk []ChunkEntry) Completion {
		attempt++
		return Completion{Kind: ChunkFailed, Err: assert.AnError}
	}
	s, err := New(Config{StorageLocation: ":memory:", MaxEntries: 100, ChunkSize: 5, MaxRetries: 1, Delegate: del})
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 5; i++ {
		s.Record(newEvent("m"))
	}
	require.NoError(t, s.Flush())
	require.Eventually(t, func() bool {
		del.mu.Lock()
		defer del.mu.Unlock()
		return len(del.finishedDiscarded) == 1
	}, time.Second, 5*time.Millisecond)

	del.mu.Lock()
	assert.Len(t, del.finishedRetry[0], 5)
	del.mu.Unlock()

	// The retried rows are now sitting at retry_attempt=1; a second flush
	// exceeds MaxRetries=1, so they're discarded this time.
	require.NoError(t, s.Flush())
	require.Eventually(t, func() bool {
		del.mu.Lock()
		defer del.mu.Unlock()
		return len(del.finishedDiscarded) == 2
	}, time.Second, 5*time.Millisecond)

	del.mu.Lock()
	assert.Len(t, del.finishedDiscarded[1], 5)
	assert.Empty(t, del.finishedRetry[1])
	del.mu.Unlock()
}

func TestAutoFlushInterval(t *testing.T) {
	del := &testDelegate{}
	s, err := New(Config{
		StorageLocation:   ":memory:",
		MaxEntries:        100,
		ChunkSize:         10,
		AutoFlushInterval: 20 * time.Millisecond,
		Delegate:          del,
	})
	require.NoError(t, err)
	defer s.Close()

	s.Record(newEvent("x"))
	require.Eventually(t, func() bool { return del.chunkCount() >= 1 }, time.Second, 5*time.Millisecond)
}
