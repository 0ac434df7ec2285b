// Package durable implements the async durable sink (C7): a SQLite-backed
// bounded FIFO buffer with chunked delivery, retry, and vacuum, exactly as
// spec §4.3/§6 describe. All reads, writes, and timer ticks against the
// backing table are serialized through one dedicated command queue,
// grounded on the teacher's dead_letter_queue.go reprocessing/backoff
// shape, generalized from its append-only log files to a SQLite table.
package durable

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"fieldlog/internal/flogerr"
	"fieldlog/internal/flogmetrics"
	"fieldlog/pkg/event"
	"fieldlog/pkg/format"
	"fieldlog/pkg/sqlitestore"
)

const schema = `CREATE TABLE IF NOT EXISTS buffer (
	row_id        INTEGER PRIMARY KEY,
	timestamp     INTEGER NOT NULL,
	event_blob    BLOB NOT NULL,
	message_blob  BLOB,
	retry_attempt INTEGER NOT NULL
)`

// ChunkEntry is one row handed to the delegate for delivery.
type ChunkEntry struct {
	RowID        int64
	Timestamp    time.Time
	Event        *event.Event
	Formatted    []byte
	RetryAttempt int
}

// CompletionKind identifies how a delegate resolved a CanSend call.
type CompletionKind int

const (
	AllSent CompletionKind = iota
	ChunkFailed
	EventsFailed
)

// Completion is what a delegate passes to the completion func given to
// CanSend, reporting how a chunk's delivery attempt went.
type Completion struct {
	Kind        CompletionKind
	Err         error
	EventErrors map[int64]error // RowID -> error, for EventsFailed
}

// Delegate is the async durable sink's user-supplied callback surface.
type Delegate interface {
	// CanSend is handed an ordered chunk and must eventually invoke
	// complete exactly once, possibly from another goroutine.
	CanSend(chunk []ChunkEntry, complete func(Completion))
	DiscardedFromBuffer(count int)
	FinishedChunk(sentIDs []int64, retryIDsWithErrors map[int64]error, discardedIDs []int64)
	Sent(sentIDs []int64)
	DidFailWithError(err error)
}

// noopDelegate is used when Config.Delegate is left nil, so the sink never
// needs to nil-check its delegate at every call site.
type noopDelegate struct{}

func (noopDelegate) CanSend(chunk []ChunkEntry, complete func(Completion)) {
	complete(Completion{Kind: AllSent})
}
func (noopDelegate) DiscardedFromBuffer(count int)                                       {}
func (noopDelegate) FinishedChunk(sentIDs []int64, retryIDsWithErrors map[int64]error, discardedIDs []int64) {
}
func (noopDelegate) Sent(sentIDs []int64)       {}
func (noopDelegate) DidFailWithError(err error) {}

// Config configures a Sink.
type Config struct {
	StorageLocation   string // ":memory:" or a file path
	MaxEntries        int
	ChunkSize         int
	AutoFlushInterval time.Duration
	MaxRetries        int
	FlushOnRecord     bool
	// MaxReplayPastAge/MaxReplayFutureAge clamp a replayed row's stored
	// timestamp against the current clock when it is taken off the buffer
	// for delivery (0 disables the corresponding bound). Guards against a
	// wall-clock jump between the time a row was written and the time a
	// slow consumer replays it.
	MaxReplayPastAge   time.Duration
	MaxReplayFutureAge time.Duration
	Formatters        []format.Field
	RenderOptions     format.RenderOptions
	Delegate          Delegate
	Log               *logrus.Logger
	Metrics           *flogmetrics.Registry
}

// Sink is the async durable transport.
type Sink struct {
	cfg   Config
	log   *logrus.Logger
	store *sqlitestore.Store

	cmds   chan func()
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	enabled bool

	ticker *time.Ticker
}

// New opens the backing store, migrates its schema, and starts the
// dedicated command-queue goroutine.
func New(cfg Config) (*Sink, error) {
	if cfg.StorageLocation == "" {
		cfg.StorageLocation = ":memory:"
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10000
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 50
	}
	if cfg.Log == nil {
		cfg.Log = logrus.New()
	}
	if cfg.Delegate == nil {
		cfg.Delegate = noopDelegate{}
	}
	store, err := sqlitestore.Open(cfg.StorageLocation)
	if err != nil {
		return nil, flogerr.Wrap(flogerr.Config, "durable", "Open", err)
	}
	ctx := context.Background()
	if _, err := store.Exec(ctx, schema); err != nil {
		store.Close()
		return nil, flogerr.Wrap(flogerr.Config, "durable", "migrate", err)
	}

	s := &Sink{
		cfg:     cfg,
		log:     cfg.Log,
		store:   store,
		cmds:    make(chan func(), 256),
		stopCh:  make(chan struct{}),
		enabled: true,
	}
	s.wg.Add(1)
	go s.loop()

	if cfg.AutoFlushInterval > 0 {
		s.ticker = time.NewTicker(cfg.AutoFlushInterval)
		s.wg.Add(1)
		go s.tickLoop()
	}
	return s, nil
}

func (s *Sink) loop() {
	defer s.wg.Done()
	for {
		select {
		case cmd := <-s.cmds:
			cmd()
		case <-s.stopCh:
			// Drain whatever is already queued before exiting.
			for {
				select {
				case cmd := <-s.cmds:
					cmd()
				default:
					return
				}
			}
		}
	}
}

func (s *Sink) tickLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ticker.C:
			s.Flush()
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

// Record persists e at the tail of the buffer with retry_attempt=0. It
// blocks until the insert has run on the dedicated queue, so its bool
// return value reflects whether the insert actually succeeded.
func (s *Sink) Record(e *event.Event) bool {
	eventBlob, err := event.Marshal(e)
	if err != nil {
		s.cfg.Delegate.DidFailWithError(flogerr.Wrap(flogerr.Data, "durable", "encode event", err))
		return false
	}
	var messageBlob []byte
	if len(s.cfg.Formatters) > 0 {
		resolved := format.Resolve(s.cfg.Formatters, e, s.cfg.RenderOptions)
		for _, f := range resolved {
			messageBlob = append(messageBlob, f.Text...)
		}
	}

	done := make(chan error, 1)
	s.cmds <- func() {
		ctx := context.Background()
		_, err := s.store.Exec(ctx,
			"INSERT INTO buffer (timestamp, event_blob, message_blob, retry_attempt) VALUES (?, ?, ?, 0)",
			e.Timestamp().Unix(), eventBlob, messageBlob)
		done <- err
		if err == nil && s.cfg.FlushOnRecord {
			if count, cerr := s.bufferCount(ctx); cerr == nil && count > int64(s.cfg.MaxEntries) {
				s.doFlush(ctx)
			}
		}
	}
	if err := <-done; err != nil {
		s.cfg.Delegate.DidFailWithError(flogerr.Wrap(flogerr.Transient, "durable", "insert", err))
		return false
	}
	return true
}

// Flush runs a vacuum-then-take-chunk pass on the dedicated queue and
// returns once that pass has run. It satisfies the Flushable
// capability interface.
func (s *Sink) Flush() error {
	done := make(chan struct{})
	s.cmds <- func() {
		s.doFlush(context.Background())
		close(done)
	}
	<-done
	return nil
}

func (s *Sink) bufferCount(ctx context.Context) (int64, error) {
	return s.store.QueryRowInt64(ctx, "SELECT COUNT(*) FROM buffer")
}

// doFlush must only run on the command-queue goroutine.
func (s *Sink) doFlush(ctx context.Context) {
	count, err := s.bufferCount(ctx)
	if err != nil {
		s.cfg.Delegate.DidFailWithError(flogerr.Wrap(flogerr.Transient, "durable", "count", err))
		return
	}
	if count == 0 {
		return
	}

	if count > int64(s.cfg.MaxEntries) {
		discard := count - int64(s.cfg.MaxEntries)
		if err := s.deleteOldest(ctx, discard); err != nil {
			s.cfg.Delegate.DidFailWithError(flogerr.Wrap(flogerr.Transient, "durable", "vacuum", err))
			return
		}
		s.cfg.Delegate.DiscardedFromBuffer(int(discard))
	}

	chunk, err := s.takeChunk(ctx)
	if err != nil {
		s.cfg.Delegate.DidFailWithError(flogerr.Wrap(flogerr.Transient, "durable", "take chunk", err))
		return
	}
	if len(chunk) == 0 {
		return
	}

	s.cfg.Delegate.CanSend(chunk, func(c Completion) {
		// The delegate may call this from any goroutine; re-enqueue before
		// touching the buffer, per spec's concurrency clause.
		s.cmds <- func() {
			s.applyCompletion(context.Background(), chunk, c)
		}
	})
}

func (s *Sink) deleteOldest(ctx context.Context, n int64) error {
	_, err := s.store.Exec(ctx,
		"DELETE FROM buffer WHERE row_id IN (SELECT row_id FROM buffer ORDER BY row_id ASC LIMIT ?)", n)
	return err
}

func (s *Sink) takeChunk(ctx context.Context) ([]ChunkEntry, error) {
	var chunk []ChunkEntry
	err := s.store.QueryRows(ctx,
		"SELECT row_id, timestamp, event_blob, message_blob, retry_attempt FROM buffer ORDER BY row_id ASC LIMIT ?",
		func(rows *sql.Rows) error {
			var (
				rowID, ts    int64
				eventBlob    []byte
				messageBlob  []byte
				retryAttempt int
			)
			if err := rows.Scan(&rowID, &ts, &eventBlob, &messageBlob, &retryAttempt); err != nil {
				return err
			}
			e, derr := event.Unmarshal(eventBlob)
			if derr != nil {
				s.cfg.Delegate.DidFailWithError(flogerr.Wrap(flogerr.Data, "durable", fmt.Sprintf("decode row %d", rowID), derr))
				return nil
			}
			entryTime, _ := event.ClampTimestamp(time.Unix(ts, 0), time.Now(), s.cfg.MaxReplayPastAge, s.cfg.MaxReplayFutureAge)
			chunk = append(chunk, ChunkEntry{
				RowID:        rowID,
				Timestamp:    entryTime,
				Event:        e,
				Formatted:    messageBlob,
				RetryAttempt: retryAttempt,
			})
			return nil
		}, s.cfg.ChunkSize)
	if err != nil {
		return nil, err
	}
	if len(chunk) == 0 {
		return nil, nil
	}

	ids := make([]any, len(chunk))
	placeholders := ""
	for i, c := range chunk {
		ids[i] = c.RowID
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
	}
	if _, err := s.store.Exec(ctx, "DELETE FROM buffer WHERE row_id IN ("+placeholders+")", ids...); err != nil {
		return nil, err
	}
	return chunk, nil
}

func (s *Sink) applyCompletion(ctx context.Context, chunk []ChunkEntry, c Completion) {
	var sentIDs, discardedIDs []int64
	retryIDsWithErrors := make(map[int64]error)

	failed := func(entry ChunkEntry) error {
		switch c.Kind {
		case AllSent:
			return nil
		case ChunkFailed:
			return c.Err
		case EventsFailed:
			return c.EventErrors[entry.RowID]
		}
		return nil
	}

	for _, entry := range chunk {
		if err := failed(entry); err == nil {
			sentIDs = append(sentIDs, entry.RowID)
			continue
		} else if entry.RetryAttempt+1 <= s.cfg.MaxRetries {
			newAttempt := entry.RetryAttempt + 1
			blob, merr := event.Marshal(entry.Event)
			if merr != nil {
				discardedIDs = append(discardedIDs, entry.RowID)
				continue
			}
			if _, ierr := s.store.Exec(ctx,
				"INSERT INTO buffer (timestamp, event_blob, message_blob, retry_attempt) VALUES (?, ?, ?, ?)",
				entry.Timestamp.Unix(), blob, entry.Formatted, newAttempt); ierr != nil {
				s.cfg.Delegate.DidFailWithError(flogerr.Wrap(flogerr.Transient, "durable", "retry reinsert", ierr))
				discardedIDs = append(discardedIDs, entry.RowID)
				continue
			}
			retryIDsWithErrors[entry.RowID] = err
		} else {
			discardedIDs = append(discardedIDs, entry.RowID)
		}
	}

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.DurableRetryTotal.Add(float64(len(retryIDsWithErrors)))
		s.cfg.Metrics.DurableDiscardedTotal.Add(float64(len(discardedIDs)))
	}

	s.cfg.Delegate.FinishedChunk(sentIDs, retryIDsWithErrors, discardedIDs)
	s.cfg.Delegate.Sent(sentIDs)
}

// Close stops the command-queue and auto-flush goroutines after draining
// whatever commands are already queued, then closes the backing store.
func (s *Sink) Close() error {
	close(s.stopCh)
	if s.ticker != nil {
		s.ticker.Stop()
	}
	s.wg.Wait()
	return s.store.Close()
}
