// Package dlq is the dead-letter queue: a durability backstop for events
// a destination sink gave up on after exhausting its own retries. Rather
// than vanish into a log line, a dropped batch is appended as a JSON line
// to a rotating file so an operator can inspect or replay it later.
// Grounded on the teacher's pkg/dlq.DeadLetterQueue file-backed entry
// log and rotation policy, trimmed of its reprocessing scheduler and
// alert manager (no SPEC_FULL component consumes alerts; operators read
// the DLQ file directly, the way they'd read any other log).
package dlq

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"fieldlog/internal/flogerr"
)

// Entry is one dead-lettered item.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Sink      string    `json:"sink"`
	Reason    string    `json:"reason"`
	Payload   string    `json:"payload"`
}

// Config configures a Queue.
type Config struct {
	Directory   string
	MaxFileSize int64 // rotate after this many bytes, defaults to 10MiB
	Log         *logrus.Logger
}

// Queue appends dead-lettered entries to a rotating file.
type Queue struct {
	cfg Config
	log *logrus.Logger

	mu          sync.Mutex
	file        *os.File
	writer      *bufio.Writer
	currentSize int64
	total       int64
}

// New opens (or creates) the dead-letter directory and its current file.
func New(cfg Config) (*Queue, error) {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 << 20
	}
	if cfg.Log == nil {
		cfg.Log = logrus.New()
	}
	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, flogerr.Wrap(flogerr.Config, "dlq", "mkdir", err)
	}
	q := &Queue{cfg: cfg, log: cfg.Log}
	if err := q.openCurrent(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *Queue) path() string {
	return filepath.Join(q.cfg.Directory, "deadletter.jsonl")
}

func (q *Queue) openCurrent() error {
	f, err := os.OpenFile(q.path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return flogerr.Wrap(flogerr.Config, "dlq", "open", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return flogerr.Wrap(flogerr.Config, "dlq", "stat", err)
	}
	q.file = f
	q.writer = bufio.NewWriter(f)
	q.currentSize = info.Size()
	return nil
}

// Add appends one entry, rotating the backing file if it has grown past
// MaxFileSize. A failure to persist is logged, not returned, since a
// dead-letter write is already the last line of defense.
func (q *Queue) Add(sink, reason string, payload []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry := Entry{Timestamp: time.Now(), Sink: sink, Reason: reason, Payload: string(payload)}
	line, err := json.Marshal(entry)
	if err != nil {
		q.log.WithField("component", "dlq").WithError(err).Error("failed to encode dead-letter entry")
		return
	}
	line = append(line, '\n')

	if _, err := q.writer.Write(line); err != nil {
		q.log.WithField("component", "dlq").WithError(err).Error("failed to write dead-letter entry")
		return
	}
	q.writer.Flush()
	q.currentSize += int64(len(line))
	q.total++

	if q.currentSize >= q.cfg.MaxFileSize {
		q.rotate()
	}
}

func (q *Queue) rotate() {
	q.writer.Flush()
	q.file.Close()
	archived := filepath.Join(q.cfg.Directory, "deadletter-"+time.Now().Format("20060102T150405")+".jsonl")
	if err := os.Rename(q.path(), archived); err != nil {
		q.log.WithField("component", "dlq").WithError(err).Warn("failed to rotate dead-letter file")
	}
	if err := q.openCurrent(); err != nil {
		q.log.WithField("component", "dlq").WithError(err).Error("failed to reopen dead-letter file after rotation")
	}
}

// Total reports how many entries have been written since Queue was opened.
func (q *Queue) Total() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.total
}

// Close flushes and closes the current file.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.writer.Flush()
	return q.file.Close()
}
