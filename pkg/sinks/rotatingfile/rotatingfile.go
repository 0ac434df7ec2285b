// Package rotatingfile implements the size-rotating file sink (C8): append
// formatted lines to a current segment, rotate to a fresh segment once the
// current one exceeds a size limit, and delete the oldest archived segment
// once the archive count exceeds a limit. Grounded on the teacher's
// buffer.DiskBuffer rotation/recovery-scan shape (rotateFile,
// scanExistingFiles) and sinks.LocalFileSink's rotate-after-append trigger.
package rotatingfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"

	"fieldlog/internal/flogerr"
	"fieldlog/internal/flogmetrics"
	"fieldlog/pkg/event"
	"fieldlog/pkg/format"
)

// Config configures a Sink.
type Config struct {
	Directory        string
	Prefix           string
	Extension        string
	MaxFileSize      int64
	MaxFilesCount    int
	MaxTotalBytes    int64 // 0 disables total-size-based pruning
	CompressArchives bool
	Formatters       []format.Field
	RenderOptions    format.RenderOptions
	FilePermissions  os.FileMode
	DirPermissions   os.FileMode
	OnError          func(err error)
	Log              *logrus.Logger
	Metrics          *flogmetrics.Registry
}

// Sink is the rotating file transport. At most one process should own
// Directory; there is no multi-writer safety (spec invariant 1).
type Sink struct {
	cfg Config
	log *logrus.Logger

	mu          sync.Mutex
	enabled     bool
	degraded    bool
	current     *os.File
	writer      *bufio.Writer
	currentSize int64
	counter     int
}

// New prepares the target directory and scans it for an existing current
// segment (the highest-numbered one), recovering its size so rotation
// triggers at the right point after a restart.
func New(cfg Config) (*Sink, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = "log-"
	}
	if cfg.Extension == "" {
		cfg.Extension = "log"
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 100 * 1024 * 1024
	}
	if cfg.MaxFilesCount <= 0 {
		cfg.MaxFilesCount = 10
	}
	if cfg.FilePermissions == 0 {
		cfg.FilePermissions = 0644
	}
	if cfg.DirPermissions == 0 {
		cfg.DirPermissions = 0755
	}
	if cfg.Log == nil {
		cfg.Log = logrus.New()
	}
	if err := os.MkdirAll(cfg.Directory, cfg.DirPermissions); err != nil {
		return nil, flogerr.Wrap(flogerr.Config, "rotatingfile", "mkdir", err)
	}

	s := &Sink{cfg: cfg, log: cfg.Log, enabled: true}
	highest, err := s.scanExisting()
	if err != nil {
		return nil, flogerr.Wrap(flogerr.Config, "rotatingfile", "scan", err)
	}
	s.counter = highest
	if err := s.openCurrent(); err != nil {
		return nil, flogerr.Wrap(flogerr.Config, "rotatingfile", "open current", err)
	}
	return s, nil
}

// scanExisting globs the directory for existing segments and returns the
// highest counter found, so the next segment continues the sequence rather
// than overwriting it.
func (s *Sink) scanExisting() (int, error) {
	pattern := filepath.Join(s.cfg.Directory, s.cfg.Prefix+"*")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return 0, err
	}
	highest := 0
	for _, m := range matches {
		base := filepath.Base(m)
		base = strings.TrimPrefix(base, s.cfg.Prefix)
		base = strings.TrimSuffix(base, ".gz")
		base = strings.TrimSuffix(base, "."+s.cfg.Extension)
		if n, err := strconv.Atoi(base); err == nil && n > highest {
			highest = n
		}
	}
	return highest, nil
}

func (s *Sink) segmentPath(counter int) string {
	return filepath.Join(s.cfg.Directory, fmt.Sprintf("%s%d.%s", s.cfg.Prefix, counter, s.cfg.Extension))
}

// openCurrent opens (or creates) the current segment at s.counter and
// records its existing size, so a process restart resumes the rotation
// trigger at the right point rather than starting from zero.
func (s *Sink) openCurrent() error {
	path := s.segmentPath(s.counter)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, s.cfg.FilePermissions)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	s.current = f
	s.writer = bufio.NewWriter(f)
	s.currentSize = info.Size()
	return nil
}

// Enabled reports whether the sink currently accepts writes. A degraded
// sink (after an I/O error) still reports enabled — spec §4.5 says it
// "continues to accept future writes, which will retry open" rather than
// going permanently inert.
func (s *Sink) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// SetEnabled toggles whether the sink accepts writes.
func (s *Sink) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// Record formats e and appends the formatted line to the current segment,
// checking the rotation trigger after the write completes (size measured
// after write, per spec §4.5).
func (s *Sink) Record(e *event.Event) bool {
	resolved := format.Resolve(s.cfg.Formatters, e, s.cfg.RenderOptions)
	var line strings.Builder
	for _, f := range resolved {
		line.WriteString(f.Text)
	}
	line.WriteByte('\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return false
	}

	if s.current == nil {
		if err := s.openCurrent(); err != nil {
			s.fail(err)
			return false
		}
	}

	n, err := s.writer.WriteString(line.String())
	if err != nil {
		s.fail(err)
		return false
	}
	if ferr := s.writer.Flush(); ferr != nil {
		s.fail(ferr)
		return false
	}
	s.currentSize += int64(n)
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RotatingFileBytesWritten.Add(float64(n))
	}

	if s.currentSize >= s.cfg.MaxFileSize {
		if err := s.rotate(); err != nil {
			s.fail(err)
			return false
		}
	}
	s.degraded = false
	return true
}

// fail marks the sink degraded and reports err via OnError, without
// disabling future writes — an I/O error on one append may be transient.
func (s *Sink) fail(err error) {
	s.degraded = true
	if s.current != nil {
		s.current.Close()
		s.current = nil
		s.writer = nil
	}
	wrapped := flogerr.Wrap(flogerr.Permanent, "rotatingfile", "write", err)
	if s.cfg.OnError != nil {
		s.cfg.OnError(wrapped)
	}
	s.log.WithField("component", "rotating_file_sink").WithError(wrapped).Error("write failed")
}

// Degraded reports whether the last append failed.
func (s *Sink) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// rotate closes the current segment (optionally compressing it into a .gz
// archive), opens a fresh segment at offset 0, and deletes the oldest
// archive once the archive count exceeds MaxFilesCount. Must be called
// with s.mu held.
func (s *Sink) rotate() error {
	closedPath := s.current.Name()
	if err := s.writer.Flush(); err != nil {
		return err
	}
	if err := s.current.Close(); err != nil {
		return err
	}
	s.current = nil
	s.writer = nil

	if s.cfg.CompressArchives {
		if err := compressArchive(closedPath); err != nil {
			s.log.WithField("component", "rotating_file_sink").WithError(err).Warn("archive compression failed")
		}
	}

	s.counter++
	if err := s.openCurrent(); err != nil {
		return err
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RotatingFileRotations.Inc()
	}

	return s.pruneOldest()
}

func compressArchive(path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		gz.Close()
		out.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}

type archivedSegment struct {
	path    string
	counter int
	size    int64
}

// listArchives returns every archived segment (everything but the
// current one), sorted oldest (lowest counter) first.
func (s *Sink) listArchives() ([]archivedSegment, error) {
	pattern := filepath.Join(s.cfg.Directory, s.cfg.Prefix+"*")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}

	var archives []archivedSegment
	currentPath := s.segmentPath(s.counter)
	for _, m := range matches {
		if m == currentPath {
			continue
		}
		base := strings.TrimPrefix(filepath.Base(m), s.cfg.Prefix)
		base = strings.TrimSuffix(base, ".gz")
		base = strings.TrimSuffix(base, "."+s.cfg.Extension)
		n, err := strconv.Atoi(base)
		if err != nil {
			continue
		}
		info, err := os.Stat(m)
		var size int64
		if err == nil {
			size = info.Size()
		}
		archives = append(archives, archivedSegment{path: m, counter: n, size: size})
	}
	sort.Slice(archives, func(i, j int) bool { return archives[i].counter < archives[j].counter })
	return archives, nil
}

// pruneOldest deletes archived segments beyond MaxFilesCount, then beyond
// MaxTotalBytes of cumulative archive size if configured, oldest first.
// Grounded on the teacher's cleanup.DiskSpaceManager cleanupBySize/
// cleanupByCount: sort oldest-first by mtime (here, segment counter, an
// equivalent ordering since counters only increase), delete until the
// limit is satisfied.
func (s *Sink) pruneOldest() error {
	archives, err := s.listArchives()
	if err != nil {
		return err
	}

	excess := len(archives) - s.cfg.MaxFilesCount
	for i := 0; i < excess; i++ {
		if err := os.Remove(archives[i].path); err != nil {
			s.log.WithField("component", "rotating_file_sink").WithError(err).Warn("failed to delete oldest archive")
		}
	}
	if excess > 0 {
		archives = archives[excess:]
	}

	if s.cfg.MaxTotalBytes <= 0 {
		return nil
	}
	var total int64
	for _, a := range archives {
		total += a.size
	}
	for _, a := range archives {
		if total <= s.cfg.MaxTotalBytes {
			break
		}
		if err := os.Remove(a.path); err != nil {
			s.log.WithField("component", "rotating_file_sink").WithError(err).Warn("failed to delete archive over total size limit")
			continue
		}
		total -= a.size
	}
	return nil
}

// Close flushes and closes the current segment.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	if err := s.writer.Flush(); err != nil {
		return err
	}
	err := s.current.Close()
	s.current = nil
	s.writer = nil
	return err
}
