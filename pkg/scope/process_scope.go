// Package scope implements the process-wide ambient context: global tags,
// extra values, and user identity merged into every event at emission time,
// plus the capture-options and privacy-redaction flags that gate optional
// OS/device context. Reads are lock-free; writes are rare and serialized.
package scope

import (
	"sync"
	"sync/atomic"

	"fieldlog/pkg/event"
)

// CaptureOptions is a bitflag selecting which optional device/OS context
// fields get populated on snapshot capture. The zero value, CaptureNone,
// captures nothing — the spec's documented default.
type CaptureOptions uint32

const (
	CaptureNone     CaptureOptions = 0
	CaptureOS       CaptureOptions = 1 << iota
	CaptureDevice
	CaptureLocale
	CaptureTimezone
)

// Has reports whether all bits in want are set in c.
func (c CaptureOptions) Has(want CaptureOptions) bool {
	return c&want == want
}

// snapshot is the immutable value behind the atomic pointer. Every mutation
// replaces the pointer with a freshly built snapshot; nothing in here is
// ever mutated in place once published.
type snapshot struct {
	tags  map[string]string
	extra map[string]any
	user  *event.UserContext
}

func emptySnapshot() *snapshot {
	return &snapshot{tags: map[string]string{}, extra: map[string]any{}}
}

// ProcessScope is the process-wide singleton described in the concurrency
// model: a copy-on-write value reachable through an atomic pointer. Reads
// (Tags, Extra, User, every event construction) never block. Writes
// (SetTag, SetExtra, SetUser) serialize on writeMu, build a new snapshot
// from the current one, and swap the pointer — a reader observing the
// pointer mid-swap always sees either the old or the new snapshot whole,
// never a torn map.
type ProcessScope struct {
	current atomic.Pointer[snapshot]
	writeMu sync.Mutex

	captureOptions          atomic.Uint32
	disablePrivacyRedaction atomic.Bool
}

// Global is the process-wide scope instance. Callers needing an isolated
// scope for tests construct their own with New.
var Global = New()

// New returns a fresh ProcessScope with no tags, no extra, no user,
// CaptureNone, and privacy redaction disabled (the debug-default per spec).
func New() *ProcessScope {
	s := &ProcessScope{}
	s.current.Store(emptySnapshot())
	s.disablePrivacyRedaction.Store(true)
	return s
}

// Tags returns a snapshot copy of the current global tags. Safe to call
// from any goroutine without synchronization.
func (s *ProcessScope) Tags() map[string]string {
	cur := s.current.Load()
	out := make(map[string]string, len(cur.tags))
	for k, v := range cur.tags {
		out[k] = v
	}
	return out
}

// Extra returns a snapshot copy of the current global extra values.
func (s *ProcessScope) Extra() map[string]any {
	cur := s.current.Load()
	out := make(map[string]any, len(cur.extra))
	for k, v := range cur.extra {
		out[k] = v
	}
	return out
}

// User returns the current global user context, or nil if none is set.
func (s *ProcessScope) User() *event.UserContext {
	return s.current.Load().user
}

// SetTag sets a single global tag, copy-on-write.
func (s *ProcessScope) SetTag(key, value string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	cur := s.current.Load()
	next := &snapshot{
		tags:  copyTags(cur.tags),
		extra: cur.extra,
		user:  cur.user,
	}
	next.tags[key] = value
	s.current.Store(next)
}

// MergeTags merges the given tags into the global tag set, copy-on-write.
func (s *ProcessScope) MergeTags(tags map[string]string) {
	if len(tags) == 0 {
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	cur := s.current.Load()
	next := &snapshot{
		tags:  copyTags(cur.tags),
		extra: cur.extra,
		user:  cur.user,
	}
	for k, v := range tags {
		next.tags[k] = v
	}
	s.current.Store(next)
}

// SetExtra sets a single global extra value, copy-on-write.
func (s *ProcessScope) SetExtra(key string, value any) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	cur := s.current.Load()
	next := &snapshot{
		tags:  cur.tags,
		extra: copyExtra(cur.extra),
		user:  cur.user,
	}
	next.extra[key] = value
	s.current.Store(next)
}

// SetUser replaces the global user context. A nil user clears it.
func (s *ProcessScope) SetUser(u *event.UserContext) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	cur := s.current.Load()
	next := &snapshot{tags: cur.tags, extra: cur.extra, user: u}
	s.current.Store(next)
}

// Clear resets tags, extra, and user to empty, copy-on-write.
func (s *ProcessScope) Clear() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.current.Store(emptySnapshot())
}

// SetCaptureOptions atomically replaces the capture-options bitflag.
func (s *ProcessScope) SetCaptureOptions(opts CaptureOptions) {
	s.captureOptions.Store(uint32(opts))
}

// CaptureOptions reads the current capture-options bitflag without locking.
func (s *ProcessScope) CaptureOptions() CaptureOptions {
	return CaptureOptions(s.captureOptions.Load())
}

// SetDisablePrivacyRedaction atomically sets the privacy-redaction flag.
func (s *ProcessScope) SetDisablePrivacyRedaction(disabled bool) {
	s.disablePrivacyRedaction.Store(disabled)
}

// DisablePrivacyRedaction reads the privacy-redaction flag without locking.
func (s *ProcessScope) DisablePrivacyRedaction() bool {
	return s.disablePrivacyRedaction.Load()
}

func copyTags(m map[string]string) map[string]string {
	out := make(map[string]string, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyExtra(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
