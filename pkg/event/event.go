// Package event defines the immutable Event record that flows through the
// pipeline, its ambient Scope, and the lazy message-segment machinery used
// to build it without paying interpolation cost on inert channels.
package event

import (
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"fieldlog/pkg/severity"
)

// AttachStrategy serializes an opaque attached object into metadata plus a
// byte payload. It is supplied by the caller attaching the object, never by
// this package, so arbitrary payload types never need to depend on event.
type AttachStrategy func(v any) (metadata map[string]any, data []byte, err error)

// AttachedObject is an opaque payload carried alongside an event, realized
// into (metadata, bytes) only when a formatter or sink asks for it.
type AttachedObject struct {
	Value    any
	Strategy AttachStrategy
}

// Serialize runs the attachment's strategy. A nil strategy is a programmer
// error caught at attach time, not here.
func (a *AttachedObject) Serialize() (metadata map[string]any, data []byte, err error) {
	return a.Strategy(a.Value)
}

// Event is an immutable record of a single log occurrence. Every field is
// set once at construction via New/Option and never mutated afterward;
// MergedTags and MergedExtra are computed views, not stored state.
type Event struct {
	id             uuid.UUID
	timestamp      time.Time
	level          severity.Level
	message        Message
	subsystem      string
	category       string
	tags           map[string]string
	extra          map[string]any
	attachedObject *AttachedObject
	scope          Scope

	fingerprint      uint64
	fingerprintKnown bool
}

// Option configures an Event at construction time. Options are applied in
// the order given to New.
type Option func(*Event)

// WithSubsystem sets the event's subsystem identifier.
func WithSubsystem(s string) Option { return func(e *Event) { e.subsystem = s } }

// WithCategory sets the event's category identifier.
func WithCategory(c string) Option { return func(e *Event) { e.category = c } }

// WithTags merges the given tags onto the event (later calls overwrite
// earlier ones for the same key).
func WithTags(tags map[string]string) Option {
	return func(e *Event) {
		if len(tags) == 0 {
			return
		}
		if e.tags == nil {
			e.tags = make(map[string]string, len(tags))
		}
		for k, v := range tags {
			e.tags[k] = v
		}
	}
}

// WithExtra merges the given extra entries onto the event.
func WithExtra(extra map[string]any) Option {
	return func(e *Event) {
		if len(extra) == 0 {
			return
		}
		if e.extra == nil {
			e.extra = make(map[string]any, len(extra))
		}
		for k, v := range extra {
			e.extra[k] = v
		}
	}
}

// WithAttachedObject attaches an opaque payload with its serialization
// strategy.
func WithAttachedObject(v any, strategy AttachStrategy) Option {
	if strategy == nil {
		panic("event: WithAttachedObject requires a non-nil AttachStrategy")
	}
	return func(e *Event) {
		e.attachedObject = &AttachedObject{Value: v, Strategy: strategy}
	}
}

// WithScope overrides the scope snapshot the event would otherwise inherit
// from the logger's scope reference. Channel.Write uses this to splice in
// the captured ambient scope; tests use it to supply a fixed scope.
func WithScope(s Scope) Option { return func(e *Event) { e.scope = s } }

// New constructs an immutable Event. level and msg are required; everything
// else defaults to zero value and can be set with Option functions.
func New(level severity.Level, msg Message, opts ...Option) *Event {
	e := &Event{
		id:        uuid.New(),
		timestamp: time.Now(),
		level:     level,
		message:   msg,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Event) ID() uuid.UUID            { return e.id }
func (e *Event) Timestamp() time.Time     { return e.timestamp }
func (e *Event) Level() severity.Level    { return e.level }
func (e *Event) Message() Message         { return e.message }
func (e *Event) Subsystem() string        { return e.subsystem }
func (e *Event) Category() string         { return e.category }
func (e *Event) Scope() Scope             { return e.scope }
func (e *Event) AttachedObject() *AttachedObject { return e.attachedObject }

// Tags returns the event-level tags exactly as set, without the scope
// merge. Callers that want the merged view call MergedTags.
func (e *Event) Tags() map[string]string { return e.tags }

// Extra returns the event-level extra map exactly as set, without the
// scope merge.
func (e *Event) Extra() map[string]any { return e.extra }

// MergedTags implements the spec's merge rule: event-level tags win,
// missing keys fall through to the scope's tags. Always returns a fresh
// map; the event itself is never rewritten.
func (e *Event) MergedTags() map[string]string {
	return mergedStrings(e.tags, e.scope.Tags)
}

// MergedExtra implements the same merge rule for the extra map.
func (e *Event) MergedExtra() map[string]any {
	return mergedAny(e.extra, e.scope.Extra)
}

// Fingerprint lazily computes and caches an xxhash digest over
// (subsystem, category, message literal), used by the dedup filter and the
// formatter's fingerprint field. Two events with identical subsystem,
// category, and rendered message text hash identically regardless of tags,
// extra, or timestamp.
func (e *Event) Fingerprint() uint64 {
	if e.fingerprintKnown {
		return e.fingerprint
	}
	h := xxhash.New()
	_, _ = h.WriteString(e.subsystem)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(e.category)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(e.message.Literal())
	e.fingerprint = h.Sum64()
	e.fingerprintKnown = true
	return e.fingerprint
}
