package event

import "fmt"

// FormatHint renders a typed segment's value to a string. A nil hint falls
// back to fmt.Sprint. Hints are plain functions rather than an enum so
// callers can supply date/number/bool/measure formatting without this
// package knowing about any particular one.
type FormatHint func(value any) string

// Segment is one piece of a lazily-rendered message. The set is closed:
// LiteralSegment and TypedSegment are the only implementations.
type Segment interface {
	segment()
}

// LiteralSegment is plain text carried through rendering unchanged.
type LiteralSegment struct {
	Text string
}

func (LiteralSegment) segment() {}

// TypedSegment carries an interpolated value plus the per-segment
// rendering policy: how to format it, whether to redact it, and how to pad
// or truncate the rendered fragment.
type TypedSegment struct {
	Value      any
	Format     FormatHint
	Privacy    Privacy
	Padding    Padding
	Truncation Truncation
}

func (TypedSegment) segment() {}

// renderSegment produces the final string for one segment, applying format then
// privacy then truncation then padding, mirroring the field pipeline order
// in pkg/format.
func renderSegment(s Segment, disablePrivacyRedaction bool) string {
	switch seg := s.(type) {
	case LiteralSegment:
		return seg.Text
	case TypedSegment:
		var rendered string
		if seg.Format != nil {
			rendered = seg.Format(seg.Value)
		} else {
			rendered = fmt.Sprint(seg.Value)
		}
		rendered = seg.Privacy.Redact(rendered, disablePrivacyRedaction)
		rendered = seg.Truncation.Apply(rendered)
		rendered = seg.Padding.Apply(rendered)
		return rendered
	default:
		return ""
	}
}

// Message is the built, immutable result of a MessageBuilder. It holds its
// segment list lazily: no rendering happens until Render or Literal is
// called.
type Message struct {
	segments []Segment
}

// MessageBuilder accumulates segments. Building a message never renders
// anything; it is purely a list capture so that channel gating can skip
// segment construction entirely for an inert channel.
type MessageBuilder struct {
	segments []Segment
}

// NewMessageBuilder returns an empty builder.
func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{}
}

// Literal appends a plain-text segment.
func (b *MessageBuilder) Literal(text string) *MessageBuilder {
	b.segments = append(b.segments, LiteralSegment{Text: text})
	return b
}

// SegmentOption configures a TypedSegment appended via Value.
type SegmentOption func(*TypedSegment)

// WithFormat sets the segment's rendering hint.
func WithFormat(f FormatHint) SegmentOption {
	return func(s *TypedSegment) { s.Format = f }
}

// WithPrivacy sets the segment's privacy policy.
func WithPrivacy(p Privacy) SegmentOption {
	return func(s *TypedSegment) { s.Privacy = p }
}

// WithPadding sets the segment's padding directive.
func WithPadding(p Padding) SegmentOption {
	return func(s *TypedSegment) { s.Padding = p }
}

// WithTruncation sets the segment's truncation directive.
func WithTruncation(t Truncation) SegmentOption {
	return func(s *TypedSegment) { s.Truncation = t }
}

// Value appends a typed, interpolated segment.
func (b *MessageBuilder) Value(v any, opts ...SegmentOption) *MessageBuilder {
	seg := TypedSegment{Value: v}
	for _, opt := range opts {
		opt(&seg)
	}
	b.segments = append(b.segments, seg)
	return b
}

// Build finalizes the builder into an immutable Message.
func (b *MessageBuilder) Build() Message {
	segs := make([]Segment, len(b.segments))
	copy(segs, b.segments)
	return Message{segments: segs}
}

// StringMessage wraps a single plain string as a one-segment message, the
// common case for channels that never need interpolation.
func StringMessage(s string) Message {
	return Message{segments: []Segment{LiteralSegment{Text: s}}}
}

// Render walks the segment list, applying each segment's own formatting,
// privacy, truncation, and padding rules, and concatenates the results.
// Rendering is idempotent and side-effect free; it may be called more than
// once (e.g. by more than one formatter).
func (m Message) Render(disablePrivacyRedaction bool) string {
	if len(m.segments) == 0 {
		return ""
	}
	if len(m.segments) == 1 {
		return renderSegment(m.segments[0], disablePrivacyRedaction)
	}
	var out []byte
	for _, seg := range m.segments {
		out = append(out, renderSegment(seg, disablePrivacyRedaction)...)
	}
	return string(out)
}

// Literal renders the message with redaction disabled, for internal uses
// that need the raw textual body regardless of privacy policy (the
// fingerprint computation, the durable sink's canonical encoding).
func (m Message) Literal() string {
	return m.Render(true)
}

// Empty reports whether the message has no segments at all.
func (m Message) Empty() bool {
	return len(m.segments) == 0
}
