// Package format implements the declarative field-list formatter engine:
// a closed set of field types, shared per-field options (padding,
// truncation, privacy, transforms, color, structure encoding), and the
// text/JSON/MsgPack/SysLog/ASCII-table formatters built on top of them.
package format

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"

	"fieldlog/pkg/event"
	"fieldlog/pkg/severity"
)

// StructureFormat selects how a map or array valued field is encoded.
type StructureFormat int

const (
	StructureNone StructureFormat = iota
	StructureJSON
	StructureQueryString
	StructureList
	StructureTable
	StructureObject
)

// TimestampStyleKind selects the timestamp rendering.
type TimestampStyleKind int

const (
	TimestampISO8601 TimestampStyleKind = iota
	TimestampRFC3339
	TimestampUnixSeconds
	TimestampUnixMillis
	TimestampCustom
	TimestampXcode
)

// TimestampStyle configures the timestamp field. Pattern is only consulted
// when Kind == TimestampCustom, using Go's reference-time layout.
type TimestampStyle struct {
	Kind    TimestampStyleKind
	Pattern string
}

var (
	ISO8601Style  = TimestampStyle{Kind: TimestampISO8601}
	RFC3339Style  = TimestampStyle{Kind: TimestampRFC3339}
	UnixSeconds   = TimestampStyle{Kind: TimestampUnixSeconds}
	UnixMillis    = TimestampStyle{Kind: TimestampUnixMillis}
	XcodeStyle    = TimestampStyle{Kind: TimestampXcode}
)

// CustomTimestampStyle builds a TimestampCustom style from a Go layout string.
func CustomTimestampStyle(layout string) TimestampStyle {
	return TimestampStyle{Kind: TimestampCustom, Pattern: layout}
}

func (s TimestampStyle) render(t time.Time) string {
	switch s.Kind {
	case TimestampRFC3339:
		return t.Format(time.RFC3339Nano)
	case TimestampUnixSeconds:
		return strconv.FormatInt(t.Unix(), 10)
	case TimestampUnixMillis:
		return strconv.FormatInt(t.UnixMilli(), 10)
	case TimestampCustom:
		return t.Format(s.Pattern)
	case TimestampXcode:
		return t.Format("2006-01-02 15:04:05.000")
	default: // TimestampISO8601
		return t.Format("2006-01-02T15:04:05.000Z07:00")
	}
}

// LevelStyle selects the level field rendering.
type LevelStyle int

const (
	LevelShort LevelStyle = iota
	LevelSimple
	LevelNumeric
	LevelNumericReversed
	LevelEmoji
)

var levelEmoji = [severity.Count]string{
	severity.Emergency: "🆘",
	severity.Alert:     "🚨",
	severity.Critical:  "🔥",
	severity.Error:     "❌",
	severity.Warning:   "⚠️",
	severity.Notice:    "📢",
	severity.Info:      "ℹ️",
	severity.Debug:     "🐛",
	severity.Trace:     "🔎",
}

func renderLevel(l severity.Level, style LevelStyle) string {
	switch style {
	case LevelSimple:
		return fmt.Sprintf("%-9s", l.String())
	case LevelNumeric:
		return strconv.Itoa(int(l))
	case LevelNumericReversed:
		return strconv.Itoa(severity.Count - 1 - int(l))
	case LevelEmoji:
		if int(l) >= 0 && int(l) < severity.Count {
			return levelEmoji[l]
		}
		return "❓"
	default: // LevelShort
		return l.Short()
	}
}

// FieldOptions is the per-field rendering policy shared by every declared
// field. The zero value applies none of it: no padding, no truncation,
// public privacy, no transforms, no colors, no format_string wrapping.
type FieldOptions struct {
	Padding         event.Padding
	Truncation      event.Truncation
	Privacy         event.Privacy
	Transforms      []func(string) string
	FormatString    string
	Colors          []color.Attribute
	StructureFormat StructureFormat
}

// FieldOption configures a FieldOptions at field-construction time.
type FieldOption func(*FieldOptions)

func WithFieldPadding(p event.Padding) FieldOption {
	return func(o *FieldOptions) { o.Padding = p }
}

func WithFieldTruncation(t event.Truncation) FieldOption {
	return func(o *FieldOptions) { o.Truncation = t }
}

func WithFieldPrivacy(p event.Privacy) FieldOption {
	return func(o *FieldOptions) { o.Privacy = p }
}

func WithTransforms(fns ...func(string) string) FieldOption {
	return func(o *FieldOptions) { o.Transforms = append(o.Transforms, fns...) }
}

// WithFormatString wraps the rendered fragment in a single-placeholder
// decoration, e.g. "[%s]".
func WithFormatString(format string) FieldOption {
	return func(o *FieldOptions) { o.FormatString = format }
}

func WithColors(attrs ...color.Attribute) FieldOption {
	return func(o *FieldOptions) { o.Colors = append(o.Colors, attrs...) }
}

func WithStructureFormat(sf StructureFormat) FieldOption {
	return func(o *FieldOptions) { o.StructureFormat = sf }
}

func applyOptions(opts []FieldOption) FieldOptions {
	var o FieldOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Field is one declarative unit in a formatter's field list. Resolve
// produces the field's raw value (string, map, []byte, or any scalar) and
// whether it was present; Name is the property name used by structured
// (JSON/MsgPack) formatters.
type Field interface {
	Name() string
	Options() FieldOptions
	Resolve(e *event.Event) (value any, ok bool)
}

type fieldFunc struct {
	name    string
	opts    FieldOptions
	resolve func(e *event.Event) (any, bool)
}

func (f *fieldFunc) Name() string               { return f.name }
func (f *fieldFunc) Options() FieldOptions       { return f.opts }
func (f *fieldFunc) Resolve(e *event.Event) (any, bool) { return f.resolve(e) }

func newField(name string, opts []FieldOption, resolve func(e *event.Event) (any, bool)) Field {
	return &fieldFunc{name: name, opts: applyOptions(opts), resolve: resolve}
}

// TimestampField renders the event's timestamp in the given style.
func TimestampField(style TimestampStyle, opts ...FieldOption) Field {
	return newField("timestamp", opts, func(e *event.Event) (any, bool) {
		return style.render(e.Timestamp()), true
	})
}

// LevelField renders the event's severity level in the given style.
func LevelField(style LevelStyle, opts ...FieldOption) Field {
	return newField("level", opts, func(e *event.Event) (any, bool) {
		return renderLevel(e.Level(), style), true
	})
}

// MessageField renders the event's interpolated message text. Privacy
// redaction here is controlled by the field's own Privacy option, not by
// the per-segment privacy already baked into the message — both apply.
func MessageField(opts ...FieldOption) Field {
	return newField("message", opts, func(e *event.Event) (any, bool) {
		return e.Message().Render(true), true
	})
}

// LiteralField emits a constant string, ignoring the event entirely.
func LiteralField(s string) Field {
	return newField("literal", nil, func(e *event.Event) (any, bool) { return s, true })
}

// DelimiterField emits a constant separator string (conventionally kept
// distinct from LiteralField so formatters can special-case delimiters,
// e.g. omitting a trailing one).
func DelimiterField(s string) Field {
	return newField("delimiter", nil, func(e *event.Event) (any, bool) { return s, true })
}

func SubsystemField(opts ...FieldOption) Field {
	return newField("subsystem", opts, func(e *event.Event) (any, bool) {
		if e.Subsystem() == "" {
			return "", false
		}
		return e.Subsystem(), true
	})
}

func CategoryField(opts ...FieldOption) Field {
	return newField("category", opts, func(e *event.Event) (any, bool) {
		if e.Category() == "" {
			return "", false
		}
		return e.Category(), true
	})
}

// LabelField emits a fixed label string, useful as a static decoration
// field (e.g. a component name) distinct from the event's subsystem.
func LabelField(label string) Field {
	return newField("label", nil, func(e *event.Event) (any, bool) { return label, true })
}

// IconField maps the event's level to a caller-supplied glyph, falling
// back to empty (absent) when the level has no entry.
func IconField(icons map[severity.Level]string) Field {
	return newField("icon", nil, func(e *event.Event) (any, bool) {
		icon, ok := icons[e.Level()]
		return icon, ok
	})
}

func CallSiteField(opts ...FieldOption) Field {
	return newField("call_site", opts, func(e *event.Event) (any, bool) {
		cs := e.Scope().CallSite
		if cs.File == "" {
			return "", false
		}
		return fmt.Sprintf("%s:%d %s", cs.File, cs.Line, cs.Function), true
	})
}

// CallingThreadField renders the scope's thread identifier. Go has no
// stable goroutine-ID API, so this is best-effort (see pkg/scope.Capture).
func CallingThreadField(opts ...FieldOption) Field {
	return newField("calling_thread", opts, func(e *event.Event) (any, bool) {
		return strconv.FormatInt(e.Scope().ThreadID, 10), true
	})
}

func ProcessIDField(opts ...FieldOption) Field {
	return newField("process_id", opts, func(e *event.Event) (any, bool) {
		return strconv.Itoa(e.Scope().ProcessID), true
	})
}

func ProcessNameField(opts ...FieldOption) Field {
	return newField("process_name", opts, func(e *event.Event) (any, bool) {
		name := e.Scope().ProcessName
		return name, name != ""
	})
}

func UserIDField(opts ...FieldOption) Field {
	return newField("user_id", opts, func(e *event.Event) (any, bool) {
		u := e.Scope().User
		if u == nil || u.ID == "" {
			return "", false
		}
		return u.ID, true
	})
}

func UserEmailField(opts ...FieldOption) Field {
	return newField("user_email", opts, func(e *event.Event) (any, bool) {
		u := e.Scope().User
		if u == nil || u.Email == "" {
			return "", false
		}
		return u.Email, true
	})
}

func UserNameField(opts ...FieldOption) Field {
	return newField("user_name", opts, func(e *event.Event) (any, bool) {
		u := e.Scope().User
		if u == nil || u.Username == "" {
			return "", false
		}
		return u.Username, true
	})
}

func IPAddressField(opts ...FieldOption) Field {
	return newField("ip_address", opts, func(e *event.Event) (any, bool) {
		u := e.Scope().User
		if u == nil || u.IP == "" {
			return "", false
		}
		return u.IP, true
	})
}

// UserDataField emits the scope user's data map, or a subset of it when
// keys are given. Intended for structure_format encoding, not the scalar
// pipeline.
func UserDataField(keys ...string) Field {
	return newField("user_data", []FieldOption{WithStructureFormat(StructureObject)}, func(e *event.Event) (any, bool) {
		u := e.Scope().User
		if u == nil || len(u.Data) == 0 {
			return nil, false
		}
		return selectKeysAny(u.Data, keys), true
	})
}

func FingerprintField(opts ...FieldOption) Field {
	return newField("fingerprint", opts, func(e *event.Event) (any, bool) {
		return strconv.FormatUint(e.Fingerprint(), 16), true
	})
}

func EventUUIDField(opts ...FieldOption) Field {
	return newField("event_uuid", opts, func(e *event.Event) (any, bool) {
		return e.ID().String(), true
	})
}

// ObjectMetadataField emits the attached object's metadata map (or a
// subset of it), serializing the strategy lazily.
func ObjectMetadataField(keys ...string) Field {
	return newField("object_metadata", []FieldOption{WithStructureFormat(StructureObject)}, func(e *event.Event) (any, bool) {
		ao := e.AttachedObject()
		if ao == nil {
			return nil, false
		}
		meta, _, err := ao.Serialize()
		if err != nil || len(meta) == 0 {
			return nil, false
		}
		return selectKeysAny(meta, keys), true
	})
}

// ObjectField emits the attached object's raw serialized bytes.
func ObjectField() Field {
	return newField("object", nil, func(e *event.Event) (any, bool) {
		ao := e.AttachedObject()
		if ao == nil {
			return nil, false
		}
		_, data, err := ao.Serialize()
		if err != nil || data == nil {
			return nil, false
		}
		return data, true
	})
}

// TagsField emits the event's merged tags, or a subset of it when keys are given.
func TagsField(keys ...string) Field {
	return newField("tags", []FieldOption{WithStructureFormat(StructureObject)}, func(e *event.Event) (any, bool) {
		merged := e.MergedTags()
		if len(merged) == 0 {
			return nil, false
		}
		return selectKeysString(merged, keys), true
	})
}

// ExtraField emits the event's merged extra map, or a subset of it when
// keys are given.
func ExtraField(keys ...string) Field {
	return newField("extra", []FieldOption{WithStructureFormat(StructureObject)}, func(e *event.Event) (any, bool) {
		merged := e.MergedExtra()
		if len(merged) == 0 {
			return nil, false
		}
		return selectKeysAny(merged, keys), true
	})
}

// StackFrameField emits the call site as a single "frame" string; the
// library captures only the immediate call site (see pkg/scope), not a
// full stack trace, so this renders the same call site as CallSiteField,
// as "file:line" without the function name CallSiteField appends.
func StackFrameField(opts ...FieldOption) Field {
	return newField("stack_frame", opts, func(e *event.Event) (any, bool) {
		cs := e.Scope().CallSite
		if cs.File == "" {
			return "", false
		}
		return fmt.Sprintf("%s:%d", cs.File, cs.Line), true
	})
}

// CustomValueField wraps an arbitrary resolver function under a
// caller-chosen field name.
func CustomValueField(name string, fn func(e *event.Event) (any, bool), opts ...FieldOption) Field {
	return newField(name, opts, fn)
}

func selectKeysString(m map[string]string, keys []string) map[string]string {
	if len(keys) == 0 {
		return m
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := m[k]; ok {
			out[k] = v
		}
	}
	return out
}

func selectKeysAny(m map[string]any, keys []string) map[string]any {
	if len(keys) == 0 {
		return m
	}
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := m[k]; ok {
			out[k] = v
		}
	}
	return out
}
