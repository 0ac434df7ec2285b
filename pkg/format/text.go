package format

import (
	"strings"

	"fieldlog/pkg/event"
)

// TextFormatter concatenates a declared field list into one text line,
// applying each field's per-field pipeline then joining the fragments.
type TextFormatter struct {
	Fields            []Field
	SkipMissingFields bool
	ColorCapable      bool
}

// Format implements the formatter output contract: it never returns
// (nil, false) — a text formatter always produces output, even if empty.
func (f *TextFormatter) Format(e *event.Event, disablePrivacyRedaction bool) (string, bool) {
	resolved := Resolve(f.Fields, e, RenderOptions{
		SkipMissingFields:       f.SkipMissingFields,
		DisablePrivacyRedaction: disablePrivacyRedaction,
		ColorCapable:            f.ColorCapable,
	})
	var b strings.Builder
	for _, r := range resolved {
		b.WriteString(r.Text)
	}
	return b.String(), true
}
