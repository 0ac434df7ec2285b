package format

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/fatih/color"

	"fieldlog/pkg/event"
)

// ResolvedField is one field's output after the full per-field pipeline has
// run, ready for a formatter to concatenate (text) or place into a
// structured container (JSON/MsgPack).
type ResolvedField struct {
	Name    string
	Text    string
	Raw     any
	Present bool
}

// RenderOptions carries the cross-field settings every formatter shares.
type RenderOptions struct {
	SkipMissingFields       bool
	DisablePrivacyRedaction bool
	ColorCapable            bool
}

// Resolve runs fields through resolution and the shared per-field pipeline
// (privacy, transforms, truncation, padding, format_string, colors), in
// that order, per the formatter engine's rendering algorithm. A field that
// resolves absent is either skipped entirely (SkipMissingFields) or emitted
// as an empty-but-present fragment.
func Resolve(fields []Field, e *event.Event, ro RenderOptions) []ResolvedField {
	out := make([]ResolvedField, 0, len(fields))
	for _, f := range fields {
		raw, ok := f.Resolve(e)
		if !ok {
			if ro.SkipMissingFields {
				continue
			}
			out = append(out, ResolvedField{Name: f.Name(), Text: "", Raw: nil, Present: false})
			continue
		}
		opts := f.Options()
		text := stringify(raw, opts.StructureFormat)
		text = applyPipeline(text, opts, ro)
		out = append(out, ResolvedField{Name: f.Name(), Text: text, Raw: raw, Present: true})
	}
	return out
}

// applyPipeline runs the six-step per-field transform in the order the
// formatter engine specifies: privacy, transforms, truncation, padding,
// format_string, colors.
func applyPipeline(text string, opts FieldOptions, ro RenderOptions) string {
	text = opts.Privacy.Redact(text, ro.DisablePrivacyRedaction)
	for _, fn := range opts.Transforms {
		text = fn(text)
	}
	text = opts.Truncation.Apply(text)
	text = opts.Padding.Apply(text)
	if opts.FormatString != "" {
		text = fmt.Sprintf(opts.FormatString, text)
	}
	if ro.ColorCapable && len(opts.Colors) > 0 {
		text = color.New(opts.Colors...).Sprint(text)
	}
	return text
}

// stringify turns a field's raw resolved value into text. Strings and byte
// slices pass through; string and any maps go through the field's declared
// structure_format; everything else, other slices included, uses fmt.Sprint.
func stringify(v any, sf StructureFormat) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case map[string]string:
		return encodeStringMap(val, sf)
	case map[string]any:
		return encodeAnyMap(val, sf)
	default:
		return fmt.Sprint(val)
	}
}

func encodeStringMap(m map[string]string, sf StructureFormat) string {
	generic := make(map[string]any, len(m))
	for k, v := range m {
		generic[k] = v
	}
	return encodeAnyMap(generic, sf)
}

func encodeAnyMap(m map[string]any, sf StructureFormat) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	switch sf {
	case StructureQueryString:
		vals := url.Values{}
		for _, k := range keys {
			vals.Set(k, fmt.Sprint(m[k]))
		}
		return vals.Encode()
	case StructureList:
		var b strings.Builder
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %v\n", k, m[k])
		}
		return strings.TrimRight(b.String(), "\n")
	case StructureTable:
		return encodeAsTable(keys, m)
	case StructureObject:
		var b strings.Builder
		for i, k := range keys {
			if i > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "%s=%v", k, m[k])
		}
		return b.String()
	default: // StructureJSON and StructureNone both fall back to JSON
		data, err := json.Marshal(m)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

func encodeAsTable(keys []string, m map[string]any) string {
	var b strings.Builder
	width := 0
	for _, k := range keys {
		if len(k) > width {
			width = len(k)
		}
	}
	for _, k := range keys {
		fmt.Fprintf(&b, "%-*s | %v\n", width, k, m[k])
	}
	return strings.TrimRight(b.String(), "\n")
}
