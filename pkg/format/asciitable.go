package format

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/olekukonko/tablewriter"

	"fieldlog/pkg/event"
)

// ASCIITableFormatter renders a "display" sink's event as a Field/Value
// table: one (name, text) row per HeaderFields entry (conventionally
// timestamp and message), then a (key, value) row per entry drawn from
// RowSources (conventionally tags, extra, user_data).
type ASCIITableFormatter struct {
	HeaderFields      []Field
	RowSources        []Field
	SkipMissingFields bool
}

// Format implements the formatter output contract, rendering the full
// Unicode box-drawn table as a string.
func (f *ASCIITableFormatter) Format(e *event.Event, disablePrivacyRedaction bool) (string, bool) {
	ro := RenderOptions{SkipMissingFields: f.SkipMissingFields, DisablePrivacyRedaction: disablePrivacyRedaction}
	header := Resolve(f.HeaderFields, e, ro)
	rows := Resolve(f.RowSources, e, ro)

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.Header("Field", "Value")

	for _, r := range header {
		_ = table.Append(r.Name, r.Text)
	}
	for _, r := range rows {
		appendRowSource(table, r)
	}
	if err := table.Render(); err != nil {
		return "", false
	}
	return buf.String(), true
}

func appendRowSource(table *tablewriter.Table, r ResolvedField) {
	switch raw := r.Raw.(type) {
	case map[string]string:
		for _, k := range sortedKeys(raw) {
			_ = table.Append(fmt.Sprintf("%s.%s", r.Name, k), raw[k])
		}
	case map[string]any:
		keys := make([]string, 0, len(raw))
		for k := range raw {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			_ = table.Append(fmt.Sprintf("%s.%s", r.Name, k), fmt.Sprint(raw[k]))
		}
	default:
		if r.Present {
			_ = table.Append(r.Name, r.Text)
		}
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
