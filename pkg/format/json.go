package format

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"fieldlog/pkg/event"
)

// JSONFormatter renders the same declared field list as TextFormatter but
// into a JSON object, one named property per field. Structured fields
// (tags, extra, user_data, object_metadata) embed as nested JSON rather
// than as an escaped string, so the round-trip law in the testable
// properties holds.
type JSONFormatter struct {
	Fields             []Field
	SkipMissingFields  bool
	EncodeDataAsBase64 bool
}

// Format implements the formatter output contract, returning the
// marshaled JSON object as bytes.
func (f *JSONFormatter) Format(e *event.Event, disablePrivacyRedaction bool) ([]byte, bool) {
	resolved := Resolve(f.Fields, e, RenderOptions{
		SkipMissingFields:       f.SkipMissingFields,
		DisablePrivacyRedaction: disablePrivacyRedaction,
	})

	obj := make(map[string]json.RawMessage, len(resolved))
	for _, r := range resolved {
		if r.Name == "object" {
			f.encodeAttachedObject(obj, r)
			continue
		}
		obj[r.Name] = encodeJSONValue(r)
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, false
	}
	return data, true
}

// encodeAttachedObject implements spec §4.2's attached_object rule:
// inlined verbatim if valid JSON, else base64 when enabled, else omitted.
func (f *JSONFormatter) encodeAttachedObject(obj map[string]json.RawMessage, r ResolvedField) {
	if !r.Present {
		return
	}
	data, _ := r.Raw.([]byte)
	if len(data) == 0 {
		return
	}
	if json.Valid(data) {
		obj["attached_object"] = json.RawMessage(data)
		return
	}
	if f.EncodeDataAsBase64 {
		encoded, _ := json.Marshal(base64.StdEncoding.EncodeToString(data))
		obj["attached_object"] = encoded
		return
	}
	// Neither valid JSON nor base64 requested: omit per spec.
}

// encodeJSONValue picks the richest JSON representation available for a
// resolved field: the raw map itself when the field resolved a map whose
// text the pipeline left unchanged, its text when that text is already
// JSON, otherwise a plain JSON string.
func encodeJSONValue(r ResolvedField) json.RawMessage {
	if !r.Present {
		encoded, _ := json.Marshal("")
		return encoded
	}
	switch r.Raw.(type) {
	case map[string]string, map[string]any:
		for _, sf := range []StructureFormat{StructureNone, StructureJSON, StructureQueryString, StructureList, StructureTable, StructureObject} {
			if stringify(r.Raw, sf) == r.Text {
				if encoded, err := json.Marshal(r.Raw); err == nil {
					return encoded
				}
				break
			}
		}
	}
	trimmed := strings.TrimSpace(r.Text)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') && json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	encoded, err := json.Marshal(r.Text)
	if err != nil {
		encoded, _ = json.Marshal("")
	}
	return encoded
}
