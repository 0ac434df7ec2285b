package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fieldlog/pkg/severity"
)

// snapshot is the canonical, JSON-shaped on-the-wire representation of an
// Event. It exists only for Marshal/Unmarshal: durable storage (C7) and any
// other byte-oriented transport encode/decode through this type rather than
// reaching into Event's unexported fields.
type snapshot struct {
	ID             uuid.UUID         `json:"id"`
	Timestamp      time.Time         `json:"timestamp"`
	Level          severity.Level    `json:"level"`
	Message        string            `json:"message"`
	Subsystem      string            `json:"subsystem,omitempty"`
	Category       string            `json:"category,omitempty"`
	Tags           map[string]string `json:"tags,omitempty"`
	Extra          map[string]any    `json:"extra,omitempty"`
	Scope          Scope             `json:"scope"`
	AttachedObject json.RawMessage   `json:"attached_object,omitempty"`
}

// Marshal encodes e into its canonical byte form. The message is flattened
// to its literal (redaction-disabled) rendering: durable storage keeps the
// original text, not the lazy segment list, since segments may carry
// closures (FormatHint) that cannot round-trip through bytes.
func Marshal(e *Event) ([]byte, error) {
	snap := snapshot{
		ID:        e.id,
		Timestamp: e.timestamp,
		Level:     e.level,
		Message:   e.message.Literal(),
		Subsystem: e.subsystem,
		Category:  e.category,
		Tags:      e.tags,
		Extra:     e.extra,
		Scope:     e.scope,
	}
	if e.attachedObject != nil {
		_, data, err := e.attachedObject.Serialize()
		if err != nil {
			return nil, fmt.Errorf("event: marshal attached object: %w", err)
		}
		if json.Valid(data) {
			snap.AttachedObject = data
		}
	}
	out, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("event: marshal: %w", err)
	}
	return out, nil
}

// Unmarshal decodes bytes produced by Marshal back into an Event. The
// original strategy closure cannot round-trip; the reconstructed
// AttachedObject, if present, holds the already-serialized raw JSON bytes
// with a passthrough Strategy that returns them as data and no metadata.
func Unmarshal(data []byte) (*Event, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("event: unmarshal: %w", err)
	}
	e := &Event{
		id:        snap.ID,
		timestamp: snap.Timestamp,
		level:     snap.Level,
		message:   StringMessage(snap.Message),
		subsystem: snap.Subsystem,
		category:  snap.Category,
		tags:      snap.Tags,
		extra:     snap.Extra,
		scope:     snap.Scope,
	}
	if len(snap.AttachedObject) > 0 {
		raw := append([]byte(nil), snap.AttachedObject...)
		e.attachedObject = &AttachedObject{
			Value: raw,
			Strategy: func(v any) (map[string]any, []byte, error) {
				return nil, v.([]byte), nil
			},
		}
	}
	return e, nil
}
