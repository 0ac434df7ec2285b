package format

import (
	"encoding/binary"
	"math"

	"fieldlog/pkg/event"
)

// MsgPackFormatter renders the same declared field list into a MsgPack map.
// No MsgPack library is available anywhere in the retrieved corpus (see
// DESIGN.md), so this is a small hand-rolled encoder covering exactly the
// subset the field list needs: map, str, bin, int, float, bool, nil, array.
type MsgPackFormatter struct {
	Fields            []Field
	SkipMissingFields bool
}

// Format implements the formatter output contract, returning the MsgPack
// encoding of the resolved field map.
func (f *MsgPackFormatter) Format(e *event.Event, disablePrivacyRedaction bool) ([]byte, bool) {
	resolved := Resolve(f.Fields, e, RenderOptions{
		SkipMissingFields:       f.SkipMissingFields,
		DisablePrivacyRedaction: disablePrivacyRedaction,
	})

	type entry struct {
		key string
		val any
	}
	entries := make([]entry, 0, len(resolved))
	for _, r := range resolved {
		if r.Name == "object" {
			if data, ok := r.Raw.([]byte); ok && len(data) > 0 {
				entries = append(entries, entry{key: "attached_object", val: data})
			}
			continue
		}
		if mapVal, ok := r.Raw.(map[string]any); ok {
			entries = append(entries, entry{key: r.Name, val: mapVal})
			continue
		}
		if mapVal, ok := r.Raw.(map[string]string); ok {
			entries = append(entries, entry{key: r.Name, val: mapVal})
			continue
		}
		if r.Present {
			entries = append(entries, entry{key: r.Name, val: r.Text})
		} else {
			entries = append(entries, entry{key: r.Name, val: nil})
		}
	}

	enc := &msgpackEncoder{}
	enc.writeMapHeader(len(entries))
	for _, e := range entries {
		enc.writeString(e.key)
		enc.encodeValue(e.val)
	}
	return enc.buf, true
}

type msgpackEncoder struct {
	buf []byte
}

func (e *msgpackEncoder) encodeValue(v any) {
	switch val := v.(type) {
	case nil:
		e.buf = append(e.buf, 0xc0)
	case bool:
		if val {
			e.buf = append(e.buf, 0xc3)
		} else {
			e.buf = append(e.buf, 0xc2)
		}
	case string:
		e.writeString(val)
	case []byte:
		e.writeBin(val)
	case int:
		e.writeInt(int64(val))
	case int64:
		e.writeInt(val)
	case uint64:
		e.writeUint(val)
	case float64:
		e.writeFloat(val)
	case float32:
		e.writeFloat(float64(val))
	case map[string]any:
		e.writeMapHeader(len(val))
		for k, v := range val {
			e.writeString(k)
			e.encodeValue(v)
		}
	case map[string]string:
		e.writeMapHeader(len(val))
		for k, v := range val {
			e.writeString(k)
			e.writeString(v)
		}
	case []any:
		e.writeArrayHeader(len(val))
		for _, item := range val {
			e.encodeValue(item)
		}
	default:
		e.writeString(toText(val))
	}
}

func toText(v any) string {
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return ""
}

func (e *msgpackEncoder) writeString(s string) {
	n := len(s)
	switch {
	case n <= 31:
		e.buf = append(e.buf, 0xa0|byte(n))
	case n <= 0xff:
		e.buf = append(e.buf, 0xd9, byte(n))
	case n <= 0xffff:
		e.buf = append(e.buf, 0xda)
		e.buf = appendUint16(e.buf, uint16(n))
	default:
		e.buf = append(e.buf, 0xdb)
		e.buf = appendUint32(e.buf, uint32(n))
	}
	e.buf = append(e.buf, s...)
}

func (e *msgpackEncoder) writeBin(b []byte) {
	n := len(b)
	switch {
	case n <= 0xff:
		e.buf = append(e.buf, 0xc4, byte(n))
	case n <= 0xffff:
		e.buf = append(e.buf, 0xc5)
		e.buf = appendUint16(e.buf, uint16(n))
	default:
		e.buf = append(e.buf, 0xc6)
		e.buf = appendUint32(e.buf, uint32(n))
	}
	e.buf = append(e.buf, b...)
}

func (e *msgpackEncoder) writeMapHeader(n int) {
	switch {
	case n <= 15:
		e.buf = append(e.buf, 0x80|byte(n))
	case n <= 0xffff:
		e.buf = append(e.buf, 0xde)
		e.buf = appendUint16(e.buf, uint16(n))
	default:
		e.buf = append(e.buf, 0xdf)
		e.buf = appendUint32(e.buf, uint32(n))
	}
}

func (e *msgpackEncoder) writeArrayHeader(n int) {
	switch {
	case n <= 15:
		e.buf = append(e.buf, 0x90|byte(n))
	case n <= 0xffff:
		e.buf = append(e.buf, 0xdc)
		e.buf = appendUint16(e.buf, uint16(n))
	default:
		e.buf = append(e.buf, 0xdd)
		e.buf = appendUint32(e.buf, uint32(n))
	}
}

func (e *msgpackEncoder) writeInt(v int64) {
	switch {
	case v >= 0 && v <= 127:
		e.buf = append(e.buf, byte(v))
	case v < 0 && v >= -32:
		e.buf = append(e.buf, byte(v))
	case v >= math.MinInt8 && v <= math.MaxInt8:
		e.buf = append(e.buf, 0xd0, byte(v))
	case v >= math.MinInt16 && v <= math.MaxInt16:
		e.buf = append(e.buf, 0xd1)
		e.buf = appendUint16(e.buf, uint16(v))
	case v >= math.MinInt32 && v <= math.MaxInt32:
		e.buf = append(e.buf, 0xd2)
		e.buf = appendUint32(e.buf, uint32(v))
	default:
		e.buf = append(e.buf, 0xd3)
		e.buf = appendUint64(e.buf, uint64(v))
	}
}

func (e *msgpackEncoder) writeUint(v uint64) {
	switch {
	case v <= 127:
		e.buf = append(e.buf, byte(v))
	case v <= math.MaxUint8:
		e.buf = append(e.buf, 0xcc, byte(v))
	case v <= math.MaxUint16:
		e.buf = append(e.buf, 0xcd)
		e.buf = appendUint16(e.buf, uint16(v))
	case v <= math.MaxUint32:
		e.buf = append(e.buf, 0xce)
		e.buf = appendUint32(e.buf, uint32(v))
	default:
		e.buf = append(e.buf, 0xcf)
		e.buf = appendUint64(e.buf, v)
	}
}

func (e *msgpackEncoder) writeFloat(v float64) {
	e.buf = append(e.buf, 0xcb)
	e.buf = appendUint64(e.buf, math.Float64bits(v))
}

func appendUint16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}
