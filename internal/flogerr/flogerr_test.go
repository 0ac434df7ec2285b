package flogerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_FormatsWithAndWithoutCause(t *testing.T) {
	plain := New(Config, "sqlitestore", "Open", "bad location")
	assert.Equal(t, "[sqlitestore:Open] config: bad location", plain.Error())

	wrapped := Wrap(Transient, "durable", "Flush", errors.New("disk busy"))
	assert.Contains(t, wrapped.Error(), "transient")
	assert.Contains(t, wrapped.Error(), "disk busy")
}

func TestError_UnwrapExposesCause(t *testing.T) {
	cause := errors.New("boom")
	wrapped := Wrap(Permanent, "rotatingfile", "Record", cause)
	assert.Same(t, cause, errors.Unwrap(wrapped))
}

func TestErrors_IsMatchesKindSentinel(t *testing.T) {
	err := New(Data, "event", "Unmarshal", "malformed payload")
	assert.True(t, errors.Is(err, DataError))
	assert.False(t, errors.Is(err, TransientError))
}

func TestOf_ReportsKindForErrorNotForFlattenedString(t *testing.T) {
	inner := New(Permanent, "rotatingfile", "Record", "disk full")
	outer := errors.New("context: " + inner.Error())

	kind, ok := Of(inner)
	require := assert.New(t)
	require.True(ok)
	require.Equal(Permanent, kind)

	_, ok = Of(outer)
	require.False(ok)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "config", Config.String())
	assert.Equal(t, "transient", Transient.String())
	assert.Equal(t, "permanent", Permanent.String())
	assert.Equal(t, "data", Data.String())
	assert.Equal(t, "programmer", Programmer.String())
}
