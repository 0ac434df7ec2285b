package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldlog/pkg/severity"
)

func TestNew_Defaults(t *testing.T) {
	e := New(severity.Error, StringMessage("boom"))
	require.NotNil(t, e)
	assert.Equal(t, severity.Error, e.Level())
	assert.Equal(t, "boom", e.Message().Literal())
	assert.False(t, e.Timestamp().IsZero())
	assert.NotEqual(t, e.ID().String(), "")
}

func TestNew_UniqueIDs(t *testing.T) {
	e1 := New(severity.Info, StringMessage("a"))
	e2 := New(severity.Info, StringMessage("a"))
	assert.NotEqual(t, e1.ID(), e2.ID())
}

func TestOptions_TagsAndExtraMerge(t *testing.T) {
	e := New(severity.Info, StringMessage("hi"),
		WithTags(map[string]string{"a": "1"}),
		WithTags(map[string]string{"b": "2"}),
	)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, e.Tags())
}

func TestMergedTags_EventLevelWins(t *testing.T) {
	e := New(severity.Info, StringMessage("hi"),
		WithTags(map[string]string{"a": "event"}),
		WithScope(Scope{Tags: map[string]string{"a": "scope", "b": "scope-only"}}),
	)
	merged := e.MergedTags()
	assert.Equal(t, "event", merged["a"])
	assert.Equal(t, "scope-only", merged["b"])
}

func TestMergedExtra_EventLevelWins(t *testing.T) {
	e := New(severity.Info, StringMessage("hi"),
		WithExtra(map[string]any{"n": 1}),
		WithScope(Scope{Extra: map[string]any{"n": 0, "m": 2}}),
	)
	merged := e.MergedExtra()
	assert.Equal(t, 1, merged["n"])
	assert.Equal(t, 2, merged["m"])
}

func TestFingerprint_StableForIdenticalContent(t *testing.T) {
	e1 := New(severity.Warning, StringMessage("disk full"), WithSubsystem("storage"), WithCategory("disk"))
	e2 := New(severity.Warning, StringMessage("disk full"), WithSubsystem("storage"), WithCategory("disk"))
	assert.Equal(t, e1.Fingerprint(), e2.Fingerprint())
}

func TestFingerprint_DiffersOnSubsystem(t *testing.T) {
	e1 := New(severity.Warning, StringMessage("disk full"), WithSubsystem("storage"))
	e2 := New(severity.Warning, StringMessage("disk full"), WithSubsystem("network"))
	assert.NotEqual(t, e1.Fingerprint(), e2.Fingerprint())
}

func TestFingerprint_Cached(t *testing.T) {
	e := New(severity.Info, StringMessage("x"))
	first := e.Fingerprint()
	second := e.Fingerprint()
	assert.Equal(t, first, second)
}

func TestAttachedObject_Serialize(t *testing.T) {
	strategy := func(v any) (map[string]any, []byte, error) {
		return map[string]any{"kind": "payload"}, []byte("data"), nil
	}
	e := New(severity.Debug, StringMessage("attach"), WithAttachedObject(42, strategy))
	require.NotNil(t, e.AttachedObject())
	meta, data, err := e.AttachedObject().Serialize()
	require.NoError(t, err)
	assert.Equal(t, "payload", meta["kind"])
	assert.Equal(t, []byte("data"), data)
}
