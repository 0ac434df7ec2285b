package buffered

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldlog/pkg/event"
	"fieldlog/pkg/format"
	"fieldlog/pkg/severity"
)

func newEvent(text string) *event.Event {
	return event.New(severity.Info, event.StringMessage(text))
}

func TestRecord_StoresTransformedItems(t *testing.T) {
	s := New(Config[string]{
		Transform: func(e *event.Event, formatted string) string { return formatted },
		Formatters: []format.Field{format.MessageField()},
	})

	require.True(t, s.Record(newEvent("one")))
	require.True(t, s.Record(newEvent("two")))

	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "one", items[0])
	assert.Equal(t, "two", items[1])
}

func TestRecord_UnboundedWhenLimitNotPositive(t *testing.T) {
	s := New(Config[int]{Transform: func(e *event.Event, formatted string) int { return 1 }})
	for i := 0; i < 500; i++ {
		s.Record(newEvent("x"))
	}
	assert.Equal(t, 500, s.Len())
}

func TestRecord_DropsOldestBeyondBufferLimit(t *testing.T) {
	s := New(Config[int]{
		Transform:   func(e *event.Event, formatted string) int { return 0 },
		BufferLimit: 3,
	})
	ids := []int{}
	s.cfg.Transform = func(e *event.Event, formatted string) int {
		id := len(ids)
		ids = append(ids, id)
		return id
	}

	for i := 0; i < 5; i++ {
		s.Record(newEvent("x"))
	}

	items := s.Items()
	require.Len(t, items, 3)
	assert.Equal(t, []int{2, 3, 4}, items)
}

func TestClear_EmptiesBuffer(t *testing.T) {
	s := New(Config[int]{Transform: func(e *event.Event, formatted string) int { return 1 }})
	s.Record(newEvent("x"))
	s.Record(newEvent("y"))
	require.Equal(t, 2, s.Len())

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Items())
}

func TestSetEnabled_RejectsWhenDisabled(t *testing.T) {
	s := New(Config[int]{Transform: func(e *event.Event, formatted string) int { return 1 }})
	s.SetEnabled(false)
	assert.False(t, s.Record(newEvent("x")))
	assert.Equal(t, 0, s.Len())
}
