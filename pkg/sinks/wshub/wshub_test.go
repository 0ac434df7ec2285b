package wshub

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldlog/pkg/event"
	"fieldlog/pkg/format"
	"fieldlog/pkg/severity"
)

func newEvent(text string) *event.Event {
	return event.New(severity.Info, event.StringMessage(text))
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestServeHTTP_RegistersPeer(t *testing.T) {
	hub := New(Config{Formatters: []format.Field{format.MessageField()}})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.PeerCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestRecord_BroadcastsToConnectedPeers(t *testing.T) {
	hub := New(Config{Formatters: []format.Field{format.MessageField()}})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.PeerCount() == 1 }, time.Second, 5*time.Millisecond)

	require.True(t, hub.Record(newEvent("hello peer")))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var msg wireMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "hello peer", msg.Text)
	assert.Equal(t, "info", msg.Level)
}

func TestRecord_DisabledHubRejects(t *testing.T) {
	hub := New(Config{})
	hub.SetEnabled(false)
	assert.False(t, hub.Record(newEvent("x")))
}

func TestClose_DisconnectsAllPeers(t *testing.T) {
	hub := New(Config{})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.PeerCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.Close())
	assert.Equal(t, 0, hub.PeerCount())
}
