package notifiers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/daniacca/surfkmc/internal/kmc"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWebSocketNotifier(t *testing.T) {
	notifier := NewWebSocketNotifier("test-ws")
	defer notifier.Close()

	assert.Equal(t, "test-ws", notifier.ID())
	assert.Equal(t, "websocket", notifier.Type())
	assert.Equal(t, 0, notifier.ClientCount())
}

func TestWebSocketNotifier_NotifyWithoutClients(t *testing.T) {
	notifier := NewWebSocketNotifier("test")
	defer notifier.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, notifier.Notify(ctx, testEvent("sim-a")))
}

func TestWebSocketNotifier_CloseTwice(t *testing.T) {
	notifier := NewWebSocketNotifier("test")
	require.NoError(t, notifier.Close())
	require.NoError(t, notifier.Close())
	assert.Error(t, notifier.Notify(context.Background(), testEvent("sim-a")))
}

func dial(t *testing.T, server *httptest.Server, sim string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/?sim=" + sim
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestWebSocketNotifier_StreamsBySimulation(t *testing.T) {
	notifier := NewWebSocketNotifier("ws")
	defer notifier.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = notifier.Serve(w, r, kmc.SimulationID(r.URL.Query().Get("sim")))
	}))
	defer server.Close()

	follower := dial(t, server, "sim-a")
	defer follower.Close()
	all := dial(t, server, "")
	defer all.Close()

	require.Eventually(t, func() bool { return notifier.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, notifier.Notify(context.Background(), testEvent("sim-b")))
	require.NoError(t, notifier.Notify(context.Background(), testEvent("sim-a")))

	read := func(conn *websocket.Conn) kmc.OutputEvent {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var ev kmc.OutputEvent
		require.NoError(t, json.Unmarshal(data, &ev))
		return ev
	}

	// the follower skips sim-b and sees sim-a first
	assert.Equal(t, kmc.SimulationID("sim-a"), read(follower).SimulationID)
	assert.Equal(t, kmc.SimulationID("sim-b"), read(all).SimulationID)
	assert.Equal(t, kmc.SimulationID("sim-a"), read(all).SimulationID)
}
