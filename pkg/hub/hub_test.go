package hub

import (
	"bytes"
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-rover/internal/log"
)

// syncBuffer is a log sink safe to read while the hub goroutine writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) count(substr string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Count(b.buf.String(), substr)
}

// attach registers a connection-less client so tests can read its queue.
func attach(t *testing.T, h *Hub, vehicle string) *Client {
	t.Helper()
	c := &Client{hub: h, send: make(chan Message, 4), vehicle: vehicle}
	h.register <- c
	return c
}

func recv(t *testing.T, c *Client) (Message, bool) {
	t.Helper()
	select {
	case m, ok := <-c.send:
		return m, ok
	case <-time.After(200 * time.Millisecond):
		return Message{}, false
	}
}

func TestHub_FiltersByVehicle(t *testing.T) {
	h := New("test")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	all := attach(t, h, "")
	onlyA := attach(t, h, "a")
	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, h.BroadcastJSON("b", map[string]string{"state": "moving"}))
	m, ok := recv(t, all)
	require.True(t, ok)
	assert.Equal(t, "b", m.VehicleID)
	assert.JSONEq(t, `{"state":"moving"}`, string(m.Data))

	require.NoError(t, h.BroadcastJSON("a", map[string]string{"state": "idle"}))
	m, ok = recv(t, onlyA)
	require.True(t, ok, "vehicle b telemetry must not reach the vehicle a subscriber")
	assert.Equal(t, "a", m.VehicleID)
}

func TestHub_DropsSlowClient(t *testing.T) {
	h := New("test")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	slow := attach(t, h, "")
	for i := 0; i < cap(slow.send)+1; i++ {
		h.Broadcast(NewMessage("", []byte(`{}`)))
	}
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, h.Dropped(), uint64(1))
}

func TestHub_DroppedClientUnregisterIsQuiet(t *testing.T) {
	out := &syncBuffer{}
	log.InitWriter(out, "info")
	t.Cleanup(func() { log.InitWriter(os.Stdout, "info") })

	h := New("test")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	slow := attach(t, h, "rover-slow")
	other := attach(t, h, "rover-other")
	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	for i := 0; i < cap(slow.send)+1; i++ {
		h.Broadcast(NewMessage("rover-slow", []byte(`{}`)))
	}
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	// The read pump of a dropped client still unregisters it on exit.
	h.unregister <- slow
	h.unregister <- other
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return out.count("telemetry client disconnected") >= 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, out.count("telemetry client disconnected"))
	assert.Equal(t, 1, out.count("dropped slow telemetry client"))
}

func TestHub_RunStopsOnCancel(t *testing.T) {
	h := New("test")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	c := attach(t, h, "")
	require.Eventually(t, h.IsRunning, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	assert.False(t, h.IsRunning())
	_, ok := <-c.send
	assert.False(t, ok, "client queue closed on shutdown")
}

func TestBroadcastJSON_Error(t *testing.T) {
	h := New("test")
	assert.Error(t, h.BroadcastJSON("", make(chan int)))
}

func TestHandler_StreamsToDashboard(t *testing.T) {
	h := New("telemetry")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws/telemetry", h.Handler())
	go app.Listen(":18090")
	defer app.Shutdown()
	time.Sleep(100 * time.Millisecond)

	ws, _, err := gorilla.DefaultDialer.Dial("ws://localhost:18090/ws/telemetry?vehicle=rover-1", nil)
	require.NoError(t, err)
	defer ws.Close()

	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	h.Broadcast(NewMessage("rover-2", []byte(`{"skip":true}`)))
	h.Broadcast(NewMessage("rover-1", []byte(`{"vehicle_id":"rover-1"}`)))

	ws.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"vehicle_id":"rover-1"}`, string(data))

	ws.Close()
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}
