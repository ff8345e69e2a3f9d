package sync

import (
	"bufio"
	"encoding/json"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLine(t *testing.T, r *bufio.Reader) map[string]any {
	t.Helper()
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &out))
	return out
}

func TestTCPServerBroadcast(t *testing.T) {
	hub := NewHub()
	srv := NewServer("", hub)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	r := bufio.NewReader(conn)

	assert.Equal(t, "welcome", readLine(t, r)["type"])

	hub.BroadcastJSON(ShelfEvent{Type: EventVolumeAdded, FavoriteID: 7, SeriesName: "ハイキュー!!"})
	ev := readLine(t, r)
	assert.Equal(t, EventVolumeAdded, ev["type"])
	assert.Equal(t, float64(7), ev["favorite_id"])
	assert.Equal(t, 1, hub.Stats().TCPClients)
}

func TestWebSocketBroadcast(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	r := gin.New()
	r.GET("/ws", WSHandler(hub))
	srv := httptest.NewServer(r)
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer ws.Close()
	_ = ws.SetReadDeadline(time.Now().Add(3 * time.Second))

	_, msg, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), "welcome")

	require.Eventually(t, func() bool { return hub.Stats().WSClients == 1 }, time.Second, 10*time.Millisecond)
	hub.BroadcastJSON(ShelfEvent{Type: EventFavoriteDeleted, FavoriteID: 3})

	_, msg, err = ws.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), EventFavoriteDeleted)
}

type recordingBroadcaster struct{ ch chan any }

func (r recordingBroadcaster) BroadcastJSON(v any) { r.ch <- v }

func TestPublishStampsTime(t *testing.T) {
	rb := recordingBroadcaster{ch: make(chan any, 1)}
	Publish(rb, ShelfEvent{Type: EventFavoriteCreated})

	select {
	case v := <-rb.ch:
		ev := v.(ShelfEvent)
		assert.False(t, ev.At.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event not published")
	}

	Publish(nil, ShelfEvent{Type: EventFavoriteCreated})
}
