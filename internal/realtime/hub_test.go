package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("room"))
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, room string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?room=" + room
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRoomForGroup(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, "group_"+id.String(), RoomForGroup(id))
}

func TestHub_BroadcastReachesRoomOnly(t *testing.T) {
	hub, srv := startHub(t)

	inRoom := dial(t, srv, "a")
	otherRoom := dial(t, srv, "b")
	require.Eventually(t, func() bool {
		return hub.ClientCount("a") == 1 && hub.ClientCount("b") == 1
	}, time.Second, 10*time.Millisecond)

	hub.BroadcastToRoom("a", Message{Type: TypeBracketUpdated, Payload: map[string]int{"version": 3}})

	inRoom.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := inRoom.ReadMessage()
	require.NoError(t, err)

	var got struct {
		Type    string         `json:"type"`
		Room    string         `json:"room"`
		Payload map[string]int `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, TypeBracketUpdated, got.Type)
	assert.Equal(t, "a", got.Room)
	assert.Equal(t, 3, got.Payload["version"])

	otherRoom.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = otherRoom.ReadMessage()
	assert.Error(t, err)
}

func TestHub_ClientLeavesOnClose(t *testing.T) {
	hub, srv := startHub(t)

	conn := dial(t, srv, "a")
	require.Eventually(t, func() bool { return hub.ClientCount("a") == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount("a") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastToEmptyRoom(t *testing.T) {
	hub, _ := startHub(t)
	assert.NotPanics(t, func() {
		hub.BroadcastToRoom("nobody", Message{Type: TypeBracketUpdated})
	})
}
