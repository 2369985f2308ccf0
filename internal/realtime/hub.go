package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// Message types pushed to browsers watching a group.
const (
	TypeBracketStarted   = "BRACKET_STARTED"
	TypeBracketUpdated   = "BRACKET_UPDATED"
	TypeBracketCompleted = "BRACKET_COMPLETED"
)

type Message struct {
	Type    string `json:"type"`
	Room    string `json:"room,omitempty"`
	Payload any    `json:"payload"`
}

func RoomForGroup(groupID uuid.UUID) string {
	return "group_" + groupID.String()
}

type roomMessage struct {
	room string
	data []byte
}

// Hub fans messages out to the websocket clients of a room. Clients only
// receive; anything they send is read and dropped.
type Hub struct {
	rooms      map[string]map[*Client]bool
	mu         sync.RWMutex
	register   chan *Client
	unregister chan *Client
	broadcast  chan roomMessage
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan roomMessage, 64),
		done:       make(chan struct{}),
	}
}

// Run owns the room table until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			if _, ok := h.rooms[c.Room]; !ok {
				h.rooms[c.Room] = make(map[*Client]bool)
			}
			h.rooms[c.Room][c] = true
			slog.Debug("Websocket client joined", "room", c.Room, "clients", len(h.rooms[c.Room]))
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			h.remove(c)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.rooms[msg.room] {
				select {
				case c.Send <- msg.data:
				default:
					slog.Warn("Dropping slow websocket client", "room", msg.room)
					h.remove(c)
				}
			}
			h.mu.Unlock()

		case <-ctx.Done():
			h.mu.Lock()
			for _, clients := range h.rooms {
				for c := range clients {
					h.remove(c)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

// remove expects h.mu to be held.
func (h *Hub) remove(c *Client) {
	clients, ok := h.rooms[c.Room]
	if !ok || !clients[c] {
		return
	}
	delete(clients, c)
	close(c.Send)
	if len(clients) == 0 {
		delete(h.rooms, c.Room)
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		close(c.Send)
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// BroadcastToRoom queues msg for every client in room. It never blocks on
// slow clients.
func (h *Hub) BroadcastToRoom(room string, msg Message) {
	msg.Room = room
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to encode websocket message", "room", room, "type", msg.Type, "error", err)
		return
	}
	select {
	case h.broadcast <- roomMessage{room: room, data: data}:
	case <-h.done:
	default:
		slog.Warn("Websocket broadcast queue full", "room", room, "type", msg.Type)
	}
}

func (h *Hub) ClientCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ServeWS upgrades the request and joins the connection to room. The caller
// has already checked that the user may watch it.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, room string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade websocket", "room", room, "error", err)
		return
	}

	c := &Client{
		Hub:  h,
		Conn: conn,
		Send: make(chan []byte, sendBuffer),
		Room: room,
	}
	h.Register(c)

	go c.WritePump()
	go c.ReadPump()
}
