package rooms

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/config"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/logger"
)

// Broadcaster pushes room events to every subscribed client.
type Broadcaster interface {
	Broadcast(ctx context.Context, roomID uuid.UUID, event Event)
}

// Event is one message on a room's channel.
type Event struct {
	Type      string    `json:"type"`
	RoomID    uuid.UUID `json:"roomId"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans room events out to websocket subscribers, one send queue per
// connection. Slow consumers get dropped instead of blocking the room.
type Hub struct {
	mu         sync.RWMutex
	rooms      map[uuid.UUID]map[*client]struct{}
	upgrader   websocket.Upgrader
	writeWait  time.Duration
	sendBuffer int
	logg       *logger.Logger
}

func NewHub(cfg config.RoomsConfig, logg *logger.Logger) *Hub {
	return &Hub{
		rooms: map[uuid.UUID]map[*client]struct{}{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		writeWait:  cfg.WriteTimeout,
		sendBuffer: cfg.SendBuffer,
		logg:       logg,
	}
}

// Subscribe upgrades the request and pumps room events until the client
// goes away.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, roomID uuid.UUID) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{conn: conn, send: make(chan []byte, h.sendBuffer)}

	h.mu.Lock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = map[*client]struct{}{}
	}
	h.rooms[roomID][c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(roomID, c)
	go h.readPump(roomID, c)
	return nil
}

func (h *Hub) Broadcast(ctx context.Context, roomID uuid.UUID, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.RoomID = roomID

	data, err := json.Marshal(event)
	if err != nil {
		h.logg.Error(ctx, "encoding room event", err)
		return
	}

	h.mu.RLock()
	subscribers := make([]*client, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		subscribers = append(subscribers, c)
	}
	h.mu.RUnlock()

	for _, c := range subscribers {
		select {
		case c.send <- data:
		default:
			h.drop(roomID, c)
		}
	}
}

// SubscriberCount reports the live connections for a room.
func (h *Hub) SubscriberCount(roomID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func (h *Hub) writePump(roomID uuid.UUID, c *client) {
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.drop(roomID, c)
			return
		}
	}
	_ = c.conn.Close()
}

func (h *Hub) readPump(roomID uuid.UUID, c *client) {
	// Clients only listen on this channel; the read loop exists to notice
	// disconnects.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.drop(roomID, c)
			return
		}
	}
}

func (h *Hub) drop(roomID uuid.UUID, c *client) {
	h.mu.Lock()
	if subs, ok := h.rooms[roomID]; ok {
		if _, present := subs[c]; present {
			delete(subs, c)
			close(c.send)
		}
		if len(subs) == 0 {
			delete(h.rooms, roomID)
		}
	}
	h.mu.Unlock()
	_ = c.conn.Close()
}
