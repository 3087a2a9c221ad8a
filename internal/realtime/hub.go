// Package realtime fans events out to connected clients over websockets.
// Membership in a recipient's room is the definition of "reachable now";
// durability is the notification store's job, not this package's.
package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"heavenly-backend/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 16
)

// Envelope is the wire frame pushed to clients.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type client struct {
	ws   *websocket.Conn
	send chan Envelope
}

// Hub tracks live connections per recipient. Admin connections all share the
// admin room, mirroring how users each get a room of their own.
type Hub struct {
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}

	onConnect func(ctx context.Context, rec domain.Recipient)
}

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browsers connect from the SPA origin; auth happens via token
			// before the upgrade, so any origin is accepted here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		rooms: make(map[string]map[*client]struct{}),
	}
}

// OnConnect registers a callback invoked after a recipient joins, used to
// replay missed notifications.
func (h *Hub) OnConnect(fn func(ctx context.Context, rec domain.Recipient)) {
	h.onConnect = fn
}

// IsReachable reports whether at least one live connection exists for the
// recipient.
func (h *Hub) IsReachable(rec domain.Recipient) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[rec.Key()]) > 0
}

// Push sends the event to every connection in the recipient's room,
// fire-and-forget. Slow consumers get dropped rather than block the caller.
func (h *Hub) Push(rec domain.Recipient, event string, payload interface{}) {
	env := Envelope{Event: event, Data: payload}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[rec.Key()] {
		select {
		case c.send <- env:
		default:
			h.logger.Printf("realtime: dropping event %s for %s, send buffer full", event, rec.Key())
		}
	}
}

// Serve upgrades the request and keeps the connection in the recipient's
// room until it closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, rec domain.Recipient) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("realtime: upgrade for %s: %v", rec.Key(), err)
		return
	}

	c := &client{ws: ws, send: make(chan Envelope, sendBuffer)}
	h.join(rec, c)
	h.logger.Printf("realtime: %s connected", rec.Key())

	if h.onConnect != nil {
		h.onConnect(r.Context(), rec)
	}

	go c.writePump()
	c.readPump()

	h.leave(rec, c)
	h.logger.Printf("realtime: %s disconnected", rec.Key())
}

func (h *Hub) join(rec domain.Recipient, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[rec.Key()]
	if room == nil {
		room = make(map[*client]struct{})
		h.rooms[rec.Key()] = room
	}
	room[c] = struct{}{}
}

func (h *Hub) leave(rec domain.Recipient, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[rec.Key()]
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, rec.Key())
	}
	close(c.send)
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()
	for {
		select {
		case env, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			data, err := json.Marshal(env)
			if err != nil {
				continue
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes and discards client frames; the socket is push-only and
// clients act through the REST API. Reading is still required to process
// control frames and detect closure.
func (c *client) readPump() {
	c.ws.SetReadLimit(4096)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}
