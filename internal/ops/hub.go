// Package ops is the engine's local HTTP control surface: health, metrics,
// and a websocket change feed for whatever is watching the installation
// (a status panel, a remote dashboard). It never touches the frame loop
// directly — it reads the same snapshots the frame loop already publishes.
package ops

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
)

// EventType categorizes a change-feed message.
type EventType string

const (
	EventSceneChanged      EventType = "scene_changed"
	EventEffectChanged     EventType = "effect_changed"
	EventPaletteChanged    EventType = "palette_changed"
	EventBrightnessChanged EventType = "brightness_changed"
	EventLog               EventType = "log"
	EventHealth            EventType = "health"
)

// Event is one message broadcast to every connected change-feed client.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// client is one websocket connection's outbound queue.
type client struct {
	id   string
	conn *websocket.Conn
	send chan Event
}

// Hub fans Events out to every connected client without blocking producers
// on slow consumers.
type Hub struct {
	clients    map[string]*client
	broadcast  chan Event
	register   chan *client
	unregister chan *client
	mu         sync.RWMutex
}

// NewHub constructs a Hub. Call Run in its own goroutine before accepting
// connections.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*client),
		broadcast:  make(chan Event, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

// Run services registration and broadcast. It has no stop condition and
// does not return.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.send)
			}
			h.mu.Unlock()
		case ev := <-h.broadcast:
			h.mu.RLock()
			for _, c := range h.clients {
				select {
				case c.send <- ev:
				default:
					// slow consumer, drop rather than stall the frame-state producer
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast queues an Event for every connected client.
func (h *Hub) Broadcast(t EventType, data map[string]interface{}) {
	h.broadcast <- Event{Type: t, Timestamp: time.Now(), Data: data}
}

// ClientCount reports the number of live connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Handle upgrades a single fiber websocket connection into a hub client and
// blocks until it disconnects. Intended to be passed to
// github.com/gofiber/websocket/v2's handler.
func (h *Hub) Handle(conn *websocket.Conn) {
	c := &client{
		id:   fmt.Sprintf("ops-%d", time.Now().UnixNano()),
		conn: conn,
		send: make(chan Event, 64),
	}

	h.register <- c
	go c.writePump()
	c.readPump(h)
}

func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
