// Package live streams accepted events to dashboard clients over
// websockets, one feed per website.
package live

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"sitelens/models"
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
	}
	go c.writePump()
	return c
}

// writeWait bounds a single message write to a client.
const writeWait = 10 * time.Second

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}

// Hub fans accepted events out to connected dashboard clients. Slow
// clients are dropped; the collection path must never block on a viewer.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*client]bool // keyed by website id
	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*client]bool),
		upgrader: websocket.Upgrader{
			// Dashboard origins are already vetted by the router's CORS
			// and auth layers.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler upgrades GET /live/{websiteID} to a websocket feed.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		websiteID := chi.URLParam(r, "websiteID")
		if websiteID == "" {
			http.Error(w, "Missing website id", http.StatusBadRequest)
			return
		}

		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Debug().Err(err).Msg("websocket upgrade failed")
			return
		}

		c := newClient(conn)
		h.add(websiteID, c)
		log.Debug().Str("website_id", websiteID).Msg("live client connected")

		// Reads are only used to observe the close.
		go func() {
			defer h.remove(websiteID, c)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

// Publish sends an event to every client watching its website.
func (h *Hub) Publish(event models.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("live publish marshal failed")
		return
	}

	h.mu.RLock()
	watchers := make([]*client, 0, len(h.clients[event.WebsiteID]))
	for c := range h.clients[event.WebsiteID] {
		watchers = append(watchers, c)
	}
	h.mu.RUnlock()

	for _, c := range watchers {
		select {
		case c.send <- data:
		default:
			log.Debug().Str("website_id", event.WebsiteID).Msg("live client too slow, disconnecting")
			h.remove(event.WebsiteID, c)
		}
	}
}

// ClientCount reports the number of clients watching a website.
func (h *Hub) ClientCount(websiteID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[websiteID])
}

func (h *Hub) add(websiteID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[websiteID] == nil {
		h.clients[websiteID] = make(map[*client]bool)
	}
	h.clients[websiteID][c] = true
}

func (h *Hub) remove(websiteID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[websiteID][c]; ok {
		delete(h.clients[websiteID], c)
		c.close()
	}
}
