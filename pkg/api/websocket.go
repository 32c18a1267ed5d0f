package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS is enforced by the main server
		return true
	},
}

// Hub fans executed trades out to connected websocket clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]bool
	log     *zap.SugaredLogger
}

func NewHub(log *zap.SugaredLogger) *Hub {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Hub{clients: make(map[*client]bool), log: log}
}

// Broadcast marshals the event once and pushes it to every client.
// Clients whose send buffer is full are dropped rather than blocked on:
// the matching path must never wait on a slow consumer.
func (h *Hub) Broadcast(event any) {
	message, err := json.Marshal(event)
	if err != nil {
		h.log.Errorw("ws marshal failed", "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- message:
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Infow("ws client connected", "total", n)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Infow("ws client disconnected", "total", n)
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func (h *Hub) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorw("ws upgrade failed", "err", err)
		return
	}
	c := &client{hub: h, conn: conn, send: make(chan []byte, 256)}
	h.add(c)
	go c.writePump()
	go c.readPump()
}

// readPump discards inbound frames; the feed is one-way. Reading is
// still required to process control frames and detect disconnects.
func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
