package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// hubClient serializes writes to one connection. gorilla allows at most one
// concurrent writer per conn, and broadcasts arrive from other clients'
// serve goroutines.
type hubClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *hubClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *hubClient) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub relays quiz battle invites and updates between connected clients.
type Hub struct {
	mu      sync.Mutex
	clients map[*hubClient]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*hubClient]struct{})}
}

type hubMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}

	client := &hubClient{conn: conn}
	defer func() {
		h.mu.Lock()
		delete(h.clients, client)
		h.mu.Unlock()
		_ = conn.Close()
	}()

	// Greet before registering so the greeting is always the client's first
	// frame and never interleaves with a broadcast.
	if err := client.writeJSON(hubMessage{Type: "connection", Message: "Connected to LearnMatrix"}); err != nil {
		return
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var m hubMessage
		if json.Unmarshal(data, &m) != nil {
			continue
		}
		if m.Type == "quiz_invite" || m.Type == "quiz_update" {
			h.broadcast(client, data)
		}
	}
}

// broadcast relays raw payload to every client except the sender. The client
// list is snapshotted so a slow receiver does not hold up joins and leaves.
func (h *Hub) broadcast(from *hubClient, data []byte) {
	h.mu.Lock()
	targets := make([]*hubClient, 0, len(h.clients))
	for c := range h.clients {
		if c != from {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.write(data); err != nil {
			log.Printf("ws broadcast write error: %v", err)
		}
	}
}
