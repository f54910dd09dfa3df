package main

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait bounds how long a single broadcast write may block on a slow
// connection.
const writeWait = 10 * time.Second

// Client represents a websocket connection with participant info
type Client struct {
	conn    *websocket.Conn
	connID  string
	userID  string
	groupID string
	writeMu sync.Mutex // Serialize writes to WebSocket (required by gorilla/websocket)
}

// Hub tracks live websocket connections and delivers audience-filtered
// broadcasts. It is the engine's Transport: publishing never reports
// delivery errors back to the caller.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client // connection id -> client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client.connID] = client
	total := len(h.clients)
	h.mu.Unlock()
	log.Printf("WebSocket client connected (user %s, group %s). Total: %d", client.userID, client.groupID, total)
}

func (h *Hub) unregister(connID string) {
	h.mu.Lock()
	client, ok := h.clients[connID]
	if ok {
		delete(h.clients, connID)
		client.conn.Close()
	}
	total := len(h.clients)
	h.mu.Unlock()
	if ok {
		log.Printf("WebSocket client disconnected (user %s). Total: %d", client.userID, total)
	}
}

// Publish delivers payload to the group's connections. A nil audience means
// every connection in the group; otherwise only the listed connection ids
// receive it. Write errors drop the connection and are not surfaced.
func (h *Hub) Publish(groupID string, payload []byte, audience []string) {
	var allowed map[string]bool
	if audience != nil {
		allowed = make(map[string]bool, len(audience))
		for _, connID := range audience {
			allowed[connID] = true
		}
	}

	h.mu.RLock()
	var targets []*Client
	for connID, client := range h.clients {
		if client.groupID != groupID {
			continue
		}
		if allowed != nil && !allowed[connID] {
			continue
		}
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	debugLog("hub", "publish to group %s: %d bytes, %d recipients", groupID, len(payload), len(targets))

	for _, client := range targets {
		// Serialize writes to each connection
		client.writeMu.Lock()
		client.conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := client.conn.WriteMessage(websocket.TextMessage, payload)
		client.writeMu.Unlock()

		if err != nil {
			log.Printf("WebSocket write error to user %s: %v", client.userID, err)
			h.unregister(client.connID)
		}
	}
}
