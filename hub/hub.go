// Package hub pushes reservation changes to connected websocket clients
// (front desk screens, host tablets).
package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yeremiapane/table-reservations/services"
	"github.com/yeremiapane/table-reservations/utils"
)

const writeWait = 5 * time.Second

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub holds the connected clients and the role each one authenticated with.
type Hub struct {
	clients map[*websocket.Conn]string
	mutex   sync.Mutex
}

func New() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]string)}
}

func (h *Hub) RegisterClient(conn *websocket.Conn, role string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.clients[conn] = role
}

func (h *Hub) UnregisterClient(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
}

func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Broadcast sends msg to every client. Clients that fail a write are dropped.
func (h *Hub) Broadcast(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for conn, role := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			utils.ErrorLogger.Printf("Dropping %s client after failed write: %v", role, err)
			delete(h.clients, conn)
			conn.Close()
		}
	}
	return nil
}

// Publish lets the hub receive reservation events from the service.
func (h *Hub) Publish(_ context.Context, ev services.ReservationEvent) error {
	return h.Broadcast(Message{Event: ev.Type, Data: ev})
}
