package hub

import (
	"context"
	"sync"

	"github.com/weiawesome/wes-io-live/liveroom/internal/config"
	pkglog "github.com/weiawesome/wes-io-live/liveroom/pkg/log"
)

// Hub manages all WebSocket connections and the rooms they joined.
type Hub struct {
	clients    map[string]*Client
	rooms      map[string]map[string]*Client // roomID -> clientID -> client
	register   chan *Client
	unregister chan *Client
	stopped    chan struct{}
	mu         sync.RWMutex
	config     config.WebSocketConfig
}

// NewHub creates a new Hub.
func NewHub(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopped:    make(chan struct{}),
		config:     cfg,
	}
}

// Run registers and unregisters clients until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)

	l := pkglog.L()
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			l.Info().Str(pkglog.FieldClientID, client.ID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				for roomID, roomClients := range h.rooms {
					delete(roomClients, client.ID)
					if len(roomClients) == 0 {
						delete(h.rooms, roomID)
					}
				}
				delete(h.clients, client.ID)
				client.closeSend()
			}
			h.mu.Unlock()
			l.Info().Str(pkglog.FieldClientID, client.ID).Msg("client unregistered")
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.stopped:
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stopped:
		client.closeSend()
	}
}

// JoinRoom adds a client to a room.
func (h *Hub) JoinRoom(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[string]*Client)
	}
	h.rooms[roomID][client.ID] = client
	l := pkglog.L()
	l.Info().Str(pkglog.FieldClientID, client.ID).Str(pkglog.FieldRoomID, roomID).Msg("client joined room")
}

// LeaveRoom removes a client from a room.
func (h *Hub) LeaveRoom(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if roomClients, ok := h.rooms[roomID]; ok {
		delete(roomClients, client.ID)
		if len(roomClients) == 0 {
			delete(h.rooms, roomID)
		}
	}
	l := pkglog.L()
	l.Info().Str(pkglog.FieldClientID, client.ID).Str(pkglog.FieldRoomID, roomID).Msg("client left room")
}

// Stats reports the number of connected clients and occupied rooms.
func (h *Hub) Stats() (clients, rooms int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients), len(h.rooms)
}

// SendBuffer is the per-client outbound queue length.
func (h *Hub) SendBuffer() int {
	if h.config.SendBuffer <= 0 {
		return 256
	}
	return h.config.SendBuffer
}
