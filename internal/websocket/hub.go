package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/larkwing-games/werewolf-server/internal/models"
)

// FrameHandler receives connection lifecycle events and raw inbound
// frames. The dispatcher implements it.
type FrameHandler interface {
	HandleConnect(roomID, playerID string)
	HandleFrame(roomID, playerID string, data []byte)
	HandleDisconnect(roomID, playerID string)
}

// Hub is the connection registry: open channels keyed by room and
// player. Register/unregister/broadcast all funnel through the run
// loop; reads take the lock directly.
type Hub struct {
	clients    map[*Client]bool
	rooms      map[string]map[*Client]bool
	broadcast  chan *BroadcastMessage
	register   chan *Client
	unregister chan *Client
	handler    FrameHandler
	mu         sync.RWMutex
}

// BroadcastMessage is one outbound delivery order.
type BroadcastMessage struct {
	RoomID    string
	Message   models.WSMessage
	ToPlayers []string // if set, only these players receive it
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		broadcast:  make(chan *BroadcastMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// SetHandler wires the dispatcher in. Must be called before Run.
func (h *Hub) SetHandler(handler FrameHandler) {
	h.handler = handler
}

// Run is the hub's main loop.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Println("Hub shutting down")
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	if h.rooms[client.RoomID] == nil {
		h.rooms[client.RoomID] = make(map[*Client]bool)
	}
	h.rooms[client.RoomID][client] = true
	h.mu.Unlock()

	log.Printf("Player %s connected to room %s", client.PlayerID, client.RoomID)
	if h.handler != nil {
		h.handler.HandleConnect(client.RoomID, client.PlayerID)
	}
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	_, known := h.clients[client]
	if known {
		delete(h.clients, client)
		close(client.send)
		if clients, ok := h.rooms[client.RoomID]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.rooms, client.RoomID)
			}
		}
	}
	h.mu.Unlock()

	if known {
		log.Printf("Player %s disconnected from room %s", client.PlayerID, client.RoomID)
		if h.handler != nil {
			h.handler.HandleDisconnect(client.RoomID, client.PlayerID)
		}
	}
}

// deliver fans a message out over a snapshot of the room's clients.
// A slow client with a full buffer is dropped, not waited on.
func (h *Hub) deliver(message *BroadcastMessage) {
	data, err := json.Marshal(message.Message)
	if err != nil {
		log.Printf("Error marshaling %s frame: %v", message.Message.Type, err)
		return
	}

	targets := make(map[string]bool, len(message.ToPlayers))
	for _, id := range message.ToPlayers {
		targets[id] = true
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.rooms[message.RoomID]
	if !ok {
		return
	}
	for client := range clients {
		if len(targets) > 0 && !targets[client.PlayerID] {
			continue
		}
		select {
		case client.send <- data:
		default:
			log.Printf("Player %s send buffer full, dropping connection", client.PlayerID)
			close(client.send)
			delete(h.clients, client)
			delete(clients, client)
		}
	}
}

// Broadcast sends a frame to every connection in a room.
func (h *Hub) Broadcast(roomID string, msg models.WSMessage) {
	h.broadcast <- &BroadcastMessage{RoomID: roomID, Message: msg}
}

// SendTo sends a frame to one player's connection in a room. A player
// without an open channel simply misses the frame.
func (h *Hub) SendTo(roomID, playerID string, msg models.WSMessage) {
	h.broadcast <- &BroadcastMessage{RoomID: roomID, Message: msg, ToPlayers: []string{playerID}}
}

// RoomClientCount reports open connections in a room.
func (h *Hub) RoomClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
