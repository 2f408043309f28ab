package ws

import (
	"log"
	"sync"

	"github.com/ayush123-bit/paircode/internal/db"
	"github.com/ayush123-bit/paircode/internal/metrics"
	"github.com/ayush123-bit/paircode/internal/protocol"
)

// Hub relays sync messages between the participants of each room. A
// code update from one client fans out to everyone else in the room;
// the hub itself never merges, the newest broadcast wins. It also
// announces joins and leaves so clients can keep a presence count.
type Hub struct {
	// Registered clients by room
	rooms map[string]map[*Client]bool

	// Last broadcast per room for late-joiner catch-up
	roomStates map[string]*RoomState

	// Inbound messages from clients
	broadcast chan *Message

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	database *db.Database

	mu sync.RWMutex
}

type Message struct {
	RoomID string
	Data   []byte
	Sender *Client
}

func NewHub(database *db.Database) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		roomStates: make(map[string]*RoomState),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		database:   database,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case message := <-h.broadcast:
			h.handleBroadcast(message)
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	if _, ok := h.rooms[client.roomID]; !ok {
		h.rooms[client.roomID] = make(map[*Client]bool)
	}
	h.rooms[client.roomID][client] = true
	clientCount := len(h.rooms[client.roomID])
	h.mu.Unlock()

	log.Printf("Client joined room %s (total: %d)", client.roomID, clientCount)

	// Catch the newcomer up with the latest broadcast, then announce
	// it to the rest of the room.
	if latest := h.getRoomState(client.roomID).Latest(); latest != nil {
		client.trySend(latest)
	}

	if joined, err := protocol.Marshal(protocol.Message{Type: protocol.KindUserJoined}); err == nil {
		h.sendToRoom(client.roomID, joined, client)
	}
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	removed := false
	if clients, ok := h.rooms[client.roomID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client.send)
			removed = true

			if len(clients) == 0 {
				delete(h.rooms, client.roomID)
				delete(h.roomStates, client.roomID)
				log.Printf("Room %s closed (empty)", client.roomID)
			} else {
				log.Printf("Client left room %s (remaining: %d)", client.roomID, len(clients))
			}
		}
	}
	h.mu.Unlock()

	if !removed {
		return
	}

	if left, err := protocol.Marshal(protocol.Message{Type: protocol.KindUserLeft}); err == nil {
		h.sendToRoom(client.roomID, left, client)
	}
}

func (h *Hub) handleBroadcast(message *Message) {
	h.getRoomState(message.RoomID).SetLatest(message.Data)
	h.sendToRoom(message.RoomID, message.Data, message.Sender)
	metrics.MessagesRelayed.Inc()

	if h.database != nil {
		if err := h.database.SetCode(message.RoomID, message.Content()); err != nil {
			log.Printf("Failed to persist code for room %s: %v", message.RoomID, err)
		}
	}
}

// Content extracts the document text carried by the message, if any.
func (m *Message) Content() string {
	msg, err := protocol.Unmarshal(m.Data)
	if err != nil {
		return ""
	}
	return msg.Content
}

// sendToRoom delivers data to every client in the room except the
// sender. Clients with a full send buffer are dropped.
func (h *Hub) sendToRoom(roomID string, data []byte, sender *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.rooms[roomID]
	if !ok {
		return
	}
	for client := range clients {
		if client == sender {
			continue
		}
		select {
		case client.send <- data:
		default:
			close(client.send)
			delete(clients, client)
		}
	}
}

func (h *Hub) getRoomState(roomID string) *RoomState {
	h.mu.Lock()
	defer h.mu.Unlock()

	state, ok := h.roomStates[roomID]
	if !ok {
		state = NewRoomState()
		h.roomStates[roomID] = state
	}
	return state
}

func (h *Hub) GetRoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, clients := range h.rooms {
		count += len(clients)
	}
	return count
}

// GetActiveRooms returns the participant count per room with at least
// one open connection.
func (h *Hub) GetActiveRooms() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	active := make(map[string]int, len(h.rooms))
	for roomID, clients := range h.rooms {
		active[roomID] = len(clients)
	}
	return active
}
