package websocket

import "sync"

type Hub struct {
	mu         sync.RWMutex
	Rooms      map[string]*Room
	Register   chan *WSClient
	Unregister chan *WSClient
	Broadcast  chan *WSMessage
}

func NewHub() *Hub {
	return &Hub{
		Rooms:      make(map[string]*Room),
		Register:   make(chan *WSClient),
		Unregister: make(chan *WSClient),
		Broadcast:  make(chan *WSMessage, 64),
	}
}

// ensureRoom creates the room if missing and reports whether it did.
func (h *Hub) ensureRoom(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.Rooms[id]; exists {
		return false
	}
	h.Rooms[id] = &Room{Id: id, Clients: make(map[string]*WSClient)}
	setRooms(len(h.Rooms))
	return true
}

func (h *Hub) snapshot() []RoomRes {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rooms := make([]RoomRes, 0, len(h.Rooms))
	for _, room := range h.Rooms {
		rooms = append(rooms, RoomRes{ID: room.Id, Clients: len(room.Clients)})
	}
	return rooms
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if room, ok := h.Rooms[client.RoomID]; ok {
				room.Clients[client.ID] = client
				incConnections()
			}
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			if room, ok := h.Rooms[client.RoomID]; ok {
				if existing, ok := room.Clients[client.ID]; ok && existing == client {
					delete(room.Clients, client.ID)
					close(client.Message)
					decConnections()
				}
			}
			h.mu.Unlock()

		case message := <-h.Broadcast:
			h.mu.Lock()
			room, ok := h.Rooms[message.RoomID]
			if !ok {
				h.mu.Unlock()
				continue
			}
			delivered := 0
			for _, client := range room.Clients {
				select {
				case client.Message <- message:
					delivered++
				default:
					close(client.Message)
					delete(room.Clients, client.ID)
					decConnections()
				}
			}
			h.mu.Unlock()
			if delivered > 0 {
				addDelivered(delivered)
			}
		}
	}
}
