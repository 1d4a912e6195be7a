package core

// Room groups the clients currently subscribed to one room broadcast channel.
type Room struct {
	ID      string
	clients map[*Client]struct{}
}

// NewRoom constructs a room with no clients.
func NewRoom(id string) *Room {
	return &Room{
		ID:      id,
		clients: make(map[*Client]struct{}),
	}
}

// AddClient inserts a client into the room. Returns true if newly added.
func (r *Room) AddClient(c *Client) bool {
	if _, exists := r.clients[c]; exists {
		return false
	}
	r.clients[c] = struct{}{}
	return true
}

// RemoveClient deletes a client from the room. Returns true if removed.
func (r *Room) RemoveClient(c *Client) bool {
	if _, exists := r.clients[c]; !exists {
		return false
	}
	delete(r.clients, c)
	return true
}

// Broadcast sends an event to every client in the room except the sender.
// It returns how many clients received it and how many were dropped.
func (r *Room) Broadcast(event *Event, except *Client) (delivered, dropped int) {
	for client := range r.clients {
		if client == except {
			continue
		}
		if client.deliver(event) {
			delivered++
		} else {
			// Slow or closed consumer.
			dropped++
		}
	}
	return delivered, dropped
}

// Size returns the number of subscribed clients.
func (r *Room) Size() int {
	return len(r.clients)
}

// Empty returns true if no clients are in the room.
func (r *Room) Empty() bool {
	return len(r.clients) == 0
}
