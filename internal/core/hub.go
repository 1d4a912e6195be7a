package core

import (
	"context"

	"github.com/rs/zerolog"
)

type opKind int

const (
	opJoin opKind = iota
	opLeave
	opBroadcast
	opSize
)

type op struct {
	kind   opKind
	room   string
	client *Client
	event  *Event
	reply  chan int
}

// Hub owns every room broadcast channel. All room state is touched only by the
// Run goroutine; callers submit operations through a single FIFO queue, so
// operations from one caller are applied in the order they were submitted.
type Hub struct {
	log   zerolog.Logger
	ops   chan op
	done  chan struct{}
	rooms map[string]*Room
}

// NewHub creates a hub. Run must be started before any operation is submitted.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		log:   logger.With().Str("component", "hub").Logger(),
		ops:   make(chan op, 256),
		done:  make(chan struct{}),
		rooms: make(map[string]*Room),
	}
}

// Run processes operations until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.log.Debug().Int("rooms", len(h.rooms)).Msg("hub stopped")
			return
		case o := <-h.ops:
			h.apply(o)
		}
	}
}

func (h *Hub) apply(o op) {
	switch o.kind {
	case opJoin:
		room, ok := h.rooms[o.room]
		if !ok {
			room = NewRoom(o.room)
			h.rooms[o.room] = room
		}
		added := room.AddClient(o.client)
		h.log.Debug().Str("room_id", o.room).Str("conn_id", o.client.ID).Bool("added", added).Msg("join")
		o.reply <- boolToInt(added)
	case opLeave:
		removed := false
		if room, ok := h.rooms[o.room]; ok {
			removed = room.RemoveClient(o.client)
			if room.Empty() {
				delete(h.rooms, o.room)
			}
		}
		h.log.Debug().Str("room_id", o.room).Str("conn_id", o.client.ID).Bool("removed", removed).Msg("leave")
		o.reply <- boolToInt(removed)
	case opBroadcast:
		room, ok := h.rooms[o.room]
		if !ok {
			return
		}
		_, dropped := room.Broadcast(o.event, o.client)
		if dropped > 0 {
			h.log.Warn().Str("room_id", o.room).Str("event", o.event.Name).Int("dropped", dropped).Msg("slow consumers, event dropped")
		}
	case opSize:
		size := 0
		if room, ok := h.rooms[o.room]; ok {
			size = room.Size()
		}
		o.reply <- size
	}
}

// Join subscribes c to the broadcast channel of roomID. It returns once the
// subscription is in effect; the bool reports whether c was newly added.
func (h *Hub) Join(ctx context.Context, roomID string, c *Client) (bool, error) {
	if roomID == "" {
		return false, ErrEmptyRoom
	}
	n, err := h.call(ctx, op{kind: opJoin, room: roomID, client: c})
	return n == 1, err
}

// Leave unsubscribes c from roomID. Leaving a room c never joined is a no-op.
func (h *Hub) Leave(ctx context.Context, roomID string, c *Client) (bool, error) {
	if roomID == "" {
		return false, ErrEmptyRoom
	}
	n, err := h.call(ctx, op{kind: opLeave, room: roomID, client: c})
	return n == 1, err
}

// Broadcast queues event for every client of roomID except from. The sender
// does not have to be subscribed. Delivery is at-most-once: a recipient whose
// buffer is full misses the event.
func (h *Hub) Broadcast(ctx context.Context, roomID string, from *Client, event *Event) error {
	if roomID == "" {
		return ErrEmptyRoom
	}
	return h.submit(ctx, op{kind: opBroadcast, room: roomID, client: from, event: event})
}

// RoomSize returns the number of clients subscribed to roomID.
func (h *Hub) RoomSize(ctx context.Context, roomID string) (int, error) {
	return h.call(ctx, op{kind: opSize, room: roomID})
}

func (h *Hub) submit(ctx context.Context, o op) error {
	select {
	case h.ops <- o:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) call(ctx context.Context, o op) (int, error) {
	o.reply = make(chan int, 1)
	if err := h.submit(ctx, o); err != nil {
		return 0, err
	}
	select {
	case n := <-o.reply:
		return n, nil
	case <-h.done:
		return 0, ErrHubStopped
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
