package core

import "sync"

const defaultClientBuffer = 32

// Client is one realtime connection as seen by the core layer.
type Client struct {
	ID     string
	UserID string
	Events chan *Event

	closeOnce sync.Once
	done      chan struct{}
}

// NewClient constructs a client with an initialized event buffer.
// A non-positive buffer falls back to the default size.
func NewClient(id, userID string, buffer int) *Client {
	if buffer <= 0 {
		buffer = defaultClientBuffer
	}
	return &Client{
		ID:     id,
		UserID: userID,
		Events: make(chan *Event, buffer),
		done:   make(chan struct{}),
	}
}

// Close marks the client as gone. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Done is closed once the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// deliver attempts a non-blocking send. Returns false when the event was dropped.
func (c *Client) deliver(event *Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Events <- event:
		return true
	default:
		return false
	}
}
