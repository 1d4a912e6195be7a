package core

// Event is a named payload fanned out to the clients of a room.
// Data is serialized by the transport as-is.
type Event struct {
	Name string
	Data any
}

// NewEvent builds an event ready for broadcast.
func NewEvent(name string, data any) *Event {
	return &Event{Name: name, Data: data}
}
