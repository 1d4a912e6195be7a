package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write collides with a unique live record.
var ErrConflict = errors.New("conflict")

// User represents an account able to sign in or be added to rooms.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         string
	Deleted      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RoomType classifies what a room is used for.
type RoomType string

const (
	RoomTypePatient RoomType = "patient"
	RoomTypeSurgeon RoomType = "surgeon"
	RoomTypeDemo    RoomType = "demo"
)

// Valid reports whether t is one of the known room types.
func (t RoomType) Valid() bool {
	switch t {
	case RoomTypePatient, RoomTypeSurgeon, RoomTypeDemo:
		return true
	}
	return false
}

// Room is a collaboration context owned by its creator.
type Room struct {
	ID        string
	Name      string
	Type      RoomType
	PatientID *string
	CreatedBy string
	MemberIDs []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Patient is the person a patient room is about. Number is the external
// patient number and is unique.
type Patient struct {
	ID        string
	Number    string
	FirstName string
	LastName  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Ticket is a short-lived pairing record that hands a room to a headset client.
type Ticket struct {
	ID         string
	PinCode    string
	StartedBy  string
	RoomID     string
	CreatedAt  time.Time
	ValidUntil time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser inserts a user. An empty ID is filled in by the store.
	CreateUser(ctx context.Context, user *User) error

	// GetUserByID retrieves a non-deleted user by ID.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByEmail retrieves a non-deleted user by email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// ListUsers lists all non-deleted users ordered by email.
	ListUsers(ctx context.Context) ([]*User, error)

	// UpdatePassword replaces the password hash of a user.
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	// UpdateUser saves email, names and role. A taken email yields ErrConflict.
	UpdateUser(ctx context.Context, user *User) error

	// DeleteUser marks a user deleted and drops their memberships and the
	// tickets they issued. Rooms they created are kept.
	DeleteUser(ctx context.Context, id string) error

	// CountUsers counts non-deleted users.
	CountUsers(ctx context.Context) (int, error)
}

// PatientStore handles patient persistence.
type PatientStore interface {
	// CreatePatient inserts a patient. A taken number yields ErrConflict.
	CreatePatient(ctx context.Context, patient *Patient) error

	GetPatientByID(ctx context.Context, id string) (*Patient, error)

	// ListPatients lists up to limit patients ordered by number.
	ListPatients(ctx context.Context, limit int) ([]*Patient, error)

	// UpdatePatient saves number and names. A taken number yields ErrConflict.
	UpdatePatient(ctx context.Context, patient *Patient) error

	// DeletePatient removes a patient; rooms pointing at it lose the reference.
	DeletePatient(ctx context.Context, id string) error
}

// RoomStore handles room and membership persistence.
type RoomStore interface {
	// CreateRoom inserts a room together with its member set.
	CreateRoom(ctx context.Context, room *Room) error

	// GetRoomByID retrieves a room including its member ids.
	GetRoomByID(ctx context.Context, id string) (*Room, error)

	// ListRooms lists every room.
	ListRooms(ctx context.Context) ([]*Room, error)

	// ListRoomsForUser lists rooms the user created or is a member of.
	ListRoomsForUser(ctx context.Context, userID string) ([]*Room, error)

	// UpdateRoom updates room attributes and replaces its member set.
	UpdateRoom(ctx context.Context, room *Room) error

	// DeleteRoom removes a room, its memberships and its tickets.
	DeleteRoom(ctx context.Context, id string) error

	// RoomCreator returns the id of the user who created the room.
	RoomCreator(ctx context.Context, roomID string) (string, error)

	// IsMember checks if user is a member of the room.
	IsMember(ctx context.Context, userID, roomID string) (bool, error)
}

// TicketStore handles pairing ticket persistence.
type TicketStore interface {
	// CreateTicket inserts a ticket. An empty ID is filled in by the store.
	// It returns ErrConflict when the pin is held by a ticket still live at CreatedAt.
	CreateTicket(ctx context.Context, ticket *Ticket) error

	// GetTicketByPin returns the most recently issued ticket with the pin code.
	GetTicketByPin(ctx context.Context, pinCode string) (*Ticket, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	RoomStore
	PatientStore
	TicketStore

	// Close closes the underlying database connection.
	Close() error
}
