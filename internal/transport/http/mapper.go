package http

import (
	"time"

	"github.com/vovakirdan/arview-server/internal/auth"
	"github.com/vovakirdan/arview-server/internal/core"
	"github.com/vovakirdan/arview-server/internal/proto"
	"github.com/vovakirdan/arview-server/internal/store"
)

const timeLayout = time.RFC3339

func outboundFromEvent(event *core.Event) proto.Outbound {
	return proto.Outbound{Event: event.Name, Data: event.Data}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Message string `json:"message"`
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      auth.Role `json:"role"`
	CreatedAt string    `json:"createdAt"`
}

func userResponse(u *store.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      auth.Role(u.Role),
		CreatedAt: u.CreatedAt.Format(timeLayout),
	}
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Type      store.RoomType `json:"type"`
	Patient   *string        `json:"patient"`
	CreatedBy string         `json:"createdBy"`
	Users     []string       `json:"users"`
	CreatedAt string         `json:"createdAt"`
	UpdatedAt string         `json:"updatedAt"`
}

func roomResponse(r *store.Room) RoomResponse {
	users := r.MemberIDs
	if users == nil {
		users = []string{}
	}
	return RoomResponse{
		ID:        r.ID,
		Name:      r.Name,
		Type:      r.Type,
		Patient:   r.PatientID,
		CreatedBy: r.CreatedBy,
		Users:     users,
		CreatedAt: r.CreatedAt.Format(timeLayout),
		UpdatedAt: r.UpdatedAt.Format(timeLayout),
	}
}

// PatientResponse represents a patient in API responses. The number keeps the
// "nummer" key existing clients read.
type PatientResponse struct {
	ID        string `json:"id"`
	Number    string `json:"nummer"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func patientResponse(p *store.Patient) PatientResponse {
	return PatientResponse{
		ID:        p.ID,
		Number:    p.Number,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		CreatedAt: p.CreatedAt.Format(timeLayout),
		UpdatedAt: p.UpdatedAt.Format(timeLayout),
	}
}
