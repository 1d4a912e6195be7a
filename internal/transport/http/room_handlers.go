package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/arview-server/internal/auth"
	"github.com/vovakirdan/arview-server/internal/store"
)

// RoomAccess decides whether an identity may see a room.
type RoomAccess interface {
	CanAccess(ctx context.Context, ident *auth.Identity, roomID string) bool
}

// RoomHandlers provides HTTP handlers for room management endpoints.
type RoomHandlers struct {
	store  store.Store
	access RoomAccess
	log    *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(st store.Store, access RoomAccess, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		store:  st,
		access: access,
		log:    logger,
	}
}

// CreateRoomRequest represents the create room request body.
type CreateRoomRequest struct {
	Name    string         `json:"name" binding:"required,min=1,max=128"`
	Patient *string        `json:"patient"`
	Type    store.RoomType `json:"type"`
	UserIDs []string       `json:"userIds"`
}

// UpdateRoomRequest holds the room fields to change. Absent fields are kept.
type UpdateRoomRequest struct {
	Name    *string         `json:"name" binding:"omitempty,min=1,max=128"`
	Patient *string         `json:"patient"`
	Type    *store.RoomType `json:"type"`
	UserIDs *[]string       `json:"userIds"`
}

// CreateRoomResponse mirrors the create acknowledgement.
type CreateRoomResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// UpdateRoomResponse returns the room after the update.
type UpdateRoomResponse struct {
	Message string       `json:"message"`
	Room    RoomResponse `json:"room"`
}

// CreateRoom handles room creation. The caller becomes the room's creator.
// POST /room
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	ident := identityFrom(c)

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request"})
		return
	}
	if req.Type == "" {
		req.Type = store.RoomTypePatient
	}
	if !req.Type.Valid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid room type"})
		return
	}
	members, ok := h.checkMembers(c, req.UserIDs)
	if !ok {
		return
	}
	if req.Patient != nil && *req.Patient == "" {
		req.Patient = nil
	}
	if !h.checkPatient(c, req.Patient) {
		return
	}

	room := &store.Room{
		Name:      strings.TrimSpace(req.Name),
		Type:      req.Type,
		PatientID: req.Patient,
		CreatedBy: ident.ID,
		MemberIDs: members,
	}
	if err := h.store.CreateRoom(c.Request.Context(), room); err != nil {
		h.log.Error().Err(err).Msg("failed to create room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "error creating room"})
		return
	}

	h.log.Info().Str("room_id", room.ID).Str("user_id", ident.ID).Int("members", len(members)).Msg("room created")
	c.JSON(http.StatusOK, CreateRoomResponse{Message: "Room created successfully", ID: room.ID})
}

// ListRooms returns the rooms the caller can access.
// GET /room
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	ident := identityFrom(c)

	var (
		rooms []*store.Room
		err   error
	)
	if ident.Privileged() {
		rooms, err = h.store.ListRooms(c.Request.Context())
	} else {
		rooms, err = h.store.ListRoomsForUser(c.Request.Context(), ident.ID)
	}
	if err != nil {
		h.log.Error().Err(err).Str("user_id", ident.ID).Msg("failed to list rooms")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal server error"})
		return
	}

	response := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		response = append(response, roomResponse(room))
	}
	c.JSON(http.StatusOK, response)
}

// GetRoom returns one room with its member ids.
// GET /room/:id
func (h *RoomHandlers) GetRoom(c *gin.Context) {
	ident := identityFrom(c)
	roomID := c.Param("id")

	room, err := h.store.GetRoomByID(c.Request.Context(), roomID)
	if err != nil {
		h.storeError(c, err, "failed to get room")
		return
	}
	if !h.access.CanAccess(c.Request.Context(), ident, roomID) {
		c.JSON(http.StatusForbidden, ErrorResponse{Message: "no access to this room"})
		return
	}
	c.JSON(http.StatusOK, roomResponse(room))
}

// UpdateRoom changes room attributes; userIds replaces the member set.
// PUT /room/:id
func (h *RoomHandlers) UpdateRoom(c *gin.Context) {
	roomID := c.Param("id")

	var req UpdateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid update room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request"})
		return
	}

	room, err := h.store.GetRoomByID(c.Request.Context(), roomID)
	if err != nil {
		h.storeError(c, err, "failed to get room")
		return
	}

	if req.Name != nil {
		room.Name = strings.TrimSpace(*req.Name)
	}
	if req.Type != nil {
		if !req.Type.Valid() {
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid room type"})
			return
		}
		room.Type = *req.Type
	}
	if req.Patient != nil {
		if *req.Patient == "" {
			room.PatientID = nil
		} else {
			if !h.checkPatient(c, req.Patient) {
				return
			}
			room.PatientID = req.Patient
		}
	}
	if req.UserIDs != nil {
		members, ok := h.checkMembers(c, *req.UserIDs)
		if !ok {
			return
		}
		room.MemberIDs = members
	}

	if err := h.store.UpdateRoom(c.Request.Context(), room); err != nil {
		h.storeError(c, err, "failed to update room")
		return
	}

	h.log.Info().Str("room_id", room.ID).Msg("room updated")
	c.JSON(http.StatusOK, UpdateRoomResponse{Message: "Room updated successfully", Room: roomResponse(room)})
}

// DeleteRoom removes a room with its memberships and pairing tickets.
// DELETE /room/:id
func (h *RoomHandlers) DeleteRoom(c *gin.Context) {
	roomID := c.Param("id")
	if err := h.store.DeleteRoom(c.Request.Context(), roomID); err != nil {
		h.storeError(c, err, "failed to delete room")
		return
	}
	h.log.Info().Str("room_id", roomID).Msg("room deleted")
	c.JSON(http.StatusOK, ErrorResponse{Message: "Room deleted successfully"})
}

// checkMembers dedupes ids and verifies every one names an active user.
func (h *RoomHandlers) checkMembers(c *gin.Context, ids []string) ([]string, bool) {
	seen := make(map[string]struct{}, len(ids))
	members := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, err := h.store.GetUserByID(c.Request.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusBadRequest, ErrorResponse{Message: "unknown user: " + id})
				return nil, false
			}
			h.log.Error().Err(err).Msg("failed to check room member")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal server error"})
			return nil, false
		}
		members = append(members, id)
	}
	return members, true
}

// checkPatient verifies a non-nil patient id names a stored patient.
func (h *RoomHandlers) checkPatient(c *gin.Context, id *string) bool {
	if id == nil {
		return true
	}
	if _, err := h.store.GetPatientByID(c.Request.Context(), *id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: "unknown patient: " + *id})
			return false
		}
		h.log.Error().Err(err).Msg("failed to check room patient")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal server error"})
		return false
	}
	return true
}

func (h *RoomHandlers) storeError(c *gin.Context, err error, msg string) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Room not found"})
		return
	}
	h.log.Error().Err(err).Msg(msg)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal server error"})
}
