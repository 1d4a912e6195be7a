package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/arview-server/internal/ticket"
)

// ConnectionHandlers exposes pairing ticket issuance and redemption.
type ConnectionHandlers struct {
	tickets *ticket.Service
	log     *zerolog.Logger
}

// NewConnectionHandlers creates a new connection handlers instance.
func NewConnectionHandlers(tickets *ticket.Service, logger *zerolog.Logger) *ConnectionHandlers {
	return &ConnectionHandlers{tickets: tickets, log: logger}
}

// CreateConnectionRequest represents the create connection request body.
type CreateConnectionRequest struct {
	RoomID string `json:"roomId" binding:"required"`
}

// Create issues a pairing ticket for a room.
// POST /connection
func (h *ConnectionHandlers) Create(c *gin.Context) {
	var req CreateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "roomId is required"})
		return
	}

	issued, err := h.tickets.Issue(c.Request.Context(), identityFrom(c), req.RoomID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, issued)
	case errors.Is(err, ticket.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Message: "insufficient permissions"})
	case errors.Is(err, ticket.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Room not found"})
	default:
		h.log.Error().Err(err).Str("room_id", req.RoomID).Msg("failed to create connection")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "failed to create connection"})
	}
}

// Redeem exchanges a pin code for the room and socket URL.
// GET /connection/:pinCode
func (h *ConnectionHandlers) Redeem(c *gin.Context) {
	redeemed, err := h.tickets.Redeem(c.Request.Context(), c.Param("pinCode"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, redeemed)
	case errors.Is(err, ticket.ErrNotFound):
		c.JSON(http.StatusGone, ErrorResponse{Message: "connection not found"})
	case errors.Is(err, ticket.ErrExpired):
		c.JSON(http.StatusGone, ErrorResponse{Message: "connection expired"})
	default:
		h.log.Error().Err(err).Msg("failed to get connection")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "failed to get connection"})
	}
}
