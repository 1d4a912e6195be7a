// Package access decides whether an identity may take part in a room's realtime session.
package access

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/arview-server/internal/auth"
	"github.com/vovakirdan/arview-server/internal/store"
)

// RoomLookup is the read-only slice of the room store the evaluator needs.
type RoomLookup interface {
	RoomCreator(ctx context.Context, roomID string) (string, error)
	IsMember(ctx context.Context, userID, roomID string) (bool, error)
}

// Evaluator answers room access questions against the current room relation.
// Nothing is cached: a membership change is visible on the next call.
type Evaluator struct {
	rooms RoomLookup
	log   zerolog.Logger
}

// NewEvaluator creates an evaluator backed by rooms.
func NewEvaluator(rooms RoomLookup, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		rooms: rooms,
		log:   logger.With().Str("component", "access").Logger(),
	}
}

// CanAccess reports whether ident may participate in roomID.
// Rules are checked in order: no identity, privileged role, creator, member.
// Lookup failures deny access.
func (e *Evaluator) CanAccess(ctx context.Context, ident *auth.Identity, roomID string) bool {
	if ident == nil || roomID == "" {
		return false
	}
	if ident.Privileged() {
		return true
	}

	creator, err := e.rooms.RoomCreator(ctx, roomID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.log.Error().Err(err).Str("room_id", roomID).Msg("lookup room creator")
		}
		return false
	}
	if creator == ident.ID {
		return true
	}

	member, err := e.rooms.IsMember(ctx, ident.ID, roomID)
	if err != nil {
		e.log.Error().Err(err).Str("room_id", roomID).Str("user_id", ident.ID).Msg("lookup room membership")
		return false
	}
	return member
}
