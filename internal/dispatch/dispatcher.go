package dispatch

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/arview-server/internal/auth"
	"github.com/vovakirdan/arview-server/internal/core"
	"github.com/vovakirdan/arview-server/internal/proto"
)

// Broadcaster is the room broadcast channel the dispatcher fans out to.
type Broadcaster interface {
	Join(ctx context.Context, roomID string, c *core.Client) (bool, error)
	Leave(ctx context.Context, roomID string, c *core.Client) (bool, error)
	Broadcast(ctx context.Context, roomID string, from *core.Client, event *core.Event) error
}

// AccessChecker decides whether an identity may act in a room.
type AccessChecker interface {
	CanAccess(ctx context.Context, ident *auth.Identity, roomID string) bool
}

// Session is the per-connection context threaded through every command.
// RoomID is fixed for the lifetime of the connection.
type Session struct {
	ConnID   string
	Identity *auth.Identity
	RoomID   string
	Client   *core.Client

	mu       sync.Mutex
	departed bool
}

// NewSession builds a session for one accepted connection. ident may be nil
// when the credentials could not be resolved.
func NewSession(connID string, ident *auth.Identity, roomID string, client *core.Client) *Session {
	return &Session{ConnID: connID, Identity: ident, RoomID: roomID, Client: client}
}

// markDeparted flips the session to departed and reports whether it was live.
func (s *Session) markDeparted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.departed {
		return false
	}
	s.departed = true
	return true
}

func (s *Session) markPresent() {
	s.mu.Lock()
	s.departed = false
	s.mu.Unlock()
}

func (s *Session) userID() string {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.ID
}

// Outcome tells the transport what to do after a command was handled.
type Outcome int

const (
	// OutcomeOK means the command was handled; nothing to send back.
	OutcomeOK Outcome = iota
	// OutcomeReply means Err must be sent to the sender as handler_error.
	OutcomeReply
	// OutcomeClose means the connection must be torn down without explanation.
	OutcomeClose
)

// Result is the outcome of one dispatch cycle.
type Result struct {
	Outcome Outcome
	Err     *proto.Error
}

func reply(err *proto.Error) Result {
	return Result{Outcome: OutcomeReply, Err: err}
}

// Dispatcher runs every inbound command through the same pipeline:
// identity check, room access check, payload validation, broadcast.
type Dispatcher struct {
	table  *Table
	access AccessChecker
	hub    Broadcaster
	log    zerolog.Logger
}

// NewDispatcher wires the dispatch table to its collaborators.
func NewDispatcher(table *Table, access AccessChecker, hub Broadcaster, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		table:  table,
		access: access,
		hub:    hub,
		log:    logger.With().Str("component", "dispatch").Logger(),
	}
}

// Handle processes one inbound command for s.
func (d *Dispatcher) Handle(ctx context.Context, s *Session, in proto.Inbound) Result {
	logger := d.log.With().Str("conn_id", s.ConnID).Str("room_id", s.RoomID).Str("event", in.Event).Logger()

	if s.Identity == nil {
		logger.Debug().Msg("unauthenticated command, disconnecting")
		return Result{Outcome: OutcomeClose}
	}
	if !d.access.CanAccess(ctx, s.Identity, s.RoomID) {
		logger.Debug().Str("user_id", s.Identity.ID).Msg("no room access, disconnecting")
		return Result{Outcome: OutcomeClose}
	}

	cmd, ok := d.table.Lookup(in.Event)
	if !ok {
		return reply(proto.NewError(proto.CodeUnknownEvent, "unknown event: "+in.Event))
	}

	logger.Debug().Str("user_id", s.Identity.ID).Msg("event triggered")

	switch cmd.kind {
	case kindJoin:
		return d.join(ctx, s, cmd)
	case kindLeave:
		d.leave(ctx, s, cmd)
		return Result{Outcome: OutcomeOK}
	}

	data, perr := cmd.parse(in.Data)
	if perr != nil {
		logger.Debug().Str("code", perr.Code).Msg("payload rejected")
		return reply(perr)
	}
	if err := d.hub.Broadcast(ctx, s.RoomID, s.Client, core.NewEvent(cmd.Broadcast, data)); err != nil {
		logger.Error().Err(err).Msg("broadcast")
		return reply(proto.NewError(proto.CodeInternal, "broadcast failed"))
	}
	return Result{Outcome: OutcomeOK}
}

func (d *Dispatcher) join(ctx context.Context, s *Session, cmd *Command) Result {
	if _, err := d.hub.Join(ctx, s.RoomID, s.Client); err != nil {
		d.log.Error().Err(err).Str("conn_id", s.ConnID).Str("room_id", s.RoomID).Msg("join room")
		return reply(proto.NewError(proto.CodeInternal, "join failed"))
	}
	s.markPresent()
	d.log.Info().Str("user_id", s.Identity.ID).Str("room_id", s.RoomID).Msg("user joined room")

	presence := proto.PresenceData{User: s.Identity, RoomID: s.RoomID}
	if err := d.hub.Broadcast(ctx, s.RoomID, s.Client, core.NewEvent(cmd.Broadcast, presence)); err != nil {
		d.log.Error().Err(err).Str("room_id", s.RoomID).Msg("broadcast join")
	}
	return Result{Outcome: OutcomeOK}
}

// leave removes s from the room and tells the others. It runs at most once
// per join, whether triggered by the client or by the transport closing.
func (d *Dispatcher) leave(ctx context.Context, s *Session, cmd *Command) {
	if !s.markDeparted() {
		return
	}
	if _, err := d.hub.Leave(ctx, s.RoomID, s.Client); err != nil {
		d.log.Error().Err(err).Str("conn_id", s.ConnID).Msg("leave room")
	}
	d.log.Info().Str("user_id", s.userID()).Str("room_id", s.RoomID).Msg("user left room")

	presence := proto.PresenceData{User: s.Identity, RoomID: s.RoomID}
	if err := d.hub.Broadcast(ctx, s.RoomID, s.Client, core.NewEvent(cmd.Broadcast, presence)); err != nil {
		d.log.Error().Err(err).Str("room_id", s.RoomID).Msg("broadcast leave")
	}
}

// Close runs the disconnect command for a transport that went away on its own.
// It goes through the same identity and access checks as an explicit
// disconnect; when those fail the session is dropped silently.
func (d *Dispatcher) Close(ctx context.Context, s *Session) {
	if s.Identity == nil || !d.access.CanAccess(ctx, s.Identity, s.RoomID) {
		d.Drop(ctx, s)
		return
	}
	cmd, ok := d.table.Lookup(proto.EventDisconnect)
	if !ok {
		d.Drop(ctx, s)
		return
	}
	d.leave(ctx, s, cmd)
}

// Drop removes s from its room without notifying peers. Used for forced disconnects.
func (d *Dispatcher) Drop(ctx context.Context, s *Session) {
	s.markDeparted()
	if _, err := d.hub.Leave(ctx, s.RoomID, s.Client); err != nil {
		d.log.Debug().Err(err).Str("conn_id", s.ConnID).Msg("drop session")
	}
}
