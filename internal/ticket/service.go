// Package ticket issues and redeems the short-lived pin codes that pair a
// headset with a room.
package ticket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/arview-server/internal/auth"
	"github.com/vovakirdan/arview-server/internal/store"
)

var (
	// ErrNotFound is returned when no ticket carries the pin code.
	ErrNotFound = errors.New("connection not found")
	// ErrExpired is returned when the ticket's validity window has passed.
	ErrExpired = errors.New("connection expired")
	// ErrForbidden is returned when the issuer may not hand out tickets.
	ErrForbidden = errors.New("insufficient permissions")
	// ErrRoomNotFound is returned when issuing a ticket for an unknown room.
	ErrRoomNotFound = errors.New("room not found")
	// ErrPinExhausted is returned when no free pin code could be drawn.
	ErrPinExhausted = errors.New("no free pin code")
)

const (
	// DefaultTTL is how long a ticket stays redeemable.
	DefaultTTL = time.Hour

	maxPinAttempts = 16
)

// Store is what the service needs from persistence.
type Store interface {
	store.TicketStore
	GetRoomByID(ctx context.Context, id string) (*store.Room, error)
}

// Config configures the ticket service.
type Config struct {
	SocketURL string
	TTL       time.Duration
	// Now and Rand default to time.Now and crypto/rand.
	Now  func() time.Time
	Rand io.Reader
}

// Issued is the response handed to the issuer, ready to print as a QR code.
type Issued struct {
	RoomID       string `json:"roomId"`
	SocketURL    string `json:"socketUrl"`
	PinCode      string `json:"pinCode"`
	QRCodeString string `json:"qrCodeString"`
}

// Redeemed is what a headset learns from a pin code.
type Redeemed struct {
	RoomID    string `json:"roomId"`
	SocketURL string `json:"socketUrl"`
}

// Service issues and redeems pairing tickets.
type Service struct {
	store     Store
	socketURL string
	ttl       time.Duration
	now       func() time.Time
	rand      io.Reader
	log       zerolog.Logger
}

// NewService creates a ticket service.
func NewService(st Store, cfg Config, logger zerolog.Logger) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:     st,
		socketURL: cfg.SocketURL,
		ttl:       cfg.TTL,
		now:       cfg.Now,
		rand:      cfg.Rand,
		log:       logger.With().Str("component", "ticket").Logger(),
	}
}

// Issue creates a ticket for roomID on behalf of issuer.
// Only super-admins (and the system identity) may issue tickets.
func (s *Service) Issue(ctx context.Context, issuer *auth.Identity, roomID string) (*Issued, error) {
	if issuer == nil || !issuer.Role.Satisfies(auth.RoleSuperAdmin) {
		return nil, ErrForbidden
	}
	if _, err := s.store.GetRoomByID(ctx, roomID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("load room: %w", err)
	}

	t, err := s.insertTicket(ctx, issuer.ID, roomID)
	if err != nil {
		return nil, err
	}

	qr, err := json.Marshal(Redeemed{RoomID: roomID, SocketURL: s.socketURL})
	if err != nil {
		return nil, fmt.Errorf("encode qr payload: %w", err)
	}

	s.log.Info().Str("room_id", roomID).Str("user_id", issuer.ID).Time("valid_until", t.ValidUntil).Msg("pairing ticket issued")

	return &Issued{
		RoomID:       roomID,
		SocketURL:    s.socketURL,
		PinCode:      t.PinCode,
		QRCodeString: string(qr),
	}, nil
}

// insertTicket draws pins until the store accepts one that no live ticket holds.
func (s *Service) insertTicket(ctx context.Context, issuerID, roomID string) (*store.Ticket, error) {
	now := s.now()
	for range maxPinAttempts {
		pin, err := newPin(s.rand)
		if err != nil {
			return nil, err
		}
		t := &store.Ticket{
			PinCode:    pin,
			StartedBy:  issuerID,
			RoomID:     roomID,
			CreatedAt:  now,
			ValidUntil: now.Add(s.ttl),
		}
		err = s.store.CreateTicket(ctx, t)
		if errors.Is(err, store.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create ticket: %w", err)
		}
		return t, nil
	}
	return nil, ErrPinExhausted
}

// Redeem resolves a pin code into the room and endpoint it pairs with.
// A ticket stays redeemable until it expires; redemption does not consume it.
func (s *Service) Redeem(ctx context.Context, pin string) (*Redeemed, error) {
	pin = NormalizePin(pin)
	if !validPin(pin) {
		return nil, ErrNotFound
	}

	t, err := s.store.GetTicketByPin(ctx, pin)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load ticket: %w", err)
	}
	if t.ValidUntil.Before(s.now()) {
		return nil, ErrExpired
	}

	s.log.Debug().Str("room_id", t.RoomID).Msg("pairing ticket redeemed")
	return &Redeemed{RoomID: t.RoomID, SocketURL: s.socketURL}, nil
}
