package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/vovakirdan/arview-server/internal/auth"
	"github.com/vovakirdan/arview-server/internal/config"
	"github.com/vovakirdan/arview-server/internal/store"
	"github.com/vovakirdan/arview-server/internal/ticket"
)

func TestConnection_IssueAndRedeem(t *testing.T) {
	env := newTestEnv(t)
	_, superToken := env.user("super@example.com", auth.RoleSuperAdmin)
	roomID := env.room("pairing")

	var issued ticket.Issued
	status := env.do(http.MethodPost, "/connection", superToken, CreateConnectionRequest{RoomID: roomID}, &issued)
	if status != http.StatusOK {
		t.Fatalf("issue: expected 200, got %d", status)
	}
	if len(issued.PinCode) != 4 || issued.RoomID != roomID || issued.SocketURL != env.cfg.SocketURL {
		t.Fatalf("unexpected ticket: %+v", issued)
	}

	// Redeeming does not consume the ticket.
	for i := 0; i < 2; i++ {
		var redeemed ticket.Redeemed
		if status := env.do(http.MethodGet, "/connection/"+issued.PinCode, testSystemToken, nil, &redeemed); status != http.StatusOK {
			t.Fatalf("redeem %d: expected 200, got %d", i, status)
		}
		if redeemed.RoomID != roomID || redeemed.SocketURL != env.cfg.SocketURL {
			t.Fatalf("unexpected redemption: %+v", redeemed)
		}
	}
}

func TestConnection_IssueErrors(t *testing.T) {
	env := newTestEnv(t)
	_, superToken := env.user("super@example.com", auth.RoleSuperAdmin)
	_, adminToken := env.user("admin@example.com", auth.RoleAdmin)

	if status := env.do(http.MethodPost, "/connection", superToken, map[string]any{}, nil); status != http.StatusBadRequest {
		t.Fatalf("missing roomId: expected 400, got %d", status)
	}
	if status := env.do(http.MethodPost, "/connection", superToken, CreateConnectionRequest{RoomID: "missing"}, nil); status != http.StatusNotFound {
		t.Fatalf("unknown room: expected 404, got %d", status)
	}
	if status := env.do(http.MethodPost, "/connection", adminToken, CreateConnectionRequest{RoomID: "missing"}, nil); status != http.StatusForbidden {
		t.Fatalf("admin: expected 403, got %d", status)
	}
}

func TestConnection_RedeemGone(t *testing.T) {
	env := newTestEnv(t)
	roomID := env.room("pairing")

	var body ErrorResponse
	if status := env.do(http.MethodGet, "/connection/ZZZZ", testSystemToken, nil, &body); status != http.StatusGone {
		t.Fatalf("unknown pin: expected 410, got %d", status)
	}
	if body.Message != "connection not found" {
		t.Fatalf("unexpected message %q", body.Message)
	}

	err := env.store.CreateTicket(context.Background(), &store.Ticket{
		PinCode:    "OLD1",
		CreatedAt:  time.Now().Add(-2 * time.Hour),
		StartedBy:  "someone",
		RoomID:     roomID,
		ValidUntil: time.Now().Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	if status := env.do(http.MethodGet, "/connection/old1", testSystemToken, nil, &body); status != http.StatusGone {
		t.Fatalf("expired pin: expected 410, got %d", status)
	}
	if body.Message != "connection expired" {
		t.Fatalf("unexpected message %q", body.Message)
	}
}

func TestConnection_RedeemRateLimited(t *testing.T) {
	env := newTestEnv(t, func(_ *config.Config, deps *Deps) {
		deps.Redeem = NewMemoryRedeemLimiter(2)
	})

	for i := 0; i < 2; i++ {
		if status := env.do(http.MethodGet, "/connection/ZZZZ", testSystemToken, nil, nil); status != http.StatusGone {
			t.Fatalf("lookup %d: expected 410, got %d", i, status)
		}
	}
	if status := env.do(http.MethodGet, "/connection/ZZZZ", testSystemToken, nil, nil); status != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", status)
	}
}
