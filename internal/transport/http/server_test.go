package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/arview-server/internal/auth"
	"github.com/vovakirdan/arview-server/internal/config"
	"github.com/vovakirdan/arview-server/internal/proto"
)

func TestRootEndpoint(t *testing.T) {
	env := newTestEnv(t)

	var body ErrorResponse
	if status := env.do(http.MethodGet, "/", "", nil, &body); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body.Message != "OK" {
		t.Fatalf("unexpected message %q", body.Message)
	}
}

func TestStaticFilesRequireAuth(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user("viewer@example.com", auth.RoleUser)

	if err := os.WriteFile(filepath.Join(env.cfg.StoragePath, "model.glb"), []byte("glTF"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if status := env.do(http.MethodGet, "/static/model.glb", "", nil, nil); status != http.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401, got %d", status)
	}

	req, _ := http.NewRequest(http.MethodGet, env.ts.URL+"/static/model.glb", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := env.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	data, _ := io.ReadAll(resp.Body)
	if string(data) != "glTF" {
		t.Fatalf("unexpected body %q", data)
	}
}

func TestAuthEndpoints(t *testing.T) {
	env := newTestEnv(t)
	userID, _ := env.user("nurse@example.com", auth.RoleAdmin)

	var login LoginResponse
	status := env.do(http.MethodPost, "/auth/login", "", LoginRequest{Email: "nurse@example.com", Password: "password123"}, &login)
	if status != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", status)
	}
	if login.Token == "" || login.User == nil || login.User.ID != userID {
		t.Fatalf("unexpected login response: %+v", login)
	}

	if status := env.do(http.MethodPost, "/auth/login", "", LoginRequest{Email: "nurse@example.com", Password: "nope-nope"}, nil); status != http.StatusUnauthorized {
		t.Fatalf("bad password: expected 401, got %d", status)
	}

	var me auth.Identity
	if status := env.do(http.MethodGet, "/auth/me", login.Token, nil, &me); status != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", status)
	}
	if me.ID != userID || me.Role != auth.RoleAdmin {
		t.Fatalf("unexpected identity: %+v", me)
	}

	var users []UserResponse
	if status := env.do(http.MethodGet, "/auth/users", login.Token, nil, &users); status != http.StatusOK {
		t.Fatalf("users: expected 200, got %d", status)
	}
	if len(users) != 1 || users[0].Email != "nurse@example.com" {
		t.Fatalf("unexpected users: %+v", users)
	}
}

func TestServerHandlerUpgradesWebSocket(t *testing.T) {
	var (
		deps Deps
		cfg  config.Config
	)
	env := newTestEnv(t, func(c *config.Config, d *Deps) {
		cfg = *c
		deps = *d
	})
	aliceID, aliceToken := env.user("alice@example.com", auth.RoleUser)
	roomID := env.room("theatre", aliceID)

	logger := zerolog.Nop()
	srv := NewServer(deps, &cfg, &logger)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws?roomId=" + roomID + "&token=" + aliceToken
	conn, resp, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.CloseNow() })
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	send(t, ctx, conn, proto.EventJoin, nil)
	env.waitRoomSize(ctx, roomID, 1)

	// REST routes still reach gin through the same handler.
	res, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", res.StatusCode)
	}
}
