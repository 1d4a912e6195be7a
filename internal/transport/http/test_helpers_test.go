package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/arview-server/internal/access"
	"github.com/vovakirdan/arview-server/internal/auth"
	"github.com/vovakirdan/arview-server/internal/config"
	"github.com/vovakirdan/arview-server/internal/core"
	"github.com/vovakirdan/arview-server/internal/dispatch"
	"github.com/vovakirdan/arview-server/internal/store/sqlite"
	"github.com/vovakirdan/arview-server/internal/ticket"
)

const testSystemToken = "system-token-for-tests"

type testEnv struct {
	t      *testing.T
	ts     *httptest.Server
	store  *sqlite.SQLiteStore
	auth   *auth.Service
	access *access.Evaluator
	hub    *core.Hub
	cfg    config.Config
}

type testOption func(*config.Config, *Deps)

func newTestEnv(t *testing.T, opts ...testOption) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.Default()
	cfg.JWTSecret = "test-secret"
	cfg.AuthToken = testSystemToken
	cfg.SocketURL = "wss://ar.example.com/ws"
	cfg.STUNServers = []string{"stun:stun.l.google.com:19302"}
	cfg.FrontendURL = ""
	cfg.StoragePath = t.TempDir()

	logger := zerolog.Nop()

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}, cfg.AuthToken)

	hub := core.NewHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	evaluator := access.NewEvaluator(st, logger)
	table := dispatch.NewTable(dispatch.NewValidator(), cfg.ICEServers())
	deps := Deps{
		Auth:       authService,
		Store:      st,
		Access:     evaluator,
		Dispatcher: dispatch.NewDispatcher(table, evaluator, hub, logger),
		Tickets: ticket.NewService(st, ticket.Config{
			SocketURL: cfg.SocketURL,
			TTL:       cfg.TicketTTL,
		}, logger),
		Redeem: NewMemoryRedeemLimiter(cfg.RedeemPerMinute),
	}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}

	ts := httptest.NewServer(NewRouter(deps, &cfg, &logger))
	t.Cleanup(ts.Close)

	return &testEnv{t: t, ts: ts, store: st, auth: authService, access: evaluator, hub: hub, cfg: cfg}
}

// user creates an account with role and returns it with a session token.
func (e *testEnv) user(email string, role auth.Role) (string, string) {
	e.t.Helper()
	ctx := context.Background()
	u, err := e.auth.CreateUser(ctx, email, "password123", "First", "Last", role)
	if err != nil {
		e.t.Fatalf("create user %s: %v", email, err)
	}
	token, _, err := e.auth.Login(ctx, email, "password123")
	if err != nil {
		e.t.Fatalf("login %s: %v", email, err)
	}
	return u.ID, token
}

// do sends a JSON request and decodes the JSON response into out when non-nil.
func (e *testEnv) do(method, path, token string, body any, out any) int {
	e.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	if err != nil {
		e.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.ts.Client().Do(req)
	if err != nil {
		e.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			e.t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

// room creates a room through the API as the system client.
func (e *testEnv) room(name string, members ...string) string {
	e.t.Helper()
	var created CreateRoomResponse
	status := e.do(http.MethodPost, "/room", testSystemToken, CreateRoomRequest{Name: name, UserIDs: members}, &created)
	if status != http.StatusOK {
		e.t.Fatalf("create room: status %d", status)
	}
	return created.ID
}
