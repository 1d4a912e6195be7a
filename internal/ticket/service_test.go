package ticket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/arview-server/internal/auth"
	"github.com/vovakirdan/arview-server/internal/store"
	"github.com/vovakirdan/arview-server/internal/store/sqlite"
)

const testSocketURL = "wss://arview.example.com/ws"

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

type env struct {
	svc   *Service
	st    *sqlite.SQLiteStore
	clk   *clock
	admin *auth.Identity
	room  *store.Room
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	admin := &store.User{Email: "root@example.com", PasswordHash: "x", FirstName: "Root", Role: string(auth.RoleSuperAdmin)}
	require.NoError(t, st.CreateUser(ctx, admin))
	room := &store.Room{Name: "OR-3", CreatedBy: admin.ID}
	require.NoError(t, st.CreateRoom(ctx, room))

	clk := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	svc := NewService(st, Config{SocketURL: testSocketURL, Now: clk.Now}, zerolog.Nop())

	return &env{svc: svc, st: st, clk: clk, admin: auth.IdentityFromUser(admin), room: room}
}

func TestIssueAndRedeemRoundTrip(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	issued, err := e.svc.Issue(ctx, e.admin, e.room.ID)
	require.NoError(t, err)
	assert.Equal(t, e.room.ID, issued.RoomID)
	assert.Equal(t, testSocketURL, issued.SocketURL)
	assert.Regexp(t, `^[A-Z0-9]{4}$`, issued.PinCode)

	var qr Redeemed
	require.NoError(t, json.Unmarshal([]byte(issued.QRCodeString), &qr))
	assert.Equal(t, Redeemed{RoomID: e.room.ID, SocketURL: testSocketURL}, qr)

	got, err := e.svc.Redeem(ctx, issued.PinCode)
	require.NoError(t, err)
	assert.Equal(t, &Redeemed{RoomID: e.room.ID, SocketURL: testSocketURL}, got)

	// Not consumed: a second headset can pair with the same pin.
	_, err = e.svc.Redeem(ctx, issued.PinCode)
	require.NoError(t, err)
}

func TestRedeemExpiryWindow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	issuedAt := e.clk.t

	issued, err := e.svc.Issue(ctx, e.admin, e.room.ID)
	require.NoError(t, err)
	validUntil := issuedAt.Add(DefaultTTL)

	e.clk.t = validUntil.Add(-time.Second)
	_, err = e.svc.Redeem(ctx, issued.PinCode)
	require.NoError(t, err)

	e.clk.t = validUntil
	_, err = e.svc.Redeem(ctx, issued.PinCode)
	require.NoError(t, err)

	e.clk.t = validUntil.Add(time.Second)
	_, err = e.svc.Redeem(ctx, issued.PinCode)
	require.ErrorIs(t, err, ErrExpired)
}

func TestRedeemUnknownPin(t *testing.T) {
	e := newEnv(t)

	_, err := e.svc.Redeem(context.Background(), "ZZZZ")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = e.svc.Redeem(context.Background(), "not-a-pin")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRedeemNormalizesPin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	issued, err := e.svc.Issue(ctx, e.admin, e.room.ID)
	require.NoError(t, err)

	lower := " " + string(bytes.ToLower([]byte(issued.PinCode))) + " "
	_, err = e.svc.Redeem(ctx, lower)
	require.NoError(t, err)
}

func TestIssueRequiresSuperAdmin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.Issue(ctx, &auth.Identity{ID: "u1", Role: auth.RoleAdmin}, e.room.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = e.svc.Issue(ctx, nil, e.room.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = e.svc.Issue(ctx, e.admin, "missing-room")
	require.ErrorIs(t, err, ErrRoomNotFound)
}

func TestIssueSkipsLivePins(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	// "AAAA" is live; the reader yields zeros (A) first, then ones (B).
	require.NoError(t, e.st.CreateTicket(ctx, &store.Ticket{
		PinCode: "AAAA", StartedBy: e.admin.ID, RoomID: e.room.ID,
		CreatedAt: e.clk.t, ValidUntil: e.clk.t.Add(time.Hour),
	}))

	e.svc.rand = bytes.NewReader(append(bytes.Repeat([]byte{0}, 4), bytes.Repeat([]byte{1}, 4)...))
	issued, err := e.svc.Issue(ctx, e.admin, e.room.ID)
	require.NoError(t, err)
	assert.Equal(t, "BBBB", issued.PinCode)
}

func TestIssueReusesExpiredPin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.NoError(t, e.st.CreateTicket(ctx, &store.Ticket{
		PinCode: "AAAA", StartedBy: e.admin.ID, RoomID: e.room.ID,
		CreatedAt: e.clk.t.Add(-2 * time.Hour), ValidUntil: e.clk.t.Add(-time.Hour),
	}))

	e.svc.rand = bytes.NewReader(bytes.Repeat([]byte{0}, 4))
	issued, err := e.svc.Issue(ctx, e.admin, e.room.ID)
	require.NoError(t, err)
	assert.Equal(t, "AAAA", issued.PinCode)

	_, err = e.svc.Redeem(ctx, "AAAA")
	require.NoError(t, err)
}

// zeros always yields zero bytes, so every draw is "AAAA". Safe for concurrent use.
type zeros struct{}

func (zeros) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

func TestConcurrentIssueNeverSharesLivePin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.svc.rand = zeros{}

	const workers = 4
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		pins    []string
		exhaust int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			issued, err := e.svc.Issue(ctx, e.admin, e.room.ID)
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, ErrPinExhausted) {
				exhaust++
				return
			}
			if assert.NoError(t, err) {
				pins = append(pins, issued.PinCode)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, []string{"AAAA"}, pins)
	assert.Equal(t, workers-1, exhaust)
}
