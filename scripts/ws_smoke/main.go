package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/arview-server/internal/proto"
)

type options struct {
	api     string
	socket  string
	room    string
	pin     string
	token   string
	timeout time.Duration
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options
	flag.StringVar(&opts.api, "api", "http://localhost:3000", "REST base URL, used to redeem -pin")
	flag.StringVar(&opts.socket, "socket", "ws://localhost:3000/ws", "WebSocket address")
	flag.StringVar(&opts.room, "room", "", "room id to join")
	flag.StringVar(&opts.pin, "pin", "", "pairing pin to redeem instead of -room")
	flag.StringVar(&opts.token, "token", os.Getenv("ARVIEW_AUTH_TOKEN"), "bearer token (JWT or system token)")
	flag.DurationVar(&opts.timeout, "timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	if opts.pin != "" {
		if err := redeem(ctx, &opts); err != nil {
			return err
		}
	}
	if opts.room == "" {
		return fmt.Errorf("either -room or -pin is required")
	}

	operator, err := dial(ctx, opts)
	if err != nil {
		return fmt.Errorf("dial operator: %w", err)
	}
	defer operator.Close(websocket.StatusNormalClosure, "bye")

	viewer, err := dial(ctx, opts)
	if err != nil {
		return fmt.Errorf("dial viewer: %w", err)
	}
	defer viewer.Close(websocket.StatusNormalClosure, "bye")

	if err := wsjson.Write(ctx, viewer, map[string]any{"event": proto.EventJoin}); err != nil {
		return fmt.Errorf("viewer join: %w", err)
	}
	// Give the viewer's join a head start so the rotate below reaches it.
	time.Sleep(100 * time.Millisecond)

	rotate := map[string]any{
		"event": proto.EventRotate,
		"data":  proto.RotateData{Vertical: 15, Horizontal: 30},
	}
	if err := wsjson.Write(ctx, operator, rotate); err != nil {
		return fmt.Errorf("operator rotate: %w", err)
	}

	for {
		var outbound struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := wsjson.Read(ctx, viewer, &outbound); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		fmt.Printf("Received event=%s data=%s\n", outbound.Event, string(outbound.Data))

		switch outbound.Event {
		case proto.EventRotateCommand:
			return nil
		case proto.EventHandlerError:
			return fmt.Errorf("server rejected command: %s", outbound.Data)
		}
	}
}

func dial(ctx context.Context, opts options) (*websocket.Conn, error) {
	u, err := url.Parse(opts.socket)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("roomId", opts.room)
	u.RawQuery = q.Encode()

	header := http.Header{}
	if opts.token != "" {
		header.Set("Authorization", "Bearer "+opts.token)
	}
	conn, _, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{HTTPHeader: header})
	return conn, err
}

// redeem resolves opts.pin the way a headset does and fills in room and socket.
func redeem(ctx context.Context, opts *options) error {
	endpoint := strings.TrimRight(opts.api, "/") + "/connection/" + url.PathEscape(opts.pin)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+opts.token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("redeem pin: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return fmt.Errorf("redeem pin: %s (%d)", body.Message, resp.StatusCode)
	}

	var redeemed struct {
		RoomID    string `json:"roomId"`
		SocketURL string `json:"socketUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&redeemed); err != nil {
		return fmt.Errorf("decode redemption: %w", err)
	}
	fmt.Printf("Pin %s pairs with room %s at %s\n", opts.pin, redeemed.RoomID, redeemed.SocketURL)
	opts.room = redeemed.RoomID
	if redeemed.SocketURL != "" {
		opts.socket = redeemed.SocketURL
	}
	return nil
}
