package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/arview-server/internal/auth"
	"github.com/vovakirdan/arview-server/internal/core"
	"github.com/vovakirdan/arview-server/internal/dispatch"
	"github.com/vovakirdan/arview-server/internal/proto"
)

const (
	pingInterval = 25 * time.Second
	pingTimeout  = 10 * time.Second
	leaveTimeout = 5 * time.Second
)

var errForcedClose = errors.New("connection closed by server")

// WSOptions tunes the realtime endpoint.
type WSOptions struct {
	MaxMessageBytes   int64
	CommandsPerSecond float64
	CommandBurst      int
	// FrontendURL restricts browser origins. Empty accepts any origin.
	FrontendURL string
}

// WSHandler upgrades HTTP connections and bridges them to the dispatcher.
type WSHandler struct {
	resolver   IdentityResolver
	dispatcher *dispatch.Dispatcher
	opts       WSOptions
	origins    []string
	log        *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(resolver IdentityResolver, dispatcher *dispatch.Dispatcher, opts WSOptions, logger *zerolog.Logger) *WSHandler {
	h := &WSHandler{resolver: resolver, dispatcher: dispatcher, opts: opts, log: logger}
	if u, err := url.Parse(opts.FrontendURL); err == nil && u.Host != "" {
		h.origins = []string{u.Host}
	}
	return h
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	roomID := r.URL.Query().Get("roomId")
	if roomID == "" {
		h.log.Debug().Msg("no room id provided, refusing connection")
		stdhttp.Error(w, "roomId is required", stdhttp.StatusBadRequest)
		return
	}

	// Identity failures are not fatal here: the first command on an
	// unauthenticated connection closes it.
	ident := h.resolveIdentity(r)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     h.origins,
		InsecureSkipVerify: len(h.origins) == 0,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()

	if h.opts.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.opts.MaxMessageBytes)
	}

	connID := uuid.NewString()
	userID := ""
	if ident != nil {
		userID = ident.ID
	}
	client := core.NewClient(connID, userID, 0)
	defer client.Close()
	session := dispatch.NewSession(connID, ident, roomID, client)

	logger := h.log.With().Str("conn_id", connID).Str("room_id", roomID).Logger()
	logger.Debug().Str("user_id", userID).Bool("authenticated", ident != nil).Msg("new client connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errCh := make(chan error, 3)
	go func() {
		errCh <- h.readLoop(ctx, conn, session, &logger)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client, &logger)
	}()
	go func() {
		errCh <- h.pingLoop(ctx, conn)
	}()

	err = <-errCh
	cancel()
	<-errCh
	<-errCh

	if errors.Is(err, errForcedClose) {
		return
	}

	leaveCtx, leaveCancel := context.WithTimeout(context.Background(), leaveTimeout)
	h.dispatcher.Close(leaveCtx, session)
	leaveCancel()

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = "connection error"
			logger.Warn().Err(err).Msg("ws connection closed with error")
		}
	}
	logger.Debug().Msg("client disconnected")
	_ = conn.Close(status, reason)
}

func (h *WSHandler) resolveIdentity(r *stdhttp.Request) *auth.Identity {
	credential := r.Header.Get("Authorization")
	if credential == "" {
		credential = r.URL.Query().Get("token")
	}
	if credential == "" {
		return nil
	}
	ident, err := h.resolver.Resolve(r.Context(), credential)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws identity resolution failed")
		return nil
	}
	return ident
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, session *dispatch.Session, logger *zerolog.Logger) error {
	limiter := newCommandLimiter(h.opts.CommandsPerSecond, h.opts.CommandBurst)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		if session.Identity == nil {
			return h.forceClose(ctx, conn, session, logger, "anonymous frame")
		}

		if typ != websocket.MessageText {
			if err := h.replyError(ctx, conn, proto.NewError(proto.CodeBadRequest, "text frames only")); err != nil {
				return err
			}
			continue
		}

		var inbound proto.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil || inbound.Event == "" {
			if err := h.replyError(ctx, conn, proto.NewError(proto.CodeBadRequest, "malformed message")); err != nil {
				return err
			}
			continue
		}

		if !allowCommand(limiter) {
			if err := h.replyError(ctx, conn, proto.NewError(proto.CodeRateLimited, "too many commands")); err != nil {
				return err
			}
			continue
		}

		res := h.dispatcher.Handle(ctx, session, inbound)
		switch res.Outcome {
		case dispatch.OutcomeClose:
			return h.forceClose(ctx, conn, session, logger, inbound.Event)
		case dispatch.OutcomeReply:
			if err := h.replyError(ctx, conn, res.Err); err != nil {
				return err
			}
		}
	}
}

func (h *WSHandler) forceClose(ctx context.Context, conn *websocket.Conn, session *dispatch.Session, logger *zerolog.Logger, event string) error {
	h.dispatcher.Drop(ctx, session)
	logger.Info().Str("event", event).Msg("forcing disconnect")
	_ = conn.Close(websocket.StatusPolicyViolation, "")
	return errForcedClose
}

func (h *WSHandler) replyError(ctx context.Context, conn *websocket.Conn, perr *proto.Error) error {
	return wsjson.Write(ctx, conn, proto.Outbound{Event: proto.EventHandlerError, Data: perr})
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, logger *zerolog.Logger) error {
	for {
		select {
		case event := <-client.Events:
			if event == nil {
				continue
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				logger.Error().Err(err).Str("event", event.Name).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) pingLoop(ctx context.Context, conn *websocket.Conn) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
