package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/arview-server/internal/access"
	"github.com/vovakirdan/arview-server/internal/auth"
	"github.com/vovakirdan/arview-server/internal/config"
	"github.com/vovakirdan/arview-server/internal/core"
	"github.com/vovakirdan/arview-server/internal/dispatch"
	"github.com/vovakirdan/arview-server/internal/store"
	"github.com/vovakirdan/arview-server/internal/store/sqlite"
	"github.com/vovakirdan/arview-server/internal/ticket"
	transporthttp "github.com/vovakirdan/arview-server/internal/transport/http"
)

const redisPingTimeout = 3 * time.Second

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	redis           *redis.Client
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}
	authService := auth.NewService(st, jwtConfig, cfg.AuthToken)

	hub := core.NewHub(*logger)
	evaluator := access.NewEvaluator(st, *logger)
	table := dispatch.NewTable(dispatch.NewValidator(), cfg.ICEServers())
	dispatcher := dispatch.NewDispatcher(table, evaluator, hub, *logger)

	tickets := ticket.NewService(st, ticket.Config{
		SocketURL: cfg.SocketURL,
		TTL:       cfg.TicketTTL,
	}, *logger)

	a := &App{
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}

	var limiter transporthttp.RedeemLimiter
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = client.Close()
			a.cleanup()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.redis = client
		limiter = transporthttp.NewRedisRedeemLimiter(client, cfg.RedeemPerMinute)
		logger.Info().Str("redis_addr", cfg.RedisAddr).Msg("redis rate limiter enabled")
	} else {
		limiter = transporthttp.NewMemoryRedeemLimiter(cfg.RedeemPerMinute)
	}

	a.server = transporthttp.NewServer(transporthttp.Deps{
		Auth:       authService,
		Store:      st,
		Access:     evaluator,
		Dispatcher: dispatcher,
		Tickets:    tickets,
		Redeem:     limiter,
	}, cfg, logger)

	return a, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.hub.Run(ctx)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
