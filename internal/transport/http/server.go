package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/arview-server/internal/auth"
	"github.com/vovakirdan/arview-server/internal/config"
	"github.com/vovakirdan/arview-server/internal/dispatch"
	"github.com/vovakirdan/arview-server/internal/store"
	"github.com/vovakirdan/arview-server/internal/ticket"
)

// Deps groups the services the HTTP layer routes to.
type Deps struct {
	Auth       *auth.Service
	Store      store.Store
	Access     RoomAccess
	Dispatcher *dispatch.Dispatcher
	Tickets    *ticket.Service
	Redeem     RedeemLimiter
}

// NewServer builds an HTTP server with REST and realtime routes.
func NewServer(deps Deps, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(deps, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter mounts the websocket endpoint on a plain mux in front of the gin
// engine. /ws stays off gin so the upgrade can hijack an unwritten response.
func NewRouter(deps Deps, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	ws := NewWSHandler(deps.Auth, deps.Dispatcher, WSOptions{
		MaxMessageBytes:   cfg.MaxMessageBytes,
		CommandsPerSecond: cfg.CommandsPerSecond,
		CommandBurst:      cfg.CommandBurst,
		FrontendURL:       cfg.FrontendURL,
	}, logger)

	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", ws)
	mux.Handle("/", newEngine(deps, cfg, logger))
	return mux
}

// newEngine registers the REST routes on a fresh gin engine.
func newEngine(deps Deps, cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.FrontendURL))

	router.GET("/", func(c *gin.Context) {
		c.JSON(stdhttp.StatusOK, gin.H{"message": "OK"})
	})
	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	authn := AuthMiddleware(deps.Auth, logger)

	authHandlers := NewAuthHandlers(deps.Auth, logger)
	userHandlers := NewUserHandlers(deps.Store, logger)
	accountHandlers := NewAccountHandlers(deps.Auth, logger)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandlers.Login)
		authGroup.POST("/register", accountHandlers.Register)
		authGroup.GET("/me", authn, authHandlers.Me)
		authGroup.GET("/users", authn, RequireRole(auth.RoleAdmin), userHandlers.ListUsers)
		authGroup.POST("/change-password", authn, RequireRole(auth.RoleSuperAdmin), accountHandlers.ChangePassword)
		authGroup.POST("/change-password-by-email", authn, RequireRole(auth.RoleSuperAdmin), accountHandlers.ChangePasswordByEmail)
		authGroup.GET("/account/:key", authn, accountHandlers.GetAccount)
		authGroup.PUT("/account/:key", authn, accountHandlers.UpdateAccount)
		authGroup.DELETE("/account/:key", authn, accountHandlers.DeleteAccount)
	}

	patientHandlers := NewPatientHandlers(deps.Store, logger)
	patients := router.Group("/patient", authn)
	{
		patients.POST("", RequireRole(auth.RoleSuperAdmin), patientHandlers.CreatePatient)
		patients.GET("", RequireRole(auth.RoleAdmin), patientHandlers.ListPatients)
		patients.GET("/:id", RequireRole(auth.RoleAdmin), patientHandlers.GetPatient)
		patients.PUT("/:id", RequireRole(auth.RoleSuperAdmin), patientHandlers.UpdatePatient)
		patients.DELETE("/:id", RequireRole(auth.RoleSuperAdmin), patientHandlers.DeletePatient)
	}

	roomHandlers := NewRoomHandlers(deps.Store, deps.Access, logger)
	rooms := router.Group("/room", authn)
	{
		rooms.POST("", RequireRole(auth.RoleSuperAdmin), roomHandlers.CreateRoom)
		rooms.GET("", RequireRole(auth.RoleAdmin), roomHandlers.ListRooms)
		rooms.GET("/:id", RequireRole(auth.RoleAdmin), roomHandlers.GetRoom)
		rooms.PUT("/:id", RequireRole(auth.RoleSuperAdmin), roomHandlers.UpdateRoom)
		rooms.DELETE("/:id", RequireRole(auth.RoleSuperAdmin), roomHandlers.DeleteRoom)
	}

	connHandlers := NewConnectionHandlers(deps.Tickets, logger)
	conns := router.Group("/connection")
	{
		conns.POST("", authn, RequireRole(auth.RoleSuperAdmin), connHandlers.Create)
		get := []gin.HandlerFunc{authn}
		if deps.Redeem != nil {
			get = append([]gin.HandlerFunc{RateLimitMiddleware(deps.Redeem, logger)}, get...)
		}
		get = append(get, connHandlers.Redeem)
		conns.GET("/:pinCode", get...)
	}

	if cfg.StoragePath != "" {
		router.Group("/static", authn).StaticFS("/", gin.Dir(cfg.StoragePath, false))
	}

	return router
}
