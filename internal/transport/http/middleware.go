package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/arview-server/internal/auth"
)

// ContextKeyIdentity is the gin context key holding the resolved *auth.Identity.
const ContextKeyIdentity = "identity"

// IdentityResolver turns an Authorization header value into an identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, authorization string) (*auth.Identity, error)
}

// AuthMiddleware resolves the bearer credential (JWT or system token) and
// stores the identity in the context.
func AuthMiddleware(resolver IdentityResolver, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logger.Debug().Str("path", c.Request.URL.Path).Msg("missing authorization header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Message: "unauthorized"})
			return
		}

		ident, err := resolver.Resolve(c.Request.Context(), authHeader)
		if err != nil {
			logger.Debug().Err(err).Msg("invalid credentials")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Message: "unauthorized"})
			return
		}

		c.Set(ContextKeyIdentity, ident)
		c.Next()
	}
}

// RequireRole rejects identities ranked below minimum.
func RequireRole(minimum auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident := identityFrom(c)
		if ident == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Message: "unauthorized"})
			return
		}
		if !ident.Role.Satisfies(minimum) {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Message: "insufficient permissions"})
			return
		}
		c.Next()
	}
}

func identityFrom(c *gin.Context) *auth.Identity {
	v, ok := c.Get(ContextKeyIdentity)
	if !ok {
		return nil
	}
	ident, _ := v.(*auth.Identity)
	return ident
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		ev := logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = logger.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Str("remote_addr", c.ClientIP()).
			Msg("http request")
	}
}

// CORSMiddleware allows the configured frontend origin. An empty origin allows any.
func CORSMiddleware(origin string) gin.HandlerFunc {
	origin = strings.TrimRight(origin, "/")
	return func(c *gin.Context) {
		reqOrigin := c.GetHeader("Origin")
		if reqOrigin != "" && (origin == "" || strings.EqualFold(reqOrigin, origin)) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", reqOrigin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Add("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
