package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/arview-server/internal/auth"
	"github.com/vovakirdan/arview-server/internal/store"
)

// AccountHandlers serves account administration under /auth.
type AccountHandlers struct {
	authService *auth.Service
	log         *zerolog.Logger
}

// NewAccountHandlers creates a new account handlers instance.
func NewAccountHandlers(authService *auth.Service, logger *zerolog.Logger) *AccountHandlers {
	return &AccountHandlers{
		authService: authService,
		log:         logger,
	}
}

// RegisterRequest represents the register request body.
type RegisterRequest struct {
	FirstName string    `json:"firstName" binding:"required"`
	LastName  string    `json:"lastName" binding:"required"`
	Email     string    `json:"email" binding:"required,email"`
	Password  string    `json:"password" binding:"required"`
	Role      auth.Role `json:"role"`
}

// ChangePasswordRequest targets a user by id.
type ChangePasswordRequest struct {
	UserID   string `json:"userId" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ChangePasswordByEmailRequest targets a user by email.
type ChangePasswordByEmailRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UpdateAccountRequest holds the account fields to change. Absent fields are kept.
type UpdateAccountRequest struct {
	FirstName *string    `json:"firstName"`
	LastName  *string    `json:"lastName"`
	Email     *string    `json:"email"`
	Role      *auth.Role `json:"role"`
}

// Register creates an account. With no accounts yet it needs no credentials
// and yields a super-admin; afterwards the caller must be a super-admin.
// POST /auth/register
func (h *AccountHandlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid register request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid input"})
		return
	}

	var actor *auth.Identity
	if header := c.GetHeader("Authorization"); header != "" {
		ident, err := h.authService.Resolve(c.Request.Context(), header)
		if err != nil {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "unauthorized"})
			return
		}
		actor = ident
	}

	user, err := h.authService.Register(c.Request.Context(), actor, auth.Registration{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
	})
	if err != nil {
		if errors.Is(err, auth.ErrForbidden) && actor == nil {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "unauthorized"})
			return
		}
		h.accountError(c, err, "failed to register user")
		return
	}

	h.log.Info().Str("user_id", user.ID).Str("role", user.Role).Msg("user registered")
	c.JSON(http.StatusCreated, ErrorResponse{Message: "User registered successfully"})
}

// ChangePassword sets a user's password by id.
// POST /auth/change-password
func (h *AccountHandlers) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid input"})
		return
	}
	if err := h.authService.SetPasswordByID(c.Request.Context(), req.UserID, req.Password); err != nil {
		h.accountError(c, err, "failed to change password")
		return
	}
	h.log.Info().Str("user_id", req.UserID).Msg("password changed")
	c.JSON(http.StatusOK, ErrorResponse{Message: "Password changed successfully"})
}

// ChangePasswordByEmail sets a user's password by email.
// POST /auth/change-password-by-email
func (h *AccountHandlers) ChangePasswordByEmail(c *gin.Context) {
	var req ChangePasswordByEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid input"})
		return
	}
	if err := h.authService.SetPassword(c.Request.Context(), req.Email, req.Password); err != nil {
		h.accountError(c, err, "failed to change password")
		return
	}
	c.JSON(http.StatusOK, ErrorResponse{Message: "Password changed successfully"})
}

// GetAccount returns one account. The key is an id, or an email for super-admins.
// GET /auth/account/:key
func (h *AccountHandlers) GetAccount(c *gin.Context) {
	user, err := h.authService.Account(c.Request.Context(), identityFrom(c), c.Param("key"))
	if err != nil {
		h.accountError(c, err, "failed to get account")
		return
	}
	c.JSON(http.StatusOK, userResponse(user))
}

// UpdateAccount changes account fields; only super-admins change roles.
// PUT /auth/account/:key
func (h *AccountHandlers) UpdateAccount(c *gin.Context) {
	var req UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid input"})
		return
	}

	ident := identityFrom(c)
	user, err := h.authService.UpdateAccount(c.Request.Context(), ident, c.Param("key"), auth.AccountUpdate{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
	})
	if err != nil {
		h.accountError(c, err, "failed to update account")
		return
	}

	h.log.Info().Str("user_id", user.ID).Str("by", ident.ID).Msg("account updated")
	c.JSON(http.StatusOK, userResponse(user))
}

// DeleteAccount removes an account with its memberships and issued tickets.
// DELETE /auth/account/:key
func (h *AccountHandlers) DeleteAccount(c *gin.Context) {
	ident := identityFrom(c)
	id := c.Param("key")
	if err := h.authService.DeleteAccount(c.Request.Context(), ident, id); err != nil {
		h.accountError(c, err, "failed to delete account")
		return
	}
	h.log.Info().Str("user_id", id).Str("by", ident.ID).Msg("account deleted")
	c.JSON(http.StatusOK, ErrorResponse{Message: "User deleted successfully"})
}

func (h *AccountHandlers) accountError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, auth.ErrAccountNotFound), errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "User not found"})
	case errors.Is(err, auth.ErrUserExists):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Email already in use"})
	case errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrInvalidPassword),
		errors.Is(err, auth.ErrInvalidRole):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
	case errors.Is(err, auth.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Message: "insufficient permissions"})
	case errors.Is(err, auth.ErrRoleChangeForbidden),
		errors.Is(err, auth.ErrRoleLocked),
		errors.Is(err, auth.ErrSystemEmail),
		errors.Is(err, auth.ErrProtectedAccount),
		errors.Is(err, auth.ErrNotOwnAccount):
		c.JSON(http.StatusForbidden, ErrorResponse{Message: err.Error()})
	default:
		h.log.Error().Err(err).Msg(msg)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal server error"})
	}
}
