package handlers

import (
	"errors"
	"net/http"

	"practicehub/internal/config"
	"practicehub/internal/middleware"
	"practicehub/internal/observability"
	"practicehub/internal/services"
	contextutils "practicehub/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// AuthHandler owns session login/logout and signup.
type AuthHandler struct {
	users  services.UserServiceInterface
	cfg    *config.Config
	logger *observability.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(users services.UserServiceInterface, cfg *config.Config, logger *observability.Logger) *AuthHandler {
	return &AuthHandler{
		users:  users,
		cfg:    cfg,
		logger: logger,
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type signupRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required,min=8"`
	Age      int    `json:"age"`
}

// Login authenticates a username/password pair and stores the identity in
// the session cookie.
func (h *AuthHandler) Login(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "auth_login")
	defer span.End()

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "credentials", req.Username, err.Error())
		return
	}

	user, err := h.users.AuthenticateUser(ctx, req.Username, req.Password)
	if err != nil {
		h.logger.Warn(ctx, "Login failed", map[string]interface{}{
			"username": req.Username,
		})
		HandleAppError(c, contextutils.ErrInvalidCredentials)
		return
	}

	session := sessions.Default(c)
	session.Set(middleware.UserIDKey, user.ID)
	session.Set(middleware.UsernameKey, user.Username)
	if err := session.Save(); err != nil {
		HandleAppError(c, contextutils.WrapError(err, "failed to save session"))
		return
	}

	if err := h.users.UpdateLastActive(ctx, user.ID); err != nil {
		h.logger.Warn(ctx, "Failed to update last active", map[string]interface{}{
			"user_id": user.ID,
		})
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Logout clears the session.
func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: config.SessionPath, MaxAge: -1})
	if err := session.Save(); err != nil {
		HandleAppError(c, contextutils.WrapError(err, "failed to clear session"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Signup creates a student account and logs it in.
func (h *AuthHandler) Signup(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "auth_signup")
	defer span.End()

	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "signup", req.Username, err.Error())
		return
	}

	user, err := h.users.CreateUserWithPassword(ctx, req.Username, req.Email, req.Password, req.Age)
	if err != nil {
		if errors.Is(err, contextutils.ErrRecordExists) {
			HandleAppError(c, contextutils.ErrRecordExists)
			return
		}
		HandleAppError(c, err)
		return
	}

	session := sessions.Default(c)
	session.Set(middleware.UserIDKey, user.ID)
	session.Set(middleware.UsernameKey, user.Username)
	if err := session.Save(); err != nil {
		HandleAppError(c, contextutils.WrapError(err, "failed to save session"))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// Status reports whether the request carries a valid session.
func (h *AuthHandler) Status(c *gin.Context) {
	userID, ok := GetUserIDFromSession(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}

	user, err := h.users.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true, "user": user})
}
