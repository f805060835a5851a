// Package middleware provides authentication, authorization and rate
// limiting middleware for the Gin web framework.
package middleware

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Session keys for storing user information
const (
	// UserIDKey is the key used to store user ID in session
	UserIDKey = "user_id"
	// UsernameKey is the key used to store username in session
	UsernameKey = "username"
)

// AdminChecker reports whether a user holds the admin flag.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID int) (bool, error)
}

// sessionIdentity pulls the authenticated user out of the session. Returns
// false when the session is missing or malformed.
func sessionIdentity(c *gin.Context) (int, string, bool) {
	session := sessions.Default(c)

	userID := session.Get(UserIDKey)
	if userID == nil {
		return 0, "", false
	}
	userIDInt, ok := userID.(int)
	if !ok {
		// JSON numbers round-trip through float64 in some session backends.
		userIDFloat, floatOK := userID.(float64)
		if !floatOK {
			return 0, "", false
		}
		userIDInt = int(userIDFloat)
	}

	username := session.Get(UsernameKey)
	if username == nil {
		return 0, "", false
	}
	usernameStr, ok := username.(string)
	if !ok || usernameStr == "" {
		return 0, "", false
	}

	return userIDInt, usernameStr, true
}

func abortUnauthenticated(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"error": "Authentication required",
		"code":  "UNAUTHORIZED",
	})
	c.Abort()
}

// RequireAuth returns a middleware that requires authentication
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, username, ok := sessionIdentity(c)
		if !ok {
			abortUnauthenticated(c)
			return
		}

		// Store user info in context for handlers to use
		c.Set(UserIDKey, userID)
		c.Set(UsernameKey, username)

		c.Next()
	}
}

// RequireAdmin returns a middleware that requires authentication and the
// admin flag.
func RequireAdmin(users AdminChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, username, ok := sessionIdentity(c)
		if !ok {
			abortUnauthenticated(c)
			return
		}

		isAdmin, err := users.IsAdmin(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to check admin status",
				"code":  "INTERNAL_ERROR",
			})
			c.Abort()
			return
		}
		if !isAdmin {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Admin access required",
				"code":  "FORBIDDEN",
			})
			c.Abort()
			return
		}

		c.Set(UserIDKey, userID)
		c.Set(UsernameKey, username)

		c.Next()
	}
}

// RequireCronSecret returns a middleware for the batch-job endpoints. The
// caller must present the shared secret in the X-Cron-Secret header.
func RequireCronSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" || c.GetHeader("X-Cron-Secret") != secret {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or missing cron secret",
				"code":  "INVALID_CRON_SECRET",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
