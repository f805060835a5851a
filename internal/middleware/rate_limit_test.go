package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute, time.Minute)
	defer rl.Stop()

	assert.True(t, rl.Allow("1.2.3.4:hint"))
	assert.True(t, rl.Allow("1.2.3.4:hint"))
	assert.False(t, rl.Allow("1.2.3.4:hint"))

	// Other keys have independent windows.
	assert.True(t, rl.Allow("1.2.3.4:questions"))
	assert.True(t, rl.Allow("5.6.7.8:hint"))
}

func TestRateLimiter_WindowResets(t *testing.T) {
	rl := NewRateLimiter(1, 10*time.Millisecond, time.Minute)
	defer rl.Stop()

	assert.True(t, rl.Allow("key"))
	assert.False(t, rl.Allow("key"))

	time.Sleep(15 * time.Millisecond)
	assert.True(t, rl.Allow("key"))
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(1, time.Minute, time.Minute)
	defer rl.Stop()

	router := gin.New()
	router.GET("/limited", RateLimit(rl, "limited"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/limited", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/limited", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Contains(t, second.Body.String(), "RATE_LIMIT_EXCEEDED")
}
