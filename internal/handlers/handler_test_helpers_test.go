package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"practicehub/internal/config"
	"practicehub/internal/middleware"
	"practicehub/internal/observability"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// testRouterEnv bundles a router with whatever a test wants to hang onto.
type testRouterEnv struct {
	router *gin.Engine
}

func newTestLogger() *observability.Logger {
	return observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
}

func newTestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			SessionSecret: "test-session-secret",
			CronSecret:    "test-cron-secret",
		},
		IsTest: true,
	}
}

// newSessionRouter builds an engine with the cookie session store plus a
// login helper route that stamps an identity into the session.
func newSessionRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	store := cookie.NewStore([]byte("test-session-secret"))
	router.Use(sessions.Sessions("test-session", store))
	router.POST("/test/login", func(c *gin.Context) {
		session := sessions.Default(c)
		session.Set(middleware.UserIDKey, 42)
		session.Set(middleware.UsernameKey, "student")
		_ = session.Save()
		c.Status(http.StatusOK)
	})
	return router
}

// loginCookies performs the helper login and returns the session cookies to
// attach to subsequent requests.
func loginCookies(t *testing.T, router *gin.Engine) []*http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/test/login", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func attachCookies(req *http.Request, cookies []*http.Cookie) {
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
}
