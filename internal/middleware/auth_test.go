package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type fakeAdminChecker struct {
	admins map[int]bool
}

func (f *fakeAdminChecker) IsAdmin(_ context.Context, userID int) (bool, error) {
	return f.admins[userID], nil
}

func newAuthTestRouter(checker AdminChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	store := cookie.NewStore([]byte("test-secret"))
	router.Use(sessions.Sessions("test-session", store))

	router.POST("/login/:id", func(c *gin.Context) {
		session := sessions.Default(c)
		session.Set(UserIDKey, atoiOrZero(c.Param("id")))
		session.Set(UsernameKey, "tester")
		_ = session.Save()
		c.Status(http.StatusOK)
	})
	router.GET("/protected", RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetInt(UserIDKey)})
	})
	if checker != nil {
		router.GET("/admin", RequireAdmin(checker), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
	}
	return router
}

func atoiOrZero(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

func loginAs(t *testing.T, router *gin.Engine, userID string) []*http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login/"+userID, nil))
	return w.Result().Cookies()
}

func TestRequireAuth_NoSession(t *testing.T) {
	router := newAuthTestRouter(nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
}

func TestRequireAuth_WithSession(t *testing.T) {
	router := newAuthTestRouter(nil)
	cookies := loginAs(t, router, "42")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":42`)
}

func TestRequireAdmin(t *testing.T) {
	checker := &fakeAdminChecker{admins: map[int]bool{1: true}}
	router := newAuthTestRouter(checker)

	adminCookies := loginAs(t, router, "1")
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	for _, c := range adminCookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	userCookies := loginAs(t, router, "2")
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	for _, c := range userCookies {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireCronSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/cron", RequireCronSecret("s3cret"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cron", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/cron", nil)
	req.Header.Set("X-Cron-Secret", "wrong")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/cron", nil)
	req.Header.Set("X-Cron-Secret", "s3cret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
