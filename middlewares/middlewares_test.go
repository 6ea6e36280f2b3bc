package middlewares

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/table-reservations/services"
	"github.com/yeremiapane/table-reservations/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("middleware-test-secret")
}

func perform(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func tokenFor(t *testing.T, userID uint, role string) string {
	t.Helper()
	token, err := utils.GenerateToken(userID, role, time.Hour)
	require.NoError(t, err)
	return token
}

func TestAuthAndRoles(t *testing.T) {
	r := gin.New()
	r.GET("/read", AuthMiddleware(), RequireRoles(utils.RoleUser, utils.RoleAdmin), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("role"))
	})
	r.POST("/write", AuthMiddleware(), RequireRoles(utils.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	user := tokenFor(t, 1, utils.RoleUser)
	admin := tokenFor(t, 2, utils.RoleAdmin)

	tests := []struct {
		name   string
		method string
		path   string
		auth   string
		want   int
	}{
		{"missing header", http.MethodGet, "/read", "", http.StatusUnauthorized},
		{"wrong scheme", http.MethodGet, "/read", "Basic " + user, http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/read", "Bearer nope", http.StatusUnauthorized},
		{"user reads", http.MethodGet, "/read", "Bearer " + user, http.StatusOK},
		{"lowercase scheme", http.MethodGet, "/read", "bearer " + admin, http.StatusOK},
		{"user cannot write", http.MethodPost, "/write", "Bearer " + user, http.StatusForbidden},
		{"admin writes", http.MethodPost, "/write", "Bearer " + admin, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.auth != "" {
				headers["Authorization"] = tt.auth
			}
			w := perform(r, tt.method, tt.path, headers)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRequireRolesWithoutAuth(t *testing.T) {
	r := gin.New()
	r.GET("/x", RequireRoles(utils.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodGet, "/x", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebSocketAuthReadsQueryToken(t *testing.T) {
	r := gin.New()
	r.GET("/ws", WebSocketAuthMiddleware(), func(c *gin.Context) { c.String(http.StatusOK, c.GetString("role")) })

	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/ws", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/ws?token=bad", nil).Code)

	w := perform(r, http.MethodGet, "/ws?token="+tokenFor(t, 3, utils.RoleUser), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, utils.RoleUser, w.Body.String())
}

func TestETag(t *testing.T) {
	r := gin.New()
	r.Use(ETag())
	r.GET("/item", func(c *gin.Context) {
		utils.RespondJSON(c, http.StatusOK, "Reservation found", gin.H{"id": 1})
	})
	r.GET("/missing", func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "not found"})
	})

	first := perform(r, http.MethodGet, "/item", nil)
	require.Equal(t, http.StatusOK, first.Code)
	tag := first.Header().Get("ETag")
	require.NotEmpty(t, tag)

	var body utils.JSONResponse
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &body))
	assert.Equal(t, "Reservation found", body.Message)

	again := perform(r, http.MethodGet, "/item", nil)
	assert.Equal(t, tag, again.Header().Get("ETag"), "same body, same tag")

	cached := perform(r, http.MethodGet, "/item", map[string]string{"If-None-Match": tag})
	assert.Equal(t, http.StatusNotModified, cached.Code)
	assert.Empty(t, cached.Body.String())

	stale := perform(r, http.MethodGet, "/item", map[string]string{"If-None-Match": `"other"`})
	assert.Equal(t, http.StatusOK, stale.Code)

	missing := perform(r, http.MethodGet, "/missing", nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Empty(t, missing.Header().Get("ETag"))
	assert.Contains(t, missing.Body.String(), "not found")
}

func TestEtagMatches(t *testing.T) {
	assert.True(t, etagMatches(`"a", "b"`, `"b"`))
	assert.True(t, etagMatches(`W/"b"`, `"b"`))
	assert.True(t, etagMatches(`*`, `"b"`))
	assert.False(t, etagMatches(``, `"b"`))
	assert.False(t, etagMatches(`"a"`, `"b"`))
}

func TestTimestampHeader(t *testing.T) {
	r := gin.New()
	r.Use(TimestampHeader(), SecurityHeaders())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodGet, "/", nil)
	_, err := time.Parse(TimestampLayout, w.Header().Get("X-Timestamp"))
	assert.NoError(t, err)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestRateLimiterInMemory(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute, nil)
	clock := time.Date(2025, 3, 1, 12, 0, 10, 0, time.UTC)
	rl.now = func() time.Time { return clock }

	r := gin.New()
	r.Use(rl.RateLimit())
	r.GET("/a", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/b", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/a", nil).Code)
	}
	blocked := perform(r, http.MethodGet, "/a", nil)
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "50", blocked.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/b", nil).Code, "endpoints are counted separately")

	clock = clock.Add(61 * time.Second)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/a", nil).Code)
}

func TestRateKey(t *testing.T) {
	at := time.Date(2025, 3, 1, 18, 7, 0, 0, time.UTC)
	assert.Equal(t, "rateLimits:/reservations:10.0.0.1:2025-03-01_18-07", RateKey("/reservations", "10.0.0.1", at))
}

func TestWriteThrottle(t *testing.T) {
	r := gin.New()
	r.POST("/w", WriteThrottle(0.001, 2), func(c *gin.Context) { c.Status(http.StatusCreated) })

	assert.Equal(t, http.StatusCreated, perform(r, http.MethodPost, "/w", nil).Code)
	assert.Equal(t, http.StatusCreated, perform(r, http.MethodPost, "/w", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, perform(r, http.MethodPost, "/w", nil).Code)
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute, nil)
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }

	r := gin.New()
	r.Use(rl.RateLimit())
	r.GET("/a", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/b", func(c *gin.Context) { c.Status(http.StatusOK) })

	perform(r, http.MethodGet, "/a", nil)
	perform(r, http.MethodGet, "/b", nil)
	assert.Len(t, rl.ips, 2)

	clock = clock.Add(2 * time.Minute)
	perform(r, http.MethodGet, "/a", nil)
	assert.Len(t, rl.ips, 1, "idle keys are dropped, not just their timestamps")
}

func throttledRequest(r http.Handler, ip string) int {
	req := httptest.NewRequest(http.MethodPost, "/w", nil)
	req.RemoteAddr = ip + ":40000"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestWriteThrottleEvictsIdleClients(t *testing.T) {
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	wt := newWriteThrottle(1, 2, func() time.Time { return clock })

	r := gin.New()
	r.POST("/w", wt.handler(), func(c *gin.Context) { c.Status(http.StatusCreated) })

	assert.Equal(t, http.StatusCreated, throttledRequest(r, "10.0.0.1"))
	assert.Equal(t, http.StatusCreated, throttledRequest(r, "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, throttledRequest(r, "10.0.0.1"))
	assert.Equal(t, http.StatusCreated, throttledRequest(r, "10.0.0.2"))
	assert.Len(t, wt.limiters, 2)

	clock = clock.Add(wt.idle)
	assert.Equal(t, http.StatusCreated, throttledRequest(r, "10.0.0.3"))
	assert.Len(t, wt.limiters, 1)
	assert.Contains(t, wt.limiters, "10.0.0.3")
}

func TestRecoveryMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RecoveryMiddleware())
	r.GET("/server-error", func(c *gin.Context) { panic(services.ErrTableReserved) })
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := perform(r, http.MethodGet, "/server-error", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "table is reserved for the time specified")

	w = perform(r, http.MethodGet, "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddlewares("https://desk.example.com"))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodOptions, "/", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://desk.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}
