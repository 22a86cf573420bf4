package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(handlers...)
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return r
}

func get(r http.Handler, remote string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remote
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitPerClient(t *testing.T) {
	clock := time.Unix(0, 0)
	r := newRouter(rateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 2}, func() time.Time { return clock }))

	assert.Equal(t, http.StatusOK, get(r, "10.0.0.1:1", nil).Code)
	assert.Equal(t, http.StatusOK, get(r, "10.0.0.1:1", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, "10.0.0.1:1", nil).Code)

	// Another client has its own budget.
	assert.Equal(t, http.StatusOK, get(r, "10.0.0.2:1", nil).Code)

	clock = clock.Add(time.Second)
	assert.Equal(t, http.StatusOK, get(r, "10.0.0.1:1", nil).Code)
}

func TestRateLimitForgetsIdleClients(t *testing.T) {
	clock := time.Unix(0, 0)
	r := newRouter(rateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 1}, func() time.Time { return clock }))

	assert.Equal(t, http.StatusOK, get(r, "10.0.0.1:1", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, "10.0.0.1:1", nil).Code)

	clock = clock.Add(2 * clientTTL)
	assert.Equal(t, http.StatusOK, get(r, "10.0.0.1:1", nil).Code)
}

func TestRequestID(t *testing.T) {
	r := newRouter(RequestID(), Logger(zap.NewNop()))

	w := get(r, "10.0.0.1:1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Regexp(t, `^req_[0-9A-Z]{26}$`, w.Header().Get(RequestIDHeader))

	w = get(r, "10.0.0.1:1", http.Header{RequestIDHeader: []string{"req_mine"}})
	assert.Equal(t, "req_mine", w.Header().Get(RequestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter(CORS(DefaultCORSConfig()))

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
