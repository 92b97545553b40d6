package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"school-meal-engine/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func ok(c *gin.Context) { c.Status(http.StatusOK) }

func serve(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
	return w
}

func TestRateLimiter_RefillsOverTime(t *testing.T) {
	now := time.Date(2025, 3, 7, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Second)
	rl.now = func() time.Time { return now }
	rl.lastTime = now

	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())

	now = now.Add(500 * time.Millisecond)
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())

	now = now.Add(time.Hour)
	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow(), "tokens must not exceed capacity")
}

func TestRateLimit_Responds429(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(1, time.Minute))
	r.GET("/", ok)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/", "").Code)
	w := serve(r, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestDeduplicator(t *testing.T) {
	now := time.Date(2025, 3, 7, 9, 0, 0, 0, time.UTC)
	d := NewDeduplicator(time.Second)
	d.now = func() time.Time { return now }

	r := gin.New()
	r.Use(d.Handler())
	r.POST("/choices", func(c *gin.Context) {
		body, err := c.GetRawData()
		require.NoError(t, err)
		c.String(http.StatusOK, string(body))
	})
	r.GET("/choices", ok)

	first := serve(r, http.MethodPost, "/choices", `{"senin":"harian"}`)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, `{"senin":"harian"}`, first.Body.String(), "body must be restored for the handler")

	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodPost, "/choices", `{"senin":"harian"}`).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/choices", `{"senin":"sehat"}`).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/choices", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/choices", "").Code)

	now = now.Add(2 * time.Second)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/choices", `{"senin":"harian"}`).Code)
	assert.Len(t, d.requests, 1, "expired fingerprints are dropped")
}

func TestBodySizeLimit(t *testing.T) {
	r := gin.New()
	r.Use(BodySizeLimit(8))
	r.POST("/", ok)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/", "tiny").Code)
	assert.Equal(t, http.StatusRequestEntityTooLarge, serve(r, http.MethodPost, "/", "far too large").Code)
}

func TestRecoveryAndLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	prev := common.Logger
	common.Logger = zap.New(core)
	t.Cleanup(func() { common.Logger = prev })

	r := gin.New()
	r.Use(Recovery(), requestid.New(), Logger())
	r.GET("/panic", func(*gin.Context) { panic("kitchen on fire") })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := serve(r, http.MethodGet, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var resp common.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, common.ErrCodeInternalError, resp.Code)
	assert.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())

	serve(r, http.MethodGet, "/missing", "")
	warn := logs.FilterMessage("用戶端錯誤").All()
	require.Len(t, warn, 1)
	assert.NotEmpty(t, warn[0].ContextMap()["request_id"])
}
