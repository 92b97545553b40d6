package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"sync"
	"time"

	"school-meal-engine/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Deduplicator 在 window 內拒絕相同的寫入請求（方法、路徑、請求體皆相同）
type Deduplicator struct {
	mu       sync.Mutex
	window   time.Duration
	requests map[string]time.Time
	now      func() time.Time
}

// NewDeduplicator 創建去重器；window 非正值時使用 1 秒
func NewDeduplicator(window time.Duration) *Deduplicator {
	if window <= 0 {
		window = time.Second
	}
	return &Deduplicator{
		window:   window,
		requests: make(map[string]time.Time),
		now:      time.Now,
	}
}

// seen 記錄指紋，window 內重複時回傳 true；順手清掉過期指紋
func (d *Deduplicator) seen(fingerprint string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, t := range d.requests {
		if now.Sub(t) > d.window {
			delete(d.requests, k)
		}
	}
	if last, ok := d.requests[fingerprint]; ok && now.Sub(last) <= d.window {
		return true
	}
	d.requests[fingerprint] = now
	return false
}

// Handler 只處理 POST
func (d *Deduplicator) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		fingerprint := c.Request.Method + ":" + c.Request.URL.Path
		if c.Request.Body != nil {
			body, err := io.ReadAll(c.Request.Body)
			if err != nil {
				common.LogError("Failed to read request body", zap.Error(err))
				common.WriteError(c, common.ErrInvalidRequest.Wrap(err))
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
			hash := sha256.Sum256(body)
			fingerprint += ":" + hex.EncodeToString(hash[:])
		}

		if d.seen(fingerprint) {
			common.LogInfo("Duplicate request rejected", zap.String("path", c.Request.URL.Path))
			common.WriteError(c, common.ErrTooManyRequests)
			return
		}
		c.Next()
	}
}
