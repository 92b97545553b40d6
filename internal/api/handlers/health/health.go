package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"school-meal-engine/internal/core/assignment"
	"school-meal-engine/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger 資料庫連線檢查
type Pinger func(ctx context.Context) error

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime"`
	Scheduler *SchedulerStatus       `json:"scheduler,omitempty"`
}

// SchedulerStatus 自動指派排程狀態
type SchedulerStatus struct {
	assignment.Status
	NextRun *time.Time `json:"next_run,omitempty"`
}

// Handler 健康檢查處理器
type Handler struct {
	version string
	ping    Pinger
	runner  *assignment.Runner
}

// NewHandler 創建健康檢查處理器；ping 與 runner 可為 nil
func NewHandler(version string, ping Pinger, runner *assignment.Runner) *Handler {
	return &Handler{version: version, ping: ping, runner: runner}
}

// HealthCheck 回傳版本、執行期資訊與排程狀態
func (h *Handler) HealthCheck(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   h.version,
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
	}

	if h.runner != nil {
		status := &SchedulerStatus{Status: h.runner.Status()}
		if next := h.runner.Next(); !next.IsZero() {
			status.NextRun = &next
		}
		response.Scheduler = status
	}

	common.LogDebug("Health check request",
		zap.String("client_ip", c.ClientIP()),
		zap.String("path", c.Request.URL.Path),
	)

	c.JSON(http.StatusOK, response)
}

// ReadinessCheck 資料庫可連線才算就緒
func (h *Handler) ReadinessCheck(c *gin.Context) {
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			common.LogWarn("Readiness check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not_ready",
				"code":   common.ErrCodeServiceUnavailable,
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}

// LivenessCheck 存活檢查
func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
