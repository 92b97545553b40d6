package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"school-meal-engine/internal/api/handlers/health"
	"school-meal-engine/internal/api/handlers/meal"
	"school-meal-engine/internal/api/middleware"
	"school-meal-engine/internal/core/assignment"
	"school-meal-engine/internal/infrastructure/config"
	"school-meal-engine/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxBodySize = 1 << 20
)

// Deps 路由依賴
type Deps struct {
	meal.Deps
	Ping   health.Pinger
	Runner *assignment.Runner
}

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, deps Deps) (*gin.Engine, error) {
	if deps.Validation == nil || deps.Reasoner == nil || deps.Cases == nil || deps.Selection == nil {
		return nil, fmt.Errorf("router requires validation, allergy, case and selection services")
	}

	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	timeout := cfg.Server.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxBodySize := cfg.Server.MaxBodyBytes
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}

	router := gin.New()

	// requestid 需在 Logger 之前，日誌才拿得到請求 ID
	router.Use(middleware.Recovery())
	router.Use(requestid.New())
	router.Use(middleware.Logger())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.Use(middleware.BodySizeLimit(maxBodySize))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}
	router.Use(requestTimeout(timeout))

	healthHandler := health.NewHandler(cfg.App.Version, deps.Ping, deps.Runner)
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/live", healthHandler.LivenessCheck)

	if deps.Assigner == nil && deps.Runner != nil {
		deps.Assigner = deps.Runner
	}
	h := meal.NewHandler(deps.Deps)
	dedup := middleware.NewDeduplicator(cfg.DedupWindow).Handler()

	api := router.Group("/api/v1")
	{
		ingredients := api.Group("/ingredients")
		{
			ingredients.POST("/validate", h.HandleValidate)
			ingredients.POST("/validate-many", h.HandleValidateMany)
		}

		api.POST("/allergy/check", h.HandleAllergyCheck)
		api.GET("/cases", h.HandleCases)

		sel := api.Group("/selection")
		{
			sel.GET("/window", h.HandleWindow)
			sel.GET("/students/:id/choices", h.HandleListChoices)
			sel.POST("/students/:id/choices", dedup, h.HandleSubmitChoices)
		}

		admin := api.Group("/admin")
		{
			admin.POST("/auto-assign", dedup, h.HandleAutoAssign)
		}
	}

	common.LogInfo("Router setup completed successfully",
		zap.String("version", cfg.App.Version),
		zap.Bool("rate_limit", cfg.RateLimit.Enabled),
		zap.Bool("scheduler_attached", deps.Runner != nil),
		zap.Duration("timeout", timeout),
		zap.Int64("max_body_size", maxBodySize),
	)

	return router, nil
}

// requestTimeout 為每個請求設定逾時；處理器未回應即逾時時回傳 504
func requestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			common.LogError("Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", requestid.Get(c)),
				zap.Duration("timeout", timeout),
			)
			common.WriteError(c, common.ErrGatewayTimeout)
		}
	}
}
