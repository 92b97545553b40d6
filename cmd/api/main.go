package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"school-meal-engine/internal/api"
	"school-meal-engine/internal/api/handlers/meal"
	"school-meal-engine/internal/core/allergy"
	"school-meal-engine/internal/core/assignment"
	"school-meal-engine/internal/core/cache"
	"school-meal-engine/internal/core/cbr"
	"school-meal-engine/internal/core/kb"
	"school-meal-engine/internal/core/selection"
	"school-meal-engine/internal/core/validation"
	"school-meal-engine/internal/infrastructure/config"
	"school-meal-engine/internal/infrastructure/storage"
	"school-meal-engine/internal/pkg/common"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// 載入 .env
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel, cfg.LogDir); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("env", cfg.App.Env),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.String("timezone", cfg.Selection.Timezone),
	)

	ctx := context.Background()

	// 資料庫
	db, err := storage.Open(cfg.Database)
	if err != nil {
		common.LogFatal("Failed to open database", zap.Error(err))
	}
	defer storage.Close(db)
	if err := storage.AutoMigrate(db); err != nil {
		common.LogFatal("Failed to migrate database", zap.Error(err))
	}

	// 知識庫種子：每次啟動皆可重複寫入
	seed, err := kb.LoadSeed(ctx, cfg.Knowledge.SeedSource, cfg.Knowledge.SeedTimeout)
	if err != nil {
		common.LogFatal("Failed to load knowledge base seed", zap.Error(err))
	}
	catalog, err := kb.NewCatalog(seed)
	if err != nil {
		common.LogFatal("Invalid knowledge base seed", zap.Error(err))
	}
	knowledge := storage.NewKnowledgeStore(db)
	if _, err := knowledge.SeedKnowledge(ctx, catalog); err != nil {
		common.LogFatal("Failed to seed knowledge base", zap.Error(err))
	}

	// Redis：快取後端或排程鎖需要時才連線
	var redisClient *redis.Client
	if (cfg.Cache.Enabled && cfg.Cache.Backend == "redis") || cfg.Scheduler.LeaderLock {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			common.LogFatal("Failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
	}

	caseCache, err := cache.New(cfg.Cache, redisClient)
	if err != nil {
		common.LogFatal("Failed to initialize cache", zap.Error(err))
	}
	if caseCache != nil {
		defer caseCache.Close()
	}

	policy, err := selection.NewPolicy(cfg.Selection)
	if err != nil {
		common.LogFatal("Invalid selection policy", zap.Error(err))
	}

	students := storage.NewStudentStore(db)
	choices := storage.NewChoiceStore(db)
	menus := storage.NewMenuStore(db)
	matcher := kb.NewMatcher(knowledge)

	// 自動指派排程
	sched := assignment.NewScheduler(policy, students, choices, menus)
	queue := assignment.NewQueue(sched.RunAutoAssignment, cfg.Scheduler.QueueSize)
	var gate assignment.Gate
	if cfg.Scheduler.LeaderLock {
		gate = assignment.NewRedisLeaderGate(redisClient, cfg.Scheduler.LockTTL)
	}
	runner := assignment.NewRunner(policy, queue, gate, nil)
	if cfg.Scheduler.Enabled {
		if err := runner.Start(); err != nil {
			common.LogFatal("Failed to start scheduler", zap.Error(err))
		}
	} else {
		// 停用 cron 時仍保留手動觸發
		queue.Start()
		common.LogInfo("Cron scheduler disabled, on-demand runs only")
	}

	router, err := api.SetupRouter(cfg, api.Deps{
		Deps: meal.Deps{
			Validation: validation.NewService(matcher),
			Reasoner:   allergy.NewReasoner(matcher),
			Cases:      cbr.NewRetriever(knowledge, caseCache),
			Selection:  selection.NewService(policy, choices, menus, nil),
			Students:   students,
		},
		Ping:   func(ctx context.Context) error { return storage.Ping(ctx, db) },
		Runner: runner,
	})
	if err != nil {
		common.LogFatal("Failed to setup router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Int("port", cfg.Server.Port),
			zap.Bool("scheduler", cfg.Scheduler.Enabled),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			common.LogFatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		common.LogError("Server forced to shutdown", zap.Error(err))
	}
	// 等待執行中的自動指派完成
	runner.Stop(shutdownCtx)

	common.LogInfo("Server exited")
}
