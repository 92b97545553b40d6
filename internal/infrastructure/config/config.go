package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App         AppConfig       `mapstructure:"app"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Cache       CacheConfig     `mapstructure:"cache"`
	Knowledge   KnowledgeConfig `mapstructure:"knowledge"`
	Selection   SelectionConfig `mapstructure:"selection"`
	Scheduler   SchedulerConfig `mapstructure:"scheduler"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
	DedupWindow time.Duration   `mapstructure:"dedup_window"`
	LogLevel    string          `mapstructure:"log_level"`
	LogDir      string          `mapstructure:"log_dir"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env     string `mapstructure:"env"`
	Debug   bool   `mapstructure:"debug"`
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
}

// DatabaseConfig 資料庫設定
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // postgres | sqlite
	DSN      string `mapstructure:"dsn"`    // 若設定則優先使用
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	LogSQL   bool   `mapstructure:"log_sql"`
}

// RedisConfig Redis 連線設定
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig 緩存配置
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Backend         string        `mapstructure:"backend"` // memory | redis
	MaxSize         int           `mapstructure:"max_size"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// KnowledgeConfig 知識庫來源
type KnowledgeConfig struct {
	SeedSource  string        `mapstructure:"seed_source"` // 空值使用內建種子
	SeedTimeout time.Duration `mapstructure:"seed_timeout"`
}

// SelectionConfig 選餐時段設定
type SelectionConfig struct {
	Timezone   string `mapstructure:"timezone"`
	Weekday    int    `mapstructure:"weekday"` // Sunday=0
	CutoffHour int    `mapstructure:"cutoff_hour"`
}

// SchedulerConfig 自動指派排程設定
type SchedulerConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	QueueSize  int           `mapstructure:"queue_size"`
	LeaderLock bool          `mapstructure:"leader_lock"`
	LockTTL    time.Duration `mapstructure:"lock_ttl"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// LoadConfig 載入設定，.env 由呼叫端以 godotenv 預先載入
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// 設定環境變數前綴
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 綁定常用環境變量
	bindings := map[string]string{
		"database.driver":       "DB_DRIVER",
		"database.dsn":          "DB_DSN",
		"database.host":         "DB_HOST",
		"database.port":         "DB_PORT",
		"database.user":         "DB_USER",
		"database.password":     "DB_PASSWORD",
		"database.name":         "DB_NAME",
		"database.sslmode":      "DB_SSLMODE",
		"redis.addr":            "REDIS_ADDR",
		"redis.password":        "REDIS_PASSWORD",
		"cache.enabled":         "CACHE_ENABLED",
		"cache.backend":         "CACHE_BACKEND",
		"knowledge.seed_source": "KB_SEED_SOURCE",
		"selection.timezone":    "SELECTION_TIMEZONE",
		"scheduler.enabled":     "SCHEDULER_ENABLED",
		"rate_limit.enabled":    "RATE_LIMIT_ENABLED",
		"rate_limit.requests":   "RATE_LIMIT_REQUESTS",
		"rate_limit.window":     "RATE_LIMIT_WINDOW",
		"dedup_window":          "DEDUP_WINDOW",
		"log_level":             "LOG_LEVEL",
		"log_dir":               "LOG_DIR",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	// 設定檔可選
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// setDefaults 設定預設值
func setDefaults(v *viper.Viper) {
	// 應用程式設定
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", true)
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.name", "school-meal-engine")

	// 伺服器設定
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.max_body_bytes", 1<<20)

	// 資料庫設定
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "school_meal")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.log_sql", false)

	// Redis 設定
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	// 快取設定
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.max_size", 1000)
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.cleanup_interval", "10m")

	// 知識庫設定
	v.SetDefault("knowledge.seed_source", "")
	v.SetDefault("knowledge.seed_timeout", "15s")

	// 選餐時段：週五 17:00 截止
	v.SetDefault("selection.timezone", "Asia/Jakarta")
	v.SetDefault("selection.weekday", 5)
	v.SetDefault("selection.cutoff_hour", 17)

	// 排程設定
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.queue_size", 4)
	v.SetDefault("scheduler.leader_lock", false)
	v.SetDefault("scheduler.lock_ttl", "10m")

	// 限流設定
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", "1m")

	v.SetDefault("dedup_window", "1s")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_dir", "logs")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}

	switch config.Database.Driver {
	case "postgres":
	case "sqlite":
		if config.Database.DSN == "" && config.Database.Name == "" {
			return fmt.Errorf("sqlite requires database dsn or name")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", config.Database.Driver)
	}

	if config.Cache.Enabled {
		if config.Cache.Backend != "memory" && config.Cache.Backend != "redis" {
			return fmt.Errorf("unsupported cache backend %q", config.Cache.Backend)
		}
		if config.Cache.MaxSize <= 0 {
			return fmt.Errorf("invalid cache max size")
		}
		if config.Cache.TTL <= 0 {
			return fmt.Errorf("invalid cache ttl")
		}
		if config.Cache.CleanupInterval <= 0 {
			return fmt.Errorf("invalid cache cleanup interval")
		}
	}

	if _, err := time.LoadLocation(config.Selection.Timezone); err != nil {
		return fmt.Errorf("invalid selection timezone %q: %w", config.Selection.Timezone, err)
	}
	if config.Selection.Weekday < 0 || config.Selection.Weekday > 6 {
		return fmt.Errorf("invalid selection weekday %d", config.Selection.Weekday)
	}
	if config.Selection.CutoffHour < 0 || config.Selection.CutoffHour > 23 {
		return fmt.Errorf("invalid selection cutoff hour %d", config.Selection.CutoffHour)
	}

	if config.Scheduler.QueueSize <= 0 {
		return fmt.Errorf("invalid scheduler queue size")
	}
	if config.Scheduler.LeaderLock && config.Scheduler.LockTTL <= 0 {
		return fmt.Errorf("invalid scheduler lock ttl")
	}

	return nil
}

// DatabaseDSN 組合資料庫連線字串
func (c DatabaseConfig) DatabaseDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	if c.Driver == "sqlite" {
		return c.Name
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode)
}
