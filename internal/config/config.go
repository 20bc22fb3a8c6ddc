package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Tracing   TracingConfig `mapstructure:"tracing"`
	Redis     RedisConfig
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Session   SessionConfig   `mapstructure:"session"`
	Log       LogConfig       `mapstructure:"log"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"` // 强制执行数据库迁移
	MigrateOnly  bool `mapstructure:"-"` // 仅迁移模式（迁移后退出）
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Driver    string // mysql | sqlite | memory
	Path      string // sqlite 文件路径
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool `mapstructure:"parse_time"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	Host            string
	Port            int
	Password        string
	DB              int
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds"`
}

func (r RedisConfig) CacheTTL() time.Duration {
	if r.CacheTTLSeconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(r.CacheTTLSeconds) * time.Second
}

// LogConfig 日志输出；File 为空时只输出到控制台
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// SessionConfig 计时作答相关配置，可热更新
type SessionConfig struct {
	SweepIntervalSeconds int  `mapstructure:"sweep_interval_seconds"`
	GradeAsync           bool `mapstructure:"grade_async"`
	GradingWorkers       int  `mapstructure:"grading_workers"`
	RetryAttempts        int  `mapstructure:"retry_attempts"`
	RetryBaseDelayMs     int  `mapstructure:"retry_base_delay_ms"`
	RetryMaxDelayMs      int  `mapstructure:"retry_max_delay_ms"`
}

func (s SessionConfig) SweepInterval() time.Duration {
	if s.SweepIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.SweepIntervalSeconds) * time.Second
}

func (s SessionConfig) Workers() int {
	if s.GradingWorkers <= 0 {
		return 4
	}
	return s.GradingWorkers
}

func (s SessionConfig) RetryBaseDelay() time.Duration {
	return time.Duration(s.RetryBaseDelayMs) * time.Millisecond
}

func (s SessionConfig) RetryMaxDelay() time.Duration {
	return time.Duration(s.RetryMaxDelayMs) * time.Millisecond
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.path", "data/assessment.db")
	v.SetDefault("database.parse_time", true)
	v.SetDefault("redis.cache_ttl_seconds", 600)
	v.SetDefault("rate_limit.max_requests", 300)
	v.SetDefault("rate_limit.window_minutes", 1)
	v.SetDefault("log.file", "logs/assessment-engine.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("session.sweep_interval_seconds", 30)
	v.SetDefault("session.grading_workers", 4)
	v.SetDefault("session.retry_attempts", 3)
	v.SetDefault("session.retry_base_delay_ms", 100)
	v.SetDefault("session.retry_max_delay_ms", 2000)
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("ASSESSMENT")
	viper.AutomaticEnv()
	setDefaults(viper.GetViper())

	// Database
	viper.BindEnv("database.driver", "DATABASE_DRIVER")
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")

	// Redis
	viper.BindEnv("redis.enabled", "REDIS_ENABLED")
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")

	// Log
	viper.BindEnv("log.level", "LOG_LEVEL")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg, err := decode(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Reload 重新读取配置文件（供 configwatcher 在文件变化时调用）
func Reload() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}
	return decode(viper.GetViper())
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "sqlite", "memory":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Session.RetryAttempts < 1 {
		return fmt.Errorf("session.retry_attempts must be at least 1, got %d", c.Session.RetryAttempts)
	}
	if c.Session.RetryMaxDelayMs > 0 && c.Session.RetryMaxDelayMs < c.Session.RetryBaseDelayMs {
		return fmt.Errorf("session.retry_max_delay_ms (%d) is below retry_base_delay_ms (%d)",
			c.Session.RetryMaxDelayMs, c.Session.RetryBaseDelayMs)
	}
	return nil
}
