package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the service settings, read from the environment and an
// optional .env file.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBHost      string `mapstructure:"DB_HOST"`
	DBPort      string `mapstructure:"DB_PORT"`
	DBUser      string `mapstructure:"DB_USER"`
	DBPassword  string `mapstructure:"DB_PASSWORD"`
	DBName      string `mapstructure:"DB_NAME"`
	DBSSLMode   string `mapstructure:"DB_SSLMODE"`

	DBMaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetime time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME"`

	PageMaxSize int `mapstructure:"PAGE_MAX_SIZE"`

	RedisURL          string        `mapstructure:"REDIS_URL"`
	RedisKeyPrefix    string        `mapstructure:"REDIS_KEY_PREFIX"`
	DashboardCacheTTL time.Duration `mapstructure:"DASHBOARD_CACHE_TTL"`

	RabbitMQURL    string `mapstructure:"RABBITMQ_URL"`
	EventsExchange string `mapstructure:"EVENTS_EXCHANGE"`

	LogLevel string `mapstructure:"LOG_LEVEL"`
}

var keys = []string{
	"SERVER_PORT",
	"DATABASE_URL", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
	"DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME",
	"PAGE_MAX_SIZE",
	"REDIS_URL", "REDIS_KEY_PREFIX", "DASHBOARD_CACHE_TTL",
	"RABBITMQ_URL", "EVENTS_EXCHANGE",
	"LOG_LEVEL",
}

// Load reads configuration. A .env file in dir is loaded first when present;
// variables already set in the environment win over the file.
func Load(dir string) (*Config, error) {
	envFile := filepath.Join(dir, ".env")
	if err := godotenv.Load(envFile); err == nil {
		slog.Debug("loaded env file", "path", envFile)
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "ledger")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 25)
	v.SetDefault("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	v.SetDefault("PAGE_MAX_SIZE", 100)
	v.SetDefault("REDIS_KEY_PREFIX", "ledger")
	v.SetDefault("DASHBOARD_CACHE_TTL", 30*time.Second)
	v.SetDefault("EVENTS_EXCHANGE", "ledger.events")
	v.SetDefault("LOG_LEVEL", "info")

	// Unmarshal only sees keys viper knows about.
	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.RedisURL = strings.TrimSpace(cfg.RedisURL)
	cfg.RabbitMQURL = strings.TrimSpace(cfg.RabbitMQURL)
	cfg.RedisKeyPrefix = strings.TrimSuffix(strings.TrimSpace(cfg.RedisKeyPrefix), ":")
	if cfg.RedisKeyPrefix == "" {
		cfg.RedisKeyPrefix = "ledger"
	}
	if cfg.PageMaxSize < 0 {
		cfg.PageMaxSize = 0
	}

	return &cfg, nil
}

// GetDBConnectionString returns DATABASE_URL when set, otherwise a
// key/value DSN built from the individual DB_* settings.
func (c *Config) GetDBConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	sslMode := c.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, sslMode)
}

// RedactedDBTarget is safe to log.
func (c *Config) RedactedDBTarget() string {
	if c.DatabaseURL != "" {
		u, err := url.Parse(c.DatabaseURL)
		if err != nil {
			return "<unparseable DATABASE_URL>"
		}
		return u.Redacted()
	}
	return fmt.Sprintf("%s:%s/%s", c.DBHost, c.DBPort, c.DBName)
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
