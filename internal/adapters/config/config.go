package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"shrinkbot/pkg/errors"
)

type Config struct {
	App           AppConfig
	Telegram      TelegramConfig
	Session       SessionConfig
	Redis         RedisConfig
	Compression   CompressionConfig
	Dispatch      DispatchConfig
	HTTP          HTTPConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"shrinkbot"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

type TelegramConfig struct {
	BotToken      string        `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	WebhookURL    string        `envconfig:"TELEGRAM_WEBHOOK_URL"`
	WebhookSecret string        `envconfig:"TELEGRAM_WEBHOOK_SECRET"`
	Debug         bool          `envconfig:"TELEGRAM_DEBUG" default:"false"`
	HTTPTimeout   time.Duration `envconfig:"TELEGRAM_HTTP_TIMEOUT" default:"75s"`
	RateLimit     int           `envconfig:"TELEGRAM_RATE_LIMIT" default:"20"`
	RateBurst     int           `envconfig:"TELEGRAM_RATE_BURST" default:"30"`
}

// WebhookMode reports whether updates arrive over HTTP instead of long polling
func (c TelegramConfig) WebhookMode() bool {
	return c.WebhookURL != ""
}

const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

type SessionConfig struct {
	Store           string        `envconfig:"SESSION_STORE" default:"memory"`
	TTL             time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	JanitorInterval time.Duration `envconfig:"SESSION_JANITOR_INTERVAL" default:"10m"`
	LockTTL         time.Duration `envconfig:"SESSION_LOCK_TTL" default:"5m"`
	LockWait        time.Duration `envconfig:"SESSION_LOCK_WAIT" default:"2m"`
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type CompressionConfig struct {
	QualityStep    int    `envconfig:"COMPRESSION_QUALITY_STEP" default:"5"`
	MinQuality     int    `envconfig:"COMPRESSION_MIN_QUALITY" default:"5"`
	TempDir        string `envconfig:"COMPRESSION_TEMP_DIR"`
	MaxSourceBytes int64  `envconfig:"COMPRESSION_MAX_SOURCE_BYTES" default:"20971520"`
}

type DispatchConfig struct {
	QueueSize int `envconfig:"DISPATCH_QUEUE_SIZE" default:"32"`
}

type HTTPConfig struct {
	Port int `envconfig:"HTTP_PORT" default:"8080"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express
func (c *Config) Validate() error {
	switch c.Session.Store {
	case SessionStoreMemory, SessionStoreRedis:
	default:
		return errors.Wrapf(errors.ErrInvalidInput, "SESSION_STORE must be %q or %q, got %q",
			SessionStoreMemory, SessionStoreRedis, c.Session.Store)
	}

	if c.Compression.QualityStep <= 0 {
		return errors.Wrapf(errors.ErrInvalidInput, "COMPRESSION_QUALITY_STEP must be positive, got %d", c.Compression.QualityStep)
	}
	if c.Compression.MinQuality < 1 {
		return errors.Wrapf(errors.ErrInvalidInput, "COMPRESSION_MIN_QUALITY must be at least 1, got %d", c.Compression.MinQuality)
	}
	if c.Session.TTL <= 0 {
		return errors.Wrapf(errors.ErrInvalidInput, "SESSION_TTL must be positive, got %s", c.Session.TTL)
	}
	if c.Session.Store == SessionStoreRedis && c.Session.LockTTL > 0 && c.Session.LockTTL <= c.Session.LockWait {
		return errors.Wrapf(errors.ErrInvalidInput, "SESSION_LOCK_TTL (%s) must exceed SESSION_LOCK_WAIT (%s)",
			c.Session.LockTTL, c.Session.LockWait)
	}

	return nil
}
