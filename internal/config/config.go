// Package config loads application configuration from file and environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Log       LogConfig       `koanf:"log"`
	CORS      CORSConfig      `koanf:"cors"`
	Reminders RemindersConfig `koanf:"reminders"`
	Worker    WorkerConfig    `koanf:"worker"`
	Retry     RetryConfig     `koanf:"retry"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Channels  ChannelsConfig  `koanf:"channels"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
}

// DatabaseConfig contains PostgreSQL settings.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MigrateURL      string        `koanf:"migrate_url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// CORSConfig contains CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// RemindersConfig controls the reminder cadence.
type RemindersConfig struct {
	Interval time.Duration `koanf:"interval"`
	MinLead  time.Duration `koanf:"min_lead"`
}

// WorkerConfig contains dispatch worker settings.
type WorkerConfig struct {
	Enabled      bool          `koanf:"enabled"`
	BatchSize    int           `koanf:"batch_size"`
	PollInterval time.Duration `koanf:"poll_interval"`
	Concurrency  int           `koanf:"concurrency"`
}

// RetryConfig contains retry policy settings.
type RetryConfig struct {
	MaxAttempts int           `koanf:"max_attempts"`
	BaseDelay   time.Duration `koanf:"base_delay"`
	MaxBackoff  time.Duration `koanf:"max_backoff"`
}

// RateLimitConfig contains per-channel send spacing.
type RateLimitConfig struct {
	MinInterval time.Duration `koanf:"min_interval"`
}

// ChannelsConfig contains per-transport adapter settings.
type ChannelsConfig struct {
	Email    EmailConfig    `koanf:"email"`
	SMS      SMSConfig      `koanf:"sms"`
	WhatsApp WhatsAppConfig `koanf:"whatsapp"`
	Push     PushConfig     `koanf:"push"`
}

// EmailConfig contains SMTP settings.
type EmailConfig struct {
	Enabled      bool   `koanf:"enabled"`
	SMTPHost     string `koanf:"smtp_host"`
	SMTPPort     int    `koanf:"smtp_port"`
	SMTPUser     string `koanf:"smtp_user"`
	SMTPPassword string `koanf:"smtp_password"`
	FromAddress  string `koanf:"from_address"`
}

// SMSConfig contains SMS provider API settings.
type SMSConfig struct {
	Enabled    bool          `koanf:"enabled"`
	APIURL     string        `koanf:"api_url"`
	APIKey     string        `koanf:"api_key"`
	FromNumber string        `koanf:"from_number"`
	Timeout    time.Duration `koanf:"timeout"`
}

// WhatsAppConfig contains WhatsApp Business API settings.
type WhatsAppConfig struct {
	Enabled       bool          `koanf:"enabled"`
	APIURL        string        `koanf:"api_url"`
	AccessToken   string        `koanf:"access_token"`
	PhoneNumberID string        `koanf:"phone_number_id"`
	Timeout       time.Duration `koanf:"timeout"`
}

// PushConfig contains push provider settings.
type PushConfig struct {
	Enabled   bool   `koanf:"enabled"`
	ServerKey string `koanf:"server_key"`
}

const envPrefix = "BOOKLINE_"

// Load reads configuration from defaults, an optional YAML file and
// environment variables, in increasing precedence.
// Environment variables use the BOOKLINE_ prefix with double underscores
// as section separators, e.g. BOOKLINE_DATABASE__URL.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Database.MigrateURL == "" {
		cfg.Database.MigrateURL = migrateURL(cfg.Database.URL)
	}

	return &cfg, nil
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"server.host":                "0.0.0.0",
		"server.port":                "8080",
		"server.metrics_port":        "9090",
		"server.read_timeout":        "15s",
		"server.read_header_timeout": "5s",
		"server.write_timeout":       "15s",
		"server.idle_timeout":        "60s",

		"database.max_open_conns":    25,
		"database.max_idle_conns":    5,
		"database.conn_max_lifetime": "30m",
		"database.connect_timeout":   "30s",
		"database.connect_attempts":  5,

		"log.level":  "info",
		"log.format": "json",

		"cors.allowed_origins": []string{"*"},

		"reminders.interval": "2h",
		"reminders.min_lead": "2h",

		"worker.enabled":       true,
		"worker.batch_size":    50,
		"worker.poll_interval": "5s",
		"worker.concurrency":   4,

		"retry.max_attempts": 3,
		"retry.base_delay":   "1s",
		"retry.max_backoff":  "5m",

		"rate_limit.min_interval": "100ms",

		"channels.email.smtp_port":  587,
		"channels.sms.timeout":      "10s",
		"channels.whatsapp.timeout": "10s",
	}
}

// migrateURL rewrites a pgx pool URL into the scheme golang-migrate expects.
func migrateURL(url string) string {
	if strings.HasPrefix(url, "postgres://") {
		return "pgx5://" + strings.TrimPrefix(url, "postgres://")
	}
	if strings.HasPrefix(url, "postgresql://") {
		return "pgx5://" + strings.TrimPrefix(url, "postgresql://")
	}
	return url
}
