// Package config loads runtime settings for the LoveTree service.
//
// Values come from the process environment (a .env file is loaded first by
// godotenv/autoload in cmd/lovetree), with an optional JSON file overlay.
package config

import (
	"fmt"
	"time"

	"github.com/jinzhu/configor"
)

// Config is the root configuration object.
type Config struct {
	App     AppConfig
	DB      DBConfig
	Auth    AuthConfig
	Redis   RedisConfig
	Storage StorageConfig
	Admin   AdminConfig
	Limits  LimitConfig
}

type AppConfig struct {
	Name     string `default:"lovetree"`
	Env      string `default:"development" env:"APP_ENV"`
	Port     int    `default:"8080" env:"PORT"`
	LogLevel string `default:"info" env:"LOG_LEVEL"`
	// BaseURL is used to build OAuth redirect URLs.
	BaseURL string `default:"http://localhost:8080" env:"BASE_URL"`
}

type DBConfig struct {
	Host     string `default:"localhost" env:"PG_HOST"`
	Port     uint   `default:"5432" env:"PG_PORT"`
	User     string `default:"postgres" env:"POSTGRES_USER"`
	Password string `default:"postgres" env:"POSTGRES_PASSWORD"`
	Database string `default:"lovetree" env:"PG_DATABASE"`
	SSLMode  string `default:"disable" env:"PG_SSLMODE"`
	// URL overrides the discrete fields when set.
	URL string `env:"DATABASE_URL"`
}

// DSN returns a postgres:// connection string usable by both pgxpool and
// the pgx database/sql driver.
func (c DBConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

type AuthConfig struct {
	// TokenSecret seeds the ed25519 signing key. When empty a fresh key pair is
	// generated at startup and sessions do not survive a restart.
	TokenSecret string `env:"TOKEN_SECRET"`
	// TokenExpire is a Go duration, or "never"/"0" for non-expiring tokens.
	TokenExpire        string `default:"720h" env:"TOKEN_EXPIRE_TIME"`
	CookieSecure       bool   `default:"false" env:"COOKIE_SECURE"`
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
}

// TokenTTL parses TokenExpire. A zero duration means tokens never expire.
func (c AuthConfig) TokenTTL() (time.Duration, error) {
	switch c.TokenExpire {
	case "", "0", "never":
		return 0, nil
	}
	d, err := time.ParseDuration(c.TokenExpire)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token expire time: %w", err)
	}
	return d, nil
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c AuthConfig) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

type RedisConfig struct {
	// Addr is optional; without it chat fan-out and presence stay in-process.
	Addr    string `env:"REDIS_ADDR"`
	DB      int    `default:"0" env:"REDIS_DB"`
	Channel string `default:"lovetree_chat" env:"REDIS_CHAT_CHANNEL"`
}

type StorageConfig struct {
	// Driver is "local" or "s3".
	Driver       string `default:"local" env:"STORAGE_DRIVER"`
	LocalDir     string `default:"public/uploads/images" env:"UPLOAD_DIR"`
	PublicPrefix string `default:"/uploads/images" env:"UPLOAD_PUBLIC_PREFIX"`
	MaxBytes     int64  `default:"1048576" env:"UPLOAD_MAX_BYTES"`

	S3Bucket       string `env:"S3_BUCKET"`
	S3Region       string `default:"us-east-1" env:"S3_REGION"`
	S3Endpoint     string `env:"S3_ENDPOINT"`
	S3AccessKey    string `env:"S3_ACCESS_KEY"`
	S3SecretKey    string `env:"S3_SECRET_KEY"`
	S3PublicURL    string `env:"S3_PUBLIC_URL"`
	S3UsePathStyle bool   `env:"S3_USE_PATH_STYLE"`
}

type AdminConfig struct {
	Email    string `env:"ADMIN_EMAIL"`
	Password string `env:"ADMIN_PASSWORD"`
	Name     string `default:"Admin" env:"ADMIN_NAME"`
}

type LimitConfig struct {
	RequestsPerSecond int `default:"20" env:"RATE_LIMIT_RPS"`
	Burst             int `default:"40" env:"RATE_LIMIT_BURST"`
}

// Load reads configuration from the environment and, if present, the given
// JSON/YAML files (later files win, environment wins over files).
func Load(files ...string) (*Config, error) {
	cfg := &Config{}
	if err := configor.New(&configor.Config{ENVPrefix: "-"}).Load(cfg, files...); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if _, err := cfg.Auth.TokenTTL(); err != nil {
		return nil, err
	}
	switch cfg.Storage.Driver {
	case "local", "s3":
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	return cfg, nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}
