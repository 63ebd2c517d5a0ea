package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverCookie   = "cookie"
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

type Config struct {
	ListenAddr string
	LogLevel   string

	BackendURL     string
	BackendTimeout time.Duration

	SessionKey   []byte
	CookieSecure bool

	StorageDriver string
	DatabaseURL   string
	SQLitePath    string
	RedisURL      string
	StorageTTL    time.Duration

	KafkaBrokers []string

	SessionLoadWait time.Duration
	FlashTTL        time.Duration
}

func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		slog.Info("notice: .env file not found, using system environment", "error", err)
	}

	cfg := &Config{
		ListenAddr: EnvDefault("LISTEN_ADDR", ":8080"),
		LogLevel:   EnvDefault("LOG_LEVEL", "info"),

		BackendURL:     strings.TrimRight(EnvDefault("BACKEND_URL", "http://localhost:8081/api"), "/"),
		BackendTimeout: EnvDurationDefault("BACKEND_TIMEOUT", 0),

		CookieSecure: EnvDefault("COOKIE_SECURE", "false") == "true",

		StorageDriver: strings.ToLower(EnvDefault("STORAGE_DRIVER", DriverCookie)),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		SQLitePath:    EnvDefault("SQLITE_PATH", "agromarket.db"),
		RedisURL:      os.Getenv("REDIS_URL"),
		StorageTTL:    EnvDurationDefault("STORAGE_TTL", 720*time.Hour),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),

		SessionLoadWait: EnvDurationDefault("SESSION_LOAD_WAIT", 3*time.Second),
		FlashTTL:        EnvDurationDefault("FLASH_TTL", 3*time.Second),
	}

	cfg.SessionKey = sessionKey(os.Getenv("SESSION_KEY"))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case DriverCookie, DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required for storage driver %q", c.StorageDriver)
		}
	case DriverRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("config: REDIS_URL is required for storage driver %q", c.StorageDriver)
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.StorageDriver)
	}
	if c.BackendURL == "" {
		return fmt.Errorf("config: BACKEND_URL is empty")
	}
	if c.BackendTimeout < 0 {
		return fmt.Errorf("config: BACKEND_TIMEOUT must not be negative")
	}
	return nil
}

func sessionKey(raw string) []byte {
	if raw == "" {
		slog.Warn("SESSION_KEY not set, generating a random key; sessions will not survive a restart")
		return randomBytes(32)
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(key) < 32 {
		slog.Warn("SESSION_KEY is invalid or shorter than 32 bytes, generating a random key")
		return randomBytes(32)
	}
	return key
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("config: read random bytes: %v", err))
	}
	return b
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if os.Getenv(key) != "" {
		return os.Getenv(key)
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
