package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	HTTPAddr       string
	MigrationsPath string

	// Hosted Postgres convenience:
	// - DATABASE_URL: runtime connection (often PgBouncer/pooler)
	// - DIRECT_URL: direct connection for migrations
	DatabaseURL string
	DirectURL   string

	DB DBConfig

	Auth AuthConfig

	Notify NotifyConfig

	Housekeeping HousekeepingConfig

	// CORSAllowedOrigins is a comma-separated allowlist of dashboard origins. Example:
	//   https://booking.campus.edu,http://localhost:5173
	CORSAllowedOrigins []string
}

type DBConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string

	// TxMaxRetries bounds how often a serializable transaction is re-run
	// after a serialization failure or deadlock.
	TxMaxRetries int
}

type AuthConfig struct {
	// TokenSecret verifies HS256 actor tokens issued by the identity provider.
	TokenSecret string
	// Audience, when set, must appear in the token's aud claim.
	Audience string
}

type NotifyConfig struct {
	// AMQPURL enables the RabbitMQ notifier when set.
	AMQPURL      string
	AMQPExchange string

	// RedisURL enables the per-user in-app inbox when set.
	RedisURL   string
	InboxLimit int
	InboxTTL   time.Duration
}

type HousekeepingConfig struct {
	// ProvisionalTTL is how long a provisional hold survives before cleanup cancels it.
	ProvisionalTTL time.Duration
}

func Load() Config {
	// Convenience for local dev: load variables from .env if present.
	// In production, rely on real environment variables.
	_ = godotenv.Load()

	// Cloud Run sets PORT. Prefer it when HTTP_ADDR isn't explicitly set.
	httpAddr := os.Getenv("HTTP_ADDR")
	if httpAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			httpAddr = ":" + port
		} else {
			httpAddr = ":8081"
		}
	}

	return Config{
		AppEnv:         env("APP_ENV", "dev"),
		HTTPAddr:       httpAddr,
		MigrationsPath: os.Getenv("MIGRATIONS_PATH"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DirectURL:      os.Getenv("DIRECT_URL"),
		DB: DBConfig{
			Host:         env("DB_HOST", "localhost"),
			Port:         env("DB_PORT", "5432"),
			Name:         env("DB_NAME", "venueflow"),
			User:         env("DB_USER", "venueflow"),
			Password:     env("DB_PASSWORD", "venueflow"),
			SSLMode:      env("DB_SSLMODE", "disable"),
			TxMaxRetries: envInt("TX_MAX_RETRIES", 5),
		},
		Auth: AuthConfig{
			TokenSecret: os.Getenv("AUTH_TOKEN_SECRET"),
			Audience:    os.Getenv("AUTH_AUDIENCE"),
		},
		Notify: NotifyConfig{
			AMQPURL:      os.Getenv("AMQP_URL"),
			AMQPExchange: env("AMQP_EXCHANGE", "notifications"),
			RedisURL:     os.Getenv("REDIS_URL"),
			InboxLimit:   envInt("INBOX_LIMIT", 200),
			InboxTTL:     envDuration("INBOX_TTL", 30*24*time.Hour),
		},
		Housekeeping: HousekeepingConfig{
			ProvisionalTTL: envDuration("PROVISIONAL_TTL", 24*time.Hour),
		},

		CORSAllowedOrigins: envList("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:4173"),
	}
}

func (c Config) IsProd() bool { return c.AppEnv == "prod" }

func env(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func envList(key, fallbackCSV string) []string {
	v := os.Getenv(key)
	if v == "" {
		v = fallbackCSV
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
