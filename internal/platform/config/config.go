package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration so main stays lean.
type Server struct {
	Addr string

	// Audit chain settings.
	AuditLogPath    string
	AuditHMACSecret string

	// Session token signing. Access and refresh tokens are signed with
	// separate secrets so leaking one does not compromise the other.
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration

	Redis    RedisConfig
	Postgres PostgresConfig

	LogLevel  string
	LogFormat string
}

// RedisConfig holds connection settings for the shared Redis instance used by
// the key store and the refresh-token family store. Empty URL disables Redis
// and the in-memory implementations are used instead.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig holds the DSN for durable consent and audit-archive storage.
// Empty URL keeps those stores in memory.
type PostgresConfig struct {
	URL string
}

// FromEnv builds a Server config from environment variables with development
// defaults. Secrets default to throwaway values and must be overridden in
// production.
func FromEnv() Server {
	return Server{
		Addr:               getEnv("CARETRUST_ADDR", ":8080"),
		AuditLogPath:       getEnv("CARETRUST_AUDIT_LOG", "data/audit.log"),
		AuditHMACSecret:    getEnv("CARETRUST_AUDIT_SECRET", "dev-audit-secret-change-in-production"),
		AccessTokenSecret:  getEnv("CARETRUST_ACCESS_SECRET", "dev-access-secret-change-in-production"),
		RefreshTokenSecret: getEnv("CARETRUST_REFRESH_SECRET", "dev-refresh-secret-change-in-production"),
		AccessTokenTTL:     getDuration("CARETRUST_ACCESS_TTL", 15*time.Minute),
		RefreshTokenTTL:    getDuration("CARETRUST_REFRESH_TTL", 30*24*time.Hour),
		Redis: RedisConfig{
			URL:          os.Getenv("CARETRUST_REDIS_URL"),
			PoolSize:     getInt("CARETRUST_REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("CARETRUST_REDIS_MIN_IDLE", 2),
			DialTimeout:  getDuration("CARETRUST_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("CARETRUST_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("CARETRUST_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			URL: os.Getenv("CARETRUST_POSTGRES_URL"),
		},
		LogLevel:  getEnv("CARETRUST_LOG_LEVEL", "info"),
		LogFormat: getEnv("CARETRUST_LOG_FORMAT", "json"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
