package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devJWTSecret = "dev-only-jwt-secret"

type Config struct {
	AppEnv   string
	LogLevel string

	HTTPPort int
	GRPCPort int

	DBDriver string
	DBDSN    string

	RedisAddr    string
	CacheBackend string
	LockBackend  string

	JWTSecret string
	JWTTTL    time.Duration

	RequestTimeout time.Duration
	EventWorkers   int
	EventQueueSize int
	CORSOrigins    []string
}

// Load reads the environment, seeded from a .env file when one exists.
// Variables already set in the process win over the file.
func Load(envFiles ...string) Config {
	_ = godotenv.Load(envFiles...)

	cfg := Config{
		AppEnv:   getEnv("APP_ENV", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		HTTPPort: getEnvInt("HTTP_PORT", 8080),
		GRPCPort: getEnvInt("GRPC_PORT", 50051),

		DBDriver: strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBDSN:    os.Getenv("DB_DSN"),

		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		CacheBackend: strings.ToLower(getEnv("CACHE_BACKEND", "memory")),
		LockBackend:  strings.ToLower(getEnv("LOCK_BACKEND", "local")),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTTTL:    getEnvDuration("JWT_TTL", 240*time.Hour),

		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		EventWorkers:   getEnvInt("EVENT_WORKERS", 4),
		EventQueueSize: getEnvInt("EVENT_QUEUE_SIZE", 10000),
		CORSOrigins:    getEnvList("CORS_ORIGINS"),
	}

	if cfg.DBDSN == "" {
		cfg.DBDSN = defaultDSN(cfg.DBDriver)
	}
	if cfg.JWTSecret == "" && cfg.AppEnv == "dev" {
		cfg.JWTSecret = devJWTSecret
	}
	return cfg
}

func (c Config) Validate() error {
	var errs []error
	if c.DBDriver != "mysql" && c.DBDriver != "sqlite" {
		errs = append(errs, fmt.Errorf("DB_DRIVER must be mysql or sqlite, got %q", c.DBDriver))
	}
	if c.CacheBackend != "memory" && c.CacheBackend != "redis" {
		errs = append(errs, fmt.Errorf("CACHE_BACKEND must be memory or redis, got %q", c.CacheBackend))
	}
	if c.LockBackend != "local" && c.LockBackend != "redis" {
		errs = append(errs, fmt.Errorf("LOCK_BACKEND must be local or redis, got %q", c.LockBackend))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required outside dev"))
	}
	if c.EventWorkers < 1 {
		errs = append(errs, errors.New("EVENT_WORKERS must be at least 1"))
	}
	if c.EventQueueSize < 0 {
		errs = append(errs, errors.New("EVENT_QUEUE_SIZE must not be negative"))
	}
	return errors.Join(errs...)
}

// NeedsRedis reports whether a Redis connection is required. Outside dev the
// order event stream always lives in Redis.
func (c Config) NeedsRedis() bool {
	return c.CacheBackend == "redis" || c.LockBackend == "redis" || c.AppEnv != "dev"
}

func defaultDSN(driver string) string {
	if driver == "mysql" {
		return "root:root@tcp(localhost:3306)/shopcart"
	}
	return "shopcart.db"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
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

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
