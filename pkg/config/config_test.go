package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"APP_ENV", "LOG_LEVEL", "HTTP_PORT", "GRPC_PORT", "DB_DRIVER", "DB_DSN",
	"REDIS_ADDR", "CACHE_BACKEND", "LOCK_BACKEND", "JWT_SECRET", "JWT_TTL",
	"REQUEST_TIMEOUT", "EVENT_WORKERS", "EVENT_QUEUE_SIZE", "CORS_ORIGINS",
}

func clearEnv(t *testing.T) {
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))

	assert.Equal(t, "dev", cfg.AppEnv)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 50051, cfg.GRPCPort)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "shopcart.db", cfg.DBDSN)
	assert.Equal(t, "memory", cfg.CacheBackend)
	assert.Equal(t, "local", cfg.LockBackend)
	assert.Equal(t, devJWTSecret, cfg.JWTSecret)
	assert.Equal(t, 240*time.Hour, cfg.JWTTTL)
	assert.Empty(t, cfg.CORSOrigins)
	assert.False(t, cfg.NeedsRedis())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DB_DRIVER", "MySQL")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_TTL", "1h")
	t.Setenv("EVENT_WORKERS", "8")
	t.Setenv("CORS_ORIGINS", "http://a.test, ,http://b.test")

	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, "root:root@tcp(localhost:3306)/shopcart", cfg.DBDSN)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, time.Hour, cfg.JWTTTL)
	assert.Equal(t, 8, cfg.EventWorkers)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.True(t, cfg.NeedsRedis())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_PORT", "eighty")
	t.Setenv("JWT_TTL", "forever")
	t.Setenv("REQUEST_TIMEOUT", "-5s")

	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 240*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
}

func TestLoad_DotEnvFile(t *testing.T) {
	clearEnv(t)
	for _, k := range []string{"LOG_LEVEL", "LOCK_BACKEND"} {
		os.Unsetenv(k)
	}
	t.Setenv("HTTP_PORT", "7000")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LOG_LEVEL=debug\nLOCK_BACKEND=redis\nHTTP_PORT=1234\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("LOCK_BACKEND")
	})

	cfg := Load(path)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "redis", cfg.LockBackend)
	assert.Equal(t, 7000, cfg.HTTPPort, "process env wins over the file")
}

func TestValidate(t *testing.T) {
	cfg := Config{
		DBDriver:       "postgres",
		CacheBackend:   "memcached",
		LockBackend:    "zookeeper",
		EventWorkers:   0,
		EventQueueSize: -1,
	}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"DB_DRIVER", "CACHE_BACKEND", "LOCK_BACKEND", "JWT_SECRET", "EVENT_WORKERS", "EVENT_QUEUE_SIZE"} {
		assert.Contains(t, err.Error(), want)
	}
}
