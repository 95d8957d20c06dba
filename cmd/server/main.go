package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/rl1809/shop-cart/internal/adapter/auth"
	"github.com/rl1809/shop-cart/internal/adapter/handler"
	"github.com/rl1809/shop-cart/internal/adapter/storage"
	"github.com/rl1809/shop-cart/internal/core/service"
	"github.com/rl1809/shop-cart/internal/port"
	"github.com/rl1809/shop-cart/pkg/config"
	"github.com/rl1809/shop-cart/pkg/logger"
)

const itemCacheSize = 1024

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{Service: "shop-cart", Env: cfg.AppEnv, Level: cfg.LogLevel})

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := storage.OpenDB(ctx, storage.Dialect(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("failed to open database")
	}
	if err := storage.Migrate(ctx, db, storage.Dialect(cfg.DBDriver)); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}
	log.Info().Str("driver", cfg.DBDriver).Msg("connected to database")

	// Initialize Redis when any backend needs it
	var rdb *redis.Client
	if cfg.NeedsRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 100,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to connect redis")
		}
		log.Info().Str("addr", cfg.RedisAddr).Msg("connected to redis")
	}

	// Initialize adapters
	sqlAdapter := storage.NewSQLAdapter(db)
	cache, locker, publisher, err := buildBackends(cfg, rdb, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build backends")
	}

	tokens, err := auth.NewJWTService([]byte(cfg.JWTSecret), cfg.JWTTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create token service")
	}

	// Initialize services
	catalog := service.NewCatalogService(sqlAdapter, cache, log)
	users := service.NewUserService(sqlAdapter, bcrypt.DefaultCost, log)
	carts := service.NewCartService(sqlAdapter, sqlAdapter, catalog, locker, log)
	orders := service.NewOrderService(sqlAdapter, sqlAdapter, sqlAdapter, locker, cfg.EventQueueSize, log)

	// Start event workers
	var wg sync.WaitGroup
	for i := 0; i < cfg.EventWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			service.RunEventWorker(id, orders.GetEventQueue(), publisher, log)
		}(i)
	}
	log.Info().Int("workers", cfg.EventWorkers).Msg("started event workers")

	// Start gRPC server
	grpcHandler := handler.NewGRPCHandler(log)
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		log.Fatal().Err(err).Int("port", cfg.GRPCPort).Msg("failed to listen")
	}

	go func() {
		log.Info().Int("port", cfg.GRPCPort).Msg("gRPC server listening")
		if err := grpcHandler.Serve(lis); err != nil {
			log.Error().Err(err).Msg("gRPC server error")
		}
	}()

	// Start HTTP server
	httpHandler := handler.NewHTTPHandler(handler.Services{
		Users:   users,
		Catalog: catalog,
		Carts:   carts,
		Orders:  orders,
	}, tokens, log)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           httpHandler.Routes(handler.RouterOptions{CORSOrigins: cfg.CORSOrigins, RequestTimeout: cfg.RequestTimeout}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down...")
	grpcHandler.SetServing(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown")
	}
	log.Info().Msg("HTTP server stopped")

	grpcHandler.GracefulStop()
	log.Info().Msg("gRPC server stopped")

	// Close event queue and wait for workers
	orders.Close()
	wg.Wait()
	log.Info().Msg("event workers stopped")

	if rdb != nil {
		rdb.Close()
	}
	db.Close()
	log.Info().Msg("connections closed")
}

func buildBackends(cfg config.Config, rdb *redis.Client, log zerolog.Logger) (port.ItemCache, port.Locker, port.EventPublisher, error) {
	var redisAdapter *storage.RedisAdapter
	if rdb != nil {
		redisAdapter = storage.NewRedisAdapter(rdb)
	}

	var cache port.ItemCache
	if cfg.CacheBackend == "redis" {
		cache = redisAdapter
	} else {
		lruCache, err := storage.NewLRUItemCache(itemCacheSize)
		if err != nil {
			return nil, nil, nil, err
		}
		cache = lruCache
	}

	var locker port.Locker = storage.NewLocalLocker()
	if cfg.LockBackend == "redis" {
		locker = redisAdapter
	}

	var publisher port.EventPublisher = storage.NewLogPublisher(log)
	if redisAdapter != nil {
		publisher = redisAdapter
	}

	return cache, locker, publisher, nil
}
