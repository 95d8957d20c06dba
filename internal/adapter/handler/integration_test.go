package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/rl1809/shop-cart/internal/adapter/auth"
	"github.com/rl1809/shop-cart/internal/adapter/storage"
	"github.com/rl1809/shop-cart/internal/core/domain"
	"github.com/rl1809/shop-cart/internal/core/service"
)

// newRedisBackedServer wires the Redis adapter as item cache, cart lock and
// event publisher, the way cmd/server does with every backend set to redis.
func newRedisBackedServer(t *testing.T) (*testServer, *redis.Client, func()) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	db, err := storage.OpenDB(ctx, storage.DialectSQLite, filepath.Join(t.TempDir(), "shop.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.Migrate(ctx, db, storage.DialectSQLite))

	repo := storage.NewSQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)
	tokens, err := auth.NewJWTService([]byte("integration-secret"), time.Hour)
	require.NoError(t, err)
	log := zerolog.Nop()

	catalog := service.NewCatalogService(repo, redisAdapter, log)
	orders := service.NewOrderService(repo, repo, repo, redisAdapter, 100, log)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			service.RunEventWorker(id, orders.GetEventQueue(), redisAdapter, log)
		}(i)
	}

	h := NewHTTPHandler(Services{
		Users:   service.NewUserService(repo, bcrypt.MinCost, log),
		Catalog: catalog,
		Carts:   service.NewCartService(repo, repo, catalog, redisAdapter, log),
		Orders:  orders,
	}, tokens, log)

	srv := httptest.NewServer(h.Routes(RouterOptions{RequestTimeout: 10 * time.Second}))
	t.Cleanup(srv.Close)

	drain := func() {
		orders.Close()
		wg.Wait()
	}
	t.Cleanup(drain)

	return &testServer{t: t, srv: srv}, rdb, drain
}

func TestIntegration_RedisBackedCheckout(t *testing.T) {
	s, rdb, drain := newRedisBackedServer(t)
	ctx := context.Background()

	const users = 5
	const addsPerUser = 4

	tokens := make([]string, users)
	for i := range tokens {
		tokens[i] = s.signup(fmt.Sprintf("user-%d", i), "testpassw")
	}

	var g errgroup.Group
	for i := 0; i < users; i++ {
		username, token := fmt.Sprintf("user-%d", i), tokens[i]
		for j := 0; j < addsPerUser; j++ {
			g.Go(func() error {
				resp, _ := s.do(http.MethodPost, "/api/cart/addToCart", token, ModifyCartRequest{Username: username, ItemID: 2, Quantity: 1})
				if resp.StatusCode != http.StatusOK {
					return fmt.Errorf("add to cart for %s: status %d", username, resp.StatusCode)
				}
				return nil
			})
		}
	}
	require.NoError(t, g.Wait())

	// item 2 was read through the Redis cache
	exists, err := rdb.Exists(ctx, "item:2").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)

	for i := 0; i < users; i++ {
		resp, body := s.do(http.MethodPost, fmt.Sprintf("/api/order/submit/user-%d", i), tokens[i], nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		order := decode[domain.UserOrder](t, body)
		assert.Len(t, order.Items, addsPerUser)
		assert.Equal(t, "7.96", order.Total.String())
	}

	drain()

	entries, err := rdb.XRange(ctx, "orders:placed", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, users)

	seen := make(map[string]bool)
	for _, e := range entries {
		seen[e.Values["username"].(string)] = true
		assert.Equal(t, "7.96", e.Values["total"])
	}
	assert.Len(t, seen, users)

	// no cart lock is left behind
	keys, err := rdb.Keys(ctx, "lock:*").Result()
	require.NoError(t, err)
	assert.Empty(t, keys)
}
