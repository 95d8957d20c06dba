package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/shop-cart/internal/core/domain"
	"github.com/rl1809/shop-cart/internal/port"
)

const (
	itemKeyPrefix     = "item:"
	lockKeyPrefix     = "lock:"
	orderPlacedStream = "orders:placed"
	itemBaseTTL       = 15 * time.Minute
	streamMaxLen      = 100000
)

var (
	ErrLockTimeout = errors.New("lock not acquired before deadline")

	lockTTL           = 10 * time.Second
	lockRetryInterval = 20 * time.Millisecond
)

// releaseLockScript deletes the lock only when it still holds our token.
var releaseLockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisAdapter backs the item cache, the cross-instance cart lock and the
// order event stream.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) GetItem(ctx context.Context, id int64) (domain.Item, error) {
	data, err := r.client.Get(ctx, itemKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Item{}, port.ErrCacheMiss
	}
	if err != nil {
		return domain.Item{}, fmt.Errorf("redis get failed: %w", err)
	}

	var item domain.Item
	if err := json.Unmarshal(data, &item); err != nil {
		return domain.Item{}, fmt.Errorf("unmarshal item failed: %w", err)
	}
	return item, nil
}

func (r *RedisAdapter) SetItem(ctx context.Context, item domain.Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal item failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(5)) * time.Minute
	if err := r.client.Set(ctx, itemKey(item.ID), data, itemBaseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Lock polls SET NX until it wins or ctx is done. The key expires after
// lockTTL so a crashed holder cannot block the user forever.
func (r *RedisAdapter) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := lockKeyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, lockKey, token, lockTTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, key, ctx.Err())
			}
			return nil, fmt.Errorf("redis lock failed: %w", err)
		}
		if ok {
			return func() { r.unlock(lockKey, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (r *RedisAdapter) unlock(lockKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	// an expired lock is simply not deleted
	_ = releaseLockScript.Run(ctx, r.client, []string{lockKey}, token).Err()
}

func (r *RedisAdapter) PublishOrderPlaced(ctx context.Context, event domain.OrderPlaced) error {
	err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: orderPlacedStream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"event_id":   event.EventID,
			"order_id":   strconv.FormatInt(event.OrderID, 10),
			"username":   event.Username,
			"item_count": strconv.Itoa(event.ItemCount),
			"total":      event.Total.String(),
			"placed_at":  event.PlacedAt.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis xadd failed: %w", err)
	}
	return nil
}

func itemKey(id int64) string {
	return itemKeyPrefix + strconv.FormatInt(id, 10)
}
