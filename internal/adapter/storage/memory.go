package storage

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/rl1809/shop-cart/internal/core/domain"
	"github.com/rl1809/shop-cart/internal/port"
)

// LRUItemCache keeps items in process. Items never change, so entries only
// leave through eviction.
type LRUItemCache struct {
	cache *lru.Cache[int64, domain.Item]
}

func NewLRUItemCache(size int) (*LRUItemCache, error) {
	c, err := lru.New[int64, domain.Item](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &LRUItemCache{cache: c}, nil
}

func (c *LRUItemCache) GetItem(ctx context.Context, id int64) (domain.Item, error) {
	item, ok := c.cache.Get(id)
	if !ok {
		return domain.Item{}, port.ErrCacheMiss
	}
	return item, nil
}

func (c *LRUItemCache) SetItem(ctx context.Context, item domain.Item) error {
	c.cache.Add(item.ID, item)
	return nil
}

// LocalLocker is a keyed mutex for a single instance. Waiting honours ctx.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*keyLock)}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{sem: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key, kl)
		return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.sem
			l.release(key, kl)
		})
	}, nil
}

func (l *LocalLocker) release(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

// LogPublisher writes order events to the log instead of a stream.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log.With().Str("component", "events").Logger()}
}

func (p *LogPublisher) PublishOrderPlaced(ctx context.Context, event domain.OrderPlaced) error {
	p.log.Info().
		Str("event_id", event.EventID).
		Int64("order_id", event.OrderID).
		Str("username", event.Username).
		Int("item_count", event.ItemCount).
		Str("total", event.Total.String()).
		Msg("order placed event")
	return nil
}
