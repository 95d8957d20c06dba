package port

import (
	"context"
	"errors"

	"github.com/rl1809/shop-cart/internal/core/domain"
)

var ErrCacheMiss = errors.New("cache miss")

type ItemCache interface {
	// GetItem returns ErrCacheMiss when the item is not cached
	GetItem(ctx context.Context, id int64) (domain.Item, error)

	SetItem(ctx context.Context, item domain.Item) error
}

type Locker interface {
	// Lock blocks until the key is held or ctx is done. The returned func releases it.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
