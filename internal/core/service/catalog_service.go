package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/rl1809/shop-cart/internal/core/domain"
	"github.com/rl1809/shop-cart/internal/port"
)

// itemLoadTimeout bounds a shared repository load, which no single caller owns.
const itemLoadTimeout = 5 * time.Second

// CatalogService serves read-only item data with a cache in front of the repository.
type CatalogService struct {
	items port.ItemRepository
	cache port.ItemCache
	sfg   singleflight.Group // collapses concurrent misses for one id
	log   zerolog.Logger
}

func NewCatalogService(items port.ItemRepository, cache port.ItemCache, log zerolog.Logger) *CatalogService {
	return &CatalogService{
		items: items,
		cache: cache,
		log:   log.With().Str("component", "catalog").Logger(),
	}
}

func (s *CatalogService) ListItems(ctx context.Context) ([]domain.Item, error) {
	s.log.Info().Msg("listing items")
	items, err := s.items.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

func (s *CatalogService) GetItem(ctx context.Context, id int64) (domain.Item, error) {
	s.log.Debug().Int64("item_id", id).Msg("get item by id")

	item, err := s.cache.GetItem(ctx, id)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, port.ErrCacheMiss) {
		s.log.Warn().Err(err).Int64("item_id", id).Msg("item cache get failed")
	}

	ch := s.sfg.DoChan(strconv.FormatInt(id, 10), func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), itemLoadTimeout)
		defer cancel()

		item, err := s.items.GetItem(loadCtx, id)
		if errors.Is(err, port.ErrNotFound) {
			return domain.Item{}, fmt.Errorf("item %d: %w", id, ErrNotFound)
		}
		if err != nil {
			return domain.Item{}, fmt.Errorf("get item %d: %w", id, err)
		}

		if err := s.cache.SetItem(loadCtx, item); err != nil {
			s.log.Warn().Err(err).Int64("item_id", id).Msg("item cache set failed")
		}
		return item, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.Item{}, res.Err
		}
		return res.Val.(domain.Item), nil
	case <-ctx.Done():
		return domain.Item{}, ctx.Err()
	}
}

func (s *CatalogService) FindItemsByName(ctx context.Context, name string) ([]domain.Item, error) {
	s.log.Info().Str("name", name).Msg("get items by name")
	items, err := s.items.FindItemsByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("find items %q: %w", name, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("items named %q: %w", name, ErrNotFound)
	}
	return items, nil
}
