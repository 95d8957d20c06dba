package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rl1809/shop-cart/internal/core/domain"
	"github.com/rl1809/shop-cart/internal/port"
)

const (
	// maxCartAttempts bounds retries after an optimistic lock conflict.
	maxCartAttempts = 3

	// MaxQuantity is the largest quantity a single add or remove accepts.
	MaxQuantity = 1000
)

type itemGetter interface {
	GetItem(ctx context.Context, id int64) (domain.Item, error)
}

type CartService struct {
	users  port.UserRepository
	carts  port.CartRepository
	items  itemGetter
	locker port.Locker
	log    zerolog.Logger
}

func NewCartService(users port.UserRepository, carts port.CartRepository, items itemGetter, locker port.Locker, log zerolog.Logger) *CartService {
	return &CartService{
		users:  users,
		carts:  carts,
		items:  items,
		locker: locker,
		log:    log.With().Str("component", "cart").Logger(),
	}
}

// AddToCart appends quantity units of the item to the user's cart. A zero
// quantity leaves the cart untouched, a negative one or one above MaxQuantity
// is rejected.
func (s *CartService) AddToCart(ctx context.Context, username string, itemID int64, quantity int) (domain.Cart, error) {
	if err := validateQuantity(quantity); err != nil {
		return domain.Cart{}, err
	}

	user, item, err := s.resolve(ctx, username, itemID)
	if err != nil {
		return domain.Cart{}, err
	}
	if quantity == 0 {
		return s.loadCart(ctx, user)
	}

	cart, err := s.mutate(ctx, user, func(c *domain.Cart) {
		c.Add(item, quantity)
	})
	if err != nil {
		return domain.Cart{}, err
	}

	s.log.Info().Str("username", username).Int64("item_id", itemID).Int("quantity", quantity).
		Str("total", cart.Total.String()).Msg("added to cart")
	return cart, nil
}

// RemoveFromCart drops up to quantity units of the item from the user's cart.
func (s *CartService) RemoveFromCart(ctx context.Context, username string, itemID int64, quantity int) (domain.Cart, error) {
	if err := validateQuantity(quantity); err != nil {
		return domain.Cart{}, err
	}

	user, _, err := s.resolve(ctx, username, itemID)
	if err != nil {
		return domain.Cart{}, err
	}
	if quantity == 0 {
		return s.loadCart(ctx, user)
	}

	removed := 0
	cart, err := s.mutate(ctx, user, func(c *domain.Cart) {
		removed = c.Remove(itemID, quantity)
	})
	if err != nil {
		return domain.Cart{}, err
	}

	s.log.Info().Str("username", username).Int64("item_id", itemID).Int("removed", removed).
		Str("total", cart.Total.String()).Msg("removed from cart")
	return cart, nil
}

func (s *CartService) GetCart(ctx context.Context, username string) (domain.Cart, error) {
	user, err := lookupUser(ctx, s.users, username, s.log)
	if err != nil {
		return domain.Cart{}, err
	}
	return s.loadCart(ctx, user)
}

// resolve looks up the user and the item before anything is mutated.
func (s *CartService) resolve(ctx context.Context, username string, itemID int64) (domain.User, domain.Item, error) {
	user, err := lookupUser(ctx, s.users, username, s.log)
	if err != nil {
		return domain.User{}, domain.Item{}, err
	}

	item, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.log.Warn().Int64("item_id", itemID).Msg("item not found")
		}
		return domain.User{}, domain.Item{}, err
	}
	return user, item, nil
}

// mutate runs read, change, write on the cart while holding the user's lock.
func (s *CartService) mutate(ctx context.Context, user domain.User, change func(*domain.Cart)) (domain.Cart, error) {
	unlock, err := s.locker.Lock(ctx, cartLockKey(user.Username))
	if err != nil {
		return domain.Cart{}, fmt.Errorf("lock cart: %w", err)
	}
	defer unlock()

	for attempt := 1; ; attempt++ {
		cart, err := s.loadCart(ctx, user)
		if err != nil {
			return domain.Cart{}, err
		}

		change(&cart)

		saved, err := s.carts.SaveCart(ctx, cart)
		if errors.Is(err, port.ErrOptimisticLock) && attempt < maxCartAttempts {
			s.log.Debug().Str("username", user.Username).Int("attempt", attempt).Msg("cart version conflict, retrying")
			continue
		}
		if err != nil {
			return domain.Cart{}, fmt.Errorf("save cart: %w", err)
		}

		saved.User = user.Ref()
		return saved, nil
	}
}

func (s *CartService) loadCart(ctx context.Context, user domain.User) (domain.Cart, error) {
	cart, err := s.carts.GetCartByUserID(ctx, user.ID)
	if errors.Is(err, port.ErrNotFound) {
		return domain.Cart{}, fmt.Errorf("cart of %q: %w", user.Username, ErrNotFound)
	}
	if err != nil {
		return domain.Cart{}, fmt.Errorf("get cart: %w", err)
	}
	cart.User = user.Ref()
	return cart, nil
}

func validateQuantity(quantity int) error {
	if quantity < 0 || quantity > MaxQuantity {
		return fmt.Errorf("quantity %d outside 0..%d: %w", quantity, MaxQuantity, ErrInvalidInput)
	}
	return nil
}

func cartLockKey(username string) string {
	return "cart:" + username
}
