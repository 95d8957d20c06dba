package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rl1809/shop-cart/internal/core/domain"
	"github.com/rl1809/shop-cart/internal/port"
)

type OrderService struct {
	users  port.UserRepository
	carts  port.CartRepository
	orders port.OrderRepository
	locker port.Locker
	log    zerolog.Logger

	mu         sync.RWMutex
	closed     bool
	eventQueue chan domain.OrderPlaced
}

func NewOrderService(users port.UserRepository, carts port.CartRepository, orders port.OrderRepository, locker port.Locker, queueSize int, log zerolog.Logger) *OrderService {
	return &OrderService{
		users:      users,
		carts:      carts,
		orders:     orders,
		locker:     locker,
		log:        log.With().Str("component", "order").Logger(),
		eventQueue: make(chan domain.OrderPlaced, queueSize),
	}
}

// Submit turns the user's cart into an order and empties the cart. The
// snapshot and the reset happen under the same per-user lock that guards
// AddToCart, and are committed in a single transaction.
func (s *OrderService) Submit(ctx context.Context, username string) (domain.UserOrder, error) {
	user, err := lookupUser(ctx, s.users, username, s.log)
	if err != nil {
		return domain.UserOrder{}, err
	}

	unlock, err := s.locker.Lock(ctx, cartLockKey(user.Username))
	if err != nil {
		return domain.UserOrder{}, fmt.Errorf("lock cart: %w", err)
	}
	defer unlock()

	var order domain.UserOrder
	for attempt := 1; ; attempt++ {
		cart, err := s.carts.GetCartByUserID(ctx, user.ID)
		if errors.Is(err, port.ErrNotFound) {
			return domain.UserOrder{}, fmt.Errorf("cart of %q: %w", username, ErrNotFound)
		}
		if err != nil {
			return domain.UserOrder{}, fmt.Errorf("get cart: %w", err)
		}

		pending := domain.NewOrderFromCart(cart, time.Now().UTC())
		pending.User = user.Ref()

		order, err = s.orders.SubmitOrder(ctx, pending, cart)
		if errors.Is(err, port.ErrOptimisticLock) && attempt < maxCartAttempts {
			s.log.Debug().Str("username", username).Int("attempt", attempt).Msg("cart changed during submit, retrying")
			continue
		}
		if err != nil {
			return domain.UserOrder{}, fmt.Errorf("submit order: %w", err)
		}
		break
	}

	s.log.Info().Int64("order_id", order.ID).Str("total", order.Total.String()).Str("username", username).
		Msg("order placed")

	s.publish(domain.OrderPlaced{
		EventID:   uuid.NewString(),
		OrderID:   order.ID,
		Username:  username,
		ItemCount: len(order.Items),
		Total:     order.Total,
		PlacedAt:  order.CreatedAt,
	})

	return order, nil
}

// History returns every order of the user, oldest first.
func (s *OrderService) History(ctx context.Context, username string) ([]domain.UserOrder, error) {
	user, err := lookupUser(ctx, s.users, username, s.log)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("username", username).Msg("order history requested")
	orders, err := s.orders.ListOrdersByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	for i := range orders {
		orders[i].User = user.Ref()
	}
	return orders, nil
}

// publish never blocks; a full queue drops the event.
func (s *OrderService) publish(event domain.OrderPlaced) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	select {
	case s.eventQueue <- event:
	default:
		s.log.Warn().Int64("order_id", event.OrderID).Msg("event queue full, dropping order placed event")
	}
}

func (s *OrderService) GetEventQueue() <-chan domain.OrderPlaced {
	return s.eventQueue
}

func (s *OrderService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.eventQueue)
	}
}
