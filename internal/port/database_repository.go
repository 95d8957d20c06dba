package port

import (
	"context"
	"errors"

	"github.com/rl1809/shop-cart/internal/core/domain"
)

var (
	ErrNotFound = errors.New("record not found")

	// ErrOptimisticLock is returned when a cart changed after it was read.
	ErrOptimisticLock = errors.New("optimistic lock conflict")

	ErrDuplicate = errors.New("duplicate record")
)

type ItemRepository interface {
	ListItems(ctx context.Context) ([]domain.Item, error)

	// GetItem returns ErrNotFound for unknown ids
	GetItem(ctx context.Context, id int64) (domain.Item, error)

	FindItemsByName(ctx context.Context, name string) ([]domain.Item, error)
}

type UserRepository interface {
	// CreateUser persists the user together with an empty cart, returns ErrDuplicate on a taken username
	CreateUser(ctx context.Context, user domain.User) (domain.User, error)

	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	GetUserByID(ctx context.Context, id int64) (domain.User, error)
}

type CartRepository interface {
	GetCartByUserID(ctx context.Context, userID int64) (domain.Cart, error)

	// SaveCart replaces the cart contents with version check for optimistic locking
	SaveCart(ctx context.Context, cart domain.Cart) (domain.Cart, error)
}

type OrderRepository interface {
	// SubmitOrder persists the order and resets the cart it was built from in one transaction
	SubmitOrder(ctx context.Context, order domain.UserOrder, cart domain.Cart) (domain.UserOrder, error)

	ListOrdersByUserID(ctx context.Context, userID int64) ([]domain.UserOrder, error)
}
