package domain

import "time"

// UserOrder is an immutable record of a cart at submission time.
type UserOrder struct {
	ID        int64     `json:"id"`
	User      UserRef   `json:"user"`
	Items     []Item    `json:"items"`
	Total     Money     `json:"total"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewOrderFromCart copies the cart's items and takes its total as is.
func NewOrderFromCart(cart Cart, now time.Time) UserOrder {
	snap := cart.Snapshot()
	return UserOrder{
		User:      cart.User,
		Items:     snap.Items,
		Total:     cart.Total,
		CreatedAt: now,
	}
}

// OrderPlaced is emitted once an order has been committed.
type OrderPlaced struct {
	EventID   string
	OrderID   int64
	Username  string
	ItemCount int
	Total     Money
	PlacedAt  time.Time
}
