package service

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rl1809/shop-cart/internal/core/domain"
	"github.com/rl1809/shop-cart/internal/port"
)

var (
	roundWidget  = domain.Item{ID: 1, Name: "Round Widget", Price: domain.MustMoney("2.99"), Description: "A widget that is round"}
	squareWidget = domain.Item{ID: 2, Name: "Square Widget", Price: domain.MustMoney("1.99"), Description: "A widget that is square"}
)

// mockStore is an in-memory stand-in for the SQL adapter.
type mockStore struct {
	mu     sync.Mutex
	items  map[int64]domain.Item
	users  map[string]domain.User
	carts  map[int64]domain.Cart // by user id
	orders []domain.UserOrder

	itemReads   int
	itemGate    chan struct{} // when set, GetItem blocks until it is closed
	itemEntered chan struct{}
	failSubmit  error
	failSave    error
	staleSaves  int // number of SaveCart calls to reject with ErrOptimisticLock
	staleSubmit int
}

func newMockStore() *mockStore {
	return &mockStore{
		items: map[int64]domain.Item{roundWidget.ID: roundWidget, squareWidget.ID: squareWidget},
		users: make(map[string]domain.User),
		carts: make(map[int64]domain.Cart),
	}
}

func (m *mockStore) ListItems(ctx context.Context) ([]domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return []domain.Item{m.items[1], m.items[2]}, nil
}

func (m *mockStore) GetItem(ctx context.Context, id int64) (domain.Item, error) {
	if m.itemGate != nil {
		select {
		case m.itemEntered <- struct{}{}:
		default:
		}
		select {
		case <-m.itemGate:
		case <-ctx.Done():
			return domain.Item{}, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.itemReads++
	item, ok := m.items[id]
	if !ok {
		return domain.Item{}, port.ErrNotFound
	}
	return item, nil
}

func (m *mockStore) FindItemsByName(ctx context.Context, name string) ([]domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Item
	for _, it := range m.items {
		if it.Name == name {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *mockStore) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Username]; ok {
		return domain.User{}, port.ErrDuplicate
	}
	user.ID = int64(len(m.users) + 1)
	m.users[user.Username] = user
	m.carts[user.ID] = domain.Cart{ID: user.ID, Items: []domain.Item{}}
	return user, nil
}

func (m *mockStore) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[username]
	if !ok {
		return domain.User{}, port.ErrNotFound
	}
	return user, nil
}

func (m *mockStore) GetUserByID(ctx context.Context, id int64) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return domain.User{}, port.ErrNotFound
}

func (m *mockStore) GetCartByUserID(ctx context.Context, userID int64) (domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.carts[userID]
	if !ok {
		return domain.Cart{}, port.ErrNotFound
	}
	return cart.Snapshot(), nil
}

func (m *mockStore) SaveCart(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave != nil {
		return domain.Cart{}, m.failSave
	}
	if m.staleSaves > 0 {
		m.staleSaves--
		return domain.Cart{}, port.ErrOptimisticLock
	}
	userID := m.userIDOfCart(cart.ID)
	if m.carts[userID].Version != cart.Version {
		return domain.Cart{}, port.ErrOptimisticLock
	}
	cart.Version++
	m.carts[userID] = cart.Snapshot()
	return cart, nil
}

func (m *mockStore) SubmitOrder(ctx context.Context, order domain.UserOrder, cart domain.Cart) (domain.UserOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSubmit != nil {
		return domain.UserOrder{}, m.failSubmit
	}
	if m.staleSubmit > 0 {
		m.staleSubmit--
		return domain.UserOrder{}, port.ErrOptimisticLock
	}
	userID := m.userIDOfCart(cart.ID)
	if m.carts[userID].Version != cart.Version {
		return domain.UserOrder{}, port.ErrOptimisticLock
	}

	order.ID = int64(len(m.orders) + 1)
	m.orders = append(m.orders, order)

	cart.Clear()
	cart.Version++
	m.carts[userID] = cart
	return order, nil
}

func (m *mockStore) ListOrdersByUserID(ctx context.Context, userID int64) ([]domain.UserOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.UserOrder{}
	for _, o := range m.orders {
		if o.User.ID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockStore) userIDOfCart(cartID int64) int64 {
	for uid, c := range m.carts {
		if c.ID == cartID {
			return uid
		}
	}
	return 0
}

// mockCache never holds anything unless told to.
type mockCache struct {
	mu    sync.Mutex
	items map[int64]domain.Item
	err   error
}

func newMockCache() *mockCache {
	return &mockCache{items: make(map[int64]domain.Item)}
}

func (c *mockCache) GetItem(ctx context.Context, id int64) (domain.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return domain.Item{}, c.err
	}
	item, ok := c.items[id]
	if !ok {
		return domain.Item{}, port.ErrCacheMiss
	}
	return item, nil
}

func (c *mockCache) SetItem(ctx context.Context, item domain.Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[item.ID] = item
	return nil
}

// mockLocker is a keyed mutex.
type mockLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	err   error
}

func newMockLocker() *mockLocker {
	return &mockLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *mockLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock, nil
}

var errStorage = errors.New("storage unavailable")

type testEnv struct {
	store   *mockStore
	cache   *mockCache
	locker  *mockLocker
	catalog *CatalogService
	users   *UserService
	carts   *CartService
	orders  *OrderService
}

func newTestEnv() *testEnv {
	store := newMockStore()
	cache := newMockCache()
	locker := newMockLocker()
	log := zerolog.Nop()

	catalog := NewCatalogService(store, cache, log)
	return &testEnv{
		store:   store,
		cache:   cache,
		locker:  locker,
		catalog: catalog,
		users:   NewUserService(store, 4, log),
		carts:   NewCartService(store, store, catalog, locker, log),
		orders:  NewOrderService(store, store, store, locker, 100, log),
	}
}

func (e *testEnv) signup(username string) domain.User {
	user, err := e.users.CreateUser(context.Background(), username, "testpassw", "testpassw")
	if err != nil {
		panic(err)
	}
	return user
}
