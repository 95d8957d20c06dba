package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/rl1809/shop-cart/internal/core/domain"
	"github.com/rl1809/shop-cart/internal/port"
)

const (
	mysqlDuplicateEntry = 1062

	// insertBatchSize keeps each statement far below SQLite's 32766 and
	// MySQL's 65535 placeholder limits.
	insertBatchSize = 500
)

// SQLAdapter implements the item, user, cart and order repositories on
// database/sql. Statements stay within the dialect-neutral subset so the
// same code runs on MySQL and SQLite.
type SQLAdapter struct {
	db *sql.DB
}

func NewSQLAdapter(db *sql.DB) *SQLAdapter {
	return &SQLAdapter{db: db}
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (m *SQLAdapter) ListItems(ctx context.Context) ([]domain.Item, error) {
	return queryItems(ctx, m.db, `SELECT id, name, price, description FROM items ORDER BY id`)
}

func (m *SQLAdapter) GetItem(ctx context.Context, id int64) (domain.Item, error) {
	var it domain.Item
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, price, description FROM items WHERE id = ?`, id,
	).Scan(&it.ID, &it.Name, &it.Price, &it.Description)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.Item{}, port.ErrNotFound
	}
	if err != nil {
		return domain.Item{}, fmt.Errorf("query item: %w", err)
	}
	return it, nil
}

func (m *SQLAdapter) FindItemsByName(ctx context.Context, name string) ([]domain.Item, error) {
	return queryItems(ctx, m.db, `
		SELECT id, name, price, description FROM items WHERE name = ? ORDER BY id`, name)
}

func (m *SQLAdapter) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)`,
		user.Username, user.PasswordHash, user.CreatedAt,
	)
	if isDuplicate(err) {
		return domain.User{}, port.ErrDuplicate
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}

	user.ID, err = result.LastInsertId()
	if err != nil {
		return domain.User{}, fmt.Errorf("user id: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO carts (user_id, total, version) VALUES (?, ?, 0)`,
		user.ID, domain.Zero,
	)
	if err != nil {
		return domain.User{}, fmt.Errorf("insert cart: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.User{}, fmt.Errorf("commit: %w", err)
	}
	return user, nil
}

func (m *SQLAdapter) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return m.getUser(ctx, `WHERE username = ?`, username)
}

func (m *SQLAdapter) GetUserByID(ctx context.Context, id int64) (domain.User, error) {
	return m.getUser(ctx, `WHERE id = ?`, id)
}

func (m *SQLAdapter) getUser(ctx context.Context, where string, arg any) (domain.User, error) {
	var u domain.User
	err := m.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users `+where, arg,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, port.ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

// GetCartByUserID reads the cart row and its items inside one transaction.
func (m *SQLAdapter) GetCartByUserID(ctx context.Context, userID int64) (domain.Cart, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	cart := domain.Cart{User: domain.UserRef{ID: userID}}
	err = tx.QueryRowContext(ctx, `
		SELECT id, total, version FROM carts WHERE user_id = ?`, userID,
	).Scan(&cart.ID, &cart.Total, &cart.Version)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.Cart{}, port.ErrNotFound
	}
	if err != nil {
		return domain.Cart{}, fmt.Errorf("query cart: %w", err)
	}

	cart.Items, err = queryItems(ctx, tx, `
		SELECT i.id, i.name, i.price, i.description
		FROM cart_items ci JOIN items i ON i.id = ci.item_id
		WHERE ci.cart_id = ? ORDER BY ci.id`, cart.ID)
	if err != nil {
		return domain.Cart{}, err
	}

	return cart, tx.Commit()
}

func (m *SQLAdapter) SaveCart(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := replaceCart(ctx, tx, cart, cart.Total, cart.Items); err != nil {
		return domain.Cart{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.Cart{}, fmt.Errorf("commit: %w", err)
	}

	cart.Version++
	return cart, nil
}

func (m *SQLAdapter) SubmitOrder(ctx context.Context, order domain.UserOrder, cart domain.Cart) (domain.UserOrder, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.UserOrder{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO user_orders (user_id, total, created_at) VALUES (?, ?, ?)`,
		order.User.ID, order.Total, order.CreatedAt,
	)
	if err != nil {
		return domain.UserOrder{}, fmt.Errorf("insert order: %w", err)
	}

	order.ID, err = result.LastInsertId()
	if err != nil {
		return domain.UserOrder{}, fmt.Errorf("order id: %w", err)
	}

	err = execBulkInsert(ctx, tx, `INSERT INTO order_items (order_id, item_id, price) VALUES`, 3, len(order.Items), func(i int) []any {
		return []any{order.ID, order.Items[i].ID, order.Items[i].Price}
	})
	if err != nil {
		return domain.UserOrder{}, fmt.Errorf("insert order items: %w", err)
	}

	if err := replaceCart(ctx, tx, cart, domain.Zero, nil); err != nil {
		return domain.UserOrder{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.UserOrder{}, fmt.Errorf("commit: %w", err)
	}
	return order, nil
}

func (m *SQLAdapter) ListOrdersByUserID(ctx context.Context, userID int64) ([]domain.UserOrder, error) {
	orders, err := queryOrders(ctx, m.db, userID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	byID := make(map[int64]*domain.UserOrder, len(orders))
	for i := range orders {
		byID[orders[i].ID] = &orders[i]
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT oi.order_id, i.id, i.name, oi.price, i.description
		FROM order_items oi
		JOIN user_orders o ON o.id = oi.order_id
		JOIN items i ON i.id = oi.item_id
		WHERE o.user_id = ? ORDER BY oi.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID int64
		var it domain.Item
		if err := rows.Scan(&orderID, &it.ID, &it.Name, &it.Price, &it.Description); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return orders, nil
}

// replaceCart overwrites the cart's total and items if its version is still
// the one that was read.
func replaceCart(ctx context.Context, tx *sql.Tx, cart domain.Cart, total domain.Money, items []domain.Item) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE carts SET total = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		total, cart.ID, cart.Version,
	)
	if err != nil {
		return fmt.Errorf("update cart: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrOptimisticLock
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = ?`, cart.ID); err != nil {
		return fmt.Errorf("clear cart items: %w", err)
	}

	err = execBulkInsert(ctx, tx, `INSERT INTO cart_items (cart_id, item_id) VALUES`, 2, len(items), func(i int) []any {
		return []any{cart.ID, items[i].ID}
	})
	if err != nil {
		return fmt.Errorf("insert cart items: %w", err)
	}
	return nil
}

func queryItems(ctx context.Context, q queryer, query string, args ...any) ([]domain.Item, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	items := []domain.Item{}
	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Price, &it.Description); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

func queryOrders(ctx context.Context, q queryer, userID int64) ([]domain.UserOrder, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, total, created_at FROM user_orders WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.UserOrder{}
	for rows.Next() {
		o := domain.UserOrder{User: domain.UserRef{ID: userID}, Items: []domain.Item{}}
		if err := rows.Scan(&o.ID, &o.Total, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

// execBulkInsert inserts n rows in statements of at most insertBatchSize rows,
// all on the same transaction.
func execBulkInsert(ctx context.Context, tx *sql.Tx, prefix string, width, n int, row func(i int) []any) error {
	for start := 0; start < n; start += insertBatchSize {
		end := min(start+insertBatchSize, n)
		query, args := bulkInsert(prefix, width, end-start, func(i int) []any {
			return row(start + i)
		})
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}

// bulkInsert builds a multi-row INSERT with n tuples of width placeholders.
func bulkInsert(prefix string, width, n int, row func(i int) []any) (string, []any) {
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", width), ", ") + ")"

	var b strings.Builder
	b.WriteString(prefix)
	args := make([]any, 0, width*n)
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(" ")
		b.WriteString(tuple)
		args = append(args, row(i)...)
	}
	return b.String(), args
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE"))
	}
	return false
}
