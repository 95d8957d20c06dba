package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

type Dialect string

const (
	DialectMySQL  Dialect = "mysql"
	DialectSQLite Dialect = "sqlite"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS items (
		id BIGINT PRIMARY KEY AUTO_INCREMENT,
		name VARCHAR(255) NOT NULL,
		price DECIMAL(12,2) NOT NULL,
		description TEXT NOT NULL,
		INDEX idx_items_name (name)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT PRIMARY KEY AUTO_INCREMENT,
		username VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		created_at DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS carts (
		id BIGINT PRIMARY KEY AUTO_INCREMENT,
		user_id BIGINT NOT NULL UNIQUE,
		total DECIMAL(12,2) NOT NULL,
		version INT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS cart_items (
		id BIGINT PRIMARY KEY AUTO_INCREMENT,
		cart_id BIGINT NOT NULL,
		item_id BIGINT NOT NULL,
		INDEX idx_cart_items_cart (cart_id)
	)`,
	`CREATE TABLE IF NOT EXISTS user_orders (
		id BIGINT PRIMARY KEY AUTO_INCREMENT,
		user_id BIGINT NOT NULL,
		total DECIMAL(12,2) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		INDEX idx_user_orders_user (user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id BIGINT PRIMARY KEY AUTO_INCREMENT,
		order_id BIGINT NOT NULL,
		item_id BIGINT NOT NULL,
		price DECIMAL(12,2) NOT NULL,
		INDEX idx_order_items_order (order_id)
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		price TEXT NOT NULL,
		description TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_items_name ON items(name)`,
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS carts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL UNIQUE,
		total TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS cart_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cart_id INTEGER NOT NULL,
		item_id INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cart_items_cart ON cart_items(cart_id)`,
	`CREATE TABLE IF NOT EXISTS user_orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		total TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_orders_user ON user_orders(user_id)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id INTEGER NOT NULL,
		item_id INTEGER NOT NULL,
		price TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id)`,
}

// OpenDB opens and pings a database for the given dialect with pool settings suited to it.
func OpenDB(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	switch dialect {
	case DialectMySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		db, err := sql.Open("mysql", cfg.FormatDSN())
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping mysql: %w", err)
		}
		return db, nil

	case DialectSQLite:
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		db, err := sql.Open("sqlite", dsn+sep+"_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// a single connection serializes writers; every statement inside a tx must use the tx
		db.SetMaxOpenConns(1)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping sqlite: %w", err)
		}
		return db, nil
	}

	return nil, fmt.Errorf("unsupported dialect %q", dialect)
}

// Migrate creates the tables when missing and seeds the catalog when it is empty.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	schema := mysqlSchema
	if dialect == DialectSQLite {
		schema = sqliteSchema
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&count); err != nil {
		return fmt.Errorf("count items: %w", err)
	}
	if count > 0 {
		return nil
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO items (id, name, price, description) VALUES
		(1, 'Round Widget', '2.99', 'A widget that is round'),
		(2, 'Square Widget', '1.99', 'A widget that is square')`)
	if err != nil {
		return fmt.Errorf("seed items: %w", err)
	}
	return nil
}
