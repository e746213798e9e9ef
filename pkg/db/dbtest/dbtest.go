// Package dbtest opens throwaway sqlite databases that mirror the postgres
// schema closely enough for repository and service tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var schema = []string{
	`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		phone TEXT,
		role TEXT NOT NULL DEFAULT 'USER',
		qr_code TEXT NOT NULL UNIQUE,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		last_login_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE restaurants (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL REFERENCES users(id),
		name TEXT NOT NULL,
		description TEXT,
		address TEXT NOT NULL,
		image_url TEXT,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		qr_code_meal TEXT NOT NULL UNIQUE,
		qr_code_drink TEXT NOT NULL UNIQUE,
		is_active BOOLEAN NOT NULL DEFAULT 0,
		is_subscription_active BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE restaurant_groups (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		owner_restaurant_id TEXT NOT NULL UNIQUE REFERENCES restaurants(id),
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE restaurant_group_members (
		group_id TEXT NOT NULL REFERENCES restaurant_groups(id) ON DELETE CASCADE,
		restaurant_id TEXT NOT NULL UNIQUE REFERENCES restaurants(id),
		created_at DATETIME,
		PRIMARY KEY (group_id, restaurant_id)
	)`,
	`CREATE TABLE top_up_packages (
		id TEXT PRIMARY KEY,
		restaurant_id TEXT NOT NULL REFERENCES restaurants(id),
		name TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		bonus NUMERIC NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE user_restaurant_balances (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		restaurant_id TEXT NOT NULL REFERENCES restaurants(id),
		balance NUMERIC NOT NULL DEFAULT 0 CHECK (balance >= 0),
		stars_meal INTEGER NOT NULL DEFAULT 0 CHECK (stars_meal >= 0),
		stars_drink INTEGER NOT NULL DEFAULT 0 CHECK (stars_drink >= 0),
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE (user_id, restaurant_id)
	)`,
	`CREATE TABLE scan_logs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		restaurant_id TEXT NOT NULL,
		qr_type TEXT NOT NULL,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		distance_meters REAL NOT NULL,
		stars_awarded INTEGER NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE stars_transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		restaurant_id TEXT NOT NULL,
		star_type TEXT NOT NULL,
		amount INTEGER NOT NULL,
		kind TEXT NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE purchases (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		restaurant_id TEXT NOT NULL,
		group_id TEXT,
		currency_type TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE top_ups (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		restaurant_id TEXT NOT NULL,
		package_id TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		bonus NUMERIC NOT NULL,
		total NUMERIC NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE gifts (
		id TEXT PRIMARY KEY,
		sender_id TEXT NOT NULL,
		recipient_id TEXT NOT NULL,
		restaurant_id TEXT NOT NULL,
		group_id TEXT,
		currency_type TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE plans (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT,
		price NUMERIC NOT NULL,
		currency TEXT NOT NULL DEFAULT 'USD',
		duration_days INTEGER NOT NULL,
		stripe_price_id TEXT,
		features TEXT DEFAULT '[]',
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE subscriptions (
		id TEXT PRIMARY KEY,
		restaurant_id TEXT NOT NULL REFERENCES restaurants(id),
		plan_id TEXT NOT NULL REFERENCES plans(id),
		status TEXT NOT NULL DEFAULT 'PENDING',
		start_date DATETIME,
		end_date DATETIME,
		stripe_checkout_session_id TEXT UNIQUE,
		stripe_subscription_id TEXT UNIQUE,
		cancelled_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE device_tokens (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		token TEXT NOT NULL UNIQUE,
		platform TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		data TEXT,
		read_at DATETIME,
		created_at DATETIME
	)`,
}

// Open returns a fresh in-memory database with the full schema applied.
// The pool is pinned to one connection so transactions and plain reads never
// contend for sqlite table locks.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString()[:8])
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}
