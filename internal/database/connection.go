package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/tripnest/booking-backend/internal/config"
)

// PostgresDB wraps the sqlx connection pool
type PostgresDB struct {
	*sqlx.DB
}

// NewConnection creates a new database connection
func NewConnection(ctx context.Context, cfg config.DatabaseConfig) (*PostgresDB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	// Connection poolers (Supavisor, pgbouncer in transaction mode) reject
	// named prepared statements.
	connectionURL := cfg.URL
	if !strings.Contains(connectionURL, "prefer_simple_protocol") {
		separator := "?"
		if strings.Contains(connectionURL, "?") {
			separator = "&"
		}
		connectionURL = connectionURL + separator + "prefer_simple_protocol=true"
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", connectionURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxLifetime / 2)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{DB: db}, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS booking_orders (
		order_id         TEXT PRIMARY KEY,
		customer_id      TEXT NOT NULL DEFAULT '',
		kind             TEXT NOT NULL,
		confirmation_ref TEXT NOT NULL,
		status           TEXT NOT NULL,
		total_amount     NUMERIC(12,2) NOT NULL,
		currency         CHAR(3) NOT NULL,
		travelers        JSONB NOT NULL DEFAULT '[]',
		contact_email    TEXT,
		metadata         JSONB NOT NULL DEFAULT '{}',
		created_at       TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL
	)`,
	`ALTER TABLE booking_orders ADD COLUMN IF NOT EXISTS customer_id TEXT NOT NULL DEFAULT ''`,
	`CREATE TABLE IF NOT EXISTS payment_audits (
		id             UUID PRIMARY KEY,
		session_id     TEXT,
		order_id       TEXT,
		transaction_id TEXT,
		refund_id      TEXT,
		event_type     TEXT NOT NULL,
		event_source   TEXT NOT NULL,
		gateway        TEXT NOT NULL,
		amount         NUMERIC(12,2),
		currency       CHAR(3),
		payment_status TEXT,
		error_message  TEXT,
		error_code     TEXT,
		ip_address     TEXT,
		user_agent     TEXT,
		correlation_id TEXT,
		metadata       JSONB,
		created_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payment_audits_order_id ON payment_audits (order_id, created_at)`,
}

// EnsureSchema creates the tables used by the repositories if they are missing
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
