// Package database implements the PostgreSQL item store and the archived
// collect-entry table written by the archival worker.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresClient wraps the PostgreSQL database connection
type PostgresClient struct {
	db *sql.DB
}

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(connStr string) (*PostgresClient, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresClient{db: db}, nil
}

// InitSchema creates the necessary database tables
func (c *PostgresClient) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(255) PRIMARY KEY,
		nickname VARCHAR(255) NOT NULL,
		avatar_url TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS items (
		id BIGSERIAL PRIMARY KEY,
		seller_id VARCHAR(255) NOT NULL,
		buyer_id VARCHAR(255),
		title VARCHAR(255) NOT NULL,
		description TEXT,
		price DECIMAL(10, 2) NOT NULL DEFAULT 0,
		posted_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		sold_at TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_items_seller_id ON items(seller_id);
	CREATE INDEX IF NOT EXISTS idx_items_buyer_id ON items(buyer_id);
	CREATE INDEX IF NOT EXISTS idx_items_sold_at ON items(sold_at);

	CREATE TABLE IF NOT EXISTS collect_entries (
		user_id VARCHAR(255) NOT NULL,
		item_id BIGINT NOT NULL,
		active BOOLEAN NOT NULL,
		seq BIGINT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, item_id)
	);
	`

	_, err := c.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection
func (c *PostgresClient) Close() error {
	return c.db.Close()
}
