package models

import "time"

// CollectEntry represents a user's favorite flag on an item.
// Entries are never deleted: clearing a favorite sets Active to false
// and keeps the row, so repeated toggles stay idempotent
type CollectEntry struct {
	UserID    string    `json:"user_id"`
	ItemID    int64     `json:"item_id"`
	Active    bool      `json:"active"`
	Seq       int64     `json:"seq"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CollectEvent is published whenever a collect toggle is applied.
// This is sent to:
// 1. Redis Pub/Sub (for real-time WebSocket broadcast)
// 2. NATS JetStream (for archival to PostgreSQL)
type CollectEvent struct {
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	ItemID    int64     `json:"item_id"`
	Active    bool      `json:"active"`
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
}
