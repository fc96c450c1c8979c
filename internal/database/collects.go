package database

import (
	"context"
	"fmt"

	"github.com/jimy3k/weapp-fangxianyu/internal/models"
)

// UpsertCollectEntry archives a collect toggle. The seq guard makes the
// write last-writer-wins: a replayed or reordered event with an older
// sequence number can never roll the entry backwards. Rows are kept on
// deactivation (active = false), never deleted
func (c *PostgresClient) UpsertCollectEntry(ctx context.Context, event *models.CollectEvent) error {
	query := `
		INSERT INTO collect_entries (user_id, item_id, active, seq, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, item_id) DO UPDATE
		SET active = EXCLUDED.active, seq = EXCLUDED.seq, updated_at = EXCLUDED.updated_at
		WHERE collect_entries.seq < EXCLUDED.seq`

	_, err := c.db.ExecContext(ctx, query,
		event.UserID,
		event.ItemID,
		event.Active,
		event.Seq,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert collect entry: %w", err)
	}
	return nil
}
