package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/jimy3k/weapp-fangxianyu/internal/apperrors"
	"github.com/jimy3k/weapp-fangxianyu/internal/models"
)

const itemColumns = "id, seller_id, buyer_id, title, description, price, posted_at, sold_at"

// The expression that places an item on its seller's timeline: the sale
// time once sold, the posting time otherwise. Must stay in sync with
// models.Item.EventTime.
const eventDayExpr = "to_char(COALESCE(sold_at, posted_at) AT TIME ZONE 'UTC', 'YYYY-MM-DD')"

// GetItem retrieves a single item by ID
func (c *PostgresClient) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	query := "SELECT " + itemColumns + " FROM items WHERE id = $1"

	item, err := scanItem(c.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "item %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query item %d: %w", id, err)
	}
	return item, nil
}

// GetItemsByIDs retrieves the items whose IDs are in ids, keyed by ID.
// IDs without a matching row are simply absent from the result
func (c *PostgresClient) GetItemsByIDs(ctx context.Context, ids []int64) (map[int64]models.Item, error) {
	if len(ids) == 0 {
		return map[int64]models.Item{}, nil
	}

	query := "SELECT " + itemColumns + " FROM items WHERE id = ANY($1)"

	rows, err := c.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query items by ids: %w", err)
	}
	defer rows.Close()

	result := make(map[int64]models.Item, len(ids))
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		result[item.ID] = *item
	}
	return result, rows.Err()
}

// ListBought returns items the user has bought, most recent sale first
func (c *PostgresClient) ListBought(ctx context.Context, userID string, limit, offset int) ([]models.Item, error) {
	query := "SELECT " + itemColumns + ` FROM items
		WHERE buyer_id = $1 AND sold_at IS NOT NULL
		ORDER BY sold_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	return c.queryItems(ctx, query, userID, limit, offset)
}

// ListSold returns items the user has sold, most recent sale first
func (c *PostgresClient) ListSold(ctx context.Context, sellerID string, limit, offset int) ([]models.Item, error) {
	query := "SELECT " + itemColumns + ` FROM items
		WHERE seller_id = $1 AND sold_at IS NOT NULL
		ORDER BY sold_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	return c.queryItems(ctx, query, sellerID, limit, offset)
}

// ListPosted returns the user's live postings, most recent first.
// Items that have transitioned to sold are excluded
func (c *PostgresClient) ListPosted(ctx context.Context, sellerID string, limit, offset int) ([]models.Item, error) {
	query := "SELECT " + itemColumns + ` FROM items
		WHERE seller_id = $1 AND sold_at IS NULL
		ORDER BY posted_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	return c.queryItems(ctx, query, sellerID, limit, offset)
}

// CountSold returns how many items the user has ever sold
func (c *PostgresClient) CountSold(ctx context.Context, sellerID string) (int, error) {
	query := "SELECT COUNT(*) FROM items WHERE seller_id = $1 AND sold_at IS NOT NULL"

	var count int
	if err := c.db.QueryRowContext(ctx, query, sellerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sold items: %w", err)
	}
	return count, nil
}

// HistoryDays returns the distinct calendar days (UTC, "2006-01-02") on
// which the seller has history events, newest day first
func (c *PostgresClient) HistoryDays(ctx context.Context, sellerID string, limit, offset int) ([]string, error) {
	query := "SELECT DISTINCT " + eventDayExpr + ` AS day FROM items
		WHERE seller_id = $1
		ORDER BY day DESC
		LIMIT $2 OFFSET $3`

	rows, err := c.db.QueryContext(ctx, query, sellerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query history days: %w", err)
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("failed to scan history day: %w", err)
		}
		days = append(days, day)
	}
	return days, rows.Err()
}

// HistoryItemsByDays returns every history item of the seller whose event
// day is in days, ordered event time descending (so the day grouping
// downstream sees items already in bucket order)
func (c *PostgresClient) HistoryItemsByDays(ctx context.Context, sellerID string, days []string) ([]models.Item, error) {
	if len(days) == 0 {
		return nil, nil
	}

	query := "SELECT " + itemColumns + ` FROM items
		WHERE seller_id = $1 AND ` + eventDayExpr + ` = ANY($2)
		ORDER BY COALESCE(sold_at, posted_at) DESC, id DESC`

	rows, err := c.db.QueryContext(ctx, query, sellerID, pq.Array(days))
	if err != nil {
		return nil, fmt.Errorf("failed to query history items: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// CreateItem inserts a new posting and fills in its generated ID and timestamp
func (c *PostgresClient) CreateItem(ctx context.Context, item *models.Item) error {
	query := `
		INSERT INTO items (seller_id, title, description, price)
		VALUES ($1, $2, $3, $4)
		RETURNING id, posted_at`

	err := c.db.QueryRowContext(ctx, query, item.SellerID, item.Title, item.Description, item.Price).
		Scan(&item.ID, &item.PostedAt)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

// MarkSold performs the one-way Posted -> Sold transition: it sets the
// buyer and sale timestamp only when the item is still unsold, so two
// concurrent purchases can never both succeed. Returns false when no row
// was updated (item missing or already sold)
func (c *PostgresClient) MarkSold(ctx context.Context, itemID int64, buyerID string) (bool, error) {
	query := `
		UPDATE items
		SET buyer_id = $1, sold_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND sold_at IS NULL`

	result, err := c.db.ExecContext(ctx, query, buyerID, itemID)
	if err != nil {
		return false, fmt.Errorf("failed to mark item sold: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// GetUser retrieves a user profile by ID
func (c *PostgresClient) GetUser(ctx context.Context, id string) (*models.User, error) {
	query := "SELECT id, nickname, avatar_url, created_at FROM users WHERE id = $1"

	var user models.User
	var avatarURL sql.NullString
	err := c.db.QueryRowContext(ctx, query, id).
		Scan(&user.ID, &user.Nickname, &avatarURL, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.CodeUserNotFound, "user %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user %s: %w", id, err)
	}
	user.AvatarURL = avatarURL.String
	return &user, nil
}

func (c *PostgresClient) queryItems(ctx context.Context, query string, args ...any) ([]models.Item, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

func collectItems(rows *sql.Rows) ([]models.Item, error) {
	var items []models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*models.Item, error) {
	var item models.Item
	var buyerID, description sql.NullString
	var soldAt sql.NullTime

	err := row.Scan(
		&item.ID,
		&item.SellerID,
		&buyerID,
		&item.Title,
		&description,
		&item.Price,
		&item.PostedAt,
		&soldAt,
	)
	if err != nil {
		return nil, err
	}

	item.BuyerID = buyerID.String
	item.Description = description.String
	if soldAt.Valid {
		t := soldAt.Time
		item.SoldAt = &t
	}
	return &item, nil
}
