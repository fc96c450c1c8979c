package service

import (
	"context"
	"fmt"

	"github.com/jimy3k/weapp-fangxianyu/internal/models"
)

// HistoryStore is the subset of the item store the aggregator reads from.
type HistoryStore interface {
	// HistoryDays returns the seller's distinct event days, newest first.
	HistoryDays(ctx context.Context, sellerID string, limit, offset int) ([]string, error)
	// HistoryItemsByDays returns every item whose event day is in days,
	// ordered event time descending.
	HistoryItemsByDays(ctx context.Context, sellerID string, days []string) ([]models.Item, error)
}

// HistoryService merges a seller's item events (sale date when sold,
// posting date otherwise) into a day-bucketed timeline
type HistoryService struct {
	store HistoryStore
}

// NewHistoryService creates a new history aggregator
func NewHistoryService(store HistoryStore) *HistoryService {
	return &HistoryService{store: store}
}

// GetUserHistory returns one page of the seller's history, bucketed by
// calendar day. Pagination walks over days, not items: the page selects
// `size` distinct days after skipping `(page-1)*size` days, then every
// item on those days is included, so a page boundary can never split a
// day's entries. Buckets are ordered day descending and items within a
// bucket event-time descending. No history, or a page past the last day,
// yields an empty slice
func (s *HistoryService) GetUserHistory(ctx context.Context, sellerID string, page, size int) ([]models.DayBucket, error) {
	if err := validatePage(page, size); err != nil {
		return nil, err
	}

	days, err := s.store.HistoryDays(ctx, sellerID, size, (page-1)*size)
	if err != nil {
		return nil, fmt.Errorf("failed to load history days: %w", err)
	}
	if len(days) == 0 {
		return []models.DayBucket{}, nil
	}

	items, err := s.store.HistoryItemsByDays(ctx, sellerID, days)
	if err != nil {
		return nil, fmt.Errorf("failed to load history items: %w", err)
	}

	return bucketByDay(days, items), nil
}

// bucketByDay groups items into the given days, preserving both the day
// order and the item order. Items whose event day is not in days are
// dropped: a sale committing between the two store queries may move an
// item to a day outside the page, and it must then be absent rather than
// misfiled. Days left without items are dropped for the same reason
func bucketByDay(days []string, items []models.Item) []models.DayBucket {
	grouped := make(map[string][]models.Item, len(days))
	for _, item := range items {
		day := item.EventDay()
		grouped[day] = append(grouped[day], item)
	}

	buckets := make([]models.DayBucket, 0, len(days))
	for _, day := range days {
		if dayItems, ok := grouped[day]; ok {
			buckets = append(buckets, models.DayBucket{Date: day, Items: dayItems})
		}
	}
	return buckets
}
