package service

import (
	"context"
	"fmt"

	"github.com/jimy3k/weapp-fangxianyu/internal/models"
)

// ListingStore is the subset of the item store the flat listings read from.
type ListingStore interface {
	ListBought(ctx context.Context, userID string, limit, offset int) ([]models.Item, error)
	ListSold(ctx context.Context, sellerID string, limit, offset int) ([]models.Item, error)
	ListPosted(ctx context.Context, sellerID string, limit, offset int) ([]models.Item, error)
	CountSold(ctx context.Context, sellerID string) (int, error)
}

// ListingService produces the flat bought/sold/posted listings. Unlike the
// history aggregator these paginate over individual items
type ListingService struct {
	store ListingStore
}

// NewListingService creates a new listing service
func NewListingService(store ListingStore) *ListingService {
	return &ListingService{store: store}
}

// ListBought returns items the user bought, most recent sale first
func (s *ListingService) ListBought(ctx context.Context, userID string, page, size int) ([]models.Item, error) {
	if err := validatePage(page, size); err != nil {
		return nil, err
	}
	items, err := s.store.ListBought(ctx, userID, size, (page-1)*size)
	if err != nil {
		return nil, fmt.Errorf("failed to list bought items: %w", err)
	}
	return nonNil(items), nil
}

// ListSold returns items the user sold, most recent sale first
func (s *ListingService) ListSold(ctx context.Context, userID string, page, size int) ([]models.Item, error) {
	if err := validatePage(page, size); err != nil {
		return nil, err
	}
	items, err := s.store.ListSold(ctx, userID, size, (page-1)*size)
	if err != nil {
		return nil, fmt.Errorf("failed to list sold items: %w", err)
	}
	return nonNil(items), nil
}

// ListPosted returns the user's live postings, most recent first. An item
// that has been sold never appears here
func (s *ListingService) ListPosted(ctx context.Context, userID string, page, size int) ([]models.Item, error) {
	if err := validatePage(page, size); err != nil {
		return nil, err
	}
	items, err := s.store.ListPosted(ctx, userID, size, (page-1)*size)
	if err != nil {
		return nil, fmt.Errorf("failed to list posted items: %w", err)
	}
	return nonNil(items), nil
}

// SoldCount returns how many items the user has ever sold. It equals the
// number of sold items across every bucket the history aggregator would
// return for the user
func (s *ListingService) SoldCount(ctx context.Context, sellerID string) (int, error) {
	count, err := s.store.CountSold(ctx, sellerID)
	if err != nil {
		return 0, fmt.Errorf("failed to count sold items: %w", err)
	}
	return count, nil
}

// nonNil keeps empty results JSON-encoding as [] instead of null
func nonNil(items []models.Item) []models.Item {
	if items == nil {
		return []models.Item{}
	}
	return items
}
