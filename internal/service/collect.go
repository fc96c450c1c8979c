package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jimy3k/weapp-fangxianyu/internal/models"
)

// CollectRegistry is the hot-path store of (user, item) collect flags.
type CollectRegistry interface {
	// Toggle applies the flag with last-writer-wins semantics on seq and
	// reports whether the write was applied.
	Toggle(ctx context.Context, userID string, itemID int64, active bool, seq int64) (bool, error)
	// ListCollected returns actively collected item IDs, newest toggle first.
	ListCollected(ctx context.Context, userID string, offset, count int64) ([]int64, error)
}

// ItemGetter is the subset of the item store the collect service reads from.
type ItemGetter interface {
	GetItem(ctx context.Context, id int64) (*models.Item, error)
	GetItemsByIDs(ctx context.Context, ids []int64) (map[int64]models.Item, error)
}

// EventPublisher sends applied collect toggles downstream.
type EventPublisher interface {
	Publish(ctx context.Context, event *models.CollectEvent) error
}

// CollectService handles collect toggles and the collected-items listing
type CollectService struct {
	registry CollectRegistry
	items    ItemGetter
	events   EventPublisher
	logger   *slog.Logger
}

// NewCollectService creates a new collect service
func NewCollectService(registry CollectRegistry, items ItemGetter, events EventPublisher, logger *slog.Logger) *CollectService {
	return &CollectService{
		registry: registry,
		items:    items,
		events:   events,
		logger:   logger,
	}
}

// Toggle sets the caller's collect flag on an item. Toggling to the state
// the entry is already in is a no-op observable from outside. The sequence
// number is taken from the wall clock here, before the registry call, so
// concurrent toggles resolve by issue order rather than arrival order
func (s *CollectService) Toggle(ctx context.Context, userID string, itemID int64, wantCollected bool) error {
	// Reject toggles on items that do not exist
	if _, err := s.items.GetItem(ctx, itemID); err != nil {
		return err
	}

	seq := time.Now().UnixNano()
	applied, err := s.registry.Toggle(ctx, userID, itemID, wantCollected, seq)
	if err != nil {
		return fmt.Errorf("failed to toggle collect: %w", err)
	}
	if !applied {
		// A toggle with a newer sequence already landed; nothing to publish
		return nil
	}

	event := &models.CollectEvent{
		EventID:   uuid.New().String(),
		UserID:    userID,
		ItemID:    itemID,
		Active:    wantCollected,
		Seq:       seq,
		Timestamp: time.Now().UTC(),
	}

	// Publish asynchronously: the toggle is already durable in the registry
	// and must not wait on the archival path
	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.events.Publish(pubCtx, event); err != nil {
			s.logger.Warn("failed to publish collect event",
				"event_id", event.EventID, "item_id", itemID, "error", err)
		}
	}()

	return nil
}

// ListCollected returns the caller's actively collected items, most
// recently toggled first. Pages past the end are empty, not an error
func (s *CollectService) ListCollected(ctx context.Context, userID string, page, size int) ([]models.Item, error) {
	if err := validatePage(page, size); err != nil {
		return nil, err
	}

	offset := int64(page-1) * int64(size)
	ids, err := s.registry.ListCollected(ctx, userID, offset, int64(size))
	if err != nil {
		return nil, fmt.Errorf("failed to list collected ids: %w", err)
	}
	if len(ids) == 0 {
		return []models.Item{}, nil
	}

	byID, err := s.items.GetItemsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load collected items: %w", err)
	}

	// Preserve registry order; drop IDs whose item row is gone
	items := make([]models.Item, 0, len(ids))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			items = append(items, item)
		}
	}
	return items, nil
}
