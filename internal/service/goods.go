package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/jimy3k/weapp-fangxianyu/internal/apperrors"
	"github.com/jimy3k/weapp-fangxianyu/internal/models"
)

// GoodsStore is the subset of the item store the posting/buying flows use.
type GoodsStore interface {
	GetItem(ctx context.Context, id int64) (*models.Item, error)
	CreateItem(ctx context.Context, item *models.Item) error
	MarkSold(ctx context.Context, itemID int64, buyerID string) (bool, error)
}

// GoodsService handles posting new items and the purchase transition
type GoodsService struct {
	store GoodsStore
}

// NewGoodsService creates a new goods service
func NewGoodsService(store GoodsStore) *GoodsService {
	return &GoodsService{store: store}
}

// Post creates a new live posting for the seller
func (s *GoodsService) Post(ctx context.Context, sellerID, title, description string, price float64) (*models.Item, error) {
	if strings.TrimSpace(title) == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "title must not be empty")
	}
	if price < 0 {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "price must not be negative, got %v", price)
	}

	item := &models.Item{
		SellerID:    sellerID,
		Title:       strings.TrimSpace(title),
		Description: description,
		Price:       price,
	}
	if err := s.store.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}
	return item, nil
}

// Buy performs the one-way Posted -> Sold transition for the buyer. The
// store applies it atomically, so at most one of two concurrent purchases
// succeeds; the loser sees the already-sold error
func (s *GoodsService) Buy(ctx context.Context, buyerID string, itemID int64) (*models.Item, error) {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.SellerID == buyerID {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "cannot buy your own item")
	}
	if item.Sold() {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "item %d is already sold", itemID)
	}

	sold, err := s.store.MarkSold(ctx, itemID, buyerID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark item sold: %w", err)
	}
	if !sold {
		// Lost the race to another buyer between the read and the update
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "item %d is already sold", itemID)
	}

	return s.store.GetItem(ctx, itemID)
}
