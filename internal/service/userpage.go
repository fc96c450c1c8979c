package service

import (
	"context"

	"github.com/jimy3k/weapp-fangxianyu/internal/models"
)

// UserStore looks up user profiles.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// UserPageService assembles the public user-page views
type UserPageService struct {
	users   UserStore
	history *HistoryService
	listing *ListingService
}

// NewUserPageService creates a new user page service
func NewUserPageService(users UserStore, history *HistoryService, listing *ListingService) *UserPageService {
	return &UserPageService{
		users:   users,
		history: history,
		listing: listing,
	}
}

// GetUserPage returns the combined user-page view: the profile, the sold
// count and one page of day-bucketed history. Fails with USER_NOT_FOUND
// when the user has no profile
func (s *UserPageService) GetUserPage(ctx context.Context, userID string, page, size int) (*models.UserPage, error) {
	if err := validatePage(page, size); err != nil {
		return nil, err
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	soldCount, err := s.listing.SoldCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	history, err := s.history.GetUserHistory(ctx, userID, page, size)
	if err != nil {
		return nil, err
	}

	return &models.UserPage{
		User:      *user,
		SoldCount: soldCount,
		History:   history,
	}, nil
}

// GetUserPageMore returns further pages of the day-bucketed history only
func (s *UserPageService) GetUserPageMore(ctx context.Context, userID string, page, size int) ([]models.DayBucket, error) {
	return s.history.GetUserHistory(ctx, userID, page, size)
}
