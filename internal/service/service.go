// Package service holds the business logic of the goods service: the
// collect registry, the day-bucketed history aggregator, the flat item
// listings and the combined user-page view.
package service

import "github.com/jimy3k/weapp-fangxianyu/internal/apperrors"

// validatePage rejects non-positive pagination parameters.
// Page numbering starts at 1; page 1 is the most recent page
func validatePage(page, size int) error {
	if page < 1 {
		return apperrors.Newf(apperrors.CodeInvalidArgument, "page must be >= 1, got %d", page)
	}
	if size < 1 {
		return apperrors.Newf(apperrors.CodeInvalidArgument, "size must be >= 1, got %d", size)
	}
	return nil
}
