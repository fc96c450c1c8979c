package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/jimy3k/weapp-fangxianyu/internal/apperrors"
)

// Authenticator resolves a bearer token to a user ID. An empty user ID
// with a nil error means the token is unknown or expired.
type Authenticator interface {
	ResolveSession(ctx context.Context, token string) (string, error)
}

type contextKey string

const userIDKey contextKey = "user_id"

// UserID returns the authenticated caller's ID from the request context,
// or an empty string on unauthenticated requests
func UserID(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

// requireUser rejects requests without a valid bearer token and injects
// the resolved user ID into the request context for the handlers below it
func requireUser(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				respondError(w, apperrors.New(apperrors.CodeUnauthenticated, "missing bearer token"))
				return
			}

			userID, err := auth.ResolveSession(r.Context(), token)
			if err != nil {
				respondError(w, apperrors.Wrap(apperrors.CodeInternal, "failed to resolve session", err))
				return
			}
			if userID == "" {
				respondError(w, apperrors.New(apperrors.CodeUnauthenticated, "invalid or expired token"))
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
