package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/clinsim-ai/clinsim/internal/api"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// UserAuth identifies the learner from the bearer token. Token verification
// happens upstream; here the token carries the user id directly.
func UserAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			api.Error(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			api.Error(w, http.StatusUnauthorized, "invalid authorization format")
			return
		}

		userID := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if userID == "" {
			api.Error(w, http.StatusUnauthorized, "empty bearer token")
			return
		}

		r.Header.Set("X-User-ID", userID)
		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}
