package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/quickpen-app/quickpen/pkg/models"
)

type contextKey string

const userContextKey contextKey = "quickpen-user"

// Middleware resolves a Bearer token into the request context. Requests
// without a valid token pass through unauthenticated; handlers that need
// an identity wrap themselves in RequireUser.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token != "" {
			user, err := s.VerifyToken(r.Context(), token)
			if err == nil {
				ctx := context.WithValue(r.Context(), userContextKey, user)
				ctx = context.WithValue(ctx, tokenContextKey, token)
				r = r.WithContext(ctx)
			}
		}
		next.ServeHTTP(w, r)
	})
}

const tokenContextKey contextKey = "quickpen-token"

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *models.SerializedUser {
	user, _ := ctx.Value(userContextKey).(*models.SerializedUser)
	return user
}

// TokenFromContext returns the bearer token the request carried, or "".
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}

// RequireUser rejects unauthenticated requests with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"authentication required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
