package auth

import (
	"context"
	"io"
	"net/http"
)

// contextKey is an unexported type for context keys defined in this package,
// so no other package can collide with our values.
type contextKey string

const userIDKey contextKey = "userID"

// CookieName is the session cookie the middleware reads and the auth
// handlers set.
const CookieName = "token"

// UserIDFromContext extracts the authenticated user's ID from the request
// context. The second return value reports whether a user is signed in.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// ContextWithUserID returns a context carrying the given user ID. Exposed
// for handler tests that need an authenticated request without running the
// middleware.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// RequireAuth rejects requests without a valid session cookie with 401.
// Handlers behind it can assume UserIDFromContext succeeds.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := userIDFromRequest(tokens, r)
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				io.WriteString(w, `{"success":false,"error":"authentication required"}`)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
		})
	}
}

// OptionalAuth populates the user ID when a valid session cookie is present
// but lets anonymous requests through. Used on routes that behave
// differently for signed-in users without requiring sign-in.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID, ok := userIDFromRequest(tokens, r); ok {
				r = r.WithContext(ContextWithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func userIDFromRequest(tokens *TokenService, r *http.Request) (string, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	userID, err := tokens.Validate(cookie.Value)
	if err != nil {
		return "", false
	}
	return userID, true
}
