package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/critiqdev/critiq/pkg/auth"
	"github.com/critiqdev/critiq/pkg/httputil"
	"github.com/critiqdev/critiq/pkg/observability"
)

type contextKey string

// userKey contains the *auth.User resolved from the bearer token.
const userKey contextKey = "current_user"

// WithUser stores the authenticated user on the context.
func WithUser(ctx context.Context, u *auth.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// CurrentUser returns the authenticated user, or nil for anonymous
// requests.
func CurrentUser(ctx context.Context) *auth.User {
	if u, ok := ctx.Value(userKey).(*auth.User); ok {
		return u
	}
	return nil
}

// UserLoader is the user lookup the auth middleware needs.
type UserLoader interface {
	GetUserByUsername(ctx context.Context, username string) (*auth.User, error)
}

// AuthMiddleware resolves bearer tokens to users.
type AuthMiddleware struct {
	tokens *auth.AccessTokenIssuer
	users  UserLoader
	logger *observability.Logger
}

// NewAuthMiddleware creates the bearer token middleware.
func NewAuthMiddleware(tokens *auth.AccessTokenIssuer, users UserLoader, logger *observability.Logger) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users, logger: logger}
}

// Handler authenticates the request when a bearer token is present.
// The user's role is read from the store on every request, so a role
// change takes effect without reissuing the token.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		scheme, token, found := strings.Cut(authHeader, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		username, err := m.tokens.Parse(token)
		if err != nil {
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		u, err := m.users.GetUserByUsername(r.Context(), username)
		if err != nil {
			m.logger.WithError(err).WithField("username", username).Error("failed to load user for token")
			httputil.WriteInternalError(w)
			return
		}
		if u == nil || !u.IsActive {
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := WithUser(r.Context(), u)
		ctx = observability.WithUsername(ctx, u.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
