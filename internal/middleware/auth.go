package middleware

import (
	"context"
	"strings"

	"connectrpc.com/connect"

	"github.com/rewear/rewear/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// UserIDKey is the context key for storing the authenticated user ID.
	UserIDKey contextKey = "user_id"
	// UsernameKey is the context key for storing the authenticated username.
	UsernameKey contextKey = "username"
)

// GetUserID extracts the user ID from the context.
// Returns empty string if not found.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}

// GetUsername extracts the username from the context.
// Returns empty string if not found.
func GetUsername(ctx context.Context) string {
	username, _ := ctx.Value(UsernameKey).(string)
	return username
}

// WithIdentity returns a copy of ctx carrying the given caller.
func WithIdentity(ctx context.Context, id *auth.Identity) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, id.UserID)
	return context.WithValue(ctx, UsernameKey, id.Username)
}

func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// RequireAuth returns a middleware that validates bearer tokens and requires authentication.
// It extracts the token from the Authorization header, verifies it with the
// authenticator, and adds the caller to the request context.
func RequireAuth(authenticator auth.Authenticator) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			authHeader := req.Header().Get("Authorization")
			if authHeader == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
			}

			token, ok := bearerToken(authHeader)
			if !ok {
				return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidToken)
			}

			identity, err := authenticator.Authenticate(ctx, token)
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}

			return next(WithIdentity(ctx, identity), req)
		}
	}
}

// OptionalAuth returns a middleware that validates bearer tokens if present, but allows
// requests without authentication. Handlers then trust the user IDs carried in
// the request body, which is only suitable for local development.
func OptionalAuth(authenticator auth.Authenticator) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if token, ok := bearerToken(req.Header().Get("Authorization")); ok {
				// Ignore errors - optional auth
				if identity, err := authenticator.Authenticate(ctx, token); err == nil {
					ctx = WithIdentity(ctx, identity)
				}
			}
			return next(ctx, req)
		}
	}
}
