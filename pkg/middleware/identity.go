package middleware

import (
	"context"
	"net/http"

	"github.com/groveauth/grove/pkg/hierarchy"
	"github.com/groveauth/grove/pkg/httputil"
)

// UserIDHeader carries the authenticated principal from the outer auth
// layer. Session and token validation happen before requests reach this
// service; the header is trusted.
const UserIDHeader = "X-Grove-User-ID"

// userContextKey is the context key for the resolved user
type userContextKey struct{}

// UserSource loads a user and their memberships. hierarchy.Store satisfies
// it.
type UserSource interface {
	GetUsers(ctx context.Context, ids []string) ([]hierarchy.User, error)
	MembershipsForUser(ctx context.Context, userID string) ([]hierarchy.Membership, error)
}

// Identity resolves the authenticated user and pre-loads their memberships
// from current storage on every request. Nothing is cached between
// requests: a revoked membership takes effect on the next call.
func Identity(source UserSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get(UserIDHeader)
			if userID == "" {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			ctx := r.Context()
			users, err := source.GetUsers(ctx, []string{userID})
			if err != nil {
				httputil.WriteInternalError(w, err)
				return
			}
			if len(users) == 0 {
				httputil.WriteUnauthorized(w, "unknown user")
				return
			}

			user := users[0]
			user.Memberships, err = source.MembershipsForUser(ctx, userID)
			if err != nil {
				httputil.WriteInternalError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(
				context.WithValue(ctx, userContextKey{}, &user)))
		})
	}
}

// UserFrom returns the resolved user from the request context, or nil
func UserFrom(r *http.Request) *hierarchy.User {
	user, _ := r.Context().Value(userContextKey{}).(*hierarchy.User)
	return user
}

// WithUser returns a context carrying the given user, for tests and
// internal callers
func WithUser(ctx context.Context, user *hierarchy.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}
