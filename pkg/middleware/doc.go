// Package middleware provides HTTP middleware for the grove service:
// request identity resolution and Redis-backed rate limiting.
//
// Identity trusts the X-Grove-User-ID header set by the outer
// authentication layer and loads the user's memberships fresh from storage
// on every request, so revocations apply immediately.
//
//	router.Use(middleware.Identity(store))
//	...
//	user := middleware.UserFrom(r)
package middleware
