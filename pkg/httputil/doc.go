// Package httputil provides HTTP utilities for standardized request and
// response handling.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteForbidden(w, "insufficient role")
//	httputil.WriteInternalError(w, err)
//
// # Request Parsing
//
//	var req CheckRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // error response already written
//	}
//	id, ok := httputil.ParsePathStringOrError(w, r, "id")
//
// # Related Packages
//
//   - pkg/middleware: identity and rate limiting middleware
package httputil
