// Package api wires the authorization engine and auto-join management into
// an HTTP route table. Handlers stay thin: parse, authorize, delegate to
// pkg/hierarchy or pkg/autojoin, and map domain errors to status codes.
package api
