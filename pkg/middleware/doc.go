// Package middleware provides the request-scoped layers mounted around
// API handlers: bearer token authentication and Redis-backed rate
// limiting for the auth endpoints.
//
// Authentication is pass-through for anonymous requests. A missing
// Authorization header leaves the request unauthenticated and lets the
// handler's own access checks decide; a present but invalid token is
// rejected immediately with 401 so clients never operate on a silently
// ignored credential.
package middleware
