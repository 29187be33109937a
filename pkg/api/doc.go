// Package api exposes the HTTP surface: passwordless signup and token
// exchange under /v1/auth, user administration under /v1/users, and the
// catalog/review tree under /v1/categories, /v1/genres and /v1/titles.
//
// Every handler runs the same access check: it builds an authorization
// request from the caller's identity (resolved by the auth middleware)
// and the targeted resource, and asks the access engine for a verdict.
// Denials map to 401 for anonymous callers and 403 for authenticated
// ones. The one check handlers make outside the engine is role
// assignment on user records, which only admins may perform.
package api
