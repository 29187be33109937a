// Package store persists users, the catalog (categories, genres, titles)
// and the review tree (reviews, comments) in PostgreSQL.
//
// The Store is a thin layer over database/sql with hand-written queries.
// Lookups return (nil, nil) when no row matches; callers decide whether
// absence is an error. Unique constraint violations on insert are mapped
// to typed errors (auth.ErrUsernameExists, auth.ErrEmailExists,
// ErrAlreadyReviewed) so handlers can translate them without inspecting
// driver internals.
//
// Catalog reads can optionally be served from an in-process expiring LRU
// cache; any catalog write invalidates the affected entries.
package store
