package store

import (
	"database/sql"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/critiqdev/critiq/pkg/observability"
)

// Store handles persistence for users, the catalog and reviews.
type Store struct {
	db     *sql.DB
	logger *observability.Logger
	cache  *catalogCache
	now    func() time.Time

	// titleLoads collapses concurrent cache-miss loads of the same title.
	titleLoads singleflight.Group
}

// Option configures a Store.
type Option func(*Store)

// WithCatalogCache enables the in-process catalog read cache.
func WithCatalogCache(size int, ttl time.Duration, metrics *observability.Metrics) Option {
	return func(s *Store) {
		s.cache = newCatalogCache(size, ttl, metrics)
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a Store on top of an open database handle.
func New(db *sql.DB, logger *observability.Logger, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}
