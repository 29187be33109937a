package store

import (
	"errors"
	"strings"

	"github.com/lib/pq"

	"github.com/critiqdev/critiq/pkg/auth"
)

var (
	// ErrNotFound is returned by mutating operations whose target row
	// does not exist. Read operations return (nil, nil) instead.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyReviewed is returned when an author attempts a second
	// review of the same title.
	ErrAlreadyReviewed = errors.New("you have already reviewed this title")

	// ErrSlugExists is returned when a category or genre slug is taken.
	ErrSlugExists = errors.New("slug already exists")
)

// sqliteConstraintText maps PostgreSQL constraint names to the column
// reference sqlite prints for the same violation. Only needed because
// the test suite runs the store against in-memory sqlite.
var sqliteConstraintText = map[string]string{
	"users_username_key":             "users.username",
	"users_email_key":                "users.email",
	"categories_slug_key":            "categories.slug",
	"genres_slug_key":                "genres.slug",
	"reviews_title_id_author_id_key": "reviews.title_id",
}

// uniqueViolation reports whether err is a unique constraint violation,
// optionally on a specific constraint.
func uniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code != "23505" {
			return false
		}
		return constraint == "" || pqErr.Constraint == constraint
	}
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return constraint == "" || strings.Contains(err.Error(), sqliteConstraintText[constraint])
	}
	return false
}

// mapUserInsertError translates driver-level conflicts on the users table
// into the signup error taxonomy. Constraint names follow the PostgreSQL
// default of <table>_<column>_key.
func mapUserInsertError(err error) error {
	switch {
	case uniqueViolation(err, "users_username_key"):
		return auth.ErrUsernameExists
	case uniqueViolation(err, "users_email_key"):
		return auth.ErrEmailExists
	default:
		return err
	}
}
