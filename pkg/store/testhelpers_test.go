package store

import (
	"context"
	"database/sql"
	"io"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/critiqdev/critiq/pkg/auth"
	"github.com/critiqdev/critiq/pkg/observability"
)

// setupTestDB opens an in-memory sqlite database with a schema mirroring
// the production migrations.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		PRAGMA foreign_keys = ON;

		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			bio TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'user',
			is_active INTEGER NOT NULL DEFAULT 1,
			confirmation_salt TEXT NOT NULL DEFAULT '',
			salt_issued_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);

		CREATE TABLE categories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE
		);

		CREATE TABLE genres (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE
		);

		CREATE TABLE titles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			year INTEGER NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			category_id INTEGER REFERENCES categories(id) ON DELETE SET NULL
		);

		CREATE TABLE title_genres (
			title_id INTEGER NOT NULL REFERENCES titles(id) ON DELETE CASCADE,
			genre_id INTEGER NOT NULL REFERENCES genres(id) ON DELETE CASCADE,
			PRIMARY KEY (title_id, genre_id)
		);

		CREATE TABLE reviews (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title_id INTEGER NOT NULL REFERENCES titles(id) ON DELETE CASCADE,
			author_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			text TEXT NOT NULL,
			score INTEGER NOT NULL,
			pub_date TIMESTAMP NOT NULL,
			UNIQUE(title_id, author_id)
		);

		CREATE TABLE comments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			review_id INTEGER NOT NULL REFERENCES reviews(id) ON DELETE CASCADE,
			author_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			text TEXT NOT NULL,
			pub_date TIMESTAMP NOT NULL
		);
	`)
	require.NoError(t, err)
	return db
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	return New(setupTestDB(t), logger, opts...)
}

func createTestUser(t *testing.T, s *Store, username string) *auth.User {
	t.Helper()
	u := &auth.User{
		Username: username,
		Email:    username + "@example.com",
		Role:     auth.RoleUser,
		IsActive: true,
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func createTestTitle(t *testing.T, s *Store, name string, year int) *Title {
	t.Helper()
	title := &Title{Name: name, Year: year}
	require.NoError(t, s.CreateTitle(context.Background(), title, "", nil))
	return title
}
