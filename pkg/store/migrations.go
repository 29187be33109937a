package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is a single versioned schema change.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns all schema migrations in order.
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					username VARCHAR(150) NOT NULL,
					email VARCHAR(254) NOT NULL,
					first_name VARCHAR(150) NOT NULL DEFAULT '',
					last_name VARCHAR(150) NOT NULL DEFAULT '',
					bio TEXT NOT NULL DEFAULT '',
					role VARCHAR(16) NOT NULL DEFAULT 'user',
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					confirmation_salt VARCHAR(64) NOT NULL DEFAULT '',
					salt_issued_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL,
					updated_at TIMESTAMPTZ NOT NULL,
					CONSTRAINT users_username_key UNIQUE (username),
					CONSTRAINT users_email_key UNIQUE (email)
				);
				CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);
			`,
		},
		{
			Version:     2,
			Description: "Create categories and genres tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS categories (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(256) NOT NULL,
					slug VARCHAR(50) NOT NULL,
					CONSTRAINT categories_slug_key UNIQUE (slug)
				);

				CREATE TABLE IF NOT EXISTS genres (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(256) NOT NULL,
					slug VARCHAR(50) NOT NULL,
					CONSTRAINT genres_slug_key UNIQUE (slug)
				);
			`,
		},
		{
			Version:     3,
			Description: "Create titles table and genre link table",
			SQL: `
				CREATE TABLE IF NOT EXISTS titles (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(256) NOT NULL,
					year INT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					category_id BIGINT REFERENCES categories(id) ON DELETE SET NULL
				);
				CREATE INDEX IF NOT EXISTS idx_titles_year ON titles(year);
				CREATE INDEX IF NOT EXISTS idx_titles_category ON titles(category_id);

				CREATE TABLE IF NOT EXISTS title_genres (
					title_id BIGINT NOT NULL REFERENCES titles(id) ON DELETE CASCADE,
					genre_id BIGINT NOT NULL REFERENCES genres(id) ON DELETE CASCADE,
					PRIMARY KEY (title_id, genre_id)
				);
			`,
		},
		{
			Version:     4,
			Description: "Create reviews and comments tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS reviews (
					id BIGSERIAL PRIMARY KEY,
					title_id BIGINT NOT NULL REFERENCES titles(id) ON DELETE CASCADE,
					author_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					text TEXT NOT NULL,
					score INT NOT NULL CHECK (score >= 1 AND score <= 10),
					pub_date TIMESTAMPTZ NOT NULL,
					CONSTRAINT reviews_title_id_author_id_key UNIQUE (title_id, author_id)
				);
				CREATE INDEX IF NOT EXISTS idx_reviews_title ON reviews(title_id);

				CREATE TABLE IF NOT EXISTS comments (
					id BIGSERIAL PRIMARY KEY,
					review_id BIGINT NOT NULL REFERENCES reviews(id) ON DELETE CASCADE,
					author_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					text TEXT NOT NULL,
					pub_date TIMESTAMPTZ NOT NULL
				);
				CREATE INDEX IF NOT EXISTS idx_comments_review ON comments(review_id);
			`,
		},
	}
}

// RunMigrations applies all pending migrations inside transactions,
// tracking applied versions in schema_migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}
	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read migration versions: %w", err)
	}

	for _, m := range Migrations() {
		if applied[m.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
