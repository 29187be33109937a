package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/critiqdev/critiq/pkg/auth"
)

const userColumns = `id, username, email, first_name, last_name, bio, role, is_active,
	confirmation_salt, salt_issued_at, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*auth.User, error) {
	var u auth.User
	var saltIssuedAt sql.NullTime
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.Bio,
		&u.Role,
		&u.IsActive,
		&u.ConfirmationSalt,
		&saltIssuedAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	if saltIssuedAt.Valid {
		t := saltIssuedAt.Time
		u.SaltIssuedAt = &t
	}
	return &u, nil
}

// GetUserByUsername looks a user up by username. Returns (nil, nil) when
// no such user exists.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*auth.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE username = $1", userColumns)
	return scanUser(s.db.QueryRowContext(ctx, query, username))
}

// GetUserByEmail looks a user up by email. Returns (nil, nil) when no
// such user exists.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE email = $1", userColumns)
	return scanUser(s.db.QueryRowContext(ctx, query, email))
}

// CreateUser inserts a new user. Unique violations on username or email
// come back as auth.ErrUsernameExists / auth.ErrEmailExists.
func (s *Store) CreateUser(ctx context.Context, u *auth.User) error {
	if u.Role == "" {
		u.Role = auth.RoleUser
	}
	now := s.now().UTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, first_name, last_name, bio, role, is_active, confirmation_salt, salt_issued_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`,
		u.Username, u.Email, u.FirstName, u.LastName, u.Bio, string(u.Role),
		u.IsActive, u.ConfirmationSalt, u.SaltIssuedAt, now, now,
	).Scan(&u.ID)
	if err != nil {
		return mapUserInsertError(err)
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

// UpdateUser persists profile fields and role for an existing user.
func (s *Store) UpdateUser(ctx context.Context, u *auth.User) error {
	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET email = $1, first_name = $2, last_name = $3, bio = $4, role = $5, is_active = $6, updated_at = $7
		WHERE username = $8
	`, u.Email, u.FirstName, u.LastName, u.Bio, string(u.Role), u.IsActive, now, u.Username)
	if err != nil {
		return mapUserInsertError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	u.UpdatedAt = now
	return nil
}

// DeactivateUser soft-deletes a user. Rows are kept so reviews and
// comments retain their author.
func (s *Store) DeactivateUser(ctx context.Context, username string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET is_active = FALSE, updated_at = $1 WHERE username = $2",
		s.now().UTC(), username)
	if err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUsers returns users ordered by username with limit/offset paging.
func (s *Store) ListUsers(ctx context.Context, limit, offset int) ([]*auth.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users ORDER BY username LIMIT $1 OFFSET $2", userColumns)
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SetConfirmationSalt stores a freshly rotated confirmation salt.
func (s *Store) SetConfirmationSalt(ctx context.Context, username, salt string, issuedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET confirmation_salt = $1, salt_issued_at = $2, updated_at = $3 WHERE username = $4",
		salt, issuedAt.UTC(), s.now().UTC(), username)
	if err != nil {
		return fmt.Errorf("failed to set confirmation salt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set confirmation salt: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearConfirmationSalt invalidates any outstanding confirmation code.
func (s *Store) ClearConfirmationSalt(ctx context.Context, username string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET confirmation_salt = '', salt_issued_at = NULL, updated_at = $1 WHERE username = $2",
		s.now().UTC(), username)
	if err != nil {
		return fmt.Errorf("failed to clear confirmation salt: %w", err)
	}
	return nil
}

// PurgeExpiredSalts clears confirmation salts issued before cutoff. Run
// periodically so stale codes cannot linger past their window.
func (s *Store) PurgeExpiredSalts(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET confirmation_salt = '', salt_issued_at = NULL, updated_at = $1
		WHERE salt_issued_at IS NOT NULL AND salt_issued_at < $2
	`, s.now().UTC(), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired salts: %w", err)
	}
	return res.RowsAffected()
}
