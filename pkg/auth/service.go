package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/critiqdev/critiq/pkg/observability"
)

// UserStore is the slice of the persistence layer the auth flows need. The
// postgres store implements it; tests substitute an in-memory fake.
//
// Lookups return (nil, nil) when no record matches. CreateUser must surface
// unique-constraint violations as ErrUsernameExists or ErrEmailExists; those
// constraints are the correctness backstop when two identical signups race.
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	CreateUser(ctx context.Context, u *User) error
	SetConfirmationSalt(ctx context.Context, username, salt string, issuedAt time.Time) error
	ClearConfirmationSalt(ctx context.Context, username string) error
}

// CodeSender delivers a confirmation code out-of-band. Implementations must
// not block the caller on delivery; the salt is already committed when this
// is called, so a delivery failure never invalidates the code.
type CodeSender interface {
	SendConfirmationCode(ctx context.Context, u *User, code string)
}

// Service wires the signup and token-exchange flows together.
type Service struct {
	users  UserStore
	codes  *ConfirmationCodeIssuer
	tokens *AccessTokenIssuer
	sender CodeSender
	logger *observability.Logger
}

// NewService creates the auth service.
func NewService(users UserStore, codes *ConfirmationCodeIssuer, tokens *AccessTokenIssuer, sender CodeSender, logger *observability.Logger) *Service {
	return &Service{
		users:  users,
		codes:  codes,
		tokens: tokens,
		sender: sender,
		logger: logger,
	}
}

// Signup registers a (username, email) pair, or re-requests a code for an
// existing pair, and dispatches a fresh confirmation code by email.
//
// The operation is idempotent for an exact pair: repeating it rotates the
// salt so only the most recent code verifies. A username or email that is
// already bound to a different counterpart is rejected.
func (s *Service) Signup(ctx context.Context, username, email string) (*User, error) {
	if username == ReservedUsername {
		return nil, ErrReservedUsername
	}

	byEmail, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up email: %w", err)
	}
	if byEmail != nil && byEmail.Username != username {
		return nil, ErrEmailExists
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to look up username: %w", err)
	}
	if user != nil && user.Email != email {
		return nil, ErrUsernameExists
	}

	if user == nil {
		user, err = s.createUser(ctx, username, email)
		if err != nil {
			return nil, err
		}
	}

	salt, err := s.codes.NewSalt()
	if err != nil {
		return nil, err
	}

	issuedAt := time.Now().UTC()
	if err := s.users.SetConfirmationSalt(ctx, username, salt, issuedAt); err != nil {
		return nil, fmt.Errorf("failed to store confirmation salt: %w", err)
	}
	user.ConfirmationSalt = salt
	user.SaltIssuedAt = &issuedAt

	code := s.codes.Generate(username, salt)
	s.sender.SendConfirmationCode(ctx, user, code)

	return user, nil
}

// createUser inserts a new active user. If an identical signup won a race and
// the insert hits a unique constraint, the existing record is re-read; a
// conflicting pair propagates the constraint error unchanged.
func (s *Service) createUser(ctx context.Context, username, email string) (*User, error) {
	now := time.Now().UTC()
	user := &User{
		Username:  username,
		Email:     email,
		Role:      RoleUser,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.users.CreateUser(ctx, user)
	if err == nil {
		return user, nil
	}

	existing, lookupErr := s.users.GetUserByUsername(ctx, username)
	if lookupErr == nil && existing != nil && existing.Email == email {
		return existing, nil
	}
	return nil, err
}

// ExchangeCode validates a submitted confirmation code and mints an access
// token. The salt is cleared on success, so each code authenticates at most
// once.
func (s *Service) ExchangeCode(ctx context.Context, username, code string) (string, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return "", fmt.Errorf("failed to look up username: %w", err)
	}
	if user == nil {
		return "", ErrUserNotFound
	}

	if err := s.codes.Verify(username, user.ConfirmationSalt, code); err != nil {
		return "", err
	}

	token, err := s.tokens.Issue(username)
	if err != nil {
		return "", err
	}

	if err := s.users.ClearConfirmationSalt(ctx, username); err != nil {
		// The token is already minted; the stale salt only widens the reuse
		// window until the purge job clears it.
		s.logger.WithError(err).WithField("username", username).
			Warn("failed to clear confirmation salt after exchange")
	}

	return token, nil
}
