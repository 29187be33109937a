package auth

import "errors"

// Sentinel errors returned by the signup and token-exchange flows. Handlers
// translate these with errors.Is into the HTTP error taxonomy: validation
// failures become 400s, ErrUserNotFound becomes a 404.
var (
	// ErrReservedUsername is returned when a signup requests the username "me".
	ErrReservedUsername = errors.New("username \"me\" is reserved")

	// ErrEmailExists is returned when the email is already registered under a
	// different username.
	ErrEmailExists = errors.New("email already exists")

	// ErrUsernameExists is returned when the username is already registered
	// under a different email.
	ErrUsernameExists = errors.New("username already exists")

	// ErrUserNotFound is returned by token exchange for an unknown username.
	// It is surfaced as not-found, never as a validation error.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidCode is returned when a submitted confirmation code does not
	// verify against the user's current salt, has expired, or none is
	// outstanding.
	ErrInvalidCode = errors.New("incorrect confirmation code")
)
