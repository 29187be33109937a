package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodeIssuer(t *testing.T, ttl time.Duration) *ConfirmationCodeIssuer {
	t.Helper()
	ci, err := NewConfirmationCodeIssuer("test-secret", ttl)
	require.NoError(t, err)
	return ci
}

func TestNewConfirmationCodeIssuerValidation(t *testing.T) {
	_, err := NewConfirmationCodeIssuer("", time.Hour)
	assert.Error(t, err)

	_, err = NewConfirmationCodeIssuer("secret", 0)
	assert.Error(t, err)

	_, err = NewConfirmationCodeIssuer("secret", -time.Minute)
	assert.Error(t, err)
}

func TestConfirmationCodeRoundTrip(t *testing.T) {
	ci := newTestCodeIssuer(t, time.Hour)

	salt, err := ci.NewSalt()
	require.NoError(t, err)
	require.NotEmpty(t, salt)

	code := ci.Generate("alice", salt)
	assert.NoError(t, ci.Verify("alice", salt, code))
}

func TestConfirmationCodeRejections(t *testing.T) {
	ci := newTestCodeIssuer(t, time.Hour)
	salt, err := ci.NewSalt()
	require.NoError(t, err)
	code := ci.Generate("alice", salt)

	cases := []struct {
		name     string
		username string
		salt     string
		code     string
	}{
		{"wrong username", "bob", salt, code},
		{"wrong salt", "alice", "other-salt", code},
		{"empty salt means no code outstanding", "alice", "", code},
		{"malformed code", "alice", salt, "garbage"},
		{"empty code", "alice", salt, ""},
		{"missing mac", "alice", salt, "abc-"},
		{"bad timestamp", "alice", salt, "!!!-deadbeef"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, ci.Verify(tc.username, tc.salt, tc.code), ErrInvalidCode)
		})
	}
}

func TestConfirmationCodeExpiry(t *testing.T) {
	ci := newTestCodeIssuer(t, time.Hour)
	salt, err := ci.NewSalt()
	require.NoError(t, err)

	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ci.now = func() time.Time { return issued }
	code := ci.Generate("alice", salt)

	// still valid right before the window closes
	ci.now = func() time.Time { return issued.Add(time.Hour) }
	assert.NoError(t, ci.Verify("alice", salt, code))

	// expired just past it
	ci.now = func() time.Time { return issued.Add(time.Hour + time.Second) }
	assert.ErrorIs(t, ci.Verify("alice", salt, code), ErrInvalidCode)
}

func TestConfirmationCodeFutureDatedRejected(t *testing.T) {
	ci := newTestCodeIssuer(t, time.Hour)
	salt, err := ci.NewSalt()
	require.NoError(t, err)

	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ci.now = func() time.Time { return issued }
	code := ci.Generate("alice", salt)

	ci.now = func() time.Time { return issued.Add(-time.Minute) }
	assert.ErrorIs(t, ci.Verify("alice", salt, code), ErrInvalidCode)
}

func TestSaltRotationInvalidatesOldCodes(t *testing.T) {
	ci := newTestCodeIssuer(t, time.Hour)

	first, err := ci.NewSalt()
	require.NoError(t, err)
	oldCode := ci.Generate("alice", first)

	second, err := ci.NewSalt()
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	assert.ErrorIs(t, ci.Verify("alice", second, oldCode), ErrInvalidCode)
	assert.NoError(t, ci.Verify("alice", second, ci.Generate("alice", second)))
}
