package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// saltLength is the number of random bytes in a confirmation salt.
	saltLength = 16
	// codeMACLen is the hex length of the truncated HMAC in a code.
	codeMACLen = 32
)

// ConfirmationCodeIssuer generates and verifies confirmation codes.
//
// A code has the form <timestamp-base36>-<hmac-hex>, where the HMAC covers
// the username, the per-issuance salt stored on the user record, and the
// timestamp. Verification is non-reversible (the code is recomputed, never
// decoded) and time-windowed: codes older than TTL fail even with a valid
// MAC. Rotating or clearing the salt invalidates every previously issued
// code.
type ConfirmationCodeIssuer struct {
	secret []byte
	ttl    time.Duration

	// now is replaceable in tests.
	now func() time.Time
}

// NewConfirmationCodeIssuer creates an issuer keyed with secret. Codes expire
// after ttl.
func NewConfirmationCodeIssuer(secret string, ttl time.Duration) (*ConfirmationCodeIssuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("confirmation code secret must not be empty")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("confirmation code ttl must be positive, got %v", ttl)
	}
	return &ConfirmationCodeIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// NewSalt generates a fresh confirmation salt for storage on the user record.
func (ci *ConfirmationCodeIssuer) NewSalt() (string, error) {
	buf := make([]byte, saltLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate confirmation salt: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Generate mints the code for the given username and stored salt.
func (ci *ConfirmationCodeIssuer) Generate(username, salt string) string {
	ts := strconv.FormatInt(ci.now().UTC().Unix(), 36)
	return ts + "-" + ci.mac(username, salt, ts)
}

// Verify checks a submitted code against the user's stored salt. It returns
// ErrInvalidCode for a malformed code, a MAC mismatch, an expired or
// future-dated timestamp, or an empty salt (no code outstanding).
func (ci *ConfirmationCodeIssuer) Verify(username, salt, code string) error {
	if salt == "" {
		return ErrInvalidCode
	}

	ts, macHex, ok := strings.Cut(code, "-")
	if !ok || macHex == "" {
		return ErrInvalidCode
	}

	issued, err := strconv.ParseInt(ts, 36, 64)
	if err != nil {
		return ErrInvalidCode
	}

	now := ci.now().UTC().Unix()
	if issued > now || now-issued > int64(ci.ttl.Seconds()) {
		return ErrInvalidCode
	}

	if !hmac.Equal([]byte(macHex), []byte(ci.mac(username, salt, ts))) {
		return ErrInvalidCode
	}

	return nil
}

func (ci *ConfirmationCodeIssuer) mac(username, salt, ts string) string {
	h := hmac.New(sha256.New, ci.secret)
	h.Write([]byte(username))
	h.Write([]byte{0})
	h.Write([]byte(salt))
	h.Write([]byte{0})
	h.Write([]byte(ts))
	return hex.EncodeToString(h.Sum(nil))[:codeMACLen]
}
