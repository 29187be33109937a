package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenIssuer mints and parses the signed bearer tokens handed out by
// token exchange. Tokens are stateless: validity is signature plus expiry,
// nothing is persisted server-side.
type AccessTokenIssuer struct {
	secret []byte
	ttl    time.Duration

	now func() time.Time
}

// NewAccessTokenIssuer creates an issuer signing with secret. Tokens expire
// after ttl.
func NewAccessTokenIssuer(secret string, ttl time.Duration) (*AccessTokenIssuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("token signing secret must not be empty")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %v", ttl)
	}
	return &AccessTokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue signs a token whose subject is the username. The role is deliberately
// not embedded: it is re-read from the store on every request so moderation
// actions always see the current role.
func (ti *AccessTokenIssuer) Issue(username string) (string, error) {
	now := ti.now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// ErrInvalidToken is returned by Parse for any token that does not verify:
// bad signature, wrong signing method, expired, or malformed.
var ErrInvalidToken = errors.New("invalid or expired token")

// Parse validates a bearer token and returns the embedded username.
func (ti *AccessTokenIssuer) Parse(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return ti.secret, nil
	}, jwt.WithTimeFunc(ti.now))
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}
