package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignupAndTokenFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "POST", "/v1/auth/signup", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, "alice", resp.Username)
	assert.Equal(t, "alice@example.com", resp.Email)

	code := env.sender.codeFor("alice")
	require.NotEmpty(t, code)

	rec = env.do(t, "POST", "/v1/auth/token", map[string]string{
		"username":          "alice",
		"confirmation_code": code,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var tokenResp struct {
		Username string `json:"username"`
		Token    string `json:"token"`
	}
	decode(t, rec, &tokenResp)
	assert.Equal(t, "alice", tokenResp.Username)
	assert.NotEmpty(t, tokenResp.Token)

	// the token authenticates requests
	rec = env.do(t, "GET", "/v1/users/me", nil, tokenResp.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSignupValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		body map[string]string
	}{
		{"missing username", map[string]string{"email": "a@example.com"}},
		{"missing email", map[string]string{"username": "alice"}},
		{"bad email", map[string]string{"username": "alice", "email": "not-an-email"}},
		{"bad username chars", map[string]string{"username": "al ice", "email": "a@example.com"}},
		{"reserved username", map[string]string{"username": "me", "email": "me@example.com"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, "POST", "/v1/auth/signup", tc.body, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestSignupReportsFieldErrors(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "POST", "/v1/auth/signup", map[string]string{
		"username": "al ice",
		"email":    "not-an-email",
	}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Fields map[string]string `json:"fields"`
	}
	decode(t, rec, &resp)
	assert.Contains(t, resp.Fields, "username")
	assert.Contains(t, resp.Fields, "email")
}

func TestSignupConflicts(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")

	// same username, different email
	rec := env.do(t, "POST", "/v1/auth/signup", map[string]string{
		"username": "alice",
		"email":    "other@example.com",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// same email, different username
	rec = env.do(t, "POST", "/v1/auth/signup", map[string]string{
		"username": "alice2",
		"email":    "alice@example.com",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignupIdempotentRotatesCode(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]string{"username": "alice", "email": "alice@example.com"}
	rec := env.do(t, "POST", "/v1/auth/signup", body, "")
	require.Equal(t, http.StatusOK, rec.Code)
	first := env.sender.codeFor("alice")

	rec = env.do(t, "POST", "/v1/auth/signup", body, "")
	require.Equal(t, http.StatusOK, rec.Code)
	second := env.sender.codeFor("alice")
	require.NotEmpty(t, second)
	require.NotEqual(t, first, second)

	// only the latest code verifies
	rec = env.do(t, "POST", "/v1/auth/token", map[string]string{
		"username": "alice", "confirmation_code": first,
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "POST", "/v1/auth/token", map[string]string{
		"username": "alice", "confirmation_code": second,
	}, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTokenExchangeErrors(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, "POST", "/v1/auth/signup", map[string]string{
		"username": "alice", "email": "alice@example.com",
	}, "")
	code := env.sender.codeFor("alice")

	t.Run("unknown user is 404", func(t *testing.T) {
		rec := env.do(t, "POST", "/v1/auth/token", map[string]string{
			"username": "nobody", "confirmation_code": code,
		}, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("wrong code is 400", func(t *testing.T) {
		rec := env.do(t, "POST", "/v1/auth/token", map[string]string{
			"username": "alice", "confirmation_code": "bogus",
		}, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing fields are 400", func(t *testing.T) {
		rec := env.do(t, "POST", "/v1/auth/token", map[string]string{"username": "alice"}, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = env.do(t, "POST", "/v1/auth/token", map[string]string{"confirmation_code": code}, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("code is single use", func(t *testing.T) {
		rec := env.do(t, "POST", "/v1/auth/token", map[string]string{
			"username": "alice", "confirmation_code": code,
		}, "")
		require.Equal(t, http.StatusOK, rec.Code)

		rec = env.do(t, "POST", "/v1/auth/token", map[string]string{
			"username": "alice", "confirmation_code": code,
		}, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSignupRejectsMalformedBody(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "POST", "/v1/auth/signup", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
