package api

import (
	"errors"
	"net/http"

	"github.com/critiqdev/critiq/pkg/auth"
	"github.com/critiqdev/critiq/pkg/httputil"
	"github.com/critiqdev/critiq/pkg/observability"
)

// signup handles POST /v1/auth/signup. Always 200 on success, whether
// the user is new or re-requesting a code.
func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	fields := map[string]string{}
	if err := validateUsername(req.Username); err != nil {
		fields["username"] = err.Error()
	}
	if err := validateEmail(req.Email); err != nil {
		fields["email"] = err.Error()
	}
	if len(fields) > 0 {
		httputil.WriteFieldErrors(w, fields)
		return
	}

	u, err := s.authService.Signup(r.Context(), req.Username, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrReservedUsername),
			errors.Is(err, auth.ErrUsernameExists),
			errors.Is(err, auth.ErrEmailExists):
			s.countSignup("rejected")
			httputil.WriteValidationError(w, err.Error())
		default:
			observability.FromContext(r.Context()).WithError(err).Error("signup failed")
			s.countSignup("error")
			httputil.WriteInternalError(w)
		}
		return
	}

	s.countSignup("ok")
	httputil.WriteSuccess(w, signupResponse{Username: u.Username, Email: u.Email})
}

// exchangeToken handles POST /v1/auth/token.
func (s *Server) exchangeToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Username == "" {
		httputil.WriteValidationError(w, "username is required")
		return
	}
	if req.ConfirmationCode == "" {
		httputil.WriteValidationError(w, "confirmation_code is required")
		return
	}

	token, err := s.authService.ExchangeCode(r.Context(), req.Username, req.ConfirmationCode)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound):
			s.countExchange("unknown_user")
			httputil.WriteNotFound(w, "user not found")
		case errors.Is(err, auth.ErrInvalidCode):
			s.countExchange("invalid_code")
			httputil.WriteValidationError(w, "incorrect confirmation code")
		default:
			observability.FromContext(r.Context()).WithError(err).Error("token exchange failed")
			s.countExchange("error")
			httputil.WriteInternalError(w)
		}
		return
	}

	s.countExchange("ok")
	httputil.WriteSuccess(w, tokenResponse{Username: req.Username, Token: token})
}

func (s *Server) countSignup(status string) {
	if s.metrics != nil {
		s.metrics.SignupsTotal.WithLabelValues(status).Inc()
	}
}

func (s *Server) countExchange(status string) {
	if s.metrics != nil {
		s.metrics.TokenExchangesTotal.WithLabelValues(status).Inc()
	}
}
