package api

import (
	"errors"
	"net/http"

	"github.com/critiqdev/critiq/pkg/authz"
	"github.com/critiqdev/critiq/pkg/httputil"
	"github.com/critiqdev/critiq/pkg/middleware"
	"github.com/critiqdev/critiq/pkg/observability"
	"github.com/critiqdev/critiq/pkg/store"
)

// authorize runs the access check for the current caller. On denial it
// writes 401 for anonymous callers and 403 for authenticated ones, and
// returns false.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, resource authz.Resource, action authz.Action, owner bool) bool {
	req := authz.Request{
		Resource: resource,
		Action:   action,
		Owner:    owner,
	}
	if u := middleware.CurrentUser(r.Context()); u != nil {
		req.Authenticated = true
		req.Role = u.Role
	}

	decision := authz.Authorize(req)
	if decision.Allowed {
		return true
	}

	observability.FromContext(r.Context()).WithFields(map[string]interface{}{
		"resource": string(resource),
		"action":   string(action),
		"reason":   decision.Reason,
	}).Debug("access denied")
	if s.metrics != nil {
		s.metrics.AuthzDeniedTotal.WithLabelValues(string(resource), string(action)).Inc()
	}

	if !req.Authenticated {
		httputil.WriteUnauthorized(w, "authentication required")
	} else {
		httputil.WriteForbidden(w, "you do not have permission to perform this action")
	}
	return false
}

// writeStoreError maps storage failures onto the response envelope.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		httputil.WriteNotFound(w, "not found")
	case errors.Is(err, store.ErrSlugExists):
		httputil.WriteValidationError(w, "slug already exists")
	case errors.Is(err, store.ErrBadReference):
		httputil.WriteValidationError(w, err.Error())
	case errors.Is(err, store.ErrAlreadyReviewed):
		httputil.WriteValidationError(w, "you have already reviewed this title")
	default:
		observability.FromContext(r.Context()).WithError(err).Error("storage operation failed")
		httputil.WriteInternalError(w)
	}
}
