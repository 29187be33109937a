package api

import (
	"net/http"

	"github.com/critiqdev/critiq/pkg/auth"
	"github.com/critiqdev/critiq/pkg/authz"
	"github.com/critiqdev/critiq/pkg/httputil"
	"github.com/critiqdev/critiq/pkg/middleware"
	"github.com/critiqdev/critiq/pkg/store"
)

// listUsers handles GET /v1/users. Requires authentication.
func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, authz.ResourceUsers, authz.ActionRead, false) {
		return
	}

	limit, offset := paging(r)
	users, err := s.store.ListUsers(r.Context(), limit, offset)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	results := make([]userResponse, 0, len(users))
	for _, u := range users {
		results = append(results, toUserResponse(u))
	}
	httputil.WriteSuccess(w, newListResponse(results, len(results)))
}

// createUser handles POST /v1/users. Unlike signup it sends no
// confirmation code, and an admin may set any role directly.
func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, authz.ResourceUsers, authz.ActionCreate, false) {
		return
	}

	var req userCreateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := validateUsername(req.Username); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	if req.Username == auth.ReservedUsername {
		httputil.WriteValidationError(w, auth.ErrReservedUsername.Error())
		return
	}
	if err := validateEmail(req.Email); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	role := auth.RoleUser
	if req.Role != "" && req.Role != string(auth.RoleUser) {
		// Role elevation is an admin-only capability.
		if caller := middleware.CurrentUser(r.Context()); caller == nil || !caller.IsAdmin() {
			httputil.WriteForbidden(w, "only admins can assign roles")
			return
		}
		parsed, ok := auth.ParseRole(req.Role)
		if !ok {
			httputil.WriteValidationError(w, "unknown role")
			return
		}
		role = parsed
	}

	u := &auth.User{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Bio:       req.Bio,
		Role:      role,
		IsActive:  true,
	}
	if err := s.store.CreateUser(r.Context(), u); err != nil {
		switch err {
		case auth.ErrUsernameExists, auth.ErrEmailExists:
			httputil.WriteValidationError(w, err.Error())
		default:
			s.writeStoreError(w, r, err)
		}
		return
	}

	httputil.WriteCreated(w, toUserResponse(u))
}

// getMe handles GET /v1/users/me.
func (s *Server) getMe(w http.ResponseWriter, r *http.Request) {
	u := middleware.CurrentUser(r.Context())
	if u == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	httputil.WriteSuccess(w, toUserResponse(u))
}

// updateMe handles PATCH /v1/users/me. Any authenticated user may edit
// their profile, but never their own role.
func (s *Server) updateMe(w http.ResponseWriter, r *http.Request) {
	u := middleware.CurrentUser(r.Context())
	if u == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req userUpdateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Role != nil {
		httputil.WriteValidationError(w, "role cannot be changed on this endpoint")
		return
	}

	if err := applyUserUpdate(u, &req); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	if err := s.store.UpdateUser(r.Context(), u); err != nil {
		switch err {
		case auth.ErrEmailExists, auth.ErrUsernameExists:
			httputil.WriteValidationError(w, err.Error())
		default:
			s.writeStoreError(w, r, err)
		}
		return
	}
	httputil.WriteSuccess(w, toUserResponse(u))
}

// getUser handles GET /v1/users/{username}. Requires authentication.
func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, authz.ResourceUsers, authz.ActionRead, false) {
		return
	}
	username, ok := httputil.PathStringOrError(w, r, "username")
	if !ok {
		return
	}

	u, err := s.store.GetUserByUsername(r.Context(), username)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if u == nil {
		httputil.WriteNotFound(w, "user not found")
		return
	}
	httputil.WriteSuccess(w, toUserResponse(u))
}

// updateUser handles PATCH /v1/users/{username}. This is the one place a
// role can change, and only an admin can change it.
func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, authz.ResourceUsers, authz.ActionUpdate, false) {
		return
	}
	username, ok := httputil.PathStringOrError(w, r, "username")
	if !ok {
		return
	}

	u, err := s.store.GetUserByUsername(r.Context(), username)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if u == nil {
		httputil.WriteNotFound(w, "user not found")
		return
	}

	var req userUpdateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Role != nil {
		if caller := middleware.CurrentUser(r.Context()); caller == nil || !caller.IsAdmin() {
			httputil.WriteForbidden(w, "only admins can assign roles")
			return
		}
		role, ok := auth.ParseRole(*req.Role)
		if !ok {
			httputil.WriteValidationError(w, "unknown role")
			return
		}
		u.Role = role
	}
	if err := applyUserUpdate(u, &req); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	if err := s.store.UpdateUser(r.Context(), u); err != nil {
		switch err {
		case auth.ErrEmailExists, auth.ErrUsernameExists:
			httputil.WriteValidationError(w, err.Error())
		case store.ErrNotFound:
			httputil.WriteNotFound(w, "user not found")
		default:
			s.writeStoreError(w, r, err)
		}
		return
	}
	httputil.WriteSuccess(w, toUserResponse(u))
}

// deleteUser handles DELETE /v1/users/{username}. The user is
// deactivated, not removed, so authored content keeps its author.
func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, authz.ResourceUsers, authz.ActionDelete, false) {
		return
	}
	username, ok := httputil.PathStringOrError(w, r, "username")
	if !ok {
		return
	}

	if err := s.store.DeactivateUser(r.Context(), username); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// applyUserUpdate copies present fields onto the user.
func applyUserUpdate(u *auth.User, req *userUpdateRequest) error {
	if req.Email != nil {
		if err := validateEmail(*req.Email); err != nil {
			return err
		}
		u.Email = *req.Email
	}
	if req.FirstName != nil {
		u.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		u.LastName = *req.LastName
	}
	if req.Bio != nil {
		u.Bio = *req.Bio
	}
	return nil
}
