package api

import (
	"net/http"

	"github.com/critiqdev/critiq/pkg/authz"
	"github.com/critiqdev/critiq/pkg/httputil"
	"github.com/critiqdev/critiq/pkg/middleware"
	"github.com/critiqdev/critiq/pkg/store"
)

// commentOr404 loads a comment scoped to its review and title, writing
// a 404 when any link in the chain is missing.
func (s *Server) commentOr404(w http.ResponseWriter, r *http.Request) (*store.Comment, bool) {
	review, ok := s.reviewOr404(w, r)
	if !ok {
		return nil, false
	}
	commentID, ok := httputil.PathInt64OrError(w, r, "comment_id")
	if !ok {
		return nil, false
	}
	comment, err := s.store.GetComment(r.Context(), review.ID, commentID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return nil, false
	}
	if comment == nil {
		httputil.WriteNotFound(w, "comment not found")
		return nil, false
	}
	return comment, true
}

// listComments handles GET .../reviews/{review_id}/comments. Public.
func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, authz.ResourceComments, authz.ActionRead, false) {
		return
	}
	review, ok := s.reviewOr404(w, r)
	if !ok {
		return
	}

	limit, offset := paging(r)
	comments, err := s.store.ListComments(r.Context(), review.ID, limit, offset)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	comments = nonNilComments(comments)
	httputil.WriteSuccess(w, newListResponse(comments, len(comments)))
}

// createComment handles POST .../reviews/{review_id}/comments.
func (s *Server) createComment(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, authz.ResourceComments, authz.ActionCreate, false) {
		return
	}
	review, ok := s.reviewOr404(w, r)
	if !ok {
		return
	}

	var req commentRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	u := middleware.CurrentUser(r.Context())
	comment := &store.Comment{
		ReviewID: review.ID,
		AuthorID: u.ID,
		Author:   u.Username,
		Text:     req.Text,
	}
	if err := s.store.CreateComment(r.Context(), comment); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	httputil.WriteCreated(w, comment)
}

// getComment handles GET .../comments/{comment_id}. Public.
func (s *Server) getComment(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, authz.ResourceComments, authz.ActionRead, false) {
		return
	}
	comment, ok := s.commentOr404(w, r)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, comment)
}

// updateComment handles PATCH .../comments/{comment_id}. Author,
// moderator or admin; author and parent review are immutable.
func (s *Server) updateComment(w http.ResponseWriter, r *http.Request) {
	comment, ok := s.commentOr404(w, r)
	if !ok {
		return
	}
	if !s.authorize(w, r, authz.ResourceComments, authz.ActionUpdate, isOwner(r, comment.AuthorID)) {
		return
	}

	var req commentRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	comment.Text = req.Text
	if err := s.store.UpdateComment(r.Context(), comment); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, comment)
}

// deleteComment handles DELETE .../comments/{comment_id}. Author,
// moderator or admin.
func (s *Server) deleteComment(w http.ResponseWriter, r *http.Request) {
	comment, ok := s.commentOr404(w, r)
	if !ok {
		return
	}
	if !s.authorize(w, r, authz.ResourceComments, authz.ActionDelete, isOwner(r, comment.AuthorID)) {
		return
	}
	if err := s.store.DeleteComment(r.Context(), comment.ReviewID, comment.ID); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
