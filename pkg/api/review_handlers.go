package api

import (
	"net/http"

	"github.com/critiqdev/critiq/pkg/authz"
	"github.com/critiqdev/critiq/pkg/httputil"
	"github.com/critiqdev/critiq/pkg/middleware"
	"github.com/critiqdev/critiq/pkg/store"
)

// titleOr404 loads the parent title, writing a 404 when it does not
// exist. Returns false when the response has been written.
func (s *Server) titleOr404(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := httputil.PathInt64OrError(w, r, "title_id")
	if !ok {
		return 0, false
	}
	t, err := s.store.GetTitle(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return 0, false
	}
	if t == nil {
		httputil.WriteNotFound(w, "title not found")
		return 0, false
	}
	return id, true
}

// reviewOr404 loads a review scoped to its title, writing a 404 when
// either is missing.
func (s *Server) reviewOr404(w http.ResponseWriter, r *http.Request) (*store.Review, bool) {
	titleID, ok := s.titleOr404(w, r)
	if !ok {
		return nil, false
	}
	reviewID, ok := httputil.PathInt64OrError(w, r, "review_id")
	if !ok {
		return nil, false
	}
	review, err := s.store.GetReview(r.Context(), titleID, reviewID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return nil, false
	}
	if review == nil {
		httputil.WriteNotFound(w, "review not found")
		return nil, false
	}
	return review, true
}

// isOwner reports whether the caller authored the record.
func isOwner(r *http.Request, authorID int64) bool {
	u := middleware.CurrentUser(r.Context())
	return u != nil && u.ID == authorID
}

// listReviews handles GET /v1/titles/{title_id}/reviews. Public.
func (s *Server) listReviews(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, authz.ResourceReviews, authz.ActionRead, false) {
		return
	}
	titleID, ok := s.titleOr404(w, r)
	if !ok {
		return
	}

	limit, offset := paging(r)
	reviews, err := s.store.ListReviews(r.Context(), titleID, limit, offset)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	reviews = nonNilReviews(reviews)
	httputil.WriteSuccess(w, newListResponse(reviews, len(reviews)))
}

// createReview handles POST /v1/titles/{title_id}/reviews. One review
// per user per title; the storage constraint backstops the pre-check
// under concurrent submission.
func (s *Server) createReview(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, authz.ResourceReviews, authz.ActionCreate, false) {
		return
	}
	titleID, ok := s.titleOr404(w, r)
	if !ok {
		return
	}

	var req reviewRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	u := middleware.CurrentUser(r.Context())
	reviewed, err := s.store.HasReview(r.Context(), titleID, u.ID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if reviewed {
		httputil.WriteError(w, http.StatusBadRequest, store.ErrAlreadyReviewed)
		return
	}
	review := &store.Review{
		TitleID:  titleID,
		AuthorID: u.ID,
		Author:   u.Username,
		Text:     req.Text,
		Score:    req.Score,
	}
	if err := s.store.CreateReview(r.Context(), review); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	httputil.WriteCreated(w, review)
}

// getReview handles GET /v1/titles/{title_id}/reviews/{review_id}. Public.
func (s *Server) getReview(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, authz.ResourceReviews, authz.ActionRead, false) {
		return
	}
	review, ok := s.reviewOr404(w, r)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, review)
}

// updateReview handles PATCH /v1/titles/{title_id}/reviews/{review_id}.
// Author, moderator or admin; author and title are immutable.
func (s *Server) updateReview(w http.ResponseWriter, r *http.Request) {
	review, ok := s.reviewOr404(w, r)
	if !ok {
		return
	}
	if !s.authorize(w, r, authz.ResourceReviews, authz.ActionUpdate, isOwner(r, review.AuthorID)) {
		return
	}

	var req reviewRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Text == "" {
		req.Text = review.Text
	}
	if req.Score == 0 {
		req.Score = review.Score
	}
	if err := req.validate(); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	review.Text = req.Text
	review.Score = req.Score
	if err := s.store.UpdateReview(r.Context(), review); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, review)
}

// deleteReview handles DELETE /v1/titles/{title_id}/reviews/{review_id}.
// Author, moderator or admin.
func (s *Server) deleteReview(w http.ResponseWriter, r *http.Request) {
	review, ok := s.reviewOr404(w, r)
	if !ok {
		return
	}
	if !s.authorize(w, r, authz.ResourceReviews, authz.ActionDelete, isOwner(r, review.AuthorID)) {
		return
	}
	if err := s.store.DeleteReview(r.Context(), review.TitleID, review.ID); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
