package api

import (
	"fmt"
	"net/http"

	"github.com/critiqdev/critiq/pkg/authz"
	"github.com/critiqdev/critiq/pkg/httputil"
	"github.com/critiqdev/critiq/pkg/store"
)

// listCategories handles GET /v1/categories. Public.
func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, authz.ResourceCategories, authz.ActionRead, false) {
		return
	}
	cats, err := s.store.ListCategories(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if cats == nil {
		cats = []store.Category{}
	}
	httputil.WriteSuccess(w, newListResponse(cats, len(cats)))
}

// createCategory handles POST /v1/categories. Admin only.
func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, authz.ResourceCategories, authz.ActionCreate, false) {
		return
	}
	var req slugRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	c := &store.Category{Name: req.Name, Slug: req.Slug}
	if err := s.store.CreateCategory(r.Context(), c); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	httputil.WriteCreated(w, c)
}

// deleteCategory handles DELETE /v1/categories/{slug}. Admin only.
func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, authz.ResourceCategories, authz.ActionDelete, false) {
		return
	}
	slug, ok := httputil.PathStringOrError(w, r, "slug")
	if !ok {
		return
	}
	if err := s.store.DeleteCategory(r.Context(), slug); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// listGenres handles GET /v1/genres. Public.
func (s *Server) listGenres(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, authz.ResourceGenres, authz.ActionRead, false) {
		return
	}
	genres, err := s.store.ListGenres(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if genres == nil {
		genres = []store.Genre{}
	}
	httputil.WriteSuccess(w, newListResponse(genres, len(genres)))
}

// createGenre handles POST /v1/genres. Admin only.
func (s *Server) createGenre(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, authz.ResourceGenres, authz.ActionCreate, false) {
		return
	}
	var req slugRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	g := &store.Genre{Name: req.Name, Slug: req.Slug}
	if err := s.store.CreateGenre(r.Context(), g); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	httputil.WriteCreated(w, g)
}

// deleteGenre handles DELETE /v1/genres/{slug}. Admin only.
func (s *Server) deleteGenre(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, authz.ResourceGenres, authz.ActionDelete, false) {
		return
	}
	slug, ok := httputil.PathStringOrError(w, r, "slug")
	if !ok {
		return
	}
	if err := s.store.DeleteGenre(r.Context(), slug); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// listTitles handles GET /v1/titles. Public; supports filtering by
// category, genre, year and name substring.
func (s *Server) listTitles(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, authz.ResourceTitles, authz.ActionRead, false) {
		return
	}

	limit, offset := paging(r)
	filter := store.TitleFilter{
		CategorySlug: httputil.QueryString(r, "category", ""),
		GenreSlug:    httputil.QueryString(r, "genre", ""),
		Year:         httputil.QueryInt(r, "year", 0),
		Name:         httputil.QueryString(r, "name", ""),
		Limit:        limit,
		Offset:       offset,
	}
	titles, err := s.store.ListTitles(r.Context(), filter)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	titles = nonNilTitles(titles)
	httputil.WriteSuccess(w, newListResponse(titles, len(titles)))
}

// categoryKnown rejects title writes naming a category that does not
// exist; the foreign-key resolution inside the store transaction
// backstops the check.
func (s *Server) categoryKnown(w http.ResponseWriter, r *http.Request, slug string) bool {
	if slug == "" {
		return true
	}
	c, err := s.store.GetCategoryBySlug(r.Context(), slug)
	if err != nil {
		s.writeStoreError(w, r, err)
		return false
	}
	if c == nil {
		httputil.WriteValidationError(w, fmt.Sprintf("unknown category %q", slug))
		return false
	}
	return true
}

// createTitle handles POST /v1/titles. Admin only.
func (s *Server) createTitle(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, authz.ResourceTitles, authz.ActionCreate, false) {
		return
	}
	var req titleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.validate(s.now()); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	if !s.categoryKnown(w, r, req.Category) {
		return
	}

	t := &store.Title{Name: req.Name, Year: req.Year, Description: req.Description}
	if err := s.store.CreateTitle(r.Context(), t, req.Category, req.Genres); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	httputil.WriteCreated(w, t)
}

// getTitle handles GET /v1/titles/{title_id}. Public.
func (s *Server) getTitle(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, authz.ResourceTitles, authz.ActionRead, false) {
		return
	}
	id, ok := httputil.PathInt64OrError(w, r, "title_id")
	if !ok {
		return
	}

	t, err := s.store.GetTitle(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if t == nil {
		httputil.WriteNotFound(w, "title not found")
		return
	}
	httputil.WriteSuccess(w, t)
}

// updateTitle handles PATCH /v1/titles/{title_id}. Admin only.
func (s *Server) updateTitle(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, authz.ResourceTitles, authz.ActionUpdate, false) {
		return
	}
	id, ok := httputil.PathInt64OrError(w, r, "title_id")
	if !ok {
		return
	}

	existing, err := s.store.GetTitle(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if existing == nil {
		httputil.WriteNotFound(w, "title not found")
		return
	}

	var req titleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	req.merge(existing)
	if err := req.validate(s.now()); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	if !s.categoryKnown(w, r, req.Category) {
		return
	}

	t := &store.Title{ID: id, Name: req.Name, Year: req.Year, Description: req.Description}
	if err := s.store.UpdateTitle(r.Context(), t, req.Category, req.Genres); err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	updated, err := s.store.GetTitle(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, updated)
}

// deleteTitle handles DELETE /v1/titles/{title_id}. Admin only.
func (s *Server) deleteTitle(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, authz.ResourceTitles, authz.ActionDelete, false) {
		return
	}
	id, ok := httputil.PathInt64OrError(w, r, "title_id")
	if !ok {
		return
	}
	if err := s.store.DeleteTitle(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
