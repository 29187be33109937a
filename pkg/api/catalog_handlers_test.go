package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/critiqdev/critiq/pkg/auth"
)

func TestCatalogReadsArePublic(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/v1/categories", "/v1/genres", "/v1/titles"} {
		rec := env.do(t, "GET", path, nil, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestCatalogWritesAreAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "alice")
	body := map[string]string{"name": "Films", "slug": "films"}

	rec := env.do(t, "POST", "/v1/categories", body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, "POST", "/v1/categories", body, user)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, "DELETE", "/v1/categories/films", nil, user)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCategoryLifecycle(t *testing.T) {
	env := newTestEnv(t)
	admin := env.registerAs(t, "root", auth.RoleAdmin)

	rec := env.do(t, "POST", "/v1/categories", map[string]string{
		"name": "Films", "slug": "films",
	}, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// duplicate slug
	rec = env.do(t, "POST", "/v1/categories", map[string]string{
		"name": "Movies", "slug": "films",
	}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// invalid slug
	rec = env.do(t, "POST", "/v1/categories", map[string]string{
		"name": "Books", "slug": "not a slug!",
	}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "GET", "/v1/categories", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Count   int `json:"count"`
		Results []struct {
			Name string `json:"name"`
			Slug string `json:"slug"`
		} `json:"results"`
	}
	decode(t, rec, &list)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "films", list.Results[0].Slug)

	rec = env.do(t, "DELETE", "/v1/categories/films", nil, admin)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, "DELETE", "/v1/categories/films", nil, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenreLifecycle(t *testing.T) {
	env := newTestEnv(t)
	admin := env.registerAs(t, "root", auth.RoleAdmin)

	rec := env.do(t, "POST", "/v1/genres", map[string]string{
		"name": "Drama", "slug": "drama",
	}, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, "GET", "/v1/genres", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, "DELETE", "/v1/genres/drama", nil, admin)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func seedCatalog(t *testing.T, env *testEnv, admin string) {
	t.Helper()
	for _, c := range []map[string]string{
		{"name": "Films", "slug": "films"},
		{"name": "Books", "slug": "books"},
	} {
		rec := env.do(t, "POST", "/v1/categories", c, admin)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	for _, g := range []map[string]string{
		{"name": "Drama", "slug": "drama"},
		{"name": "Comedy", "slug": "comedy"},
	} {
		rec := env.do(t, "POST", "/v1/genres", g, admin)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
}

func TestTitleLifecycle(t *testing.T) {
	env := newTestEnv(t)
	admin := env.registerAs(t, "root", auth.RoleAdmin)
	seedCatalog(t, env, admin)

	rec := env.do(t, "POST", "/v1/titles", map[string]interface{}{
		"name":     "Casablanca",
		"year":     1942,
		"category": "films",
		"genre":    []string{"drama"},
	}, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID int64 `json:"id"`
	}
	decode(t, rec, &created)
	require.NotZero(t, created.ID)

	rec = env.do(t, "GET", fmt.Sprintf("/v1/titles/%d", created.ID), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Name     string `json:"name"`
		Year     int    `json:"year"`
		Category *struct {
			Slug string `json:"slug"`
		} `json:"category"`
		Genres []struct {
			Slug string `json:"slug"`
		} `json:"genre"`
		Rating *int `json:"rating"`
	}
	decode(t, rec, &got)
	assert.Equal(t, "Casablanca", got.Name)
	assert.Equal(t, 1942, got.Year)
	require.NotNil(t, got.Category)
	assert.Equal(t, "films", got.Category.Slug)
	require.Len(t, got.Genres, 1)
	assert.Equal(t, "drama", got.Genres[0].Slug)
	assert.Nil(t, got.Rating)

	// partial update keeps untouched fields
	rec = env.do(t, "PATCH", fmt.Sprintf("/v1/titles/%d", created.ID), map[string]interface{}{
		"description": "Everybody comes to Rick's.",
	}, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &got)
	assert.Equal(t, "Casablanca", got.Name)
	assert.Equal(t, 1942, got.Year)
	require.NotNil(t, got.Category)
	assert.Equal(t, "films", got.Category.Slug)

	rec = env.do(t, "DELETE", fmt.Sprintf("/v1/titles/%d", created.ID), nil, admin)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, "GET", fmt.Sprintf("/v1/titles/%d", created.ID), nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTitleValidation(t *testing.T) {
	env := newTestEnv(t)
	admin := env.registerAs(t, "root", auth.RoleAdmin)

	t.Run("future year", func(t *testing.T) {
		rec := env.do(t, "POST", "/v1/titles", map[string]interface{}{
			"name": "From the Future", "year": 3000,
		}, admin)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing name", func(t *testing.T) {
		rec := env.do(t, "POST", "/v1/titles", map[string]interface{}{"year": 2000}, admin)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown category", func(t *testing.T) {
		rec := env.do(t, "POST", "/v1/titles", map[string]interface{}{
			"name": "Orphan", "year": 2000, "category": "nope",
		}, admin)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("non-numeric id is 404", func(t *testing.T) {
		rec := env.do(t, "GET", "/v1/titles/abc", nil, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestTitleFiltering(t *testing.T) {
	env := newTestEnv(t)
	admin := env.registerAs(t, "root", auth.RoleAdmin)
	seedCatalog(t, env, admin)

	for _, title := range []map[string]interface{}{
		{"name": "Casablanca", "year": 1942, "category": "films", "genre": []string{"drama"}},
		{"name": "Some Like It Hot", "year": 1959, "category": "films", "genre": []string{"comedy"}},
		{"name": "Don Quixote", "year": 1605, "category": "books", "genre": []string{"drama", "comedy"}},
	} {
		rec := env.do(t, "POST", "/v1/titles", title, admin)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	var list struct {
		Count   int `json:"count"`
		Results []struct {
			Name string `json:"name"`
		} `json:"results"`
	}

	rec := env.do(t, "GET", "/v1/titles?category=films", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &list)
	assert.Equal(t, 2, list.Count)

	rec = env.do(t, "GET", "/v1/titles?genre=comedy", nil, "")
	decode(t, rec, &list)
	assert.Equal(t, 2, list.Count)

	rec = env.do(t, "GET", "/v1/titles?year=1942", nil, "")
	decode(t, rec, &list)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "Casablanca", list.Results[0].Name)

	rec = env.do(t, "GET", "/v1/titles?name=quixote", nil, "")
	decode(t, rec, &list)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "Don Quixote", list.Results[0].Name)

	rec = env.do(t, "GET", "/v1/titles?limit=2", nil, "")
	decode(t, rec, &list)
	assert.Equal(t, 2, list.Count)
}
