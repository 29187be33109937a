package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrBadReference is returned when a title references a category or genre
// slug that does not exist.
var ErrBadReference = errors.New("referenced slug does not exist")

// ListCategories returns all categories ordered by slug.
func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	if cached, ok := s.cache.getCategories(); ok {
		return cached, nil
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, slug FROM categories ORDER BY slug")
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.cache.setCategories(categories)
	return categories, nil
}

// GetCategoryBySlug returns (nil, nil) when the slug is unknown.
func (s *Store) GetCategoryBySlug(ctx context.Context, slug string) (*Category, error) {
	var c Category
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, slug FROM categories WHERE slug = $1", slug).
		Scan(&c.ID, &c.Name, &c.Slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &c, nil
}

// CreateCategory inserts a category; a taken slug returns ErrSlugExists.
func (s *Store) CreateCategory(ctx context.Context, c *Category) error {
	err := s.db.QueryRowContext(ctx,
		"INSERT INTO categories (name, slug) VALUES ($1, $2) RETURNING id",
		c.Name, c.Slug).Scan(&c.ID)
	if err != nil {
		if uniqueViolation(err, "categories_slug_key") {
			return ErrSlugExists
		}
		return fmt.Errorf("failed to create category: %w", err)
	}
	s.cache.invalidateCategories()
	return nil
}

// DeleteCategory removes a category by slug.
func (s *Store) DeleteCategory(ctx context.Context, slug string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM categories WHERE slug = $1", slug)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	s.cache.invalidateCategories()
	s.cache.invalidateTitles()
	return nil
}

// ListGenres returns all genres ordered by slug.
func (s *Store) ListGenres(ctx context.Context) ([]Genre, error) {
	if cached, ok := s.cache.getGenres(); ok {
		return cached, nil
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, slug FROM genres ORDER BY slug")
	if err != nil {
		return nil, fmt.Errorf("failed to list genres: %w", err)
	}
	defer rows.Close()

	var genres []Genre
	for rows.Next() {
		var g Genre
		if err := rows.Scan(&g.ID, &g.Name, &g.Slug); err != nil {
			return nil, fmt.Errorf("failed to scan genre: %w", err)
		}
		genres = append(genres, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.cache.setGenres(genres)
	return genres, nil
}

// CreateGenre inserts a genre; a taken slug returns ErrSlugExists.
func (s *Store) CreateGenre(ctx context.Context, g *Genre) error {
	err := s.db.QueryRowContext(ctx,
		"INSERT INTO genres (name, slug) VALUES ($1, $2) RETURNING id",
		g.Name, g.Slug).Scan(&g.ID)
	if err != nil {
		if uniqueViolation(err, "genres_slug_key") {
			return ErrSlugExists
		}
		return fmt.Errorf("failed to create genre: %w", err)
	}
	s.cache.invalidateGenres()
	return nil
}

// DeleteGenre removes a genre by slug.
func (s *Store) DeleteGenre(ctx context.Context, slug string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM genres WHERE slug = $1", slug)
	if err != nil {
		return fmt.Errorf("failed to delete genre: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete genre: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	s.cache.invalidateGenres()
	s.cache.invalidateTitles()
	return nil
}

// TitleFilter narrows ListTitles. Zero values mean "no filter".
type TitleFilter struct {
	CategorySlug string
	GenreSlug    string
	Year         int
	Name         string
	Limit        int
	Offset       int
}

const titleSelect = `
	SELECT t.id, t.name, t.year, t.description,
		c.id, c.name, c.slug,
		(SELECT AVG(r.score) FROM reviews r WHERE r.title_id = t.id) AS rating
	FROM titles t
	LEFT JOIN categories c ON c.id = t.category_id
`

func scanTitle(row interface{ Scan(...interface{}) error }) (*Title, error) {
	var t Title
	var catID sql.NullInt64
	var catName, catSlug sql.NullString
	var rating sql.NullFloat64

	err := row.Scan(&t.ID, &t.Name, &t.Year, &t.Description, &catID, &catName, &catSlug, &rating)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan title: %w", err)
	}
	if catID.Valid {
		t.Category = &Category{ID: catID.Int64, Name: catName.String, Slug: catSlug.String}
	}
	if rating.Valid {
		r := int(math.Round(rating.Float64))
		t.Rating = &r
	}
	t.Genres = []Genre{}
	return &t, nil
}

// ListTitles returns titles matching the filter, newest year first.
func (s *Store) ListTitles(ctx context.Context, filter TitleFilter) ([]*Title, error) {
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.CategorySlug != "" {
		conds = append(conds, "c.slug = "+arg(filter.CategorySlug))
	}
	if filter.GenreSlug != "" {
		conds = append(conds, `t.id IN (
			SELECT tg.title_id FROM title_genres tg
			JOIN genres g ON g.id = tg.genre_id
			WHERE g.slug = `+arg(filter.GenreSlug)+")")
	}
	if filter.Year != 0 {
		conds = append(conds, "t.year = "+arg(filter.Year))
	}
	if filter.Name != "" {
		// LOWER on both sides keeps the match case-insensitive across
		// database engines
		conds = append(conds, "LOWER(t.name) LIKE "+arg("%"+strings.ToLower(filter.Name)+"%"))
	}

	query := titleSelect
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY t.year DESC, t.id"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list titles: %w", err)
	}
	defer rows.Close()

	var titles []*Title
	for rows.Next() {
		t, err := scanTitle(rows)
		if err != nil {
			return nil, err
		}
		titles = append(titles, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.loadTitleGenres(ctx, titles); err != nil {
		return nil, err
	}
	return titles, nil
}

// GetTitle returns (nil, nil) when the title does not exist.
func (s *Store) GetTitle(ctx context.Context, id int64) (*Title, error) {
	if cached, ok := s.cache.getTitle(id); ok {
		return cached, nil
	}

	v, err, _ := s.titleLoads.Do(strconv.FormatInt(id, 10), func() (interface{}, error) {
		t, err := scanTitle(s.db.QueryRowContext(ctx, titleSelect+" WHERE t.id = $1", id))
		if err != nil || t == nil {
			return t, err
		}
		if err := s.loadTitleGenres(ctx, []*Title{t}); err != nil {
			return nil, err
		}
		s.cache.setTitle(t)
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Title), nil
}

// loadTitleGenres fills the Genres slice of each title in one query.
func (s *Store) loadTitleGenres(ctx context.Context, titles []*Title) error {
	if len(titles) == 0 {
		return nil
	}

	byID := make(map[int64]*Title, len(titles))
	placeholders := make([]string, 0, len(titles))
	args := make([]interface{}, 0, len(titles))
	for i, t := range titles {
		byID[t.ID] = t
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, t.ID)
	}

	query := fmt.Sprintf(`
		SELECT tg.title_id, g.id, g.name, g.slug
		FROM title_genres tg
		JOIN genres g ON g.id = tg.genre_id
		WHERE tg.title_id IN (%s)
		ORDER BY g.slug
	`, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to load title genres: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var titleID int64
		var g Genre
		if err := rows.Scan(&titleID, &g.ID, &g.Name, &g.Slug); err != nil {
			return fmt.Errorf("failed to scan title genre: %w", err)
		}
		if t, ok := byID[titleID]; ok {
			t.Genres = append(t.Genres, g)
		}
	}
	return rows.Err()
}

// CreateTitle inserts a title, resolving the category and genre slugs.
// Unknown slugs return ErrBadReference.
func (s *Store) CreateTitle(ctx context.Context, t *Title, categorySlug string, genreSlugs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	categoryID, err := resolveCategory(ctx, tx, categorySlug)
	if err != nil {
		return err
	}
	genreIDs, err := resolveGenres(ctx, tx, genreSlugs)
	if err != nil {
		return err
	}

	if err := tx.QueryRowContext(ctx,
		"INSERT INTO titles (name, year, description, category_id) VALUES ($1, $2, $3, $4) RETURNING id",
		t.Name, t.Year, t.Description, categoryID).Scan(&t.ID); err != nil {
		return fmt.Errorf("failed to create title: %w", err)
	}
	for _, gid := range genreIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO title_genres (title_id, genre_id) VALUES ($1, $2)", t.ID, gid); err != nil {
			return fmt.Errorf("failed to link genre: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit title: %w", err)
	}
	s.cache.invalidateTitles()
	return nil
}

// UpdateTitle rewrites a title's fields and genre links.
func (s *Store) UpdateTitle(ctx context.Context, t *Title, categorySlug string, genreSlugs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	categoryID, err := resolveCategory(ctx, tx, categorySlug)
	if err != nil {
		return err
	}
	genreIDs, err := resolveGenres(ctx, tx, genreSlugs)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE titles SET name = $1, year = $2, description = $3, category_id = $4 WHERE id = $5",
		t.Name, t.Year, t.Description, categoryID, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update title: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update title: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM title_genres WHERE title_id = $1", t.ID); err != nil {
		return fmt.Errorf("failed to relink genres: %w", err)
	}
	for _, gid := range genreIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO title_genres (title_id, genre_id) VALUES ($1, $2)", t.ID, gid); err != nil {
			return fmt.Errorf("failed to link genre: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit title update: %w", err)
	}
	s.cache.invalidateTitle(t.ID)
	s.cache.invalidateTitles()
	return nil
}

// DeleteTitle removes a title and, via cascade, its reviews and comments.
func (s *Store) DeleteTitle(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM titles WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete title: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete title: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	s.cache.invalidateTitle(id)
	s.cache.invalidateTitles()
	return nil
}

func resolveCategory(ctx context.Context, tx *sql.Tx, slug string) (sql.NullInt64, error) {
	if slug == "" {
		return sql.NullInt64{}, nil
	}
	var id int64
	err := tx.QueryRowContext(ctx, "SELECT id FROM categories WHERE slug = $1", slug).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return sql.NullInt64{}, fmt.Errorf("category %q: %w", slug, ErrBadReference)
	}
	if err != nil {
		return sql.NullInt64{}, fmt.Errorf("failed to resolve category: %w", err)
	}
	return sql.NullInt64{Int64: id, Valid: true}, nil
}

func resolveGenres(ctx context.Context, tx *sql.Tx, slugs []string) ([]int64, error) {
	ids := make([]int64, 0, len(slugs))
	seen := make(map[string]bool, len(slugs))
	for _, slug := range slugs {
		if seen[slug] {
			continue
		}
		seen[slug] = true

		var id int64
		err := tx.QueryRowContext(ctx, "SELECT id FROM genres WHERE slug = $1", slug).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("genre %q: %w", slug, ErrBadReference)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve genre: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
