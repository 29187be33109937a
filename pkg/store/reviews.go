package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const reviewSelect = `
	SELECT r.id, r.title_id, r.author_id, u.username, r.text, r.score, r.pub_date
	FROM reviews r
	JOIN users u ON u.id = r.author_id
`

func scanReview(row interface{ Scan(...interface{}) error }) (*Review, error) {
	var r Review
	err := row.Scan(&r.ID, &r.TitleID, &r.AuthorID, &r.Author, &r.Text, &r.Score, &r.PubDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan review: %w", err)
	}
	return &r, nil
}

// ListReviews returns all reviews of a title, newest first.
func (s *Store) ListReviews(ctx context.Context, titleID int64, limit, offset int) ([]*Review, error) {
	query := reviewSelect + " WHERE r.title_id = $1 ORDER BY r.pub_date DESC, r.id DESC LIMIT $2 OFFSET $3"
	rows, err := s.db.QueryContext(ctx, query, titleID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []*Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// GetReview fetches one review scoped to its title. Returns (nil, nil)
// when the review does not exist under that title.
func (s *Store) GetReview(ctx context.Context, titleID, reviewID int64) (*Review, error) {
	return scanReview(s.db.QueryRowContext(ctx,
		reviewSelect+" WHERE r.id = $1 AND r.title_id = $2", reviewID, titleID))
}

// CreateReview inserts a review. A second review by the same author on
// the same title returns ErrAlreadyReviewed; the unique constraint makes
// that hold even when two inserts race.
func (s *Store) CreateReview(ctx context.Context, r *Review) error {
	r.PubDate = s.now().UTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO reviews (title_id, author_id, text, score, pub_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, r.TitleID, r.AuthorID, r.Text, r.Score, r.PubDate).Scan(&r.ID)
	if err != nil {
		if uniqueViolation(err, "reviews_title_id_author_id_key") {
			return ErrAlreadyReviewed
		}
		return fmt.Errorf("failed to create review: %w", err)
	}
	s.cache.invalidateTitle(r.TitleID)
	return nil
}

// HasReview reports whether the author already reviewed the title.
func (s *Store) HasReview(ctx context.Context, titleID, authorID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM reviews WHERE title_id = $1 AND author_id = $2)",
		titleID, authorID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check review existence: %w", err)
	}
	return exists, nil
}

// UpdateReview rewrites the text and score of an existing review. Author
// and title binding never change.
func (s *Store) UpdateReview(ctx context.Context, r *Review) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE reviews SET text = $1, score = $2 WHERE id = $3 AND title_id = $4",
		r.Text, r.Score, r.ID, r.TitleID)
	if err != nil {
		return fmt.Errorf("failed to update review: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update review: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	s.cache.invalidateTitle(r.TitleID)
	return nil
}

// DeleteReview removes a review and, via cascade, its comments.
func (s *Store) DeleteReview(ctx context.Context, titleID, reviewID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM reviews WHERE id = $1 AND title_id = $2", reviewID, titleID)
	if err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	s.cache.invalidateTitle(titleID)
	return nil
}

const commentSelect = `
	SELECT c.id, c.review_id, c.author_id, u.username, c.text, c.pub_date
	FROM comments c
	JOIN users u ON u.id = c.author_id
`

func scanComment(row interface{ Scan(...interface{}) error }) (*Comment, error) {
	var c Comment
	err := row.Scan(&c.ID, &c.ReviewID, &c.AuthorID, &c.Author, &c.Text, &c.PubDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan comment: %w", err)
	}
	return &c, nil
}

// ListComments returns all comments under a review, oldest first.
func (s *Store) ListComments(ctx context.Context, reviewID int64, limit, offset int) ([]*Comment, error) {
	query := commentSelect + " WHERE c.review_id = $1 ORDER BY c.pub_date, c.id LIMIT $2 OFFSET $3"
	rows, err := s.db.QueryContext(ctx, query, reviewID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var comments []*Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// GetComment fetches one comment scoped to its review.
func (s *Store) GetComment(ctx context.Context, reviewID, commentID int64) (*Comment, error) {
	return scanComment(s.db.QueryRowContext(ctx,
		commentSelect+" WHERE c.id = $1 AND c.review_id = $2", commentID, reviewID))
}

// CreateComment inserts a comment under a review.
func (s *Store) CreateComment(ctx context.Context, c *Comment) error {
	c.PubDate = s.now().UTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO comments (review_id, author_id, text, pub_date)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, c.ReviewID, c.AuthorID, c.Text, c.PubDate).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

// UpdateComment rewrites the text of an existing comment.
func (s *Store) UpdateComment(ctx context.Context, c *Comment) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE comments SET text = $1 WHERE id = $2 AND review_id = $3",
		c.Text, c.ID, c.ReviewID)
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteComment removes a comment.
func (s *Store) DeleteComment(ctx context.Context, reviewID, commentID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM comments WHERE id = $1 AND review_id = $2", commentID, reviewID)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
