package api

import (
	"fmt"
	"net/mail"
	"regexp"
	"time"

	"github.com/critiqdev/critiq/pkg/auth"
	"github.com/critiqdev/critiq/pkg/store"
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// validateUsername enforces the username shape shared by signup and user
// administration.
func validateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if len(username) > auth.MaxUsernameLen {
		return fmt.Errorf("username must be at most %d characters", auth.MaxUsernameLen)
	}
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("username contains invalid characters")
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if len(email) > 254 {
		return fmt.Errorf("email must be at most 254 characters")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("email is not a valid address")
	}
	return nil
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type signupResponse struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type tokenRequest struct {
	Username         string `json:"username"`
	ConfirmationCode string `json:"confirmation_code"`
}

type tokenResponse struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

// userResponse is the public view of a user.
type userResponse struct {
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Bio       string    `json:"bio"`
	Role      auth.Role `json:"role"`
}

func toUserResponse(u *auth.User) userResponse {
	return userResponse{
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Bio:       u.Bio,
		Role:      u.Role,
	}
}

// userUpdateRequest uses pointers so PATCH can distinguish absent fields
// from empty ones.
type userUpdateRequest struct {
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Bio       *string `json:"bio"`
	Role      *string `json:"role"`
}

type userCreateRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Bio       string `json:"bio"`
	Role      string `json:"role"`
}

type slugRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

var slugPattern = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

func (r slugRequest) validate() error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(r.Name) > 256 {
		return fmt.Errorf("name must be at most 256 characters")
	}
	if r.Slug == "" {
		return fmt.Errorf("slug is required")
	}
	if len(r.Slug) > 50 {
		return fmt.Errorf("slug must be at most 50 characters")
	}
	if !slugPattern.MatchString(r.Slug) {
		return fmt.Errorf("slug may only contain letters, numbers, hyphens and underscores")
	}
	return nil
}

type titleRequest struct {
	Name        string   `json:"name"`
	Year        int      `json:"year"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Genres      []string `json:"genre"`
}

func (r titleRequest) validate(now time.Time) error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(r.Name) > 256 {
		return fmt.Errorf("name must be at most 256 characters")
	}
	if r.Year > now.Year() {
		return fmt.Errorf("bad year")
	}
	return nil
}

// merge fills fields a PATCH body left out from the stored title, so a
// partial update never blanks the rest of the record.
func (r *titleRequest) merge(existing *store.Title) {
	if r.Name == "" {
		r.Name = existing.Name
	}
	if r.Year == 0 {
		r.Year = existing.Year
	}
	if r.Description == "" {
		r.Description = existing.Description
	}
	if r.Category == "" && existing.Category != nil {
		r.Category = existing.Category.Slug
	}
	if r.Genres == nil {
		for _, g := range existing.Genres {
			r.Genres = append(r.Genres, g.Slug)
		}
	}
}

type reviewRequest struct {
	Text  string `json:"text"`
	Score int    `json:"score"`
}

func (r reviewRequest) validate() error {
	if r.Text == "" {
		return fmt.Errorf("text is required")
	}
	if r.Score < 1 || r.Score > 10 {
		return fmt.Errorf("score must be between 1 and 10")
	}
	return nil
}

type commentRequest struct {
	Text string `json:"text"`
}

func (r commentRequest) validate() error {
	if r.Text == "" {
		return fmt.Errorf("text is required")
	}
	return nil
}

// listResponse is the paged list envelope.
type listResponse struct {
	Count   int         `json:"count"`
	Results interface{} `json:"results"`
}

func newListResponse(results interface{}, count int) listResponse {
	return listResponse{Count: count, Results: results}
}

// nonNilTitles keeps JSON arrays non-null.
func nonNilTitles(titles []*store.Title) []*store.Title {
	if titles == nil {
		return []*store.Title{}
	}
	return titles
}

func nonNilReviews(reviews []*store.Review) []*store.Review {
	if reviews == nil {
		return []*store.Review{}
	}
	return reviews
}

func nonNilComments(comments []*store.Comment) []*store.Comment {
	if comments == nil {
		return []*store.Comment{}
	}
	return comments
}
