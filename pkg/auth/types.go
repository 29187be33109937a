package auth

import "time"

// Role is the unit of authorization granularity. It is a closed enumeration;
// anything outside the three constants is rejected at parse time.
type Role string

const (
	RoleUser      Role = "user"      // Default role for every new signup
	RoleModerator Role = "moderator" // Can edit or delete any review/comment
	RoleAdmin     Role = "admin"     // Full control, including the catalog and user management
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// ParseRole converts a stored or submitted string into a Role.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

// MaxUsernameLen mirrors the storage column width for usernames.
const MaxUsernameLen = 150

// ReservedUsername can never be registered; it is routed as a self-reference
// ("/users/me") by the API layer.
const ReservedUsername = "me"

// User is a registered identity. The store owns these records; this package
// only ever mutates the confirmation salt through the UserStore interface.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"is_active"`

	// ConfirmationSalt is the stored half of the confirmation-code pair.
	// Empty means no code is outstanding. Never serialized.
	ConfirmationSalt string `json:"-"`
	// SaltIssuedAt records when the current salt was minted; the purge job
	// clears salts older than the code window.
	SaltIssuedAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsModerator reports whether u may mutate other users' reviews and comments.
func (u *User) IsModerator() bool {
	return u.Role == RoleModerator || u.Role == RoleAdmin
}

// IsAdmin reports whether u holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
