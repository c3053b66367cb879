package users

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Role tags understood by the starter. The column is free-form.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User represents an account record.
type User struct {
	ID            string
	Username      string
	Email         string // empty means no address
	SecretHash    []byte
	FirstName     string
	LastName      string
	EmailVerified bool
	Role          string
	Active        bool
	LastAccess    *time.Time

	CreatedAt time.Time
	CreatedOn time.Time
	CreatedBy string
	UpdatedAt *time.Time
	UpdatedBy string
}

// New returns a user with a fresh ULID and creation audit fields set.
func New(username string, createdBy string) *User {
	now := time.Now().UTC()
	return &User{
		ID:        ulid.Make().String(),
		Username:  username,
		CreatedAt: now,
		CreatedOn: now.Truncate(24 * time.Hour),
		CreatedBy: createdBy,
	}
}

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// DisplayName joins first and last name, falling back to the username.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}
