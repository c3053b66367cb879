package users

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Store is the credential store. Lookups are equality matches and return
// shared.ErrNotFound when nothing matches.
type Store interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	CountByRole(ctx context.Context, role string) (int, error)
	// Insert fails with *ConflictError when the username or email is taken.
	Insert(ctx context.Context, user *User) error
	UpdateLastAccess(ctx context.Context, id string, at time.Time) error
	// EnsureSchema creates missing tables or buckets without touching data.
	EnsureSchema(ctx context.Context) error
}

// ConflictError reports a duplicate unique key on insert.
type ConflictError struct {
	Field string
	Value string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("users: %s %q already exists", e.Field, e.Value)
}

// ErrMissingSecret rejects active records without a password hash.
var ErrMissingSecret = errors.New("users: active user requires a secret hash")

// IsConflict reports whether err carries a *ConflictError.
func IsConflict(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}

// prepareInsert validates user and fills in missing creation stamps so every
// store persists the same audit fields.
func prepareInsert(user *User) error {
	if user == nil || user.ID == "" || user.Username == "" {
		return errors.New("users: id and username are required")
	}
	if user.Active && len(user.SecretHash) == 0 {
		return ErrMissingSecret
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.CreatedOn.IsZero() {
		user.CreatedOn = user.CreatedAt.UTC().Truncate(24 * time.Hour)
	}
	return nil
}
