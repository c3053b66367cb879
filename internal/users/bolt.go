package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/odyssey-erp/odyssey-starter/internal/shared"
)

var (
	bucketUsers      = []byte("users")
	bucketByUsername = []byte("users_by_username")
	bucketByEmail    = []byte("users_by_email")
)

// BoltStore implements Store on a bbolt file. Records live in the users
// bucket keyed by id; the two index buckets map username and email to id.
type BoltStore struct {
	db *bolt.DB
}

type boltRecord struct {
	ID            string     `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email,omitempty"`
	SecretHash    []byte     `json:"secret_hash"`
	FirstName     string     `json:"first_name,omitempty"`
	LastName      string     `json:"last_name,omitempty"`
	EmailVerified bool       `json:"email_verified"`
	Role          string     `json:"role,omitempty"`
	Active        bool       `json:"active"`
	LastAccess    *time.Time `json:"last_access,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CreatedOn     time.Time  `json:"created_on"`
	CreatedBy     string     `json:"created_by,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
	UpdatedBy     string     `json:"updated_by,omitempty"`
}

// NewBoltStore wraps an open bbolt handle.
func NewBoltStore(bdb *bolt.DB) *BoltStore {
	return &BoltStore{db: bdb}
}

// EnsureSchema creates the buckets if missing.
func (s *BoltStore) EnsureSchema(ctx context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketUsers, bucketByUsername, bucketByEmail} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("users: create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

// FindByID fetches a user by id.
func (s *BoltStore) FindByID(ctx context.Context, id string) (*User, error) {
	var user *User
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		user, err = getRecord(tx, []byte(id))
		return err
	})
	return user, err
}

// FindByUsername fetches a user by username.
func (s *BoltStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	return s.findByIndex(bucketByUsername, username)
}

// FindByEmail fetches a user by email.
func (s *BoltStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	if email == "" {
		return nil, shared.ErrNotFound
	}
	return s.findByIndex(bucketByEmail, email)
}

// CountByRole counts users carrying role.
func (s *BoltStore) CountByRole(ctx context.Context, role string) (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		if b == nil {
			return errNoSchema
		}
		return b.ForEach(func(_, v []byte) error {
			var rec boltRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("users: decode record: %w", err)
			}
			if rec.Role == role {
				n++
			}
			return nil
		})
	})
	return n, err
}

// Insert persists a new user. Both indexes are checked in the same write
// transaction as the put.
func (s *BoltStore) Insert(ctx context.Context, user *User) error {
	if err := prepareInsert(user); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		users, byUsername, byEmail := tx.Bucket(bucketUsers), tx.Bucket(bucketByUsername), tx.Bucket(bucketByEmail)
		if users == nil || byUsername == nil || byEmail == nil {
			return errNoSchema
		}
		if users.Get([]byte(user.ID)) != nil {
			return &ConflictError{Field: "id", Value: user.ID}
		}
		if byUsername.Get([]byte(user.Username)) != nil {
			return &ConflictError{Field: "username", Value: user.Username}
		}
		if user.Email != "" && byEmail.Get([]byte(user.Email)) != nil {
			return &ConflictError{Field: "email", Value: user.Email}
		}
		if err := putRecord(users, user); err != nil {
			return err
		}
		if err := byUsername.Put([]byte(user.Username), []byte(user.ID)); err != nil {
			return err
		}
		if user.Email != "" {
			return byEmail.Put([]byte(user.Email), []byte(user.ID))
		}
		return nil
	})
}

// UpdateLastAccess stamps a successful login.
func (s *BoltStore) UpdateLastAccess(ctx context.Context, id string, at time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		user, err := getRecord(tx, []byte(id))
		if err != nil {
			return err
		}
		at = at.UTC()
		now := time.Now().UTC()
		user.LastAccess = &at
		user.UpdatedAt = &now
		return putRecord(tx.Bucket(bucketUsers), user)
	})
}

func (s *BoltStore) findByIndex(index []byte, key string) (*User, error) {
	var user *User
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(index)
		if b == nil {
			return errNoSchema
		}
		id := b.Get([]byte(key))
		if id == nil {
			return shared.ErrNotFound
		}
		var err error
		user, err = getRecord(tx, id)
		return err
	})
	return user, err
}

var errNoSchema = errors.New("users: schema missing, run EnsureSchema")

func getRecord(tx *bolt.Tx, id []byte) (*User, error) {
	b := tx.Bucket(bucketUsers)
	if b == nil {
		return nil, errNoSchema
	}
	raw := b.Get(id)
	if raw == nil {
		return nil, shared.ErrNotFound
	}
	var rec boltRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("users: decode record: %w", err)
	}
	user := User(rec)
	return &user, nil
}

func putRecord(b *bolt.Bucket, user *User) error {
	data, err := json.Marshal(boltRecord(*user))
	if err != nil {
		return err
	}
	return b.Put([]byte(user.ID), data)
}

var _ Store = (*BoltStore)(nil)
