package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-starter/internal/platform/db"
	"github.com/odyssey-erp/odyssey-starter/internal/shared"
)

const uniqueViolation = "23505"

const selectUser = `SELECT id, username, email, secret_hash, first_name, last_name, email_verified,
	role, active, last_access, created_at, created_on, created_by, updated_at, updated_by
	FROM users`

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgreSQL store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema applies the embedded migrations.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	return db.Migrate(ctx, s.pool)
}

// FindByID fetches a user by id.
func (s *PostgresStore) FindByID(ctx context.Context, id string) (*User, error) {
	return s.findOne(ctx, selectUser+` WHERE id = $1`, id)
}

// FindByUsername fetches a user by username.
func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	return s.findOne(ctx, selectUser+` WHERE username = $1`, username)
}

// FindByEmail fetches a user by email.
func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	if email == "" {
		return nil, shared.ErrNotFound
	}
	return s.findOne(ctx, selectUser+` WHERE email = $1`, email)
}

// CountByRole counts users carrying role.
func (s *PostgresStore) CountByRole(ctx context.Context, role string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, role).Scan(&n); err != nil {
		return 0, fmt.Errorf("users: count by role: %w", err)
	}
	return n, nil
}

// Insert persists a new user.
func (s *PostgresStore) Insert(ctx context.Context, user *User) error {
	if err := prepareInsert(user); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username, email, secret_hash, first_name, last_name, email_verified,
			role, active, last_access, created_at, created_on, created_by, updated_at, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		user.ID,
		user.Username,
		nullText(user.Email),
		user.SecretHash,
		nullText(user.FirstName),
		nullText(user.LastName),
		user.EmailVerified,
		nullText(user.Role),
		user.Active,
		nullTime(user.LastAccess),
		user.CreatedAt.UTC(),
		pgtype.Date{Time: user.CreatedOn, Valid: true},
		nullText(user.CreatedBy),
		nullTime(user.UpdatedAt),
		nullText(user.UpdatedBy),
	)
	if err != nil {
		if conflict := conflictFromPgError(err, user); conflict != nil {
			return conflict
		}
		return fmt.Errorf("users: insert: %w", err)
	}
	return nil
}

// conflictFromPgError maps a unique violation on the users table to the
// field that collided. It returns nil for any other error.
func conflictFromPgError(err error, user *User) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return nil
	}
	switch pgErr.ConstraintName {
	case "users_email_key":
		return &ConflictError{Field: "email", Value: user.Email}
	case "users_pkey":
		return &ConflictError{Field: "id", Value: user.ID}
	default:
		return &ConflictError{Field: "username", Value: user.Username}
	}
}

// UpdateLastAccess stamps a successful login.
func (s *PostgresStore) UpdateLastAccess(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET last_access = $2, updated_at = $3 WHERE id = $1`,
		id, at.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("users: update last access: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg string) (*User, error) {
	var (
		user                                  User
		email, first, last, role, by, updater pgtype.Text
		lastAccess, updatedAt                 pgtype.Timestamptz
		createdOn                             pgtype.Date
	)
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID, &user.Username, &email, &user.SecretHash, &first, &last, &user.EmailVerified,
		&role, &user.Active, &lastAccess, &user.CreatedAt, &createdOn, &by, &updatedAt, &updater,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("users: query: %w", err)
	}
	user.Email = email.String
	user.FirstName = first.String
	user.LastName = last.String
	user.Role = role.String
	user.CreatedBy = by.String
	user.UpdatedBy = updater.String
	user.CreatedOn = createdOn.Time
	if lastAccess.Valid {
		t := lastAccess.Time
		user.LastAccess = &t
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		user.UpdatedAt = &t
	}
	return &user, nil
}

func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t.UTC(), Valid: true}
}

var _ Store = (*PostgresStore)(nil)
