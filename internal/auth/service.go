package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-starter/internal/shared"
	"github.com/odyssey-erp/odyssey-starter/internal/users"
)

// Attempt outcomes reported to an AttemptRecorder.
const (
	AttemptSuccess  = "success"
	AttemptRejected = "rejected"
	AttemptError    = "error"
)

// AuthError wraps a verification failure that is not a password mismatch,
// such as an undecodable stored hash.
type AuthError struct {
	UserID string
	Err    error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth: verify credentials of user %s: %v", e.UserID, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// AttemptRecorder receives the outcome of each authentication attempt.
type AttemptRecorder interface {
	RecordAuthAttempt(result string)
}

// Service wraps authentication business rules.
type Service struct {
	store    users.Store
	hasher   *Hasher
	logger   *slog.Logger
	recorder AttemptRecorder
	now      func() time.Time
	dummy    []byte
}

// Option customises a Service.
type Option func(*Service)

// WithRecorder reports attempt outcomes to r.
func WithRecorder(r AttemptRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithClock overrides the time source used for last access stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService constructs a new Service. It hashes one random secret up front
// so lookups of unknown identifiers cost the same as real verifications.
func NewService(store users.Store, hasher *Hasher, logger *slog.Logger, opts ...Option) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{store: store, hasher: hasher, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	seed := make([]byte, 16)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("auth: seed dummy hash: %w", err)
	}
	dummy, err := hasher.Hash(base64.RawStdEncoding.EncodeToString(seed))
	if err != nil {
		return nil, err
	}
	s.dummy = dummy
	return s, nil
}

// Authenticate resolves identifier as a username, then as an email, and
// verifies secret against the stored hash. Unknown identifiers, wrong secrets
// and inactive accounts all yield shared.ErrInvalidCredentials. On success
// the user's last access is stamped and the refreshed record returned.
func (s *Service) Authenticate(ctx context.Context, identifier, secret string) (*users.User, error) {
	s.logger.Debug("verifying access", slog.String("identifier", identifier))

	user, err := s.lookup(ctx, identifier)
	if err != nil {
		s.record(AttemptError)
		return nil, err
	}

	if user == nil {
		_, _ = s.hasher.Verify(s.dummy, secret)
		s.logger.Debug("user record not found", slog.String("identifier", identifier))
		s.record(AttemptRejected)
		return nil, shared.ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(user.SecretHash, secret)
	if err != nil {
		s.record(AttemptError)
		return nil, &AuthError{UserID: user.ID, Err: err}
	}
	if !ok || !user.Active {
		s.logger.Debug("access rejected", slog.String("user_id", user.ID), slog.Bool("active", user.Active))
		s.record(AttemptRejected)
		return nil, shared.ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.store.UpdateLastAccess(ctx, user.ID, now); err != nil {
		s.record(AttemptError)
		return nil, fmt.Errorf("auth: stamp last access: %w", err)
	}
	user.LastAccess = &now
	s.record(AttemptSuccess)
	return user, nil
}

// lookup returns (nil, nil) when neither key matches.
func (s *Service) lookup(ctx context.Context, identifier string) (*users.User, error) {
	if identifier == "" {
		return nil, nil
	}
	user, err := s.store.FindByUsername(ctx, identifier)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("auth: find by username: %w", err)
	}
	user, err = s.store.FindByEmail(ctx, identifier)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("auth: find by email: %w", err)
	}
	return nil, nil
}

func (s *Service) record(result string) {
	if s.recorder != nil {
		s.recorder.RecordAuthAttempt(result)
	}
}
