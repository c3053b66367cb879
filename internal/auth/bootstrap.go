package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/odyssey-erp/odyssey-starter/internal/users"
)

// Default administrator credentials used when none are configured.
const (
	DefaultAdminUser     = "app-admin"
	DefaultAdminPassword = "app-admin"
)

// AdminCredentials seed the first administrator.
type AdminCredentials struct {
	Username string
	Password string
}

// Bootstrapper makes sure the schema exists and at least one admin does.
type Bootstrapper struct {
	store  users.Store
	hasher *Hasher
	logger *slog.Logger
}

// NewBootstrapper constructs a Bootstrapper.
func NewBootstrapper(store users.Store, hasher *Hasher, logger *slog.Logger) *Bootstrapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bootstrapper{store: store, hasher: hasher, logger: logger}
}

// Run is idempotent: it creates an admin only when no user has the admin
// role, and returns that user, or nil when one already existed. It is a
// check-then-act sequence meant for single-process startup.
func (b *Bootstrapper) Run(ctx context.Context, creds AdminCredentials) (*users.User, error) {
	if err := b.store.EnsureSchema(ctx); err != nil {
		b.logger.Error("ensure schema", slog.Any("error", err))
	}

	admins, err := b.store.CountByRole(ctx, users.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("auth: bootstrap count admins: %w", err)
	}
	if admins > 0 {
		b.logger.Debug("admin present, skipping bootstrap", slog.Int("admins", admins))
		return nil, nil
	}

	if creds.Username == "" {
		creds.Username = DefaultAdminUser
	}
	if creds.Password == "" {
		creds.Password = DefaultAdminPassword
	}

	hash, err := b.hasher.Hash(creds.Password)
	if err != nil {
		return nil, fmt.Errorf("auth: bootstrap hash: %w", err)
	}
	admin := users.New(creds.Username, "bootstrap")
	admin.SecretHash = hash
	admin.FirstName = "Administrator"
	admin.Role = users.RoleAdmin
	admin.Active = true

	if err := b.store.Insert(ctx, admin); err != nil {
		return nil, fmt.Errorf("auth: bootstrap insert admin: %w", err)
	}
	b.logger.Info("administrator created", slog.String("username", admin.Username), slog.String("id", admin.ID))
	return admin, nil
}
