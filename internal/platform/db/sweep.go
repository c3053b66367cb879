package db

import (
	"context"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-starter/internal/shared"
)

// ExpiryPurger is implemented by session stores whose entries do not expire
// on their own.
type ExpiryPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// SweepSessions purges expired sessions once at start and then every
// interval until ctx is done. Stores that expire entries themselves, such as
// Redis, are left alone. Purge failures are logged and retried next tick.
func SweepSessions(ctx context.Context, store shared.SessionStore, interval time.Duration, logger *slog.Logger) error {
	purger, ok := store.(ExpiryPurger)
	if !ok {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		n, err := purger.PurgeExpired(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			logger.Warn("purge expired sessions", slog.Any("error", err))
		case n > 0:
			logger.Debug("purged expired sessions", slog.Int("count", n))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
