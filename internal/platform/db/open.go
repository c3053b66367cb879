package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	bolt "go.etcd.io/bbolt"
)

// Driver names the storage backend selected from a database URL.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverBolt     Driver = "bolt"
)

// ErrUnsupportedDriver is returned for URL schemes without a backend.
var ErrUnsupportedDriver = errors.New("platform/db: unsupported database driver")

// Conn holds the open handle of whichever backend the URL selected.
// Exactly one of Pool and Bolt is set.
type Conn struct {
	Driver Driver
	Pool   *pgxpool.Pool
	Bolt   *bolt.DB
}

// ParseURL maps a database URL to its driver and the driver-specific target:
// the DSN for postgres, the file path for bolt.
func ParseURL(rawURL string) (Driver, string, error) {
	scheme, rest, ok := strings.Cut(rawURL, "://")
	if !ok {
		return "", "", fmt.Errorf("%w: %q has no scheme", ErrUnsupportedDriver, rawURL)
	}
	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		return DriverPostgres, rawURL, nil
	case "bolt", "file":
		if rest == "" {
			return "", "", fmt.Errorf("platform/db: %q has no file path", rawURL)
		}
		return DriverBolt, rest, nil
	default:
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedDriver, scheme)
	}
}

// Open connects to the backend named by rawURL.
func Open(ctx context.Context, rawURL string) (*Conn, error) {
	driver, target, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	switch driver {
	case DriverPostgres:
		pool, err := New(ctx, target)
		if err != nil {
			return nil, err
		}
		return &Conn{Driver: driver, Pool: pool}, nil
	default:
		bdb, err := NewBolt(target)
		if err != nil {
			return nil, err
		}
		return &Conn{Driver: driver, Bolt: bdb}, nil
	}
}

// Close releases the underlying handle.
func (c *Conn) Close() error {
	if c == nil {
		return nil
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
	if c.Bolt != nil {
		return c.Bolt.Close()
	}
	return nil
}
