package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	bolt "go.etcd.io/bbolt"

	"github.com/odyssey-erp/odyssey-starter/internal/shared"
)

// PostgresSessionStore keeps sessions in the sessions table.
type PostgresSessionStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresSessionStore wraps pool as a shared.SessionStore.
func NewPostgresSessionStore(pool *pgxpool.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool, now: time.Now}
}

// Load implements shared.SessionStore.
func (s *PostgresSessionStore) Load(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM sessions WHERE id = $1 AND expires_at > $2`,
		id, s.now().UTC(),
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrSessionNotFound
		}
		return nil, fmt.Errorf("platform/db: load session: %w", err)
	}
	return data, nil
}

// Save implements shared.SessionStore.
func (s *PostgresSessionStore) Save(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (id, data, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at`,
		id, data, s.now().UTC().Add(ttl),
	)
	if err != nil {
		return fmt.Errorf("platform/db: save session: %w", err)
	}
	return nil
}

// Delete implements shared.SessionStore.
func (s *PostgresSessionStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("platform/db: delete session: %w", err)
	}
	return nil
}

// PurgeExpired deletes every session past its expiry.
func (s *PostgresSessionStore) PurgeExpired(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("platform/db: purge sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

var sessionsBucket = []byte("sessions")

// BoltSessionStore keeps sessions in the sessions bucket of a bbolt file.
type BoltSessionStore struct {
	db  *bolt.DB
	now func() time.Time
}

type boltSession struct {
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewBoltSessionStore ensures the sessions bucket exists and wraps bdb.
func NewBoltSessionStore(bdb *bolt.DB) (*BoltSessionStore, error) {
	if err := bdb.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionsBucket)
		return err
	}); err != nil {
		return nil, fmt.Errorf("platform/db: sessions bucket: %w", err)
	}
	return &BoltSessionStore{db: bdb, now: time.Now}, nil
}

// Load implements shared.SessionStore. Expired entries are removed on sight.
func (s *BoltSessionStore) Load(ctx context.Context, id string) ([]byte, error) {
	var (
		stored  boltSession
		found   bool
		expired bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(sessionsBucket).Get([]byte(id))
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, &stored); err != nil {
			return err
		}
		found = true
		expired = !stored.ExpiresAt.After(s.now())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("platform/db: load session: %w", err)
	}
	if !found {
		return nil, shared.ErrSessionNotFound
	}
	if expired {
		_ = s.Delete(ctx, id)
		return nil, shared.ErrSessionNotFound
	}
	return stored.Data, nil
}

// Save implements shared.SessionStore.
func (s *BoltSessionStore) Save(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	payload, err := json.Marshal(boltSession{Data: data, ExpiresAt: s.now().Add(ttl)})
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).Put([]byte(id), payload)
	})
}

// Delete implements shared.SessionStore.
func (s *BoltSessionStore) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).Delete([]byte(id))
	})
}

// PurgeExpired deletes every session past its expiry. Undecodable entries
// are dropped as well.
func (s *BoltSessionStore) PurgeExpired(ctx context.Context) (int, error) {
	now := s.now()
	purged := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(sessionsBucket)
		var stale [][]byte
		if err := b.ForEach(func(k, v []byte) error {
			var stored boltSession
			if err := json.Unmarshal(v, &stored); err != nil || !stored.ExpiresAt.After(now) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		purged = len(stale)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("platform/db: purge sessions: %w", err)
	}
	return purged, nil
}

var (
	_ shared.SessionStore = (*PostgresSessionStore)(nil)
	_ shared.SessionStore = (*BoltSessionStore)(nil)
)

// NewSessionStore returns the session store hosted by the open backend.
func NewSessionStore(conn *Conn) (shared.SessionStore, error) {
	switch conn.Driver {
	case DriverPostgres:
		return NewPostgresSessionStore(conn.Pool), nil
	case DriverBolt:
		return NewBoltSessionStore(conn.Bolt)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, conn.Driver)
	}
}
