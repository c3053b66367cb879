package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-starter/internal/auth"
	"github.com/odyssey-erp/odyssey-starter/internal/platform/db"
	"github.com/odyssey-erp/odyssey-starter/internal/users"
	_ "github.com/odyssey-erp/odyssey-starter/testing"
)

func TestSeedUsersIsRepeatable(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(ctx, "bolt://"+filepath.Join(t.TempDir(), "seed.db"))
	require.NoError(t, err)
	defer conn.Close()
	store, err := users.NewStore(conn)
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(ctx))
	hasher, err := auth.NewHasher(auth.Params{Time: 1, MemoryKiB: 64, Threads: 1, SaltLen: 16, KeyLen: 32})
	require.NoError(t, err)

	created, err := seedUsers(ctx, store, hasher, demoUsers)
	require.NoError(t, err)
	assert.Equal(t, len(demoUsers), created)

	created, err = seedUsers(ctx, store, hasher, demoUsers)
	require.NoError(t, err)
	assert.Zero(t, created)

	svc, err := auth.NewService(store, hasher, nil)
	require.NoError(t, err)
	u, err := svc.Authenticate(ctx, "analyst@odyssey.local", "analyst123")
	require.NoError(t, err)
	assert.Equal(t, "Ana Analyst", u.DisplayName())
	assert.True(t, u.EmailVerified)
}
