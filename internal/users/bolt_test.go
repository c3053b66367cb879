package users

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-starter/internal/platform/db"
	"github.com/odyssey-erp/odyssey-starter/internal/shared"
)

func newBoltStore(t *testing.T) *BoltStore {
	t.Helper()
	bdb, err := db.NewBolt(filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bdb.Close() })
	store := NewBoltStore(bdb)
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func newActiveUser(username, email string) *User {
	u := New(username, "test")
	u.Email = email
	u.SecretHash = []byte("$argon2id$placeholder")
	u.Role = RoleUser
	u.Active = true
	return u
}

func TestBoltStoreInsertAndLookup(t *testing.T) {
	ctx := context.Background()
	store := newBoltStore(t)

	u := newActiveUser("ana", "ana@example.com")
	require.NoError(t, store.Insert(ctx, u))

	byName, err := store.FindByUsername(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)
	assert.Equal(t, "ana@example.com", byName.Email)
	assert.Equal(t, u.SecretHash, byName.SecretHash)
	assert.Nil(t, byName.LastAccess)

	byEmail, err := store.FindByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	byID, err := store.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana", byID.Username)
}

func TestBoltStoreNotFound(t *testing.T) {
	ctx := context.Background()
	store := newBoltStore(t)

	_, err := store.FindByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = store.FindByEmail(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = store.FindByEmail(ctx, "")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = store.FindByID(ctx, "01J00000000000000000000000")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.ErrorIs(t, store.UpdateLastAccess(ctx, "missing", time.Now()), shared.ErrNotFound)
}

func TestBoltStoreInsertConflicts(t *testing.T) {
	ctx := context.Background()
	store := newBoltStore(t)
	require.NoError(t, store.Insert(ctx, newActiveUser("ana", "ana@example.com")))

	err := store.Insert(ctx, newActiveUser("ana", "other@example.com"))
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "username", conflict.Field)

	err = store.Insert(ctx, newActiveUser("bea", "ana@example.com"))
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "email", conflict.Field)

	// Users without an email never collide on it.
	require.NoError(t, store.Insert(ctx, newActiveUser("carl", "")))
	require.NoError(t, store.Insert(ctx, newActiveUser("dina", "")))
}

func TestBoltStoreRejectsActiveUserWithoutHash(t *testing.T) {
	store := newBoltStore(t)
	u := newActiveUser("ana", "")
	u.SecretHash = nil
	assert.ErrorIs(t, store.Insert(context.Background(), u), ErrMissingSecret)
}

func TestBoltStoreUpdateLastAccess(t *testing.T) {
	ctx := context.Background()
	store := newBoltStore(t)
	u := newActiveUser("ana", "")
	require.NoError(t, store.Insert(ctx, u))

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpdateLastAccess(ctx, u.ID, at))

	got, err := store.FindByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastAccess)
	assert.True(t, at.Equal(*got.LastAccess))
	assert.NotNil(t, got.UpdatedAt)
}

func TestBoltStoreCountByRole(t *testing.T) {
	ctx := context.Background()
	store := newBoltStore(t)

	n, err := store.CountByRole(ctx, RoleAdmin)
	require.NoError(t, err)
	assert.Zero(t, n)

	admin := newActiveUser("root", "")
	admin.Role = RoleAdmin
	require.NoError(t, store.Insert(ctx, admin))
	require.NoError(t, store.Insert(ctx, newActiveUser("ana", "")))

	n, err = store.CountByRole(ctx, RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBoltStoreEnsureSchemaKeepsData(t *testing.T) {
	ctx := context.Background()
	store := newBoltStore(t)
	u := newActiveUser("ana", "")
	require.NoError(t, store.Insert(ctx, u))

	require.NoError(t, store.EnsureSchema(ctx))

	_, err := store.FindByID(ctx, u.ID)
	assert.NoError(t, err)
}
