package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-starter/internal/auth"
	"github.com/odyssey-erp/odyssey-starter/internal/shared"
)

type attemptCounter map[string]int

func (c attemptCounter) RecordAuthAttempt(result string) { c[result]++ }

func newTestService(t *testing.T, store *memStore, opts ...auth.Option) (*auth.Service, *auth.Hasher) {
	t.Helper()
	hasher := newTestHasher(t)
	svc, err := auth.NewService(store, hasher, nil, opts...)
	require.NoError(t, err)
	return svc, hasher
}

func TestAuthenticateByUsername(t *testing.T) {
	store := newMemStore()
	fixed := time.Date(2026, 10, 1, 8, 30, 0, 0, time.UTC)
	counter := attemptCounter{}
	svc, hasher := newTestService(t, store, auth.WithClock(func() time.Time { return fixed }), auth.WithRecorder(counter))
	u := seedUser(t, store, hasher, "ana", "ana@example.com", "s3cret-pass")

	got, err := svc.Authenticate(context.Background(), "ana", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	require.NotNil(t, got.LastAccess)
	assert.Equal(t, fixed, *got.LastAccess)

	stored := store.get(u.ID)
	require.NotNil(t, stored.LastAccess)
	assert.Equal(t, fixed, *stored.LastAccess)
	assert.Equal(t, 1, counter[auth.AttemptSuccess])
}

func TestAuthenticateByEmailFallback(t *testing.T) {
	store := newMemStore()
	svc, hasher := newTestService(t, store)
	u := seedUser(t, store, hasher, "ana", "ana@example.com", "s3cret-pass")

	got, err := svc.Authenticate(context.Background(), "ana@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestAuthenticateUsernameWinsOverEmail(t *testing.T) {
	store := newMemStore()
	svc, hasher := newTestService(t, store)
	// bob's username equals ana's email: the username match is the one checked.
	seedUser(t, store, hasher, "ana", "shared@example.com", "ana-pass")
	bob := seedUser(t, store, hasher, "shared@example.com", "", "bob-pass")

	got, err := svc.Authenticate(context.Background(), "shared@example.com", "bob-pass")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, got.ID)

	_, err = svc.Authenticate(context.Background(), "shared@example.com", "ana-pass")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateWrongPasswordLeavesLastAccess(t *testing.T) {
	store := newMemStore()
	counter := attemptCounter{}
	svc, hasher := newTestService(t, store, auth.WithRecorder(counter))
	u := seedUser(t, store, hasher, "ana", "", "s3cret-pass")

	got, err := svc.Authenticate(context.Background(), "ana", "wrong-pass")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
	assert.Nil(t, store.get(u.ID).LastAccess)
	assert.Zero(t, store.updates)
	assert.Equal(t, 1, counter[auth.AttemptRejected])
}

func TestAuthenticateUnknownIdentifier(t *testing.T) {
	store := newMemStore()
	svc, hasher := newTestService(t, store)
	seedUser(t, store, hasher, "ana", "", "s3cret-pass")

	_, errUnknown := svc.Authenticate(context.Background(), "nonexistent", "anything")
	_, errWrong := svc.Authenticate(context.Background(), "ana", "anything")
	assert.ErrorIs(t, errUnknown, shared.ErrInvalidCredentials)
	assert.Equal(t, errWrong, errUnknown, "both rejections must look the same")
	assert.Equal(t, 1, store.len())
	assert.Zero(t, store.updates)

	_, err := svc.Authenticate(context.Background(), "", "anything")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateInactiveUser(t *testing.T) {
	store := newMemStore()
	svc, hasher := newTestService(t, store)
	u := seedUser(t, store, hasher, "ana", "", "s3cret-pass")
	store.byID[u.ID].Active = false

	_, err := svc.Authenticate(context.Background(), "ana", "s3cret-pass")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
	assert.Nil(t, store.get(u.ID).LastAccess)
}

func TestAuthenticateCorruptHashIsAuthError(t *testing.T) {
	store := newMemStore()
	counter := attemptCounter{}
	svc, hasher := newTestService(t, store, auth.WithRecorder(counter))
	u := seedUser(t, store, hasher, "ana", "", "s3cret-pass")
	store.byID[u.ID].SecretHash = []byte("not-a-hash")

	_, err := svc.Authenticate(context.Background(), "ana", "s3cret-pass")
	var authErr *auth.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, u.ID, authErr.UserID)
	assert.ErrorIs(t, err, auth.ErrMalformedHash)
	assert.NotErrorIs(t, err, shared.ErrInvalidCredentials)
	assert.Equal(t, 1, counter[auth.AttemptError])
}

func TestAuthenticateOversizedHashCostIsAuthError(t *testing.T) {
	store := newMemStore()
	svc, hasher := newTestService(t, store)
	u := seedUser(t, store, hasher, "ana", "", "s3cret-pass")
	store.byID[u.ID].SecretHash = []byte("$argon2id$v=19$m=4294967295,t=1,p=1$AAAAAAAAAAA$AAAAAAAAAAA")

	_, err := svc.Authenticate(context.Background(), "ana", "s3cret-pass")
	var authErr *auth.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.ErrorIs(t, err, auth.ErrMalformedHash)
}

func TestAuthenticateStoreFailurePropagates(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(t, store)
	boom := errors.New("connection reset")
	store.findErr = boom

	_, err := svc.Authenticate(context.Background(), "ana", "s3cret-pass")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, shared.ErrInvalidCredentials)
}
