package shared_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-starter/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-starter/internal/shared"
)

func newManager(t *testing.T) (*shared.SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return shared.NewSessionManager(cache.NewSessionStore(client), "sid", "secret", time.Hour, true), mr
}

func requestWithCookie(id string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if id != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: id})
	}
	return req
}

func commit(t *testing.T, sm *shared.SessionManager, sess *shared.Session) *http.Cookie {
	t.Helper()
	res := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), res, requestWithCookie(""), sess))
	cookies := res.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func TestSessionRoundTrip(t *testing.T) {
	sm, mr := newManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, requestWithCookie(""))
	require.NoError(t, err)
	sess.Set("k", "v")
	sess.SetUser("01J0USER")
	cookie := commit(t, sm, sess)

	assert.Equal(t, "sid", cookie.Name)
	assert.Equal(t, sess.ID, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.True(t, mr.Exists("session:"+sess.ID))
	assert.InDelta(t, time.Hour.Seconds(), mr.TTL("session:"+sess.ID).Seconds(), 1)

	loaded, err := sm.Load(ctx, requestWithCookie(sess.ID))
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, "v", loaded.Get("k"))
	assert.Equal(t, "01J0USER", loaded.User())
}

func TestSessionUnknownCookieGetsFreshID(t *testing.T) {
	sm, mr := newManager(t)

	sess, err := sm.Load(context.Background(), requestWithCookie("attacker-chosen"))
	require.NoError(t, err)
	assert.NotEqual(t, "attacker-chosen", sess.ID)
	commit(t, sm, sess)
	assert.False(t, mr.Exists("session:attacker-chosen"))
}

func TestSessionRenewDropsOldID(t *testing.T) {
	sm, mr := newManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, requestWithCookie(""))
	require.NoError(t, err)
	sess.Set("k", "v")
	commit(t, sm, sess)
	oldID := sess.ID

	loaded, err := sm.Load(ctx, requestWithCookie(oldID))
	require.NoError(t, err)
	sm.Renew(loaded)
	loaded.SetUser("01J0USER")
	cookie := commit(t, sm, loaded)

	assert.NotEqual(t, oldID, loaded.ID)
	assert.Equal(t, loaded.ID, cookie.Value)
	assert.False(t, mr.Exists("session:"+oldID))

	renewed, err := sm.Load(ctx, requestWithCookie(loaded.ID))
	require.NoError(t, err)
	assert.Equal(t, "v", renewed.Get("k"))
	assert.Equal(t, "01J0USER", renewed.User())
}

func TestSessionDestroy(t *testing.T) {
	sm, mr := newManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, requestWithCookie(""))
	require.NoError(t, err)
	sess.SetUser("01J0USER")
	commit(t, sm, sess)
	require.True(t, mr.Exists("session:"+sess.ID))

	loaded, err := sm.Load(ctx, requestWithCookie(sess.ID))
	require.NoError(t, err)
	sm.Destroy(loaded)
	cookie := commit(t, sm, loaded)

	assert.True(t, loaded.Destroyed())
	assert.Equal(t, -1, cookie.MaxAge)
	assert.False(t, mr.Exists("session:"+sess.ID))
}

func TestFlashSurvivesRedirect(t *testing.T) {
	sm, _ := newManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, requestWithCookie(""))
	require.NoError(t, err)
	sess.AddFlash(shared.FlashMessage{Kind: "info", Message: "hello"})
	commit(t, sm, sess)

	next, err := sm.Load(ctx, requestWithCookie(sess.ID))
	require.NoError(t, err)
	flash := next.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "hello", flash.Message)
	assert.Nil(t, next.PopFlash())
	commit(t, sm, next)

	after, err := sm.Load(ctx, requestWithCookie(sess.ID))
	require.NoError(t, err)
	assert.Nil(t, after.PopFlash())
}

func TestClearUser(t *testing.T) {
	sm, _ := newManager(t)
	sess, err := sm.Load(context.Background(), requestWithCookie(""))
	require.NoError(t, err)

	sess.SetUser("01J0USER")
	sess.ClearUser()
	assert.Empty(t, sess.User())
}
