package auth_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/sermondl/config"
	"github.com/xeptore/sermondl/httputil"
	"github.com/xeptore/sermondl/log"
	"github.com/xeptore/sermondl/sermonaudio/auth"
)

const (
	storedKey = "11111111-2222-3333-4444-555555555555"
	freshKey  = "3C2E7B5F-5E3C-4AAC-AF49-0906CBDA920F"
)

type site struct {
	homepage     string
	acceptKey    string
	homeHits     atomic.Int32
	validateHits atomic.Int32
}

func (s *site) start(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		s.homeHits.Add(1)
		_, _ = fmt.Fprint(w, s.homepage)
	})
	mux.HandleFunc("GET /v2/node/sermons", func(w http.ResponseWriter, r *http.Request) {
		s.validateHits.Add(1)
		if r.Header.Get("X-API-Key") != s.acceptKey {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = fmt.Fprint(w, `{"results":[]}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func newAuth(t *testing.T, srv *httptest.Server, dir, fallback string) *auth.Auth {
	t.Helper()

	conf := config.Default()
	conf.SermonAudio.SiteURL = srv.URL
	conf.SermonAudio.APIURL = srv.URL
	conf.Auth.CredsDir = dir
	conf.Auth.FallbackKey = fallback

	return auth.New(httputil.NewSession("test"), conf.SermonAudio, conf.Auth, conf.Timeouts)
}

func homepage(key string) string {
	return `<html><script>window.__NUXT__={config:{apiKey:"` + key + `",x:1}}</script></html>`
}

func TestGetMalformedStoredTokenIsReplaced(t *testing.T) {
	t.Parallel()

	s := &site{homepage: homepage(freshKey), acceptKey: freshKey}
	srv := s.start(t)

	dir := t.TempDir()
	tokenPath := filepath.Join(dir, "auth.txt")
	require.NoError(t, os.WriteFile(tokenPath, []byte("not-a-key"), 0o600))

	a := newAuth(t, srv, dir, "")
	c, err := a.Get(context.Background(), log.Nop(), false)
	require.NoError(t, err)

	assert.Equal(t, freshKey, c.Token)
	assert.False(t, c.Fallback)
	assert.EqualValues(t, 0, s.validateHits.Load(), "malformed token must not be validated remotely")
	assert.EqualValues(t, 1, s.homeHits.Load())

	stored, err := os.ReadFile(tokenPath)
	require.NoError(t, err)
	assert.Equal(t, freshKey, string(stored))
}

func TestGetValidStoredTokenIsReused(t *testing.T) {
	t.Parallel()

	s := &site{homepage: homepage(freshKey), acceptKey: storedKey}
	srv := s.start(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "auth.txt"), []byte(storedKey+"\n"), 0o600))

	a := newAuth(t, srv, dir, "")
	c, err := a.Get(context.Background(), log.Nop(), false)
	require.NoError(t, err)
	assert.Equal(t, storedKey, c.Token)
	assert.Equal(t, auth.ValidityValid, c.Validity)
	assert.EqualValues(t, 0, s.homeHits.Load())

	again, err := a.Get(context.Background(), log.Nop(), false)
	require.NoError(t, err)
	assert.Same(t, c, again)
	assert.EqualValues(t, 1, s.validateHits.Load(), "credential is acquired once per process")
}

func TestGetRejectedStoredTokenIsReplaced(t *testing.T) {
	t.Parallel()

	s := &site{homepage: homepage(freshKey), acceptKey: freshKey}
	srv := s.start(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "auth.txt"), []byte(storedKey), 0o600))

	a := newAuth(t, srv, dir, "")
	c, err := a.Get(context.Background(), log.Nop(), false)
	require.NoError(t, err)
	assert.Equal(t, freshKey, c.Token)
	assert.EqualValues(t, 1, s.validateHits.Load())
	assert.EqualValues(t, 1, s.homeHits.Load())
}

func TestGetForceRefreshSkipsStoredToken(t *testing.T) {
	t.Parallel()

	s := &site{homepage: homepage(freshKey), acceptKey: storedKey}
	srv := s.start(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "auth.txt"), []byte(storedKey), 0o600))

	a := newAuth(t, srv, dir, "")
	c, err := a.Get(context.Background(), log.Nop(), true)
	require.NoError(t, err)
	assert.Equal(t, freshKey, c.Token)
	assert.EqualValues(t, 0, s.validateHits.Load())
}

func TestGetTokenNotFound(t *testing.T) {
	t.Parallel()

	s := &site{homepage: `<html>no key here</html>`, acceptKey: freshKey}
	srv := s.start(t)

	a := newAuth(t, srv, t.TempDir(), "")
	_, err := a.Get(context.Background(), log.Nop(), false)
	require.Error(t, err)
	require.ErrorIs(t, err, auth.ErrAuth)
	require.ErrorIs(t, err, auth.ErrTokenNotFound)
	assert.Contains(t, err.Error(), "token not found in page markup")
	assert.EqualValues(t, 1, s.homeHits.Load(), "a page without a token is not retried")
}

func TestGetFallsBackToConfiguredKey(t *testing.T) {
	t.Parallel()

	s := &site{homepage: `<html></html>`, acceptKey: freshKey}
	srv := s.start(t)

	a := newAuth(t, srv, t.TempDir(), storedKey)
	c, err := a.Get(context.Background(), log.Nop(), false)
	require.NoError(t, err)
	assert.Equal(t, storedKey, c.Token)
	assert.True(t, c.Fallback)
	assert.Same(t, c, a.Credential())
}

func TestRefreshNeverUsesFallbackKey(t *testing.T) {
	t.Parallel()

	s := &site{homepage: `<html></html>`, acceptKey: freshKey}
	srv := s.start(t)

	a := newAuth(t, srv, t.TempDir(), storedKey)
	_, err := a.Refresh(context.Background(), log.Nop())
	require.ErrorIs(t, err, auth.ErrAuth)
	require.ErrorIs(t, err, auth.ErrTokenNotFound)
	assert.Nil(t, a.Credential())
}

func TestRefreshStoresFreshToken(t *testing.T) {
	t.Parallel()

	s := &site{homepage: homepage(freshKey), acceptKey: freshKey}
	srv := s.start(t)

	dir := t.TempDir()
	a := newAuth(t, srv, dir, storedKey)
	c, err := a.Refresh(context.Background(), log.Nop())
	require.NoError(t, err)
	assert.Equal(t, freshKey, c.Token)
	assert.False(t, c.Fallback)

	stored, err := os.ReadFile(filepath.Join(dir, "auth.txt"))
	require.NoError(t, err)
	assert.Equal(t, freshKey, string(stored))
}

func TestInvalidateAcquiresAnotherToken(t *testing.T) {
	t.Parallel()

	s := &site{homepage: homepage(freshKey), acceptKey: storedKey}
	srv := s.start(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "auth.txt"), []byte(storedKey), 0o600))

	a := newAuth(t, srv, dir, "")
	c, err := a.Get(context.Background(), log.Nop(), false)
	require.NoError(t, err)
	require.Equal(t, storedKey, c.Token)

	a.Invalidate("some other token")
	assert.Equal(t, auth.ValidityValid, a.Credential().Validity, "only the named token is invalidated")

	a.Invalidate(storedKey)
	assert.Equal(t, auth.ValidityInvalid, a.Credential().Validity)

	c, err = a.Get(context.Background(), log.Nop(), false)
	require.NoError(t, err)
	assert.Equal(t, freshKey, c.Token)
	assert.EqualValues(t, 1, s.validateHits.Load(), "a rejected stored token is not validated again")
	assert.EqualValues(t, 1, s.homeHits.Load())
}

func TestInvalidatedFallbackKeyIsNotReused(t *testing.T) {
	t.Parallel()

	s := &site{homepage: `<html></html>`, acceptKey: freshKey}
	srv := s.start(t)

	a := newAuth(t, srv, t.TempDir(), storedKey)
	c, err := a.Get(context.Background(), log.Nop(), false)
	require.NoError(t, err)
	require.True(t, c.Fallback)

	a.Invalidate(c.Token)
	_, err = a.Get(context.Background(), log.Nop(), false)
	require.ErrorIs(t, err, auth.ErrAuth)
}
