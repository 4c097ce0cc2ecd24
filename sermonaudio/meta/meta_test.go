package meta_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/sermondl/cache"
	"github.com/xeptore/sermondl/config"
	"github.com/xeptore/sermondl/httputil"
	"github.com/xeptore/sermondl/log"
	"github.com/xeptore/sermondl/sermonaudio/meta"
	"github.com/xeptore/sermondl/sermonaudio/types"
)

func newResolver(t *testing.T, h http.Handler) *meta.Resolver {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	conf := config.Default()
	conf.SermonAudio.SiteURL = srv.URL

	c := cache.New()
	t.Cleanup(c.Stop)

	return meta.NewResolver(httputil.NewSession("test"), conf.SermonAudio, conf.Timeouts, conf.Cache, c)
}

func TestResolve(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sermons/123", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = fmt.Fprint(w, `<html><head><title>Justified | SermonAudio</title></head>
<body><h1 class="title">Justified by Faith</h1><a href="/series/77">Romans</a></body></html>`)
	})
	r := newResolver(t, mux)

	m, err := r.Resolve(context.Background(), log.Nop(), "123")
	require.NoError(t, err)
	assert.Equal(t, "Justified by Faith", m.Title)
	require.NotNil(t, m.Group)
	assert.Equal(t, "Romans", *m.Group)

	_, err = r.Resolve(context.Background(), log.Nop(), "123")
	require.NoError(t, err)
	assert.EqualValues(t, 1, hits.Load(), "metadata is cached per item")
}

func TestResolveRetriesTransientStatus(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sermons/5", func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, `<html><body><p>no title</p></body></html>`)
	})
	r := newResolver(t, mux)

	m, err := r.Resolve(context.Background(), log.Nop(), "5")
	require.NoError(t, err)
	assert.Equal(t, "Untitled", m.Title)
	assert.Nil(t, m.Group)
	assert.EqualValues(t, 2, hits.Load())
}

func TestResolveNotFound(t *testing.T) {
	t.Parallel()

	r := newResolver(t, http.NotFoundHandler())

	_, err := r.Resolve(context.Background(), log.Nop(), "404")
	require.Error(t, err)

	var statusErr *httputil.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
}

func TestOwnerName(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /broadcasters/ghbc", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `<h1>#Grace Heritage Baptist</h1>`)
	})
	mux.HandleFunc("GET /speakers/42/sermons", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `<title>Sermons | John Doe | SermonAudio</title>`)
	})
	r := newResolver(t, mux)
	ctx := context.Background()

	name, err := r.OwnerName(ctx, log.Nop(), types.OwnerKindBroadcaster, "ghbc")
	require.NoError(t, err)
	assert.Equal(t, "Grace Heritage Baptist", name)

	name, err = r.OwnerName(ctx, log.Nop(), types.OwnerKindSpeaker, "42")
	require.NoError(t, err)
	assert.Equal(t, "John Doe", name)

	name, err = r.OwnerName(ctx, log.Nop(), types.OwnerKindSeries, "9")
	require.NoError(t, err)
	assert.Equal(t, "Series 9", name)
}
