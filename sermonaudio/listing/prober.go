package listing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/xeptore/sermondl/config"
	"github.com/xeptore/sermondl/httputil"
	"github.com/xeptore/sermondl/sermonaudio/extract"
	"github.com/xeptore/sermondl/sermonaudio/types"
	"github.com/xeptore/sermondl/store"
)

var (
	ErrDiscoveryFailed = errors.New("no working enumeration endpoint")
	// ErrUnauthorized is a discovery failure where at least one candidate
	// refused the API key. It matches ErrDiscoveryFailed.
	ErrUnauthorized = fmt.Errorf("%w: API key rejected", ErrDiscoveryFailed)
)

type EndpointState int

const (
	EndpointUntested EndpointState = iota
	EndpointWorking
	EndpointFailed
)

type Endpoint struct {
	URL        string
	OwnerParam string
	State      EndpointState
}

// EndpointStore keeps discovered endpoints between runs.
type EndpointStore interface {
	LoadEndpoint(ctx context.Context, kind string) (*store.Endpoint, error)
	StoreEndpoint(ctx context.Context, kind string, ep store.Endpoint) error
	DeleteEndpoint(ctx context.Context, kind string) error
}

// Memo remembers the endpoint selected for each owner kind for the lifetime
// of the process. It is shared by every job.
type Memo struct {
	mux       sync.Mutex
	endpoints map[types.OwnerKind]*Endpoint
}

func NewMemo() *Memo {
	return &Memo{
		mux:       sync.Mutex{},
		endpoints: make(map[types.OwnerKind]*Endpoint),
	}
}

type Prober struct {
	session       httputil.Session
	candidates    []string
	probePageSize int
	timeout       time.Duration
	memo          *Memo
	store         EndpointStore
}

// NewProber lists candidates in preference order: the API host first, then
// the two site-relative paths. A nil store disables the cross-run cache.
func NewProber(
	session httputil.Session,
	sa config.SermonAudio,
	conf config.Listing,
	timeouts config.Timeouts,
	memo *Memo,
	st EndpointStore,
) *Prober {
	return &Prober{
		session: session,
		candidates: []string{
			httputil.JoinURL(sa.APIURL, "v2/node/sermons"),
			httputil.JoinURL(sa.SiteURL, "node/sermons"),
			httputil.JoinURL(sa.SiteURL, "api/node/sermons"),
		},
		probePageSize: conf.ProbePageSize,
		timeout:       time.Duration(timeouts.FetchPage) * time.Second,
		memo:          memo,
		store:         st,
	}
}

// Discover selects the enumeration endpoint for kind, testing candidates
// with ownerID. The only errors are ErrDiscoveryFailed, ErrUnauthorized and
// context cancellation.
func (p *Prober) Discover(
	ctx context.Context,
	logger zerolog.Logger,
	kind types.OwnerKind,
	ownerID string,
) (*Endpoint, error) {
	param := kind.OwnerParam()
	if param == "" {
		return nil, ErrDiscoveryFailed
	}

	p.memo.mux.Lock()
	defer p.memo.mux.Unlock()

	if ep, ok := p.memo.endpoints[kind]; ok {
		return ep, nil
	}

	ep, denied, err := p.verifyStored(ctx, logger, kind, ownerID)
	if nil != err {
		return nil, err
	}
	if nil != ep {
		p.memo.endpoints[kind] = ep
		return ep, nil
	}

	for _, candidate := range p.candidates {
		c := &Endpoint{URL: candidate, OwnerParam: param, State: EndpointUntested}
		rejected, err := p.probe(ctx, logger, c, ownerID)
		if nil != err {
			return nil, err
		}
		denied = denied || rejected
		if c.State != EndpointWorking {
			continue
		}

		p.memo.endpoints[kind] = c
		p.remember(ctx, logger, kind, c)

		return c, nil
	}

	if denied {
		return nil, ErrUnauthorized
	}

	return nil, ErrDiscoveryFailed
}

// verifyStored returns the endpoint remembered from an earlier run if it
// still works. One that fails for any reason but a rejected key is forgotten.
func (p *Prober) verifyStored(
	ctx context.Context,
	logger zerolog.Logger,
	kind types.OwnerKind,
	ownerID string,
) (ep *Endpoint, denied bool, err error) {
	if nil == p.store {
		return nil, false, nil
	}

	stored, err := p.store.LoadEndpoint(ctx, kind.String())
	if nil != err {
		logger.Warn().Err(err).Msg("Failed to load stored endpoint")
		return nil, false, nil
	}
	if nil == stored || stored.OwnerParam != kind.OwnerParam() {
		return nil, false, nil
	}

	ep = &Endpoint{URL: stored.URL, OwnerParam: stored.OwnerParam, State: EndpointUntested}
	denied, err = p.probe(ctx, logger, ep, ownerID)
	if nil != err {
		return nil, false, err
	}
	if ep.State == EndpointWorking {
		return ep, false, nil
	}

	if !denied {
		logger.Info().Str("url", stored.URL).Msg("Stored endpoint no longer works, forgetting it")
		if err := p.store.DeleteEndpoint(ctx, kind.String()); nil != err {
			logger.Warn().Err(err).Msg("Failed to delete stored endpoint")
		}
	}

	return nil, denied, nil
}

func (p *Prober) remember(ctx context.Context, logger zerolog.Logger, kind types.OwnerKind, ep *Endpoint) {
	if nil == p.store {
		return
	}

	rec := store.Endpoint{URL: ep.URL, OwnerParam: ep.OwnerParam, VerifiedAt: time.Now().UTC()}
	if err := p.store.StoreEndpoint(ctx, kind.String(), rec); nil != err {
		logger.Warn().Err(err).Msg("Failed to store endpoint")
	}
}

// probe settles ep.State: Working when it answers with at least one sermon
// ID, Failed otherwise. denied reports a 401 or 403 answer.
func (p *Prober) probe(
	ctx context.Context,
	logger zerolog.Logger,
	ep *Endpoint,
	ownerID string,
) (denied bool, err error) {
	logger = logger.With().Str("url", ep.URL).Logger()
	logger.Debug().Msg("Probing enumeration endpoint")

	ep.State = EndpointFailed

	code, body, err := page(ctx, logger, p.session, ep.URL, pageParams(ep.OwnerParam, ownerID, p.probePageSize, 1), p.timeout)
	if nil != err {
		if cerr := ctx.Err(); nil != cerr {
			return false, cerr
		}
		logger.Info().Err(err).Msg("Endpoint probe failed, skipping")

		return false, nil
	}

	switch code {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		logger.Warn().Int("status_code", code).Msg("Endpoint rejected the API key, skipping")
		return true, nil
	case http.StatusNotFound:
		logger.Info().Msg("Endpoint not found, skipping")
		return false, nil
	default:
		logger.Info().Int("status_code", code).Msg("Endpoint returned unexpected status, skipping")
		return false, nil
	}

	ids := extract.IDs(body)
	if len(ids) == 0 {
		logger.Info().Msg("Endpoint returned no sermon IDs, skipping")
		return false, nil
	}

	ep.State = EndpointWorking
	logger.Info().Int("ids", len(ids)).Msg("Endpoint selected")

	return false, nil
}
