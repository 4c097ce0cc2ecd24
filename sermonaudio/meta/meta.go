package meta

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/xeptore/sermondl/cache"
	"github.com/xeptore/sermondl/config"
	"github.com/xeptore/sermondl/httputil"
	"github.com/xeptore/sermondl/sermonaudio/extract"
	"github.com/xeptore/sermondl/sermonaudio/types"
)

const (
	maxRetries = 3
	retryBase  = 500 * time.Millisecond
)

// Resolver turns sermon and owner pages into display names.
type Resolver struct {
	session httputil.Session
	siteURL string
	timeout time.Duration
	ttl     time.Duration
	cache   *cache.Cache
}

func NewResolver(
	session httputil.Session,
	sa config.SermonAudio,
	timeouts config.Timeouts,
	conf config.Cache,
	c *cache.Cache,
) *Resolver {
	return &Resolver{
		session: session,
		siteURL: sa.SiteURL,
		timeout: time.Duration(timeouts.FetchPage) * time.Second,
		ttl:     conf.MetadataTTL.Duration,
		cache:   c,
	}
}

// Resolve reads the title and series of a sermon from its page.
func (r *Resolver) Resolve(ctx context.Context, logger zerolog.Logger, itemID string) (*types.Metadata, error) {
	return r.cache.Metadata.Fetch(itemID, r.ttl, func() (*types.Metadata, error) {
		doc, err := r.document(ctx, logger, httputil.JoinURL(r.siteURL, "sermons", itemID))
		if nil != err {
			return nil, fmt.Errorf("fetch sermon page: %w", err)
		}

		return &types.Metadata{
			Title: extract.Title(doc),
			Group: extract.Series(doc),
		}, nil
	})
}

// OwnerName is best effort: any failure but cancellation yields the generic
// "<Kind> <id>" label.
func (r *Resolver) OwnerName(
	ctx context.Context,
	logger zerolog.Logger,
	kind types.OwnerKind,
	ownerID string,
) (string, error) {
	name, err := r.cache.OwnerNames.Fetch(kind.String()+"/"+ownerID, cache.DefaultOwnerNameTTL, func() (string, error) {
		doc, err := r.document(ctx, logger, r.ownerPageURL(kind, ownerID))
		if nil != err {
			return "", err
		}

		name, ok := extract.First(doc, extract.OwnerNameStrategies)
		if !ok {
			return "", errors.New("owner page has no usable name")
		}

		return name, nil
	})
	if nil != err {
		if cerr := ctx.Err(); nil != cerr {
			return "", cerr
		}
		logger.Warn().Err(err).Msg("Could not resolve owner name, using generic label")

		return kind.DefaultName(ownerID), nil
	}

	return name, nil
}

func (r *Resolver) ownerPageURL(kind types.OwnerKind, ownerID string) string {
	switch kind {
	case types.OwnerKindBroadcaster:
		return httputil.JoinURL(r.siteURL, "broadcasters", ownerID)
	case types.OwnerKindSpeaker:
		return httputil.JoinURL(r.siteURL, "speakers", ownerID, "sermons")
	default:
		return httputil.JoinURL(r.siteURL, "series", ownerID)
	}
}

// document fetches and parses a page, retrying transport errors and
// transient statuses with a Fibonacci backoff.
func (r *Resolver) document(ctx context.Context, logger zerolog.Logger, pageURL string) (*goquery.Document, error) {
	logger = logger.With().Str("url", pageURL).Logger()

	var doc *goquery.Document
	err := retry.Do(
		ctx,
		retry.WithMaxRetries(maxRetries, retry.NewFibonacci(retryBase)),
		func(ctx context.Context) error {
			d, err := r.fetchDocument(ctx, logger, pageURL)
			if nil != err {
				return err
			}
			doc = d

			return nil
		},
	)
	if nil != err {
		return nil, err
	}

	return doc, nil
}

func (r *Resolver) fetchDocument(ctx context.Context, logger zerolog.Logger, pageURL string) (doc *goquery.Document, err error) {
	resp, err := r.session.Get(ctx, pageURL, nil, r.timeout)
	if nil != err {
		if cerr := ctx.Err(); nil != cerr {
			return nil, cerr
		}
		logger.Warn().Err(err).Msg("Page request failed")

		return nil, retry.RetryableError(err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			logger.Error().Err(closeErr).Msg("Failed to close page response body")
			err = errors.Join(err, fmt.Errorf("close page response body: %v", closeErr))
		}
	}()

	if code := resp.StatusCode; code != http.StatusOK {
		err := &httputil.StatusError{URL: pageURL, Code: code}
		if httputil.IsTransientStatus(code) {
			logger.Warn().Int("status_code", code).Msg("Transient page status")
			return nil, retry.RetryableError(err)
		}

		return nil, err
	}

	doc, err = httputil.ParseHTML(resp)
	if nil != err {
		return nil, err
	}

	return doc, nil
}
