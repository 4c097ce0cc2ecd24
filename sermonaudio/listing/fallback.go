package listing

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/xeptore/sermondl/config"
	"github.com/xeptore/sermondl/httputil"
	"github.com/xeptore/sermondl/ratelimit"
	"github.com/xeptore/sermondl/sermonaudio/extract"
	"github.com/xeptore/sermondl/sermonaudio/types"
)

// Fallback lists sermons without the enumeration API, from the public owner
// pages and the series feed.
type Fallback struct {
	session  httputil.Session
	siteURL  string
	feedURL  string
	maxPages int
	timeout  time.Duration
	delay    time.Duration
}

func NewFallback(session httputil.Session, sa config.SermonAudio, conf config.Listing, timeouts config.Timeouts) *Fallback {
	return &Fallback{
		session:  session,
		siteURL:  sa.SiteURL,
		feedURL:  sa.FeedURL,
		maxPages: conf.HTMLMaxPages,
		timeout:  time.Duration(timeouts.FetchPage) * time.Second,
		delay:    conf.PageDelay.Duration,
	}
}

// List dispatches on the owner kind. As with Enumerate, failures degrade to
// a shorter list and only cancellation is returned.
func (f *Fallback) List(ctx context.Context, logger zerolog.Logger, kind types.OwnerKind, ownerID string) ([]string, error) {
	if kind == types.OwnerKindSeries {
		return f.Series(ctx, logger, ownerID)
	}

	return f.OwnerPages(ctx, logger, kind, ownerID)
}

// OwnerPages scrapes /<kind>s/<id>/sermons page by page until a page adds
// no new ID.
func (f *Fallback) OwnerPages(
	ctx context.Context,
	logger zerolog.Logger,
	kind types.OwnerKind,
	ownerID string,
) ([]string, error) {
	var (
		ids     []string
		seen    = make(map[string]struct{})
		pageURL = httputil.JoinURL(f.siteURL, kind.String()+"s", ownerID, "sermons")
	)

	for n := 1; n <= f.maxPages; n++ {
		logger := logger.With().Int("html_page", n).Logger()

		var params url.Values
		if n > 1 {
			params = url.Values{"page": []string{strconv.Itoa(n)}}
		}

		code, body, err := page(ctx, logger, f.session, pageURL, params, f.timeout)
		if nil != err {
			if cerr := ctx.Err(); nil != cerr {
				return ids, cerr
			}
			logger.Warn().Err(err).Msg("Listing page request failed, stopping")

			break
		}
		if code != http.StatusOK {
			logger.Warn().Int("status_code", code).Msg("Unexpected listing page status, stopping")
			break
		}

		added := 0
		for _, id := range extract.IDs(body) {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
			added++
		}
		logger.Debug().Int("new", added).Int("total", len(ids)).Msg("Listing page scraped")

		if added == 0 {
			break
		}

		if n < f.maxPages {
			if err := ratelimit.Sleep(ctx, f.delay); nil != err {
				return ids, err
			}
		}
	}

	return ids, nil
}

// Series prefers the feed, which lists the whole series, over the series
// page, which only renders the first batch.
func (f *Fallback) Series(ctx context.Context, logger zerolog.Logger, seriesID string) ([]string, error) {
	sources := []string{
		httputil.JoinURL(f.feedURL, seriesID),
		httputil.JoinURL(f.siteURL, "series", seriesID),
	}

	for _, src := range sources {
		logger := logger.With().Str("url", src).Logger()

		code, body, err := page(ctx, logger, f.session, src, nil, f.timeout)
		if nil != err {
			if cerr := ctx.Err(); nil != cerr {
				return nil, cerr
			}
			logger.Warn().Err(err).Msg("Series source request failed")

			continue
		}
		if code != http.StatusOK {
			logger.Warn().Int("status_code", code).Msg("Unexpected series source status")
			continue
		}

		if ids := extract.IDs(body); len(ids) > 0 {
			logger.Info().Int("ids", len(ids)).Msg("Series listed")
			return ids, nil
		}
		logger.Info().Msg("Series source listed no sermons")
	}

	return nil, nil
}
