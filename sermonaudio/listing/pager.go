package listing

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/xeptore/sermondl/config"
	"github.com/xeptore/sermondl/httputil"
	"github.com/xeptore/sermondl/ratelimit"
	"github.com/xeptore/sermondl/sermonaudio/extract"
)

type Pager struct {
	session httputil.Session
	timeout time.Duration
	delay   time.Duration
}

func NewPager(session httputil.Session, conf config.Listing, timeouts config.Timeouts) *Pager {
	return &Pager{
		session: session,
		timeout: time.Duration(timeouts.FetchPage) * time.Second,
		delay:   conf.PageDelay.Duration,
	}
}

// Enumerate walks pages 1..maxPages of ep and returns the unique IDs in
// first-seen order. It stops at the first failed, empty or short page.
// Failures end the walk quietly with what was collected; only context
// cancellation is reported, together with the partial list.
func (p *Pager) Enumerate(
	ctx context.Context,
	logger zerolog.Logger,
	ep *Endpoint,
	ownerID string,
	pageSize, maxPages int,
) ([]string, error) {
	var (
		ids  []string
		seen = make(map[string]struct{})
	)

	for n := 1; n <= maxPages; n++ {
		logger := logger.With().Int("page", n).Logger()

		code, body, err := page(ctx, logger, p.session, ep.URL, pageParams(ep.OwnerParam, ownerID, pageSize, n), p.timeout)
		if nil != err {
			if cerr := ctx.Err(); nil != cerr {
				return ids, cerr
			}
			logger.Warn().Err(err).Msg("Page request failed, stopping enumeration")

			break
		}
		if code != http.StatusOK {
			logger.Warn().Int("status_code", code).Msg("Unexpected page status, stopping enumeration")
			break
		}

		pageIDs := extract.IDs(body)
		if len(pageIDs) == 0 {
			break
		}

		added := 0
		for _, id := range pageIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
			added++
		}
		logger.Debug().Int("new", added).Int("total", len(ids)).Msg("Page enumerated")

		if len(pageIDs) < pageSize || n == maxPages {
			break
		}

		if err := ratelimit.Sleep(ctx, p.delay); nil != err {
			return ids, err
		}
	}

	return ids, nil
}
