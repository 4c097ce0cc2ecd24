package sermonaudio

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/xeptore/sermondl/cache"
	"github.com/xeptore/sermondl/config"
	"github.com/xeptore/sermondl/httputil"
	"github.com/xeptore/sermondl/ratelimit"
	"github.com/xeptore/sermondl/sermonaudio/auth"
	"github.com/xeptore/sermondl/sermonaudio/downloader"
	"github.com/xeptore/sermondl/sermonaudio/fs"
	"github.com/xeptore/sermondl/sermonaudio/listing"
	"github.com/xeptore/sermondl/sermonaudio/meta"
	"github.com/xeptore/sermondl/sermonaudio/types"
)

// Client is shared by every job of a process. Everything it holds is either
// immutable or guarded, so Run may be called concurrently.
type Client struct {
	conf    *config.Config
	session httputil.Session
	auth    *auth.Auth
	cache   *cache.Cache
	memo    *listing.Memo
	store   listing.EndpointStore
	claims  *fs.Claims
	limiter *rate.Limiter
}

// NewClient builds a client from conf. st keeps discovered endpoints between
// runs and may be nil.
func NewClient(conf *config.Config, st listing.EndpointStore) *Client {
	session := httputil.NewSession(conf.SermonAudio.UserAgent)

	return &Client{
		conf:    conf,
		session: session,
		auth:    auth.New(session, conf.SermonAudio, conf.Auth, conf.Timeouts),
		cache:   cache.New(),
		memo:    listing.NewMemo(),
		store:   st,
		claims:  fs.NewClaims(),
		limiter: ratelimit.NewItemLimiter(conf.Jobs.ItemsPerSecond),
	}
}

func (c *Client) Close() {
	c.cache.Stop()
}

// Run retrieves every item of col into root. Items are handled one after
// another in listing order and a failed item never stops the job. The
// report is returned even when the job is canceled, in which case the
// remaining items are left pending and the cancellation cause is returned
// alongside.
func (c *Client) Run(
	ctx context.Context,
	logger zerolog.Logger,
	col types.Collection,
	root string,
	pref types.QualityPreference,
) (*types.JobReport, error) {
	if err := pref.Validate(); nil != err {
		return nil, fmt.Errorf("invalid quality preference: %v", err)
	}

	logger = logger.With().Str("kind", col.Kind.String()).Str("owner_id", col.ID).Logger()

	session, err := c.authorize(ctx, logger)
	if nil != err {
		return nil, err
	}

	resolver := meta.NewResolver(session, c.conf.SermonAudio, c.conf.Timeouts, c.conf.Cache, c.cache)
	if col.Name == "" {
		name, err := resolver.OwnerName(ctx, logger, col.Kind, col.ID)
		if nil != err {
			return nil, err
		}
		col.Name = name
	}
	logger.Info().Dict("collection", col.ToDict()).Msg("Listing collection")

	ids, session, err := c.list(ctx, logger, session, col)
	report := types.NewJobReport(col, ids)
	if nil != err {
		report.Canceled = true
		return report, err
	}
	logger.Info().Int("items", len(ids)).Msg("Collection listed")

	var (
		dir = fs.DownloadDirFrom(root)
		dl  = downloader.New(session, c.conf.SermonAudio, c.conf.Downloader, c.conf.Timeouts)
	)
	resolver = meta.NewResolver(session, c.conf.SermonAudio, c.conf.Timeouts, c.conf.Cache, c.cache)
	for i := range report.Outcomes {
		if nil != ctx.Err() {
			report.Canceled = true
			return report, context.Cause(ctx)
		}
		if err := c.limiter.Wait(ctx); nil != err {
			report.Canceled = true
			return report, err
		}

		itemID := report.Outcomes[i].ItemID
		logger := logger.With().Str("sermon_id", itemID).Int("index", i).Logger()

		outcome, err := c.retrieve(ctx, logger, resolver, dl, dir, col, itemID, pref)
		if nil != err {
			report.Canceled = true
			return report, err
		}
		report.Outcomes[i] = outcome
	}

	logger.Info().Dict("report", report.ToDict()).Msg("Collection retrieved")

	return report, nil
}

// DownloadSermon retrieves a single sermon into root, named after its title.
// Like Run, it returns an error only when the credential cannot be acquired
// or ctx is canceled; other failures are described by the outcome.
func (c *Client) DownloadSermon(
	ctx context.Context,
	logger zerolog.Logger,
	sermonID, root string,
	pref types.QualityPreference,
) (types.Outcome, error) {
	if err := pref.Validate(); nil != err {
		return pending(sermonID), fmt.Errorf("invalid quality preference: %v", err)
	}

	logger = logger.With().Str("sermon_id", sermonID).Logger()

	session, err := c.authorize(ctx, logger)
	if nil != err {
		return pending(sermonID), err
	}

	var (
		resolver = meta.NewResolver(session, c.conf.SermonAudio, c.conf.Timeouts, c.conf.Cache, c.cache)
		dl       = downloader.New(session, c.conf.SermonAudio, c.conf.Downloader, c.conf.Timeouts)
	)

	md, err := resolver.Resolve(ctx, logger, sermonID)
	if nil != err {
		if nil != ctx.Err() {
			return pending(sermonID), context.Cause(ctx)
		}

		return failed(sermonID, fmt.Sprintf("resolve metadata: %v", err)), nil
	}

	return c.fetch(ctx, logger, dl, sermonID, fs.DownloadDirFrom(root).File(md.Title, pref.Media.Ext()), pref)
}

func (c *Client) authorize(ctx context.Context, logger zerolog.Logger) (httputil.Session, error) {
	cred, err := c.auth.Get(ctx, logger, false)
	if nil != err {
		return httputil.Session{}, fmt.Errorf("acquire credential: %w", err)
	}
	logger.Debug().Dict("credential", cred.ToDict()).Msg("Credential acquired")

	return c.session.WithAPIKey(cred.Token), nil
}

// list prefers the enumeration endpoint and only scrapes listing pages or
// the series feed when no endpoint works for the owner kind. A rejected API
// key is replaced once; the session in use afterwards is returned.
func (c *Client) list(
	ctx context.Context,
	logger zerolog.Logger,
	session httputil.Session,
	col types.Collection,
) ([]string, httputil.Session, error) {
	ep, err := c.discover(ctx, logger, session, col)
	if errors.Is(err, listing.ErrUnauthorized) {
		logger.Warn().Msg("API key rejected, acquiring another one")
		c.auth.Invalidate(session.APIKey())

		session, err = c.authorize(ctx, logger)
		if nil != err {
			return nil, session, err
		}
		ep, err = c.discover(ctx, logger, session, col)
	}
	if nil != err {
		if !errors.Is(err, listing.ErrDiscoveryFailed) {
			return nil, session, err
		}
		logger.Info().Msg("No enumeration endpoint available, falling back to listing pages")

		ids, err := listing.NewFallback(session, c.conf.SermonAudio, c.conf.Listing, c.conf.Timeouts).List(ctx, logger, col.Kind, col.ID)
		return ids, session, err
	}
	logger.Debug().Str("endpoint", ep.URL).Msg("Using enumeration endpoint")

	ids, err := listing.NewPager(session, c.conf.Listing, c.conf.Timeouts).
		Enumerate(ctx, logger, ep, col.ID, c.conf.Listing.PageSize, c.conf.Listing.MaxPages)

	return ids, session, err
}

func (c *Client) discover(
	ctx context.Context,
	logger zerolog.Logger,
	session httputil.Session,
	col types.Collection,
) (*listing.Endpoint, error) {
	prober := listing.NewProber(session, c.conf.SermonAudio, c.conf.Listing, c.conf.Timeouts, c.memo, c.store)
	return prober.Discover(ctx, logger, col.Kind, col.ID)
}

// retrieve resolves the item name and downloads it. The error is non-nil
// only on cancellation.
func (c *Client) retrieve(
	ctx context.Context,
	logger zerolog.Logger,
	resolver *meta.Resolver,
	dl *downloader.Downloader,
	dir fs.DownloadDir,
	col types.Collection,
	itemID string,
	pref types.QualityPreference,
) (types.Outcome, error) {
	md, err := resolver.Resolve(ctx, logger, itemID)
	if nil != err {
		if nil != ctx.Err() {
			return pending(itemID), context.Cause(ctx)
		}
		logger.Error().Err(err).Msg("Failed to resolve sermon metadata")

		return failed(itemID, fmt.Sprintf("resolve metadata: %v", err)), nil
	}

	// A series folder is already named after the series.
	group := md.Group
	if col.Kind == types.OwnerKindSeries {
		group = nil
	}

	return c.fetch(ctx, logger, dl, itemID, dir.Destination(col.Name, group, md.Title, pref.Media.Ext()), pref)
}

func (c *Client) fetch(
	ctx context.Context,
	logger zerolog.Logger,
	dl *downloader.Downloader,
	itemID string,
	dst fs.Destination,
	pref types.QualityPreference,
) (types.Outcome, error) {
	logger = logger.With().Str("path", dst.Path).Logger()

	if path, exists, err := dst.Published(); nil != err {
		return failed(itemID, err.Error()), nil
	} else if exists {
		logger.Info().Str("published", path).Msg("Already downloaded, skipping")
		return skipped(itemID, path, "already downloaded"), nil
	}

	if err := dst.MkdirAll(); nil != err {
		logger.Error().Err(err).Msg("Failed to create destination directory")
		return failed(itemID, err.Error()), nil
	}

	release, err := c.claims.Acquire(dst)
	if nil != err {
		if errors.Is(err, fs.ErrClaimed) {
			logger.Warn().Msg("Destination claimed by another job, skipping")
			return skipped(itemID, dst.Path, err.Error()), nil
		}
		logger.Error().Err(err).Msg("Failed to claim destination")

		return failed(itemID, err.Error()), nil
	}
	defer func() {
		if err := release(); nil != err {
			logger.Warn().Err(err).Msg("Failed to release destination claim")
		}
	}()

	// Another job may have published it between the first check and the claim.
	if path, exists, err := dst.Published(); nil != err {
		return failed(itemID, err.Error()), nil
	} else if exists {
		return skipped(itemID, path, "already downloaded"), nil
	}

	path, err := dl.Fetch(ctx, logger, downloader.Task{
		ItemID:      itemID,
		Media:       pref.Media,
		Ladder:      pref.Ladder(),
		Destination: dst,
		Progress:    progressLogger(logger),
	})
	if nil != err {
		if nil != ctx.Err() {
			return pending(itemID), context.Cause(ctx)
		}
		logger.Error().Err(err).Msg("Failed to download sermon")

		return failed(itemID, err.Error()), nil
	}

	return types.Outcome{ItemID: itemID, State: types.OutcomeDone, Path: path, Reason: ""}, nil
}

func pending(itemID string) types.Outcome {
	return types.Outcome{ItemID: itemID, State: types.OutcomePending, Path: "", Reason: ""}
}

func skipped(itemID, path, reason string) types.Outcome {
	return types.Outcome{ItemID: itemID, State: types.OutcomeSkipped, Path: path, Reason: reason}
}

func failed(itemID, reason string) types.Outcome {
	return types.Outcome{ItemID: itemID, State: types.OutcomeFailed, Path: "", Reason: reason}
}
