package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/xeptore/sermondl/httputil"
)

const maxFetchRetries = 3

var pageTokenPattern = regexp.MustCompile(`apiKey:"([A-F0-9-]+)"`)

// fetchToken scrapes the key the site embeds in its homepage. Transport
// errors and transient statuses are retried with exponential backoff.
func (a *Auth) fetchToken(ctx context.Context, logger zerolog.Logger) (string, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 30 * time.Second

	var token string
	op := func() error {
		t, err := a.fetchTokenOnce(ctx, logger)
		if nil != err {
			return err
		}
		token = t

		return nil
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn().Err(err).Dur("retry_in", wait).Msg("Token page fetch failed, retrying")
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(b, maxFetchRetries), ctx), notify); nil != err {
		return "", err
	}

	return token, nil
}

func (a *Auth) fetchTokenOnce(ctx context.Context, logger zerolog.Logger) (token string, err error) {
	logger.Debug().Str("url", a.siteURL).Msg("Fetching token page")

	resp, err := a.session.Get(ctx, a.siteURL+"/", nil, a.fetchTimeout)
	if nil != err {
		if errors.Is(err, context.Canceled) {
			return "", backoff.Permanent(err)
		}

		return "", fmt.Errorf("fetch token page: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			logger.Error().Err(closeErr).Msg("Failed to close token page response body")
			err = errors.Join(err, fmt.Errorf("close token page response body: %v", closeErr))
		}
	}()

	if code := resp.StatusCode; code != http.StatusOK {
		err := &httputil.StatusError{URL: a.siteURL, Code: code}
		if httputil.IsTransientStatus(code) {
			return "", err
		}

		return "", backoff.Permanent(err)
	}

	body, err := httputil.ReadResponseBody(resp)
	if nil != err {
		return "", fmt.Errorf("read token page: %w", err)
	}

	m := pageTokenPattern.FindSubmatch(body)
	if nil == m {
		return "", backoff.Permanent(ErrTokenNotFound)
	}

	return string(m[1]), nil
}
