package listing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/xeptore/sermondl/httputil"
)

// page fetches one listing document. A non-nil error is a transport or read
// failure; any status is returned as-is for the caller to judge.
func page(
	ctx context.Context,
	logger zerolog.Logger,
	session httputil.Session,
	reqURL string,
	params url.Values,
	timeout time.Duration,
) (code int, body []byte, err error) {
	resp, err := session.Get(ctx, reqURL, params, timeout)
	if nil != err {
		return 0, nil, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			logger.Error().Err(closeErr).Msg("Failed to close listing response body")
			err = errors.Join(err, fmt.Errorf("close listing response body: %v", closeErr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil, nil
	}

	body, err = httputil.ReadOptionalResponseBody(resp)
	if nil != err {
		return resp.StatusCode, nil, err
	}

	return resp.StatusCode, body, nil
}

func pageParams(ownerParam, ownerID string, pageSize, pageNum int) url.Values {
	return url.Values{
		"sortBy":          []string{"newest"},
		"requireAudio":    []string{"false"},
		ownerParam:        []string{ownerID},
		"pageSize":        []string{strconv.Itoa(pageSize)},
		"page":            []string{strconv.Itoa(pageNum)},
		"liteBroadcaster": []string{"true"},
		"cacheLanguage":   []string{"en"},
		"cache":           []string{"true"},
	}
}
