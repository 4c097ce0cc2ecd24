package httputil

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/xeptore/sermondl/must"
)

const apiKeyHeader = "X-API-Key" //nolint:gosec

// Session is the client context shared by every request of a run. It is a
// value: WithAPIKey returns an updated copy and never mutates the receiver, so
// a Session can be handed to concurrent jobs freely.
type Session struct {
	transport http.RoundTripper
	userAgent string
	apiKey    string
}

func NewSession(userAgent string) Session {
	return Session{
		transport: http.DefaultTransport,
		userAgent: userAgent,
		apiKey:    "",
	}
}

// WithTransport is mainly useful for tests.
func (s Session) WithTransport(t http.RoundTripper) Session {
	s.transport = t
	return s
}

func (s Session) WithAPIKey(key string) Session {
	s.apiKey = key
	return s
}

func (s Session) APIKey() string {
	return s.apiKey
}

// Get issues a GET request carrying the session headers. A zero timeout
// leaves the request bounded only by ctx. The caller closes the body.
func (s Session) Get(ctx context.Context, reqURL string, params url.Values, timeout time.Duration) (*http.Response, error) {
	if len(params) > 0 {
		u, err := url.Parse(reqURL)
		if nil != err {
			return nil, fmt.Errorf("failed to parse request URL: %v", err)
		}
		u.RawQuery = params.Encode()
		reqURL = u.String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if nil != err {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", s.userAgent)
	if s.apiKey != "" {
		req.Header.Set(apiKeyHeader, s.apiKey)
	}

	client := http.Client{ //nolint:exhaustruct
		Transport: s.transport,
		Timeout:   timeout,
	}
	resp, err := client.Do(req)
	if nil != err {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	return resp, nil
}

// JoinURL joins path elements onto an already validated base URL.
func JoinURL(base string, elem ...string) string {
	return must.Value(url.JoinPath(base, elem...))
}
