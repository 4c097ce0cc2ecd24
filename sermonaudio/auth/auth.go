package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/xeptore/sermondl/config"
	"github.com/xeptore/sermondl/httputil"
	"github.com/xeptore/sermondl/redact"
	"github.com/xeptore/sermondl/sermonaudio/fs"
)

const tokenFileName = "auth.txt"

var (
	ErrAuth          = errors.New("authentication failed")
	ErrTokenNotFound = errors.New("token not found in page markup")

	tokenPattern = regexp.MustCompile(`^[A-F0-9-]{30,}$`)
)

// Error is a terminal credential failure. It matches ErrAuth and unwraps to
// its cause.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return "authentication failed: " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == ErrAuth
}

type Validity int

const (
	ValidityUnknown Validity = iota
	ValidityValid
	ValidityInvalid
)

func (v Validity) String() string {
	switch v {
	case ValidityUnknown:
		return "unknown"
	case ValidityValid:
		return "valid"
	case ValidityInvalid:
		return "invalid"
	}

	return "unknown"
}

type Credential struct {
	Token    string
	Validity Validity
	// Fallback marks the configured last-resort key, which may well be stale.
	Fallback bool
}

func (c *Credential) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("token", redact.String(c.Token)).
		Str("validity", c.Validity.String()).
		Bool("fallback", c.Fallback)
}

// Auth acquires the API token once per process and shares it between jobs.
// Only Auth writes the credential.
type Auth struct {
	authFile        fs.AuthFile
	session         httputil.Session
	siteURL         string
	apiURL          string
	fallbackKey     string
	validateTimeout time.Duration
	fetchTimeout    time.Duration
	mux             sync.Mutex
	credential      atomic.Pointer[Credential]
}

func New(
	session httputil.Session,
	sa config.SermonAudio,
	conf config.Auth,
	timeouts config.Timeouts,
) *Auth {
	return &Auth{
		authFile:        fs.AuthFileFrom(conf.CredsDir, tokenFileName),
		session:         session,
		siteURL:         sa.SiteURL,
		apiURL:          sa.APIURL,
		fallbackKey:     conf.FallbackKey,
		validateTimeout: time.Duration(timeouts.Validate) * time.Second,
		fetchTimeout:    time.Duration(timeouts.FetchPage) * time.Second,
		mux:             sync.Mutex{},
		credential:      atomic.Pointer[Credential]{},
	}
}

// Credential is the last acquired credential, nil before the first Get.
func (a *Auth) Credential() *Credential {
	return a.credential.Load()
}

// Get returns a usable credential. Without forceRefresh it reuses the
// credential acquired earlier in this process, then the stored token if it
// is well-formed and accepted by the API, and only then scrapes a fresh one.
// The configured fallback key is the last resort.
func (a *Auth) Get(ctx context.Context, logger zerolog.Logger, forceRefresh bool) (*Credential, error) {
	return a.get(ctx, logger, forceRefresh, true)
}

// Refresh scrapes and stores a fresh token. Unlike Get it never settles for
// the fallback key.
func (a *Auth) Refresh(ctx context.Context, logger zerolog.Logger) (*Credential, error) {
	return a.get(ctx, logger, true, false)
}

// Invalidate marks the credential carrying token as rejected so that the
// next Get acquires another one. A credential replaced meanwhile is kept.
func (a *Auth) Invalidate(token string) {
	a.mux.Lock()
	defer a.mux.Unlock()

	c := a.credential.Load()
	if nil == c || c.Token != token {
		return
	}
	a.credential.Store(&Credential{Token: c.Token, Validity: ValidityInvalid, Fallback: c.Fallback})
}

func (a *Auth) get(ctx context.Context, logger zerolog.Logger, forceRefresh, allowFallback bool) (*Credential, error) {
	a.mux.Lock()
	defer a.mux.Unlock()

	var rejected string
	if c := a.credential.Load(); nil != c && c.Validity == ValidityInvalid {
		rejected = c.Token
	}

	if !forceRefresh {
		if c := a.credential.Load(); nil != c && c.Validity != ValidityInvalid {
			return c, nil
		}

		if c := a.stored(ctx, logger, rejected); nil != c {
			a.credential.Store(c)
			return c, nil
		}
	}

	token, err := a.fetchToken(ctx, logger)
	if nil != err {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}

		if allowFallback && a.fallbackKey != "" && a.fallbackKey != rejected {
			logger.Warn().Err(err).Msg("Could not acquire a fresh token, using the configured fallback key which may be stale")
			c := &Credential{Token: a.fallbackKey, Validity: ValidityUnknown, Fallback: true}
			a.credential.Store(c)

			return c, nil
		}

		return nil, &Error{Err: err}
	}

	if err := a.authFile.Write(token); nil != err {
		logger.Warn().Err(err).Str("path", a.authFile.Path()).Msg("Failed to store token")
	} else {
		logger.Debug().Str("path", a.authFile.Path()).Msg("Token stored")
	}

	c := &Credential{Token: token, Validity: ValidityUnknown, Fallback: false}
	a.credential.Store(c)

	return c, nil
}

// stored loads the token kept from an earlier run. A token equal to
// rejected was already refused in this process and is not asked about again.
func (a *Auth) stored(ctx context.Context, logger zerolog.Logger, rejected string) *Credential {
	token, err := a.authFile.Read()
	if nil != err {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn().Err(err).Str("path", a.authFile.Path()).Msg("Failed to read stored token")
		}

		return nil
	}

	if !tokenPattern.MatchString(token) {
		logger.Info().Msg("Stored token has invalid format")
		return nil
	}
	if token == rejected {
		logger.Info().Msg("Stored token was rejected earlier")
		return nil
	}

	if !a.Validate(ctx, logger, token) {
		logger.Info().Msg("Stored token was rejected")
		return nil
	}

	return &Credential{Token: token, Validity: ValidityValid, Fallback: false}
}

// Validate asks the API whether token is accepted. Any failure, transport
// errors included, counts as rejection.
func (a *Auth) Validate(ctx context.Context, logger zerolog.Logger, token string) (ok bool) {
	reqURL, err := url.JoinPath(a.apiURL, "v2", "node", "sermons")
	if nil != err {
		logger.Error().Err(err).Msg("Failed to build token validation URL")
		return false
	}

	params := url.Values{
		"pageSize":        []string{"1"},
		"liteBroadcaster": []string{"true"},
	}
	resp, err := a.session.WithAPIKey(token).Get(ctx, reqURL, params, a.validateTimeout)
	if nil != err {
		logger.Warn().Err(err).Msg("Token validation request failed")
		return false
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			logger.Error().Err(closeErr).Msg("Failed to close token validation response body")
		}
	}()

	if code := resp.StatusCode; code != http.StatusOK {
		logger.Info().Int("status_code", code).Msg("Token validation failed")
		return false
	}

	return true
}

// String renders the credential for humans without leaking the token.
func (c *Credential) String() string {
	return fmt.Sprintf("%s (%s%s)", redact.String(c.Token), c.Validity, lo.Ternary(c.Fallback, ", fallback", ""))
}
