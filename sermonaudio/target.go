package sermonaudio

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/xeptore/sermondl/sermonaudio/types"
)

var ErrInvalidTarget = errors.New("unrecognized target")

var (
	digitsPattern      = regexp.MustCompile(`^\d+$`)
	sermonPathPattern  = regexp.MustCompile(`/sermons/(\d+)`)
	mediaPathPattern   = regexp.MustCompile(`/media/(?:audio|video)/[^/]+/(\d+)\.(?:mp3|mp4)`)
	broadcasterPattern = regexp.MustCompile(`/broadcasters/([^/?#]+)`)
	speakerPattern     = regexp.MustCompile(`/speakers/(\d+)`)
	seriesPattern      = regexp.MustCompile(`/series/(\d+)`)
)

// ParseSermonTarget accepts a bare sermon ID, a sermon page URL or a direct
// media URL.
func ParseSermonTarget(arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if digitsPattern.MatchString(arg) {
		return arg, nil
	}

	if u, ok := parseHTTPURL(arg); ok {
		if m := sermonPathPattern.FindStringSubmatch(u.Path); nil != m {
			return m[1], nil
		}
		if m := mediaPathPattern.FindStringSubmatch(u.Path); nil != m {
			return m[1], nil
		}
	}

	return "", fmt.Errorf("%w: %q is not a sermon ID or URL", ErrInvalidTarget, arg)
}

// ParseOwnerTarget accepts a bare owner ID or any URL under the owner's
// path. Broadcaster IDs are short names rather than numbers.
func ParseOwnerTarget(kind types.OwnerKind, arg string) (string, error) {
	arg = strings.TrimSpace(arg)

	var pattern *regexp.Regexp
	switch kind {
	case types.OwnerKindBroadcaster:
		pattern = broadcasterPattern
	case types.OwnerKindSpeaker:
		pattern = speakerPattern
	case types.OwnerKindSeries:
		pattern = seriesPattern
	default:
		return "", fmt.Errorf("%w: unsupported owner kind %s", ErrInvalidTarget, kind)
	}

	if u, ok := parseHTTPURL(arg); ok {
		if m := pattern.FindStringSubmatch(u.Path); nil != m {
			return m[1], nil
		}
		if kind == types.OwnerKindBroadcaster {
			if segs := strings.Split(strings.Trim(u.Path, "/"), "/"); segs[len(segs)-1] != "" {
				return segs[len(segs)-1], nil
			}
		}

		return "", fmt.Errorf("%w: %q is not a %s URL", ErrInvalidTarget, arg, kind)
	}

	arg = strings.Trim(arg, "/")
	switch {
	case arg == "":
		return "", fmt.Errorf("%w: empty %s ID", ErrInvalidTarget, kind)
	case kind == types.OwnerKindBroadcaster && !strings.ContainsAny(arg, "/?# "):
		return arg, nil
	case digitsPattern.MatchString(arg):
		return arg, nil
	default:
		return "", fmt.Errorf("%w: %q is not a %s ID", ErrInvalidTarget, arg, kind)
	}
}

func parseHTTPURL(s string) (*url.URL, bool) {
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return nil, false
	}

	u, err := url.Parse(s)
	if nil != err {
		return nil, false
	}

	return u, true
}
