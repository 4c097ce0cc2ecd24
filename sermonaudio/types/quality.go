package types

import (
	"fmt"
	"slices"
)

type Media int

const (
	MediaAudio Media = iota
	MediaVideo
)

func (m Media) String() string {
	switch m {
	case MediaAudio:
		return "audio"
	case MediaVideo:
		return "video"
	}

	return "unknown"
}

func (m Media) Ext() string {
	if m == MediaVideo {
		return "mp4"
	}

	return "mp3"
}

type Quality string

const (
	QualityLow   Quality = "low"
	QualityHigh  Quality = "high"
	Quality1080p Quality = "1080p"
)

var (
	audioTiers = []Quality{QualityLow, QualityHigh}
	videoTiers = []Quality{QualityLow, QualityHigh, Quality1080p}
)

func (m Media) Tiers() []Quality {
	if m == MediaVideo {
		return slices.Clone(videoTiers)
	}

	return slices.Clone(audioTiers)
}

type QualityPreference struct {
	Media   Media
	Quality Quality
}

func (p QualityPreference) Validate() error {
	if !slices.Contains(p.Media.Tiers(), p.Quality) {
		return fmt.Errorf("quality %q is not available for %s", p.Quality, p.Media)
	}

	return nil
}

// Ladder is the preferred tier followed by the remaining tiers of the same
// media in their default order.
func (p QualityPreference) Ladder() []Quality {
	tiers := p.Media.Tiers()
	if !slices.Contains(tiers, p.Quality) {
		return tiers
	}

	out := make([]Quality, 0, len(tiers))
	out = append(out, p.Quality)
	for _, q := range tiers {
		if q != p.Quality {
			out = append(out, q)
		}
	}

	return out
}
