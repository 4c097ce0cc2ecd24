package types

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

type OwnerKind int

const (
	OwnerKindBroadcaster OwnerKind = iota
	OwnerKindSpeaker
	OwnerKindSeries
)

func (k OwnerKind) String() string {
	switch k {
	case OwnerKindBroadcaster:
		return "broadcaster"
	case OwnerKindSpeaker:
		return "speaker"
	case OwnerKindSeries:
		return "series"
	}

	return "unknown"
}

// OwnerParam is the enumeration query parameter scoping results to one owner.
// Series have none: they are listed from their feed or page instead.
func (k OwnerKind) OwnerParam() string {
	switch k {
	case OwnerKindBroadcaster:
		return "broadcasterID"
	case OwnerKindSpeaker:
		return "speakerID"
	default:
		return ""
	}
}

func (k OwnerKind) DefaultName(id string) string {
	return strings.ToUpper(k.String()[:1]) + k.String()[1:] + " " + id
}

func ParseOwnerKind(s string) (OwnerKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "broadcaster":
		return OwnerKindBroadcaster, nil
	case "speaker":
		return OwnerKindSpeaker, nil
	case "series":
		return OwnerKindSeries, nil
	default:
		return 0, fmt.Errorf("unknown owner kind %q", s)
	}
}

// Collection describes the owner whose items a job retrieves. Name is filled
// in by the orchestrator when empty.
type Collection struct {
	Kind OwnerKind
	ID   string
	Name string
}

func (c Collection) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("kind", c.Kind.String()).
		Str("id", c.ID).
		Str("name", c.Name)
}
