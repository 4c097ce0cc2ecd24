package types

import (
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

type OutcomeState int

const (
	OutcomePending OutcomeState = iota
	OutcomeDone
	OutcomeSkipped
	OutcomeFailed
)

func (s OutcomeState) String() string {
	switch s {
	case OutcomePending:
		return "pending"
	case OutcomeDone:
		return "done"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	}

	return "unknown"
}

func (s OutcomeState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Outcome struct {
	ItemID string       `json:"item_id"`
	State  OutcomeState `json:"state"`
	Path   string       `json:"path,omitempty"`
	Reason string       `json:"reason,omitempty"`
}

type JobReport struct {
	Collection Collection `json:"-"`
	Kind       string     `json:"kind"`
	OwnerID    string     `json:"owner_id"`
	OwnerName  string     `json:"owner_name"`
	Canceled   bool       `json:"canceled"`
	Outcomes   []Outcome  `json:"outcomes"`
}

func NewJobReport(c Collection, ids []string) *JobReport {
	return &JobReport{
		Collection: c,
		Kind:       c.Kind.String(),
		OwnerID:    c.ID,
		OwnerName:  c.Name,
		Canceled:   false,
		Outcomes: lo.Map(ids, func(id string, _ int) Outcome {
			return Outcome{ItemID: id, State: OutcomePending, Path: "", Reason: ""}
		}),
	}
}

func (r *JobReport) Count(s OutcomeState) int {
	return lo.CountBy(r.Outcomes, func(o Outcome) bool { return o.State == s })
}

func (r *JobReport) Failures() []Outcome {
	return lo.Filter(r.Outcomes, func(o Outcome, _ int) bool { return o.State == OutcomeFailed })
}

func (r *JobReport) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Dict("collection", r.Collection.ToDict()).
		Int("total", len(r.Outcomes)).
		Int("done", r.Count(OutcomeDone)).
		Int("skipped", r.Count(OutcomeSkipped)).
		Int("failed", r.Count(OutcomeFailed)).
		Int("pending", r.Count(OutcomePending)).
		Bool("canceled", r.Canceled)
}
