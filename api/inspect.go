package api

import (
	"time"

	"github.com/rotblauer/tcxslim/samples"
	"github.com/rotblauer/tcxslim/tcx"
	"github.com/rotblauer/tcxslim/types/sport"
	"github.com/rotblauer/tcxslim/validate"
)

// Inspection describes an activity before any reduction.
type Inspection struct {
	Sport       string                `json:"sport"`
	SourceSport string                `json:"source_sport"`
	ActivityID  time.Time             `json:"activity_id"`
	Laps        []int                 `json:"laps"`
	Trackpoints int                   `json:"trackpoints"`
	Duration    time.Duration         `json:"duration"`
	Distance    float64               `json:"distance"`
	Columns     []string              `json:"columns"`
	Dropped     []string              `json:"dropped"`
	Stats       []samples.ColumnStats `json:"stats"`
}

// Inspect parses and validates doc, then projects it and reports column
// statistics over the pre-reduction matrix. Nothing is reduced.
func Inspect(doc []byte, s sport.Sport) (*Inspection, error) {
	a, err := tcx.Parse(doc)
	if err != nil {
		return nil, err
	}
	s = ResolveSport(a, s)
	if err := validate.Activity(a, s); err != nil {
		return nil, err
	}
	m, err := samples.Project(a)
	if err != nil {
		return nil, err
	}
	dropped := m.DropNullColumns()
	if dropped == nil {
		dropped = []string{}
	}

	in := &Inspection{
		Sport:       s.String(),
		SourceSport: a.SourceSport,
		ActivityID:  a.ID,
		Trackpoints: a.TrackpointCount(),
		Duration:    a.Duration(),
		Distance:    a.Distance(),
		Dropped:     dropped,
		Stats:       m.Stats(),
	}
	for _, l := range a.Laps {
		in.Laps = append(in.Laps, l.Len())
	}
	for _, c := range m.Columns() {
		in.Columns = append(in.Columns, c.String())
	}
	return in, nil
}
