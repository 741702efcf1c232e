package api

import (
	"errors"
	"fmt"

	"github.com/rotblauer/tcxslim/samples"
	"github.com/rotblauer/tcxslim/types/activity"
	"github.com/rotblauer/tcxslim/types/sport"
	"github.com/rotblauer/tcxslim/types/trackpoint"
	"github.com/rotblauer/tcxslim/validate"
)

// Reconstruct rebuilds an activity from the rows of m that survived
// reduction. Each row returns to its origin lap, in original order, with its
// original track segment. Metadata and lap aggregates are carried over from a.
//
// The rebuilt activity is validated for sport s. Any inconsistency is a
// ReconstructionError; a partial activity is never returned.
func Reconstruct(a *activity.Activity, m *samples.Matrix, s sport.Sport) (*activity.Activity, error) {
	if len(m.Laps) != len(a.Laps) {
		return nil, &activity.ReconstructionError{Lap: activity.NoIndex, Row: activity.NoIndex,
			Err: fmt.Errorf("matrix has %d laps, activity %d", len(m.Laps), len(a.Laps))}
	}

	out := *a
	out.Sport = s
	out.Laps = make([]*activity.Lap, len(a.Laps))

	for li, span := range m.Laps {
		src := a.Laps[li]
		if span.Len() != src.Len() {
			return nil, &activity.ReconstructionError{Lap: li, Row: activity.NoIndex,
				Err: fmt.Errorf("matrix has %d rows for lap, activity %d", span.Len(), src.Len())}
		}
		lap := &activity.Lap{
			StartTime:  src.StartTime,
			Aggregates: src.Aggregates,
		}
		lap.Trackpoints = make(trackpoint.TrackPoints, 0, m.KeptCount(span))
		for row := span.Start; row < span.End; row++ {
			if !m.Kept(row) {
				continue
			}
			if m.LapIndex[row] != li {
				return nil, &activity.ReconstructionError{Lap: li, Row: row - span.Start,
					Err: fmt.Errorf("row belongs to lap %d", m.LapIndex[row])}
			}
			lap.Trackpoints = append(lap.Trackpoints, src.Trackpoints[m.LapPos[row]])
		}
		if lap.Len() == 0 {
			return nil, &activity.ReconstructionError{Lap: li, Row: activity.NoIndex, Err: errors.New("no rows retained")}
		}
		if lap.First() != src.First() {
			return nil, &activity.ReconstructionError{Lap: li, Row: 0, Err: errors.New("first trackpoint removed")}
		}
		if lap.Last() != src.Last() {
			return nil, &activity.ReconstructionError{Lap: li, Row: src.Len() - 1, Err: errors.New("last trackpoint removed")}
		}
		out.Laps[li] = lap
	}

	if err := validate.Activity(&out, s); err != nil {
		lap, row := locate(err)
		return nil, &activity.ReconstructionError{Lap: lap, Row: row, Err: err}
	}
	return &out, nil
}

func locate(err error) (lap, row int) {
	var (
		se *activity.SchemaError
		me *activity.MissingPositionError
	)
	switch {
	case errors.As(err, &se):
		return se.Lap, se.Row
	case errors.As(err, &me):
		return me.Lap, me.Row
	}
	return activity.NoIndex, activity.NoIndex
}
