// Package validate checks that an activity is structurally sound for its sport
// before any reduction is attempted. It never repairs anything.
package validate

import (
	"github.com/rotblauer/tcxslim/types/activity"
	"github.com/rotblauer/tcxslim/types/sport"
)

// Activity confirms that a has at least one trackpoint, that every lap has
// trackpoints in strictly increasing time order, and, for sports that require it,
// that every trackpoint has a position.
// The first problem found is returned; errors carry the lap and row at fault.
func Activity(a *activity.Activity, s sport.Sport) error {
	if a == nil || len(a.Laps) == 0 || a.TrackpointCount() == 0 {
		laps := 0
		if a != nil {
			laps = len(a.Laps)
		}
		return &activity.EmptyActivityError{Stage: activity.StageValidate, Laps: laps}
	}
	for i, lap := range a.Laps {
		if err := Lap(lap, i, s); err != nil {
			return err
		}
	}
	return nil
}

// Lap validates a single lap; lapIdx is used only for error locations.
func Lap(lap *activity.Lap, lapIdx int, s sport.Sport) error {
	if lap.Len() == 0 {
		return activity.NewSchemaError(activity.StageValidate, "Track", "lap has no trackpoints").
			At(lapIdx, activity.NoIndex)
	}
	for row, tp := range lap.Trackpoints {
		if tp == nil {
			return activity.NewSchemaError(activity.StageValidate, "Trackpoint", "nil").At(lapIdx, row)
		}
		if tp.Time.IsZero() {
			return activity.NewSchemaError(activity.StageValidate, "Time", "missing").At(lapIdx, row)
		}
		if row > 0 && !tp.Time.After(lap.Trackpoints[row-1].Time) {
			return activity.NewSchemaError(activity.StageValidate, "Time",
				"not after previous trackpoint ("+lap.Trackpoints[row-1].Time.String()+" >= "+tp.Time.String()+")").
				At(lapIdx, row)
		}
		if s.RequiresPosition() && !tp.HasPosition() {
			return &activity.MissingPositionError{Sport: s.String(), Lap: lapIdx, Row: row}
		}
	}
	return nil
}
