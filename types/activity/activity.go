// Package activity is the in-memory document model of one recorded
// training session: an ordered list of laps, each an ordered list of trackpoints.
package activity

import (
	"encoding/xml"
	"time"

	"github.com/rotblauer/tcxslim/types/sport"
	"github.com/rotblauer/tcxslim/types/trackpoint"
)

type Activity struct {
	// Sport is the category the caller declared for the activity.
	// It decides validation rules and the Sport attribute written on output.
	Sport sport.Sport
	// SourceSport is the Sport attribute exactly as it was read.
	SourceSport string

	ID   time.Time
	Laps []*Lap

	Notes string

	// Opaque blocks carried through untouched, as inner XML.
	Creator      []byte
	CreatorAttrs []xml.Attr
	Training     []byte
	Author       []byte
	AuthorAttrs  []xml.Attr

	// Namespaces are the prefixed namespace declarations of the source
	// document (prefix to URI), kept so opaque blocks stay resolvable.
	Namespaces map[string]string
}

type Lap struct {
	StartTime   time.Time
	Trackpoints trackpoint.TrackPoints
	Aggregates  LapAggregates
}

// LapAggregates are the lap summary values recorded by the device.
// They are passed through verbatim; nothing here is recomputed after reduction.
type LapAggregates struct {
	TotalTimeSeconds    string
	DistanceMeters      string
	MaximumSpeed        string
	Calories            string
	AverageHeartRateBpm string
	MaximumHeartRateBpm string
	Intensity           string
	Cadence             string
	TriggerMethod       string
	Notes               string
	Extensions          []byte
}

func (l *Lap) Len() int {
	return len(l.Trackpoints)
}

func (l *Lap) First() *trackpoint.TrackPoint {
	if len(l.Trackpoints) == 0 {
		return nil
	}
	return l.Trackpoints[0]
}

func (l *Lap) Last() *trackpoint.TrackPoint {
	if len(l.Trackpoints) == 0 {
		return nil
	}
	return l.Trackpoints[len(l.Trackpoints)-1]
}

// Segments returns the number of <Track> elements the lap's points span.
func (l *Lap) Segments() int {
	n := 0
	for i, tp := range l.Trackpoints {
		if i == 0 || tp.Segment != l.Trackpoints[i-1].Segment {
			n++
		}
	}
	return n
}

// TrackpointCount returns the total number of trackpoints over all laps.
func (a *Activity) TrackpointCount() int {
	n := 0
	for _, lap := range a.Laps {
		n += lap.Len()
	}
	return n
}

// Duration is the time between the first and last trackpoint of the activity.
func (a *Activity) Duration() time.Duration {
	var first, last time.Time
	for _, lap := range a.Laps {
		if lap.Len() == 0 {
			continue
		}
		if first.IsZero() {
			first = lap.First().Time
		}
		last = lap.Last().Time
	}
	return last.Sub(first)
}

// Distance returns the greatest cumulative distance recorded by any trackpoint, in meters.
// It returns 0 if no trackpoint carries a distance.
func (a *Activity) Distance() float64 {
	max := 0.0
	for _, lap := range a.Laps {
		for _, tp := range lap.Trackpoints {
			if tp.Distance != nil && *tp.Distance > max {
				max = *tp.Distance
			}
		}
	}
	return max
}
