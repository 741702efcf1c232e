package trackpoint

import (
	"time"

	"github.com/paulmach/orb"
)

// TrackPoint is one timestamped sample of an activity.
// Every optional field is a pointer: nil means the device did not record it,
// which is not the same thing as a zero reading.
type TrackPoint struct {
	Time     time.Time
	Position *orb.Point // lon, lat
	Altitude *float64   // meters
	Distance *float64   // cumulative, meters

	HeartRate  *int     // bpm
	Cadence    *int     // rpm
	RunCadence *int     // steps per minute, ActivityExtension v2
	Speed      *float64 // m/s, ActivityExtension v2
	Power      *float64 // watts, ActivityExtension v2

	SensorState string

	// Segment is the index of the <Track> element inside the lap
	// that the point was read from.
	Segment int
}

func (tp *TrackPoint) HasPosition() bool {
	return tp.Position != nil
}

// IsEmpty reports whether the point carries nothing but a time.
func (tp *TrackPoint) IsEmpty() bool {
	return tp.Position == nil && tp.Altitude == nil && tp.Distance == nil &&
		tp.HeartRate == nil && tp.Cadence == nil && tp.RunCadence == nil &&
		tp.Speed == nil && tp.Power == nil
}

// Lat returns the latitude, or false if there is no position.
func (tp *TrackPoint) Lat() (float64, bool) {
	if tp.Position == nil {
		return 0, false
	}
	return tp.Position.Lat(), true
}

// Lon returns the longitude, or false if there is no position.
func (tp *TrackPoint) Lon() (float64, bool) {
	if tp.Position == nil {
		return 0, false
	}
	return tp.Position.Lon(), true
}

func Float(v float64) *float64 { return &v }

func Int(v int) *int { return &v }

func Point(lat, lon float64) *orb.Point {
	return &orb.Point{lon, lat}
}

type TrackPoints []*TrackPoint
