package tcx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotblauer/tcxslim/types/activity"
	"github.com/rotblauer/tcxslim/types/trackpoint"
	"github.com/shopspring/decimal"
)

// Marshal serializes the activity as an indented TCX document.
func Marshal(a *activity.Activity) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := Encode(buf, a); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes the activity to w with a two-space indent, the TCX v2 namespace,
// an xsi:schemaLocation, and elements in schema order.
// Output for a given Activity is byte-for-byte stable.
func Encode(w io.Writer, a *activity.Activity) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}

	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")

	if err := encoder.Encode(fromActivity(a)); err != nil {
		return fmt.Errorf("failed to encode TCX: %w", err)
	}
	if err := encoder.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func fromActivity(a *activity.Activity) *xmlOutDocument {
	doc := &xmlOutDocument{
		XMLNS:          NamespaceTCX,
		XMLNSXSI:       NamespaceXSI,
		SchemaLocation: SchemaLocation,
		XMLNSExt:       NamespaceActivityExtV2,
		Extra:          namespaceAttrs(a.Namespaces),
	}
	if a.Author != nil {
		doc.Author = &rawXML{Attrs: a.AuthorAttrs, Inner: a.Author}
	}

	xa := xmlActivity{
		Sport: sportAttr(a),
		ID:    formatTime(firstNonZero(a.ID, lapStart(a, 0))),
		Notes: a.Notes,
		Laps:  make([]xmlLap, 0, len(a.Laps)),
	}
	if a.Training != nil {
		xa.Training = &rawXML{Inner: a.Training}
	}
	if a.Creator != nil {
		xa.Creator = &rawXML{Attrs: a.CreatorAttrs, Inner: a.Creator}
	}
	for i, lap := range a.Laps {
		xa.Laps = append(xa.Laps, fromLap(lap, lapStart(a, i)))
	}
	doc.Activities = &xmlActivities{Activity: []xmlActivity{xa}}
	return doc
}

func sportAttr(a *activity.Activity) string {
	if a.Sport.IsKnown() {
		return a.Sport.TCXName()
	}
	if a.SourceSport != "" {
		return a.SourceSport
	}
	return "Other"
}

// namespaceAttrs renders prefix declarations in prefix order.
func namespaceAttrs(ns map[string]string) []xml.Attr {
	if len(ns) == 0 {
		return nil
	}
	prefixes := make([]string, 0, len(ns))
	for p := range ns {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	attrs := make([]xml.Attr, 0, len(prefixes))
	for _, p := range prefixes {
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "xmlns:" + p}, Value: ns[p]})
	}
	return attrs
}

// lapStart is the lap's StartTime, or its first trackpoint's time if unset.
func lapStart(a *activity.Activity, i int) time.Time {
	if i >= len(a.Laps) {
		return time.Time{}
	}
	lap := a.Laps[i]
	if !lap.StartTime.IsZero() || lap.Len() == 0 {
		return lap.StartTime
	}
	return lap.First().Time
}

func fromLap(lap *activity.Lap, start time.Time) xmlLap {
	agg := lap.Aggregates
	xl := xmlLap{
		StartTime:        formatTime(start),
		TotalTimeSeconds: agg.TotalTimeSeconds,
		DistanceMeters:   agg.DistanceMeters,
		MaximumSpeed:     agg.MaximumSpeed,
		Calories:         normalizeInteger(agg.Calories),
		Intensity:        agg.Intensity,
		Cadence:          normalizeInteger(agg.Cadence),
		TriggerMethod:    agg.TriggerMethod,
		Notes:            agg.Notes,
	}
	if agg.AverageHeartRateBpm != "" {
		xl.AverageHeartRateBpm = &xmlValue{Value: normalizeInteger(agg.AverageHeartRateBpm)}
	}
	if agg.MaximumHeartRateBpm != "" {
		xl.MaximumHeartRateBpm = &xmlValue{Value: normalizeInteger(agg.MaximumHeartRateBpm)}
	}
	if agg.Extensions != nil {
		xl.Extensions = &rawXML{Inner: agg.Extensions}
	}

	// Consecutive points sharing a Segment go back into one <Track>.
	for i, tp := range lap.Trackpoints {
		if i == 0 || tp.Segment != lap.Trackpoints[i-1].Segment {
			xl.Tracks = append(xl.Tracks, xmlTrack{})
		}
		track := &xl.Tracks[len(xl.Tracks)-1]
		track.Trackpoints = append(track.Trackpoints, fromTrackPoint(tp))
	}
	return xl
}

func fromTrackPoint(tp *trackpoint.TrackPoint) xmlTrackpoint {
	x := xmlTrackpoint{
		Time:           formatTime(tp.Time),
		AltitudeMeters: formatFloat(tp.Altitude),
		DistanceMeters: formatFloat(tp.Distance),
		Cadence:        formatInt(tp.Cadence),
		SensorState:    tp.SensorState,
	}
	if tp.Position != nil {
		x.Position = &xmlPosition{
			LatitudeDegrees:  formatFloat(trackpoint.Float(tp.Position.Lat())),
			LongitudeDegrees: formatFloat(trackpoint.Float(tp.Position.Lon())),
		}
	}
	if tp.HeartRate != nil {
		x.HeartRateBpm = &xmlValue{Value: formatInt(tp.HeartRate)}
	}
	tpx := &xmlTPX{
		Speed:      formatFloat(tp.Speed),
		RunCadence: formatInt(tp.RunCadence),
		Watts:      formatFloat(tp.Power),
	}
	if !tpx.isEmpty() {
		x.Extensions = &xmlTrackpointExtensions{TPX: tpx}
	}
	return x
}

func firstNonZero(ts ...time.Time) time.Time {
	for _, t := range ts {
		if !t.IsZero() {
			return t
		}
	}
	return time.Time{}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

// formatFloat writes the shortest decimal that round-trips, with no exponent
// and no trailing zeros, so whole numbers come out as integers.
func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return decimal.NewFromFloat(*f).String()
}

func formatInt(i *int) string {
	if i == nil {
		return ""
	}
	return strconv.Itoa(*i)
}

// normalizeInteger rewrites an integral value like "150.0" as "150".
// Anything that is not an integral number is returned unchanged.
func normalizeInteger(s string) string {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || !d.IsInteger() {
		return s
	}
	return d.String()
}
