package tcx

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/rotblauer/tcxslim/catz"
	"github.com/rotblauer/tcxslim/types/activity"
	"github.com/rotblauer/tcxslim/types/sport"
	"github.com/rotblauer/tcxslim/types/trackpoint"
	"github.com/shopspring/decimal"
)

const rootElement = "TrainingCenterDatabase"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse reads one TCX document into an Activity.
// It returns a *activity.ParseError if the markup is not well-formed or a value
// cannot be read, and a *activity.SchemaError if a required container is missing.
// No partial Activity is ever returned alongside an error.
func Parse(data []byte) (*activity.Activity, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	data = bytes.TrimLeft(data, " \t\r\n")
	if len(data) == 0 {
		return nil, &activity.ParseError{Err: errors.New("empty document")}
	}
	return ParseReader(bytes.NewReader(data))
}

// ParseFile reads and parses the document at path, which may be gzipped,
// or stdin if path is "-". Read failures are returned as they are.
func ParseFile(path string) (*activity.Activity, error) {
	data, err := catz.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// ParseReader parses a TCX document from an io.Reader.
func ParseReader(r io.Reader) (*activity.Activity, error) {
	dec := xml.NewDecoder(r)

	start, err := rootStart(dec)
	if err != nil {
		return nil, err
	}
	if start.Name.Local != rootElement {
		return nil, activity.NewSchemaError(activity.StageParse, rootElement,
			fmt.Sprintf("missing, document root is <%s>", start.Name.Local))
	}

	var doc xmlDocument
	if err := dec.DecodeElement(&doc, start); err != nil {
		return nil, decodeError(err)
	}
	if err := trailing(dec); err != nil {
		return nil, err
	}

	return doc.toActivity()
}

// rootStart advances the decoder to the first start element.
func rootStart(dec *xml.Decoder) (*xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, &activity.ParseError{Err: errors.New("no root element")}
			}
			return nil, decodeError(err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			return &se, nil
		}
	}
}

// trailing checks that nothing but whitespace, comments and
// processing instructions follows the root element.
func trailing(dec *xml.Decoder) error {
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return decodeError(err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return &activity.ParseError{Err: errors.New("character data after root element")}
			}
		case xml.StartElement:
			return &activity.ParseError{Err: fmt.Errorf("second root element <%s>", t.Name.Local)}
		}
	}
}

func decodeError(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &activity.ParseError{Err: fmt.Errorf("truncated document: %w", err)}
	}
	return &activity.ParseError{Err: err}
}

func (doc *xmlDocument) toActivity() (*activity.Activity, error) {
	if doc.Activities == nil {
		return nil, activity.NewSchemaError(activity.StageParse, "Activities", "missing")
	}
	switch n := len(doc.Activities.Activity); {
	case n == 0:
		return nil, activity.NewSchemaError(activity.StageParse, "Activity", "missing")
	case n > 1:
		return nil, activity.NewSchemaError(activity.StageParse, "Activities",
			fmt.Sprintf("holds %d activities, want 1", n))
	}
	xa := doc.Activities.Activity[0]
	if len(xa.Laps) == 0 {
		return nil, activity.NewSchemaError(activity.StageParse, "Lap", "missing")
	}

	a := &activity.Activity{
		Sport:       sport.FromString(xa.Sport),
		SourceSport: xa.Sport,
		Notes:       xa.Notes,
		Namespaces:  namespaces(doc.Attrs),
		Laps:        make([]*activity.Lap, 0, len(xa.Laps)),
	}
	if xa.Training != nil {
		a.Training = xa.Training.Inner
	}
	if xa.Creator != nil {
		a.Creator = xa.Creator.Inner
		a.CreatorAttrs = xa.Creator.Attrs
	}
	if doc.Author != nil {
		a.Author = doc.Author.Inner
		a.AuthorAttrs = doc.Author.Attrs
	}

	if strings.TrimSpace(xa.ID) != "" {
		id, err := parseTime(xa.ID)
		if err != nil {
			return nil, &activity.ParseError{Err: fmt.Errorf("activity Id: %w", err)}
		}
		a.ID = id
	}

	for i, xl := range xa.Laps {
		lap, err := xl.toLap(i)
		if err != nil {
			return nil, err
		}
		a.Laps = append(a.Laps, lap)
	}
	return a, nil
}

// namespaces collects prefixed namespace declarations from the source root,
// except those the encoder writes itself.
func namespaces(attrs []xml.Attr) map[string]string {
	out := make(map[string]string)
	for _, attr := range attrs {
		if attr.Name.Space != "xmlns" {
			continue
		}
		if attr.Name.Local == "xsi" || attr.Name.Local == extPrefix {
			continue
		}
		out[attr.Name.Local] = attr.Value
	}
	return out
}

func (xl *xmlLap) toLap(lapIdx int) (*activity.Lap, error) {
	lap := &activity.Lap{
		Aggregates: activity.LapAggregates{
			TotalTimeSeconds: strings.TrimSpace(xl.TotalTimeSeconds),
			DistanceMeters:   strings.TrimSpace(xl.DistanceMeters),
			MaximumSpeed:     strings.TrimSpace(xl.MaximumSpeed),
			Calories:         strings.TrimSpace(xl.Calories),
			Intensity:        strings.TrimSpace(xl.Intensity),
			Cadence:          strings.TrimSpace(xl.Cadence),
			TriggerMethod:    strings.TrimSpace(xl.TriggerMethod),
			Notes:            xl.Notes,
		},
	}
	if xl.AverageHeartRateBpm != nil {
		lap.Aggregates.AverageHeartRateBpm = strings.TrimSpace(xl.AverageHeartRateBpm.Value)
	}
	if xl.MaximumHeartRateBpm != nil {
		lap.Aggregates.MaximumHeartRateBpm = strings.TrimSpace(xl.MaximumHeartRateBpm.Value)
	}
	if xl.Extensions != nil {
		lap.Aggregates.Extensions = xl.Extensions.Inner
	}

	if strings.TrimSpace(xl.StartTime) != "" {
		st, err := parseTime(xl.StartTime)
		if err != nil {
			return nil, &activity.ParseError{Err: fmt.Errorf("lap %d StartTime: %w", lapIdx, err)}
		}
		lap.StartTime = st
	}

	for seg, track := range xl.Tracks {
		for _, xtp := range track.Trackpoints {
			row := len(lap.Trackpoints)
			tp, err := xtp.toTrackPoint(lapIdx, row)
			if err != nil {
				return nil, err
			}
			tp.Segment = seg
			lap.Trackpoints = append(lap.Trackpoints, tp)
		}
	}
	return lap, nil
}

func (x *xmlTrackpoint) toTrackPoint(lapIdx, row int) (*trackpoint.TrackPoint, error) {
	tp := &trackpoint.TrackPoint{
		SensorState: strings.TrimSpace(x.SensorState),
	}
	var err error
	wrap := func(element string, err error) error {
		return &activity.ParseError{Err: fmt.Errorf("lap %d row %d %s: %w", lapIdx, row, element, err)}
	}

	// An empty Time is left zero for the validator to reject with its location.
	if strings.TrimSpace(x.Time) != "" {
		if tp.Time, err = parseTime(x.Time); err != nil {
			return nil, wrap("Time", err)
		}
	}

	if x.Position != nil {
		latS, lonS := strings.TrimSpace(x.Position.LatitudeDegrees), strings.TrimSpace(x.Position.LongitudeDegrees)
		if latS == "" || lonS == "" {
			return nil, activity.NewSchemaError(activity.StageParse, "Position",
				"needs both LatitudeDegrees and LongitudeDegrees").At(lapIdx, row)
		}
		lat, err := parseFloat(latS)
		if err != nil {
			return nil, wrap("LatitudeDegrees", err)
		}
		lon, err := parseFloat(lonS)
		if err != nil {
			return nil, wrap("LongitudeDegrees", err)
		}
		tp.Position = &orb.Point{*lon, *lat}
	}

	if tp.Altitude, err = optFloat(x.AltitudeMeters); err != nil {
		return nil, wrap("AltitudeMeters", err)
	}
	if tp.Distance, err = optFloat(x.DistanceMeters); err != nil {
		return nil, wrap("DistanceMeters", err)
	}
	if x.HeartRateBpm != nil {
		if tp.HeartRate, err = optInt(x.HeartRateBpm.Value); err != nil {
			return nil, wrap("HeartRateBpm", err)
		}
	}
	if tp.Cadence, err = optInt(x.Cadence); err != nil {
		return nil, wrap("Cadence", err)
	}
	if x.Extensions != nil && x.Extensions.TPX != nil {
		tpx := x.Extensions.TPX
		if tp.Speed, err = optFloat(tpx.Speed); err != nil {
			return nil, wrap("Speed", err)
		}
		if tp.Power, err = optFloat(tpx.Watts); err != nil {
			return nil, wrap("Watts", err)
		}
		if tp.RunCadence, err = optInt(tpx.RunCadence); err != nil {
			return nil, wrap("RunCadence", err)
		}
	}
	return tp, nil
}

// parseTime reads an xsd:dateTime. Values without a zone are taken as UTC.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05.999999999", s, time.UTC)
}

func parseFloat(s string) (*float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	f, _ := d.Float64()
	return &f, nil
}

func optFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	return parseFloat(s)
}

// optInt reads integer fields, accepting the "150.0" form some exporters write.
func optInt(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	v := int(d.Round(0).IntPart())
	return &v, nil
}
