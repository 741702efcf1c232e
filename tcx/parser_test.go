package tcx

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rotblauer/tcxslim/testing/testdata"
	"github.com/rotblauer/tcxslim/types/activity"
	"github.com/rotblauer/tcxslim/types/sport"
)

func TestParse_Ride(t *testing.T) {
	a, err := Parse(testdata.MustRead(testdata.Source_Ride))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Sport != sport.Cycle {
		t.Errorf("have sport %v want %v", a.Sport, sport.Cycle)
	}
	if a.SourceSport != "Biking" {
		t.Errorf("have source sport %q want Biking", a.SourceSport)
	}
	if want := time.Date(2024, 11, 15, 22, 0, 0, 0, time.UTC); !a.ID.Equal(want) {
		t.Errorf("have id %v want %v", a.ID, want)
	}
	if len(a.Laps) != 2 {
		t.Fatalf("have %d laps want 2", len(a.Laps))
	}
	if n := a.Laps[0].Len(); n != 8 {
		t.Errorf("lap 0: have %d trackpoints want 8", n)
	}
	if n := a.Laps[1].Len(); n != 3 {
		t.Errorf("lap 1: have %d trackpoints want 3", n)
	}
	if n := a.Laps[1].Segments(); n != 2 {
		t.Errorf("lap 1: have %d tracks want 2", n)
	}

	tp := a.Laps[0].First()
	if lat, _ := tp.Lat(); lat != 44.98 {
		t.Errorf("have lat %v want 44.98", lat)
	}
	if tp.Altitude == nil || *tp.Altitude != 250 {
		t.Errorf("have altitude %v want 250", tp.Altitude)
	}
	if tp.HeartRate == nil || *tp.HeartRate != 110 {
		t.Errorf("have heart rate %v want 110", tp.HeartRate)
	}
	if tp.Cadence == nil || *tp.Cadence != 80 {
		t.Errorf("have cadence %v want 80", tp.Cadence)
	}
	if tp.Power == nil || *tp.Power != 180 {
		t.Errorf("have power %v want 180", tp.Power)
	}
	if tp.Speed == nil || *tp.Speed != 5 {
		t.Errorf("have speed %v want 5", tp.Speed)
	}
	if a.Laps[1].First().Power != nil {
		t.Error("lap 1 has no power extension")
	}

	agg := a.Laps[0].Aggregates
	if agg.AverageHeartRateBpm != "121.0" || agg.TriggerMethod != "Manual" {
		t.Errorf("aggregates not passed through: %+v", agg)
	}
	if a.Namespaces["ns2"] != "http://www.garmin.com/xmlschemas/UserProfile/v2" {
		t.Errorf("have namespaces %v", a.Namespaces)
	}
	if _, ok := a.Namespaces["ns3"]; ok {
		t.Error("ns3 is written by the encoder and should not be carried")
	}
	if len(a.CreatorAttrs) != 1 || a.CreatorAttrs[0].Value != "Device_t" {
		t.Errorf("have creator attrs %v", a.CreatorAttrs)
	}
	if !strings.Contains(string(a.Creator), "Edge 530") {
		t.Errorf("creator not preserved: %q", a.Creator)
	}
	if d := a.Distance(); d != 65.1 {
		t.Errorf("have distance %v want 65.1", d)
	}
}

func TestParse_Swim(t *testing.T) {
	a, err := Parse(testdata.MustRead(testdata.Source_Swim))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Sport != sport.Swim {
		t.Errorf("have %v want %v", a.Sport, sport.Swim)
	}
	for i, tp := range a.Laps[0].Trackpoints {
		if tp.HasPosition() {
			t.Errorf("row %d: unexpected position", i)
		}
		if tp.HeartRate == nil {
			t.Errorf("row %d: heart rate \"N.0\" not read as integer", i)
		}
	}
	if hr := *a.Laps[0].Trackpoints[2].HeartRate; hr != 121 {
		t.Errorf("have %d want 121", hr)
	}
}

func TestParse_Malformed(t *testing.T) {
	a, err := Parse(testdata.MustRead(testdata.Source_Malformed))
	if a != nil {
		t.Error("expected no activity")
	}
	var pe *activity.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("have %v (%T) want *activity.ParseError", err, err)
	}
}

func TestParse_Errors(t *testing.T) {
	const head = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"
	cases := []struct {
		name string
		doc  string
		want error
	}{
		{"empty", "", activity.ErrParse},
		{"whitespace", "  \n\t", activity.ErrParse},
		{"unclosed element", head + `<TrainingCenterDatabase><Activities><Activity Sport="Running"></Activities></TrainingCenterDatabase>`, activity.ErrParse},
		{"second root", head + `<TrainingCenterDatabase><Activities/></TrainingCenterDatabase><TrainingCenterDatabase/>`, activity.ErrParse},
		{"text after root", head + `<TrainingCenterDatabase></TrainingCenterDatabase> trailing`, activity.ErrParse},
		{"not tcx", head + `<gpx version="1.1"><trk/></gpx>`, activity.ErrSchema},
		{"no activities", head + `<TrainingCenterDatabase></TrainingCenterDatabase>`, activity.ErrSchema},
		{"no activity", head + `<TrainingCenterDatabase><Activities></Activities></TrainingCenterDatabase>`, activity.ErrSchema},
		{"two activities", head + `<TrainingCenterDatabase><Activities><Activity Sport="Running"><Lap/></Activity><Activity Sport="Running"><Lap/></Activity></Activities></TrainingCenterDatabase>`, activity.ErrSchema},
		{"no lap", head + `<TrainingCenterDatabase><Activities><Activity Sport="Running"><Id>2024-12-01T07:00:00Z</Id></Activity></Activities></TrainingCenterDatabase>`, activity.ErrSchema},
		{"bad time", head + `<TrainingCenterDatabase><Activities><Activity Sport="Running"><Lap><Track><Trackpoint><Time>yesterday</Time></Trackpoint></Track></Lap></Activity></Activities></TrainingCenterDatabase>`, activity.ErrParse},
		{"bad number", head + `<TrainingCenterDatabase><Activities><Activity Sport="Running"><Lap><Track><Trackpoint><Time>2024-12-01T07:00:00Z</Time><AltitudeMeters>high</AltitudeMeters></Trackpoint></Track></Lap></Activity></Activities></TrainingCenterDatabase>`, activity.ErrParse},
		{"half position", head + `<TrainingCenterDatabase><Activities><Activity Sport="Running"><Lap><Track><Trackpoint><Time>2024-12-01T07:00:00Z</Time><Position><LatitudeDegrees>45</LatitudeDegrees></Position></Trackpoint></Track></Lap></Activity></Activities></TrainingCenterDatabase>`, activity.ErrSchema},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			a, err := Parse([]byte(c.doc))
			if a != nil {
				t.Error("expected no activity on error")
			}
			if !errors.Is(err, c.want) {
				t.Errorf("have %v want %v", err, c.want)
			}
		})
	}
}

func TestParse_BOMAndLeadingWhitespace(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF, '\n', ' '}, testdata.MustRead(testdata.Source_Swim)...)
	if _, err := Parse(data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseTime(t *testing.T) {
	cases := map[string]time.Time{
		"2024-11-15T22:57:43Z":          time.Date(2024, 11, 15, 22, 57, 43, 0, time.UTC),
		"2024-11-15T22:57:43.999Z":      time.Date(2024, 11, 15, 22, 57, 43, 999_000_000, time.UTC),
		"2024-11-15T22:57:43":           time.Date(2024, 11, 15, 22, 57, 43, 0, time.UTC),
		" 2024-11-15T16:57:43-06:00 \n": time.Date(2024, 11, 15, 22, 57, 43, 0, time.UTC),
	}
	for in, want := range cases {
		got, err := parseTime(in)
		if err != nil {
			t.Errorf("%q: %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("%q: have %v want %v", in, got, want)
		}
	}
}

func TestParseFile_GZ(t *testing.T) {
	plain, err := ParseFile(testdata.Path(testdata.Source_Ride))
	if err != nil {
		t.Fatal(err)
	}
	zipped, err := ParseFile(testdata.Path(testdata.Source_RideGZ))
	if err != nil {
		t.Fatal(err)
	}
	if plain.TrackpointCount() != zipped.TrackpointCount() || !plain.ID.Equal(zipped.ID) {
		t.Errorf("have %d/%v want %d/%v", zipped.TrackpointCount(), zipped.ID, plain.TrackpointCount(), plain.ID)
	}
	if _, err := ParseFile(testdata.Path("./does-not-exist.tcx")); !os.IsNotExist(err) {
		t.Errorf("have %v want not-exist", err)
	}
}
