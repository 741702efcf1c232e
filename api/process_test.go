package api

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/rotblauer/tcxslim/common"
	"github.com/rotblauer/tcxslim/params"
	"github.com/rotblauer/tcxslim/samples"
	"github.com/rotblauer/tcxslim/tcx"
	"github.com/rotblauer/tcxslim/testing/testdata"
	"github.com/rotblauer/tcxslim/types/activity"
	"github.com/rotblauer/tcxslim/types/sport"
	"github.com/rotblauer/tcxslim/validate"
)

func TestMain(m *testing.M) {
	reset := common.SlogResetLevel(slog.LevelWarn)
	code := m.Run()
	reset()
	os.Exit(code)
}

func mustParse(t *testing.T, source string) *activity.Activity {
	t.Helper()
	a, err := tcx.Parse(testdata.MustRead(source))
	if err != nil {
		t.Fatal(err)
	}
	return a
}

// isSubsequence reports whether every trackpoint time in got appears in want,
// in the same order.
func isSubsequence(got, want *activity.Lap) bool {
	j := 0
	for _, tp := range got.Trackpoints {
		for j < want.Len() && !want.Trackpoints[j].Time.Equal(tp.Time) {
			j++
		}
		if j == want.Len() {
			return false
		}
		j++
	}
	return true
}

func TestProcess_Ride(t *testing.T) {
	doc := testdata.MustRead(testdata.Source_Ride)
	res, err := Process(doc, sport.Cycle, params.DefaultProcessingConfig().WithPercentile(100))
	if err != nil {
		t.Fatal(err)
	}
	if res.Sport != sport.Cycle {
		t.Errorf("have sport %v want %v", res.Sport, sport.Cycle)
	}
	if !reflect.DeepEqual(res.Dropped, []string{"run_cadence"}) {
		t.Errorf("have dropped %v want [run_cadence]", res.Dropped)
	}
	if res.Original() != 11 || len(res.Laps) != 2 {
		t.Fatalf("have %d rows in %d laps want 11 in 2", res.Original(), len(res.Laps))
	}
	if res.Retained() >= res.Original() {
		t.Errorf("p=100 should remove something: retained %d of %d", res.Retained(), res.Original())
	}
	if res.Distance != 65.1 {
		t.Errorf("have distance %v want 65.1", res.Distance)
	}

	s := string(res.Output)
	if !strings.Contains(s, `Sport="Biking"`) {
		t.Error("missing Biking sport attribute")
	}
	if !strings.HasPrefix(s, `<?xml version="1.0" encoding="UTF-8"?>`) {
		t.Error("missing xml header")
	}

	orig := mustParse(t, testdata.Source_Ride)
	out, err := tcx.Parse(res.Output)
	if err != nil {
		t.Fatalf("output does not parse: %v", err)
	}
	for li := range orig.Laps {
		got, want := out.Laps[li], orig.Laps[li]
		if !got.First().Time.Equal(want.First().Time) || !got.Last().Time.Equal(want.Last().Time) {
			t.Errorf("lap %d endpoints changed", li)
		}
		if got.Len() != res.Laps[li].Retained {
			t.Errorf("lap %d: have %d rows want %d", li, got.Len(), res.Laps[li].Retained)
		}
		if got.Aggregates.DistanceMeters != want.Aggregates.DistanceMeters {
			t.Errorf("lap %d aggregates changed", li)
		}
	}
	// The retained lap 1 rows still span both original tracks.
	if out.Laps[1].Segments() != 2 {
		t.Errorf("have %d segments want 2", out.Laps[1].Segments())
	}
}

func TestProcess_SparseAndFloor(t *testing.T) {
	doc := testdata.MustRead(testdata.Source_Ride)
	plain, err := Process(doc, sport.Cycle, params.DefaultProcessingConfig().WithPercentile(100))
	if err != nil {
		t.Fatal(err)
	}

	cfg := params.DefaultProcessingConfig().WithPercentile(100)
	cfg.SparseRatio = 0.25
	cfg.MinRetained = 11
	res, err := Process(doc, sport.Cycle, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Dropped, []string{"run_cadence", "speed", "power"}) {
		t.Errorf("have dropped %v want [run_cadence speed power]", res.Dropped)
	}
	if res.Retained() != 11 {
		t.Errorf("have retained %d want 11", res.Retained())
	}
	if want := 11 - plain.Retained(); res.Restored != want {
		t.Errorf("have restored %d want %d", res.Restored, want)
	}
	out, err := tcx.Parse(res.Output)
	if err != nil {
		t.Fatal(err)
	}
	if out.TrackpointCount() != 11 {
		t.Errorf("have %d trackpoints want 11", out.TrackpointCount())
	}
	// Dropping a column for scoring keeps its readings in the output.
	if !bytes.Contains(res.Output, []byte("Watts")) {
		t.Error("power readings missing from output")
	}
	if sum := res.Summary("ride.tcx", "", 0); sum.Restored != res.Restored {
		t.Errorf("summary restored %d want %d", sum.Restored, res.Restored)
	}
}

func TestProcess_SwimWrittenAsOther(t *testing.T) {
	res, err := Process(testdata.MustRead(testdata.Source_Swim), sport.Swim, params.DefaultProcessingConfig())
	if err != nil {
		t.Fatal(err)
	}
	s := string(res.Output)
	if !strings.Contains(s, `Sport="Other"`) {
		t.Errorf("swim should be written as Other:\n%s", s)
	}
	if strings.Contains(s, ".0</Value>") {
		t.Error("heart rate values should be integers")
	}
}

func TestProcess_RoundTripValidity(t *testing.T) {
	cases := []struct {
		source string
		sport  sport.Sport
	}{
		{testdata.Source_Ride, sport.Cycle},
		{testdata.Source_RideGZ, sport.Cycle},
		{testdata.Source_Swim, sport.Swim},
		{testdata.Source_RunMissingPosition, sport.Other},
	}
	for _, c := range cases {
		doc := testdata.MustRead(c.source)
		for p := 0.0; p <= 100; p += 25 {
			res, err := Process(doc, c.sport, params.DefaultProcessingConfig().WithPercentile(p))
			if err != nil {
				t.Fatalf("%s p=%v: %v", c.source, p, err)
			}
			out, err := tcx.Parse(res.Output)
			if err != nil {
				t.Fatalf("%s p=%v: output does not parse: %v", c.source, p, err)
			}
			if err := validate.Activity(out, res.Sport); err != nil {
				t.Errorf("%s p=%v: output does not validate: %v", c.source, p, err)
			}
			orig, _ := tcx.Parse(doc)
			for li := range orig.Laps {
				if !isSubsequence(out.Laps[li], orig.Laps[li]) {
					t.Errorf("%s p=%v lap %d: not a subsequence of the input", c.source, p, li)
				}
			}
		}
	}
}

func TestProcess_SameSeedSameOutput(t *testing.T) {
	doc := testdata.MustRead(testdata.Source_Ride)
	cfg := params.DefaultProcessingConfig()
	cfg.PercentileLower, cfg.PercentileUpper, cfg.Seed = 0, 100, 7

	a, err := Process(doc, sport.Cycle, cfg)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Process(doc, sport.Cycle, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if a.Percentile != b.Percentile || !bytes.Equal(a.Output, b.Output) {
		t.Errorf("have %v / %v", a.Percentile, b.Percentile)
	}
}

func TestProcess_UnknownSportFromDocument(t *testing.T) {
	res, err := Process(testdata.MustRead(testdata.Source_Ride), sport.Unknown, params.DefaultProcessingConfig())
	if err != nil {
		t.Fatal(err)
	}
	if res.Sport != sport.Cycle {
		t.Errorf("have %v want %v", res.Sport, sport.Cycle)
	}
}

func TestProcess_Errors(t *testing.T) {
	bad := params.DefaultProcessingConfig()
	bad.PercentileLower = 90
	bad.PercentileUpper = 10

	cases := []struct {
		name   string
		source string
		sport  sport.Sport
		cfg    params.ProcessingConfig
		want   error
		stage  activity.Stage
	}{
		{"malformed", testdata.Source_Malformed, sport.Cycle, params.DefaultProcessingConfig(), activity.ErrParse, activity.StageParse},
		{"missing position", testdata.Source_RunMissingPosition, sport.Run, params.DefaultProcessingConfig(), activity.ErrMissingPosition, activity.StageValidate},
		{"swim as bike", testdata.Source_Swim, sport.Cycle, params.DefaultProcessingConfig(), activity.ErrMissingPosition, activity.StageValidate},
		{"bad config", testdata.Source_Ride, sport.Cycle, bad, params.ErrInvalidConfig, ""},
	}
	for _, c := range cases {
		res, err := Process(testdata.MustRead(c.source), c.sport, c.cfg)
		if res != nil {
			t.Errorf("%s: partial result returned", c.name)
		}
		if !errors.Is(err, c.want) {
			t.Errorf("%s: have %v want %v", c.name, err, c.want)
		}
		if stage := activity.StageOf(err); stage != c.stage {
			t.Errorf("%s: have stage %q want %q", c.name, stage, c.stage)
		}
	}
}

func TestReconstruct_Errors(t *testing.T) {
	project := func() (*activity.Activity, *samples.Matrix) {
		a := mustParse(t, testdata.Source_Ride)
		m, err := samples.Project(a)
		if err != nil {
			t.Fatal(err)
		}
		return a, m
	}
	allKept := func(m *samples.Matrix) []bool {
		keep := make([]bool, m.Rows())
		for i := range keep {
			keep[i] = true
		}
		return keep
	}

	cases := []struct {
		name string
		mod  func(a *activity.Activity, m *samples.Matrix)
		lap  int
		row  int
	}{
		{"first removed", func(a *activity.Activity, m *samples.Matrix) {
			m.Keep = allKept(m)
			m.Keep[m.Laps[1].Start] = false
		}, 1, 0},
		{"last removed", func(a *activity.Activity, m *samples.Matrix) {
			m.Keep = allKept(m)
			m.Keep[m.Laps[0].End-1] = false
		}, 0, 7},
		{"lap emptied", func(a *activity.Activity, m *samples.Matrix) {
			m.Keep = allKept(m)
			for i := m.Laps[1].Start; i < m.Laps[1].End; i++ {
				m.Keep[i] = false
			}
		}, 1, activity.NoIndex},
		{"lap count", func(a *activity.Activity, m *samples.Matrix) {
			m.Laps = m.Laps[:1]
		}, activity.NoIndex, activity.NoIndex},
		{"crossed back-reference", func(a *activity.Activity, m *samples.Matrix) {
			m.LapIndex[3] = 1
		}, 0, 3},
	}
	for _, c := range cases {
		a, m := project()
		c.mod(a, m)
		out, err := Reconstruct(a, m, sport.Cycle)
		if out != nil {
			t.Errorf("%s: partial activity returned", c.name)
		}
		if !errors.Is(err, activity.ErrReconstruction) {
			t.Fatalf("%s: have %v want %v", c.name, err, activity.ErrReconstruction)
		}
		var re *activity.ReconstructionError
		errors.As(err, &re)
		if re.Lap != c.lap || re.Row != c.row {
			t.Errorf("%s: have lap %d row %d want lap %d row %d", c.name, re.Lap, re.Row, c.lap, c.row)
		}
	}
}

func TestReconstruct_Revalidates(t *testing.T) {
	a := mustParse(t, testdata.Source_RunMissingPosition)
	m, err := samples.Project(a)
	if err != nil {
		t.Fatal(err)
	}
	_, err = Reconstruct(a, m, sport.Run)
	if !errors.Is(err, activity.ErrReconstruction) || !errors.Is(err, activity.ErrMissingPosition) {
		t.Fatalf("have %v", err)
	}
	var re *activity.ReconstructionError
	if errors.As(err, &re); re.Lap != 0 || re.Row != 1 {
		t.Errorf("have lap %d row %d want lap 0 row 1", re.Lap, re.Row)
	}
}
