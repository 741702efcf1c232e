// Package api wires the pipeline stages together:
// parse, validate, project, drop null columns, reduce, reconstruct, serialize.
package api

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rotblauer/tcxslim/params"
	"github.com/rotblauer/tcxslim/reducer"
	"github.com/rotblauer/tcxslim/samples"
	"github.com/rotblauer/tcxslim/tcx"
	"github.com/rotblauer/tcxslim/types/activity"
	"github.com/rotblauer/tcxslim/types/sport"
	"github.com/rotblauer/tcxslim/validate"
)

// Process reduces a single TCX document declared as sport s.
// If s is not a known sport the document's own Sport attribute decides.
// On any error no output is returned.
func Process(doc []byte, s sport.Sport, cfg params.ProcessingConfig) (*Result, error) {
	a, err := tcx.Parse(doc)
	if err != nil {
		return nil, err
	}
	return ProcessActivity(a, s, cfg)
}

// ProcessActivity is Process for an already parsed activity.
// The trackpoints of a are moved into the result; a should not be used afterwards.
func ProcessActivity(a *activity.Activity, s sport.Sport, cfg params.ProcessingConfig) (*Result, error) {
	start := time.Now()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s = ResolveSport(a, s)
	if err := validate.Activity(a, s); err != nil {
		return nil, err
	}
	distance := a.Distance()
	slog.Debug("Validated activity", "sport", s, "laps", len(a.Laps),
		"trackpoints", a.TrackpointCount(), "distance", distance)

	m, err := samples.Project(a)
	if err != nil {
		return nil, err
	}
	dropped := m.DropNullColumns()
	if cfg.SparseRatio > 0 {
		dropped = append(dropped, m.DropSparseColumns(cfg.SparseRatio)...)
	}

	report, err := reducer.Reduce(m, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", activity.StageReduce, err)
	}

	out, err := Reconstruct(a, m, s)
	if err != nil {
		return nil, err
	}
	doc, err := tcx.Marshal(out)
	if err != nil {
		return nil, &activity.ReconstructionError{Lap: activity.NoIndex, Row: activity.NoIndex, Err: err}
	}

	res := &Result{
		Sport:      s,
		ActivityID: out.ID,
		Output:     doc,
		Activity:   out,
		Percentile: report.Percentile,
		Dropped:    dropped,
		Laps:       report.Laps,
		Restored:   report.Restored,
		Distance:   distance,
		Elapsed:    time.Since(start),
	}
	slog.Info("Processed activity", "sport", s, "laps", len(res.Laps),
		"original", res.Original(), "retained", res.Retained(),
		"percentile", fmt.Sprintf("%.2f", res.Percentile), "dropped", dropped,
		"distance", distance, "elapsed", res.Elapsed.Round(time.Millisecond))
	return res, nil
}

// ResolveSport returns s if it is known, otherwise the sport named by the
// document, otherwise Other.
func ResolveSport(a *activity.Activity, s sport.Sport) sport.Sport {
	if s.IsKnown() {
		return s
	}
	if v := sport.FromString(a.SourceSport); v.IsKnown() {
		return v
	}
	return sport.Other
}
