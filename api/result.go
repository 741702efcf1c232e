package api

import (
	"time"

	"github.com/rotblauer/tcxslim/reducer"
	"github.com/rotblauer/tcxslim/types/activity"
	"github.com/rotblauer/tcxslim/types/sport"
)

// Result is a successfully processed activity.
type Result struct {
	Sport      sport.Sport
	ActivityID time.Time

	// Output is the serialized, reduced TCX document.
	Output []byte

	// Activity is the reconstructed document model that Output encodes.
	Activity *activity.Activity

	Percentile float64
	Dropped    []string
	Laps       []reducer.LapReport
	// Restored counts rows kept only to meet the MinRetained floor.
	Restored int

	// Distance is the activity's cumulative distance in metres, as recorded.
	Distance float64
	Elapsed  time.Duration
}

func (r *Result) Original() int {
	n := 0
	for _, l := range r.Laps {
		n += l.Original
	}
	return n
}

func (r *Result) Retained() int {
	n := 0
	for _, l := range r.Laps {
		n += l.Retained
	}
	return n
}

// Ratio is retained over original rows.
func (r *Result) Ratio() float64 {
	if r.Original() == 0 {
		return 0
	}
	return float64(r.Retained()) / float64(r.Original())
}

// Summary is the persistable, JSON-friendly report of a Result.
type Summary struct {
	Source      string              `json:"source"`
	Output      string              `json:"output,omitempty"`
	Fingerprint uint64              `json:"fingerprint"`
	Sport       string              `json:"sport"`
	ActivityID  time.Time           `json:"activity_id"`
	Percentile  float64             `json:"percentile"`
	Dropped     []string            `json:"dropped"`
	Laps        []reducer.LapReport `json:"laps"`
	Original    int                 `json:"original"`
	Retained    int                 `json:"retained"`
	Restored    int                 `json:"restored,omitempty"`
	Distance    float64             `json:"distance"`
	OutputBytes int                 `json:"output_bytes"`
	ProcessedAt time.Time           `json:"processed_at"`
}

// Summary reports r as read from source and written to output.
func (r *Result) Summary(source, output string, fingerprint uint64) Summary {
	dropped := r.Dropped
	if dropped == nil {
		dropped = []string{}
	}
	return Summary{
		Source:      source,
		Output:      output,
		Fingerprint: fingerprint,
		Sport:       r.Sport.String(),
		ActivityID:  r.ActivityID,
		Percentile:  r.Percentile,
		Dropped:     dropped,
		Laps:        r.Laps,
		Original:    r.Original(),
		Retained:    r.Retained(),
		Restored:    r.Restored,
		Distance:    r.Distance,
		OutputBytes: len(r.Output),
		ProcessedAt: time.Now().UTC(),
	}
}
