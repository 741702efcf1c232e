// Package reducer thins densely sampled stretches of an activity by removing
// rows that are nearly indistinguishable from their predecessor.
//
// Each lap is scored independently: row i gets the weighted Euclidean distance
// between its feature vector and row i-1's over the surviving matrix columns.
// Position contributes the great-circle displacement in metres; every other
// column is a scalar dimension. A dimension missing on either side contributes
// nothing. Scores are computed once against the original sequence.
//
// The removal threshold is the p-th percentile of a lap's scores using the
// nearest-rank method. Interior rows scoring strictly below the threshold are
// dropped; ties are kept. The first and last row of every lap always survive,
// and laps shorter than MinLapRows are left alone.
//
// A stationary stretch scores exactly 0 on every row. When more than p% of a
// lap's scores are 0 the nearest-rank threshold is itself 0, nothing scores
// strictly below it, and the stationary rows all survive. Five rows standing
// still at one light with p = 50 therefore come through untouched.
//
// With a MinRetained floor configured, removed rows are re-admitted across
// the whole activity in descending score order until the floor is met.
package reducer

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/montanaflynn/stats"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/rotblauer/tcxslim/params"
	"github.com/rotblauer/tcxslim/samples"
)

// MinLapRows is the smallest lap that can lose a row without losing an endpoint.
const MinLapRows = 3

// LapReport describes what reduction did to one lap.
type LapReport struct {
	Lap       int     `json:"lap"`
	Original  int     `json:"original"`
	Retained  int     `json:"retained"`
	Threshold float64 `json:"threshold"`
	Reduced   bool    `json:"reduced"`
}

func (r LapReport) Removed() int {
	return r.Original - r.Retained
}

type Report struct {
	Percentile float64     `json:"percentile"`
	Laps       []LapReport `json:"laps"`
	// Restored counts rows re-admitted to meet the MinRetained floor.
	Restored int `json:"restored,omitempty"`
}

func (r *Report) Original() int {
	n := 0
	for _, l := range r.Laps {
		n += l.Original
	}
	return n
}

func (r *Report) Retained() int {
	n := 0
	for _, l := range r.Laps {
		n += l.Retained
	}
	return n
}

// Reduce resolves the retention percentile from cfg, once for the whole
// activity, and reduces m at it. See ReduceAt.
func Reduce(m *samples.Matrix, cfg params.ProcessingConfig) (*Report, error) {
	p, err := cfg.ChoosePercentileFor(m.Rows())
	if err != nil {
		return nil, err
	}
	return ReduceAt(m, p, cfg)
}

// ReduceAt scores every lap of m and sets m.Keep for retention percentile p.
// Any previous keep mask is replaced.
func ReduceAt(m *samples.Matrix, p float64, cfg params.ProcessingConfig) (*Report, error) {
	if p < 0 || p > 100 || math.IsNaN(p) {
		return nil, fmt.Errorf("%w: percentile %v outside [0, 100]", params.ErrInvalidConfig, p)
	}
	scores := Scores(m, cfg)

	keep := make([]bool, m.Rows())
	for i := range keep {
		keep[i] = true
	}
	report := &Report{Percentile: p, Laps: make([]LapReport, len(m.Laps))}

	for li, span := range m.Laps {
		lr := LapReport{Lap: li, Original: span.Len(), Retained: span.Len()}
		if span.Len() < MinLapRows {
			report.Laps[li] = lr
			continue
		}
		threshold, err := Threshold(scores[li][1:], p)
		if err != nil {
			return nil, fmt.Errorf("lap %d threshold: %w", li, err)
		}
		lr.Threshold = threshold
		lr.Reduced = true
		for i := 1; i < span.Len()-1; i++ {
			if scores[li][i] < threshold {
				keep[span.Start+i] = false
				lr.Retained--
			}
		}
		slog.Debug("Reduced lap", "lap", li, "percentile", p, "threshold", threshold,
			"original", lr.Original, "retained", lr.Retained)
		report.Laps[li] = lr
	}
	if cfg.MinRetained > 0 {
		report.Restored = restore(m, keep, scores, report, cfg.MinRetained)
	}
	m.Keep = keep
	return report, nil
}

// restore re-admits removed rows, highest score first and earliest row on
// ties, until at least floor rows are kept or none are left to re-admit.
func restore(m *samples.Matrix, keep []bool, scores [][]float64, report *Report, floor int) int {
	need := floor - report.Retained()
	if need <= 0 {
		return 0
	}
	var removed []int
	for row, k := range keep {
		if !k {
			removed = append(removed, row)
		}
	}
	score := func(row int) float64 {
		return scores[m.LapIndex[row]][m.LapPos[row]]
	}
	sort.SliceStable(removed, func(i, j int) bool {
		return score(removed[i]) > score(removed[j])
	})
	if need > len(removed) {
		need = len(removed)
	}
	for _, row := range removed[:need] {
		keep[row] = true
		report.Laps[m.LapIndex[row]].Retained++
	}
	slog.Debug("Restored rows to meet floor", "floor", floor, "restored", need)
	return need
}

// Threshold returns the p-th percentile of scores by nearest rank.
// p = 0 yields the minimum and p = 100 the maximum.
func Threshold(scores []float64, p float64) (float64, error) {
	if len(scores) == 0 {
		return 0, fmt.Errorf("no scores")
	}
	if p <= 0 {
		return stats.Min(scores)
	}
	return stats.PercentileNearestRank(scores, p)
}

// Scores returns, per lap, the dissimilarity of each row to its predecessor.
// scores[lap][0] is always 0. Laps are scored concurrently, each into its own
// pre-allocated slice.
func Scores(m *samples.Matrix, cfg params.ProcessingConfig) [][]float64 {
	d := newDimensions(m, cfg)
	out := make([][]float64, len(m.Laps))
	for li, span := range m.Laps {
		out[li] = make([]float64, span.Len())
	}

	sem := make(chan struct{}, cfg.WorkerCount())
	var wg sync.WaitGroup
	for li, span := range m.Laps {
		if span.Len() < 2 {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(dst []float64, span samples.Span) {
			defer wg.Done()
			defer func() { <-sem }()
			for i := 1; i < span.Len(); i++ {
				dst[i] = d.score(span.Start+i-1, span.Start+i)
			}
		}(out[li], span)
	}
	wg.Wait()
	return out
}

type weighted struct {
	series *samples.Series
	weight float64
}

// dimensions is the set of weighted columns that participate in scoring.
type dimensions struct {
	lat, lon  *samples.Series
	posWeight float64
	scalars   []weighted
}

func newDimensions(m *samples.Matrix, cfg params.ProcessingConfig) *dimensions {
	d := &dimensions{}
	if w := cfg.Weight(samples.Latitude); w > 0 && m.Has(samples.Latitude) && m.Has(samples.Longitude) {
		d.lat = m.Series(samples.Latitude)
		d.lon = m.Series(samples.Longitude)
		d.posWeight = w
	}
	for _, c := range m.Columns() {
		if c.IsPosition() {
			continue
		}
		if w := cfg.Weight(c); w > 0 {
			d.scalars = append(d.scalars, weighted{series: m.Series(c), weight: w})
		}
	}
	return d
}

func (d *dimensions) score(prev, cur int) float64 {
	sum := 0.0
	if d.lat != nil && d.lat.Present[prev] && d.lat.Present[cur] {
		h := geo.Distance(
			orb.Point{d.lon.Values[prev], d.lat.Values[prev]},
			orb.Point{d.lon.Values[cur], d.lat.Values[cur]},
		)
		sum += (d.posWeight * h) * (d.posWeight * h)
	}
	for _, s := range d.scalars {
		if !s.series.Present[prev] || !s.series.Present[cur] {
			continue
		}
		delta := s.weight * (s.series.Values[cur] - s.series.Values[prev])
		sum += delta * delta
	}
	return math.Sqrt(sum)
}
