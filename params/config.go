package params

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"github.com/rotblauer/tcxslim/samples"
)

var ErrInvalidConfig = errors.New("invalid processing config")

// ProcessingConfig controls one run of the reduction pipeline.
// The zero value is not usable; start from DefaultProcessingConfig.
type ProcessingConfig struct {
	// PercentileLower and PercentileUpper bound the retention percentile,
	// both in [0, 100]. When Percentile is nil, p is drawn uniformly from
	// [PercentileLower, PercentileUpper] once per activity.
	PercentileLower float64
	PercentileUpper float64

	// Percentile fixes p, overriding the range.
	Percentile *float64

	// Seed seeds the PCG source used for the percentile draw.
	// Rand, if set, is used instead.
	Seed uint64
	Rand *rand.Rand

	// Weights scales each column's contribution to the dissimilarity score.
	// A column absent from the map, or weighted 0, does not participate.
	// The latitude weight applies to horizontal displacement;
	// longitude is never weighted separately.
	Weights map[samples.Column]float64

	// Workers bounds concurrent per-lap scoring. <= 0 means GOMAXPROCS.
	Workers int

	// SizeTiers, when set, replace [PercentileLower, PercentileUpper] with the
	// range of the largest tier whose MinRows the activity reaches, so long
	// recordings can be thinned harder than short ones. Percentile still wins.
	SizeTiers []SizeTier

	// MinRetained is a floor on the trackpoints kept per activity.
	// Rows removed by the percentile rule are re-admitted, highest score
	// first, until it is met. 0 disables the floor.
	MinRetained int

	// SparseRatio drops, before scoring, any column missing from at least this
	// fraction of rows; latitude and longitude go together. 0 drops only
	// columns with no readings at all.
	SparseRatio float64
}

// SizeTier is a percentile range for activities of at least MinRows trackpoints.
type SizeTier struct {
	MinRows int     `json:"min_rows"`
	Lower   float64 `json:"lower"`
	Upper   float64 `json:"upper"`
}

// DefaultSizeTiers thin activities over 1000 and 3000 trackpoints progressively harder.
func DefaultSizeTiers() []SizeTier {
	return []SizeTier{
		{MinRows: 0, Lower: DefaultPercentileLower, Upper: DefaultPercentileUpper},
		{MinRows: 1000, Lower: 30, Upper: 50},
		{MinRows: 3000, Lower: 40, Upper: 60},
	}
}

// DefaultMinRetained and DefaultSparseRatio are the values the CLI uses
// when the floor or sparse-column removal is switched on without a value.
var DefaultMinRetained = 10
var DefaultSparseRatio = 0.5

var DefaultPercentileLower = 20.0
var DefaultPercentileUpper = 40.0
var DefaultSeed uint64 = 0x7c5

// DefaultWeights gives every column equal weight.
func DefaultWeights() map[samples.Column]float64 {
	w := make(map[samples.Column]float64, len(samples.AllColumns))
	for _, c := range samples.AllColumns {
		w[c] = 1
	}
	return w
}

func DefaultProcessingConfig() ProcessingConfig {
	return ProcessingConfig{
		PercentileLower: DefaultPercentileLower,
		PercentileUpper: DefaultPercentileUpper,
		Seed:            DefaultSeed,
		Weights:         DefaultWeights(),
		Workers:         runtime.GOMAXPROCS(0),
	}
}

func (c ProcessingConfig) Validate() error {
	inRange := func(v float64) bool { return v >= 0 && v <= 100 }
	if !inRange(c.PercentileLower) || !inRange(c.PercentileUpper) {
		return fmt.Errorf("%w: percentile range [%v, %v] outside [0, 100]",
			ErrInvalidConfig, c.PercentileLower, c.PercentileUpper)
	}
	if c.PercentileLower > c.PercentileUpper {
		return fmt.Errorf("%w: percentile lower %v > upper %v",
			ErrInvalidConfig, c.PercentileLower, c.PercentileUpper)
	}
	if c.Percentile != nil && !inRange(*c.Percentile) {
		return fmt.Errorf("%w: percentile %v outside [0, 100]", ErrInvalidConfig, *c.Percentile)
	}
	for i, t := range c.SizeTiers {
		if t.MinRows < 0 || !inRange(t.Lower) || !inRange(t.Upper) || t.Lower > t.Upper {
			return fmt.Errorf("%w: size tier %d {min_rows %d, [%v, %v]}",
				ErrInvalidConfig, i, t.MinRows, t.Lower, t.Upper)
		}
	}
	if c.MinRetained < 0 {
		return fmt.Errorf("%w: negative min retained %d", ErrInvalidConfig, c.MinRetained)
	}
	if c.SparseRatio < 0 || c.SparseRatio > 1 || math.IsNaN(c.SparseRatio) {
		return fmt.Errorf("%w: sparse ratio %v outside [0, 1]", ErrInvalidConfig, c.SparseRatio)
	}
	for col, w := range c.Weights {
		if w < 0 {
			return fmt.Errorf("%w: negative weight %v for %s", ErrInvalidConfig, w, col)
		}
	}
	return nil
}

// Weight returns the weight for col, falling back to DefaultWeights when
// no weights are configured at all.
func (c ProcessingConfig) Weight(col samples.Column) float64 {
	if c.Weights == nil {
		return 1
	}
	return c.Weights[col]
}

// WorkerCount returns the effective per-lap scoring concurrency.
func (c ProcessingConfig) WorkerCount() int {
	if c.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return c.Workers
}

// RandSource returns the injected source, or a new PCG seeded from Seed.
func (c ProcessingConfig) RandSource() *rand.Rand {
	if c.Rand != nil {
		return c.Rand
	}
	return rand.New(rand.NewPCG(c.Seed, c.Seed^0x9e3779b97f4a7c15))
}

// ChoosePercentile returns the fixed percentile if set, otherwise a uniform
// draw from [PercentileLower, PercentileUpper].
func (c ProcessingConfig) ChoosePercentile() (float64, error) {
	return c.choose(c.PercentileLower, c.PercentileUpper)
}

// ChoosePercentileFor is ChoosePercentile for an activity of rows trackpoints,
// drawing from the matching size tier when tiers are configured.
func (c ProcessingConfig) ChoosePercentileFor(rows int) (float64, error) {
	lower, upper := c.PercentileRange(rows)
	return c.choose(lower, upper)
}

// PercentileRange returns the range p is drawn from for an activity of rows
// trackpoints. Without a matching size tier it is [PercentileLower, PercentileUpper].
func (c ProcessingConfig) PercentileRange(rows int) (lower, upper float64) {
	lower, upper = c.PercentileLower, c.PercentileUpper
	best := -1
	for _, t := range c.SizeTiers {
		if rows >= t.MinRows && t.MinRows > best {
			best = t.MinRows
			lower, upper = t.Lower, t.Upper
		}
	}
	return lower, upper
}

func (c ProcessingConfig) choose(lower, upper float64) (float64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	if c.Percentile != nil {
		return *c.Percentile, nil
	}
	if lower == upper {
		return lower, nil
	}
	return lower + c.RandSource().Float64()*(upper-lower), nil
}

// WithPercentile returns a copy of c with p fixed.
func (c ProcessingConfig) WithPercentile(p float64) ProcessingConfig {
	c.Percentile = &p
	return c
}
