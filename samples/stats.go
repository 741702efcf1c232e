package samples

import (
	"github.com/montanaflynn/stats"
	"github.com/rotblauer/tcxslim/common"
)

// ColumnStats summarises the present values of one column.
type ColumnStats struct {
	Column Column  `json:"column"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

var statPrecision = [numColumns]int{
	Latitude:  common.GPSPrecision6,
	Longitude: common.GPSPrecision6,
	Speed:     2,
	Distance:  1,
	Altitude:  1,
}

// Stats describes each surviving column that has at least one value.
// It reads the matrix and never modifies it.
func (m *Matrix) Stats() []ColumnStats {
	out := make([]ColumnStats, 0, numColumns)

	statsMustFloat := func(fn func() (float64, error)) float64 {
		v, err := fn()
		if err != nil {
			return 0
		}
		return v
	}

	for _, c := range m.Columns() {
		known := m.cols[c].Known()
		if len(known) == 0 {
			continue
		}
		data := stats.Float64Data(known)
		prec := statPrecision[c]
		out = append(out, ColumnStats{
			Column: c,
			Count:  len(known),
			Mean:   common.DecimalToFixed(statsMustFloat(data.Mean), prec),
			Median: common.DecimalToFixed(statsMustFloat(data.Median), prec),
			Min:    common.DecimalToFixed(statsMustFloat(data.Min), prec),
			Max:    common.DecimalToFixed(statsMustFloat(data.Max), prec),
		})
	}
	return out
}
