// Package samples flattens an activity into a column-oriented sample matrix
// for numeric processing.
package samples

import (
	"time"

	"github.com/rotblauer/tcxslim/types/activity"
	"github.com/rotblauer/tcxslim/types/trackpoint"
)

// Series is one column of the matrix. Values[i] is meaningful only where Present[i].
type Series struct {
	Column  Column
	Values  []float64
	Present []bool
}

func newSeries(c Column, n int) *Series {
	return &Series{
		Column:  c,
		Values:  make([]float64, n),
		Present: make([]bool, n),
	}
}

func (s *Series) set(row int, v float64) {
	s.Values[row] = v
	s.Present[row] = true
}

// Count returns the number of rows with a value.
func (s *Series) Count() int {
	n := 0
	for _, ok := range s.Present {
		if ok {
			n++
		}
	}
	return n
}

// Known returns the present values in row order.
func (s *Series) Known() []float64 {
	out := make([]float64, 0, len(s.Values))
	for i, ok := range s.Present {
		if ok {
			out = append(out, s.Values[i])
		}
	}
	return out
}

// Span is a half-open row range [Start, End) belonging to one lap.
type Span struct {
	Start, End int
}

func (s Span) Len() int { return s.End - s.Start }

// Matrix holds one row per trackpoint of an activity, in original order.
// Rows are never added or reordered after projection; reduction only marks
// rows in Keep.
type Matrix struct {
	Time []time.Time

	// LapIndex and LapPos locate each row's trackpoint in the source activity.
	LapIndex []int
	LapPos   []int

	// Laps holds each lap's row range, indexed by lap.
	Laps []Span

	// Keep is nil until a reducer has run, then one entry per row.
	Keep []bool

	cols [numColumns]*Series
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int {
	return len(m.Time)
}

// Series returns the column c, or nil if it was never projected or has been dropped.
func (m *Matrix) Series(c Column) *Series {
	if c < 0 || c >= numColumns {
		return nil
	}
	return m.cols[c]
}

// Columns returns the surviving columns in projection order.
func (m *Matrix) Columns() []Column {
	out := make([]Column, 0, numColumns)
	for _, c := range AllColumns {
		if m.cols[c] != nil {
			out = append(out, c)
		}
	}
	return out
}

// Has reports whether column c survives.
func (m *Matrix) Has(c Column) bool {
	return m.Series(c) != nil
}

// Kept reports whether row survived reduction. Before reduction every row is kept.
func (m *Matrix) Kept(row int) bool {
	if m.Keep == nil {
		return true
	}
	return m.Keep[row]
}

// KeptCount returns the number of surviving rows in span.
func (m *Matrix) KeptCount(s Span) int {
	n := 0
	for i := s.Start; i < s.End; i++ {
		if m.Kept(i) {
			n++
		}
	}
	return n
}

// Project flattens a into a Matrix with every column present.
// Absent trackpoint fields are recorded as missing, not as zero.
func Project(a *activity.Activity) (*Matrix, error) {
	if a == nil || a.TrackpointCount() == 0 {
		laps := 0
		if a != nil {
			laps = len(a.Laps)
		}
		return nil, &activity.EmptyActivityError{Stage: activity.StageProject, Laps: laps}
	}
	n := a.TrackpointCount()
	m := &Matrix{
		Time:     make([]time.Time, 0, n),
		LapIndex: make([]int, 0, n),
		LapPos:   make([]int, 0, n),
		Laps:     make([]Span, len(a.Laps)),
	}
	for _, c := range AllColumns {
		m.cols[c] = newSeries(c, n)
	}

	row := 0
	for li, lap := range a.Laps {
		m.Laps[li].Start = row
		for pos, tp := range lap.Trackpoints {
			m.Time = append(m.Time, tp.Time)
			m.LapIndex = append(m.LapIndex, li)
			m.LapPos = append(m.LapPos, pos)
			m.fill(row, tp)
			row++
		}
		m.Laps[li].End = row
	}
	return m, nil
}

func (m *Matrix) fill(row int, tp *trackpoint.TrackPoint) {
	if lat, ok := tp.Lat(); ok {
		lon, _ := tp.Lon()
		m.cols[Latitude].set(row, lat)
		m.cols[Longitude].set(row, lon)
	}
	setFloat := func(c Column, v *float64) {
		if v != nil {
			m.cols[c].set(row, *v)
		}
	}
	setInt := func(c Column, v *int) {
		if v != nil {
			m.cols[c].set(row, float64(*v))
		}
	}
	setFloat(Altitude, tp.Altitude)
	setFloat(Distance, tp.Distance)
	setInt(HeartRate, tp.HeartRate)
	setInt(Cadence, tp.Cadence)
	setInt(RunCadence, tp.RunCadence)
	setFloat(Speed, tp.Speed)
	setFloat(Power, tp.Power)
}

// DropNullColumns removes every column with no present value and returns
// the names of the columns removed by this call. Time, back-references and
// the keep mask are never touched. A second call drops nothing.
func (m *Matrix) DropNullColumns() []string {
	var dropped []string
	for _, c := range AllColumns {
		s := m.cols[c]
		if s == nil {
			continue
		}
		if s.Count() == 0 {
			m.cols[c] = nil
			dropped = append(dropped, c.String())
		}
	}
	return dropped
}

// DropSparseColumns removes every column missing from at least ratio of the
// rows and returns the names removed. Latitude and longitude are a pair: if
// either is sparse both go. ratio <= 0 drops nothing.
func (m *Matrix) DropSparseColumns(ratio float64) []string {
	rows := m.Rows()
	if ratio <= 0 || rows == 0 {
		return nil
	}
	sparse := func(c Column) bool {
		s := m.cols[c]
		return s != nil && float64(rows-s.Count()) >= ratio*float64(rows)
	}
	dropPosition := sparse(Latitude) || sparse(Longitude)

	var dropped []string
	for _, c := range AllColumns {
		if m.cols[c] == nil {
			continue
		}
		if c == Latitude || c == Longitude {
			if !dropPosition {
				continue
			}
		} else if !sparse(c) {
			continue
		}
		m.cols[c] = nil
		dropped = append(dropped, c.String())
	}
	return dropped
}
