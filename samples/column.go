package samples

import (
	"fmt"
	"strings"
)

// Column identifies one optional trackpoint field in a Matrix.
type Column int

const (
	Latitude Column = iota
	Longitude
	Altitude
	Distance
	HeartRate
	Cadence
	RunCadence
	Speed
	Power
	numColumns
)

// AllColumns lists every column in projection order.
var AllColumns = []Column{
	Latitude,
	Longitude,
	Altitude,
	Distance,
	HeartRate,
	Cadence,
	RunCadence,
	Speed,
	Power,
}

var columnNames = [numColumns]string{
	Latitude:   "latitude",
	Longitude:  "longitude",
	Altitude:   "altitude",
	Distance:   "distance",
	HeartRate:  "heart_rate",
	Cadence:    "cadence",
	RunCadence: "run_cadence",
	Speed:      "speed",
	Power:      "power",
}

func (c Column) String() string {
	if c < 0 || c >= numColumns {
		return fmt.Sprintf("column(%d)", int(c))
	}
	return columnNames[c]
}

// IsPosition reports whether c is one half of the lat/lon pair.
func (c Column) IsPosition() bool {
	return c == Latitude || c == Longitude
}

// ColumnFromString accepts the snake_case column names, with dashes
// tolerated in place of underscores.
func ColumnFromString(s string) (Column, error) {
	s = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for i, name := range columnNames {
		if name == s {
			return Column(i), nil
		}
	}
	return -1, fmt.Errorf("unknown column %q", s)
}

func (c Column) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Column) UnmarshalText(text []byte) error {
	v, err := ColumnFromString(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
