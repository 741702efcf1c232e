package common

// Decimal places of a degree and what they resolve at the equator.
// https://en.wikipedia.org/wiki/Decimal_degrees
const (
	GPSPrecision3 = 3 // ~111 m, a street
	GPSPrecision4 = 4 // ~11 m, a large building
	GPSPrecision5 = 5 // ~1.1 m, a tree
	GPSPrecision6 = 6 // ~0.11 m, a pedal
	GPSPrecision7 = 7 // ~11 mm, surveying
)
