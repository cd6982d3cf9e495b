// Package classify maps scores, percentages and deltas onto discrete labels.
package classify

import "math"

// Band is a performance band over percentage-of-maximum.
type Band string

const (
	BandWeak   Band = "weak"
	BandLower  Band = "lower"
	BandMiddle Band = "middle"
	BandElite  Band = "elite"
)

// AllBands lists bands from lowest to highest.
var AllBands = []Band{BandWeak, BandLower, BandMiddle, BandElite}

// Rank returns the band's position from 0 (weak) to 3 (elite), or -1.
func (b Band) Rank() int {
	for i, x := range AllBands {
		if x == b {
			return i
		}
	}
	return -1
}

// Bands holds the lower edges of the lower, middle and elite bands.
// Every band includes its lower edge and excludes its upper edge, except
// elite which is closed at 100.
type Bands struct {
	Lower  float64 `json:"lower" koanf:"lower" toml:"lower"`
	Middle float64 `json:"middle" koanf:"middle" toml:"middle"`
	Elite  float64 `json:"elite" koanf:"elite" toml:"elite"`
}

// DefaultBands returns weak [0,46), lower [46,66), middle [66,86), elite [86,100].
func DefaultBands() Bands {
	return Bands{Lower: 46, Middle: 66, Elite: 86}
}

// Valid reports whether the edges are ascending and inside (0,100].
func (b Bands) Valid() bool {
	return b.Lower > 0 && b.Lower < b.Middle && b.Middle < b.Elite && b.Elite <= 100
}

// Classify assigns a percentage to its band. The percentage is clamped
// to [0,100] first.
func (b Bands) Classify(p float64) Band {
	p = Clamp(p, 0, 100)
	switch {
	case p >= b.Elite:
		return BandElite
	case p >= b.Middle:
		return BandMiddle
	case p >= b.Lower:
		return BandLower
	default:
		return BandWeak
	}
}

// Percentage returns total/max*100 clamped to [0,100]. ok is false when
// max is not positive.
func Percentage(total, max float64) (float64, bool) {
	if max <= 0 {
		return 0, false
	}
	return Clamp(total/max*100, 0, 100), true
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// MaxPoints returns subjectMax when positive, else def, else 40.
func MaxPoints(subjectMax, def float64) float64 {
	if subjectMax > 0 {
		return subjectMax
	}
	if def > 0 {
		return def
	}
	return 40
}
