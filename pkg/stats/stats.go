// Package stats provides descriptive statistics over score sequences.
//
// Functions that are undefined for their input return ok=false (or nil)
// instead of a placeholder zero, so callers can render "no data".
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SkewEpsilon is the smallest standard deviation for which a skew
// indicator is reported.
const SkewEpsilon = 1e-5

// DefaultSkewThreshold splits balanced distributions from tailed ones.
const DefaultSkewThreshold = 0.35

// Direction describes the asymmetry of a score distribution.
type Direction string

const (
	DirectionFailureTail Direction = "failure tail"
	DirectionTopHeavy    Direction = "top-heavy tail"
	DirectionBalanced    Direction = "balanced"
	DirectionNoSpread    Direction = "no spread"
)

// Mean returns the arithmetic mean. ok is false for an empty slice.
func Mean(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	return stat.Mean(values, nil), true
}

// Median returns the middle value of values, averaging the two central
// values for even counts. The input is not modified.
func Median(values []float64) (float64, bool) {
	n := len(values)
	if n == 0 {
		return 0, false
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2], true
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2, true
}

// SampleStdDev returns the sample standard deviation (n-1 denominator).
// ok is false when fewer than two values are given.
func SampleStdDev(values []float64) (float64, bool) {
	if len(values) < 2 {
		return 0, false
	}
	return stat.StdDev(values, nil), true
}

// SkewIndicator returns (mean-median)/sd, a cheap asymmetry proxy. It is
// not Pearson's or Fisher-Pearson skewness; downstream labels are
// calibrated against this exact formula.
func SkewIndicator(mean, median, sd *float64) *float64 {
	if mean == nil || median == nil || sd == nil || *sd <= SkewEpsilon {
		return nil
	}
	v := (*mean - *median) / *sd
	return &v
}

// SkewDirection labels a skew indicator using a symmetric threshold.
// A threshold <= 0 falls back to DefaultSkewThreshold.
func SkewDirection(skew *float64, threshold float64) Direction {
	if skew == nil {
		return DirectionNoSpread
	}
	if threshold <= 0 {
		threshold = DefaultSkewThreshold
	}
	switch {
	case *skew <= -threshold:
		return DirectionFailureTail
	case *skew >= threshold:
		return DirectionTopHeavy
	default:
		return DirectionBalanced
	}
}

// Summary holds the descriptive statistics of one sequence.
type Summary struct {
	N      int
	Mean   float64
	Median float64
	SD     *float64
	Skew   *float64
	Min    float64
	Max    float64
}

// Summarize computes every descriptive statistic of values. ok is false
// for an empty slice.
func Summarize(values []float64) (Summary, bool) {
	if len(values) == 0 {
		return Summary{}, false
	}
	mean, _ := Mean(values)
	median, _ := Median(values)
	s := Summary{
		N:      len(values),
		Mean:   mean,
		Median: median,
		Min:    floats.Min(values),
		Max:    floats.Max(values),
	}
	if sd, ok := SampleStdDev(values); ok {
		s.SD = &sd
		s.Skew = SkewIndicator(&mean, &median, &sd)
	}
	return s, true
}

// Finite reports whether every value is a real number.
func Finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
