// Package compare derives exam-over-exam changes, subject movers,
// risk/momentum signals and cohort comparisons from aggregated results.
package compare

import (
	"github.com/panbanda/gradelens/pkg/classify"
	"github.com/panbanda/gradelens/pkg/models"
)

// Deltas computes metric[i] - metric[i-1] along the canonical exam order.
// The first exam, and any exam where either side is missing, gets a nil delta.
func Deltas(order []int64, metric map[int64]float64) []models.DeltaMetric {
	out := make([]models.DeltaMetric, 0, len(order))
	for i, examID := range order {
		d := models.DeltaMetric{ExamID: examID}
		if v, ok := metric[examID]; ok {
			d.Value = models.Float(v)
		}
		if i > 0 {
			prevID := order[i-1]
			d.PreviousExamID = &prevID
			if v, ok := metric[prevID]; ok {
				d.Previous = models.Float(v)
			}
		}
		d.Delta = Delta(d.Value, d.Previous)
		d.Direction = string(classify.DirectionOf(d.Delta))
		out = append(out, d)
	}
	return out
}

// Delta returns current - previous, or nil when either is missing.
func Delta(current, previous *float64) *float64 {
	if current == nil || previous == nil {
		return nil
	}
	v := *current - *previous
	return &v
}

// Previous returns the exam immediately before examID in order.
func Previous(order []int64, examID int64) (int64, bool) {
	for i, id := range order {
		if id == examID {
			if i == 0 {
				return 0, false
			}
			return order[i-1], true
		}
	}
	return 0, false
}

// Latest returns the last exam in order that satisfies has.
func Latest(order []int64, has func(int64) bool) (int64, bool) {
	for i := len(order) - 1; i >= 0; i-- {
		if has(order[i]) {
			return order[i], true
		}
	}
	return 0, false
}

// AverageMetric extracts avg per exam from exam-overall aggregates.
func AverageMetric(overall []models.AggregateStat) map[int64]float64 {
	m := make(map[int64]float64, len(overall))
	for _, s := range overall {
		m[s.ExamID] = s.Avg
	}
	return m
}

// PassRateMetric extracts pass_rate per exam from exam-overall aggregates.
func PassRateMetric(overall []models.AggregateStat) map[int64]float64 {
	m := make(map[int64]float64, len(overall))
	for _, s := range overall {
		m[s.ExamID] = s.PassRate
	}
	return m
}
