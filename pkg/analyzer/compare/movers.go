package compare

import (
	"sort"

	"github.com/panbanda/gradelens/pkg/models"
)

// MoverEpsilon is the smallest average change that counts as movement.
const MoverEpsilon = 1e-5

// DefaultTopN caps mover and signal lists.
const DefaultTopN = 5

// Movers ranks subjects by the change of their average between two exams.
// Only subjects present on both exams take part. Improvements are sorted by
// delta descending, declines by delta ascending; ties fall back to subject
// id. Each list holds at most topN entries (topN <= 0 uses DefaultTopN).
// examID and previousExamID identify the exams the two maps were built from.
func Movers(current, previous map[int64]models.AggregateStat, examID, previousExamID int64, topN int) models.Movers {
	if topN <= 0 {
		topN = DefaultTopN
	}

	m := models.Movers{ExamID: examID, PreviousExamID: previousExamID}

	for id, cur := range current {
		prev, ok := previous[id]
		if !ok {
			continue
		}
		move := models.SubjectMove{
			SubjectID: id,
			Previous:  prev.Avg,
			Current:   cur.Avg,
			Delta:     cur.Avg - prev.Avg,
		}
		switch {
		case move.Delta > MoverEpsilon:
			m.Improvements = append(m.Improvements, move)
		case move.Delta < -MoverEpsilon:
			m.Declines = append(m.Declines, move)
		}
	}

	sort.Slice(m.Improvements, func(i, j int) bool {
		a, b := m.Improvements[i], m.Improvements[j]
		if a.Delta != b.Delta {
			return a.Delta > b.Delta
		}
		return a.SubjectID < b.SubjectID
	})
	sort.Slice(m.Declines, func(i, j int) bool {
		a, b := m.Declines[i], m.Declines[j]
		if a.Delta != b.Delta {
			return a.Delta < b.Delta
		}
		return a.SubjectID < b.SubjectID
	})

	if len(m.Improvements) > topN {
		m.Improvements = m.Improvements[:topN]
	}
	if len(m.Declines) > topN {
		m.Declines = m.Declines[:topN]
	}
	return m
}
