// Package ranking orders pupils within a scope deterministically.
package ranking

import (
	"sort"

	"github.com/panbanda/gradelens/pkg/classify"
	"github.com/panbanda/gradelens/pkg/models"
)

// Entry is one pupil's standing before ranking.
type Entry struct {
	PupilID    int64
	Total      float64
	TotalMax   float64
	Secondary  float64
	Percentage float64
}

// SecondaryFunc derives the tie-break total of an entry.
type SecondaryFunc func(e Entry) float64

// ByPercentage uses the percentage of maximum as the secondary total.
func ByPercentage(e Entry) float64 { return e.Percentage }

// less orders by total descending, secondary descending, pupil id ascending.
func less(a, b Entry) bool {
	if a.Total != b.Total {
		return a.Total > b.Total
	}
	if a.Secondary != b.Secondary {
		return a.Secondary > b.Secondary
	}
	return a.PupilID < b.PupilID
}

// Rank orders entries and assigns positions and competition ranks.
// Position runs 1..n with no gaps. Pupils tied on both totals share a rank
// and the next rank skips accordingly (1, 1, 3). The input is not modified.
func Rank(entries []Entry) []models.RankedPupil {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })

	out := make([]models.RankedPupil, len(sorted))
	for i, e := range sorted {
		rank := i + 1
		if i > 0 {
			prev := sorted[i-1]
			if prev.Total == e.Total && prev.Secondary == e.Secondary {
				rank = out[i-1].Rank
			}
		}
		out[i] = models.RankedPupil{
			Position:   i + 1,
			Rank:       rank,
			PupilID:    e.PupilID,
			Total:      e.Total,
			Secondary:  e.Secondary,
			Percentage: e.Percentage,
		}
	}
	return out
}

// Totals builds ranking entries for one exam from raw records. Total is
// the sum of the pupil's scores; missing scores add nothing. Maxima follow
// the same policy as pupil percentages. A nil secondary uses ByPercentage.
func Totals(records []models.ScoreRecord, examID int64, r classify.Resolver, secondary SecondaryFunc) []Entry {
	if secondary == nil {
		secondary = ByPercentage
	}

	index := make(map[int64]*Entry)
	var ids []int64
	for _, rec := range records {
		if rec.ExamID != examID || !rec.HasScore() {
			continue
		}
		e, ok := index[rec.PupilID]
		if !ok {
			e = &Entry{PupilID: rec.PupilID}
			index[rec.PupilID] = e
			ids = append(ids, rec.PupilID)
		}
		e.Total += *rec.Score
		e.TotalMax += classify.MaxPoints(rec.MaxPoints, r.MaxPoints(rec.SubjectID))
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]Entry, 0, len(ids))
	for _, id := range ids {
		e := index[id]
		if pct, ok := classify.Percentage(e.Total, e.TotalMax); ok {
			e.Percentage = pct
		}
		e.Secondary = secondary(*e)
		out = append(out, *e)
	}
	return out
}
