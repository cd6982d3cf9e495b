package distribution

import (
	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/panbanda/gradelens/pkg/classify"
	"github.com/panbanda/gradelens/pkg/models"
)

// bandSet holds the pupils of one exam as one bitmap per band.
type bandSet struct {
	all   *roaring64.Bitmap
	bands map[classify.Band]*roaring64.Bitmap
}

func newBandSet() *bandSet {
	s := &bandSet{
		all:   roaring64.New(),
		bands: make(map[classify.Band]*roaring64.Bitmap, len(classify.AllBands)),
	}
	for _, b := range classify.AllBands {
		s.bands[b] = roaring64.New()
	}
	return s
}

func (s *bandSet) add(pupilID int64, b classify.Band) {
	id := uint64(pupilID)
	s.all.Add(id)
	s.bands[b].Add(id)
}

// FlowKey names a band-to-band flow, e.g. "weak->lower".
func FlowKey(from, to classify.Band) string {
	return string(from) + "->" + string(to)
}

// Migration counts, for each consecutive pair of exams in order, how many
// pupils present on both moved to a higher band, a lower band, or stayed.
// Flows holds the non-zero from->to counts. Up + Down + Stayed == Common.
func Migration(order []int64, percentages []models.PupilPercentage, bands classify.Bands) []models.BandMigration {
	sets := make(map[int64]*bandSet)
	for _, p := range percentages {
		s, ok := sets[p.ExamID]
		if !ok {
			s = newBandSet()
			sets[p.ExamID] = s
		}
		s.add(p.PupilID, bands.Classify(p.Percentage))
	}

	var out []models.BandMigration
	for i := 1; i < len(order); i++ {
		prev, okPrev := sets[order[i-1]]
		cur, okCur := sets[order[i]]
		if !okPrev || !okCur {
			continue
		}

		m := models.BandMigration{
			ExamID:         order[i],
			PreviousExamID: order[i-1],
			Common:         int(roaring64.And(prev.all, cur.all).GetCardinality()),
			Flows:          make(map[string]int),
		}
		for _, from := range classify.AllBands {
			for _, to := range classify.AllBands {
				n := int(roaring64.And(prev.bands[from], cur.bands[to]).GetCardinality())
				if n == 0 {
					continue
				}
				m.Flows[FlowKey(from, to)] = n
				switch {
				case to.Rank() > from.Rank():
					m.Up += n
				case to.Rank() < from.Rank():
					m.Down += n
				default:
					m.Stayed += n
				}
			}
		}
		out = append(out, m)
	}
	return out
}
