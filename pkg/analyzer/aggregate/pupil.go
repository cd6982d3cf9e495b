package aggregate

import (
	"fmt"
	"sort"

	"github.com/panbanda/gradelens/pkg/classify"
	"github.com/panbanda/gradelens/pkg/models"
)

// PupilPercentages sums each pupil's scores and subject maxima per exam.
// A record's own max_points wins; otherwise the subject maximum (with the
// default substituted for non-positive values) is used. Pupils whose total
// maximum is not positive are excluded. Output is ordered by exam id, then
// pupil id.
func (a *Analyzer) PupilPercentages(records []models.ScoreRecord) ([]models.PupilPercentage, error) {
	type key struct{ exam, pupil int64 }
	index := make(map[key]*models.PupilPercentage)

	for i, r := range records {
		if err := validate(r); err != nil {
			return nil, fmt.Errorf("record %d (pupil %d, subject %d, exam %d): %w", i, r.PupilID, r.SubjectID, r.ExamID, err)
		}
		if !r.HasScore() {
			continue
		}
		k := key{exam: r.ExamID, pupil: r.PupilID}
		p, ok := index[k]
		if !ok {
			p = &models.PupilPercentage{ExamID: r.ExamID, PupilID: r.PupilID}
			index[k] = p
		}
		p.TotalScore += *r.Score
		p.TotalMax += classify.MaxPoints(r.MaxPoints, a.resolver.MaxPoints(r.SubjectID))
		p.SubjectsTaken++
		if a.resolver.Tiers(r.SubjectID).Passes(*r.Score) {
			p.SubjectsPassed++
		}
	}

	out := make([]models.PupilPercentage, 0, len(index))
	for _, p := range index {
		pct, ok := classify.Percentage(p.TotalScore, p.TotalMax)
		if !ok {
			continue
		}
		p.Percentage = pct
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExamID != out[j].ExamID {
			return out[i].ExamID < out[j].ExamID
		}
		return out[i].PupilID < out[j].PupilID
	})
	return out, nil
}

// ByExam splits pupil percentages by exam id.
func ByExam(percentages []models.PupilPercentage) map[int64][]models.PupilPercentage {
	out := make(map[int64][]models.PupilPercentage)
	for _, p := range percentages {
		out[p.ExamID] = append(out[p.ExamID], p)
	}
	return out
}

// OverallByExam indexes exam-overall aggregates by exam id.
func OverallByExam(overall []models.AggregateStat) map[int64]models.AggregateStat {
	out := make(map[int64]models.AggregateStat, len(overall))
	for _, s := range overall {
		out[s.ExamID] = s
	}
	return out
}

// SubjectsForExam indexes the per-subject aggregates of one exam by subject id.
func SubjectsForExam(stats []models.AggregateStat, examID int64) map[int64]models.AggregateStat {
	out := make(map[int64]models.AggregateStat)
	for _, s := range stats {
		if s.ExamID == examID && s.SubjectID != nil {
			out[*s.SubjectID] = s
		}
	}
	return out
}
