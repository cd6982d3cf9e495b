package compare

import (
	"sort"

	"github.com/panbanda/gradelens/pkg/classify"
	"github.com/panbanda/gradelens/pkg/models"
)

// CohortFunc returns the cohort (1 or 2) of a pupil. ok is false for
// pupils outside both cohorts.
type CohortFunc func(pupilID int64) (cohort int, ok bool)

// CohortsFromPupils builds a CohortFunc from pupil group assignments.
func CohortsFromPupils(pupils []models.Pupil) CohortFunc {
	groups := make(map[int64]int, len(pupils))
	for _, p := range pupils {
		if p.HasGroup() {
			groups[p.ID] = p.Group
		}
	}
	return func(pupilID int64) (int, bool) {
		g, ok := groups[pupilID]
		return g, ok
	}
}

type cohortAcc struct {
	n     int
	sum   float64
	passN int
}

func (c *cohortAcc) summary() *models.CohortSummary {
	if c == nil || c.n == 0 {
		return nil
	}
	return &models.CohortSummary{
		N:        c.n,
		Avg:      c.sum / float64(c.n),
		PassRate: float64(c.passN) / float64(c.n) * 100,
	}
}

// Cohorts compares cohort 1 and cohort 2 per (subject, exam). Records with
// no score, and pupils outside both cohorts, are skipped. A side without
// data is nil, and Delta (cohort2 avg - cohort1 avg) is set only when both
// sides exist. Output is ordered by subject id, then exam id.
func Cohorts(records []models.ScoreRecord, cohortOf CohortFunc, r classify.Resolver) []models.GroupComparison {
	type key struct{ subject, exam int64 }
	acc := make(map[key]*[2]*cohortAcc)

	for _, rec := range records {
		if !rec.HasScore() {
			continue
		}
		c, ok := cohortOf(rec.PupilID)
		if !ok || (c != 1 && c != 2) {
			continue
		}
		k := key{rec.SubjectID, rec.ExamID}
		sides, ok := acc[k]
		if !ok {
			sides = &[2]*cohortAcc{}
			acc[k] = sides
		}
		side := sides[c-1]
		if side == nil {
			side = &cohortAcc{}
			sides[c-1] = side
		}
		side.n++
		side.sum += *rec.Score
		if r.Tiers(rec.SubjectID).Passes(*rec.Score) {
			side.passN++
		}
	}

	out := make([]models.GroupComparison, 0, len(acc))
	for k, sides := range acc {
		cmp := models.GroupComparison{
			SubjectID: k.subject,
			ExamID:    k.exam,
			Cohort1:   sides[0].summary(),
			Cohort2:   sides[1].summary(),
		}
		if cmp.Cohort1 != nil && cmp.Cohort2 != nil {
			cmp.Delta = models.Float(cmp.Cohort2.Avg - cmp.Cohort1.Avg)
		}
		out = append(out, cmp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubjectID != out[j].SubjectID {
			return out[i].SubjectID < out[j].SubjectID
		}
		return out[i].ExamID < out[j].ExamID
	})
	return out
}
