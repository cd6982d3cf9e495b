package aggregate

import (
	"math"
	"testing"

	"github.com/panbanda/gradelens/pkg/classify"
	"github.com/panbanda/gradelens/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(pupil, subject, exam int64, score float64) models.ScoreRecord {
	return models.ScoreRecord{PupilID: pupil, SubjectID: subject, ExamID: exam, Score: models.Float(score)}
}

func missing(pupil, subject, exam int64) models.ScoreRecord {
	return models.ScoreRecord{PupilID: pupil, SubjectID: subject, ExamID: exam}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		opts        []Option
		wantWorkers int
	}{
		{"custom workers", []Option{WithWorkers(3)}, 3},
		{"single worker", []Option{WithWorkers(1)}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(tt.opts...)
			assert.Equal(t, tt.wantWorkers, a.workers)
			assert.NotNil(t, a.Resolver())
		})
	}

	a := New(WithWorkers(-1))
	assert.Positive(t, a.workers)
}

func TestBySubjectExamPassRate(t *testing.T) {
	a := New()
	records := []models.ScoreRecord{
		rec(1, 1, 1, 10),
		rec(2, 1, 1, 18.4),
		rec(3, 1, 1, 25),
		rec(4, 1, 1, 5),
	}

	got, err := a.BySubjectExam(records)
	require.NoError(t, err)
	require.Len(t, got, 1)

	s := got[0]
	require.NotNil(t, s.SubjectID)
	assert.Equal(t, int64(1), *s.SubjectID)
	assert.Equal(t, int64(1), s.ExamID)
	assert.Equal(t, 4, s.N)
	assert.Equal(t, 2, s.PassN)
	assert.Equal(t, 50.0, s.PassRate)
	assert.InDelta(t, 14.6, s.Avg, 1e-9)
	assert.InDelta(t, 14.2, s.Median, 1e-9)
	assert.Equal(t, 5.0, s.Min)
	assert.Equal(t, 25.0, s.Max)
	require.NotNil(t, s.SD)
	require.NotNil(t, s.Skew)
}

func TestBySubjectExamGrouping(t *testing.T) {
	a := New(WithWorkers(2))
	records := []models.ScoreRecord{
		rec(1, 2, 1, 30),
		rec(1, 1, 2, 20),
		rec(1, 1, 1, 12),
		rec(2, 1, 1, 28),
		missing(3, 1, 1),
		missing(1, 3, 1),
	}

	got, err := a.BySubjectExam(records)
	require.NoError(t, err)
	require.Len(t, got, 3, "subject 3 has no eligible scores and must be omitted")

	assert.Equal(t, int64(1), *got[0].SubjectID)
	assert.Equal(t, int64(1), got[0].ExamID)
	assert.Equal(t, 2, got[0].N, "missing scores are excluded, not zero")
	assert.Equal(t, 20.0, got[0].Avg)

	assert.Equal(t, int64(1), *got[1].SubjectID)
	assert.Equal(t, int64(2), got[1].ExamID)
	assert.Equal(t, 1, got[1].N)
	assert.Nil(t, got[1].SD)
	assert.Nil(t, got[1].Skew)

	assert.Equal(t, int64(2), *got[2].SubjectID)
}

func TestBySubjectExamDuplicatesIncluded(t *testing.T) {
	a := New()
	records := []models.ScoreRecord{
		rec(1, 1, 1, 30),
		rec(1, 1, 1, 30),
		rec(2, 1, 1, 10),
	}
	got, err := a.BySubjectExam(records)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].N)
}

func TestOverallMixesSubjects(t *testing.T) {
	subjects := []models.Subject{{ID: 1, MaxPoints: 40}, {ID: 2, MaxPoints: 100}}
	r := classify.NewTableResolver(classify.DefaultPercentTiers(), 40, subjects, nil)
	a := New(WithResolver(r))

	records := []models.ScoreRecord{
		rec(1, 1, 1, 20), // passes 18.4
		rec(1, 2, 1, 40), // fails 46
		rec(2, 1, 1, 10),
		rec(2, 2, 1, 90),
		rec(1, 1, 2, 30),
	}

	got, err := a.Overall(records)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Nil(t, got[0].SubjectID)
	assert.Equal(t, int64(1), got[0].ExamID)
	assert.Equal(t, 4, got[0].N)
	assert.Equal(t, 40.0, got[0].Avg)
	assert.Equal(t, 2, got[0].PassN)
	assert.Equal(t, 50.0, got[0].PassRate)

	assert.Equal(t, int64(2), got[1].ExamID)
	assert.Equal(t, 1, got[1].N)
}

func TestInvariantPassBounds(t *testing.T) {
	a := New()
	var records []models.ScoreRecord
	for i := int64(0); i < 50; i++ {
		records = append(records, rec(i, i%4, i%3, float64(i%41)))
	}

	got, err := a.BySubjectExam(records)
	require.NoError(t, err)
	for _, s := range got {
		assert.LessOrEqual(t, s.PassN, s.N)
		assert.GreaterOrEqual(t, s.PassRate, 0.0)
		assert.LessOrEqual(t, s.PassRate, 100.0)
		assert.Positive(t, s.N)
	}
}

func TestInvalidScoresFailLoudly(t *testing.T) {
	a := New()

	_, err := a.BySubjectExam([]models.ScoreRecord{rec(1, 1, 1, math.NaN())})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidScore)

	_, err = a.Overall([]models.ScoreRecord{rec(1, 1, 1, math.Inf(1))})
	assert.ErrorIs(t, err, ErrInvalidScore)

	bad := rec(1, 1, 1, 10)
	bad.MaxPoints = math.NaN()
	_, err = a.PupilPercentages([]models.ScoreRecord{bad})
	assert.ErrorIs(t, err, ErrInvalidScore)
}

func TestPupilPercentages(t *testing.T) {
	subjects := []models.Subject{
		{ID: 1, MaxPoints: 40},
		{ID: 2, MaxPoints: 0},
		{ID: 3, MaxPoints: 60},
	}
	r := classify.NewTableResolver(classify.DefaultPercentTiers(), 40, subjects, nil)
	a := New(WithResolver(r))

	withMax := rec(2, 3, 1, 30)
	withMax.MaxPoints = 50

	records := []models.ScoreRecord{
		rec(1, 1, 1, 30),
		rec(1, 2, 1, 10), // default max 40
		withMax,
		missing(2, 1, 1),
		rec(3, 1, 2, 45), // above max, clamped to 100
	}

	got, err := a.PupilPercentages(records)
	require.NoError(t, err)
	require.Len(t, got, 3)

	p1 := got[0]
	assert.Equal(t, int64(1), p1.ExamID)
	assert.Equal(t, int64(1), p1.PupilID)
	assert.Equal(t, 40.0, p1.TotalScore)
	assert.Equal(t, 80.0, p1.TotalMax)
	assert.Equal(t, 50.0, p1.Percentage)
	assert.Equal(t, 2, p1.SubjectsTaken)
	assert.Equal(t, 1, p1.SubjectsPassed)
	assert.Equal(t, 50.0, p1.PassShare())

	p2 := got[1]
	assert.Equal(t, int64(2), p2.PupilID)
	assert.Equal(t, 50.0, p2.TotalMax, "record max_points wins over the subject max")
	assert.Equal(t, 60.0, p2.Percentage)

	p3 := got[2]
	assert.Equal(t, int64(2), p3.ExamID)
	assert.Equal(t, 100.0, p3.Percentage)
}

func TestPupilPercentagesExample(t *testing.T) {
	a := New()
	got, err := a.PupilPercentages([]models.ScoreRecord{
		rec(1, 1, 1, 30),
		rec(2, 1, 1, 30),
		rec(3, 1, 1, 20),
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 75.0, got[0].Percentage)
	assert.Equal(t, 75.0, got[1].Percentage)
	assert.Equal(t, 50.0, got[2].Percentage)
}

func TestIndexHelpers(t *testing.T) {
	a := New()
	records := []models.ScoreRecord{rec(1, 1, 1, 30), rec(1, 2, 1, 20), rec(1, 1, 2, 10)}

	bySubject, err := a.BySubjectExam(records)
	require.NoError(t, err)
	exam1 := SubjectsForExam(bySubject, 1)
	assert.Len(t, exam1, 2)
	assert.Equal(t, 20.0, exam1[2].Avg)

	overall, err := a.Overall(records)
	require.NoError(t, err)
	idx := OverallByExam(overall)
	assert.Equal(t, 25.0, idx[1].Avg)
	assert.Equal(t, 10.0, idx[2].Avg)

	pcts, err := a.PupilPercentages(records)
	require.NoError(t, err)
	byExam := ByExam(pcts)
	assert.Len(t, byExam[1], 1)
	assert.Len(t, byExam[2], 1)
}

func TestValidateScores(t *testing.T) {
	ok := []models.ScoreRecord{
		{PupilID: 1, SubjectID: 1, ExamID: 1, Score: models.Float(12)},
		{PupilID: 2, SubjectID: 1, ExamID: 1},
	}
	require.NoError(t, ValidateScores(ok))

	bad := append(ok, models.ScoreRecord{PupilID: 3, SubjectID: 2, ExamID: 1, Score: models.Float(math.Inf(1))})
	err := ValidateScores(bad)
	require.ErrorIs(t, err, ErrInvalidScore)
	assert.Contains(t, err.Error(), "record 2 (pupil 3, subject 2, exam 1)")
}
