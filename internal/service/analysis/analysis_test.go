package analysis

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/panbanda/gradelens/pkg/analyzer/aggregate"
	"github.com/panbanda/gradelens/pkg/config"
	"github.com/panbanda/gradelens/pkg/models"
	"github.com/panbanda/gradelens/pkg/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(pupil, subject, exam int64, v float64) models.ScoreRecord {
	return models.ScoreRecord{PupilID: pupil, SubjectID: subject, ExamID: exam, Score: models.Float(v)}
}

func dataset() *models.Dataset {
	return &models.Dataset{
		Exams: []models.Exam{
			{ID: 1, AcademicYear: "2024-2025", Term: models.Int(1)},
			{ID: 2, AcademicYear: "2024-2025", Term: models.Int(2)},
		},
		Subjects: []models.Subject{{ID: 1, Name: "Mathematics", MaxPoints: 40}},
		Pupils: []models.Pupil{
			{ID: 1, ClassCode: "7A", Group: 1},
			{ID: 2, ClassCode: "7B", Group: 2},
		},
		Scores: []models.ScoreRecord{
			rec(1, 1, 1, 30), rec(2, 1, 1, 10),
			rec(1, 1, 2, 20), rec(2, 1, 2, 24),
		},
	}
}

func newService(opts ...Option) *Service {
	return New(append([]Option{WithConfig(config.DefaultConfig())}, opts...)...)
}

const fileDataset = `{
  "pupils": [{"id": 1, "class_code": "7A"}, {"id": 2, "class_code": "7B"}],
  "scores": [
    {"pupil_id": 1, "subject_id": 1, "exam_id": 1, "score": 30},
    {"pupil_id": 2, "subject_id": 1, "exam_id": 1, "score": 10}
  ]
}`

func TestLoadInline(t *testing.T) {
	s := newService()
	ds := dataset()

	got, err := s.Load(context.Background(), Request{Dataset: ds})
	require.NoError(t, err)
	assert.Same(t, ds, got)

	got, err = s.Load(context.Background(), Request{Dataset: ds, Scope: source.Scope{ClassCode: "7A"}})
	require.NoError(t, err)
	assert.Len(t, got.Scores, 2)
	assert.Len(t, ds.Scores, 4, "inline dataset must not be modified")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.json")
	require.NoError(t, os.WriteFile(path, []byte(fileDataset), 0o644))

	s := newService()
	ds, err := s.Load(context.Background(), Request{Path: path, Scope: source.Scope{ClassCode: "7B"}})
	require.NoError(t, err)
	require.Len(t, ds.Scores, 1)
	assert.Equal(t, int64(2), ds.Scores[0].PupilID)

	cfg := config.DefaultConfig()
	cfg.Source.Path = path
	ds, err = New(WithConfig(cfg)).Load(context.Background(), Request{})
	require.NoError(t, err, "falls back to the configured source")
	assert.Len(t, ds.Scores, 2)
}

func TestLoadErrors(t *testing.T) {
	_, err := newService().Load(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNoDataset)

	boom := errors.New("connection refused")
	s := newService(WithOpener(func(context.Context, Request) (source.Source, func(), error) {
		return nil, func() {}, boom
	}))
	_, err = s.Load(context.Background(), Request{DSN: "postgres://localhost/school"})
	assert.ErrorIs(t, err, boom)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"scores": "none"}`), 0o644))
	_, err = newService().Load(context.Background(), Request{Path: path})
	assert.ErrorIs(t, err, source.ErrInvalidDataset)
}

type staticSource struct {
	ds    *models.Dataset
	scope source.Scope
}

func (s *staticSource) Load(_ context.Context, scope source.Scope) (*models.Dataset, error) {
	s.scope = scope
	return scope.Apply(s.ds), nil
}

func TestLoadClosesSource(t *testing.T) {
	src := &staticSource{ds: dataset()}
	closed := false
	s := newService(WithOpener(func(_ context.Context, req Request) (source.Source, func(), error) {
		assert.Equal(t, "postgres://db/school", req.DSN)
		return src, func() { closed = true }, nil
	}))

	scope := source.Scope{ExamIDs: []int64{2}}
	ds, err := s.Load(context.Background(), Request{DSN: "postgres://db/school", Scope: scope})
	require.NoError(t, err)
	assert.Len(t, ds.Scores, 2)
	assert.Equal(t, scope, src.scope)
	assert.True(t, closed)
}

func TestReport(t *testing.T) {
	rep, err := newService().Report(context.Background(), dataset())
	require.NoError(t, err)
	assert.Equal(t, 4, rep.Meta.Records)
	require.NotNil(t, rep.Movers)
	assert.Len(t, rep.Rankings, 2)
}

func TestReportUsesConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Grading.Subjects = []config.SubjectThreshold{{SubjectID: 1, Pass: 35, Good: 37, Excellent: 39}}

	rep, err := New(WithConfig(cfg)).Report(context.Background(), dataset())
	require.NoError(t, err)
	for _, s := range rep.Subjects {
		assert.Zero(t, s.PassN)
	}
}

func TestAggregate(t *testing.T) {
	res, err := newService().Aggregate(dataset())
	require.NoError(t, err)
	assert.Len(t, res.Subjects, 2)
	assert.Len(t, res.Overall, 2)
	assert.Len(t, res.Pupils, 4)

	ds := dataset()
	ds.Scores[0].Score = models.Float(math.NaN())
	_, err = newService().Aggregate(ds)
	assert.ErrorIs(t, err, aggregate.ErrInvalidScore)
}

func TestCohorts(t *testing.T) {
	res, err := newService().Cohorts(dataset())
	require.NoError(t, err)
	require.Len(t, res, 2)
	require.NotNil(t, res[0].Delta)
	assert.InDelta(t, -20.0, *res[0].Delta, 1e-9)
}

func TestRank(t *testing.T) {
	s := newService()

	latest, err := s.Rank(dataset(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), latest.ExamID)
	assert.Equal(t, int64(2), latest.Pupils[0].PupilID)

	first, err := s.Rank(dataset(), models.ID(1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Pupils[0].PupilID)

	_, err = s.Rank(dataset(), models.ID(9))
	assert.ErrorIs(t, err, ErrUnknownExam)

	_, err = s.Rank(&models.Dataset{}, nil)
	assert.ErrorIs(t, err, ErrUnknownExam)
}
