package output

import (
	"bytes"
	"context"
	"testing"

	"github.com/panbanda/gradelens/pkg/analyzer/overview"
	"github.com/panbanda/gradelens/pkg/classify"
	"github.com/panbanda/gradelens/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func viewDataset() *models.Dataset {
	rec := func(pupil, subject, exam int64, v float64) models.ScoreRecord {
		return models.ScoreRecord{PupilID: pupil, SubjectID: subject, ExamID: exam, Score: models.Float(v)}
	}
	return &models.Dataset{
		Exams: []models.Exam{
			{ID: 1, AcademicYear: "2024-2025", Term: models.Int(1), Name: "Autumn"},
			{ID: 2, AcademicYear: "2024-2025", Term: models.Int(2), Name: "Spring"},
		},
		Subjects: []models.Subject{{ID: 1, Name: "Mathematics", MaxPoints: 40}},
		Pupils:   []models.Pupil{{ID: 1, Name: "Ann", Group: 1}, {ID: 2, Name: "Ben", Group: 2}},
		Scores: []models.ScoreRecord{
			rec(1, 1, 1, 30), rec(2, 1, 1, 10),
			rec(1, 1, 2, 36), rec(2, 1, 2, 12),
		},
	}
}

func TestNamesFor(t *testing.T) {
	names := NamesFor(viewDataset())
	assert.Equal(t, "2024-2025 Autumn", names.Exam(1))
	assert.Equal(t, "Mathematics", names.Subject(1))
	assert.Equal(t, "Ann", names.Pupil(1))
	assert.Equal(t, "#9", names.Pupil(9))

	empty := NamesFor(nil)
	assert.Equal(t, "#3", empty.Exam(3))
}

func TestCellFormatting(t *testing.T) {
	assert.Equal(t, "18.40", num(18.4))
	assert.Equal(t, "-", optNum(nil))
	assert.Equal(t, "+1.50", signed(models.Float(1.5)))
	assert.Equal(t, "-0.25", signed(models.Float(-0.25)))
	assert.Equal(t, "62.5%", pct(62.5))
}

func TestSubjectStatsTier(t *testing.T) {
	r := classify.FixedResolver{T: classify.DefaultPercentTiers().OfMax(40), Max: 40}
	stats := []models.AggregateStat{
		{SubjectID: models.ID(1), ExamID: 1, N: 2, Avg: 30, PassRate: 50},
		{ExamID: 1, N: 2, Avg: 30},
	}
	table := SubjectStats(stats, NamesFor(viewDataset()), r)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "good", table.Rows[0][9])
	assert.Equal(t, "All", table.Rows[1][1])
	assert.Equal(t, "-", table.Rows[1][9])
}

func TestMoversTable(t *testing.T) {
	names := NamesFor(viewDataset())
	assert.Empty(t, MoversTable(nil, names).Rows)

	m := &models.Movers{
		ExamID: 2, PreviousExamID: 1,
		Improvements: []models.SubjectMove{{SubjectID: 1, Previous: 20, Current: 24, Delta: 4}},
		Declines:     []models.SubjectMove{{SubjectID: 2, Previous: 30, Current: 25, Delta: -5}},
	}
	table := MoversTable(m, names)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"up", "Mathematics", "20.00", "24.00", "+4.00"}, table.Rows[0])
	assert.Equal(t, "down", table.Rows[1][0])
	assert.Equal(t, "#2", table.Rows[1][1])
	assert.Contains(t, table.Title, "2024-2025 Spring")
}

func TestCohortTableMissingSide(t *testing.T) {
	cmp := []models.GroupComparison{{
		SubjectID: 1, ExamID: 1,
		Cohort1: &models.CohortSummary{N: 3, Avg: 20, PassRate: 66.7},
	}}
	table := CohortTable(cmp, NamesFor(viewDataset()))
	require.Len(t, table.Rows, 1)
	assert.Equal(t, []string{"2024-2025 Autumn", "Mathematics", "3", "20.00", "66.7%", "-", "-", "-", "-"}, table.Rows[0])
}

func TestReportView(t *testing.T) {
	ds := viewDataset()
	a := overview.New()
	rep, err := a.Analyze(context.Background(), ds)
	require.NoError(t, err)

	view := ReportView(rep, NamesFor(ds), a.ResolverFor(ds))
	assert.Same(t, rep, view.RenderData())

	for _, format := range []Format{FormatText, FormatMarkdown, FormatJSON, FormatTOON} {
		var buf bytes.Buffer
		require.NoError(t, NewWriterFormatter(format, &buf, false).Output(view), format)
		assert.NotEmpty(t, buf.String(), format)
	}

	var md bytes.Buffer
	require.NoError(t, view.RenderMarkdown(&md))
	for _, want := range []string{"# Class Report", "## Subject Movers", "## Ranking: 2024-2025 Spring", "| 1 | 1 | Ann |"} {
		assert.Contains(t, md.String(), want)
	}
}
