package distribution

import (
	"testing"

	"github.com/panbanda/gradelens/pkg/classify"
	"github.com/panbanda/gradelens/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pcts(examID int64, values ...float64) []models.PupilPercentage {
	out := make([]models.PupilPercentage, len(values))
	for i, v := range values {
		out[i] = models.PupilPercentage{ExamID: examID, PupilID: int64(i + 1), Percentage: v}
	}
	return out
}

func TestBands(t *testing.T) {
	input := append(pcts(2, 45.999, 46, 85.999, 86, 100, 120, -5), pcts(1, 10)...)

	got := Bands(input, classify.DefaultBands())
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ExamID)
	assert.Equal(t, 1, got[0].Count("weak"))

	d := got[1]
	assert.Equal(t, 7, d.N)
	require.Len(t, d.Bands, 4, "empty bands are still listed")
	assert.Equal(t, 2, d.Count("weak"))
	assert.Equal(t, 1, d.Count("lower"))
	assert.Equal(t, 1, d.Count("middle"))
	assert.Equal(t, 3, d.Count("elite"))
}

func TestBandsInvariants(t *testing.T) {
	var input []models.PupilPercentage
	for exam := int64(1); exam <= 3; exam++ {
		for i := 0; i < 37; i++ {
			input = append(input, models.PupilPercentage{ExamID: exam, PupilID: int64(i), Percentage: float64((i*7 + int(exam)*13) % 101)})
		}
	}

	for _, d := range Bands(input, classify.DefaultBands()) {
		count := 0
		var total float64
		for _, b := range d.Bands {
			count += b.Count
			total += b.Share
		}
		assert.Equal(t, d.N, count)
		assert.InDelta(t, 100.0, total, 1e-6)
	}
}

func TestIntelligence(t *testing.T) {
	percentages := append(pcts(1, 10, 50, 70, 90, 100), pcts(2, 80, 88, 90, 92, 100)...)
	dists := Bands(percentages, classify.DefaultBands())

	got := Intelligence([]int64{1, 2}, dists, percentages, DefaultConfig())
	require.Len(t, got, 2)

	first := got[0]
	assert.Equal(t, 5, first.N)
	assert.Equal(t, 1, first.WeakCount)
	assert.InDelta(t, 20.0, first.WeakShare, 1e-9)
	assert.InDelta(t, 40.0, first.MiddleLayersShare, 1e-9)
	assert.InDelta(t, 40.0, first.EliteShare, 1e-9)
	assert.Equal(t, RiskWatch, first.RiskLabel)
	assert.Equal(t, MiddleBalanced, first.MiddleLabel)
	assert.Equal(t, "balanced", first.SkewDirection)
	assert.Nil(t, first.WeakShareDelta)

	second := got[1]
	assert.Equal(t, RiskStrong, second.RiskLabel)
	assert.Equal(t, MiddleLift, second.MiddleLabel)
	require.NotNil(t, second.Skew)
	assert.InDelta(t, 0.0, *second.Skew, 1e-9)
	require.NotNil(t, second.WeakShareDelta)
	assert.InDelta(t, -20.0, *second.WeakShareDelta, 1e-9)
	require.NotNil(t, second.EliteShareDelta)
	assert.InDelta(t, 40.0, *second.EliteShareDelta, 1e-9)
}

func TestIntelligenceSkipsMissingExams(t *testing.T) {
	percentages := pcts(3, 50)
	got := Intelligence([]int64{1, 2, 3}, Bands(percentages, classify.DefaultBands()), percentages, DefaultConfig())
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].ExamID)
	assert.Nil(t, got[0].Skew, "a single pupil has no spread")
	assert.Equal(t, "no spread", got[0].SkewDirection)
	assert.Nil(t, got[0].EliteShareDelta, "previous exam has no data")
}

func TestRiskLabel(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name  string
		weak  float64
		elite float64
		skew  *float64
		want  string
	}{
		{"many weak", 35, 0, nil, RiskHighRisk},
		{"failure tail", 0, 50, models.Float(-0.45), RiskHighRisk},
		{"some weak", 20, 0, nil, RiskWatch},
		{"mild tail", 0, 0, models.Float(-0.2), RiskWatch},
		{"strong top", 12, 20, models.Float(0.1), RiskStrong},
		{"strong needs few weak", 13, 30, nil, RiskStable},
		{"plain", 5, 5, nil, RiskStable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, riskLabel(tt.weak, tt.elite, tt.skew, cfg))
		})
	}
}

func TestMiddleLabel(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, MiddleCollapse, middleLabel(40, 25, cfg))
	assert.Equal(t, MiddleLift, middleLabel(10, 20, cfg))
	assert.Equal(t, MiddleBalanced, middleLabel(30, 25, cfg))
}

func TestMigration(t *testing.T) {
	percentages := []models.PupilPercentage{
		{ExamID: 10, PupilID: 1, Percentage: 30},
		{ExamID: 10, PupilID: 2, Percentage: 50},
		{ExamID: 10, PupilID: 3, Percentage: 90},
		{ExamID: 10, PupilID: 4, Percentage: 70},
		{ExamID: 20, PupilID: 1, Percentage: 50},
		{ExamID: 20, PupilID: 2, Percentage: 40},
		{ExamID: 20, PupilID: 3, Percentage: 90},
		{ExamID: 20, PupilID: 5, Percentage: 90},
	}

	got := Migration([]int64{10, 20, 30}, percentages, classify.DefaultBands())
	require.Len(t, got, 1)

	m := got[0]
	assert.Equal(t, int64(20), m.ExamID)
	assert.Equal(t, int64(10), m.PreviousExamID)
	assert.Equal(t, 3, m.Common)
	assert.Equal(t, 1, m.Up)
	assert.Equal(t, 1, m.Down)
	assert.Equal(t, 1, m.Stayed)
	assert.Equal(t, m.Common, m.Up+m.Down+m.Stayed)
	assert.Equal(t, map[string]int{
		"weak->lower":  1,
		"lower->weak":  1,
		"elite->elite": 1,
	}, m.Flows)
}

func TestMigrationSingleExam(t *testing.T) {
	assert.Empty(t, Migration([]int64{1}, pcts(1, 50, 60), classify.DefaultBands()))
}
