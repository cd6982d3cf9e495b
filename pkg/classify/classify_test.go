package classify

import (
	"testing"

	"github.com/panbanda/gradelens/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBandsClassify(t *testing.T) {
	b := DefaultBands()
	require.True(t, b.Valid())

	tests := []struct {
		p    float64
		want Band
	}{
		{-5, BandWeak},
		{0, BandWeak},
		{45.999, BandWeak},
		{46, BandLower},
		{50, BandLower},
		{65.99, BandLower},
		{66, BandMiddle},
		{75, BandMiddle},
		{85.999, BandMiddle},
		{86, BandElite},
		{100, BandElite},
		{140, BandElite},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, b.Classify(tt.p), "p=%v", tt.p)
	}
}

func TestBandsValid(t *testing.T) {
	assert.False(t, Bands{Lower: 0, Middle: 50, Elite: 80}.Valid())
	assert.False(t, Bands{Lower: 50, Middle: 40, Elite: 80}.Valid())
	assert.False(t, Bands{Lower: 40, Middle: 60, Elite: 120}.Valid())
}

func TestBandRank(t *testing.T) {
	assert.Equal(t, 0, BandWeak.Rank())
	assert.Equal(t, 3, BandElite.Rank())
	assert.Equal(t, -1, Band("unknown").Rank())
}

func TestPercentage(t *testing.T) {
	p, ok := Percentage(30, 40)
	require.True(t, ok)
	assert.Equal(t, 75.0, p)

	_, ok = Percentage(10, 0)
	assert.False(t, ok)

	p, ok = Percentage(50, 40)
	require.True(t, ok)
	assert.Equal(t, 100.0, p)

	p, ok = Percentage(-3, 40)
	require.True(t, ok)
	assert.Equal(t, 0.0, p)
}

func TestMaxPoints(t *testing.T) {
	assert.Equal(t, 50.0, MaxPoints(50, 40))
	assert.Equal(t, 40.0, MaxPoints(0, 40))
	assert.Equal(t, 30.0, MaxPoints(-1, 30))
	assert.Equal(t, 40.0, MaxPoints(0, 0))
}

func TestTiersClassify(t *testing.T) {
	tiers := Tiers{Pass: 18.4, Good: 26.4, Excellent: 34.4}
	f := func(v float64) *float64 { return &v }

	tests := []struct {
		name  string
		value *float64
		want  Tier
	}{
		{"nil", nil, TierNoData},
		{"below", f(18.3), TierBelowPass},
		{"at pass", f(18.4), TierPass},
		{"between", f(20), TierPass},
		{"at good", f(26.4), TierGood},
		{"at excellent", f(34.4), TierExcellent},
		{"above", f(40), TierExcellent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			badge := tiers.Classify(tt.value)
			assert.Equal(t, tt.want, badge.Tier)
			assert.Equal(t, tiers, badge.Thresholds)
			assert.Equal(t, tt.value, badge.Value)
		})
	}
}

func TestDirectionOf(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	assert.Equal(t, DirectionNone, DirectionOf(nil))
	assert.Equal(t, DirectionUp, DirectionOf(f(22.5-20.0)))
	assert.Equal(t, DirectionDown, DirectionOf(f(-1)))
	assert.Equal(t, DirectionFlat, DirectionOf(f(20.0-20.00005)))
	assert.Equal(t, DirectionFlat, DirectionOf(f(0)))
	assert.Equal(t, DirectionFlat, DirectionOf(f(DeltaEpsilon)))
	assert.Equal(t, DirectionUp, DirectionOf(f(0.00011)))
}

func TestTableResolver(t *testing.T) {
	subjects := []models.Subject{
		{ID: 1, Name: "Math", MaxPoints: 40},
		{ID: 2, Name: "Art", MaxPoints: 0},
		{ID: 3, Name: "Physics", MaxPoints: 100},
	}
	overrides := map[int64]Tiers{3: {Pass: 50, Good: 70, Excellent: 90}}
	r := NewTableResolver(DefaultPercentTiers(), 40, subjects, overrides)

	math := r.Tiers(1)
	assert.InDelta(t, 18.4, math.Pass, 1e-9)
	assert.InDelta(t, 26.4, math.Good, 1e-9)
	assert.InDelta(t, 34.4, math.Excellent, 1e-9)

	assert.Equal(t, 40.0, r.MaxPoints(2))
	assert.Equal(t, 40.0, r.MaxPoints(99))
	assert.Equal(t, 100.0, r.MaxPoints(3))
	assert.Equal(t, Tiers{Pass: 50, Good: 70, Excellent: 90}, r.Tiers(3))
	assert.Equal(t, 46.0, r.PassPercent())
}

func TestFixedResolver(t *testing.T) {
	r := FixedResolver{T: Tiers{Pass: 20, Good: 30, Excellent: 35}, Max: 40}
	assert.Equal(t, 20.0, r.Tiers(7).Pass)
	assert.Equal(t, 40.0, r.MaxPoints(7))
	assert.Equal(t, 50.0, r.PassPercent())
}
