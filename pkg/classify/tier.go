package classify

import "math"

// Tier is a badge level for a single score.
type Tier string

const (
	TierNoData    Tier = "no_data"
	TierBelowPass Tier = "below_pass"
	TierPass      Tier = "pass"
	TierGood      Tier = "good"
	TierExcellent Tier = "excellent"
)

// Tiers are three ascending thresholds on the score scale.
type Tiers struct {
	Pass      float64 `json:"pass" koanf:"pass" toml:"pass"`
	Good      float64 `json:"good" koanf:"good" toml:"good"`
	Excellent float64 `json:"excellent" koanf:"excellent" toml:"excellent"`
}

// Valid reports whether the thresholds ascend.
func (t Tiers) Valid() bool {
	return t.Pass <= t.Good && t.Good <= t.Excellent
}

// OfMax converts percentage thresholds into absolute thresholds for a
// subject graded out of max.
func (t Tiers) OfMax(max float64) Tiers {
	return Tiers{Pass: t.Pass * max / 100, Good: t.Good * max / 100, Excellent: t.Excellent * max / 100}
}

// Passes reports whether value reaches the pass threshold.
func (t Tiers) Passes(value float64) bool {
	return value >= t.Pass
}

// Badge is the classification of one value against a set of tiers.
type Badge struct {
	Tier       Tier     `json:"tier"`
	Value      *float64 `json:"value"`
	Thresholds Tiers    `json:"thresholds"`
}

// Classify places value into a tier. A nil value is TierNoData.
func (t Tiers) Classify(value *float64) Badge {
	b := Badge{Tier: TierNoData, Value: value, Thresholds: t}
	if value == nil {
		return b
	}
	v := *value
	switch {
	case v < t.Pass:
		b.Tier = TierBelowPass
	case v < t.Good:
		b.Tier = TierPass
	case v < t.Excellent:
		b.Tier = TierGood
	default:
		b.Tier = TierExcellent
	}
	return b
}

// DeltaEpsilon is the half-width of the "flat" window around zero.
const DeltaEpsilon = 0.0001

// Direction is the sign of a change.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionFlat Direction = "flat"
	DirectionNone Direction = "none"
)

// DirectionOf classifies a delta. Deltas within DeltaEpsilon of zero are
// flat so floating noise does not read as movement. nil is DirectionNone.
func DirectionOf(delta *float64) Direction {
	if delta == nil {
		return DirectionNone
	}
	switch {
	case math.Abs(*delta) <= DeltaEpsilon:
		return DirectionFlat
	case *delta > 0:
		return DirectionUp
	default:
		return DirectionDown
	}
}
