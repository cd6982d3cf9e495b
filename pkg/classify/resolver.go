package classify

import "github.com/panbanda/gradelens/pkg/models"

// Resolver supplies per-subject thresholds and maxima to the analyzers.
// It is built once per request and passed explicitly; analyzers keep no
// lookup state of their own.
type Resolver interface {
	// Tiers returns the absolute score thresholds for a subject.
	Tiers(subjectID int64) Tiers
	// MaxPoints returns the subject maximum used when a record has none.
	MaxPoints(subjectID int64) float64
	// PassPercent returns the pass threshold as a percentage of maximum.
	PassPercent() float64
}

// TableResolver resolves thresholds from a fixed subject table.
type TableResolver struct {
	percent    Tiers
	defaultMax float64
	subjects   map[int64]models.Subject
	overrides  map[int64]Tiers
}

// NewTableResolver builds a resolver. percent holds thresholds as
// percentages of a subject's maximum; overrides hold absolute thresholds
// keyed by subject id and win over the percentage rule.
func NewTableResolver(percent Tiers, defaultMax float64, subjects []models.Subject, overrides map[int64]Tiers) *TableResolver {
	r := &TableResolver{
		percent:    percent,
		defaultMax: MaxPoints(defaultMax, models.DefaultMaxPoints),
		subjects:   make(map[int64]models.Subject, len(subjects)),
		overrides:  make(map[int64]Tiers, len(overrides)),
	}
	for _, s := range subjects {
		r.subjects[s.ID] = s
	}
	for id, t := range overrides {
		r.overrides[id] = t
	}
	return r
}

// Tiers implements Resolver.
func (r *TableResolver) Tiers(subjectID int64) Tiers {
	if t, ok := r.overrides[subjectID]; ok {
		return t
	}
	return r.percent.OfMax(r.MaxPoints(subjectID))
}

// MaxPoints implements Resolver.
func (r *TableResolver) MaxPoints(subjectID int64) float64 {
	s, ok := r.subjects[subjectID]
	if !ok {
		return r.defaultMax
	}
	return s.EffectiveMax(r.defaultMax)
}

// PassPercent implements Resolver.
func (r *TableResolver) PassPercent() float64 {
	return r.percent.Pass
}

// DefaultPercentTiers returns pass 46%, good 66%, excellent 86%.
func DefaultPercentTiers() Tiers {
	return Tiers{Pass: 46, Good: 66, Excellent: 86}
}

// FixedResolver returns the same thresholds for every subject.
type FixedResolver struct {
	T   Tiers
	Max float64
}

// Tiers implements Resolver.
func (f FixedResolver) Tiers(int64) Tiers { return f.T }

// MaxPoints implements Resolver.
func (f FixedResolver) MaxPoints(int64) float64 {
	return MaxPoints(f.Max, models.DefaultMaxPoints)
}

// PassPercent implements Resolver.
func (f FixedResolver) PassPercent() float64 {
	m := f.MaxPoints(0)
	return f.T.Pass / m * 100
}
