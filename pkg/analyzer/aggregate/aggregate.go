// Package aggregate groups raw score records and summarizes each group.
package aggregate

import (
	"errors"
	"fmt"
	"runtime"
	"sort"

	"github.com/panbanda/gradelens/pkg/classify"
	"github.com/panbanda/gradelens/pkg/models"
	"github.com/panbanda/gradelens/pkg/stats"
	"github.com/sourcegraph/conc/iter"
)

// ErrInvalidScore reports a score or maximum that is not a finite number.
var ErrInvalidScore = errors.New("invalid score")

// Analyzer computes group statistics over score records.
type Analyzer struct {
	resolver   classify.Resolver
	defaultMax float64
	workers    int
}

// Option configures the Analyzer.
type Option func(*Analyzer)

// WithResolver sets the per-subject threshold lookup.
func WithResolver(r classify.Resolver) Option {
	return func(a *Analyzer) {
		a.resolver = r
	}
}

// WithDefaultMax sets the maximum assumed for subjects without one. It only
// applies when no resolver is supplied.
func WithDefaultMax(points float64) Option {
	return func(a *Analyzer) {
		a.defaultMax = points
	}
}

// WithWorkers caps the goroutines used to summarize groups (<= 0 = NumCPU).
func WithWorkers(n int) Option {
	return func(a *Analyzer) {
		a.workers = n
	}
}

// New creates a new aggregate analyzer. Without a resolver every subject
// is graded out of the default maximum with the default percentage tiers.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		defaultMax: models.DefaultMaxPoints,
		workers:    runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.resolver == nil {
		a.resolver = classify.NewTableResolver(classify.DefaultPercentTiers(), a.defaultMax, nil, nil)
	}
	if a.workers <= 0 {
		a.workers = runtime.NumCPU()
	}
	return a
}

// Resolver returns the threshold lookup in use.
func (a *Analyzer) Resolver() classify.Resolver {
	return a.resolver
}

type groupKey struct {
	subject int64
	exam    int64
}

// group holds the raw values of one grouping key. Medians need every value,
// so the values are retained rather than folded into running sums.
type group struct {
	key    groupKey
	values []float64
	passN  int
}

// BySubjectExam summarizes scores per (subject, exam). Groups without any
// eligible score are omitted. Output is ordered by subject id, then exam id.
func (a *Analyzer) BySubjectExam(records []models.ScoreRecord) ([]models.AggregateStat, error) {
	groups, err := a.collect(records, func(r models.ScoreRecord) groupKey {
		return groupKey{subject: r.SubjectID, exam: r.ExamID}
	})
	if err != nil {
		return nil, err
	}
	out := a.summarize(groups)
	for i := range out {
		id := groups[i].key.subject
		out[i].SubjectID = &id
	}
	return out, nil
}

// Overall summarizes scores per exam with every subject folded together.
// Subject scales are mixed on purpose: this is a single "how is the class
// doing" signal, not a fair cross-subject comparison.
func (a *Analyzer) Overall(records []models.ScoreRecord) ([]models.AggregateStat, error) {
	groups, err := a.collect(records, func(r models.ScoreRecord) groupKey {
		return groupKey{exam: r.ExamID}
	})
	if err != nil {
		return nil, err
	}
	return a.summarize(groups), nil
}

func (a *Analyzer) collect(records []models.ScoreRecord, keyOf func(models.ScoreRecord) groupKey) ([]*group, error) {
	index := make(map[groupKey]*group)
	if err := ValidateScores(records); err != nil {
		return nil, err
	}
	for _, r := range records {
		if !r.HasScore() {
			continue
		}
		k := keyOf(r)
		g, ok := index[k]
		if !ok {
			g = &group{key: k}
			index[k] = g
		}
		g.values = append(g.values, *r.Score)
		if a.resolver.Tiers(r.SubjectID).Passes(*r.Score) {
			g.passN++
		}
	}

	groups := make([]*group, 0, len(index))
	for _, g := range index {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].key.subject != groups[j].key.subject {
			return groups[i].key.subject < groups[j].key.subject
		}
		return groups[i].key.exam < groups[j].key.exam
	})
	return groups, nil
}

func (a *Analyzer) summarize(groups []*group) []models.AggregateStat {
	mapper := iter.Mapper[*group, models.AggregateStat]{MaxGoroutines: a.workers}
	return mapper.Map(groups, func(g **group) models.AggregateStat {
		return summarizeGroup(*g)
	})
}

func summarizeGroup(g *group) models.AggregateStat {
	s, _ := stats.Summarize(g.values)
	n := len(g.values)
	return models.AggregateStat{
		ExamID:   g.key.exam,
		N:        n,
		Avg:      s.Mean,
		Median:   s.Median,
		SD:       s.SD,
		Skew:     s.Skew,
		Min:      s.Min,
		Max:      s.Max,
		PassN:    g.passN,
		PassRate: passRate(g.passN, n),
	}
}

func passRate(passN, n int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(passN) / float64(n) * 100
}

// ValidateScores rejects NaN and infinite scores or maxima. The error wraps
// ErrInvalidScore and names the offending record.
func ValidateScores(records []models.ScoreRecord) error {
	for i, r := range records {
		if err := validate(r); err != nil {
			return fmt.Errorf("record %d (pupil %d, subject %d, exam %d): %w", i, r.PupilID, r.SubjectID, r.ExamID, err)
		}
	}
	return nil
}

func validate(r models.ScoreRecord) error {
	if !stats.Finite(r.MaxPoints) {
		return fmt.Errorf("%w: max_points %v", ErrInvalidScore, r.MaxPoints)
	}
	if r.Score != nil && !stats.Finite(*r.Score) {
		return fmt.Errorf("%w: score %v", ErrInvalidScore, *r.Score)
	}
	return nil
}
