// Package overview runs every analyzer over one dataset and assembles the
// results into a single report.
package overview

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	"github.com/panbanda/gradelens/pkg/analyzer"
	"github.com/panbanda/gradelens/pkg/analyzer/aggregate"
	"github.com/panbanda/gradelens/pkg/analyzer/compare"
	"github.com/panbanda/gradelens/pkg/analyzer/distribution"
	"github.com/panbanda/gradelens/pkg/analyzer/ranking"
	"github.com/panbanda/gradelens/pkg/classify"
	"github.com/panbanda/gradelens/pkg/models"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"
	"github.com/zeebo/blake3"
)

// Stage names reported to the progress callback.
const (
	StageAggregate    = "aggregate"
	StageCompare      = "compare"
	StageDistribution = "distribution"
	StageRanking      = "ranking"
)

// Meta describes the input a report was computed from.
type Meta struct {
	GeneratedAt    time.Time `json:"generated_at"`
	ExamOrder      []int64   `json:"exam_order"`
	Records        int       `json:"records"`
	Duplicates     int       `json:"duplicates"`
	Fingerprint    string    `json:"fingerprint"`
	LatestExamID   *int64    `json:"latest_exam_id"`
	PreviousExamID *int64    `json:"previous_exam_id"`
}

// ExamRanking is the ranked pupil list of one exam.
type ExamRanking struct {
	ExamID int64                `json:"exam_id"`
	Pupils []models.RankedPupil `json:"pupils"`
}

// Report holds every analysis of one dataset.
type Report struct {
	Meta            Meta                      `json:"meta"`
	Subjects        []models.AggregateStat    `json:"subjects"`
	Overall         []models.AggregateStat    `json:"overall"`
	AverageDeltas   []models.DeltaMetric      `json:"average_deltas"`
	PassRateDeltas  []models.DeltaMetric      `json:"pass_rate_deltas"`
	Pupils          []models.PupilPercentage  `json:"pupils"`
	Bands           []models.BandDistribution `json:"bands"`
	Intelligence    []models.ExamIntelligence `json:"intelligence"`
	Migration       []models.BandMigration    `json:"migration"`
	Movers          *models.Movers            `json:"movers"`
	SubjectRisk     []models.SubjectSignal    `json:"subject_risk"`
	SubjectMomentum []models.SubjectSignal    `json:"subject_momentum"`
	PupilRisk       []models.PupilSignal      `json:"pupil_risk"`
	PupilMomentum   []models.PupilSignal      `json:"pupil_momentum"`
	Cohorts         []models.GroupComparison  `json:"cohorts"`
	Rankings        []ExamRanking             `json:"rankings"`
}

// Analyzer produces Reports.
type Analyzer struct {
	resolver     classify.Resolver
	percent      classify.Tiers
	overrides    map[int64]classify.Tiers
	defaultMax   float64
	bands        classify.Bands
	signals      compare.SignalConfig
	distribution distribution.Config
	secondary    ranking.SecondaryFunc
	workers      int
	progress     analyzer.ProgressFunc
	now          func() time.Time
}

var _ analyzer.DatasetAnalyzer[*Report] = (*Analyzer)(nil)

// Option configures the Analyzer.
type Option func(*Analyzer)

// WithResolver fixes the threshold lookup. Without it a resolver is built
// per dataset from its subjects and the configured tiers.
func WithResolver(r classify.Resolver) Option {
	return func(a *Analyzer) {
		a.resolver = r
	}
}

// WithTiers sets the percent-of-maximum tiers and absolute per-subject overrides.
func WithTiers(percent classify.Tiers, overrides map[int64]classify.Tiers) Option {
	return func(a *Analyzer) {
		a.percent = percent
		a.overrides = overrides
	}
}

// WithDefaultMax sets the maximum used for subjects without one.
func WithDefaultMax(points float64) Option {
	return func(a *Analyzer) {
		a.defaultMax = points
	}
}

// WithBands sets the band boundaries.
func WithBands(b classify.Bands) Option {
	return func(a *Analyzer) {
		a.bands = b
	}
}

// WithSignals sets the risk/momentum heuristics.
func WithSignals(cfg compare.SignalConfig) Option {
	return func(a *Analyzer) {
		a.signals = cfg
	}
}

// WithDistribution sets the distribution label cut-offs.
func WithDistribution(cfg distribution.Config) Option {
	return func(a *Analyzer) {
		a.distribution = cfg
	}
}

// WithSecondary sets the ranking tie-break total.
func WithSecondary(fn ranking.SecondaryFunc) Option {
	return func(a *Analyzer) {
		a.secondary = fn
	}
}

// WithWorkers caps goroutines for group summaries and per-exam rankings.
func WithWorkers(n int) Option {
	return func(a *Analyzer) {
		a.workers = n
	}
}

// WithProgress reports each finished stage.
func WithProgress(fn analyzer.ProgressFunc) Option {
	return func(a *Analyzer) {
		a.progress = fn
	}
}

// WithClock overrides the generated_at timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		a.now = now
	}
}

// New creates an overview analyzer with default thresholds.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		percent:      classify.DefaultPercentTiers(),
		defaultMax:   models.DefaultMaxPoints,
		bands:        classify.DefaultBands(),
		signals:      compare.DefaultSignalConfig(),
		distribution: distribution.DefaultConfig(),
		secondary:    ranking.ByPercentage,
		workers:      runtime.NumCPU(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.workers <= 0 {
		a.workers = runtime.NumCPU()
	}
	return a
}

// ResolverFor returns the resolver used for ds.
func (a *Analyzer) ResolverFor(ds *models.Dataset) classify.Resolver {
	if a.resolver != nil {
		return a.resolver
	}
	return classify.NewTableResolver(a.percent, a.defaultMax, ds.Subjects, a.overrides)
}

// Analyze computes the full report. The dataset is only read.
func (a *Analyzer) Analyze(ctx context.Context, ds *models.Dataset) (*Report, error) {
	if ds == nil {
		return nil, fmt.Errorf("overview: nil dataset")
	}
	tracker := analyzer.NewTracker(a.progress)
	tracker.Add(4)

	resolver := a.ResolverFor(ds)
	agg := aggregate.New(aggregate.WithResolver(resolver), aggregate.WithWorkers(a.workers))

	subjects, err := agg.BySubjectExam(ds.Scores)
	if err != nil {
		return nil, fmt.Errorf("aggregate by subject: %w", err)
	}
	overall, err := agg.Overall(ds.Scores)
	if err != nil {
		return nil, fmt.Errorf("aggregate overall: %w", err)
	}
	pupils, err := agg.PupilPercentages(ds.Scores)
	if err != nil {
		return nil, fmt.Errorf("pupil percentages: %w", err)
	}
	tracker.Tick(StageAggregate)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fingerprint, err := Fingerprint(ds)
	if err != nil {
		return nil, err
	}

	order := ds.ExamOrder()
	report := &Report{
		Meta: Meta{
			GeneratedAt: a.now().UTC(),
			ExamOrder:   order,
			Records:     len(ds.Scores),
			Duplicates:  ds.DuplicateCount(),
			Fingerprint: fingerprint,
		},
		Subjects: subjects,
		Overall:  overall,
		Pupils:   pupils,
	}

	hasSubjects := make(map[int64]bool)
	for _, s := range subjects {
		hasSubjects[s.ExamID] = true
	}
	latest, hasLatest := compare.Latest(order, func(id int64) bool { return hasSubjects[id] })
	var previous int64
	var hasPrevious bool
	if hasLatest {
		report.Meta.LatestExamID = &latest
		if previous, hasPrevious = compare.Previous(order, latest); hasPrevious {
			report.Meta.PreviousExamID = &previous
		}
	}

	wg := conc.NewWaitGroup()

	wg.Go(func() {
		defer tracker.Tick(StageCompare)
		report.AverageDeltas = compare.Deltas(order, compare.AverageMetric(overall))
		report.PassRateDeltas = compare.Deltas(order, compare.PassRateMetric(overall))
		report.Cohorts = compare.Cohorts(ds.Scores, compare.CohortsFromPupils(ds.Pupils), resolver)
		if !hasLatest {
			return
		}

		current := aggregate.SubjectsForExam(subjects, latest)
		var prior map[int64]models.AggregateStat
		if hasPrevious {
			prior = aggregate.SubjectsForExam(subjects, previous)
			m := compare.Movers(current, prior, latest, previous, a.signals.TopN)
			report.Movers = &m
		}
		report.SubjectRisk, report.SubjectMomentum = compare.SubjectSignals(current, prior, resolver, a.signals)

		byExam := aggregate.ByExam(pupils)
		var priorPupils []models.PupilPercentage
		if hasPrevious {
			priorPupils = byExam[previous]
		}
		report.PupilRisk, report.PupilMomentum = compare.PupilSignals(byExam[latest], priorPupils, resolver.PassPercent(), a.signals)
	})

	wg.Go(func() {
		defer tracker.Tick(StageDistribution)
		report.Bands = distribution.Bands(pupils, a.bands)
		report.Intelligence = distribution.Intelligence(order, report.Bands, pupils, a.distribution)
		report.Migration = distribution.Migration(order, pupils, a.bands)
	})

	wg.Go(func() {
		defer tracker.Tick(StageRanking)
		report.Rankings = a.rankings(ds, order, hasSubjects, resolver)
	})

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return report, nil
}

func (a *Analyzer) rankings(ds *models.Dataset, order []int64, has map[int64]bool, r classify.Resolver) []ExamRanking {
	var exams []int64
	for _, id := range order {
		if has[id] {
			exams = append(exams, id)
		}
	}

	out := make([]ExamRanking, len(exams))
	p := pool.New().WithMaxGoroutines(a.workers)
	for i, examID := range exams {
		p.Go(func() {
			out[i] = ExamRanking{
				ExamID: examID,
				Pupils: ranking.Rank(ranking.Totals(ds.Scores, examID, r, a.secondary)),
			}
		})
	}
	p.Wait()
	return out
}

// Fingerprint returns the hex BLAKE3 digest of the dataset's JSON encoding.
// Identical datasets yield identical fingerprints.
func Fingerprint(ds *models.Dataset) (string, error) {
	h := blake3.New()
	if err := json.NewEncoder(h).Encode(ds); err != nil {
		return "", fmt.Errorf("fingerprint dataset: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
