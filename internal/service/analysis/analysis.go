// Package analysis loads datasets and runs the engine with the effective
// configuration. The CLI, MCP server and HTTP API share it.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panbanda/gradelens/internal/logger"
	"github.com/panbanda/gradelens/pkg/analyzer/aggregate"
	"github.com/panbanda/gradelens/pkg/analyzer/compare"
	"github.com/panbanda/gradelens/pkg/analyzer/overview"
	"github.com/panbanda/gradelens/pkg/analyzer/ranking"
	"github.com/panbanda/gradelens/pkg/config"
	"github.com/panbanda/gradelens/pkg/models"
	"github.com/panbanda/gradelens/pkg/source"
)

// ErrNoDataset is returned when a request names no dataset and the
// configuration has no default source.
var ErrNoDataset = errors.New("no dataset: pass a file path, a DSN or an inline dataset")

// ErrUnknownExam is returned when a ranking names an exam without scores.
var ErrUnknownExam = errors.New("exam has no scores")

// Request describes where a dataset comes from. Dataset wins over Path,
// Path over DSN. Empty requests fall back to the configured source.
type Request struct {
	Dataset *models.Dataset
	Path    string
	DSN     string
	Scope   source.Scope
}

// Opener builds the Source for a request. The returned close function is
// never nil.
type Opener func(ctx context.Context, req Request) (source.Source, func(), error)

// Service orchestrates dataset loading and analysis.
type Service struct {
	config *config.Config
	logger *logger.Logger
	open   Opener
}

// Option configures a Service.
type Option func(*Service)

// WithConfig sets the configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithOpener replaces source construction (for testing).
func WithOpener(open Opener) Option {
	return func(s *Service) {
		s.open = open
	}
}

// New creates a new analysis service.
func New(opts ...Option) *Service {
	s := &Service{
		config: config.LoadOrDefault(),
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.open == nil {
		s.open = s.defaultOpener
	}
	return s
}

// Config returns the effective configuration.
func (s *Service) Config() *config.Config {
	return s.config
}

func (s *Service) defaultOpener(ctx context.Context, req Request) (source.Source, func(), error) {
	path, dsn := req.Path, req.DSN
	if path == "" && dsn == "" {
		path, dsn = s.config.Source.Path, s.config.Source.DSN
	}
	switch {
	case path != "":
		return source.NewFile(path, source.WithFileLogger(s.logger)), func() {}, nil
	case dsn != "":
		pg, err := source.NewPostgres(ctx, source.PostgresConfig{
			DSN:            dsn,
			MaxConns:       s.config.Source.MaxConns,
			ConnectTimeout: s.timeout(),
		}, s.logger)
		if err != nil {
			return nil, func() {}, err
		}
		return pg, pg.Close, nil
	default:
		return nil, func() {}, ErrNoDataset
	}
}

func (s *Service) timeout() time.Duration {
	return time.Duration(s.config.Source.TimeoutSeconds) * time.Second
}

// Load resolves a request to a scoped dataset.
func (s *Service) Load(ctx context.Context, req Request) (*models.Dataset, error) {
	if req.Dataset != nil {
		if req.Scope.IsZero() {
			return req.Dataset, nil
		}
		return req.Scope.Apply(req.Dataset), nil
	}

	if t := s.timeout(); t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	src, closeFn, err := s.open(ctx, req)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	ds, err := src.Load(ctx, req.Scope)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	return ds, nil
}

// Analyzer returns an overview analyzer configured from the service
// configuration. Extra options are applied last.
func (s *Service) Analyzer(extra ...overview.Option) *overview.Analyzer {
	c := s.config
	opts := []overview.Option{
		overview.WithTiers(c.PercentTiers(), c.Overrides()),
		overview.WithDefaultMax(c.Grading.DefaultMaxPoints),
		overview.WithBands(c.Bands),
		overview.WithSignals(c.Signals),
		overview.WithDistribution(c.Distribution),
		overview.WithSecondary(c.Secondary()),
	}
	return overview.New(append(opts, extra...)...)
}

// Report runs every analysis over ds.
func (s *Service) Report(ctx context.Context, ds *models.Dataset, extra ...overview.Option) (*overview.Report, error) {
	start := time.Now()
	rep, err := s.Analyzer(extra...).Analyze(ctx, ds)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("report computed",
		"records", rep.Meta.Records,
		"duplicates", rep.Meta.Duplicates,
		"fingerprint", rep.Meta.Fingerprint,
		"elapsed", time.Since(start),
	)
	return rep, nil
}

// Aggregates holds the descriptive statistics of a dataset.
type Aggregates struct {
	Subjects []models.AggregateStat   `json:"subjects"`
	Overall  []models.AggregateStat   `json:"overall"`
	Pupils   []models.PupilPercentage `json:"pupils"`
}

// Aggregate computes subject, exam and pupil aggregates only.
func (s *Service) Aggregate(ds *models.Dataset) (*Aggregates, error) {
	agg := aggregate.New(
		aggregate.WithResolver(s.Analyzer().ResolverFor(ds)),
		aggregate.WithDefaultMax(s.config.Grading.DefaultMaxPoints),
	)
	subjects, err := agg.BySubjectExam(ds.Scores)
	if err != nil {
		return nil, err
	}
	overall, err := agg.Overall(ds.Scores)
	if err != nil {
		return nil, err
	}
	pupils, err := agg.PupilPercentages(ds.Scores)
	if err != nil {
		return nil, err
	}
	return &Aggregates{Subjects: subjects, Overall: overall, Pupils: pupils}, nil
}

// Cohorts compares the two cohorts per subject and exam.
func (s *Service) Cohorts(ds *models.Dataset) ([]models.GroupComparison, error) {
	if err := aggregate.ValidateScores(ds.Scores); err != nil {
		return nil, err
	}
	return compare.Cohorts(ds.Scores, compare.CohortsFromPupils(ds.Pupils), s.Analyzer().ResolverFor(ds)), nil
}

// Rank ranks the pupils of one exam. A nil examID ranks the latest exam
// with scores.
func (s *Service) Rank(ds *models.Dataset, examID *int64) (*overview.ExamRanking, error) {
	if err := aggregate.ValidateScores(ds.Scores); err != nil {
		return nil, err
	}
	has := make(map[int64]bool)
	for _, r := range ds.Scores {
		if r.HasScore() {
			has[r.ExamID] = true
		}
	}

	var id int64
	if examID != nil {
		id = *examID
		if !has[id] {
			return nil, fmt.Errorf("exam %d: %w", id, ErrUnknownExam)
		}
	} else {
		latest, ok := compare.Latest(ds.ExamOrder(), func(e int64) bool { return has[e] })
		if !ok {
			return nil, ErrUnknownExam
		}
		id = latest
	}

	entries := ranking.Totals(ds.Scores, id, s.Analyzer().ResolverFor(ds), s.config.Secondary())
	return &overview.ExamRanking{ExamID: id, Pupils: ranking.Rank(entries)}, nil
}
