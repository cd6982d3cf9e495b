package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/panbanda/gradelens/internal/logger"
	"github.com/panbanda/gradelens/internal/output"
	"github.com/panbanda/gradelens/internal/progress"
	"github.com/panbanda/gradelens/internal/service/analysis"
	"github.com/panbanda/gradelens/pkg/analyzer/overview"
	"github.com/panbanda/gradelens/pkg/config"
	"github.com/panbanda/gradelens/pkg/models"
	"github.com/panbanda/gradelens/pkg/source"
	"github.com/urfave/cli/v2"
)

// datasetFlags are shared by every command that reads a dataset.
func datasetFlags(extra ...cli.Flag) []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "dataset",
			Aliases: []string{"d"},
			Usage:   "Dataset file (JSON or YAML); also accepted as the first argument",
			EnvVars: []string{"GRADELENS_DATASET"},
		},
		&cli.StringFlag{
			Name:    "dsn",
			Usage:   "PostgreSQL connection string",
			EnvVars: []string{"GRADELENS_DSN"},
		},
		&cli.StringFlag{
			Name:  "class",
			Usage: "Only pupils of this class code",
		},
		&cli.StringFlag{
			Name:  "track",
			Usage: "Only pupils of this track",
		},
		&cli.StringFlag{
			Name:  "year",
			Usage: "Only exams of this academic year",
		},
		&cli.Int64SliceFlag{
			Name:  "exam",
			Usage: "Only these exam ids (repeatable)",
		},
	}
	return append(flags, extra...)
}

// loadConfig loads the --config file or searches the default locations.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var opts []config.LoadOption
	if path := c.String("config"); path != "" {
		opts = append(opts, config.WithPath(path))
	}
	res, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

func newLogger(c *cli.Context, cfg *config.Config) (*logger.Logger, error) {
	mode, level := cfg.Log.Mode, cfg.Log.Level
	if c.Bool("verbose") {
		mode, level = "development", "debug"
	}
	return logger.New(mode, level)
}

// session bundles what an analysis command needs.
type session struct {
	cfg *config.Config
	log *logger.Logger
	svc *analysis.Service
}

func newSession(c *cli.Context) (*session, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	log, err := newLogger(c, cfg)
	if err != nil {
		return nil, err
	}
	svc := analysis.New(analysis.WithConfig(cfg), analysis.WithLogger(log))
	return &session{cfg: cfg, log: log, svc: svc}, nil
}

func (s *session) close() {
	s.log.Sync()
}

func scopeFromFlags(c *cli.Context) source.Scope {
	return source.Scope{
		ClassCode:    c.String("class"),
		Track:        c.String("track"),
		AcademicYear: c.String("year"),
		ExamIDs:      c.Int64Slice("exam"),
	}
}

func requestFromFlags(c *cli.Context) analysis.Request {
	path := c.String("dataset")
	if c.Args().Len() > 0 {
		path = c.Args().First()
	}
	return analysis.Request{
		Path:  path,
		DSN:   c.String("dsn"),
		Scope: scopeFromFlags(c),
	}
}

// load reads the dataset behind a spinner.
func (s *session) load(c *cli.Context) (*models.Dataset, error) {
	spinner := progress.NewSpinner("Loading dataset...")
	ds, err := s.svc.Load(c.Context, requestFromFlags(c))
	if err != nil {
		spinner.FinishError(err)
		return nil, err
	}
	spinner.FinishSuccess()
	s.log.Debug("dataset loaded", "exams", len(ds.Exams), "subjects", len(ds.Subjects), "records", len(ds.Scores))
	return ds, nil
}

// report runs the full analysis with a stage progress bar.
func (s *session) report(ctx context.Context, ds *models.Dataset, opts ...overview.Option) (*overview.Report, error) {
	tracker := progress.NewTracker("Analyzing...", 4)
	rep, err := s.svc.Report(ctx, ds, append(opts, overview.WithProgress(tracker.Callback()))...)
	if err != nil {
		tracker.FinishError(err)
		return nil, fmt.Errorf("analysis failed: %w", err)
	}
	tracker.FinishSuccess()
	s.log.Debug("report computed", "fingerprint", rep.Meta.Fingerprint, "records", rep.Meta.Records)
	return rep, nil
}

// formatter writes to --output or the app writer. The format flag wins
// over the configured default.
func (s *session) formatter(c *cli.Context) (*output.Formatter, error) {
	format := c.String("format")
	if format == "" {
		format = s.cfg.Output.Format
	}
	colored := s.cfg.Output.Color && !color.NoColor
	if path := c.String("output"); path != "" {
		return output.NewFormatter(output.ParseFormat(format), path, colored)
	}
	return output.NewWriterFormatter(output.ParseFormat(format), c.App.Writer, colored), nil
}

// emit writes one result in the selected format.
func emit(c *cli.Context, s *session, view output.Renderable) error {
	f, err := s.formatter(c)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Output(view)
}
