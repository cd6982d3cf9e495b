package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/panbanda/gradelens/internal/output"
	"github.com/panbanda/gradelens/internal/report"
	"github.com/panbanda/gradelens/pkg/analyzer/overview"
	"github.com/panbanda/gradelens/pkg/models"
	"github.com/urfave/cli/v2"
)

func aggregateCmd() *cli.Command {
	return &cli.Command{
		Name:      "aggregate",
		Aliases:   []string{"agg"},
		Usage:     "Summary statistics per subject and exam",
		ArgsUsage: "[dataset]",
		Flags:     datasetFlags(),
		Action:    runAggregateCmd,
	}
}

func runAggregateCmd(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	ds, err := s.load(c)
	if err != nil {
		return err
	}
	agg, err := s.svc.Aggregate(ds)
	if err != nil {
		return err
	}

	names := output.NamesFor(ds)
	resolver := s.svc.Analyzer().ResolverFor(ds)
	return emit(c, s, &output.Report{
		Title: "Score Aggregates",
		Sections: []output.Renderable{
			output.OverallStats(agg.Overall, names),
			output.SubjectStats(agg.Subjects, names, resolver),
		},
		Data: agg,
	})
}

func bandsCmd() *cli.Command {
	return &cli.Command{
		Name:      "bands",
		Usage:     "Performance band distribution, exam labels and band migration",
		ArgsUsage: "[dataset]",
		Flags:     datasetFlags(),
		Action:    runBandsCmd,
	}
}

func runBandsCmd(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	ds, err := s.load(c)
	if err != nil {
		return err
	}
	rep, err := s.report(c.Context, ds)
	if err != nil {
		return err
	}

	names := output.NamesFor(ds)
	return emit(c, s, &output.Report{
		Title: "Band Distribution",
		Sections: []output.Renderable{
			output.BandTable(rep.Bands, names),
			output.IntelligenceTable(rep.Intelligence, names),
			output.MigrationTable(rep.Migration, names),
		},
		Data: struct {
			Bands        []models.BandDistribution `json:"bands"`
			Intelligence []models.ExamIntelligence `json:"intelligence"`
			Migration    []models.BandMigration    `json:"migration"`
		}{rep.Bands, rep.Intelligence, rep.Migration},
	})
}

func moversCmd() *cli.Command {
	return &cli.Command{
		Name:      "movers",
		Usage:     "Subjects whose average moved most between the last two exams",
		ArgsUsage: "[dataset]",
		Flags: datasetFlags(
			&cli.IntFlag{
				Name:  "top",
				Usage: "Subjects per direction (default from config)",
			},
		),
		Action: runMoversCmd,
	}
}

func runMoversCmd(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	ds, err := s.load(c)
	if err != nil {
		return err
	}

	var opts []overview.Option
	if top := c.Int("top"); top > 0 {
		sig := s.cfg.Signals
		sig.TopN = top
		opts = append(opts, overview.WithSignals(sig))
	}
	rep, err := s.report(c.Context, ds, opts...)
	if err != nil {
		return err
	}
	if rep.Movers == nil {
		color.Yellow("Subject movers need two exams with scores")
		return nil
	}
	return emit(c, s, output.MoversTable(rep.Movers, output.NamesFor(ds)))
}

func signalsCmd() *cli.Command {
	return &cli.Command{
		Name:      "signals",
		Aliases:   []string{"risk"},
		Usage:     "Risk and momentum signals for the latest exam",
		ArgsUsage: "[dataset]",
		Flags: datasetFlags(
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum signals per list (0 = no limit)",
			},
			&cli.BoolFlag{
				Name:  "pupils",
				Usage: "Include pupil signals",
			},
		),
		Action: runSignalsCmd,
	}
}

func runSignalsCmd(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	ds, err := s.load(c)
	if err != nil {
		return err
	}

	var opts []overview.Option
	if limit := c.Int("limit"); limit > 0 {
		sig := s.cfg.Signals
		sig.Limit = limit
		opts = append(opts, overview.WithSignals(sig))
	}
	rep, err := s.report(c.Context, ds, opts...)
	if err != nil {
		return err
	}

	names := output.NamesFor(ds)
	title := "Signals"
	if rep.Meta.LatestExamID != nil {
		title = "Signals: " + names.Exam(*rep.Meta.LatestExamID)
	}
	data := struct {
		LatestExamID  *int64                 `json:"latest_exam_id"`
		Risk          []models.SubjectSignal `json:"risk"`
		Momentum      []models.SubjectSignal `json:"momentum"`
		PupilRisk     []models.PupilSignal   `json:"pupil_risk,omitempty"`
		PupilMomentum []models.PupilSignal   `json:"pupil_momentum,omitempty"`
	}{
		LatestExamID: rep.Meta.LatestExamID,
		Risk:         rep.SubjectRisk,
		Momentum:     rep.SubjectMomentum,
	}
	sections := []output.Renderable{
		output.SubjectSignalTable("Subject Risk", rep.SubjectRisk, names),
		output.SubjectSignalTable("Subject Momentum", rep.SubjectMomentum, names),
	}
	if c.Bool("pupils") {
		data.PupilRisk, data.PupilMomentum = rep.PupilRisk, rep.PupilMomentum
		sections = append(sections,
			output.PupilSignalTable("Pupil Risk", rep.PupilRisk, names),
			output.PupilSignalTable("Pupil Momentum", rep.PupilMomentum, names),
		)
	}
	return emit(c, s, &output.Report{Title: title, Sections: sections, Data: data})
}

func cohortsCmd() *cli.Command {
	return &cli.Command{
		Name:      "cohorts",
		Usage:     "Compare study cohorts 1 and 2 per subject and exam",
		ArgsUsage: "[dataset]",
		Flags:     datasetFlags(),
		Action:    runCohortsCmd,
	}
}

func runCohortsCmd(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	ds, err := s.load(c)
	if err != nil {
		return err
	}
	cmp, err := s.svc.Cohorts(ds)
	if err != nil {
		return err
	}
	if len(cmp) == 0 {
		color.Yellow("No pupils are assigned to cohort 1 or 2")
		return nil
	}
	return emit(c, s, output.CohortTable(cmp, output.NamesFor(ds)))
}

func rankCmd() *cli.Command {
	return &cli.Command{
		Name:      "rank",
		Usage:     "Rank pupils of one exam by total score",
		ArgsUsage: "[dataset]",
		Flags: datasetFlags(
			&cli.Int64Flag{
				Name:  "exam-id",
				Usage: "Exam to rank (default: latest exam with scores)",
			},
			&cli.IntFlag{
				Name:  "top",
				Usage: "Show only the first N pupils",
			},
		),
		Action: runRankCmd,
	}
}

func runRankCmd(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	ds, err := s.load(c)
	if err != nil {
		return err
	}

	var examID *int64
	if c.IsSet("exam-id") {
		examID = models.ID(c.Int64("exam-id"))
	}
	ranked, err := s.svc.Rank(ds, examID)
	if err != nil {
		return fmt.Errorf("rank: %w", err)
	}
	if top := c.Int("top"); top > 0 && len(ranked.Pupils) > top {
		ranked.Pupils = ranked.Pupils[:top]
	}
	return emit(c, s, output.RankingTable(ranked.ExamID, ranked.Pupils, output.NamesFor(ds)))
}

func reportCmd() *cli.Command {
	return &cli.Command{
		Name:      "report",
		Aliases:   []string{"all"},
		Usage:     "Run every analysis and print a full class report",
		ArgsUsage: "[dataset]",
		Flags: datasetFlags(
			&cli.StringFlag{
				Name:  "html",
				Usage: "Write a standalone HTML report to this file instead of printing",
			},
			&cli.StringFlag{
				Name:  "insights",
				Usage: "Insight JSON (summary, findings, recommendations) to include in the HTML report",
			},
			&cli.StringFlag{
				Name:  "title",
				Usage: "HTML report title",
			},
		),
		Action: runReportCmd,
	}
}

func runReportCmd(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	ds, err := s.load(c)
	if err != nil {
		return err
	}
	rep, err := s.report(c.Context, ds)
	if err != nil {
		return err
	}

	if path := c.String("html"); path != "" {
		return writeHTMLReport(c, rep, ds, path)
	}

	resolver := s.svc.Analyzer().ResolverFor(ds)
	f, err := s.formatter(c)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Output(output.ReportView(rep, output.NamesFor(ds), resolver)); err != nil {
		return err
	}
	if rep.Meta.Duplicates > 0 && f.Format() == output.FormatText {
		f.Warning("%d duplicate score records were counted", rep.Meta.Duplicates)
	}
	return nil
}

func writeHTMLReport(c *cli.Context, rep *overview.Report, ds *models.Dataset, path string) error {
	var insight *report.Insight
	if p := c.String("insights"); p != "" {
		var err error
		if insight, err = report.LoadInsight(p); err != nil {
			return err
		}
	}

	r, err := report.NewRenderer()
	if err != nil {
		return err
	}
	src := c.String("dataset")
	if c.Args().Len() > 0 {
		src = c.Args().First()
	}
	meta := report.Metadata{
		Title:   c.String("title"),
		Source:  src,
		Version: c.App.Version,
	}
	if err := r.RenderToFile(report.BuildData(rep, output.NamesFor(ds), meta, insight), path); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(c.App.Writer, "Report written to %s\n", path)
	return nil
}
