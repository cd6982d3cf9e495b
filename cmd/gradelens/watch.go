package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/panbanda/gradelens/internal/output"
	"github.com/panbanda/gradelens/pkg/watch"
	"github.com/urfave/cli/v2"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Re-run the class report whenever the dataset file changes",
		ArgsUsage: "[dataset]",
		Flags: datasetFlags(
			&cli.DurationFlag{
				Name:  "debounce",
				Usage: "Quiet period before a change triggers a report",
				Value: watch.DefaultDebounce,
			},
		),
		Action: runWatchCmd,
	}
}

func runWatchCmd(c *cli.Context) error {
	req := requestFromFlags(c)
	if req.Path == "" {
		return errors.New("watch needs a dataset file")
	}

	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	run := func(ctx context.Context, _ string) {
		if err := watchReport(ctx, c, s); err != nil {
			color.New(color.FgRed).Fprintf(c.App.ErrWriter, "Error: %v\n", err)
		}
	}

	w, err := watch.New([]string{req.Path}, run,
		watch.WithDebounce(c.Duration("debounce")),
		watch.WithOutput(c.App.Writer),
	)
	if err != nil {
		return err
	}
	defer w.Stop()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run(ctx, req.Path)
	if err := w.Start(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// watchReport reloads the dataset and prints the full report.
func watchReport(ctx context.Context, c *cli.Context, s *session) error {
	ds, err := s.svc.Load(ctx, requestFromFlags(c))
	if err != nil {
		return err
	}
	rep, err := s.report(ctx, ds)
	if err != nil {
		return err
	}
	f, err := s.formatter(c)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Output(output.ReportView(rep, output.NamesFor(ds), s.svc.Analyzer().ResolverFor(ds)))
}
