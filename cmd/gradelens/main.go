package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

func newApp() *cli.App {
	return &cli.App{
		Name:    "gradelens",
		Usage:   "Exam score analytics for classes and cohorts",
		Version: version,
		Description: `gradelens aggregates exam scores per subject and exam, compares exams
over time, classifies pupils into performance bands, flags at-risk and
improving subjects and pupils, compares study cohorts, and ranks pupils.

Datasets are read from JSON or YAML files or from PostgreSQL.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"GRADELENS_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, json, markdown, toon (default from config)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write output to file",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			aggregateCmd(),
			bandsCmd(),
			moversCmd(),
			signalsCmd(),
			cohortsCmd(),
			rankCmd(),
			reportCmd(),
			watchCmd(),
			initCmd(),
			configCmd(),
			mcpCmd(),
			serveCmd(),
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}
