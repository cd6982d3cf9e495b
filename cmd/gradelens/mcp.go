package main

import (
	"fmt"

	"github.com/panbanda/gradelens/internal/mcpserver"
	"github.com/panbanda/gradelens/internal/service/analysis"
	"github.com/urfave/cli/v2"
)

func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Start MCP (Model Context Protocol) server for LLM tool integration",
		Description: `Starts an MCP server over stdio transport that exposes gradelens analyses
as tools that LLMs can invoke. Tools accept a dataset path or an inline
dataset, plus optional class, track, academic year and exam filters.

To use with Claude Desktop, add to your config:
  {
    "mcpServers": {
      "gradelens": {
        "command": "gradelens",
        "args": ["mcp"]
      }
    }
  }

Available tools:
  - aggregate_scores     Per subject/exam statistics and pupil percentages
  - band_distribution    Band shares, exam labels and band migration
  - subject_movers       Largest average changes between the last two exams
  - subject_signals      Risk and momentum for subjects and pupils
  - cohort_comparison    Cohort 1 vs cohort 2 per subject and exam
  - rank_pupils          Pupil ranking for one exam
  - class_report         Everything at once`,
		Action: runMCPCmd,
		Subcommands: []*cli.Command{
			{
				Name:   "manifest",
				Usage:  "Print the MCP registry manifest",
				Action: runMCPManifest,
			},
		},
	}
}

func runMCPCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log, err := newLogger(c, cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	svc := analysis.New(analysis.WithConfig(cfg), analysis.WithLogger(log))
	return mcpserver.NewServer(version, svc, log).Run(c.Context)
}

func runMCPManifest(c *cli.Context) error {
	data, err := mcpserver.GenerateManifest(version)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(data))
	return nil
}
