package main

import (
	"os/signal"
	"syscall"

	"github.com/panbanda/gradelens/internal/httpapi"
	"github.com/urfave/cli/v2"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the analyses over HTTP",
		Description: `Starts an HTTP server. POST a dataset (JSON, or YAML with a yaml content
type) or GET to analyze the configured source. Query parameters class,
track, year and exam narrow the scope.

Endpoints:
  GET  /healthcheck
  GET|POST /v1/report
  GET|POST /v1/aggregate
  GET|POST /v1/cohorts
  GET|POST /v1/rank?exam_id=N`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "Listen address (default from config)",
				EnvVars: []string{"GRADELENS_ADDR"},
			},
		},
		Action: runServeCmd,
	}
}

func runServeCmd(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	var opts []httpapi.Option
	if addr := c.String("addr"); addr != "" {
		opts = append(opts, httpapi.WithAddr(addr))
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return httpapi.New(s.svc, s.log, opts...).Run(ctx)
}
