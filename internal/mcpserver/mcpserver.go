package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/panbanda/gradelens/internal/logger"
	"github.com/panbanda/gradelens/internal/service/analysis"
)

// Server wraps the MCP server and registers all gradelens tools.
type Server struct {
	server  *mcp.Server
	service *analysis.Service
	logger  *logger.Logger
}

// NewServer creates a new MCP server with all gradelens tools registered.
func NewServer(version string, svc *analysis.Service, log *logger.Logger) *Server {
	if version == "" {
		version = "dev"
	}
	if svc == nil {
		svc = analysis.New()
	}
	if log == nil {
		log = logger.Nop()
	}
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "gradelens",
			Version: version,
		},
		nil,
	)

	s := &Server{server: server, service: svc, logger: log}
	s.registerTools()
	s.registerPrompts()
	return s
}

// Run starts the MCP server over stdio transport.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server starting", "transport", "stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Tool names exposed by the server.
const (
	toolAggregate = "aggregate_scores"
	toolBands     = "band_distribution"
	toolMovers    = "subject_movers"
	toolSignals   = "subject_signals"
	toolCohorts   = "cohort_comparison"
	toolRank      = "rank_pupils"
	toolReport    = "class_report"
)

// toolSummary is the one-line catalogue entry for a registered tool.
type toolSummary struct {
	Name    string `json:"name"`
	Summary string `json:"summary"`
}

// catalog lists every registered tool in registration order.
var catalog = []toolSummary{
	{toolAggregate, "Per subject/exam statistics and pupil percentages"},
	{toolBands, "Band shares, exam labels and band migration"},
	{toolMovers, "Largest average changes between the last two exams"},
	{toolSignals, "Risk and momentum for subjects and pupils"},
	{toolCohorts, "Cohort 1 vs cohort 2 per subject and exam"},
	{toolRank, "Pupil ranking for one exam"},
	{toolReport, "Everything at once"},
}

// registerTools adds all gradelens tools to the server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        toolAggregate,
		Description: describeAggregate(),
	}, s.handleAggregate)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        toolBands,
		Description: describeBands(),
	}, s.handleBands)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        toolMovers,
		Description: describeMovers(),
	}, s.handleMovers)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        toolSignals,
		Description: describeSignals(),
	}, s.handleSignals)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        toolCohorts,
		Description: describeCohorts(),
	}, s.handleCohorts)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        toolRank,
		Description: describeRank(),
	}, s.handleRank)

	// Everything at once
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        toolReport,
		Description: describeReport(),
	}, s.handleReport)
}
