package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/panbanda/gradelens/internal/output"
	"github.com/panbanda/gradelens/internal/service/analysis"
	"github.com/panbanda/gradelens/pkg/analyzer/overview"
	"github.com/panbanda/gradelens/pkg/models"
	"github.com/panbanda/gradelens/pkg/source"
)

// Common input structures for tools

// DatasetInput is the base input for all tools.
type DatasetInput struct {
	Path         string         `json:"path,omitempty" jsonschema:"Path to a JSON or YAML dataset file. Ignored when dataset is given."`
	Dataset      map[string]any `json:"dataset,omitempty" jsonschema:"Inline dataset with exams, subjects, pupils and scores arrays."`
	ClassCode    string         `json:"class_code,omitempty" jsonschema:"Only include pupils of this class."`
	Track        string         `json:"track,omitempty" jsonschema:"Only include pupils of this track."`
	AcademicYear string         `json:"academic_year,omitempty" jsonschema:"Only include exams of this academic year, e.g. 2024-2025."`
	ExamIDs      []int64        `json:"exam_ids,omitempty" jsonschema:"Only include these exams."`
	Format       string         `json:"format,omitempty" jsonschema:"Output format: toon (default), json, or markdown."`
}

// MoversInput adds the number of movers per direction.
type MoversInput struct {
	DatasetInput
	Top int `json:"top,omitempty" jsonschema:"Subjects per direction. Default 5."`
}

// SignalsInput adds signal options.
type SignalsInput struct {
	DatasetInput
	Limit         int  `json:"limit,omitempty" jsonschema:"Maximum subjects per list. Default unlimited."`
	IncludePupils bool `json:"include_pupils,omitempty" jsonschema:"Also return pupil risk and momentum."`
}

// RankInput adds the exam to rank.
type RankInput struct {
	DatasetInput
	ExamID *int64 `json:"exam_id,omitempty" jsonschema:"Exam to rank. Defaults to the latest exam with scores."`
	Top    int    `json:"top,omitempty" jsonschema:"Only return the first N positions."`
}

// Helper functions

func (in DatasetInput) scope() source.Scope {
	return source.Scope{
		ClassCode:    in.ClassCode,
		Track:        in.Track,
		AcademicYear: in.AcademicYear,
		ExamIDs:      in.ExamIDs,
	}
}

// request converts the tool input into a dataset request. Inline datasets
// are validated with the same schema as dataset files.
func (in DatasetInput) request() (analysis.Request, error) {
	req := analysis.Request{Path: in.Path, Scope: in.scope()}
	if in.Dataset == nil {
		if in.Path == "" {
			return req, analysis.ErrNoDataset
		}
		return req, nil
	}
	raw, err := json.Marshal(in.Dataset)
	if err != nil {
		return req, fmt.Errorf("%w: %w", source.ErrInvalidDataset, err)
	}
	ds, err := source.Decode(raw, source.FormatJSON)
	if err != nil {
		return req, err
	}
	req.Dataset = ds
	return req, nil
}

func getFormat(input DatasetInput) output.Format {
	switch input.Format {
	case "json":
		return output.FormatJSON
	case "markdown", "md":
		return output.FormatMarkdown
	default:
		return output.FormatTOON
	}
}

func formatOutput(data any, format output.Format) (string, error) {
	switch format {
	case output.FormatJSON:
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", err
		}
		return string(out), nil
	case output.FormatMarkdown:
		out, err := output.MarshalTOON(data)
		if err != nil {
			return "", err
		}
		return "```\n" + out + "\n```", nil
	default:
		return output.MarshalTOON(data)
	}
}

func toolResult(data any, format output.Format) (*mcp.CallToolResult, any, error) {
	text, err := formatOutput(data, format)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

func (s *Server) load(ctx context.Context, input DatasetInput) (*models.Dataset, error) {
	req, err := input.request()
	if err != nil {
		return nil, err
	}
	return s.service.Load(ctx, req)
}

func (s *Server) report(ctx context.Context, input DatasetInput, opts ...overview.Option) (*overview.Report, error) {
	ds, err := s.load(ctx, input)
	if err != nil {
		return nil, err
	}
	return s.service.Report(ctx, ds, opts...)
}

// Tool handlers

func (s *Server) handleAggregate(ctx context.Context, req *mcp.CallToolRequest, input DatasetInput) (*mcp.CallToolResult, any, error) {
	ds, err := s.load(ctx, input)
	if err != nil {
		return toolError(err.Error())
	}
	res, err := s.service.Aggregate(ds)
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(res, getFormat(input))
}

func (s *Server) handleBands(ctx context.Context, req *mcp.CallToolRequest, input DatasetInput) (*mcp.CallToolResult, any, error) {
	rep, err := s.report(ctx, input)
	if err != nil {
		return toolError(err.Error())
	}
	out := struct {
		Bands        []models.BandDistribution `json:"bands"`
		Intelligence []models.ExamIntelligence `json:"intelligence"`
		Migration    []models.BandMigration    `json:"migration"`
	}{rep.Bands, rep.Intelligence, rep.Migration}
	return toolResult(out, getFormat(input))
}

func (s *Server) handleMovers(ctx context.Context, req *mcp.CallToolRequest, input MoversInput) (*mcp.CallToolResult, any, error) {
	var opts []overview.Option
	if input.Top > 0 {
		cfg := s.service.Config().Signals
		cfg.TopN = input.Top
		opts = append(opts, overview.WithSignals(cfg))
	}
	rep, err := s.report(ctx, input.DatasetInput, opts...)
	if err != nil {
		return toolError(err.Error())
	}
	if rep.Movers == nil {
		return toolError("subject movers need two exams with scores")
	}
	return toolResult(rep.Movers, getFormat(input.DatasetInput))
}

func (s *Server) handleSignals(ctx context.Context, req *mcp.CallToolRequest, input SignalsInput) (*mcp.CallToolResult, any, error) {
	var opts []overview.Option
	if input.Limit > 0 {
		cfg := s.service.Config().Signals
		cfg.Limit = input.Limit
		opts = append(opts, overview.WithSignals(cfg))
	}
	rep, err := s.report(ctx, input.DatasetInput, opts...)
	if err != nil {
		return toolError(err.Error())
	}
	out := struct {
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
	if input.IncludePupils {
		out.PupilRisk, out.PupilMomentum = rep.PupilRisk, rep.PupilMomentum
	}
	return toolResult(out, getFormat(input.DatasetInput))
}

func (s *Server) handleCohorts(ctx context.Context, req *mcp.CallToolRequest, input DatasetInput) (*mcp.CallToolResult, any, error) {
	ds, err := s.load(ctx, input)
	if err != nil {
		return toolError(err.Error())
	}
	res, err := s.service.Cohorts(ds)
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(res, getFormat(input))
}

func (s *Server) handleRank(ctx context.Context, req *mcp.CallToolRequest, input RankInput) (*mcp.CallToolResult, any, error) {
	ds, err := s.load(ctx, input.DatasetInput)
	if err != nil {
		return toolError(err.Error())
	}
	res, err := s.service.Rank(ds, input.ExamID)
	if err != nil {
		return toolError(err.Error())
	}
	if input.Top > 0 && len(res.Pupils) > input.Top {
		res.Pupils = res.Pupils[:input.Top]
	}
	return toolResult(res, getFormat(input.DatasetInput))
}

func (s *Server) handleReport(ctx context.Context, req *mcp.CallToolRequest, input DatasetInput) (*mcp.CallToolResult, any, error) {
	rep, err := s.report(ctx, input)
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(rep, getFormat(input))
}
