package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/panbanda/gradelens/internal/output"
	"github.com/panbanda/gradelens/internal/service/analysis"
	"github.com/panbanda/gradelens/pkg/config"
	"github.com/panbanda/gradelens/pkg/models"
	"github.com/panbanda/gradelens/pkg/source"
)

const testDataset = `{
  "exams": [
    {"id": 1, "academic_year": "2024-2025", "term": 1, "name": "Autumn"},
    {"id": 2, "academic_year": "2024-2025", "term": 2, "name": "Spring"}
  ],
  "subjects": [
    {"id": 1, "name": "Mathematics", "max_points": 40},
    {"id": 2, "name": "Language", "max_points": 40}
  ],
  "pupils": [
    {"id": 1, "class_code": "7A", "group": 1},
    {"id": 2, "class_code": "7A", "group": 2},
    {"id": 3, "class_code": "7B"}
  ],
  "scores": [
    {"pupil_id": 1, "subject_id": 1, "exam_id": 1, "score": 30},
    {"pupil_id": 2, "subject_id": 1, "exam_id": 1, "score": 10},
    {"pupil_id": 3, "subject_id": 1, "exam_id": 1, "score": 20},
    {"pupil_id": 1, "subject_id": 2, "exam_id": 1, "score": 20},
    {"pupil_id": 2, "subject_id": 2, "exam_id": 1, "score": 12},
    {"pupil_id": 3, "subject_id": 2, "exam_id": 1, "score": 31},
    {"pupil_id": 1, "subject_id": 1, "exam_id": 2, "score": 34},
    {"pupil_id": 2, "subject_id": 1, "exam_id": 2, "score": 8},
    {"pupil_id": 3, "subject_id": 1, "exam_id": 2, "score": 22},
    {"pupil_id": 1, "subject_id": 2, "exam_id": 2, "score": 14},
    {"pupil_id": 2, "subject_id": 2, "exam_id": 2, "score": 10},
    {"pupil_id": 3, "subject_id": 2, "exam_id": 2, "score": 25}
  ]
}`

func newTestServer() *Server {
	return NewServer("1.0.0-test", analysis.New(analysis.WithConfig(config.DefaultConfig())), nil)
}

func inlineInput(t *testing.T) DatasetInput {
	t.Helper()
	var doc map[string]any
	if err := json.Unmarshal([]byte(testDataset), &doc); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	return DatasetInput{Dataset: doc, Format: "json"}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("nil result")
	}
	if len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	text, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content is not TextContent: %T", result.Content[0])
	}
	return text.Text
}

func decodeResult(t *testing.T, result *mcp.CallToolResult, v any) {
	t.Helper()
	if result.IsError {
		t.Fatalf("tool failed: %s", resultText(t, result))
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), v); err != nil {
		t.Fatalf("decode result: %v", err)
	}
}

func TestServerCreation(t *testing.T) {
	server := NewServer("", nil, nil)
	if server == nil || server.server == nil {
		t.Fatal("NewServer() returned an incomplete server")
	}
}

func TestToolDescriptions(t *testing.T) {
	descriptions := map[string]func() string{
		"aggregate": describeAggregate,
		"bands":     describeBands,
		"movers":    describeMovers,
		"signals":   describeSignals,
		"cohorts":   describeCohorts,
		"rank":      describeRank,
		"report":    describeReport,
	}

	for name, fn := range descriptions {
		t.Run(name, func(t *testing.T) {
			desc := fn()
			for _, section := range []string{"USE WHEN:", "INTERPRETING RESULTS:", "METRICS RETURNED:"} {
				if !strings.Contains(desc, section) {
					t.Errorf("%s description missing %s section", name, section)
				}
			}
		})
	}
}

func TestGetFormat(t *testing.T) {
	tests := []struct {
		format   string
		expected output.Format
	}{
		{"", output.FormatTOON},
		{"json", output.FormatJSON},
		{"markdown", output.FormatMarkdown},
		{"md", output.FormatMarkdown},
		{"toon", output.FormatTOON},
		{"xml", output.FormatTOON},
	}

	for _, tt := range tests {
		if got := getFormat(DatasetInput{Format: tt.format}); got != tt.expected {
			t.Errorf("getFormat(%q) = %v, want %v", tt.format, got, tt.expected)
		}
	}
}

func TestFormatOutput(t *testing.T) {
	data := map[string]any{"pass_rate": 62.5}

	out, err := formatOutput(data, output.FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"pass_rate": 62.5`) {
		t.Errorf("json output = %q", out)
	}

	out, err = formatOutput(data, output.FormatMarkdown)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "```\n") || !strings.Contains(out, "pass_rate") {
		t.Errorf("markdown output = %q", out)
	}

	out, err = formatOutput(data, output.FormatTOON)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "pass_rate") {
		t.Errorf("toon output = %q", out)
	}
}

func TestToolError(t *testing.T) {
	result, _, err := toolError("no dataset")
	if err != nil {
		t.Fatalf("toolError returned unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("toolError result.IsError should be true")
	}
	if got := resultText(t, result); got != "Error: no dataset" {
		t.Errorf("toolError text = %q", got)
	}
}

func TestRequest(t *testing.T) {
	if _, err := (DatasetInput{}).request(); !errors.Is(err, analysis.ErrNoDataset) {
		t.Errorf("empty input error = %v, want ErrNoDataset", err)
	}

	req, err := DatasetInput{Path: "scores.yaml", ClassCode: "7A", ExamIDs: []int64{2}}.request()
	if err != nil {
		t.Fatal(err)
	}
	if req.Path != "scores.yaml" || req.Scope.ClassCode != "7A" || len(req.Scope.ExamIDs) != 1 {
		t.Errorf("request = %+v", req)
	}

	bad := DatasetInput{Dataset: map[string]any{"scores": "none"}}
	if _, err := bad.request(); !errors.Is(err, source.ErrInvalidDataset) {
		t.Errorf("invalid inline dataset error = %v, want ErrInvalidDataset", err)
	}
}

func TestHandleAggregate(t *testing.T) {
	s := newTestServer()
	result, _, err := s.handleAggregate(context.Background(), nil, inlineInput(t))
	if err != nil {
		t.Fatal(err)
	}

	var got analysis.Aggregates
	decodeResult(t, result, &got)
	if len(got.Subjects) != 4 || len(got.Overall) != 2 || len(got.Pupils) != 6 {
		t.Errorf("aggregates = %d subjects, %d overall, %d pupils", len(got.Subjects), len(got.Overall), len(got.Pupils))
	}
}

func TestHandleAggregateFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.json")
	if err := os.WriteFile(path, []byte(testDataset), 0o644); err != nil {
		t.Fatal(err)
	}

	s := newTestServer()
	result, _, err := s.handleAggregate(context.Background(), nil, DatasetInput{Path: path, ClassCode: "7B", Format: "json"})
	if err != nil {
		t.Fatal(err)
	}
	var got analysis.Aggregates
	decodeResult(t, result, &got)
	for _, p := range got.Pupils {
		if p.PupilID != 3 {
			t.Errorf("scope leaked pupil %d", p.PupilID)
		}
	}
}

func TestHandleBands(t *testing.T) {
	s := newTestServer()
	result, _, err := s.handleBands(context.Background(), nil, inlineInput(t))
	if err != nil {
		t.Fatal(err)
	}

	var got struct {
		Bands     []models.BandDistribution `json:"bands"`
		Migration []models.BandMigration    `json:"migration"`
	}
	decodeResult(t, result, &got)
	if len(got.Bands) != 2 {
		t.Errorf("bands = %d exams, want 2", len(got.Bands))
	}
	if len(got.Migration) != 1 || got.Migration[0].Common != 3 {
		t.Errorf("migration = %+v", got.Migration)
	}
}

func TestHandleMovers(t *testing.T) {
	s := newTestServer()
	result, _, err := s.handleMovers(context.Background(), nil, MoversInput{DatasetInput: inlineInput(t), Top: 1})
	if err != nil {
		t.Fatal(err)
	}

	var got models.Movers
	decodeResult(t, result, &got)
	if got.ExamID != 2 || got.PreviousExamID != 1 {
		t.Errorf("movers exams = %d/%d", got.ExamID, got.PreviousExamID)
	}
	if len(got.Improvements)+len(got.Declines) > 2 {
		t.Errorf("top=1 returned %d improvements and %d declines", len(got.Improvements), len(got.Declines))
	}
	if len(got.Declines) != 1 || got.Declines[0].SubjectID != 2 {
		t.Errorf("declines = %+v, want Language", got.Declines)
	}

	single := inlineInput(t)
	single.ExamIDs = []int64{1}
	result, _, err = s.handleMovers(context.Background(), nil, MoversInput{DatasetInput: single})
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("movers with one exam should be a tool error")
	}
}

func TestHandleSignals(t *testing.T) {
	s := newTestServer()
	input := SignalsInput{DatasetInput: inlineInput(t), IncludePupils: true}
	result, _, err := s.handleSignals(context.Background(), nil, input)
	if err != nil {
		t.Fatal(err)
	}

	var got struct {
		LatestExamID *int64                 `json:"latest_exam_id"`
		Risk         []models.SubjectSignal `json:"risk"`
		PupilRisk    []models.PupilSignal   `json:"pupil_risk"`
	}
	decodeResult(t, result, &got)
	if got.LatestExamID == nil || *got.LatestExamID != 2 {
		t.Errorf("latest exam = %v, want 2", got.LatestExamID)
	}
	if len(got.Risk) == 0 || got.Risk[0].SubjectID != 2 {
		t.Errorf("risk = %+v, want Language first", got.Risk)
	}
	if len(got.PupilRisk) == 0 {
		t.Error("pupil risk should be included")
	}
}

func TestHandleCohorts(t *testing.T) {
	s := newTestServer()
	result, _, err := s.handleCohorts(context.Background(), nil, inlineInput(t))
	if err != nil {
		t.Fatal(err)
	}

	var got []models.GroupComparison
	decodeResult(t, result, &got)
	if len(got) != 4 {
		t.Fatalf("cohorts = %d rows, want 4", len(got))
	}
	if got[0].Cohort1 == nil || got[0].Cohort1.N != 1 {
		t.Errorf("cohort 1 = %+v, pupil 3 has no cohort", got[0].Cohort1)
	}
}

func TestHandleRank(t *testing.T) {
	s := newTestServer()
	input := RankInput{DatasetInput: inlineInput(t), ExamID: models.ID(1), Top: 2}
	result, _, err := s.handleRank(context.Background(), nil, input)
	if err != nil {
		t.Fatal(err)
	}

	var got struct {
		ExamID int64                `json:"exam_id"`
		Pupils []models.RankedPupil `json:"pupils"`
	}
	decodeResult(t, result, &got)
	if got.ExamID != 1 || len(got.Pupils) != 2 {
		t.Fatalf("ranking = %+v", got)
	}
	if got.Pupils[0].PupilID != 3 || got.Pupils[0].Total != 51 {
		t.Errorf("first = %+v, want pupil 3 with 51 points", got.Pupils[0])
	}

	input.ExamID = models.ID(9)
	result, _, err = s.handleRank(context.Background(), nil, input)
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("unknown exam should be a tool error")
	}
}

func TestHandleReportErrors(t *testing.T) {
	s := newTestServer()
	result, _, err := s.handleReport(context.Background(), nil, DatasetInput{})
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError || !strings.Contains(resultText(t, result), "no dataset") {
		t.Errorf("empty input should report a missing dataset, got %q", resultText(t, result))
	}
}

func TestServerSession(t *testing.T) {
	ctx := context.Background()
	s := newTestServer()

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := s.server.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	names := make(map[string]bool)
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"aggregate_scores", "band_distribution", "subject_movers", "subject_signals", "cohort_comparison", "rank_pupils", "class_report"} {
		if !names[want] {
			t.Errorf("tool %s not registered", want)
		}
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(testDataset), &doc); err != nil {
		t.Fatal(err)
	}
	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "class_report",
		Arguments: map[string]any{"dataset": doc, "format": "json"},
	})
	if err != nil {
		t.Fatalf("call tool: %v", err)
	}
	var rep struct {
		Meta struct {
			Records int `json:"records"`
		} `json:"meta"`
	}
	decodeResult(t, result, &rep)
	if rep.Meta.Records != 12 {
		t.Errorf("records = %d, want 12", rep.Meta.Records)
	}

	prompts, err := session.ListPrompts(ctx, nil)
	if err != nil {
		t.Fatalf("list prompts: %v", err)
	}
	if len(prompts.Prompts) != 2 {
		t.Errorf("prompts = %d, want 2", len(prompts.Prompts))
	}
}

func TestParseFrontmatter(t *testing.T) {
	desc, body := parseFrontmatter([]byte("---\ndescription: Review\n---\nDo it.\n"))
	if desc != "Review" || body != "Do it.\n" {
		t.Errorf("parseFrontmatter() = %q, %q", desc, body)
	}

	desc, body = parseFrontmatter([]byte("No frontmatter"))
	if desc != "" || body != "No frontmatter" {
		t.Errorf("parseFrontmatter() = %q, %q", desc, body)
	}
}

func TestGenerateManifest(t *testing.T) {
	data, err := GenerateManifest("")
	if err != nil {
		t.Fatal(err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if m.Version != "0.0.0" || m.Name != "io.github.panbanda/gradelens" {
		t.Errorf("manifest = %+v", m)
	}
	if len(m.Packages) != 1 || m.Packages[0].PackageArguments[0].Value != "mcp" {
		t.Errorf("packages = %+v", m.Packages)
	}
	if len(m.Packages[0].EnvironmentVariables) != 1 || m.Packages[0].EnvironmentVariables[0].Name != "GRADELENS_CONFIG" {
		t.Errorf("environment = %+v", m.Packages[0].EnvironmentVariables)
	}
	if len(m.Description) > maxDescription || !strings.Contains(m.Description, "7 tools") {
		t.Errorf("description = %q", m.Description)
	}

	var meta struct {
		Publisher struct {
			Tools []toolSummary `json:"tools"`
		} `json:"io.modelcontextprotocol.registry/publisher-provided"`
	}
	raw, err := json.Marshal(m.Meta)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		t.Fatal(err)
	}
	if len(meta.Publisher.Tools) != len(catalog) || meta.Publisher.Tools[6].Name != "class_report" {
		t.Errorf("published tools = %+v", meta.Publisher.Tools)
	}
}

func TestCatalogMatchesRegisteredTools(t *testing.T) {
	ctx := context.Background()
	s := newTestServer()

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := s.server.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	registered := make(map[string]bool, len(tools.Tools))
	for _, tool := range tools.Tools {
		registered[tool.Name] = true
	}
	if len(registered) != len(catalog) {
		t.Errorf("registered %d tools, catalog has %d", len(registered), len(catalog))
	}
	for _, entry := range catalog {
		if !registered[entry.Name] {
			t.Errorf("catalog tool %s is not registered", entry.Name)
		}
		if entry.Summary == "" {
			t.Errorf("catalog tool %s has no summary", entry.Name)
		}
	}
}
