package report

import "time"

// Metadata describes where a report came from.
type Metadata struct {
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	GeneratedAt time.Time `json:"generated_at"`
	Version     string    `json:"version"`
	Fingerprint string    `json:"fingerprint"`
	Records     int       `json:"records"`
	Duplicates  int       `json:"duplicates"`
}

// Recommendation is a single follow-up item.
type Recommendation struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Recommendations groups recommendations by priority.
type Recommendations struct {
	HighPriority   []Recommendation `json:"high_priority"`
	MediumPriority []Recommendation `json:"medium_priority"`
	Ongoing        []Recommendation `json:"ongoing"`
}

// Insight is an optional written summary, usually produced by an assistant
// from the term-review prompt and saved as JSON next to the data.
type Insight struct {
	ExecutiveSummary string          `json:"executive_summary"`
	KeyFindings      []string        `json:"key_findings"`
	Recommendations  Recommendations `json:"recommendations"`
}

// ExamRow is one exam of the overview table.
type ExamRow struct {
	Exam          string
	N             int
	Avg           float64
	Median        float64
	PassRate      float64
	AvgDelta      *float64
	PassRateDelta *float64
	RiskLabel     string
	MiddleLabel   string
}

// SubjectRow is one subject of the latest exam.
type SubjectRow struct {
	Subject  string
	N        int
	Avg      float64
	Median   float64
	SD       *float64
	Min      float64
	Max      float64
	PassRate float64
}

// MoveRow is one subject mover.
type MoveRow struct {
	Subject  string
	Previous float64
	Current  float64
	Delta    float64
}

// SignalRow is one risk or momentum entry.
type SignalRow struct {
	Name    string
	Score   float64
	Reasons []string
}

// BandRow holds one exam's band shares in band order.
type BandRow struct {
	Exam   string
	N      int
	Shares []float64
}

// CohortRow compares the cohorts on one subject and exam.
type CohortRow struct {
	Subject string
	Exam    string
	Avg1    *float64
	Avg2    *float64
	Delta   *float64
}

// RankRow is one ranked pupil.
type RankRow struct {
	Position   int
	Rank       int
	Pupil      string
	Total      float64
	Percentage float64
}

// ChartData feeds the trend chart.
type ChartData struct {
	Labels    []string  `json:"labels"`
	Averages  []float64 `json:"averages"`
	PassRates []float64 `json:"pass_rates"`
}

// RenderData contains all data needed to render the report.
type RenderData struct {
	Metadata     Metadata
	Insight      *Insight
	LatestExam   string
	PreviousExam string
	Exams        []ExamRow
	Subjects     []SubjectRow
	Improvements []MoveRow
	Declines     []MoveRow
	SubjectRisk  []SignalRow
	Momentum     []SignalRow
	PupilRisk    []SignalRow
	BandNames    []string
	Bands        []BandRow
	Cohorts      []CohortRow
	Ranking      []RankRow
	Chart        ChartData
}
