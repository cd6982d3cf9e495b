package models

// AggregateStat summarizes the eligible scores of one group.
// SubjectID is nil for exam-overall aggregates. PassRate is a percentage
// (0-100). SD and Skew are nil when fewer than two scores exist.
type AggregateStat struct {
	SubjectID *int64   `json:"subject_id"`
	ExamID    int64    `json:"exam_id"`
	N         int      `json:"n"`
	Avg       float64  `json:"avg"`
	Median    float64  `json:"median"`
	SD        *float64 `json:"sd"`
	Skew      *float64 `json:"skew"`
	Min       float64  `json:"min"`
	Max       float64  `json:"max"`
	PassN     int      `json:"pass_n"`
	PassRate  float64  `json:"pass_rate"`
}

// PupilPercentage is a pupil's max-points-normalized total on one exam.
type PupilPercentage struct {
	ExamID         int64   `json:"exam_id"`
	PupilID        int64   `json:"pupil_id"`
	TotalScore     float64 `json:"total_score"`
	TotalMax       float64 `json:"total_max"`
	Percentage     float64 `json:"percentage"`
	SubjectsTaken  int     `json:"subjects_taken"`
	SubjectsPassed int     `json:"subjects_passed"`
}

// PassShare returns the percentage of subjects the pupil passed.
func (p PupilPercentage) PassShare() float64 {
	if p.SubjectsTaken <= 0 {
		return 0
	}
	return float64(p.SubjectsPassed) / float64(p.SubjectsTaken) * 100
}

// BandCount is the membership of one band.
type BandCount struct {
	Band  string  `json:"band"`
	Count int     `json:"count"`
	Share float64 `json:"share"`
}

// BandDistribution buckets an exam's pupils into performance bands.
type BandDistribution struct {
	ExamID int64       `json:"exam_id"`
	N      int         `json:"n"`
	Bands  []BandCount `json:"bands"`
}

// Count returns the count for band, or 0 when the band is absent.
func (b BandDistribution) Count(band string) int {
	for _, c := range b.Bands {
		if c.Band == band {
			return c.Count
		}
	}
	return 0
}

// Share returns the share for band, or 0 when the band is absent.
func (b BandDistribution) Share(band string) float64 {
	for _, c := range b.Bands {
		if c.Band == band {
			return c.Share
		}
	}
	return 0
}

// DeltaMetric is the change of a metric against the preceding exam.
type DeltaMetric struct {
	ExamID         int64    `json:"exam_id"`
	PreviousExamID *int64   `json:"previous_exam_id"`
	Value          *float64 `json:"value"`
	Previous       *float64 `json:"previous"`
	Delta          *float64 `json:"delta"`
	Direction      string   `json:"direction"`
}

// SignalKind distinguishes attention signals from improvement signals.
type SignalKind string

const (
	SignalRisk     SignalKind = "risk"
	SignalMomentum SignalKind = "momentum"
)

// SubjectSignal is a heuristic risk or momentum score for one subject.
type SubjectSignal struct {
	SubjectID     int64      `json:"subject_id"`
	Kind          SignalKind `json:"kind"`
	Score         float64    `json:"score"`
	Reasons       []string   `json:"reasons"`
	Avg           float64    `json:"avg"`
	PassRate      float64    `json:"pass_rate"`
	AvgDelta      *float64   `json:"avg_delta"`
	PassRateDelta *float64   `json:"pass_rate_delta"`
}

// PupilSignal is a heuristic risk or momentum score for one pupil.
type PupilSignal struct {
	PupilID         int64      `json:"pupil_id"`
	Kind            SignalKind `json:"kind"`
	Score           float64    `json:"score"`
	Reasons         []string   `json:"reasons"`
	Percentage      float64    `json:"percentage"`
	PassShare       float64    `json:"pass_share"`
	PercentageDelta *float64   `json:"percentage_delta"`
	PassShareDelta  *float64   `json:"pass_share_delta"`
}

// SubjectMove is one subject's average change between consecutive exams.
type SubjectMove struct {
	SubjectID int64   `json:"subject_id"`
	Previous  float64 `json:"previous"`
	Current   float64 `json:"current"`
	Delta     float64 `json:"delta"`
}

// Movers lists the subjects that improved and declined the most.
type Movers struct {
	ExamID         int64         `json:"exam_id"`
	PreviousExamID int64         `json:"previous_exam_id"`
	Improvements   []SubjectMove `json:"improvements"`
	Declines       []SubjectMove `json:"declines"`
}

// CohortSummary is one cohort's result for a subject on an exam.
type CohortSummary struct {
	N        int     `json:"n"`
	Avg      float64 `json:"avg"`
	PassRate float64 `json:"pass_rate"`
}

// GroupComparison compares the two cohorts for a subject on an exam.
// A nil cohort means no data, not zero.
type GroupComparison struct {
	SubjectID int64          `json:"subject_id"`
	ExamID    int64          `json:"exam_id"`
	Cohort1   *CohortSummary `json:"cohort1"`
	Cohort2   *CohortSummary `json:"cohort2"`
	Delta     *float64       `json:"delta"`
}

// RankedPupil is a pupil's place within a ranking scope. Position is unique
// (1..n); Rank is shared by pupils tied on both totals.
type RankedPupil struct {
	Position   int     `json:"position"`
	Rank       int     `json:"rank"`
	PupilID    int64   `json:"pupil_id"`
	Total      float64 `json:"total"`
	Secondary  float64 `json:"secondary"`
	Percentage float64 `json:"percentage"`
}

// ExamIntelligence is the composite distribution summary for one exam.
type ExamIntelligence struct {
	ExamID            int64    `json:"exam_id"`
	N                 int      `json:"n"`
	WeakCount         int      `json:"weak_count"`
	WeakShare         float64  `json:"weak_share"`
	MiddleLayersShare float64  `json:"middle_layers_share"`
	EliteShare        float64  `json:"elite_share"`
	Skew              *float64 `json:"skew"`
	SkewDirection     string   `json:"skew_direction"`
	RiskLabel         string   `json:"risk_label"`
	MiddleLabel       string   `json:"middle_label"`
	WeakShareDelta    *float64 `json:"weak_share_delta"`
	EliteShareDelta   *float64 `json:"elite_share_delta"`
}

// BandMigration counts pupils moving between bands across consecutive exams.
type BandMigration struct {
	ExamID         int64          `json:"exam_id"`
	PreviousExamID int64          `json:"previous_exam_id"`
	Common         int            `json:"common"`
	Up             int            `json:"up"`
	Down           int            `json:"down"`
	Stayed         int            `json:"stayed"`
	Flows          map[string]int `json:"flows"`
}
