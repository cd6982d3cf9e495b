package output

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/panbanda/gradelens/pkg/analyzer/overview"
	"github.com/panbanda/gradelens/pkg/classify"
	"github.com/panbanda/gradelens/pkg/models"
)

// Names resolves ids to display names. Unknown ids render as "#id".
type Names struct {
	Exams    map[int64]string
	Subjects map[int64]string
	Pupils   map[int64]string
}

// NamesFor collects display names from a dataset.
func NamesFor(ds *models.Dataset) Names {
	n := Names{
		Exams:    make(map[int64]string),
		Subjects: make(map[int64]string),
		Pupils:   make(map[int64]string),
	}
	if ds == nil {
		return n
	}
	for _, e := range ds.Exams {
		label := e.Name
		if e.AcademicYear != "" {
			label = strings.TrimSpace(e.AcademicYear + " " + e.Name)
		}
		n.Exams[e.ID] = label
	}
	for _, s := range ds.Subjects {
		n.Subjects[s.ID] = s.Name
	}
	for _, p := range ds.Pupils {
		n.Pupils[p.ID] = p.Name
	}
	return n
}

func lookup(m map[int64]string, id int64) string {
	if name := m[id]; name != "" {
		return name
	}
	return "#" + strconv.FormatInt(id, 10)
}

func (n Names) Exam(id int64) string    { return lookup(n.Exams, id) }
func (n Names) Subject(id int64) string { return lookup(n.Subjects, id) }
func (n Names) Pupil(id int64) string   { return lookup(n.Pupils, id) }

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func optNum(v *float64) string {
	if v == nil {
		return "-"
	}
	return num(*v)
}

func signed(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%+.2f", *v)
}

func pct(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

// SubjectStats renders per-subject aggregates with the tier of each average.
func SubjectStats(stats []models.AggregateStat, names Names, r classify.Resolver) *Table {
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		subject, tier := "All", "-"
		if s.SubjectID != nil {
			subject = names.Subject(*s.SubjectID)
			avg := s.Avg
			tier = string(r.Tiers(*s.SubjectID).Classify(&avg).Tier)
		}
		rows = append(rows, []string{
			names.Exam(s.ExamID), subject, strconv.Itoa(s.N),
			num(s.Avg), num(s.Median), optNum(s.SD),
			num(s.Min), num(s.Max), pct(s.PassRate), tier,
		})
	}
	return &Table{
		Title:   "Subject Results",
		Headers: []string{"Exam", "Subject", "N", "Avg", "Median", "SD", "Min", "Max", "Pass", "Tier"},
		Rows:    rows,
		Data:    stats,
	}
}

// OverallStats renders exam-level aggregates.
func OverallStats(stats []models.AggregateStat, names Names) *Table {
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, []string{
			names.Exam(s.ExamID), strconv.Itoa(s.N), num(s.Avg), num(s.Median),
			optNum(s.SD), optNum(s.Skew), pct(s.PassRate),
		})
	}
	return &Table{
		Title:   "Exam Overview",
		Headers: []string{"Exam", "N", "Avg", "Median", "SD", "Skew", "Pass"},
		Rows:    rows,
		Data:    stats,
	}
}

// Deltas renders a metric's change across consecutive exams.
func Deltas(title string, deltas []models.DeltaMetric, names Names) *Table {
	rows := make([][]string, 0, len(deltas))
	for _, d := range deltas {
		prev := "-"
		if d.PreviousExamID != nil {
			prev = names.Exam(*d.PreviousExamID)
		}
		rows = append(rows, []string{
			names.Exam(d.ExamID), prev, optNum(d.Value), optNum(d.Previous), signed(d.Delta), d.Direction,
		})
	}
	return &Table{
		Title:        title,
		Headers:      []string{"Exam", "Previous Exam", "Value", "Previous", "Delta", "Direction"},
		Rows:         rows,
		LabelColumns: []int{5},
		Data:         deltas,
	}
}

func bandCell(d models.BandDistribution, b classify.Band) string {
	return fmt.Sprintf("%d (%s)", d.Count(string(b)), pct(d.Share(string(b))))
}

// BandTable renders band membership per exam.
func BandTable(dists []models.BandDistribution, names Names) *Table {
	rows := make([][]string, 0, len(dists))
	for _, d := range dists {
		row := []string{names.Exam(d.ExamID), strconv.Itoa(d.N)}
		for _, b := range classify.AllBands {
			row = append(row, bandCell(d, b))
		}
		rows = append(rows, row)
	}
	return &Table{
		Title:   "Band Distribution",
		Headers: []string{"Exam", "N", "Weak", "Lower", "Middle", "Elite"},
		Rows:    rows,
		Data:    dists,
	}
}

// IntelligenceTable renders the composite distribution labels.
func IntelligenceTable(intel []models.ExamIntelligence, names Names) *Table {
	rows := make([][]string, 0, len(intel))
	for _, in := range intel {
		rows = append(rows, []string{
			names.Exam(in.ExamID), strconv.Itoa(in.N),
			pct(in.WeakShare), pct(in.MiddleLayersShare), pct(in.EliteShare),
			optNum(in.Skew), in.SkewDirection, in.RiskLabel, in.MiddleLabel,
			signed(in.WeakShareDelta), signed(in.EliteShareDelta),
		})
	}
	return &Table{
		Title:        "Distribution Intelligence",
		Headers:      []string{"Exam", "N", "Weak", "Middle Layers", "Elite", "Skew", "Skew Dir", "Risk", "Middle", "Weak Δ", "Elite Δ"},
		Rows:         rows,
		LabelColumns: []int{7, 8},
		Data:         intel,
	}
}

// MigrationTable renders band movement between consecutive exams.
func MigrationTable(migrations []models.BandMigration, names Names) *Table {
	rows := make([][]string, 0, len(migrations))
	for _, m := range migrations {
		var flows []string
		for _, from := range classify.AllBands {
			for _, to := range classify.AllBands {
				key := string(from) + "->" + string(to)
				if c := m.Flows[key]; c > 0 && from != to {
					flows = append(flows, fmt.Sprintf("%s:%d", key, c))
				}
			}
		}
		rows = append(rows, []string{
			names.Exam(m.PreviousExamID), names.Exam(m.ExamID), strconv.Itoa(m.Common),
			strconv.Itoa(m.Up), strconv.Itoa(m.Down), strconv.Itoa(m.Stayed), strings.Join(flows, " "),
		})
	}
	return &Table{
		Title:   "Band Migration",
		Headers: []string{"From Exam", "To Exam", "Common", "Up", "Down", "Stayed", "Flows"},
		Rows:    rows,
		Data:    migrations,
	}
}

// MoversTable renders the strongest improvements and declines.
func MoversTable(m *models.Movers, names Names) *Table {
	t := &Table{
		Title:        "Subject Movers",
		Headers:      []string{"Direction", "Subject", "Previous", "Current", "Delta"},
		LabelColumns: []int{0},
		Data:         m,
	}
	if m == nil {
		return t
	}
	t.Title = fmt.Sprintf("Subject Movers (%s → %s)", names.Exam(m.PreviousExamID), names.Exam(m.ExamID))
	add := func(dir classify.Direction, moves []models.SubjectMove) {
		for _, mv := range moves {
			d := mv.Delta
			t.Rows = append(t.Rows, []string{
				string(dir), names.Subject(mv.SubjectID), num(mv.Previous), num(mv.Current), signed(&d),
			})
		}
	}
	add(classify.DirectionUp, m.Improvements)
	add(classify.DirectionDown, m.Declines)
	return t
}

// SubjectSignalTable renders subject risk or momentum signals.
func SubjectSignalTable(title string, signals []models.SubjectSignal, names Names) *Table {
	rows := make([][]string, 0, len(signals))
	for _, s := range signals {
		rows = append(rows, []string{
			names.Subject(s.SubjectID), string(s.Kind), num(s.Score), num(s.Avg), pct(s.PassRate),
			signed(s.AvgDelta), signed(s.PassRateDelta), strings.Join(s.Reasons, "; "),
		})
	}
	return &Table{
		Title:        title,
		Headers:      []string{"Subject", "Kind", "Score", "Avg", "Pass", "Avg Δ", "Pass Δ", "Reasons"},
		Rows:         rows,
		LabelColumns: []int{1},
		Data:         signals,
	}
}

// PupilSignalTable renders pupil risk or momentum signals.
func PupilSignalTable(title string, signals []models.PupilSignal, names Names) *Table {
	rows := make([][]string, 0, len(signals))
	for _, s := range signals {
		rows = append(rows, []string{
			names.Pupil(s.PupilID), string(s.Kind), num(s.Score), pct(s.Percentage), pct(s.PassShare),
			signed(s.PercentageDelta), signed(s.PassShareDelta), strings.Join(s.Reasons, "; "),
		})
	}
	return &Table{
		Title:        title,
		Headers:      []string{"Pupil", "Kind", "Score", "Percentage", "Passed", "Percentage Δ", "Passed Δ", "Reasons"},
		Rows:         rows,
		LabelColumns: []int{1},
		Data:         signals,
	}
}

func cohortCells(c *models.CohortSummary) (string, string, string) {
	if c == nil {
		return "-", "-", "-"
	}
	return strconv.Itoa(c.N), num(c.Avg), pct(c.PassRate)
}

// CohortTable renders the cohort comparison.
func CohortTable(cmp []models.GroupComparison, names Names) *Table {
	rows := make([][]string, 0, len(cmp))
	for _, c := range cmp {
		n1, avg1, pass1 := cohortCells(c.Cohort1)
		n2, avg2, pass2 := cohortCells(c.Cohort2)
		rows = append(rows, []string{
			names.Exam(c.ExamID), names.Subject(c.SubjectID),
			n1, avg1, pass1, n2, avg2, pass2, signed(c.Delta),
		})
	}
	return &Table{
		Title:   "Cohort Comparison",
		Headers: []string{"Exam", "Subject", "N 1", "Avg 1", "Pass 1", "N 2", "Avg 2", "Pass 2", "Delta"},
		Rows:    rows,
		Data:    cmp,
	}
}

// RankingTable renders one exam's ranking.
func RankingTable(examID int64, ranked []models.RankedPupil, names Names) *Table {
	rows := make([][]string, 0, len(ranked))
	for _, p := range ranked {
		rows = append(rows, []string{
			strconv.Itoa(p.Position), strconv.Itoa(p.Rank), names.Pupil(p.PupilID),
			num(p.Total), num(p.Secondary), pct(p.Percentage),
		})
	}
	return &Table{
		Title:   "Ranking: " + names.Exam(examID),
		Headers: []string{"#", "Rank", "Pupil", "Total", "Secondary", "Percentage"},
		Rows:    rows,
		Data:    ranked,
	}
}

// ReportView renders a full overview report. JSON and TOON output carry the
// report itself.
func ReportView(rep *overview.Report, names Names, r classify.Resolver) *Report {
	sections := []Renderable{
		OverallStats(rep.Overall, names),
		SubjectStats(rep.Subjects, names, r),
		Deltas("Average Change", rep.AverageDeltas, names),
		Deltas("Pass Rate Change", rep.PassRateDeltas, names),
		BandTable(rep.Bands, names),
		IntelligenceTable(rep.Intelligence, names),
		MigrationTable(rep.Migration, names),
	}
	if rep.Movers != nil {
		sections = append(sections, MoversTable(rep.Movers, names))
	}
	sections = append(sections,
		SubjectSignalTable("Subject Risk", rep.SubjectRisk, names),
		SubjectSignalTable("Subject Momentum", rep.SubjectMomentum, names),
		PupilSignalTable("Pupil Risk", rep.PupilRisk, names),
		PupilSignalTable("Pupil Momentum", rep.PupilMomentum, names),
		CohortTable(rep.Cohorts, names),
	)
	for _, er := range rep.Rankings {
		sections = append(sections, RankingTable(er.ExamID, er.Pupils, names))
	}
	return &Report{
		Title:    "Class Report",
		Sections: sections,
		Data:     rep,
	}
}
