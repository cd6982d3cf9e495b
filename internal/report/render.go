// Package report renders a class report as a standalone HTML page.
package report

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"strings"

	"github.com/panbanda/gradelens/internal/output"
	"github.com/panbanda/gradelens/pkg/analyzer/overview"
	"github.com/panbanda/gradelens/pkg/classify"
	"github.com/panbanda/gradelens/pkg/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed template.html
var templateFS embed.FS

// Renderer handles HTML report generation.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer creates a new renderer with the embedded template.
func NewRenderer() (*Renderer, error) {
	p := message.NewPrinter(language.English)
	title := cases.Title(language.English)

	funcMap := template.FuncMap{
		"num": func(v float64) string {
			return p.Sprintf("%.1f", v)
		},
		"count": func(n int) string {
			return p.Sprintf("%d", n)
		},
		"pct": func(v float64) string {
			return p.Sprintf("%.1f%%", v)
		},
		"optNum": func(v *float64) string {
			if v == nil {
				return "-"
			}
			return p.Sprintf("%.1f", *v)
		},
		"signed": func(v *float64) string {
			if v == nil {
				return "-"
			}
			return p.Sprintf("%+.1f", *v)
		},
		"width": func(v float64) string {
			return fmt.Sprintf("%.1f", max(0, min(100, v)))
		},
		"deltaClass": func(v *float64) string {
			switch {
			case v == nil:
				return ""
			case *v > 0:
				return "good"
			case *v < 0:
				return "danger"
			}
			return ""
		},
		"labelClass": func(label string) string {
			switch label {
			case "high_risk", "collapse":
				return "danger"
			case "watch":
				return "warning"
			case "":
				return ""
			}
			return "good"
		},
		"humanize": func(s string) string {
			return title.String(strings.ReplaceAll(s, "_", " "))
		},
		"limit": func(items any, n int) any {
			switch v := items.(type) {
			case []SignalRow:
				if len(v) > n {
					return v[:n]
				}
				return v
			case []RankRow:
				if len(v) > n {
					return v[:n]
				}
				return v
			default:
				return items
			}
		},
		"json": func(v any) template.JS {
			b, _ := json.Marshal(v)
			return template.JS(b)
		},
	}

	tmplContent, err := templateFS.ReadFile("template.html")
	if err != nil {
		return nil, err
	}
	tmpl, err := template.New("report").Funcs(funcMap).Parse(string(tmplContent))
	if err != nil {
		return nil, err
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render writes the HTML page for data.
func (r *Renderer) Render(data *RenderData, w io.Writer) error {
	return r.tmpl.Execute(w, data)
}

// RenderToFile writes the HTML page to path.
func (r *Renderer) RenderToFile(data *RenderData, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.Render(data, f); err != nil {
		f.Close()
		return fmt.Errorf("render %s: %w", path, err)
	}
	return f.Close()
}

// LoadInsight reads an Insight JSON file.
func LoadInsight(path string) (*Insight, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var insight Insight
	if err := json.Unmarshal(data, &insight); err != nil {
		return nil, fmt.Errorf("decode insight %s: %w", path, err)
	}
	return &insight, nil
}

// BuildData flattens a report into display rows. Missing metadata fields
// are filled from the report itself.
func BuildData(rep *overview.Report, names output.Names, meta Metadata, insight *Insight) *RenderData {
	if meta.Title == "" {
		meta.Title = "Class Report"
	}
	if meta.GeneratedAt.IsZero() {
		meta.GeneratedAt = rep.Meta.GeneratedAt
	}
	if meta.Fingerprint == "" {
		meta.Fingerprint = rep.Meta.Fingerprint
	}
	meta.Records = rep.Meta.Records
	meta.Duplicates = rep.Meta.Duplicates

	data := &RenderData{Metadata: meta, Insight: insight}
	data.Exams, data.Chart = examRows(rep, names)

	var latest int64
	if rep.Meta.LatestExamID != nil {
		latest = *rep.Meta.LatestExamID
		data.LatestExam = names.Exam(latest)
		for _, s := range rep.Subjects {
			if s.ExamID != latest || s.SubjectID == nil {
				continue
			}
			data.Subjects = append(data.Subjects, SubjectRow{
				Subject:  names.Subject(*s.SubjectID),
				N:        s.N,
				Avg:      s.Avg,
				Median:   s.Median,
				SD:       s.SD,
				Min:      s.Min,
				Max:      s.Max,
				PassRate: s.PassRate,
			})
		}
		for _, er := range rep.Rankings {
			if er.ExamID != latest {
				continue
			}
			for _, p := range er.Pupils {
				data.Ranking = append(data.Ranking, RankRow{
					Position:   p.Position,
					Rank:       p.Rank,
					Pupil:      names.Pupil(p.PupilID),
					Total:      p.Total,
					Percentage: p.Percentage,
				})
			}
		}
	}
	if rep.Meta.PreviousExamID != nil {
		data.PreviousExam = names.Exam(*rep.Meta.PreviousExamID)
	}

	if rep.Movers != nil {
		data.Improvements = moveRows(rep.Movers.Improvements, names)
		data.Declines = moveRows(rep.Movers.Declines, names)
	}
	data.SubjectRisk = subjectSignalRows(rep.SubjectRisk, names)
	data.Momentum = subjectSignalRows(rep.SubjectMomentum, names)
	for _, s := range rep.PupilRisk {
		data.PupilRisk = append(data.PupilRisk, SignalRow{Name: names.Pupil(s.PupilID), Score: s.Score, Reasons: s.Reasons})
	}

	for _, b := range classify.AllBands {
		data.BandNames = append(data.BandNames, string(b))
	}
	for _, d := range rep.Bands {
		row := BandRow{Exam: names.Exam(d.ExamID), N: d.N}
		for _, b := range classify.AllBands {
			row.Shares = append(row.Shares, d.Share(string(b)))
		}
		data.Bands = append(data.Bands, row)
	}

	for _, c := range rep.Cohorts {
		row := CohortRow{Subject: names.Subject(c.SubjectID), Exam: names.Exam(c.ExamID), Delta: c.Delta}
		if c.Cohort1 != nil {
			row.Avg1 = models.Float(c.Cohort1.Avg)
		}
		if c.Cohort2 != nil {
			row.Avg2 = models.Float(c.Cohort2.Avg)
		}
		data.Cohorts = append(data.Cohorts, row)
	}
	return data
}

func examRows(rep *overview.Report, names output.Names) ([]ExamRow, ChartData) {
	overall := make(map[int64]models.AggregateStat, len(rep.Overall))
	for _, s := range rep.Overall {
		overall[s.ExamID] = s
	}
	avgDelta := make(map[int64]*float64)
	for _, d := range rep.AverageDeltas {
		avgDelta[d.ExamID] = d.Delta
	}
	passDelta := make(map[int64]*float64)
	for _, d := range rep.PassRateDeltas {
		passDelta[d.ExamID] = d.Delta
	}
	intel := make(map[int64]models.ExamIntelligence)
	for _, i := range rep.Intelligence {
		intel[i.ExamID] = i
	}

	var rows []ExamRow
	var chart ChartData
	for _, id := range rep.Meta.ExamOrder {
		s, ok := overall[id]
		if !ok {
			continue
		}
		label := names.Exam(id)
		rows = append(rows, ExamRow{
			Exam:          label,
			N:             s.N,
			Avg:           s.Avg,
			Median:        s.Median,
			PassRate:      s.PassRate,
			AvgDelta:      avgDelta[id],
			PassRateDelta: passDelta[id],
			RiskLabel:     intel[id].RiskLabel,
			MiddleLabel:   intel[id].MiddleLabel,
		})
		chart.Labels = append(chart.Labels, label)
		chart.Averages = append(chart.Averages, s.Avg)
		chart.PassRates = append(chart.PassRates, s.PassRate)
	}
	return rows, chart
}

func moveRows(moves []models.SubjectMove, names output.Names) []MoveRow {
	rows := make([]MoveRow, 0, len(moves))
	for _, m := range moves {
		rows = append(rows, MoveRow{Subject: names.Subject(m.SubjectID), Previous: m.Previous, Current: m.Current, Delta: m.Delta})
	}
	return rows
}

func subjectSignalRows(signals []models.SubjectSignal, names output.Names) []SignalRow {
	rows := make([]SignalRow, 0, len(signals))
	for _, s := range signals {
		rows = append(rows, SignalRow{Name: names.Subject(s.SubjectID), Score: s.Score, Reasons: s.Reasons})
	}
	return rows
}
