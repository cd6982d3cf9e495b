package models

import (
	"sort"
	"time"
)

// DefaultMaxPoints is the subject maximum used when a subject carries no
// usable max_points value.
const DefaultMaxPoints = 40.0

// ScoreRecord is one pupil's result for one subject on one exam.
// Score is nil when the pupil has no recorded result.
type ScoreRecord struct {
	PupilID   int64    `json:"pupil_id" yaml:"pupil_id"`
	SubjectID int64    `json:"subject_id" yaml:"subject_id"`
	ExamID    int64    `json:"exam_id" yaml:"exam_id"`
	Score     *float64 `json:"score" yaml:"score"`
	MaxPoints float64  `json:"max_points,omitempty" yaml:"max_points,omitempty"`
}

// HasScore reports whether the record carries a score.
func (r ScoreRecord) HasScore() bool {
	return r.Score != nil
}

// Exam is a single sitting. Term and Date are optional.
type Exam struct {
	ID           int64      `json:"id" yaml:"id"`
	AcademicYear string     `json:"academic_year" yaml:"academic_year"`
	Term         *int       `json:"term,omitempty" yaml:"term,omitempty"`
	Name         string     `json:"name" yaml:"name"`
	Date         *time.Time `json:"date,omitempty" yaml:"date,omitempty"`
}

// Subject is a graded subject with its maximum score.
type Subject struct {
	ID        int64   `json:"id" yaml:"id"`
	Name      string  `json:"name" yaml:"name"`
	MaxPoints float64 `json:"max_points,omitempty" yaml:"max_points,omitempty"`
}

// EffectiveMax returns the subject maximum, or def when MaxPoints is not positive.
func (s Subject) EffectiveMax(def float64) float64 {
	if s.MaxPoints > 0 {
		return s.MaxPoints
	}
	if def > 0 {
		return def
	}
	return DefaultMaxPoints
}

// Pupil is a pupil with the attributes used for scoping and cohorts.
// Group is 1 or 2; 0 means the pupil belongs to no cohort.
type Pupil struct {
	ID        int64  `json:"id" yaml:"id"`
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
	ClassCode string `json:"class_code,omitempty" yaml:"class_code,omitempty"`
	Track     string `json:"track,omitempty" yaml:"track,omitempty"`
	Group     int    `json:"group,omitempty" yaml:"group,omitempty"`
}

// HasGroup reports whether the pupil belongs to one of the two cohorts.
func (p Pupil) HasGroup() bool {
	return p.Group == 1 || p.Group == 2
}

// Dataset is the scoped input to the engine: score records joined with
// their exam, subject and pupil metadata.
type Dataset struct {
	Exams    []Exam        `json:"exams" yaml:"exams"`
	Subjects []Subject     `json:"subjects" yaml:"subjects"`
	Pupils   []Pupil       `json:"pupils" yaml:"pupils"`
	Scores   []ScoreRecord `json:"scores" yaml:"scores"`
}

// ExamsByID indexes exams by id.
func (d *Dataset) ExamsByID() map[int64]Exam {
	m := make(map[int64]Exam, len(d.Exams))
	for _, e := range d.Exams {
		m[e.ID] = e
	}
	return m
}

// SubjectsByID indexes subjects by id.
func (d *Dataset) SubjectsByID() map[int64]Subject {
	m := make(map[int64]Subject, len(d.Subjects))
	for _, s := range d.Subjects {
		m[s.ID] = s
	}
	return m
}

// PupilsByID indexes pupils by id.
func (d *Dataset) PupilsByID() map[int64]Pupil {
	m := make(map[int64]Pupil, len(d.Pupils))
	for _, p := range d.Pupils {
		m[p.ID] = p
	}
	return m
}

// ExamOrder returns exam ids in canonical chronological order. Exams that
// appear only in score records are ordered after known exams by id.
func (d *Dataset) ExamOrder() []int64 {
	exams := make([]Exam, len(d.Exams))
	copy(exams, d.Exams)
	SortExams(exams)

	seen := make(map[int64]bool, len(exams))
	order := make([]int64, 0, len(exams))
	for _, e := range exams {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		order = append(order, e.ID)
	}

	var orphans []int64
	for _, r := range d.Scores {
		if !seen[r.ExamID] {
			seen[r.ExamID] = true
			orphans = append(orphans, r.ExamID)
		}
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i] < orphans[j] })
	return append(order, orphans...)
}

// DuplicateCount returns how many score records repeat an earlier
// (pupil, subject, exam) combination. Duplicates are kept in every aggregate.
func (d *Dataset) DuplicateCount() int {
	type key struct{ pupil, subject, exam int64 }
	seen := make(map[key]struct{}, len(d.Scores))
	dups := 0
	for _, r := range d.Scores {
		k := key{r.PupilID, r.SubjectID, r.ExamID}
		if _, ok := seen[k]; ok {
			dups++
			continue
		}
		seen[k] = struct{}{}
	}
	return dups
}

// SortExams orders exams by academic year, term (missing last), date
// (missing last) and id.
func SortExams(exams []Exam) {
	sort.SliceStable(exams, func(i, j int) bool {
		return ExamLess(exams[i], exams[j])
	})
}

// ExamLess is the canonical "comes before" relation between exams.
func ExamLess(a, b Exam) bool {
	if a.AcademicYear != b.AcademicYear {
		return a.AcademicYear < b.AcademicYear
	}
	switch {
	case a.Term == nil && b.Term != nil:
		return false
	case a.Term != nil && b.Term == nil:
		return true
	case a.Term != nil && b.Term != nil && *a.Term != *b.Term:
		return *a.Term < *b.Term
	}
	switch {
	case a.Date == nil && b.Date != nil:
		return false
	case a.Date != nil && b.Date == nil:
		return true
	case a.Date != nil && b.Date != nil && !a.Date.Equal(*b.Date):
		return a.Date.Before(*b.Date)
	}
	return a.ID < b.ID
}

// Float returns a pointer to v. Used for nullable numeric fields.
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}

// ID returns a pointer to v.
func ID(v int64) *int64 {
	return &v
}
