// Package source loads score datasets from files or PostgreSQL.
package source

import (
	"context"
	"errors"
	"slices"

	"github.com/panbanda/gradelens/pkg/models"
)

// ErrInvalidDataset is wrapped by every error caused by malformed input
// rather than by I/O.
var ErrInvalidDataset = errors.New("invalid dataset")

// Source provides a scoped dataset.
type Source interface {
	// Load returns the records matching scope with their metadata.
	Load(ctx context.Context, scope Scope) (*models.Dataset, error)
}

// Scope narrows a dataset. Empty fields do not filter.
type Scope struct {
	ClassCode    string  `json:"class_code,omitempty"`
	Track        string  `json:"track,omitempty"`
	AcademicYear string  `json:"academic_year,omitempty"`
	ExamIDs      []int64 `json:"exam_ids,omitempty"`
}

// IsZero reports whether the scope filters nothing.
func (s Scope) IsZero() bool {
	return s.ClassCode == "" && s.Track == "" && s.AcademicYear == "" && len(s.ExamIDs) == 0
}

func (s Scope) filtersPupils() bool {
	return s.ClassCode != "" || s.Track != ""
}

func (s Scope) filtersExams() bool {
	return s.AcademicYear != "" || len(s.ExamIDs) > 0
}

func (s Scope) matchPupil(p models.Pupil) bool {
	if s.ClassCode != "" && p.ClassCode != s.ClassCode {
		return false
	}
	if s.Track != "" && p.Track != s.Track {
		return false
	}
	return true
}

func (s Scope) matchExam(e models.Exam) bool {
	if s.AcademicYear != "" && e.AcademicYear != s.AcademicYear {
		return false
	}
	if len(s.ExamIDs) > 0 && !slices.Contains(s.ExamIDs, e.ID) {
		return false
	}
	return true
}

// Apply returns a copy of ds restricted to the scope. Score records whose
// pupil or exam is filtered out are dropped; records referring to pupils or
// exams missing from the metadata are kept only while that dimension is
// unfiltered. Subjects are never filtered. ds is not modified.
func (s Scope) Apply(ds *models.Dataset) *models.Dataset {
	if ds == nil {
		return nil
	}
	out := &models.Dataset{
		Subjects: slices.Clone(ds.Subjects),
	}

	pupils := make(map[int64]bool, len(ds.Pupils))
	for _, p := range ds.Pupils {
		if s.matchPupil(p) {
			pupils[p.ID] = true
			out.Pupils = append(out.Pupils, p)
		}
	}
	exams := make(map[int64]bool, len(ds.Exams))
	for _, e := range ds.Exams {
		if s.matchExam(e) {
			exams[e.ID] = true
			out.Exams = append(out.Exams, e)
		}
	}

	for _, r := range ds.Scores {
		if s.filtersPupils() && !pupils[r.PupilID] {
			continue
		}
		if s.filtersExams() && !exams[r.ExamID] {
			continue
		}
		out.Scores = append(out.Scores, r)
	}
	return out
}
