/*
grading.go - Percentage, GPA and letter-grade derivation; result writes

PURPOSE:
  Derives every computed field of a subject result from raw marks and
  persists it, then drives the rollup and ranking recomputation inside
  the same transaction.

GRADE TABLE:
  Fixed breakpoints; the highest matching threshold wins and exact
  boundaries go to the higher band (90.0 is "A+", 89.99 is "A"):

    >= 90 -> 4.0 A+      >= 50 -> 2.0 C+
    >= 80 -> 3.5 A       >= 40 -> 1.5 C
    >= 70 -> 3.0 B+      >= 35 -> 1.0 D
    >= 60 -> 2.5 B       else  -> 0.0 NG

CEILING INVARIANT:
  total_marks = practical + theory must not exceed the exam detail's
  full marks; violations are rejected before any persistence.

SEE ALSO:
  - ranking.go: The rollup/rank cascade triggered by every write
*/
package exams

import (
	"context"
	"errors"
	"time"

	"github.com/campusworks/school-engine/school"
)

// =============================================================================
// GRADE DERIVATION (pure)
// =============================================================================

type gradeBand struct {
	Threshold float64
	GPA       float64
	Grade     string
}

// gradeBands in descending threshold order; first match wins.
var gradeBands = []gradeBand{
	{90, 4.0, "A+"},
	{80, 3.5, "A"},
	{70, 3.0, "B+"},
	{60, 2.5, "B"},
	{50, 2.0, "C+"},
	{40, 1.5, "C"},
	{35, 1.0, "D"},
}

// GradeFor maps a percentage to (gpa, letter grade).
func GradeFor(percentage float64) (gpa float64, grade string) {
	for _, band := range gradeBands {
		if percentage >= band.Threshold {
			return band.GPA, band.Grade
		}
	}
	return 0.0, "NG"
}

// Percentage computes total/full*100, or 0 when fullMarks is 0.
func Percentage(total, fullMarks float64) float64 {
	if fullMarks == 0 {
		return 0
	}
	return total / fullMarks * 100
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine executes the exam workflows against a Store.
type Engine struct {
	store school.Store
}

func NewEngine(store school.Store) *Engine {
	return &Engine{store: store}
}

// RecordResult derives and persists a new subject result, then recomputes
// the student's rollup and the class ranking for the exam - all in one
// transaction. A second result for the same (student, exam detail) is a
// conflict; use UpdateResult to correct marks.
func (e *Engine) RecordResult(ctx context.Context, in RecordResultInput) (*ResultOutcome, error) {
	return e.writeResult(ctx, in, false)
}

// UpdateResult corrects the marks of an existing subject result and runs
// the same rollup/ranking cascade.
func (e *Engine) UpdateResult(ctx context.Context, in RecordResultInput) (*ResultOutcome, error) {
	return e.writeResult(ctx, in, true)
}

func (e *Engine) writeResult(ctx context.Context, in RecordResultInput, update bool) (*ResultOutcome, error) {
	if in.Practical < 0 {
		return nil, school.NewValidationError("practical_marks", "must not be negative")
	}
	if in.Theory < 0 {
		return nil, school.NewValidationError("theory_marks", "must not be negative")
	}

	detail, err := e.store.GetExamDetail(ctx, in.ExamDetailID)
	if err != nil {
		return nil, err
	}
	student, err := e.store.GetStudent(ctx, in.StudentID)
	if err != nil {
		return nil, err
	}

	total := in.Practical + in.Theory
	if total > detail.FullMarks {
		return nil, &school.MarksExceedError{
			StudentID:    in.StudentID,
			ExamDetailID: in.ExamDetailID,
			TotalMarks:   total,
			FullMarks:    detail.FullMarks,
		}
	}

	percentage := Percentage(total, detail.FullMarks)
	gpa, grade := GradeFor(percentage)

	result := school.StudentResult{
		StudentID:    in.StudentID,
		ExamDetailID: in.ExamDetailID,
		ExamID:       detail.ExamID,
		ClassID:      detail.ClassID,
		Practical:    in.Practical,
		Theory:       in.Theory,
		Total:        total,
		FullMarks:    detail.FullMarks,
		Percentage:   percentage,
		GPA:          gpa,
		Grade:        grade,
		UpdatedAt:    time.Now().UTC(),
	}

	var outcome ResultOutcome
	err = e.store.WithTx(ctx, func(tx school.Store) error {
		existing, err := tx.GetResult(ctx, in.StudentID, in.ExamDetailID)
		if err != nil && !errors.Is(err, school.ErrNotFound) {
			return err
		}
		if !update && existing != nil {
			return school.ErrDuplicateResult
		}
		if update && existing == nil {
			return school.ErrResultNotFound
		}

		if err := tx.SaveResult(ctx, result); err != nil {
			return err
		}

		// Cascade: rollup first, then class-wide rank recomputation,
		// both inside this transaction.
		overall, err := rollup(ctx, tx, *student, detail.ExamID, detail.ClassID)
		if err != nil {
			return err
		}
		ranks, err := recalculateRankings(ctx, tx, detail.ExamID, detail.ClassID)
		if err != nil {
			return err
		}

		// The rollup we return carries the rank just assigned to it.
		for _, row := range ranks {
			if row.StudentID == student.ID {
				overall.Rank = row.Rank
			}
		}

		outcome = ResultOutcome{Result: result, Overall: overall, UpdatedRanks: ranks}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &outcome, nil
}
