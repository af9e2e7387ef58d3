/*
ranking.go - Result rollup and class rank recomputation

PURPOSE:
  rollup:               (student, exam) aggregate from all subject results
  recalculateRankings:  ranks for the whole class for that exam

RANKING ALGORITHM:
  Rows are sorted by total marks descending, ties broken by student name
  ascending (deterministic ordering only - the name carries no ranking
  meaning). Rank assignment advances only at positions where the total
  changes from the previous row:

    rank = 1
    for idx, row := range sorted {
        if idx > 0 && sorted[idx-1].total != row.total {
            rank = idx + 1
        }
        row.rank = rank
    }

  Totals [80, 80, 75, 75] therefore rank [1, 1, 3, 3] - equal totals
  share the rank of their first position, and the next distinct total
  takes its 1-based position, leaving gaps. This variant is preserved
  deliberately; do not "correct" it to pure dense ranking ([1, 1, 2, 2]).

COST:
  One rollup + one O(class size) rank pass per result write. Fine at
  school scale (tens to low hundreds of students per class).
*/
package exams

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/campusworks/school-engine/school"
)

// =============================================================================
// ROLLUP
// =============================================================================

// rollup recomputes the (student, exam) aggregate from all the student's
// subject results for the exam and upserts it. The rank is recomputed by
// the caller right after; an existing rank is carried until then.
func rollup(ctx context.Context, tx school.Store, student school.Student, examID school.ExamID, classID school.ClassID) (school.StudentOverallResult, error) {
	results, err := tx.ResultsForStudentExam(ctx, student.ID, examID)
	if err != nil {
		return school.StudentOverallResult{}, err
	}

	var totalObtained, totalFull float64
	for _, r := range results {
		totalObtained += r.Total
		totalFull += r.FullMarks
	}

	percentage := Percentage(totalObtained, totalFull)
	gpa, grade := GradeFor(percentage)

	overall := school.StudentOverallResult{
		StudentID:   student.ID,
		StudentName: student.Name,
		ExamID:      examID,
		ClassID:     classID,
		TotalMarks:  totalObtained,
		FullMarks:   totalFull,
		Percentage:  percentage,
		GPA:         gpa,
		Grade:       grade,
		UpdatedAt:   time.Now().UTC(),
	}

	if existing, err := tx.GetOverallResult(ctx, student.ID, examID); err == nil && existing != nil {
		overall.Rank = existing.Rank
	} else if err != nil && !errors.Is(err, school.ErrNotFound) {
		return school.StudentOverallResult{}, err
	}

	if err := tx.SaveOverallResult(ctx, overall); err != nil {
		return school.StudentOverallResult{}, err
	}
	return overall, nil
}

// =============================================================================
// RANK RECOMPUTATION
// =============================================================================

// recalculateRankings reassigns ranks for every rollup in (exam, class)
// and persists them, returning the full ranking in order.
func recalculateRankings(ctx context.Context, tx school.Store, examID school.ExamID, classID school.ClassID) ([]RankRow, error) {
	rows, err := tx.OverallResultsForClassExam(ctx, examID, classID)
	if err != nil {
		return nil, err
	}

	sortForRanking(rows)

	rank := 1
	out := make([]RankRow, 0, len(rows))
	for idx := range rows {
		if idx > 0 && rows[idx-1].TotalMarks != rows[idx].TotalMarks {
			rank = idx + 1
		}
		rows[idx].Rank = rank
		if err := tx.SaveOverallResult(ctx, rows[idx]); err != nil {
			return nil, err
		}
		out = append(out, toRankRow(rows[idx]))
	}
	return out, nil
}

// sortForRanking orders rollups by total marks descending, name ascending.
func sortForRanking(rows []school.StudentOverallResult) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].TotalMarks != rows[j].TotalMarks {
			return rows[i].TotalMarks > rows[j].TotalMarks
		}
		return rows[i].StudentName < rows[j].StudentName
	})
}

func toRankRow(r school.StudentOverallResult) RankRow {
	return RankRow{
		StudentID:   r.StudentID,
		StudentName: r.StudentName,
		TotalMarks:  r.TotalMarks,
		FullMarks:   r.FullMarks,
		Percentage:  r.Percentage,
		GPA:         r.GPA,
		Grade:       r.Grade,
		Rank:        r.Rank,
	}
}

// =============================================================================
// RANKING READS
// =============================================================================

// Rankings returns the ordered class ranking for an exam. Reads are
// gated on the exam's results-published flag.
func (e *Engine) Rankings(ctx context.Context, examID school.ExamID, classID school.ClassID) ([]RankRow, error) {
	exam, err := e.store.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if !exam.ResultsPublished {
		return nil, school.ErrResultsNotPublished
	}
	if _, err := e.store.GetClass(ctx, classID); err != nil {
		return nil, err
	}

	rows, err := e.store.OverallResultsForClassExam(ctx, examID, classID)
	if err != nil {
		return nil, err
	}
	sortForRanking(rows)

	out := make([]RankRow, len(rows))
	for i, r := range rows {
		out[i] = toRankRow(r)
	}
	return out, nil
}
