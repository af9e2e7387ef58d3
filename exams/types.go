/*
Package exams provides the grading, result rollup and ranking engines.

PURPOSE:
  Turns raw marks into derived results and keeps the per-exam rollups
  and class rankings consistent with them. Every successful subject
  result write triggers, synchronously and inside the same transaction:

    1. Rollup:  recompute the student's (student, exam) aggregate
    2. Ranking: recompute ranks for the whole class for that exam

  so a result, its rollup and the class ranks can never be observed
  out of sync.

INVARIANTS:
  - total_marks = practical + theory, and total_marks <= full_marks
    (violations rejected before any persistence)
  - StudentResult is unique per (student, exam detail)
  - StudentOverallResult is derived, never independently authored

KEY FILES:
  types.go   - Engine inputs and outputs (this file)
  grading.go - Percentage/GPA/letter-grade derivation, result writes
  ranking.go - Rollup and the dense-with-gaps rank assignment
  exams.go   - Exam and exam-detail management, publication flags

SEE ALSO:
  - school/records.go: StudentResult / StudentOverallResult records
  - finance/: The sibling ledger subsystem, same atomic-unit discipline
*/
package exams

import (
	"time"

	"github.com/campusworks/school-engine/school"
)

// =============================================================================
// ENGINE INPUTS
// =============================================================================

// RecordResultInput is the input to RecordResult and UpdateResult.
// A missing practical or theory component is treated as 0 by the API
// layer before it reaches the engine.
type RecordResultInput struct {
	StudentID    school.StudentID
	ExamDetailID school.ExamDetailID
	Practical    float64
	Theory       float64
}

// CreateExamDetailInput pairs an exam with a subject. ClassID may be
// empty, in which case it is derived from the subject - and the call
// fails if the subject's name maps to zero or multiple classes.
type CreateExamDetailInput struct {
	ExamID     school.ExamID
	SubjectID  school.SubjectID
	ClassID    school.ClassID // optional; derived from subject when empty
	FullMarks  float64
	PassMarks  float64
	ScheduleAt time.Time
	CreatedBy  string
}

// =============================================================================
// ENGINE OUTPUTS
// =============================================================================

// ResultOutcome is returned by RecordResult/UpdateResult: the persisted
// subject result, the recomputed rollup, and every rank row updated by
// the class-wide recomputation.
type ResultOutcome struct {
	Result       school.StudentResult
	Overall      school.StudentOverallResult
	UpdatedRanks []RankRow
}

// RankRow is one row of a class ranking for an exam.
type RankRow struct {
	StudentID   school.StudentID
	StudentName string
	TotalMarks  float64
	FullMarks   float64
	Percentage  float64
	GPA         float64
	Grade       string
	Rank        int
}
