/*
errors.go - Centralized error taxonomy for the school engine

PURPOSE:
  All error categories in one place for consistency and discoverability.
  The finance and exams engines wrap these with additional context.

ERROR CATEGORIES:
  1. Validation errors  - Malformed/out-of-range caller input (no partial write)
  2. Conflict errors    - Duplicate bill/result, numbering exhaustion
  3. Invariant errors   - Marks exceed full marks (rejected before persistence)
  4. Not-found errors   - Referenced student/exam/class/category missing
  5. Integrity failures - Atomic block failed; everything rolled back

USAGE:
  Engines return structured errors that unwrap to these sentinels:

    if errors.Is(err, school.ErrDuplicateBill) {
        // second bill for the same (student, month)
    }

SEE ALSO:
  - api/handlers.go: Maps these categories to HTTP status codes
  - finance/, exams/: Producers of these errors
*/
package school

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the base class for malformed caller input
	// (negative payment amount, missing field, bad month format).
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateBill is returned when a bill already exists for the
	// same (student, month).
	ErrDuplicateBill = errors.New("bill already exists for this month")

	// ErrDuplicateResult is returned when a result already exists for the
	// same (student, exam detail).
	ErrDuplicateResult = errors.New("result already exists for this exam subject")

	// ErrDuplicateExamDetail is returned on a second (exam, subject, class) pairing.
	ErrDuplicateExamDetail = errors.New("exam detail already exists for this subject and class")

	// ErrNumberingExhausted is returned when the document numbering retry
	// loop cannot find a free number. Sustained contention; near-fatal.
	ErrNumberingExhausted = errors.New("document numbering exhausted retries")

	// ErrMarksExceedFullMarks is returned when total marks exceed the
	// exam detail's full marks. Rejected before any persistence.
	ErrMarksExceedFullMarks = errors.New("total marks exceed full marks")

	// ErrAmbiguousClass is returned when an exam detail's class cannot be
	// derived from the subject and none was given explicitly.
	ErrAmbiguousClass = errors.New("class cannot be derived from subject")

	// ErrResultsNotPublished gates ranking/result reads until the exam's
	// results are published.
	ErrResultsNotPublished = errors.New("exam results are not published")

	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrStudentNotFound and friends specialize ErrNotFound for common lookups.
	ErrStudentNotFound    = fmt.Errorf("student: %w", ErrNotFound)
	ErrClassNotFound      = fmt.Errorf("class: %w", ErrNotFound)
	ErrSubjectNotFound    = fmt.Errorf("subject: %w", ErrNotFound)
	ErrCategoryNotFound   = fmt.Errorf("fee category: %w", ErrNotFound)
	ErrRouteNotFound      = fmt.Errorf("transport route: %w", ErrNotFound)
	ErrExamNotFound       = fmt.Errorf("exam: %w", ErrNotFound)
	ErrExamDetailNotFound = fmt.Errorf("exam detail: %w", ErrNotFound)
	ErrBillNotFound       = fmt.Errorf("bill: %w", ErrNotFound)
	ErrResultNotFound     = fmt.Errorf("result: %w", ErrNotFound)

	// ErrIntegrity is returned when an atomic block fails partway.
	// The store guarantees full rollback; no partial ledger state is
	// ever observable.
	ErrIntegrity = errors.New("integrity failure: operation rolled back")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a field-level validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// DuplicateBillError reports which (student, month) already has a bill.
type DuplicateBillError struct {
	StudentID StudentID
	Month     BillMonth
}

func (e *DuplicateBillError) Error() string {
	return fmt.Sprintf("bill already exists for student %s in %s", e.StudentID, e.Month)
}

func (e *DuplicateBillError) Unwrap() error { return ErrDuplicateBill }

// MarksExceedError reports a full-marks ceiling violation.
type MarksExceedError struct {
	StudentID    StudentID
	ExamDetailID ExamDetailID
	TotalMarks   float64
	FullMarks    float64
}

func (e *MarksExceedError) Error() string {
	return fmt.Sprintf("total marks %.2f exceed full marks %.2f for exam detail %s",
		e.TotalMarks, e.FullMarks, e.ExamDetailID)
}

func (e *MarksExceedError) Unwrap() error { return ErrMarksExceedFullMarks }

// =============================================================================
// ERROR CLASSIFICATION HELPERS
// =============================================================================

// IsNotFound reports whether err indicates a missing record (404-equivalent).
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether err is due to invalid caller input (400).
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConflict reports whether err is a duplicate/contention rejection (409).
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateBill) ||
		errors.Is(err, ErrDuplicateResult) ||
		errors.Is(err, ErrDuplicateExamDetail) ||
		errors.Is(err, ErrNumberingExhausted) ||
		errors.Is(err, ErrResultsNotPublished)
}

// IsInvariantViolation reports a business invariant rejection (422).
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrMarksExceedFullMarks) ||
		errors.Is(err, ErrAmbiguousClass)
}
