/*
Package school provides the core domain model for the school management engine.

PURPOSE:
  This package contains the shared types and contracts used by the finance
  and exams engines: students, academic structures (classes, sections,
  subjects), fee definitions, money, and the persistence interfaces.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: Monetary amount backed by decimal.Decimal (never float)
  - Student: Identity + class placement; owner of bills/payments/ledger
  - ClassRoom/Subject: Academic structure
  - FeeCategory: Named, class-scoped fee amount (e.g., "Tuition" for Grade 5)
  - TransportRoute: Named route with a fare, referenced by bills
  - Exam/ExamDetail: Examination events and their (exam, subject, class) pairings
  - BillMonth: Billing period identifier ("2026-04")

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for money to avoid floating-point errors
  2. Type Safety: Strong typing for IDs prevents mixing student/class/exam IDs
  3. Derived fields are computed by the engines, never set by callers

SEE ALSO:
  - errors.go: Error taxonomy shared by all engines
  - store.go: Persistence interfaces implemented by school/store and store/sqlite
  - finance/: Billing, payment, numbering and ledger engines
  - exams/: Grading, rollup and ranking engines
*/
package school

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Monetary amount (decimal-backed)
// =============================================================================

// Money is a monetary amount. Running balances may be negative (a student
// can be in credit after overpaying), so no sign constraint lives here.
type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money      { return Money{Value: decimal.NewFromFloat(value)} }
func NewMoneyFromInt(value int64) Money { return Money{Value: decimal.NewFromInt(value)} }
func ZeroMoney() Money                  { return Money{Value: decimal.Zero} }

// ParseMoney parses a decimal string.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ZeroMoney(), fmt.Errorf("invalid money value %q: %w", s, err)
	}
	return Money{Value: d}, nil
}

// MustParseMoney parses a decimal string, returning zero on failure.
func MustParseMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ZeroMoney()
	}
	return Money{Value: d}
}

func (m Money) Add(b Money) Money        { return Money{Value: m.Value.Add(b.Value)} }
func (m Money) Sub(b Money) Money        { return Money{Value: m.Value.Sub(b.Value)} }
func (m Money) Neg() Money               { return Money{Value: m.Value.Neg()} }
func (m Money) IsNegative() bool         { return m.Value.IsNegative() }
func (m Money) IsZero() bool             { return m.Value.IsZero() }
func (m Money) IsPositive() bool         { return m.Value.IsPositive() }
func (m Money) LessThan(b Money) bool    { return m.Value.LessThan(b.Value) }
func (m Money) GreaterThan(b Money) bool { return m.Value.GreaterThan(b.Value) }
func (m Money) Equal(b Money) bool       { return m.Value.Equal(b.Value) }
func (m Money) String() string           { return m.Value.String() }
func (m Money) Float64() float64         { f, _ := m.Value.Float64(); return f }

// ClampNonNegative returns max(m, 0). Bill totals are clamped, never negative.
func (m Money) ClampNonNegative() Money {
	if m.IsNegative() {
		return ZeroMoney()
	}
	return m
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	StudentID    string
	ClassID      string
	SubjectID    string
	CategoryID   string
	RouteID      string
	ExamID       string
	ExamDetailID string
)

// NewID returns a fresh UUID string, used for all entity identifiers.
func NewID() string { return uuid.NewString() }

// =============================================================================
// BILL MONTH - Billing period ("YYYY-MM")
// =============================================================================

// BillMonth identifies a billing period. One bill per (student, month).
type BillMonth string

var billMonthRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

func NewBillMonth(year int, month time.Month) BillMonth {
	return BillMonth(fmt.Sprintf("%04d-%02d", year, int(month)))
}

func (m BillMonth) Valid() bool    { return billMonthRe.MatchString(string(m)) }
func (m BillMonth) String() string { return string(m) }

// =============================================================================
// STUDENTS & ACADEMIC STRUCTURE
// =============================================================================

// Student is the owner of bills, payments and ledger entries.
// A student is never hard-deleted while ledger entries exist.
type Student struct {
	ID        StudentID
	Name      string
	ClassID   ClassID
	Section   string
	RollNo    int
	CreatedAt time.Time
}

// ClassRoom is a grade level (e.g., "Grade 5"). Sections live on students.
type ClassRoom struct {
	ID        ClassID
	Name      string
	CreatedAt time.Time
}

// Subject belongs to exactly one class. ExamDetail derives its class from
// the subject when the caller does not name one explicitly.
type Subject struct {
	ID        SubjectID
	Name      string
	ClassID   ClassID
	CreatedAt time.Time
}

// =============================================================================
// FEE DEFINITIONS
// =============================================================================

// FeeCategory is a named fee type with a class-specific amount.
// The amount is immutable once defined; bill line items reference it live.
type FeeCategory struct {
	ID        CategoryID
	Name      string
	ClassID   ClassID
	Amount    Money
	CreatedAt time.Time
}

// TransportRoute is a named transport route with a fare. A bill may
// reference at most one route; its fare joins the bill subtotal.
type TransportRoute struct {
	ID        RouteID
	Name      string
	Fare      Money
	CreatedAt time.Time
}

// =============================================================================
// EXAMS
// =============================================================================

// Exam is a named examination event with two independent publication flags.
// TimetablePublished gates schedule visibility; ResultsPublished gates
// result/ranking visibility. Neither affects writes.
type Exam struct {
	ID                 ExamID
	Name               string
	TimetablePublished bool
	ResultsPublished   bool
	CreatedAt          time.Time
}

// ExamDetail pairs an exam with a subject for a class: full marks, pass
// marks, schedule. Unique on (exam, subject, class).
type ExamDetail struct {
	ID         ExamDetailID
	ExamID     ExamID
	SubjectID  SubjectID
	ClassID    ClassID
	FullMarks  float64
	PassMarks  float64
	ScheduleAt time.Time
	CreatedBy  string
	CreatedAt  time.Time
}
