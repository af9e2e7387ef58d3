/*
records.go - Persistent workflow records: bills, payments, ledger, results

PURPOSE:
  The balance-affecting and result-bearing records written by the finance
  and exams engines. These are plain data records; every derived field
  (subtotal, total, balance, percentage, gpa, grade, rank) is computed by
  an engine and never set directly by callers.

CRITICAL INVARIANTS:
  1. LedgerEntry is APPEND-ONLY: never mutated or deleted in normal operation.
  2. A LedgerEntry references exactly one of {Bill, Payment} (mutually exclusive),
     expressed by Kind + DocumentNumber.
  3. Balance on a LedgerEntry is the running balance AFTER applying the entry.
  4. TransactionDate is copied from the bill/payment's own date, not the
     wall-clock insert time.
  5. Replaying a student's entries in (TransactionDate, Seq) order from zero
     reproduces every stored Balance exactly.

SEE ALSO:
  - finance/ledger.go: The engine that appends and replays these records
  - exams/ranking.go: Producer of StudentOverallResult and rank rows
*/
package school

import "time"

// =============================================================================
// BILLS
// =============================================================================

// BillItem is one fee-category line on a bill. Scholarship lines are
// recorded for the statement but contribute 0 to the subtotal; Amount
// holds the contributed amount (0 when Scholarship is true).
type BillItem struct {
	CategoryID   CategoryID
	CategoryName string
	Scholarship  bool
	Amount       Money
}

// Bill is one billing event for a student for a month. Subtotal and Total
// are always derived by the billing engine:
//
//	Subtotal = Σ(non-scholarship line amounts) + transport fare
//	Total    = max(Subtotal - Discount, 0)
type Bill struct {
	Number       string // e.g. "2026B07" - assigned once, never reassigned
	StudentID    StudentID
	Month        BillMonth
	Items        []BillItem
	RouteID      RouteID // optional transport route reference ("" = none)
	TransportFee Money
	Remarks      string
	Subtotal     Money
	Discount     Money
	Total        Money
	Date         time.Time // transaction date carried onto the ledger entry
	CreatedBy    string
	CreatedAt    time.Time
}

// =============================================================================
// PAYMENTS
// =============================================================================

// Payment is one payment event against a student's balance.
type Payment struct {
	Number     string // e.g. "2026P03" - sequential per student
	StudentID  StudentID
	AmountPaid Money
	Remarks    string
	Date       time.Time
	CreatedBy  string
	CreatedAt  time.Time
}

// =============================================================================
// LEDGER
// =============================================================================

// EntryKind distinguishes the two balance-affecting event types.
type EntryKind string

const (
	EntryBill    EntryKind = "bill"    // increases the running balance
	EntryPayment EntryKind = "payment" // decreases the running balance
)

// LedgerEntry records one balance-affecting event and the balance after it.
// Seq is assigned by the store on append and breaks ties between entries
// sharing a TransactionDate (insertion order).
//
// Denormalized context (DocumentNumber, Month, Remarks, Amount) lets a
// statement render without further joins.
type LedgerEntry struct {
	ID              string
	StudentID       StudentID
	Kind            EntryKind
	DocumentNumber  string // bill number or payment number
	Month           BillMonth
	Remarks         string
	Amount          Money // bill total or payment amount (always >= 0)
	Balance         Money // running balance after this entry
	TransactionDate time.Time
	Seq             int64 // insertion order, assigned by the store
	CreatedAt       time.Time
}

// Delta is the signed effect of the entry on the running balance.
func (e LedgerEntry) Delta() Money {
	if e.Kind == EntryPayment {
		return e.Amount.Neg()
	}
	return e.Amount
}

// =============================================================================
// EXAM RESULTS
// =============================================================================

// StudentResult is one student's marks for one exam detail.
// Total/Percentage/GPA/Grade are derived by the grading engine.
// FullMarks is snapshotted from the exam detail at write time so rollups
// need no join. Unique on (StudentID, ExamDetailID).
type StudentResult struct {
	StudentID    StudentID
	ExamDetailID ExamDetailID
	ExamID       ExamID
	ClassID      ClassID
	Practical    float64
	Theory       float64
	Total        float64
	FullMarks    float64
	Percentage   float64
	GPA          float64
	Grade        string
	UpdatedAt    time.Time
}

// StudentOverallResult is the per-(student, exam) rollup. Recomputed on
// every subject-result change, never independently authored.
// Rank is assigned by the ranking engine within (ClassID, ExamID).
type StudentOverallResult struct {
	StudentID   StudentID
	StudentName string // denormalized for deterministic tie-break + display
	ExamID      ExamID
	ClassID     ClassID
	TotalMarks  float64
	FullMarks   float64
	Percentage  float64
	GPA         float64
	Grade       string
	Rank        int
	UpdatedAt   time.Time
}
