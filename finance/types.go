/*
Package finance provides the billing, payment, document numbering and
ledger engines.

PURPOSE:
  Everything that affects a student's running balance lives here. Bills
  add to the balance, payments subtract from it, and every change is
  recorded as an append-only ledger entry carrying the balance after it.

CRITICAL INVARIANTS:
  1. A bill/payment and its ledger entry persist in ONE atomic unit of
     work: the source record never exists without its ledger entry.
  2. Replaying a student's ledger in (transaction date, insertion order)
     from zero reproduces every stored balance.
  3. Bill totals are derived: total = max(subtotal - discount, 0).
     A scholarship line contributes 0 to the subtotal.
  4. Document numbers are assigned once at creation and never reassigned.

CONCURRENCY:
  Ledger-mutating operations for the same student are serialized on a
  per-student lock. The pre-balance read and the numbering count would
  otherwise race under concurrent writers for one student; the lock
  closes that window (the bounded numbering retry loop remains as a
  second line of defense).

KEY FILES:
  types.go     - Engine inputs and outputs (this file)
  numbering.go - Sequential, collision-checked document numbers
  ledger.go    - Pre-balance lookup, entry construction, statement reads
  billing.go   - Bill creation and total recomputation
  payment.go   - Payment creation

SEE ALSO:
  - school/records.go: The persisted record types
  - school/store.go: The persistence surface these engines drive
*/
package finance

import (
	"time"

	"github.com/campusworks/school-engine/school"
)

// =============================================================================
// ENGINE INPUTS
// =============================================================================

// BillLine selects one fee category for a bill, optionally waived by
// scholarship. Scholarship lines stay on the bill with amount 0.
type BillLine struct {
	CategoryID  school.CategoryID
	Scholarship bool
}

// CreateBillInput is the input to Engine.CreateBill.
type CreateBillInput struct {
	StudentID school.StudentID
	Month     school.BillMonth
	Lines     []BillLine
	RouteID   school.RouteID // optional transport route ("" = none)
	Discount  school.Money
	Remarks   string
	Date      time.Time // billing date; zero means today
	CreatedBy string
}

// CreatePaymentInput is the input to Engine.CreatePayment.
type CreatePaymentInput struct {
	StudentID  school.StudentID
	AmountPaid school.Money
	Remarks    string
	Date       time.Time // payment date; zero means today
	CreatedBy  string
}

// =============================================================================
// ENGINE OUTPUTS
// =============================================================================

// BillReceipt is returned by CreateBill: the persisted bill and the
// ledger entry written with it.
type BillReceipt struct {
	Bill  school.Bill
	Entry school.LedgerEntry
}

// PaymentReceipt is returned by CreatePayment.
type PaymentReceipt struct {
	Payment school.Payment
	Entry   school.LedgerEntry
}

// StatementLine is one row of a student's ledger statement. Denormalized
// so rendering needs no further lookups.
type StatementLine struct {
	Kind            school.EntryKind
	ReferenceNumber string // bill number or payment number
	Month           school.BillMonth
	Remarks         string
	Date            time.Time
	Amount          school.Money
	RunningBalance  school.Money
}
