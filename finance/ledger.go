/*
ledger.go - Running-balance ledger: pre-balance reads, entry construction,
statement rendering, replay verification

PURPOSE:
  The ledger is the append-only record of a student's balance history.
  Adding a bill:    post_balance = pre_balance + bill.Total
  Adding a payment: post_balance = pre_balance - payment.AmountPaid
  pre_balance is the balance of the entry with the latest transaction
  date for the student (ties broken by insertion order), or zero.
  A document dated before the latest entry is rejected: it would be
  ordered ahead of the balance it was derived from and the ledger would
  no longer replay to its stored balances.

FAILURE SEMANTICS:
  Entry construction happens inside the same store transaction as the
  source bill/payment. If the append fails, the whole unit rolls back;
  a bill or payment never persists without its ledger entry.

SEE ALSO:
  - billing.go, payment.go: The writers
  - school/records.go: LedgerEntry invariants
*/
package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/campusworks/school-engine/school"
)

// =============================================================================
// PRE-BALANCE
// =============================================================================

// preBalance returns the student's running balance before a new entry
// dated docDate: the balance of the latest ledger entry, or zero if
// none exists. A document dated before the latest entry would sort
// earlier than the balance it was computed from and break replay, so
// backdating past the latest entry is rejected. Same-date documents
// are fine; insertion order breaks the tie.
func preBalance(ctx context.Context, s school.FinanceStore, studentID school.StudentID, docDate time.Time) (school.Money, error) {
	latest, err := s.LatestLedgerEntry(ctx, studentID)
	if err != nil {
		return school.ZeroMoney(), fmt.Errorf("latest ledger entry: %w", err)
	}
	if latest == nil {
		return school.ZeroMoney(), nil
	}
	if docDate.Before(latest.TransactionDate) {
		return school.ZeroMoney(), school.NewValidationError("date",
			fmt.Sprintf("must not predate the latest ledger entry (%s)",
				latest.TransactionDate.Format("2006-01-02")))
	}
	return latest.Balance, nil
}

// =============================================================================
// ENTRY CONSTRUCTION
// =============================================================================

// billEntry builds the ledger entry for a bill. The transaction date is
// the bill's own date, not the wall-clock insert time.
func billEntry(b school.Bill, balanceAfter school.Money) school.LedgerEntry {
	return school.LedgerEntry{
		ID:              school.NewID(),
		StudentID:       b.StudentID,
		Kind:            school.EntryBill,
		DocumentNumber:  b.Number,
		Month:           b.Month,
		Remarks:         b.Remarks,
		Amount:          b.Total,
		Balance:         balanceAfter,
		TransactionDate: b.Date,
		CreatedAt:       b.CreatedAt,
	}
}

// paymentEntry builds the ledger entry for a payment.
func paymentEntry(p school.Payment, balanceAfter school.Money) school.LedgerEntry {
	return school.LedgerEntry{
		ID:              school.NewID(),
		StudentID:       p.StudentID,
		Kind:            school.EntryPayment,
		DocumentNumber:  p.Number,
		Remarks:         p.Remarks,
		Amount:          p.AmountPaid,
		Balance:         balanceAfter,
		TransactionDate: p.Date,
		CreatedAt:       p.CreatedAt,
	}
}

// =============================================================================
// STATEMENT READS
// =============================================================================

// Statement returns the student's ledger as denormalized statement lines
// in chronological order with the running balance at each step.
func (e *Engine) Statement(ctx context.Context, studentID school.StudentID) ([]StatementLine, error) {
	if _, err := e.store.GetStudent(ctx, studentID); err != nil {
		return nil, err
	}

	entries, err := e.store.LedgerEntries(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("ledger entries: %w", err)
	}

	lines := make([]StatementLine, len(entries))
	for i, entry := range entries {
		lines[i] = StatementLine{
			Kind:            entry.Kind,
			ReferenceNumber: entry.DocumentNumber,
			Month:           entry.Month,
			Remarks:         entry.Remarks,
			Date:            entry.TransactionDate,
			Amount:          entry.Amount,
			RunningBalance:  entry.Balance,
		}
	}
	return lines, nil
}

// =============================================================================
// REPLAY VERIFICATION
// =============================================================================

// VerifyReplay replays entries (already in ledger order) from a zero
// balance and checks that every stored balance matches the recomputed
// one. Returns nil when the ledger is internally consistent.
func VerifyReplay(entries []school.LedgerEntry) error {
	balance := school.ZeroMoney()
	for i, entry := range entries {
		balance = balance.Add(entry.Delta())
		if !balance.Equal(entry.Balance) {
			return fmt.Errorf("ledger replay mismatch at entry %d (%s): stored %s, replayed %s",
				i, entry.DocumentNumber, entry.Balance, balance)
		}
	}
	return nil
}
