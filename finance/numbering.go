/*
numbering.go - Sequential, collision-checked document numbers

PURPOSE:
  Generates the human-readable identifiers printed on bills and payment
  receipts: "{year}{letter}{sequence}" with letter B for bills and P for
  payments, and a zero-padded 2-digit sequence that grows naturally past
  two digits (2026B07, 2026B99, 2026B100).

SCOPES:
  Bill sequence    - global count of all bills
  Payment sequence - count of payments for that student only

ALGORITHM:
  Compute a candidate from current count + attempt number, check it
  against persisted records, and advance the attempt on collision. The
  loop is bounded: exhaustion surfaces as ErrNumberingExhausted, logged
  by callers as near-fatal since it indicates sustained contention.
  Callers run this inside the same store transaction as the owning
  record, holding the per-student lock, so under normal operation the
  first candidate wins.

SEE ALSO:
  - billing.go, payment.go: Callers
  - school/errors.go: ErrNumberingExhausted
*/
package finance

import (
	"context"
	"fmt"

	"github.com/campusworks/school-engine/school"
)

const (
	billLetter    = "B"
	paymentLetter = "P"

	// maxNumberingAttempts bounds the collision-retry loop.
	maxNumberingAttempts = 100
)

// formatDocumentNumber renders "{year}{letter}{sequence}" with the
// sequence zero-padded to 2 digits.
func formatDocumentNumber(year int, letter string, sequence int) string {
	return fmt.Sprintf("%d%s%02d", year, letter, sequence)
}

// nextBillNumber finds a free bill number. The sequence scope is the
// global bill count.
func nextBillNumber(ctx context.Context, s school.FinanceStore, year int) (string, error) {
	count, err := s.CountBills(ctx)
	if err != nil {
		return "", fmt.Errorf("count bills: %w", err)
	}

	for attempt := 1; attempt <= maxNumberingAttempts; attempt++ {
		candidate := formatDocumentNumber(year, billLetter, count+attempt)
		taken, err := s.BillNumberTaken(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check bill number %s: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", school.ErrNumberingExhausted
}

// nextPaymentNumber finds a free payment number for one student. The
// sequence scope is that student's payment count.
func nextPaymentNumber(ctx context.Context, s school.FinanceStore, studentID school.StudentID, year int) (string, error) {
	count, err := s.CountPayments(ctx, studentID)
	if err != nil {
		return "", fmt.Errorf("count payments: %w", err)
	}

	for attempt := 1; attempt <= maxNumberingAttempts; attempt++ {
		candidate := formatDocumentNumber(year, paymentLetter, count+attempt)
		taken, err := s.PaymentNumberTaken(ctx, studentID, candidate)
		if err != nil {
			return "", fmt.Errorf("check payment number %s: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", school.ErrNumberingExhausted
}
