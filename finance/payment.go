/*
payment.go - Payment recording

PURPOSE:
  Records a payment against a student and appends the matching debit
  ledger entry in one atomic unit of work. Payment numbers are
  sequential per student.

VALIDATION:
  amount_paid >= 0, else rejected. Overpayment IS accepted: nothing
  caps a payment at the outstanding balance, so the running balance may
  go negative (student in credit). Preserved behavior.

SEE ALSO:
  - numbering.go: Student-scoped payment numbers
  - ledger.go: Entry construction and pre-balance
*/
package finance

import (
	"context"
	"log"
	"time"

	"github.com/campusworks/school-engine/school"
)

// CreatePayment validates the input, assigns a student-scoped payment
// number and persists payment + ledger entry atomically.
func (e *Engine) CreatePayment(ctx context.Context, in CreatePaymentInput) (*PaymentReceipt, error) {
	if in.AmountPaid.IsNegative() {
		return nil, school.NewValidationError("amount_paid", "must not be negative")
	}
	if _, err := e.store.GetStudent(ctx, in.StudentID); err != nil {
		return nil, err
	}

	date := in.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	lock := e.studentLock(in.StudentID)
	lock.Lock()
	defer lock.Unlock()

	var receipt PaymentReceipt
	err := e.store.WithTx(ctx, func(tx school.Store) error {
		number, err := nextPaymentNumber(ctx, tx, in.StudentID, date.Year())
		if err != nil {
			return err
		}

		payment := school.Payment{
			Number:     number,
			StudentID:  in.StudentID,
			AmountPaid: in.AmountPaid,
			Remarks:    in.Remarks,
			Date:       date,
			CreatedBy:  in.CreatedBy,
			CreatedAt:  time.Now().UTC(),
		}
		if err := tx.CreatePayment(ctx, payment); err != nil {
			return err
		}

		pre, err := preBalance(ctx, tx, in.StudentID, payment.Date)
		if err != nil {
			return err
		}
		entry := paymentEntry(payment, pre.Sub(payment.AmountPaid))
		if err := tx.AppendLedgerEntry(ctx, entry); err != nil {
			return err
		}

		receipt = PaymentReceipt{Payment: payment, Entry: entry}
		return nil
	})
	if err != nil {
		if school.IsConflict(err) {
			log.Printf("payment: numbering contention for student %s: %v", in.StudentID, err)
		}
		return nil, err
	}

	return &receipt, nil
}
