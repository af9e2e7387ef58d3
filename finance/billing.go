/*
billing.go - Bill creation and total computation

PURPOSE:
  Creates one bill per (student, month) from selected fee-category line
  items, an optional transport route and a discount, then appends the
  matching ledger entry - all in one atomic unit of work.

TOTALS:
  subtotal = Σ(category amount for non-scholarship lines) + transport fare
  total    = max(subtotal - discount, 0)
  Scholarship lines are recorded with amount 0 so statements can still
  show the waived category. Negative totals are clamped, not rejected.

RECOMPUTATION:
  RecalculateTotals is a pure, idempotent function over current line
  items; creation uses it and it is safe to call again. Bills are not
  editable after creation, so the ledger entry written at creation can
  never go stale.

SEE ALSO:
  - numbering.go: Bill number assignment
  - ledger.go: Entry construction and pre-balance
*/
package finance

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/campusworks/school-engine/school"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine executes the finance workflows against a Store. One Engine per
// process; it owns the per-student locks that serialize ledger mutation.
type Engine struct {
	store school.Store

	mu    sync.Mutex
	locks map[school.StudentID]*sync.Mutex
}

func NewEngine(store school.Store) *Engine {
	return &Engine{
		store: store,
		locks: make(map[school.StudentID]*sync.Mutex),
	}
}

// studentLock returns the mutex serializing ledger mutation for one
// student, creating it on first use. The pre-balance read and the
// payment-number count are read-then-write; this lock makes them safe
// for same-student concurrency.
func (e *Engine) studentLock(id school.StudentID) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	return l
}

// =============================================================================
// TOTAL COMPUTATION (pure)
// =============================================================================

// RecalculateTotals derives a bill's subtotal and total from its current
// line items, transport fee and discount. Idempotent; callable again
// safely.
func RecalculateTotals(items []school.BillItem, transportFee, discount school.Money) (subtotal, total school.Money) {
	subtotal = school.ZeroMoney()
	for _, item := range items {
		if !item.Scholarship {
			subtotal = subtotal.Add(item.Amount)
		}
	}
	subtotal = subtotal.Add(transportFee)
	total = subtotal.Sub(discount).ClampNonNegative()
	return subtotal, total
}

// =============================================================================
// BILL CREATION
// =============================================================================

// CreateBill validates the input, computes the bill's derived totals,
// assigns a bill number and persists bill + line items + ledger entry as
// one atomic unit. Any failure rolls back all of it.
func (e *Engine) CreateBill(ctx context.Context, in CreateBillInput) (*BillReceipt, error) {
	if !in.Month.Valid() {
		return nil, school.NewValidationError("month", "must be formatted YYYY-MM")
	}
	if len(in.Lines) == 0 && in.RouteID == "" {
		return nil, school.NewValidationError("lines", "at least one fee line or a transport route is required")
	}
	if in.Discount.IsNegative() {
		return nil, school.NewValidationError("discount", "must not be negative")
	}
	student, err := e.store.GetStudent(ctx, in.StudentID)
	if err != nil {
		return nil, err
	}

	date := in.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	// Resolve line items against live category definitions. Categories
	// are class-scoped; a line for another class's category is rejected.
	// Scholarship lines are kept with amount 0.
	items := make([]school.BillItem, 0, len(in.Lines))
	for _, line := range in.Lines {
		cat, err := e.store.GetFeeCategory(ctx, line.CategoryID)
		if err != nil {
			return nil, err
		}
		if cat.ClassID != student.ClassID {
			return nil, school.NewValidationError("lines",
				fmt.Sprintf("fee category %s belongs to another class", cat.ID))
		}
		amount := cat.Amount
		if line.Scholarship {
			amount = school.ZeroMoney()
		}
		items = append(items, school.BillItem{
			CategoryID:   cat.ID,
			CategoryName: cat.Name,
			Scholarship:  line.Scholarship,
			Amount:       amount,
		})
	}

	transportFee := school.ZeroMoney()
	if in.RouteID != "" {
		route, err := e.store.GetTransportRoute(ctx, in.RouteID)
		if err != nil {
			return nil, err
		}
		transportFee = route.Fare
	}

	subtotal, total := RecalculateTotals(items, transportFee, in.Discount)

	// Serialize the pre-balance read and the write for this student.
	lock := e.studentLock(in.StudentID)
	lock.Lock()
	defer lock.Unlock()

	exists, err := e.store.BillExists(ctx, in.StudentID, in.Month)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, &school.DuplicateBillError{StudentID: in.StudentID, Month: in.Month}
	}

	var receipt BillReceipt
	err = e.store.WithTx(ctx, func(tx school.Store) error {
		number, err := nextBillNumber(ctx, tx, date.Year())
		if err != nil {
			return err
		}

		bill := school.Bill{
			Number:       number,
			StudentID:    in.StudentID,
			Month:        in.Month,
			Items:        items,
			RouteID:      in.RouteID,
			TransportFee: transportFee,
			Remarks:      in.Remarks,
			Subtotal:     subtotal,
			Discount:     in.Discount,
			Total:        total,
			Date:         date,
			CreatedBy:    in.CreatedBy,
			CreatedAt:    time.Now().UTC(),
		}
		if err := tx.CreateBill(ctx, bill); err != nil {
			return err
		}

		pre, err := preBalance(ctx, tx, in.StudentID, bill.Date)
		if err != nil {
			return err
		}
		entry := billEntry(bill, pre.Add(bill.Total))
		if err := tx.AppendLedgerEntry(ctx, entry); err != nil {
			return err
		}

		receipt = BillReceipt{Bill: bill, Entry: entry}
		return nil
	})
	if err != nil {
		if school.IsConflict(err) {
			log.Printf("billing: numbering contention for student %s: %v", in.StudentID, err)
		}
		return nil, err
	}

	return &receipt, nil
}
