package finance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusworks/school-engine/finance"
	"github.com/campusworks/school-engine/school"
)

// =============================================================================
// STATEMENT TESTS
// =============================================================================

func TestStatement_RunningBalanceAcrossBillsAndPayments(t *testing.T) {
	// GIVEN: April bill 550, payment 300, May bill 550, payment 800
	// WHEN: Reading the statement
	// THEN: Lines come back in chronological order with running balances
	//       550, 250, 800, 0

	eng, _ := newTestFinanceEngine(t)
	ctx := context.Background()

	lines := []finance.BillLine{
		{CategoryID: "cat-tuition"},
		{CategoryID: "cat-library"},
	}

	_, err := eng.CreateBill(ctx, finance.CreateBillInput{
		StudentID: "stu-anita", Month: "2026-04", Lines: lines, Date: april(1),
	})
	require.NoError(t, err)

	_, err = eng.CreatePayment(ctx, finance.CreatePaymentInput{
		StudentID: "stu-anita", AmountPaid: school.MustParseMoney("300"), Date: april(10),
	})
	require.NoError(t, err)

	_, err = eng.CreateBill(ctx, finance.CreateBillInput{
		StudentID: "stu-anita", Month: "2026-05", Lines: lines,
		Date: time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	_, err = eng.CreatePayment(ctx, finance.CreatePaymentInput{
		StudentID: "stu-anita", AmountPaid: school.MustParseMoney("800"),
		Date: time.Date(2026, time.May, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	statement, err := eng.Statement(ctx, "stu-anita")
	require.NoError(t, err)
	require.Len(t, statement, 4)

	wantKinds := []school.EntryKind{school.EntryBill, school.EntryPayment, school.EntryBill, school.EntryPayment}
	wantBalances := []string{"550", "250", "800", "0"}
	for i, line := range statement {
		assert.Equal(t, wantKinds[i], line.Kind, "line %d kind", i)
		assert.Equal(t, wantBalances[i], line.RunningBalance.String(), "line %d balance", i)
	}

	// Bill lines keep their billing month; payment lines have none.
	assert.Equal(t, school.BillMonth("2026-04"), statement[0].Month)
	assert.Empty(t, statement[1].Month)
}

func TestStatement_IsolatedPerStudent(t *testing.T) {
	eng, _ := newTestFinanceEngine(t)
	ctx := context.Background()

	_, err := eng.CreateBill(ctx, finance.CreateBillInput{
		StudentID: "stu-anita", Month: "2026-04",
		Lines: []finance.BillLine{{CategoryID: "cat-tuition"}},
		Date:  april(1),
	})
	require.NoError(t, err)

	statement, err := eng.Statement(ctx, "stu-bikash")
	require.NoError(t, err)
	assert.Empty(t, statement)
}

func TestStatement_UnknownStudent_NotFound(t *testing.T) {
	eng, _ := newTestFinanceEngine(t)

	_, err := eng.Statement(context.Background(), "stu-ghost")
	require.Error(t, err)
	assert.True(t, school.IsNotFound(err))
}

// =============================================================================
// REPLAY VERIFICATION TESTS
// =============================================================================

func TestVerifyReplay_InterleavedLedgerIsConsistent(t *testing.T) {
	// GIVEN: A ledger built through the engine's own write paths
	// WHEN: Replaying it from zero
	// THEN: Every stored balance matches the replayed one

	eng, st := newTestFinanceEngine(t)
	ctx := context.Background()

	_, err := eng.CreateBill(ctx, finance.CreateBillInput{
		StudentID: "stu-anita", Month: "2026-04",
		Lines: []finance.BillLine{{CategoryID: "cat-tuition"}, {CategoryID: "cat-sports"}},
		Date:  april(1),
	})
	require.NoError(t, err)
	_, err = eng.CreatePayment(ctx, finance.CreatePaymentInput{
		StudentID: "stu-anita", AmountPaid: school.MustParseMoney("600"), Date: april(10),
	})
	require.NoError(t, err)
	_, err = eng.CreateBill(ctx, finance.CreateBillInput{
		StudentID: "stu-anita", Month: "2026-05", RouteID: "route-north",
		Date: time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	entries, err := st.LedgerEntries(ctx, "stu-anita")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.NoError(t, finance.VerifyReplay(entries))
}

func TestVerifyReplay_DetectsTamperedBalance(t *testing.T) {
	// GIVEN: A consistent ledger with one balance corrupted in memory
	// WHEN: Replaying it
	// THEN: The mismatch is reported at the corrupted entry

	eng, st := newTestFinanceEngine(t)
	ctx := context.Background()

	_, err := eng.CreateBill(ctx, finance.CreateBillInput{
		StudentID: "stu-anita", Month: "2026-04",
		Lines: []finance.BillLine{{CategoryID: "cat-tuition"}},
		Date:  april(1),
	})
	require.NoError(t, err)
	_, err = eng.CreatePayment(ctx, finance.CreatePaymentInput{
		StudentID: "stu-anita", AmountPaid: school.MustParseMoney("200"), Date: april(10),
	})
	require.NoError(t, err)

	entries, err := st.LedgerEntries(ctx, "stu-anita")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	entries[1].Balance = school.MustParseMoney("999")
	err = finance.VerifyReplay(entries)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replay mismatch")
}

func TestVerifyReplay_EmptyLedger(t *testing.T) {
	assert.NoError(t, finance.VerifyReplay(nil))
}

// =============================================================================
// ENTRY SEMANTICS TESTS
// =============================================================================

func TestLedgerEntry_DeltaSignsByKind(t *testing.T) {
	bill := school.LedgerEntry{Kind: school.EntryBill, Amount: school.MustParseMoney("100")}
	payment := school.LedgerEntry{Kind: school.EntryPayment, Amount: school.MustParseMoney("40")}

	assert.Equal(t, "100", bill.Delta().String())
	assert.Equal(t, "-40", payment.Delta().String())
}

func TestLedger_EntryTransactionDateIsDocumentDate(t *testing.T) {
	// The ledger orders by the bill/payment date, not the insert time, so
	// the entry must carry the document's own date.

	eng, _ := newTestFinanceEngine(t)
	ctx := context.Background()

	billDate := april(15)
	receipt, err := eng.CreateBill(ctx, finance.CreateBillInput{
		StudentID: "stu-anita", Month: "2026-04",
		Lines: []finance.BillLine{{CategoryID: "cat-tuition"}},
		Date:  billDate,
	})
	require.NoError(t, err)
	assert.True(t, receipt.Entry.TransactionDate.Equal(billDate))
}

// =============================================================================
// BACKDATING TESTS
// =============================================================================

func TestLedger_BackdatedPayment_Rejected(t *testing.T) {
	// GIVEN: A bill dated April 10
	// WHEN: Recording a payment dated April 5
	// THEN: The payment is rejected; it would sort before the bill while
	//       carrying a balance derived from it, and the ledger would no
	//       longer replay to its stored balances

	eng, st := newTestFinanceEngine(t)
	ctx := context.Background()

	_, err := eng.CreateBill(ctx, finance.CreateBillInput{
		StudentID: "stu-anita", Month: "2026-04",
		Lines: []finance.BillLine{{CategoryID: "cat-tuition"}},
		Date:  april(10),
	})
	require.NoError(t, err)

	_, err = eng.CreatePayment(ctx, finance.CreatePaymentInput{
		StudentID: "stu-anita", AmountPaid: school.MustParseMoney("100"), Date: april(5),
	})
	require.Error(t, err)
	assert.True(t, school.IsValidation(err))

	entries, err := st.LedgerEntries(ctx, "stu-anita")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NoError(t, finance.VerifyReplay(entries))
}

func TestLedger_BackdatedBill_Rejected(t *testing.T) {
	// GIVEN: A bill dated April 10
	// WHEN: Creating a second bill for the next month dated April 5
	// THEN: Rejected, and nothing from the second bill persists

	eng, st := newTestFinanceEngine(t)
	ctx := context.Background()

	_, err := eng.CreateBill(ctx, finance.CreateBillInput{
		StudentID: "stu-anita", Month: "2026-04",
		Lines: []finance.BillLine{{CategoryID: "cat-tuition"}},
		Date:  april(10),
	})
	require.NoError(t, err)

	_, err = eng.CreateBill(ctx, finance.CreateBillInput{
		StudentID: "stu-anita", Month: "2026-05",
		Lines: []finance.BillLine{{CategoryID: "cat-tuition"}},
		Date:  april(5),
	})
	require.Error(t, err)
	assert.True(t, school.IsValidation(err))

	entries, err := st.LedgerEntries(ctx, "stu-anita")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLedger_SameDateDocuments_Accepted(t *testing.T) {
	// Same-day bill and payment are fine; insertion order breaks the tie.

	eng, st := newTestFinanceEngine(t)
	ctx := context.Background()

	_, err := eng.CreateBill(ctx, finance.CreateBillInput{
		StudentID: "stu-anita", Month: "2026-04",
		Lines: []finance.BillLine{{CategoryID: "cat-tuition"}},
		Date:  april(10),
	})
	require.NoError(t, err)

	receipt, err := eng.CreatePayment(ctx, finance.CreatePaymentInput{
		StudentID: "stu-anita", AmountPaid: school.MustParseMoney("200"), Date: april(10),
	})
	require.NoError(t, err)
	assert.Equal(t, "300", receipt.Entry.Balance.String())

	entries, err := st.LedgerEntries(ctx, "stu-anita")
	require.NoError(t, err)
	assert.NoError(t, finance.VerifyReplay(entries))
}
