package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusworks/school-engine/school"
	"github.com/campusworks/school-engine/school/store"
)

// =============================================================================
// TRANSACTION TESTS
// =============================================================================

func TestMemory_WithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A unit of work that writes a bill and a ledger entry
	// WHEN: The unit fails after both writes
	// THEN: Neither write survives

	st := store.NewMemory()
	ctx := context.Background()

	boom := errors.New("boom")
	err := st.WithTx(ctx, func(tx school.Store) error {
		if err := tx.CreateBill(ctx, school.Bill{
			Number: "2026B01", StudentID: "stu-1", Month: "2026-04",
			Total: school.MustParseMoney("100"),
		}); err != nil {
			return err
		}
		if err := tx.AppendLedgerEntry(ctx, school.LedgerEntry{
			ID: school.NewID(), StudentID: "stu-1", Kind: school.EntryBill,
			DocumentNumber: "2026B01",
			Amount:         school.MustParseMoney("100"),
			Balance:        school.MustParseMoney("100"),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = st.GetBillByNumber(ctx, "2026B01")
	assert.True(t, school.IsNotFound(err))
	entries, err := st.LedgerEntries(ctx, "stu-1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMemory_WithTx_CommitsOnSuccess(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()

	err := st.WithTx(ctx, func(tx school.Store) error {
		return tx.CreateStudent(ctx, school.Student{ID: "stu-1", Name: "Anita"})
	})
	require.NoError(t, err)

	got, err := st.GetStudent(ctx, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, "Anita", got.Name)
}

// =============================================================================
// LEDGER ORDERING TESTS
// =============================================================================

func TestMemory_LedgerOrderedByDateThenInsertion(t *testing.T) {
	// GIVEN: Entries appended out of date order, plus two sharing a date
	// WHEN: Reading the ledger
	// THEN: Ordered by transaction date, ties broken by insertion order

	st := store.NewMemory()
	ctx := context.Background()

	day := func(d int) time.Time {
		return time.Date(2026, time.April, d, 0, 0, 0, 0, time.UTC)
	}
	appendEntry := func(doc string, date time.Time) {
		require.NoError(t, st.AppendLedgerEntry(ctx, school.LedgerEntry{
			ID: school.NewID(), StudentID: "stu-1", Kind: school.EntryBill,
			DocumentNumber:  doc,
			TransactionDate: date,
		}))
	}

	appendEntry("doc-c", day(20))
	appendEntry("doc-a", day(5))
	appendEntry("doc-b1", day(10))
	appendEntry("doc-b2", day(10))

	entries, err := st.LedgerEntries(ctx, "stu-1")
	require.NoError(t, err)
	require.Len(t, entries, 4)

	var order []string
	for _, e := range entries {
		order = append(order, e.DocumentNumber)
	}
	assert.Equal(t, []string{"doc-a", "doc-b1", "doc-b2", "doc-c"}, order)
}

func TestMemory_LatestLedgerEntry(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()

	latest, err := st.LatestLedgerEntry(ctx, "stu-1")
	require.NoError(t, err)
	assert.Nil(t, latest, "empty ledger has no latest entry")

	require.NoError(t, st.AppendLedgerEntry(ctx, school.LedgerEntry{
		ID: school.NewID(), StudentID: "stu-1", Kind: school.EntryBill,
		DocumentNumber:  "doc-late",
		TransactionDate: time.Date(2026, time.April, 20, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, st.AppendLedgerEntry(ctx, school.LedgerEntry{
		ID: school.NewID(), StudentID: "stu-1", Kind: school.EntryBill,
		DocumentNumber:  "doc-early",
		TransactionDate: time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC),
	}))

	latest, err = st.LatestLedgerEntry(ctx, "stu-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "doc-late", latest.DocumentNumber, "latest is by date, not by append order")
}

// =============================================================================
// UNIQUENESS AND LOOKUP TESTS
// =============================================================================

func TestMemory_BillNumberCollisionRejected(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()

	bill := school.Bill{Number: "2026B01", StudentID: "stu-1", Month: "2026-04"}
	require.NoError(t, st.CreateBill(ctx, bill))

	bill.StudentID = "stu-2"
	err := st.CreateBill(ctx, bill)
	require.Error(t, err)
	assert.True(t, errors.Is(err, school.ErrNumberingExhausted))
}

func TestMemory_CountsScopeCorrectly(t *testing.T) {
	// Bill counts are global; payment counts are per student.

	st := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, st.CreateBill(ctx, school.Bill{Number: "2026B01", StudentID: "stu-1", Month: "2026-04"}))
	require.NoError(t, st.CreateBill(ctx, school.Bill{Number: "2026B02", StudentID: "stu-2", Month: "2026-04"}))
	require.NoError(t, st.CreatePayment(ctx, school.Payment{Number: "2026P01", StudentID: "stu-1"}))
	require.NoError(t, st.CreatePayment(ctx, school.Payment{Number: "2026P02", StudentID: "stu-1"}))
	require.NoError(t, st.CreatePayment(ctx, school.Payment{Number: "2026P01", StudentID: "stu-2"}))

	bills, err := st.CountBills(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, bills)

	p1, err := st.CountPayments(ctx, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 2, p1)
	p2, err := st.CountPayments(ctx, "stu-2")
	require.NoError(t, err)
	assert.Equal(t, 1, p2)

	taken, err := st.PaymentNumberTaken(ctx, "stu-1", "2026P01")
	require.NoError(t, err)
	assert.True(t, taken)
	taken, err = st.PaymentNumberTaken(ctx, "stu-2", "2026P02")
	require.NoError(t, err)
	assert.False(t, taken, "payment numbers are scoped to the student")
}

func TestMemory_SubjectClassesByName(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, st.CreateSubject(ctx, school.Subject{ID: "s1", Name: "Mathematics", ClassID: "grade-5"}))
	require.NoError(t, st.CreateSubject(ctx, school.Subject{ID: "s2", Name: "Mathematics", ClassID: "grade-6"}))
	require.NoError(t, st.CreateSubject(ctx, school.Subject{ID: "s3", Name: "Science", ClassID: "grade-5"}))

	classes, err := st.SubjectClassesByName(ctx, "Mathematics")
	require.NoError(t, err)
	assert.Len(t, classes, 2)

	classes, err = st.SubjectClassesByName(ctx, "Science")
	require.NoError(t, err)
	assert.Equal(t, []school.ClassID{"grade-5"}, classes)

	classes, err = st.SubjectClassesByName(ctx, "History")
	require.NoError(t, err)
	assert.Empty(t, classes)
}
