package finance_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusworks/school-engine/finance"
	"github.com/campusworks/school-engine/school"
	"github.com/campusworks/school-engine/school/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestFinanceEngine(t *testing.T) (*finance.Engine, *store.Memory) {
	st := store.NewMemory()
	seedFinanceFixtures(t, st)
	return finance.NewEngine(st), st
}

// seedFinanceFixtures installs one class, two students, three fee
// categories and one transport route.
func seedFinanceFixtures(t *testing.T, st *store.Memory) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, st.CreateClass(ctx, school.ClassRoom{ID: "grade-5", Name: "Grade 5"}))
	require.NoError(t, st.CreateStudent(ctx, school.Student{ID: "stu-anita", Name: "Anita", ClassID: "grade-5", RollNo: 1}))
	require.NoError(t, st.CreateStudent(ctx, school.Student{ID: "stu-bikash", Name: "Bikash", ClassID: "grade-5", RollNo: 2}))

	require.NoError(t, st.CreateFeeCategory(ctx, school.FeeCategory{
		ID: "cat-tuition", Name: "Tuition", ClassID: "grade-5", Amount: school.MustParseMoney("500"),
	}))
	require.NoError(t, st.CreateFeeCategory(ctx, school.FeeCategory{
		ID: "cat-library", Name: "Library", ClassID: "grade-5", Amount: school.MustParseMoney("50"),
	}))
	require.NoError(t, st.CreateFeeCategory(ctx, school.FeeCategory{
		ID: "cat-sports", Name: "Sports", ClassID: "grade-5", Amount: school.MustParseMoney("30"),
	}))
	require.NoError(t, st.CreateTransportRoute(ctx, school.TransportRoute{
		ID: "route-north", Name: "North Loop", Fare: school.MustParseMoney("50"),
	}))
}

func april(day int) time.Time {
	return time.Date(2026, time.April, day, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// TOTAL DERIVATION TESTS
// =============================================================================

func TestCreateBill_TotalsWithDiscount(t *testing.T) {
	// GIVEN: Tuition 500 + Library 50, discount 20
	// WHEN: Creating the bill
	// THEN: subtotal 550, total 530, ledger balance 530

	eng, _ := newTestFinanceEngine(t)
	ctx := context.Background()

	receipt, err := eng.CreateBill(ctx, finance.CreateBillInput{
		StudentID: "stu-anita",
		Month:     "2026-04",
		Lines: []finance.BillLine{
			{CategoryID: "cat-tuition"},
			{CategoryID: "cat-library"},
		},
		Discount: school.MustParseMoney("20"),
		Date:     april(1),
	})
	require.NoError(t, err)

	assert.Equal(t, "550", receipt.Bill.Subtotal.String())
	assert.Equal(t, "530", receipt.Bill.Total.String())
	assert.Equal(t, school.EntryBill, receipt.Entry.Kind)
	assert.Equal(t, "530", receipt.Entry.Balance.String())
	assert.Equal(t, receipt.Bill.Number, receipt.Entry.DocumentNumber)
}

func TestCreateBill_TransportFareJoinsSubtotal(t *testing.T) {
	// GIVEN: All three fee categories plus the transport route
	// WHEN: Creating the bill with no discount
	// THEN: subtotal = 500 + 50 + 30 + 50 = 630

	eng, _ := newTestFinanceEngine(t)
	ctx := context.Background()

	receipt, err := eng.CreateBill(ctx, finance.CreateBillInput{
		StudentID: "stu-anita",
		Month:     "2026-04",
		Lines: []finance.BillLine{
			{CategoryID: "cat-tuition"},
			{CategoryID: "cat-library"},
			{CategoryID: "cat-sports"},
		},
		RouteID: "route-north",
		Date:    april(1),
	})
	require.NoError(t, err)

	assert.Equal(t, "630", receipt.Bill.Subtotal.String())
	assert.Equal(t, "630", receipt.Bill.Total.String())
	assert.Equal(t, "50", receipt.Bill.TransportFee.String())
}

func TestCreateBill_TransportOnly(t *testing.T) {
	// GIVEN: No fee lines, only a transport route
	// WHEN: Creating the bill
	// THEN: Accepted; total is the fare alone

	eng, _ := newTestFinanceEngine(t)
	ctx := context.Background()

	receipt, err := eng.CreateBill(ctx, finance.CreateBillInput{
		StudentID: "stu-anita",
		Month:     "2026-04",
		RouteID:   "route-north",
		Date:      april(1),
	})
	require.NoError(t, err)
	assert.Equal(t, "50", receipt.Bill.Total.String())
	assert.Empty(t, receipt.Bill.Items)
}

func TestCreateBill_ScholarshipLineRecordedAtZero(t *testing.T) {
	// GIVEN: Tuition waived by scholarship, Library billed normally
	// WHEN: Creating the bill
	// THEN: The tuition line stays on the bill with amount 0 and the
	//       subtotal counts only the library fee

	eng, _ := newTestFinanceEngine(t)
	ctx := context.Background()

	receipt, err := eng.CreateBill(ctx, finance.CreateBillInput{
		StudentID: "stu-anita",
		Month:     "2026-04",
		Lines: []finance.BillLine{
			{CategoryID: "cat-tuition", Scholarship: true},
			{CategoryID: "cat-library"},
		},
		Date: april(1),
	})
	require.NoError(t, err)

	require.Len(t, receipt.Bill.Items, 2)
	assert.True(t, receipt.Bill.Items[0].Scholarship)
	assert.True(t, receipt.Bill.Items[0].Amount.IsZero())
	assert.Equal(t, "Tuition", receipt.Bill.Items[0].CategoryName)
	assert.Equal(t, "50", receipt.Bill.Subtotal.String())
}

func TestCreateBill_DiscountClampsTotalToZero(t *testing.T) {
	// GIVEN: A discount larger than the subtotal
	// WHEN: Creating the bill
	// THEN: Total clamps to 0 instead of going negative

	eng, _ := newTestFinanceEngine(t)
	ctx := context.Background()

	receipt, err := eng.CreateBill(ctx, finance.CreateBillInput{
		StudentID: "stu-anita",
		Month:     "2026-04",
		Lines:     []finance.BillLine{{CategoryID: "cat-library"}},
		Discount:  school.MustParseMoney("1000"),
		Date:      april(1),
	})
	require.NoError(t, err)

	assert.Equal(t, "50", receipt.Bill.Subtotal.String())
	assert.True(t, receipt.Bill.Total.IsZero())
	assert.True(t, receipt.Entry.Balance.IsZero())
}

func TestRecalculateTotals_Idempotent(t *testing.T) {
	items := []school.BillItem{
		{CategoryID: "cat-tuition", Amount: school.MustParseMoney("500")},
		{CategoryID: "cat-library", Amount: school.ZeroMoney(), Scholarship: true},
	}
	fare := school.MustParseMoney("50")
	discount := school.MustParseMoney("20")

	sub1, tot1 := finance.RecalculateTotals(items, fare, discount)
	sub2, tot2 := finance.RecalculateTotals(items, fare, discount)

	assert.Equal(t, "550", sub1.String())
	assert.Equal(t, "530", tot1.String())
	assert.True(t, sub1.Equal(sub2))
	assert.True(t, tot1.Equal(tot2))
}

// =============================================================================
// UNIQUENESS AND VALIDATION TESTS
// =============================================================================

func TestCreateBill_DuplicateMonth_Rejected(t *testing.T) {
	// GIVEN: Anita already has a bill for 2026-04
	// WHEN: Billing her again for 2026-04
	// THEN: Rejected with DuplicateBillError; same student other month
	//       and other student same month remain fine

	eng, _ := newTestFinanceEngine(t)
	ctx := context.Background()

	in := finance.CreateBillInput{
		StudentID: "stu-anita",
		Month:     "2026-04",
		Lines:     []finance.BillLine{{CategoryID: "cat-tuition"}},
		Date:      april(1),
	}
	_, err := eng.CreateBill(ctx, in)
	require.NoError(t, err)

	_, err = eng.CreateBill(ctx, in)
	require.Error(t, err)
	var dupErr *school.DuplicateBillError
	assert.ErrorAs(t, err, &dupErr)
	assert.Equal(t, school.StudentID("stu-anita"), dupErr.StudentID)
	assert.True(t, errors.Is(err, school.ErrDuplicateBill))

	in.Month = "2026-05"
	_, err = eng.CreateBill(ctx, in)
	assert.NoError(t, err, "same student, next month")

	in.Month = "2026-04"
	in.StudentID = "stu-bikash"
	_, err = eng.CreateBill(ctx, in)
	assert.NoError(t, err, "other student, same month")
}

func TestCreateBill_InvalidInput_Rejected(t *testing.T) {
	eng, _ := newTestFinanceEngine(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   finance.CreateBillInput
	}{
		{"malformed month", finance.CreateBillInput{
			StudentID: "stu-anita", Month: "2026-13",
			Lines: []finance.BillLine{{CategoryID: "cat-tuition"}},
		}},
		{"month without zero padding", finance.CreateBillInput{
			StudentID: "stu-anita", Month: "2026-4",
			Lines: []finance.BillLine{{CategoryID: "cat-tuition"}},
		}},
		{"no lines and no route", finance.CreateBillInput{
			StudentID: "stu-anita", Month: "2026-04",
		}},
		{"negative discount", finance.CreateBillInput{
			StudentID: "stu-anita", Month: "2026-04",
			Lines:    []finance.BillLine{{CategoryID: "cat-tuition"}},
			Discount: school.MustParseMoney("-5"),
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := eng.CreateBill(ctx, tc.in)
			require.Error(t, err)
			assert.True(t, school.IsValidation(err))
		})
	}
}

func TestCreateBill_UnknownReferences_NotFound(t *testing.T) {
	eng, _ := newTestFinanceEngine(t)
	ctx := context.Background()

	_, err := eng.CreateBill(ctx, finance.CreateBillInput{
		StudentID: "stu-ghost",
		Month:     "2026-04",
		Lines:     []finance.BillLine{{CategoryID: "cat-tuition"}},
	})
	require.Error(t, err)
	assert.True(t, school.IsNotFound(err))

	_, err = eng.CreateBill(ctx, finance.CreateBillInput{
		StudentID: "stu-anita",
		Month:     "2026-04",
		Lines:     []finance.BillLine{{CategoryID: "cat-ghost"}},
	})
	require.Error(t, err)
	assert.True(t, school.IsNotFound(err))

	_, err = eng.CreateBill(ctx, finance.CreateBillInput{
		StudentID: "stu-anita",
		Month:     "2026-04",
		RouteID:   "route-ghost",
	})
	require.Error(t, err)
	assert.True(t, school.IsNotFound(err))
}

// =============================================================================
// DOCUMENT NUMBERING TESTS
// =============================================================================

func TestCreateBill_NumbersAreSequentialAcrossStudents(t *testing.T) {
	// GIVEN: An empty billing year
	// WHEN: Creating three bills for two students
	// THEN: Numbers run 2026B01, 2026B02, 2026B03 - the sequence scope is
	//       the whole school, not the student

	eng, _ := newTestFinanceEngine(t)
	ctx := context.Background()

	mk := func(studentID school.StudentID, month school.BillMonth) string {
		receipt, err := eng.CreateBill(ctx, finance.CreateBillInput{
			StudentID: studentID,
			Month:     month,
			Lines:     []finance.BillLine{{CategoryID: "cat-tuition"}},
			Date:      april(1),
		})
		require.NoError(t, err)
		return receipt.Bill.Number
	}

	assert.Equal(t, "2026B01", mk("stu-anita", "2026-04"))
	assert.Equal(t, "2026B02", mk("stu-bikash", "2026-04"))
	assert.Equal(t, "2026B03", mk("stu-anita", "2026-05"))
}

func TestCreateBill_NumberYearFollowsBillingDate(t *testing.T) {
	// GIVEN: A bill dated in 2027
	// WHEN: Creating it
	// THEN: The number carries the billing year, not the wall-clock year

	eng, _ := newTestFinanceEngine(t)
	ctx := context.Background()

	receipt, err := eng.CreateBill(ctx, finance.CreateBillInput{
		StudentID: "stu-anita",
		Month:     "2027-01",
		Lines:     []finance.BillLine{{CategoryID: "cat-tuition"}},
		Date:      time.Date(2027, time.January, 5, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "2027B01", receipt.Bill.Number)
}

func TestCreateBill_PersistedAndReadableByNumber(t *testing.T) {
	eng, st := newTestFinanceEngine(t)
	ctx := context.Background()

	receipt, err := eng.CreateBill(ctx, finance.CreateBillInput{
		StudentID: "stu-anita",
		Month:     "2026-04",
		Lines:     []finance.BillLine{{CategoryID: "cat-tuition"}},
		Date:      april(1),
	})
	require.NoError(t, err)

	got, err := st.GetBillByNumber(ctx, receipt.Bill.Number)
	require.NoError(t, err)
	assert.Equal(t, receipt.Bill.StudentID, got.StudentID)
	assert.True(t, receipt.Bill.Total.Equal(got.Total))
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Tuition", got.Items[0].CategoryName)
}

func TestCreateBill_CrossClassCategory_Rejected(t *testing.T) {
	// GIVEN: A fee category scoped to grade-6
	// WHEN: Billing a grade-5 student with it
	// THEN: Rejected as validation; categories apply only to their own class

	eng, st := newTestFinanceEngine(t)
	ctx := context.Background()

	require.NoError(t, st.CreateClass(ctx, school.ClassRoom{ID: "grade-6", Name: "Grade 6"}))
	require.NoError(t, st.CreateFeeCategory(ctx, school.FeeCategory{
		ID: "cat-tuition-6", Name: "Tuition", ClassID: "grade-6", Amount: school.MustParseMoney("600"),
	}))

	_, err := eng.CreateBill(ctx, finance.CreateBillInput{
		StudentID: "stu-anita",
		Month:     "2026-04",
		Lines:     []finance.BillLine{{CategoryID: "cat-tuition-6"}},
		Date:      april(1),
	})
	require.Error(t, err)
	assert.True(t, school.IsValidation(err))

	entries, err := st.LedgerEntries(ctx, "stu-anita")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
