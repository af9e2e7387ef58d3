package finance_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusworks/school-engine/finance"
	"github.com/campusworks/school-engine/school"
)

// =============================================================================
// PAYMENT TESTS
// =============================================================================

func TestCreatePayment_ReducesBalance(t *testing.T) {
	// GIVEN: Anita owes 500 from her April bill
	// WHEN: She pays 500
	// THEN: The payment's ledger entry carries a zero balance

	eng, _ := newTestFinanceEngine(t)
	ctx := context.Background()

	_, err := eng.CreateBill(ctx, finance.CreateBillInput{
		StudentID: "stu-anita",
		Month:     "2026-04",
		Lines:     []finance.BillLine{{CategoryID: "cat-tuition"}},
		Date:      april(1),
	})
	require.NoError(t, err)

	receipt, err := eng.CreatePayment(ctx, finance.CreatePaymentInput{
		StudentID:  "stu-anita",
		AmountPaid: school.MustParseMoney("500"),
		Date:       april(10),
	})
	require.NoError(t, err)

	assert.Equal(t, school.EntryPayment, receipt.Entry.Kind)
	assert.True(t, receipt.Entry.Balance.IsZero())
	assert.Equal(t, receipt.Payment.Number, receipt.Entry.DocumentNumber)
}

func TestCreatePayment_OverpaymentGoesNegative(t *testing.T) {
	// GIVEN: Anita has no outstanding bills
	// WHEN: She pays 100
	// THEN: Accepted; her balance goes to -100 (credit)

	eng, _ := newTestFinanceEngine(t)
	ctx := context.Background()

	receipt, err := eng.CreatePayment(ctx, finance.CreatePaymentInput{
		StudentID:  "stu-anita",
		AmountPaid: school.MustParseMoney("100"),
		Date:       april(10),
	})
	require.NoError(t, err)

	assert.Equal(t, "-100", receipt.Entry.Balance.String())
	assert.True(t, receipt.Entry.Balance.IsNegative())
}

func TestCreatePayment_ZeroAmountAccepted(t *testing.T) {
	eng, _ := newTestFinanceEngine(t)
	ctx := context.Background()

	receipt, err := eng.CreatePayment(ctx, finance.CreatePaymentInput{
		StudentID:  "stu-anita",
		AmountPaid: school.ZeroMoney(),
		Date:       april(10),
	})
	require.NoError(t, err)
	assert.True(t, receipt.Entry.Balance.IsZero())
}

func TestCreatePayment_NegativeAmount_Rejected(t *testing.T) {
	eng, _ := newTestFinanceEngine(t)
	ctx := context.Background()

	_, err := eng.CreatePayment(ctx, finance.CreatePaymentInput{
		StudentID:  "stu-anita",
		AmountPaid: school.MustParseMoney("-1"),
	})
	require.Error(t, err)
	assert.True(t, school.IsValidation(err))
}

func TestCreatePayment_UnknownStudent_NotFound(t *testing.T) {
	eng, _ := newTestFinanceEngine(t)
	ctx := context.Background()

	_, err := eng.CreatePayment(ctx, finance.CreatePaymentInput{
		StudentID:  "stu-ghost",
		AmountPaid: school.MustParseMoney("10"),
	})
	require.Error(t, err)
	assert.True(t, school.IsNotFound(err))
}

// =============================================================================
// PAYMENT NUMBERING TESTS
// =============================================================================

func TestCreatePayment_NumbersArePerStudent(t *testing.T) {
	// GIVEN: Anita makes two payments, then Bikash makes his first
	// WHEN: Numbers are assigned
	// THEN: Anita gets 2026P01, 2026P02; Bikash restarts at 2026P01
	//       - the sequence scope is the student, unlike bill numbers

	eng, _ := newTestFinanceEngine(t)
	ctx := context.Background()

	pay := func(studentID school.StudentID) string {
		receipt, err := eng.CreatePayment(ctx, finance.CreatePaymentInput{
			StudentID:  studentID,
			AmountPaid: school.MustParseMoney("10"),
			Date:       april(10),
		})
		require.NoError(t, err)
		return receipt.Payment.Number
	}

	assert.Equal(t, "2026P01", pay("stu-anita"))
	assert.Equal(t, "2026P02", pay("stu-anita"))
	assert.Equal(t, "2026P01", pay("stu-bikash"))
}
