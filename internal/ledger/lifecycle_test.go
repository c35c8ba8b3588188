package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

func TestDetectOverdue_ScenarioE(t *testing.T) {
	s := scenarioLoan(t)
	// Installment 1 is due on day 30 with three days of grace.
	asOf := day(30 + 3 + 5)

	out, err := DetectOverdue(s, asOf, actor, asOf)
	require.NoError(t, err)

	assert.Equal(t, domain.ScheduleStatusOverdue, out.Snapshot.Schedule[0].Status)
	assert.Equal(t, domain.ScheduleStatusPending, out.Snapshot.Schedule[1].Status)
	assert.Equal(t, domain.LoanStatusOverdue, out.Snapshot.Loan.Status)
	assert.Equal(t, []int{1}, out.Touched)
	assert.Equal(t, []domain.EventType{domain.EventLoanOverdue}, eventTypes(out.Events))

	again, err := DetectOverdue(out.Snapshot, asOf, actor, asOf)
	require.NoError(t, err)
	assert.Empty(t, again.Touched)
	assert.Empty(t, again.Events)
	assert.False(t, again.Modified(out.Snapshot.Loan))
}

func TestDetectOverdue_GraceBoundary(t *testing.T) {
	tests := []struct {
		name    string
		asOf    int
		overdue bool
	}{
		{name: "on due date", asOf: 30, overdue: false},
		{name: "last day of grace", asOf: 33, overdue: false},
		{name: "first day after grace", asOf: 34, overdue: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := DetectOverdue(scenarioLoan(t), day(tt.asOf), actor, day(tt.asOf))
			require.NoError(t, err)
			assert.Equal(t, tt.overdue, out.Snapshot.Loan.Status == domain.LoanStatusOverdue)
		})
	}
}

func TestDetectOverdue_IgnoresPaidAndTerminal(t *testing.T) {
	paid := pay(t, scenarioLoan(t), "3433.34", day(10))

	out, err := DetectOverdue(paid.Snapshot, day(40), actor, day(40))
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusActive, out.Snapshot.Loan.Status)
	assert.Empty(t, out.Touched)

	paidOff := pay(t, scenarioLoan(t), "10300", day(10))
	out, err = DetectOverdue(paidOff.Snapshot, day(200), actor, day(200))
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusPaidOff, out.Snapshot.Loan.Status)
	assert.Empty(t, out.Touched)
}

func TestDetectOverdue_SuspendedKeepsStatus(t *testing.T) {
	suspended, err := Suspend(scenarioLoan(t), "dispute", actor, day(5))
	require.NoError(t, err)

	out, err := DetectOverdue(suspended.Snapshot, day(40), actor, day(40))
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusSuspended, out.Snapshot.Loan.Status)
	assert.Equal(t, domain.ScheduleStatusOverdue, out.Snapshot.Schedule[0].Status)
	assert.Empty(t, out.Events)
}

func TestClose_Settled(t *testing.T) {
	s := scenarioLoan(t)

	_, err := Close(s, domain.ClosureSettled, "early", actor, day(10))
	require.ErrorIs(t, err, customError.ErrInvalidTransition)

	paidOff := pay(t, s, "10300", day(10))
	out, err := Close(paidOff.Snapshot, domain.ClosureSettled, "settled in full", actor, day(11))
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusClosed, out.Snapshot.Loan.Status)
	assert.Equal(t, "settled in full", out.Snapshot.Loan.ClosureReason)
	assert.Equal(t, []domain.EventType{domain.EventLoanClosed}, eventTypes(out.Events))

	_, err = Close(out.Snapshot, domain.ClosureSettled, "again", actor, day(12))
	assert.ErrorIs(t, err, customError.ErrInvalidTransition)
}

func TestClose_WrittenOff(t *testing.T) {
	paid := pay(t, scenarioLoan(t), "1000", day(10))

	out, err := Close(paid.Snapshot, domain.ClosureWrittenOff, "borrower deceased", actor, day(100))
	require.NoError(t, err)

	loan := out.Snapshot.Loan
	assert.Equal(t, domain.LoanStatusWrittenOff, loan.Status)
	assertDecimal(t, "0", loan.OutstandingBalance)
	assertDecimal(t, "9300", loan.WriteOffAmount)
	assertDecimal(t, "1000", loan.AmountPaid)
	assert.Equal(t, []domain.EventType{domain.EventLoanWrittenOff}, eventTypes(out.Events))

	_, err = ApplyPayment(out.Snapshot, PaymentInput{Amount: dec("10"), Method: domain.PaymentMethodCash}, actor, day(101))
	assert.ErrorIs(t, err, customError.ErrLoanNotActive)
}

func TestSuspendResume_ReturnsToPriorStatus(t *testing.T) {
	overdue, err := DetectOverdue(scenarioLoan(t), day(40), actor, day(40))
	require.NoError(t, err)

	suspended, err := Suspend(overdue.Snapshot, "collections hold", actor, day(41))
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusSuspended, suspended.Snapshot.Loan.Status)
	assert.Equal(t, domain.LoanStatusOverdue, suspended.Snapshot.Loan.SuspendedFrom)

	_, err = Suspend(suspended.Snapshot, "twice", actor, day(42))
	assert.ErrorIs(t, err, customError.ErrInvalidTransition)

	resumed, err := Resume(suspended.Snapshot, actor, day(43))
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusOverdue, resumed.Snapshot.Loan.Status)
	assert.Empty(t, resumed.Snapshot.Loan.SuspendedFrom)
	assert.Equal(t, []domain.EventType{domain.EventLoanResumed}, eventTypes(resumed.Events))

	_, err = Resume(resumed.Snapshot, actor, day(44))
	assert.ErrorIs(t, err, customError.ErrInvalidTransition)
}

func TestRestructure_RegeneratesUnpaidTail(t *testing.T) {
	paid := pay(t, scenarioLoan(t), "3433.34", day(10))
	removed := []string{paid.Snapshot.Schedule[1].ID.String(), paid.Snapshot.Schedule[2].ID.String()}

	out, err := Restructure(paid.Snapshot, dec("2"), 150, paid.Allocations, actor, day(15))
	require.NoError(t, err)

	loan := out.Snapshot.Loan
	assertDecimal(t, "633.33", loan.TotalInterest)
	assertDecimal(t, "10633.33", loan.TotalAmount)
	assertDecimal(t, "7199.99", loan.OutstandingBalance)
	assertDecimal(t, "3433.34", loan.AmountPaid)
	assert.Equal(t, 150, loan.TermDays)
	assert.Equal(t, day(150), loan.MaturityDate)

	require.Len(t, out.Snapshot.Schedule, 5)
	assert.Equal(t, paid.Snapshot.Schedule[0].ID, out.Snapshot.Schedule[0].ID)
	assert.Equal(t, domain.ScheduleStatusPaid, out.Snapshot.Schedule[0].Status)

	tail := out.Snapshot.Schedule[1:]
	assertDecimal(t, "1666.67", tail[0].PrincipalDue)
	assertDecimal(t, "133.34", tail[0].InterestDue)
	for i, e := range tail {
		assert.Equal(t, i+2, e.InstallmentNumber)
		assert.Equal(t, day(30*(i+2)), e.DueDate)
		assert.Equal(t, domain.ScheduleStatusPending, e.Status)
	}

	require.NotNil(t, out.Replaced)
	assert.Len(t, out.Replaced.Added, 4)
	var gone []string
	for _, id := range out.Replaced.Removed {
		gone = append(gone, id.String())
	}
	assert.ElementsMatch(t, removed, gone)
	assert.Nil(t, out.Reallocated)
	assert.Equal(t, []domain.EventType{domain.EventLoanRestructured}, eventTypes(out.Events))
}

func TestRestructure_CarriesPartialPayments(t *testing.T) {
	paid := pay(t, scenarioLoan(t), "5000", day(10))

	out, err := Restructure(paid.Snapshot, dec("1"), 120, paid.Allocations, actor, day(15))
	require.NoError(t, err)

	tail := out.Snapshot.Schedule[1:]
	assertDecimal(t, "1566.66", tail[0].AmountPaid)
	assert.Equal(t, domain.ScheduleStatusPartiallyPaid, tail[0].Status)
	assertDecimal(t, "5000", out.Snapshot.Loan.AmountPaid)
	assert.NoError(t, Reconcile(out.Snapshot))

	require.NotNil(t, out.Reallocated)
	assert.Equal(t, []uuid.UUID{paid.Allocations[1].ID}, out.Reallocated.Removed)
	require.Len(t, out.Reallocated.Added, 1)
	assert.Equal(t, 2, out.Reallocated.Added[0].InstallmentNumber)
	assertDecimal(t, "1566.66", out.Reallocated.Added[0].Scheduled())
}

func TestRestructure_PaymentStaysReversible(t *testing.T) {
	paid := pay(t, scenarioLoan(t), "2000", day(10))

	out, err := Restructure(paid.Snapshot, dec("1"), 180, paid.Allocations, actor, day(15))
	require.NoError(t, err)
	assertDecimal(t, "1766.67", out.Snapshot.Schedule[0].AmountPaid)
	assertDecimal(t, "233.33", out.Snapshot.Schedule[1].AmountPaid)

	require.NotNil(t, out.Reallocated)
	assert.Equal(t, []uuid.UUID{paid.Allocations[0].ID}, out.Reallocated.Removed)
	require.Len(t, out.Reallocated.Added, 2)
	for i, a := range out.Reallocated.Added {
		assert.Equal(t, i+1, a.InstallmentNumber)
		assert.Equal(t, paid.Payment.ID, a.PaymentID)
		assert.Equal(t, domain.ScheduleStatusPending, a.PriorStatus)
	}
	assertDecimal(t, "1766.67", out.Reallocated.Added[0].Scheduled())
	assertDecimal(t, "233.33", out.Reallocated.Added[1].Scheduled())

	reversed, err := ReversePayment(out.Snapshot, *paid.Payment, out.Reallocated.Added, "cheque bounced", actor, day(15))
	require.NoError(t, err)
	assert.True(t, reversed.Modified(out.Snapshot.Loan))
	assertDecimal(t, "0", reversed.Snapshot.Loan.AmountPaid)
	assertDecimal(t, "10600", reversed.Snapshot.Loan.OutstandingBalance)
	for _, e := range reversed.Snapshot.Schedule {
		assert.True(t, e.AmountPaid.IsZero(), "installment %d", e.InstallmentNumber)
		assert.Equal(t, domain.ScheduleStatusPending, e.Status)
		assert.Nil(t, e.PaidDate)
	}
}

func TestRestructure_ReallocatesPaymentsInOrder(t *testing.T) {
	first := pay(t, scenarioLoan(t), "1000", day(5))
	second := pay(t, first.Snapshot, "1500", day(10))
	allocations := append(append([]domain.PaymentAllocation{}, first.Allocations...), second.Allocations...)

	out, err := Restructure(second.Snapshot, dec("1"), 180, allocations, actor, day(15))
	require.NoError(t, err)

	require.NotNil(t, out.Reallocated)
	require.Len(t, out.Reallocated.Added, 3)
	added := out.Reallocated.Added
	assert.Equal(t, first.Payment.ID, added[0].PaymentID)
	assertDecimal(t, "1000", added[0].Scheduled())
	assert.Equal(t, second.Payment.ID, added[1].PaymentID)
	assert.Equal(t, 1, added[1].InstallmentNumber)
	assertDecimal(t, "766.67", added[1].Scheduled())
	assert.Equal(t, domain.ScheduleStatusPartiallyPaid, added[1].PriorStatus)
	assert.Equal(t, 2, added[2].InstallmentNumber)
	assertDecimal(t, "733.33", added[2].Scheduled())

	reversed, err := ReversePayment(out.Snapshot, *first.Payment, added[:1], "duplicate", actor, day(16))
	require.NoError(t, err)
	assertDecimal(t, "766.67", reversed.Snapshot.Schedule[0].AmountPaid)
	assert.Equal(t, domain.ScheduleStatusPartiallyPaid, reversed.Snapshot.Schedule[0].Status)
	assertDecimal(t, "1500", reversed.Snapshot.Loan.AmountPaid)
}

func TestRestructure_RejectsUnallocatedPaidAmounts(t *testing.T) {
	paid := pay(t, scenarioLoan(t), "2000", day(10))

	_, err := Restructure(paid.Snapshot, dec("1"), 180, nil, actor, day(15))
	assert.ErrorIs(t, err, customError.ErrScheduleInconsistency)
}

func TestRestructure_Rejections(t *testing.T) {
	paid := pay(t, scenarioLoan(t), "3433.34", day(10))

	_, err := Restructure(paid.Snapshot, dec("2"), 30, paid.Allocations, actor, day(15))
	assert.ErrorIs(t, err, customError.ErrInvalidLoanTerms)

	_, err = Restructure(paid.Snapshot, dec("-1"), 120, paid.Allocations, actor, day(15))
	assert.ErrorIs(t, err, customError.ErrInvalidLoanTerms)

	suspended, err := Suspend(paid.Snapshot, "hold", actor, day(16))
	require.NoError(t, err)
	_, err = Restructure(suspended.Snapshot, dec("2"), 120, paid.Allocations, actor, day(17))
	assert.ErrorIs(t, err, customError.ErrLoanNotActive)
}
