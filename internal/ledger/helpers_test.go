package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/loan-ledger/internal/domain"
)

var (
	disbursedOn = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock       = disbursedOn.Add(9 * time.Hour)
	actor       = domain.Actor{TenantID: "tenant-a", UserID: "officer-1"}
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(n int) time.Time {
	return disbursedOn.AddDate(0, 0, n)
}

func testProduct() domain.LoanProduct {
	return domain.LoanProduct{
		ID:                   uuid.New(),
		TenantID:             actor.TenantID,
		Name:                 "Monthly flat",
		MinAmount:            dec("100"),
		MaxAmount:            dec("50000"),
		InterestRate:         dec("1"),
		InterestType:         domain.InterestTypeFlat,
		MinTermDays:          30,
		MaxTermDays:          365,
		ProcessingFeePercent: decimal.Zero,
		LatePenaltyPercent:   dec("5"),
		GracePeriodDays:      3,
		PaymentFrequency:     domain.FrequencyMonthly,
	}
}

// scenarioLoan disburses 10,000 at 1% flat per month over 90 days.
func scenarioLoan(t *testing.T) Snapshot {
	t.Helper()
	return disburse(t, testProduct(), "10000", 90)
}

func disburse(t *testing.T, product domain.LoanProduct, amount string, termDays int) Snapshot {
	t.Helper()
	out, err := Disburse(
		domain.LoanApplication{ID: "app-1", BorrowerID: "borrower-1", ProductID: product.ID},
		domain.ApprovalTerms{Amount: dec(amount), TermDays: termDays, DisbursementDate: disbursedOn},
		product, actor, clock,
	)
	require.NoError(t, err)
	return out.Snapshot
}

func pay(t *testing.T, s Snapshot, amount string, on time.Time) Outcome {
	t.Helper()
	out, err := ApplyPayment(s, PaymentInput{
		Amount:      dec(amount),
		Method:      domain.PaymentMethodCash,
		PaymentDate: on,
	}, actor, on)
	require.NoError(t, err)
	return out
}

func eventTypes(events []domain.Event) []domain.EventType {
	types := make([]domain.EventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(expected).Equal(actual), "expected %s, got %s", expected, actual)
}

// assertSameLedger compares the money and status fields of two snapshots,
// ignoring timestamps and decimal representation.
func assertSameLedger(t *testing.T, want, got Snapshot) {
	t.Helper()
	wl, gl := want.Loan, got.Loan
	assert.Equal(t, wl.Status, gl.Status, "loan status")
	assert.True(t, wl.AmountPaid.Equal(gl.AmountPaid), "loan amount paid %s != %s", wl.AmountPaid, gl.AmountPaid)
	assert.True(t, wl.OutstandingBalance.Equal(gl.OutstandingBalance), "loan outstanding %s != %s", wl.OutstandingBalance, gl.OutstandingBalance)
	assert.True(t, wl.PenaltyAmount.Equal(gl.PenaltyAmount), "loan penalty %s != %s", wl.PenaltyAmount, gl.PenaltyAmount)

	require.Len(t, got.Schedule, len(want.Schedule))
	for i := range want.Schedule {
		we, ge := want.Schedule[i], got.Schedule[i]
		n := we.InstallmentNumber
		assert.Equal(t, we.ID, ge.ID, "installment %d id", n)
		assert.Equal(t, we.Status, ge.Status, "installment %d status", n)
		assert.True(t, we.AmountPaid.Equal(ge.AmountPaid), "installment %d paid %s != %s", n, we.AmountPaid, ge.AmountPaid)
		assert.True(t, we.OutstandingAmount.Equal(ge.OutstandingAmount), "installment %d outstanding", n)
		assert.True(t, we.PenaltyAmount.Equal(ge.PenaltyAmount), "installment %d penalty", n)
		assert.True(t, we.PenaltyPaid.Equal(ge.PenaltyPaid), "installment %d penalty paid", n)
		assert.Equal(t, we.PaidDate, ge.PaidDate, "installment %d paid date", n)
	}
}

// withPenalty posts a penalty on an installment directly, keeping the
// snapshot balanced.
func withPenalty(s Snapshot, installment int, amount string) Snapshot {
	next := s.Clone()
	i := next.Entry(installment)
	next.Schedule[i].PenaltyAmount = next.Schedule[i].PenaltyAmount.Add(dec(amount))
	next.Schedule[i].Status = domain.ScheduleStatusOverdue
	next.Loan.PenaltyAmount = next.Loan.PenaltyAmount.Add(dec(amount))
	next.Loan.OutstandingBalance = next.Loan.OutstandingBalance.Add(dec(amount))
	next.Loan.Status = domain.LoanStatusOverdue
	return next
}
