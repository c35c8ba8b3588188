package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

func TestDisburse_ScenarioA(t *testing.T) {
	product := testProduct()

	out, err := Disburse(
		domain.LoanApplication{ID: "app-1", BorrowerID: "borrower-1", ProductID: product.ID},
		domain.ApprovalTerms{Amount: dec("10000"), TermDays: 90, DisbursementDate: disbursedOn},
		product, actor, clock,
	)
	require.NoError(t, err)

	loan := out.Snapshot.Loan
	assert.Equal(t, domain.LoanStatusActive, loan.Status)
	assert.Equal(t, actor.TenantID, loan.TenantID)
	assertDecimal(t, "300", loan.TotalInterest)
	assertDecimal(t, "10300", loan.TotalAmount)
	assertDecimal(t, "10300", loan.OutstandingBalance)
	assertDecimal(t, "0", loan.ProcessingFee)
	assert.Equal(t, day(90), loan.MaturityDate)
	assert.Equal(t, 3, loan.GracePeriodDays)

	require.Len(t, out.Snapshot.Schedule, 3)
	for i, want := range []string{"3333.34", "3333.33", "3333.33"} {
		e := out.Snapshot.Schedule[i]
		assertDecimal(t, want, e.PrincipalDue)
		assertDecimal(t, "100", e.InterestDue)
		assert.Equal(t, day(30*(i+1)), e.DueDate)
	}

	require.Len(t, out.Events, 1)
	assert.Equal(t, domain.EventLoanDisbursed, out.Events[0].Type)
	assert.Equal(t, loan.ID, out.Events[0].LoanID)
	assert.Equal(t, actor.UserID, out.Events[0].ActorID)
}

func TestDisburse_ProcessingFeeOnFirstInstallment(t *testing.T) {
	product := testProduct()
	product.ProcessingFeePercent = dec("2")

	s := disburse(t, product, "10000", 90)

	assertDecimal(t, "200", s.Loan.ProcessingFee)
	assertDecimal(t, "10500", s.Loan.TotalAmount)
	assertDecimal(t, "200", s.Schedule[0].FeeDue)
	assertDecimal(t, "3633.34", s.Schedule[0].TotalDue)
	assertDecimal(t, "0", s.Schedule[1].FeeDue)
	assert.NoError(t, Reconcile(s))
}

func TestDisburse_RateOverride(t *testing.T) {
	product := testProduct()

	out, err := Disburse(
		domain.LoanApplication{ID: "app-2", BorrowerID: "borrower-1", ProductID: product.ID},
		domain.ApprovalTerms{Amount: dec("10000"), TermDays: 90, InterestRate: dec("2"), DisbursementDate: disbursedOn},
		product, actor, clock,
	)
	require.NoError(t, err)
	assertDecimal(t, "600", out.Snapshot.Loan.TotalInterest)
	assertDecimal(t, "2", out.Snapshot.Loan.InterestRate)
}

func TestDisburse_InvalidTerms(t *testing.T) {
	archived := testProduct()
	archived.Archived = true

	tests := []struct {
		name     string
		product  domain.LoanProduct
		amount   string
		termDays int
	}{
		{name: "above max amount", product: testProduct(), amount: "50000.01", termDays: 90},
		{name: "below min amount", product: testProduct(), amount: "99.99", termDays: 90},
		{name: "zero amount", product: testProduct(), amount: "0", termDays: 90},
		{name: "term too long", product: testProduct(), amount: "1000", termDays: 366},
		{name: "term too short", product: testProduct(), amount: "1000", termDays: 29},
		{name: "archived product", product: archived, amount: "1000", termDays: 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Disburse(
				domain.LoanApplication{ID: "app-1", BorrowerID: "borrower-1", ProductID: tt.product.ID},
				domain.ApprovalTerms{Amount: dec(tt.amount), TermDays: tt.termDays, DisbursementDate: disbursedOn},
				tt.product, actor, clock,
			)
			assert.ErrorIs(t, err, customError.ErrInvalidLoanTerms)
		})
	}
}

func TestReconcile_DetectsDrift(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Snapshot)
	}{
		{name: "entry paid without loan", mutate: func(s *Snapshot) {
			s.Schedule[0].AmountPaid = dec("10")
			s.Schedule[0].OutstandingAmount = s.Schedule[0].TotalDue.Sub(dec("10"))
		}},
		{name: "loan balance drift", mutate: func(s *Snapshot) {
			s.Loan.OutstandingBalance = s.Loan.OutstandingBalance.Sub(dec("0.01"))
		}},
		{name: "principal sum mismatch", mutate: func(s *Snapshot) {
			s.Schedule[2].PrincipalDue = s.Schedule[2].PrincipalDue.Add(dec("0.01"))
			s.Schedule[2].TotalDue = s.Schedule[2].TotalDue.Add(dec("0.01"))
			s.Schedule[2].OutstandingAmount = s.Schedule[2].TotalDue
		}},
		{name: "negative outstanding", mutate: func(s *Snapshot) {
			s.Loan.OutstandingBalance = dec("-1")
		}},
		{name: "installments out of order", mutate: func(s *Snapshot) {
			s.Schedule[1].InstallmentNumber = 1
		}},
		{name: "paid entry with amount due", mutate: func(s *Snapshot) {
			s.Schedule[0].Status = domain.ScheduleStatusPaid
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := scenarioLoan(t).Clone()
			tt.mutate(&s)
			err := Reconcile(s)
			assert.ErrorIs(t, err, customError.ErrScheduleInconsistency)
			assert.Equal(t, customError.ErrCodeScheduleInconsistency, customError.Code(err))
		})
	}
}
