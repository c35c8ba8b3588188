package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

// Reconcile checks the balance invariants of a snapshot. Any violation is a
// ScheduleInconsistency: the caller must abort, never repair.
//
//	outstanding == total + penalty - paid - writeOff, and >= 0
//	outstanding == Σ(entry outstanding + unpaid penalty) - writeOff
//	paid        == Σ(entry amountPaid + penaltyPaid)
//	Σ principalDue == principal, Σ interestDue == totalInterest, Σ feeDue == fee
//	Σ entry penalty == loan penalty
func Reconcile(s Snapshot) error {
	loan := s.Loan
	id := loan.ID.String()
	fail := func(format string, args ...interface{}) error {
		return customError.WrapScheduleInconsistency(id, fmt.Sprintf(format, args...))
	}

	if loan.OutstandingBalance.IsNegative() {
		return fail("outstanding balance %s is negative", loan.OutstandingBalance)
	}
	expected := loan.TotalAmount.Add(loan.PenaltyAmount).Sub(loan.AmountPaid).Sub(loan.WriteOffAmount)
	if !loan.OutstandingBalance.Equal(expected) {
		return fail("outstanding balance %s, expected %s", loan.OutstandingBalance, expected)
	}
	if !loan.TotalAmount.Equal(loan.PrincipalAmount.Add(loan.TotalInterest).Add(loan.ProcessingFee)) {
		return fail("total amount %s does not match its components", loan.TotalAmount)
	}

	var (
		due, paid, penalty       decimal.Decimal
		principal, interest, fee decimal.Decimal
		previous                 int
	)
	for _, e := range s.Schedule {
		if e.InstallmentNumber <= previous {
			return fail("installment %d out of order", e.InstallmentNumber)
		}
		previous = e.InstallmentNumber

		if !e.TotalDue.Equal(e.PrincipalDue.Add(e.InterestDue).Add(e.FeeDue)) {
			return fail("installment %d total due does not match its components", e.InstallmentNumber)
		}
		if e.AmountPaid.IsNegative() || e.PenaltyPaid.IsNegative() {
			return fail("installment %d has a negative paid amount", e.InstallmentNumber)
		}
		if e.AmountPaid.GreaterThan(e.TotalDue) || e.PenaltyPaid.GreaterThan(e.PenaltyAmount) {
			return fail("installment %d is overpaid", e.InstallmentNumber)
		}
		if !e.OutstandingAmount.Equal(e.TotalDue.Sub(e.AmountPaid)) {
			return fail("installment %d outstanding %s, expected %s",
				e.InstallmentNumber, e.OutstandingAmount, e.TotalDue.Sub(e.AmountPaid))
		}
		if e.IsPaid() && e.AmountDue().IsPositive() {
			return fail("installment %d is paid with %s still due", e.InstallmentNumber, e.AmountDue())
		}

		due = due.Add(e.AmountDue())
		paid = paid.Add(e.AmountPaid).Add(e.PenaltyPaid)
		penalty = penalty.Add(e.PenaltyAmount)
		principal = principal.Add(e.PrincipalDue)
		interest = interest.Add(e.InterestDue)
		fee = fee.Add(e.FeeDue)
	}

	if !principal.Equal(loan.PrincipalAmount) {
		return fail("scheduled principal %s, loan principal %s", principal, loan.PrincipalAmount)
	}
	if !interest.Equal(loan.TotalInterest) {
		return fail("scheduled interest %s, loan interest %s", interest, loan.TotalInterest)
	}
	if !fee.Equal(loan.ProcessingFee) {
		return fail("scheduled fee %s, loan fee %s", fee, loan.ProcessingFee)
	}
	if !penalty.Equal(loan.PenaltyAmount) {
		return fail("schedule penalties %s, loan penalties %s", penalty, loan.PenaltyAmount)
	}
	if !paid.Equal(loan.AmountPaid) {
		return fail("schedule paid %s, loan paid %s", paid, loan.AmountPaid)
	}
	if !due.Sub(loan.WriteOffAmount).Equal(loan.OutstandingBalance) {
		return fail("schedule due %s, loan outstanding %s", due.Sub(loan.WriteOffAmount), loan.OutstandingBalance)
	}
	if loan.Status == domain.LoanStatusPaidOff && loan.OutstandingBalance.IsPositive() {
		return fail("paid off with %s outstanding", loan.OutstandingBalance)
	}

	return nil
}
