package ledger

import (
	"fmt"
	"time"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/schedule"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

// ReversePayment undoes a recorded payment using the allocations stored with
// it. Entry statuses and paid dates return to what they were before the
// payment unless a later payment settled the entry independently.
func ReversePayment(s Snapshot, payment domain.Payment, allocations []domain.PaymentAllocation, reason string, actor domain.Actor, now time.Time) (Outcome, error) {
	loan := s.Loan
	loanID := loan.ID.String()

	if payment.LoanID != loan.ID {
		return Outcome{}, customError.WrapPaymentNotFound(payment.ID.String())
	}
	if payment.Status == domain.PaymentStatusReversed {
		return Outcome{}, customError.WrapAlreadyReversed(payment.ID.String(), loanID, payment.Amount)
	}
	switch loan.Status {
	case domain.LoanStatusActive, domain.LoanStatusOverdue, domain.LoanStatusPaidOff:
	default:
		return Outcome{}, customError.WrapLoanNotActive(loanID, string(loan.Status), loan.OutstandingBalance)
	}

	out := Outcome{Snapshot: s.Clone()}
	for _, a := range allocations {
		i := out.Snapshot.Entry(a.InstallmentNumber)
		if i < 0 {
			return Outcome{}, customError.WrapScheduleInconsistency(loanID,
				fmt.Sprintf("payment %s allocated to missing installment %d", payment.ID, a.InstallmentNumber))
		}
		e := &out.Snapshot.Schedule[i]
		e.AmountPaid = e.AmountPaid.Sub(a.Scheduled())
		e.PenaltyPaid = e.PenaltyPaid.Sub(a.Penalty)
		if e.AmountPaid.IsNegative() || e.PenaltyPaid.IsNegative() {
			return Outcome{}, customError.WrapScheduleInconsistency(loanID,
				fmt.Sprintf("reversing payment %s drives installment %d below zero", payment.ID, a.InstallmentNumber))
		}
		e.OutstandingAmount = e.TotalDue.Sub(e.AmountPaid)

		e.Status = schedule.DeriveStatus(*e, a.PriorStatus)
		if e.Status != domain.ScheduleStatusPaid {
			if a.PriorStatus == domain.ScheduleStatusOverdue {
				e.Status = domain.ScheduleStatusOverdue
			}
			e.PaidDate = a.PriorPaidDate
		}
		e.UpdatedAt = now
		out.touch(e.InstallmentNumber)
	}

	next := &out.Snapshot.Loan
	next.AmountPaid = next.AmountPaid.Sub(payment.Amount)
	next.OutstandingBalance = next.OutstandingBalance.Add(payment.Amount)
	stamp(next, now)

	switch {
	case next.Status == domain.LoanStatusPaidOff:
		next.Status = payment.PriorLoanStatus
		if !next.Status.AcceptsPayments() {
			next.Status = domain.LoanStatusActive
		}
	case next.Status == domain.LoanStatusActive && payment.PriorLoanStatus == domain.LoanStatusOverdue:
		next.Status = domain.LoanStatusOverdue
	}

	if err := Reconcile(out.Snapshot); err != nil {
		return Outcome{}, err
	}

	reversed := payment
	reversedAt := now
	reversed.Status = domain.PaymentStatusReversed
	reversed.ReversalReason = reason
	reversed.ReversedAt = &reversedAt
	out.Reversed = &reversed

	out.emit(domain.EventPaymentReversed, actor, now, map[string]interface{}{
		"payment_id":          payment.ID,
		"amount":              payment.Amount,
		"reason":              reason,
		"outstanding_balance": next.OutstandingBalance,
		"status":              next.Status,
	})
	return out, nil
}
