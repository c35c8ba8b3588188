package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-ledger/internal/amortization"
	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/schedule"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
	"github.com/segyhp/loan-ledger/pkg/utils"
)

// Restructure changes the rate and term of a running loan. Interest already
// scheduled on paid installments stands; interest on the remaining principal
// is recomputed for the days left in the new term, and every unpaid
// installment is replaced by a freshly generated tail.
//
// allocations are those of the loan's completed payments, in payment order.
// The ones pointing at replaced installments are rewritten against the tail
// so the payments stay reversible.
func Restructure(s Snapshot, newRate decimal.Decimal, newTermDays int, allocations []domain.PaymentAllocation, actor domain.Actor, now time.Time) (Outcome, error) {
	loan := s.Loan
	loanID := loan.ID.String()

	if !loan.Status.AcceptsPayments() {
		return Outcome{}, customError.WrapLoanNotActive(loanID, string(loan.Status), loan.OutstandingBalance)
	}
	if newRate.IsNegative() || newTermDays <= 0 {
		return Outcome{}, customError.WrapInvalidLoanTerms("rate must be non-negative and term positive")
	}

	var (
		lastKept                    int
		keptPrincipal, keptInterest decimal.Decimal
		removed                     []uuid.UUID
		replaced                    = map[int]bool{}
	)
	for _, e := range s.Schedule {
		if !e.IsPaid() {
			removed = append(removed, e.ID)
			replaced[e.InstallmentNumber] = true
			continue
		}
		keptPrincipal = keptPrincipal.Add(e.PrincipalDue)
		keptInterest = keptInterest.Add(e.InterestDue)
		if e.InstallmentNumber > lastKept {
			lastKept = e.InstallmentNumber
		}
	}
	if len(removed) == 0 {
		return Outcome{}, customError.WrapInvalidTransition(loanID, string(loan.Status), "restructured", loan.OutstandingBalance)
	}

	remainingDays := newTermDays - lastKept*loan.PaymentFrequency.PeriodDays()
	if remainingDays <= 0 {
		return Outcome{}, customError.WrapInvalidLoanTerms("new term ends before the last settled installment")
	}
	remainingPrincipal := loan.PrincipalAmount.Sub(keptPrincipal)
	interest, err := amortization.ComputeInterest(remainingPrincipal, newRate, remainingDays, loan.InterestType)
	if err != nil {
		return Outcome{}, customError.WrapInvalidLoanTerms(err.Error())
	}

	out := Outcome{Snapshot: s.Clone()}
	next := &out.Snapshot.Loan
	next.InterestRate = newRate
	next.TermDays = newTermDays
	next.TotalInterest = keptInterest.Add(utils.RoundMoney(interest))
	next.TotalAmount = amortization.ComputeTotalPayable(next.PrincipalAmount, next.TotalInterest, next.ProcessingFee)
	next.OutstandingBalance = next.TotalAmount.Add(next.PenaltyAmount).Sub(next.AmountPaid).Sub(next.WriteOffAmount)
	if !next.OutstandingBalance.IsPositive() {
		return Outcome{}, customError.WrapInvalidLoanTerms("restructured total does not exceed the amount already paid")
	}
	stamp(next, now)

	kept, tail, err := schedule.Recalculate(*next, out.Snapshot.Schedule, now)
	if err != nil {
		return Outcome{}, customError.WrapInvalidLoanTerms(err.Error())
	}
	next.MaturityDate = tail[len(tail)-1].DueDate
	out.Snapshot.Schedule = append(kept, tail...)
	out.Replaced = &Replacement{Removed: removed, Added: tail}
	out.Reallocated, err = reallocate(loanID, replaced, tail, allocations)
	if err != nil {
		return Outcome{}, err
	}

	switch {
	case next.Status == domain.LoanStatusOverdue && !hasOverdue(out.Snapshot, now):
		next.Status = domain.LoanStatusActive
	case next.Status == domain.LoanStatusActive && hasOverdue(out.Snapshot, now):
		next.Status = domain.LoanStatusOverdue
	}

	if err := Reconcile(out.Snapshot); err != nil {
		return Outcome{}, err
	}

	out.emit(domain.EventLoanRestructured, actor, now, map[string]interface{}{
		"previous_rate":       loan.InterestRate,
		"previous_term_days":  loan.TermDays,
		"interest_rate":       newRate,
		"term_days":           newTermDays,
		"total_interest":      next.TotalInterest,
		"outstanding_balance": next.OutstandingBalance,
		"installments":        len(tail),
	})
	return out, nil
}

// reallocate rewrites the allocations that point at replaced installments.
// The tail carries the replaced rows' paid amounts in installment order and
// their paid penalty on its first entry; each payment's share is laid over
// the tail the same way, oldest payment first.
func reallocate(loanID string, replaced map[int]bool, tail []domain.ScheduleEntry, allocations []domain.PaymentAllocation) (*Reallocation, error) {
	type carried struct {
		source             domain.PaymentAllocation
		scheduled, penalty decimal.Decimal
	}

	var (
		order     []*carried
		byPayment = map[uuid.UUID]*carried{}
		re        = &Reallocation{}
	)
	for _, a := range allocations {
		if !replaced[a.InstallmentNumber] {
			continue
		}
		c, ok := byPayment[a.PaymentID]
		if !ok {
			c = &carried{source: a}
			byPayment[a.PaymentID] = c
			order = append(order, c)
		}
		c.scheduled = c.scheduled.Add(a.Scheduled())
		c.penalty = c.penalty.Add(a.Penalty)
		re.Removed = append(re.Removed, a.ID)
	}

	applied := make([]decimal.Decimal, len(tail))
	for i := range applied {
		applied[i] = decimal.Zero
	}
	penaltyApplied := decimal.Zero

	for _, c := range order {
		remaining := c.scheduled
		for i := range tail {
			take := decimal.Min(remaining, tail[i].AmountPaid.Sub(applied[i]))
			penalty := decimal.Zero
			if i == 0 {
				penalty = c.penalty
			}
			if !take.IsPositive() && !penalty.IsPositive() {
				continue
			}

			prior := domain.ScheduleStatusPending
			if applied[i].IsPositive() || (i == 0 && penaltyApplied.IsPositive()) {
				prior = domain.ScheduleStatusPartiallyPaid
			}
			alloc := domain.PaymentAllocation{
				ID:                uuid.New(),
				TenantID:          c.source.TenantID,
				PaymentID:         c.source.PaymentID,
				LoanID:            c.source.LoanID,
				InstallmentNumber: tail[i].InstallmentNumber,
				Principal:         decimal.Zero,
				Interest:          decimal.Zero,
				Fee:               decimal.Zero,
				Penalty:           penalty,
				PriorStatus:       prior,
			}
			if take.IsPositive() {
				alloc.Principal, alloc.Interest, alloc.Fee = splitByOriginal(tail[i], take)
				applied[i] = applied[i].Add(take)
				remaining = remaining.Sub(take)
			}
			penaltyApplied = penaltyApplied.Add(penalty)
			re.Added = append(re.Added, alloc)
		}
		if remaining.IsPositive() {
			return nil, customError.WrapScheduleInconsistency(loanID,
				fmt.Sprintf("payment %s has %s allocated beyond the regenerated schedule", c.source.PaymentID, remaining.StringFixed(2)))
		}
	}

	for i := range tail {
		if !applied[i].Equal(tail[i].AmountPaid) {
			return nil, customError.WrapScheduleInconsistency(loanID,
				fmt.Sprintf("installment %d carries %s paid but allocations cover %s",
					tail[i].InstallmentNumber, tail[i].AmountPaid.StringFixed(2), applied[i].StringFixed(2)))
		}
	}
	if len(tail) > 0 && !penaltyApplied.Equal(tail[0].PenaltyPaid) {
		return nil, customError.WrapScheduleInconsistency(loanID,
			fmt.Sprintf("installment %d carries %s penalty paid but allocations cover %s",
				tail[0].InstallmentNumber, tail[0].PenaltyPaid.StringFixed(2), penaltyApplied.StringFixed(2)))
	}
	if len(re.Removed) == 0 {
		return nil, nil
	}
	return re, nil
}
