package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
	"github.com/segyhp/loan-ledger/pkg/utils"
)

// PaymentInput is a payment received for a loan.
type PaymentInput struct {
	Amount      decimal.Decimal
	Method      domain.PaymentMethod
	PaymentDate time.Time
	Reference   string
}

// ApplyPayment allocates a payment across the schedule in strict installment
// order. Each entry is settled in full (penalty first, then principal,
// interest and fee) before the next one is touched; a payment that runs out
// mid-entry leaves it partially paid, split by the entry's original
// principal:interest:fee ratio.
func ApplyPayment(s Snapshot, in PaymentInput, actor domain.Actor, now time.Time) (Outcome, error) {
	loan := s.Loan
	loanID := loan.ID.String()

	if !in.Amount.IsPositive() || !in.Amount.Equal(utils.RoundMoney(in.Amount)) {
		return Outcome{}, customError.WrapInvalidPaymentAmount(loanID, in.Amount, loan.OutstandingBalance)
	}
	if !loan.Status.AcceptsPayments() {
		return Outcome{}, customError.WrapLoanNotActive(loanID, string(loan.Status), loan.OutstandingBalance)
	}
	if in.Amount.GreaterThan(loan.OutstandingBalance) {
		return Outcome{}, customError.WrapInvalidPaymentAmount(loanID, in.Amount, loan.OutstandingBalance)
	}

	paymentDate := in.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = now
	}

	out := Outcome{Snapshot: s.Clone()}
	payment := &domain.Payment{
		ID:               uuid.New(),
		TenantID:         loan.TenantID,
		LoanID:           loan.ID,
		Amount:           in.Amount,
		PrincipalPortion: decimal.Zero,
		InterestPortion:  decimal.Zero,
		FeePortion:       decimal.Zero,
		PenaltyPortion:   decimal.Zero,
		PaymentDate:      paymentDate,
		Method:           in.Method,
		Reference:        in.Reference,
		Status:           domain.PaymentStatusCompleted,
		PriorLoanStatus:  loan.Status,
		RecordedBy:       actor.UserID,
		CreatedAt:        now,
	}

	remaining := in.Amount
	for i := range out.Snapshot.Schedule {
		if !remaining.IsPositive() {
			break
		}
		e := &out.Snapshot.Schedule[i]
		if e.IsPaid() {
			continue
		}
		penaltyDue := e.PenaltyOutstanding()
		due := e.OutstandingAmount.Add(penaltyDue)
		if !due.IsPositive() {
			continue
		}

		alloc := domain.PaymentAllocation{
			ID:                uuid.New(),
			TenantID:          loan.TenantID,
			PaymentID:         payment.ID,
			LoanID:            loan.ID,
			InstallmentNumber: e.InstallmentNumber,
			PriorStatus:       e.Status,
			PriorPaidDate:     e.PaidDate,
		}

		var scheduled decimal.Decimal
		settled := remaining.GreaterThanOrEqual(due)
		if settled {
			alloc.Penalty = penaltyDue
			scheduled = e.OutstandingAmount
		} else {
			alloc.Penalty = decimal.Min(remaining, penaltyDue)
			scheduled = remaining.Sub(alloc.Penalty)
		}
		alloc.Principal, alloc.Interest, alloc.Fee = splitByOriginal(*e, scheduled)

		e.AmountPaid = e.AmountPaid.Add(scheduled)
		e.OutstandingAmount = e.TotalDue.Sub(e.AmountPaid)
		e.PenaltyPaid = e.PenaltyPaid.Add(alloc.Penalty)
		e.UpdatedAt = now
		if settled {
			paid := paymentDate
			e.PaidDate = &paid
			e.Status = domain.ScheduleStatusPaid
		} else {
			e.Status = domain.ScheduleStatusPartiallyPaid
		}

		remaining = remaining.Sub(scheduled).Sub(alloc.Penalty)
		payment.PrincipalPortion = payment.PrincipalPortion.Add(alloc.Principal)
		payment.InterestPortion = payment.InterestPortion.Add(alloc.Interest)
		payment.FeePortion = payment.FeePortion.Add(alloc.Fee)
		payment.PenaltyPortion = payment.PenaltyPortion.Add(alloc.Penalty)

		out.Allocations = append(out.Allocations, alloc)
		out.touch(e.InstallmentNumber)
	}
	if remaining.IsPositive() {
		return Outcome{}, customError.WrapScheduleInconsistency(loanID,
			"payment of "+in.Amount.StringFixed(2)+" left "+remaining.StringFixed(2)+" unallocated")
	}
	portions := utils.SumDecimals(payment.PrincipalPortion, payment.InterestPortion, payment.FeePortion, payment.PenaltyPortion)
	if !portions.Equal(in.Amount) {
		return Outcome{}, customError.WrapScheduleInconsistency(loanID,
			"payment portions add up to "+portions.StringFixed(2)+", not "+in.Amount.StringFixed(2))
	}

	next := &out.Snapshot.Loan
	next.AmountPaid = next.AmountPaid.Add(in.Amount)
	next.OutstandingBalance = utils.ClampZero(next.OutstandingBalance.Sub(in.Amount))
	stamp(next, now)

	switch {
	case next.OutstandingBalance.IsZero():
		next.Status = domain.LoanStatusPaidOff
	case next.Status == domain.LoanStatusOverdue && !hasOverdue(out.Snapshot, paymentDate):
		next.Status = domain.LoanStatusActive
	}

	if err := Reconcile(out.Snapshot); err != nil {
		return Outcome{}, err
	}

	out.Payment = payment
	out.emit(domain.EventPaymentRecorded, actor, now, map[string]interface{}{
		"payment_id":          payment.ID,
		"amount":              payment.Amount,
		"principal_portion":   payment.PrincipalPortion,
		"interest_portion":    payment.InterestPortion,
		"fee_portion":         payment.FeePortion,
		"penalty_portion":     payment.PenaltyPortion,
		"method":              payment.Method,
		"outstanding_balance": next.OutstandingBalance,
	})
	if next.Status == domain.LoanStatusPaidOff {
		out.emit(domain.EventLoanPaidOff, actor, now, map[string]interface{}{
			"amount_paid": next.AmountPaid,
		})
	}
	return out, nil
}

// splitByOriginal divides an amount applied to an entry across principal,
// interest and fee using the entry's original proportions. Interest takes the
// rounding residue.
func splitByOriginal(e domain.ScheduleEntry, amount decimal.Decimal) (principal, interest, fee decimal.Decimal) {
	if !amount.IsPositive() || !e.TotalDue.IsPositive() {
		return decimal.Zero, decimal.Zero, decimal.Zero
	}
	principal = utils.RoundMoney(amount.Mul(e.PrincipalDue).Div(e.TotalDue))
	if e.InterestDue.IsZero() {
		return principal, decimal.Zero, amount.Sub(principal)
	}
	fee = utils.RoundMoney(amount.Mul(e.FeeDue).Div(e.TotalDue))
	interest = amount.Sub(principal).Sub(fee)
	if interest.IsNegative() {
		fee = fee.Add(interest)
		interest = decimal.Zero
	}
	return principal, interest, fee
}

// hasOverdue reports whether any unpaid entry is flagged overdue or is past
// its grace period at asOf.
func hasOverdue(s Snapshot, asOf time.Time) bool {
	for _, e := range s.Schedule {
		if e.IsPaid() {
			continue
		}
		if e.Status == domain.ScheduleStatusOverdue || e.IsOverdueAt(asOf, s.Loan.GracePeriodDays) {
			return true
		}
	}
	return false
}
