// Package penalty assesses and posts late penalties on overdue installments.
package penalty

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/ledger"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
	"github.com/segyhp/loan-ledger/pkg/utils"
)

// PeriodKeyLayout formats the date part of a default period key.
const PeriodKeyLayout = "2006-01-02"

// Assess returns the late penalty due on an entry at asOf: the entry's
// outstanding amount times the loan's late penalty percent, rounded to the
// cent. The grace period and percent are the ones fixed on the loan at
// disbursement.
func Assess(entry domain.ScheduleEntry, loan domain.Loan, asOf time.Time) (decimal.Decimal, error) {
	if !entry.IsOverdueAt(asOf, loan.GracePeriodDays) {
		overdueAfter := utils.AddDays(entry.DueDate, loan.GracePeriodDays).Format(PeriodKeyLayout)
		return decimal.Zero, customError.WrapNotOverdue(loan.ID.String(), entry.InstallmentNumber, overdueAfter)
	}
	return utils.RoundMoney(utils.Percent(entry.OutstandingAmount, loan.LatePenaltyPercent)), nil
}

// PeriodKey is the default dedupe key: one penalty per installment per day.
func PeriodKey(loanID uuid.UUID, installment int, asOf time.Time) string {
	return fmt.Sprintf("%s:%d:%s", loanID, installment, asOf.Format(PeriodKeyLayout))
}

// Apply posts the assessed penalty on one installment. The amount is added to
// the entry, the loan penalty total and the outstanding balance, and the entry
// is flagged overdue. A penalty that rounds to zero produces an outcome with
// no charge.
//
// Apply does not dedupe; callers that need one charge per period pass a
// periodKey and enforce it in storage.
func Apply(s ledger.Snapshot, installment int, asOf time.Time, periodKey string, actor domain.Actor, now time.Time) (ledger.Outcome, error) {
	loan := s.Loan
	loanID := loan.ID.String()
	if !loan.Status.AcceptsPayments() {
		return ledger.Outcome{}, customError.WrapLoanNotActive(loanID, string(loan.Status), loan.OutstandingBalance)
	}
	i := s.Entry(installment)
	if i < 0 {
		return ledger.Outcome{}, customError.WrapInstallmentNotFound(loanID, fmt.Sprint(installment))
	}

	amount, err := Assess(s.Schedule[i], loan, asOf)
	if err != nil {
		return ledger.Outcome{}, err
	}

	out := ledger.Outcome{Snapshot: s.Clone()}
	if !amount.IsPositive() {
		return out, nil
	}

	e := &out.Snapshot.Schedule[i]
	e.PenaltyAmount = e.PenaltyAmount.Add(amount)
	e.Status = domain.ScheduleStatusOverdue
	e.UpdatedAt = now
	out.Touched = []int{installment}

	next := &out.Snapshot.Loan
	next.PenaltyAmount = next.PenaltyAmount.Add(amount)
	next.OutstandingBalance = next.OutstandingBalance.Add(amount)
	next.UpdatedAt = now
	becameOverdue := next.Status == domain.LoanStatusActive
	if becameOverdue {
		next.Status = domain.LoanStatusOverdue
	}

	if err := ledger.Reconcile(out.Snapshot); err != nil {
		return ledger.Outcome{}, err
	}

	out.Penalty = &domain.PenaltyCharge{
		ID:                uuid.New(),
		TenantID:          loan.TenantID,
		LoanID:            loan.ID,
		InstallmentNumber: installment,
		Amount:            amount,
		PeriodKey:         periodKey,
		AssessedAt:        asOf,
		CreatedBy:         actor.UserID,
		CreatedAt:         now,
	}
	if becameOverdue {
		out.Events = append(out.Events, domain.NewEvent(domain.EventLoanOverdue, actor, loan.ID, now, map[string]interface{}{
			"installments":        []int{installment},
			"as_of":               asOf,
			"outstanding_balance": next.OutstandingBalance,
		}))
	}
	out.Events = append(out.Events, domain.NewEvent(domain.EventPenaltyApplied, actor, loan.ID, now, map[string]interface{}{
		"installment_number":  installment,
		"amount":              amount,
		"period_key":          periodKey,
		"outstanding_balance": next.OutstandingBalance,
	}))
	return out, nil
}
