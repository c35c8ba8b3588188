package ledger

import (
	"time"

	"github.com/segyhp/loan-ledger/internal/domain"
)

// DetectOverdue flags every unpaid entry past its grace period at asOf and
// moves the loan between active and overdue accordingly. Suspended loans get
// their entries flagged but keep their status; terminal loans are left alone.
// Running it twice for the same asOf changes nothing the second time.
func DetectOverdue(s Snapshot, asOf time.Time, actor domain.Actor, now time.Time) (Outcome, error) {
	out := Outcome{Snapshot: s.Clone()}
	loan := &out.Snapshot.Loan
	if loan.Status.IsTerminal() || loan.Status == domain.LoanStatusPendingDisbursement {
		return out, nil
	}

	var flagged []int
	for i := range out.Snapshot.Schedule {
		e := &out.Snapshot.Schedule[i]
		if e.Status == domain.ScheduleStatusOverdue || !e.IsOverdueAt(asOf, loan.GracePeriodDays) {
			continue
		}
		e.Status = domain.ScheduleStatusOverdue
		e.UpdatedAt = now
		out.touch(e.InstallmentNumber)
		flagged = append(flagged, e.InstallmentNumber)
	}

	switch {
	case loan.Status == domain.LoanStatusActive && hasOverdue(out.Snapshot, asOf):
		loan.Status = domain.LoanStatusOverdue
		stamp(loan, now)
		out.emit(domain.EventLoanOverdue, actor, now, map[string]interface{}{
			"installments":        flagged,
			"as_of":               asOf,
			"outstanding_balance": loan.OutstandingBalance,
		})
	case loan.Status == domain.LoanStatusOverdue && !hasOverdue(out.Snapshot, asOf):
		loan.Status = domain.LoanStatusActive
		stamp(loan, now)
	case len(flagged) > 0:
		stamp(loan, now)
	}

	if err := Reconcile(out.Snapshot); err != nil {
		return Outcome{}, err
	}
	return out, nil
}
