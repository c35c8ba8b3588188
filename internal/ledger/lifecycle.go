package ledger

import (
	"time"

	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

// Close ends a loan. A settled closure needs a zero balance; a write-off
// moves whatever is still owed into WriteOffAmount.
func Close(s Snapshot, closure domain.ClosureType, reason string, actor domain.Actor, now time.Time) (Outcome, error) {
	out := Outcome{Snapshot: s.Clone()}
	loan := &out.Snapshot.Loan
	loanID := loan.ID.String()

	switch closure {
	case domain.ClosureSettled:
		switch loan.Status {
		case domain.LoanStatusActive, domain.LoanStatusOverdue, domain.LoanStatusSuspended, domain.LoanStatusPaidOff:
		default:
			return Outcome{}, customError.WrapInvalidTransition(loanID, string(loan.Status), string(domain.LoanStatusClosed), loan.OutstandingBalance)
		}
		if !loan.OutstandingBalance.IsZero() {
			return Outcome{}, customError.WrapInvalidTransition(loanID, string(loan.Status), string(domain.LoanStatusClosed), loan.OutstandingBalance)
		}
		loan.Status = domain.LoanStatusClosed
		loan.ClosureReason = reason
		stamp(loan, now)
		out.emit(domain.EventLoanClosed, actor, now, map[string]interface{}{
			"reason":      reason,
			"amount_paid": loan.AmountPaid,
		})

	case domain.ClosureWrittenOff:
		switch loan.Status {
		case domain.LoanStatusActive, domain.LoanStatusOverdue, domain.LoanStatusSuspended:
		default:
			return Outcome{}, customError.WrapInvalidTransition(loanID, string(loan.Status), string(domain.LoanStatusWrittenOff), loan.OutstandingBalance)
		}
		writtenOff := loan.OutstandingBalance
		loan.WriteOffAmount = loan.WriteOffAmount.Add(writtenOff)
		loan.OutstandingBalance = loan.OutstandingBalance.Sub(writtenOff)
		loan.Status = domain.LoanStatusWrittenOff
		loan.ClosureReason = reason
		stamp(loan, now)
		out.emit(domain.EventLoanWrittenOff, actor, now, map[string]interface{}{
			"reason":      reason,
			"written_off": writtenOff,
		})

	default:
		return Outcome{}, customError.WrapInvalidTransition(loanID, string(loan.Status), string(closure), loan.OutstandingBalance)
	}

	if err := Reconcile(out.Snapshot); err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// Suspend freezes an active or overdue loan. Payments and penalties are
// refused until it is resumed.
func Suspend(s Snapshot, reason string, actor domain.Actor, now time.Time) (Outcome, error) {
	out := Outcome{Snapshot: s.Clone()}
	loan := &out.Snapshot.Loan
	if loan.Status != domain.LoanStatusActive && loan.Status != domain.LoanStatusOverdue {
		return Outcome{}, customError.WrapInvalidTransition(loan.ID.String(), string(loan.Status), string(domain.LoanStatusSuspended), loan.OutstandingBalance)
	}

	loan.SuspendedFrom = loan.Status
	loan.Status = domain.LoanStatusSuspended
	stamp(loan, now)
	out.emit(domain.EventLoanSuspended, actor, now, map[string]interface{}{
		"reason": reason,
		"from":   loan.SuspendedFrom,
	})
	return out, nil
}

// Resume returns a suspended loan to the status it held before suspension.
func Resume(s Snapshot, actor domain.Actor, now time.Time) (Outcome, error) {
	out := Outcome{Snapshot: s.Clone()}
	loan := &out.Snapshot.Loan
	if loan.Status != domain.LoanStatusSuspended {
		return Outcome{}, customError.WrapInvalidTransition(loan.ID.String(), string(loan.Status), string(domain.LoanStatusActive), loan.OutstandingBalance)
	}

	to := loan.SuspendedFrom
	if to != domain.LoanStatusOverdue {
		to = domain.LoanStatusActive
	}
	loan.Status = to
	loan.SuspendedFrom = ""
	stamp(loan, now)
	out.emit(domain.EventLoanResumed, actor, now, map[string]interface{}{
		"to": to,
	})
	return out, nil
}
