package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/segyhp/loan-ledger/internal/cache"
	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/ledger"
	"github.com/segyhp/loan-ledger/internal/penalty"
	"github.com/segyhp/loan-ledger/internal/repository"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

// ApplyLatePenalty charges a late penalty on one installment. A non-empty
// period key makes the call idempotent for that period: the key is reserved
// in the cache first and the penalty table rejects a repeat.
func (s *LedgerService) ApplyLatePenalty(ctx context.Context, actor domain.Actor, loanID uuid.UUID, installment int, req domain.ApplyPenaltyRequest) (*domain.PenaltyCharge, error) {
	reserved := ""
	if req.PeriodKey != "" {
		key := cache.PenaltyKey(actor.TenantID, req.PeriodKey)
		ok, err := s.cache.Reserve(ctx, key, s.config.PenaltyDedupeTTL)
		switch {
		case err != nil:
			s.logger.WithError(err).WithField("period_key", req.PeriodKey).Warn("penalty reservation unavailable, relying on database constraint")
		case !ok:
			return nil, customError.WrapDuplicatePenalty(loanID.String(), installment, req.PeriodKey)
		default:
			reserved = key
		}
	}

	out, err := s.mutate(ctx, "apply_penalty", actor, loanID, func(_ repository.Repositories, snap ledger.Snapshot, now time.Time) (ledger.Outcome, error) {
		asOf := req.AsOf
		if asOf.IsZero() {
			asOf = now
		}
		return penalty.Apply(snap, installment, asOf, req.PeriodKey, actor, now)
	})

	if reserved != "" && (out.Penalty == nil || err != nil) && !errors.Is(err, customError.ErrDuplicatePenalty) {
		if relErr := s.cache.Release(ctx, reserved); relErr != nil {
			s.logger.WithError(relErr).WithField("period_key", req.PeriodKey).Warn("failed to release penalty reservation")
		}
	}
	if err != nil {
		return nil, err
	}
	return out.Penalty, nil
}

// DetectOverdueAll runs overdue detection over every open loan of every
// tenant. Per-loan failures are counted and logged; only a listing failure
// aborts the sweep.
func (s *LedgerService) DetectOverdueAll(ctx context.Context, actor domain.Actor, asOf time.Time) (domain.OverdueSweepResult, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}

	var result domain.OverdueSweepResult
	err := s.eachLoan(ctx, func(ref repository.LoanRef) {
		result.Scanned++
		loanActor := domain.Actor{TenantID: ref.TenantID, UserID: actor.UserID}

		out, err := s.mutate(ctx, "detect_overdue", loanActor, ref.ID, func(_ repository.Repositories, snap ledger.Snapshot, now time.Time) (ledger.Outcome, error) {
			return ledger.DetectOverdue(snap, asOf, loanActor, now)
		})
		switch {
		case err != nil:
			result.Failed++
		case len(out.Touched) > 0:
			result.Flagged++
		}
	})

	s.logger.WithField("as_of", asOf.Format(penalty.PeriodKeyLayout)).
		WithField("scanned", result.Scanned).
		WithField("flagged", result.Flagged).
		WithField("failed", result.Failed).
		Info("overdue sweep finished")
	return result, err
}

// ApplyPenaltiesAll charges one penalty per overdue installment for the
// period of asOf. Installments already charged for the period are skipped.
func (s *LedgerService) ApplyPenaltiesAll(ctx context.Context, actor domain.Actor, asOf time.Time) (domain.OverdueSweepResult, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}

	var result domain.OverdueSweepResult
	err := s.eachLoan(ctx, func(ref repository.LoanRef) {
		result.Scanned++
		loanActor := domain.Actor{TenantID: ref.TenantID, UserID: actor.UserID}

		repos := s.store.Repositories()
		loan, err := repos.Loans.GetByID(ctx, ref.TenantID, ref.ID)
		if err != nil {
			result.Failed++
			return
		}
		entries, err := repos.Schedule.GetByLoanID(ctx, ref.TenantID, ref.ID)
		if err != nil {
			result.Failed++
			return
		}

		for _, e := range entries {
			if !e.IsOverdueAt(asOf, loan.GracePeriodDays) {
				continue
			}
			req := domain.ApplyPenaltyRequest{
				AsOf:      asOf,
				PeriodKey: penalty.PeriodKey(ref.ID, e.InstallmentNumber, asOf),
			}
			charge, err := s.ApplyLatePenalty(ctx, loanActor, ref.ID, e.InstallmentNumber, req)
			switch {
			case errors.Is(err, customError.ErrDuplicatePenalty), errors.Is(err, customError.ErrNotOverdue):
				result.Skipped++
			case err != nil:
				result.Failed++
			case charge != nil:
				result.Penalties++
			}
		}
	})

	s.logger.WithField("as_of", asOf.Format(penalty.PeriodKeyLayout)).
		WithField("scanned", result.Scanned).
		WithField("penalties", result.Penalties).
		WithField("skipped", result.Skipped).
		WithField("failed", result.Failed).
		Info("penalty sweep finished")
	return result, err
}

// eachLoan walks active and overdue loans in (created_at, id) order. Each
// page resumes after the last loan of the previous one, so loans leaving the
// set mid-sweep do not push others out of view.
func (s *LedgerService) eachLoan(ctx context.Context, fn func(repository.LoanRef)) error {
	open := []domain.LoanStatus{domain.LoanStatusActive, domain.LoanStatusOverdue}
	batch := s.config.SweepBatchSize

	var after *repository.LoanRef
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		refs, err := s.store.Repositories().Loans.ListByStatus(ctx, open, after, batch)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			fn(ref)
		}
		if len(refs) < batch {
			return nil
		}
		last := refs[len(refs)-1]
		after = &last
	}
}
