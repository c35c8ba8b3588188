package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/loan-ledger/internal/cache"
	"github.com/segyhp/loan-ledger/internal/config"
	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/events"
	"github.com/segyhp/loan-ledger/internal/ledger"
	"github.com/segyhp/loan-ledger/internal/metrics"
	"github.com/segyhp/loan-ledger/internal/repository"
	"github.com/segyhp/loan-ledger/internal/schedule"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

// Dependencies are the collaborators of LedgerService. Cache, Publisher,
// Logger and Clock fall back to in-process defaults when nil.
type Dependencies struct {
	Store     repository.Store
	Cache     cache.Cache
	Publisher events.Publisher
	Metrics   *metrics.Recorder
	Logger    *logrus.Logger
	Clock     func() time.Time
	Config    config.BusinessConfig
}

// LedgerService runs ledger operations against storage. Each mutation loads
// the loan under lock, applies the pure ledger transition and persists the
// outcome in one transaction. Cache invalidation and event delivery happen
// after commit.
type LedgerService struct {
	store     repository.Store
	cache     cache.Cache
	publisher events.Publisher
	metrics   *metrics.Recorder
	logger    *logrus.Logger
	now       func() time.Time
	config    config.BusinessConfig
}

func NewLedgerService(deps Dependencies) *LedgerService {
	s := &LedgerService{
		store:     deps.Store,
		cache:     deps.Cache,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		now:       deps.Clock,
		config:    deps.Config,
	}
	if s.logger == nil {
		s.logger = logrus.New()
	}
	if s.cache == nil {
		s.cache = cache.Noop{}
	}
	if s.publisher == nil {
		s.publisher = events.NewLogPublisher(s.logger)
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.config.SweepBatchSize <= 0 {
		s.config.SweepBatchSize = 200
	}
	return s
}

// DisburseLoan creates an active loan and its schedule from an approved
// application.
func (s *LedgerService) DisburseLoan(ctx context.Context, actor domain.Actor, req domain.DisburseLoanRequest) (*domain.LoanDetailResponse, error) {
	started := time.Now()
	now := s.now()

	var out ledger.Outcome
	err := s.store.WithTx(ctx, func(repos repository.Repositories) error {
		product, err := repos.Products.GetByID(ctx, actor.TenantID, req.Application.ProductID)
		if err != nil {
			return err
		}

		out, err = ledger.Disburse(req.Application, req.Terms, *product, actor, now)
		if err != nil {
			return err
		}

		if err := repos.Loans.Create(ctx, &out.Snapshot.Loan); err != nil {
			return err
		}
		return repos.Schedule.CreateBatch(ctx, out.Snapshot.Schedule)
	})
	s.metrics.Observe("disburse_loan", started, err)
	if err != nil {
		s.logFailure("disburse_loan", actor, uuid.Nil, err)
		return nil, err
	}

	s.afterCommit(ctx, actor, out)
	return &domain.LoanDetailResponse{Loan: &out.Snapshot.Loan, Schedule: out.Snapshot.Schedule}, nil
}

// ApplyPayment records a repayment and allocates it over the schedule.
func (s *LedgerService) ApplyPayment(ctx context.Context, actor domain.Actor, loanID uuid.UUID, req domain.MakePaymentRequest) (*domain.Payment, error) {
	in := ledger.PaymentInput{
		Amount:      req.Amount,
		Method:      req.Method,
		PaymentDate: req.PaymentDate,
		Reference:   req.Reference,
	}

	out, err := s.mutate(ctx, "apply_payment", actor, loanID, func(_ repository.Repositories, snap ledger.Snapshot, now time.Time) (ledger.Outcome, error) {
		return ledger.ApplyPayment(snap, in, actor, now)
	})
	if err != nil {
		return nil, err
	}
	return out.Payment, nil
}

// ReversePayment undoes a completed payment on a loan.
func (s *LedgerService) ReversePayment(ctx context.Context, actor domain.Actor, loanID, paymentID uuid.UUID, reason string) (*domain.Payment, error) {
	out, err := s.mutate(ctx, "reverse_payment", actor, loanID, func(repos repository.Repositories, snap ledger.Snapshot, now time.Time) (ledger.Outcome, error) {
		payment, err := repos.Payments.GetByID(ctx, actor.TenantID, paymentID)
		if err != nil {
			return ledger.Outcome{}, err
		}
		allocations, err := repos.Payments.GetAllocations(ctx, actor.TenantID, paymentID)
		if err != nil {
			return ledger.Outcome{}, err
		}
		return ledger.ReversePayment(snap, *payment, allocations, reason, actor, now)
	})
	if err != nil {
		return nil, err
	}
	return out.Reversed, nil
}

// DetectOverdue flags installments past grace as of asOf. A zero asOf means
// now.
func (s *LedgerService) DetectOverdue(ctx context.Context, actor domain.Actor, loanID uuid.UUID, asOf time.Time) (*domain.Loan, error) {
	out, err := s.mutate(ctx, "detect_overdue", actor, loanID, func(_ repository.Repositories, snap ledger.Snapshot, now time.Time) (ledger.Outcome, error) {
		if asOf.IsZero() {
			asOf = now
		}
		return ledger.DetectOverdue(snap, asOf, actor, now)
	})
	if err != nil {
		return nil, err
	}
	return &out.Snapshot.Loan, nil
}

// CloseLoan settles or writes off a loan.
func (s *LedgerService) CloseLoan(ctx context.Context, actor domain.Actor, loanID uuid.UUID, req domain.CloseLoanRequest) (*domain.Loan, error) {
	out, err := s.mutate(ctx, "close_loan", actor, loanID, func(_ repository.Repositories, snap ledger.Snapshot, now time.Time) (ledger.Outcome, error) {
		return ledger.Close(snap, req.ClosureType, req.Reason, actor, now)
	})
	if err != nil {
		return nil, err
	}
	return &out.Snapshot.Loan, nil
}

func (s *LedgerService) SuspendLoan(ctx context.Context, actor domain.Actor, loanID uuid.UUID, reason string) (*domain.Loan, error) {
	out, err := s.mutate(ctx, "suspend_loan", actor, loanID, func(_ repository.Repositories, snap ledger.Snapshot, now time.Time) (ledger.Outcome, error) {
		return ledger.Suspend(snap, reason, actor, now)
	})
	if err != nil {
		return nil, err
	}
	return &out.Snapshot.Loan, nil
}

func (s *LedgerService) ResumeLoan(ctx context.Context, actor domain.Actor, loanID uuid.UUID) (*domain.Loan, error) {
	out, err := s.mutate(ctx, "resume_loan", actor, loanID, func(_ repository.Repositories, snap ledger.Snapshot, now time.Time) (ledger.Outcome, error) {
		return ledger.Resume(snap, actor, now)
	})
	if err != nil {
		return nil, err
	}
	return &out.Snapshot.Loan, nil
}

// RestructureLoan changes rate and term and regenerates the unpaid tail.
func (s *LedgerService) RestructureLoan(ctx context.Context, actor domain.Actor, loanID uuid.UUID, req domain.RestructureLoanRequest) (*domain.LoanDetailResponse, error) {
	out, err := s.mutate(ctx, "restructure_loan", actor, loanID, func(repos repository.Repositories, snap ledger.Snapshot, now time.Time) (ledger.Outcome, error) {
		allocations, err := repos.Payments.GetLoanAllocations(ctx, actor.TenantID, loanID)
		if err != nil {
			return ledger.Outcome{}, err
		}
		return ledger.Restructure(snap, req.InterestRate, req.TermDays, allocations, actor, now)
	})
	if err != nil {
		return nil, err
	}
	return &domain.LoanDetailResponse{Loan: &out.Snapshot.Loan, Schedule: out.Snapshot.Schedule}, nil
}

// GetLoan returns a loan, served from cache when possible.
func (s *LedgerService) GetLoan(ctx context.Context, actor domain.Actor, loanID uuid.UUID) (*domain.Loan, error) {
	var loan domain.Loan
	if s.cached(ctx, cache.LoanKey(actor.TenantID, loanID), &loan) {
		return &loan, nil
	}

	found, err := s.store.Repositories().Loans.GetByID(ctx, actor.TenantID, loanID)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, cache.LoanKey(actor.TenantID, loanID), found)
	return found, nil
}

// GetSchedule returns a loan's schedule ordered by installment.
func (s *LedgerService) GetSchedule(ctx context.Context, actor domain.Actor, loanID uuid.UUID) (*domain.ScheduleResponse, error) {
	var resp domain.ScheduleResponse
	if s.cached(ctx, cache.ScheduleKey(actor.TenantID, loanID), &resp) {
		return &resp, nil
	}

	repos := s.store.Repositories()
	if _, err := repos.Loans.GetByID(ctx, actor.TenantID, loanID); err != nil {
		return nil, err
	}
	entries, err := repos.Schedule.GetByLoanID(ctx, actor.TenantID, loanID)
	if err != nil {
		return nil, err
	}

	resp = domain.ScheduleResponse{LoanID: loanID, Schedule: entries}
	s.remember(ctx, cache.ScheduleKey(actor.TenantID, loanID), resp)
	return &resp, nil
}

// GetBalance summarises what is owed on a loan and the next installment due.
func (s *LedgerService) GetBalance(ctx context.Context, actor domain.Actor, loanID uuid.UUID) (*domain.BalanceResponse, error) {
	var resp domain.BalanceResponse
	if s.cached(ctx, cache.BalanceKey(actor.TenantID, loanID), &resp) {
		return &resp, nil
	}

	repos := s.store.Repositories()
	loan, err := repos.Loans.GetByID(ctx, actor.TenantID, loanID)
	if err != nil {
		return nil, err
	}
	entries, err := repos.Schedule.GetByLoanID(ctx, actor.TenantID, loanID)
	if err != nil {
		return nil, err
	}

	resp = domain.BalanceResponse{
		LoanID:             loan.ID,
		Status:             loan.Status,
		OutstandingBalance: loan.OutstandingBalance,
		AmountPaid:         loan.AmountPaid,
		PenaltyAmount:      loan.PenaltyAmount,
	}
	// A written-off or closed loan keeps its unpaid rows but nothing is due.
	if !loan.Status.IsTerminal() {
		resp.NextDueEntry = schedule.NextDue(entries)
	}
	s.remember(ctx, cache.BalanceKey(actor.TenantID, loanID), resp)
	return &resp, nil
}

// ListPayments returns every payment on a loan, reversed ones included.
func (s *LedgerService) ListPayments(ctx context.Context, actor domain.Actor, loanID uuid.UUID) ([]domain.Payment, error) {
	repos := s.store.Repositories()
	if _, err := repos.Loans.GetByID(ctx, actor.TenantID, loanID); err != nil {
		return nil, err
	}
	return repos.Payments.GetByLoanID(ctx, actor.TenantID, loanID)
}

// ListPenalties returns every penalty charged on a loan.
func (s *LedgerService) ListPenalties(ctx context.Context, actor domain.Actor, loanID uuid.UUID) ([]domain.PenaltyCharge, error) {
	repos := s.store.Repositories()
	if _, err := repos.Loans.GetByID(ctx, actor.TenantID, loanID); err != nil {
		return nil, err
	}
	return repos.Penalties.GetByLoanID(ctx, actor.TenantID, loanID)
}

type mutation func(repos repository.Repositories, snap ledger.Snapshot, now time.Time) (ledger.Outcome, error)

// mutate runs op on a locked snapshot of the loan and persists its outcome
// in the same transaction.
func (s *LedgerService) mutate(ctx context.Context, operation string, actor domain.Actor, loanID uuid.UUID, op mutation) (ledger.Outcome, error) {
	started := time.Now()
	now := s.now()

	var out ledger.Outcome
	err := s.store.WithTx(ctx, func(repos repository.Repositories) error {
		snap, err := loadSnapshot(ctx, repos, actor.TenantID, loanID)
		if err != nil {
			return err
		}

		out, err = op(repos, snap, now)
		if err != nil {
			return err
		}
		return persist(ctx, repos, snap.Loan, &out)
	})
	s.metrics.Observe(operation, started, err)
	if err != nil {
		s.logFailure(operation, actor, loanID, err)
		return ledger.Outcome{}, err
	}

	s.afterCommit(ctx, actor, out)
	return out, nil
}

func loadSnapshot(ctx context.Context, repos repository.Repositories, tenantID string, loanID uuid.UUID) (ledger.Snapshot, error) {
	loan, err := repos.Loans.GetForUpdate(ctx, tenantID, loanID)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	entries, err := repos.Schedule.GetByLoanID(ctx, tenantID, loanID)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	return ledger.NewSnapshot(*loan, entries), nil
}

// persist writes an outcome. Replaced rows are deleted before the new tail is
// inserted because installment numbers are unique per loan. The loan row is
// written last with its version check.
func persist(ctx context.Context, repos repository.Repositories, before domain.Loan, out *ledger.Outcome) error {
	loan := &out.Snapshot.Loan
	added := map[uuid.UUID]bool{}

	if out.Replaced != nil {
		if len(out.Replaced.Removed) > 0 {
			if err := repos.Schedule.DeleteByIDs(ctx, loan.TenantID, out.Replaced.Removed); err != nil {
				return err
			}
		}
		if len(out.Replaced.Added) > 0 {
			if err := repos.Schedule.CreateBatch(ctx, out.Replaced.Added); err != nil {
				return err
			}
		}
		for _, e := range out.Replaced.Added {
			added[e.ID] = true
		}
	}

	if out.Reallocated != nil {
		if err := repos.Payments.DeleteAllocations(ctx, loan.TenantID, out.Reallocated.Removed); err != nil {
			return err
		}
		if err := repos.Payments.CreateAllocations(ctx, out.Reallocated.Added); err != nil {
			return err
		}
	}

	var touched []domain.ScheduleEntry
	for _, e := range out.TouchedEntries() {
		if !added[e.ID] {
			touched = append(touched, e)
		}
	}
	if len(touched) > 0 {
		if err := repos.Schedule.UpdateEntries(ctx, touched); err != nil {
			return err
		}
	}

	if out.Payment != nil {
		if err := repos.Payments.Create(ctx, out.Payment); err != nil {
			return err
		}
		if err := repos.Payments.CreateAllocations(ctx, out.Allocations); err != nil {
			return err
		}
	}

	if out.Reversed != nil {
		if err := repos.Payments.MarkReversed(ctx, out.Reversed); err != nil {
			return err
		}
	}

	if out.Penalty != nil {
		if err := repos.Penalties.Create(ctx, out.Penalty); err != nil {
			return err
		}
	}

	if out.Changed() || out.Modified(before) {
		return repos.Loans.Update(ctx, loan)
	}
	return nil
}

// afterCommit drops cached views and publishes events. Failures here are
// logged; the ledger state is already durable.
func (s *LedgerService) afterCommit(ctx context.Context, actor domain.Actor, out ledger.Outcome) {
	loan := out.Snapshot.Loan
	log := s.logger.WithFields(logrus.Fields{
		"tenant_id": actor.TenantID,
		"actor_id":  actor.UserID,
		"loan_id":   loan.ID,
	})

	if err := s.cache.Delete(ctx, cache.LoanKeys(loan.TenantID, loan.ID)...); err != nil {
		log.WithError(err).Warn("failed to invalidate cached loan views")
	}

	if out.Payment != nil {
		s.metrics.PaymentRecorded(out.Payment.Amount)
	}
	if out.Penalty != nil {
		s.metrics.PenaltyCharged(out.Penalty.Amount)
	}
	for _, e := range out.Events {
		if e.Type == domain.EventLoanOverdue {
			s.metrics.LoanOverdue()
		}
	}

	if len(out.Events) > 0 {
		if err := s.publisher.Publish(ctx, out.Events...); err != nil {
			s.metrics.PublishFailed(len(out.Events))
			log.WithError(err).WithField("events", len(out.Events)).Error("failed to publish ledger events")
		}
	}

	for _, e := range out.Events {
		log.WithFields(logrus.Fields{
			"event_type":          e.Type,
			"status":              loan.Status,
			"outstanding_balance": loan.OutstandingBalance.StringFixed(2),
		}).Info("ledger updated")
	}
}

func (s *LedgerService) cached(ctx context.Context, key string, dest interface{}) bool {
	hit, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("cache read failed")
		return false
	}
	return hit
}

func (s *LedgerService) remember(ctx context.Context, key string, value interface{}) {
	if s.config.CacheTTL <= 0 {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.config.CacheTTL); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("cache write failed")
	}
}

func (s *LedgerService) logFailure(operation string, actor domain.Actor, loanID uuid.UUID, err error) {
	entry := s.logger.WithFields(logrus.Fields{
		"operation": operation,
		"tenant_id": actor.TenantID,
		"actor_id":  actor.UserID,
		"loan_id":   loanID,
		"code":      customError.Code(err),
	}).WithError(err)

	if errors.Is(err, customError.ErrScheduleInconsistency) || errors.Is(err, customError.ErrDatabase) {
		entry.Error("ledger operation failed")
		return
	}
	entry.Warn("ledger operation rejected")
}
