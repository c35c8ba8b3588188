package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/loan-ledger/internal/cache"
	"github.com/segyhp/loan-ledger/internal/config"
	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/metrics"
	"github.com/segyhp/loan-ledger/internal/repository"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(_ context.Context, events ...domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]domain.EventType, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

type flow struct {
	svc       *LedgerService
	store     *repository.SQLStore
	publisher *recordingPublisher
	now       time.Time
}

// newFlow wires the service to a migrated SQLite database.
func newFlow(t *testing.T) *flow {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	require.NoError(t, repository.RunMigrations("sqlite3://"+path, "file://../../migrations/sqlite3"))

	db, err := sqlx.Open("sqlite3", path+"?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger, _ := test.NewNullLogger()
	f := &flow{
		store:     repository.NewSQLStore(db),
		publisher: &recordingPublisher{},
		now:       clock,
	}
	f.svc = NewLedgerService(Dependencies{
		Store:     f.store,
		Cache:     cache.Noop{},
		Publisher: f.publisher,
		Metrics:   metrics.New(),
		Logger:    logger,
		Clock:     func() time.Time { return f.now },
		Config:    config.BusinessConfig{PenaltyDedupeTTL: time.Hour, SweepBatchSize: 1},
	})
	return f
}

func (f *flow) product(t *testing.T) domain.LoanProduct {
	t.Helper()
	p := testProduct()
	product, err := f.svc.CreateProduct(context.Background(), actor, domain.CreateProductRequest{
		Name:                 p.Name,
		MinAmount:            p.MinAmount,
		MaxAmount:            p.MaxAmount,
		InterestRate:         p.InterestRate,
		InterestType:         p.InterestType,
		MinTermDays:          p.MinTermDays,
		MaxTermDays:          p.MaxTermDays,
		ProcessingFeePercent: p.ProcessingFeePercent,
		LatePenaltyPercent:   p.LatePenaltyPercent,
		GracePeriodDays:      p.GracePeriodDays,
		PaymentFrequency:     p.PaymentFrequency,
	})
	require.NoError(t, err)
	return *product
}

func (f *flow) disburse(t *testing.T) *domain.Loan {
	t.Helper()
	resp, err := f.svc.DisburseLoan(context.Background(), actor, disburseRequest(f.product(t)))
	require.NoError(t, err)
	return resp.Loan
}

func (f *flow) pay(t *testing.T, loanID uuid.UUID, amount string) *domain.Payment {
	t.Helper()
	payment, err := f.svc.ApplyPayment(context.Background(), actor, loanID, domain.MakePaymentRequest{
		Amount: dec(amount),
		Method: domain.PaymentMethodCash,
	})
	require.NoError(t, err)
	return payment
}

func TestFlow_PaymentReversalPenaltyPayoff(t *testing.T) {
	f := newFlow(t)
	ctx := context.Background()
	loan := f.disburse(t)

	f.now = day(10)
	payment := f.pay(t, loan.ID, "1000")

	balance, err := f.svc.GetBalance(ctx, actor, loan.ID)
	require.NoError(t, err)
	assertDecimal(t, "9300", balance.OutstandingBalance)
	assert.Equal(t, domain.ScheduleStatusPartiallyPaid, balance.NextDueEntry.Status)

	reversed, err := f.svc.ReversePayment(ctx, actor, loan.ID, payment.ID, "cheque bounced")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusReversed, reversed.Status)

	_, err = f.svc.ReversePayment(ctx, actor, loan.ID, payment.ID, "again")
	assert.ErrorIs(t, err, customError.ErrAlreadyReversed)

	f.now = day(38)
	current, err := f.svc.DetectOverdue(ctx, actor, loan.ID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusOverdue, current.Status)
	assertDecimal(t, "10300", current.OutstandingBalance)

	req := domain.ApplyPenaltyRequest{PeriodKey: "2024-02"}
	charge, err := f.svc.ApplyLatePenalty(ctx, actor, loan.ID, 1, req)
	require.NoError(t, err)
	assertDecimal(t, "171.67", charge.Amount)

	_, err = f.svc.ApplyLatePenalty(ctx, actor, loan.ID, 1, req)
	assert.ErrorIs(t, err, customError.ErrDuplicatePenalty)

	penalties, err := f.svc.ListPenalties(ctx, actor, loan.ID)
	require.NoError(t, err)
	require.Len(t, penalties, 1)

	f.now = day(40)
	final := f.pay(t, loan.ID, "10471.67")
	assertDecimal(t, "171.67", final.PenaltyPortion)

	current, err = f.svc.GetLoan(ctx, actor, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusPaidOff, current.Status)
	assert.True(t, current.OutstandingBalance.IsZero())

	closed, err := f.svc.CloseLoan(ctx, actor, loan.ID, domain.CloseLoanRequest{ClosureType: domain.ClosureSettled})
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusClosed, closed.Status)

	payments, err := f.svc.ListPayments(ctx, actor, loan.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, domain.PaymentStatusReversed, payments[0].Status)
	assert.Equal(t, domain.PaymentStatusCompleted, payments[1].Status)

	assert.Equal(t, []domain.EventType{
		domain.EventLoanDisbursed,
		domain.EventPaymentRecorded,
		domain.EventPaymentReversed,
		domain.EventLoanOverdue,
		domain.EventPenaltyApplied,
		domain.EventPaymentRecorded,
		domain.EventLoanPaidOff,
		domain.EventLoanClosed,
	}, f.publisher.types())
}

func TestFlow_TenantIsolation(t *testing.T) {
	f := newFlow(t)
	loan := f.disburse(t)

	other := domain.Actor{TenantID: "tenant-b", UserID: "officer-9"}
	_, err := f.svc.GetLoan(context.Background(), other, loan.ID)
	assert.ErrorIs(t, err, customError.ErrLoanNotFound)

	_, err = f.svc.ApplyPayment(context.Background(), other, loan.ID, domain.MakePaymentRequest{
		Amount: dec("10"),
		Method: domain.PaymentMethodCash,
	})
	assert.ErrorIs(t, err, customError.ErrLoanNotFound)
}

func TestFlow_RestructurePersistsNewTail(t *testing.T) {
	f := newFlow(t)
	ctx := context.Background()
	loan := f.disburse(t)

	f.now = day(20)
	f.pay(t, loan.ID, "3433.34")

	resp, err := f.svc.RestructureLoan(ctx, actor, loan.ID, domain.RestructureLoanRequest{
		InterestRate: dec("1"),
		TermDays:     150,
	})
	require.NoError(t, err)

	stored, err := f.svc.GetSchedule(ctx, actor, loan.ID)
	require.NoError(t, err)
	require.Len(t, stored.Schedule, len(resp.Schedule))
	for i, e := range stored.Schedule {
		assert.Equal(t, i+1, e.InstallmentNumber)
		assert.Equal(t, resp.Schedule[i].ID, e.ID)
	}
	assert.Equal(t, domain.ScheduleStatusPaid, stored.Schedule[0].Status)

	current, err := f.svc.GetLoan(ctx, actor, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, 150, current.TermDays)
	assert.True(t, resp.Loan.OutstandingBalance.Equal(current.OutstandingBalance))
	assert.True(t, day(150).Equal(current.MaturityDate))
	assert.Contains(t, f.publisher.types(), domain.EventLoanRestructured)
}

func TestFlow_SuspendBlocksPayments(t *testing.T) {
	f := newFlow(t)
	ctx := context.Background()
	loan := f.disburse(t)

	_, err := f.svc.SuspendLoan(ctx, actor, loan.ID, "dispute")
	require.NoError(t, err)

	_, err = f.svc.ApplyPayment(ctx, actor, loan.ID, domain.MakePaymentRequest{Amount: dec("10"), Method: domain.PaymentMethodCash})
	assert.ErrorIs(t, err, customError.ErrLoanNotActive)

	resumed, err := f.svc.ResumeLoan(ctx, actor, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusActive, resumed.Status)
}

func TestFlow_Sweeps(t *testing.T) {
	f := newFlow(t)
	ctx := context.Background()
	first := f.disburse(t)
	second := f.disburse(t)

	f.now = day(20)
	f.pay(t, second.ID, "3433.34")

	system := domain.Actor{UserID: "system:scheduler"}
	result, err := f.svc.DetectOverdueAll(ctx, system, day(38))
	require.NoError(t, err)
	assert.Equal(t, domain.OverdueSweepResult{Scanned: 2, Flagged: 1}, result)

	result, err = f.svc.ApplyPenaltiesAll(ctx, system, day(38))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, 1, result.Penalties)

	result, err = f.svc.ApplyPenaltiesAll(ctx, system, day(38))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Penalties)
	assert.Equal(t, 1, result.Skipped)

	loan, err := f.svc.GetLoan(ctx, actor, first.ID)
	require.NoError(t, err)
	assertDecimal(t, "10471.67", loan.OutstandingBalance)

	loan, err = f.svc.GetLoan(ctx, actor, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusActive, loan.Status)
}

func TestFlow_SameClockPaymentAndReversal(t *testing.T) {
	f := newFlow(t)
	ctx := context.Background()
	loan := f.disburse(t)

	f.now = day(10)
	payment := f.pay(t, loan.ID, "1000")
	_, err := f.svc.ReversePayment(ctx, actor, loan.ID, payment.ID, "keyed twice")
	require.NoError(t, err)

	current, err := f.svc.GetLoan(ctx, actor, loan.ID)
	require.NoError(t, err)
	assert.True(t, current.AmountPaid.IsZero())
	assertDecimal(t, "10300", current.OutstandingBalance)
	assert.Equal(t, 3, current.Version)

	f.pay(t, loan.ID, "3433.34")
	balance, err := f.svc.GetBalance(ctx, actor, loan.ID)
	require.NoError(t, err)
	assertDecimal(t, "6866.66", balance.OutstandingBalance)
	require.NotNil(t, balance.NextDueEntry)
	assert.Equal(t, 2, balance.NextDueEntry.InstallmentNumber)
}

func TestFlow_ReverseAfterRestructure(t *testing.T) {
	f := newFlow(t)
	ctx := context.Background()
	loan := f.disburse(t)

	f.now = day(10)
	payment := f.pay(t, loan.ID, "2000")

	f.now = day(15)
	_, err := f.svc.RestructureLoan(ctx, actor, loan.ID, domain.RestructureLoanRequest{
		InterestRate: dec("1"),
		TermDays:     180,
	})
	require.NoError(t, err)

	f.now = day(16)
	_, err = f.svc.ReversePayment(ctx, actor, loan.ID, payment.ID, "cheque bounced")
	require.NoError(t, err)

	current, err := f.svc.GetLoan(ctx, actor, loan.ID)
	require.NoError(t, err)
	assert.True(t, current.AmountPaid.IsZero())
	assertDecimal(t, "10600", current.OutstandingBalance)

	stored, err := f.svc.GetSchedule(ctx, actor, loan.ID)
	require.NoError(t, err)
	require.Len(t, stored.Schedule, 6)
	for _, e := range stored.Schedule {
		assert.True(t, e.AmountPaid.IsZero(), "installment %d", e.InstallmentNumber)
		assert.Equal(t, domain.ScheduleStatusPending, e.Status)
	}
}

func TestFlow_WrittenOffBalanceHasNoNextDue(t *testing.T) {
	f := newFlow(t)
	ctx := context.Background()
	loan := f.disburse(t)

	f.now = day(10)
	f.pay(t, loan.ID, "1000")

	f.now = day(200)
	closed, err := f.svc.CloseLoan(ctx, actor, loan.ID, domain.CloseLoanRequest{
		ClosureType: domain.ClosureWrittenOff,
		Reason:      "uncollectable",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusWrittenOff, closed.Status)

	balance, err := f.svc.GetBalance(ctx, actor, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusWrittenOff, balance.Status)
	assert.Nil(t, balance.NextDueEntry)
}
