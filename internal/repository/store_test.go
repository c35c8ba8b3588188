package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/ledger"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

const tenant = "tenant-a"

var (
	disbursedOn = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	actor       = domain.Actor{TenantID: tenant, UserID: "officer-1"}
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	require.NoError(t, RunMigrations("sqlite3://"+path, "file://../../migrations/sqlite3"))

	db, err := sqlx.Open("sqlite3", path+"?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLStore(db)
}

func seedProduct(t *testing.T, store *SQLStore) domain.LoanProduct {
	t.Helper()
	product := domain.LoanProduct{
		ID:                   uuid.New(),
		TenantID:             tenant,
		Name:                 "Monthly flat",
		MinAmount:            dec("100"),
		MaxAmount:            dec("50000"),
		InterestRate:         dec("1"),
		InterestType:         domain.InterestTypeFlat,
		MinTermDays:          30,
		MaxTermDays:          365,
		ProcessingFeePercent: decimal.Zero,
		LatePenaltyPercent:   dec("5"),
		GracePeriodDays:      3,
		PaymentFrequency:     domain.FrequencyMonthly,
		CreatedAt:            disbursedOn,
		UpdatedAt:            disbursedOn,
	}
	require.NoError(t, store.Repositories().Products.Create(context.Background(), &product))
	return product
}

func seedLoan(t *testing.T, store *SQLStore) ledger.Snapshot {
	t.Helper()
	product := seedProduct(t, store)
	out, err := ledger.Disburse(
		domain.LoanApplication{ID: uuid.NewString(), BorrowerID: "borrower-1", ProductID: product.ID},
		domain.ApprovalTerms{Amount: dec("10000"), TermDays: 90, DisbursementDate: disbursedOn},
		product, actor, disbursedOn,
	)
	require.NoError(t, err)

	err = store.WithTx(context.Background(), func(repos Repositories) error {
		if err := repos.Loans.Create(context.Background(), &out.Snapshot.Loan); err != nil {
			return err
		}
		return repos.Schedule.CreateBatch(context.Background(), out.Snapshot.Schedule)
	})
	require.NoError(t, err)
	return out.Snapshot
}

func TestLoanRepository_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	s := seedLoan(t, store)
	ctx := context.Background()
	repos := store.Repositories()

	loan, err := repos.Loans.GetByID(ctx, tenant, s.Loan.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Loan.ID, loan.ID)
	assert.Equal(t, domain.LoanStatusActive, loan.Status)
	assert.Equal(t, 1, loan.Version)
	assert.True(t, loan.TotalAmount.Equal(dec("10300")))
	assert.True(t, loan.OutstandingBalance.Equal(dec("10300")))
	assert.True(t, loan.DisbursementDate.Equal(disbursedOn))
	assert.Equal(t, domain.FrequencyMonthly, loan.PaymentFrequency)

	entries, err := repos.Schedule.GetByLoanID(ctx, tenant, s.Loan.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].PrincipalDue.Equal(dec("3333.34")))
	assert.True(t, entries[2].DueDate.Equal(disbursedOn.AddDate(0, 0, 90)))
	assert.Nil(t, entries[0].PaidDate)

	assert.NoError(t, ledger.Reconcile(ledger.NewSnapshot(*loan, entries)))
}

func TestLoanRepository_TenantScoped(t *testing.T) {
	store := newTestStore(t)
	s := seedLoan(t, store)

	_, err := store.Repositories().Loans.GetByID(context.Background(), "tenant-b", s.Loan.ID)
	assert.ErrorIs(t, err, customError.ErrLoanNotFound)

	entries, err := store.Repositories().Schedule.GetByLoanID(context.Background(), "tenant-b", s.Loan.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLoanRepository_OptimisticVersion(t *testing.T) {
	store := newTestStore(t)
	s := seedLoan(t, store)
	ctx := context.Background()
	loans := store.Repositories().Loans

	first, err := loans.GetByID(ctx, tenant, s.Loan.ID)
	require.NoError(t, err)
	stale, err := loans.GetByID(ctx, tenant, s.Loan.ID)
	require.NoError(t, err)

	first.Status = domain.LoanStatusOverdue
	require.NoError(t, loans.Update(ctx, first))
	assert.Equal(t, 2, first.Version)

	stale.Status = domain.LoanStatusSuspended
	err = loans.Update(ctx, stale)
	assert.ErrorIs(t, err, customError.ErrConcurrentModification)

	current, err := loans.GetByID(ctx, tenant, s.Loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusOverdue, current.Status)
	assert.Equal(t, 2, current.Version)
}

func TestLoanRepository_ListByStatus(t *testing.T) {
	store := newTestStore(t)
	a := seedLoan(t, store)
	b := seedLoan(t, store)
	ctx := context.Background()

	loan, err := store.Repositories().Loans.GetByID(ctx, tenant, b.Loan.ID)
	require.NoError(t, err)
	loan.Status = domain.LoanStatusSuspended
	require.NoError(t, store.Repositories().Loans.Update(ctx, loan))

	open := []domain.LoanStatus{domain.LoanStatusActive, domain.LoanStatusOverdue}
	refs, err := store.Repositories().Loans.ListByStatus(ctx, open, nil, 10)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, a.Loan.ID, refs[0].ID)
	assert.Equal(t, tenant, refs[0].TenantID)
	assert.True(t, disbursedOn.Equal(refs[0].CreatedAt))

	refs, err = store.Repositories().Loans.ListByStatus(ctx, open, &refs[0], 10)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestLoanRepository_ListByStatus_KeysetSurvivesShrinkingSet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		seedLoan(t, store)
	}
	loans := store.Repositories().Loans
	open := []domain.LoanStatus{domain.LoanStatusActive, domain.LoanStatusOverdue}

	all, err := loans.ListByStatus(ctx, open, nil, 10)
	require.NoError(t, err)
	require.Len(t, all, 4)

	page, err := loans.ListByStatus(ctx, open, nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, refIDs(all[:2]), refIDs(page))

	// Both loans of the first page leave the open set before the next page.
	for _, ref := range page {
		loan, err := loans.GetByID(ctx, ref.TenantID, ref.ID)
		require.NoError(t, err)
		loan.Status = domain.LoanStatusSuspended
		require.NoError(t, loans.Update(ctx, loan))
	}

	next, err := loans.ListByStatus(ctx, open, &page[1], 2)
	require.NoError(t, err)
	assert.Equal(t, refIDs(all[2:]), refIDs(next))
}

func refIDs(refs []LoanRef) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ID)
	}
	return ids
}

func TestScheduleRepository_UpdateAndReplace(t *testing.T) {
	store := newTestStore(t)
	s := seedLoan(t, store)
	ctx := context.Background()
	schedule := store.Repositories().Schedule

	paid := s.Schedule[0]
	paidOn := disbursedOn.AddDate(0, 0, 10)
	paid.AmountPaid = paid.TotalDue
	paid.OutstandingAmount = decimal.Zero
	paid.Status = domain.ScheduleStatusPaid
	paid.PaidDate = &paidOn
	require.NoError(t, schedule.UpdateEntries(ctx, []domain.ScheduleEntry{paid}))

	require.NoError(t, schedule.DeleteByIDs(ctx, tenant, []uuid.UUID{s.Schedule[1].ID, s.Schedule[2].ID}))

	entries, err := schedule.GetByLoanID(ctx, tenant, s.Loan.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ScheduleStatusPaid, entries[0].Status)
	require.NotNil(t, entries[0].PaidDate)
	assert.True(t, entries[0].PaidDate.Equal(paidOn))
	assert.True(t, entries[0].OutstandingAmount.IsZero())

	missing := s.Schedule[1]
	err = schedule.UpdateEntries(ctx, []domain.ScheduleEntry{missing})
	assert.ErrorIs(t, err, customError.ErrInstallmentNotFound)
}

func TestPaymentRepository_RecordAndReverse(t *testing.T) {
	store := newTestStore(t)
	s := seedLoan(t, store)
	ctx := context.Background()
	payments := store.Repositories().Payments

	on := disbursedOn.AddDate(0, 0, 10)
	out, err := ledger.ApplyPayment(s, ledger.PaymentInput{Amount: dec("5000"), Method: domain.PaymentMethodBankTransfer, PaymentDate: on, Reference: "TX-1"}, actor, on)
	require.NoError(t, err)

	require.NoError(t, payments.Create(ctx, out.Payment))
	require.NoError(t, payments.CreateAllocations(ctx, out.Allocations))

	got, err := payments.GetByID(ctx, tenant, out.Payment.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(dec("5000")))
	assert.True(t, got.PrincipalPortion.Equal(out.Payment.PrincipalPortion))
	assert.Equal(t, "TX-1", got.Reference)
	assert.Equal(t, domain.LoanStatusActive, got.PriorLoanStatus)
	assert.Nil(t, got.ReversedAt)

	allocations, err := payments.GetAllocations(ctx, tenant, out.Payment.ID)
	require.NoError(t, err)
	require.Len(t, allocations, 2)
	assert.Equal(t, 1, allocations[0].InstallmentNumber)
	assert.Equal(t, 2, allocations[1].InstallmentNumber)
	assert.True(t, allocations[1].Scheduled().Equal(dec("1566.66")))

	list, err := payments.GetByLoanID(ctx, tenant, s.Loan.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	reversedAt := on.Add(time.Hour)
	got.ReversalReason = "bounced"
	got.ReversedAt = &reversedAt
	require.NoError(t, payments.MarkReversed(ctx, got))

	err = payments.MarkReversed(ctx, got)
	assert.ErrorIs(t, err, customError.ErrAlreadyReversed)

	got, err = payments.GetByID(ctx, tenant, out.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusReversed, got.Status)
	assert.Equal(t, "bounced", got.ReversalReason)

	_, err = payments.GetByID(ctx, tenant, uuid.New())
	assert.ErrorIs(t, err, customError.ErrPaymentNotFound)
}

func TestPaymentRepository_LoanAllocations(t *testing.T) {
	store := newTestStore(t)
	s := seedLoan(t, store)
	ctx := context.Background()
	payments := store.Repositories().Payments

	first, err := ledger.ApplyPayment(s, ledger.PaymentInput{Amount: dec("1000"), Method: domain.PaymentMethodCash}, actor, disbursedOn.AddDate(0, 0, 5))
	require.NoError(t, err)
	second, err := ledger.ApplyPayment(first.Snapshot, ledger.PaymentInput{Amount: dec("3000"), Method: domain.PaymentMethodCash}, actor, disbursedOn.AddDate(0, 0, 10))
	require.NoError(t, err)
	for _, out := range []ledger.Outcome{first, second} {
		require.NoError(t, payments.Create(ctx, out.Payment))
		require.NoError(t, payments.CreateAllocations(ctx, out.Allocations))
	}

	allocations, err := payments.GetLoanAllocations(ctx, tenant, s.Loan.ID)
	require.NoError(t, err)
	require.Len(t, allocations, 3)
	assert.Equal(t, first.Payment.ID, allocations[0].PaymentID)
	assert.Equal(t, second.Payment.ID, allocations[1].PaymentID)
	assert.Equal(t, 1, allocations[1].InstallmentNumber)
	assert.Equal(t, 2, allocations[2].InstallmentNumber)

	reversedAt := disbursedOn.AddDate(0, 0, 11)
	first.Payment.ReversedAt = &reversedAt
	require.NoError(t, payments.MarkReversed(ctx, first.Payment))

	allocations, err = payments.GetLoanAllocations(ctx, tenant, s.Loan.ID)
	require.NoError(t, err)
	require.Len(t, allocations, 2)

	require.NoError(t, payments.DeleteAllocations(ctx, tenant, []uuid.UUID{allocations[1].ID}))
	remaining, err := payments.GetAllocations(ctx, tenant, second.Payment.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, allocations[0].ID, remaining[0].ID)

	other, err := payments.GetLoanAllocations(ctx, "tenant-b", s.Loan.ID)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestPenaltyRepository_PeriodKeyDedupe(t *testing.T) {
	store := newTestStore(t)
	s := seedLoan(t, store)
	ctx := context.Background()
	penalties := store.Repositories().Penalties

	charge := func(key string) *domain.PenaltyCharge {
		return &domain.PenaltyCharge{
			ID:                uuid.New(),
			TenantID:          tenant,
			LoanID:            s.Loan.ID,
			InstallmentNumber: 1,
			Amount:            dec("171.67"),
			PeriodKey:         key,
			AssessedAt:        disbursedOn.AddDate(0, 0, 40),
			CreatedBy:         "scheduler",
			CreatedAt:         disbursedOn.AddDate(0, 0, 40),
		}
	}

	require.NoError(t, penalties.Create(ctx, charge("k:1:2024-02-10")))
	err := penalties.Create(ctx, charge("k:1:2024-02-10"))
	assert.ErrorIs(t, err, customError.ErrDuplicatePenalty)

	require.NoError(t, penalties.Create(ctx, charge("k:1:2024-02-11")))
	require.NoError(t, penalties.Create(ctx, charge("")))
	require.NoError(t, penalties.Create(ctx, charge("")))

	charges, err := penalties.GetByLoanID(ctx, tenant, s.Loan.ID)
	require.NoError(t, err)
	assert.Len(t, charges, 4)
}

func TestProductRepository_Catalog(t *testing.T) {
	store := newTestStore(t)
	product := seedProduct(t, store)
	ctx := context.Background()
	products := store.Repositories().Products

	got, err := products.GetByID(ctx, tenant, product.ID)
	require.NoError(t, err)
	assert.Equal(t, "Monthly flat", got.Name)
	assert.True(t, got.LatePenaltyPercent.Equal(dec("5")))
	assert.False(t, got.Archived)

	require.NoError(t, products.Archive(ctx, tenant, product.ID, disbursedOn.AddDate(0, 1, 0)))

	active, err := products.List(ctx, tenant, false)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := products.List(ctx, tenant, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Archived)

	err = products.Archive(ctx, "tenant-b", product.ID, disbursedOn)
	assert.ErrorIs(t, err, customError.ErrProductNotFound)
}

func TestSQLStore_WithTxRollsBack(t *testing.T) {
	store := newTestStore(t)
	s := seedLoan(t, store)
	ctx := context.Background()

	on := disbursedOn.AddDate(0, 0, 10)
	out, err := ledger.ApplyPayment(s, ledger.PaymentInput{Amount: dec("1000"), Method: domain.PaymentMethodCash, PaymentDate: on}, actor, on)
	require.NoError(t, err)

	boom := errors.New("publisher exploded")
	err = store.WithTx(ctx, func(repos Repositories) error {
		if err := repos.Payments.Create(ctx, out.Payment); err != nil {
			return err
		}
		if err := repos.Schedule.UpdateEntries(ctx, out.TouchedEntries()); err != nil {
			return err
		}
		loan := out.Snapshot.Loan
		if err := repos.Loans.Update(ctx, &loan); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.Repositories().Payments.GetByID(ctx, tenant, out.Payment.ID)
	assert.ErrorIs(t, err, customError.ErrPaymentNotFound)

	loan, err := store.Repositories().Loans.GetByID(ctx, tenant, s.Loan.ID)
	require.NoError(t, err)
	assert.True(t, loan.AmountPaid.IsZero())
	assert.Equal(t, 1, loan.Version)

	entries, err := store.Repositories().Schedule.GetByLoanID(ctx, tenant, s.Loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ScheduleStatusPending, entries[0].Status)
}
