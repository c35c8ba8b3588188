package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/segyhp/loan-ledger/internal/domain"
)

// LoanRef identifies a loan across tenants for batch jobs. CreatedAt and ID
// together are the paging cursor.
type LoanRef struct {
	TenantID  string    `db:"tenant_id"`
	ID        uuid.UUID `db:"id"`
	CreatedAt time.Time `db:"created_at"`
}

// LoanRepository defines the interface for loan data operations
type LoanRepository interface {
	// Create inserts a new loan at version 1
	Create(ctx context.Context, loan *domain.Loan) error

	// GetByID retrieves a loan within a tenant
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*domain.Loan, error)

	// GetForUpdate retrieves a loan and locks its row until the transaction ends
	GetForUpdate(ctx context.Context, tenantID string, id uuid.UUID) (*domain.Loan, error)

	// Update writes the loan if its version is unchanged and bumps the version
	Update(ctx context.Context, loan *domain.Loan) error

	// ListByStatus pages through loans in any of the given statuses ordered by
	// (created_at, id), starting after the given loan or from the oldest when
	// after is nil
	ListByStatus(ctx context.Context, statuses []domain.LoanStatus, after *LoanRef, limit int) ([]LoanRef, error)
}

// ScheduleRepository defines the interface for repayment schedule operations
type ScheduleRepository interface {
	// CreateBatch inserts schedule entries
	CreateBatch(ctx context.Context, entries []domain.ScheduleEntry) error

	// GetByLoanID retrieves a loan's schedule ordered by installment number
	GetByLoanID(ctx context.Context, tenantID string, loanID uuid.UUID) ([]domain.ScheduleEntry, error)

	// UpdateEntries writes the mutable columns of existing entries
	UpdateEntries(ctx context.Context, entries []domain.ScheduleEntry) error

	// DeleteByIDs removes entries replaced by a regenerated tail
	DeleteByIDs(ctx context.Context, tenantID string, ids []uuid.UUID) error
}

// PaymentRepository defines the interface for payment data operations
type PaymentRepository interface {
	// Create creates a new payment record
	Create(ctx context.Context, payment *domain.Payment) error

	// CreateAllocations records how a payment was spread over the schedule
	CreateAllocations(ctx context.Context, allocations []domain.PaymentAllocation) error

	// GetByID retrieves a payment within a tenant
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*domain.Payment, error)

	// GetAllocations retrieves a payment's allocations by installment
	GetAllocations(ctx context.Context, tenantID string, paymentID uuid.UUID) ([]domain.PaymentAllocation, error)

	// GetByLoanID retrieves all payments for a loan, oldest first
	GetByLoanID(ctx context.Context, tenantID string, loanID uuid.UUID) ([]domain.Payment, error)

	// GetLoanAllocations retrieves the allocations of a loan's completed
	// payments, in payment order
	GetLoanAllocations(ctx context.Context, tenantID string, loanID uuid.UUID) ([]domain.PaymentAllocation, error)

	// DeleteAllocations removes allocations moved onto a regenerated tail
	DeleteAllocations(ctx context.Context, tenantID string, ids []uuid.UUID) error

	// MarkReversed flags a completed payment as reversed
	MarkReversed(ctx context.Context, payment *domain.Payment) error
}

// PenaltyRepository defines the interface for penalty charge operations
type PenaltyRepository interface {
	// Create records a charge. A repeated non-empty period key is rejected
	// with ErrDuplicatePenalty.
	Create(ctx context.Context, charge *domain.PenaltyCharge) error

	// GetByLoanID retrieves a loan's charges, oldest first
	GetByLoanID(ctx context.Context, tenantID string, loanID uuid.UUID) ([]domain.PenaltyCharge, error)
}

// ProductRepository defines the interface for the loan product catalog
type ProductRepository interface {
	Create(ctx context.Context, product *domain.LoanProduct) error
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*domain.LoanProduct, error)
	List(ctx context.Context, tenantID string, includeArchived bool) ([]domain.LoanProduct, error)
	Archive(ctx context.Context, tenantID string, id uuid.UUID, at time.Time) error
}

// Repositories groups the repositories bound to one connection or
// transaction.
type Repositories struct {
	Loans     LoanRepository
	Schedule  ScheduleRepository
	Payments  PaymentRepository
	Penalties PenaltyRepository
	Products  ProductRepository
}

// Store hands out repositories and runs work atomically.
type Store interface {
	// Repositories returns repositories outside any transaction, for reads
	Repositories() Repositories

	// WithTx runs fn in one transaction. It commits when fn returns nil and
	// rolls back otherwise.
	WithTx(ctx context.Context, fn func(Repositories) error) error

	Ping(ctx context.Context) error
}
