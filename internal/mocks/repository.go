// Package mocks holds testify mocks of the repository, cache, publisher and
// service interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/repository"
)

type MockLoanRepository struct {
	mock.Mock
}

func (m *MockLoanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

func (m *MockLoanRepository) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*domain.Loan, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) GetForUpdate(ctx context.Context, tenantID string, id uuid.UUID) (*domain.Loan, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

func (m *MockLoanRepository) ListByStatus(ctx context.Context, statuses []domain.LoanStatus, after *repository.LoanRef, limit int) ([]repository.LoanRef, error) {
	args := m.Called(ctx, statuses, after, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.LoanRef), args.Error(1)
}

type MockScheduleRepository struct {
	mock.Mock
}

func (m *MockScheduleRepository) CreateBatch(ctx context.Context, entries []domain.ScheduleEntry) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

func (m *MockScheduleRepository) GetByLoanID(ctx context.Context, tenantID string, loanID uuid.UUID) ([]domain.ScheduleEntry, error) {
	args := m.Called(ctx, tenantID, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ScheduleEntry), args.Error(1)
}

func (m *MockScheduleRepository) UpdateEntries(ctx context.Context, entries []domain.ScheduleEntry) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

func (m *MockScheduleRepository) DeleteByIDs(ctx context.Context, tenantID string, ids []uuid.UUID) error {
	args := m.Called(ctx, tenantID, ids)
	return args.Error(0)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) CreateAllocations(ctx context.Context, allocations []domain.PaymentAllocation) error {
	args := m.Called(ctx, allocations)
	return args.Error(0)
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*domain.Payment, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) GetAllocations(ctx context.Context, tenantID string, paymentID uuid.UUID) ([]domain.PaymentAllocation, error) {
	args := m.Called(ctx, tenantID, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PaymentAllocation), args.Error(1)
}

func (m *MockPaymentRepository) GetByLoanID(ctx context.Context, tenantID string, loanID uuid.UUID) ([]domain.Payment, error) {
	args := m.Called(ctx, tenantID, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) GetLoanAllocations(ctx context.Context, tenantID string, loanID uuid.UUID) ([]domain.PaymentAllocation, error) {
	args := m.Called(ctx, tenantID, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PaymentAllocation), args.Error(1)
}

func (m *MockPaymentRepository) DeleteAllocations(ctx context.Context, tenantID string, ids []uuid.UUID) error {
	args := m.Called(ctx, tenantID, ids)
	return args.Error(0)
}

func (m *MockPaymentRepository) MarkReversed(ctx context.Context, payment *domain.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

type MockPenaltyRepository struct {
	mock.Mock
}

func (m *MockPenaltyRepository) Create(ctx context.Context, charge *domain.PenaltyCharge) error {
	args := m.Called(ctx, charge)
	return args.Error(0)
}

func (m *MockPenaltyRepository) GetByLoanID(ctx context.Context, tenantID string, loanID uuid.UUID) ([]domain.PenaltyCharge, error) {
	args := m.Called(ctx, tenantID, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PenaltyCharge), args.Error(1)
}

type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) Create(ctx context.Context, product *domain.LoanProduct) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductRepository) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*domain.LoanProduct, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LoanProduct), args.Error(1)
}

func (m *MockProductRepository) List(ctx context.Context, tenantID string, includeArchived bool) ([]domain.LoanProduct, error) {
	args := m.Called(ctx, tenantID, includeArchived)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LoanProduct), args.Error(1)
}

func (m *MockProductRepository) Archive(ctx context.Context, tenantID string, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, tenantID, id, at)
	return args.Error(0)
}

// MockStore hands out the mock repositories and runs WithTx inline.
type MockStore struct {
	Loans     *MockLoanRepository
	Schedule  *MockScheduleRepository
	Payments  *MockPaymentRepository
	Penalties *MockPenaltyRepository
	Products  *MockProductRepository

	PingErr      error
	Transactions int
	Failed       int
}

func NewMockStore() *MockStore {
	return &MockStore{
		Loans:     &MockLoanRepository{},
		Schedule:  &MockScheduleRepository{},
		Payments:  &MockPaymentRepository{},
		Penalties: &MockPenaltyRepository{},
		Products:  &MockProductRepository{},
	}
}

func (m *MockStore) Repositories() repository.Repositories {
	return repository.Repositories{
		Loans:     m.Loans,
		Schedule:  m.Schedule,
		Payments:  m.Payments,
		Penalties: m.Penalties,
		Products:  m.Products,
	}
}

func (m *MockStore) WithTx(_ context.Context, fn func(repository.Repositories) error) error {
	m.Transactions++
	if err := fn(m.Repositories()); err != nil {
		m.Failed++
		return err
	}
	return nil
}

func (m *MockStore) Ping(context.Context) error {
	return m.PingErr
}

// AssertExpectations checks every repository mock.
func (m *MockStore) AssertExpectations(t mock.TestingT) {
	m.Loans.AssertExpectations(t)
	m.Schedule.AssertExpectations(t)
	m.Payments.AssertExpectations(t)
	m.Penalties.AssertExpectations(t)
	m.Products.AssertExpectations(t)
}
