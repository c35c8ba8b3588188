package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/segyhp/loan-ledger/internal/amortization"
	"github.com/segyhp/loan-ledger/internal/domain"
)

type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) DisburseLoan(ctx context.Context, actor domain.Actor, req domain.DisburseLoanRequest) (*domain.LoanDetailResponse, error) {
	args := m.Called(ctx, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LoanDetailResponse), args.Error(1)
}

func (m *MockLedgerService) ApplyPayment(ctx context.Context, actor domain.Actor, loanID uuid.UUID, req domain.MakePaymentRequest) (*domain.Payment, error) {
	args := m.Called(ctx, actor, loanID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockLedgerService) ReversePayment(ctx context.Context, actor domain.Actor, loanID, paymentID uuid.UUID, reason string) (*domain.Payment, error) {
	args := m.Called(ctx, actor, loanID, paymentID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockLedgerService) GetLoan(ctx context.Context, actor domain.Actor, loanID uuid.UUID) (*domain.Loan, error) {
	args := m.Called(ctx, actor, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLedgerService) GetSchedule(ctx context.Context, actor domain.Actor, loanID uuid.UUID) (*domain.ScheduleResponse, error) {
	args := m.Called(ctx, actor, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ScheduleResponse), args.Error(1)
}

func (m *MockLedgerService) GetBalance(ctx context.Context, actor domain.Actor, loanID uuid.UUID) (*domain.BalanceResponse, error) {
	args := m.Called(ctx, actor, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BalanceResponse), args.Error(1)
}

func (m *MockLedgerService) ListPayments(ctx context.Context, actor domain.Actor, loanID uuid.UUID) ([]domain.Payment, error) {
	args := m.Called(ctx, actor, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Payment), args.Error(1)
}

func (m *MockLedgerService) ListPenalties(ctx context.Context, actor domain.Actor, loanID uuid.UUID) ([]domain.PenaltyCharge, error) {
	args := m.Called(ctx, actor, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PenaltyCharge), args.Error(1)
}

func (m *MockLedgerService) DetectOverdue(ctx context.Context, actor domain.Actor, loanID uuid.UUID, asOf time.Time) (*domain.Loan, error) {
	args := m.Called(ctx, actor, loanID, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLedgerService) ApplyLatePenalty(ctx context.Context, actor domain.Actor, loanID uuid.UUID, installment int, req domain.ApplyPenaltyRequest) (*domain.PenaltyCharge, error) {
	args := m.Called(ctx, actor, loanID, installment, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PenaltyCharge), args.Error(1)
}

func (m *MockLedgerService) CloseLoan(ctx context.Context, actor domain.Actor, loanID uuid.UUID, req domain.CloseLoanRequest) (*domain.Loan, error) {
	args := m.Called(ctx, actor, loanID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLedgerService) SuspendLoan(ctx context.Context, actor domain.Actor, loanID uuid.UUID, reason string) (*domain.Loan, error) {
	args := m.Called(ctx, actor, loanID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLedgerService) ResumeLoan(ctx context.Context, actor domain.Actor, loanID uuid.UUID) (*domain.Loan, error) {
	args := m.Called(ctx, actor, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLedgerService) RestructureLoan(ctx context.Context, actor domain.Actor, loanID uuid.UUID, req domain.RestructureLoanRequest) (*domain.LoanDetailResponse, error) {
	args := m.Called(ctx, actor, loanID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LoanDetailResponse), args.Error(1)
}

func (m *MockLedgerService) Quote(ctx context.Context, actor domain.Actor, req domain.QuoteRequest) (*amortization.Breakdown, error) {
	args := m.Called(ctx, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*amortization.Breakdown), args.Error(1)
}

func (m *MockLedgerService) CreateProduct(ctx context.Context, actor domain.Actor, req domain.CreateProductRequest) (*domain.LoanProduct, error) {
	args := m.Called(ctx, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LoanProduct), args.Error(1)
}

func (m *MockLedgerService) GetProduct(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.LoanProduct, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LoanProduct), args.Error(1)
}

func (m *MockLedgerService) ListProducts(ctx context.Context, actor domain.Actor, includeArchived bool) ([]domain.LoanProduct, error) {
	args := m.Called(ctx, actor, includeArchived)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LoanProduct), args.Error(1)
}

func (m *MockLedgerService) ArchiveProduct(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	args := m.Called(ctx, actor, id)
	return args.Error(0)
}
