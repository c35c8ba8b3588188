package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/segyhp/loan-ledger/internal/amortization"
	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

// CreateProduct adds a loan product to the tenant's catalog.
func (s *LedgerService) CreateProduct(ctx context.Context, actor domain.Actor, req domain.CreateProductRequest) (*domain.LoanProduct, error) {
	started := time.Now()

	if req.MinAmount.GreaterThan(req.MaxAmount) {
		return nil, customError.WrapInvalidLoanTerms("min_amount must not exceed max_amount")
	}
	if req.MinTermDays > req.MaxTermDays {
		return nil, customError.WrapInvalidLoanTerms("min_term_days must not exceed max_term_days")
	}
	if !req.PaymentFrequency.Valid() {
		return nil, customError.WrapInvalidLoanTerms("unknown payment frequency " + string(req.PaymentFrequency))
	}

	now := s.now()
	product := &domain.LoanProduct{
		ID:                   uuid.New(),
		TenantID:             actor.TenantID,
		Name:                 req.Name,
		MinAmount:            req.MinAmount,
		MaxAmount:            req.MaxAmount,
		InterestRate:         req.InterestRate,
		InterestType:         req.InterestType,
		MinTermDays:          req.MinTermDays,
		MaxTermDays:          req.MaxTermDays,
		ProcessingFeePercent: req.ProcessingFeePercent,
		LatePenaltyPercent:   req.LatePenaltyPercent,
		GracePeriodDays:      req.GracePeriodDays,
		PaymentFrequency:     req.PaymentFrequency,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	err := s.store.Repositories().Products.Create(ctx, product)
	s.metrics.Observe("create_product", started, err)
	if err != nil {
		return nil, err
	}

	s.logger.WithField("tenant_id", actor.TenantID).
		WithField("product_id", product.ID).
		WithField("actor_id", actor.UserID).
		Info("loan product created")
	return product, nil
}

func (s *LedgerService) GetProduct(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.LoanProduct, error) {
	return s.store.Repositories().Products.GetByID(ctx, actor.TenantID, id)
}

func (s *LedgerService) ListProducts(ctx context.Context, actor domain.Actor, includeArchived bool) ([]domain.LoanProduct, error) {
	return s.store.Repositories().Products.List(ctx, actor.TenantID, includeArchived)
}

// ArchiveProduct stops new disbursements from a product. Existing loans keep
// the terms copied at disbursement.
func (s *LedgerService) ArchiveProduct(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	if err := s.store.Repositories().Products.Archive(ctx, actor.TenantID, id, s.now()); err != nil {
		return err
	}

	s.logger.WithField("tenant_id", actor.TenantID).
		WithField("product_id", id).
		WithField("actor_id", actor.UserID).
		Info("loan product archived")
	return nil
}

// Quote prices an amount and term against a product without creating a loan.
func (s *LedgerService) Quote(ctx context.Context, actor domain.Actor, req domain.QuoteRequest) (*amortization.Breakdown, error) {
	product, err := s.store.Repositories().Products.GetByID(ctx, actor.TenantID, req.ProductID)
	if err != nil {
		return nil, err
	}
	if err := product.ValidateTerms(req.Amount, req.TermDays); err != nil {
		return nil, customError.WrapInvalidLoanTerms(err.Error())
	}

	breakdown, err := amortization.Quote(amortization.Terms{
		Principal:            req.Amount,
		InterestRate:         product.InterestRate,
		InterestType:         product.InterestType,
		TermDays:             req.TermDays,
		ProcessingFeePercent: product.ProcessingFeePercent,
		Frequency:            product.PaymentFrequency,
	})
	if err != nil {
		return nil, customError.WrapInvalidLoanTerms(err.Error())
	}
	return &breakdown, nil
}
