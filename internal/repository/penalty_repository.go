package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

type penaltyRepository struct {
	db sqlx.ExtContext
}

func (r *penaltyRepository) Create(ctx context.Context, charge *domain.PenaltyCharge) error {
	query := `
		INSERT INTO penalty_charges (id, tenant_id, loan_id, installment_number, amount, period_key,
			assessed_at, created_by, created_at)
		VALUES (:id, :tenant_id, :loan_id, :installment_number, :amount, :period_key,
			:assessed_at, :created_by, :created_at)
	`

	_, err := sqlx.NamedExecContext(ctx, r.db, query, charge)
	if isUniqueViolation(err) {
		return customError.WrapDuplicatePenalty(charge.LoanID.String(), charge.InstallmentNumber, charge.PeriodKey)
	}
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	return nil
}

func (r *penaltyRepository) GetByLoanID(ctx context.Context, tenantID string, loanID uuid.UUID) ([]domain.PenaltyCharge, error) {
	query := `
		SELECT id, tenant_id, loan_id, installment_number, amount, period_key, assessed_at,
			created_by, created_at
		FROM penalty_charges
		WHERE loan_id = ? AND tenant_id = ?
		ORDER BY created_at, id
	`

	var charges []domain.PenaltyCharge
	if err := sqlx.SelectContext(ctx, r.db, &charges, r.db.Rebind(query), loanID, tenantID); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return charges, nil
}
