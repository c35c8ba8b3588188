package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

type scheduleRepository struct {
	db sqlx.ExtContext
}

func (r *scheduleRepository) CreateBatch(ctx context.Context, entries []domain.ScheduleEntry) error {
	query := `
		INSERT INTO repayment_schedule (id, loan_id, tenant_id, installment_number, due_date,
			principal_due, interest_due, fee_due, total_due, amount_paid, outstanding_amount,
			penalty_amount, penalty_paid, status, paid_date, created_at, updated_at)
		VALUES (:id, :loan_id, :tenant_id, :installment_number, :due_date,
			:principal_due, :interest_due, :fee_due, :total_due, :amount_paid, :outstanding_amount,
			:penalty_amount, :penalty_paid, :status, :paid_date, :created_at, :updated_at)
	`

	for i := range entries {
		if _, err := sqlx.NamedExecContext(ctx, r.db, query, &entries[i]); err != nil {
			return customError.WrapDatabaseError(err)
		}
	}
	return nil
}

func (r *scheduleRepository) GetByLoanID(ctx context.Context, tenantID string, loanID uuid.UUID) ([]domain.ScheduleEntry, error) {
	query := `
		SELECT id, loan_id, tenant_id, installment_number, due_date, principal_due, interest_due,
			fee_due, total_due, amount_paid, outstanding_amount, penalty_amount, penalty_paid,
			status, paid_date, created_at, updated_at
		FROM repayment_schedule
		WHERE loan_id = ? AND tenant_id = ?
		ORDER BY installment_number
	`

	var entries []domain.ScheduleEntry
	if err := sqlx.SelectContext(ctx, r.db, &entries, r.db.Rebind(query), loanID, tenantID); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return entries, nil
}

func (r *scheduleRepository) UpdateEntries(ctx context.Context, entries []domain.ScheduleEntry) error {
	query := r.db.Rebind(`
		UPDATE repayment_schedule
		SET amount_paid = ?, outstanding_amount = ?, penalty_amount = ?, penalty_paid = ?,
			status = ?, paid_date = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ?
	`)

	for _, e := range entries {
		result, err := r.db.ExecContext(ctx, query,
			e.AmountPaid,
			e.OutstandingAmount,
			e.PenaltyAmount,
			e.PenaltyPaid,
			e.Status,
			e.PaidDate,
			e.UpdatedAt,
			e.ID,
			e.TenantID,
		)
		if err != nil {
			return customError.WrapDatabaseError(err)
		}
		if affected, err := result.RowsAffected(); err == nil && affected == 0 {
			return customError.WrapInstallmentNotFound(e.LoanID.String(), e.ID.String())
		}
	}
	return nil
}

func (r *scheduleRepository) DeleteByIDs(ctx context.Context, tenantID string, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In(`DELETE FROM repayment_schedule WHERE tenant_id = ? AND id IN (?)`, tenantID, ids)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		return customError.WrapDatabaseError(err)
	}
	return nil
}
