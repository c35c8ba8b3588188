package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

const loanColumns = `id, tenant_id, product_id, application_id, borrower_id, principal_amount,
	interest_rate, interest_type, term_days, payment_frequency, processing_fee, total_interest,
	total_amount, disbursement_date, maturity_date, amount_paid, outstanding_balance,
	penalty_amount, write_off_amount, grace_period_days, late_penalty_percent, status,
	suspended_from, closure_reason, version, created_at, updated_at`

type loanRepository struct {
	db sqlx.ExtContext
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	query := `
		INSERT INTO loans (` + loanColumns + `)
		VALUES (:id, :tenant_id, :product_id, :application_id, :borrower_id, :principal_amount,
			:interest_rate, :interest_type, :term_days, :payment_frequency, :processing_fee, :total_interest,
			:total_amount, :disbursement_date, :maturity_date, :amount_paid, :outstanding_balance,
			:penalty_amount, :write_off_amount, :grace_period_days, :late_penalty_percent, :status,
			:suspended_from, :closure_reason, :version, :created_at, :updated_at)
	`

	loan.Version = 1
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, loan); err != nil {
		return customError.WrapDatabaseError(err)
	}
	return nil
}

func (r *loanRepository) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*domain.Loan, error) {
	return r.get(ctx, tenantID, id, false)
}

func (r *loanRepository) GetForUpdate(ctx context.Context, tenantID string, id uuid.UUID) (*domain.Loan, error) {
	return r.get(ctx, tenantID, id, isPostgres(r.db))
}

func (r *loanRepository) get(ctx context.Context, tenantID string, id uuid.UUID, lock bool) (*domain.Loan, error) {
	query := `
		SELECT ` + loanColumns + `
		FROM loans
		WHERE id = ? AND tenant_id = ?
	`
	if lock {
		query += ` FOR UPDATE`
	}

	var loan domain.Loan
	err := sqlx.GetContext(ctx, r.db, &loan, r.db.Rebind(query), id, tenantID)
	if isNoRows(err) {
		return nil, customError.WrapLoanNotFound(id.String())
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return &loan, nil
}

func (r *loanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	query := `
		UPDATE loans
		SET interest_rate = ?, term_days = ?, total_interest = ?, total_amount = ?, maturity_date = ?,
			amount_paid = ?, outstanding_balance = ?, penalty_amount = ?, write_off_amount = ?,
			status = ?, suspended_from = ?, closure_reason = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND tenant_id = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		loan.InterestRate,
		loan.TermDays,
		loan.TotalInterest,
		loan.TotalAmount,
		loan.MaturityDate,
		loan.AmountPaid,
		loan.OutstandingBalance,
		loan.PenaltyAmount,
		loan.WriteOffAmount,
		loan.Status,
		loan.SuspendedFrom,
		loan.ClosureReason,
		loan.UpdatedAt,
		loan.ID,
		loan.TenantID,
		loan.Version,
	)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	if affected == 0 {
		return customError.WrapConcurrentModification(loan.ID.String())
	}

	loan.Version++
	return nil
}

func (r *loanRepository) ListByStatus(ctx context.Context, statuses []domain.LoanStatus, after *LoanRef, limit int) ([]LoanRef, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	where := `status IN (?)`
	args := []interface{}{statuses}
	if after != nil {
		where += ` AND (created_at > ? OR (created_at = ? AND id > ?))`
		args = append(args, after.CreatedAt, after.CreatedAt, after.ID)
	}
	args = append(args, limit)

	query, args, err := sqlx.In(`
		SELECT tenant_id, id, created_at
		FROM loans
		WHERE `+where+`
		ORDER BY created_at, id
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	var refs []LoanRef
	if err := sqlx.SelectContext(ctx, r.db, &refs, r.db.Rebind(query), args...); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return refs, nil
}
