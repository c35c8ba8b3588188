package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

const paymentColumns = `id, tenant_id, loan_id, amount, principal_portion, interest_portion,
	fee_portion, penalty_portion, payment_date, method, reference, status, prior_loan_status,
	reversal_reason, reversed_at, recorded_by, created_at`

type paymentRepository struct {
	db sqlx.ExtContext
}

func (r *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES (:id, :tenant_id, :loan_id, :amount, :principal_portion, :interest_portion,
			:fee_portion, :penalty_portion, :payment_date, :method, :reference, :status, :prior_loan_status,
			:reversal_reason, :reversed_at, :recorded_by, :created_at)
	`

	if _, err := sqlx.NamedExecContext(ctx, r.db, query, payment); err != nil {
		return customError.WrapDatabaseError(err)
	}
	return nil
}

func (r *paymentRepository) CreateAllocations(ctx context.Context, allocations []domain.PaymentAllocation) error {
	query := `
		INSERT INTO payment_allocations (id, tenant_id, payment_id, loan_id, installment_number,
			principal, interest, fee, penalty, prior_status, prior_paid_date)
		VALUES (:id, :tenant_id, :payment_id, :loan_id, :installment_number,
			:principal, :interest, :fee, :penalty, :prior_status, :prior_paid_date)
	`

	for i := range allocations {
		if _, err := sqlx.NamedExecContext(ctx, r.db, query, &allocations[i]); err != nil {
			return customError.WrapDatabaseError(err)
		}
	}
	return nil
}

func (r *paymentRepository) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE id = ? AND tenant_id = ?
	`

	var payment domain.Payment
	err := sqlx.GetContext(ctx, r.db, &payment, r.db.Rebind(query), id, tenantID)
	if isNoRows(err) {
		return nil, customError.WrapPaymentNotFound(id.String())
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return &payment, nil
}

func (r *paymentRepository) GetAllocations(ctx context.Context, tenantID string, paymentID uuid.UUID) ([]domain.PaymentAllocation, error) {
	query := `
		SELECT id, tenant_id, payment_id, loan_id, installment_number, principal, interest, fee,
			penalty, prior_status, prior_paid_date
		FROM payment_allocations
		WHERE payment_id = ? AND tenant_id = ?
		ORDER BY installment_number
	`

	var allocations []domain.PaymentAllocation
	if err := sqlx.SelectContext(ctx, r.db, &allocations, r.db.Rebind(query), paymentID, tenantID); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return allocations, nil
}

func (r *paymentRepository) GetLoanAllocations(ctx context.Context, tenantID string, loanID uuid.UUID) ([]domain.PaymentAllocation, error) {
	query := `
		SELECT a.id, a.tenant_id, a.payment_id, a.loan_id, a.installment_number, a.principal,
			a.interest, a.fee, a.penalty, a.prior_status, a.prior_paid_date
		FROM payment_allocations a
		JOIN payments p ON p.id = a.payment_id
		WHERE a.loan_id = ? AND a.tenant_id = ? AND p.status = ?
		ORDER BY p.created_at, p.id, a.installment_number
	`

	var allocations []domain.PaymentAllocation
	err := sqlx.SelectContext(ctx, r.db, &allocations, r.db.Rebind(query), loanID, tenantID, domain.PaymentStatusCompleted)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return allocations, nil
}

func (r *paymentRepository) DeleteAllocations(ctx context.Context, tenantID string, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In(`DELETE FROM payment_allocations WHERE tenant_id = ? AND id IN (?)`, tenantID, ids)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		return customError.WrapDatabaseError(err)
	}
	return nil
}

func (r *paymentRepository) GetByLoanID(ctx context.Context, tenantID string, loanID uuid.UUID) ([]domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE loan_id = ? AND tenant_id = ?
		ORDER BY created_at, id
	`

	var payments []domain.Payment
	if err := sqlx.SelectContext(ctx, r.db, &payments, r.db.Rebind(query), loanID, tenantID); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return payments, nil
}

func (r *paymentRepository) MarkReversed(ctx context.Context, payment *domain.Payment) error {
	query := `
		UPDATE payments
		SET status = ?, reversal_reason = ?, reversed_at = ?
		WHERE id = ? AND tenant_id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		domain.PaymentStatusReversed,
		payment.ReversalReason,
		payment.ReversedAt,
		payment.ID,
		payment.TenantID,
		domain.PaymentStatusCompleted,
	)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	if affected == 0 {
		return customError.WrapAlreadyReversed(payment.ID.String(), payment.LoanID.String(), payment.Amount)
	}
	return nil
}
