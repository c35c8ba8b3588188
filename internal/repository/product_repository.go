package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

const productColumns = `id, tenant_id, name, min_amount, max_amount, interest_rate, interest_type,
	min_term_days, max_term_days, processing_fee_percent, late_penalty_percent, grace_period_days,
	payment_frequency, archived, created_at, updated_at`

type productRepository struct {
	db sqlx.ExtContext
}

func (r *productRepository) Create(ctx context.Context, product *domain.LoanProduct) error {
	query := `
		INSERT INTO loan_products (` + productColumns + `)
		VALUES (:id, :tenant_id, :name, :min_amount, :max_amount, :interest_rate, :interest_type,
			:min_term_days, :max_term_days, :processing_fee_percent, :late_penalty_percent, :grace_period_days,
			:payment_frequency, :archived, :created_at, :updated_at)
	`

	if _, err := sqlx.NamedExecContext(ctx, r.db, query, product); err != nil {
		return customError.WrapDatabaseError(err)
	}
	return nil
}

func (r *productRepository) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*domain.LoanProduct, error) {
	query := `
		SELECT ` + productColumns + `
		FROM loan_products
		WHERE id = ? AND tenant_id = ?
	`

	var product domain.LoanProduct
	err := sqlx.GetContext(ctx, r.db, &product, r.db.Rebind(query), id, tenantID)
	if isNoRows(err) {
		return nil, customError.WrapProductNotFound(id.String())
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return &product, nil
}

func (r *productRepository) List(ctx context.Context, tenantID string, includeArchived bool) ([]domain.LoanProduct, error) {
	query := `
		SELECT ` + productColumns + `
		FROM loan_products
		WHERE tenant_id = ?
	`
	if !includeArchived {
		query += ` AND archived = ?`
	}
	query += ` ORDER BY name, id`

	args := []interface{}{tenantID}
	if !includeArchived {
		args = append(args, false)
	}

	var products []domain.LoanProduct
	if err := sqlx.SelectContext(ctx, r.db, &products, r.db.Rebind(query), args...); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return products, nil
}

func (r *productRepository) Archive(ctx context.Context, tenantID string, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE loan_products
		SET archived = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ?
	`

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), true, at, id, tenantID)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	if affected == 0 {
		return customError.WrapProductNotFound(id.String())
	}
	return nil
}
