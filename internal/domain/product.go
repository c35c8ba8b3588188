package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-ledger/pkg/utils"
)

// InterestType selects the interest formula.
type InterestType string

const (
	InterestTypeFlat     InterestType = "flat"
	InterestTypeReducing InterestType = "reducing"
)

// PaymentFrequency is the spacing of installments.
type PaymentFrequency string

const (
	FrequencyDaily   PaymentFrequency = "daily"
	FrequencyWeekly  PaymentFrequency = "weekly"
	FrequencyMonthly PaymentFrequency = "monthly"
)

// PeriodDays is the distance between two due dates.
func (f PaymentFrequency) PeriodDays() int {
	switch f {
	case FrequencyDaily:
		return 1
	case FrequencyWeekly:
		return 7
	case FrequencyMonthly:
		return 30
	}
	return 0
}

// Installments returns how many installments a term of termDays has.
func (f PaymentFrequency) Installments(termDays int) int {
	if termDays <= 0 {
		return 0
	}
	return utils.CeilDiv(termDays, f.PeriodDays())
}

func (f PaymentFrequency) Valid() bool {
	return f.PeriodDays() > 0
}

// LoanProduct is the immutable terms template loans are disbursed from.
// Products are archived, never deleted.
type LoanProduct struct {
	ID                   uuid.UUID        `json:"id" db:"id"`
	TenantID             string           `json:"tenant_id" db:"tenant_id"`
	Name                 string           `json:"name" db:"name"`
	MinAmount            decimal.Decimal  `json:"min_amount" db:"min_amount"`
	MaxAmount            decimal.Decimal  `json:"max_amount" db:"max_amount"`
	InterestRate         decimal.Decimal  `json:"interest_rate" db:"interest_rate"`
	InterestType         InterestType     `json:"interest_type" db:"interest_type"`
	MinTermDays          int              `json:"min_term_days" db:"min_term_days"`
	MaxTermDays          int              `json:"max_term_days" db:"max_term_days"`
	ProcessingFeePercent decimal.Decimal  `json:"processing_fee_percent" db:"processing_fee_percent"`
	LatePenaltyPercent   decimal.Decimal  `json:"late_penalty_percent" db:"late_penalty_percent"`
	GracePeriodDays      int              `json:"grace_period_days" db:"grace_period_days"`
	PaymentFrequency     PaymentFrequency `json:"payment_frequency" db:"payment_frequency"`
	Archived             bool             `json:"archived" db:"archived"`
	CreatedAt            time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at" db:"updated_at"`
}

// ValidateTerms checks an amount and term against the product bounds.
func (p LoanProduct) ValidateTerms(amount decimal.Decimal, termDays int) error {
	if p.Archived {
		return fmt.Errorf("product %s is archived", p.ID)
	}
	if amount.LessThan(p.MinAmount) || amount.GreaterThan(p.MaxAmount) {
		return fmt.Errorf("amount %s outside product range [%s, %s]",
			amount.StringFixed(2), p.MinAmount.StringFixed(2), p.MaxAmount.StringFixed(2))
	}
	if termDays < p.MinTermDays || termDays > p.MaxTermDays {
		return fmt.Errorf("term of %d days outside product range [%d, %d]", termDays, p.MinTermDays, p.MaxTermDays)
	}
	return nil
}

type CreateProductRequest struct {
	Name                 string           `json:"name" validate:"required,max=120"`
	MinAmount            decimal.Decimal  `json:"min_amount" validate:"decimal_gt=0"`
	MaxAmount            decimal.Decimal  `json:"max_amount" validate:"decimal_gt=0"`
	InterestRate         decimal.Decimal  `json:"interest_rate" validate:"decimal_gte=0"`
	InterestType         InterestType     `json:"interest_type" validate:"required,oneof=flat reducing"`
	MinTermDays          int              `json:"min_term_days" validate:"required,gt=0"`
	MaxTermDays          int              `json:"max_term_days" validate:"required,gtefield=MinTermDays"`
	ProcessingFeePercent decimal.Decimal  `json:"processing_fee_percent" validate:"decimal_gte=0"`
	LatePenaltyPercent   decimal.Decimal  `json:"late_penalty_percent" validate:"decimal_gte=0"`
	GracePeriodDays      int              `json:"grace_period_days" validate:"gte=0"`
	PaymentFrequency     PaymentFrequency `json:"payment_frequency" validate:"required,oneof=daily weekly monthly"`
}

type QuoteRequest struct {
	ProductID uuid.UUID       `json:"product_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount" validate:"decimal_gt=0"`
	TermDays  int             `json:"term_days" validate:"required,gt=0"`
}
