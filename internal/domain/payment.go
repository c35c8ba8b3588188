package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	PaymentStatusCompleted = "completed"
	PaymentStatusReversed  = "reversed"
)

// PaymentMethod is how funds were received.
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodMobileMoney  PaymentMethod = "mobile_money"
	PaymentMethodCheque       PaymentMethod = "cheque"
)

// Payment is an immutable record of funds received against a loan. The four
// portions always add up to Amount.
type Payment struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	TenantID         string          `json:"tenant_id" db:"tenant_id"`
	LoanID           uuid.UUID       `json:"loan_id" db:"loan_id"`
	Amount           decimal.Decimal `json:"amount" db:"amount"`
	PrincipalPortion decimal.Decimal `json:"principal_portion" db:"principal_portion"`
	InterestPortion  decimal.Decimal `json:"interest_portion" db:"interest_portion"`
	FeePortion       decimal.Decimal `json:"fee_portion" db:"fee_portion"`
	PenaltyPortion   decimal.Decimal `json:"penalty_portion" db:"penalty_portion"`
	PaymentDate      time.Time       `json:"payment_date" db:"payment_date"`
	Method           PaymentMethod   `json:"method" db:"method"`
	Reference        string          `json:"reference,omitempty" db:"reference"`
	Status           string          `json:"status" db:"status"`
	PriorLoanStatus  LoanStatus      `json:"prior_loan_status" db:"prior_loan_status"`
	ReversalReason   string          `json:"reversal_reason,omitempty" db:"reversal_reason"`
	ReversedAt       *time.Time      `json:"reversed_at,omitempty" db:"reversed_at"`
	RecordedBy       string          `json:"recorded_by" db:"recorded_by"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

// PaymentAllocation records what a payment applied to one schedule entry and
// the entry state it replaced, so a reversal can restore it exactly.
type PaymentAllocation struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	TenantID          string          `json:"tenant_id" db:"tenant_id"`
	PaymentID         uuid.UUID       `json:"payment_id" db:"payment_id"`
	LoanID            uuid.UUID       `json:"loan_id" db:"loan_id"`
	InstallmentNumber int             `json:"installment_number" db:"installment_number"`
	Principal         decimal.Decimal `json:"principal" db:"principal"`
	Interest          decimal.Decimal `json:"interest" db:"interest"`
	Fee               decimal.Decimal `json:"fee" db:"fee"`
	Penalty           decimal.Decimal `json:"penalty" db:"penalty"`
	PriorStatus       string          `json:"prior_status" db:"prior_status"`
	PriorPaidDate     *time.Time      `json:"prior_paid_date,omitempty" db:"prior_paid_date"`
}

// Scheduled is the part of the allocation applied to principal, interest and fee.
func (a PaymentAllocation) Scheduled() decimal.Decimal {
	return a.Principal.Add(a.Interest).Add(a.Fee)
}

// PenaltyCharge is one late penalty posted against an installment.
type PenaltyCharge struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	TenantID          string          `json:"tenant_id" db:"tenant_id"`
	LoanID            uuid.UUID       `json:"loan_id" db:"loan_id"`
	InstallmentNumber int             `json:"installment_number" db:"installment_number"`
	Amount            decimal.Decimal `json:"amount" db:"amount"`
	PeriodKey         string          `json:"period_key,omitempty" db:"period_key"`
	AssessedAt        time.Time       `json:"assessed_at" db:"assessed_at"`
	CreatedBy         string          `json:"created_by" db:"created_by"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}

type MakePaymentRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"decimal_gt=0"`
	Method      PaymentMethod   `json:"method" validate:"required,oneof=cash bank_transfer card mobile_money cheque"`
	PaymentDate time.Time       `json:"payment_date"`
	Reference   string          `json:"reference" validate:"max=100"`
}

type ReversePaymentRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type ApplyPenaltyRequest struct {
	AsOf      time.Time `json:"as_of"`
	PeriodKey string    `json:"period_key" validate:"max=100"`
}

type PenaltyResponse struct {
	LoanID            uuid.UUID       `json:"loan_id"`
	InstallmentNumber int             `json:"installment_number"`
	Amount            decimal.Decimal `json:"amount"`
	PeriodKey         string          `json:"period_key,omitempty"`
}
