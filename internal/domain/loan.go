package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanStatus is the lifecycle state of a loan.
type LoanStatus string

const (
	LoanStatusPendingDisbursement LoanStatus = "pending_disbursement"
	LoanStatusActive              LoanStatus = "active"
	LoanStatusOverdue             LoanStatus = "overdue"
	LoanStatusSuspended           LoanStatus = "suspended"
	LoanStatusPaidOff             LoanStatus = "paid_off"
	LoanStatusWrittenOff          LoanStatus = "written_off"
	LoanStatusClosed              LoanStatus = "closed"
)

// IsTerminal reports whether no further transition is allowed.
func (s LoanStatus) IsTerminal() bool {
	switch s {
	case LoanStatusPaidOff, LoanStatusWrittenOff, LoanStatusClosed:
		return true
	}
	return false
}

// AcceptsPayments reports whether payments and penalties may be posted.
func (s LoanStatus) AcceptsPayments() bool {
	return s == LoanStatusActive || s == LoanStatusOverdue
}

// ClosureType selects how CloseLoan ends a loan.
type ClosureType string

const (
	ClosureSettled    ClosureType = "settled"
	ClosureWrittenOff ClosureType = "written_off"
)

// Actor identifies who performs a ledger operation. It is passed explicitly
// to every call so audit records never depend on ambient request state.
type Actor struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
}

// Loan represents a disbursed credit contract.
type Loan struct {
	ID                 uuid.UUID        `json:"id" db:"id"`
	TenantID           string           `json:"tenant_id" db:"tenant_id"`
	ProductID          uuid.UUID        `json:"product_id" db:"product_id"`
	ApplicationID      string           `json:"application_id" db:"application_id"`
	BorrowerID         string           `json:"borrower_id" db:"borrower_id"`
	PrincipalAmount    decimal.Decimal  `json:"principal_amount" db:"principal_amount"`
	InterestRate       decimal.Decimal  `json:"interest_rate" db:"interest_rate"`
	InterestType       InterestType     `json:"interest_type" db:"interest_type"`
	TermDays           int              `json:"term_days" db:"term_days"`
	PaymentFrequency   PaymentFrequency `json:"payment_frequency" db:"payment_frequency"`
	ProcessingFee      decimal.Decimal  `json:"processing_fee" db:"processing_fee"`
	TotalInterest      decimal.Decimal  `json:"total_interest" db:"total_interest"`
	TotalAmount        decimal.Decimal  `json:"total_amount" db:"total_amount"`
	DisbursementDate   time.Time        `json:"disbursement_date" db:"disbursement_date"`
	MaturityDate       time.Time        `json:"maturity_date" db:"maturity_date"`
	AmountPaid         decimal.Decimal  `json:"amount_paid" db:"amount_paid"`
	OutstandingBalance decimal.Decimal  `json:"outstanding_balance" db:"outstanding_balance"`
	PenaltyAmount      decimal.Decimal  `json:"penalty_amount" db:"penalty_amount"`
	WriteOffAmount     decimal.Decimal  `json:"write_off_amount" db:"write_off_amount"`
	GracePeriodDays    int              `json:"grace_period_days" db:"grace_period_days"`
	LatePenaltyPercent decimal.Decimal  `json:"late_penalty_percent" db:"late_penalty_percent"`
	Status             LoanStatus       `json:"status" db:"status"`
	SuspendedFrom      LoanStatus       `json:"suspended_from,omitempty" db:"suspended_from"`
	ClosureReason      string           `json:"closure_reason,omitempty" db:"closure_reason"`
	Version            int              `json:"version" db:"version"`
	CreatedAt          time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at" db:"updated_at"`
}

// DTOs for requests and responses

// LoanApplication is the approved application a loan is disbursed from.
type LoanApplication struct {
	ID         string    `json:"id" validate:"required"`
	BorrowerID string    `json:"borrower_id" validate:"required"`
	ProductID  uuid.UUID `json:"product_id" validate:"required"`
}

// ApprovalTerms are the terms granted at approval. A zero InterestRate falls
// back to the product rate.
type ApprovalTerms struct {
	Amount           decimal.Decimal `json:"amount" validate:"decimal_gt=0"`
	TermDays         int             `json:"term_days" validate:"required,gt=0"`
	InterestRate     decimal.Decimal `json:"interest_rate" validate:"decimal_gte=0"`
	DisbursementDate time.Time       `json:"disbursement_date"`
}

type DisburseLoanRequest struct {
	Application LoanApplication `json:"application" validate:"required"`
	Terms       ApprovalTerms   `json:"terms" validate:"required"`
}

// LoanDetailResponse is a loan with its full schedule.
type LoanDetailResponse struct {
	Loan     *Loan           `json:"loan"`
	Schedule []ScheduleEntry `json:"schedule"`
}

type CloseLoanRequest struct {
	ClosureType ClosureType `json:"closure_type" validate:"required,oneof=settled written_off"`
	Reason      string      `json:"reason" validate:"max=500"`
}

type SuspendLoanRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type RestructureLoanRequest struct {
	InterestRate decimal.Decimal `json:"interest_rate" validate:"decimal_gte=0"`
	TermDays     int             `json:"term_days" validate:"required,gt=0"`
}

type DetectOverdueRequest struct {
	AsOf time.Time `json:"as_of"`
}

type BalanceResponse struct {
	LoanID             uuid.UUID       `json:"loan_id"`
	Status             LoanStatus      `json:"status"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	AmountPaid         decimal.Decimal `json:"amount_paid"`
	PenaltyAmount      decimal.Decimal `json:"penalty_amount"`
	NextDueEntry       *ScheduleEntry  `json:"next_due_entry,omitempty"`
}

// OverdueSweepResult summarises a batch overdue or penalty run.
type OverdueSweepResult struct {
	Scanned   int `json:"scanned"`
	Flagged   int `json:"flagged"`
	Penalties int `json:"penalties"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}
