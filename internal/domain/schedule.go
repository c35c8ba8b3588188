package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-ledger/pkg/utils"
)

// Business logic constants
const (
	ScheduleStatusPending       = "pending"
	ScheduleStatusPartiallyPaid = "partially_paid"
	ScheduleStatusPaid          = "paid"
	ScheduleStatusOverdue       = "overdue"
)

// ScheduleEntry is one installment of a loan's repayment schedule.
// OutstandingAmount covers principal, interest and fee only; penalties are
// tracked separately in PenaltyAmount and PenaltyPaid.
type ScheduleEntry struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	LoanID            uuid.UUID       `json:"loan_id" db:"loan_id"`
	TenantID          string          `json:"tenant_id" db:"tenant_id"`
	InstallmentNumber int             `json:"installment_number" db:"installment_number"`
	DueDate           time.Time       `json:"due_date" db:"due_date"`
	PrincipalDue      decimal.Decimal `json:"principal_due" db:"principal_due"`
	InterestDue       decimal.Decimal `json:"interest_due" db:"interest_due"`
	FeeDue            decimal.Decimal `json:"fee_due" db:"fee_due"`
	TotalDue          decimal.Decimal `json:"total_due" db:"total_due"`
	AmountPaid        decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount" db:"outstanding_amount"`
	PenaltyAmount     decimal.Decimal `json:"penalty_amount" db:"penalty_amount"`
	PenaltyPaid       decimal.Decimal `json:"penalty_paid" db:"penalty_paid"`
	Status            string          `json:"status" db:"status"` // pending, partially_paid, paid, overdue
	PaidDate          *time.Time      `json:"paid_date,omitempty" db:"paid_date"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// PenaltyOutstanding is the part of charged penalties not yet collected.
func (e ScheduleEntry) PenaltyOutstanding() decimal.Decimal {
	return utils.ClampZero(e.PenaltyAmount.Sub(e.PenaltyPaid))
}

// AmountDue is what the waterfall must collect to settle the entry.
func (e ScheduleEntry) AmountDue() decimal.Decimal {
	return e.OutstandingAmount.Add(e.PenaltyOutstanding())
}

func (e ScheduleEntry) IsPaid() bool {
	return e.Status == ScheduleStatusPaid
}

// IsOverdueAt reports whether the entry is unpaid past its grace period.
func (e ScheduleEntry) IsOverdueAt(asOf time.Time, graceDays int) bool {
	return !e.IsPaid() && utils.IsPastGrace(e.DueDate, graceDays, asOf)
}

type ScheduleResponse struct {
	LoanID   uuid.UUID       `json:"loan_id"`
	Schedule []ScheduleEntry `json:"schedule"`
}
