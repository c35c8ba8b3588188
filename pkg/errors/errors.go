package errors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Domain errors
var (
	ErrLoanNotFound           = errors.New("loan not found")
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrProductNotFound        = errors.New("loan product not found")
	ErrInstallmentNotFound    = errors.New("schedule entry not found")
	ErrInvalidPaymentAmount   = errors.New("invalid payment amount")
	ErrInvalidLoanTerms       = errors.New("invalid loan terms")
	ErrLoanNotActive          = errors.New("loan is not active")
	ErrNotOverdue             = errors.New("installment is not overdue")
	ErrAlreadyReversed        = errors.New("payment already reversed")
	ErrScheduleInconsistency  = errors.New("schedule inconsistency")
	ErrInvalidTransition      = errors.New("invalid loan status transition")
	ErrConcurrentModification = errors.New("loan was modified concurrently")
	ErrDuplicatePenalty       = errors.New("penalty already applied for period")
	ErrDatabase               = errors.New("database failure")
	ErrCache                  = errors.New("cache failure")
)

// BusinessError represents a business logic error. LoanID, Amount and Balance
// are filled when the failure concerns a specific loan so callers can render a
// precise message without another lookup.
type BusinessError struct {
	Code    string
	Message string
	Err     error
	LoanID  string
	Amount  decimal.Decimal
	Balance decimal.Decimal
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeLoanNotFound           = "LOAN_NOT_FOUND"
	ErrCodePaymentNotFound        = "PAYMENT_NOT_FOUND"
	ErrCodeProductNotFound        = "PRODUCT_NOT_FOUND"
	ErrCodeInstallmentNotFound    = "INSTALLMENT_NOT_FOUND"
	ErrCodeInvalidPaymentAmount   = "INVALID_PAYMENT_AMOUNT"
	ErrCodeInvalidLoanTerms       = "INVALID_LOAN_TERMS"
	ErrCodeLoanNotActive          = "LOAN_NOT_ACTIVE"
	ErrCodeNotOverdue             = "NOT_OVERDUE"
	ErrCodeAlreadyReversed        = "ALREADY_REVERSED"
	ErrCodeScheduleInconsistency  = "SCHEDULE_INCONSISTENCY"
	ErrCodeInvalidTransition      = "INVALID_TRANSITION"
	ErrCodeConcurrentModification = "CONCURRENT_MODIFICATION"
	ErrCodeDuplicatePenalty       = "DUPLICATE_PENALTY"
	ErrCodeValidation             = "VALIDATION_ERROR"
	ErrCodeDatabaseError          = "DATABASE_ERROR"
	ErrCodeCacheError             = "CACHE_ERROR"
)

// Code returns the business code carried by err, or "" when err is not a
// BusinessError.
func Code(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

func WrapLoanNotFound(loanID string) *BusinessError {
	be := NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with ID %s not found", loanID),
		ErrLoanNotFound,
	)
	be.LoanID = loanID
	return be
}

func WrapPaymentNotFound(paymentID string) *BusinessError {
	return NewBusinessError(
		ErrCodePaymentNotFound,
		fmt.Sprintf("Payment with ID %s not found", paymentID),
		ErrPaymentNotFound,
	)
}

func WrapProductNotFound(productID string) *BusinessError {
	return NewBusinessError(
		ErrCodeProductNotFound,
		fmt.Sprintf("Loan product with ID %s not found", productID),
		ErrProductNotFound,
	)
}

func WrapInstallmentNotFound(loanID string, ref string) *BusinessError {
	be := NewBusinessError(
		ErrCodeInstallmentNotFound,
		fmt.Sprintf("Schedule entry %s not found on loan %s", ref, loanID),
		ErrInstallmentNotFound,
	)
	be.LoanID = loanID
	return be
}

func WrapInvalidPaymentAmount(loanID string, amount, balance decimal.Decimal) *BusinessError {
	be := NewBusinessError(
		ErrCodeInvalidPaymentAmount,
		fmt.Sprintf("Invalid payment amount %s for loan %s (outstanding balance %s)",
			amount.StringFixed(2), loanID, balance.StringFixed(2)),
		ErrInvalidPaymentAmount,
	)
	be.LoanID = loanID
	be.Amount = amount
	be.Balance = balance
	return be
}

func WrapInvalidLoanTerms(message string) *BusinessError {
	return NewBusinessError(ErrCodeInvalidLoanTerms, message, ErrInvalidLoanTerms)
}

func WrapLoanNotActive(loanID, status string, balance decimal.Decimal) *BusinessError {
	be := NewBusinessError(
		ErrCodeLoanNotActive,
		fmt.Sprintf("Loan %s is %s", loanID, status),
		ErrLoanNotActive,
	)
	be.LoanID = loanID
	be.Balance = balance
	return be
}

func WrapNotOverdue(loanID string, installment int, overdueAfter string) *BusinessError {
	be := NewBusinessError(
		ErrCodeNotOverdue,
		fmt.Sprintf("Installment %d of loan %s is not overdue before %s", installment, loanID, overdueAfter),
		ErrNotOverdue,
	)
	be.LoanID = loanID
	return be
}

func WrapAlreadyReversed(paymentID, loanID string, amount decimal.Decimal) *BusinessError {
	be := NewBusinessError(
		ErrCodeAlreadyReversed,
		fmt.Sprintf("Payment %s on loan %s is already reversed", paymentID, loanID),
		ErrAlreadyReversed,
	)
	be.LoanID = loanID
	be.Amount = amount
	return be
}

func WrapScheduleInconsistency(loanID, detail string) *BusinessError {
	be := NewBusinessError(
		ErrCodeScheduleInconsistency,
		fmt.Sprintf("Ledger invariant violated on loan %s: %s", loanID, detail),
		ErrScheduleInconsistency,
	)
	be.LoanID = loanID
	return be
}

func WrapInvalidTransition(loanID, from, to string, balance decimal.Decimal) *BusinessError {
	be := NewBusinessError(
		ErrCodeInvalidTransition,
		fmt.Sprintf("Loan %s cannot move from %s to %s", loanID, from, to),
		ErrInvalidTransition,
	)
	be.LoanID = loanID
	be.Balance = balance
	return be
}

func WrapConcurrentModification(loanID string) *BusinessError {
	be := NewBusinessError(
		ErrCodeConcurrentModification,
		fmt.Sprintf("Loan %s was modified by another operation", loanID),
		ErrConcurrentModification,
	)
	be.LoanID = loanID
	return be
}

func WrapDuplicatePenalty(loanID string, installment int, periodKey string) *BusinessError {
	be := NewBusinessError(
		ErrCodeDuplicatePenalty,
		fmt.Sprintf("Penalty for installment %d of loan %s already applied for period %s", installment, loanID, periodKey),
		ErrDuplicatePenalty,
	)
	be.LoanID = loanID
	return be
}

func WrapValidationError(err error) *BusinessError {
	return NewBusinessError(ErrCodeValidation, "request validation failed", err)
}

// WrapDatabaseError tags a storage failure. Errors that already carry a
// business code pass through unchanged.
func WrapDatabaseError(err error) *BusinessError {
	var be *BusinessError
	if errors.As(err, &be) {
		return be
	}
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		fmt.Errorf("%w: %w", ErrDatabase, err),
	)
}

func WrapCacheError(err error) *BusinessError {
	var be *BusinessError
	if errors.As(err, &be) {
		return be
	}
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		fmt.Errorf("%w: %w", ErrCache, err),
	)
}
