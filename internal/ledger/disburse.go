package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-ledger/internal/amortization"
	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/schedule"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
	"github.com/segyhp/loan-ledger/pkg/utils"
)

// Disburse prices an approved application against its product, builds the
// loan and its schedule, and activates it.
func Disburse(app domain.LoanApplication, terms domain.ApprovalTerms, product domain.LoanProduct, actor domain.Actor, now time.Time) (Outcome, error) {
	principal := utils.RoundMoney(terms.Amount)
	if !principal.IsPositive() {
		return Outcome{}, customError.WrapInvalidLoanTerms("approved amount must be positive")
	}
	if err := product.ValidateTerms(principal, terms.TermDays); err != nil {
		return Outcome{}, customError.WrapInvalidLoanTerms(err.Error())
	}

	rate := terms.InterestRate
	if rate.IsZero() {
		rate = product.InterestRate
	}
	interest, err := amortization.ComputeInterest(principal, rate, terms.TermDays, product.InterestType)
	if err != nil {
		return Outcome{}, customError.WrapInvalidLoanTerms(err.Error())
	}
	totalInterest := utils.RoundMoney(interest)
	fee := utils.RoundMoney(amortization.ComputeProcessingFee(principal, product.ProcessingFeePercent))
	total := amortization.ComputeTotalPayable(principal, totalInterest, fee)

	disbursedOn := terms.DisbursementDate
	if disbursedOn.IsZero() {
		disbursedOn = now
	}
	disbursedOn = utils.DateOnly(disbursedOn)

	loan := domain.Loan{
		ID:                 uuid.New(),
		TenantID:           actor.TenantID,
		ProductID:          product.ID,
		ApplicationID:      app.ID,
		BorrowerID:         app.BorrowerID,
		PrincipalAmount:    principal,
		InterestRate:       rate,
		InterestType:       product.InterestType,
		TermDays:           terms.TermDays,
		PaymentFrequency:   product.PaymentFrequency,
		ProcessingFee:      fee,
		TotalInterest:      totalInterest,
		TotalAmount:        total,
		DisbursementDate:   disbursedOn,
		AmountPaid:         decimal.Zero,
		OutstandingBalance: total,
		PenaltyAmount:      decimal.Zero,
		WriteOffAmount:     decimal.Zero,
		GracePeriodDays:    product.GracePeriodDays,
		LatePenaltyPercent: product.LatePenaltyPercent,
		Status:             domain.LoanStatusPendingDisbursement,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	entries, err := schedule.Generate(loan, loan.PaymentFrequency)
	if err != nil {
		return Outcome{}, customError.WrapInvalidLoanTerms(err.Error())
	}
	loan.MaturityDate = entries[len(entries)-1].DueDate

	out := Outcome{Snapshot: NewSnapshot(loan, entries)}
	if err := Reconcile(out.Snapshot); err != nil {
		return Outcome{}, err
	}

	out.Snapshot.Loan.Status = domain.LoanStatusActive
	out.emit(domain.EventLoanDisbursed, actor, now, map[string]interface{}{
		"principal":         principal,
		"total_interest":    totalInterest,
		"processing_fee":    fee,
		"total_amount":      total,
		"installments":      len(entries),
		"disbursement_date": disbursedOn,
		"maturity_date":     loan.MaturityDate,
		"borrower_id":       app.BorrowerID,
		"application_id":    app.ID,
	})
	return out, nil
}
