// Package amortization holds the interest, fee and payable formulas used
// when a loan is priced. Results are unrounded; callers round at the storage
// boundary with utils.RoundMoney.
package amortization

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/pkg/utils"
)

var (
	hundred    = decimal.NewFromInt(100)
	twelve     = decimal.NewFromInt(12)
	periodDays = decimal.NewFromInt(30)
)

// ComputeInterest returns the total interest for a term.
//
//	flat:     principal × rate/100 × termDays/30
//	reducing: principal × (rate/12/100) × termDays/30
//
// The reducing formula is a uniform monthly approximation, not a declining
// balance schedule. Downstream figures depend on it, so keep it as is.
func ComputeInterest(principal, ratePercent decimal.Decimal, termDays int, interestType domain.InterestType) (decimal.Decimal, error) {
	months := decimal.NewFromInt(int64(termDays)).Div(periodDays)

	switch interestType {
	case domain.InterestTypeFlat:
		return principal.Mul(ratePercent).Div(hundred).Mul(months), nil
	case domain.InterestTypeReducing:
		monthlyRate := ratePercent.Div(twelve).Div(hundred)
		return principal.Mul(monthlyRate).Mul(months), nil
	default:
		return decimal.Zero, fmt.Errorf("unknown interest type %q", interestType)
	}
}

// ComputeProcessingFee returns principal × feePercent/100.
func ComputeProcessingFee(principal, feePercent decimal.Decimal) decimal.Decimal {
	return principal.Mul(feePercent).Div(hundred)
}

// ComputeTotalPayable returns principal + interest + fee.
func ComputeTotalPayable(principal, interest, fee decimal.Decimal) decimal.Decimal {
	return principal.Add(interest).Add(fee)
}

// Terms are the inputs of a loan quote.
type Terms struct {
	Principal            decimal.Decimal
	InterestRate         decimal.Decimal
	InterestType         domain.InterestType
	TermDays             int
	ProcessingFeePercent decimal.Decimal
	Frequency            domain.PaymentFrequency
}

// Breakdown is a rounded pricing summary of Terms.
type Breakdown struct {
	Principal         decimal.Decimal         `json:"principal"`
	TotalInterest     decimal.Decimal         `json:"total_interest"`
	ProcessingFee     decimal.Decimal         `json:"processing_fee"`
	TotalPayable      decimal.Decimal         `json:"total_payable"`
	Frequency         domain.PaymentFrequency `json:"frequency"`
	Installments      int                     `json:"installments"`
	InstallmentAmount decimal.Decimal         `json:"installment_amount"`
}

// Quote prices the terms. Intermediate values stay unrounded; only the
// reported figures are rounded.
func Quote(t Terms) (Breakdown, error) {
	if !t.Principal.IsPositive() {
		return Breakdown{}, fmt.Errorf("principal must be positive")
	}
	n := t.Frequency.Installments(t.TermDays)
	if n == 0 {
		return Breakdown{}, fmt.Errorf("no installments for %d days at %q frequency", t.TermDays, t.Frequency)
	}

	interest, err := ComputeInterest(t.Principal, t.InterestRate, t.TermDays, t.InterestType)
	if err != nil {
		return Breakdown{}, err
	}
	fee := ComputeProcessingFee(t.Principal, t.ProcessingFeePercent)
	total := ComputeTotalPayable(t.Principal, interest, fee)

	return Breakdown{
		Principal:         utils.RoundMoney(t.Principal),
		TotalInterest:     utils.RoundMoney(interest),
		ProcessingFee:     utils.RoundMoney(fee),
		TotalPayable:      utils.RoundMoney(total),
		Frequency:         t.Frequency,
		Installments:      n,
		InstallmentAmount: utils.RoundMoney(total.Div(decimal.NewFromInt(int64(n)))),
	}, nil
}
