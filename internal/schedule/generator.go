// Package schedule builds and regenerates repayment schedules.
//
// Principal and interest are split into equal shares truncated to the cent.
// The cents left over are handed out one at a time from the earliest
// installment, so no two shares differ by more than a cent and column sums
// match the loan totals exactly.
package schedule

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/pkg/utils"
)

// Generate builds the full schedule of a freshly priced loan.
func Generate(loan domain.Loan, frequency domain.PaymentFrequency) ([]domain.ScheduleEntry, error) {
	n := frequency.Installments(loan.TermDays)
	if n == 0 {
		return nil, fmt.Errorf("no installments for %d days at %q frequency", loan.TermDays, frequency)
	}

	return build(loan, frequency, 1, n, loan.PrincipalAmount, loan.TotalInterest, loan.ProcessingFee), nil
}

// build lays down count installments numbered from first, splitting the
// given totals across them.
func build(loan domain.Loan, frequency domain.PaymentFrequency, first, count int, principal, interest, fee decimal.Decimal) []domain.ScheduleEntry {
	principalShares := splitEvenly(principal, count)
	interestShares := splitEvenly(interest, count)
	period := frequency.PeriodDays()

	entries := make([]domain.ScheduleEntry, 0, count)
	for i := 0; i < count; i++ {
		number := first + i
		feeDue := decimal.Zero
		if i == 0 {
			feeDue = fee
		}
		total := principalShares[i].Add(interestShares[i]).Add(feeDue)

		entries = append(entries, domain.ScheduleEntry{
			ID:                uuid.New(),
			LoanID:            loan.ID,
			TenantID:          loan.TenantID,
			InstallmentNumber: number,
			DueDate:           utils.AddDays(loan.DisbursementDate, number*period),
			PrincipalDue:      principalShares[i],
			InterestDue:       interestShares[i],
			FeeDue:            feeDue,
			TotalDue:          total,
			AmountPaid:        decimal.Zero,
			OutstandingAmount: total,
			PenaltyAmount:     decimal.Zero,
			PenaltyPaid:       decimal.Zero,
			Status:            domain.ScheduleStatusPending,
			CreatedAt:         loan.UpdatedAt,
			UpdatedAt:         loan.UpdatedAt,
		})
	}
	return entries
}

// splitEvenly returns n shares of amount that differ by at most a cent. The
// truncated base share goes to every installment and the leftover cents go
// to the earliest ones; any sub-cent residue stays on the first share.
func splitEvenly(amount decimal.Decimal, n int) []decimal.Decimal {
	shares := make([]decimal.Decimal, n)
	base := amount.Div(decimal.NewFromInt(int64(n))).Truncate(utils.MoneyPlaces)
	cent := decimal.New(1, -utils.MoneyPlaces)

	leftover := amount.Sub(base.Mul(decimal.NewFromInt(int64(n))))
	for i := range shares {
		shares[i] = base
		if leftover.GreaterThanOrEqual(cent) {
			shares[i] = shares[i].Add(cent)
			leftover = leftover.Sub(cent)
		}
	}
	shares[0] = shares[0].Add(leftover)
	return shares
}

// Recalculate regenerates the unpaid tail of a schedule after the loan's
// terms changed. Paid entries are returned untouched in kept. Every other
// entry is replaced by tail, which spreads the loan's remaining principal,
// interest and fee over the slots left in the term. Amounts already applied
// to replaced entries are carried onto the new tail in installment order.
func Recalculate(loan domain.Loan, existing []domain.ScheduleEntry, now time.Time) (kept, tail []domain.ScheduleEntry, err error) {
	ordered := Sorted(existing)

	var (
		lastKept                             int
		keptPrincipal, keptInterest, keptFee decimal.Decimal
		carriedPaid, carriedPenalty          decimal.Decimal
		carriedPenaltyPaid                   decimal.Decimal
	)
	for _, e := range ordered {
		if e.IsPaid() {
			kept = append(kept, e)
			keptPrincipal = keptPrincipal.Add(e.PrincipalDue)
			keptInterest = keptInterest.Add(e.InterestDue)
			keptFee = keptFee.Add(e.FeeDue)
			if e.InstallmentNumber > lastKept {
				lastKept = e.InstallmentNumber
			}
			continue
		}
		carriedPaid = carriedPaid.Add(e.AmountPaid)
		carriedPenalty = carriedPenalty.Add(e.PenaltyAmount)
		carriedPenaltyPaid = carriedPenaltyPaid.Add(e.PenaltyPaid)
	}

	frequency := loan.PaymentFrequency
	remainingDays := loan.TermDays - lastKept*frequency.PeriodDays()
	count := frequency.Installments(remainingDays)
	if count == 0 {
		return nil, nil, fmt.Errorf("term of %d days leaves no installments after installment %d", loan.TermDays, lastKept)
	}

	principal := loan.PrincipalAmount.Sub(keptPrincipal)
	interest := loan.TotalInterest.Sub(keptInterest)
	fee := loan.ProcessingFee.Sub(keptFee)
	if principal.IsNegative() || interest.IsNegative() || fee.IsNegative() {
		return nil, nil, fmt.Errorf("settled installments exceed the restructured totals")
	}

	stamped := loan
	stamped.UpdatedAt = now
	tail = build(stamped, frequency, lastKept+1, count, principal, interest, fee)

	if len(tail) > 0 {
		tail[0].PenaltyAmount = carriedPenalty
		tail[0].PenaltyPaid = carriedPenaltyPaid
	}
	for i := range tail {
		if !carriedPaid.IsPositive() {
			break
		}
		applied := decimal.Min(carriedPaid, tail[i].TotalDue)
		tail[i].AmountPaid = applied
		tail[i].OutstandingAmount = tail[i].TotalDue.Sub(applied)
		carriedPaid = carriedPaid.Sub(applied)
	}
	if carriedPaid.IsPositive() {
		return nil, nil, fmt.Errorf("amounts already paid exceed the restructured schedule by %s", carriedPaid.StringFixed(2))
	}
	for i := range tail {
		tail[i].Status = DeriveStatus(tail[i], domain.ScheduleStatusPending)
		if tail[i].Status == domain.ScheduleStatusPaid {
			paid := now
			tail[i].PaidDate = &paid
		}
	}

	return kept, tail, nil
}

// DeriveStatus classifies an entry from its amounts. fallback is used for an
// entry with nothing applied (pending or overdue).
func DeriveStatus(e domain.ScheduleEntry, fallback string) string {
	switch {
	case !e.OutstandingAmount.IsPositive() && !e.PenaltyOutstanding().IsPositive():
		return domain.ScheduleStatusPaid
	case e.AmountPaid.IsPositive() || e.PenaltyPaid.IsPositive():
		return domain.ScheduleStatusPartiallyPaid
	case fallback == domain.ScheduleStatusOverdue:
		return domain.ScheduleStatusOverdue
	default:
		return domain.ScheduleStatusPending
	}
}

// NextDue returns the earliest entry that is not paid, or nil.
func NextDue(entries []domain.ScheduleEntry) *domain.ScheduleEntry {
	for _, e := range Sorted(entries) {
		if !e.IsPaid() {
			next := e
			return &next
		}
	}
	return nil
}

// Sorted returns a copy of entries ordered by installment number.
func Sorted(entries []domain.ScheduleEntry) []domain.ScheduleEntry {
	out := make([]domain.ScheduleEntry, len(entries))
	copy(out, entries)
	sort.Slice(out, func(i, j int) bool {
		return out[i].InstallmentNumber < out[j].InstallmentNumber
	})
	return out
}
