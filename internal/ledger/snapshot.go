// Package ledger is the loan state machine. Every operation takes an
// in-memory Snapshot of a loan and its schedule and returns an Outcome: the
// next snapshot plus the records the storage layer must write atomically.
// Nothing in this package performs I/O.
package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/schedule"
)

// Snapshot is a loan with its full schedule, ordered by installment number.
type Snapshot struct {
	Loan     domain.Loan
	Schedule []domain.ScheduleEntry
}

// NewSnapshot copies the inputs and orders the schedule.
func NewSnapshot(loan domain.Loan, entries []domain.ScheduleEntry) Snapshot {
	return Snapshot{Loan: loan, Schedule: schedule.Sorted(entries)}
}

// Clone returns a deep enough copy for mutation: entries are values and
// PaidDate pointers are never written through.
func (s Snapshot) Clone() Snapshot {
	entries := make([]domain.ScheduleEntry, len(s.Schedule))
	copy(entries, s.Schedule)
	return Snapshot{Loan: s.Loan, Schedule: entries}
}

// Entry returns the index of an installment in the schedule, or -1.
func (s Snapshot) Entry(installment int) int {
	for i := range s.Schedule {
		if s.Schedule[i].InstallmentNumber == installment {
			return i
		}
	}
	return -1
}

// EntryByID returns the index of a schedule entry by ID, or -1.
func (s Snapshot) EntryByID(id uuid.UUID) int {
	for i := range s.Schedule {
		if s.Schedule[i].ID == id {
			return i
		}
	}
	return -1
}

// Replacement describes a regenerated schedule tail.
type Replacement struct {
	Removed []uuid.UUID
	Added   []domain.ScheduleEntry
}

// Reallocation moves stored payment allocations off replaced schedule rows
// onto the rows that took over their paid amounts.
type Reallocation struct {
	Removed []uuid.UUID
	Added   []domain.PaymentAllocation
}

// Outcome is the result of a ledger operation.
type Outcome struct {
	Snapshot Snapshot
	// Touched lists installments whose rows changed in place.
	Touched []int
	// Replaced is set when part of the schedule was regenerated.
	Replaced    *Replacement
	Reallocated *Reallocation
	// Payment is a newly recorded payment; Allocations belong to it.
	Payment     *domain.Payment
	Allocations []domain.PaymentAllocation
	// Reversed is an existing payment that was reversed.
	Reversed *domain.Payment
	Penalty  *domain.PenaltyCharge
	Events   []domain.Event
}

// TouchedEntries returns the current rows of every touched installment.
func (o Outcome) TouchedEntries() []domain.ScheduleEntry {
	entries := make([]domain.ScheduleEntry, 0, len(o.Touched))
	for _, n := range o.Touched {
		if i := o.Snapshot.Entry(n); i >= 0 {
			entries = append(entries, o.Snapshot.Schedule[i])
		}
	}
	return entries
}

// Changed reports whether the outcome carries anything to persist.
func (o Outcome) Changed() bool {
	return len(o.Touched) > 0 || o.Replaced != nil || o.Reallocated != nil || o.Payment != nil ||
		o.Reversed != nil || o.Penalty != nil || len(o.Events) > 0
}

// Modified reports whether the outcome changed any persisted field of the
// loan row. UpdatedAt alone is not enough: two operations in the same clock
// tick leave it unchanged.
func (o Outcome) Modified(before domain.Loan) bool {
	after := o.Snapshot.Loan
	return after.Status != before.Status ||
		after.SuspendedFrom != before.SuspendedFrom ||
		after.ClosureReason != before.ClosureReason ||
		after.TermDays != before.TermDays ||
		!after.InterestRate.Equal(before.InterestRate) ||
		!after.TotalInterest.Equal(before.TotalInterest) ||
		!after.TotalAmount.Equal(before.TotalAmount) ||
		!after.AmountPaid.Equal(before.AmountPaid) ||
		!after.OutstandingBalance.Equal(before.OutstandingBalance) ||
		!after.PenaltyAmount.Equal(before.PenaltyAmount) ||
		!after.WriteOffAmount.Equal(before.WriteOffAmount) ||
		!after.MaturityDate.Equal(before.MaturityDate) ||
		!after.UpdatedAt.Equal(before.UpdatedAt)
}

func (o *Outcome) touch(installment int) {
	for _, n := range o.Touched {
		if n == installment {
			return
		}
	}
	o.Touched = append(o.Touched, installment)
}

func (o *Outcome) emit(eventType domain.EventType, actor domain.Actor, at time.Time, data map[string]interface{}) {
	o.Events = append(o.Events, domain.NewEvent(eventType, actor, o.Snapshot.Loan.ID, at, data))
}

func stamp(loan *domain.Loan, now time.Time) {
	loan.UpdatedAt = now
}
