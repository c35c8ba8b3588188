package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a ledger event published after commit.
type EventType string

const (
	EventLoanDisbursed    EventType = "loan.disbursed"
	EventPaymentRecorded  EventType = "payment.recorded"
	EventPaymentReversed  EventType = "payment.reversed"
	EventLoanPaidOff      EventType = "loan.paid_off"
	EventLoanOverdue      EventType = "loan.overdue"
	EventPenaltyApplied   EventType = "penalty.applied"
	EventLoanClosed       EventType = "loan.closed"
	EventLoanWrittenOff   EventType = "loan.written_off"
	EventLoanSuspended    EventType = "loan.suspended"
	EventLoanResumed      EventType = "loan.resumed"
	EventLoanRestructured EventType = "loan.restructured"
)

// Event is a ledger fact for downstream consumers (audit log, notifications,
// reporting).
type Event struct {
	ID         uuid.UUID              `json:"id"`
	Type       EventType              `json:"type"`
	TenantID   string                 `json:"tenant_id"`
	LoanID     uuid.UUID              `json:"loan_id"`
	ActorID    string                 `json:"actor_id"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

func NewEvent(eventType EventType, actor Actor, loanID uuid.UUID, at time.Time, data map[string]interface{}) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		TenantID:   actor.TenantID,
		LoanID:     loanID,
		ActorID:    actor.UserID,
		OccurredAt: at.UTC(),
		Data:       data,
	}
}
