package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates ledger events relayed through the outbox.
type EventType string

const (
	EventFineIssued EventType = "fines.fine.issued"
	EventFinePaid   EventType = "fines.fine.paid"
)

// AggregateType enumerates the aggregate root types for outbox events.
type AggregateType string

const (
	AggregateFine AggregateType = "fine"
)

// OutboxDraft is the payload written to the event_outbox table.
type OutboxDraft struct {
	EventID        uuid.UUID       `json:"eventId"`
	OrganizationID string          `json:"organizationId"`
	AggregateType  AggregateType   `json:"aggregateType"`
	AggregateID    string          `json:"aggregateId"`
	EventType      EventType       `json:"eventType"`
	PartitionKey   string          `json:"partitionKey"`
	Payload        json.RawMessage `json:"payload"`
	OccurredAt     time.Time       `json:"occurredAt"`
}

// OutboxRow is an unpublished outbox row with its sequence id.
type OutboxRow struct {
	SeqID int64
	OutboxDraft
}

// NewFineEvent creates the outbox event for a fine transition.
// Events are partitioned by player so consumers see a player's fines in order.
func NewFineEvent(t FineTransition, balanceAfter int64) OutboxDraft {
	evt := EventFineIssued
	if t.To == FinePaid {
		evt = EventFinePaid
	}
	payload, _ := json.Marshal(map[string]any{
		"fine":          t.Fine,
		"balance_delta": t.BalanceDelta,
		"balance_after": balanceAfter,
	})
	return OutboxDraft{
		EventID:        uuid.New(),
		OrganizationID: t.Fine.OrganizationID,
		AggregateType:  AggregateFine,
		AggregateID:    t.Fine.ID.String(),
		EventType:      evt,
		PartitionKey:   t.Fine.PlayerID.String(),
		Payload:        payload,
		OccurredAt:     t.Fine.UpdatedAt,
	}
}
