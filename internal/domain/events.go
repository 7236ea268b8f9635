package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventTypeChargeCreated        = "charge.created"
	EventTypeChargeStatusRecorded = "charge.status_recorded"
	EventTypeRefundCreated        = "refund.created"
)

// DomainEvent represents a domain event
type DomainEvent interface {
	GetEventID() string
	GetEventType() string
	GetAggregateID() string
	GetOccurredAt() time.Time
	GetPayload() interface{}
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	AggregateID string    `json:"aggregate_id"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (e BaseEvent) GetEventID() string       { return e.EventID }
func (e BaseEvent) GetEventType() string     { return e.EventType }
func (e BaseEvent) GetAggregateID() string   { return e.AggregateID }
func (e BaseEvent) GetOccurredAt() time.Time { return e.OccurredAt }

func newBaseEvent(eventType, aggregateID string) BaseEvent {
	return BaseEvent{
		EventID:     uuid.New().String(),
		EventType:   eventType,
		AggregateID: aggregateID,
		OccurredAt:  time.Now(),
	}
}

// ChargeEvent is emitted when a charge is created or its status recorded.
type ChargeEvent struct {
	BaseEvent
	Payload ChargePayload `json:"payload"`
}

func (e ChargeEvent) GetPayload() interface{} { return e.Payload }

type ChargePayload struct {
	ChargeID      string       `json:"charge_id"`
	Integration   string       `json:"integration"`
	IntegrationID string       `json:"integration_id"`
	Status        ChargeStatus `json:"status"`
	Amount        int64        `json:"amount"`
	Currency      string       `json:"currency"`
	CustomerID    *string      `json:"customer_id,omitempty"`
}

func NewChargeEvent(eventType string, charge *Charge) *ChargeEvent {
	return &ChargeEvent{
		BaseEvent: newBaseEvent(eventType, charge.ID),
		Payload: ChargePayload{
			ChargeID:      charge.ID,
			Integration:   charge.Integration,
			IntegrationID: charge.IntegrationID,
			Status:        charge.Status,
			Amount:        charge.Amount,
			Currency:      charge.Currency,
			CustomerID:    charge.CustomerID,
		},
	}
}

// RefundCreatedEvent - refund persisted against a charge
type RefundCreatedEvent struct {
	BaseEvent
	Payload RefundCreatedPayload `json:"payload"`
}

func (e RefundCreatedEvent) GetPayload() interface{} { return e.Payload }

type RefundCreatedPayload struct {
	RefundID      string `json:"refund_id"`
	ChargeID      string `json:"charge_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	TotalRefunded int64  `json:"total_refunded"`
	FullyRefunded bool   `json:"fully_refunded"`
}

func NewRefundCreatedEvent(refund *Refund, charge *Charge, totalRefunded int64) *RefundCreatedEvent {
	return &RefundCreatedEvent{
		BaseEvent: newBaseEvent(EventTypeRefundCreated, charge.ID),
		Payload: RefundCreatedPayload{
			RefundID:      refund.ID,
			ChargeID:      charge.ID,
			Amount:        refund.Amount,
			Currency:      refund.Currency,
			TotalRefunded: totalRefunded,
			FullyRefunded: totalRefunded == charge.Amount,
		},
	}
}

// EventPublisher interface
type EventPublisher interface {
	Publish(ctx context.Context, event DomainEvent) error
}

// EventSubscriber interface
type EventSubscriber interface {
	Subscribe(ctx context.Context, eventType string, handler EventHandler) error
}

// EventHandler processes events
type EventHandler func(ctx context.Context, event DomainEvent) error
