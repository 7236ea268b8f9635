package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/restpay/payments/internal/domain"
)

// streamKey is the Redis stream that carries one event type.
func streamKey(eventType string) string {
	return fmt.Sprintf("events:%s", eventType)
}

// DecodeEvent turns a published payload back into its concrete event.
func DecodeEvent(eventType string, data []byte) (domain.DomainEvent, error) {
	switch eventType {
	case domain.EventTypeChargeCreated, domain.EventTypeChargeStatusRecorded:
		var e domain.ChargeEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event: %w", err)
		}
		return &e, nil
	case domain.EventTypeRefundCreated:
		var e domain.RefundCreatedEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event: %w", err)
		}
		return &e, nil
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
}
