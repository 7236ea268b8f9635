package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/restpay/payments/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// NotificationService handles side effects like receipts and alerts.
type NotificationService struct {
	customerRepo domain.CustomerRepository
	logger       *zap.Logger
}

func NewNotificationService(
	customerRepo domain.CustomerRepository,
	logger *zap.Logger,
) *NotificationService {
	return &NotificationService{
		customerRepo: customerRepo,
		logger:       logger,
	}
}

// Handlers maps each event type to its handler, ready for a subscriber.
func (s *NotificationService) Handlers() map[string]domain.EventHandler {
	return map[string]domain.EventHandler{
		domain.EventTypeChargeCreated:        s.HandleChargeEvent,
		domain.EventTypeChargeStatusRecorded: s.HandleChargeEvent,
		domain.EventTypeRefundCreated:        s.HandleRefundCreated,
	}
}

// HandleChargeEvent sends a receipt once a charge settles.
func (s *NotificationService) HandleChargeEvent(ctx context.Context, event domain.DomainEvent) error {
	chargeEvent, ok := event.(*domain.ChargeEvent)
	if !ok {
		return fmt.Errorf("invalid event type %T", event)
	}

	payload := chargeEvent.Payload

	s.logger.Info("handling charge event",
		zap.String("event_id", event.GetEventID()),
		zap.String("event_type", event.GetEventType()),
		zap.String("charge_id", payload.ChargeID),
		zap.String("status", string(payload.Status)),
	)

	if payload.CustomerID == nil {
		return nil
	}

	// Make sure the customer still exists; it may have been deleted since.
	customer, err := s.customerRepo.FindByUserID(ctx, *payload.CustomerID)
	if err != nil {
		if errors.Is(err, domain.ErrCustomerNotFound) {
			s.logger.Debug("customer gone, skipping notification",
				zap.String("user_id", *payload.CustomerID))
			return nil
		}
		return fmt.Errorf("failed to get customer: %w", err)
	}

	switch payload.Status {
	case domain.ChargeStatusSucceeded:
		s.logger.Info("receipt sent",
			zap.String("user_id", customer.UserID),
			zap.String("message", fmt.Sprintf("Payment of %s %s received.",
				formatAmount(payload.Amount), payload.Currency)),
		)
	case domain.ChargeStatusFailed:
		s.logger.Info("failure notice sent",
			zap.String("user_id", customer.UserID),
			zap.String("message", fmt.Sprintf("Payment of %s %s could not be completed.",
				formatAmount(payload.Amount), payload.Currency)),
		)
	}

	return nil
}

func (s *NotificationService) HandleRefundCreated(ctx context.Context, event domain.DomainEvent) error {
	refundEvent, ok := event.(*domain.RefundCreatedEvent)
	if !ok {
		return fmt.Errorf("invalid event type %T", event)
	}

	payload := refundEvent.Payload

	s.logger.Info("refund notice sent",
		zap.String("event_id", event.GetEventID()),
		zap.String("charge_id", payload.ChargeID),
		zap.String("message", fmt.Sprintf("Refund of %s %s issued.",
			formatAmount(payload.Amount), payload.Currency)),
	)

	if payload.FullyRefunded {
		s.logger.Info("charge fully refunded", zap.String("charge_id", payload.ChargeID))
	}

	return nil
}

// formatAmount renders minor units with two decimals.
func formatAmount(amount int64) string {
	return decimal.New(amount, -2).StringFixed(2)
}
