package service

import (
	"context"
	"fmt"
	"time"

	"github.com/restpay/payments/internal/domain"
	"github.com/restpay/payments/internal/metrics"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// LedgerService records charges and refunds against the ledger. Gateway
// calls happen in the Dispatcher; the ledger only persists their results.
type LedgerService struct {
	customerRepo   domain.CustomerRepository
	sourceRepo     domain.SourceRepository
	chargeRepo     domain.ChargeRepository
	refundRepo     domain.RefundRepository
	eventPublisher domain.EventPublisher // Optional - can be nil
	logger         *zap.Logger
}

func NewLedgerService(
	customerRepo domain.CustomerRepository,
	sourceRepo domain.SourceRepository,
	chargeRepo domain.ChargeRepository,
	refundRepo domain.RefundRepository,
	eventPublisher domain.EventPublisher,
	logger *zap.Logger,
) *LedgerService {
	return &LedgerService{
		customerRepo:   customerRepo,
		sourceRepo:     sourceRepo,
		chargeRepo:     chargeRepo,
		refundRepo:     refundRepo,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

type CreateChargeInput struct {
	Amount        int64
	Currency      string
	Integration   string
	IntegrationID string
	// Status may be left empty for pending.
	Status     domain.ChargeStatus
	CustomerID *string
	SourceID   *string
}

type CreateRefundInput struct {
	ChargeID string
	Amount   int64
	Currency string
	// Execute runs after validation while the charge is locked. An error
	// aborts the refund and nothing is recorded.
	Execute func(ctx context.Context, charge *domain.Charge, refund *domain.Refund) error
}

type PaginationParams struct {
	Page     int
	PageSize int
}

// Normalize clamps the page to 1.. and the page size to 1..MaxPageSize.
func (p PaginationParams) Normalize() PaginationParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

type ChargePage struct {
	Charges    []*domain.Charge
	Page       int
	PageSize   int
	Total      int64
	TotalPages int
}

func (s *LedgerService) EnsureCustomer(ctx context.Context, userID string) (*domain.Customer, error) {
	customer, err := s.customerRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure customer: %w", err)
	}
	return customer, nil
}

func (s *LedgerService) DeleteCustomer(ctx context.Context, userID string) error {
	if err := s.customerRepo.Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	return nil
}

func (s *LedgerService) RegisterSource(ctx context.Context, integration string, details map[string]any) (*domain.Source, error) {
	if integration == "" {
		return nil, fmt.Errorf("%w: integration is required", domain.ErrInvalidSource)
	}

	source := domain.NewSource(integration, details)
	if err := s.sourceRepo.Save(ctx, source); err != nil {
		s.logger.Error("failed to save source",
			zap.Error(err),
			zap.String("integration", integration),
		)
		return nil, fmt.Errorf("failed to save source: %w", err)
	}

	return source, nil
}

func (s *LedgerService) GetSource(ctx context.Context, id string) (*domain.Source, error) {
	return s.sourceRepo.FindByID(ctx, id)
}

func (s *LedgerService) CreateCharge(ctx context.Context, in CreateChargeInput) (*domain.Charge, error) {
	charge, err := domain.NewCharge(in.Amount, in.Currency, in.IntegrationID, in.Status)
	if err != nil {
		return nil, err
	}
	charge.Integration = in.Integration

	if in.CustomerID != nil {
		customer, err := s.customerRepo.GetOrCreate(ctx, *in.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("failed to get customer: %w", err)
		}
		charge.CustomerID = &customer.UserID
	}

	if in.SourceID != nil {
		if _, err := s.sourceRepo.FindByID(ctx, *in.SourceID); err != nil {
			return nil, fmt.Errorf("failed to get source: %w", err)
		}
		charge.SourceID = in.SourceID
	}

	if err := s.chargeRepo.Save(ctx, charge); err != nil {
		s.logger.Error("failed to save charge",
			zap.Error(err),
			zap.String("integration", in.Integration),
		)
		return nil, fmt.Errorf("failed to save charge: %w", err)
	}

	metrics.ChargeCreated(charge.Integration)
	s.logger.Info("charge created",
		zap.String("charge_id", charge.ID),
		zap.String("integration", charge.Integration),
		zap.Int64("amount", charge.Amount),
		zap.String("currency", charge.Currency),
		zap.String("status", string(charge.Status)),
	)

	s.publish(domain.NewChargeEvent(domain.EventTypeChargeCreated, charge))

	return charge, nil
}

// RecordStatus moves a pending charge to a terminal status.
func (s *LedgerService) RecordStatus(ctx context.Context, chargeID string, status domain.ChargeStatus) (*domain.Charge, error) {
	charge, err := s.chargeRepo.FindByID(ctx, chargeID)
	if err != nil {
		return nil, err
	}
	return s.recordStatus(ctx, charge, status)
}

// RecordStatusByIntegrationID resolves a provider callback, which only
// knows the provider's own charge id.
func (s *LedgerService) RecordStatusByIntegrationID(ctx context.Context, integration, integrationID string, status domain.ChargeStatus) (*domain.Charge, error) {
	charge, err := s.chargeRepo.FindByIntegrationID(ctx, integration, integrationID)
	if err != nil {
		return nil, err
	}
	return s.recordStatus(ctx, charge, status)
}

func (s *LedgerService) recordStatus(ctx context.Context, charge *domain.Charge, status domain.ChargeStatus) (*domain.Charge, error) {
	if err := charge.RecordStatus(status); err != nil {
		return nil, err
	}

	// The copy we validated may be stale; storage has the final word.
	stored, err := s.chargeRepo.UpdateStatus(ctx, charge.ID, status)
	if err != nil {
		s.logger.Warn("failed to record charge status",
			zap.Error(err),
			zap.String("charge_id", charge.ID),
			zap.String("status", string(status)),
		)
		return nil, err
	}

	s.logger.Info("charge status recorded",
		zap.String("charge_id", stored.ID),
		zap.String("status", string(stored.Status)),
	)

	s.publish(domain.NewChargeEvent(domain.EventTypeChargeStatusRecorded, stored))

	return stored, nil
}

// CreateRefund validates and records a refund. The charge row stays locked
// from the refunded-total read until the insert commits.
func (s *LedgerService) CreateRefund(ctx context.Context, in CreateRefundInput) (*domain.Refund, error) {
	if in.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	var (
		charge        *domain.Charge
		totalRefunded int64
	)

	refund, err := s.refundRepo.Create(ctx, in.ChargeID, func(ctx context.Context, locked *domain.Charge, total *int64) (*domain.Refund, error) {
		refund, err := locked.NewRefund(in.Amount, in.Currency, total)
		if err != nil {
			return nil, err
		}

		if in.Execute != nil {
			if err := in.Execute(ctx, locked, refund); err != nil {
				return nil, err
			}
		}

		charge = locked
		totalRefunded = refund.Amount
		if total != nil {
			totalRefunded += *total
		}
		return refund, nil
	})
	if err != nil {
		s.logger.Info("refund rejected",
			zap.Error(err),
			zap.String("charge_id", in.ChargeID),
			zap.Int64("amount", in.Amount),
		)
		return nil, err
	}

	metrics.RefundsCreated.Inc()
	s.logger.Info("refund created",
		zap.String("refund_id", refund.ID),
		zap.String("charge_id", charge.ID),
		zap.Int64("amount", refund.Amount),
		zap.Int64("total_refunded", totalRefunded),
	)

	s.publish(domain.NewRefundCreatedEvent(refund, charge, totalRefunded))

	return refund, nil
}

// TotalRefunded returns nil when the charge has no refunds.
func (s *LedgerService) TotalRefunded(ctx context.Context, chargeID string) (*int64, error) {
	if _, err := s.chargeRepo.FindByID(ctx, chargeID); err != nil {
		return nil, err
	}
	return s.refundRepo.TotalByChargeID(ctx, chargeID)
}

func (s *LedgerService) GetCharge(ctx context.Context, chargeID string) (*domain.Charge, error) {
	return s.chargeRepo.FindByID(ctx, chargeID)
}

func (s *LedgerService) ListRefunds(ctx context.Context, chargeID string) ([]*domain.Refund, error) {
	if _, err := s.chargeRepo.FindByID(ctx, chargeID); err != nil {
		return nil, err
	}

	refunds, err := s.refundRepo.FindByChargeID(ctx, chargeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get refunds: %w", err)
	}
	return refunds, nil
}

func (s *LedgerService) DeleteCharge(ctx context.Context, chargeID string) error {
	return s.chargeRepo.Delete(ctx, chargeID)
}

func (s *LedgerService) ListCustomerCharges(ctx context.Context, userID string, params PaginationParams) (*ChargePage, error) {
	if _, err := s.customerRepo.FindByUserID(ctx, userID); err != nil {
		return nil, err
	}

	params = params.Normalize()

	total, err := s.chargeRepo.CountByCustomerID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count charges: %w", err)
	}

	charges, err := s.chargeRepo.FindByCustomerIDWithPagination(ctx, userID, params.PageSize, (params.Page-1)*params.PageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to get charges: %w", err)
	}

	totalPages := int((total + int64(params.PageSize) - 1) / int64(params.PageSize))

	return &ChargePage{
		Charges:    charges,
		Page:       params.Page,
		PageSize:   params.PageSize,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

func (s *LedgerService) publish(event domain.DomainEvent) {
	if s.eventPublisher == nil {
		return
	}
	go s.publishEvent(event)
}

func (s *LedgerService) publishEvent(event domain.DomainEvent) {
	// Use background context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish event",
			zap.Error(err),
			zap.String("event_type", event.GetEventType()),
			zap.String("event_id", event.GetEventID()),
		)
		return
	}

	s.logger.Debug("event published",
		zap.String("event_type", event.GetEventType()),
		zap.String("event_id", event.GetEventID()),
	)
}
