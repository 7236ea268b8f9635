package service

import (
	"context"

	"github.com/restpay/payments/internal/domain"
	"github.com/restpay/payments/internal/integration"
	"github.com/stretchr/testify/mock"
)

// MockCustomerRepository is a mock implementation of CustomerRepository
type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) FindByUserID(ctx context.Context, userID string) (*domain.Customer, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Customer), args.Error(1)
}

func (m *MockCustomerRepository) GetOrCreate(ctx context.Context, userID string) (*domain.Customer, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Customer), args.Error(1)
}

func (m *MockCustomerRepository) Delete(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// MockSourceRepository is a mock implementation of SourceRepository
type MockSourceRepository struct {
	mock.Mock
}

func (m *MockSourceRepository) Save(ctx context.Context, source *domain.Source) error {
	args := m.Called(ctx, source)
	return args.Error(0)
}

func (m *MockSourceRepository) FindByID(ctx context.Context, id string) (*domain.Source, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Source), args.Error(1)
}

// MockChargeRepository is a mock implementation of ChargeRepository
type MockChargeRepository struct {
	mock.Mock
}

func (m *MockChargeRepository) Save(ctx context.Context, charge *domain.Charge) error {
	args := m.Called(ctx, charge)
	return args.Error(0)
}

func (m *MockChargeRepository) FindByID(ctx context.Context, id string) (*domain.Charge, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Charge), args.Error(1)
}

func (m *MockChargeRepository) UpdateStatus(ctx context.Context, id string, status domain.ChargeStatus) (*domain.Charge, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Charge), args.Error(1)
}

func (m *MockChargeRepository) FindByIntegrationID(ctx context.Context, integration, integrationID string) (*domain.Charge, error) {
	args := m.Called(ctx, integration, integrationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Charge), args.Error(1)
}

func (m *MockChargeRepository) FindByCustomerIDWithPagination(ctx context.Context, customerID string, limit, offset int) ([]*domain.Charge, error) {
	args := m.Called(ctx, customerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Charge), args.Error(1)
}

func (m *MockChargeRepository) CountByCustomerID(ctx context.Context, customerID string) (int64, error) {
	args := m.Called(ctx, customerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockChargeRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockRefundRepository plays the storage side of Create: it returns the
// locked charge and current total from the expectation, then runs the
// issuer the way the real repository does.
type MockRefundRepository struct {
	mock.Mock
}

func (m *MockRefundRepository) Create(ctx context.Context, chargeID string, issue domain.RefundIssuer) (*domain.Refund, error) {
	args := m.Called(ctx, chargeID, issue)
	if err := args.Error(2); err != nil {
		return nil, err
	}

	charge := args.Get(0).(*domain.Charge)
	var total *int64
	if v := args.Get(1); v != nil {
		total = v.(*int64)
	}

	refund, err := issue(ctx, charge, total)
	if err != nil {
		return nil, err
	}
	refund.ID = "refund-1"
	return refund, nil
}

func (m *MockRefundRepository) FindByChargeID(ctx context.Context, chargeID string) ([]*domain.Refund, error) {
	args := m.Called(ctx, chargeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Refund), args.Error(1)
}

func (m *MockRefundRepository) TotalByChargeID(ctx context.Context, chargeID string) (*int64, error) {
	args := m.Called(ctx, chargeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*int64), args.Error(1)
}

// MockIntegration is a mock gateway adapter
type MockIntegration struct {
	mock.Mock
	name string
}

func newMockIntegration(name string) *MockIntegration {
	return &MockIntegration{name: name}
}

func (m *MockIntegration) Name() string { return m.name }

func (m *MockIntegration) CreateCharge(ctx context.Context, req domain.ChargeRequest) (*domain.ChargeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChargeResult), args.Error(1)
}

func (m *MockIntegration) CreateRefund(ctx context.Context, charge *domain.Charge, amount int64) (*domain.RefundResult, error) {
	args := m.Called(ctx, charge, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefundResult), args.Error(1)
}

// MockVerifyingIntegration is a gateway adapter that signs its callbacks
type MockVerifyingIntegration struct {
	*MockIntegration
}

func (m *MockVerifyingIntegration) VerifyCallback(ctx context.Context, payload []byte, header map[string][]string) error {
	args := m.Called(ctx, payload, header)
	return args.Error(0)
}

type stubSettings struct {
	integrations []domain.Integration
	err          error
	fallback     bool
	handler      integration.ErrorHandler
}

func (s *stubSettings) Integrations() ([]domain.Integration, error) {
	return s.integrations, s.err
}

func (s *stubSettings) AutoFallback() bool { return s.fallback }

func (s *stubSettings) UnexpectedErrorsHandler() (integration.ErrorHandler, error) {
	return s.handler, nil
}

type channelPublisher struct {
	events chan domain.DomainEvent
}

func newChannelPublisher() *channelPublisher {
	return &channelPublisher{events: make(chan domain.DomainEvent, 10)}
}

func (p *channelPublisher) Publish(ctx context.Context, event domain.DomainEvent) error {
	p.events <- event
	return nil
}

func int64Ptr(v int64) *int64 { return &v }

func stringPtr(v string) *string { return &v }
