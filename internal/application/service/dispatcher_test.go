package service

import (
	"context"
	"errors"
	"testing"

	"github.com/restpay/payments/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDispatcherCharge_NoIntegrations(t *testing.T) {
	svc, _ := newTestLedger(nil)
	d := NewDispatcher(&stubSettings{fallback: true}, svc, zap.NewNop())

	_, err := d.Charge(context.Background(), ChargeInput{Amount: 100, Currency: "USD"})

	assert.ErrorIs(t, err, ErrNoIntegrations)
}

func TestDispatcherCharge_ValidatesBeforeCallingGateways(t *testing.T) {
	gateway := newMockIntegration("primary")
	svc, _ := newTestLedger(nil)
	d := NewDispatcher(&stubSettings{integrations: []domain.Integration{gateway}}, svc, zap.NewNop())

	_, err := d.Charge(context.Background(), ChargeInput{Amount: 0, Currency: "USD"})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = d.Charge(context.Background(), ChargeInput{Amount: 100, Currency: "$"})
	assert.ErrorIs(t, err, domain.ErrInvalidCurrency)

	gateway.AssertNotCalled(t, "CreateCharge", mock.Anything, mock.Anything)
}

func TestDispatcherCharge_RejectsCustomerBeforeCallingGateways(t *testing.T) {
	tests := []struct {
		name       string
		customerID string
		repoErr    error
		wantErr    error
	}{
		{name: "empty customer id", customerID: "", repoErr: domain.ErrInvalidCustomerID, wantErr: domain.ErrInvalidCustomerID},
		{name: "customer store down", customerID: "user-1", repoErr: errors.New("connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			ctx := context.Background()
			gateway := newMockIntegration("primary")
			svc, m := newTestLedger(nil)
			m.customers.On("GetOrCreate", ctx, tt.customerID).Return(nil, tt.repoErr)
			d := NewDispatcher(&stubSettings{integrations: []domain.Integration{gateway}, fallback: true}, svc, zap.NewNop())

			// Act
			_, err := d.Charge(ctx, ChargeInput{Amount: 100, Currency: "USD", CustomerID: stringPtr(tt.customerID)})

			// Assert
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.repoErr)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			gateway.AssertNotCalled(t, "CreateCharge", mock.Anything, mock.Anything)
			m.charges.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		})
	}
}

func TestDispatcherCharge_FallsBackToNextIntegration(t *testing.T) {
	// Arrange
	ctx := context.Background()
	primary := newMockIntegration("primary")
	secondary := newMockIntegration("secondary")
	gatewayErr := errors.New("primary unavailable")

	primary.On("CreateCharge", ctx, mock.Anything).Return(nil, gatewayErr)
	secondary.On("CreateCharge", ctx, mock.Anything).
		Return(&domain.ChargeResult{IntegrationID: "sec_1", Status: domain.ChargeStatusSucceeded}, nil)

	var reported []string
	settings := &stubSettings{
		integrations: []domain.Integration{primary, secondary},
		fallback:     true,
		handler: func(ctx context.Context, name string, err error) {
			reported = append(reported, name)
		},
	}

	svc, m := newTestLedger(nil)
	m.charges.On("Save", ctx, mock.AnythingOfType("*domain.Charge")).Return(nil)
	d := NewDispatcher(settings, svc, zap.NewNop())

	// Act
	charge, err := d.Charge(ctx, ChargeInput{Amount: 1000, Currency: "usd"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "secondary", charge.Integration)
	assert.Equal(t, "sec_1", charge.IntegrationID)
	assert.Equal(t, domain.ChargeStatusSucceeded, charge.Status)
	assert.Equal(t, []string{"primary"}, reported)
	primary.AssertExpectations(t)
	secondary.AssertExpectations(t)
}

func TestDispatcherCharge_NoFallbackReturnsFirstError(t *testing.T) {
	ctx := context.Background()
	primary := newMockIntegration("primary")
	secondary := newMockIntegration("secondary")
	gatewayErr := errors.New("declined")

	primary.On("CreateCharge", ctx, mock.Anything).Return(nil, gatewayErr)

	svc, _ := newTestLedger(nil)
	d := NewDispatcher(&stubSettings{integrations: []domain.Integration{primary, secondary}}, svc, zap.NewNop())

	_, err := d.Charge(ctx, ChargeInput{Amount: 1000, Currency: "USD"})

	assert.ErrorIs(t, err, gatewayErr)
	assert.NotErrorIs(t, err, ErrAllIntegrationsFailed)
	secondary.AssertNotCalled(t, "CreateCharge", mock.Anything, mock.Anything)
}

func TestDispatcherCharge_AllFail(t *testing.T) {
	ctx := context.Background()
	primary := newMockIntegration("primary")
	secondary := newMockIntegration("secondary")
	firstErr := errors.New("first down")
	secondErr := errors.New("second down")

	primary.On("CreateCharge", ctx, mock.Anything).Return(nil, firstErr)
	secondary.On("CreateCharge", ctx, mock.Anything).Return(nil, secondErr)

	svc, m := newTestLedger(nil)
	d := NewDispatcher(&stubSettings{integrations: []domain.Integration{primary, secondary}, fallback: true}, svc, zap.NewNop())

	_, err := d.Charge(ctx, ChargeInput{Amount: 1000, Currency: "USD"})

	assert.ErrorIs(t, err, ErrAllIntegrationsFailed)
	assert.ErrorIs(t, err, firstErr)
	assert.ErrorIs(t, err, secondErr)
	m.charges.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestDispatcherCharge_SourcePinsIntegration(t *testing.T) {
	ctx := context.Background()
	dummy := newMockIntegration("dummy")
	stripe := newMockIntegration("stripe")

	source := &domain.Source{ID: "src-1", Integration: "stripe", Details: map[string]any{"token": "tok_visa"}}
	stripe.On("CreateCharge", ctx, domain.ChargeRequest{Amount: 500, Currency: "USD", Source: source}).
		Return(&domain.ChargeResult{IntegrationID: "ch_stripe", Status: domain.ChargeStatusPending}, nil)

	svc, m := newTestLedger(nil)
	m.sources.On("FindByID", ctx, "src-1").Return(source, nil)
	m.charges.On("Save", ctx, mock.AnythingOfType("*domain.Charge")).Return(nil)
	d := NewDispatcher(&stubSettings{integrations: []domain.Integration{dummy, stripe}, fallback: true}, svc, zap.NewNop())

	charge, err := d.Charge(ctx, ChargeInput{Amount: 500, Currency: "USD", SourceID: stringPtr("src-1")})

	require.NoError(t, err)
	assert.Equal(t, "stripe", charge.Integration)
	require.NotNil(t, charge.SourceID)
	assert.Equal(t, "src-1", *charge.SourceID)
	dummy.AssertNotCalled(t, "CreateCharge", mock.Anything, mock.Anything)

	m.sources.On("FindByID", ctx, "src-2").Return(&domain.Source{ID: "src-2", Integration: "paypal"}, nil)
	_, err = d.Charge(ctx, ChargeInput{Amount: 500, Currency: "USD", SourceID: stringPtr("src-2")})
	assert.ErrorIs(t, err, ErrIntegrationUnavailable)
}

func TestDispatcherRefund_RoutesToOwningIntegration(t *testing.T) {
	ctx := context.Background()
	dummy := newMockIntegration("dummy")
	other := newMockIntegration("other")
	charge := succeededCharge()

	dummy.On("CreateRefund", ctx, charge, int64(400)).Return(&domain.RefundResult{IntegrationID: "re_1"}, nil)

	svc, m := newTestLedger(nil)
	m.refunds.On("Create", ctx, "charge-1", mock.Anything).Return(charge, nil, nil)
	d := NewDispatcher(&stubSettings{integrations: []domain.Integration{other, dummy}, fallback: true}, svc, zap.NewNop())

	refund, err := d.Refund(ctx, RefundInput{ChargeID: "charge-1", Amount: 400, Currency: "USD"})

	require.NoError(t, err)
	assert.Equal(t, int64(400), refund.Amount)
	dummy.AssertExpectations(t)
	other.AssertNotCalled(t, "CreateRefund", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatcherRefund_NeverFallsBack(t *testing.T) {
	ctx := context.Background()
	dummy := newMockIntegration("dummy")
	other := newMockIntegration("other")
	charge := succeededCharge()
	gatewayErr := errors.New("refund rejected")

	dummy.On("CreateRefund", ctx, charge, int64(400)).Return(nil, gatewayErr)

	var reported []string
	settings := &stubSettings{
		integrations: []domain.Integration{dummy, other},
		fallback:     true,
		handler: func(ctx context.Context, name string, err error) {
			reported = append(reported, name)
		},
	}

	svc, m := newTestLedger(nil)
	m.refunds.On("Create", ctx, "charge-1", mock.Anything).Return(charge, nil, nil)
	d := NewDispatcher(settings, svc, zap.NewNop())

	_, err := d.Refund(ctx, RefundInput{ChargeID: "charge-1", Amount: 400, Currency: "USD"})

	assert.ErrorIs(t, err, gatewayErr)
	assert.Equal(t, []string{"dummy"}, reported)
	other.AssertNotCalled(t, "CreateRefund", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatcherRefund_IntegrationNoLongerConfigured(t *testing.T) {
	ctx := context.Background()
	svc, m := newTestLedger(nil)
	m.refunds.On("Create", ctx, "charge-1", mock.Anything).Return(succeededCharge(), nil, nil)
	d := NewDispatcher(&stubSettings{integrations: []domain.Integration{newMockIntegration("stripe")}}, svc, zap.NewNop())

	_, err := d.Refund(ctx, RefundInput{ChargeID: "charge-1", Amount: 100, Currency: "USD"})

	assert.ErrorIs(t, err, ErrIntegrationUnavailable)
}

func TestDispatcher_SettingsErrorPropagates(t *testing.T) {
	loadErr := errors.New("integration load failed")
	svc, _ := newTestLedger(nil)
	d := NewDispatcher(&stubSettings{err: loadErr}, svc, zap.NewNop())

	_, err := d.Charge(context.Background(), ChargeInput{Amount: 100, Currency: "USD"})
	assert.ErrorIs(t, err, loadErr)

	_, err = d.Refund(context.Background(), RefundInput{ChargeID: "charge-1", Amount: 100, Currency: "USD"})
	assert.ErrorIs(t, err, loadErr)
}

func TestDispatcherVerifyCallback(t *testing.T) {
	payload := []byte(`{"integration_id":"ch_1","status":"succeeded"}`)
	header := map[string][]string{"X-Signature": {"sig"}}
	verifyErr := errors.New("bad signature")

	tests := []struct {
		name        string
		integration string
		verifyErr   error
		wantErr     error
	}{
		{name: "accepted", integration: "signed"},
		{name: "rejected", integration: "signed", verifyErr: verifyErr, wantErr: ErrCallbackRejected},
		{name: "integration without verifier", integration: "plain"},
		{name: "not configured", integration: "missing", wantErr: ErrIntegrationUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			ctx := context.Background()
			signed := &MockVerifyingIntegration{MockIntegration: newMockIntegration("signed")}
			signed.On("VerifyCallback", ctx, payload, header).Return(tt.verifyErr).Maybe()
			plain := newMockIntegration("plain")

			svc, _ := newTestLedger(nil)
			d := NewDispatcher(&stubSettings{integrations: []domain.Integration{signed, plain}}, svc, zap.NewNop())

			// Act
			err := d.VerifyCallback(ctx, tt.integration, payload, header)

			// Assert
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.verifyErr != nil {
				assert.ErrorIs(t, err, tt.verifyErr)
			}
		})
	}
}

func TestDispatcherVerifyCallback_SettingsErrorPropagates(t *testing.T) {
	loadErr := errors.New("bad settings")
	svc, _ := newTestLedger(nil)
	d := NewDispatcher(&stubSettings{err: loadErr}, svc, zap.NewNop())

	err := d.VerifyCallback(context.Background(), "signed", nil, nil)

	assert.ErrorIs(t, err, loadErr)
}
