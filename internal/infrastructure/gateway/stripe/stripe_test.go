package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/restpay/payments/internal/domain"
	"github.com/restpay/payments/internal/integration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripego "github.com/stripe/stripe-go/v74"
	"go.uber.org/zap"
)

const testAPIURL = "https://api.stripe.test"

func newTestIntegration(t *testing.T) *Integration {
	t.Helper()

	httpClient := &http.Client{}
	gock.InterceptClient(httpClient)
	t.Cleanup(func() {
		gock.Off()
		gock.RestoreClient(httpClient)
	})

	backend := stripego.GetBackendWithConfig(stripego.APIBackend, &stripego.BackendConfig{
		HTTPClient:        httpClient,
		URL:               stripego.String(testAPIURL),
		MaxNetworkRetries: stripego.Int64(0),
		LeveledLogger:     &stripego.LeveledLogger{Level: stripego.LevelNull},
	})

	s, err := New("sk_test_123", &stripego.Backends{API: backend, Connect: backend, Uploads: backend}, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New("", nil, zap.NewNop())
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	factory, err := integration.Default.Lookup(Name)
	require.NoError(t, err)
	_, err = factory(integration.Options{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestCreateCharge_Succeeded(t *testing.T) {
	s := newTestIntegration(t)

	gock.New(testAPIURL).
		Post("/v1/charges").
		MatchHeader("Authorization", "Bearer sk_test_123").
		BodyString("amount=1000").
		Reply(200).
		JSON(map[string]any{
			"id":       "ch_123",
			"object":   "charge",
			"amount":   1000,
			"currency": "usd",
			"status":   "succeeded",
		})

	source := domain.NewSource(Name, map[string]any{"token": "tok_visa"})
	result, err := s.CreateCharge(context.Background(), domain.ChargeRequest{Amount: 1000, Currency: "USD", Source: source})

	require.NoError(t, err)
	assert.Equal(t, "ch_123", result.IntegrationID)
	assert.Equal(t, domain.ChargeStatusSucceeded, result.Status)
	assert.True(t, gock.IsDone())
}

func TestCreateCharge_PendingStatus(t *testing.T) {
	s := newTestIntegration(t)

	gock.New(testAPIURL).
		Post("/v1/charges").
		Reply(200).
		JSON(map[string]any{"id": "ch_456", "object": "charge", "status": "pending"})

	source := domain.NewSource(Name, map[string]any{"token": "tok_ach"})
	result, err := s.CreateCharge(context.Background(), domain.ChargeRequest{Amount: 500, Currency: "USD", Source: source})

	require.NoError(t, err)
	assert.Equal(t, domain.ChargeStatusPending, result.Status)
}

func TestCreateCharge_Declined(t *testing.T) {
	s := newTestIntegration(t)

	gock.New(testAPIURL).
		Post("/v1/charges").
		Reply(402).
		JSON(map[string]any{
			"error": map[string]any{
				"type":    "card_error",
				"code":    "card_declined",
				"message": "Your card was declined.",
			},
		})

	source := domain.NewSource(Name, map[string]any{"token": "tok_chargeDeclined"})
	_, err := s.CreateCharge(context.Background(), domain.ChargeRequest{Amount: 1000, Currency: "USD", Source: source})

	require.Error(t, err)
	var stripeErr *stripego.Error
	require.True(t, errors.As(err, &stripeErr))
	assert.Equal(t, stripego.ErrorCodeCardDeclined, stripeErr.Code)
}

func TestCreateCharge_MissingToken(t *testing.T) {
	s := newTestIntegration(t)

	_, err := s.CreateCharge(context.Background(), domain.ChargeRequest{Amount: 1000, Currency: "USD"})

	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestCreateRefund(t *testing.T) {
	s := newTestIntegration(t)

	gock.New(testAPIURL).
		Post("/v1/refunds").
		BodyString("charge=ch_123").
		Reply(200).
		JSON(map[string]any{"id": "re_789", "object": "refund", "amount": 400, "status": "succeeded"})

	charge := &domain.Charge{ID: "c1", IntegrationID: "ch_123", Amount: 1000, Currency: "USD", Status: domain.ChargeStatusSucceeded}
	result, err := s.CreateRefund(context.Background(), charge, 400)

	require.NoError(t, err)
	assert.Equal(t, "re_789", result.IntegrationID)
	assert.True(t, gock.IsDone())
}

func signCallback(secret string, payload []byte, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyCallback(t *testing.T) {
	const secret = "whsec_test"
	payload := []byte(`{"integration_id":"ch_123","status":"succeeded"}`)

	tests := []struct {
		name    string
		secret  string
		header  http.Header
		valid   bool
		wantErr error
	}{
		{
			name:   "valid signature",
			secret: secret,
			header: http.Header{"Stripe-Signature": {signCallback(secret, payload, time.Now())}},
			valid:  true,
		},
		{
			name:   "signed with another secret",
			secret: secret,
			header: http.Header{"Stripe-Signature": {signCallback("whsec_other", payload, time.Now())}},
		},
		{
			name:   "expired signature",
			secret: secret,
			header: http.Header{"Stripe-Signature": {signCallback(secret, payload, time.Now().Add(-time.Hour))}},
		},
		{
			name:   "missing header",
			secret: secret,
			header: http.Header{},
		},
		{
			name:    "no webhook secret configured",
			header:  http.Header{"Stripe-Signature": {signCallback(secret, payload, time.Now())}},
			wantErr: ErrMissingWebhookSecret,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			s := newTestIntegration(t)
			s.webhookSecret = tt.secret

			// Act
			err := s.VerifyCallback(context.Background(), payload, tt.header)

			// Assert
			switch {
			case tt.valid:
				assert.NoError(t, err)
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			default:
				assert.Error(t, err)
			}
		})
	}
}

func TestVerifyCallback_TamperedPayload(t *testing.T) {
	s := newTestIntegration(t)
	s.webhookSecret = "whsec_test"
	signed := signCallback("whsec_test", []byte(`{"status":"failed"}`), time.Now())

	err := s.VerifyCallback(context.Background(), []byte(`{"status":"succeeded"}`),
		http.Header{"Stripe-Signature": {signed}})

	assert.Error(t, err)
}

func TestFactory_CarriesWebhookSecret(t *testing.T) {
	factory, err := integration.Default.Lookup(Name)
	require.NoError(t, err)

	built, err := factory(integration.Options{StripeAPIKey: "sk_test", StripeWebhookSecret: "whsec_test"})
	require.NoError(t, err)

	s, ok := built.(*Integration)
	require.True(t, ok)
	assert.Equal(t, "whsec_test", s.webhookSecret)

	var verifier domain.CallbackVerifier = s
	assert.NotNil(t, verifier)
}
