package settings

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/restpay/payments/internal/domain"
	"github.com/restpay/payments/internal/integration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIntegration struct {
	name string
	key  string
}

func (f *fakeIntegration) Name() string { return f.name }

func (f *fakeIntegration) CreateCharge(ctx context.Context, req domain.ChargeRequest) (*domain.ChargeResult, error) {
	return &domain.ChargeResult{IntegrationID: "fake", Status: domain.ChargeStatusSucceeded}, nil
}

func (f *fakeIntegration) CreateRefund(ctx context.Context, charge *domain.Charge, amount int64) (*domain.RefundResult, error) {
	return &domain.RefundResult{IntegrationID: "fake"}, nil
}

func newRegistry(calls *int32) *integration.Registry {
	r := integration.NewRegistry()
	r.Register("pkg.Adapter", func(opts integration.Options) (domain.Integration, error) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		return &fakeIntegration{name: "pkg.Adapter", key: opts.StripeAPIKey}, nil
	})
	r.Register("other", func(opts integration.Options) (domain.Integration, error) {
		return &fakeIntegration{name: "other"}, nil
	})
	r.Register("broken", func(opts integration.Options) (domain.Integration, error) {
		return nil, errors.New("api key missing")
	})
	return r
}

func TestGet_UnknownSetting(t *testing.T) {
	s := New(map[string]any{"UnknownName": 1}, newRegistry(nil))

	for _, name := range []string{"UnknownName", "default_integration_classes", "", "STRIPE_KEY"} {
		value, err := s.Get(name)
		assert.ErrorIs(t, err, ErrUnknownSetting, name)
		assert.Nil(t, value)
	}
}

func TestGet_Defaults(t *testing.T) {
	s := New(nil, newRegistry(nil))

	value, err := s.Get(DefaultIntegrationClasses)
	require.NoError(t, err)
	assert.Equal(t, []domain.Integration{}, value)

	value, err = s.Get(StripeAPIKey)
	require.NoError(t, err)
	assert.Nil(t, value)

	assert.True(t, s.AutoFallback())
	assert.False(t, s.RegisterModelAdmins())
	assert.Equal(t, "", s.PayPalAPIKey())

	handler, err := s.UnexpectedErrorsHandler()
	require.NoError(t, err)
	assert.Nil(t, handler)
}

func TestGet_UserValuesOverrideDefaults(t *testing.T) {
	s := New(map[string]any{
		IntegrationsAutoFallback: "false",
		RegisterModelAdmins:      true,
		StripeAPIKey:             "sk_test",
		StripeWebhookSecret:      "whsec_test",
	}, newRegistry(nil))

	assert.False(t, s.AutoFallback())
	assert.True(t, s.RegisterModelAdmins())
	assert.Equal(t, "sk_test", s.StripeAPIKey())
	assert.Equal(t, "whsec_test", s.StripeWebhookSecret())
	assert.Empty(t, s.PayPalAPIKey())
}

func TestGet_ResolvesAndCachesIntegrations(t *testing.T) {
	var calls int32
	s := New(map[string]any{
		DefaultIntegrationClasses: []string{"pkg.Adapter"},
		StripeAPIKey:              "sk_live",
	}, newRegistry(&calls))

	first, err := s.Get(DefaultIntegrationClasses)
	require.NoError(t, err)
	second, err := s.Get(DefaultIntegrationClasses)
	require.NoError(t, err)

	firstList := first.([]domain.Integration)
	secondList := second.([]domain.Integration)
	require.Len(t, firstList, 1)
	assert.Equal(t, "pkg.Adapter", firstList[0].Name())
	assert.Same(t, firstList[0], secondList[0])
	assert.Equal(t, "sk_live", firstList[0].(*fakeIntegration).key)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGet_PreservesOrderAndCardinality(t *testing.T) {
	s := New(map[string]any{
		DefaultIntegrationClasses: []any{"other", "pkg.Adapter", "other"},
	}, newRegistry(nil))

	integrations, err := s.Integrations()

	require.NoError(t, err)
	require.Len(t, integrations, 3)
	assert.Equal(t, "other", integrations[0].Name())
	assert.Equal(t, "pkg.Adapter", integrations[1].Name())
	assert.Equal(t, "other", integrations[2].Name())
}

func TestGet_SingleIdentifierAndNil(t *testing.T) {
	s := New(map[string]any{DefaultIntegrationClasses: "other"}, newRegistry(nil))

	value, err := s.Get(DefaultIntegrationClasses)
	require.NoError(t, err)
	assert.Equal(t, "other", value.(domain.Integration).Name())

	integrations, err := s.Integrations()
	require.NoError(t, err)
	assert.Len(t, integrations, 1)

	s = New(map[string]any{DefaultIntegrationClasses: nil}, newRegistry(nil))
	value, err = s.Get(DefaultIntegrationClasses)
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestGet_IntegrationLoadError(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		path    string
		wantErr error
	}{
		{"missing symbol", []string{"pkg.Missing"}, "pkg.Missing", integration.ErrNotRegistered},
		{"factory failure", []string{"other", "broken"}, "broken", nil},
		{"non string element", []any{42}, "42", nil},
		{"unsupported type", 3.14, "3.14", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(map[string]any{DefaultIntegrationClasses: tt.value}, newRegistry(nil))

			value, err := s.Get(DefaultIntegrationClasses)

			assert.Nil(t, value)
			var loadErr *IntegrationLoadError
			require.ErrorAs(t, err, &loadErr)
			assert.Equal(t, tt.path, loadErr.Path)
			assert.Equal(t, DefaultIntegrationClasses, loadErr.Setting)
			assert.Contains(t, err.Error(), tt.path)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestGet_FailuresAreNotCached(t *testing.T) {
	r := newRegistry(nil)
	s := New(map[string]any{DefaultIntegrationClasses: []string{"late"}}, r)

	_, err := s.Get(DefaultIntegrationClasses)
	require.Error(t, err)

	r.Register("late", func(opts integration.Options) (domain.Integration, error) {
		return &fakeIntegration{name: "late"}, nil
	})

	integrations, err := s.Integrations()
	require.NoError(t, err)
	assert.Equal(t, "late", integrations[0].Name())
}

func TestGet_ConcurrentFirstAccess(t *testing.T) {
	s := New(map[string]any{DefaultIntegrationClasses: []string{"pkg.Adapter", "other"}}, newRegistry(nil))

	const workers = 32
	results := make([][]domain.Integration, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			integrations, err := s.Integrations()
			assert.NoError(t, err)
			results[i] = integrations
		}(i)
	}
	wg.Wait()

	final, err := s.Integrations()
	require.NoError(t, err)
	require.Len(t, final, 2)
	for _, got := range results {
		require.Len(t, got, 2)
		assert.Equal(t, "pkg.Adapter", got[0].Name())
		assert.Equal(t, "other", got[1].Name())
	}
	again, err := s.Integrations()
	require.NoError(t, err)
	assert.Same(t, final[0], again[0])
}

func TestUnexpectedErrorsHandler(t *testing.T) {
	r := newRegistry(nil)
	var got error
	r.RegisterErrorHandler("capture", func(opts integration.Options) integration.ErrorHandler {
		return func(ctx context.Context, name string, err error) { got = err }
	})

	s := New(map[string]any{UnexpectedErrorsHandler: "capture"}, r)
	handler, err := s.UnexpectedErrorsHandler()
	require.NoError(t, err)
	handler(context.Background(), "stripe", errors.New("boom"))
	assert.EqualError(t, got, "boom")

	s = New(map[string]any{UnexpectedErrorsHandler: "nope"}, r)
	_, err = s.UnexpectedErrorsHandler()
	assert.ErrorIs(t, err, integration.ErrNotRegistered)
}

func TestCheck(t *testing.T) {
	s := New(map[string]any{
		DefaultIntegrationClasses: []string{"pkg.Adapter"},
		UnexpectedErrorsHandler:   "log",
	}, newRegistry(nil))
	assert.NoError(t, s.Check())

	s = New(map[string]any{
		DefaultIntegrationClasses: []string{"pkg.Missing"},
		IntegrationsAutoFallback:  "sometimes",
		UnexpectedErrorsHandler:   "nope",
	}, newRegistry(nil))

	err := s.Check()
	require.Error(t, err)
	var loadErr *IntegrationLoadError
	assert.ErrorAs(t, err, &loadErr)
	assert.Contains(t, err.Error(), IntegrationsAutoFallback)
	assert.ErrorIs(t, err, integration.ErrNotRegistered)
	assert.True(t, s.AutoFallback(), "bad values fall back to the default")
}

func TestNamesAndSecrets(t *testing.T) {
	assert.Equal(t, []string{
		DefaultIntegrationClasses,
		IntegrationsAutoFallback,
		PayPalAPIKey,
		RegisterModelAdmins,
		StripeAPIKey,
		StripeWebhookSecret,
		UnexpectedErrorsHandler,
	}, Names())
	assert.True(t, IsSecret(StripeAPIKey))
	assert.True(t, IsSecret(StripeWebhookSecret))
	assert.False(t, IsSecret(DefaultIntegrationClasses))
}
