package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/restpay/payments/internal/domain"
	"github.com/restpay/payments/internal/integration"
	"github.com/restpay/payments/internal/metrics"
	"go.uber.org/zap"
)

var (
	ErrNoIntegrations         = errors.New("no integrations configured")
	ErrAllIntegrationsFailed  = errors.New("all integrations failed")
	ErrIntegrationUnavailable = errors.New("integration not configured")
	// ErrGatewayFailed wraps every error returned by a gateway call.
	ErrGatewayFailed = errors.New("gateway request failed")
	// ErrCallbackRejected is returned when an integration refuses to
	// authenticate a provider callback.
	ErrCallbackRejected = errors.New("callback rejected")
)

// IntegrationSettings is what the dispatcher reads from the resolved
// payment settings.
type IntegrationSettings interface {
	Integrations() ([]domain.Integration, error)
	AutoFallback() bool
	UnexpectedErrorsHandler() (integration.ErrorHandler, error)
}

// Dispatcher sends charges and refunds to the configured gateways and
// records the outcome in the ledger.
type Dispatcher struct {
	settings IntegrationSettings
	ledger   *LedgerService
	logger   *zap.Logger
}

func NewDispatcher(settings IntegrationSettings, ledger *LedgerService, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		settings: settings,
		ledger:   ledger,
		logger:   logger,
	}
}

type ChargeInput struct {
	Amount     int64
	Currency   string
	SourceID   *string
	CustomerID *string
}

type RefundInput struct {
	ChargeID string
	Amount   int64
	Currency string
}

// Charge tries the configured integrations in order. With auto fallback a
// gateway failure moves on to the next one; without it the first failure
// is returned. A source pins the charge to the integration that issued it.
func (d *Dispatcher) Charge(ctx context.Context, in ChargeInput) (*domain.Charge, error) {
	if in.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	currency, err := domain.NormalizeCurrency(in.Currency)
	if err != nil {
		return nil, err
	}

	candidates, err := d.settings.Integrations()
	if err != nil {
		return nil, err
	}

	// Anything the ledger could still reject must be settled before a
	// gateway takes money.
	if in.CustomerID != nil {
		if _, err := d.ledger.EnsureCustomer(ctx, *in.CustomerID); err != nil {
			return nil, err
		}
	}

	var source *domain.Source
	if in.SourceID != nil {
		source, err = d.ledger.GetSource(ctx, *in.SourceID)
		if err != nil {
			return nil, err
		}
		candidates = filterByName(candidates, source.Integration)
		if len(candidates) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrIntegrationUnavailable, source.Integration)
		}
	}

	if len(candidates) == 0 {
		return nil, ErrNoIntegrations
	}

	fallback := d.settings.AutoFallback()
	req := domain.ChargeRequest{Amount: in.Amount, Currency: currency, Source: source}

	var errs []error
	for _, i := range candidates {
		result, err := i.CreateCharge(ctx, req)
		if err != nil {
			d.reportFailure(ctx, i.Name(), err)
			err = fmt.Errorf("%w: charge via %s: %w", ErrGatewayFailed, i.Name(), err)
			if !fallback {
				return nil, err
			}
			errs = append(errs, err)
			d.logger.Warn("integration failed, falling back",
				zap.String("integration", i.Name()),
				zap.Error(err),
			)
			continue
		}

		return d.ledger.CreateCharge(ctx, CreateChargeInput{
			Amount:        in.Amount,
			Currency:      currency,
			Integration:   i.Name(),
			IntegrationID: result.IntegrationID,
			Status:        result.Status,
			CustomerID:    in.CustomerID,
			SourceID:      in.SourceID,
		})
	}

	return nil, fmt.Errorf("%w: %w", ErrAllIntegrationsFailed, errors.Join(errs...))
}

// Refund always goes to the integration that produced the charge; the
// money lives with that provider, so there is no fallback.
func (d *Dispatcher) Refund(ctx context.Context, in RefundInput) (*domain.Refund, error) {
	integrations, err := d.settings.Integrations()
	if err != nil {
		return nil, err
	}

	return d.ledger.CreateRefund(ctx, CreateRefundInput{
		ChargeID: in.ChargeID,
		Amount:   in.Amount,
		Currency: in.Currency,
		Execute: func(ctx context.Context, charge *domain.Charge, refund *domain.Refund) error {
			matches := filterByName(integrations, charge.Integration)
			if len(matches) == 0 {
				return fmt.Errorf("%w: %s", ErrIntegrationUnavailable, charge.Integration)
			}

			i := matches[0]
			if _, err := i.CreateRefund(ctx, charge, refund.Amount); err != nil {
				d.reportFailure(ctx, i.Name(), err)
				return fmt.Errorf("%w: refund via %s: %w", ErrGatewayFailed, i.Name(), err)
			}
			return nil
		},
	})
}

// VerifyCallback authenticates a provider callback with the named
// integration. Integrations that do not implement domain.CallbackVerifier
// accept every callback.
func (d *Dispatcher) VerifyCallback(ctx context.Context, name string, payload []byte, header map[string][]string) error {
	integrations, err := d.settings.Integrations()
	if err != nil {
		return err
	}

	matches := filterByName(integrations, name)
	if len(matches) == 0 {
		return fmt.Errorf("%w: %s", ErrIntegrationUnavailable, name)
	}

	verifier, ok := matches[0].(domain.CallbackVerifier)
	if !ok {
		return nil
	}
	if err := verifier.VerifyCallback(ctx, payload, header); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCallbackRejected, name, err)
	}
	return nil
}

func (d *Dispatcher) reportFailure(ctx context.Context, name string, err error) {
	metrics.GatewayFailure(name)

	handler, herr := d.settings.UnexpectedErrorsHandler()
	if herr != nil {
		d.logger.Error("unexpected errors handler unavailable", zap.Error(herr))
		return
	}
	if handler != nil {
		handler(ctx, name, err)
	}
}

func filterByName(integrations []domain.Integration, name string) []domain.Integration {
	var matched []domain.Integration
	for _, i := range integrations {
		if i.Name() == name {
			matched = append(matched, i)
		}
	}
	return matched
}
