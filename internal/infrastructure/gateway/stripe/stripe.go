package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/restpay/payments/internal/domain"
	"github.com/restpay/payments/internal/integration"
	stripego "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
	"go.uber.org/zap"
)

const Name = "stripe"

var (
	ErrMissingAPIKey = errors.New("stripe: STRIPE_API_KEY is not set")
	ErrMissingToken  = errors.New("stripe: source has no token")

	ErrMissingWebhookSecret = errors.New("stripe: STRIPE_WEBHOOK_SECRET is not set")
)

const signatureHeader = "Stripe-Signature"

func init() {
	integration.Register(Name, func(opts integration.Options) (domain.Integration, error) {
		s, err := New(opts.StripeAPIKey, nil, opts.LoggerOrNop())
		if err != nil {
			return nil, err
		}
		s.webhookSecret = opts.StripeWebhookSecret
		return s, nil
	})
}

type Integration struct {
	api           *client.API
	webhookSecret string
	logger        *zap.Logger
}

// New builds a Stripe integration. A nil backends value talks to the
// public Stripe API.
func New(apiKey string, backends *stripego.Backends, logger *zap.Logger) (*Integration, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	return &Integration{
		api:    client.New(apiKey, backends),
		logger: logger,
	}, nil
}

func (s *Integration) Name() string { return Name }

func (s *Integration) CreateCharge(ctx context.Context, req domain.ChargeRequest) (*domain.ChargeResult, error) {
	token := req.Source.Token()
	if token == "" {
		return nil, ErrMissingToken
	}

	params := &stripego.ChargeParams{
		Amount:   stripego.Int64(req.Amount),
		Currency: stripego.String(strings.ToLower(req.Currency)),
	}
	params.Context = ctx
	if err := params.SetSource(token); err != nil {
		return nil, fmt.Errorf("stripe: invalid source: %w", err)
	}

	ch, err := s.api.Charges.New(params)
	if err != nil {
		s.logger.Warn("stripe charge failed",
			zap.Int64("amount", req.Amount),
			zap.String("currency", req.Currency),
			zap.Error(err),
		)
		return nil, fmt.Errorf("stripe: create charge: %w", err)
	}

	s.logger.Debug("stripe charge created",
		zap.String("stripe_charge_id", ch.ID),
		zap.String("status", string(ch.Status)),
	)

	return &domain.ChargeResult{
		IntegrationID: ch.ID,
		Status:        chargeStatus(ch.Status),
	}, nil
}

func (s *Integration) CreateRefund(ctx context.Context, charge *domain.Charge, amount int64) (*domain.RefundResult, error) {
	params := &stripego.RefundParams{
		Charge: stripego.String(charge.IntegrationID),
		Amount: stripego.Int64(amount),
	}
	params.Context = ctx

	re, err := s.api.Refunds.New(params)
	if err != nil {
		s.logger.Warn("stripe refund failed",
			zap.String("charge_id", charge.ID),
			zap.Int64("amount", amount),
			zap.Error(err),
		)
		return nil, fmt.Errorf("stripe: create refund: %w", err)
	}

	return &domain.RefundResult{IntegrationID: re.ID}, nil
}

// VerifyCallback checks the Stripe-Signature header against the raw body.
// Without a webhook secret every callback is rejected.
func (s *Integration) VerifyCallback(_ context.Context, payload []byte, header map[string][]string) error {
	if s.webhookSecret == "" {
		return ErrMissingWebhookSecret
	}

	var signature string
	if values := header[signatureHeader]; len(values) > 0 {
		signature = values[0]
	}

	if err := webhook.ValidatePayload(payload, signature, s.webhookSecret); err != nil {
		s.logger.Warn("stripe callback signature rejected", zap.Error(err))
		return fmt.Errorf("stripe: verify callback: %w", err)
	}
	return nil
}

func chargeStatus(status stripego.ChargeStatus) domain.ChargeStatus {
	switch status {
	case stripego.ChargeStatusSucceeded:
		return domain.ChargeStatusSucceeded
	case stripego.ChargeStatusFailed:
		return domain.ChargeStatusFailed
	default:
		return domain.ChargeStatusPending
	}
}
