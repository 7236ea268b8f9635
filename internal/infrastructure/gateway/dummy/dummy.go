// Package dummy is an in-process gateway for development and tests. It
// never leaves the process; the outcome of a charge is picked by the
// source's "outcome" detail.
package dummy

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/restpay/payments/internal/domain"
	"github.com/restpay/payments/internal/integration"
	"go.uber.org/zap"
)

const Name = "dummy"

// Source outcomes understood by CreateCharge.
const (
	OutcomeSucceeded = "succeeded"
	OutcomePending   = "pending"
	OutcomeFailed    = "failed"
	OutcomeDeclined  = "declined"
)

var ErrDeclined = errors.New("dummy: card declined")

func init() {
	integration.Register(Name, func(opts integration.Options) (domain.Integration, error) {
		return New(opts.LoggerOrNop())
	})
}

type Integration struct {
	node   *snowflake.Node
	logger *zap.Logger
}

func New(logger *zap.Logger) (*Integration, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("dummy: failed to create id node: %w", err)
	}
	return &Integration{node: node, logger: logger}, nil
}

func (d *Integration) Name() string { return Name }

func (d *Integration) CreateCharge(ctx context.Context, req domain.ChargeRequest) (*domain.ChargeResult, error) {
	outcome := OutcomeSucceeded
	if req.Source != nil {
		if v, ok := req.Source.Details["outcome"].(string); ok && v != "" {
			outcome = v
		}
	}

	d.logger.Debug("dummy charge",
		zap.Int64("amount", req.Amount),
		zap.String("currency", req.Currency),
		zap.String("outcome", outcome),
	)

	var status domain.ChargeStatus
	switch outcome {
	case OutcomeSucceeded:
		status = domain.ChargeStatusSucceeded
	case OutcomePending:
		status = domain.ChargeStatusPending
	case OutcomeFailed:
		status = domain.ChargeStatusFailed
	case OutcomeDeclined:
		return nil, ErrDeclined
	default:
		return nil, fmt.Errorf("dummy: unknown outcome %q", outcome)
	}

	return &domain.ChargeResult{
		IntegrationID: "ch_" + d.node.Generate().String(),
		Status:        status,
	}, nil
}

func (d *Integration) CreateRefund(ctx context.Context, charge *domain.Charge, amount int64) (*domain.RefundResult, error) {
	d.logger.Debug("dummy refund",
		zap.String("charge_id", charge.ID),
		zap.Int64("amount", amount),
	)
	return &domain.RefundResult{IntegrationID: "re_" + d.node.Generate().String()}, nil
}
