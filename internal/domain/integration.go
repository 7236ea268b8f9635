package domain

import "context"

// ChargeRequest is what an integration needs to open a charge at its
// provider.
type ChargeRequest struct {
	Amount   int64
	Currency string
	Source   *Source
}

// ChargeResult describes the provider-side charge. Status may be pending
// when the provider settles asynchronously.
type ChargeResult struct {
	IntegrationID string
	Status        ChargeStatus
}

type RefundResult struct {
	IntegrationID string
}

// Integration is the contract every payment gateway adapter satisfies. The
// ledger and the dispatcher only ever see this interface.
type Integration interface {
	// Name is the stable identifier used in configuration and stored on
	// charges to disambiguate integration ids across providers.
	Name() string

	CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)

	CreateRefund(ctx context.Context, charge *Charge, amount int64) (*RefundResult, error)
}

// CallbackVerifier is implemented by integrations whose provider signs its
// status notifications. payload is the raw request body.
type CallbackVerifier interface {
	VerifyCallback(ctx context.Context, payload []byte, header map[string][]string) error
}
