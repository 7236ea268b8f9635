package domain

import "context"

type CustomerRepository interface {
	FindByUserID(ctx context.Context, userID string) (*Customer, error)
	// GetOrCreate never creates a second customer for the same identity.
	GetOrCreate(ctx context.Context, userID string) (*Customer, error)
	// Delete removes the customer together with its charges and their refunds.
	Delete(ctx context.Context, userID string) error
}

type SourceRepository interface {
	Save(ctx context.Context, source *Source) error
	FindByID(ctx context.Context, id string) (*Source, error)
}

type ChargeRepository interface {
	Save(ctx context.Context, charge *Charge) error
	FindByID(ctx context.Context, id string) (*Charge, error)
	// UpdateStatus applies status only if the stored charge is still
	// pending. It fails with ErrInvalidTransition otherwise.
	UpdateStatus(ctx context.Context, id string, status ChargeStatus) (*Charge, error)
	FindByIntegrationID(ctx context.Context, integration, integrationID string) (*Charge, error)
	FindByCustomerIDWithPagination(ctx context.Context, customerID string, limit, offset int) ([]*Charge, error)
	CountByCustomerID(ctx context.Context, customerID string) (int64, error)
	// Delete removes the charge and its refunds.
	Delete(ctx context.Context, id string) error
}

// RefundIssuer builds a refund from the locked charge and its current
// refunded total (nil when it has none). Returning an error aborts the
// insert.
type RefundIssuer func(ctx context.Context, charge *Charge, totalRefunded *int64) (*Refund, error)

type RefundRepository interface {
	// Create locks the charge, reads its refunded total, calls issue and
	// inserts the result, all in one transaction. Concurrent calls for the
	// same charge are serialized.
	Create(ctx context.Context, chargeID string, issue RefundIssuer) (*Refund, error)
	FindByChargeID(ctx context.Context, chargeID string) ([]*Refund, error)
	// TotalByChargeID returns nil when the charge has no refunds.
	TotalByChargeID(ctx context.Context, chargeID string) (*int64, error)
}
