package messaging

import (
	"context"
	"errors"

	"github.com/restpay/payments/internal/domain"
)

// MultiPublisher fans an event out to every publisher. All publishers are
// tried; their errors are joined.
type MultiPublisher []domain.EventPublisher

func (m MultiPublisher) Publish(ctx context.Context, event domain.DomainEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
