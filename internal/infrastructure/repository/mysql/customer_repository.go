package sqlrepository

import (
	"context"
	"errors"
	"fmt"

	"github.com/restpay/payments/internal/domain"
	"github.com/restpay/payments/internal/infrastructure/persistence"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type GORMCustomerRepository struct {
	db      *gorm.DB
	charges *GORMChargeRepository
	logger  *zap.Logger
}

func NewCustomerRepository(db *gorm.DB, charges *GORMChargeRepository, logger *zap.Logger) *GORMCustomerRepository {
	return &GORMCustomerRepository{
		db:      db,
		charges: charges,
		logger:  logger,
	}
}

func (r *GORMCustomerRepository) FindByUserID(ctx context.Context, userID string) (*domain.Customer, error) {
	var model persistence.CustomerModel
	result := r.db.WithContext(ctx).First(&model, "user_id = ?", userID)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCustomerNotFound
		}
		r.logger.Error("failed to query customer", zap.Error(result.Error))
		return nil, fmt.Errorf("database error: %w", result.Error)
	}

	return model.ToDomain(), nil
}

func (r *GORMCustomerRepository) GetOrCreate(ctx context.Context, userID string) (*domain.Customer, error) {
	customer, err := domain.NewCustomer(userID)
	if err != nil {
		return nil, err
	}

	model := persistence.CustomerModelFromDomain(customer)
	result := r.db.WithContext(ctx).
		Where(persistence.CustomerModel{UserID: userID}).
		FirstOrCreate(model)

	if result.Error != nil {
		// A concurrent request created the row between our read and insert.
		if isDuplicateError(result.Error) {
			return r.FindByUserID(ctx, userID)
		}
		r.logger.Error("failed to get or create customer", zap.Error(result.Error))
		return nil, fmt.Errorf("database error: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		r.logger.Info("customer created", zap.String("user_id", userID))
	}

	return model.ToDomain(), nil
}

func (r *GORMCustomerRepository) Delete(ctx context.Context, userID string) error {
	var chargeIDs []string

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&persistence.ChargeModel{}).
			Where("customer_id = ?", userID).
			Pluck("id", &chargeIDs).Error; err != nil {
			return fmt.Errorf("database error: %w", err)
		}

		if len(chargeIDs) > 0 {
			if err := tx.Where("charge_id IN ?", chargeIDs).Delete(&persistence.RefundModel{}).Error; err != nil {
				return fmt.Errorf("failed to delete refunds: %w", err)
			}
			if err := tx.Where("customer_id = ?", userID).Delete(&persistence.ChargeModel{}).Error; err != nil {
				return fmt.Errorf("failed to delete charges: %w", err)
			}
		}

		result := tx.Where("user_id = ?", userID).Delete(&persistence.CustomerModel{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete customer: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return domain.ErrCustomerNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, id := range chargeIDs {
		r.charges.invalidate(ctx, id)
	}

	r.logger.Info("customer deleted",
		zap.String("user_id", userID),
		zap.Int("charges", len(chargeIDs)),
	)

	return nil
}
