package sqlrepository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/restpay/payments/internal/domain"
	"github.com/restpay/payments/internal/infrastructure/persistence"
	redisrepository "github.com/restpay/payments/internal/infrastructure/repository/redis"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const ChargeCacheTTL = 5 * time.Minute

type GORMChargeRepository struct {
	db     *gorm.DB
	cache  *redisrepository.RedisChargeRepository
	index  *redisrepository.RedisIntegrationIndex
	logger *zap.Logger
}

func NewChargeRepository(db *gorm.DB, redisClient *redis.Client, logger *zap.Logger) *GORMChargeRepository {
	r := &GORMChargeRepository{
		db:     db,
		logger: logger,
	}
	if redisClient != nil {
		r.cache = redisrepository.NewRedisChargeRepository(redisClient, ChargeCacheTTL)
		r.index = redisrepository.NewRedisIntegrationIndex(redisClient)
	}
	return r
}

func (r *GORMChargeRepository) Save(ctx context.Context, charge *domain.Charge) error {
	if charge.ID == "" {
		charge.ID = uuid.New().String()
	}

	model := persistence.ChargeModelFromDomain(charge)

	result := r.db.WithContext(ctx).Create(model)
	if result.Error != nil {
		r.logger.Error("failed to save charge", zap.Error(result.Error))
		return fmt.Errorf("database error: %w", result.Error)
	}
	charge.CreatedAt = model.CreatedAt
	charge.UpdatedAt = model.UpdatedAt

	if r.index != nil && charge.IntegrationID != "" {
		if _, err := r.index.Put(ctx, charge.Integration, charge.IntegrationID, charge.ID); err != nil {
			r.logger.Warn("failed to index charge reference",
				zap.Error(err),
				zap.String("charge_id", charge.ID))
		}
	}

	r.logger.Debug("charge saved to MySQL",
		zap.String("charge_id", charge.ID),
		zap.String("status", string(charge.Status)),
	)

	return nil
}

func (r *GORMChargeRepository) FindByID(ctx context.Context, id string) (*domain.Charge, error) {
	if r.cache != nil {
		cached, err := r.cache.FindByID(ctx, id)
		if err == nil {
			r.logger.Debug("charge cache hit", zap.String("charge_id", id))
			return cached, nil
		}
		if !errors.Is(err, redisrepository.ErrCacheMiss) {
			r.logger.Warn("charge cache read failed", zap.Error(err))
		}
	}

	charge, err := r.findInDB(ctx, id)
	if err != nil {
		return nil, err
	}

	r.fill(ctx, charge)
	return charge, nil
}

func (r *GORMChargeRepository) FindByIntegrationID(ctx context.Context, integration, integrationID string) (*domain.Charge, error) {
	if r.index != nil {
		chargeID, err := r.index.Lookup(ctx, integration, integrationID)
		if err == nil {
			charge, err := r.FindByID(ctx, chargeID)
			if err == nil {
				return charge, nil
			}
			if !errors.Is(err, domain.ErrChargeNotFound) {
				return nil, err
			}
			// Stale reference left behind by a deleted charge.
			_ = r.index.Delete(ctx, integration, integrationID)
		}
	}

	var model persistence.ChargeModel
	result := r.db.WithContext(ctx).
		Where("integration = ? AND integration_id = ?", integration, integrationID).
		Order("created_at ASC").
		First(&model)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrChargeNotFound
		}
		return nil, fmt.Errorf("database error: %w", result.Error)
	}

	charge := model.ToDomain()
	if r.index != nil {
		if _, err := r.index.Put(ctx, integration, integrationID, charge.ID); err != nil {
			r.logger.Warn("failed to index charge reference", zap.Error(err))
		}
	}
	return charge, nil
}

// UpdateStatus is a compare-and-set on the pending status, so two callers
// racing to complete the same charge cannot both win.
func (r *GORMChargeRepository) UpdateStatus(ctx context.Context, id string, status domain.ChargeStatus) (*domain.Charge, error) {
	// Invalidate on both sides of the write: a read landing in between
	// refills the cache with the old row.
	r.invalidate(ctx, id)

	result := r.db.WithContext(ctx).
		Model(&persistence.ChargeModel{}).
		Where("id = ? AND status = ?", id, string(domain.ChargeStatusPending)).
		Updates(map[string]interface{}{
			"status":     string(status),
			"updated_at": time.Now(),
		})

	r.invalidate(ctx, id)

	if result.Error != nil {
		r.logger.Error("failed to update charge status", zap.Error(result.Error))
		return nil, fmt.Errorf("database error: %w", result.Error)
	}

	charge, err := r.findInDB(ctx, id)
	if err != nil {
		return nil, err
	}

	if result.RowsAffected == 0 {
		r.logger.Debug("charge status unchanged",
			zap.String("charge_id", id),
			zap.String("stored", string(charge.Status)),
			zap.String("requested", string(status)),
		)
		return nil, fmt.Errorf("%w: charge is already %s", domain.ErrInvalidTransition, charge.Status)
	}

	return charge, nil
}

func (r *GORMChargeRepository) FindByCustomerIDWithPagination(ctx context.Context, customerID string, limit, offset int) ([]*domain.Charge, error) {
	var models []persistence.ChargeModel

	result := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Order("id").
		Limit(limit).
		Offset(offset).
		Find(&models)

	if result.Error != nil {
		r.logger.Error("failed to fetch charges by customer ID",
			zap.Error(result.Error),
			zap.String("customer_id", customerID),
		)
		return nil, fmt.Errorf("database error: %w", result.Error)
	}

	charges := make([]*domain.Charge, len(models))
	for i := range models {
		charges[i] = models[i].ToDomain()
	}

	return charges, nil
}

func (r *GORMChargeRepository) CountByCustomerID(ctx context.Context, customerID string) (int64, error) {
	var count int64

	result := r.db.WithContext(ctx).
		Model(&persistence.ChargeModel{}).
		Where("customer_id = ?", customerID).
		Count(&count)

	if result.Error != nil {
		return 0, fmt.Errorf("database error: %w", result.Error)
	}

	return count, nil
}

func (r *GORMChargeRepository) Delete(ctx context.Context, id string) error {
	r.invalidate(ctx, id)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("charge_id = ?", id).Delete(&persistence.RefundModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete refunds: %w", err)
		}

		result := tx.Where("id = ?", id).Delete(&persistence.ChargeModel{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete charge: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return domain.ErrChargeNotFound
		}
		return nil
	})
	r.invalidate(ctx, id)
	if err != nil {
		return err
	}

	r.logger.Info("charge deleted", zap.String("charge_id", id))
	return nil
}

func (r *GORMChargeRepository) findInDB(ctx context.Context, id string) (*domain.Charge, error) {
	var model persistence.ChargeModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrChargeNotFound
		}
		r.logger.Error("failed to query charge", zap.Error(result.Error))
		return nil, fmt.Errorf("database error: %w", result.Error)
	}

	return model.ToDomain(), nil
}

func (r *GORMChargeRepository) fill(ctx context.Context, charge *domain.Charge) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Save(ctx, charge); err != nil {
		r.logger.Warn("failed to cache charge",
			zap.Error(err),
			zap.String("charge_id", charge.ID))
	}
}

func (r *GORMChargeRepository) invalidate(ctx context.Context, id string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, id); err != nil {
		r.logger.Warn("failed to invalidate charge cache",
			zap.Error(err),
			zap.String("charge_id", id))
	}
}
