package sqlrepository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/restpay/payments/internal/domain"
	"github.com/restpay/payments/internal/infrastructure/persistence"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GORMRefundRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewRefundRepository(db *gorm.DB, logger *zap.Logger) *GORMRefundRepository {
	return &GORMRefundRepository{
		db:     db,
		logger: logger,
	}
}

// Create holds a row lock on the charge for the whole read-check-insert
// sequence. Any error returned by issue rolls the transaction back.
func (r *GORMRefundRepository) Create(ctx context.Context, chargeID string, issue domain.RefundIssuer) (*domain.Refund, error) {
	var created *domain.Refund

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var chargeModel persistence.ChargeModel
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&chargeModel, "id = ?", chargeID)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return domain.ErrChargeNotFound
			}
			return fmt.Errorf("database error: %w", result.Error)
		}

		total, err := sumRefunds(tx, chargeID)
		if err != nil {
			return err
		}

		refund, err := issue(ctx, chargeModel.ToDomain(), total)
		if err != nil {
			return err
		}
		if refund.ID == "" {
			refund.ID = uuid.New().String()
		}

		model := persistence.RefundModelFromDomain(refund)
		if err := tx.Create(model).Error; err != nil {
			return fmt.Errorf("failed to save refund: %w", err)
		}
		refund.CreatedAt = model.CreatedAt

		created = refund
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Debug("refund saved to MySQL",
		zap.String("refund_id", created.ID),
		zap.String("charge_id", chargeID),
		zap.Int64("amount", created.Amount),
	)

	return created, nil
}

func (r *GORMRefundRepository) FindByChargeID(ctx context.Context, chargeID string) ([]*domain.Refund, error) {
	var models []persistence.RefundModel

	result := r.db.WithContext(ctx).
		Where("charge_id = ?", chargeID).
		Order("created_at ASC").
		Order("id").
		Find(&models)

	if result.Error != nil {
		r.logger.Error("failed to fetch refunds by charge ID",
			zap.Error(result.Error),
			zap.String("charge_id", chargeID),
		)
		return nil, fmt.Errorf("database error: %w", result.Error)
	}

	refunds := make([]*domain.Refund, len(models))
	for i := range models {
		refunds[i] = models[i].ToDomain()
	}

	return refunds, nil
}

func (r *GORMRefundRepository) TotalByChargeID(ctx context.Context, chargeID string) (*int64, error) {
	return sumRefunds(r.db.WithContext(ctx), chargeID)
}

// sumRefunds returns nil when the charge has no refunds.
func sumRefunds(db *gorm.DB, chargeID string) (*int64, error) {
	var total sql.NullInt64

	row := db.Model(&persistence.RefundModel{}).
		Select("SUM(amount)").
		Where("charge_id = ?", chargeID).
		Row()
	if err := row.Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to calculate refunded total: %w", err)
	}

	if !total.Valid {
		return nil, nil
	}
	sum := total.Int64
	return &sum, nil
}
