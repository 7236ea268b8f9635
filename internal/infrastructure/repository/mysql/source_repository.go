package sqlrepository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/restpay/payments/internal/domain"
	"github.com/restpay/payments/internal/infrastructure/persistence"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type GORMSourceRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewSourceRepository(db *gorm.DB, logger *zap.Logger) *GORMSourceRepository {
	return &GORMSourceRepository{
		db:     db,
		logger: logger,
	}
}

func (r *GORMSourceRepository) Save(ctx context.Context, source *domain.Source) error {
	if source.ID == "" {
		source.ID = uuid.New().String()
	}

	model, err := persistence.SourceModelFromDomain(source)
	if err != nil {
		return fmt.Errorf("failed to encode source details: %w", err)
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		r.logger.Error("failed to save source", zap.Error(err))
		return fmt.Errorf("database error: %w", err)
	}
	source.CreatedAt = model.CreatedAt

	r.logger.Debug("source saved",
		zap.String("source_id", source.ID),
		zap.String("integration", source.Integration),
	)

	return nil
}

func (r *GORMSourceRepository) FindByID(ctx context.Context, id string) (*domain.Source, error) {
	var model persistence.SourceModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSourceNotFound
		}
		return nil, fmt.Errorf("database error: %w", result.Error)
	}

	source, err := model.ToDomain()
	if err != nil {
		return nil, fmt.Errorf("failed to decode source details: %w", err)
	}
	return source, nil
}
