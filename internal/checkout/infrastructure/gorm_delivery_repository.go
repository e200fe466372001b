// internal/checkout/infrastructure/gorm_delivery_repository.go
package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"storefront/internal/checkout/domain"
)

// GormDeliveryRepository 跟踪配送交接行，供清扫任务带外重试。
type GormDeliveryRepository struct {
	db *gorm.DB
}

func NewGormDeliveryRepository(db *gorm.DB) *GormDeliveryRepository {
	return &GormDeliveryRepository{db: db}
}

func (r *GormDeliveryRepository) Save(ctx context.Context, delivery *domain.Delivery) error {
	if err := r.db.WithContext(ctx).Save(toDeliveryModel(delivery)).Error; err != nil {
		return domain.WrapE(domain.KindInternal, err, "save delivery %s", delivery.ID)
	}
	return nil
}

func (r *GormDeliveryRepository) FindByTransactionID(ctx context.Context, transactionID string) (*domain.Delivery, error) {
	var model DeliveryModel
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.E(domain.KindValidation, "delivery for transaction %s not found", transactionID)
		}
		return nil, domain.WrapE(domain.KindInternal, err, "find delivery for %s", transactionID)
	}
	return toDomainDelivery(&model), nil
}

func (r *GormDeliveryRepository) FindPendingRetry(ctx context.Context, limit int) ([]*domain.Delivery, error) {
	var models []DeliveryModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(domain.DeliveryPendingRetry)).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, domain.WrapE(domain.KindInternal, err, "find pending deliveries")
	}

	result := make([]*domain.Delivery, 0, len(models))
	for i := range models {
		result = append(result, toDomainDelivery(&models[i]))
	}
	return result, nil
}
