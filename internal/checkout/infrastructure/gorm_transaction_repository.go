// internal/checkout/infrastructure/gorm_transaction_repository.go
package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"storefront/internal/checkout/domain"
)

// GormTransactionRepository 是只追加的流水账实现。
// 写入后记录不可变，这里刻意不提供任何 update/delete 方法。
type GormTransactionRepository struct {
	db *gorm.DB
}

func NewGormTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

// Append 在一个数据库事务里写入 Transaction 和它的全部 LineItem。
func (r *GormTransactionRepository) Append(ctx context.Context, tx *domain.Transaction) error {
	model := toTransactionModel(tx)
	err := r.db.WithContext(ctx).Transaction(func(dbTx *gorm.DB) error {
		return dbTx.Create(model).Error
	})
	if err != nil {
		return domain.WrapE(domain.KindInternal, err, "append transaction %s", tx.ID)
	}
	return nil
}

func (r *GormTransactionRepository) FindByID(ctx context.Context, id string) (*domain.Transaction, error) {
	var model TransactionModel
	err := r.db.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.E(domain.KindValidation, "transaction %s not found", id)
		}
		return nil, domain.WrapE(domain.KindInternal, err, "find transaction %s", id)
	}
	return toDomainTransaction(&model), nil
}

// FindByClientEmail 先定位客户，再按创建时间倒序取流水。
// 未知 email 返回空列表：空结果是真实的读结果，不是错误。
func (r *GormTransactionRepository) FindByClientEmail(ctx context.Context, email string) ([]*domain.Transaction, error) {
	var client ClientModel
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&client).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []*domain.Transaction{}, nil
		}
		return nil, domain.WrapE(domain.KindInternal, err, "find client %s", email)
	}

	var models []TransactionModel
	err = r.db.WithContext(ctx).Preload("Items").
		Where("client_id = ?", client.ID).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, domain.WrapE(domain.KindInternal, err, "find transactions for %s", email)
	}

	result := make([]*domain.Transaction, 0, len(models))
	for i := range models {
		result = append(result, toDomainTransaction(&models[i]))
	}
	return result, nil
}
