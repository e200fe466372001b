// internal/checkout/infrastructure/gorm_client_repository.go
package infrastructure

import (
	"context"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"storefront/internal/checkout/domain"
)

// mysqlDuplicateEntry 是 MySQL 唯一键冲突的错误码。
const mysqlDuplicateEntry = 1062

// GormClientRepository 是 domain.ClientRepository 的 GORM 实现。
type GormClientRepository struct {
	db *gorm.DB
}

func NewGormClientRepository(db *gorm.DB) *GormClientRepository {
	return &GormClientRepository{db: db}
}

// Resolve 是 insert-or-fetch，不是 insert-then-check：
// 先查，未命中就插入；插入撞上唯一索引说明并发方已建档，回退到查询。
// 这样两个并发的 Resolve 对同一个 email 只会产生一行。
func (r *GormClientRepository) Resolve(ctx context.Context, email string, profile domain.ClientProfile) (*domain.Client, error) {
	client, err := r.FindByEmail(ctx, email)
	if err == nil {
		return client, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.WrapE(domain.KindClientResolution, err, "lookup client %s", email)
	}

	model := &ClientModel{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      profile.Name,
		Phone:     profile.Phone,
		Address:   profile.Address,
		CreatedAt: time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			// 并发建档冲突，对方赢了，取对方的记录
			client, err := r.FindByEmail(ctx, email)
			if err != nil {
				return nil, domain.WrapE(domain.KindClientResolution, err, "fetch client %s after conflict", email)
			}
			return client, nil
		}
		return nil, domain.WrapE(domain.KindClientResolution, err, "create client %s", email)
	}
	return toDomainClient(model), nil
}

func (r *GormClientRepository) FindByEmail(ctx context.Context, email string) (*domain.Client, error) {
	var model ClientModel
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&model).Error; err != nil {
		return nil, err
	}
	return toDomainClient(&model), nil
}
