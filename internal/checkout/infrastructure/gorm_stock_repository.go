// internal/checkout/infrastructure/gorm_stock_repository.go
package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"storefront/internal/checkout/domain"
	"storefront/internal/pkg/logger"
)

// GormStockRepository 是 domain.StockRepository 的 GORM 实现。
// 核心是预占路径上的单行条件更新：所有并发裁决都压到
// 数据库对单个商品行的原子更新上，不同商品互不阻塞。
type GormStockRepository struct {
	db *gorm.DB
}

func NewGormStockRepository(db *gorm.DB) *GormStockRepository {
	return &GormStockRepository{db: db}
}

func (r *GormStockRepository) FindProduct(ctx context.Context, id string) (*domain.Product, error) {
	var model ProductModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.E(domain.KindValidation, "product %s not found", id)
		}
		return nil, domain.WrapE(domain.KindInternal, err, "find product %s", id)
	}
	return toDomainProduct(&model), nil
}

func (r *GormStockRepository) ListProducts(ctx context.Context, offset, limit int) ([]*domain.Product, int64, error) {
	var models []ProductModel
	var total int64

	query := r.db.WithContext(ctx).Model(&ProductModel{}).
		Where("is_active = ? AND stock - reserved > 0", true)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, domain.WrapE(domain.KindInternal, err, "count products")
	}
	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&models).Error
	if err != nil {
		return nil, 0, domain.WrapE(domain.KindInternal, err, "list products")
	}

	products := make([]*domain.Product, 0, len(models))
	for i := range models {
		products = append(products, toDomainProduct(&models[i]))
	}
	return products, total, nil
}

// Reserve 用一条条件 UPDATE 完成裁决：
//
//	UPDATE products SET reserved = reserved + qty
//	WHERE id = ? AND is_active = 1 AND stock - reserved >= qty
//
// RowsAffected == 0 即库存不足，此时没有产生任何副作用。
func (r *GormStockRepository) Reserve(ctx context.Context, productID string, qty int, sagaID string, ttl time.Duration) (*domain.Reservation, error) {
	res := r.db.WithContext(ctx).Model(&ProductModel{}).
		Where("id = ? AND is_active = ? AND stock - reserved >= ?", productID, true, qty).
		UpdateColumn("reserved", gorm.Expr("reserved + ?", qty))
	if res.Error != nil {
		return nil, domain.WrapE(domain.KindInternal, res.Error, "reserve stock for %s", productID)
	}
	if res.RowsAffected == 0 {
		// 区分商品不存在和库存不足
		var model ProductModel
		if err := r.db.WithContext(ctx).Where("id = ?", productID).First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, domain.E(domain.KindValidation, "product %s not found", productID)
			}
			return nil, domain.WrapE(domain.KindInternal, err, "find product %s", productID)
		}
		return nil, domain.E(domain.KindInsufficientStock,
			"insufficient stock for product %s: requested %d, available %d", productID, qty, model.Stock-model.Reserved)
	}

	reservation := domain.NewReservation(productID, qty, sagaID, ttl)
	if err := r.db.WithContext(ctx).Create(toReservationModel(reservation)).Error; err != nil {
		// 预占行写失败时把份额还回去，避免 reserved 泄漏
		r.db.WithContext(ctx).Model(&ProductModel{}).
			Where("id = ?", productID).
			UpdateColumn("reserved", gorm.Expr("reserved - ?", qty))
		return nil, domain.WrapE(domain.KindInternal, err, "persist reservation for %s", productID)
	}
	return reservation, nil
}

// Commit 在一个数据库事务里完成 HELD -> COMMITTED 的状态流转和库存扣减。
// 状态条件保证幂等：重复 commit 和 commit 已释放的预占都是空操作。
func (r *GormStockRepository) Commit(ctx context.Context, reservation *domain.Reservation) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&ReservationModel{}).
			Where("id = ? AND status = ?", reservation.ID, string(domain.ReservationHeld)).
			Update("status", string(domain.ReservationCommitted))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil // 已终结，无事可做
		}
		return tx.Model(&ProductModel{}).
			Where("id = ?", reservation.ProductID).
			Updates(map[string]interface{}{
				"stock":    gorm.Expr("stock - ?", reservation.Quantity),
				"reserved": gorm.Expr("reserved - ?", reservation.Quantity),
			}).Error
	})
	if err != nil {
		return domain.WrapE(domain.KindInternal, err, "commit reservation %s", reservation.ID)
	}
	reservation.Status = domain.ReservationCommitted
	return nil
}

// Release 把预占份额退回可售池，幂等性与 Commit 同理。
func (r *GormStockRepository) Release(ctx context.Context, reservation *domain.Reservation) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&ReservationModel{}).
			Where("id = ? AND status = ?", reservation.ID, string(domain.ReservationHeld)).
			Update("status", string(domain.ReservationReleased))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return tx.Model(&ProductModel{}).
			Where("id = ?", reservation.ProductID).
			UpdateColumn("reserved", gorm.Expr("reserved - ?", reservation.Quantity)).Error
	})
	if err != nil {
		return domain.WrapE(domain.KindInternal, err, "release reservation %s", reservation.ID)
	}
	reservation.Status = domain.ReservationReleased
	return nil
}

// ReleaseExpired 是后台清扫入口：过期即视作普通 Release，不引入特殊状态。
func (r *GormStockRepository) ReleaseExpired(ctx context.Context, now time.Time) (int, error) {
	var expired []ReservationModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", string(domain.ReservationHeld), now).
		Limit(100).
		Find(&expired).Error
	if err != nil {
		return 0, domain.WrapE(domain.KindInternal, err, "find expired reservations")
	}

	released := 0
	for i := range expired {
		reservation := toDomainReservation(&expired[i])
		if err := r.Release(ctx, reservation); err != nil {
			logger.Ctx(ctx).Error().Err(err).
				Str("reservation_id", reservation.ID).
				Msg("failed to release expired reservation")
			continue
		}
		released++
	}
	return released, nil
}
