// internal/checkout/domain/product.go
package domain

import "time"

// Product 是商品聚合根。价格以货币最小单位（分）计，避免浮点误差。
// Stock 是已确认可售的库存，Reserved 是被在途 Saga 持有的份额。
// 不变式: 0 <= Reserved <= Stock，且 Stock 只通过 Commit 减少。
type Product struct {
	ID          string
	Name        string
	Description string
	PriceCents  int64
	Stock       int
	Reserved    int
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Available 返回当前真正可预占的数量。
func (p *Product) Available() int {
	return p.Stock - p.Reserved
}
