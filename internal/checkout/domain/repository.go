// internal/checkout/domain/repository.go
package domain

import (
	"context"
	"time"
)

// StockRepository 独占 Stock/Reserved 的修改权。
// 并发契约：同一商品上的 Reserve/Commit/Release 必须串行化到
// 单行条件更新上，不同商品之间互不阻塞，绝不使用全局锁。
type StockRepository interface {
	FindProduct(ctx context.Context, id string) (*Product, error)
	// ListProducts 返回在售且有货的商品，最新在前。
	ListProducts(ctx context.Context, offset, limit int) ([]*Product, int64, error)

	// Reserve 仅在 stock - reserved >= qty 时成功，失败无任何副作用。
	Reserve(ctx context.Context, productID string, qty int, sagaID string, ttl time.Duration) (*Reservation, error)
	// Commit 永久扣减 stock 与 reserved。对已终结的预占是幂等空操作。
	Commit(ctx context.Context, reservation *Reservation) error
	// Release 把预占份额退回可售池。同样幂等。
	Release(ctx context.Context, reservation *Reservation) error
	// ReleaseExpired 释放所有已过期且从未 commit 的预占，返回释放数量。
	ReleaseExpired(ctx context.Context, now time.Time) (int, error)
}

// ClientRepository 独占 Client 的创建权。
type ClientRepository interface {
	// Resolve 按 email 定位客户；未命中则用 profile 建档。
	// 两个并发的 Resolve 对同一个未见过的 email 必须只产生一行，
	// 由唯一索引 + 冲突回退查询保证（insert-or-fetch）。
	Resolve(ctx context.Context, email string, profile ClientProfile) (*Client, error)
	FindByEmail(ctx context.Context, email string) (*Client, error)
}

// TransactionRepository 是只追加的流水账。没有更新和删除操作。
type TransactionRepository interface {
	// Append 原子写入 Transaction 及其全部 LineItem。
	Append(ctx context.Context, tx *Transaction) error
	FindByID(ctx context.Context, id string) (*Transaction, error)
	// FindByClientEmail 按创建时间倒序返回；无记录时返回空列表。
	FindByClientEmail(ctx context.Context, email string) ([]*Transaction, error)
}

// DeliveryRepository 跟踪配送交接状态，供带外重试使用。
type DeliveryRepository interface {
	Save(ctx context.Context, delivery *Delivery) error
	FindByTransactionID(ctx context.Context, transactionID string) (*Delivery, error)
	FindPendingRetry(ctx context.Context, limit int) ([]*Delivery, error)
}
