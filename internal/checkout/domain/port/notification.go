// internal/checkout/domain/port/notification.go
package port

import (
	"context"

	"storefront/internal/checkout/domain"
)

// NotificationProducer 对外广播订单终态。发送失败只记日志，不影响主流程。
type NotificationProducer interface {
	SendOrderCompleted(ctx context.Context, tx *domain.Transaction) error
	SendOrderFailed(ctx context.Context, tx *domain.Transaction) error
}
