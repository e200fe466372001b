// internal/checkout/domain/port/delivery.go
package port

import "context"

// DeliveryRequest 是发给配送子系统的创建请求，只在订单 COMPLETED 之后发出。
type DeliveryRequest struct {
	TransactionID string
	Address       string
	City          string
	PostalCode    string
	Name          string
	Phone         string
}

// DeliveryScheduler 是配送子系统的出站端口。内部逻辑不在本服务范围内，
// 只约定 create(deliveryRequest) -> deliveryID 这一契约。
type DeliveryScheduler interface {
	CreateDelivery(ctx context.Context, req *DeliveryRequest) (string, error)
}
