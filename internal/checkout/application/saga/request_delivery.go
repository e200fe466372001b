// internal/checkout/application/saga/request_delivery.go
package saga

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"storefront/internal/checkout/domain"
	"storefront/internal/checkout/domain/port"
	"storefront/internal/pkg/logger"
)

// RequestDeliveryHandler 向配送子系统交接。资金和库存的边界已经关闭：
// 这里的失败绝不回滚订单，只把交接行降级为 PENDING_RETRY 等待带外重试。
type RequestDeliveryHandler struct {
	NextHandler
}

func (h *RequestDeliveryHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.RequestDelivery")
	defer span.End()

	fmt.Println("【Saga】=> 步骤 7: 请求创建配送...")

	delivery := domain.NewDelivery(
		orderCtx.Transaction.ID,
		orderCtx.Address,
		orderCtx.City,
		orderCtx.PostalCode,
		orderCtx.FullName,
		orderCtx.Phone,
	)
	if err := orderCtx.Deliveries.Save(ctx, delivery); err != nil {
		span.RecordError(err)
		logger.Ctx(ctx).Error().Err(err).
			Str("transaction_id", orderCtx.Transaction.ID).
			Msg("failed to persist delivery hand-off row")
	}

	externalID, err := orderCtx.Scheduler.CreateDelivery(ctx, &port.DeliveryRequest{
		TransactionID: orderCtx.Transaction.ID,
		Address:       orderCtx.Address,
		City:          orderCtx.City,
		PostalCode:    orderCtx.PostalCode,
		Name:          orderCtx.FullName,
		Phone:         orderCtx.Phone,
	})
	if err != nil {
		span.RecordError(err)
		span.AddEvent("Delivery creation failed, downgraded to PENDING_RETRY.")
		logger.Ctx(ctx).Warn().Err(err).
			Str("transaction_id", orderCtx.Transaction.ID).
			Msg("delivery creation failed, order stays COMPLETED, delivery queued for retry")
		delivery.MarkPendingRetry()
	} else {
		delivery.MarkScheduled(externalID)
		span.SetAttributes(attribute.String("delivery.external_id", externalID))
	}
	if err := orderCtx.Deliveries.Save(ctx, delivery); err != nil {
		span.RecordError(err)
		logger.Ctx(ctx).Error().Err(err).
			Str("transaction_id", orderCtx.Transaction.ID).
			Msg("failed to update delivery hand-off row")
	}

	orderCtx.setState(domain.StateDeliveryRequested)
	return h.executeNext(orderCtx)
}
