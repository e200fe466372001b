// internal/checkout/application/saga/notify.go
package saga

import (
	"fmt"

	"storefront/internal/checkout/domain"
	"storefront/internal/pkg/logger"
)

// NotifyHandler 广播订单完成事件，纯尽力而为。
type NotifyHandler struct {
	NextHandler
}

func (h *NotifyHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.Notify")
	defer span.End()

	fmt.Println("【Saga】=> 步骤 8: 广播订单完成事件...")

	if orderCtx.Notifier != nil {
		if err := orderCtx.Notifier.SendOrderCompleted(ctx, orderCtx.Transaction); err != nil {
			span.RecordError(err)
			logger.Ctx(ctx).Warn().Err(err).
				Str("transaction_id", orderCtx.Transaction.ID).
				Msg("failed to publish order completed event")
		}
	}

	orderCtx.setState(domain.StateCompleted)
	span.AddEvent("Order completed.")
	return h.executeNext(orderCtx)
}
