// internal/checkout/application/saga/commit_stock.go
package saga

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"

	"storefront/internal/checkout/domain"
	"storefront/internal/pkg/logger"
)

// CommitStockHandler 把预占永久化。已越过不可回头点：
// 这里只会因基础设施原因失败，失败就有界重试，绝不回滚扣款。
type CommitStockHandler struct {
	NextHandler
}

func (h *CommitStockHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.CommitStock")
	defer span.End()

	fmt.Println("【Saga】=> 步骤 5: 永久扣减库存...")

	err := retryLocal(ctx, 5, 100*time.Millisecond, func() error {
		return orderCtx.Stock.Commit(ctx, orderCtx.Reservation)
	})
	if err != nil {
		// 资金已扣、库存未提交：记录严重错误，交给人工对账
		span.RecordError(err)
		span.SetStatus(codes.Error, "Stock commit failed after retries")
		logger.Ctx(ctx).Error().Err(err).
			Str("saga_id", orderCtx.SagaID).
			Str("reservation_id", orderCtx.Reservation.ID).
			Str("payment_reference", orderCtx.Reservation.PaymentReference()).
			Msg("CRITICAL: charge approved but stock commit failed, manual reconciliation required")
		return domain.WrapE(domain.KindInternal, err, "commit stock after approved charge")
	}
	orderCtx.setState(domain.StateStockCommitted)

	span.AddEvent("Reservation committed.")
	return h.executeNext(orderCtx)
}
