// internal/checkout/application/saga/reserve_stock.go
package saga

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"storefront/internal/checkout/domain"
)

// ReserveStockHandler 负责库存预占步骤。
// 预占是一次性的原子扣减，不是跨慢调用持有的锁：
// 后面的网关调用再慢，也不会阻塞其他订单的预占。
type ReserveStockHandler struct {
	NextHandler
}

func (h *ReserveStockHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.ReserveStock")
	defer span.End()

	fmt.Println("【Saga】=> 步骤 1: 预占库存...")

	span.SetAttributes(
		attribute.String("product.id", orderCtx.ProductID),
		attribute.Int("order.quantity", orderCtx.Quantity),
	)

	product, err := orderCtx.Stock.FindProduct(ctx, orderCtx.ProductID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Product lookup failed")
		return err
	}
	orderCtx.Product = product

	reservation, err := orderCtx.Stock.Reserve(ctx, orderCtx.ProductID, orderCtx.Quantity, orderCtx.SagaID, orderCtx.ReservationTTL)
	if err != nil {
		// 库存不足没有任何副作用，直接终止，不需要补偿
		span.RecordError(err)
		span.SetStatus(codes.Error, "Stock reservation failed")
		return err
	}
	orderCtx.Reservation = reservation
	orderCtx.setState(domain.StateStockReserved)

	// 扣款批准之前的任何失败都会走到这里释放预占
	orderCtx.AddCompensation(func(compCtx context.Context) {
		compCtx, compSpan := orderCtx.Tracer.Start(compCtx, "saga.compensation.ReleaseStock")
		defer compSpan.End()

		compSpan.SetAttributes(attribute.String("reservation.id", reservation.ID))

		// 补偿失败需要记录严重错误，交给过期清扫兜底
		if err := orderCtx.Stock.Release(compCtx, reservation); err != nil {
			compSpan.RecordError(err)
		}
	})

	span.AddEvent("Stock reserved.")
	return h.executeNext(orderCtx)
}
