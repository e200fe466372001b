// internal/checkout/application/saga/charge.go
package saga

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/checkout/domain"
	"storefront/internal/checkout/domain/port"
)

const (
	maxStatusPolls     = 5
	statusPollInterval = 400 * time.Millisecond
)

// ChargeHandler 提交扣款并裁决结局。这是整个 Saga 的分水岭：
// 提交之前调用方还能取消；APPROVED 之后是不可回头点，
// 后续步骤永远前进，绝不自动退款。
type ChargeHandler struct {
	NextHandler
}

func (h *ChargeHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.SubmitCharge")
	defer span.End()

	fmt.Println("【Saga】=> 步骤 4: 提交扣款...")

	// 取消边界：这是调用方取消最后一次生效的地方
	if err := orderCtx.Ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "Cancelled before charge submission")
		return domain.WrapE(domain.KindInternal, err, "order cancelled before charge submission")
	}

	// 幂等键由预占确定性派生，本次尝试的所有重试共享它
	reference := orderCtx.Reservation.PaymentReference()
	span.SetAttributes(
		attribute.String("payment.reference", reference),
		attribute.Int64("payment.amount_cents", orderCtx.chargeAmountCents()),
	)

	req := &port.ChargeRequest{
		Reference:     reference,
		AmountCents:   orderCtx.chargeAmountCents(),
		Installments:  1,
		Instrument:    *orderCtx.Instrument,
		CustomerEmail: orderCtx.Email,
		CustomerName:  orderCtx.FullName,
		CustomerPhone: orderCtx.Phone,
		Shipping: port.ShippingAddress{
			AddressLine1: orderCtx.Address,
			City:         orderCtx.City,
			Region:       orderCtx.City,
			Country:      "CO",
			PostalCode:   orderCtx.PostalCode,
			Name:         orderCtx.FullName,
			Phone:        orderCtx.Phone,
		},
	}

	orderCtx.setState(domain.StateChargeSubmitted)

	// 提交一旦发生，后续流程脱离调用方的取消与超时：
	// 只保留 Span 上下文用于关联链路，不保留 deadline。
	detached := trace.ContextWithRemoteSpanContext(context.Background(), trace.SpanContextFromContext(ctx))

	result, err := orderCtx.Gateway.Charge(detached, req)
	if err != nil {
		if !domain.IsKind(err, domain.KindChargeAmbiguous) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Charge failed")
			return err
		}
		// 超时结局未知：先对账再下结论，防止扣款成功却被当作失败释放库存
		span.AddEvent("Charge outcome unknown, reconciling via status query.")
		result, err = orderCtx.Gateway.QueryStatus(detached, reference)
		if err != nil {
			if domain.IsKind(err, domain.KindChargeDeclined) {
				// 网关侧没有这笔扣款，资金确定未动
				span.SetStatus(codes.Error, "Charge never captured")
				return err
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, "Charge outcome still unknown")
			return domain.WrapE(domain.KindChargeAmbiguous, err,
				"charge outcome for %s still unknown after reconciliation", reference)
		}
		span.AddEvent("Charge outcome reconciled.")
	}

	// 网关异步受理时短暂轮询等待终态
	for poll := 0; result.Status == port.ChargePending && poll < maxStatusPolls; poll++ {
		time.Sleep(statusPollInterval)
		next, qerr := orderCtx.Gateway.QueryStatus(detached, reference)
		if qerr != nil {
			span.RecordError(qerr)
			break
		}
		result = next
	}

	orderCtx.ChargeResult = result
	span.SetAttributes(attribute.String("payment.status", string(result.Status)))

	switch result.Status {
	case port.ChargeApproved:
		// 不可回头点：丢弃补偿栈。之后即使库存提交或流水写入耗尽重试，
		// 预占也保持 HELD 等待人工对账，绝不自动释放已付款的库存。
		orderCtx.ClearCompensations()
		orderCtx.Ctx = detached
		orderCtx.setState(domain.StateChargeApproved)
		span.AddEvent("Charge approved, saga passed the point of no return.")
		return h.executeNext(orderCtx)
	case port.ChargeDeclined:
		span.SetStatus(codes.Error, "Charge declined")
		return domain.E(domain.KindChargeDeclined, "charge %s declined by gateway: %s", reference, result.StatusMessage)
	case port.ChargePending:
		span.SetStatus(codes.Error, "Charge still pending")
		return domain.E(domain.KindChargeAmbiguous, "charge %s still pending at gateway", reference)
	default:
		span.SetStatus(codes.Error, "Charge errored")
		return domain.E(domain.KindGateway, "charge %s failed at gateway: %s", reference, result.StatusMessage)
	}
}

// chargeAmountCents 的金额从商品当时单价计算，不信任请求侧总价。
func (c *OrderContext) chargeAmountCents() int64 {
	return c.Product.PriceCents*int64(c.Quantity) + c.TaxCents
}
