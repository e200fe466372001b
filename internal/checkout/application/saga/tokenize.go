// internal/checkout/application/saga/tokenize.go
package saga

import (
	"fmt"

	"go.opentelemetry.io/otel/codes"

	"storefront/internal/checkout/domain"
)

// TokenizeInstrumentHandler 把卡面信息换成网关 token。
// 同意项缺失会在适配器发起任何网络调用之前被拒绝。
type TokenizeInstrumentHandler struct {
	NextHandler
}

func (h *TokenizeInstrumentHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.TokenizeInstrument")
	defer span.End()

	fmt.Println("【Saga】=> 步骤 3: 支付卡 tokenization...")

	instrument, err := orderCtx.Gateway.TokenizeInstrument(ctx, orderCtx.Card, orderCtx.Consent)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Instrument tokenization failed")
		return err
	}
	orderCtx.Instrument = instrument
	orderCtx.setState(domain.StateInstrumentTokenized)

	span.AddEvent("Instrument tokenized.")
	return h.executeNext(orderCtx)
}
