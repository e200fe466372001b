// internal/checkout/application/saga/resolve_client.go
package saga

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"storefront/internal/checkout/domain"
)

// ResolveClientHandler 按 email 定位或创建客户档案。
// 幂等：同一个 email 永远解析到同一行，已有档案不被覆盖。
type ResolveClientHandler struct {
	NextHandler
}

func (h *ResolveClientHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.ResolveClient")
	defer span.End()

	fmt.Println("【Saga】=> 步骤 2: 定位客户档案...")

	client, err := orderCtx.Clients.Resolve(ctx, orderCtx.Email, domain.ClientProfile{
		Name:    orderCtx.FullName,
		Phone:   orderCtx.Phone,
		Address: orderCtx.Address,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Client resolution failed")
		return err
	}
	orderCtx.Client = client
	orderCtx.setState(domain.StateClientResolved)

	span.SetAttributes(attribute.String("client.id", client.ID))
	return h.executeNext(orderCtx)
}
