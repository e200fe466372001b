// internal/checkout/application/saga/handler.go
package saga

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"storefront/internal/checkout/domain"
	"storefront/internal/checkout/domain/port"
	"storefront/internal/pkg/logger"
)

// OrderContext 在 Saga 流程中传递上下文数据。
// 所有外部依赖都是抽象接口，由组装根注入。
type OrderContext struct {
	Ctx    context.Context
	Tracer trace.Tracer
	SagaID string

	// 请求数据
	ProductID  string
	Quantity   int
	TaxCents   int64
	Email      string
	FullName   string
	Phone      string
	Address    string
	City       string
	PostalCode string
	Card       port.Card
	Consent    port.Consent

	// 出站依赖
	Stock      domain.StockRepository
	Clients    domain.ClientRepository
	Ledger     domain.TransactionRepository
	Deliveries domain.DeliveryRepository
	Gateway    port.PaymentGateway
	Scheduler  port.DeliveryScheduler
	Notifier   port.NotificationProducer

	ReservationTTL time.Duration

	// 流程中间产物
	State        domain.State
	Product      *domain.Product
	Reservation  *domain.Reservation
	Client       *domain.Client
	Instrument   *port.InstrumentToken
	ChargeResult *port.ChargeResult
	Transaction  *domain.Transaction

	compensations []func(ctx context.Context)
	compLock      sync.Mutex
}

func (c *OrderContext) setState(state domain.State) {
	c.State = state
}

// AddCompensation 注册一个补偿动作，触发时后进先出。
func (c *OrderContext) AddCompensation(comp func(ctx context.Context)) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	c.compensations = append([]func(context.Context){comp}, c.compensations...)
}

// ClearCompensations 在越过不可回头点时丢弃全部补偿动作。
// 之后的失败只向前恢复（重试、人工对账），绝不回滚资金和库存。
func (c *OrderContext) ClearCompensations() {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	c.compensations = nil
}

// TriggerCompensation 执行已注册的补偿动作。扣款批准时补偿栈已被清空，
// 所以批准之后的失败路径走到这里也是空操作。
func (c *OrderContext) TriggerCompensation(ctx context.Context) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	logger.Ctx(ctx).Info().
		Str("saga_id", c.SagaID).
		Int("count", len(c.compensations)).
		Msg("executing saga compensation functions")
	for _, comp := range c.compensations {
		comp(ctx)
	}
	c.compensations = nil
}

type Handler interface {
	SetNext(handler Handler) Handler
	Handle(orderCtx *OrderContext) error
}

type NextHandler struct {
	next Handler
}

func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

func (h *NextHandler) executeNext(orderCtx *OrderContext) error {
	if h.next != nil {
		return h.next.Handle(orderCtx)
	}
	return nil
}

// retryLocal 对纯本地操作做有界指数退避重试。
// 扣款批准之后的库存提交和流水写入只会因基础设施原因失败，走这里。
func retryLocal(ctx context.Context, attempts int, base time.Duration, op func() error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-time.After(base << (attempt - 1)):
		case <-ctx.Done():
			return err
		}
	}
	return err
}
