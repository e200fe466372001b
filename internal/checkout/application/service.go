// internal/checkout/application/service.go
package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/checkout/application/saga"
	"storefront/internal/checkout/domain"
	"storefront/internal/checkout/domain/port"
	"storefront/internal/pkg/logger"
)

// CheckoutService 是下单用例的入口，组装并驱动 Saga 链。
type CheckoutService struct {
	stock      domain.StockRepository
	clients    domain.ClientRepository
	ledger     domain.TransactionRepository
	deliveries domain.DeliveryRepository
	gateway    port.PaymentGateway
	scheduler  port.DeliveryScheduler
	notifier   port.NotificationProducer

	reservationTTL    time.Duration
	processingTimeout time.Duration
	tracer            trace.Tracer
}

func NewCheckoutService(
	stock domain.StockRepository,
	clients domain.ClientRepository,
	ledger domain.TransactionRepository,
	deliveries domain.DeliveryRepository,
	gateway port.PaymentGateway,
	scheduler port.DeliveryScheduler,
	notifier port.NotificationProducer,
	reservationTTL time.Duration,
	processingTimeout time.Duration,
) *CheckoutService {
	return &CheckoutService{
		stock:             stock,
		clients:           clients,
		ledger:            ledger,
		deliveries:        deliveries,
		gateway:           gateway,
		scheduler:         scheduler,
		notifier:          notifier,
		reservationTTL:    reservationTTL,
		processingTimeout: processingTimeout,
		tracer:            otel.Tracer("checkout-service"),
	}
}

// CreateOrder 同步执行整条下单 Saga，调用方拿到的就是终态。
//
// 返回值约定：成功返回 COMPLETED 流水；扣款被拒返回 FAILED 流水和
// CHARGE_DECLINED 错误；其余失败路径返回 (nil, err)。
func (s *CheckoutService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*domain.Transaction, error) {
	ctx, span := s.tracer.Start(ctx, "CheckoutService.CreateOrder")
	defer span.End()

	if err := req.Validate(); err != nil {
		span.SetStatus(codes.Error, "Validation failed")
		return nil, err
	}

	sagaID := uuid.New().String()
	span.SetAttributes(
		attribute.String("saga.id", sagaID),
		attribute.String("product.id", req.ProductID),
		attribute.Int("order.quantity", req.Quantity),
	)
	logger.Ctx(ctx).Info().
		Str("saga_id", sagaID).
		Str("product_id", req.ProductID).
		Int("quantity", req.Quantity).
		Msg("order saga started")

	// 扣款批准之前的所有步骤共享一个处理超时；
	// 批准之后 ChargeHandler 会把上下文切换到脱离 deadline 的副本。
	sagaCtx, cancel := context.WithTimeout(ctx, s.processingTimeout)
	defer cancel()

	orderCtx := &saga.OrderContext{
		Ctx:    sagaCtx,
		Tracer: s.tracer,
		SagaID: sagaID,

		ProductID:  req.ProductID,
		Quantity:   req.Quantity,
		TaxCents:   req.TaxCents,
		Email:      req.Delivery.Email,
		FullName:   req.Delivery.FullName,
		Phone:      req.Delivery.Phone,
		Address:    req.Delivery.Address,
		City:       req.Delivery.City,
		PostalCode: req.Delivery.PostalCode,
		Card: port.Card{
			Number:   req.Card.Number,
			ExpMonth: req.Card.ExpMonth,
			ExpYear:  req.Card.ExpYear,
			CVC:      req.Card.CVC,
			Holder:   req.Card.Holder,
		},
		Consent: port.Consent{
			TermsAccepted:          req.TermsAccepted,
			DataProcessingAccepted: req.DataProcessingAccepted,
		},

		Stock:      s.stock,
		Clients:    s.clients,
		Ledger:     s.ledger,
		Deliveries: s.deliveries,
		Gateway:    s.gateway,
		Scheduler:  s.scheduler,
		Notifier:   s.notifier,

		ReservationTTL: s.reservationTTL,
		State:          domain.StateInitiated,
	}

	head := s.buildChain()
	if err := head.Handle(orderCtx); err != nil {
		return s.handleSagaFailure(ctx, orderCtx, err)
	}

	logger.Ctx(ctx).Info().
		Str("saga_id", sagaID).
		Str("transaction_id", orderCtx.Transaction.ID).
		Msg("order saga completed")
	return orderCtx.Transaction, nil
}

// buildChain 固定步骤顺序，任何步骤失败则链条短路。
func (s *CheckoutService) buildChain() saga.Handler {
	reserve := &saga.ReserveStockHandler{}
	resolve := &saga.ResolveClientHandler{}
	tokenize := &saga.TokenizeInstrumentHandler{}
	charge := &saga.ChargeHandler{}
	commit := &saga.CommitStockHandler{}
	ledger := &saga.WriteLedgerHandler{}
	delivery := &saga.RequestDeliveryHandler{}
	notify := &saga.NotifyHandler{}

	reserve.SetNext(resolve).
		SetNext(tokenize).
		SetNext(charge).
		SetNext(commit).
		SetNext(ledger).
		SetNext(delivery).
		SetNext(notify)
	return reserve
}

// handleSagaFailure 根据失败时的状态和错误分类决定善后策略。
func (s *CheckoutService) handleSagaFailure(ctx context.Context, orderCtx *saga.OrderContext, sagaErr error) (*domain.Transaction, error) {
	kind := domain.KindOf(sagaErr)
	logger.Ctx(ctx).Warn().Err(sagaErr).
		Str("saga_id", orderCtx.SagaID).
		Str("state", string(orderCtx.State)).
		Str("kind", string(kind)).
		Msg("order saga failed")

	switch kind {
	case domain.KindValidation, domain.KindInsufficientStock:
		// 无副作用的失败，无需补偿也无需审计记录
		return nil, sagaErr
	case domain.KindChargeAmbiguous:
		// 结局未知：不释放预占（扣款可能已成功，释放会超卖），
		// 不写失败流水。预占留给过期清扫兜底，错误上抛给调用方。
		logger.Ctx(ctx).Error().
			Str("saga_id", orderCtx.SagaID).
			Str("reservation_id", reservationID(orderCtx)).
			Msg("charge outcome unknown, reservation left for TTL sweep, no compensation executed")
		return nil, sagaErr
	}

	// 越过不可回头点之后补偿栈为空，TriggerCompensation 是空操作。
	orderCtx.TriggerCompensation(ctx)

	// 扣款提交过且被明确拒绝/出错的，留一条 FAILED 审计记录
	if orderCtx.State == domain.StateChargeSubmitted && orderCtx.Client != nil {
		failed := domain.NewFailedTransaction(
			orderCtx.Client.ID,
			orderCtx.Product,
			orderCtx.Quantity,
			orderCtx.TaxCents,
			orderCtx.Reservation.PaymentReference(),
			sagaErr.Error(),
		)
		if appendErr := s.ledger.Append(ctx, failed); appendErr != nil {
			logger.Ctx(ctx).Error().Err(appendErr).
				Str("saga_id", orderCtx.SagaID).
				Msg("failed to record declined charge in ledger")
			return nil, sagaErr
		}
		if s.notifier != nil {
			if notifyErr := s.notifier.SendOrderFailed(ctx, failed); notifyErr != nil {
				logger.Ctx(ctx).Warn().Err(notifyErr).
					Str("transaction_id", failed.ID).
					Msg("failed to publish order failed event")
			}
		}
		orderCtx.State = domain.StateFailed
		return failed, sagaErr
	}

	orderCtx.State = domain.StateFailed
	return nil, sagaErr
}

func reservationID(orderCtx *saga.OrderContext) string {
	if orderCtx.Reservation == nil {
		return ""
	}
	return orderCtx.Reservation.ID
}

// GetOrderByID 按流水 ID 查询单笔交易。
func (s *CheckoutService) GetOrderByID(ctx context.Context, id string) (*domain.Transaction, error) {
	ctx, span := s.tracer.Start(ctx, "CheckoutService.GetOrderByID")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))
	return s.ledger.FindByID(ctx, id)
}

// GetOrdersByClient 按客户 email 查询历史交易，最新在前。
func (s *CheckoutService) GetOrdersByClient(ctx context.Context, email string) ([]*domain.Transaction, error) {
	ctx, span := s.tracer.Start(ctx, "CheckoutService.GetOrdersByClient")
	defer span.End()
	return s.ledger.FindByClientEmail(ctx, email)
}

// ListProducts 返回在售商品目录。
func (s *CheckoutService) ListProducts(ctx context.Context, offset, limit int) ([]*domain.Product, int64, error) {
	ctx, span := s.tracer.Start(ctx, "CheckoutService.ListProducts")
	defer span.End()
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.stock.ListProducts(ctx, offset, limit)
}
