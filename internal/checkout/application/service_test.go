package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/checkout/domain"
	"storefront/internal/checkout/domain/port"
	"storefront/internal/checkout/infrastructure/memory"
)

// fakeGateway 按脚本化的结果响应，记录调用次数和收到的 reference。
type fakeGateway struct {
	tokenizeErr  error
	chargeResult *port.ChargeResult
	chargeErr    error
	queryResult  *port.ChargeResult
	queryErr     error

	tokenizeCalls int
	chargeCalls   int
	queryCalls    int
	lastReference string
}

func (g *fakeGateway) TokenizeInstrument(ctx context.Context, card port.Card, consent port.Consent) (*port.InstrumentToken, error) {
	if !consent.TermsAccepted || !consent.DataProcessingAccepted {
		return nil, domain.E(domain.KindConsentRequired, "consent is required before tokenizing a card")
	}
	g.tokenizeCalls++
	if g.tokenizeErr != nil {
		return nil, g.tokenizeErr
	}
	return &port.InstrumentToken{Token: "tok-1", LastFour: "4242", AcceptanceToken: "acc-1"}, nil
}

func (g *fakeGateway) Charge(ctx context.Context, req *port.ChargeRequest) (*port.ChargeResult, error) {
	g.chargeCalls++
	g.lastReference = req.Reference
	if g.chargeErr != nil {
		return nil, g.chargeErr
	}
	return g.chargeResult, nil
}

func (g *fakeGateway) QueryStatus(ctx context.Context, reference string) (*port.ChargeResult, error) {
	g.queryCalls++
	if g.queryErr != nil {
		return nil, g.queryErr
	}
	return g.queryResult, nil
}

type fakeScheduler struct {
	err   error
	calls int
}

func (s *fakeScheduler) CreateDelivery(ctx context.Context, req *port.DeliveryRequest) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "delivery-ext-1", nil
}

type fakeNotifier struct {
	completed int
	failed    int
}

func (n *fakeNotifier) SendOrderCompleted(ctx context.Context, tx *domain.Transaction) error {
	n.completed++
	return nil
}

func (n *fakeNotifier) SendOrderFailed(ctx context.Context, tx *domain.Transaction) error {
	n.failed++
	return nil
}

type fixture struct {
	service    *CheckoutService
	stock      *memory.StockRepository
	clients    *memory.ClientRepository
	ledger     *memory.TransactionRepository
	deliveries *memory.DeliveryRepository
	gateway    *fakeGateway
	scheduler  *fakeScheduler
	notifier   *fakeNotifier
}

func newFixture(stock int, gateway *fakeGateway) *fixture {
	f := &fixture{
		stock:      memory.NewStockRepository(),
		clients:    memory.NewClientRepository(),
		deliveries: memory.NewDeliveryRepository(),
		gateway:    gateway,
		scheduler:  &fakeScheduler{},
		notifier:   &fakeNotifier{},
	}
	f.ledger = memory.NewTransactionRepository(f.clients)
	f.stock.SeedProduct(&domain.Product{
		ID:         "product-1",
		Name:       "Mechanical Keyboard",
		PriceCents: 250000,
		Stock:      stock,
		IsActive:   true,
	})
	f.service = NewCheckoutService(
		f.stock, f.clients, f.ledger, f.deliveries,
		f.gateway, f.scheduler, f.notifier,
		10*time.Minute, 30*time.Second,
	)
	return f
}

func validRequest(quantity int) *CreateOrderRequest {
	return &CreateOrderRequest{
		ProductID: "product-1",
		Quantity:  quantity,
		TaxCents:  19000,
		Delivery: DeliveryData{
			Email:      "buyer@example.com",
			FullName:   "Jane Buyer",
			Phone:      "+573001112233",
			Address:    "Calle 100 #11-22",
			City:       "Bogota",
			PostalCode: "110111",
		},
		Card: CardData{
			Number:   "4242 4242 4242 4242",
			ExpMonth: "12",
			ExpYear:  "29",
			CVC:      "123",
			Holder:   "JANE BUYER",
		},
		TermsAccepted:          true,
		DataProcessingAccepted: true,
	}
}

func approvedGateway() *fakeGateway {
	return &fakeGateway{chargeResult: &port.ChargeResult{ExternalID: "charge-1", Status: port.ChargeApproved}}
}

func TestCreateOrderHappyPath(t *testing.T) {
	f := newFixture(10, approvedGateway())
	ctx := context.Background()

	tx, err := f.service.CreateOrder(ctx, validRequest(2))
	require.NoError(t, err)
	require.NotNil(t, tx)

	assert.Equal(t, domain.TransactionCompleted, tx.Status)
	assert.Equal(t, int64(250000*2+19000), tx.TotalCents)
	assert.Equal(t, "charge-1", tx.ExternalChargeID)
	assert.Equal(t, "4242", tx.CardLastFour)

	// 库存永久扣减，预占清零
	p, err := f.stock.FindProduct(ctx, "product-1")
	require.NoError(t, err)
	assert.Equal(t, 8, p.Stock)
	assert.Equal(t, 0, p.Reserved)

	assert.Equal(t, 1, f.ledger.Count())
	assert.Equal(t, 1, f.gateway.chargeCalls)
	assert.Equal(t, 1, f.notifier.completed)

	// 配送已受理
	delivery, err := f.deliveries.FindByTransactionID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryScheduled, delivery.Status)
	assert.Equal(t, "delivery-ext-1", delivery.ExternalID)
}

func TestCreateOrderChargeDeclined(t *testing.T) {
	f := newFixture(10, &fakeGateway{
		chargeResult: &port.ChargeResult{ExternalID: "charge-1", Status: port.ChargeDeclined, StatusMessage: "insufficient funds"},
	})
	ctx := context.Background()

	tx, err := f.service.CreateOrder(ctx, validRequest(2))
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindChargeDeclined))

	// 审计记录：一笔 FAILED 流水，带失败原因
	require.NotNil(t, tx)
	assert.Equal(t, domain.TransactionFailed, tx.Status)
	assert.NotEmpty(t, tx.FailureReason)
	assert.Equal(t, 1, f.ledger.Count())
	assert.Equal(t, 1, f.notifier.failed)

	// 预占已释放，库存未动
	p, err := f.stock.FindProduct(ctx, "product-1")
	require.NoError(t, err)
	assert.Equal(t, 10, p.Stock)
	assert.Equal(t, 0, p.Reserved)
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	f := newFixture(1, approvedGateway())
	ctx := context.Background()

	tx, err := f.service.CreateOrder(ctx, validRequest(5))
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindInsufficientStock))
	assert.Nil(t, tx, "no audit record for a failure without side effects")
	assert.Equal(t, 0, f.ledger.Count())
	assert.Equal(t, 0, f.gateway.chargeCalls)
}

func TestCreateOrderValidationFailure(t *testing.T) {
	f := newFixture(10, approvedGateway())

	tx, err := f.service.CreateOrder(context.Background(), validRequest(0))
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindValidation))
	assert.Nil(t, tx)

	p, _ := f.stock.FindProduct(context.Background(), "product-1")
	assert.Equal(t, 0, p.Reserved, "validation failures never touch stock")
}

func TestCreateOrderTokenizationFailureReleasesReservation(t *testing.T) {
	f := newFixture(10, &fakeGateway{
		tokenizeErr: domain.E(domain.KindInstrumentTokenization, "gateway rejected card"),
	})
	ctx := context.Background()

	tx, err := f.service.CreateOrder(ctx, validRequest(3))
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindInstrumentTokenization))
	assert.Nil(t, tx)
	assert.Equal(t, 0, f.ledger.Count())
	assert.Equal(t, 0, f.gateway.chargeCalls)

	p, err := f.stock.FindProduct(ctx, "product-1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Reserved, "compensation must release the reservation")
	assert.Equal(t, 10, p.Stock)
}

func TestCreateOrderMissingConsentStopsBeforeCharge(t *testing.T) {
	f := newFixture(10, approvedGateway())
	req := validRequest(1)
	req.TermsAccepted = false

	tx, err := f.service.CreateOrder(context.Background(), req)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindConsentRequired))
	assert.Nil(t, tx)
	assert.Equal(t, 0, f.gateway.tokenizeCalls)
	assert.Equal(t, 0, f.gateway.chargeCalls)

	p, _ := f.stock.FindProduct(context.Background(), "product-1")
	assert.Equal(t, 0, p.Reserved)
}

// 提交超时但扣款实际成功：对账发现 APPROVED，订单照常完成，
// 且绝不发起第二次扣款。
func TestCreateOrderAmbiguousReconciledAsApproved(t *testing.T) {
	f := newFixture(10, &fakeGateway{
		chargeErr:   domain.E(domain.KindChargeAmbiguous, "charge submission timed out"),
		queryResult: &port.ChargeResult{ExternalID: "charge-1", Status: port.ChargeApproved},
	})
	ctx := context.Background()

	tx, err := f.service.CreateOrder(ctx, validRequest(1))
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionCompleted, tx.Status)
	assert.Equal(t, 1, f.gateway.chargeCalls, "exactly one submission")
	assert.Equal(t, 1, f.gateway.queryCalls)

	p, _ := f.stock.FindProduct(ctx, "product-1")
	assert.Equal(t, 9, p.Stock)
}

// 提交超时且网关侧查不到这笔扣款：资金确定未动，按拒付处理。
func TestCreateOrderAmbiguousReconciledAsNeverCaptured(t *testing.T) {
	f := newFixture(10, &fakeGateway{
		chargeErr: domain.E(domain.KindChargeAmbiguous, "charge submission timed out"),
		queryErr:  domain.E(domain.KindChargeDeclined, "no charge found, funds were never captured"),
	})
	ctx := context.Background()

	tx, err := f.service.CreateOrder(ctx, validRequest(1))
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindChargeDeclined))
	require.NotNil(t, tx)
	assert.Equal(t, domain.TransactionFailed, tx.Status)

	p, _ := f.stock.FindProduct(ctx, "product-1")
	assert.Equal(t, 0, p.Reserved)
	assert.Equal(t, 10, p.Stock)
}

// 对账也失败，结局仍然未知：不释放预占（扣款可能已成功），
// 不写失败流水，预占交给过期清扫兜底。
func TestCreateOrderAmbiguousStaysAmbiguous(t *testing.T) {
	f := newFixture(10, &fakeGateway{
		chargeErr: domain.E(domain.KindChargeAmbiguous, "charge submission timed out"),
		queryErr:  domain.E(domain.KindGateway, "status endpoint unreachable"),
	})
	ctx := context.Background()

	tx, err := f.service.CreateOrder(ctx, validRequest(2))
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindChargeAmbiguous))
	assert.Nil(t, tx)
	assert.Equal(t, 0, f.ledger.Count())

	p, _ := f.stock.FindProduct(ctx, "product-1")
	assert.Equal(t, 2, p.Reserved, "reservation stays held until the TTL sweep")
}

// 配送失败绝不回滚已完成的订单，只把交接降级为 PENDING_RETRY。
func TestCreateOrderDeliveryFailureKeepsOrderCompleted(t *testing.T) {
	f := newFixture(10, approvedGateway())
	f.scheduler.err = domain.E(domain.KindDeliveryCreation, "delivery service is down")
	ctx := context.Background()

	tx, err := f.service.CreateOrder(ctx, validRequest(1))
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionCompleted, tx.Status)

	delivery, err := f.deliveries.FindByTransactionID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryPendingRetry, delivery.Status)

	p, _ := f.stock.FindProduct(ctx, "product-1")
	assert.Equal(t, 9, p.Stock, "funds and stock boundaries stay closed")
}

func TestCreateOrderReusesClientProfile(t *testing.T) {
	f := newFixture(10, approvedGateway())
	ctx := context.Background()

	first, err := f.service.CreateOrder(ctx, validRequest(1))
	require.NoError(t, err)
	second, err := f.service.CreateOrder(ctx, validRequest(1))
	require.NoError(t, err)

	assert.Equal(t, first.ClientID, second.ClientID, "same email resolves to the same client")
	assert.Equal(t, 1, f.clients.Count())

	txs, err := f.service.GetOrdersByClient(ctx, "buyer@example.com")
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

// brokenCommitStock 模拟扣款批准后库存提交的基础设施故障。
type brokenCommitStock struct {
	*memory.StockRepository
}

func (s *brokenCommitStock) Commit(ctx context.Context, reservation *domain.Reservation) error {
	return domain.E(domain.KindInternal, "stock storage unavailable")
}

// brokenLedger 模拟扣款批准后流水写入的基础设施故障。
type brokenLedger struct {
	*memory.TransactionRepository
}

func (l *brokenLedger) Append(ctx context.Context, tx *domain.Transaction) error {
	return domain.E(domain.KindInternal, "ledger storage unavailable")
}

// 扣款批准后库存提交耗尽重试：预占必须保持 HELD 等待人工对账，
// 绝不自动释放已付款的库存。
func TestPostApprovalCommitFailureNeverReleasesReservation(t *testing.T) {
	f := newFixture(10, approvedGateway())
	service := NewCheckoutService(
		&brokenCommitStock{f.stock}, f.clients, f.ledger, f.deliveries,
		f.gateway, f.scheduler, f.notifier,
		10*time.Minute, 30*time.Second,
	)
	ctx := context.Background()

	tx, err := service.CreateOrder(ctx, validRequest(2))
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindInternal))
	assert.Nil(t, tx)
	assert.Equal(t, 0, f.ledger.Count(), "no audit record while the outcome awaits reconciliation")
	assert.Equal(t, 0, f.scheduler.calls)

	p, err := f.stock.FindProduct(ctx, "product-1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Reserved, "the paid-for reservation stays held")
	assert.Equal(t, 10, p.Stock)
}

// 扣款批准、库存已提交，流水写入耗尽重试：提交的库存绝不回滚。
func TestPostApprovalLedgerFailureKeepsCommittedStock(t *testing.T) {
	f := newFixture(10, approvedGateway())
	service := NewCheckoutService(
		f.stock, f.clients, &brokenLedger{f.ledger}, f.deliveries,
		f.gateway, f.scheduler, f.notifier,
		10*time.Minute, 30*time.Second,
	)
	ctx := context.Background()

	tx, err := service.CreateOrder(ctx, validRequest(2))
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindInternal))
	assert.Nil(t, tx)
	assert.Equal(t, 0, f.scheduler.calls, "saga stops before the delivery hand-off")
	assert.Equal(t, 0, f.notifier.failed, "no failure event for an order whose funds moved")

	p, err := f.stock.FindProduct(ctx, "product-1")
	require.NoError(t, err)
	assert.Equal(t, 8, p.Stock, "committed stock is never reversed")
	assert.Equal(t, 0, p.Reserved)
}

func TestSweeperReleasesExpiredAndRetriesDeliveries(t *testing.T) {
	f := newFixture(10, approvedGateway())
	ctx := context.Background()

	_, err := f.stock.Reserve(ctx, "product-1", 3, "saga-crashed", -time.Second)
	require.NoError(t, err)

	stuck := domain.NewDelivery("tx-1", "Calle 1", "Bogota", "110111", "Jane", "+573001112233")
	stuck.MarkPendingRetry()
	require.NoError(t, f.deliveries.Save(ctx, stuck))

	sweeper := NewSweeper(f.stock, f.deliveries, f.scheduler, time.Minute)
	sweeper.sweepOnce(ctx)

	p, _ := f.stock.FindProduct(ctx, "product-1")
	assert.Equal(t, 0, p.Reserved, "expired reservation swept")

	delivery, err := f.deliveries.FindByTransactionID(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryScheduled, delivery.Status)
	assert.Equal(t, "delivery-ext-1", delivery.ExternalID)
}
