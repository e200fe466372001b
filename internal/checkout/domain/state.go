// internal/checkout/domain/state.go
package domain

// State 定义了一次下单 Saga 的生命周期状态
type State string

const (
	StateInitiated           State = "INITIATED"            // 请求已通过前置校验
	StateStockReserved       State = "STOCK_RESERVED"       // 库存已预占
	StateClientResolved      State = "CLIENT_RESOLVED"      // 客户档案已定位或创建
	StateInstrumentTokenized State = "INSTRUMENT_TOKENIZED" // 支付卡已换取网关 token
	StateChargeSubmitted     State = "CHARGE_SUBMITTED"     // 扣款请求已发往网关
	StateChargeApproved      State = "CHARGE_APPROVED"      // 扣款成功，不可回头点
	StateStockCommitted      State = "STOCK_COMMITTED"      // 预占库存已永久扣减
	StateLedgerWritten       State = "LEDGER_WRITTEN"       // 交易流水已落库
	StateDeliveryRequested   State = "DELIVERY_REQUESTED"   // 配送请求已发出
	StateCompleted           State = "COMPLETED"            // 终态：成功
	StateFailed              State = "FAILED"               // 终态：失败
)
