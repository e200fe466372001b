// internal/checkout/domain/port/payment.go
package port

import "context"

// Card 是未脱敏的卡面信息，只在进程内短暂存在，换取 token 后即不再传递。
type Card struct {
	Number   string
	ExpMonth string
	ExpYear  string
	CVC      string
	Holder   string
}

// Consent 是创建卡 token 前必须具备的法律同意项。
// 任何一项为 false 都会在发起网络调用之前被拒绝。
type Consent struct {
	TermsAccepted          bool
	DataProcessingAccepted bool
}

// InstrumentToken 是网关侧的卡片句柄，附带商户预签的同意令牌。
type InstrumentToken struct {
	Token             string
	LastFour          string
	AcceptanceToken   string
	PersonalAuthToken string
}

type ChargeStatus string

const (
	ChargeApproved ChargeStatus = "APPROVED"
	ChargeDeclined ChargeStatus = "DECLINED"
	ChargePending  ChargeStatus = "PENDING"
	ChargeError    ChargeStatus = "ERROR"
)

type ShippingAddress struct {
	AddressLine1 string
	City         string
	Region       string
	Country      string
	PostalCode   string
	Name         string
	Phone        string
}

// ChargeRequest 的 Reference 同时充当幂等键：由预占确定性派生，
// 同一逻辑尝试的所有重试必须复用同一个 Reference。
type ChargeRequest struct {
	Reference     string
	AmountCents   int64
	Installments  int
	Instrument    InstrumentToken
	CustomerEmail string
	CustomerName  string
	CustomerPhone string
	Shipping      ShippingAddress
}

type ChargeResult struct {
	ExternalID    string
	Status        ChargeStatus
	StatusMessage string
}

// PaymentGateway 封装外部的、非事务性的支付 API。
type PaymentGateway interface {
	TokenizeInstrument(ctx context.Context, card Card, consent Consent) (*InstrumentToken, error)
	// Charge 提交扣款。瞬时传输失败在内部用同一 Reference 有界重试；
	// 超时返回 CHARGE_AMBIGUOUS 类错误，由调用方做对账，绝不臆断失败。
	Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error)
	// QueryStatus 按 reference 查询一次扣款的真实结局，
	// 用于超时后的对账（超时的提交可能根本没有拿到网关侧 ID）。
	QueryStatus(ctx context.Context, reference string) (*ChargeResult, error)
}
