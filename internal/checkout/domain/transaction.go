// internal/checkout/domain/transaction.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

type TransactionStatus string

const (
	TransactionCompleted TransactionStatus = "COMPLETED"
	TransactionFailed    TransactionStatus = "FAILED"
)

// LineItem 记录成交时刻的商品快照，单价固化在下单当时。
type LineItem struct {
	ProductID      string
	ProductName    string
	Quantity       int
	UnitPriceCents int64
}

// Transaction 是审计记录：状态一旦写入即不可变，永不删除、永不修改。
type Transaction struct {
	ID               string
	ClientID         string
	Items            []LineItem
	TotalCents       int64
	TaxCents         int64
	PaymentReference string
	ExternalChargeID string
	CardLastFour     string
	Status           TransactionStatus
	FailureReason    string
	CreatedAt        time.Time
}

// NewCompletedTransaction 组装一笔成功订单的流水。
// 金额从商品当时单价计算，不信任请求侧传入的总价。
func NewCompletedTransaction(clientID string, product *Product, quantity int, taxCents int64, paymentReference, externalChargeID, lastFour string) *Transaction {
	subtotal := product.PriceCents * int64(quantity)
	return &Transaction{
		ID:       uuid.New().String(),
		ClientID: clientID,
		Items: []LineItem{{
			ProductID:      product.ID,
			ProductName:    product.Name,
			Quantity:       quantity,
			UnitPriceCents: product.PriceCents,
		}},
		TotalCents:       subtotal + taxCents,
		TaxCents:         taxCents,
		PaymentReference: paymentReference,
		ExternalChargeID: externalChargeID,
		CardLastFour:     lastFour,
		Status:           TransactionCompleted,
		CreatedAt:        time.Now(),
	}
}

// NewFailedTransaction 记录一笔被拒绝或出错的扣款尝试，保留失败原因供审计。
func NewFailedTransaction(clientID string, product *Product, quantity int, taxCents int64, paymentReference, reason string) *Transaction {
	tx := NewCompletedTransaction(clientID, product, quantity, taxCents, paymentReference, "", "")
	tx.Status = TransactionFailed
	tx.FailureReason = reason
	return tx
}
