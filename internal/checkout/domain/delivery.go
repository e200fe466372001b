// internal/checkout/domain/delivery.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

type DeliveryStatus string

const (
	DeliveryRequested    DeliveryStatus = "REQUESTED"     // 行已创建，外部调用未完成
	DeliveryScheduled    DeliveryStatus = "SCHEDULED"     // 配送子系统已受理
	DeliveryPendingRetry DeliveryStatus = "PENDING_RETRY" // 外部调用失败，等待带外重试
)

// Delivery 跟踪向配送子系统的交接。只在 Transaction 到达 COMPLETED 后创建；
// 它的失败不回滚资金和库存，只降级为 PENDING_RETRY。
type Delivery struct {
	ID             string
	TransactionID  string
	Address        string
	City           string
	PostalCode     string
	Name           string
	Phone          string
	Status         DeliveryStatus
	ExternalID     string
	TrackingNumber string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewDelivery(transactionID, address, city, postalCode, name, phone string) *Delivery {
	now := time.Now()
	return &Delivery{
		ID:            uuid.New().String(),
		TransactionID: transactionID,
		Address:       address,
		City:          city,
		PostalCode:    postalCode,
		Name:          name,
		Phone:         phone,
		Status:        DeliveryRequested,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// MarkScheduled 记录配送子系统的受理结果。
func (d *Delivery) MarkScheduled(externalID string) {
	d.Status = DeliveryScheduled
	d.ExternalID = externalID
	d.UpdatedAt = time.Now()
}

// MarkPendingRetry 把失败的交接降级为可重试状态。
func (d *Delivery) MarkPendingRetry() {
	d.Status = DeliveryPendingRetry
	d.UpdatedAt = time.Now()
}
