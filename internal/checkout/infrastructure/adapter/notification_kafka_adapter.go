// internal/checkout/infrastructure/adapter/notification_kafka_adapter.go
package adapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"storefront/internal/checkout/domain"
	"storefront/internal/pkg/mq"
)

// NotificationKafkaAdapter 实现了 port.NotificationProducer 接口。
type NotificationKafkaAdapter struct {
	writer *kafka.Writer
}

// NewNotificationKafkaAdapter 创建一个新的通知生产者适配器。
func NewNotificationKafkaAdapter(writer *kafka.Writer) *NotificationKafkaAdapter {
	return &NotificationKafkaAdapter{writer: writer}
}

type orderNotificationEvent struct {
	TransactionID string `json:"transactionId"`
	ClientID      string `json:"clientId"`
	Status        string `json:"status"`
	TotalCents    int64  `json:"totalCents"`
	Reason        string `json:"reason,omitempty"`
}

// SendOrderCompleted 广播订单完成事件。
func (a *NotificationKafkaAdapter) SendOrderCompleted(ctx context.Context, tx *domain.Transaction) error {
	return a.send(ctx, tx)
}

// SendOrderFailed 广播订单失败事件，携带失败原因。
func (a *NotificationKafkaAdapter) SendOrderFailed(ctx context.Context, tx *domain.Transaction) error {
	return a.send(ctx, tx)
}

func (a *NotificationKafkaAdapter) send(ctx context.Context, tx *domain.Transaction) error {
	event := orderNotificationEvent{
		TransactionID: tx.ID,
		ClientID:      tx.ClientID,
		Status:        string(tx.Status),
		TotalCents:    tx.TotalCents,
		Reason:        tx.FailureReason,
	}
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order notification event: %w", err)
	}
	// mq.ProduceMessage 会自动处理追踪上下文注入
	return mq.ProduceMessage(ctx, a.writer, []byte(tx.ClientID), eventBytes)
}

// Close 关闭底层的 Kafka writer。
func (a *NotificationKafkaAdapter) Close() error {
	return a.writer.Close()
}
