// internal/checkout/domain/reservation.go
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReservationStatus 的流转是单向的：HELD 之后恰好进入
// COMMITTED 和 RELEASED 中的一个，不会两者都发生。
type ReservationStatus string

const (
	ReservationHeld      ReservationStatus = "HELD"
	ReservationCommitted ReservationStatus = "COMMITTED"
	ReservationReleased  ReservationStatus = "RELEASED"
)

// Reservation 表示一次在途 Saga 临时持有的库存。
type Reservation struct {
	ID        string
	ProductID string
	Quantity  int
	SagaID    string
	Status    ReservationStatus
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewReservation 创建一个带过期时间的预占。过期兜底后台清扫，
// 防止崩溃的 Saga 永久占用库存。
func NewReservation(productID string, quantity int, sagaID string, ttl time.Duration) *Reservation {
	now := time.Now()
	return &Reservation{
		ID:        uuid.New().String(),
		ProductID: productID,
		Quantity:  quantity,
		SagaID:    sagaID,
		Status:    ReservationHeld,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

// Expired 判断一个从未被 commit 的预占是否已过期。
func (r *Reservation) Expired(now time.Time) bool {
	return r.Status == ReservationHeld && now.After(r.ExpiresAt)
}

// PaymentReference 从预占确定性地派生扣款幂等键：
// 同一次 Saga 的所有重试共享同一个 reference，不同订单之间不会碰撞，
// 因此网关侧的传输重试永远不会产生第二笔扣款。
func (r *Reservation) PaymentReference() string {
	sum := sha256.Sum256([]byte(r.ID))
	return "ORD-" + strings.ToUpper(hex.EncodeToString(sum[:])[:12])
}
