// internal/checkout/infrastructure/idempotency/store.go
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store 基于 Redis SetNX 的去重表，用于拦截 HTTP 层的重放请求。
// 这是网关侧扣款幂等键之外的第一道防线：同一个 Idempotency-Key
// 的重复提交在进入 Saga 之前就被挡掉。
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Key(requestKey string) string {
	return fmt.Sprintf("idem:checkout:%s", requestKey)
}

// Seen 原子地登记 key 并返回它此前是否出现过。
func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}
