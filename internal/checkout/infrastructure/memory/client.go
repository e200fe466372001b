// internal/checkout/infrastructure/memory/client.go
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"storefront/internal/checkout/domain"
)

// ClientRepository 用一把互斥锁模拟数据库的 email 唯一索引：
// 并发 Resolve 同一个未见过的 email 只会产生一行。
type ClientRepository struct {
	mu      sync.Mutex
	byEmail map[string]*domain.Client
}

func NewClientRepository() *ClientRepository {
	return &ClientRepository{byEmail: map[string]*domain.Client{}}
}

func (r *ClientRepository) Resolve(ctx context.Context, email string, profile domain.ClientProfile) (*domain.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byEmail[email]; ok {
		cp := *existing
		return &cp, nil
	}
	client := &domain.Client{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      profile.Name,
		Phone:     profile.Phone,
		Address:   profile.Address,
		CreatedAt: time.Now(),
	}
	r.byEmail[email] = client
	cp := *client
	return &cp, nil
}

func (r *ClientRepository) FindByEmail(ctx context.Context, email string) (*domain.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	client, ok := r.byEmail[email]
	if !ok {
		return nil, domain.E(domain.KindValidation, "client %s not found", email)
	}
	cp := *client
	return &cp, nil
}

// Count 返回档案总数，测试用。
func (r *ClientRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byEmail)
}
