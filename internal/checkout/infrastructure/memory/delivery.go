// internal/checkout/infrastructure/memory/delivery.go
package memory

import (
	"context"
	"sort"
	"sync"

	"storefront/internal/checkout/domain"
)

type DeliveryRepository struct {
	mu    sync.Mutex
	byTxn map[string]*domain.Delivery
}

func NewDeliveryRepository() *DeliveryRepository {
	return &DeliveryRepository{byTxn: map[string]*domain.Delivery{}}
}

func (r *DeliveryRepository) Save(ctx context.Context, delivery *domain.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *delivery
	r.byTxn[delivery.TransactionID] = &cp
	return nil
}

func (r *DeliveryRepository) FindByTransactionID(ctx context.Context, transactionID string) (*domain.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delivery, ok := r.byTxn[transactionID]
	if !ok {
		return nil, domain.E(domain.KindValidation, "delivery for transaction %s not found", transactionID)
	}
	cp := *delivery
	return &cp, nil
}

func (r *DeliveryRepository) FindPendingRetry(ctx context.Context, limit int) ([]*domain.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*domain.Delivery
	for _, d := range r.byTxn {
		if d.Status == domain.DeliveryPendingRetry {
			cp := *d
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
