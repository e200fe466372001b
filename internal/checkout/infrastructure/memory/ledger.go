// internal/checkout/infrastructure/memory/ledger.go
package memory

import (
	"context"
	"sort"
	"sync"

	"storefront/internal/checkout/domain"
)

// TransactionRepository 是只追加的内存流水账。
type TransactionRepository struct {
	mu      sync.Mutex
	records []domain.Transaction
	clients domain.ClientRepository
}

// NewTransactionRepository 需要客户仓储来支持按 email 查询。
func NewTransactionRepository(clients domain.ClientRepository) *TransactionRepository {
	return &TransactionRepository{clients: clients}
}

func (r *TransactionRepository) Append(ctx context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *tx
	cp.Items = append([]domain.LineItem(nil), tx.Items...)
	r.records = append(r.records, cp)
	return nil
}

func (r *TransactionRepository) FindByID(ctx context.Context, id string) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.records {
		if r.records[i].ID == id {
			cp := r.records[i]
			return &cp, nil
		}
	}
	return nil, domain.E(domain.KindValidation, "transaction %s not found", id)
}

func (r *TransactionRepository) FindByClientEmail(ctx context.Context, email string) ([]*domain.Transaction, error) {
	client, err := r.clients.FindByEmail(ctx, email)
	if err != nil {
		return []*domain.Transaction{}, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*domain.Transaction
	for i := range r.records {
		if r.records[i].ClientID == client.ID {
			cp := r.records[i]
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if result == nil {
		result = []*domain.Transaction{}
	}
	return result, nil
}

// Count 返回流水总数，测试用。
func (r *TransactionRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
