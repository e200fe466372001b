package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/checkout/domain"
)

func seedRepo(stock int) *StockRepository {
	repo := NewStockRepository()
	repo.SeedProduct(&domain.Product{
		ID:         "product-1",
		Name:       "Mechanical Keyboard",
		PriceCents: 250000,
		Stock:      stock,
		IsActive:   true,
	})
	return repo
}

func TestReserveDecrementsAvailability(t *testing.T) {
	repo := seedRepo(10)
	ctx := context.Background()

	res, err := repo.Reserve(ctx, "product-1", 4, "saga-1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationHeld, res.Status)

	p, err := repo.FindProduct(ctx, "product-1")
	require.NoError(t, err)
	assert.Equal(t, 6, p.Available())
	assert.Equal(t, 10, p.Stock, "stock only drops on commit")
}

func TestReserveFailsWithoutSideEffectsWhenInsufficient(t *testing.T) {
	repo := seedRepo(3)
	ctx := context.Background()

	_, err := repo.Reserve(ctx, "product-1", 5, "saga-1", time.Minute)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindInsufficientStock))

	p, err := repo.FindProduct(ctx, "product-1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Available(), "failed reservation must not hold anything")
}

// 并发预占绝不超卖：成功的预占总量不超过库存。
func TestConcurrentReserveNeverOversells(t *testing.T) {
	const stock = 50
	repo := seedRepo(stock)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Reserve(ctx, "product-1", 1, "saga", time.Minute); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, stock, succeeded)
	p, err := repo.FindProduct(ctx, "product-1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Available())
	assert.Equal(t, stock, p.Stock)
}

func TestCommitIsIdempotent(t *testing.T) {
	repo := seedRepo(10)
	ctx := context.Background()

	res, err := repo.Reserve(ctx, "product-1", 4, "saga-1", time.Minute)
	require.NoError(t, err)

	require.NoError(t, repo.Commit(ctx, res))
	require.NoError(t, repo.Commit(ctx, res), "second commit is a no-op")

	p, err := repo.FindProduct(ctx, "product-1")
	require.NoError(t, err)
	assert.Equal(t, 6, p.Stock, "stock decremented exactly once")
	assert.Equal(t, 0, p.Reserved)
	assert.Equal(t, domain.ReservationCommitted, res.Status)
}

func TestReleaseAfterCommitDoesNothing(t *testing.T) {
	repo := seedRepo(10)
	ctx := context.Background()

	res, err := repo.Reserve(ctx, "product-1", 2, "saga-1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, repo.Commit(ctx, res))

	// 预占已终结，Release 不得把已售出的份额退回
	require.NoError(t, repo.Release(ctx, res))

	p, err := repo.FindProduct(ctx, "product-1")
	require.NoError(t, err)
	assert.Equal(t, 8, p.Stock)
	assert.Equal(t, 0, p.Reserved)
	assert.Equal(t, domain.ReservationCommitted, res.Status)
}

func TestReleaseExpiredSweepsOnlyExpiredHeld(t *testing.T) {
	repo := seedRepo(10)
	ctx := context.Background()

	_, err := repo.Reserve(ctx, "product-1", 3, "saga-1", -time.Second)
	require.NoError(t, err)

	_, err = repo.Reserve(ctx, "product-1", 2, "saga-2", time.Hour)
	require.NoError(t, err)

	released, err := repo.ReleaseExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	p, err := repo.FindProduct(ctx, "product-1")
	require.NoError(t, err)
	assert.Equal(t, 8, p.Available(), "fresh reservation still held")
}

func TestConcurrentResolveCreatesSingleClient(t *testing.T) {
	repo := NewClientRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make(chan string, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client, err := repo.Resolve(ctx, "buyer@example.com", domain.ClientProfile{Name: "Buyer"})
			if err == nil {
				ids <- client.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	assert.Equal(t, 1, repo.Count())
	var first string
	for id := range ids {
		if first == "" {
			first = id
		}
		assert.Equal(t, first, id, "every resolve must land on the same row")
	}
}

func TestLedgerFindByClientEmail(t *testing.T) {
	clients := NewClientRepository()
	ledger := NewTransactionRepository(clients)
	ctx := context.Background()

	client, err := clients.Resolve(ctx, "buyer@example.com", domain.ClientProfile{Name: "Buyer"})
	require.NoError(t, err)

	product := &domain.Product{ID: "product-1", Name: "Keyboard", PriceCents: 100}
	older := domain.NewCompletedTransaction(client.ID, product, 1, 0, "ORD-A", "ch-1", "4242")
	older.CreatedAt = older.CreatedAt.Add(-time.Hour)
	newer := domain.NewCompletedTransaction(client.ID, product, 2, 0, "ORD-B", "ch-2", "4242")
	require.NoError(t, ledger.Append(ctx, older))
	require.NoError(t, ledger.Append(ctx, newer))

	txs, err := ledger.FindByClientEmail(ctx, "buyer@example.com")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, newer.ID, txs[0].ID, "newest first")

	// 未知 email 返回空列表而不是错误
	empty, err := ledger.FindByClientEmail(ctx, "stranger@example.com")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
