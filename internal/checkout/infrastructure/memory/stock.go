// internal/checkout/infrastructure/memory/stock.go

// Package memory 提供仓储接口的进程内实现，
// 用于单元测试和未配置数据库时的本地开发模式。
// 并发契约与 GORM 实现一致：按商品粒度串行化，不同商品互不阻塞。
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"storefront/internal/checkout/domain"
)

type productEntry struct {
	mu      sync.Mutex
	product domain.Product
}

type StockRepository struct {
	mu           sync.RWMutex
	products     map[string]*productEntry
	reservations sync.Map // reservation id -> *reservationEntry
}

type reservationEntry struct {
	mu          sync.Mutex
	reservation domain.Reservation
}

func NewStockRepository() *StockRepository {
	return &StockRepository{products: map[string]*productEntry{}}
}

// SeedProduct 放入一个商品，测试和开发模式用。
func (r *StockRepository) SeedProduct(p *domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	r.products[p.ID] = &productEntry{product: cp}
}

func (r *StockRepository) entry(id string) (*productEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.products[id]
	return e, ok
}

func (r *StockRepository) FindProduct(ctx context.Context, id string) (*domain.Product, error) {
	e, ok := r.entry(id)
	if !ok {
		return nil, domain.E(domain.KindValidation, "product %s not found", id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := e.product
	return &cp, nil
}

func (r *StockRepository) ListProducts(ctx context.Context, offset, limit int) ([]*domain.Product, int64, error) {
	r.mu.RLock()
	all := make([]*domain.Product, 0, len(r.products))
	for _, e := range r.products {
		e.mu.Lock()
		cp := e.product
		e.mu.Unlock()
		if cp.IsActive && cp.Stock-cp.Reserved > 0 {
			all = append(all, &cp)
		}
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	if offset >= len(all) {
		return []*domain.Product{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r *StockRepository) Reserve(ctx context.Context, productID string, qty int, sagaID string, ttl time.Duration) (*domain.Reservation, error) {
	e, ok := r.entry(productID)
	if !ok {
		return nil, domain.E(domain.KindValidation, "product %s not found", productID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.product.IsActive || e.product.Stock-e.product.Reserved < qty {
		return nil, domain.E(domain.KindInsufficientStock,
			"insufficient stock for product %s: requested %d, available %d",
			productID, qty, e.product.Stock-e.product.Reserved)
	}
	e.product.Reserved += qty

	reservation := domain.NewReservation(productID, qty, sagaID, ttl)
	r.reservations.Store(reservation.ID, &reservationEntry{reservation: *reservation})
	return reservation, nil
}

func (r *StockRepository) Commit(ctx context.Context, reservation *domain.Reservation) error {
	return r.finalize(reservation, domain.ReservationCommitted)
}

func (r *StockRepository) Release(ctx context.Context, reservation *domain.Reservation) error {
	return r.finalize(reservation, domain.ReservationReleased)
}

// finalize 做一次 HELD -> 终态 的条件流转；重复调用是幂等空操作。
func (r *StockRepository) finalize(reservation *domain.Reservation, target domain.ReservationStatus) error {
	raw, ok := r.reservations.Load(reservation.ID)
	if !ok {
		return domain.E(domain.KindInternal, "unknown reservation %s", reservation.ID)
	}
	entry := raw.(*reservationEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.reservation.Status != domain.ReservationHeld {
		reservation.Status = entry.reservation.Status
		return nil
	}

	e, ok := r.entry(entry.reservation.ProductID)
	if !ok {
		return domain.E(domain.KindInternal, "unknown product %s", entry.reservation.ProductID)
	}
	e.mu.Lock()
	e.product.Reserved -= entry.reservation.Quantity
	if target == domain.ReservationCommitted {
		e.product.Stock -= entry.reservation.Quantity
	}
	e.mu.Unlock()

	entry.reservation.Status = target
	reservation.Status = target
	return nil
}

func (r *StockRepository) ReleaseExpired(ctx context.Context, now time.Time) (int, error) {
	released := 0
	r.reservations.Range(func(_, raw interface{}) bool {
		entry := raw.(*reservationEntry)
		entry.mu.Lock()
		expired := entry.reservation.Expired(now)
		cp := entry.reservation
		entry.mu.Unlock()
		if expired {
			if err := r.Release(ctx, &cp); err == nil {
				released++
			}
		}
		return true
	})
	return released, nil
}
