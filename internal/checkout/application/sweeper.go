// internal/checkout/application/sweeper.go
package application

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"storefront/internal/checkout/domain"
	"storefront/internal/checkout/domain/port"
	"storefront/internal/pkg/logger"
)

const pendingRetryBatch = 50

// Sweeper 是后台维护循环，兜住两类悬挂状态：
//  1. 过期的 HELD 预占（调用方崩溃、结局未知的扣款），释放回可售池；
//  2. PENDING_RETRY 的配送交接，重新向配送子系统发起创建。
type Sweeper struct {
	stock      domain.StockRepository
	deliveries domain.DeliveryRepository
	scheduler  port.DeliveryScheduler
	interval   time.Duration
}

func NewSweeper(stock domain.StockRepository, deliveries domain.DeliveryRepository, scheduler port.DeliveryScheduler, interval time.Duration) *Sweeper {
	return &Sweeper{stock: stock, deliveries: deliveries, scheduler: scheduler, interval: interval}
}

// Run 阻塞执行，ctx 取消即退出。作为 bootstrap Runner 挂载。
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Ctx(ctx).Info().Dur("interval", s.interval).Msg("maintenance sweeper started")
	for {
		select {
		case <-ctx.Done():
			logger.Ctx(ctx).Info().Msg("maintenance sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.releaseExpiredReservations(gctx)
		return nil
	})
	g.Go(func() error {
		s.retryPendingDeliveries(gctx)
		return nil
	})
	_ = g.Wait()
}

func (s *Sweeper) releaseExpiredReservations(ctx context.Context) {
	released, err := s.stock.ReleaseExpired(ctx, time.Now())
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("failed to release expired reservations")
		return
	}
	if released > 0 {
		logger.Ctx(ctx).Info().Int("released", released).Msg("expired reservations released")
	}
}

func (s *Sweeper) retryPendingDeliveries(ctx context.Context) {
	pending, err := s.deliveries.FindPendingRetry(ctx, pendingRetryBatch)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("failed to load deliveries pending retry")
		return
	}
	for _, delivery := range pending {
		externalID, err := s.scheduler.CreateDelivery(ctx, &port.DeliveryRequest{
			TransactionID: delivery.TransactionID,
			Address:       delivery.Address,
			City:          delivery.City,
			PostalCode:    delivery.PostalCode,
			Name:          delivery.Name,
			Phone:         delivery.Phone,
		})
		if err != nil {
			// 留在 PENDING_RETRY，下一轮继续
			logger.Ctx(ctx).Warn().Err(err).
				Str("transaction_id", delivery.TransactionID).
				Msg("delivery retry failed, will retry next sweep")
			continue
		}
		delivery.MarkScheduled(externalID)
		if err := s.deliveries.Save(ctx, delivery); err != nil {
			logger.Ctx(ctx).Error().Err(err).
				Str("transaction_id", delivery.TransactionID).
				Msg("failed to persist rescheduled delivery")
			continue
		}
		logger.Ctx(ctx).Info().
			Str("transaction_id", delivery.TransactionID).
			Str("external_id", externalID).
			Msg("pending delivery rescheduled")
	}
}
