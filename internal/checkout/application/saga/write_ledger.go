// internal/checkout/application/saga/write_ledger.go
package saga

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"storefront/internal/checkout/domain"
	"storefront/internal/pkg/logger"
)

// WriteLedgerHandler 把成交流水原子落库（Transaction + LineItem 一笔写入）。
type WriteLedgerHandler struct {
	NextHandler
}

func (h *WriteLedgerHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.WriteLedger")
	defer span.End()

	fmt.Println("【Saga】=> 步骤 6: 写入交易流水...")

	tx := domain.NewCompletedTransaction(
		orderCtx.Client.ID,
		orderCtx.Product,
		orderCtx.Quantity,
		orderCtx.TaxCents,
		orderCtx.Reservation.PaymentReference(),
		orderCtx.ChargeResult.ExternalID,
		orderCtx.Instrument.LastFour,
	)

	err := retryLocal(ctx, 5, 100*time.Millisecond, func() error {
		return orderCtx.Ledger.Append(ctx, tx)
	})
	if err != nil {
		// 资金已扣、库存已提交、流水缺失：最严重的不一致，必须人工补录
		span.RecordError(err)
		span.SetStatus(codes.Error, "Ledger append failed after retries")
		logger.Ctx(ctx).Error().Err(err).
			Str("saga_id", orderCtx.SagaID).
			Str("payment_reference", tx.PaymentReference).
			Str("external_charge_id", tx.ExternalChargeID).
			Msg("CRITICAL: charge approved and stock committed but ledger append failed, manual reconciliation required")
		return domain.WrapE(domain.KindInternal, err, "append transaction after approved charge")
	}

	orderCtx.Transaction = tx
	orderCtx.setState(domain.StateLedgerWritten)

	span.SetAttributes(attribute.String("transaction.id", tx.ID))
	span.AddEvent("Transaction appended to ledger.")
	return h.executeNext(orderCtx)
}
