package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProduct() *Product {
	return &Product{
		ID:         "product-1",
		Name:       "Mechanical Keyboard",
		PriceCents: 250000,
		Stock:      10,
		IsActive:   true,
	}
}

func TestNewCompletedTransactionComputesTotalFromUnitPrice(t *testing.T) {
	tx := NewCompletedTransaction("client-1", testProduct(), 3, 19000, "ORD-ABC", "charge-1", "4242")

	assert.Equal(t, TransactionCompleted, tx.Status)
	assert.Equal(t, int64(250000*3+19000), tx.TotalCents)
	assert.Equal(t, int64(19000), tx.TaxCents)
	assert.Equal(t, "charge-1", tx.ExternalChargeID)
	assert.Equal(t, "4242", tx.CardLastFour)

	require.Len(t, tx.Items, 1)
	assert.Equal(t, "product-1", tx.Items[0].ProductID)
	assert.Equal(t, int64(250000), tx.Items[0].UnitPriceCents, "unit price is frozen at purchase time")
	assert.Equal(t, 3, tx.Items[0].Quantity)
}

func TestNewFailedTransactionKeepsReason(t *testing.T) {
	tx := NewFailedTransaction("client-1", testProduct(), 1, 0, "ORD-ABC", "card declined")

	assert.Equal(t, TransactionFailed, tx.Status)
	assert.Equal(t, "card declined", tx.FailureReason)
	assert.Empty(t, tx.ExternalChargeID)
	assert.Equal(t, int64(250000), tx.TotalCents)
}

func TestErrorKindMapping(t *testing.T) {
	base := E(KindInsufficientStock, "only %d left", 2)
	wrapped := WrapE(KindInternal, base, "reserve failed")

	assert.Equal(t, KindInsufficientStock, KindOf(base))
	assert.True(t, IsKind(base, KindInsufficientStock))
	// 外层分类优先，内层仍可通过 Unwrap 访问
	assert.Equal(t, KindInternal, KindOf(wrapped))
	assert.ErrorIs(t, wrapped, base)
}
