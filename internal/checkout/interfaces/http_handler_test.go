package interfaces

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/checkout/domain"
)

func TestStatusForKind(t *testing.T) {
	cases := map[domain.ErrorKind]int{
		domain.KindValidation:             http.StatusUnprocessableEntity,
		domain.KindConsentRequired:        http.StatusUnprocessableEntity,
		domain.KindInsufficientStock:      http.StatusConflict,
		domain.KindChargeDeclined:         http.StatusPaymentRequired,
		domain.KindClientResolution:       http.StatusServiceUnavailable,
		domain.KindInstrumentTokenization: http.StatusBadGateway,
		domain.KindGateway:                http.StatusBadGateway,
		domain.KindChargeAmbiguous:        http.StatusBadGateway,
		domain.KindInternal:               http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, statusForKind(kind), "kind %s", kind)
	}
}

func TestWriteErrorIncludesFailedTransaction(t *testing.T) {
	rec := httptest.NewRecorder()
	product := &domain.Product{ID: "product-1", Name: "Keyboard", PriceCents: 100}
	failed := domain.NewFailedTransaction("client-1", product, 1, 0, "ORD-ABC", "card declined")

	writeError(rec, http.StatusPaymentRequired, domain.E(domain.KindChargeDeclined, "charge declined"), failed)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(domain.KindChargeDeclined), body.Kind)
	require.NotNil(t, body.Transaction, "the audit record rides along with the rejection")
	assert.Equal(t, "FAILED", body.Transaction.Status)
	assert.Equal(t, "card declined", body.Transaction.FailureReason)
}

func TestCreateOrderRejectsMalformedBody(t *testing.T) {
	h := NewCheckoutHandler(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader("{not json"))

	h.createOrderHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(domain.KindValidation), body.Kind)
}

func TestCreateOrderRejectsWrongMethod(t *testing.T) {
	h := NewCheckoutHandler(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/checkout", nil)

	h.createOrderHandler(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
