package adapter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"storefront/internal/checkout/domain"
	"storefront/internal/checkout/domain/port"
	"storefront/internal/pkg/httpclient"
)

func newTestAdapter(apiURL string) *PaymentHTTPAdapter {
	tracer := otel.Tracer("payment-adapter-test")
	a := NewPaymentHTTPAdapter(httpclient.NewClient(tracer), tracer, PaymentConfig{
		APIURL:          apiURL,
		PublicKey:       "pub-test-key",
		PrivateKey:      "prv-test-key",
		IntegritySecret: "integrity-secret",
		Currency:        "COP",
		Timeout:         2 * time.Second,
		MaxAttempts:     3,
	})
	a.backoffBase = time.Millisecond
	return a
}

func testCard() port.Card {
	return port.Card{Number: "4242 4242 4242 4242", ExpMonth: "12", ExpYear: "29", CVC: "123", Holder: "JANE BUYER"}
}

func fullConsent() port.Consent {
	return port.Consent{TermsAccepted: true, DataProcessingAccepted: true}
}

func TestTokenizeInstrument(t *testing.T) {
	var tokenizeBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/merchants/pub-test-key":
			assert.Equal(t, "Bearer pub-test-key", r.Header.Get("Authorization"))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]interface{}{
					"presigned_acceptance":         map[string]string{"acceptance_token": "acc-token"},
					"presigned_personal_data_auth": map[string]string{"acceptance_token": "auth-token"},
				},
			})
		case "/tokens/cards":
			assert.Equal(t, "Bearer pub-test-key", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&tokenizeBody))
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]string{"id": "tok-abc", "last_four": "4242"},
			})
		default:
			t.Errorf("unexpected request to %s", r.URL.Path)
		}
	}))
	defer server.Close()

	a := newTestAdapter(server.URL)
	token, err := a.TokenizeInstrument(context.Background(), testCard(), fullConsent())
	require.NoError(t, err)

	assert.Equal(t, "tok-abc", token.Token)
	assert.Equal(t, "4242", token.LastFour)
	assert.Equal(t, "acc-token", token.AcceptanceToken)
	assert.Equal(t, "auth-token", token.PersonalAuthToken)
	assert.Equal(t, "4242424242424242", tokenizeBody["number"], "card number is sent without spaces")
}

func TestTokenizeInstrumentRejectsMissingConsentBeforeAnyCall(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	a := newTestAdapter(server.URL)
	_, err := a.TokenizeInstrument(context.Background(), testCard(), port.Consent{TermsAccepted: true})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindConsentRequired))
	assert.Zero(t, atomic.LoadInt32(&calls), "consent is checked before any network call")
}

func chargeRequest(reference string) *port.ChargeRequest {
	return &port.ChargeRequest{
		Reference:     reference,
		AmountCents:   519000,
		Installments:  1,
		Instrument:    port.InstrumentToken{Token: "tok-abc", AcceptanceToken: "acc-token", PersonalAuthToken: "auth-token"},
		CustomerEmail: "buyer@example.com",
		CustomerName:  "Jane Buyer",
	}
}

func TestChargeApprovedCarriesIntegritySignature(t *testing.T) {
	var payload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions", r.URL.Path)
		assert.Equal(t, "Bearer prv-test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]string{"id": "charge-1", "status": "APPROVED"},
		})
	}))
	defer server.Close()

	a := newTestAdapter(server.URL)
	result, err := a.Charge(context.Background(), chargeRequest("ORD-TEST123"))
	require.NoError(t, err)

	assert.Equal(t, port.ChargeApproved, result.Status)
	assert.Equal(t, "charge-1", result.ExternalID)

	sum := sha256.Sum256([]byte("ORD-TEST123" + strconv.Itoa(519000) + "COP" + "integrity-secret"))
	assert.Equal(t, hex.EncodeToString(sum[:]), payload["signature"])
	assert.Equal(t, "ORD-TEST123", payload["reference"])
}

func TestChargeRetriesTransientFailuresWithSameReference(t *testing.T) {
	var calls int32
	references := make(chan string, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		references <- body["reference"].(string)
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]string{"id": "charge-1", "status": "APPROVED"},
		})
	}))
	defer server.Close()

	a := newTestAdapter(server.URL)
	result, err := a.Charge(context.Background(), chargeRequest("ORD-TEST123"))
	require.NoError(t, err)
	assert.Equal(t, port.ChargeApproved, result.Status)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	close(references)
	for ref := range references {
		assert.Equal(t, "ORD-TEST123", ref, "retries reuse the idempotency reference")
	}
}

func TestChargeRejectionIsTerminal(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	a := newTestAdapter(server.URL)
	_, err := a.Charge(context.Background(), chargeRequest("ORD-TEST123"))
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindGateway))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "validation rejections are not retried")
}

func TestChargeTimeoutIsAmbiguousNotFailed(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	a := newTestAdapter(server.URL)
	a.cfg.Timeout = 50 * time.Millisecond

	_, err := a.Charge(context.Background(), chargeRequest("ORD-TEST123"))
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindChargeAmbiguous),
		"a timed-out submission has an unknown outcome, it must not be reported as failed")
}

func TestQueryStatusFindsChargeByReference(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions", r.URL.Path)
		assert.Equal(t, "ORD-TEST123", r.URL.Query().Get("reference"))
		assert.Equal(t, "Bearer prv-test-key", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]string{{"id": "charge-1", "status": "APPROVED"}},
		})
	}))
	defer server.Close()

	a := newTestAdapter(server.URL)
	result, err := a.QueryStatus(context.Background(), "ORD-TEST123")
	require.NoError(t, err)
	assert.Equal(t, port.ChargeApproved, result.Status)
	assert.Equal(t, "charge-1", result.ExternalID)
}

func TestQueryStatusUnknownReferenceMeansNeverCaptured(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"data": []interface{}{}})
	}))
	defer server.Close()

	a := newTestAdapter(server.URL)
	_, err := a.QueryStatus(context.Background(), "ORD-UNKNOWN")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindChargeDeclined))
}
