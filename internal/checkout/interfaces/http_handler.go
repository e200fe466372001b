// internal/checkout/interfaces/http_handler.go
package interfaces

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"

	"storefront/internal/checkout/application"
	"storefront/internal/checkout/domain"
	"storefront/internal/checkout/infrastructure/idempotency"
	"storefront/internal/pkg/logger"
)

const serviceName = "checkout-service"

// CheckoutHandler 封装 checkout 服务的 HTTP 处理器
type CheckoutHandler struct {
	service *application.CheckoutService
	idem    *idempotency.Store // 可为 nil，此时不做 HTTP 层去重
}

// NewCheckoutHandler 创建一个新的 HTTP 处理器实例
func NewCheckoutHandler(service *application.CheckoutService, idem *idempotency.Store) *CheckoutHandler {
	return &CheckoutHandler{service: service, idem: idem}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *CheckoutHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/checkout", h.createOrderHandler)
	mux.HandleFunc("/orders", h.listOrdersHandler)
	mux.HandleFunc("/orders/", h.getOrderHandler)
	mux.HandleFunc("/products", h.listProductsHandler)
}

type transactionResponse struct {
	ID               string             `json:"id"`
	Status           string             `json:"status"`
	TotalCents       int64              `json:"total_cents"`
	TaxCents         int64              `json:"tax_cents"`
	PaymentReference string             `json:"payment_reference"`
	CardLastFour     string             `json:"card_last_four,omitempty"`
	FailureReason    string             `json:"failure_reason,omitempty"`
	Items            []lineItemResponse `json:"items"`
	CreatedAt        string             `json:"created_at"`
}

type lineItemResponse struct {
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type errorResponse struct {
	Error       string               `json:"error"`
	Kind        string               `json:"kind"`
	Transaction *transactionResponse `json:"transaction,omitempty"`
}

func toTransactionResponse(tx *domain.Transaction) *transactionResponse {
	items := make([]lineItemResponse, 0, len(tx.Items))
	for _, item := range tx.Items {
		items = append(items, lineItemResponse{
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	return &transactionResponse{
		ID:               tx.ID,
		Status:           string(tx.Status),
		TotalCents:       tx.TotalCents,
		TaxCents:         tx.TaxCents,
		PaymentReference: tx.PaymentReference,
		CardLastFour:     tx.CardLastFour,
		FailureReason:    tx.FailureReason,
		Items:            items,
		CreatedAt:        tx.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (h *CheckoutHandler) createOrderHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	tracer := otel.Tracer(serviceName)
	ctx, span := tracer.Start(ctx, "api.CreateOrder")
	defer span.End()

	// HTTP 层重放拦截：客户端带了 Idempotency-Key 就启用
	if key := r.Header.Get("Idempotency-Key"); key != "" && h.idem != nil {
		seen, err := h.idem.Seen(ctx, h.idem.Key(key))
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("idempotency check unavailable, proceeding without it")
		} else if seen {
			span.SetAttributes(attribute.Bool("request.duplicate", true))
			writeError(w, http.StatusConflict, domain.E(domain.KindValidation, "duplicate request for idempotency key %s", key), nil)
			return
		}
	}

	var req application.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, domain.WrapE(domain.KindValidation, err, "malformed request body"), nil)
		return
	}

	tx, err := h.service.CreateOrder(ctx, &req)
	if err != nil {
		writeError(w, statusForKind(domain.KindOf(err)), err, tx)
		return
	}

	span.SetAttributes(attribute.String("transaction.id", tx.ID))
	writeJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

func (h *CheckoutHandler) getOrderHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	id := strings.TrimPrefix(r.URL.Path, "/orders/")
	if id == "" {
		http.Error(w, "order id is required", http.StatusBadRequest)
		return
	}

	tx, err := h.service.GetOrderByID(ctx, id)
	if err != nil {
		status := http.StatusInternalServerError
		if domain.IsKind(err, domain.KindValidation) {
			status = http.StatusNotFound
		}
		writeError(w, status, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}

func (h *CheckoutHandler) listOrdersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	email := r.URL.Query().Get("email")
	if email == "" {
		http.Error(w, "email query parameter is required", http.StatusBadRequest)
		return
	}

	txs, err := h.service.GetOrdersByClient(ctx, email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, nil)
		return
	}
	resp := make([]*transactionResponse, 0, len(txs))
	for _, tx := range txs {
		resp = append(resp, toTransactionResponse(tx))
	}
	writeJSON(w, http.StatusOK, resp)
}

type productResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	Available   int    `json:"available"`
}

func (h *CheckoutHandler) listProductsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	products, total, err := h.service.ListProducts(ctx, offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, nil)
		return
	}
	items := make([]productResponse, 0, len(products))
	for _, p := range products {
		items = append(items, productResponse{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			PriceCents:  p.PriceCents,
			Available:   p.Available(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": items, "total": total})
}

// statusForKind 把领域错误分类映射到 HTTP 状态码。
// 扣款被拒是业务终态而非服务端故障，用 402 区别于 5xx。
func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation, domain.KindConsentRequired:
		return http.StatusUnprocessableEntity
	case domain.KindInsufficientStock:
		return http.StatusConflict
	case domain.KindChargeDeclined:
		return http.StatusPaymentRequired
	case domain.KindClientResolution:
		return http.StatusServiceUnavailable
	case domain.KindInstrumentTokenization, domain.KindGateway, domain.KindChargeAmbiguous:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError 在扣款被拒时把 FAILED 流水一并返回，调用方能拿到审计记录。
func writeError(w http.ResponseWriter, status int, err error, tx *domain.Transaction) {
	resp := errorResponse{Error: err.Error(), Kind: string(domain.KindOf(err))}
	if tx != nil {
		resp.Transaction = toTransactionResponse(tx)
	}
	writeJSON(w, status, resp)
}
