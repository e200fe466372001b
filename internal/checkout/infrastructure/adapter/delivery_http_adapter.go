// internal/checkout/infrastructure/adapter/delivery_http_adapter.go
package adapter

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"storefront/internal/checkout/domain"
	"storefront/internal/checkout/domain/port"
	"storefront/internal/pkg/httpclient"
)

// DeliveryHTTPAdapter 实现 port.DeliveryScheduler。
// 配送子系统的内部逻辑不在本服务范围内，这里只实现 create 契约。
type DeliveryHTTPAdapter struct {
	client  *httpclient.Client
	tracer  trace.Tracer
	baseURL string
	timeout time.Duration
}

func NewDeliveryHTTPAdapter(client *httpclient.Client, tracer trace.Tracer, baseURL string, timeout time.Duration) *DeliveryHTTPAdapter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DeliveryHTTPAdapter{client: client, tracer: tracer, baseURL: baseURL, timeout: timeout}
}

type createDeliveryPayload struct {
	TransactionID   string `json:"transaction_id"`
	DeliveryAddress string `json:"delivery_address"`
	City            string `json:"city"`
	PostalCode      string `json:"postal_code"`
	Name            string `json:"name"`
	Phone           string `json:"phone"`
}

type createDeliveryResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (a *DeliveryHTTPAdapter) CreateDelivery(ctx context.Context, req *port.DeliveryRequest) (string, error) {
	ctx, span := a.tracer.Start(ctx, "delivery.Create")
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	payload := &createDeliveryPayload{
		TransactionID:   req.TransactionID,
		DeliveryAddress: req.Address,
		City:            req.City,
		PostalCode:      req.PostalCode,
		Name:            req.Name,
		Phone:           req.Phone,
	}
	var resp createDeliveryResponse
	status, err := a.client.DoJSON(callCtx, http.MethodPost, a.baseURL+"/deliveries", nil, payload, &resp)
	if err != nil {
		span.RecordError(err)
		return "", domain.WrapE(domain.KindDeliveryCreation, err, "create delivery for transaction %s", req.TransactionID)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return "", domain.E(domain.KindDeliveryCreation, "delivery service returned status %d for transaction %s", status, req.TransactionID)
	}
	return resp.Data.ID, nil
}
