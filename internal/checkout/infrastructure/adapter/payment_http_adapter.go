// internal/checkout/infrastructure/adapter/payment_http_adapter.go
package adapter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/checkout/domain"
	"storefront/internal/checkout/domain/port"
	"storefront/internal/pkg/httpclient"
	"storefront/internal/pkg/logger"
)

// PaymentConfig 是支付网关客户端的全部外部配置。
type PaymentConfig struct {
	APIURL          string
	PublicKey       string
	PrivateKey      string
	IntegritySecret string
	Currency        string
	Timeout         time.Duration
	MaxAttempts     int
}

// PaymentHTTPAdapter 实现 port.PaymentGateway。
// 网关协议：商户同意令牌端点、卡 tokenization 端点、扣款端点、状态查询端点，
// 均为 Bearer 认证；扣款签名 = sha256(reference ∥ amountCents ∥ currency ∥ integritySecret)。
type PaymentHTTPAdapter struct {
	client *httpclient.Client
	tracer trace.Tracer
	cfg    PaymentConfig

	backoffBase time.Duration
}

func NewPaymentHTTPAdapter(client *httpclient.Client, tracer trace.Tracer, cfg PaymentConfig) *PaymentHTTPAdapter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &PaymentHTTPAdapter{
		client:      client,
		tracer:      tracer,
		cfg:         cfg,
		backoffBase: 200 * time.Millisecond,
	}
}

type merchantResponse struct {
	Data struct {
		PresignedAcceptance struct {
			AcceptanceToken string `json:"acceptance_token"`
		} `json:"presigned_acceptance"`
		PresignedPersonalDataAuth struct {
			AcceptanceToken string `json:"acceptance_token"`
		} `json:"presigned_personal_data_auth"`
	} `json:"data"`
}

type tokenCardResponse struct {
	Data struct {
		ID       string `json:"id"`
		LastFour string `json:"last_four"`
	} `json:"data"`
}

type chargePayload struct {
	AcceptanceToken    string `json:"acceptance_token"`
	AcceptPersonalAuth string `json:"accept_personal_auth"`
	AmountInCents      int64  `json:"amount_in_cents"`
	Currency           string `json:"currency"`
	CustomerEmail      string `json:"customer_email"`
	Reference          string `json:"reference"`
	Signature          string `json:"signature"`
	PaymentMethod      struct {
		Type         string `json:"type"`
		Token        string `json:"token"`
		Installments int    `json:"installments"`
	} `json:"payment_method"`
	CustomerData struct {
		FullName    string `json:"full_name"`
		PhoneNumber string `json:"phone_number"`
	} `json:"customer_data"`
	ShippingAddress struct {
		AddressLine1 string `json:"address_line_1"`
		Country      string `json:"country"`
		Region       string `json:"region"`
		City         string `json:"city"`
		Name         string `json:"name"`
		PhoneNumber  string `json:"phone_number"`
		PostalCode   string `json:"postal_code"`
	} `json:"shipping_address"`
}

type chargeData struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	StatusMessage string `json:"status_message"`
}

type chargeResponse struct {
	Data chargeData `json:"data"`
}

type chargeListResponse struct {
	Data []chargeData `json:"data"`
}

// TokenizeInstrument 先校验同意项（任何网络调用之前），
// 再取商户预签令牌，最后把卡面信息换成网关 token。
func (a *PaymentHTTPAdapter) TokenizeInstrument(ctx context.Context, card port.Card, consent port.Consent) (*port.InstrumentToken, error) {
	ctx, span := a.tracer.Start(ctx, "gateway.TokenizeInstrument")
	defer span.End()

	if !consent.TermsAccepted || !consent.DataProcessingAccepted {
		err := domain.E(domain.KindConsentRequired, "terms and data processing consent are required before tokenizing a card")
		span.RecordError(err)
		span.SetStatus(codes.Error, "consent missing")
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	var merchant merchantResponse
	status, err := a.client.DoJSON(callCtx, http.MethodGet,
		a.cfg.APIURL+"/merchants/"+a.cfg.PublicKey, a.bearer(a.cfg.PublicKey), nil, &merchant)
	if err != nil {
		span.RecordError(err)
		return nil, domain.WrapE(domain.KindInstrumentTokenization, err, "fetch merchant acceptance tokens")
	}
	if status != http.StatusOK {
		return nil, domain.E(domain.KindInstrumentTokenization, "merchant endpoint returned status %d", status)
	}

	tokenReq := map[string]string{
		"number":      strings.ReplaceAll(card.Number, " ", ""),
		"cvc":         card.CVC,
		"exp_month":   card.ExpMonth,
		"exp_year":    card.ExpYear,
		"card_holder": card.Holder,
	}
	var token tokenCardResponse
	status, err = a.client.DoJSON(callCtx, http.MethodPost,
		a.cfg.APIURL+"/tokens/cards", a.bearer(a.cfg.PublicKey), tokenReq, &token)
	if err != nil {
		span.RecordError(err)
		return nil, domain.WrapE(domain.KindInstrumentTokenization, err, "tokenize card")
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, domain.E(domain.KindInstrumentTokenization, "tokenization endpoint returned status %d", status)
	}

	span.AddEvent("Card tokenized.")
	return &port.InstrumentToken{
		Token:             token.Data.ID,
		LastFour:          token.Data.LastFour,
		AcceptanceToken:   merchant.Data.PresignedAcceptance.AcceptanceToken,
		PersonalAuthToken: merchant.Data.PresignedPersonalDataAuth.AcceptanceToken,
	}, nil
}

// Charge 提交扣款。瞬时传输失败用同一 Reference 做有界指数退避重试；
// 拒付和校验失败是终局的，不重试；超时既不是成功也不是失败，
// 返回 CHARGE_AMBIGUOUS 交给协调者对账。
func (a *PaymentHTTPAdapter) Charge(ctx context.Context, req *port.ChargeRequest) (*port.ChargeResult, error) {
	ctx, span := a.tracer.Start(ctx, "gateway.Charge")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.reference", req.Reference),
		attribute.Int64("payment.amount_cents", req.AmountCents),
	)

	payload := a.buildChargePayload(req)

	var lastErr error
	for attempt := 1; attempt <= a.cfg.MaxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
		var resp chargeResponse
		status, err := a.client.DoJSON(callCtx, http.MethodPost,
			a.cfg.APIURL+"/transactions", a.bearer(a.cfg.PrivateKey), payload, &resp)
		cancel()

		switch {
		case err != nil && errors.Is(err, context.DeadlineExceeded):
			// 超时结局未知：不能盲目重试后放弃，也不能臆断失败
			span.SetStatus(codes.Error, "charge submission timed out")
			return nil, domain.WrapE(domain.KindChargeAmbiguous, err,
				"charge submission for %s timed out, outcome unknown", req.Reference)
		case err != nil || status >= http.StatusInternalServerError:
			// 瞬时传输层故障，用同一 reference 重试是安全的
			if err == nil {
				err = fmt.Errorf("gateway returned status %d", status)
			}
			lastErr = err
			logger.Ctx(ctx).Warn().Err(err).
				Str("reference", req.Reference).
				Int("attempt", attempt).
				Msg("transient gateway failure, retrying charge")
			select {
			case <-time.After(a.backoffBase << (attempt - 1)):
			case <-ctx.Done():
				return nil, domain.WrapE(domain.KindChargeAmbiguous, ctx.Err(),
					"charge submission for %s interrupted, outcome unknown", req.Reference)
			}
			continue
		case status >= http.StatusBadRequest:
			// 网关校验失败是终局的
			err := domain.E(domain.KindGateway, "gateway rejected charge %s with status %d", req.Reference, status)
			span.RecordError(err)
			span.SetStatus(codes.Error, "charge rejected")
			return nil, err
		}

		result := toChargeResult(resp.Data)
		span.SetAttributes(attribute.String("payment.status", string(result.Status)))
		return result, nil
	}

	span.SetStatus(codes.Error, "gateway unreachable")
	return nil, domain.WrapE(domain.KindGateway, lastErr,
		"gateway unreachable after %d attempts for %s", a.cfg.MaxAttempts, req.Reference)
}

// QueryStatus 按 reference 查询扣款的真实结局。
// 超时的提交可能没有拿到网关侧 ID，所以对账只能以 reference 为键。
func (a *PaymentHTTPAdapter) QueryStatus(ctx context.Context, reference string) (*port.ChargeResult, error) {
	ctx, span := a.tracer.Start(ctx, "gateway.QueryStatus")
	defer span.End()
	span.SetAttributes(attribute.String("payment.reference", reference))

	callCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	var resp chargeListResponse
	status, err := a.client.DoJSON(callCtx, http.MethodGet,
		a.cfg.APIURL+"/transactions?reference="+url.QueryEscape(reference),
		a.bearer(a.cfg.PrivateKey), nil, &resp)
	if err != nil {
		span.RecordError(err)
		return nil, domain.WrapE(domain.KindGateway, err, "query charge status for %s", reference)
	}
	if status != http.StatusOK {
		return nil, domain.E(domain.KindGateway, "status endpoint returned %d for %s", status, reference)
	}
	if len(resp.Data) == 0 {
		// 网关侧没有这笔扣款：提交从未到达，资金未动
		return nil, domain.E(domain.KindChargeDeclined, "no charge found for reference %s, funds were never captured", reference)
	}

	result := toChargeResult(resp.Data[0])
	span.SetAttributes(attribute.String("payment.status", string(result.Status)))
	return result, nil
}

func (a *PaymentHTTPAdapter) buildChargePayload(req *port.ChargeRequest) *chargePayload {
	payload := &chargePayload{
		AcceptanceToken:    req.Instrument.AcceptanceToken,
		AcceptPersonalAuth: req.Instrument.PersonalAuthToken,
		AmountInCents:      req.AmountCents,
		Currency:           a.cfg.Currency,
		CustomerEmail:      req.CustomerEmail,
		Reference:          req.Reference,
		Signature:          a.signature(req.Reference, req.AmountCents),
	}
	payload.PaymentMethod.Type = "CARD"
	payload.PaymentMethod.Token = req.Instrument.Token
	payload.PaymentMethod.Installments = req.Installments
	payload.CustomerData.FullName = req.CustomerName
	payload.CustomerData.PhoneNumber = req.CustomerPhone
	payload.ShippingAddress.AddressLine1 = req.Shipping.AddressLine1
	payload.ShippingAddress.Country = req.Shipping.Country
	payload.ShippingAddress.Region = req.Shipping.Region
	payload.ShippingAddress.City = req.Shipping.City
	payload.ShippingAddress.Name = req.Shipping.Name
	payload.ShippingAddress.PhoneNumber = req.Shipping.Phone
	payload.ShippingAddress.PostalCode = req.Shipping.PostalCode
	return payload
}

// signature 是网关要求的完整性签名。
func (a *PaymentHTTPAdapter) signature(reference string, amountCents int64) string {
	sum := sha256.Sum256([]byte(reference + strconv.FormatInt(amountCents, 10) + a.cfg.Currency + a.cfg.IntegritySecret))
	return hex.EncodeToString(sum[:])
}

func (a *PaymentHTTPAdapter) bearer(key string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+key)
	return h
}

func toChargeResult(data chargeData) *port.ChargeResult {
	result := &port.ChargeResult{
		ExternalID:    data.ID,
		StatusMessage: data.StatusMessage,
	}
	switch data.Status {
	case "APPROVED":
		result.Status = port.ChargeApproved
	case "DECLINED":
		result.Status = port.ChargeDeclined
	case "PENDING":
		result.Status = port.ChargePending
	default:
		result.Status = port.ChargeError
		if result.StatusMessage == "" {
			result.StatusMessage = fmt.Sprintf("unexpected gateway status %q", data.Status)
		}
	}
	return result
}
