// internal/checkout/application/dto.go
package application

import (
	"strings"

	"storefront/internal/checkout/domain"
)

// DeliveryData 收货人信息，email 同时用作客户档案的定位键。
type DeliveryData struct {
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
}

// CardData 未脱敏卡面信息，只在本次请求内存活，绝不落库、绝不写日志。
type CardData struct {
	Number   string `json:"number"`
	ExpMonth string `json:"exp_month"`
	ExpYear  string `json:"exp_year"`
	CVC      string `json:"cvc"`
	Holder   string `json:"holder"`
}

type CreateOrderRequest struct {
	ProductID              string       `json:"product_id"`
	Quantity               int          `json:"quantity"`
	TaxCents               int64        `json:"tax_cents"`
	Delivery               DeliveryData `json:"delivery"`
	Card                   CardData     `json:"card"`
	TermsAccepted          bool         `json:"terms_accepted"`
	DataProcessingAccepted bool         `json:"data_processing_accepted"`
}

// Validate 做纯本地前置校验，任何出站调用之前失败即终止。
func (r *CreateOrderRequest) Validate() error {
	if strings.TrimSpace(r.ProductID) == "" {
		return domain.E(domain.KindValidation, "product_id is required")
	}
	if r.Quantity < 1 {
		return domain.E(domain.KindValidation, "quantity must be at least 1, got %d", r.Quantity)
	}
	if r.TaxCents < 0 {
		return domain.E(domain.KindValidation, "tax_cents must not be negative")
	}
	if strings.TrimSpace(r.Delivery.Email) == "" {
		return domain.E(domain.KindValidation, "delivery.email is required")
	}
	if !strings.Contains(r.Delivery.Email, "@") {
		return domain.E(domain.KindValidation, "delivery.email is not a valid address")
	}
	if strings.TrimSpace(r.Delivery.FullName) == "" {
		return domain.E(domain.KindValidation, "delivery.full_name is required")
	}
	if strings.TrimSpace(r.Delivery.Address) == "" {
		return domain.E(domain.KindValidation, "delivery.address is required")
	}
	if strings.TrimSpace(r.Delivery.City) == "" {
		return domain.E(domain.KindValidation, "delivery.city is required")
	}
	if strings.TrimSpace(strings.ReplaceAll(r.Card.Number, " ", "")) == "" {
		return domain.E(domain.KindValidation, "card.number is required")
	}
	if r.Card.ExpMonth == "" || r.Card.ExpYear == "" {
		return domain.E(domain.KindValidation, "card expiry is required")
	}
	if r.Card.CVC == "" {
		return domain.E(domain.KindValidation, "card.cvc is required")
	}
	return nil
}
