// internal/checkout/infrastructure/mapper.go
package infrastructure

import "storefront/internal/checkout/domain"

func toDomainProduct(m *ProductModel) *domain.Product {
	return &domain.Product{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		PriceCents:  m.PriceCents,
		Stock:       m.Stock,
		Reserved:    m.Reserved,
		IsActive:    m.IsActive,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toDomainClient(m *ClientModel) *domain.Client {
	return &domain.Client{
		ID:        m.ID,
		Email:     m.Email,
		Name:      m.Name,
		Phone:     m.Phone,
		Address:   m.Address,
		CreatedAt: m.CreatedAt,
	}
}

func toReservationModel(r *domain.Reservation) *ReservationModel {
	return &ReservationModel{
		ID:        r.ID,
		ProductID: r.ProductID,
		Quantity:  r.Quantity,
		SagaID:    r.SagaID,
		Status:    string(r.Status),
		ExpiresAt: r.ExpiresAt,
		CreatedAt: r.CreatedAt,
	}
}

func toDomainReservation(m *ReservationModel) *domain.Reservation {
	return &domain.Reservation{
		ID:        m.ID,
		ProductID: m.ProductID,
		Quantity:  m.Quantity,
		SagaID:    m.SagaID,
		Status:    domain.ReservationStatus(m.Status),
		ExpiresAt: m.ExpiresAt,
		CreatedAt: m.CreatedAt,
	}
}

func toTransactionModel(tx *domain.Transaction) *TransactionModel {
	model := &TransactionModel{
		ID:               tx.ID,
		ClientID:         tx.ClientID,
		TotalCents:       tx.TotalCents,
		TaxCents:         tx.TaxCents,
		PaymentReference: tx.PaymentReference,
		ExternalChargeID: tx.ExternalChargeID,
		CardLastFour:     tx.CardLastFour,
		Status:           string(tx.Status),
		FailureReason:    tx.FailureReason,
		CreatedAt:        tx.CreatedAt,
	}
	for _, item := range tx.Items {
		model.Items = append(model.Items, LineItemModel{
			TransactionID:  tx.ID,
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	return model
}

func toDomainTransaction(m *TransactionModel) *domain.Transaction {
	tx := &domain.Transaction{
		ID:               m.ID,
		ClientID:         m.ClientID,
		TotalCents:       m.TotalCents,
		TaxCents:         m.TaxCents,
		PaymentReference: m.PaymentReference,
		ExternalChargeID: m.ExternalChargeID,
		CardLastFour:     m.CardLastFour,
		Status:           domain.TransactionStatus(m.Status),
		FailureReason:    m.FailureReason,
		CreatedAt:        m.CreatedAt,
	}
	for _, item := range m.Items {
		tx.Items = append(tx.Items, domain.LineItem{
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	return tx
}

func toDeliveryModel(d *domain.Delivery) *DeliveryModel {
	return &DeliveryModel{
		ID:             d.ID,
		TransactionID:  d.TransactionID,
		Address:        d.Address,
		City:           d.City,
		PostalCode:     d.PostalCode,
		Name:           d.Name,
		Phone:          d.Phone,
		Status:         string(d.Status),
		ExternalID:     d.ExternalID,
		TrackingNumber: d.TrackingNumber,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func toDomainDelivery(m *DeliveryModel) *domain.Delivery {
	return &domain.Delivery{
		ID:             m.ID,
		TransactionID:  m.TransactionID,
		Address:        m.Address,
		City:           m.City,
		PostalCode:     m.PostalCode,
		Name:           m.Name,
		Phone:          m.Phone,
		Status:         domain.DeliveryStatus(m.Status),
		ExternalID:     m.ExternalID,
		TrackingNumber: m.TrackingNumber,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
