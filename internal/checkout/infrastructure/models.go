// internal/checkout/infrastructure/models.go
package infrastructure

import "time"

// 数据库模型与领域模型分离，通过 mapper 转换。
// 实体之间只用 id 互相引用，不做级联。

type ProductModel struct {
	ID          string `gorm:"primaryKey;size:36"`
	Name        string `gorm:"size:100;uniqueIndex"`
	Description string `gorm:"type:text"`
	PriceCents  int64  `gorm:"not null;default:0"`
	Stock       int    `gorm:"not null;default:0"`
	Reserved    int    `gorm:"not null;default:0"`
	IsActive    bool   `gorm:"not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (ProductModel) TableName() string { return "products" }

type ClientModel struct {
	ID        string `gorm:"primaryKey;size:36"`
	Email     string `gorm:"size:100;uniqueIndex"`
	Name      string `gorm:"size:100"`
	Phone     string `gorm:"size:20"`
	Address   string `gorm:"size:200"`
	CreatedAt time.Time
}

func (ClientModel) TableName() string { return "clients" }

type ReservationModel struct {
	ID        string `gorm:"primaryKey;size:36"`
	ProductID string `gorm:"size:36;index"`
	Quantity  int    `gorm:"not null"`
	SagaID    string `gorm:"size:36;index"`
	Status    string `gorm:"size:16;index:idx_reservations_sweep"`
	ExpiresAt time.Time `gorm:"index:idx_reservations_sweep"`
	CreatedAt time.Time
}

func (ReservationModel) TableName() string { return "reservations" }

type TransactionModel struct {
	ID               string `gorm:"primaryKey;size:36"`
	ClientID         string `gorm:"size:36;index"`
	TotalCents       int64  `gorm:"not null"`
	TaxCents         int64  `gorm:"not null;default:0"`
	PaymentReference string `gorm:"size:64;index"`
	ExternalChargeID string `gorm:"size:64"`
	CardLastFour     string `gorm:"size:4"`
	Status           string `gorm:"size:16"`
	FailureReason    string `gorm:"size:255"`
	CreatedAt        time.Time `gorm:"index"`

	Items []LineItemModel `gorm:"foreignKey:TransactionID"`
}

func (TransactionModel) TableName() string { return "transactions" }

type LineItemModel struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	TransactionID  string `gorm:"size:36;index"`
	ProductID      string `gorm:"size:36"`
	ProductName    string `gorm:"size:100"`
	Quantity       int    `gorm:"not null"`
	UnitPriceCents int64  `gorm:"not null"`
}

func (LineItemModel) TableName() string { return "transaction_products" }

type DeliveryModel struct {
	ID             string `gorm:"primaryKey;size:36"`
	TransactionID  string `gorm:"size:36;uniqueIndex"`
	Address        string `gorm:"size:200"`
	City           string `gorm:"size:100"`
	PostalCode     string `gorm:"size:20"`
	Name           string `gorm:"size:100"`
	Phone          string `gorm:"size:20"`
	Status         string `gorm:"size:16;index"`
	ExternalID     string `gorm:"size:64"`
	TrackingNumber string `gorm:"size:64"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (DeliveryModel) TableName() string { return "deliveries" }
