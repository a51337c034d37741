package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/enums"
)

// Payment is the one-to-one gateway record for an order. It is created
// alongside the order and moved to SUCCESS exactly once on verified
// confirmation.
type Payment struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_payments_order_id"`
	Provider          string              `gorm:"column:provider;not null;default:'razorpay'"`
	Mode              enums.PaymentMode   `gorm:"column:mode;not null;default:'ONLINE'"`
	Status            enums.PaymentStatus `gorm:"column:status;not null;default:'PENDING'"`
	AmountPaise       int64               `gorm:"column:amount_paise;not null"`
	ProviderOrderID   *string             `gorm:"column:provider_order_id;index"`
	ProviderPaymentID *string             `gorm:"column:provider_payment_id"`
	SettledAt         *time.Time          `gorm:"column:settled_at"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
