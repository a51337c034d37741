package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/enums"
)

// Order is the durable record a checkout produces. Line items snapshot
// prices and quantity rules at checkout time; later catalog edits never
// alter a placed order. Orders are terminal-stated, never hard-deleted.
type Order struct {
	ID                  uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID              uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Status              enums.OrderStatus `gorm:"column:status;not null;default:'PENDING_PAYMENT'"`
	SubtotalPaise       int64             `gorm:"column:subtotal_paise;not null"`
	CoinsUsedPaise      int64             `gorm:"column:coins_used_paise;not null;default:0"`
	CoinsUsedDebited    bool              `gorm:"column:coins_used_debited;not null;default:false"`
	TotalPaise          int64             `gorm:"column:total_paise;not null"`
	RoomID              *uuid.UUID        `gorm:"column:room_id;type:uuid;index"`
	AbandonedCheckoutID *uuid.UUID        `gorm:"column:abandoned_checkout_id;type:uuid"`
	GatewayOrderID      *string           `gorm:"column:gateway_order_id;uniqueIndex:ux_orders_gateway_order_id"`
	CancelReason        *string           `gorm:"column:cancel_reason"`
	Items               []OrderLineItem   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payment             *Payment          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	ConfirmedAt         *time.Time        `gorm:"column:confirmed_at"`
	CanceledAt          *time.Time        `gorm:"column:canceled_at"`
	CreatedAt           time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// PaymentMode reports the mode of the related payment, defaulting to
// online when the payment row has not been loaded.
func (o *Order) PaymentMode() enums.PaymentMode {
	if o.Payment != nil && o.Payment.Mode.IsValid() {
		return o.Payment.Mode
	}
	return enums.PaymentModeOnline
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OrderLineItem snapshots one cart line, including the quantity rules the
// line was validated against, for audit.
type OrderLineItem struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	VariantID      *uuid.UUID `gorm:"column:variant_id;type:uuid"`
	VendorID       uuid.UUID  `gorm:"column:vendor_id;type:uuid;not null;index"`
	Name           string     `gorm:"column:name;not null"`
	Qty            int        `gorm:"column:qty;not null"`
	UnitPricePaise int64      `gorm:"column:unit_price_paise;not null"`
	TotalPaise     int64      `gorm:"column:total_paise;not null"`
	MinOrderQty    int        `gorm:"column:min_order_qty;not null;default:1"`
	StepSize       int        `gorm:"column:step_size;not null;default:1"`
	MaxOrderQty    int        `gorm:"column:max_order_qty;not null;default:0"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *OrderLineItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
