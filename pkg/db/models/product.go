package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Product is the canonical catalog listing. Stock is the durable,
// authoritative quantity; when variants exist it mirrors their sum.
type Product struct {
	ID              uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	VendorID        uuid.UUID        `gorm:"column:vendor_id;type:uuid;not null"`
	Name            string           `gorm:"column:name;not null"`
	SKU             string           `gorm:"column:sku;not null"`
	PricePaise      int64            `gorm:"column:price_paise;not null"`
	OfferPricePaise *int64           `gorm:"column:offer_price_paise"`
	Stock           int              `gorm:"column:stock;not null;default:0"`
	MinOrderQty     int              `gorm:"column:min_order_qty;not null;default:1"`
	StepSize        int              `gorm:"column:step_size;not null;default:1"`
	MaxOrderQty     int              `gorm:"column:max_order_qty;not null;default:0"`
	LowStockAt      int              `gorm:"column:low_stock_at;not null;default:5"`
	IsActive        bool             `gorm:"column:is_active;not null;default:true"`
	Images          pq.StringArray   `gorm:"column:images;type:text[]"`
	Tags            pq.StringArray   `gorm:"column:tags;type:text[]"`
	Variants        []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// EffectivePricePaise resolves the live unit price, offer price winning
// when present.
func (p *Product) EffectivePricePaise() int64 {
	if p.OfferPricePaise != nil && *p.OfferPricePaise > 0 {
		return *p.OfferPricePaise
	}
	return p.PricePaise
}

// Variant returns the variant with the given id, or nil.
func (p *Product) Variant(id uuid.UUID) *ProductVariant {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i]
		}
	}
	return nil
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ProductVariant is an orderable variation with its own stock and an
// optional price override.
type ProductVariant struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	Name       string    `gorm:"column:name;not null"`
	PricePaise *int64    `gorm:"column:price_paise"`
	Stock      int       `gorm:"column:stock;not null;default:0"`
	Position   int       `gorm:"column:position;not null;default:0"`
	IsActive   bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *ProductVariant) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
