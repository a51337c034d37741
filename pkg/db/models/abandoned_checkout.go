package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/enums"
)

// AbandonedCheckout is a saved cart the recovery flow can convert once a
// later checkout referencing it is paid.
type AbandonedCheckout struct {
	ID           uuid.UUID                     `gorm:"column:id;type:uuid;primaryKey"`
	UserID       uuid.UUID                     `gorm:"column:user_id;type:uuid;not null;index"`
	Status       enums.AbandonedCheckoutStatus `gorm:"column:status;not null;default:'OPEN'"`
	CartSnapshot json.RawMessage               `gorm:"column:cart_snapshot;type:jsonb;serializer:json"`
	ConvertedAt  *time.Time                    `gorm:"column:converted_at"`
	CreatedAt    time.Time                     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time                     `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *AbandonedCheckout) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
